package finder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	otelx "github.com/md-rashed-zaman/freeslots/libs/otel"
	"github.com/md-rashed-zaman/freeslots/libs/slots"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const DateLayout = "2006-01-02"

var (
	ErrStoreUnavailable = errors.New("busy interval store not configured")
	ErrInvalidQuery     = errors.New("invalid query")
)

// BusyStore loads the busy spans recorded for one calendar day.
type BusyStore interface {
	ListBusy(ctx context.Context, calendarID string, day time.Time) ([]slots.Span, error)
}

// ResultCache stores computed chunks per calendar. Get returns the key of
// the calendar version it consulted, and Set writes under exactly that key,
// so Invalidate makes every earlier entry of the calendar unreachable even
// when it races a computation.
type ResultCache interface {
	Get(ctx context.Context, calendarID, fingerprint string) (spans []slots.Span, key string, ok bool, err error)
	Set(ctx context.Context, key string, spans []slots.Span) error
	Invalidate(ctx context.Context, calendarID string) error
}

type EventPublisher interface {
	PublishComputed(ctx context.Context, calendarID, date string, req slots.Request, result []slots.Span) error
}

type Config struct {
	// Strict rejects overlapping or reversed busy spans and non-positive
	// durations instead of computing on them.
	Strict bool
}

type Finder struct {
	store  BusyStore
	cache  ResultCache
	events EventPublisher
	logger *slog.Logger
	opts   slots.Options
	tracer trace.Tracer
}

// New wires a Finder. store, cache and events may be nil.
func New(logger *slog.Logger, store BusyStore, cache ResultCache, events EventPublisher, cfg Config) *Finder {
	return &Finder{
		store:  store,
		cache:  cache,
		events: events,
		logger: logger,
		opts:   slots.Options{Validate: cfg.Strict},
		tracer: otelx.Tracer("slot-service/finder"),
	}
}

// CalendarQuery asks for the free chunks of one stored calendar day.
type CalendarQuery struct {
	CalendarID string
	Date       string
	StartTime  string
	StopTime   string
	Duration   int
}

func (q CalendarQuery) fingerprint() string {
	return strings.Join([]string{q.Date, q.StartTime, q.StopTime, strconv.Itoa(q.Duration)}, "|")
}

// Compute runs the interval arithmetic on an inline request.
func (f *Finder) Compute(ctx context.Context, req slots.Request) ([]slots.Span, error) {
	result, err := f.compute(ctx, req)
	if err != nil {
		return nil, err
	}
	f.publish(ctx, "", "", req, result)
	return result, nil
}

// ForCalendar computes the free chunks of a stored calendar day, going
// through the result cache when one is configured.
func (f *Finder) ForCalendar(ctx context.Context, q CalendarQuery) ([]slots.Span, error) {
	q.CalendarID = strings.TrimSpace(q.CalendarID)
	if q.CalendarID == "" {
		return nil, fmt.Errorf("%w: calendar_id is required", ErrInvalidQuery)
	}
	day, err := time.Parse(DateLayout, q.Date)
	if err != nil {
		return nil, fmt.Errorf("%w: date must be YYYY-MM-DD", ErrInvalidQuery)
	}
	if f.store == nil {
		return nil, ErrStoreUnavailable
	}

	var cacheKey string
	if f.cache != nil {
		cached, key, ok, err := f.cache.Get(ctx, q.CalendarID, q.fingerprint())
		cacheKey = key
		if err != nil {
			f.logger.Warn("slot cache read failed", "calendar_id", q.CalendarID, "err", err)
		} else if ok {
			f.logger.Debug("slot cache hit", "calendar_id", q.CalendarID, "date", q.Date)
			return cached, nil
		}
	}

	busy, err := f.store.ListBusy(ctx, q.CalendarID, day)
	if err != nil {
		return nil, fmt.Errorf("load busy intervals: %w", err)
	}

	req := slots.Request{
		Busy:      busy,
		StartTime: q.StartTime,
		StopTime:  q.StopTime,
		Duration:  q.Duration,
	}
	result, err := f.compute(ctx, req)
	if err != nil {
		return nil, err
	}

	if cacheKey != "" {
		if err := f.cache.Set(ctx, cacheKey, result); err != nil {
			f.logger.Warn("slot cache write failed", "calendar_id", q.CalendarID, "err", err)
		}
	}
	f.publish(ctx, q.CalendarID, q.Date, req, result)
	return result, nil
}

// Invalidate drops cached results after the calendar's busy set changed.
func (f *Finder) Invalidate(ctx context.Context, calendarID string) error {
	if f.cache == nil {
		return nil
	}
	return f.cache.Invalidate(ctx, calendarID)
}

func (f *Finder) compute(ctx context.Context, req slots.Request) ([]slots.Span, error) {
	_, span := f.tracer.Start(ctx, "slots.compute", trace.WithAttributes(
		attribute.Int("slots.busy_count", len(req.Busy)),
		attribute.String("slots.start_time", req.StartTime),
		attribute.String("slots.stop_time", req.StopTime),
		attribute.Int("slots.duration_minutes", req.Duration),
	))
	defer span.End()

	result, err := slots.Compute(req, f.opts)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.Int("slots.chunk_count", len(result)))
	return result, nil
}

func (f *Finder) publish(ctx context.Context, calendarID, date string, req slots.Request, result []slots.Span) {
	if f.events == nil {
		return
	}
	if err := f.events.PublishComputed(ctx, calendarID, date, req, result); err != nil {
		f.logger.Warn("publish computed event failed", "calendar_id", calendarID, "err", err)
	}
}
