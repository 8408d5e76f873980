package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/md-rashed-zaman/freeslots/libs/kafkax"
	otelx "github.com/md-rashed-zaman/freeslots/libs/otel"
	"github.com/md-rashed-zaman/freeslots/libs/slots"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	dateLayout    = "2006-01-02"
	maxRetryDelay = 30 * time.Second
)

var ErrInvalidEvent = errors.New("invalid event")

// MessageReader is satisfied by *kafka.Reader with a GroupID; offsets are
// committed explicitly once a message has been applied.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// BusyApplier replaces a calendar day's busy set at most once per event id.
// applied is false when the event was seen before.
type BusyApplier interface {
	ApplyBusyChange(ctx context.Context, eventID, eventType, calendarID string, day time.Time, spans []slots.Span) (applied bool, err error)
}

type Invalidator interface {
	Invalidate(ctx context.Context, calendarID string) error
}

// BusyChanged is the payload of a calendar.busy.changed.v1 event: the full
// busy set of one calendar day.
type BusyChanged struct {
	CalendarID string       `json:"calendar_id"`
	Date       string       `json:"date"`
	Busy       []slots.Span `json:"busy"`
}

// Consumer applies busy-set changes. A message is committed only after it
// was applied, found to be a duplicate, or rejected as malformed; storage
// failures are retried with backoff on the same message so a change is
// never skipped.
type Consumer struct {
	reader      MessageReader
	logger      *slog.Logger
	busy        BusyApplier
	invalidator Invalidator
	tracer      trace.Tracer
	retryDelay  time.Duration
}

type ConsumerConfig struct {
	Brokers string
	GroupID string
	Topic   string
}

func NewKafkaReader(cfg ConsumerConfig) *kafka.Reader {
	if cfg.Topic == "" {
		cfg.Topic = BusyChangedEventType
	}
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:  kafkax.SplitBrokers(cfg.Brokers),
		GroupID:  cfg.GroupID,
		Topic:    cfg.Topic,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
}

func NewConsumer(logger *slog.Logger, reader MessageReader, busy BusyApplier, invalidator Invalidator) *Consumer {
	return &Consumer{
		reader:      reader,
		logger:      logger,
		busy:        busy,
		invalidator: invalidator,
		tracer:      otelx.Tracer("slot-service/events"),
		retryDelay:  time.Second,
	}
}

func (c *Consumer) Run(ctx context.Context) {
	defer c.reader.Close()

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Error("kafka fetch failed", "err", err)
			if !sleep(ctx, c.retryDelay) {
				return
			}
			continue
		}

		if !c.applyWithRetry(ctx, msg) {
			return
		}
		if err := c.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			// The message is redelivered; the inbox turns it into a no-op.
			c.logger.Warn("kafka commit failed", "offset", msg.Offset, "err", err)
		}
	}
}

// applyWithRetry returns false only when ctx ended before msg was settled.
func (c *Consumer) applyWithRetry(ctx context.Context, msg kafka.Message) bool {
	delay := c.retryDelay
	for attempt := 1; ; attempt++ {
		err := c.Handle(ctx, msg)
		if err == nil {
			return true
		}
		if errors.Is(err, ErrInvalidEvent) {
			c.logger.Warn("malformed busy change skipped", "offset", msg.Offset, "err", err)
			return true
		}
		if ctx.Err() != nil {
			return false
		}
		c.logger.Error("apply busy change failed", "offset", msg.Offset, "attempt", attempt, "err", err)
		if !sleep(ctx, delay) {
			return false
		}
		delay = min(2*delay, maxRetryDelay)
	}
}

// Handle applies one busy-changed message. Malformed payloads return an
// error wrapping ErrInvalidEvent; any other error is worth retrying.
func (c *Consumer) Handle(ctx context.Context, msg kafka.Message) error {
	meta := kafkax.ExtractEventMeta(msg)
	ctx, span := c.tracer.Start(kafkax.ExtractTraceContext(ctx, msg), "busy.apply",
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("messaging.system", "kafka"),
			attribute.String("messaging.destination", msg.Topic),
			attribute.String("messaging.message_id", meta.EventID),
		),
	)
	defer span.End()

	err := c.apply(ctx, meta, msg.Value)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (c *Consumer) apply(ctx context.Context, meta kafkax.EventMeta, raw []byte) error {
	evt, day, err := decodeBusyChanged(raw)
	if err != nil {
		return err
	}
	applied, err := c.busy.ApplyBusyChange(ctx, meta.EventID, meta.EventType, evt.CalendarID, day, evt.Busy)
	if err != nil {
		return fmt.Errorf("apply busy change: %w", err)
	}
	if !applied {
		c.logger.Info("duplicate busy change ignored", "event_id", meta.EventID, "calendar_id", evt.CalendarID)
		return nil
	}
	if c.invalidator != nil {
		if err := c.invalidator.Invalidate(ctx, evt.CalendarID); err != nil {
			c.logger.Warn("slot cache invalidate failed", "calendar_id", evt.CalendarID, "err", err)
		}
	}
	c.logger.Info("busy intervals replaced", "calendar_id", evt.CalendarID, "date", evt.Date, "count", len(evt.Busy))
	return nil
}

func decodeBusyChanged(raw []byte) (BusyChanged, time.Time, error) {
	var evt BusyChanged
	if err := json.Unmarshal(raw, &evt); err != nil {
		return evt, time.Time{}, fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}
	evt.CalendarID = strings.TrimSpace(evt.CalendarID)
	if evt.CalendarID == "" {
		return evt, time.Time{}, fmt.Errorf("%w: calendar_id is required", ErrInvalidEvent)
	}
	day, err := time.Parse(dateLayout, evt.Date)
	if err != nil {
		return evt, time.Time{}, fmt.Errorf("%w: date must be YYYY-MM-DD", ErrInvalidEvent)
	}
	for _, s := range evt.Busy {
		if _, err := s.ToInterval(); err != nil {
			return evt, time.Time{}, fmt.Errorf("%w: %v", ErrInvalidEvent, err)
		}
	}
	return evt, day, nil
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
