package events

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/md-rashed-zaman/freeslots/libs/kafkax"
	"github.com/md-rashed-zaman/freeslots/libs/slots"
	"github.com/segmentio/kafka-go"
)

const (
	ComputedEventType    = "freeslots.computed.v1"
	BusyChangedEventType = "calendar.busy.changed.v1"

	inlineKey = "inline"
)

var ErrQueueFull = errors.New("event queue full")

// MessageWriter is satisfied by *kafka.Writer.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Computed is the payload of a freeslots.computed.v1 event.
type Computed struct {
	EventID    string       `json:"event_id"`
	CalendarID string       `json:"calendar_id,omitempty"`
	Date       string       `json:"date,omitempty"`
	StartTime  string       `json:"start_time"`
	StopTime   string       `json:"stop_time"`
	Duration   int          `json:"free_interval_duration"`
	Slots      []slots.Span `json:"slots"`
	ComputedAt time.Time    `json:"computed_at"`
}

type Publisher struct {
	writer MessageWriter
	logger *slog.Logger
	topic  string
	queue  chan kafka.Message
	now    func() time.Time
}

type PublisherConfig struct {
	Topic  string
	Buffer int
}

// NewKafkaWriter builds the writer used by the service; messages are
// partitioned by key so one calendar's events stay ordered.
func NewKafkaWriter(brokers string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(kafkax.SplitBrokers(brokers)...),
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
	}
}

func NewPublisher(logger *slog.Logger, writer MessageWriter, cfg PublisherConfig) *Publisher {
	if cfg.Topic == "" {
		cfg.Topic = ComputedEventType
	}
	if cfg.Buffer <= 0 {
		cfg.Buffer = 256
	}
	return &Publisher{
		writer: writer,
		logger: logger,
		topic:  cfg.Topic,
		queue:  make(chan kafka.Message, cfg.Buffer),
		now:    time.Now,
	}
}

// PublishComputed queues a computed event. It never blocks on Kafka; a
// full queue drops the event and reports ErrQueueFull.
func (p *Publisher) PublishComputed(ctx context.Context, calendarID, date string, req slots.Request, result []slots.Span) error {
	evt := Computed{
		EventID:    uuid.NewString(),
		CalendarID: calendarID,
		Date:       date,
		StartTime:  req.StartTime,
		StopTime:   req.StopTime,
		Duration:   req.Duration,
		Slots:      result,
		ComputedAt: p.now().UTC(),
	}
	if evt.Slots == nil {
		evt.Slots = []slots.Span{}
	}
	payload, err := json.Marshal(evt)
	if err != nil {
		return err
	}

	key := calendarID
	if key == "" {
		key = inlineKey
	}
	meta := kafkax.EventMeta{EventID: evt.EventID, EventType: ComputedEventType}
	msg := kafka.Message{
		Topic:   p.topic,
		Key:     []byte(key),
		Value:   payload,
		Headers: kafkax.InjectTraceHeaders(ctx, meta.Headers()),
	}

	select {
	case p.queue <- msg:
		return nil
	default:
		return ErrQueueFull
	}
}

// Run writes queued events until ctx is done, then flushes what is left
// and closes the writer.
func (p *Publisher) Run(ctx context.Context) {
	defer func() {
		if err := p.writer.Close(); err != nil {
			p.logger.Warn("kafka writer close failed", "err", err)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			p.drain()
			return
		case msg := <-p.queue:
			if err := p.writer.WriteMessages(ctx, msg); err != nil {
				if ctx.Err() != nil {
					p.drain()
					return
				}
				p.logger.Error("kafka publish failed", "topic", msg.Topic, "err", err)
			}
		}
	}
}

func (p *Publisher) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for {
		select {
		case msg := <-p.queue:
			if err := p.writer.WriteMessages(ctx, msg); err != nil {
				p.logger.Error("kafka publish failed", "topic", msg.Topic, "err", err)
				return
			}
		default:
			return
		}
	}
}
