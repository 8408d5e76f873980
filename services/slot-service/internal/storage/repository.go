package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/md-rashed-zaman/freeslots/libs/db"
	"github.com/md-rashed-zaman/freeslots/libs/slots"
)

var ErrNotFound = errors.New("not found")

type Repository struct {
	pool *db.Pool
}

// BusyInterval is one stored busy span of a calendar day.
type BusyInterval struct {
	ID         string    `json:"id"`
	CalendarID string    `json:"calendar_id"`
	Day        time.Time `json:"-"`
	Start      string    `json:"start"`
	Stop       string    `json:"stop"`
	CreatedAt  time.Time `json:"created_at"`
}

func NewRepository(pool *db.Pool) *Repository {
	return &Repository{pool: pool}
}

const schema = `
CREATE TABLE IF NOT EXISTS busy_intervals (
	id          uuid PRIMARY KEY,
	calendar_id text NOT NULL,
	day         date NOT NULL,
	start_time  text NOT NULL,
	stop_time   text NOT NULL,
	created_at  timestamptz NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS busy_intervals_calendar_day_idx ON busy_intervals (calendar_id, day);
CREATE TABLE IF NOT EXISTS inbox_events (
	event_id    text PRIMARY KEY,
	event_type  text NOT NULL,
	received_at timestamptz NOT NULL DEFAULT now()
);
`

func (r *Repository) EnsureSchema(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, schema)
	return err
}

// ListBusy returns the day's busy spans in start order.
func (r *Repository) ListBusy(ctx context.Context, calendarID string, day time.Time) ([]slots.Span, error) {
	records, err := r.ListBusyRecords(ctx, calendarID, day)
	if err != nil {
		return nil, err
	}
	out := make([]slots.Span, 0, len(records))
	for _, rec := range records {
		out = append(out, slots.Span{Start: rec.Start, Stop: rec.Stop})
	}
	return out, nil
}

func (r *Repository) ListBusyRecords(ctx context.Context, calendarID string, day time.Time) ([]BusyInterval, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, calendar_id, day, start_time, stop_time, created_at
		FROM busy_intervals
		WHERE calendar_id = $1 AND day = $2
		ORDER BY start_time, created_at
	`, calendarID, day)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []BusyInterval
	for rows.Next() {
		var b BusyInterval
		if err := rows.Scan(&b.ID, &b.CalendarID, &b.Day, &b.Start, &b.Stop, &b.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (r *Repository) AddBusy(ctx context.Context, calendarID string, day time.Time, span slots.Span) (string, error) {
	id := uuid.NewString()
	_, err := r.pool.Exec(ctx, `
		INSERT INTO busy_intervals (id, calendar_id, day, start_time, stop_time)
		VALUES ($1, $2, $3, $4, $5)
	`, id, calendarID, day, span.Start, span.Stop)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (r *Repository) DeleteBusy(ctx context.Context, calendarID, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrNotFound
	}
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM busy_intervals WHERE id = $1 AND calendar_id = $2
	`, id, calendarID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ApplyBusyChange records eventID in the inbox and replaces the calendar
// day's busy set in the same transaction. It returns false, changing
// nothing, when the event was applied before. A failed apply leaves no
// inbox entry, so a redelivery is applied normally.
func (r *Repository) ApplyBusyChange(ctx context.Context, eventID, eventType, calendarID string, day time.Time, spans []slots.Span) (bool, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `
		INSERT INTO inbox_events (event_id, event_type)
		VALUES ($1, $2)
		ON CONFLICT (event_id) DO NOTHING
	`, eventID, eventType)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}

	if err := replaceDay(ctx, tx, calendarID, day, spans); err != nil {
		return false, err
	}
	if err := tx.Commit(ctx); err != nil {
		return false, err
	}
	return true, nil
}

func replaceDay(ctx context.Context, tx pgx.Tx, calendarID string, day time.Time, spans []slots.Span) error {
	if _, err := tx.Exec(ctx, `
		DELETE FROM busy_intervals WHERE calendar_id = $1 AND day = $2
	`, calendarID, day); err != nil {
		return err
	}

	batch := &pgx.Batch{}
	for _, s := range spans {
		batch.Queue(`
			INSERT INTO busy_intervals (id, calendar_id, day, start_time, stop_time)
			VALUES ($1, $2, $3, $4, $5)
		`, uuid.NewString(), calendarID, day, s.Start, s.Stop)
	}
	if batch.Len() == 0 {
		return nil
	}
	return tx.SendBatch(ctx, batch).Close()
}
