package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/md-rashed-zaman/freeslots/libs/httpx"
	"github.com/md-rashed-zaman/freeslots/libs/slots"
	"github.com/md-rashed-zaman/freeslots/services/slot-service/internal/finder"
	"github.com/md-rashed-zaman/freeslots/services/slot-service/internal/storage"
)

type SlotFinder interface {
	Compute(ctx context.Context, req slots.Request) ([]slots.Span, error)
	ForCalendar(ctx context.Context, q finder.CalendarQuery) ([]slots.Span, error)
	Invalidate(ctx context.Context, calendarID string) error
}

type BusyRepository interface {
	ListBusyRecords(ctx context.Context, calendarID string, day time.Time) ([]storage.BusyInterval, error)
	AddBusy(ctx context.Context, calendarID string, day time.Time, span slots.Span) (string, error)
	DeleteBusy(ctx context.Context, calendarID, id string) error
}

type Handler struct {
	finder SlotFinder
	busy   BusyRepository
	logger *slog.Logger
}

// New builds the HTTP handlers. busy may be nil when no database is
// configured; the calendar endpoints then answer 503.
func New(logger *slog.Logger, f SlotFinder, busy BusyRepository) *Handler {
	return &Handler{finder: f, busy: busy, logger: logger}
}

// Register mounts the API routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/v1/free-slots", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			h.ComputeFreeSlots(w, r)
			return
		}
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	})
	mux.HandleFunc("/api/v1/calendars/free-slots", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			h.CalendarFreeSlots(w, r)
			return
		}
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	})
	mux.HandleFunc("/api/v1/calendars/busy", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			h.ListBusy(w, r)
		case http.MethodPost:
			h.AddBusy(w, r)
		case http.MethodDelete:
			h.DeleteBusy(w, r)
		default:
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}
	})
}

func (h *Handler) ComputeFreeSlots(w http.ResponseWriter, r *http.Request) {
	var req slots.Request
	if !decodeBody(w, r, &req) {
		return
	}

	result, err := h.finder.Compute(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) CalendarFreeSlots(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	duration, err := strconv.Atoi(strings.TrimSpace(q.Get("duration")))
	if err != nil {
		http.Error(w, "duration must be an integer number of minutes", http.StatusBadRequest)
		return
	}

	result, err := h.finder.ForCalendar(r.Context(), finder.CalendarQuery{
		CalendarID: q.Get("calendar_id"),
		Date:       strings.TrimSpace(q.Get("date")),
		StartTime:  strings.TrimSpace(q.Get("start_time")),
		StopTime:   strings.TrimSpace(q.Get("stop_time")),
		Duration:   duration,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) ListBusy(w http.ResponseWriter, r *http.Request) {
	if h.busy == nil {
		http.Error(w, "busy interval store not configured", http.StatusServiceUnavailable)
		return
	}
	calendarID, day, ok := calendarDay(w, r.URL.Query().Get("calendar_id"), r.URL.Query().Get("date"))
	if !ok {
		return
	}

	records, err := h.busy.ListBusyRecords(r.Context(), calendarID, day)
	if err != nil {
		h.logger.Error("list busy intervals failed", "calendar_id", calendarID, "err", err)
		http.Error(w, "failed to list busy intervals", http.StatusInternalServerError)
		return
	}
	if records == nil {
		records = []storage.BusyInterval{}
	}
	httpx.WriteJSON(w, http.StatusOK, records)
}

func (h *Handler) AddBusy(w http.ResponseWriter, r *http.Request) {
	if h.busy == nil {
		http.Error(w, "busy interval store not configured", http.StatusServiceUnavailable)
		return
	}
	var req struct {
		CalendarID string `json:"calendar_id"`
		Date       string `json:"date"`
		Start      string `json:"start"`
		Stop       string `json:"stop"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	calendarID, day, ok := calendarDay(w, req.CalendarID, req.Date)
	if !ok {
		return
	}
	span := slots.Span{Start: strings.TrimSpace(req.Start), Stop: strings.TrimSpace(req.Stop)}
	iv, err := span.ToInterval()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if iv.End < iv.Start-1 {
		http.Error(w, "stop must not be before start", http.StatusBadRequest)
		return
	}

	id, err := h.busy.AddBusy(r.Context(), calendarID, day, span)
	if err != nil {
		h.logger.Error("add busy interval failed", "calendar_id", calendarID, "err", err)
		http.Error(w, "failed to add busy interval", http.StatusInternalServerError)
		return
	}
	h.invalidate(r.Context(), calendarID)
	httpx.WriteJSON(w, http.StatusCreated, map[string]string{"id": id})
}

func (h *Handler) DeleteBusy(w http.ResponseWriter, r *http.Request) {
	if h.busy == nil {
		http.Error(w, "busy interval store not configured", http.StatusServiceUnavailable)
		return
	}
	calendarID := strings.TrimSpace(r.URL.Query().Get("calendar_id"))
	id := strings.TrimSpace(r.URL.Query().Get("id"))
	if calendarID == "" || id == "" {
		http.Error(w, "calendar_id and id are required", http.StatusBadRequest)
		return
	}

	if err := h.busy.DeleteBusy(r.Context(), calendarID, id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			http.Error(w, "busy interval not found", http.StatusNotFound)
			return
		}
		h.logger.Error("delete busy interval failed", "calendar_id", calendarID, "err", err)
		http.Error(w, "failed to delete busy interval", http.StatusInternalServerError)
		return
	}
	h.invalidate(r.Context(), calendarID)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) invalidate(ctx context.Context, calendarID string) {
	if err := h.finder.Invalidate(ctx, calendarID); err != nil {
		h.logger.Warn("slot cache invalidate failed", "calendar_id", calendarID, "err", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, slots.ErrFormat),
		errors.Is(err, slots.ErrPrecondition),
		errors.Is(err, finder.ErrInvalidQuery):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, finder.ErrStoreUnavailable):
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
	default:
		h.logger.Error("free slot computation failed", "path", r.URL.Path, "err", err)
		http.Error(w, "failed to compute free slots", http.StatusInternalServerError)
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, "request body too large", http.StatusRequestEntityTooLarge)
			return false
		}
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return false
	}
	return true
}

func calendarDay(w http.ResponseWriter, calendarID, date string) (string, time.Time, bool) {
	calendarID = strings.TrimSpace(calendarID)
	if calendarID == "" {
		http.Error(w, "calendar_id is required", http.StatusBadRequest)
		return "", time.Time{}, false
	}
	day, err := time.Parse(finder.DateLayout, strings.TrimSpace(date))
	if err != nil {
		http.Error(w, "date must be YYYY-MM-DD", http.StatusBadRequest)
		return "", time.Time{}, false
	}
	return calendarID, day, true
}
