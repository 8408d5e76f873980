package slots

import "fmt"

// Request is one free-slot computation: busy spans, the working window and
// the chunk length in minutes.
type Request struct {
	Busy      []Span `json:"busy"`
	StartTime string `json:"start_time"`
	StopTime  string `json:"stop_time"`
	Duration  int    `json:"free_interval_duration"`
}

type Options struct {
	// Validate rejects overlapping busy spans, reversed spans and
	// non-positive durations with a PreconditionError. Without it those
	// inputs produce whatever the interval arithmetic yields.
	Validate bool
}

// PreconditionError reports input that breaks the caller contract.
type PreconditionError struct {
	Reason string
}

func (e *PreconditionError) Error() string { return "precondition violated: " + e.Reason }

func (e *PreconditionError) Is(target error) bool { return target == ErrPrecondition }

// Compute returns the free chunks of req.Duration minutes inside the working
// window, in chronological order. The result is never nil.
func Compute(req Request, opts Options) ([]Span, error) {
	busy, err := NormalizeBusy(req.Busy)
	if err != nil {
		return nil, err
	}
	window, err := WorkWindow(req.StartTime, req.StopTime)
	if err != nil {
		return nil, err
	}
	if opts.Validate {
		if err := validate(busy, window, req.Duration); err != nil {
			return nil, err
		}
		busy = dropEmpty(busy)
	}

	busy = FilterBusy(busy, window)
	free := FreeIntervals(busy, window)
	return FormatChunks(Chunks(free, req.Duration)), nil
}

func validate(busy []Interval, window Interval, duration int) error {
	if duration <= 0 {
		return &PreconditionError{Reason: fmt.Sprintf("free_interval_duration must be positive, got %d", duration)}
	}
	// An empty window (start == stop) is allowed and yields no chunks.
	if window.End < window.Start-1 {
		return &PreconditionError{Reason: "stop_time is before start_time"}
	}
	var prev *Interval
	for i := range busy {
		b := busy[i]
		if b.End < b.Start-1 {
			return &PreconditionError{Reason: fmt.Sprintf("busy interval %s-%s stops before it starts",
				MinutesToTime(b.Start), MinutesToTime(b.End+1))}
		}
		// Zero-length spans occupy no minute and cannot overlap anything.
		if b.Len() == 0 {
			continue
		}
		if prev != nil && b.Start <= prev.End {
			return &PreconditionError{Reason: fmt.Sprintf("busy intervals %s-%s and %s-%s overlap",
				MinutesToTime(prev.Start), MinutesToTime(prev.End+1),
				MinutesToTime(b.Start), MinutesToTime(b.End+1))}
		}
		prev = &busy[i]
	}
	return nil
}

// dropEmpty removes zero-length intervals; they block no minute but would
// otherwise end the busy walk early when nested inside a longer interval.
func dropEmpty(busy []Interval) []Interval {
	out := make([]Interval, 0, len(busy))
	for _, b := range busy {
		if b.Len() > 0 {
			out = append(out, b)
		}
	}
	return out
}
