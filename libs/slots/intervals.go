package slots

import (
	"fmt"
	"sort"
)

// Interval is a minute range with both endpoints included.
type Interval struct {
	Start int
	End   int
}

// Len is the number of minutes covered; zero for degenerate intervals.
func (iv Interval) Len() int {
	if iv.End < iv.Start {
		return 0
	}
	return iv.End - iv.Start + 1
}

func (iv Interval) String() string {
	return fmt.Sprintf("[%d:%d]", iv.Start, iv.End)
}

// Span is the external representation of an interval: "HH:MM" bounds with
// the stop minute itself not occupied.
type Span struct {
	Start string `json:"start"`
	Stop  string `json:"stop"`
}

// ToInterval converts an exclusive-stop span into an inclusive interval.
func (s Span) ToInterval() (Interval, error) {
	start, err := TimeToMinutes(s.Start)
	if err != nil {
		return Interval{}, err
	}
	stop, err := TimeToMinutes(s.Stop)
	if err != nil {
		return Interval{}, err
	}
	return Interval{Start: start, End: stop - 1}, nil
}

// NormalizeBusy converts busy spans into inclusive intervals sorted by start.
// Busy spans are expected not to overlap.
func NormalizeBusy(busy []Span) ([]Interval, error) {
	out := make([]Interval, 0, len(busy))
	for _, s := range busy {
		iv, err := s.ToInterval()
		if err != nil {
			return nil, err
		}
		out = append(out, iv)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Start < out[j].Start })
	return out, nil
}

// WorkWindow returns the inclusive working-hours interval for [start, stop).
func WorkWindow(start, stop string) (Interval, error) {
	return Span{Start: start, Stop: stop}.ToInterval()
}

// FilterBusy keeps busy intervals that touch the window. Partial overlaps are
// kept whole; nothing is clipped.
func FilterBusy(busy []Interval, window Interval) []Interval {
	out := make([]Interval, 0, len(busy))
	for _, b := range busy {
		if b.End >= window.Start && b.Start <= window.End {
			out = append(out, b)
		}
	}
	return out
}

// FreeIntervals returns the gaps around sorted, filtered busy intervals.
// Gaps between busy intervals may be degenerate when the busy set overlaps;
// they contribute no chunks.
func FreeIntervals(busy []Interval, window Interval) []Interval {
	if len(busy) == 0 {
		return []Interval{window}
	}

	var free []Interval
	if window.Start < busy[0].Start {
		free = append(free, Interval{Start: window.Start, End: busy[0].Start - 1})
	}
	for i := 0; i < len(busy)-1; i++ {
		free = append(free, Interval{Start: busy[i].End + 1, End: busy[i+1].Start - 1})
	}
	last := busy[len(busy)-1]
	if window.End > last.End {
		free = append(free, Interval{Start: last.End + 1, End: window.End})
	}
	return free
}

// DivideInterval splits iv into consecutive size-minute pieces. A trailing
// remainder shorter than size is dropped. Non-positive sizes yield nothing.
func DivideInterval(iv Interval, size int) []Interval {
	if size <= 0 {
		return nil
	}
	steps := (iv.End - iv.Start + 1) / size
	if steps <= 0 {
		return nil
	}
	out := make([]Interval, 0, steps)
	for k := 0; k < steps; k++ {
		out = append(out, Interval{
			Start: iv.Start + k*size,
			End:   iv.Start + (k+1)*size - 1,
		})
	}
	return out
}

// Chunks divides every free interval, preserving order.
func Chunks(free []Interval, size int) []Interval {
	var out []Interval
	for _, iv := range free {
		out = append(out, DivideInterval(iv, size)...)
	}
	return out
}

// FormatChunks renders inclusive chunks back into exclusive-stop spans.
func FormatChunks(chunks []Interval) []Span {
	out := make([]Span, 0, len(chunks))
	for _, c := range chunks {
		out = append(out, Span{
			Start: MinutesToTime(c.Start),
			Stop:  MinutesToTime(c.End + 1),
		})
	}
	return out
}
