package slots

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeBusySortsAndMakesEndInclusive(t *testing.T) {
	got, err := NormalizeBusy([]Span{
		{Start: "14:40", Stop: "15:50"},
		{Start: "10:30", Stop: "10:50"},
	})
	require.NoError(t, err)
	assert.Equal(t, []Interval{{630, 649}, {880, 949}}, got)
}

func TestNormalizeBusyPropagatesFormatError(t *testing.T) {
	_, err := NormalizeBusy([]Span{{Start: "10:30", Stop: "10:5x"}})
	require.ErrorIs(t, err, ErrFormat)
}

func TestWorkWindow(t *testing.T) {
	w, err := WorkWindow("09:00", "21:00")
	require.NoError(t, err)
	assert.Equal(t, Interval{540, 1259}, w)
	assert.Equal(t, 720, w.Len())
}

func TestFilterBusyKeepsPartialOverlapsUnclipped(t *testing.T) {
	window := Interval{540, 599}
	busy := []Interval{
		{400, 539}, // ends right before the window
		{500, 545}, // straddles the start
		{570, 579}, // inside
		{590, 700}, // straddles the end
		{600, 650}, // starts right after the window
	}
	assert.Equal(t, []Interval{{500, 545}, {570, 579}, {590, 700}}, FilterBusy(busy, window))
}

func TestFreeIntervals(t *testing.T) {
	window := Interval{540, 599}
	cases := []struct {
		name string
		busy []Interval
		want []Interval
	}{
		{"no busy", nil, []Interval{{540, 599}}},
		{"middle", []Interval{{570, 579}}, []Interval{{540, 569}, {580, 599}}},
		{"at window start", []Interval{{540, 549}}, []Interval{{550, 599}}},
		{"at window end", []Interval{{590, 599}}, []Interval{{540, 589}}},
		{"covers window", []Interval{{500, 700}}, nil},
		{"adjacent busy", []Interval{{550, 559}, {560, 569}}, []Interval{{540, 549}, {560, 559}, {570, 599}}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.want, FreeIntervals(c.busy, window))
		})
	}
}

func TestDivideInterval(t *testing.T) {
	assert.Equal(t, []Interval{{540, 569}, {570, 599}}, DivideInterval(Interval{540, 599}, 30))
	assert.Equal(t, []Interval{{540, 569}}, DivideInterval(Interval{540, 589}, 30), "remainder dropped")
	assert.Empty(t, DivideInterval(Interval{540, 568}, 30), "shorter than size")
	assert.Empty(t, DivideInterval(Interval{560, 559}, 30), "empty")
	assert.Empty(t, DivideInterval(Interval{600, 500}, 30), "reversed")
	assert.Empty(t, DivideInterval(Interval{540, 599}, 0), "zero size")
	assert.Len(t, DivideInterval(Interval{0, 1439}, 1), 1440)
}

func TestChunksPreservesOrder(t *testing.T) {
	got := Chunks([]Interval{{0, 19}, {30, 34}, {40, 59}}, 10)
	assert.Equal(t, []Interval{{0, 9}, {10, 19}, {40, 49}, {50, 59}}, got)
}

func TestFormatChunksUsesExclusiveStop(t *testing.T) {
	assert.Equal(t,
		[]Span{{Start: "09:00", Stop: "09:30"}, {Start: "20:30", Stop: "21:00"}},
		FormatChunks([]Interval{{540, 569}, {1230, 1259}}),
	)
	assert.NotNil(t, FormatChunks(nil))
}
