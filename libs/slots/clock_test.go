package slots

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimeToMinutes(t *testing.T) {
	cases := []struct {
		in   string
		want int
	}{
		{"00:00", 0},
		{"09:00", 540},
		{"9:05", 545},
		{"12:30", 750},
		{"23:59", 1439},
	}
	for _, c := range cases {
		got, err := TimeToMinutes(c.in)
		require.NoError(t, err, c.in)
		assert.Equal(t, c.want, got, c.in)
	}
}

func TestTimeToMinutesRejectsMalformed(t *testing.T) {
	for _, in := range []string{"", "0900", "09:", ":30", "24:00", "12:60", "aa:bb", "-1:00", "+9:00", "09:00:00", "123:00", " 9:00"} {
		_, err := TimeToMinutes(in)
		require.Error(t, err, in)
		assert.True(t, errors.Is(err, ErrFormat), in)

		var fe *FormatError
		require.True(t, errors.As(err, &fe), in)
		assert.Equal(t, in, fe.Value)
	}
}

func TestMinutesToTime(t *testing.T) {
	assert.Equal(t, "00:00", MinutesToTime(0))
	assert.Equal(t, "09:05", MinutesToTime(545))
	assert.Equal(t, "23:59", MinutesToTime(1439))
	assert.Equal(t, "24:00", MinutesToTime(MinutesPerDay))
}

func TestMinutesRoundTrip(t *testing.T) {
	for m := 0; m < MinutesPerDay; m++ {
		got, err := TimeToMinutes(MinutesToTime(m))
		require.NoError(t, err)
		require.Equal(t, m, got)
	}
}
