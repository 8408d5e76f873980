package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStringFallback(t *testing.T) {
	t.Setenv("SLOTS_TEST_STRING", "  ")
	assert.Equal(t, "dflt", String("SLOTS_TEST_STRING", "dflt"))

	t.Setenv("SLOTS_TEST_STRING", " value ")
	assert.Equal(t, "value", String("SLOTS_TEST_STRING", "dflt"))
}

func TestRequiredString(t *testing.T) {
	t.Setenv("SLOTS_TEST_REQUIRED", "")
	_, err := RequiredString("SLOTS_TEST_REQUIRED")
	require.Error(t, err)

	t.Setenv("SLOTS_TEST_REQUIRED", "postgres://localhost/slots")
	v, err := RequiredString("SLOTS_TEST_REQUIRED")
	require.NoError(t, err)
	assert.Equal(t, "postgres://localhost/slots", v)
}

func TestPort(t *testing.T) {
	t.Setenv("SLOTS_TEST_PORT", "")
	p, err := Port("SLOTS_TEST_PORT", "8080")
	require.NoError(t, err)
	assert.Equal(t, "8080", p)

	t.Setenv("SLOTS_TEST_PORT", "70000")
	_, err = Port("SLOTS_TEST_PORT", "8080")
	require.Error(t, err)
}

func TestInt(t *testing.T) {
	t.Setenv("SLOTS_TEST_INT", "")
	n, err := Int("SLOTS_TEST_INT", 7)
	require.NoError(t, err)
	assert.Equal(t, 7, n)

	t.Setenv("SLOTS_TEST_INT", "120")
	n, err = Int("SLOTS_TEST_INT", 7)
	require.NoError(t, err)
	assert.Equal(t, 120, n)

	for _, bad := range []string{"0", "-3", "many"} {
		t.Setenv("SLOTS_TEST_INT", bad)
		_, err := Int("SLOTS_TEST_INT", 7)
		assert.Error(t, err, bad)
	}
}

func TestBool(t *testing.T) {
	t.Setenv("SLOTS_TEST_BOOL", "")
	b, err := Bool("SLOTS_TEST_BOOL", true)
	require.NoError(t, err)
	assert.True(t, b)

	t.Setenv("SLOTS_TEST_BOOL", "false")
	b, err = Bool("SLOTS_TEST_BOOL", true)
	require.NoError(t, err)
	assert.False(t, b)

	t.Setenv("SLOTS_TEST_BOOL", "nope")
	_, err = Bool("SLOTS_TEST_BOOL", true)
	require.Error(t, err)
}

func TestDuration(t *testing.T) {
	cases := []struct {
		raw  string
		want time.Duration
	}{
		{"", time.Minute},
		{"90", 90 * time.Second},
		{"5m", 5 * time.Minute},
	}
	for _, tc := range cases {
		t.Setenv("SLOTS_TEST_DURATION", tc.raw)
		d, err := Duration("SLOTS_TEST_DURATION", time.Minute)
		require.NoError(t, err, tc.raw)
		assert.Equal(t, tc.want, d, tc.raw)
	}

	t.Setenv("SLOTS_TEST_DURATION", "-1s")
	_, err := Duration("SLOTS_TEST_DURATION", time.Minute)
	require.Error(t, err)
}
