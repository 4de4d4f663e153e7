package system

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestClockNowUTC(t *testing.T) {
	t.Parallel()

	clk := NewUTC()
	before := time.Now().Add(-time.Second)
	got := clk.Now()
	after := time.Now().Add(time.Second)

	require.Equal(t, time.UTC, got.Location())
	require.True(t, got.After(before) && got.Before(after))
}

func TestClockLocation(t *testing.T) {
	t.Parallel()

	loc := time.FixedZone("CET", 3600)
	clk := New(loc)
	require.Equal(t, loc, clk.Now().Location())
	require.Equal(t, loc, clk.Location())
	require.Equal(t, time.Local, New(nil).Location())

	var zero *Clock
	require.False(t, zero.Now().IsZero())
}

func TestClockNowMonotonic(t *testing.T) {
	t.Parallel()

	clk := NewUTC()
	first := clk.Now()
	second := clk.Now()
	require.False(t, second.Before(first))
}
