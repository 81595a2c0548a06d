package backoff

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNextIsStrictlyIncreasing(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	var prev time.Time
	for attempts := 1; attempts <= 5; attempts++ {
		next := Next(attempts, now)
		require.NotNil(t, next, "attempts=%d", attempts)
		require.True(t, next.After(prev), "attempts=%d", attempts)
		prev = *next
	}
}

func TestNextSchedule(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	delays := []time.Duration{2, 4, 8, 16, 32}
	for i, d := range delays {
		next := Next(i+1, now)
		require.NotNil(t, next)
		require.Equal(t, now.Add(d*time.Second), *next)
	}
}

func TestNextExhausted(t *testing.T) {
	now := time.Now()
	require.Nil(t, Next(6, now))
	require.Nil(t, Next(7, now))
}
