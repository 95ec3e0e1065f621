package prospect

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDefaultRetrySchedule(t *testing.T) {
	t.Parallel()

	s := DefaultRetrySchedule()
	require.Equal(t, 3, s.MaxAttempts())
	require.Equal(t, time.Second, s.Delay(0))
	require.Equal(t, 2*time.Second, s.Delay(1))
	require.Equal(t, 4*time.Second, s.Delay(2))
	// Out-of-range attempts clamp to the table bounds.
	require.Equal(t, 4*time.Second, s.Delay(9))
	require.Equal(t, time.Second, s.Delay(-1))
}

func TestPauseRespectsContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	start := time.Now()
	err := Pause(ctx, time.Minute)
	require.Error(t, err)
	require.Less(t, time.Since(start), time.Second)
}

func TestPauseZeroDelayReturnsImmediately(t *testing.T) {
	t.Parallel()

	require.NoError(t, Pause(context.Background(), 0))
}
