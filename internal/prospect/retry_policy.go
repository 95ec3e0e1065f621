package prospect

import (
	"context"
	"time"
)

// RetrySchedule is a fixed table of backoff delays applied to transient
// server errors (HTTP 500/502). Making the schedule a visible table keeps
// the retry bound explicit and testable.
type RetrySchedule []time.Duration

// DefaultRetrySchedule returns the 1s/2s/4s exponential table used against
// the keyword data API.
func DefaultRetrySchedule() RetrySchedule {
	return RetrySchedule{time.Second, 2 * time.Second, 4 * time.Second}
}

// MaxAttempts is the number of retries the schedule allows.
func (s RetrySchedule) MaxAttempts() int {
	return len(s)
}

// Delay returns the wait before retry number attempt (0-based). Attempts
// past the end of the table reuse the final delay.
func (s RetrySchedule) Delay(attempt int) time.Duration {
	if len(s) == 0 {
		return 0
	}
	if attempt < 0 {
		attempt = 0
	}
	if attempt >= len(s) {
		attempt = len(s) - 1
	}
	return s[attempt]
}

// Pause sleeps for delay or until the context finishes, whichever is
// first. All pipeline backoffs go through here so shutdown is never
// blocked on a timer.
func Pause(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
