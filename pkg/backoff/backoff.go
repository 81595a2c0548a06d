package backoff

import "time"

// MaxAttempts is the total number of delivery attempts before a webhook
// delivery is marked failed: the initial attempt plus five retries.
const MaxAttempts = 6

// Next returns the time of the next retry after the given number of attempts,
// or nil when the attempts are exhausted. The schedule is exponential:
// 2s, 4s, 8s, 16s, 32s.
func Next(attempts int, now time.Time) *time.Time {
	if attempts > MaxAttempts-1 {
		return nil
	}
	next := now.Add(time.Duration(1<<attempts) * time.Second)
	return &next
}
