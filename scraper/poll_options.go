package scraper

import (
	"math/rand/v2"
	"time"
)

// DelayRange is a uniformly random wait between Min and Max
type DelayRange struct {
	Min time.Duration
	Max time.Duration
}

// Pick returns a random duration in the range
func (r DelayRange) Pick() time.Duration {
	if r.Max <= r.Min {
		return r.Min
	}
	return r.Min + rand.N(r.Max-r.Min)
}

// PollOptions configures how long an acquisition waits for embedded data
type PollOptions struct {
	MaxAttempts int        // Polling budget when a profile does not set one
	Blocked     DelayRange // Wait between attempts while a challenge is showing
	Idle        DelayRange // Wait between attempts while the page is still loading
	Growth      float64    // Fractional increase of the idle wait per attempt
	MaxDelay    time.Duration
	ActionEvery int // Attempts between "action required" warnings while blocked
}

// DefaultPollOptions returns default polling options
func DefaultPollOptions() PollOptions {
	return PollOptions{
		MaxAttempts: 120,
		Blocked:     DelayRange{Min: 1500 * time.Millisecond, Max: 3 * time.Second},
		Idle:        DelayRange{Min: 500 * time.Millisecond, Max: 1500 * time.Millisecond},
		Growth:      0.05,
		MaxDelay:    5 * time.Second,
		ActionEvery: 10,
	}
}

// idleDelay grows the idle wait with the attempt number, capped at MaxDelay
func (o PollOptions) idleDelay(base time.Duration, attempt int) time.Duration {
	d := time.Duration(float64(base) * (1 + o.Growth*float64(attempt)))
	if o.MaxDelay > 0 && d > o.MaxDelay {
		return o.MaxDelay
	}
	return d
}
