package scraper

import (
	"math/rand/v2"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Politeness spaces out requests to the same retailer. Each retailer gets
// its own limiter; pipelines for different retailers never wait on each other.
type Politeness struct {
	interval  time.Duration
	maxJitter time.Duration

	mutex    sync.Mutex
	limiters map[string]*rate.Limiter

	now    func() time.Time
	jitter func(max time.Duration) time.Duration
}

// NewPoliteness creates a limiter set with the given minimum interval between
// requests to one retailer and an upper bound on the added random jitter.
func NewPoliteness(interval, maxJitter time.Duration) *Politeness {
	return &Politeness{
		interval:  interval,
		maxJitter: maxJitter,
		limiters:  make(map[string]*rate.Limiter),
		now:       time.Now,
		jitter: func(max time.Duration) time.Duration {
			if max <= 0 {
				return 0
			}
			return rand.N(max)
		},
	}
}

func (p *Politeness) limiter(retailer string) *rate.Limiter {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	lim, ok := p.limiters[retailer]
	if !ok {
		lim = rate.NewLimiter(rate.Every(p.interval), 1)
		p.limiters[retailer] = lim
	}
	return lim
}

// Reserve claims the next request slot for the retailer and returns how long
// the caller must wait before using it. The first request is never delayed.
func (p *Politeness) Reserve(retailer string) time.Duration {
	now := p.now()
	delay := p.limiter(retailer).ReserveN(now, 1).DelayFrom(now)
	if delay > 0 {
		delay += p.jitter(p.maxJitter)
	}
	return delay
}

// Interval returns the configured minimum spacing
func (p *Politeness) Interval() time.Duration {
	return p.interval
}
