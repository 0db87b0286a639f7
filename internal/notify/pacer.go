package notify

import (
	"time"

	"golang.org/x/time/rate"
)

// RatePacer is a token bucket over alerts. Events are still recorded when an
// alert is paced out.
type RatePacer struct {
	limiter *rate.Limiter
}

// NewRatePacer allows perMinute alerts per minute with a burst of one. It
// returns nil for a non-positive rate.
func NewRatePacer(perMinute float64) *RatePacer {
	if perMinute <= 0 {
		return nil
	}
	return &RatePacer{limiter: rate.NewLimiter(rate.Limit(perMinute/60), 1)}
}

// Allow reports whether an alert may be sent at now.
func (p *RatePacer) Allow(now time.Time) bool {
	if p == nil {
		return true
	}
	return p.limiter.AllowN(now, 1)
}
