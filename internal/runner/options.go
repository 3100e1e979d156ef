package runner

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"github.com/hiteshkr25/Mutli-Threaded-Web-Server/internal/config"
)

// Requester executes a single request. Implementations return an error for
// failed requests.
type Requester interface {
	Do(ctx context.Context) error
}

// Options configure the Runner.
type Options struct {
	Concurrency   int                  // number of worker goroutines
	TotalRequests int                  // total requests to execute (0 means unlimited until duration/pattern end)
	Duration      time.Duration        // overall time limit (0 means no cap)
	RatePerSecond int                  // flat pacing when no patterns are given (0 means unlimited)
	ArrivalModel  config.ArrivalModel  // uniform or poisson
	Patterns      []config.LoadPattern // traffic shape; overrides RatePerSecond when set
	RandomSeed    int64                // seeds the Poisson sampler (0 means time-based)
	Requester     Requester            // request executor (required)

	// Test injection points.
	LimiterFactory func(rps int) *rate.Limiter
	PoissonSampler func() float64
}

func (o *Options) normalize() {
	if o.Concurrency <= 0 {
		o.Concurrency = 1
	}
	if o.TotalRequests < 0 {
		o.TotalRequests = 0
	}
	if o.RatePerSecond < 0 {
		o.RatePerSecond = 0
	}
	if o.ArrivalModel == "" {
		o.ArrivalModel = config.ArrivalModelUniform
	}
	if o.RandomSeed == 0 {
		o.RandomSeed = time.Now().UnixNano()
	}
	if o.LimiterFactory == nil {
		o.LimiterFactory = func(rps int) *rate.Limiter {
			if rps <= 0 {
				return rate.NewLimiter(rate.Inf, 0)
			}
			// Burst equal to rps to smooth pacing under concurrency.
			return rate.NewLimiter(rate.Limit(rps), rps)
		}
	}
}
