package resilience

import "time"

// RetryPolicy bounds how often and how patiently a failed call is repeated.
type RetryPolicy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Multiplier     float64
	// AttemptTimeout bounds each individual attempt. Zero disables it.
	AttemptTimeout time.Duration
}

// BreakerPolicy configures the per-operation circuit breaker.
type BreakerPolicy struct {
	Enabled          bool
	MinRequests      uint32
	FailureRatio     float64
	OpenTimeout      time.Duration
	HalfOpenMaxCalls uint32
}

// Config controls calls to external providers: the embedding model, the
// text generator and the message broker.
type Config struct {
	Retry   RetryPolicy
	Breaker BreakerPolicy
}

func DefaultConfig() Config {
	return Config{
		Retry: RetryPolicy{
			MaxAttempts:    3,
			InitialBackoff: 200 * time.Millisecond,
			MaxBackoff:     2 * time.Second,
			Multiplier:     2.0,
		},
		Breaker: BreakerPolicy{
			Enabled:          true,
			MinRequests:      5,
			FailureRatio:     0.6,
			OpenTimeout:      30 * time.Second,
			HalfOpenMaxCalls: 1,
		},
	}
}

func (p RetryPolicy) normalize(def RetryPolicy) RetryPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = def.MaxAttempts
	}
	if p.InitialBackoff <= 0 {
		p.InitialBackoff = def.InitialBackoff
	}
	if p.MaxBackoff <= 0 {
		p.MaxBackoff = def.MaxBackoff
	}
	p.MaxBackoff = max(p.MaxBackoff, p.InitialBackoff)
	if p.Multiplier < 1 {
		p.Multiplier = def.Multiplier
	}
	p.AttemptTimeout = max(p.AttemptTimeout, 0)
	return p
}

func (p BreakerPolicy) normalize(def BreakerPolicy) BreakerPolicy {
	if p.MinRequests == 0 {
		p.MinRequests = def.MinRequests
	}
	if p.FailureRatio <= 0 || p.FailureRatio > 1 {
		p.FailureRatio = def.FailureRatio
	}
	if p.OpenTimeout <= 0 {
		p.OpenTimeout = def.OpenTimeout
	}
	if p.HalfOpenMaxCalls == 0 {
		p.HalfOpenMaxCalls = def.HalfOpenMaxCalls
	}
	return p
}

func (c Config) normalize() Config {
	def := DefaultConfig()
	return Config{
		Retry:   c.Retry.normalize(def.Retry),
		Breaker: c.Breaker.normalize(def.Breaker),
	}
}
