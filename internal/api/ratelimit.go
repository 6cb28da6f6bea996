package api

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// modelLimiter is the token bucket of one model endpoint and the rate it was built with
type modelLimiter struct {
	limiter *rate.Limiter
	rpm     int
}

// RateLimiterPool keeps one limiter per model endpoint. The outline and section
// models may share an endpoint, in which case they share its budget.
type RateLimiterPool struct {
	mu       sync.Mutex
	limiters map[string]modelLimiter
	logger   *slog.Logger
}

// NewRateLimiterPool creates an empty pool
func NewRateLimiterPool(logger *slog.Logger) *RateLimiterPool {
	if logger == nil {
		logger = slog.Default()
	}
	return &RateLimiterPool{
		limiters: make(map[string]modelLimiter),
		logger:   logger,
	}
}

// GetOrCreate returns the limiter for modelID, creating it at requestsPerMinute.
// The first rate wins; a later different rate is logged and ignored.
func (p *RateLimiterPool) GetOrCreate(modelID string, requestsPerMinute int) *rate.Limiter {
	p.mu.Lock()
	defer p.mu.Unlock()

	if ml, ok := p.limiters[modelID]; ok {
		if ml.rpm != requestsPerMinute {
			p.logger.Warn("Rate limiter already exists with different rate, using existing rate",
				"model_id", modelID,
				"existing_rpm", ml.rpm,
				"requested_rpm", requestsPerMinute)
		}
		return ml.limiter
	}

	rps := float64(requestsPerMinute) / 60.0
	// Requests are sequential, so a small burst is enough
	burst := max(1, requestsPerMinute/10)
	ml := modelLimiter{limiter: rate.NewLimiter(rate.Limit(rps), burst), rpm: requestsPerMinute}
	p.limiters[modelID] = ml

	p.logger.Debug("Created rate limiter", "model_id", modelID, "rpm", requestsPerMinute, "burst", burst)
	return ml.limiter
}

// Wait blocks until modelID may send a request and returns how long it waited
func (p *RateLimiterPool) Wait(ctx context.Context, modelID string, requestsPerMinute int) (time.Duration, error) {
	start := time.Now()
	err := p.GetOrCreate(modelID, requestsPerMinute).Wait(ctx)
	return time.Since(start), err
}
