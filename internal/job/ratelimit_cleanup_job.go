package job

import (
	"context"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/sahzadahmad246/perfectceiling/internal/ratelimit"
)

// RateLimitCleanupJob sweeps expired limiter entries so the in-memory map
// stays bounded between restarts.
type RateLimitCleanupJob struct {
	limiter *ratelimit.Limiter
}

func NewRateLimitCleanupJob(limiter *ratelimit.Limiter) *RateLimitCleanupJob {
	return &RateLimitCleanupJob{limiter: limiter}
}

func (j *RateLimitCleanupJob) Name() string {
	return "ratelimit_cleanup"
}

func (j *RateLimitCleanupJob) Run(ctx context.Context) error {
	removed := j.limiter.Cleanup()
	stats := j.limiter.Stats()
	logutil.GetLogger(ctx).Info("rate limit sweep done",
		zap.Int("removed", removed),
		zap.Int("remaining", stats.TotalEntries),
		zap.Int("blocked", stats.BlockedEntries),
	)
	return nil
}
