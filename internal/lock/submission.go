package lock

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/aguas/internal/config"
	"github.com/smallbiznis/aguas/pkg/apperror"
)

var ErrSubmissionRateExceeded = apperror.New(apperror.KindRateLimited, "submission_rate_exceeded", "too many readings submitted, retry later")

// SubmissionLimiter throttles reading submissions per caller.
// A nil or disabled limiter always allows.
type SubmissionLimiter struct {
	bucket *TokenBucket
	rate   float64
	burst  int
}

func NewSubmissionLimiter(client *redis.Client, cfg config.Config) *SubmissionLimiter {
	limits := cfg.RateLimit
	if client == nil || limits.SubmitRate <= 0 || limits.SubmitBurst <= 0 {
		return &SubmissionLimiter{}
	}
	return &SubmissionLimiter{
		bucket: NewTokenBucket(client, SubmissionKeyspace),
		rate:   limits.SubmitRate,
		burst:  limits.SubmitBurst,
	}
}

func (l *SubmissionLimiter) Enabled() bool {
	return l != nil && l.bucket != nil
}

// Allow consumes one token for the caller. When the bucket is empty it
// returns ErrSubmissionRateExceeded along with the suggested wait.
func (l *SubmissionLimiter) Allow(ctx context.Context, userID snowflake.ID) (time.Duration, error) {
	if !l.Enabled() {
		return 0, nil
	}
	res, err := l.bucket.Allow(ctx, userID, l.rate, l.burst)
	if err != nil {
		return 0, err
	}
	if !res.Allowed {
		return res.RetryAfter, ErrSubmissionRateExceeded
	}
	return 0, nil
}

func SubmissionKey(userID snowflake.ID) string {
	return SubmissionKeyspace.Key(userID)
}
