package lock

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/aguas/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDisabledSubmissionLimiterAllows(t *testing.T) {
	l := NewSubmissionLimiter(nil, config.Config{RateLimit: config.RateLimitConfig{SubmitRate: 1, SubmitBurst: 1}})
	assert.False(t, l.Enabled())

	wait, err := l.Allow(context.Background(), snowflake.ID(1))
	require.NoError(t, err)
	assert.Zero(t, wait)

	var nilLimiter *SubmissionLimiter
	_, err = nilLimiter.Allow(context.Background(), snowflake.ID(1))
	assert.NoError(t, err)
}

func TestSubmissionLimiterNeedsPositiveLimits(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"})
	defer client.Close()

	l := NewSubmissionLimiter(client, config.Config{})
	assert.False(t, l.Enabled())

	l = NewSubmissionLimiter(client, config.Config{RateLimit: config.RateLimitConfig{SubmitRate: 0.5, SubmitBurst: 5}})
	assert.True(t, l.Enabled())
}

func TestTokenBucketRejectsBadArguments(t *testing.T) {
	var nilBucket *TokenBucket
	_, err := nilBucket.Allow(context.Background(), snowflake.ID(1), 1, 1)
	assert.Error(t, err)

	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 50 * time.Millisecond, MaxRetries: -1})
	defer client.Close()
	bucket := NewTokenBucket(client, SubmissionKeyspace)

	_, err = bucket.Allow(context.Background(), 0, 1, 1)
	assert.EqualError(t, err, "token bucket key is empty")
	_, err = NewTokenBucket(client, "").Allow(context.Background(), snowflake.ID(1), 1, 1)
	assert.EqualError(t, err, "token bucket key is empty")
	_, err = bucket.Allow(context.Background(), snowflake.ID(1), 0, 1)
	assert.Error(t, err)

	// Unreachable redis surfaces as an error rather than a silent allow.
	_, err = bucket.Allow(context.Background(), snowflake.ID(1), 1, 1)
	assert.Error(t, err)
}

func TestBucketTTL(t *testing.T) {
	assert.Equal(t, 20*time.Second, bucketTTL(1, 10))
	assert.Equal(t, time.Second, bucketTTL(100, 1))
}

func TestSubmissionKey(t *testing.T) {
	assert.Equal(t, "aguas:submit:99", SubmissionKey(snowflake.ID(99)))
}
