package lock

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	redis "github.com/redis/go-redis/v9"
)

const defaultApprovalTTL = 30 * time.Second

// ApprovalLock serializes approvals of one consumption across replicas.
// A nil or disabled lock always grants.
type ApprovalLock struct {
	locker *Locker
	ttl    time.Duration
}

// NewApprovalLock returns a disabled lock when client is nil.
func NewApprovalLock(client *redis.Client) *ApprovalLock {
	if client == nil {
		return &ApprovalLock{}
	}
	return NewApprovalLockWithClient(client, defaultApprovalTTL)
}

func NewApprovalLockWithClient(client *redis.Client, ttl time.Duration) *ApprovalLock {
	if ttl <= 0 {
		ttl = defaultApprovalTTL
	}
	return &ApprovalLock{locker: NewLocker(client, ApprovalKeyspace), ttl: ttl}
}

func (l *ApprovalLock) Enabled() bool {
	return l != nil && l.locker != nil
}

// Acquire returns ok=false when another holder owns the lock. The release
// func is always safe to call.
func (l *ApprovalLock) Acquire(ctx context.Context, consumptionID snowflake.ID) (func(context.Context), bool, error) {
	if !l.Enabled() {
		return func(context.Context) {}, true, nil
	}

	lease, err := l.locker.TryLock(ctx, consumptionID, l.ttl)
	if err != nil || lease == nil {
		return func(context.Context) {}, false, err
	}
	return func(releaseCtx context.Context) {
		_ = lease.Release(releaseCtx)
	}, true, nil
}

func ApprovalKey(consumptionID snowflake.ID) string {
	return ApprovalKeyspace.Key(consumptionID)
}
