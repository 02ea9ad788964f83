package lock

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
)

// Keyspace is the prefix of one family of redis keys. Every key the service
// writes lives under rootKeyspace.
type Keyspace string

const (
	rootKeyspace Keyspace = "aguas"

	ApprovalKeyspace   = rootKeyspace + ":approval"
	SubmissionKeyspace = rootKeyspace + ":submit"
)

// Key addresses the entry for one entity id.
func (k Keyspace) Key(id snowflake.ID) string {
	return string(k) + ":" + id.String()
}

const lockReleaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`

var errLockNotConfigured = errors.New("lock client not configured")

// Lease is a held lock. Release only deletes the key while it still carries
// the lease token, so an expired lease never frees a successor's lock.
type Lease struct {
	locker *Locker
	key    string
	token  string
}

func (l *Lease) Key() string {
	if l == nil {
		return ""
	}
	return l.key
}

func (l *Lease) Release(ctx context.Context) error {
	if l == nil || l.locker == nil {
		return nil
	}
	return l.locker.script.Run(ctx, l.locker.client, []string{l.key}, l.token).Err()
}

// Locker hands out per-entity leases inside one keyspace.
type Locker struct {
	client *redis.Client
	space  Keyspace
	script *redis.Script
}

func NewLocker(client *redis.Client, space Keyspace) *Locker {
	if client == nil {
		return nil
	}
	return &Locker{
		client: client,
		space:  space,
		script: redis.NewScript(lockReleaseScript),
	}
}

// TryLock returns a nil lease when another holder owns the entity.
func (l *Locker) TryLock(ctx context.Context, id snowflake.ID, ttl time.Duration) (*Lease, error) {
	if l == nil || l.client == nil {
		return nil, errLockNotConfigured
	}
	if l.space == "" || id == 0 {
		return nil, errors.New("lock key is empty")
	}
	if ttl <= 0 {
		return nil, errors.New("lock ttl must be positive")
	}

	key := l.space.Key(id)
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil || !ok {
		return nil, err
	}
	return &Lease{locker: l, key: key, token: token}, nil
}
