package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const lockKeyPrefix = "registration:inflight:"

// releaseScript deletes the lock only when it still holds our token, so an
// expired lock re-acquired by another request is left alone.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RegistrationLockRepository keeps in-flight registration markers in Redis so that
// several gateway instances share double-submit protection.
type RegistrationLockRepository struct {
	client redis.UniversalClient
	ttl    time.Duration
	logger *zap.Logger
}

// NewRegistrationLockRepository constructs the repository. ttl bounds how long a
// crashed request can keep an event locked.
func NewRegistrationLockRepository(client redis.UniversalClient, ttl time.Duration, logger *zap.Logger) *RegistrationLockRepository {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RegistrationLockRepository{client: client, ttl: ttl, logger: logger}
}

// TryAcquire claims key with SET NX. ok is false when another request holds it.
func (r *RegistrationLockRepository) TryAcquire(ctx context.Context, key string) (func(), bool, error) {
	if r.client == nil {
		return nil, false, fmt.Errorf("registration lock: redis client not configured")
	}
	redisKey := lockKeyPrefix + key
	token := uuid.NewString()

	ok, err := r.client.SetNX(ctx, redisKey, token, r.ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("redis setnx %s: %w", redisKey, err)
	}
	if !ok {
		return nil, false, nil
	}

	release := func() {
		// The caller's context may already be cancelled once the registration is done.
		releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := releaseScript.Run(releaseCtx, r.client, []string{redisKey}, token).Err(); err != nil && err != redis.Nil {
			r.logger.Warn("registration lock release failed", zap.String("key", redisKey), zap.Error(err))
		}
	}
	return release, true, nil
}

// Close releases the underlying Redis connection if present.
func (r *RegistrationLockRepository) Close() error {
	if r.client == nil {
		return nil
	}
	return r.client.Close()
}
