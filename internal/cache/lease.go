package cache

import (
	"context"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"iotkit-lending-backend/internal/logger"
)

// Acquire takes the key when it is free or already owned by ARGV[1].
var acquireScript = goredis.NewScript(`
local cur = redis.call("GET", KEYS[1])
if (not cur) or cur == ARGV[1] then
	redis.call("SET", KEYS[1], ARGV[1], "PX", ARGV[2])
	return 1
end
return 0
`)

// Release deletes the key only while ARGV[1] still owns it.
var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisInspectionLock shares inspection leases between backend replicas.
type RedisInspectionLock struct {
	client goredis.Scripter
	prefix string
}

func NewRedisInspectionLock(client goredis.Scripter, prefix string) *RedisInspectionLock {
	return &RedisInspectionLock{client: client, prefix: prefix}
}

func (l *RedisInspectionLock) Key(requestID int32) string {
	return fmt.Sprintf("%sinspection:%d", l.prefix, requestID)
}

func (l *RedisInspectionLock) Acquire(ctx context.Context, requestID, adminID int32, ttl time.Duration) (bool, error) {
	key := l.Key(requestID)
	logger.ExternalServiceCall("redis", "AcquireLease", "key", key, "adminID", adminID)
	n, err := acquireScript.Run(ctx, l.client, []string{key}, strconv.Itoa(int(adminID)), ttl.Milliseconds()).Int64()
	logger.ExternalServiceResult("redis", "AcquireLease", err, "key", key, "acquired", n == 1)
	if err != nil {
		return false, fmt.Errorf("acquire lease %s: %w", key, err)
	}
	return n == 1, nil
}

func (l *RedisInspectionLock) Release(ctx context.Context, requestID, adminID int32) error {
	key := l.Key(requestID)
	logger.ExternalServiceCall("redis", "ReleaseLease", "key", key, "adminID", adminID)
	err := releaseScript.Run(ctx, l.client, []string{key}, strconv.Itoa(int(adminID))).Err()
	logger.ExternalServiceResult("redis", "ReleaseLease", err, "key", key)
	if err != nil {
		return fmt.Errorf("release lease %s: %w", key, err)
	}
	return nil
}
