package store

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const redisScanCount = 1000

// RedisStore is a KVStore on a redis server. It allows several friendlybots
// instances to share their verification results.
type RedisStore struct {
	rdb *redis.Client
	ctx context.Context
}

// NewRedisStore connects to the redis server at addr and checks the connection
func NewRedisStore(ctx context.Context, addr, password string, db int) (*RedisStore, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("can't connect to redis at %s: %w", addr, err)
	}

	return &RedisStore{
		rdb: rdb,
		ctx: ctx,
	}, nil
}

// Get returns the value stored for key in namespace or redis.Nil
func (rs *RedisStore) Get(namespace, key []byte) ([]byte, error) {
	return rs.rdb.Get(rs.ctx, rs.namespaceKey(namespace, key)).Bytes()
}

// Set stores a value that never expires
func (rs *RedisStore) Set(namespace, key, value []byte) error {
	return rs.rdb.Set(rs.ctx, rs.namespaceKey(namespace, key), value, 0).Err()
}

// SetEx stores a value that expires after ttl
func (rs *RedisStore) SetEx(namespace, key, value []byte, ttl time.Duration) error {
	return rs.rdb.Set(rs.ctx, rs.namespaceKey(namespace, key), value, ttl).Err()
}

// Count returns the number of entries that match namespace and prefix
func (rs *RedisStore) Count(namespace, prefix []byte) (int, error) {
	c := 0
	iter := rs.rdb.Scan(rs.ctx, 0, rs.namespaceKey(namespace, prefix)+"*", redisScanCount).Iterator()
	for iter.Next(rs.ctx) {
		c++
	}

	return c, iter.Err()
}

// Clear removes all entries of a namespace
func (rs *RedisStore) Clear(namespace []byte) error {
	keys := make([]string, 0, redisScanCount)
	iter := rs.rdb.Scan(rs.ctx, 0, rs.namespaceKey(namespace, []byte{})+"*", redisScanCount).Iterator()
	for iter.Next(rs.ctx) {
		keys = append(keys, iter.Val())
		if len(keys) >= redisScanCount {
			if err := rs.rdb.Del(rs.ctx, keys...).Err(); err != nil {
				return err
			}
			keys = keys[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return err
	}

	if len(keys) > 0 {
		return rs.rdb.Del(rs.ctx, keys...).Err()
	}

	return nil
}

// ErrNotFound is the error go-redis returns for missing keys
func (rs *RedisStore) ErrNotFound() error {
	return redis.Nil
}

// Close closes the connection pool
func (rs *RedisStore) Close() error {
	return rs.rdb.Close()
}

func (rs *RedisStore) namespaceKey(namespace, key []byte) string {
	return fmt.Sprintf("%s:%s", namespace, key)
}
