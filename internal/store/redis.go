package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
)

type RedisOptions struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

// Redis stores a collection under two keys, <prefix>:<collection>:body and
// <prefix>:<collection>:version, swapped together inside WATCH/MULTI.
type Redis struct {
	client *redis.Client
	prefix string
}

func NewRedis(ctx context.Context, opts RedisOptions) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("error connecting to redis: %w", err)
	}

	return NewRedisWithClient(client, opts.KeyPrefix), nil
}

func NewRedisWithClient(client *redis.Client, prefix string) *Redis {
	if prefix == "" {
		prefix = "folio"
	}
	return &Redis{client: client, prefix: prefix}
}

func (r *Redis) keys(collection string) (string, string) {
	base := r.prefix + ":" + collection
	return base + ":body", base + ":version"
}

func (r *Redis) Load(ctx context.Context, collection string) (Snapshot, error) {
	bodyKey, versionKey := r.keys(collection)
	values, err := r.client.MGet(ctx, bodyKey, versionKey).Result()
	if err != nil {
		return Snapshot{}, fmt.Errorf("load collection %s: %w", collection, err)
	}
	return snapshotFromValues(values[0], values[1]), nil
}

func snapshotFromValues(body, version interface{}) Snapshot {
	var snap Snapshot
	if s, ok := body.(string); ok {
		snap.Data = []byte(s)
	}
	if s, ok := version.(string); ok {
		snap.Version = s
	}
	return snap
}

func (r *Redis) CompareAndSwap(ctx context.Context, collection, version string, data []byte) (string, error) {
	bodyKey, versionKey := r.keys(collection)
	var next string

	err := r.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, versionKey).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if current != version {
			return ErrVersionConflict
		}

		n := int64(1)
		if current != "" {
			parsed, err := strconv.ParseInt(current, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid version token %q: %w", current, err)
			}
			n = parsed + 1
		}
		next = strconv.FormatInt(n, 10)

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, bodyKey, data, 0)
			pipe.Set(ctx, versionKey, next, 0)
			return nil
		})
		return err
	}, versionKey)

	switch {
	case err == nil:
		return next, nil
	case errors.Is(err, ErrVersionConflict), errors.Is(err, redis.TxFailedErr):
		return "", ErrVersionConflict
	default:
		return "", fmt.Errorf("swap collection %s: %w", collection, err)
	}
}

func (r *Redis) Close() error {
	return r.client.Close()
}
