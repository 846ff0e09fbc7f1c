// Package cache keeps derived read models in Redis.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/safar/agrimarket/internal/config"
	"github.com/safar/agrimarket/internal/models"
)

// StatsCache stores vendor dashboards per producer and period.
//
// Every invalidation bumps the producer's version. Callers read the version
// before computing stats and pass it to PutVendorStats, which drops the write
// when an invalidation happened in between.
type StatsCache interface {
	VendorStatsVersion(ctx context.Context, producerID int64) (int64, error)
	GetVendorStats(ctx context.Context, producerID int64, period string) (*models.VendorStats, bool, error)
	PutVendorStats(ctx context.Context, producerID, version int64, period string, stats *models.VendorStats) error
	InvalidateVendorStats(ctx context.Context, producerIDs ...int64) error
}

type RedisCache struct {
	client   *redis.Client
	statsTTL time.Duration
}

func NewRedisCache(cfg config.RedisConfig) *RedisCache {
	return &RedisCache{
		client: redis.NewClient(&redis.Options{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
			PoolSize: cfg.PoolSize,
		}),
		statsTTL: cfg.StatsTTL,
	}
}

func (r *RedisCache) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisCache) Close() error {
	return r.client.Close()
}

// Every period of a producer lives in one hash so a single DEL drops them all.
func vendorStatsKey(producerID int64) string {
	return fmt.Sprintf("vendor-stats:%d", producerID)
}

func vendorStatsVersionKey(producerID int64) string {
	return fmt.Sprintf("vendor-stats-version:%d", producerID)
}

func getVersion(ctx context.Context, c redis.Cmdable, producerID int64) (int64, error) {
	v, err := c.Get(ctx, vendorStatsVersionKey(producerID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return v, err
}

// StatsPeriodField names the hash field for one requested period.
func StatsPeriodField(start, end string) string {
	return start + "|" + end
}

func (r *RedisCache) GetVendorStats(ctx context.Context, producerID int64, period string) (*models.VendorStats, bool, error) {
	data, err := r.client.HGet(ctx, vendorStatsKey(producerID), period).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get vendor stats: %w", err)
	}

	var stats models.VendorStats
	if err := json.Unmarshal(data, &stats); err != nil {
		return nil, false, fmt.Errorf("decode vendor stats: %w", err)
	}
	return &stats, true, nil
}

func (r *RedisCache) VendorStatsVersion(ctx context.Context, producerID int64) (int64, error) {
	v, err := getVersion(ctx, r.client, producerID)
	if err != nil {
		return 0, fmt.Errorf("get vendor stats version: %w", err)
	}
	return v, nil
}

// PutVendorStats stores stats unless the producer's version moved past
// version. A skipped write is not an error.
func (r *RedisCache) PutVendorStats(ctx context.Context, producerID, version int64, period string, stats *models.VendorStats) error {
	data, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("encode vendor stats: %w", err)
	}

	key := vendorStatsKey(producerID)
	err = r.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := getVersion(ctx, tx, producerID)
		if err != nil {
			return err
		}
		if current != version {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, period, data)
			pipe.Expire(ctx, key, r.statsTTL)
			return nil
		})
		return err
	}, vendorStatsVersionKey(producerID))
	if errors.Is(err, redis.TxFailedErr) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("put vendor stats: %w", err)
	}
	return nil
}

func (r *RedisCache) InvalidateVendorStats(ctx context.Context, producerIDs ...int64) error {
	if len(producerIDs) == 0 {
		return nil
	}
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, id := range producerIDs {
			pipe.Incr(ctx, vendorStatsVersionKey(id))
			pipe.Del(ctx, vendorStatsKey(id))
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("invalidate vendor stats: %w", err)
	}
	return nil
}

// Nop is used when Redis is unavailable; every lookup misses.
type Nop struct{}

func (Nop) GetVendorStats(context.Context, int64, string) (*models.VendorStats, bool, error) {
	return nil, false, nil
}

func (Nop) VendorStatsVersion(context.Context, int64) (int64, error) { return 0, nil }

func (Nop) PutVendorStats(context.Context, int64, int64, string, *models.VendorStats) error {
	return nil
}

func (Nop) InvalidateVendorStats(context.Context, ...int64) error { return nil }
