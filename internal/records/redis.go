package records

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/raaihank/asset-privacy/internal/privacy"
)

// RedisConfig contains Redis connection settings
type RedisConfig struct {
	RedisURL       string
	MaxConnections int
	MinIdleConns   int
	TTL            time.Duration
	KeyPrefix      string
}

// Stats reports lookup counters
type Stats struct {
	Hits      int64   `json:"hits"`
	Misses    int64   `json:"misses"`
	HitRate   float64 `json:"hit_rate"`
	TotalKeys int64   `json:"total_keys"`
}

// RedisStore keeps records in Redis with an expiry
type RedisStore struct {
	client *redis.Client
	config RedisConfig
	logger *zap.Logger
	hits   atomic.Int64
	misses atomic.Int64
}

// NewRedisStore connects to Redis
func NewRedisStore(ctx context.Context, config RedisConfig, logger *zap.Logger) (*RedisStore, error) {
	opts, err := redis.ParseURL(config.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	if config.MaxConnections > 0 {
		opts.PoolSize = config.MaxConnections
	}
	opts.MinIdleConns = config.MinIdleConns

	store := newRedisStore(redis.NewClient(opts), config, logger)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := store.client.Ping(pingCtx).Err(); err != nil {
		store.client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Info("Record store initialized",
		zap.String("redis_url", maskRedisURL(config.RedisURL)),
		zap.Int("max_connections", config.MaxConnections),
		zap.Duration("ttl", config.TTL))

	return store, nil
}

func newRedisStore(client *redis.Client, config RedisConfig, logger *zap.Logger) *RedisStore {
	if config.KeyPrefix == "" {
		config.KeyPrefix = "asset-privacy"
	}
	return &RedisStore{client: client, config: config, logger: logger}
}

func (s *RedisStore) key(id string) string {
	return fmt.Sprintf("%s:record:%s", s.config.KeyPrefix, id)
}

func (s *RedisStore) Save(ctx context.Context, record *privacy.ProcessingRecord) error {
	if err := ValidateID(record.ID); err != nil {
		return err
	}
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to encode record: %w", err)
	}
	if err := s.client.Set(ctx, s.key(record.ID), data, s.config.TTL).Err(); err != nil {
		s.logger.Error("Failed to store record", zap.String("record_id", record.ID), zap.Error(err))
		return fmt.Errorf("failed to store record: %w", err)
	}
	s.logger.Debug("Processing record stored", zap.String("record_id", record.ID))
	return nil
}

func (s *RedisStore) Get(ctx context.Context, id string) (*privacy.ProcessingRecord, error) {
	if err := ValidateID(id); err != nil {
		return nil, err
	}
	data, err := s.client.Get(ctx, s.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		s.misses.Add(1)
		return nil, fmt.Errorf("%w: %s", privacy.ErrRecordNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load record: %w", err)
	}
	s.hits.Add(1)

	var record privacy.ProcessingRecord
	if err := json.Unmarshal(data, &record); err != nil {
		s.logger.Error("Corrupted record in Redis", zap.String("record_id", id), zap.Error(err))
		s.client.Del(ctx, s.key(id))
		return nil, fmt.Errorf("%w: %s: %v", privacy.ErrInvalidRecord, id, err)
	}
	return &record, nil
}

// Stats returns lookup counters and the number of stored records
func (s *RedisStore) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{Hits: s.hits.Load(), Misses: s.misses.Load()}
	if total := stats.Hits + stats.Misses; total > 0 {
		stats.HitRate = float64(stats.Hits) / float64(total) * 100
	}

	iter := s.client.Scan(ctx, 0, s.config.KeyPrefix+":record:*", 0).Iterator()
	for iter.Next(ctx) {
		stats.TotalKeys++
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan record keys: %w", err)
	}
	return stats, nil
}

// Close closes the Redis connection
func (s *RedisStore) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

// maskRedisURL hides the password in a Redis URL for logging
func maskRedisURL(url string) string {
	at := strings.LastIndex(url, "@")
	if at < 0 {
		return url
	}
	userPart := url[:at]
	colon := strings.LastIndex(userPart, ":")
	scheme := strings.Index(userPart, "://")
	if colon < 0 || colon <= scheme+2 {
		return url
	}
	return userPart[:colon+1] + "***" + url[at:]
}
