package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/koios/octodash/internal/config"
	"github.com/koios/octodash/pkg/models"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// SettingsStore keeps the connection settings as a JSON value under one Redis key
type SettingsStore struct {
	client   *redis.Client
	key      string
	defaults models.ConnectionSettings
	logger   *zap.Logger

	mu     sync.RWMutex
	cached *models.ConnectionSettings
}

// NewSettingsStore connects to Redis and verifies the connection
func NewSettingsStore(cfg config.RedisConfig, defaults models.ConnectionSettings, logger *zap.Logger) (*SettingsStore, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     4,
		PoolTimeout:  30 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// Test the connection
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Info("Connected to Redis",
		zap.String("addr", cfg.Addr),
		zap.Int("db", cfg.DB),
		zap.String("key", cfg.SettingsKey))

	return NewSettingsStoreFromClient(rdb, cfg.SettingsKey, defaults, logger), nil
}

// NewSettingsStoreFromClient creates a store from an existing client
func NewSettingsStoreFromClient(client *redis.Client, key string, defaults models.ConnectionSettings, logger *zap.Logger) *SettingsStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SettingsStore{
		client:   client,
		key:      key,
		defaults: defaults,
		logger:   logger,
	}
}

// Load returns the cached settings, reading the key on first use.
// A missing key or an undecodable value yields the defaults.
func (s *SettingsStore) Load(ctx context.Context) (models.ConnectionSettings, error) {
	s.mu.RLock()
	if s.cached != nil {
		out := *s.cached
		s.mu.RUnlock()
		return out, nil
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cached != nil {
		return *s.cached, nil
	}

	settings, err := s.read(ctx)
	if err != nil {
		s.logger.Debug("Using default connection settings",
			zap.String("key", s.key),
			zap.Error(err))
		settings = s.defaults
	}
	s.cached = &settings
	return settings, nil
}

func (s *SettingsStore) read(ctx context.Context) (models.ConnectionSettings, error) {
	var settings models.ConnectionSettings

	raw, err := s.client.Get(ctx, s.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return settings, fmt.Errorf("key %s not set", s.key)
		}
		return settings, fmt.Errorf("failed to get key %s from Redis: %w", s.key, err)
	}

	if err := json.Unmarshal(raw, &settings); err != nil {
		return settings, fmt.Errorf("failed to decode settings from key %s: %w", s.key, err)
	}
	return settings, nil
}

// Save overwrites the key and the cached copy
func (s *SettingsStore) Save(ctx context.Context, settings models.ConnectionSettings) error {
	body, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.client.Set(ctx, s.key, body, 0).Err(); err != nil {
		return fmt.Errorf("failed to set key %s in Redis: %w", s.key, err)
	}

	saved := settings
	s.cached = &saved

	s.logger.Info("Saved connection settings",
		zap.String("key", s.key),
		zap.String("server_url", settings.ServerURL))
	return nil
}

// IsHealthy checks if the Redis connection is healthy
func (s *SettingsStore) IsHealthy(ctx context.Context) bool {
	return s.client.Ping(ctx).Err() == nil
}

// Close closes the Redis connection
func (s *SettingsStore) Close() error {
	return s.client.Close()
}
