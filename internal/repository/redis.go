package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"fixora/internal/config"
	"fixora/internal/models"

	"github.com/redis/go-redis/v9"
)

const providerKeyPrefix = "fixora:provider:"

// RedisProviderCache keeps provider profiles in Redis with a TTL.
type RedisProviderCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisClient создает новый клиент Redis на основе конфигурации
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	options := &redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	}

	return redis.NewClient(options)
}

func NewRedisProviderCache(client *redis.Client, ttl time.Duration) *RedisProviderCache {
	return &RedisProviderCache{
		client: client,
		ttl:    ttl,
	}
}

func providerKey(id string) string {
	return providerKeyPrefix + id
}

func (r *RedisProviderCache) GetProvider(ctx context.Context, id string) (*models.Provider, error) {
	if r.client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}
	val, err := r.client.Get(ctx, providerKey(id)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get provider from redis: %w", err)
	}

	var provider models.Provider
	if err := json.Unmarshal([]byte(val), &provider); err != nil {
		return nil, fmt.Errorf("failed to unmarshal provider: %w", err)
	}

	return &provider, nil
}

func (r *RedisProviderCache) SetProvider(ctx context.Context, provider *models.Provider) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	if provider == nil || provider.ID == "" {
		return fmt.Errorf("provider without id cannot be cached")
	}
	data, err := json.Marshal(provider)
	if err != nil {
		return fmt.Errorf("failed to marshal provider: %w", err)
	}

	if err := r.client.Set(ctx, providerKey(provider.ID), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set provider in redis: %w", err)
	}

	return nil
}

func (r *RedisProviderCache) InvalidateProvider(ctx context.Context, id string) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	if err := r.client.Del(ctx, providerKey(id)).Err(); err != nil {
		return fmt.Errorf("failed to delete provider from redis: %w", err)
	}
	return nil
}

// Ping проверяет соединение с Redis
func Ping(ctx context.Context, client *redis.Client) error {
	_, err := client.Ping(ctx).Result()
	if err != nil {
		return fmt.Errorf("failed to ping Redis: %w", err)
	}
	return nil
}

// Close закрывает соединение с Redis
func Close(client *redis.Client) error {
	if client != nil {
		return client.Close()
	}
	return nil
}
