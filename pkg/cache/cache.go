package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// TTL 상수 정의
const (
	TTLWorkflow = 10 * time.Minute // 워크플로 설정 (변경 빈도 낮음)
	TTLShort    = 1 * time.Minute  // 짧은 캐시 (실시간성 필요)
	TTLDefault  = 5 * time.Minute  // 기본값
)

// 캐시 키 접두사
const (
	PrefixWorkflow = "workflow:"
)

// ErrCacheMiss key not present
var ErrCacheMiss = errors.New("cache miss")

// Service Redis 캐시 서비스 인터페이스
type Service interface {
	// 기본 캐시 연산
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error

	// 워크플로 설정 캐시
	GetWorkflowConfig(ctx context.Context, workflowKey string, dest interface{}) error
	SetWorkflowConfig(ctx context.Context, workflowKey string, data interface{}) error
	InvalidateWorkflowConfig(ctx context.Context, workflowKey string) error

	// 유틸리티
	IsAvailable() bool
	Ping(ctx context.Context) error
}

// redisCache Redis 기반 캐시 구현
type redisCache struct {
	client *redis.Client
}

// NewService 새로운 캐시 서비스 생성
func NewService(client *redis.Client) Service {
	return &redisCache{client: client}
}

// IsAvailable Redis 연결 가능 여부
func (c *redisCache) IsAvailable() bool {
	return c.client != nil
}

// Ping Redis 연결 테스트
func (c *redisCache) Ping(ctx context.Context) error {
	if c.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	return c.client.Ping(ctx).Err()
}

// Get 캐시에서 값 조회
func (c *redisCache) Get(ctx context.Context, key string, dest interface{}) error {
	if c.client == nil {
		return ErrCacheMiss
	}

	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrCacheMiss
		}
		return err
	}

	return json.Unmarshal(data, dest)
}

// Set 캐시에 값 저장
func (c *redisCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if c.client == nil {
		return nil // Redis 없으면 무시
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal cache value: %w", err)
	}

	return c.client.Set(ctx, key, data, ttl).Err()
}

// Delete 캐시 삭제
func (c *redisCache) Delete(ctx context.Context, keys ...string) error {
	if c.client == nil || len(keys) == 0 {
		return nil
	}
	return c.client.Del(ctx, keys...).Err()
}

// GetWorkflowConfig 워크플로 설정 캐시 조회
func (c *redisCache) GetWorkflowConfig(ctx context.Context, workflowKey string, dest interface{}) error {
	return c.Get(ctx, PrefixWorkflow+workflowKey, dest)
}

// SetWorkflowConfig 워크플로 설정 캐시 저장
func (c *redisCache) SetWorkflowConfig(ctx context.Context, workflowKey string, data interface{}) error {
	return c.Set(ctx, PrefixWorkflow+workflowKey, data, TTLWorkflow)
}

// InvalidateWorkflowConfig 워크플로 설정 캐시 무효화
func (c *redisCache) InvalidateWorkflowConfig(ctx context.Context, workflowKey string) error {
	return c.Delete(ctx, PrefixWorkflow+workflowKey)
}
