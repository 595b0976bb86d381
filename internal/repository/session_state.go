// Package repository 提供了数据访问层的实现。
package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"spend-insight-go/internal/model"
	"time"

	"github.com/go-redis/redis/v8"
)

// SessionStateRepository 维护网关侧的会话状态：
// 每个用户当前激活的会话，以及最近一次拉取到的会话列表缓存。
// 会话本体由后端持有，这里只存副本。
type SessionStateRepository interface {
	GetActiveSession(ctx context.Context, userID string) (*model.Session, error)
	SetActiveSession(ctx context.Context, userID string, session *model.Session) error
	GetCachedSessionList(ctx context.Context, userID string) ([]model.Session, error)
	CacheSessionList(ctx context.Context, userID string, sessions []model.Session) error
}

type redisSessionStateRepository struct {
	redisClient *redis.Client
}

// NewSessionStateRepository 创建一个新的 SessionStateRepository 实例。
func NewSessionStateRepository(redisClient *redis.Client) SessionStateRepository {
	return &redisSessionStateRepository{redisClient: redisClient}
}

const sessionStateTTL = 7 * 24 * time.Hour

// GetActiveSession 获取用户当前激活的会话，没有时返回 nil。
func (r *redisSessionStateRepository) GetActiveSession(ctx context.Context, userID string) (*model.Session, error) {
	key := fmt.Sprintf("user:%s:active_session", userID)
	jsonData, err := r.redisClient.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get active session: %w", err)
	}
	var session model.Session
	if err := json.Unmarshal([]byte(jsonData), &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal active session: %w", err)
	}
	return &session, nil
}

// SetActiveSession 在 Redis 中记录用户当前激活的会话。
func (r *redisSessionStateRepository) SetActiveSession(ctx context.Context, userID string, session *model.Session) error {
	key := fmt.Sprintf("user:%s:active_session", userID)
	jsonData, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal active session: %w", err)
	}
	if err := r.redisClient.Set(ctx, key, jsonData, sessionStateTTL).Err(); err != nil {
		return fmt.Errorf("failed to set active session: %w", err)
	}
	return nil
}

// GetCachedSessionList 获取最近一次缓存的会话列表。
func (r *redisSessionStateRepository) GetCachedSessionList(ctx context.Context, userID string) ([]model.Session, error) {
	key := fmt.Sprintf("user:%s:sessions", userID)
	jsonData, err := r.redisClient.Get(ctx, key).Result()
	if err == redis.Nil {
		return []model.Session{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cached session list: %w", err)
	}
	var sessions []model.Session
	if err := json.Unmarshal([]byte(jsonData), &sessions); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached session list: %w", err)
	}
	return sessions, nil
}

// CacheSessionList 缓存会话列表副本。
func (r *redisSessionStateRepository) CacheSessionList(ctx context.Context, userID string, sessions []model.Session) error {
	key := fmt.Sprintf("user:%s:sessions", userID)
	jsonData, err := json.Marshal(sessions)
	if err != nil {
		return fmt.Errorf("failed to marshal session list: %w", err)
	}
	if err := r.redisClient.Set(ctx, key, jsonData, sessionStateTTL).Err(); err != nil {
		return fmt.Errorf("failed to cache session list: %w", err)
	}
	return nil
}
