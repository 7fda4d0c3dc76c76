// Package repository 提供了数据访问层的实现。
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// ErrNoSession 表示没有为该邮箱缓存过 token。
var ErrNoSession = errors.New("no cached session token")

// SessionRepository 定义了工具调用面使用的邮箱到 token 的会话缓存。
// 同一邮箱以最后写入为准，条目随 token 自然过期，进程重启后需要重新登录。
type SessionRepository interface {
	Put(ctx context.Context, email, token string) error
	Get(ctx context.Context, email string) (string, error)
}

type redisSessionRepository struct {
	redisClient *redis.Client
	ttl         time.Duration
}

// NewSessionRepository 创建一个新的 SessionRepository 实例。
// ttl 应与 token 的有效期一致，由 Redis 负责过期淘汰。
func NewSessionRepository(redisClient *redis.Client, ttl time.Duration) SessionRepository {
	return &redisSessionRepository{redisClient: redisClient, ttl: ttl}
}

func sessionKey(email string) string {
	return fmt.Sprintf("session:token:%s", email)
}

// Put 为邮箱缓存一个新签发的 token，覆盖旧值。
func (r *redisSessionRepository) Put(ctx context.Context, email, token string) error {
	if err := r.redisClient.Set(ctx, sessionKey(email), token, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache session token: %w", err)
	}
	return nil
}

// Get 取出邮箱对应的 token，不存在或已过期返回 ErrNoSession。
func (r *redisSessionRepository) Get(ctx context.Context, email string) (string, error) {
	tokenString, err := r.redisClient.Get(ctx, sessionKey(email)).Result()
	if err == redis.Nil {
		return "", ErrNoSession
	}
	if err != nil {
		return "", fmt.Errorf("failed to read session token: %w", err)
	}
	return tokenString, nil
}
