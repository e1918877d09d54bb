package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"etsy_backoffice/internal/config"

	"github.com/redis/go-redis/v9"
)

// ErrNoSession 会话 ID 为空
var ErrNoSession = errors.New("session: empty session id")

// Store 服务端会话存储
// 数据按 sessionID 隔离，同一会话内以 key 区分
// Take 为原子的读后删除，用于一次性数据 (OAuth state / verifier)
type Store interface {
	Get(ctx context.Context, sessionID, key string) (string, bool, error)
	Set(ctx context.Context, sessionID, key, value string) error
	Take(ctx context.Context, sessionID, key string) (string, bool, error)
	Invalidate(ctx context.Context, sessionID string) error
}

// New 按配置创建会话存储
func New(cfg config.SessionConfig) (Store, error) {
	switch cfg.Backend {
	case "", "memory":
		return NewMemoryStore(cfg.TTL), nil
	case "redis":
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := rdb.Ping(ctx).Err(); err != nil {
			_ = rdb.Close()
			return nil, fmt.Errorf("connect redis %s: %w", cfg.RedisAddr, err)
		}
		return NewRedisStore(rdb, cfg.KeyPrefix, cfg.TTL), nil
	default:
		return nil, fmt.Errorf("unknown session backend %q", cfg.Backend)
	}
}
