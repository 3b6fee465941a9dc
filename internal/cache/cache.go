// cache — необязательный Redis-кэш записей о refresh/reset-токенах.
// Снимает с MongoDB горячие чтения по хэшу на проверке токенов;
// при недоступности кэша сервис прозрачно ходит в БД.
package cache

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/pribylovaa/go-online-store/internal/models"
)

// TokenCache — минимальный контракт кэша записей о токенах.
type TokenCache interface {
	// Get возвращает запись и признак её наличия в кэше.
	Get(ctx context.Context, hash string) (*models.Token, bool, error)
	// Set сохраняет запись с TTL (обычно ExpiresAt-now).
	Set(ctx context.Context, token *models.Token, ttl time.Duration) error
	// Delete выбрасывает запись (ротация/логаут).
	Delete(ctx context.Context, hash string) error
	// Close закрывает клиент Redis.
	Close() error
}

type redisCache struct {
	rdb    *redis.Client
	prefix string
}

// NewRedisCache создаёт клиент Redis из URL (например, redis://:pass@host:6379/0).
// Если prefix пустой — используется "store:tk:".
func NewRedisCache(redisURL, prefix string) (TokenCache, error) {
	if prefix == "" {
		prefix = "store:tk:"
	}

	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	rdb := redis.NewClient(opt)

	// Fail-fast на старте.
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, err
	}

	return &redisCache{rdb: rdb, prefix: prefix}, nil
}

func (c *redisCache) key(hash string) string { return c.prefix + hash }

// Храним как Redis Hash с полями: uid, role, typ, bl (0/1), exp (unix).
func (c *redisCache) Get(ctx context.Context, hash string) (*models.Token, bool, error) {
	m, err := c.rdb.HGetAll(ctx, c.key(hash)).Result()
	if err != nil {
		return nil, false, err
	}

	if len(m) == 0 {
		return nil, false, nil
	}

	uid, err := uuid.Parse(m["uid"])
	if err != nil {
		return nil, false, err
	}

	expUnix, err := strconv.ParseInt(m["exp"], 10, 64)
	if err != nil {
		return nil, false, err
	}

	return &models.Token{
		TokenHash:   hash,
		UserID:      uid,
		Role:        models.Role(m["role"]),
		Type:        models.TokenType(m["typ"]),
		ExpiresAt:   time.Unix(expUnix, 0).UTC(),
		Blacklisted: m["bl"] == "1",
	}, true, nil
}

func (c *redisCache) Set(ctx context.Context, token *models.Token, ttl time.Duration) error {
	kv := map[string]string{
		"uid":  token.UserID.String(),
		"role": string(token.Role),
		"typ":  string(token.Type),
		"bl":   boolTo01(token.Blacklisted),
		"exp":  strconv.FormatInt(token.ExpiresAt.Unix(), 10),
	}

	pipe := c.rdb.TxPipeline()
	pipe.HSet(ctx, c.key(token.TokenHash), kv)
	pipe.Expire(ctx, c.key(token.TokenHash), ttl)

	_, err := pipe.Exec(ctx)
	return err
}

func (c *redisCache) Delete(ctx context.Context, hash string) error {
	return c.rdb.Del(ctx, c.key(hash)).Err()
}

func (c *redisCache) Close() error { return c.rdb.Close() }

func boolTo01(b bool) string {
	if b {
		return "1"
	}

	return "0"
}
