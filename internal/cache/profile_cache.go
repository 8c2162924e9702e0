package cache

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Lordevs/legacyverse-backend/internal/profile"
)

// ProfileCache 把公开资料投影以 gzip 压缩的 JSON 存入 Redis。
type ProfileCache struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// DefaultTTL 在传入的 ttl 非正数时使用；go-redis 对 0 不设过期，对负数使用 KEEPTTL。
const DefaultTTL = 5 * time.Minute

func NewProfileCache(client redis.UniversalClient, ttl time.Duration) *ProfileCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &ProfileCache{client: client, ttl: ttl}
}

func publicProfileKey(userID uint) string {
	return fmt.Sprintf("profile:public:%d", userID)
}

// Get 未命中时返回 (nil, nil)。
func (c *ProfileCache) Get(ctx context.Context, userID uint) (*profile.ProfileView, error) {
	val, err := c.client.Get(ctx, publicProfileKey(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	raw, err := decompress(val)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress: %w", err)
	}
	if raw == nil {
		return nil, nil
	}

	var view profile.ProfileView
	if err := json.Unmarshal(raw, &view); err != nil {
		return nil, err
	}
	return &view, nil
}

func (c *ProfileCache) Set(ctx context.Context, userID uint, view *profile.ProfileView) error {
	raw, err := json.Marshal(view)
	if err != nil {
		return err
	}
	compressed, err := compress(raw)
	if err != nil {
		return fmt.Errorf("failed to compress: %w", err)
	}
	return c.client.Set(ctx, publicProfileKey(userID), compressed, c.ttl).Err()
}

func (c *ProfileCache) Invalidate(ctx context.Context, userID uint) error {
	return c.client.Del(ctx, publicProfileKey(userID)).Err()
}

func compress(data []byte) ([]byte, error) {
	var b bytes.Buffer
	w := gzip.NewWriter(&b)
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}

func decompress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}
