package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func NewRedisClient(ctx context.Context, addr, password string) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       0,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	return rdb, nil
}

// 商品詳細をproduct:{id}に置く。キャッシュの失敗はログだけ出してDBに任せる
type ProductCache struct {
	rdb *redis.Client
	ttl time.Duration
	log *zap.Logger
}

func NewProductCache(rdb *redis.Client, ttl time.Duration, log *zap.Logger) *ProductCache {
	return &ProductCache{rdb: rdb, ttl: ttl, log: log}
}

func productKey(id int64) string {
	return fmt.Sprintf("product:%d", id)
}

func (c *ProductCache) Get(ctx context.Context, id int64) (model.Product, bool) {
	b, err := c.rdb.Get(ctx, productKey(id)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.log.Warn("product cache get failed", zap.Int64("product_id", id), zap.Error(err))
		}
		return model.Product{}, false
	}
	var p model.Product
	if err := json.Unmarshal(b, &p); err != nil {
		c.log.Warn("product cache decode failed", zap.Int64("product_id", id), zap.Error(err))
		return model.Product{}, false
	}
	return p, true
}

func (c *ProductCache) Set(ctx context.Context, p model.Product) {
	b, err := json.Marshal(p)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, productKey(p.ID), b, c.ttl).Err(); err != nil {
		c.log.Warn("product cache set failed", zap.Int64("product_id", p.ID), zap.Error(err))
	}
}

func (c *ProductCache) Delete(ctx context.Context, id int64) {
	if err := c.rdb.Del(ctx, productKey(id)).Err(); err != nil {
		c.log.Warn("product cache delete failed", zap.Int64("product_id", id), zap.Error(err))
	}
}

// Redis未設定のとき
type Noop struct{}

func (Noop) Get(context.Context, int64) (model.Product, bool) { return model.Product{}, false }
func (Noop) Set(context.Context, model.Product)               {}
func (Noop) Delete(context.Context, int64)                    {}

var (
	_ repo.ProductCache = (*ProductCache)(nil)
	_ repo.ProductCache = Noop{}
)
