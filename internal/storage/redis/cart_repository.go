// Package redis содержит redis-реализацию хранилища корзин.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vladislavdragonenkov/shop/internal/domain"
)

const (
	cartTTL   = 30 * 24 * time.Hour
	opTimeout = 3 * time.Second
)

type cartRepositoryRedis struct {
	client *redis.Client
}

// NewCartRepository создаёт redis-реализацию CartRepository.
// Корзина хранится как hash cart:{userID} с полями по productID,
// плюс ключ-индекс cartitem:{itemID} для доступа по идентификатору позиции.
func NewCartRepository(client *redis.Client) domain.CartRepository {
	return &cartRepositoryRedis{client: client}
}

func cartKey(userID string) string {
	return fmt.Sprintf("cart:%s", userID)
}

func itemKey(itemID string) string {
	return fmt.Sprintf("cartitem:%s", itemID)
}

func (r *cartRepositoryRedis) Upsert(item domain.CartItem) error {
	if strings.TrimSpace(item.UserID) == "" {
		return domain.ErrUserRequired
	}
	if strings.TrimSpace(item.ProductID) == "" {
		return domain.ErrProductRequired
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	data, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("marshal cart item: %w", err)
	}

	pipe := r.client.TxPipeline()
	pipe.HSet(ctx, cartKey(item.UserID), item.ProductID, data)
	pipe.Expire(ctx, cartKey(item.UserID), cartTTL)
	pipe.Set(ctx, itemKey(item.ID), item.UserID+"|"+item.ProductID, cartTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis upsert cart item: %w", err)
	}

	return nil
}

func (r *cartRepositoryRedis) GetItem(itemID string) (domain.CartItem, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	userID, productID, err := r.resolveItem(ctx, itemID)
	if err != nil {
		return domain.CartItem{}, err
	}

	return r.getField(ctx, userID, productID)
}

func (r *cartRepositoryRedis) GetByUserAndProduct(userID, productID string) (domain.CartItem, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	return r.getField(ctx, userID, productID)
}

func (r *cartRepositoryRedis) ListByUser(userID string) ([]domain.CartItem, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	fields, err := r.client.HGetAll(ctx, cartKey(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis list cart items: %w", err)
	}

	items := make([]domain.CartItem, 0, len(fields))
	for _, raw := range fields {
		var item domain.CartItem
		if err := json.Unmarshal([]byte(raw), &item); err != nil {
			return nil, fmt.Errorf("unmarshal cart item: %w", err)
		}
		items = append(items, item)
	}

	sort.Slice(items, func(i, j int) bool {
		if items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].ProductID < items[j].ProductID
		}
		return items[i].CreatedAt.Before(items[j].CreatedAt)
	})

	return items, nil
}

func (r *cartRepositoryRedis) Remove(itemID string) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	userID, productID, err := r.resolveItem(ctx, itemID)
	if err != nil {
		return err
	}

	pipe := r.client.TxPipeline()
	pipe.HDel(ctx, cartKey(userID), productID)
	pipe.Del(ctx, itemKey(itemID))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis remove cart item: %w", err)
	}

	return nil
}

func (r *cartRepositoryRedis) Clear(userID string) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	items, err := r.ListByUser(userID)
	if err != nil {
		return err
	}

	pipe := r.client.TxPipeline()
	pipe.Del(ctx, cartKey(userID))
	for _, item := range items {
		pipe.Del(ctx, itemKey(item.ID))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis clear cart: %w", err)
	}

	return nil
}

func (r *cartRepositoryRedis) resolveItem(ctx context.Context, itemID string) (userID, productID string, err error) {
	ref, err := r.client.Get(ctx, itemKey(itemID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", "", domain.ErrCartItemNotFound
	}
	if err != nil {
		return "", "", fmt.Errorf("redis resolve cart item: %w", err)
	}

	parts := strings.SplitN(ref, "|", 2)
	if len(parts) != 2 {
		return "", "", domain.ErrCartItemNotFound
	}

	return parts[0], parts[1], nil
}

func (r *cartRepositoryRedis) getField(ctx context.Context, userID, productID string) (domain.CartItem, error) {
	raw, err := r.client.HGet(ctx, cartKey(userID), productID).Result()
	if errors.Is(err, redis.Nil) {
		return domain.CartItem{}, domain.ErrCartItemNotFound
	}
	if err != nil {
		return domain.CartItem{}, fmt.Errorf("redis get cart item: %w", err)
	}

	var item domain.CartItem
	if err := json.Unmarshal([]byte(raw), &item); err != nil {
		return domain.CartItem{}, fmt.Errorf("unmarshal cart item: %w", err)
	}

	return item, nil
}

var _ domain.CartRepository = (*cartRepositoryRedis)(nil)
