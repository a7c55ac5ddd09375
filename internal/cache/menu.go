package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/Skotchmaster/cravings/internal/models"
)

const DefaultMenuTTL = 5 * time.Minute

// MenuCache stores the public menu of each restaurant as one JSON value.
type MenuCache struct {
	Client      *redis.Client
	TTL         time.Duration
	ServiceName string
}

func NewMenuCache(client *redis.Client, serviceName string, ttl time.Duration) *MenuCache {
	if ttl <= 0 {
		ttl = DefaultMenuTTL
	}
	return &MenuCache{Client: client, TTL: ttl, ServiceName: serviceName}
}

func (c *MenuCache) MenuKey(restaurantID uuid.UUID) string {
	return fmt.Sprintf("%s:menu:%s", c.ServiceName, restaurantID)
}

func (c *MenuCache) GetMenu(ctx context.Context, restaurantID uuid.UUID) ([]models.MenuItem, bool, error) {
	raw, err := c.Client.Get(ctx, c.MenuKey(restaurantID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var items []models.MenuItem
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, false, fmt.Errorf("decode cached menu: %w", err)
	}
	return items, true, nil
}

func (c *MenuCache) SetMenu(ctx context.Context, restaurantID uuid.UUID, items []models.MenuItem) error {
	if items == nil {
		items = []models.MenuItem{}
	}
	raw, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("encode menu: %w", err)
	}
	return c.Client.Set(ctx, c.MenuKey(restaurantID), raw, c.TTL).Err()
}

func (c *MenuCache) Invalidate(ctx context.Context, restaurantID uuid.UUID) error {
	return c.Client.Del(ctx, c.MenuKey(restaurantID)).Err()
}

// Ping reports whether redis is reachable.
func (c *MenuCache) Ping(ctx context.Context) error {
	return c.Client.Ping(ctx).Err()
}
