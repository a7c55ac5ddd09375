package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Skotchmaster/cravings/internal/apperr"
	"github.com/Skotchmaster/cravings/internal/models"
	"github.com/Skotchmaster/cravings/pkg/authclient"
)

// MenuCache keeps the public menu of a restaurant. Implementations must be
// safe for concurrent use.
type MenuCache interface {
	GetMenu(ctx context.Context, restaurantID uuid.UUID) ([]models.MenuItem, bool, error)
	SetMenu(ctx context.Context, restaurantID uuid.UUID, items []models.MenuItem) error
	Invalidate(ctx context.Context, restaurantID uuid.UUID) error
}

// MenuIndex is the full-text index of menu items.
type MenuIndex interface {
	IndexMenuItem(ctx context.Context, item models.MenuItem) error
	DeleteMenuItem(ctx context.Context, id uuid.UUID) error
	SearchMenuItems(ctx context.Context, q string, limit int) ([]uuid.UUID, error)
}

// Directory resolves users of the identity service.
type Directory interface {
	LookupUser(ctx context.Context, id uuid.UUID) (*authclient.User, error)
}

// Publisher emits order lifecycle events.
type Publisher interface {
	PublishOrderEvent(ctx context.Context, eventType string, order *models.Order) error
}

const (
	EventOrderCreated          = "order.created"
	EventOrderDeliveryAssigned = "order.delivery_assigned"
	EventOrderDelivered        = "order.delivered"
	EventOrderCancelled        = "order.cancelled"
)

// lookup translates a missing row into a NotFound error and wraps anything
// else with the operation name.
func lookup(err error, what string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.NotFound("%s not found", what)
	}
	return fmt.Errorf("get %s: %w", what, err)
}
