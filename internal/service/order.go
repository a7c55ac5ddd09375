package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Skotchmaster/cravings/internal/apperr"
	"github.com/Skotchmaster/cravings/internal/models"
	"github.com/Skotchmaster/cravings/internal/policy"
	"github.com/Skotchmaster/cravings/internal/repo"
	"github.com/Skotchmaster/cravings/pkg/authclient"
	"github.com/Skotchmaster/cravings/pkg/logging"
)

type OrderService struct {
	Repo      *repo.GormRepo
	Directory Directory
	Events    Publisher
	Now       func() time.Time
}

// OrderPatch holds the writable fields of an order. Status changes are
// routed through the delivery state machine.
type OrderPatch struct {
	DeliveryAddress *string
	Status          *models.OrderStatus
}

func (s *OrderService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func orderTarget(o *models.Order) policy.OrderTarget {
	t := policy.OrderTarget{CustomerID: o.CustomerID, DeliveryCrewID: o.DeliveryCrewID}
	if o.Restaurant != nil {
		t.RestaurantOwnerID = o.Restaurant.OwnerID
	}
	return t
}

// Checkout converts the caller's cart into an order. The order, its lines
// and the emptied cart are committed together or not at all.
func (s *OrderService) Checkout(ctx context.Context, p policy.Principal, deliveryAddress string) (*models.Order, error) {
	if err := policy.Authorize(p, policy.ActionWrite, policy.NewOrder{}); err != nil {
		return nil, err
	}
	address := strings.TrimSpace(deliveryAddress)
	if address == "" {
		return nil, apperr.Validation("delivery_address is required")
	}

	cart, err := s.Repo.GetOrCreateCart(ctx, p.ID)
	if err != nil {
		return nil, fmt.Errorf("get cart: %w", err)
	}

	var order *models.Order
	err = s.Repo.Transaction(ctx, func(tx *repo.GormRepo) error {
		if err := tx.LockCart(ctx, cart.ID); err != nil {
			return fmt.Errorf("lock cart: %w", err)
		}

		items, err := tx.ListCartItems(ctx, cart.ID)
		if err != nil {
			return fmt.Errorf("list cart items: %w", err)
		}
		if len(items) == 0 {
			return apperr.Validation("cart is empty")
		}

		var restaurantID uuid.UUID
		total := decimal.Zero
		lines := make([]models.OrderItem, 0, len(items))
		for _, it := range items {
			if it.MenuItem == nil {
				return fmt.Errorf("cart item %s has no menu item", it.ID)
			}
			if restaurantID == uuid.Nil {
				restaurantID = it.MenuItem.RestaurantID
			} else if it.MenuItem.RestaurantID != restaurantID {
				return apperr.Conflict("cart holds items from more than one restaurant")
			}
			if !it.MenuItem.IsAvailable {
				return apperr.Validation("%s is no longer available", it.MenuItem.Name)
			}

			total = total.Add(it.Subtotal())
			lines = append(lines, models.OrderItem{
				MenuItemID:   it.MenuItemID,
				MenuItemName: it.MenuItem.Name,
				Quantity:     it.Quantity,
				UnitPrice:    it.MenuItem.Price,
			})
		}

		order = &models.Order{
			CustomerID:      p.ID,
			RestaurantID:    restaurantID,
			Status:          models.OrderStatusPreparing,
			Total:           total,
			DeliveryAddress: address,
			OrderDate:       s.now(),
			Items:           lines,
		}
		if err := tx.CreateOrder(ctx, order); err != nil {
			return fmt.Errorf("create order: %w", err)
		}
		if err := tx.ClearCart(ctx, cart.ID); err != nil {
			return fmt.Errorf("clear cart: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	created, err := s.Repo.GetOrder(ctx, order.ID)
	if err != nil {
		return nil, lookup(err, "order")
	}
	s.publish(ctx, EventOrderCreated, created)
	return created, nil
}

// visibleOrder hides orders the caller may not read behind NotFound.
func (s *OrderService) visibleOrder(ctx context.Context, p policy.Principal, id uuid.UUID) (*models.Order, error) {
	order, err := s.Repo.GetOrder(ctx, id)
	if err != nil {
		return nil, lookup(err, "order")
	}
	if !policy.Allowed(p, policy.ActionRead, orderTarget(order)) {
		return nil, apperr.NotFound("order not found")
	}
	return order, nil
}

func (s *OrderService) GetOrder(ctx context.Context, p policy.Principal, id uuid.UUID) (*models.Order, error) {
	return s.visibleOrder(ctx, p, id)
}

func (s *OrderService) ListOrders(ctx context.Context, p policy.Principal, offset, limit int) (int64, []models.Order, error) {
	total, orders, err := s.Repo.ListOrders(ctx, policy.OrdersVisibleTo(p), offset, limit)
	if err != nil {
		return 0, nil, fmt.Errorf("list orders: %w", err)
	}
	return total, orders, nil
}

// transition locks the order, runs check against the locked row and then
// writes fields. The reloaded order is published as eventType unless it is
// empty.
func (s *OrderService) transition(ctx context.Context, id uuid.UUID, eventType string, check func(o *models.Order) error, fields map[string]any) (*models.Order, error) {
	err := s.Repo.Transaction(ctx, func(tx *repo.GormRepo) error {
		order, err := tx.LockOrder(ctx, id)
		if err != nil {
			return lookup(err, "order")
		}
		if err := check(order); err != nil {
			return err
		}
		if err := tx.UpdateOrderFields(ctx, id, fields); err != nil {
			return fmt.Errorf("update order: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	updated, err := s.Repo.GetOrder(ctx, id)
	if err != nil {
		return nil, lookup(err, "order")
	}
	if eventType != "" {
		s.publish(ctx, eventType, updated)
	}
	return updated, nil
}

// AssignDelivery hands the order to a delivery crew member and sends it out.
// Reassigning an order that is already out for delivery is allowed.
func (s *OrderService) AssignDelivery(ctx context.Context, p policy.Principal, orderID, crewID uuid.UUID) (*models.Order, error) {
	if crewID == uuid.Nil {
		return nil, apperr.Validation("delivery crew id is required")
	}

	order, err := s.Repo.GetOrder(ctx, orderID)
	if err != nil {
		return nil, lookup(err, "order")
	}
	if err := policy.Authorize(p, policy.ActionAssignDelivery, orderTarget(order)); err != nil {
		return nil, err
	}
	if err := s.checkDeliveryCrew(ctx, crewID); err != nil {
		return nil, err
	}

	check := func(o *models.Order) error {
		if o.Status.Terminal() {
			return apperr.State("order is already %s", o.Status)
		}
		return nil
	}
	return s.transition(ctx, orderID, EventOrderDeliveryAssigned, check, map[string]any{
		"delivery_crew_id": crewID,
		"status":           models.OrderStatusOutForDelivery,
	})
}

func (s *OrderService) checkDeliveryCrew(ctx context.Context, crewID uuid.UUID) error {
	if s.Directory == nil {
		return errors.New("user directory is not configured")
	}
	user, err := s.Directory.LookupUser(ctx, crewID)
	if err != nil {
		if errors.Is(err, authclient.ErrUserNotFound) {
			return apperr.Validation("invalid delivery crew id")
		}
		return fmt.Errorf("lookup delivery crew: %w", err)
	}
	crew := policy.Principal{ID: user.ID, Roles: policy.ParseRoles(user.Roles)}
	if !crew.Has(policy.RoleDeliveryCrew) {
		return apperr.Validation("user %s is not a member of the delivery crew", user.Username)
	}
	return nil
}

// MarkDelivered is reserved to the crew member the order is assigned to.
func (s *OrderService) MarkDelivered(ctx context.Context, p policy.Principal, orderID uuid.UUID) (*models.Order, error) {
	return s.transition(ctx, orderID, EventOrderDelivered, deliverCheck(p), map[string]any{
		"status": models.OrderStatusDelivered,
	})
}

func deliverCheck(p policy.Principal) func(o *models.Order) error {
	return func(o *models.Order) error {
		if o.DeliveryCrewID == nil || *o.DeliveryCrewID != p.ID {
			return apperr.Forbidden("you can only update orders assigned to you")
		}
		if err := policy.Authorize(p, policy.ActionUpdateStatus, orderTarget(o)); err != nil {
			return err
		}
		if o.Status != models.OrderStatusOutForDelivery {
			return apperr.State("order is %s, only orders out for delivery can be delivered", o.Status)
		}
		return nil
	}
}

func (s *OrderService) Cancel(ctx context.Context, p policy.Principal, orderID uuid.UUID) (*models.Order, error) {
	return s.transition(ctx, orderID, EventOrderCancelled, cancelCheck(p), map[string]any{
		"status": models.OrderStatusCancelled,
	})
}

func cancelCheck(p policy.Principal) func(o *models.Order) error {
	return func(o *models.Order) error {
		if err := policy.Authorize(p, policy.ActionCancel, orderTarget(o)); err != nil {
			return err
		}
		if o.Status.Terminal() {
			return apperr.State("order is already %s", o.Status)
		}
		return nil
	}
}

// UpdateOrder applies an order patch. Only staff may change the delivery
// address; a status field is executed as the matching transition. The
// address and the status are written in one transaction, a refused
// transition leaves the address untouched.
func (s *OrderService) UpdateOrder(ctx context.Context, p policy.Principal, orderID uuid.UUID, patch OrderPatch) (*models.Order, error) {
	if patch.DeliveryAddress == nil && patch.Status == nil {
		return nil, apperr.Validation("nothing to update")
	}

	order, err := s.visibleOrder(ctx, p, orderID)
	if err != nil {
		return nil, err
	}

	fields := map[string]any{}
	var checks []func(o *models.Order) error
	eventType := ""

	if patch.Status != nil {
		switch *patch.Status {
		case models.OrderStatusDelivered:
			checks = append(checks, deliverCheck(p))
			eventType = EventOrderDelivered
		case models.OrderStatusCancelled:
			checks = append(checks, cancelCheck(p))
			eventType = EventOrderCancelled
		case models.OrderStatusPreparing, models.OrderStatusOutForDelivery:
			return nil, apperr.State("cannot move order to %s", *patch.Status)
		default:
			return nil, apperr.Validation("unknown status %q", *patch.Status)
		}
		fields["status"] = *patch.Status
	}

	if patch.DeliveryAddress != nil {
		if err := policy.Authorize(p, policy.ActionWrite, orderTarget(order)); err != nil {
			return nil, err
		}
		address := strings.TrimSpace(*patch.DeliveryAddress)
		if address == "" {
			return nil, apperr.Validation("delivery_address is required")
		}
		checks = append(checks, func(o *models.Order) error {
			return policy.Authorize(p, policy.ActionWrite, orderTarget(o))
		})
		fields["delivery_address"] = address
	}

	check := func(o *models.Order) error {
		for _, c := range checks {
			if err := c(o); err != nil {
				return err
			}
		}
		return nil
	}
	return s.transition(ctx, orderID, eventType, check, fields)
}

func (s *OrderService) DeleteOrder(ctx context.Context, p policy.Principal, orderID uuid.UUID) error {
	order, err := s.visibleOrder(ctx, p, orderID)
	if err != nil {
		return err
	}
	if err := policy.Authorize(p, policy.ActionWrite, orderTarget(order)); err != nil {
		return err
	}
	if err := s.Repo.DeleteOrder(ctx, orderID); err != nil {
		return lookup(err, "order")
	}
	return nil
}

// DetachDeliveryCrew unassigns a removed crew account from its orders.
func (s *OrderService) DetachDeliveryCrew(ctx context.Context, crewID uuid.UUID) (int64, error) {
	n, err := s.Repo.DetachDeliveryCrew(ctx, crewID)
	if err != nil {
		return 0, fmt.Errorf("detach delivery crew: %w", err)
	}
	return n, nil
}

func (s *OrderService) publish(ctx context.Context, eventType string, order *models.Order) {
	if s.Events == nil {
		return
	}
	if err := s.Events.PublishOrderEvent(ctx, eventType, order); err != nil {
		logging.FromContext(ctx).Warn("order_event_publish_error",
			"event", eventType, "order_id", order.ID, "error", err)
	}
}
