package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Skotchmaster/cravings/internal/apperr"
	"github.com/Skotchmaster/cravings/internal/models"
	"github.com/Skotchmaster/cravings/internal/policy"
	"github.com/Skotchmaster/cravings/internal/repo"
)

const msgSingleRestaurant = "you can only add items from one restaurant at a time, empty your cart first to order from a different restaurant"

type CartService struct {
	Repo *repo.GormRepo
}

// CartView is a cart with its lines priced at the current catalog prices.
type CartView struct {
	Cart  models.Cart
	Items []models.CartItem
	Total decimal.Decimal
}

// CartLine is one requested line of a cart replacement.
type CartLine struct {
	MenuItemID uuid.UUID
	Quantity   int
}

// CartTotal sums the subtotals of items at their current prices.
func CartTotal(items []models.CartItem) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.Subtotal())
	}
	return total
}

func normalizeQuantity(q int) (uint, error) {
	if q < 0 {
		return 0, apperr.Validation("quantity must be a positive integer")
	}
	if q == 0 {
		return 1, nil
	}
	return uint(q), nil
}

func (s *CartService) cartOf(ctx context.Context, p policy.Principal) (*models.Cart, error) {
	if err := policy.Authorize(p, policy.ActionWrite, policy.CartTarget{CustomerID: p.ID}); err != nil {
		return nil, err
	}
	cart, err := s.Repo.GetOrCreateCart(ctx, p.ID)
	if err != nil {
		return nil, fmt.Errorf("get cart: %w", err)
	}
	return cart, nil
}

func (s *CartService) GetCart(ctx context.Context, p policy.Principal) (*CartView, error) {
	cart, err := s.cartOf(ctx, p)
	if err != nil {
		return nil, err
	}
	items, err := s.Repo.ListCartItems(ctx, cart.ID)
	if err != nil {
		return nil, fmt.Errorf("list cart items: %w", err)
	}
	return &CartView{Cart: *cart, Items: items, Total: CartTotal(items)}, nil
}

func (s *CartService) ListItems(ctx context.Context, p policy.Principal) ([]models.CartItem, error) {
	view, err := s.GetCart(ctx, p)
	if err != nil {
		return nil, err
	}
	return view.Items, nil
}

func (s *CartService) GetItem(ctx context.Context, p policy.Principal, itemID uuid.UUID) (*models.CartItem, error) {
	cart, err := s.cartOf(ctx, p)
	if err != nil {
		return nil, err
	}
	item, err := s.Repo.GetCartItem(ctx, cart.ID, itemID)
	if err != nil {
		return nil, lookup(err, "cart item")
	}
	return item, nil
}

// orderableItem loads a menu item that may be put into a cart.
func orderableItem(ctx context.Context, r *repo.GormRepo, id uuid.UUID) (*models.MenuItem, error) {
	if id == uuid.Nil {
		return nil, apperr.Validation("menu_item is required")
	}
	item, err := r.GetMenuItem(ctx, id)
	if err != nil {
		return nil, lookup(err, "menu item")
	}
	if !item.IsAvailable {
		return nil, apperr.Validation("%s is not available", item.Name)
	}
	return item, nil
}

// AddItem puts quantity units of a menu item into the caller's cart. An
// existing line for the same item is incremented instead of duplicated.
func (s *CartService) AddItem(ctx context.Context, p policy.Principal, menuItemID uuid.UUID, quantity int) (*models.CartItem, error) {
	qty, err := normalizeQuantity(quantity)
	if err != nil {
		return nil, err
	}
	cart, err := s.cartOf(ctx, p)
	if err != nil {
		return nil, err
	}
	menuItem, err := orderableItem(ctx, s.Repo, menuItemID)
	if err != nil {
		return nil, err
	}

	var line *models.CartItem
	err = s.Repo.Transaction(ctx, func(tx *repo.GormRepo) error {
		if err := tx.LockCart(ctx, cart.ID); err != nil {
			return fmt.Errorf("lock cart: %w", err)
		}

		existing, err := tx.ListCartItems(ctx, cart.ID)
		if err != nil {
			return fmt.Errorf("list cart items: %w", err)
		}
		for _, it := range existing {
			if it.MenuItem != nil && it.MenuItem.RestaurantID != menuItem.RestaurantID {
				return apperr.Conflict(msgSingleRestaurant)
			}
		}

		line, err = tx.AddCartItem(ctx, cart.ID, menuItem.ID, qty)
		if err != nil {
			return fmt.Errorf("add cart item: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return line, nil
}

// UpdateItemQuantity changes the quantity of a line by delta.
func (s *CartService) UpdateItemQuantity(ctx context.Context, p policy.Principal, itemID uuid.UUID, delta int) (*models.CartItem, error) {
	cart, err := s.cartOf(ctx, p)
	if err != nil {
		return nil, err
	}
	if _, err := s.Repo.GetCartItem(ctx, cart.ID, itemID); err != nil {
		return nil, lookup(err, "cart item")
	}

	ok, err := s.Repo.ChangeCartItemQuantity(ctx, cart.ID, itemID, delta)
	if err != nil {
		return nil, fmt.Errorf("update cart item: %w", err)
	}
	if !ok {
		return nil, apperr.Validation("quantity must be at least 1")
	}

	item, err := s.Repo.GetCartItem(ctx, cart.ID, itemID)
	if err != nil {
		return nil, lookup(err, "cart item")
	}
	return item, nil
}

func (s *CartService) RemoveItem(ctx context.Context, p policy.Principal, itemID uuid.UUID) error {
	cart, err := s.cartOf(ctx, p)
	if err != nil {
		return err
	}
	if err := s.Repo.DeleteCartItem(ctx, cart.ID, itemID); err != nil {
		return lookup(err, "cart item")
	}
	return nil
}

// ReplaceItems swaps the whole content of the cart. Duplicate lines are
// merged and the single-restaurant rule applies to the new content.
func (s *CartService) ReplaceItems(ctx context.Context, p policy.Principal, lines []CartLine) (*CartView, error) {
	cart, err := s.cartOf(ctx, p)
	if err != nil {
		return nil, err
	}

	merged := make(map[uuid.UUID]uint, len(lines))
	order := make([]uuid.UUID, 0, len(lines))
	var restaurantID uuid.UUID
	for _, ln := range lines {
		qty, err := normalizeQuantity(ln.Quantity)
		if err != nil {
			return nil, err
		}
		if _, seen := merged[ln.MenuItemID]; !seen {
			item, err := orderableItem(ctx, s.Repo, ln.MenuItemID)
			if err != nil {
				return nil, err
			}
			if restaurantID == uuid.Nil {
				restaurantID = item.RestaurantID
			} else if item.RestaurantID != restaurantID {
				return nil, apperr.Conflict(msgSingleRestaurant)
			}
			order = append(order, ln.MenuItemID)
		}
		merged[ln.MenuItemID] += qty
	}

	err = s.Repo.Transaction(ctx, func(tx *repo.GormRepo) error {
		if err := tx.LockCart(ctx, cart.ID); err != nil {
			return fmt.Errorf("lock cart: %w", err)
		}
		if err := tx.ClearCart(ctx, cart.ID); err != nil {
			return fmt.Errorf("clear cart: %w", err)
		}
		for _, id := range order {
			if _, err := tx.AddCartItem(ctx, cart.ID, id, merged[id]); err != nil {
				return fmt.Errorf("add cart item: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetCart(ctx, p)
}
