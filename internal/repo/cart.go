package repo

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Skotchmaster/cravings/internal/models"
)

// GetOrCreateCart is safe to call concurrently for the same customer: the
// insert is a no-op when another request created the cart first.
func (r *GormRepo) GetOrCreateCart(ctx context.Context, customerID uuid.UUID) (*models.Cart, error) {
	db := r.DB.WithContext(ctx)

	fresh := models.Cart{CustomerID: customerID}
	if err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "customer_id"}},
		DoNothing: true,
	}).Omit("Items").Create(&fresh).Error; err != nil {
		return nil, err
	}

	var cart models.Cart
	if err := db.Where("customer_id = ?", customerID).First(&cart).Error; err != nil {
		return nil, err
	}
	return &cart, nil
}

// LockCart takes a row lock on the cart for the rest of the transaction.
// Adds and checkouts of one customer are serialised through it.
func (r *GormRepo) LockCart(ctx context.Context, cartID uuid.UUID) error {
	var cart models.Cart
	return r.DB.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", cartID).
		First(&cart).Error
}

func (r *GormRepo) ListCartItems(ctx context.Context, cartID uuid.UUID) ([]models.CartItem, error) {
	var items []models.CartItem
	if err := r.DB.WithContext(ctx).
		Preload("MenuItem").
		Where("cart_id = ?", cartID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *GormRepo) GetCartItem(ctx context.Context, cartID, itemID uuid.UUID) (*models.CartItem, error) {
	var item models.CartItem
	if err := r.DB.WithContext(ctx).
		Preload("MenuItem").
		Where("id = ? AND cart_id = ?", itemID, cartID).
		First(&item).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

// AddCartItem merges into an existing line with an in-place increment and
// only inserts when the menu item is not in the cart yet.
func (r *GormRepo) AddCartItem(ctx context.Context, cartID, menuItemID uuid.UUID, quantity uint) (*models.CartItem, error) {
	var item models.CartItem
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.CartItem{}).
			Where("cart_id = ? AND menu_item_id = ?", cartID, menuItemID).
			Update("quantity", gorm.Expr("quantity + ?", quantity))
		if res.Error != nil {
			return res.Error
		}

		if res.RowsAffected == 0 {
			item = models.CartItem{
				CartID:     cartID,
				MenuItemID: menuItemID,
				Quantity:   quantity,
			}
			if err := tx.Omit(clause.Associations).Create(&item).Error; err != nil {
				return err
			}
		}

		return tx.Preload("MenuItem").
			Where("cart_id = ? AND menu_item_id = ?", cartID, menuItemID).
			First(&item).Error
	})
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// ChangeCartItemQuantity applies delta in a single statement. It reports
// false when the line is missing or the result would drop below one.
func (r *GormRepo) ChangeCartItemQuantity(ctx context.Context, cartID, itemID uuid.UUID, delta int) (bool, error) {
	res := r.DB.WithContext(ctx).Model(&models.CartItem{}).
		Where("id = ? AND cart_id = ?", itemID, cartID).
		Where("quantity + ? >= 1", delta).
		Update("quantity", gorm.Expr("quantity + ?", delta))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *GormRepo) DeleteCartItem(ctx context.Context, cartID, itemID uuid.UUID) error {
	res := r.DB.WithContext(ctx).
		Where("id = ? AND cart_id = ?", itemID, cartID).
		Delete(&models.CartItem{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *GormRepo) ClearCart(ctx context.Context, cartID uuid.UUID) error {
	return r.DB.WithContext(ctx).Where("cart_id = ?", cartID).Delete(&models.CartItem{}).Error
}
