package repo

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Skotchmaster/cravings/internal/models"
	"github.com/Skotchmaster/cravings/internal/policy"
)

// CreateOrder inserts the order and its lines. Callers run it inside
// Transaction together with the cart cleanup.
func (r *GormRepo) CreateOrder(ctx context.Context, order *models.Order) error {
	db := r.DB.WithContext(ctx)
	if err := db.Omit(clause.Associations).Create(order).Error; err != nil {
		return err
	}
	for i := range order.Items {
		order.Items[i].OrderID = order.ID
	}
	if len(order.Items) == 0 {
		return nil
	}
	return db.Create(&order.Items).Error
}

func (r *GormRepo) GetOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := r.DB.WithContext(ctx).
		Preload("Items").
		Preload("Restaurant").
		Where("id = ?", id).
		First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

// LockOrder reads the order with a row lock held until the surrounding
// transaction ends.
func (r *GormRepo) LockOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := r.DB.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&order).Error; err != nil {
		return nil, err
	}

	var rest models.Restaurant
	if err := r.DB.WithContext(ctx).Where("id = ?", order.RestaurantID).First(&rest).Error; err != nil {
		return nil, err
	}
	order.Restaurant = &rest
	return &order, nil
}

func scopeOrders(scope policy.OrderScope) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if scope.All {
			return db
		}

		var cond *gorm.DB
		or := func(query string, args ...any) {
			if cond == nil {
				cond = db.Session(&gorm.Session{NewDB: true}).Where(query, args...)
				return
			}
			cond = cond.Or(query, args...)
		}
		for _, kind := range scope.Kinds {
			switch kind {
			case policy.ScopeCustomer:
				or("customer_id = ?", scope.UserID)
			case policy.ScopeRestaurantOwner:
				owned := db.Session(&gorm.Session{NewDB: true}).
					Model(&models.Restaurant{}).
					Select("id").
					Where("owner_id = ?", scope.UserID)
				or("restaurant_id IN (?)", owned)
			case policy.ScopeDeliveryCrew:
				or("delivery_crew_id = ?", scope.UserID)
			}
		}
		if cond == nil {
			return db.Where("1 = 0")
		}
		return db.Where(cond)
	}
}

func (r *GormRepo) ListOrders(ctx context.Context, scope policy.OrderScope, offset, limit int) (int64, []models.Order, error) {
	var total int64
	if err := r.DB.WithContext(ctx).Model(&models.Order{}).Scopes(scopeOrders(scope)).Count(&total).Error; err != nil {
		return 0, nil, err
	}

	orders := make([]models.Order, 0, limit)
	if err := r.DB.WithContext(ctx).
		Model(&models.Order{}).
		Scopes(scopeOrders(scope)).
		Preload("Items").
		Preload("Restaurant").
		Order("order_date DESC").
		Order("id ASC").
		Offset(offset).
		Limit(limit).
		Find(&orders).Error; err != nil {
		return 0, nil, err
	}
	return total, orders, nil
}

// UpdateOrderFields writes only the given columns of an existing order.
func (r *GormRepo) UpdateOrderFields(ctx context.Context, id uuid.UUID, fields map[string]any) error {
	res := r.DB.WithContext(ctx).Model(&models.Order{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *GormRepo) DeleteOrder(ctx context.Context, id uuid.UUID) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("order_id = ?", id).Delete(&models.OrderItem{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&models.Order{}, "id = ?", id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

// DetachDeliveryCrew clears the crew reference on every order of a removed
// account and reports how many orders changed.
func (r *GormRepo) DetachDeliveryCrew(ctx context.Context, crewID uuid.UUID) (int64, error) {
	res := r.DB.WithContext(ctx).Model(&models.Order{}).
		Where("delivery_crew_id = ?", crewID).
		Update("delivery_crew_id", nil)
	return res.RowsAffected, res.Error
}
