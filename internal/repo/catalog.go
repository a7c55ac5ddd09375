package repo

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Skotchmaster/cravings/internal/models"
)

var ErrRestaurantHasOrders = errors.New("restaurant has orders")

func (r *GormRepo) CreateRestaurant(ctx context.Context, rest *models.Restaurant) error {
	return r.DB.WithContext(ctx).Omit("MenuItems").Create(rest).Error
}

func (r *GormRepo) GetRestaurant(ctx context.Context, id uuid.UUID) (*models.Restaurant, error) {
	var rest models.Restaurant
	if err := r.DB.WithContext(ctx).Where("id = ?", id).First(&rest).Error; err != nil {
		return nil, err
	}
	return &rest, nil
}

// ListRestaurants filters by owner when ownerID is set.
func (r *GormRepo) ListRestaurants(ctx context.Context, ownerID *uuid.UUID, offset, limit int) (int64, []models.Restaurant, error) {
	owned := func(db *gorm.DB) *gorm.DB {
		if ownerID != nil {
			return db.Where("owner_id = ?", *ownerID)
		}
		return db
	}

	var total int64
	if err := r.DB.WithContext(ctx).Model(&models.Restaurant{}).Scopes(owned).Count(&total).Error; err != nil {
		return 0, nil, err
	}

	items := make([]models.Restaurant, 0, limit)
	if err := r.DB.WithContext(ctx).
		Model(&models.Restaurant{}).
		Scopes(owned).
		Order("name ASC").
		Order("id ASC").
		Offset(offset).
		Limit(limit).
		Find(&items).Error; err != nil {
		return 0, nil, err
	}
	return total, items, nil
}

func (r *GormRepo) SaveRestaurant(ctx context.Context, rest *models.Restaurant) error {
	return r.DB.WithContext(ctx).Omit("MenuItems").Save(rest).Error
}

func (r *GormRepo) DeleteRestaurant(ctx context.Context, id uuid.UUID) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var orders int64
		if err := tx.Model(&models.Order{}).Where("restaurant_id = ?", id).Count(&orders).Error; err != nil {
			return err
		}
		if orders > 0 {
			return ErrRestaurantHasOrders
		}

		menu := tx.Model(&models.MenuItem{}).Select("id").Where("restaurant_id = ?", id)
		if err := tx.Where("menu_item_id IN (?)", menu).Delete(&models.CartItem{}).Error; err != nil {
			return err
		}
		if err := tx.Where("restaurant_id = ?", id).Delete(&models.MenuItem{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&models.Restaurant{}, "id = ?", id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

func (r *GormRepo) CreateMenuItem(ctx context.Context, item *models.MenuItem) error {
	return r.DB.WithContext(ctx).Create(item).Error
}

func (r *GormRepo) GetMenuItem(ctx context.Context, id uuid.UUID) (*models.MenuItem, error) {
	var item models.MenuItem
	if err := r.DB.WithContext(ctx).Where("id = ?", id).First(&item).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *GormRepo) ListMenuItems(ctx context.Context, restaurantID uuid.UUID, availableOnly bool) ([]models.MenuItem, error) {
	q := r.DB.WithContext(ctx).Where("restaurant_id = ?", restaurantID)
	if availableOnly {
		q = q.Where("is_available = ?", true)
	}

	var items []models.MenuItem
	if err := q.Order("category ASC").Order("name ASC").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *GormRepo) GetMenuItemsByIDs(ctx context.Context, ids []uuid.UUID) ([]models.MenuItem, error) {
	if len(ids) == 0 {
		return []models.MenuItem{}, nil
	}
	var items []models.MenuItem
	if err := r.DB.WithContext(ctx).Where("id IN ? AND is_available = ?", ids, true).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// SearchMenuItems is the database fallback of the search index.
func (r *GormRepo) SearchMenuItems(ctx context.Context, q string, limit int) ([]models.MenuItem, error) {
	pattern := "%" + strings.ToLower(q) + "%"

	items := make([]models.MenuItem, 0, limit)
	if err := r.DB.WithContext(ctx).
		Where("is_available = ?", true).
		Where("LOWER(name) LIKE ? OR LOWER(description) LIKE ?", pattern, pattern).
		Order("name ASC").
		Limit(limit).
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *GormRepo) SaveMenuItem(ctx context.Context, item *models.MenuItem) error {
	return r.DB.WithContext(ctx).Save(item).Error
}

func (r *GormRepo) DeleteMenuItem(ctx context.Context, id uuid.UUID) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("menu_item_id = ?", id).Delete(&models.CartItem{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&models.MenuItem{}, "id = ?", id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}
