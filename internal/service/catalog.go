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
	"github.com/Skotchmaster/cravings/pkg/logging"
)

const timeOfDayLayout = "15:04"

type CatalogService struct {
	Repo  *repo.GormRepo
	Cache MenuCache
	Index MenuIndex
}

type RestaurantInput struct {
	Name        string
	Description string
	OpeningTime string
	ClosingTime string
	// OwnerID lets staff create a restaurant on behalf of an owner.
	OwnerID *uuid.UUID
}

type RestaurantPatch struct {
	Name        *string
	Description *string
	OpeningTime *string
	ClosingTime *string
}

type MenuItemInput struct {
	Name        string
	Description string
	Price       decimal.Decimal
	ImageURL    string
	IsAvailable *bool
	Category    models.Category
}

type MenuItemPatch struct {
	Name        *string
	Description *string
	Price       *decimal.Decimal
	ImageURL    *string
	IsAvailable *bool
	Category    *models.Category
}

func validateTimeOfDay(field, v string) error {
	if _, err := time.Parse(timeOfDayLayout, v); err != nil || len(v) != len(timeOfDayLayout) {
		return apperr.Validation("%s must be in HH:MM format", field)
	}
	return nil
}

// maxPrice is the largest value a numeric(10,2) column holds.
var maxPrice = decimal.RequireFromString("99999999.99")

func validatePrice(p decimal.Decimal) error {
	if p.IsNegative() {
		return apperr.Validation("price must be >= 0")
	}
	if p.GreaterThan(maxPrice) {
		return apperr.Validation("price must be <= %s", maxPrice.StringFixed(2))
	}
	if !p.Equal(p.Round(2)) {
		return apperr.Validation("price must have at most 2 decimal places")
	}
	return nil
}

func validateCategory(c models.Category) error {
	if !c.Valid() {
		return apperr.Validation("unknown category %q", c)
	}
	return nil
}

func (s *CatalogService) ListRestaurants(ctx context.Context, p policy.Principal, offset, limit int) (int64, []models.Restaurant, error) {
	total, items, err := s.Repo.ListRestaurants(ctx, policy.RestaurantsVisibleTo(p), offset, limit)
	if err != nil {
		return 0, nil, fmt.Errorf("list restaurants: %w", err)
	}
	return total, items, nil
}

func (s *CatalogService) GetRestaurant(ctx context.Context, p policy.Principal, id uuid.UUID) (*models.Restaurant, error) {
	rest, err := s.Repo.GetRestaurant(ctx, id)
	if err != nil {
		return nil, lookup(err, "restaurant")
	}
	if err := policy.Authorize(p, policy.ActionRead, policy.RestaurantTarget{OwnerID: rest.OwnerID}); err != nil {
		return nil, err
	}
	return rest, nil
}

func (s *CatalogService) CreateRestaurant(ctx context.Context, p policy.Principal, in RestaurantInput) (*models.Restaurant, error) {
	if err := policy.Authorize(p, policy.ActionWrite, policy.NewRestaurant{}); err != nil {
		return nil, err
	}

	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return nil, apperr.Validation("name is required")
	}
	if err := validateTimeOfDay("opening_time", in.OpeningTime); err != nil {
		return nil, err
	}
	if err := validateTimeOfDay("closing_time", in.ClosingTime); err != nil {
		return nil, err
	}

	owner := p.ID
	if in.OwnerID != nil && p.IsStaff {
		owner = *in.OwnerID
	}

	rest := &models.Restaurant{
		Name:        in.Name,
		Description: in.Description,
		OpeningTime: in.OpeningTime,
		ClosingTime: in.ClosingTime,
		OwnerID:     owner,
	}
	if err := s.Repo.CreateRestaurant(ctx, rest); err != nil {
		return nil, fmt.Errorf("create restaurant: %w", err)
	}
	return rest, nil
}

func (s *CatalogService) UpdateRestaurant(ctx context.Context, p policy.Principal, id uuid.UUID, patch RestaurantPatch) (*models.Restaurant, error) {
	rest, err := s.Repo.GetRestaurant(ctx, id)
	if err != nil {
		return nil, lookup(err, "restaurant")
	}
	if err := policy.Authorize(p, policy.ActionWrite, policy.RestaurantTarget{OwnerID: rest.OwnerID}); err != nil {
		return nil, err
	}

	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return nil, apperr.Validation("name is required")
		}
		rest.Name = name
	}
	if patch.Description != nil {
		rest.Description = *patch.Description
	}
	if patch.OpeningTime != nil {
		if err := validateTimeOfDay("opening_time", *patch.OpeningTime); err != nil {
			return nil, err
		}
		rest.OpeningTime = *patch.OpeningTime
	}
	if patch.ClosingTime != nil {
		if err := validateTimeOfDay("closing_time", *patch.ClosingTime); err != nil {
			return nil, err
		}
		rest.ClosingTime = *patch.ClosingTime
	}

	if err := s.Repo.SaveRestaurant(ctx, rest); err != nil {
		return nil, fmt.Errorf("save restaurant: %w", err)
	}
	return rest, nil
}

func (s *CatalogService) DeleteRestaurant(ctx context.Context, p policy.Principal, id uuid.UUID) error {
	rest, err := s.Repo.GetRestaurant(ctx, id)
	if err != nil {
		return lookup(err, "restaurant")
	}
	if err := policy.Authorize(p, policy.ActionWrite, policy.RestaurantTarget{OwnerID: rest.OwnerID}); err != nil {
		return err
	}

	menu, err := s.Repo.ListMenuItems(ctx, id, false)
	if err != nil {
		return fmt.Errorf("list menu items: %w", err)
	}

	if err := s.Repo.DeleteRestaurant(ctx, id); err != nil {
		if errors.Is(err, repo.ErrRestaurantHasOrders) {
			return apperr.Conflict("restaurant has orders and cannot be deleted")
		}
		return lookup(err, "restaurant")
	}

	s.invalidateMenu(ctx, id)
	for _, item := range menu {
		s.unindex(ctx, item.ID)
	}
	return nil
}

// ListMenuItems returns the whole menu to the owner and staff and only the
// available items to everybody else.
func (s *CatalogService) ListMenuItems(ctx context.Context, p policy.Principal, restaurantID uuid.UUID) ([]models.MenuItem, error) {
	rest, err := s.Repo.GetRestaurant(ctx, restaurantID)
	if err != nil {
		return nil, lookup(err, "restaurant")
	}

	if policy.Allowed(p, policy.ActionWrite, policy.RestaurantTarget{OwnerID: rest.OwnerID}) {
		items, err := s.Repo.ListMenuItems(ctx, restaurantID, false)
		if err != nil {
			return nil, fmt.Errorf("list menu items: %w", err)
		}
		return items, nil
	}

	return s.publicMenu(ctx, restaurantID)
}

func (s *CatalogService) publicMenu(ctx context.Context, restaurantID uuid.UUID) ([]models.MenuItem, error) {
	l := logging.FromContext(ctx).With("service", "catalog")

	if s.Cache != nil {
		items, ok, err := s.Cache.GetMenu(ctx, restaurantID)
		if err != nil {
			l.Warn("menu_cache_get_error", "restaurant_id", restaurantID, "error", err)
		}
		if ok {
			return items, nil
		}
	}

	items, err := s.Repo.ListMenuItems(ctx, restaurantID, true)
	if err != nil {
		return nil, fmt.Errorf("list menu items: %w", err)
	}

	if s.Cache != nil {
		if err := s.Cache.SetMenu(ctx, restaurantID, items); err != nil {
			l.Warn("menu_cache_set_error", "restaurant_id", restaurantID, "error", err)
		}
	}
	return items, nil
}

// menuItemOf loads an item together with its restaurant and checks that it
// belongs to restaurantID.
func (s *CatalogService) menuItemOf(ctx context.Context, restaurantID, id uuid.UUID) (*models.MenuItem, *models.Restaurant, error) {
	item, err := s.Repo.GetMenuItem(ctx, id)
	if err != nil {
		return nil, nil, lookup(err, "menu item")
	}
	if item.RestaurantID != restaurantID {
		return nil, nil, apperr.NotFound("menu item not found")
	}
	rest, err := s.Repo.GetRestaurant(ctx, restaurantID)
	if err != nil {
		return nil, nil, lookup(err, "restaurant")
	}
	return item, rest, nil
}

func (s *CatalogService) GetMenuItem(ctx context.Context, p policy.Principal, restaurantID, id uuid.UUID) (*models.MenuItem, error) {
	item, rest, err := s.menuItemOf(ctx, restaurantID, id)
	if err != nil {
		return nil, err
	}
	target := policy.MenuItemTarget{RestaurantOwnerID: rest.OwnerID, Available: item.IsAvailable}
	if !policy.Allowed(p, policy.ActionRead, target) {
		return nil, apperr.NotFound("menu item not found")
	}
	return item, nil
}

func (s *CatalogService) CreateMenuItem(ctx context.Context, p policy.Principal, restaurantID uuid.UUID, in MenuItemInput) (*models.MenuItem, error) {
	rest, err := s.Repo.GetRestaurant(ctx, restaurantID)
	if err != nil {
		return nil, lookup(err, "restaurant")
	}
	if err := policy.Authorize(p, policy.ActionWrite, policy.MenuItemTarget{RestaurantOwnerID: rest.OwnerID}); err != nil {
		return nil, err
	}

	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return nil, apperr.Validation("name is required")
	}
	if err := validatePrice(in.Price); err != nil {
		return nil, err
	}
	if in.Category == "" {
		in.Category = models.CategoryMain
	}
	if err := validateCategory(in.Category); err != nil {
		return nil, err
	}
	available := true
	if in.IsAvailable != nil {
		available = *in.IsAvailable
	}

	item := &models.MenuItem{
		RestaurantID: restaurantID,
		Name:         in.Name,
		Description:  in.Description,
		Price:        in.Price,
		ImageURL:     in.ImageURL,
		IsAvailable:  available,
		Category:     in.Category,
	}
	if err := s.Repo.CreateMenuItem(ctx, item); err != nil {
		return nil, fmt.Errorf("create menu item: %w", err)
	}

	s.invalidateMenu(ctx, restaurantID)
	s.index(ctx, *item)
	return item, nil
}

func (s *CatalogService) UpdateMenuItem(ctx context.Context, p policy.Principal, restaurantID, id uuid.UUID, patch MenuItemPatch) (*models.MenuItem, error) {
	item, rest, err := s.menuItemOf(ctx, restaurantID, id)
	if err != nil {
		return nil, err
	}
	if err := policy.Authorize(p, policy.ActionWrite, policy.MenuItemTarget{RestaurantOwnerID: rest.OwnerID}); err != nil {
		return nil, err
	}

	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return nil, apperr.Validation("name is required")
		}
		item.Name = name
	}
	if patch.Description != nil {
		item.Description = *patch.Description
	}
	if patch.Price != nil {
		if err := validatePrice(*patch.Price); err != nil {
			return nil, err
		}
		item.Price = *patch.Price
	}
	if patch.ImageURL != nil {
		item.ImageURL = *patch.ImageURL
	}
	if patch.IsAvailable != nil {
		item.IsAvailable = *patch.IsAvailable
	}
	if patch.Category != nil {
		if err := validateCategory(*patch.Category); err != nil {
			return nil, err
		}
		item.Category = *patch.Category
	}

	if err := s.Repo.SaveMenuItem(ctx, item); err != nil {
		return nil, fmt.Errorf("save menu item: %w", err)
	}

	s.invalidateMenu(ctx, restaurantID)
	s.index(ctx, *item)
	return item, nil
}

func (s *CatalogService) DeleteMenuItem(ctx context.Context, p policy.Principal, restaurantID, id uuid.UUID) error {
	_, rest, err := s.menuItemOf(ctx, restaurantID, id)
	if err != nil {
		return err
	}
	if err := policy.Authorize(p, policy.ActionWrite, policy.MenuItemTarget{RestaurantOwnerID: rest.OwnerID}); err != nil {
		return err
	}

	if err := s.Repo.DeleteMenuItem(ctx, id); err != nil {
		return lookup(err, "menu item")
	}

	s.invalidateMenu(ctx, restaurantID)
	s.unindex(ctx, id)
	return nil
}

// SearchMenuItems queries the search index and falls back to the database
// when no index is configured or the index is unreachable.
func (s *CatalogService) SearchMenuItems(ctx context.Context, q string, limit int) ([]models.MenuItem, error) {
	l := logging.FromContext(ctx).With("service", "catalog")

	q = strings.TrimSpace(q)
	if q == "" {
		return nil, apperr.Validation("query is required")
	}

	if s.Index != nil {
		ids, err := s.Index.SearchMenuItems(ctx, q, limit)
		if err == nil {
			return s.menuItemsInOrder(ctx, ids)
		}
		l.Warn("menu_search_index_error", "query", q, "error", err)
	}

	items, err := s.Repo.SearchMenuItems(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("search menu items: %w", err)
	}
	return items, nil
}

func (s *CatalogService) menuItemsInOrder(ctx context.Context, ids []uuid.UUID) ([]models.MenuItem, error) {
	found, err := s.Repo.GetMenuItemsByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("get menu items: %w", err)
	}

	byID := make(map[uuid.UUID]models.MenuItem, len(found))
	for _, item := range found {
		byID[item.ID] = item
	}

	out := make([]models.MenuItem, 0, len(found))
	for _, id := range ids {
		if item, ok := byID[id]; ok {
			out = append(out, item)
		}
	}
	return out, nil
}

func (s *CatalogService) invalidateMenu(ctx context.Context, restaurantID uuid.UUID) {
	if s.Cache == nil {
		return
	}
	if err := s.Cache.Invalidate(ctx, restaurantID); err != nil {
		logging.FromContext(ctx).Warn("menu_cache_invalidate_error", "restaurant_id", restaurantID, "error", err)
	}
}

func (s *CatalogService) index(ctx context.Context, item models.MenuItem) {
	if s.Index == nil {
		return
	}
	if err := s.Index.IndexMenuItem(ctx, item); err != nil {
		logging.FromContext(ctx).Warn("menu_index_error", "menu_item_id", item.ID, "error", err)
	}
}

func (s *CatalogService) unindex(ctx context.Context, id uuid.UUID) {
	if s.Index == nil {
		return
	}
	if err := s.Index.DeleteMenuItem(ctx, id); err != nil {
		logging.FromContext(ctx).Warn("menu_unindex_error", "menu_item_id", id, "error", err)
	}
}
