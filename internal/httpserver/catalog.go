package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/cravings/internal/apperr"
	"github.com/Skotchmaster/cravings/internal/models"
	"github.com/Skotchmaster/cravings/internal/service"
	"github.com/Skotchmaster/cravings/internal/transport"
	"github.com/Skotchmaster/cravings/internal/util"
	"github.com/Skotchmaster/cravings/pkg/logging"
)

const defaultSearchLimit = 20

type CatalogHTTP struct {
	Svc *service.CatalogService
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func (h *CatalogHTTP) ListRestaurants(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "restaurant.list")

	p, err := principal(c, l, "list_restaurants_error")
	if err != nil {
		return err
	}

	page := util.ParseIntDefault(c.QueryParam("page"), 1)
	size := util.ParseIntDefault(c.QueryParam("size"), util.DefaultPageSize)
	offset, limit := util.Calculate(page, size)

	total, items, err := h.Svc.ListRestaurants(ctx, p, offset, limit)
	if err != nil {
		return fail(l, "list_restaurants_error", err)
	}

	l.Info("list_restaurants_success", "total", total)
	return c.JSON(http.StatusOK, transport.NewPage(transport.FromRestaurants(items), page, offset, limit, total))
}

func (h *CatalogHTTP) GetRestaurant(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "restaurant.get")

	p, err := principal(c, l, "get_restaurant_error")
	if err != nil {
		return err
	}
	id, err := pathID(c, l, "get_restaurant_error", "id")
	if err != nil {
		return err
	}

	rest, err := h.Svc.GetRestaurant(ctx, p, id)
	if err != nil {
		return fail(l, "get_restaurant_error", err)
	}
	return c.JSON(http.StatusOK, transport.FromRestaurant(*rest))
}

func (h *CatalogHTTP) CreateRestaurant(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "restaurant.create")

	p, err := principal(c, l, "create_restaurant_error")
	if err != nil {
		return err
	}

	var req transport.RestaurantRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(l, "create_restaurant_error", "invalid body", err)
	}

	rest, err := h.Svc.CreateRestaurant(ctx, p, service.RestaurantInput{
		Name:        deref(req.Name),
		Description: deref(req.Description),
		OpeningTime: deref(req.OpeningTime),
		ClosingTime: deref(req.ClosingTime),
		OwnerID:     req.OwnerID,
	})
	if err != nil {
		return fail(l, "create_restaurant_error", err)
	}

	l.Info("create_restaurant_success", "restaurant_id", rest.ID)
	return c.JSON(http.StatusCreated, transport.FromRestaurant(*rest))
}

// UpdateRestaurant serves both PUT and PATCH. PUT replaces every writable
// field and therefore requires the mandatory ones.
func (h *CatalogHTTP) UpdateRestaurant(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "restaurant.update")

	p, err := principal(c, l, "update_restaurant_error")
	if err != nil {
		return err
	}
	id, err := pathID(c, l, "update_restaurant_error", "id")
	if err != nil {
		return err
	}

	var req transport.RestaurantRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(l, "update_restaurant_error", "invalid body", err)
	}

	if c.Request().Method == http.MethodPut {
		if req.Name == nil || req.OpeningTime == nil || req.ClosingTime == nil {
			return fail(l, "update_restaurant_error",
				apperr.Validation("name, opening_time and closing_time are required"))
		}
		if req.Description == nil {
			empty := ""
			req.Description = &empty
		}
	}

	rest, err := h.Svc.UpdateRestaurant(ctx, p, id, service.RestaurantPatch{
		Name:        req.Name,
		Description: req.Description,
		OpeningTime: req.OpeningTime,
		ClosingTime: req.ClosingTime,
	})
	if err != nil {
		return fail(l, "update_restaurant_error", err)
	}

	l.Info("update_restaurant_success", "restaurant_id", rest.ID)
	return c.JSON(http.StatusOK, transport.FromRestaurant(*rest))
}

func (h *CatalogHTTP) DeleteRestaurant(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "restaurant.delete")

	p, err := principal(c, l, "delete_restaurant_error")
	if err != nil {
		return err
	}
	id, err := pathID(c, l, "delete_restaurant_error", "id")
	if err != nil {
		return err
	}

	if err := h.Svc.DeleteRestaurant(ctx, p, id); err != nil {
		return fail(l, "delete_restaurant_error", err)
	}

	l.Info("delete_restaurant_success", "restaurant_id", id)
	return c.NoContent(http.StatusNoContent)
}

func (h *CatalogHTTP) ListMenuItems(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "menu_item.list")

	p, err := principal(c, l, "list_menu_items_error")
	if err != nil {
		return err
	}
	rid, err := pathID(c, l, "list_menu_items_error", "id")
	if err != nil {
		return err
	}

	items, err := h.Svc.ListMenuItems(ctx, p, rid)
	if err != nil {
		return fail(l, "list_menu_items_error", err)
	}
	return c.JSON(http.StatusOK, transport.FromMenuItems(items))
}

func (h *CatalogHTTP) GetMenuItem(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "menu_item.get")

	p, err := principal(c, l, "get_menu_item_error")
	if err != nil {
		return err
	}
	rid, err := pathID(c, l, "get_menu_item_error", "id")
	if err != nil {
		return err
	}
	id, err := pathID(c, l, "get_menu_item_error", "item_id")
	if err != nil {
		return err
	}

	item, err := h.Svc.GetMenuItem(ctx, p, rid, id)
	if err != nil {
		return fail(l, "get_menu_item_error", err)
	}
	return c.JSON(http.StatusOK, transport.FromMenuItem(*item))
}

func (h *CatalogHTTP) CreateMenuItem(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "menu_item.create")

	p, err := principal(c, l, "create_menu_item_error")
	if err != nil {
		return err
	}
	rid, err := pathID(c, l, "create_menu_item_error", "id")
	if err != nil {
		return err
	}

	var req transport.MenuItemRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(l, "create_menu_item_error", "invalid body", err)
	}
	if req.Price == nil {
		return fail(l, "create_menu_item_error", apperr.Validation("price is required"))
	}

	item, err := h.Svc.CreateMenuItem(ctx, p, rid, service.MenuItemInput{
		Name:        deref(req.Name),
		Description: deref(req.Description),
		Price:       *req.Price,
		ImageURL:    deref(req.ImageURL),
		IsAvailable: req.IsAvailable,
		Category:    models.Category(deref(req.Category)),
	})
	if err != nil {
		return fail(l, "create_menu_item_error", err)
	}

	l.Info("create_menu_item_success", "menu_item_id", item.ID)
	return c.JSON(http.StatusCreated, transport.FromMenuItem(*item))
}

// UpdateMenuItem serves both PUT and PATCH; PUT requires name and price.
func (h *CatalogHTTP) UpdateMenuItem(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "menu_item.update")

	p, err := principal(c, l, "update_menu_item_error")
	if err != nil {
		return err
	}
	rid, err := pathID(c, l, "update_menu_item_error", "id")
	if err != nil {
		return err
	}
	id, err := pathID(c, l, "update_menu_item_error", "item_id")
	if err != nil {
		return err
	}

	var req transport.MenuItemRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(l, "update_menu_item_error", "invalid body", err)
	}
	if c.Request().Method == http.MethodPut && (req.Name == nil || req.Price == nil) {
		return fail(l, "update_menu_item_error", apperr.Validation("name and price are required"))
	}

	patch := service.MenuItemPatch{
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		ImageURL:    req.ImageURL,
		IsAvailable: req.IsAvailable,
	}
	if req.Category != nil {
		cat := models.Category(*req.Category)
		patch.Category = &cat
	}

	item, err := h.Svc.UpdateMenuItem(ctx, p, rid, id, patch)
	if err != nil {
		return fail(l, "update_menu_item_error", err)
	}

	l.Info("update_menu_item_success", "menu_item_id", item.ID)
	return c.JSON(http.StatusOK, transport.FromMenuItem(*item))
}

func (h *CatalogHTTP) DeleteMenuItem(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "menu_item.delete")

	p, err := principal(c, l, "delete_menu_item_error")
	if err != nil {
		return err
	}
	rid, err := pathID(c, l, "delete_menu_item_error", "id")
	if err != nil {
		return err
	}
	id, err := pathID(c, l, "delete_menu_item_error", "item_id")
	if err != nil {
		return err
	}

	if err := h.Svc.DeleteMenuItem(ctx, p, rid, id); err != nil {
		return fail(l, "delete_menu_item_error", err)
	}

	l.Info("delete_menu_item_success", "menu_item_id", id)
	return c.NoContent(http.StatusNoContent)
}

func (h *CatalogHTTP) SearchMenuItems(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "menu_item.search")

	limit := util.ParseIntDefault(c.QueryParam("size"), defaultSearchLimit)
	if limit <= 0 || limit > util.MaxPageSize {
		limit = defaultSearchLimit
	}

	items, err := h.Svc.SearchMenuItems(ctx, c.QueryParam("q"), limit)
	if err != nil {
		return fail(l, "search_menu_items_error", err)
	}

	l.Info("search_menu_items_success", "hits", len(items))
	return c.JSON(http.StatusOK, transport.FromMenuItems(items))
}
