package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/cravings/internal/apperr"
	"github.com/Skotchmaster/cravings/internal/service"
	"github.com/Skotchmaster/cravings/internal/transport"
	"github.com/Skotchmaster/cravings/pkg/logging"
)

type CartHTTP struct {
	Svc *service.CartService
}

func (h *CartHTTP) GetCart(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "get.cart")

	p, err := principal(c, l, "get_cart_error")
	if err != nil {
		return err
	}

	view, err := h.Svc.GetCart(ctx, p)
	if err != nil {
		return fail(l, "get_cart_error", err)
	}

	l.Info("cart successfully got")
	return c.JSON(http.StatusOK, transport.FromCart(view.Cart, view.Items, view.Total))
}

// ReplaceCart swaps the whole content of the cart for the given lines.
func (h *CartHTTP) ReplaceCart(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "replace.cart")

	p, err := principal(c, l, "replace_cart_error")
	if err != nil {
		return err
	}

	var req transport.ReplaceCartRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(l, "replace_cart_error", "invalid body", err)
	}

	lines := make([]service.CartLine, 0, len(req.Items))
	for _, it := range req.Items {
		lines = append(lines, service.CartLine{MenuItemID: it.MenuItem, Quantity: it.Quantity})
	}

	view, err := h.Svc.ReplaceItems(ctx, p, lines)
	if err != nil {
		return fail(l, "replace_cart_error", err)
	}

	l.Info("cart successfully replaced", "lines", len(view.Items))
	return c.JSON(http.StatusOK, transport.FromCart(view.Cart, view.Items, view.Total))
}

func (h *CartHTTP) ListItems(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "list.cart_items")

	p, err := principal(c, l, "list_cart_items_error")
	if err != nil {
		return err
	}

	items, err := h.Svc.ListItems(ctx, p)
	if err != nil {
		return fail(l, "list_cart_items_error", err)
	}
	return c.JSON(http.StatusOK, transport.FromCartItems(items))
}

func (h *CartHTTP) GetItem(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "get.cart_item")

	p, err := principal(c, l, "get_cart_item_error")
	if err != nil {
		return err
	}
	id, err := pathID(c, l, "get_cart_item_error", "id")
	if err != nil {
		return err
	}

	item, err := h.Svc.GetItem(ctx, p, id)
	if err != nil {
		return fail(l, "get_cart_item_error", err)
	}
	return c.JSON(http.StatusOK, transport.FromCartItem(*item))
}

func (h *CartHTTP) AddToCart(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "add.cart")

	p, err := principal(c, l, "add_to_cart_error")
	if err != nil {
		return err
	}

	var req transport.AddCartItemRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(l, "add_to_cart_error", "invalid body", err)
	}

	item, err := h.Svc.AddItem(ctx, p, req.MenuItem, req.Quantity)
	if err != nil {
		return fail(l, "add_to_cart_error", err)
	}

	l.Info("item successfully added to cart", "menu_item_id", item.MenuItemID, "quantity", item.Quantity)
	return c.JSON(http.StatusCreated, transport.FromCartItem(*item))
}

func (h *CartHTTP) UpdateItem(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "update.cart_item")

	p, err := principal(c, l, "update_cart_item_error")
	if err != nil {
		return err
	}
	id, err := pathID(c, l, "update_cart_item_error", "id")
	if err != nil {
		return err
	}

	var req transport.UpdateCartItemRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(l, "update_cart_item_error", "invalid body", err)
	}
	if req.QuantityDelta == nil || *req.QuantityDelta == 0 {
		return fail(l, "update_cart_item_error", apperr.Validation("quantity_delta must be a non-zero integer"))
	}

	item, err := h.Svc.UpdateItemQuantity(ctx, p, id, *req.QuantityDelta)
	if err != nil {
		return fail(l, "update_cart_item_error", err)
	}

	l.Info("cart item successfully updated", "cart_item_id", id, "quantity", item.Quantity)
	return c.JSON(http.StatusOK, transport.FromCartItem(*item))
}

func (h *CartHTTP) RemoveItem(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "remove.cart_item")

	p, err := principal(c, l, "remove_cart_item_error")
	if err != nil {
		return err
	}
	id, err := pathID(c, l, "remove_cart_item_error", "id")
	if err != nil {
		return err
	}

	if err := h.Svc.RemoveItem(ctx, p, id); err != nil {
		return fail(l, "remove_cart_item_error", err)
	}

	l.Info("cart item successfully removed", "cart_item_id", id)
	return c.NoContent(http.StatusNoContent)
}
