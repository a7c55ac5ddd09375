package httpserver

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/cravings/internal/apperr"
	"github.com/Skotchmaster/cravings/internal/models"
	"github.com/Skotchmaster/cravings/internal/service"
	"github.com/Skotchmaster/cravings/internal/transport"
	"github.com/Skotchmaster/cravings/internal/util"
	"github.com/Skotchmaster/cravings/pkg/logging"
)

type OrderHTTP struct {
	Svc *service.OrderService
}

func (h *OrderHTTP) CreateOrder(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "create.order")

	p, err := principal(c, l, "create_order_error")
	if err != nil {
		return err
	}

	var req transport.CheckoutRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(l, "create_order_error", "invalid body", err)
	}

	order, err := h.Svc.Checkout(ctx, p, req.DeliveryAddress)
	if err != nil {
		return fail(l, "create_order_error", err)
	}

	l.Info("order successfully created", "order_id", order.ID, "total", order.Total.StringFixed(2))
	return c.JSON(http.StatusCreated, transport.FromOrder(*order))
}

func (h *OrderHTTP) ListOrders(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "list.orders")

	p, err := principal(c, l, "list_orders_error")
	if err != nil {
		return err
	}

	page := util.ParseIntDefault(c.QueryParam("page"), 1)
	size := util.ParseIntDefault(c.QueryParam("size"), util.DefaultPageSize)
	offset, limit := util.Calculate(page, size)

	total, orders, err := h.Svc.ListOrders(ctx, p, offset, limit)
	if err != nil {
		return fail(l, "list_orders_error", err)
	}

	l.Info("orders successfully listed", "total", total)
	return c.JSON(http.StatusOK, transport.NewPage(transport.FromOrders(orders), page, offset, limit, total))
}

func (h *OrderHTTP) GetOrder(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "get.order")

	p, err := principal(c, l, "get_order_error")
	if err != nil {
		return err
	}
	id, err := pathID(c, l, "get_order_error", "id")
	if err != nil {
		return err
	}

	order, err := h.Svc.GetOrder(ctx, p, id)
	if err != nil {
		return fail(l, "get_order_error", err)
	}
	return c.JSON(http.StatusOK, transport.FromOrder(*order))
}

// UpdateOrder serves PUT and PATCH on an order.
func (h *OrderHTTP) UpdateOrder(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "update.order")

	p, err := principal(c, l, "update_order_error")
	if err != nil {
		return err
	}
	id, err := pathID(c, l, "update_order_error", "id")
	if err != nil {
		return err
	}

	var req transport.UpdateOrderRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(l, "update_order_error", "invalid body", err)
	}

	patch := service.OrderPatch{DeliveryAddress: req.DeliveryAddress}
	if req.Status != nil {
		st := models.OrderStatus(*req.Status)
		patch.Status = &st
	}

	order, err := h.Svc.UpdateOrder(ctx, p, id, patch)
	if err != nil {
		return fail(l, "update_order_error", err)
	}

	l.Info("order successfully updated", "order_id", order.ID, "status", order.Status)
	return c.JSON(http.StatusOK, transport.FromOrder(*order))
}

func (h *OrderHTTP) DeleteOrder(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "delete.order")

	p, err := principal(c, l, "delete_order_error")
	if err != nil {
		return err
	}
	id, err := pathID(c, l, "delete_order_error", "id")
	if err != nil {
		return err
	}

	if err := h.Svc.DeleteOrder(ctx, p, id); err != nil {
		return fail(l, "delete_order_error", err)
	}

	l.Info("order successfully deleted", "order_id", id)
	return c.NoContent(http.StatusNoContent)
}

func (h *OrderHTTP) AssignDelivery(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "assign.order")

	p, err := principal(c, l, "assign_delivery_error")
	if err != nil {
		return err
	}
	id, err := pathID(c, l, "assign_delivery_error", "id")
	if err != nil {
		return err
	}

	var req transport.AssignDeliveryRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(l, "assign_delivery_error", "invalid body", err)
	}
	if req.DeliveryCrew == "" {
		return fail(l, "assign_delivery_error", apperr.Validation("delivery_crew is required"))
	}
	crewID, err := uuid.Parse(req.DeliveryCrew)
	if err != nil {
		return fail(l, "assign_delivery_error", apperr.Validation("invalid delivery crew id"))
	}

	order, err := h.Svc.AssignDelivery(ctx, p, id, crewID)
	if err != nil {
		return fail(l, "assign_delivery_error", err)
	}

	l.Info("delivery successfully assigned", "order_id", order.ID, "delivery_crew_id", crewID)
	return c.JSON(http.StatusOK, transport.FromOrder(*order))
}

func (h *OrderHTTP) MarkDelivered(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "deliver.order")

	p, err := principal(c, l, "mark_delivered_error")
	if err != nil {
		return err
	}
	id, err := pathID(c, l, "mark_delivered_error", "id")
	if err != nil {
		return err
	}

	order, err := h.Svc.MarkDelivered(ctx, p, id)
	if err != nil {
		return fail(l, "mark_delivered_error", err)
	}

	l.Info("order successfully delivered", "order_id", order.ID)
	return c.JSON(http.StatusOK, transport.FromOrder(*order))
}

func (h *OrderHTTP) CancelOrder(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "cancel.order")

	p, err := principal(c, l, "cancel_order_error")
	if err != nil {
		return err
	}
	id, err := pathID(c, l, "cancel_order_error", "id")
	if err != nil {
		return err
	}

	order, err := h.Svc.Cancel(ctx, p, id)
	if err != nil {
		return fail(l, "cancel_order_error", err)
	}

	l.Info("order successfully cancelled", "order_id", order.ID)
	return c.JSON(http.StatusOK, transport.FromOrder(*order))
}
