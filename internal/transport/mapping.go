package transport

import (
	"github.com/shopspring/decimal"

	"github.com/Skotchmaster/cravings/internal/models"
	"github.com/Skotchmaster/cravings/internal/util"
)

func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}

func FromRestaurant(r models.Restaurant) RestaurantResponse {
	return RestaurantResponse{
		ID:          r.ID,
		Name:        r.Name,
		Description: r.Description,
		OpeningTime: r.OpeningTime,
		ClosingTime: r.ClosingTime,
		OwnerID:     r.OwnerID,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

func FromRestaurants(rs []models.Restaurant) []RestaurantResponse {
	out := make([]RestaurantResponse, 0, len(rs))
	for _, r := range rs {
		out = append(out, FromRestaurant(r))
	}
	return out
}

func FromMenuItem(m models.MenuItem) MenuItemResponse {
	return MenuItemResponse{
		ID:           m.ID,
		RestaurantID: m.RestaurantID,
		Name:         m.Name,
		Description:  m.Description,
		Price:        money(m.Price),
		ImageURL:     m.ImageURL,
		IsAvailable:  m.IsAvailable,
		Category:     string(m.Category),
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

func FromMenuItems(items []models.MenuItem) []MenuItemResponse {
	out := make([]MenuItemResponse, 0, len(items))
	for _, m := range items {
		out = append(out, FromMenuItem(m))
	}
	return out
}

func FromCartItem(ci models.CartItem) CartItemResponse {
	resp := CartItemResponse{
		ID:         ci.ID,
		MenuItemID: ci.MenuItemID,
		Quantity:   ci.Quantity,
		UnitPrice:  money(decimal.Zero),
		Subtotal:   money(ci.Subtotal()),
		CreatedAt:  ci.CreatedAt,
	}
	if ci.MenuItem != nil {
		m := FromMenuItem(*ci.MenuItem)
		resp.MenuItem = &m
		resp.UnitPrice = money(ci.MenuItem.Price)
	}
	return resp
}

func FromCartItems(items []models.CartItem) []CartItemResponse {
	out := make([]CartItemResponse, 0, len(items))
	for _, ci := range items {
		out = append(out, FromCartItem(ci))
	}
	return out
}

func FromCart(cart models.Cart, items []models.CartItem, total decimal.Decimal) CartResponse {
	return CartResponse{
		ID:         cart.ID,
		CustomerID: cart.CustomerID,
		Items:      FromCartItems(items),
		Total:      money(total),
	}
}

func FromOrder(o models.Order) OrderResponse {
	resp := OrderResponse{
		ID:              o.ID,
		CustomerID:      o.CustomerID,
		RestaurantID:    o.RestaurantID,
		DeliveryCrewID:  o.DeliveryCrewID,
		Status:          string(o.Status),
		Total:           money(o.Total),
		DeliveryAddress: o.DeliveryAddress,
		OrderDate:       o.OrderDate,
		Items:           make([]OrderItemResponse, 0, len(o.Items)),
	}
	if o.Restaurant != nil {
		resp.RestaurantName = o.Restaurant.Name
	}
	for _, it := range o.Items {
		resp.Items = append(resp.Items, OrderItemResponse{
			ID:           it.ID,
			MenuItemID:   it.MenuItemID,
			MenuItemName: it.MenuItemName,
			Quantity:     it.Quantity,
			UnitPrice:    money(it.UnitPrice),
			Subtotal:     money(it.Subtotal()),
		})
	}
	return resp
}

func FromOrders(orders []models.Order) []OrderResponse {
	out := make([]OrderResponse, 0, len(orders))
	for _, o := range orders {
		out = append(out, FromOrder(o))
	}
	return out
}

// NewPage wraps one page of rows with the pagination metadata.
func NewPage[T any](data []T, page, offset, limit int, total int64) Page[T] {
	return Page[T]{
		Data: data,
		Meta: PageMeta{
			Page:       page,
			Size:       limit,
			Total:      total,
			TotalPages: util.TotalPages(total, limit),
			HasPrev:    page > 1,
			HasNext:    int64(offset+limit) < total,
		},
	}
}
