package transport

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type RestaurantRequest struct {
	Name        *string    `json:"name"`
	Description *string    `json:"description"`
	OpeningTime *string    `json:"opening_time"`
	ClosingTime *string    `json:"closing_time"`
	OwnerID     *uuid.UUID `json:"owner"`
}

type MenuItemRequest struct {
	Name        *string          `json:"name"`
	Description *string          `json:"description"`
	Price       *decimal.Decimal `json:"price"`
	ImageURL    *string          `json:"image_url"`
	IsAvailable *bool            `json:"is_available"`
	Category    *string          `json:"category"`
}

type AddCartItemRequest struct {
	MenuItem uuid.UUID `json:"menu_item"`
	Quantity int       `json:"quantity"`
}

// UpdateCartItemRequest changes a line by a relative amount.
type UpdateCartItemRequest struct {
	QuantityDelta *int `json:"quantity_delta"`
}

type ReplaceCartRequest struct {
	Items []AddCartItemRequest `json:"items"`
}

type CheckoutRequest struct {
	DeliveryAddress string `json:"delivery_address"`
}

type UpdateOrderRequest struct {
	DeliveryAddress *string `json:"delivery_address"`
	Status          *string `json:"status"`
}

type AssignDeliveryRequest struct {
	DeliveryCrew string `json:"delivery_crew"`
}

type ProfileRequest struct {
	Email     *string `json:"email"`
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
}

type RestaurantResponse struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	OpeningTime string    `json:"opening_time"`
	ClosingTime string    `json:"closing_time"`
	OwnerID     uuid.UUID `json:"owner"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Money fields are rendered as fixed two-decimal strings.
type MenuItemResponse struct {
	ID           uuid.UUID `json:"id"`
	RestaurantID uuid.UUID `json:"restaurant"`
	Name         string    `json:"name"`
	Description  string    `json:"description"`
	Price        string    `json:"price"`
	ImageURL     string    `json:"image_url"`
	IsAvailable  bool      `json:"is_available"`
	Category     string    `json:"category"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type CartItemResponse struct {
	ID         uuid.UUID         `json:"id"`
	MenuItemID uuid.UUID         `json:"menu_item_id"`
	MenuItem   *MenuItemResponse `json:"menu_item,omitempty"`
	Quantity   uint              `json:"quantity"`
	UnitPrice  string            `json:"unit_price"`
	Subtotal   string            `json:"subtotal"`
	CreatedAt  time.Time         `json:"created_at"`
}

type CartResponse struct {
	ID         uuid.UUID          `json:"id"`
	CustomerID uuid.UUID          `json:"customer"`
	Items      []CartItemResponse `json:"items"`
	Total      string             `json:"total"`
}

type OrderItemResponse struct {
	ID           uuid.UUID `json:"id"`
	MenuItemID   uuid.UUID `json:"menu_item_id"`
	MenuItemName string    `json:"menu_item_name"`
	Quantity     uint      `json:"quantity"`
	UnitPrice    string    `json:"unit_price"`
	Subtotal     string    `json:"subtotal"`
}

type OrderResponse struct {
	ID              uuid.UUID           `json:"id"`
	CustomerID      uuid.UUID           `json:"customer"`
	RestaurantID    uuid.UUID           `json:"restaurant"`
	RestaurantName  string              `json:"restaurant_name,omitempty"`
	DeliveryCrewID  *uuid.UUID          `json:"delivery_crew"`
	Status          string              `json:"status"`
	Total           string              `json:"total"`
	DeliveryAddress string              `json:"delivery_address"`
	OrderDate       time.Time           `json:"order_date"`
	Items           []OrderItemResponse `json:"items"`
}

type PageMeta struct {
	Page       int   `json:"page"`
	Size       int   `json:"size"`
	Total      int64 `json:"total"`
	TotalPages int64 `json:"total_pages"`
	HasPrev    bool  `json:"has_prev"`
	HasNext    bool  `json:"has_next"`
}

type Page[T any] struct {
	Data []T      `json:"data"`
	Meta PageMeta `json:"meta"`
}

type RoleResponse struct {
	Role string `json:"role"`
}

type ErrorResponse struct {
	Status  string `json:"status"`
	Error   string `json:"error"`
	Message string `json:"message"`
}
