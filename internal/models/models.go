package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Category string

const (
	CategoryAppetizer Category = "appetizer"
	CategoryMain      Category = "main"
	CategoryDessert   Category = "dessert"
	CategoryBeverage  Category = "beverage"
	CategorySide      Category = "side"
	CategorySpecial   Category = "special"
)

func (c Category) Valid() bool {
	switch c {
	case CategoryAppetizer, CategoryMain, CategoryDessert, CategoryBeverage, CategorySide, CategorySpecial:
		return true
	}
	return false
}

type OrderStatus string

const (
	OrderStatusPreparing      OrderStatus = "preparing"
	OrderStatusOutForDelivery OrderStatus = "out_for_delivery"
	OrderStatusDelivered      OrderStatus = "delivered"
	OrderStatusCancelled      OrderStatus = "cancelled"
)

func (s OrderStatus) Terminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCancelled
}

type Restaurant struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"          json:"id"`
	Name        string    `gorm:"not null"                      json:"name"`
	Description string    `gorm:"type:text"                     json:"description"`
	OpeningTime string    `gorm:"type:varchar(5);not null"      json:"opening_time"`
	ClosingTime string    `gorm:"type:varchar(5);not null"      json:"closing_time"`
	OwnerID     uuid.UUID `gorm:"type:uuid;index;not null"      json:"owner_id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	MenuItems []MenuItem `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}

type MenuItem struct {
	ID           uuid.UUID       `gorm:"type:uuid;primaryKey"             json:"id"`
	RestaurantID uuid.UUID       `gorm:"type:uuid;index;not null"         json:"restaurant_id"`
	Name         string          `gorm:"not null"                         json:"name"`
	Description  string          `gorm:"type:text"                        json:"description"`
	Price        decimal.Decimal `gorm:"type:numeric(10,2);not null"      json:"price"`
	ImageURL     string          `json:"image_url"`
	IsAvailable  bool            `gorm:"not null"                         json:"is_available"`
	Category     Category        `gorm:"type:varchar(20);not null"        json:"category"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

type Cart struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"           json:"id"`
	CustomerID uuid.UUID `gorm:"type:uuid;uniqueIndex;not null" json:"customer_id"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`

	Items []CartItem `gorm:"constraint:OnDelete:CASCADE" json:"items"`
}

type CartItem struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"                                json:"id"`
	CartID     uuid.UUID `gorm:"type:uuid;uniqueIndex:idx_cart_menu_item;not null"  json:"cart_id"`
	MenuItemID uuid.UUID `gorm:"type:uuid;uniqueIndex:idx_cart_menu_item;not null"  json:"menu_item_id"`
	Quantity   uint      `gorm:"not null;check:quantity>0"                          json:"quantity"`
	CreatedAt  time.Time `json:"created_at"`

	MenuItem *MenuItem `gorm:"constraint:OnDelete:CASCADE" json:"menu_item,omitempty"`
}

// Subtotal uses the live catalog price; MenuItem must be preloaded.
func (ci CartItem) Subtotal() decimal.Decimal {
	if ci.MenuItem == nil {
		return decimal.Zero
	}
	return ci.MenuItem.Price.Mul(decimal.NewFromInt(int64(ci.Quantity)))
}

type Order struct {
	ID              uuid.UUID       `gorm:"type:uuid;primaryKey"             json:"id"`
	CustomerID      uuid.UUID       `gorm:"type:uuid;index;not null"         json:"customer_id"`
	RestaurantID    uuid.UUID       `gorm:"type:uuid;index;not null"         json:"restaurant_id"`
	DeliveryCrewID  *uuid.UUID      `gorm:"type:uuid;index"                  json:"delivery_crew_id"`
	Status          OrderStatus     `gorm:"type:varchar(20);index;not null"  json:"status"`
	Total           decimal.Decimal `gorm:"type:numeric(10,2);not null"      json:"total"`
	DeliveryAddress string          `gorm:"type:text;not null"               json:"delivery_address"`
	OrderDate       time.Time       `gorm:"not null"                         json:"order_date"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`

	Restaurant *Restaurant `gorm:"constraint:OnDelete:RESTRICT" json:"-"`
	Items      []OrderItem `gorm:"constraint:OnDelete:CASCADE" json:"items"`
}

// OrderItem is a frozen copy of a cart line. It keeps menu_item_id without a
// foreign key so catalog deletes never touch order history.
type OrderItem struct {
	ID           uuid.UUID       `gorm:"type:uuid;primaryKey"        json:"id"`
	OrderID      uuid.UUID       `gorm:"type:uuid;index;not null"    json:"order_id"`
	MenuItemID   uuid.UUID       `gorm:"type:uuid;not null"          json:"menu_item_id"`
	MenuItemName string          `gorm:"not null"                    json:"menu_item_name"`
	Quantity     uint            `gorm:"not null;check:quantity>0"   json:"quantity"`
	UnitPrice    decimal.Decimal `gorm:"type:numeric(10,2);not null" json:"unit_price"`
}

func (oi OrderItem) Subtotal() decimal.Decimal {
	return oi.UnitPrice.Mul(decimal.NewFromInt(int64(oi.Quantity)))
}

func (r *Restaurant) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

func (m *MenuItem) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}

func (c *Cart) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

func (ci *CartItem) BeforeCreate(tx *gorm.DB) error {
	if ci.ID == uuid.Nil {
		ci.ID = uuid.New()
	}
	return nil
}

func (o *Order) BeforeCreate(tx *gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}

func (oi *OrderItem) BeforeCreate(tx *gorm.DB) error {
	if oi.ID == uuid.Nil {
		oi.ID = uuid.New()
	}
	return nil
}

func (CartItem) TableName() string {
	return "cart_items"
}

func (OrderItem) TableName() string {
	return "order_items"
}

func All() []any {
	return []any{&Restaurant{}, &MenuItem{}, &Cart{}, &CartItem{}, &Order{}, &OrderItem{}}
}
