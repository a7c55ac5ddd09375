// Package policy is the authorization matrix of the service. It is a pure
// function of the acting principal, the action and the ownership fields of
// the target; role membership itself comes from the identity service.
package policy

import (
	"strings"

	"github.com/google/uuid"

	"github.com/Skotchmaster/cravings/internal/apperr"
)

type Role string

const (
	RoleRestaurantOwner Role = "restaurant_owner"
	RoleDeliveryCrew    Role = "delivery_crew"
	RoleCustomer        Role = "customer"
)

// ParseRole accepts both group names ("Restaurant Owner") and slugs.
func ParseRole(s string) (Role, bool) {
	norm := strings.ToLower(strings.TrimSpace(s))
	norm = strings.NewReplacer(" ", "_", "-", "_").Replace(norm)
	switch Role(norm) {
	case RoleRestaurantOwner, RoleDeliveryCrew, RoleCustomer:
		return Role(norm), true
	}
	return "", false
}

func ParseRoles(raw []string) []Role {
	out := make([]Role, 0, len(raw))
	for _, s := range raw {
		if r, ok := ParseRole(s); ok {
			out = append(out, r)
		}
	}
	return out
}

// Principal is the authenticated caller, passed explicitly to every service
// operation.
type Principal struct {
	ID       uuid.UUID
	Username string
	Roles    []Role
	IsStaff  bool
}

func (p Principal) Has(r Role) bool {
	for _, have := range p.Roles {
		if have == r {
			return true
		}
	}
	return false
}

// IsCustomer is true for explicit customers and for users without any
// recognised role, which the identity service treats as customers.
func (p Principal) IsCustomer() bool {
	return p.Has(RoleCustomer) || len(p.Roles) == 0
}

// Display names of the roles as the identity service groups them.
const (
	RoleNameRestaurantOwner = "Restaurant Owner"
	RoleNameDeliveryCrew    = "Delivery Crew"
	RoleNameCustomer        = "Customer"
)

// PrimaryRole is the single role name reported to clients. Staff status is
// not a role.
func PrimaryRole(p Principal) string {
	switch {
	case p.Has(RoleRestaurantOwner):
		return RoleNameRestaurantOwner
	case p.Has(RoleDeliveryCrew):
		return RoleNameDeliveryCrew
	default:
		return RoleNameCustomer
	}
}

type Action string

const (
	ActionRead           Action = "read"
	ActionWrite          Action = "write"
	ActionAssignDelivery Action = "assign_delivery"
	ActionUpdateStatus   Action = "update_status"
	ActionCancel         Action = "cancel"
)

// Target describes the ownership of the entity an action is applied to.
type Target interface {
	target()
}

// NewRestaurant is the target of restaurant creation.
type NewRestaurant struct{}

type RestaurantTarget struct {
	OwnerID uuid.UUID
}

type MenuItemTarget struct {
	RestaurantOwnerID uuid.UUID
	Available         bool
}

type CartTarget struct {
	CustomerID uuid.UUID
}

// NewOrder is the target of checkout.
type NewOrder struct{}

type OrderTarget struct {
	CustomerID        uuid.UUID
	RestaurantOwnerID uuid.UUID
	DeliveryCrewID    *uuid.UUID
}

func (NewRestaurant) target()    {}
func (RestaurantTarget) target() {}
func (MenuItemTarget) target()   {}
func (CartTarget) target()       {}
func (NewOrder) target()         {}
func (OrderTarget) target()      {}

func Allowed(p Principal, a Action, t Target) bool {
	if p.IsStaff {
		return true
	}

	switch t := t.(type) {
	case NewRestaurant:
		return a == ActionWrite && p.Has(RoleRestaurantOwner)

	case RestaurantTarget:
		switch a {
		case ActionRead:
			return true
		case ActionWrite:
			return p.Has(RoleRestaurantOwner) && t.OwnerID == p.ID
		}

	case MenuItemTarget:
		owns := p.Has(RoleRestaurantOwner) && t.RestaurantOwnerID == p.ID
		switch a {
		case ActionRead:
			return t.Available || owns
		case ActionWrite:
			return owns
		}

	case CartTarget:
		if a == ActionRead || a == ActionWrite {
			return p.IsCustomer() && t.CustomerID == p.ID
		}

	case NewOrder:
		return a == ActionWrite && p.IsCustomer()

	case OrderTarget:
		ownsRestaurant := p.Has(RoleRestaurantOwner) && t.RestaurantOwnerID == p.ID
		assigned := p.Has(RoleDeliveryCrew) && t.DeliveryCrewID != nil && *t.DeliveryCrewID == p.ID
		switch a {
		case ActionRead:
			return t.CustomerID == p.ID || ownsRestaurant || assigned
		case ActionAssignDelivery, ActionCancel:
			return ownsRestaurant
		case ActionUpdateStatus:
			return assigned
		}
	}

	return false
}

// Authorize is Allowed reported as an apperr.ErrForbidden error.
func Authorize(p Principal, a Action, t Target) error {
	if Allowed(p, a, t) {
		return nil
	}
	return apperr.Forbidden("you do not have permission to %s this resource", strings.ReplaceAll(string(a), "_", " "))
}

type OrderScopeKind int

const (
	ScopeCustomer OrderScopeKind = iota
	ScopeRestaurantOwner
	ScopeDeliveryCrew
)

// OrderScope is the set of orders a principal may list: every order when
// All is set, otherwise the union of Kinds for UserID.
type OrderScope struct {
	All    bool
	UserID uuid.UUID
	Kinds  []OrderScopeKind
}

// OrdersVisibleTo matches Allowed for ActionRead on orders. Everybody sees
// the orders they placed.
func OrdersVisibleTo(p Principal) OrderScope {
	if p.IsStaff {
		return OrderScope{All: true}
	}
	scope := OrderScope{UserID: p.ID, Kinds: []OrderScopeKind{ScopeCustomer}}
	if p.Has(RoleRestaurantOwner) {
		scope.Kinds = append(scope.Kinds, ScopeRestaurantOwner)
	}
	if p.Has(RoleDeliveryCrew) {
		scope.Kinds = append(scope.Kinds, ScopeDeliveryCrew)
	}
	return scope
}

// RestaurantsVisibleTo returns the owner filter for restaurant listings:
// owners see their own restaurants, everybody else sees all of them.
func RestaurantsVisibleTo(p Principal) *uuid.UUID {
	if !p.IsStaff && p.Has(RoleRestaurantOwner) {
		id := p.ID
		return &id
	}
	return nil
}
