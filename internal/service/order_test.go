package service

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/Skotchmaster/cravings/internal/apperr"
	"github.com/Skotchmaster/cravings/internal/models"
	"github.com/Skotchmaster/cravings/internal/policy"
	"github.com/Skotchmaster/cravings/internal/repo"
	"github.com/Skotchmaster/cravings/pkg/authclient"
)

type orderWorld struct {
	*fixture
	owner    policy.Principal
	customer policy.Principal
	rest     *models.Restaurant
	itemA    *models.MenuItem
	itemB    *models.MenuItem
}

func newOrderWorld(t *testing.T) *orderWorld {
	f := newFixture(t)
	o := owner()
	rest := f.restaurant(t, o, "Corner Kitchen")
	return &orderWorld{
		fixture:  f,
		owner:    o,
		customer: customer(),
		rest:     rest,
		itemA:    f.menuItem(t, o, rest.ID, "ItemA", "5.00"),
		itemB:    f.menuItem(t, o, rest.ID, "ItemB", "3.00"),
	}
}

func (w *orderWorld) placeOrder(t *testing.T) *models.Order {
	t.Helper()
	ctx := context.Background()
	_, err := w.cart.AddItem(ctx, w.customer, w.itemA.ID, 2)
	require.NoError(t, err)
	_, err = w.cart.AddItem(ctx, w.customer, w.itemB.ID, 1)
	require.NoError(t, err)

	order, err := w.orders.Checkout(ctx, w.customer, "Baker st. 221b")
	require.NoError(t, err)
	return order
}

func TestCheckout_SnapshotsPrices(t *testing.T) {
	w := newOrderWorld(t)
	ctx := context.Background()
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	w.orders.Now = func() time.Time { return fixed }

	order := w.placeOrder(t)

	assert.Equal(t, "13.00", order.Total.StringFixed(2))
	assert.Equal(t, models.OrderStatusPreparing, order.Status)
	assert.Equal(t, w.rest.ID, order.RestaurantID)
	assert.Equal(t, w.customer.ID, order.CustomerID)
	assert.Nil(t, order.DeliveryCrewID)
	assert.True(t, fixed.Equal(order.OrderDate))
	require.Len(t, order.Items, 2)

	view, err := w.cart.GetCart(ctx, w.customer)
	require.NoError(t, err)
	assert.Empty(t, view.Items, "checkout empties the cart")

	newPrice := decimal.RequireFromString("6.00")
	_, err = w.catalog.UpdateMenuItem(ctx, w.owner, w.rest.ID, w.itemA.ID, MenuItemPatch{Price: &newPrice})
	require.NoError(t, err)

	got, err := w.orders.GetOrder(ctx, w.customer, order.ID)
	require.NoError(t, err)
	assert.Equal(t, "13.00", got.Total.StringFixed(2))

	sum := decimal.Zero
	for _, it := range got.Items {
		sum = sum.Add(it.Subtotal())
		if it.MenuItemID == w.itemA.ID {
			assert.Equal(t, "5.00", it.UnitPrice.StringFixed(2))
			assert.EqualValues(t, 2, it.Quantity)
			assert.Equal(t, "ItemA", it.MenuItemName)
		}
	}
	assert.True(t, sum.Equal(got.Total))
}

func TestCheckout_EmptyCart(t *testing.T) {
	w := newOrderWorld(t)
	ctx := context.Background()

	_, err := w.orders.Checkout(ctx, w.customer, "Somewhere 1")
	assert.ErrorIs(t, err, apperr.ErrValidation)
	assert.Equal(t, "cart is empty", apperr.Reason(err))

	total, _, err := w.orders.ListOrders(ctx, staff(), 0, 10)
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestCheckout_Validation(t *testing.T) {
	w := newOrderWorld(t)
	ctx := context.Background()

	_, err := w.cart.AddItem(ctx, w.customer, w.itemA.ID, 1)
	require.NoError(t, err)

	_, err = w.orders.Checkout(ctx, w.customer, "   ")
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = w.orders.Checkout(ctx, w.crew(t), "Somewhere 1")
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	off := false
	_, err = w.catalog.UpdateMenuItem(ctx, w.owner, w.rest.ID, w.itemA.ID, MenuItemPatch{IsAvailable: &off})
	require.NoError(t, err)

	_, err = w.orders.Checkout(ctx, w.customer, "Somewhere 1")
	assert.ErrorIs(t, err, apperr.ErrValidation)

	items, err := w.cart.ListItems(ctx, w.customer)
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestCheckout_RollsBackOnFailure(t *testing.T) {
	w := newOrderWorld(t)
	ctx := context.Background()

	_, err := w.cart.AddItem(ctx, w.customer, w.itemA.ID, 2)
	require.NoError(t, err)

	boom := errors.New("disk full")
	require.NoError(t, w.repo.DB.Callback().Create().Before("gorm:create").Register("test:fail_order_items", func(tx *gorm.DB) {
		if tx.Statement.Table == "order_items" {
			_ = tx.AddError(boom)
		}
	}))

	_, err = w.orders.Checkout(ctx, w.customer, "Somewhere 1")
	require.ErrorIs(t, err, boom)
	assert.Nil(t, apperr.Kind(err))

	require.NoError(t, w.repo.DB.Callback().Create().Remove("test:fail_order_items"))

	var orders int64
	require.NoError(t, w.repo.DB.Model(&models.Order{}).Count(&orders).Error)
	assert.Zero(t, orders, "order insert rolled back")

	items, err := w.cart.ListItems(ctx, w.customer)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.EqualValues(t, 2, items[0].Quantity)
}

func TestCheckout_PublishesEvent(t *testing.T) {
	w := newOrderWorld(t)
	pub := &mockPublisher{}
	w.orders.Events = pub

	pub.On("PublishOrderEvent", mock.Anything, EventOrderCreated, mock.MatchedBy(func(o *models.Order) bool {
		return o.Total.StringFixed(2) == "13.00"
	})).Return(errors.New("broker down")).Once()

	order := w.placeOrder(t)
	assert.NotEqual(t, uuid.Nil, order.ID, "publish failures do not fail checkout")
	pub.AssertExpectations(t)
}

func TestOrder_DeliveryLifecycle(t *testing.T) {
	w := newOrderWorld(t)
	ctx := context.Background()
	pub := &mockPublisher{}
	pub.On("PublishOrderEvent", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	w.orders.Events = pub

	order := w.placeOrder(t)
	rider := w.crew(t)
	otherRider := w.crew(t)

	_, err := w.orders.MarkDelivered(ctx, rider, order.ID)
	assert.ErrorIs(t, err, apperr.ErrForbidden, "not assigned yet")

	assigned, err := w.orders.AssignDelivery(ctx, w.owner, order.ID, rider.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusOutForDelivery, assigned.Status)
	require.NotNil(t, assigned.DeliveryCrewID)
	assert.Equal(t, rider.ID, *assigned.DeliveryCrewID)

	_, err = w.orders.MarkDelivered(ctx, otherRider, order.ID)
	assert.ErrorIs(t, err, apperr.ErrForbidden)
	_, err = w.orders.MarkDelivered(ctx, staff(), order.ID)
	assert.ErrorIs(t, err, apperr.ErrForbidden)
	_, err = w.orders.MarkDelivered(ctx, w.customer, order.ID)
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	delivered, err := w.orders.MarkDelivered(ctx, rider, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusDelivered, delivered.Status)

	_, err = w.orders.MarkDelivered(ctx, rider, order.ID)
	assert.ErrorIs(t, err, apperr.ErrState)

	_, err = w.orders.AssignDelivery(ctx, w.owner, order.ID, otherRider.ID)
	assert.ErrorIs(t, err, apperr.ErrState)

	_, err = w.orders.Cancel(ctx, w.owner, order.ID)
	assert.ErrorIs(t, err, apperr.ErrState)

	pub.AssertCalled(t, "PublishOrderEvent", mock.Anything, EventOrderDeliveryAssigned, mock.Anything)
	pub.AssertCalled(t, "PublishOrderEvent", mock.Anything, EventOrderDelivered, mock.Anything)
	pub.AssertNumberOfCalls(t, "PublishOrderEvent", 3)
}

func TestOrder_MarkDeliveredRequiresOutForDelivery(t *testing.T) {
	w := newOrderWorld(t)
	ctx := context.Background()

	order := w.placeOrder(t)
	rider := w.crew(t)
	require.NoError(t, w.repo.UpdateOrderFields(ctx, order.ID, map[string]any{"delivery_crew_id": rider.ID}))

	_, err := w.orders.MarkDelivered(ctx, rider, order.ID)
	assert.ErrorIs(t, err, apperr.ErrState)
}

func TestOrder_AssignDelivery_Checks(t *testing.T) {
	w := newOrderWorld(t)
	ctx := context.Background()
	order := w.placeOrder(t)
	rider := w.crew(t)

	notCrew := uuid.New()
	w.dir.add(&authclient.User{ID: notCrew, Username: "eater", Roles: []string{"Customer"}})

	_, err := w.orders.AssignDelivery(ctx, w.owner, order.ID, uuid.Nil)
	assert.ErrorIs(t, err, apperr.ErrValidation)
	_, err = w.orders.AssignDelivery(ctx, w.owner, order.ID, uuid.New())
	assert.ErrorIs(t, err, apperr.ErrValidation)
	_, err = w.orders.AssignDelivery(ctx, w.owner, order.ID, notCrew)
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = w.orders.AssignDelivery(ctx, w.customer, order.ID, rider.ID)
	assert.ErrorIs(t, err, apperr.ErrForbidden)
	_, err = w.orders.AssignDelivery(ctx, owner(), order.ID, rider.ID)
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	_, err = w.orders.AssignDelivery(ctx, w.owner, uuid.New(), rider.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = w.orders.AssignDelivery(ctx, staff(), order.ID, rider.ID)
	require.NoError(t, err)

	second := w.crew(t)
	reassigned, err := w.orders.AssignDelivery(ctx, w.owner, order.ID, second.ID)
	require.NoError(t, err)
	assert.Equal(t, second.ID, *reassigned.DeliveryCrewID)
}

func TestOrder_Cancel(t *testing.T) {
	w := newOrderWorld(t)
	ctx := context.Background()
	order := w.placeOrder(t)

	_, err := w.orders.Cancel(ctx, w.customer, order.ID)
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	cancelled, err := w.orders.Cancel(ctx, w.owner, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCancelled, cancelled.Status)

	_, err = w.orders.AssignDelivery(ctx, w.owner, order.ID, w.crew(t).ID)
	assert.ErrorIs(t, err, apperr.ErrState)
}

func TestOrder_Visibility(t *testing.T) {
	w := newOrderWorld(t)
	ctx := context.Background()
	order := w.placeOrder(t)
	rider := w.crew(t)

	_, err := w.orders.GetOrder(ctx, customer(), order.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	_, err = w.orders.GetOrder(ctx, rider, order.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	_, err = w.orders.GetOrder(ctx, w.owner, order.ID)
	assert.NoError(t, err)

	_, err = w.orders.AssignDelivery(ctx, w.owner, order.ID, rider.ID)
	require.NoError(t, err)

	total, orders, err := w.orders.ListOrders(ctx, rider, 0, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, orders, 1)
	assert.Equal(t, order.ID, orders[0].ID)

	total, _, err = w.orders.ListOrders(ctx, owner(), 0, 10)
	require.NoError(t, err)
	assert.Zero(t, total)

	total, _, err = w.orders.ListOrders(ctx, w.customer, 0, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
}

func TestOrder_UpdateOrder(t *testing.T) {
	w := newOrderWorld(t)
	ctx := context.Background()
	order := w.placeOrder(t)
	admin := staff()

	addr := "New address 5"
	_, err := w.orders.UpdateOrder(ctx, w.customer, order.ID, OrderPatch{DeliveryAddress: &addr})
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	updated, err := w.orders.UpdateOrder(ctx, admin, order.ID, OrderPatch{DeliveryAddress: &addr})
	require.NoError(t, err)
	assert.Equal(t, addr, updated.DeliveryAddress)
	assert.Equal(t, "13.00", updated.Total.StringFixed(2))

	hijack := "Hijacked 1"
	status := models.OrderStatusDelivered
	_, err = w.orders.UpdateOrder(ctx, admin, order.ID, OrderPatch{DeliveryAddress: &hijack, Status: &status})
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	got, err := w.orders.GetOrder(ctx, admin, order.ID)
	require.NoError(t, err)
	assert.Equal(t, addr, got.DeliveryAddress, "refused transition keeps the old address")
	assert.Equal(t, models.OrderStatusPreparing, got.Status)

	status = models.OrderStatusOutForDelivery
	_, err = w.orders.UpdateOrder(ctx, admin, order.ID, OrderPatch{Status: &status})
	assert.ErrorIs(t, err, apperr.ErrState)

	status = "lost"
	_, err = w.orders.UpdateOrder(ctx, admin, order.ID, OrderPatch{Status: &status})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = w.orders.UpdateOrder(ctx, admin, order.ID, OrderPatch{})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	final := "Final 9"
	status = models.OrderStatusCancelled
	_, err = w.orders.UpdateOrder(ctx, w.owner, order.ID, OrderPatch{DeliveryAddress: &final, Status: &status})
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	cancelled, err := w.orders.UpdateOrder(ctx, admin, order.ID, OrderPatch{DeliveryAddress: &final, Status: &status})
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCancelled, cancelled.Status)
	assert.Equal(t, final, cancelled.DeliveryAddress)

	_, err = w.orders.UpdateOrder(ctx, admin, order.ID, OrderPatch{DeliveryAddress: &hijack, Status: &status})
	assert.ErrorIs(t, err, apperr.ErrState)
	got, err = w.orders.GetOrder(ctx, admin, order.ID)
	require.NoError(t, err)
	assert.Equal(t, final, got.DeliveryAddress)

	second := w.placeOrder(t)
	cancelled, err = w.orders.UpdateOrder(ctx, w.owner, second.ID, OrderPatch{Status: &status})
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCancelled, cancelled.Status)
}

func TestOrder_ListMatchesReadForMultiRolePrincipal(t *testing.T) {
	w := newOrderWorld(t)
	ctx := context.Background()
	order := w.placeOrder(t)

	both := policy.Principal{
		ID:       uuid.New(),
		Username: "owner-rider",
		Roles:    []policy.Role{policy.RoleRestaurantOwner, policy.RoleDeliveryCrew},
	}
	w.dir.add(&authclient.User{ID: both.ID, Username: both.Username, Roles: []string{"Restaurant Owner", "Delivery Crew"}})
	w.restaurant(t, both, "Side Hustle Diner")

	_, err := w.orders.AssignDelivery(ctx, w.owner, order.ID, both.ID)
	require.NoError(t, err)

	_, err = w.orders.GetOrder(ctx, both, order.ID)
	require.NoError(t, err)

	total, orders, err := w.orders.ListOrders(ctx, both, 0, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, orders, 1)
	assert.Equal(t, order.ID, orders[0].ID)

	delivered, err := w.orders.MarkDelivered(ctx, both, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusDelivered, delivered.Status)
}

func TestOrder_DeleteOrder_StaffOnly(t *testing.T) {
	w := newOrderWorld(t)
	ctx := context.Background()
	order := w.placeOrder(t)

	assert.ErrorIs(t, w.orders.DeleteOrder(ctx, w.customer, order.ID), apperr.ErrForbidden)
	assert.ErrorIs(t, w.orders.DeleteOrder(ctx, customer(), order.ID), apperr.ErrNotFound)
	require.NoError(t, w.orders.DeleteOrder(ctx, staff(), order.ID))

	_, err := w.orders.GetOrder(ctx, staff(), order.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestOrder_DetachDeliveryCrew(t *testing.T) {
	w := newOrderWorld(t)
	ctx := context.Background()
	order := w.placeOrder(t)
	rider := w.crew(t)

	_, err := w.orders.AssignDelivery(ctx, w.owner, order.ID, rider.ID)
	require.NoError(t, err)

	n, err := w.orders.DetachDeliveryCrew(ctx, rider.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	got, err := w.orders.GetOrder(ctx, w.customer, order.ID)
	require.NoError(t, err)
	assert.Nil(t, got.DeliveryCrewID)
	assert.Equal(t, models.OrderStatusOutForDelivery, got.Status)
}

func newMockRepo(t *testing.T) (*repo.GormRepo, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: mockDB}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	return &repo.GormRepo{DB: db}, mock
}

func newMockOrderService(t *testing.T) (*OrderService, sqlmock.Sqlmock) {
	t.Helper()
	r, mock := newMockRepo(t)
	return &OrderService{Repo: r}, mock
}

func TestOrder_Cancel_BeginFails(t *testing.T) {
	svc, mock := newMockOrderService(t)

	mock.ExpectBegin().WillReturnError(errors.New("connection reset"))

	_, err := svc.Cancel(context.Background(), staff(), uuid.New())
	require.Error(t, err)
	assert.Nil(t, apperr.Kind(err), "infrastructure errors are not business errors")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrder_DetachDeliveryCrew_Postgres(t *testing.T) {
	svc, mock := newMockOrderService(t)
	crew := uuid.New()

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "orders" SET "delivery_crew_id"=$1`)).
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := svc.DetachDeliveryCrew(context.Background(), crew)
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
