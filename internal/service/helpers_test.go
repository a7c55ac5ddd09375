package service

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/cravings/internal/models"
	"github.com/Skotchmaster/cravings/internal/policy"
	"github.com/Skotchmaster/cravings/internal/repo"
	"github.com/Skotchmaster/cravings/internal/testutil"
	"github.com/Skotchmaster/cravings/pkg/authclient"
)

type fixture struct {
	repo    *repo.GormRepo
	catalog *CatalogService
	cart    *CartService
	orders  *OrderService
	dir     *fakeDirectory
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	r := &repo.GormRepo{DB: testutil.NewDB(t)}
	dir := &fakeDirectory{users: map[uuid.UUID]*authclient.User{}}
	return &fixture{
		repo:    r,
		catalog: &CatalogService{Repo: r},
		cart:    &CartService{Repo: r},
		orders:  &OrderService{Repo: r, Directory: dir},
		dir:     dir,
	}
}

func customer() policy.Principal {
	return policy.Principal{ID: uuid.New(), Username: "customer", Roles: []policy.Role{policy.RoleCustomer}}
}

func owner() policy.Principal {
	return policy.Principal{ID: uuid.New(), Username: "owner", Roles: []policy.Role{policy.RoleRestaurantOwner}}
}

func staff() policy.Principal {
	return policy.Principal{ID: uuid.New(), Username: "admin", IsStaff: true}
}

func (f *fixture) crew(t *testing.T) policy.Principal {
	t.Helper()
	p := policy.Principal{ID: uuid.New(), Username: "rider", Roles: []policy.Role{policy.RoleDeliveryCrew}}
	f.dir.add(&authclient.User{ID: p.ID, Username: p.Username, Roles: []string{"Delivery Crew"}})
	return p
}

func (f *fixture) restaurant(t *testing.T, o policy.Principal, name string) *models.Restaurant {
	t.Helper()
	rest, err := f.catalog.CreateRestaurant(context.Background(), o, RestaurantInput{
		Name:        name,
		OpeningTime: "08:00",
		ClosingTime: "23:00",
	})
	require.NoError(t, err)
	return rest
}

func (f *fixture) menuItem(t *testing.T, o policy.Principal, restaurantID uuid.UUID, name, price string) *models.MenuItem {
	t.Helper()
	item, err := f.catalog.CreateMenuItem(context.Background(), o, restaurantID, MenuItemInput{
		Name:  name,
		Price: decimal.RequireFromString(price),
	})
	require.NoError(t, err)
	return item
}

type fakeDirectory struct {
	mu    sync.Mutex
	users map[uuid.UUID]*authclient.User
}

func (d *fakeDirectory) add(u *authclient.User) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.users[u.ID] = u
}

func (d *fakeDirectory) LookupUser(_ context.Context, id uuid.UUID) (*authclient.User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	u, ok := d.users[id]
	if !ok {
		return nil, authclient.ErrUserNotFound
	}
	return u, nil
}

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) PublishOrderEvent(ctx context.Context, eventType string, order *models.Order) error {
	args := m.Called(ctx, eventType, order)
	return args.Error(0)
}

type fakeMenuCache struct {
	mu          sync.Mutex
	menus       map[uuid.UUID][]models.MenuItem
	invalidated []uuid.UUID
}

func newFakeMenuCache() *fakeMenuCache {
	return &fakeMenuCache{menus: map[uuid.UUID][]models.MenuItem{}}
}

func (c *fakeMenuCache) GetMenu(_ context.Context, id uuid.UUID) ([]models.MenuItem, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	items, ok := c.menus[id]
	return items, ok, nil
}

func (c *fakeMenuCache) SetMenu(_ context.Context, id uuid.UUID, items []models.MenuItem) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.menus[id] = items
	return nil
}

func (c *fakeMenuCache) Invalidate(_ context.Context, id uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.menus, id)
	c.invalidated = append(c.invalidated, id)
	return nil
}

type fakeMenuIndex struct {
	ids     []uuid.UUID
	err     error
	indexed map[uuid.UUID]string
	deleted []uuid.UUID
}

func (x *fakeMenuIndex) IndexMenuItem(_ context.Context, item models.MenuItem) error {
	if x.indexed == nil {
		x.indexed = map[uuid.UUID]string{}
	}
	x.indexed[item.ID] = item.Name
	return nil
}

func (x *fakeMenuIndex) DeleteMenuItem(_ context.Context, id uuid.UUID) error {
	x.deleted = append(x.deleted, id)
	return nil
}

func (x *fakeMenuIndex) SearchMenuItems(_ context.Context, _ string, _ int) ([]uuid.UUID, error) {
	return x.ids, x.err
}
