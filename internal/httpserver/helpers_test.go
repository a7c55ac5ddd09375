package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/cravings/internal/repo"
	"github.com/Skotchmaster/cravings/internal/service"
	"github.com/Skotchmaster/cravings/internal/testutil"
	"github.com/Skotchmaster/cravings/pkg/authclient"
	"github.com/Skotchmaster/cravings/pkg/tokens"
)

var testSecret = []byte("http-test-secret")

type testEnv struct {
	e        *echo.Echo
	identity *fakeIdentity
}

type testUser struct {
	ID    uuid.UUID
	Token string
}

func newTestEnv(t *testing.T, checks ...Check) *testEnv {
	t.Helper()

	r := &repo.GormRepo{DB: testutil.NewDB(t)}
	identity := &fakeIdentity{users: map[uuid.UUID]*authclient.User{}}

	e := echo.New()
	e.HTTPErrorHandler = HTTPErrorHandler
	Register(e, &Deps{
		CatalogHandler: &CatalogHTTP{Svc: &service.CatalogService{Repo: r}},
		CartHandler:    &CartHTTP{Svc: &service.CartService{Repo: r}},
		OrderHandler:   &OrderHTTP{Svc: &service.OrderService{Repo: r, Directory: identity}},
		UserHandler:    &UserHTTP{Identity: identity},
		JWTSecret:      testSecret,
		Checks:         checks,
	})

	return &testEnv{e: e, identity: identity}
}

// login registers a user with the fake identity service and signs an access
// token for it.
func (env *testEnv) login(t *testing.T, username string, isStaff bool, roles ...string) testUser {
	t.Helper()

	id := uuid.New()
	env.identity.add(&authclient.User{ID: id, Username: username, Roles: roles, IsStaff: isStaff})

	tok, err := tokens.SignAccessToken(tokens.AccessClaims{
		Username: username,
		Roles:    roles,
		IsStaff:  isStaff,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.String(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}, testSecret)
	require.NoError(t, err)

	return testUser{ID: id, Token: tok}
}

func (env *testEnv) do(t *testing.T, method, path string, u *testUser, body any) *httptest.ResponseRecorder {
	t.Helper()

	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rdr = bytes.NewReader(b)
	}

	req := httptest.NewRequest(method, path, rdr)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if u != nil {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+u.Token)
	}

	rec := httptest.NewRecorder()
	env.e.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func requireStatus(t *testing.T, rec *httptest.ResponseRecorder, status int) {
	t.Helper()
	require.Equal(t, status, rec.Code, rec.Body.String())
}

type fakeIdentity struct {
	mu        sync.Mutex
	users     map[uuid.UUID]*authclient.User
	lastToken string
	failWith  error
}

func (f *fakeIdentity) add(u *authclient.User) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[u.ID] = u
}

func (f *fakeIdentity) LookupUser(_ context.Context, id uuid.UUID) (*authclient.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return nil, f.failWith
	}
	u, ok := f.users[id]
	if !ok {
		return nil, authclient.ErrUserNotFound
	}
	return u, nil
}

func (f *fakeIdentity) UpdateProfile(_ context.Context, accessToken string, upd authclient.ProfileUpdate) (*authclient.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastToken = accessToken

	claims, err := tokens.AccessClaimsFromToken(accessToken, testSecret)
	if err != nil {
		return nil, err
	}
	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, err
	}
	u, ok := f.users[id]
	if !ok {
		return nil, authclient.ErrUserNotFound
	}
	if upd.Email != nil {
		u.Email = *upd.Email
	}
	if upd.FirstName != nil {
		u.FirstName = *upd.FirstName
	}
	if upd.LastName != nil {
		u.LastName = *upd.LastName
	}
	return u, nil
}

// seedMenu creates a restaurant owned by o with the given items (name to
// price) and returns the restaurant id and the item ids by name.
func (env *testEnv) seedMenu(t *testing.T, o testUser, name string, items map[string]string) (string, map[string]string) {
	t.Helper()

	rec := env.do(t, http.MethodPost, "/restaurants", &o, map[string]any{
		"name":         name,
		"opening_time": "09:00",
		"closing_time": "22:00",
	})
	requireStatus(t, rec, http.StatusCreated)
	rest := decode[map[string]any](t, rec)
	rid := rest["id"].(string)

	ids := map[string]string{}
	for itemName, price := range items {
		rec := env.do(t, http.MethodPost, "/restaurants/"+rid+"/menu-items", &o, map[string]any{
			"name":  itemName,
			"price": price,
		})
		requireStatus(t, rec, http.StatusCreated)
		ids[itemName] = decode[map[string]any](t, rec)["id"].(string)
	}
	return rid, ids
}
