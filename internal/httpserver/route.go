package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	authmw "github.com/Skotchmaster/cravings/internal/middleware/auth"
	"github.com/Skotchmaster/cravings/pkg/logging"
)

// Check is a readiness probe of one backing service.
type Check struct {
	Name string
	Ping func(ctx context.Context) error
}

type Deps struct {
	CatalogHandler *CatalogHTTP
	CartHandler    *CartHTTP
	OrderHandler   *OrderHTTP
	UserHandler    *UserHTTP
	JWTSecret      []byte
	Checks         []Check
}

func Register(e *echo.Echo, d *Deps) {
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/health/ready", ready(d.Checks))

	authMW := authmw.NewSimpleAuth(d.JWTSecret)

	rest := e.Group("/restaurants")
	rest.Use(authMW.RequireAuth)
	rest.GET("", d.CatalogHandler.ListRestaurants)
	rest.POST("", d.CatalogHandler.CreateRestaurant)
	rest.GET("/:id", d.CatalogHandler.GetRestaurant)
	rest.PUT("/:id", d.CatalogHandler.UpdateRestaurant)
	rest.PATCH("/:id", d.CatalogHandler.UpdateRestaurant)
	rest.DELETE("/:id", d.CatalogHandler.DeleteRestaurant)
	rest.GET("/:id/menu-items", d.CatalogHandler.ListMenuItems)
	rest.POST("/:id/menu-items", d.CatalogHandler.CreateMenuItem)
	rest.GET("/:id/menu-items/:item_id", d.CatalogHandler.GetMenuItem)
	rest.PUT("/:id/menu-items/:item_id", d.CatalogHandler.UpdateMenuItem)
	rest.PATCH("/:id/menu-items/:item_id", d.CatalogHandler.UpdateMenuItem)
	rest.DELETE("/:id/menu-items/:item_id", d.CatalogHandler.DeleteMenuItem)

	e.GET("/menu-items/search", d.CatalogHandler.SearchMenuItems, authMW.RequireAuth)

	cart := e.Group("/cart")
	cart.Use(authMW.RequireAuth)
	cart.GET("", d.CartHandler.GetCart)
	cart.PUT("", d.CartHandler.ReplaceCart)
	cart.GET("/items", d.CartHandler.ListItems)
	cart.POST("/items", d.CartHandler.AddToCart)
	cart.GET("/items/:id", d.CartHandler.GetItem)
	cart.PATCH("/items/:id", d.CartHandler.UpdateItem)
	cart.DELETE("/items/:id", d.CartHandler.RemoveItem)

	orders := e.Group("/orders")
	orders.Use(authMW.RequireAuth)
	orders.GET("", d.OrderHandler.ListOrders)
	orders.POST("", d.OrderHandler.CreateOrder)
	orders.GET("/:id", d.OrderHandler.GetOrder)
	orders.PUT("/:id", d.OrderHandler.UpdateOrder)
	orders.PATCH("/:id", d.OrderHandler.UpdateOrder)
	orders.DELETE("/:id", d.OrderHandler.DeleteOrder)
	orders.PATCH("/:id/assign-delivery", d.OrderHandler.AssignDelivery)
	orders.PATCH("/:id/mark-delivered", d.OrderHandler.MarkDelivered)
	orders.PATCH("/:id/cancel", d.OrderHandler.CancelOrder)

	e.GET("/user-role", d.UserHandler.GetRole, authMW.RequireAuth)
	e.GET("/profile", d.UserHandler.GetProfile, authMW.RequireAuth)
	e.PUT("/profile", d.UserHandler.UpdateProfile, authMW.RequireAuth)
}

func ready(checks []Check) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 3*time.Second)
		defer cancel()
		l := logging.FromContext(ctx).With("handler", "health.ready")

		failed := map[string]string{}
		for _, ch := range checks {
			if err := ch.Ping(ctx); err != nil {
				l.Warn("readiness_check_failed", "check", ch.Name, "error", err)
				failed[ch.Name] = err.Error()
			}
		}
		if len(failed) > 0 {
			return c.JSON(http.StatusServiceUnavailable, map[string]any{"status": "unavailable", "failed": failed})
		}
		return c.NoContent(http.StatusOK)
	}
}
