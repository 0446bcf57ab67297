package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4" // import the Echo web framework to handle routing

	"github.com/iliyamo/hotel-reservation/internal/handler"    // handlers that call the booking service
	"github.com/iliyamo/hotel-reservation/internal/middleware" // JWT authentication and role enforcement
	"github.com/iliyamo/hotel-reservation/internal/model"      // role names
)

// chain drops nil middlewares so optional layers (rate limit, cache) can be
// passed unconditionally.
func chain(mws ...echo.MiddlewareFunc) []echo.MiddlewareFunc {
	out := make([]echo.MiddlewareFunc, 0, len(mws))
	for _, m := range mws {
		if m != nil {
			out = append(out, m)
		}
	}
	return out
}

// RegisterRoutes registers routes that do not require authentication on the
// provided Echo instance.  Currently it exposes only a health check.
func RegisterRoutes(e *echo.Echo, health echo.HandlerFunc) {
	// This endpoint can be used by load balancers or monitoring systems to
	// verify that the service and its dependencies are up.
	e.GET("/healthz", health)
}

// RegisterPublic registers the unauthenticated room browse endpoints.  The
// response cache only applies to these routes; every write that changes a
// ledger purges it.
func RegisterPublic(e *echo.Echo, a *handler.AdminHandler, limit, cache echo.MiddlewareFunc) {
	g := e.Group("/v1/rooms", chain(limit, cache)...)
	g.GET("", a.ListRooms)
	g.GET("/:id", a.GetRoom)
}

// RegisterGuest registers reservation endpoints for every authenticated
// role.  Customers may only act on their own reservations; the service
// enforces that using the caller carried in the request context.  The rate
// limit runs after JWTAuth so buckets can be keyed by user.
func RegisterGuest(e *echo.Echo, h *handler.ReservationHandler, jwtSecret string, limit echo.MiddlewareFunc) {
	g := e.Group("/v1", chain(
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleCustomer, model.RoleStaff, model.RoleAdmin),
		limit,
	)...)
	g.POST("/reservations", h.Create)
	g.GET("/reservations/:id", h.Get)
	g.DELETE("/reservations/:id", h.Cancel)
	g.GET("/me/reservations", h.Mine)
}

// RegisterStaff registers the front-desk endpoints.  They require a JWT
// with the Staff or Admin role.
func RegisterStaff(e *echo.Echo, h *handler.StaffHandler, jwtSecret string, limit echo.MiddlewareFunc) {
	g := e.Group("/v1", chain(
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleStaff, model.RoleAdmin),
		limit,
	)...)
	g.PATCH("/reservations/:id/check-in", h.CheckIn)
	g.PATCH("/reservations/:id/check-out", h.CheckOut)
	g.PATCH("/cancellations/:id", h.Refund)
	// Always computed fresh; never behind the response cache.
	g.GET("/status", h.Status)
}

// RegisterAdmin registers catalog management and the recovery sweep.
func RegisterAdmin(e *echo.Echo, a *handler.AdminHandler, jwtSecret string) {
	g := e.Group(
		"/v1",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleAdmin),
	)
	g.POST("/rooms", a.CreateRoom)
	g.POST("/users", a.EnsureUser)
	g.POST("/admin/reconcile", a.Reconcile)
}
