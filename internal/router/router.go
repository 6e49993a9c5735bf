package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4" // import the Echo web framework to handle routing

	"github.com/iliyamo/coworking-reservation/internal/handler"    // import the handlers that implement business logic
	"github.com/iliyamo/coworking-reservation/internal/middleware" // import middleware for JWT authentication and role enforcement
	"github.com/iliyamo/coworking-reservation/internal/model"      // role constants used by RequireRole
)

// RegisterRoutes registers routes that do not require authentication on
// the provided Echo instance. Currently it exposes only a health check.
func RegisterRoutes(e *echo.Echo) {
	// Used by load balancers and monitoring to verify the service is up.
	e.GET("/healthz", handler.Health)
}

// RegisterAuth registers all authentication-related routes and applies
// the necessary middleware. Unauthenticated operations live under
// /v1/auth, while protected endpoints live under /v1.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string) {
	// Operations that do not require an existing session: register,
	// login and the two refresh variants.
	g := e.Group("/v1/auth")
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	// Rotates the refresh token.
	g.POST("/refresh", a.Refresh)
	// Issues a new access token without rotating the refresh token.
	g.POST("/refresh-access", a.RefreshAccess)
	// Logout accepts a JSON body containing a `refresh_token` and
	// invalidates that token; with a bearer token and no body it revokes
	// every session of the user.
	g.POST("/logout", a.Logout)

	auth := e.Group("/v1")
	auth.Use(middleware.JWTAuth(jwtSecret))
	auth.Use(middleware.RequireRole(model.RoleAdmin, model.RoleCustomer))
	auth.GET("/me", a.Me)

	// Same handler reachable without the /auth prefix so clients can
	// call either path with a refresh token in the body.
	e.POST("/v1/logout", a.Logout)
}

// RegisterCatalog registers unauthenticated browse endpoints for the
// resource catalog. Guests can inspect categories and types before
// registering.
func RegisterCatalog(e *echo.Echo, cat *handler.CatalogHandler) {
	e.GET("/v1/categories", cat.ListCategories)
	e.GET("/v1/types", cat.ListTypes)
}

// RegisterBookings registers the availability and booking endpoints.
// Everything here requires a valid access token; both roles are
// accepted and per-booking ownership is enforced in the handlers.
func RegisterBookings(e *echo.Echo, b *handler.BookingHandler, i *handler.IssueHandler, jwtSecret string) {
	g := e.Group("/v1")
	g.Use(middleware.JWTAuth(jwtSecret))
	g.Use(middleware.RequireRole(model.RoleAdmin, model.RoleCustomer))

	g.GET("/availability", b.CheckAvailability)
	g.POST("/equipment/check", b.CheckEquipment)

	g.POST("/bookings", b.CreateBooking)
	g.GET("/bookings", b.ListMyBookings)
	g.GET("/bookings/:id", b.GetBooking)
	g.DELETE("/bookings/:id", b.CancelBooking)
	g.GET("/bookings/:id/changes", b.ListChanges)
	g.GET("/bookings/:id/extend-options", b.ExtendOptions)
	g.POST("/bookings/:id/extend", b.ExtendConfirm)
	g.POST("/bookings/:id/equipment", b.AddEquipment)
	// Splits a conflicted or in-progress booking onto a replacement
	// resource; the body may name a chosen resource_id.
	g.POST("/bookings/:id/apply-change", b.ApplyChange)

	g.POST("/issues", i.ReportIssue)
	g.GET("/issues", i.MyIssues)
}

// RegisterAdmin registers the administrative endpoints: the issue
// queue, issue decisions and direct outage creation. All routes
// require the ADMIN role.
func RegisterAdmin(e *echo.Echo, i *handler.IssueHandler, cat *handler.CatalogHandler, jwtSecret string) {
	g := e.Group("/v1/admin")
	g.Use(middleware.JWTAuth(jwtSecret))
	g.Use(middleware.RequireRole(model.RoleAdmin))

	g.GET("/issues", i.ListIssues)
	g.POST("/issues/:id/confirm", i.ConfirmIssue)
	g.POST("/issues/:id/reject", i.RejectIssue)
	g.POST("/outages", i.CreateOutage)
	g.GET("/resources/:id/outages", cat.ResourceOutages)
}
