package routes

import (
	"time"

	"github.com/changedesk/changedesk/internal/config"
	"github.com/changedesk/changedesk/internal/handlers"
	"github.com/changedesk/changedesk/internal/middleware"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"gorm.io/gorm"
)

func Setup(
	app *fiber.App,
	cfg *config.Config,
	db *gorm.DB,
	authHandler *handlers.AuthHandler,
	userHandler *handlers.UserHandler,
	crHandler *handlers.ChangeRequestHandler,
	healthHandler *handlers.HealthHandler,
) {
	api := app.Group("/api")

	// General API rate limiter: 60 req/min per IP
	api.Use(limiter.New(limiter.Config{
		Max:               60,
		Expiration:        1 * time.Minute,
		LimiterMiddleware: limiter.SlidingWindow{},
		KeyGenerator:      func(c *fiber.Ctx) string { return c.IP() },
	}))

	api.Get("/health", healthHandler.Check)

	// Auth — public. Login gets a stricter limit: 10 req/min per IP.
	auth := api.Group("/auth")
	auth.Post("/login", limiter.New(limiter.Config{
		Max:               10,
		Expiration:        1 * time.Minute,
		LimiterMiddleware: limiter.SlidingWindow{},
		KeyGenerator:      func(c *fiber.Ctx) string { return c.IP() },
	}), authHandler.Login)
	auth.Post("/logout", authHandler.Logout)
	auth.Get("/me", authHandler.Me)
	auth.Put("/password", middleware.SessionRequired(cfg), authHandler.ChangePassword)

	// Users. Listing needs a session; create and role changes are
	// admin-only, gated per route so the list route stays reachable.
	api.Get("/users", middleware.SessionRequired(cfg), userHandler.List)
	api.Post("/users", middleware.SessionRequired(cfg), middleware.AdminRequired(db), userHandler.Create)
	api.Put("/users/:id/role", middleware.SessionRequired(cfg), middleware.AdminRequired(db), userHandler.UpdateRole)

	// Change requests (session required). Fixed paths are registered
	// before the :id routes so they are not captured as ids.
	crs := api.Group("/change-requests", middleware.SessionRequired(cfg))
	crs.Get("/recent", crHandler.Recent)
	crs.Get("/search", crHandler.Search)
	crs.Get("/stats", crHandler.Stats)
	crs.Get("/my-pending-reviews", crHandler.MyPendingReviews)
	crs.Get("/status/:status", crHandler.ListByStatus)
	crs.Post("/", crHandler.Create)
	crs.Get("/", crHandler.List)
	crs.Get("/:id", crHandler.Get)
	crs.Put("/:id", crHandler.Update)
}
