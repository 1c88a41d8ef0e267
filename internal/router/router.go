package router

import (
	"github.com/gofiber/fiber/v3"
	recoverer "github.com/gofiber/fiber/v3/middleware/recover"

	"github.com/StudyingHUYANG/VisionMark/internal/handler"
	"github.com/StudyingHUYANG/VisionMark/internal/middleware"
)

// Handlers holds all handler instances needed by the router.
type Handlers struct {
	Segment *handler.SegmentHandler
	User    *handler.UserHandler
	Stats   *handler.StatsHandler
	Health  *handler.HealthHandler
}

// Setup configures the middleware stack and all API routes on the given Fiber app.
func Setup(app *fiber.App, h *Handlers, corsOrigins string) {
	// Middleware stack (order matters)
	app.Use(recoverer.New())
	app.Use(middleware.NewRequestLogger())
	app.Use(handler.MetricsMiddleware())
	app.Use(middleware.NewCORS(corsOrigins))

	// Probes and metrics sit outside the API group and its rate limits.
	app.Get("/health/live", h.Health.Live)
	app.Get("/health/ready", h.Health.Ready)
	app.Get("/metrics", handler.MetricsHandler())

	api := app.Group("/api/v1")

	// Segment routes
	api.Get("/segments", middleware.NewSegmentReadRateLimiter().Handler(), h.Segment.List)
	api.Post("/segments", middleware.NewSubmitRateLimiter().Handler(), h.Segment.Submit)
	api.Post("/segments/:id/vote", middleware.NewVoteRateLimiter().Handler(), h.Segment.Vote)
	api.Post("/segments/:id/skip", middleware.NewSkipRateLimiter().Handler(), h.Segment.Skip)

	// User routes
	users := middleware.NewUserRateLimiter().Handler()
	api.Get("/users/:userId", users, h.User.GetByUserID)
	api.Get("/users/:userId/segments", users, h.User.Segments)

	// Stats routes
	stats := middleware.NewStatsRateLimiter().Handler()
	api.Get("/stats/overview", stats, h.Stats.Overview)
	api.Get("/stats/popular-videos", stats, h.Stats.PopularVideos)
	api.Get("/stats/top-users", stats, h.Stats.TopUsers)
}
