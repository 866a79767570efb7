package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/peer-review-service/internal/api/http/handlers"
	"github.com/spec-kit/peer-review-service/internal/auth"
	"github.com/spec-kit/peer-review-service/internal/observability"
)

// RouteConfig bundles dependencies for route registration. The limiter
// handlers are optional.
type RouteConfig struct {
	Health          *handlers.HealthHandler
	Auth            *handlers.AuthHandler
	Reviews         *handlers.ReviewsHandler
	Identities      *handlers.IdentitiesHandler
	Admin           *handlers.AdminHandler
	AuthMiddleware  *auth.AuthMiddleware
	Metrics         *observability.Metrics
	RegisterLimiter fiber.Handler
	LoginLimiter    fiber.Handler
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Metrics != nil {
		app.Get("/metrics", cfg.Metrics.Handler())
	}

	authenticated := []fiber.Handler{cfg.AuthMiddleware.Handle, auth.RequireAuthenticated()}
	optional := cfg.AuthMiddleware.Optional

	authGroup := app.Group("/auth")
	authGroup.Post("/register", withLimiter(cfg.RegisterLimiter, cfg.Auth.Register)...)
	authGroup.Post("/login", withLimiter(cfg.LoginLimiter, cfg.Auth.Login)...)
	authGroup.Get("/verify-email/:token", cfg.Auth.VerifyEmail)
	authGroup.Post("/logout", append(authenticated, cfg.Auth.Logout)...)
	authGroup.Post("/resend-verification", append(authenticated, cfg.Auth.ResendVerification)...)

	app.Get("/overview", optional, cfg.Reviews.Overview)
	app.Get("/reviews", optional, auth.Require(auth.OpViewReviews), cfg.Reviews.Feed)
	app.Get("/reviews/:id", optional, auth.Require(auth.OpViewReviews), cfg.Reviews.Get)
	app.Post("/reviews", append(authenticated, cfg.Reviews.Submit)...)
	app.Put("/reviews/:id", append(authenticated, cfg.Reviews.Edit)...)
	app.Delete("/reviews/:id", append(authenticated, cfg.Reviews.Delete)...)
	app.Get("/me/reviews", append(authenticated, cfg.Reviews.ListOwn)...)

	app.Get("/identities/search", optional, cfg.Identities.Search)
	app.Get("/identities/:id", optional, cfg.Identities.Profile)

	app.Get("/profile", append(authenticated, cfg.Identities.OwnProfile)...)
	app.Put("/profile", append(authenticated, cfg.Identities.UpdateProfile)...)
	app.Post("/profile/password", append(authenticated, cfg.Auth.ChangePassword)...)

	admin := app.Group("/admin", cfg.AuthMiddleware.Handle, auth.RequireAdmin())
	admin.Get("/dashboard", cfg.Admin.Dashboard)
	admin.Get("/identities", cfg.Admin.ListIdentities)
	admin.Post("/identities", cfg.Admin.CreateIdentity)
	admin.Put("/identities/:id", cfg.Admin.EditIdentity)
	admin.Delete("/identities/:id", cfg.Admin.DeleteIdentity)
	admin.Get("/reviews", cfg.Admin.ListReviews)
	admin.Delete("/reviews/:id", cfg.Admin.DeleteReview)
}

func withLimiter(limiter, handler fiber.Handler) []fiber.Handler {
	if limiter == nil {
		return []fiber.Handler{handler}
	}
	return []fiber.Handler{limiter, handler}
}
