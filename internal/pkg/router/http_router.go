package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/portraitforge/portraitforge/app/controllers"
	"github.com/portraitforge/portraitforge/internal/pkg/middleware"
	"github.com/portraitforge/portraitforge/internal/pkg/oauth"
	"github.com/portraitforge/portraitforge/internal/pkg/session"
)

type HttpRouter struct {
}

func (h HttpRouter) InstallRouter(app *fiber.App) {
	// init session
	session.NewSessionStore()

	// init oauth providers
	oauth.Setup()

	// Wire the service layer before any route can run
	controllers.InitializeControllers()

	// Apply principal middleware globally as first middleware
	app.Use(middleware.NewPrincipalContext(controllers.GetAbuseGuard()))

	h.registerAuthRoutes(app)
}

func (h HttpRouter) registerAuthRoutes(app *fiber.App) {
	app.Get("/auth/:provider", controllers.HandleOAuthBegin)
	app.Get("/auth/:provider/callback", controllers.HandleOAuthCallback)
	app.Get("/logout", controllers.HandleLogout)
}

func NewHttpRouter() *HttpRouter {
	return &HttpRouter{}
}
