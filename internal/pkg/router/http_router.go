package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/zmurilzx/treon/app/controllers"
	"github.com/zmurilzx/treon/internal/pkg/middleware"
	"github.com/zmurilzx/treon/internal/pkg/oauth"
	"github.com/zmurilzx/treon/internal/pkg/session"
)

type HttpRouter struct {
}

func (h HttpRouter) InstallRouter(app *fiber.App) {
	// init session
	session.NewSessionStore()

	// init oauth providers
	oauth.Setup()

	// Apply UserContext middleware globally as first middleware
	app.Use(middleware.UserContextMiddleware)

	// Provider callbacks; the webhook authenticates via HMAC, not session.
	app.Post("/webhooks/abacatepay", controllers.HandleAbacatePayWebhook)

	// OAuth flow (google, discord)
	app.Get("/auth/:provider", controllers.HandleOAuthLogin)
	app.Get("/auth/:provider/callback", controllers.HandleOAuthCallback)
}

func NewHttpRouter() *HttpRouter {
	return &HttpRouter{}
}
