package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/zmurilzx/treon/app/controllers"
	"github.com/zmurilzx/treon/internal/pkg/middleware"
)

type ApiRouter struct {
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	api := app.Group("/api", limiter.New())
	api.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.Status(fiber.StatusOK).JSON(fiber.Map{
			"message": "TREON API",
		})
	})

	v1 := api.Group("/v1")

	// Accounts
	v1.Post("/register", controllers.HandleRegister)
	v1.Post("/login", controllers.HandleLogin)
	v1.Post("/logout", controllers.HandleLogout)
	v1.Get("/me", middleware.RequireAuth, controllers.HandleMe)
	v1.Put("/me", middleware.RequireAuth, controllers.HandleProfileUpdate)
	v1.Post("/me/avatar", middleware.RequireAuth, controllers.HandleAvatarUpload)

	// Surebets; the calculator preview is free, the register is paid.
	v1.Get("/surebets/preview", middleware.RequireAuth, controllers.HandleSurebetPreview)
	surebets := v1.Group("/surebets", middleware.RequireAuth, middleware.RequireSubscription)
	surebets.Post("/", controllers.HandleSurebetCreate)
	surebets.Get("/", controllers.HandleSurebetList)
	surebets.Get("/:uuid", controllers.HandleSurebetGet)
	surebets.Put("/:uuid", controllers.HandleSurebetUpdate)
	surebets.Delete("/:uuid", controllers.HandleSurebetDelete)

	// Spreadsheets
	sheets := v1.Group("/spreadsheets", middleware.RequireAuth, middleware.RequireSubscription)
	sheets.Post("/", controllers.HandleSpreadsheetCreate)
	sheets.Get("/", controllers.HandleSpreadsheetList)
	sheets.Get("/:id", controllers.HandleSpreadsheetGet)
	sheets.Put("/:id", controllers.HandleSpreadsheetUpdate)
	sheets.Delete("/:id", controllers.HandleSpreadsheetDelete)

	// Billing
	billing := v1.Group("/billing", middleware.RequireAuth)
	billing.Post("/checkout", controllers.HandleBillingCheckout)
	billing.Post("/subscription", controllers.HandleBillingSubscribe)
	billing.Get("/subscription", controllers.HandleBillingSubscription)
	billing.Post("/subscription/cancel", controllers.HandleBillingSubscriptionCancel)

	// Admin
	admin := v1.Group("/admin", middleware.RequireAdmin)
	admin.Get("/users", controllers.HandleAdminUserList)
	admin.Post("/users/:id/disable", controllers.HandleAdminUserDisable)
	admin.Get("/metrics/webhooks", controllers.HandleWebhookMetrics)
}

func NewApiRouter() *ApiRouter {
	return &ApiRouter{}
}
