package middleware

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/zmurilzx/treon/internal/pkg/billing"
	"github.com/zmurilzx/treon/internal/pkg/database"
	"github.com/zmurilzx/treon/internal/pkg/usercontext"
)

// RequireSubscription gates a route behind an entitling subscription
// (ACTIVE or DUNNING inside the paid period).
func RequireSubscription(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error":   "unauthorized",
			"message": "login required",
		})
	}

	svc := billing.NewServiceFromDB(database.GetDB())
	ok, err := svc.HasActiveSubscription(context.Background(), userCtx.UserID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "entitlement_check_failed",
		})
	}
	if !ok {
		return c.Status(fiber.StatusPaymentRequired).JSON(fiber.Map{
			"error":   "subscription_required",
			"message": "assinatura ativa necessária",
		})
	}
	return c.Next()
}
