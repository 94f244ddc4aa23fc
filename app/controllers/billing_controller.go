package controllers

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/zmurilzx/treon/app/models"
	"github.com/zmurilzx/treon/app/repository"
	"github.com/zmurilzx/treon/internal/pkg/abacatepay"
	"github.com/zmurilzx/treon/internal/pkg/billing"
	"github.com/zmurilzx/treon/internal/pkg/database"
	"github.com/zmurilzx/treon/internal/pkg/env"
	"github.com/zmurilzx/treon/internal/pkg/metrics/counter"
	"github.com/zmurilzx/treon/internal/pkg/usercontext"
)

const webhookSignatureHeader = "X-Abacatepay-Signature"

// HandleAbacatePayWebhook is the inbound entry point for provider
// notifications.
func HandleAbacatePayWebhook(c *fiber.Ctx) error {
	return handleAbacatePayWebhook(c, billing.NewServiceFromDB(database.GetDB()))
}

// handleAbacatePayWebhook verifies, records and processes one delivery. The
// signature check happens before anything is written: a rejected delivery
// leaves zero rows behind.
func handleAbacatePayWebhook(c *fiber.Ctx, svc *billing.Service) error {
	rawBody := append([]byte(nil), c.BodyRaw()...)
	signature := strings.TrimSpace(c.Get(webhookSignatureHeader))
	secret := env.GetEnv("ABACATEPAY_WEBHOOK_SECRET", "")

	if !abacatepay.VerifyWebhookSignature(rawBody, signature, secret) {
		log.Warnf("[Webhook] rejected delivery with invalid signature from %s", c.IP())
		_ = counter.AddSignatureReject()
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid_signature"})
	}

	// A malformed body gets the same treatment as a bad signature: rejected
	// before any record exists.
	ev, err := abacatepay.ParseEvent(rawBody)
	if err != nil {
		log.Warnf("[Webhook] rejected malformed delivery: %v", err)
		_ = counter.AddSignatureReject()
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid_payload"})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	created, stored, err := svc.RecordEvent(ctx, ev, rawBody, signature)
	if err != nil {
		log.Errorf("[Webhook] failed to persist event: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "webhook_persist_failed"})
	}
	if !created && stored.Processed {
		// Already applied; tell the provider to stop retrying.
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true, "duplicate": true})
	}

	if err := svc.Process(ctx, stored, ev); err != nil {
		log.Errorf("[Webhook] processing %s event %d failed: %v", ev.Type, stored.ID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "event_processing_failed"})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true})
}

type checkoutRequest struct {
	ContentType string `json:"content_type" validate:"required"`
	ContentID   string `json:"content_id" validate:"required"`
	AmountCents int64  `json:"amount_cents" validate:"gt=0"`
	Description string `json:"description"`
}

// HandleBillingCheckout creates a one-off purchase billing at AbacatePay and
// stores the pending transaction that the webhook later completes.
func HandleBillingCheckout(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	var req checkoutRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_body"})
	}
	if req.ContentType == "" || req.ContentID == "" || req.AmountCents <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "missing_fields"})
	}

	user, err := repository.GetGlobalFactory().GetUserRepository().GetByID(userCtx.UserID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "user_lookup_failed"})
	}

	meta := abacatepay.EventMetadata{
		UserID:      strconv.FormatUint(uint64(user.ID), 10),
		UserEmail:   user.Email,
		Type:        billing.AccessTypePurchase,
		ContentType: strings.ToUpper(req.ContentType),
		ContentID:   req.ContentID,
	}

	resp, err := createBilling(meta, req.AmountCents, req.Description, false)
	if err != nil {
		return err
	}

	if err := storePendingTransaction(user.ID, resp.ID, req.AmountCents, models.TransactionTypePurchase, meta); err != nil {
		log.Errorf("[Billing] failed to store pending transaction %s: %v", resp.ID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "transaction_persist_failed"})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"id": resp.ID, "url": resp.URL})
}

type subscribeRequest struct {
	PlanType    string `json:"plan_type" validate:"required"`
	AmountCents int64  `json:"amount_cents" validate:"gt=0"`
}

// HandleBillingSubscribe creates a recurring billing for a plan.
func HandleBillingSubscribe(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	var req subscribeRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_body"})
	}
	if req.PlanType == "" || req.AmountCents <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "missing_fields"})
	}

	user, err := repository.GetGlobalFactory().GetUserRepository().GetByID(userCtx.UserID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "user_lookup_failed"})
	}

	meta := abacatepay.EventMetadata{
		UserID:      strconv.FormatUint(uint64(user.ID), 10),
		UserEmail:   user.Email,
		Type:        billing.AccessTypeSubscription,
		PlanType:    req.PlanType,
		DiscordLink: env.GetEnv("DISCORD_INVITE_URL", ""),
	}

	resp, err := createBilling(meta, req.AmountCents, "Assinatura TREON "+req.PlanType, true)
	if err != nil {
		return err
	}

	if err := storePendingTransaction(user.ID, resp.ID, req.AmountCents, models.TransactionTypeSubscription, meta); err != nil {
		log.Errorf("[Billing] failed to store pending transaction %s: %v", resp.ID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "transaction_persist_failed"})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"id": resp.ID, "url": resp.URL})
}

// HandleBillingSubscription returns the caller's newest subscription.
func HandleBillingSubscription(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	svc := billing.NewServiceFromDB(database.GetDB())

	sub, err := svc.GetSubscription(context.Background(), userCtx.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "no_subscription"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "subscription_lookup_failed"})
	}
	return c.JSON(sub)
}

// HandleBillingSubscriptionCancel cancels at the provider, then locally.
func HandleBillingSubscriptionCancel(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	svc := billing.NewServiceFromDB(database.GetDB())

	sub, err := svc.GetSubscription(context.Background(), userCtx.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "no_subscription"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "subscription_lookup_failed"})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	client := abacatepay.NewClientFromEnv()
	if err := client.CancelSubscription(ctx, sub.AbacatePaySubID); err != nil {
		log.Errorf("[Billing] provider cancel failed for %s: %v", sub.AbacatePaySubID, err)
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "provider_cancel_failed"})
	}
	if err := svc.CancelSubscription(ctx, sub.AbacatePaySubID); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "subscription_update_failed"})
	}

	return c.JSON(fiber.Map{"ok": true})
}

// HandleWebhookMetrics dumps the webhook counters for operators.
func HandleWebhookMetrics(c *fiber.Ctx) error {
	counters, err := counter.WebhookCounters()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "metrics_unavailable"})
	}
	return c.JSON(counters)
}

func createBilling(meta abacatepay.EventMetadata, amountCents int64, description string, recurring bool) (*abacatepay.CheckoutResponse, error) {
	base := strings.TrimRight(env.GetEnv("PUBLIC_DOMAIN", ""), "/")
	req := abacatepay.CheckoutRequest{
		AmountCents:   amountCents,
		Description:   description,
		ReturnURL:     base + "/billing/return",
		CompletionURL: base + "/billing/completed",
		Metadata:      meta,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	client := abacatepay.NewClientFromEnv()
	var (
		resp *abacatepay.CheckoutResponse
		err  error
	)
	if recurring {
		resp, err = client.CreateSubscription(ctx, req)
	} else {
		resp, err = client.CreateCheckout(ctx, req)
	}
	if err != nil {
		log.Errorf("[Billing] provider checkout failed: %v", err)
		return nil, fiber.NewError(fiber.StatusBadGateway, "provider_checkout_failed")
	}
	return resp, nil
}

func storePendingTransaction(userID uint, providerTxID string, amountCents int64, txType string, meta abacatepay.EventMetadata) error {
	metadataJSON, err := metadataToJSON(meta)
	if err != nil {
		return err
	}
	tx := &models.Transaction{
		UserID:         userID,
		AmountCents:    amountCents,
		Type:           txType,
		Status:         models.TransactionStatusPending,
		AbacatePayTxID: providerTxID,
		IdempotencyKey: uuid.NewString(),
		MetadataJSON:   metadataJSON,
	}
	return database.GetDB().Create(tx).Error
}
