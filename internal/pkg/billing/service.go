package billing

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/zmurilzx/treon/app/models"
	"github.com/zmurilzx/treon/internal/pkg/abacatepay"
	"github.com/zmurilzx/treon/internal/pkg/metrics/counter"
)

const (
	subscriptionGrantPeriod = 30 * 24 * time.Hour
	purchaseGrantPeriod     = 365 * 24 * time.Hour
)

// Service runs the webhook pipeline: idempotent audit, dispatch by event
// type and entitlement granting. It also answers entitlement queries for the
// rest of the application.
type Service struct {
	repo Repository
	now  func() time.Time
}

// NewService creates a billing service from an injected repository.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// NewServiceFromDB creates a billing service from a GORM DB handle.
func NewServiceFromDB(db *gorm.DB) *Service {
	return NewService(NewRepository(db))
}

// RecordEvent persists the delivery audit row. The unique
// (provider, provider_event_id) index makes this race-safe: concurrent
// deliveries of the same event resolve to a single row, and created=false
// tells the caller it lost the insert.
func (s *Service) RecordEvent(ctx context.Context, ev *abacatepay.Event, rawBody []byte, signature string) (bool, *models.PaymentEvent, error) {
	_ = ctx
	eventID := strings.TrimSpace(ev.ID)
	if eventID == "" {
		// Some sandbox deliveries omit the event id; fall back to a payload
		// hash so byte-identical redeliveries still dedupe.
		sum := sha256.Sum256(rawBody)
		eventID = "hash:" + hex.EncodeToString(sum[:])
	}

	event := &models.PaymentEvent{
		Provider:        ProviderAbacatePay,
		ProviderEventID: eventID,
		EventType:       strings.TrimSpace(ev.Type),
		PayloadJSON:     string(rawBody),
		Signature:       strings.TrimSpace(signature),
	}
	return s.repo.CreatePaymentEventIfNew(event)
}

// Process dispatches a recorded event to its handler and marks the audit row.
// The handler and the processed mark share one database transaction; on
// handler failure the row gets the error message and an incremented retry
// count, and the error is returned for the controller to surface as a 500.
func (s *Service) Process(ctx context.Context, stored *models.PaymentEvent, ev *abacatepay.Event) error {
	_ = ctx
	if stored == nil || stored.ID == 0 {
		return errors.New("payment event audit row is required")
	}

	_ = counter.AddWebhookEvent(ev.Type)

	err := s.repo.InTransaction(func(r Repository) error {
		switch ev.Type {
		case EventBillingPaid:
			if err := s.handleBillingPaid(r, ev); err != nil {
				return err
			}
		case EventWithdrawDone:
			// Payouts are observed but not modeled.
			log.Infof("[Billing] withdraw completed: tx=%s", ev.Data.TransactionID)
		case EventWithdrawFailed:
			if err := s.handleWithdrawFailed(r, ev); err != nil {
				return err
			}
		default:
			// Explicit unknown arm: accepted, logged, metered, no state change.
			log.Warnf("[Billing] unknown webhook event type %q ignored", ev.Type)
			_ = counter.AddUnknownWebhookEvent(ev.Type)
		}
		return r.MarkEventProcessed(stored.ID)
	})
	if err != nil {
		_ = counter.AddWebhookFailure(ev.Type)
		if markErr := s.repo.MarkEventFailed(stored.ID, err.Error()); markErr != nil {
			log.Errorf("[Billing] failed to record processing error for event %d: %v", stored.ID, markErr)
		}
		return err
	}
	return nil
}

func (s *Service) handleBillingPaid(r Repository, ev *abacatepay.Event) error {
	meta := ev.Data.Metadata
	userID, err := parseUserID(meta.UserID)
	if err != nil {
		return err
	}
	txID := strings.TrimSpace(ev.Data.TransactionID)
	if txID == "" {
		return errors.New("billing.paid event has no transaction id")
	}

	// The checkout flow stored the destination link in the pending
	// transaction's metadata; recover it before the upsert overwrites it.
	discordLink := strings.TrimSpace(meta.DiscordLink)
	if existing, err := r.GetTransactionByProviderID(txID); err == nil {
		if discordLink == "" {
			discordLink = discordLinkFromMetadata(existing.MetadataJSON)
		}
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	accessType := strings.ToUpper(strings.TrimSpace(meta.Type))
	metadataJSON, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("marshal event metadata: %w", err)
	}

	tx := &models.Transaction{
		UserID:         userID,
		AmountCents:    ev.Data.AmountCents,
		Type:           transactionType(accessType),
		Status:         models.TransactionStatusCompleted,
		AbacatePayTxID: txID,
		IdempotencyKey: uuid.NewString(),
		MetadataJSON:   string(metadataJSON),
	}
	if err := r.UpsertCompletedTransaction(tx); err != nil {
		return err
	}

	switch accessType {
	case AccessTypeSubscription:
		return s.grantSubscription(r, ev, userID, discordLink)
	case AccessTypePurchase:
		return s.grantPurchase(r, userID, meta)
	default:
		// Explicit unknown arm: the payment is recorded, no entitlement is
		// granted, and the gap is metered instead of silent.
		log.Warnf("[Billing] unknown access type %q on paid event, no entitlement granted", meta.Type)
		_ = counter.AddUnknownAccessType(meta.Type)
		return nil
	}
}

func (s *Service) grantSubscription(r Repository, ev *abacatepay.Event, userID uint, discordLink string) error {
	subID := strings.TrimSpace(ev.Data.SubscriptionID)
	if subID == "" {
		// Recurring billings reuse the billing id as subscription id.
		subID = strings.TrimSpace(ev.Data.TransactionID)
	}
	if subID == "" {
		return errors.New("subscription grant has no provider subscription id")
	}

	planType := strings.TrimSpace(ev.Data.Metadata.PlanType)
	if planType == "" {
		planType = "standard"
	}

	now := s.now()
	metadataJSON, _ := json.Marshal(ev.Data.Metadata)
	sub := &models.Subscription{
		UserID:          userID,
		PlanType:        planType,
		Status:          models.SubscriptionStatusActive,
		StartsAt:        now,
		EndsAt:          now.Add(subscriptionGrantPeriod),
		AbacatePaySubID: subID,
		DiscordLink:     discordLink,
		MetadataJSON:    string(metadataJSON),
	}
	if err := r.UpsertSubscription(sub); err != nil {
		return err
	}
	_ = counter.AddEntitlementGrant(AccessTypeSubscription)
	return nil
}

func (s *Service) grantPurchase(r Repository, userID uint, meta abacatepay.EventMetadata) error {
	contentType := strings.ToUpper(strings.TrimSpace(meta.ContentType))
	contentID := strings.TrimSpace(meta.ContentID)
	if contentType == "" || contentID == "" {
		return errors.New("purchase grant needs contentType and contentId")
	}

	access := &models.UserAccess{
		UserID:      userID,
		ContentType: contentType,
		ContentID:   contentID,
		ExpiresAt:   s.now().Add(purchaseGrantPeriod),
		Source:      models.AccessSourcePurchase,
	}
	if contentType == models.ContentTypeSpreadsheet {
		if id, err := strconv.ParseUint(contentID, 10, 32); err == nil {
			sheetID := uint(id)
			access.SpreadsheetID = &sheetID
		}
	}
	if err := r.UpsertUserAccess(access); err != nil {
		return err
	}
	_ = counter.AddEntitlementGrant(AccessTypePurchase)
	return nil
}

func (s *Service) handleWithdrawFailed(r Repository, ev *abacatepay.Event) error {
	txID := strings.TrimSpace(ev.Data.TransactionID)
	if txID == "" {
		return errors.New("withdraw.failed event has no transaction id")
	}

	tx, err := r.MarkTransactionFailed(txID)
	if err != nil {
		return fmt.Errorf("mark transaction %s failed: %w", txID, err)
	}

	// A failed renewal on a subscription billing moves the subscription to
	// DUNNING. The paid-through date stays untouched.
	var meta abacatepay.EventMetadata
	if err := json.Unmarshal([]byte(tx.MetadataJSON), &meta); err != nil {
		return nil
	}
	if strings.ToUpper(strings.TrimSpace(meta.Type)) != AccessTypeSubscription {
		return nil
	}

	subID := strings.TrimSpace(ev.Data.SubscriptionID)
	if subID == "" {
		subID = txID
	}
	return r.SetSubscriptionStatus(subID, models.SubscriptionStatusDunning)
}

// HasActiveSubscription reports whether the user holds an entitling
// subscription (ACTIVE or DUNNING, not yet expired).
func (s *Service) HasActiveSubscription(ctx context.Context, userID uint) (bool, error) {
	_ = ctx
	subs, err := s.repo.GetSubscriptionsByUser(userID)
	if err != nil {
		return false, err
	}
	now := s.now()
	for i := range subs {
		if subs[i].IsEntitling(now) {
			return true, nil
		}
	}
	return false, nil
}

// HasContentAccess reports whether the user holds a valid one-off
// entitlement for the given content.
func (s *Service) HasContentAccess(ctx context.Context, userID uint, contentType, contentID string) (bool, error) {
	_ = ctx
	access, err := s.repo.GetUserAccess(userID, strings.ToUpper(contentType), contentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, err
	}
	return access.IsValid(s.now()), nil
}

// GetSubscription returns the newest subscription held by the user, or
// gorm.ErrRecordNotFound.
func (s *Service) GetSubscription(ctx context.Context, userID uint) (*models.Subscription, error) {
	_ = ctx
	subs, err := s.repo.GetSubscriptionsByUser(userID)
	if err != nil {
		return nil, err
	}
	if len(subs) == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	best := subs[0]
	for _, sub := range subs[1:] {
		if sub.EndsAt.After(best.EndsAt) {
			best = sub
		}
	}
	return &best, nil
}

// CancelSubscription transitions the local subscription row to CANCELED.
// Cancelling at the provider is the controller's job.
func (s *Service) CancelSubscription(ctx context.Context, abacatePaySubID string) error {
	_ = ctx
	if strings.TrimSpace(abacatePaySubID) == "" {
		return errors.New("subscription id is required")
	}
	return s.repo.SetSubscriptionStatus(abacatePaySubID, models.SubscriptionStatusCanceled)
}

func parseUserID(raw string) (uint, error) {
	id, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 32)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("event metadata has no valid user id (%q)", raw)
	}
	return uint(id), nil
}

func transactionType(accessType string) string {
	if accessType == AccessTypeSubscription {
		return models.TransactionTypeSubscription
	}
	return models.TransactionTypePurchase
}

func discordLinkFromMetadata(metadataJSON string) string {
	if metadataJSON == "" {
		return ""
	}
	var meta abacatepay.EventMetadata
	if err := json.Unmarshal([]byte(metadataJSON), &meta); err != nil {
		return ""
	}
	return strings.TrimSpace(meta.DiscordLink)
}
