package controllers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/zmurilzx/treon/app/models"
	"github.com/zmurilzx/treon/internal/pkg/abacatepay"
	"github.com/zmurilzx/treon/internal/pkg/billing"
)

const testWebhookSecret = "whsec_test_secret"

// memoryRepo is an in-memory billing.Repository for exercising the webhook
// endpoint without a database.
type memoryRepo struct {
	nextEventID   uint
	events        map[string]*models.PaymentEvent // provider:providerEventID
	transactions  map[string]*models.Transaction  // abacatePayTxID
	subscriptions map[string]*models.Subscription // abacatePaySubID
	accesses      map[string]*models.UserAccess   // userID|contentType|contentID
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		events:        make(map[string]*models.PaymentEvent),
		transactions:  make(map[string]*models.Transaction),
		subscriptions: make(map[string]*models.Subscription),
		accesses:      make(map[string]*models.UserAccess),
	}
}

func (m *memoryRepo) CreatePaymentEventIfNew(event *models.PaymentEvent) (bool, *models.PaymentEvent, error) {
	key := event.Provider + ":" + event.ProviderEventID
	if existing, ok := m.events[key]; ok {
		return false, existing, nil
	}
	m.nextEventID++
	stored := *event
	stored.ID = m.nextEventID
	m.events[key] = &stored
	return true, &stored, nil
}

func (m *memoryRepo) MarkEventProcessed(id uint) error {
	for _, ev := range m.events {
		if ev.ID == id {
			ev.Processed = true
			ev.ProcessingError = ""
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (m *memoryRepo) MarkEventFailed(id uint, processingError string) error {
	for _, ev := range m.events {
		if ev.ID == id {
			ev.ProcessingError = processingError
			ev.RetryCount++
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (m *memoryRepo) GetTransactionByProviderID(txID string) (*models.Transaction, error) {
	if tx, ok := m.transactions[txID]; ok {
		return tx, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *memoryRepo) UpsertCompletedTransaction(tx *models.Transaction) error {
	stored := *tx
	m.transactions[tx.AbacatePayTxID] = &stored
	return nil
}

func (m *memoryRepo) MarkTransactionFailed(txID string) (*models.Transaction, error) {
	tx, ok := m.transactions[txID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	tx.Status = models.TransactionStatusFailed
	return tx, nil
}

func (m *memoryRepo) UpsertSubscription(sub *models.Subscription) error {
	stored := *sub
	m.subscriptions[sub.AbacatePaySubID] = &stored
	return nil
}

func (m *memoryRepo) GetSubscriptionByProviderID(subID string) (*models.Subscription, error) {
	if sub, ok := m.subscriptions[subID]; ok {
		return sub, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *memoryRepo) SetSubscriptionStatus(subID, status string) error {
	if sub, ok := m.subscriptions[subID]; ok {
		sub.Status = status
	}
	return nil
}

func (m *memoryRepo) GetSubscriptionsByUser(userID uint) ([]models.Subscription, error) {
	var out []models.Subscription
	for _, sub := range m.subscriptions {
		if sub.UserID == userID {
			out = append(out, *sub)
		}
	}
	return out, nil
}

func (m *memoryRepo) UpsertUserAccess(access *models.UserAccess) error {
	key := fmt.Sprintf("%d|%s|%s", access.UserID, access.ContentType, access.ContentID)
	stored := *access
	m.accesses[key] = &stored
	return nil
}

func (m *memoryRepo) GetUserAccess(userID uint, contentType, contentID string) (*models.UserAccess, error) {
	key := fmt.Sprintf("%d|%s|%s", userID, contentType, contentID)
	if access, ok := m.accesses[key]; ok {
		return access, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *memoryRepo) InTransaction(fn func(billing.Repository) error) error {
	return fn(m)
}

func newWebhookTestApp(repo billing.Repository) *fiber.App {
	app := fiber.New()
	svc := billing.NewService(repo)
	app.Post("/webhooks/abacatepay", func(c *fiber.Ctx) error {
		return handleAbacatePayWebhook(c, svc)
	})
	return app
}

func signedWebhookRequest(t *testing.T, body []byte, secret string) *http.Request {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/webhooks/abacatepay", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(webhookSignatureHeader, abacatepay.SignPayload(body, secret))
	return req
}

func paidPurchaseBody(t *testing.T, eventID, txID string) []byte {
	t.Helper()
	body, err := json.Marshal(map[string]interface{}{
		"id":   eventID,
		"type": "billing.paid",
		"data": map[string]interface{}{
			"transactionId": txID,
			"amount":        9900,
			"metadata": map[string]interface{}{
				"userId":      "42",
				"userEmail":   "punter@example.com",
				"type":        "PURCHASE",
				"contentType": "METHOD",
				"contentId":   "metodo-surebet",
			},
		},
	})
	require.NoError(t, err)
	return body
}

func TestWebhookPaidPurchaseGrantsAccess(t *testing.T) {
	t.Setenv("ABACATEPAY_WEBHOOK_SECRET", testWebhookSecret)

	repo := newMemoryRepo()
	app := newWebhookTestApp(repo)

	body := paidPurchaseBody(t, "evt_1", "bill_1")
	resp, err := app.Test(signedWebhookRequest(t, body, testWebhookSecret), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	ev, ok := repo.events["abacatepay:evt_1"]
	require.True(t, ok, "audit row should exist")
	assert.True(t, ev.Processed)
	assert.Empty(t, ev.ProcessingError)

	tx, ok := repo.transactions["bill_1"]
	require.True(t, ok)
	assert.Equal(t, models.TransactionStatusCompleted, tx.Status)
	assert.Equal(t, int64(9900), tx.AmountCents)

	access, ok := repo.accesses["42|METHOD|metodo-surebet"]
	require.True(t, ok, "entitlement should be granted")
	assert.Equal(t, models.AccessSourcePurchase, access.Source)
}

func TestWebhookDuplicateDeliveryIsNoOp(t *testing.T) {
	t.Setenv("ABACATEPAY_WEBHOOK_SECRET", testWebhookSecret)

	repo := newMemoryRepo()
	app := newWebhookTestApp(repo)
	body := paidPurchaseBody(t, "evt_dup", "bill_dup")

	resp, err := app.Test(signedWebhookRequest(t, body, testWebhookSecret), -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = app.Test(signedWebhookRequest(t, body, testWebhookSecret), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var payload map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	assert.Equal(t, true, payload["duplicate"])

	assert.Len(t, repo.events, 1, "redelivery must not create a second audit row")
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	t.Setenv("ABACATEPAY_WEBHOOK_SECRET", testWebhookSecret)

	repo := newMemoryRepo()
	app := newWebhookTestApp(repo)
	body := paidPurchaseBody(t, "evt_bad_sig", "bill_bad_sig")

	req := signedWebhookRequest(t, body, "wrong_secret")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	assert.Empty(t, repo.events, "rejected delivery must leave no rows")
	assert.Empty(t, repo.transactions)
	assert.Empty(t, repo.accesses)
}

func TestWebhookRejectsMissingSignature(t *testing.T) {
	t.Setenv("ABACATEPAY_WEBHOOK_SECRET", testWebhookSecret)

	repo := newMemoryRepo()
	app := newWebhookTestApp(repo)
	body := paidPurchaseBody(t, "evt_no_sig", "bill_no_sig")

	req := httptest.NewRequest(http.MethodPost, "/webhooks/abacatepay", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Empty(t, repo.events)
}

func TestWebhookRejectsMalformedBody(t *testing.T) {
	t.Setenv("ABACATEPAY_WEBHOOK_SECRET", testWebhookSecret)

	repo := newMemoryRepo()
	app := newWebhookTestApp(repo)

	// Correctly signed, but not a parseable event.
	body := []byte(`{"this is": "not an event"`)
	resp, err := app.Test(signedWebhookRequest(t, body, testWebhookSecret), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	assert.Empty(t, repo.events, "malformed delivery must leave no rows")
}

func TestWebhookHandlerFailureReturns500(t *testing.T) {
	t.Setenv("ABACATEPAY_WEBHOOK_SECRET", testWebhookSecret)

	repo := newMemoryRepo()
	app := newWebhookTestApp(repo)

	// withdraw.failed for a transaction nobody has seen cannot be applied.
	body, err := json.Marshal(map[string]interface{}{
		"id":   "evt_orphan",
		"type": "withdraw.failed",
		"data": map[string]interface{}{
			"transactionId": "bill_unknown",
		},
	})
	require.NoError(t, err)

	resp, err := app.Test(signedWebhookRequest(t, body, testWebhookSecret), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)

	ev, ok := repo.events["abacatepay:evt_orphan"]
	require.True(t, ok, "audit row is kept for retries")
	assert.False(t, ev.Processed)
	assert.NotEmpty(t, ev.ProcessingError)
	assert.Equal(t, 1, ev.RetryCount)
}

func TestWebhookUnknownEventTypeIsAccepted(t *testing.T) {
	t.Setenv("ABACATEPAY_WEBHOOK_SECRET", testWebhookSecret)

	repo := newMemoryRepo()
	app := newWebhookTestApp(repo)

	body, err := json.Marshal(map[string]interface{}{
		"id":   "evt_future",
		"type": "billing.refund_requested",
		"data": map[string]interface{}{},
	})
	require.NoError(t, err)

	resp, err := app.Test(signedWebhookRequest(t, body, testWebhookSecret), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	ev, ok := repo.events["abacatepay:evt_future"]
	require.True(t, ok)
	assert.True(t, ev.Processed, "unknown types are recorded and acknowledged")
	assert.Empty(t, repo.transactions)
	assert.Empty(t, repo.accesses)
	assert.Empty(t, repo.subscriptions)
}
