package billing

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/zmurilzx/treon/app/models"
	"github.com/zmurilzx/treon/internal/pkg/abacatepay"
)

type fakeRepo struct {
	nextID        uint
	events        map[string]*models.PaymentEvent
	transactions  map[string]*models.Transaction
	subscriptions map[string]*models.Subscription
	accesses      map[string]*models.UserAccess
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		events:        make(map[string]*models.PaymentEvent),
		transactions:  make(map[string]*models.Transaction),
		subscriptions: make(map[string]*models.Subscription),
		accesses:      make(map[string]*models.UserAccess),
	}
}

func (f *fakeRepo) nextPK() uint {
	f.nextID++
	return f.nextID
}

func accessKey(userID uint, contentType, contentID string) string {
	return fmt.Sprintf("%d|%s|%s", userID, contentType, contentID)
}

func (f *fakeRepo) CreatePaymentEventIfNew(event *models.PaymentEvent) (bool, *models.PaymentEvent, error) {
	key := event.Provider + ":" + event.ProviderEventID
	if existing, ok := f.events[key]; ok {
		copied := *existing
		return false, &copied, nil
	}
	event.ID = f.nextPK()
	f.events[key] = event
	copied := *event
	return true, &copied, nil
}

func (f *fakeRepo) findEvent(id uint) *models.PaymentEvent {
	for _, ev := range f.events {
		if ev.ID == id {
			return ev
		}
	}
	return nil
}

func (f *fakeRepo) MarkEventProcessed(id uint) error {
	ev := f.findEvent(id)
	if ev == nil {
		return gorm.ErrRecordNotFound
	}
	now := time.Now()
	ev.Processed = true
	ev.ProcessedAt = &now
	ev.ProcessingError = ""
	return nil
}

func (f *fakeRepo) MarkEventFailed(id uint, processingError string) error {
	ev := f.findEvent(id)
	if ev == nil {
		return gorm.ErrRecordNotFound
	}
	ev.ProcessingError = processingError
	ev.RetryCount++
	return nil
}

func (f *fakeRepo) GetTransactionByProviderID(abacatePayTxID string) (*models.Transaction, error) {
	tx, ok := f.transactions[abacatePayTxID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *tx
	return &copied, nil
}

func (f *fakeRepo) UpsertCompletedTransaction(tx *models.Transaction) error {
	if existing, ok := f.transactions[tx.AbacatePayTxID]; ok {
		existing.Status = tx.Status
		existing.AmountCents = tx.AmountCents
		existing.MetadataJSON = tx.MetadataJSON
		*tx = *existing
		return nil
	}
	tx.ID = f.nextPK()
	copied := *tx
	f.transactions[tx.AbacatePayTxID] = &copied
	return nil
}

func (f *fakeRepo) MarkTransactionFailed(abacatePayTxID string) (*models.Transaction, error) {
	tx, ok := f.transactions[abacatePayTxID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	tx.Status = models.TransactionStatusFailed
	copied := *tx
	return &copied, nil
}

func (f *fakeRepo) UpsertSubscription(sub *models.Subscription) error {
	if existing, ok := f.subscriptions[sub.AbacatePaySubID]; ok {
		existing.UserID = sub.UserID
		existing.PlanType = sub.PlanType
		existing.Status = sub.Status
		existing.EndsAt = sub.EndsAt
		existing.DiscordLink = sub.DiscordLink
		existing.MetadataJSON = sub.MetadataJSON
		*sub = *existing
		return nil
	}
	sub.ID = f.nextPK()
	copied := *sub
	f.subscriptions[sub.AbacatePaySubID] = &copied
	return nil
}

func (f *fakeRepo) GetSubscriptionByProviderID(abacatePaySubID string) (*models.Subscription, error) {
	sub, ok := f.subscriptions[abacatePaySubID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *sub
	return &copied, nil
}

func (f *fakeRepo) SetSubscriptionStatus(abacatePaySubID, status string) error {
	sub, ok := f.subscriptions[abacatePaySubID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	sub.Status = status
	return nil
}

func (f *fakeRepo) GetSubscriptionsByUser(userID uint) ([]models.Subscription, error) {
	var subs []models.Subscription
	for _, sub := range f.subscriptions {
		if sub.UserID == userID {
			subs = append(subs, *sub)
		}
	}
	return subs, nil
}

func (f *fakeRepo) UpsertUserAccess(access *models.UserAccess) error {
	key := accessKey(access.UserID, access.ContentType, access.ContentID)
	if existing, ok := f.accesses[key]; ok {
		existing.SpreadsheetID = access.SpreadsheetID
		existing.ExpiresAt = access.ExpiresAt
		existing.Source = access.Source
		*access = *existing
		return nil
	}
	access.ID = f.nextPK()
	copied := *access
	f.accesses[key] = &copied
	return nil
}

func (f *fakeRepo) GetUserAccess(userID uint, contentType, contentID string) (*models.UserAccess, error) {
	access, ok := f.accesses[accessKey(userID, contentType, contentID)]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *access
	return &copied, nil
}

func (f *fakeRepo) InTransaction(fn func(Repository) error) error {
	return fn(f)
}

func paidEvent(eventID, txID, accessType string, meta abacatepay.EventMetadata) *abacatepay.Event {
	meta.Type = accessType
	return &abacatepay.Event{
		ID:   eventID,
		Type: EventBillingPaid,
		Data: abacatepay.EventData{
			TransactionID: txID,
			AmountCents:   4990,
			Metadata:      meta,
		},
	}
}

func process(t *testing.T, svc *Service, repo *fakeRepo, ev *abacatepay.Event) *models.PaymentEvent {
	t.Helper()
	raw, _ := json.Marshal(ev)
	created, stored, err := svc.RecordEvent(context.Background(), ev, raw, "test-signature")
	if err != nil {
		t.Fatalf("RecordEvent: %v", err)
	}
	if !created && stored.Processed {
		return stored
	}
	if err := svc.Process(context.Background(), stored, ev); err != nil {
		t.Fatalf("Process: %v", err)
	}
	return repo.findEvent(stored.ID)
}

func TestRecordEvent_DuplicateIsNotCreated(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo)
	ev := paidEvent("evt_1", "tx-1", AccessTypePurchase, abacatepay.EventMetadata{
		UserID: "1", ContentType: "METHOD", ContentID: "m1",
	})
	raw, _ := json.Marshal(ev)

	created, _, err := svc.RecordEvent(context.Background(), ev, raw, "test-signature")
	if err != nil || !created {
		t.Fatalf("first RecordEvent: created=%v err=%v", created, err)
	}
	created, stored, err := svc.RecordEvent(context.Background(), ev, raw, "test-signature")
	if err != nil {
		t.Fatalf("second RecordEvent: %v", err)
	}
	if created {
		t.Fatalf("expected duplicate delivery to not create a second row")
	}
	if stored.ID == 0 {
		t.Fatalf("expected stored row to be returned for duplicate")
	}
}

func TestRecordEvent_MissingIDFallsBackToPayloadHash(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo)
	ev := paidEvent("", "tx-1", AccessTypePurchase, abacatepay.EventMetadata{UserID: "1", ContentType: "METHOD", ContentID: "m1"})
	raw, _ := json.Marshal(ev)

	created, stored, err := svc.RecordEvent(context.Background(), ev, raw, "test-signature")
	if err != nil || !created {
		t.Fatalf("RecordEvent: created=%v err=%v", created, err)
	}
	if len(stored.ProviderEventID) < 10 || stored.ProviderEventID[:5] != "hash:" {
		t.Fatalf("expected payload-hash event id, got %q", stored.ProviderEventID)
	}

	// Byte-identical redelivery maps to the same hash.
	created, _, err = svc.RecordEvent(context.Background(), ev, raw, "test-signature")
	if err != nil || created {
		t.Fatalf("expected redelivery to dedupe, created=%v err=%v", created, err)
	}
}

func TestProcess_PurchaseGrantsUserAccess(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo)
	ev := paidEvent("evt_1", "tx-1", AccessTypePurchase, abacatepay.EventMetadata{
		UserID: "7", UserEmail: "punter@example.com", ContentType: "METHOD", ContentID: "m1",
	})

	stored := process(t, svc, repo, ev)

	if !stored.Processed || stored.ProcessedAt == nil {
		t.Fatalf("expected audit row processed, got %+v", stored)
	}
	tx, err := repo.GetTransactionByProviderID("tx-1")
	if err != nil {
		t.Fatalf("expected transaction row: %v", err)
	}
	if tx.Status != models.TransactionStatusCompleted || tx.UserID != 7 || tx.AmountCents != 4990 {
		t.Fatalf("unexpected transaction: %+v", tx)
	}
	access, err := repo.GetUserAccess(7, "METHOD", "m1")
	if err != nil {
		t.Fatalf("expected user access row: %v", err)
	}
	wantExpiry := time.Now().Add(purchaseGrantPeriod)
	if diff := access.ExpiresAt.Sub(wantExpiry); diff < -time.Minute || diff > time.Minute {
		t.Fatalf("expected ~1y expiry, got %v", access.ExpiresAt)
	}
	if access.Source != models.AccessSourcePurchase {
		t.Fatalf("expected PURCHASE source, got %q", access.Source)
	}
}

func TestProcess_PurchaseTwiceKeepsOneRowWithLaterExpiry(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo)
	meta := abacatepay.EventMetadata{UserID: "7", ContentType: "METHOD", ContentID: "m1"}

	process(t, svc, repo, paidEvent("evt_1", "tx-1", AccessTypePurchase, meta))
	first, _ := repo.GetUserAccess(7, "METHOD", "m1")

	svc.now = func() time.Time { return time.Now().Add(48 * time.Hour) }
	process(t, svc, repo, paidEvent("evt_2", "tx-2", AccessTypePurchase, meta))

	if len(repo.accesses) != 1 {
		t.Fatalf("expected exactly one access row, got %d", len(repo.accesses))
	}
	second, _ := repo.GetUserAccess(7, "METHOD", "m1")
	if !second.ExpiresAt.After(first.ExpiresAt) {
		t.Fatalf("expected expiry to advance: first=%v second=%v", first.ExpiresAt, second.ExpiresAt)
	}
}

func TestProcess_SubscriptionGrantIsIdempotentUpsert(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo)
	ev := paidEvent("evt_1", "sub-1", AccessTypeSubscription, abacatepay.EventMetadata{
		UserID: "3", PlanType: "pro", DiscordLink: "https://discord.gg/treon",
	})

	process(t, svc, repo, ev)
	sub, err := repo.GetSubscriptionByProviderID("sub-1")
	if err != nil {
		t.Fatalf("expected subscription row: %v", err)
	}
	if sub.Status != models.SubscriptionStatusActive || sub.PlanType != "pro" {
		t.Fatalf("unexpected subscription: %+v", sub)
	}
	if sub.DiscordLink != "https://discord.gg/treon" {
		t.Fatalf("expected discord link to propagate, got %q", sub.DiscordLink)
	}
	firstEnd := sub.EndsAt

	// Renewal 10 days later: same provider id, end date advances, one row.
	svc.now = func() time.Time { return time.Now().Add(10 * 24 * time.Hour) }
	process(t, svc, repo, paidEvent("evt_2", "sub-1", AccessTypeSubscription, abacatepay.EventMetadata{
		UserID: "3", PlanType: "pro",
	}))

	if len(repo.subscriptions) != 1 {
		t.Fatalf("expected exactly one subscription row, got %d", len(repo.subscriptions))
	}
	sub, _ = repo.GetSubscriptionByProviderID("sub-1")
	if !sub.EndsAt.After(firstEnd) {
		t.Fatalf("expected end date to advance on renewal")
	}
}

func TestProcess_SubscriptionRecoversDiscordLinkFromPendingTransaction(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo)

	// Checkout created a pending transaction carrying the destination link.
	meta, _ := json.Marshal(abacatepay.EventMetadata{
		UserID: "3", Type: AccessTypeSubscription, PlanType: "pro", DiscordLink: "https://discord.gg/vip",
	})
	repo.transactions["sub-1"] = &models.Transaction{
		ID: repo.nextPK(), UserID: 3, Type: models.TransactionTypeSubscription,
		Status: models.TransactionStatusPending, AbacatePayTxID: "sub-1", MetadataJSON: string(meta),
	}

	// The paid event itself does not carry the link.
	process(t, svc, repo, paidEvent("evt_1", "sub-1", AccessTypeSubscription, abacatepay.EventMetadata{
		UserID: "3", PlanType: "pro",
	}))

	sub, err := repo.GetSubscriptionByProviderID("sub-1")
	if err != nil {
		t.Fatalf("expected subscription row: %v", err)
	}
	if sub.DiscordLink != "https://discord.gg/vip" {
		t.Fatalf("expected link recovered from pending transaction, got %q", sub.DiscordLink)
	}
}

func TestProcess_WithdrawFailedMovesSubscriptionToDunning(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo)

	process(t, svc, repo, paidEvent("evt_1", "sub-1", AccessTypeSubscription, abacatepay.EventMetadata{
		UserID: "3", PlanType: "pro",
	}))
	before, _ := repo.GetSubscriptionByProviderID("sub-1")

	failed := &abacatepay.Event{
		ID:   "evt_2",
		Type: EventWithdrawFailed,
		Data: abacatepay.EventData{TransactionID: "sub-1"},
	}
	process(t, svc, repo, failed)

	tx, _ := repo.GetTransactionByProviderID("sub-1")
	if tx.Status != models.TransactionStatusFailed {
		t.Fatalf("expected transaction FAILED, got %q", tx.Status)
	}
	after, _ := repo.GetSubscriptionByProviderID("sub-1")
	if after.Status != models.SubscriptionStatusDunning {
		t.Fatalf("expected DUNNING, got %q", after.Status)
	}
	if !after.EndsAt.Equal(before.EndsAt) {
		t.Fatalf("dunning must not move ends_at: before=%v after=%v", before.EndsAt, after.EndsAt)
	}
}

func TestProcess_WithdrawFailedUnknownTransactionIsHandlerFailure(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo)

	ev := &abacatepay.Event{
		ID:   "evt_1",
		Type: EventWithdrawFailed,
		Data: abacatepay.EventData{TransactionID: "missing-tx"},
	}
	raw, _ := json.Marshal(ev)
	_, stored, err := svc.RecordEvent(context.Background(), ev, raw, "test-signature")
	if err != nil {
		t.Fatalf("RecordEvent: %v", err)
	}

	if err := svc.Process(context.Background(), stored, ev); err == nil {
		t.Fatalf("expected handler failure for unknown transaction")
	}

	audit := repo.findEvent(stored.ID)
	if audit.Processed {
		t.Fatalf("failed event must not be marked processed")
	}
	if audit.RetryCount != 1 || audit.ProcessingError == "" {
		t.Fatalf("expected error + retry count on audit row, got %+v", audit)
	}
}

func TestProcess_UnknownEventTypeIsNoOpSuccess(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo)

	ev := &abacatepay.Event{ID: "evt_1", Type: "billing.refund_requested"}
	raw, _ := json.Marshal(ev)
	_, stored, _ := svc.RecordEvent(context.Background(), ev, raw, "test-signature")

	if err := svc.Process(context.Background(), stored, ev); err != nil {
		t.Fatalf("unknown event type must not fail: %v", err)
	}
	if audit := repo.findEvent(stored.ID); !audit.Processed {
		t.Fatalf("unknown event should still be marked processed")
	}
	if len(repo.transactions)+len(repo.subscriptions)+len(repo.accesses) != 0 {
		t.Fatalf("unknown event must not write domain rows")
	}
}

func TestProcess_UnknownAccessTypeGrantsNothing(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo)

	process(t, svc, repo, paidEvent("evt_1", "tx-1", "GIFT", abacatepay.EventMetadata{UserID: "7"}))

	if _, err := repo.GetTransactionByProviderID("tx-1"); err != nil {
		t.Fatalf("payment itself should still be recorded: %v", err)
	}
	if len(repo.subscriptions) != 0 || len(repo.accesses) != 0 {
		t.Fatalf("unknown access type must not grant entitlements")
	}
}

func TestHasActiveSubscription(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo)

	ok, err := svc.HasActiveSubscription(context.Background(), 3)
	if err != nil || ok {
		t.Fatalf("expected no subscription, ok=%v err=%v", ok, err)
	}

	process(t, svc, repo, paidEvent("evt_1", "sub-1", AccessTypeSubscription, abacatepay.EventMetadata{
		UserID: "3", PlanType: "pro",
	}))
	svc.now = time.Now

	ok, err = svc.HasActiveSubscription(context.Background(), 3)
	if err != nil || !ok {
		t.Fatalf("expected entitling subscription, ok=%v err=%v", ok, err)
	}

	// DUNNING keeps access until the paid period ends.
	if err := repo.SetSubscriptionStatus("sub-1", models.SubscriptionStatusDunning); err != nil {
		t.Fatalf("SetSubscriptionStatus: %v", err)
	}
	ok, _ = svc.HasActiveSubscription(context.Background(), 3)
	if !ok {
		t.Fatalf("dunning subscription inside the paid period should entitle")
	}

	if err := repo.SetSubscriptionStatus("sub-1", models.SubscriptionStatusCanceled); err != nil {
		t.Fatalf("SetSubscriptionStatus: %v", err)
	}
	ok, _ = svc.HasActiveSubscription(context.Background(), 3)
	if ok {
		t.Fatalf("canceled subscription must not entitle")
	}
}
