package counter

import (
	"context"
	"strconv"

	"github.com/zmurilzx/treon/internal/pkg/cache"
)

const (
	webhookEventsKey      = "webhook:counters:events"
	webhookUnknownKey     = "webhook:counters:unknown_events"
	accessTypeUnknownKey  = "webhook:counters:unknown_access_types"
	entitlementGrantsKey  = "webhook:counters:grants"
	webhookFailuresKey    = "webhook:counters:failures"
	webhookSignatureNacks = "webhook:counters:signature_rejects"
)

// AddWebhookEvent increments the per-type counter for an accepted event.
func AddWebhookEvent(eventType string) error {
	return cache.GetClient().HIncrBy(context.Background(), webhookEventsKey, eventType, 1).Err()
}

// AddUnknownWebhookEvent counts event types outside the closed set. Silent
// entitlement gaps show up here instead of disappearing.
func AddUnknownWebhookEvent(eventType string) error {
	return cache.GetClient().HIncrBy(context.Background(), webhookUnknownKey, eventType, 1).Err()
}

// AddUnknownAccessType counts access-type tags the granter does not recognize.
func AddUnknownAccessType(accessType string) error {
	return cache.GetClient().HIncrBy(context.Background(), accessTypeUnknownKey, accessType, 1).Err()
}

// AddEntitlementGrant counts granted entitlements by kind.
func AddEntitlementGrant(kind string) error {
	return cache.GetClient().HIncrBy(context.Background(), entitlementGrantsKey, kind, 1).Err()
}

// AddWebhookFailure counts handler failures by event type.
func AddWebhookFailure(eventType string) error {
	return cache.GetClient().HIncrBy(context.Background(), webhookFailuresKey, eventType, 1).Err()
}

// AddSignatureReject counts rejected deliveries (bad signature or body).
func AddSignatureReject() error {
	return cache.GetClient().Incr(context.Background(), webhookSignatureNacks).Err()
}

// WebhookCounters returns all webhook counter hashes for the admin endpoint.
func WebhookCounters() (map[string]map[string]int64, error) {
	ctx := context.Background()
	rdb := cache.GetClient()

	out := make(map[string]map[string]int64)
	for name, key := range map[string]string{
		"events":               webhookEventsKey,
		"unknown_events":       webhookUnknownKey,
		"unknown_access_types": accessTypeUnknownKey,
		"grants":               entitlementGrantsKey,
		"failures":             webhookFailuresKey,
	} {
		raw, err := rdb.HGetAll(ctx, key).Result()
		if err != nil {
			return nil, err
		}
		vals := make(map[string]int64, len(raw))
		for field, v := range raw {
			if n, err := strconv.ParseInt(v, 10, 64); err == nil {
				vals[field] = n
			}
		}
		out[name] = vals
	}

	rejects, err := rdb.Get(ctx, webhookSignatureNacks).Int64()
	if err == nil {
		out["signature_rejects"] = map[string]int64{"total": rejects}
	}
	return out, nil
}
