package abacatepay

import (
	"testing"
)

func TestVerifyWebhookSignature(t *testing.T) {
	payload := []byte(`{"type":"billing.paid","data":{}}`)
	secret := "top-secret"

	validSig := SignPayload(payload, secret)

	if !VerifyWebhookSignature(payload, validSig, secret) {
		t.Fatalf("expected signature to validate")
	}
	if VerifyWebhookSignature(payload, validSig, "other-secret") {
		t.Fatalf("expected signature under another secret to fail")
	}

	mutated := append([]byte(nil), payload...)
	mutated[0] ^= 0x01
	if VerifyWebhookSignature(mutated, validSig, secret) {
		t.Fatalf("expected mutated payload to fail verification")
	}

	if VerifyWebhookSignature(payload, "", secret) {
		t.Fatalf("expected empty signature to fail")
	}
	if VerifyWebhookSignature(payload, "not-hex", secret) {
		t.Fatalf("expected non-hex signature to fail")
	}
	if VerifyWebhookSignature(payload, validSig, "") {
		t.Fatalf("expected empty secret to fail")
	}
}

func TestVerifyWebhookSignature_CaseInsensitiveHex(t *testing.T) {
	payload := []byte(`{"type":"withdraw.done"}`)
	secret := "s3cr3t"

	sig := SignPayload(payload, secret)
	upper := []byte(sig)
	for i, b := range upper {
		if b >= 'a' && b <= 'f' {
			upper[i] = b - 'a' + 'A'
		}
	}

	if !VerifyWebhookSignature(payload, string(upper), secret) {
		t.Fatalf("expected uppercase hex signature to validate")
	}
}

func TestParseEvent(t *testing.T) {
	raw := []byte(`{
		"id": "evt_123",
		"type": "billing.paid",
		"data": {
			"transactionId": "tx-1",
			"amount": 4990,
			"metadata": {
				"userId": "7",
				"userEmail": "punter@example.com",
				"type": "PURCHASE",
				"contentType": "METHOD",
				"contentId": "m1"
			}
		}
	}`)

	ev, err := ParseEvent(raw)
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	if ev.ID != "evt_123" || ev.Type != "billing.paid" {
		t.Fatalf("unexpected envelope: id=%q type=%q", ev.ID, ev.Type)
	}
	if ev.Data.TransactionID != "tx-1" || ev.Data.AmountCents != 4990 {
		t.Fatalf("unexpected data: %+v", ev.Data)
	}
	if ev.Data.Metadata.UserID != "7" || ev.Data.Metadata.ContentType != "METHOD" {
		t.Fatalf("unexpected metadata: %+v", ev.Data.Metadata)
	}

	if _, err := ParseEvent([]byte(`not json`)); err == nil {
		t.Fatalf("expected malformed body to fail")
	}
	if _, err := ParseEvent([]byte(`{"data":{}}`)); err == nil {
		t.Fatalf("expected missing type to fail")
	}
}
