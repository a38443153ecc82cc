package billing

import (
	"strings"
	"testing"
	"time"
)

func TestVerifyStripeWebhookSignature(t *testing.T) {
	payload := []byte(`{"id":"evt_1","type":"checkout.session.completed"}`)
	secret := "whsec_test"
	now := time.Unix(1_700_000_000, 0)

	header := SignStripePayload(payload, secret, now)
	if !VerifyStripeWebhookSignature(payload, header, secret, now) {
		t.Fatalf("expected signature to validate")
	}
	if !VerifyStripeWebhookSignature(payload, header, secret, now.Add(4*time.Minute)) {
		t.Fatalf("expected signature inside tolerance to validate")
	}
	if VerifyStripeWebhookSignature(payload, header, secret, now.Add(6*time.Minute)) {
		t.Fatalf("expected stale signature to fail")
	}
	if VerifyStripeWebhookSignature(payload, header, "other", now) {
		t.Fatalf("expected wrong secret to fail")
	}
	if VerifyStripeWebhookSignature([]byte(`{"id":"evt_2"}`), header, secret, now) {
		t.Fatalf("expected tampered payload to fail")
	}
	if VerifyStripeWebhookSignature(payload, header, "", now) {
		t.Fatalf("expected empty secret to fail")
	}
}

func TestVerifyStripeWebhookSignature_MultipleV1(t *testing.T) {
	payload := []byte(`{}`)
	secret := "whsec_rotate"
	now := time.Unix(1_700_000_000, 0)

	good := SignStripePayload(payload, secret, now)
	_, sig, _ := strings.Cut(good, ",")
	header := "t=1700000000,v1=deadbeef," + sig
	if !VerifyStripeWebhookSignature(payload, header, secret, now) {
		t.Fatalf("expected one matching v1 signature to be enough")
	}
}

func TestVerifyStripeWebhookSignature_Malformed(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	for _, header := range []string{"", "t=abc,v1=00", "v1=00", "t=1700000000", "garbage"} {
		if VerifyStripeWebhookSignature([]byte(`{}`), header, "s", now) {
			t.Fatalf("header %q should not validate", header)
		}
	}
}
