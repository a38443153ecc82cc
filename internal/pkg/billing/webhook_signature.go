package billing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"hash"
	"strconv"
	"strings"
	"time"
)

// StripeSignatureTolerance bounds the age of a signed webhook.
const StripeSignatureTolerance = 5 * time.Minute

// VerifyStripeWebhookSignature checks a `Stripe-Signature: t=...,v1=...`
// header. Any of several v1 signatures may match.
func VerifyStripeWebhookSignature(payload []byte, signatureHeader, webhookSecret string, now time.Time) bool {
	secret := strings.TrimSpace(webhookSecret)
	if secret == "" {
		return false
	}

	var timestamp string
	var signatures [][]byte
	for _, part := range strings.Split(signatureHeader, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch k {
		case "t":
			timestamp = v
		case "v1":
			if sig, err := hex.DecodeString(strings.ToLower(v)); err == nil {
				signatures = append(signatures, sig)
			}
		}
	}
	if timestamp == "" || len(signatures) == 0 {
		return false
	}

	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return false
	}
	age := now.Sub(time.Unix(ts, 0))
	if age > StripeSignatureTolerance || age < -StripeSignatureTolerance {
		return false
	}

	signed := make([]byte, 0, len(timestamp)+1+len(payload))
	signed = append(signed, timestamp...)
	signed = append(signed, '.')
	signed = append(signed, payload...)

	for _, sig := range signatures {
		if verifyHMAC(signed, sig, []byte(secret), sha256.New) {
			return true
		}
	}
	return false
}

// SignStripePayload builds a signature header, used by tests and local tooling.
func SignStripePayload(payload []byte, secret string, at time.Time) string {
	ts := strconv.FormatInt(at.Unix(), 10)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(ts + "."))
	mac.Write(payload)
	return "t=" + ts + ",v1=" + hex.EncodeToString(mac.Sum(nil))
}

func verifyHMAC(payload, expectedSig, secret []byte, hashFunc func() hash.Hash) bool {
	mac := hmac.New(hashFunc, secret)
	mac.Write(payload)
	return hmac.Equal(mac.Sum(nil), expectedSig)
}
