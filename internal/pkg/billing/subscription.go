package billing

import (
	"strings"
	"time"

	"github.com/hangarlinks/hangarlinks/app/models"
	"github.com/hangarlinks/hangarlinks/internal/pkg/entitlements"
)

// SubscriptionUpdate is a subscription as reported by a provider, before it
// is written to billing_subscriptions.
type SubscriptionUpdate struct {
	UserID                 uint
	Provider               string
	ProviderSubscriptionID string
	ProviderCustomerID     string
	PlanCode               string
	BillingInterval        string
	Status                 string
	CurrentPeriodEnd       *time.Time
	CancelAtPeriodEnd      bool
	RawPayloadJSON         string
}

// WebhookDelivery is one received webhook call.
type WebhookDelivery struct {
	Provider        string
	ProviderEventID string
	EventType       string
	PayloadJSON     string
	SignatureValid  bool
}

// Statuses that keep paid features on. past_due stays entitled while the
// provider retries the charge.
var entitlingStatuses = map[string]bool{
	"active":   true,
	"trialing": true,
	"past_due": true,
}

func entitles(status string) bool {
	return entitlingStatuses[strings.ToLower(strings.TrimSpace(status))]
}

// tierForPlanCode maps a catalog plan code to the tier it grants. Bare tier
// names pass through normalized.
func tierForPlanCode(code string) entitlements.Plan {
	if _, ok := entitlements.PlanByCode(code); ok {
		return entitlements.PlanPremium
	}
	return entitlements.Normalize(code)
}

func billingInterval(raw string) string {
	switch i := strings.ToLower(strings.TrimSpace(raw)); i {
	case models.BillingIntervalMonth, models.BillingIntervalYear:
		return i
	}
	return models.BillingIntervalUnknown
}

// effectiveTier is the best tier any entitling subscription grants.
func effectiveTier(subs []models.BillingSubscription) entitlements.Plan {
	for _, sub := range subs {
		if entitles(sub.Status) && entitlements.Normalize(sub.Tier) == entitlements.PlanPremium {
			return entitlements.PlanPremium
		}
	}
	return entitlements.PlanFree
}
