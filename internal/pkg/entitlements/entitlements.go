package entitlements

import (
	"strings"
	"time"

	"github.com/hangarlinks/hangarlinks/app/models"
)

type Plan string

const (
	PlanFree    Plan = "free"
	PlanPremium Plan = "premium"
)

const (
	FreeActiveListings = 1
	FreeDailySearches  = 5
)

// PlanInfo describes a subscription plan offered on the pricing page.
type PlanInfo struct {
	Code       string
	Name       string
	PriceCents int64
	Interval   string
	Features   []string
}

// PriceDisplay formats the price as dollars without a currency sign.
func (p PlanInfo) PriceDisplay() string {
	return formatCents(p.PriceCents)
}

var OwnerPremium = PlanInfo{
	Code:       "owner_premium",
	Name:       "Owner Premium",
	PriceCents: 999,
	Interval:   "month",
	Features: []string{
		"Unlimited active listings",
		"Priority placement",
		"Analytics",
		"Premium badge",
		"Verified Owner",
		"Export reports",
	},
}

var RenterPremium = PlanInfo{
	Code:       "renter_premium",
	Name:       "Renter Premium",
	PriceCents: 699,
	Interval:   "month",
	Features: []string{
		"Unlimited searches",
		"Saved alerts",
		"Priority support",
		"Premium badge",
		"Early access",
		"Advanced filters",
	},
}

// PlanForRole picks the premium plan matching the user's role.
func PlanForRole(role string) PlanInfo {
	if role == models.ROLE_OWNER {
		return OwnerPremium
	}
	return RenterPremium
}

// PlanByCode resolves a catalog plan code.
func PlanByCode(code string) (PlanInfo, bool) {
	switch strings.ToLower(strings.TrimSpace(code)) {
	case OwnerPremium.Code:
		return OwnerPremium, true
	case RenterPremium.Code:
		return RenterPremium, true
	}
	return PlanInfo{}, false
}

// PlanOf returns the effective plan of a user.
func PlanOf(u *models.User) Plan {
	if u != nil && u.HasPremium() {
		return PlanPremium
	}
	return PlanFree
}

// Normalize maps unknown plan names to free.
func Normalize(plan string) Plan {
	if Plan(strings.ToLower(strings.TrimSpace(plan))) == PlanPremium {
		return PlanPremium
	}
	return PlanFree
}

// CanCreateListing reports whether the owner may add another Active listing.
func CanCreateListing(u *models.User, activeListings int64) bool {
	if PlanOf(u) == PlanPremium {
		return true
	}
	return activeListings < FreeActiveListings
}

// ConsumeSearch counts one search against a free renter's daily allowance.
// It returns whether the search is allowed and whether u was modified and
// needs saving. Anonymous users, owners and premium users are never limited.
func ConsumeSearch(u *models.User, now time.Time) (allowed bool, changed bool) {
	if u == nil || u.ID == 0 || PlanOf(u) == PlanPremium || u.Role != models.ROLE_RENTER {
		return true, false
	}

	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	if u.SearchResetDate == nil || !sameDay(*u.SearchResetDate, today) {
		u.SearchCountToday = 0
		u.SearchResetDate = &today
		changed = true
	}

	if u.SearchCountToday >= FreeDailySearches {
		return false, changed
	}
	u.SearchCountToday++
	return true, true
}

// HasInsightsAccess reports access to market insights at now.
func HasInsightsAccess(u *models.User, now time.Time) bool {
	if u == nil {
		return false
	}
	if u.HasPremium() && (u.SubscriptionExpires == nil || u.SubscriptionExpires.After(now)) {
		return true
	}
	return u.HasAnalyticsAccess && (u.AnalyticsExpiresAt == nil || u.AnalyticsExpiresAt.After(now))
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
