package billing

import "strings"

const (
	SponsoredDays         = 30
	WhiteLabelPriceCents  = 49900
	SubscriptionTermDays  = 30
	WhiteLabelProductName = "HangarLinks White-Label Deployment"
)

// SponsoredTier is a paid featured boost for one listing.
type SponsoredTier struct {
	Code       string
	Name       string
	PriceCents int64
	Days       int
	Boost      string
}

func (t SponsoredTier) Price() float64 {
	return float64(t.PriceCents) / 100
}

var SponsoredTiers = []SponsoredTier{
	{Code: "silver", Name: "Silver Featured", PriceCents: 4900, Days: SponsoredDays, Boost: "2x"},
	{Code: "gold", Name: "Gold Featured", PriceCents: 9900, Days: SponsoredDays, Boost: "5x"},
	{Code: "platinum", Name: "Platinum Featured", PriceCents: 19900, Days: SponsoredDays, Boost: "10x"},
}

func SponsoredTierByCode(code string) (SponsoredTier, bool) {
	code = strings.ToLower(strings.TrimSpace(code))
	for _, t := range SponsoredTiers {
		if t.Code == code {
			return t, true
		}
	}
	return SponsoredTier{}, false
}
