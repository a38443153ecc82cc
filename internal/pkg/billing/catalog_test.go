package billing

import "testing"

func TestSponsoredTierByCode(t *testing.T) {
	tests := []struct {
		code  string
		price int64
		boost string
	}{
		{"silver", 4900, "2x"},
		{"gold", 9900, "5x"},
		{"platinum", 19900, "10x"},
	}
	for _, tt := range tests {
		tier, ok := SponsoredTierByCode(tt.code)
		if !ok {
			t.Fatalf("tier %q not found", tt.code)
		}
		if tier.PriceCents != tt.price || tier.Boost != tt.boost || tier.Days != SponsoredDays {
			t.Fatalf("tier %q = %+v", tt.code, tier)
		}
	}
	if _, ok := SponsoredTierByCode(" GOLD "); !ok {
		t.Fatalf("expected codes to be normalized")
	}
	if _, ok := SponsoredTierByCode("diamond"); ok {
		t.Fatalf("unexpected tier diamond")
	}
}
