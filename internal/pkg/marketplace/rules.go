// Package marketplace holds the hangar marketplace rules: listing health,
// booking quotes, price intelligence, alerts and renter matching.
package marketplace

import (
	"math"
	"sort"
	"strings"

	"github.com/hangarlinks/hangarlinks/app/models"
)

const (
	PlatformFeeRate       = 0.08
	InsuranceDailyCents   = 1500
	InsuranceSetupCents   = 4500
	BookingDays           = 30
	HealthyListingScore   = 80
	MaxMatchScore         = 99
	DefaultSearchRadiusMi = 250
)

// HealthScore rates a listing from 0 to 100.
func HealthScore(photoCount int, checklistVerified, conditionVerified bool, ownerReputation float64) int {
	score := 0
	if photoCount >= 3 {
		score += 30
	}
	if checklistVerified {
		score += 30
	}
	if conditionVerified {
		score += 20
	}
	if ownerReputation >= 4.5 {
		score += 20
	}
	if score > 100 {
		score = 100
	}
	return score
}

// Quote is the price breakdown of a 30 day booking in cents.
type Quote struct {
	RentCents      int64
	FeeCents       int64
	InsuranceCents int64
	TotalCents     int64
	Days           int
}

// Total returns the total in dollars.
func (q Quote) Total() float64 {
	return float64(q.TotalCents) / 100
}

func (q Quote) Fee() float64 {
	return float64(q.FeeCents) / 100
}

func (q Quote) Insurance() float64 {
	return float64(q.InsuranceCents) / 100
}

// QuoteBooking prices one month at the listing's monthly rate.
func QuoteBooking(priceMonth float64, insurance bool) Quote {
	rent := int64(math.Round(priceMonth * 100))
	fee := int64(math.Round(float64(rent) * PlatformFeeRate))
	q := Quote{RentCents: rent, FeeCents: fee, Days: BookingDays}
	if insurance {
		q.InsuranceCents = InsuranceDailyCents*BookingDays + InsuranceSetupCents
	}
	q.TotalCents = q.RentCents + q.FeeCents + q.InsuranceCents
	return q
}

// UpdateReputation folds a new rating into a running average.
func UpdateReputation(reputation float64, count, rating int) (float64, int) {
	newCount := count + 1
	return (reputation*float64(count) + float64(rating)) / float64(newCount), newCount
}

// AlertMatches reports whether a new listing should be sent to a subscriber.
func AlertMatches(subscriberID uint, settings *models.UserSettings, listing *models.Listing) bool {
	if settings == nil || !settings.AlertEnabled || subscriberID == listing.OwnerID {
		return false
	}
	if airport := settings.HomeAirport(); airport != "" && airport != strings.ToUpper(listing.AirportICAO) {
		return false
	}
	if settings.AlertMaxPrice != nil && listing.PriceMonth > *settings.AlertMaxPrice {
		return false
	}
	if settings.AlertMinSize != nil && listing.SizeSqft < *settings.AlertMinSize {
		return false
	}
	if settings.AlertCoveredOnly && !listing.Covered {
		return false
	}
	return true
}

// Match is a listing scored for one renter.
type Match struct {
	Listing models.Listing
	Score   int
}

// MatchScore scores a listing against the renter's alert preferences. Owner must be loaded.
func MatchScore(settings *models.UserSettings, listing *models.Listing) int {
	score := 60
	airport := settings.HomeAirport()
	if airport != "" {
		if listing.AirportICAO == airport {
			score += 25
		} else {
			score += 5
		}
	}
	if settings != nil && settings.AlertMaxPrice != nil && listing.PriceMonth <= *settings.AlertMaxPrice {
		score += 15
	}
	if listing.Owner.HasPremium() {
		score += 5
	}
	if listing.Owner.IsCertified {
		score += 10
	}
	if listing.HealthScore >= HealthyListingScore {
		score += 5
	}
	if score > MaxMatchScore {
		score = MaxMatchScore
	}
	return score
}

// RankMatches deduplicates candidates by id and returns the best limit matches.
func RankMatches(settings *models.UserSettings, candidates []models.Listing, limit int) []Match {
	seen := make(map[uint]struct{}, len(candidates))
	matches := make([]Match, 0, len(candidates))
	for i := range candidates {
		l := candidates[i]
		if _, ok := seen[l.ID]; ok {
			continue
		}
		seen[l.ID] = struct{}{}
		matches = append(matches, Match{Listing: l, Score: MatchScore(settings, &l)})
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches
}

// OwnerStats summarises an owner's earnings and occupancy.
type OwnerStats struct {
	TotalEarnings   float64
	MonthlyEarnings map[string]float64
	Months          []string
	Occupancy       float64
	ListingCount    int
	RentedCount     int
}

// ComputeOwnerStats sums the owner's share of confirmed bookings per start month. Occupancy is the
// share of the owner's listings currently Rented.
func ComputeOwnerStats(listings []models.Listing, confirmed []models.Booking) OwnerStats {
	stats := OwnerStats{MonthlyEarnings: map[string]float64{}, ListingCount: len(listings)}
	for _, b := range confirmed {
		if b.Status != models.BOOKING_CONFIRMED {
			continue
		}
		stats.TotalEarnings += b.OwnerEarnings()
		key := b.StartDate.Format("2006-01")
		if _, ok := stats.MonthlyEarnings[key]; !ok {
			stats.Months = append(stats.Months, key)
		}
		stats.MonthlyEarnings[key] += b.OwnerEarnings()
	}
	sort.Strings(stats.Months)

	for _, l := range listings {
		if l.Status == models.LISTING_RENTED {
			stats.RentedCount++
		}
	}
	if stats.ListingCount > 0 {
		stats.Occupancy = float64(stats.RentedCount) / float64(stats.ListingCount) * 100
	}
	return stats
}
