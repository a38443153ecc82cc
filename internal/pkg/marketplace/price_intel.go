package marketplace

import (
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/hangarlinks/hangarlinks/internal/pkg/cache"
)

const priceIntelTTL = 5 * time.Minute

// PriceIntel compares a listing with the other Active listings at its airport.
type PriceIntel struct {
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Avg   float64 `json:"avg"`
	Count int     `json:"count"`
}

// ComputePriceIntel returns nil when there are no prices.
func ComputePriceIntel(prices []float64) *PriceIntel {
	if len(prices) == 0 {
		return nil
	}
	pi := &PriceIntel{Min: prices[0], Max: prices[0], Count: len(prices)}
	var sum float64
	for _, p := range prices {
		if p < pi.Min {
			pi.Min = p
		}
		if p > pi.Max {
			pi.Max = p
		}
		sum += p
	}
	pi.Avg = sum / float64(len(prices))
	return pi
}

// PriceSource lists the Active prices at an airport except one listing.
type PriceSource interface {
	ActivePricesAt(icao string, excludeID uint) ([]float64, error)
}

func priceIntelKey(icao string, listingID uint) string {
	return fmt.Sprintf("price_intel:%s:%d", strings.ToUpper(icao), listingID)
}

// PriceIntelFor serves price intel from Redis, computing it on a miss.
// Cache errors fall through to the database.
func PriceIntelFor(src PriceSource, icao string, listingID uint) (*PriceIntel, error) {
	key := priceIntelKey(icao, listingID)

	var cached struct {
		Intel *PriceIntel `json:"intel"`
	}
	if err := cache.GetJSON(key, &cached); err == nil {
		return cached.Intel, nil
	} else if !cache.IsMiss(err) {
		log.Warnf("[PriceIntel] cache read %s: %v", key, err)
	}

	prices, err := src.ActivePricesAt(icao, listingID)
	if err != nil {
		return nil, fmt.Errorf("load prices at %s: %w", icao, err)
	}
	cached.Intel = ComputePriceIntel(prices)
	if err := cache.SetJSON(key, cached, priceIntelTTL); err != nil {
		log.Warnf("[PriceIntel] cache write %s: %v", key, err)
	}
	return cached.Intel, nil
}

// InvalidatePriceIntel drops every cached entry for an airport.
func InvalidatePriceIntel(icao string) {
	pattern := fmt.Sprintf("price_intel:%s:*", strings.ToUpper(icao))
	if err := cache.DeletePattern(pattern); err != nil {
		log.Warnf("[PriceIntel] invalidate %s: %v", pattern, err)
	}
}
