package insights

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewForecast(t *testing.T) {
	r := rand.New(rand.NewPCG(1, 2))
	for i := 0; i < 50; i++ {
		f := NewForecast(r)
		assert.Contains(t, []string{"rising", "stable"}, f.Trend)
		assert.Contains(t, []int{15, 20, 30}, f.Percentage)
		assert.Equal(t, "Winter 2025", f.Season)
		assert.Contains(t, f.Message, "Hangar demand forecast: Ontario region "+f.Trend)
	}
}

func TestNewMarketDataRanges(t *testing.T) {
	d := NewMarketData(nil)
	assert.Len(t, d.MarketPrices, 6)
	assert.Equal(t, 8.5, d.DemandScore)
	for i := range d.Months {
		if d.MarketPrices[i] < 1200 || d.MarketPrices[i] > 1600 {
			t.Fatalf("market price %d out of range", d.MarketPrices[i])
		}
		if d.Occupancy[i] < 60 || d.Occupancy[i] > 95 {
			t.Fatalf("occupancy %d out of range", d.Occupancy[i])
		}
	}
}

func TestCatalogs(t *testing.T) {
	r, ok := ReportByID("national_q1")
	assert.True(t, ok)
	assert.Equal(t, int64(14900), r.PriceCents)
	assert.Equal(t, 149.0, r.Price())

	_, ok = ReportByID("nope")
	assert.False(t, ok)

	p, ok := ProductByCode("Subscription")
	assert.True(t, ok)
	assert.Equal(t, 365, p.AccessDays)
	assert.Equal(t, int64(1999), Products["report"].PriceCents)
}
