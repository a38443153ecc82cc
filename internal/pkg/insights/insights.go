// Package insights produces the market outlook shown to paying users.
// The figures are synthetic until a market data feed exists.
package insights

import (
	"fmt"
	"math/rand/v2"
	"strings"
)

const (
	Season      = "Winter 2025"
	DemandScore = 8.5
	MarketTrend = "+12%"
	AreaAverage = "$1,200"
)

var (
	trends   = []string{"rising", "stable"}
	percents = []int{15, 20, 30}
	months   = []string{"Jan", "Feb", "Mar", "Apr", "May", "Jun"}
)

type Forecast struct {
	Trend      string `json:"trend"`
	Percentage int    `json:"percentage"`
	Season     string `json:"season"`
	Message    string `json:"message"`
}

// NewForecast picks a random regional demand forecast.
func NewForecast(r *rand.Rand) Forecast {
	trend := trends[intn(r, len(trends))]
	percent := percents[intn(r, len(percents))]
	return Forecast{
		Trend:      trend,
		Percentage: percent,
		Season:     Season,
		Message:    fmt.Sprintf("Hangar demand forecast: Ontario region %s %d%% this winter.", trend, percent),
	}
}

// MarketData is six months of price and occupancy figures for the charts.
type MarketData struct {
	Months       []string `json:"months"`
	MarketPrices []int    `json:"market_prices"`
	MyPrices     []int    `json:"my_prices"`
	Occupancy    []int    `json:"occupancy"`
	DemandScore  float64  `json:"demand_score"`
}

func NewMarketData(r *rand.Rand) MarketData {
	d := MarketData{Months: append([]string(nil), months...), DemandScore: DemandScore}
	for range months {
		d.MarketPrices = append(d.MarketPrices, between(r, 1200, 1600))
		d.MyPrices = append(d.MyPrices, between(r, 1100, 1500))
		d.Occupancy = append(d.Occupancy, between(r, 60, 95))
	}
	return d
}

// Product is a purchasable insights package.
type Product struct {
	Code       string
	Name       string
	PriceCents int64
	Recurring  bool
	AccessDays int
}

var Products = map[string]Product{
	"report":       {Code: "report", Name: "Single Market Report", PriceCents: 1999, AccessDays: 30},
	"subscription": {Code: "subscription", Name: "Pro Analytics Year", PriceCents: 9900, Recurring: true, AccessDays: 365},
}

func ProductByCode(code string) (Product, bool) {
	p, ok := Products[strings.ToLower(strings.TrimSpace(code))]
	return p, ok
}

// Report is a market report sold on its own.
type Report struct {
	ID          string
	Title       string
	PriceCents  int64
	Growth      float64
	Period      string
	Description string
}

func (r Report) Price() float64 {
	return float64(r.PriceCents) / 100
}

var Reports = []Report{
	{ID: "hamilton_q1", Title: "Average hangar price at CYHM (Hamilton)", PriceCents: 1999, Growth: 12, Period: "Q1 2026", Description: "Detailed analysis of rental trends."},
	{ID: "ontario_occ", Title: "Ontario Regional Occupancy Report", PriceCents: 1999, Growth: 5.4, Period: "Feb 2026", Description: "Vacancy rates across 15 airports."},
	{ID: "luxury_forecast", Title: "Luxury Hangar Demand Forecast 2026", PriceCents: 1999, Growth: 18, Period: "Annual", Description: "Projected demand for 5000+ sqft units."},
	{ID: "national_q1", Title: "Q1 2026 National Hangar Market Report", PriceCents: 14900, Growth: 3.2, Period: "Q1 2026", Description: "Comprehensive analysis of 500+ airports."},
}

func ReportByID(id string) (Report, bool) {
	for _, r := range Reports {
		if r.ID == id {
			return r, true
		}
	}
	return Report{}, false
}

// Summary is the dashboard insights card.
type Summary struct {
	MarketTrend  string
	AreaAverage  string
	TotalRevenue float64
	TotalSpent   float64
}

func intn(r *rand.Rand, n int) int {
	if r == nil {
		return rand.IntN(n)
	}
	return r.IntN(n)
}

func between(r *rand.Rand, lo, hi int) int {
	return lo + intn(r, hi-lo+1)
}
