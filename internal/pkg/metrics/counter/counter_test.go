package counter

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseIncrements(t *testing.T) {
	pairs := parseIncrements(map[string]string{
		"12":  "3",
		"2":   "1",
		"bad": "5",
		"7":   "0",
		"9":   "x",
	})
	assert.Equal(t, []increment{{id: 2, inc: 1}, {id: 12, inc: 3}}, pairs)
}

func TestIncrementSQL(t *testing.T) {
	query, args := incrementSQL("ads", "clicks", []increment{{id: 2, inc: 1}, {id: 12, inc: 3}})
	assert.Equal(t, "UPDATE ads SET clicks = clicks + CASE id WHEN ? THEN ? WHEN ? THEN ? END WHERE id IN (?,?)", query)
	assert.Equal(t, []interface{}{uint64(2), int64(1), uint64(12), int64(3), uint64(2), uint64(12)}, args)
}

func TestTargetsCoverListingsAndAds(t *testing.T) {
	tables := map[string]string{}
	for _, tg := range targets {
		tables[tg.key] = tg.table + "." + tg.column
	}
	assert.Equal(t, "listings.view_count", tables[listingViewsKey])
	assert.Equal(t, "ads.impressions", tables[adImpressionsKey])
	assert.Equal(t, "ads.clicks", tables[adClicksKey])
}
