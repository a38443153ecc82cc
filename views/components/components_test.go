package components

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hangarlinks/hangarlinks/internal/pkg/marketplace"
)

func TestQueueStatsTable(t *testing.T) {
	html, err := HTML(context.Background(), QueueStatsTable(QueueStats{Pending: 3, Failed: 1, Running: true}))
	require.NoError(t, err)
	assert.Contains(t, string(html), "<strong>running</strong>")
	assert.Contains(t, string(html), "<tr><th>Queued</th><td>3</td></tr>")
	assert.Contains(t, string(html), "<tr><th>Failed</th><td>1</td></tr>")
}

func TestPriceIntelBadge(t *testing.T) {
	html, err := HTML(context.Background(), PriceIntelBadge("CYTZ", &marketplace.PriceIntel{Min: 400, Max: 800, Avg: 600, Count: 3}))
	require.NoError(t, err)
	assert.Contains(t, string(html), "3 active listings at CYTZ: $400 to $800, average <strong>$600</strong>/month.")

	html, err = HTML(context.Background(), PriceIntelBadge("KXYZ", nil))
	require.NoError(t, err)
	assert.Contains(t, string(html), "No other active listings at KXYZ")

	html, err = HTML(context.Background(), PriceIntelBadge("", nil))
	require.NoError(t, err)
	assert.Empty(t, html)
}
