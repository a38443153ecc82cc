package concierge

import (
	"errors"
	"strings"
	"testing"

	"github.com/hangarlinks/hangarlinks/app/models"
	"github.com/hangarlinks/hangarlinks/app/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeListings struct {
	top       []models.Listing
	lastQuery repository.ConciergeFilter
	averages  map[string]float64
	own       []models.Listing
	err       error
}

func (f *fakeListings) TopByHealth(filter repository.ConciergeFilter, limit int) ([]models.Listing, error) {
	f.lastQuery = filter
	return f.top, f.err
}

func (f *fakeListings) AveragePriceAt(icao string) (float64, bool, error) {
	v, ok := f.averages[icao]
	return v, ok, f.err
}

func (f *fakeListings) AllByOwner(ownerID uint) ([]models.Listing, error) {
	return f.own, f.err
}

func TestParseQuery(t *testing.T) {
	q := ParseQuery("Show covered hangars at cyhm or KJFK under $400")
	assert.Equal(t, []string{"CYHM", "KJFK"}, q.Airports)
	require.NotNil(t, q.MaxPrice)
	assert.Equal(t, 400.0, *q.MaxPrice)
	assert.True(t, q.CoveredOnly)

	q = ParseQuery("anything near EGLL?")
	assert.Empty(t, q.Airports)
	assert.Nil(t, q.MaxPrice)
	assert.False(t, q.CoveredOnly)
}

func TestAnswerSearch(t *testing.T) {
	src := &fakeListings{top: []models.Listing{
		{ID: 3, AirportICAO: "CYHM", SizeSqft: 1200, PriceMonth: 350, Covered: true},
	}}
	reply, err := New(src).Answer(Asker{}, "find indoor hangar at CYHM under 400")
	require.NoError(t, err)

	assert.Equal(t, SourceRules, reply.Source)
	assert.Contains(t, reply.Reply, "**CYHM** | 1200 sqft | $350/mo | Covered | [View Listing](/listing/3)")
	assert.Equal(t, []string{"CYHM"}, src.lastQuery.Airports)
	assert.True(t, src.lastQuery.CoveredOnly)
}

func TestAnswerSearchNoResults(t *testing.T) {
	reply, err := New(&fakeListings{}).Answer(Asker{}, "show me hangars")
	require.NoError(t, err)
	assert.Equal(t, "No active listings match those filters right now.", reply.Reply)
}

func TestAnswerAverage(t *testing.T) {
	src := &fakeListings{averages: map[string]float64{"CYTZ": 812.4}}
	reply, err := New(src).Answer(Asker{}, "what's the typical rate at CYTZ")
	require.NoError(t, err)
	assert.Equal(t, "Average active listing price at **CYTZ**: **$812/month**", reply.Reply)
}

func TestAnswerOwnerListings(t *testing.T) {
	src := &fakeListings{own: []models.Listing{{ID: 9, AirportICAO: "CYKF", PriceMonth: 500, Status: "Active", HealthScore: 80}}}
	reply, err := New(src).Answer(Asker{UserID: 1, Role: models.ROLE_OWNER}, "how is my listing performing")
	require.NoError(t, err)
	assert.True(t, strings.Contains(reply.Reply, "**Your listings:**"))
	assert.Contains(t, reply.Reply, "Health Score: 80/100")

	// renters get the search context only
	reply, err = New(&fakeListings{}).Answer(Asker{UserID: 2, Role: models.ROLE_RENTER}, "my hangar views")
	require.NoError(t, err)
	assert.Contains(t, reply.Reply, "No active listings match")
}

func TestAnswerFallbacks(t *testing.T) {
	tests := []struct {
		msg, role, want string
	}{
		{"hello there", "", "Hello!"},
		{"help", "", "I can help you:"},
		{"ok", models.ROLE_OWNER, "As an owner"},
		{"ok", models.ROLE_RENTER, "find the perfect hangar"},
	}
	for _, tt := range tests {
		reply, err := New(&fakeListings{}).Answer(Asker{Role: tt.role}, tt.msg)
		if err != nil {
			t.Fatalf("%q: %v", tt.msg, err)
		}
		if !strings.Contains(reply.Reply, tt.want) {
			t.Fatalf("%q as %q: got %q, want it to contain %q", tt.msg, tt.role, reply.Reply, tt.want)
		}
	}
}

func TestAnswerError(t *testing.T) {
	_, err := New(&fakeListings{err: errors.New("db down")}).Answer(Asker{}, "find hangar")
	assert.Error(t, err)
}

func TestLegacyChat(t *testing.T) {
	assert.True(t, strings.HasPrefix(LegacyChat("What does it cost?"), "I'm the HangarLinks AI. Market rates"))
	assert.Contains(t, LegacyChat("availability?"), "3 covered spots")
	assert.Contains(t, LegacyChat("INSURANCE"), "$1M liability")
	assert.Equal(t, "I'm the HangarLinks AI. How can I help you find or list a hangar today?", LegacyChat("yo"))
}
