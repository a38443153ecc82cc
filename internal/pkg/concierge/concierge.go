// Package concierge answers marketplace questions from live listing data.
package concierge

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/hangarlinks/hangarlinks/app/models"
	"github.com/hangarlinks/hangarlinks/app/repository"
)

const (
	SourceRules = "rules"
	EmptyReply  = "Please type a message."

	legacyPrefix = "I'm the HangarLinks AI. "
	topResults   = 5
)

var (
	icaoPattern  = regexp.MustCompile(`\b([CK][A-Z]{3})\b`)
	pricePattern = regexp.MustCompile(`under\s*\$?(\d+)`)

	searchWords  = []string{"show", "find", "search", "available", "hangar", "listing", "price"}
	averageWords = []string{"average", "avg", "typical", "market price", "how much"}
	ownerWords   = []string{"my listing", "my hangar", "performing", "health score", "views"}
	coveredWords = []string{"covered", "indoor", "enclosed"}
)

// ListingSource is the listing data the concierge reads.
type ListingSource interface {
	TopByHealth(filter repository.ConciergeFilter, limit int) ([]models.Listing, error)
	AveragePriceAt(icao string) (float64, bool, error)
	AllByOwner(ownerID uint) ([]models.Listing, error)
}

// Asker identifies who is asking. A zero UserID is a guest.
type Asker struct {
	UserID uint
	Role   string
}

// Reply is the JSON body returned to the chat widget.
type Reply struct {
	Reply  string `json:"reply"`
	Source string `json:"source"`
}

type Concierge struct {
	listings ListingSource
}

func New(listings ListingSource) *Concierge {
	return &Concierge{listings: listings}
}

// Query holds what was extracted from a message.
type Query struct {
	Airports    []string
	MaxPrice    *float64
	CoveredOnly bool
}

// ParseQuery extracts airport codes, an "under $N" price cap and the covered flag.
func ParseQuery(message string) Query {
	lower := strings.ToLower(message)
	var q Query

	seen := map[string]bool{}
	for _, m := range icaoPattern.FindAllStringSubmatch(strings.ToUpper(message), -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			q.Airports = append(q.Airports, m[1])
		}
	}
	if m := pricePattern.FindStringSubmatch(lower); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil && v > 0 {
			q.MaxPrice = &v
		}
	}
	q.CoveredOnly = containsAny(lower, coveredWords)
	return q
}

// Answer builds a reply for a non-empty message.
func (c *Concierge) Answer(asker Asker, message string) (Reply, error) {
	context, err := c.buildContext(asker, message)
	if err != nil {
		return Reply{}, err
	}
	return Reply{Reply: ruleReply(message, asker.Role, context), Source: SourceRules}, nil
}

func (c *Concierge) buildContext(asker Asker, message string) (string, error) {
	lower := strings.ToLower(message)
	q := ParseQuery(message)
	var parts []string

	if containsAny(lower, searchWords) {
		results, err := c.listings.TopByHealth(repository.ConciergeFilter{
			Airports:    q.Airports,
			MaxPrice:    q.MaxPrice,
			CoveredOnly: q.CoveredOnly,
		}, topResults)
		if err != nil {
			return "", fmt.Errorf("concierge search: %w", err)
		}
		if len(results) == 0 {
			parts = append(parts, "No active listings match those filters right now.")
		} else {
			lines := []string{"**Top available hangars matching your query:**"}
			for _, l := range results {
				covered := "Uncovered"
				if l.Covered {
					covered = "Covered"
				}
				lines = append(lines, fmt.Sprintf("- **%s** | %d sqft | $%.0f/mo | %s | [View Listing](/listing/%d)",
					l.AirportICAO, l.SizeSqft, l.PriceMonth, covered, l.ID))
			}
			parts = append(parts, strings.Join(lines, "\n"))
		}
	}

	if containsAny(lower, averageWords) {
		for _, icao := range q.Airports {
			avg, ok, err := c.listings.AveragePriceAt(icao)
			if err != nil {
				return "", fmt.Errorf("concierge average %s: %w", icao, err)
			}
			if ok && avg > 0 {
				parts = append(parts, fmt.Sprintf("Average active listing price at **%s**: **$%.0f/month**", icao, avg))
			}
		}
	}

	if containsAny(lower, ownerWords) && asker.UserID != 0 && asker.Role == models.ROLE_OWNER {
		own, err := c.listings.AllByOwner(asker.UserID)
		if err != nil {
			return "", fmt.Errorf("concierge owner listings: %w", err)
		}
		if len(own) == 0 {
			parts = append(parts, "You have no listings yet. [Post one now](/post-listing)")
		} else {
			lines := []string{"**Your listings:**"}
			for _, l := range own {
				lines = append(lines, fmt.Sprintf("- %s | $%.0f/mo | Status: %s | Health Score: %d/100 | [Manage](/listing/%d)",
					l.AirportICAO, l.PriceMonth, l.Status, l.HealthScore, l.ID))
			}
			parts = append(parts, strings.Join(lines, "\n"))
		}
	}

	return strings.Join(parts, "\n\n"), nil
}

func ruleReply(message, role, context string) string {
	if context != "" {
		return context
	}
	msg := strings.ToLower(message)
	switch {
	case strings.Contains(msg, "hello") || strings.Contains(msg, "hi"):
		return "Hello! I'm your HangarLinks AI Concierge. Ask me to find hangars, check prices, or manage your listings!"
	case strings.Contains(msg, "help"):
		return "I can help you:\n" +
			"- **Find hangars**: *Show covered hangars at CYHM under $400*\n" +
			"- **Check prices**: *What's the average price at CYTZ?*\n" +
			"- **Manage listings**: *How is my listing performing?*\n" +
			"- **Book a viewing**: *I want to book a viewing of listing #3*"
	case role == models.ROLE_OWNER:
		return "As an owner, I can help you manage listings, check performance, or promote your hangar. What do you need?"
	}
	return "I can help you find the perfect hangar. Try asking: *Show me covered hangars at CYYZ under $600*"
}

// LegacyChat is the keyword chat used by the floating widget.
func LegacyChat(message string) string {
	msg := strings.ToLower(message)
	switch {
	case strings.Contains(msg, "price") || strings.Contains(msg, "cost"):
		return legacyPrefix + "Market rates at CYHM are trending up (+12%). I recommend listing around $600/mo for a T-Hangar."
	case strings.Contains(msg, "availability"):
		return legacyPrefix + "I see 3 covered spots opening up next month near Toronto."
	case strings.Contains(msg, "insurance"):
		return legacyPrefix + "All rentals include our $1M liability protection policy."
	}
	return legacyPrefix + "How can I help you find or list a hangar today?"
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
