package mail

import (
	"fmt"
	"html"
	"strings"

	"github.com/hangarlinks/hangarlinks/app/models"
)

// ListingAlert builds the mail sent to renters whose alert matches a new listing.
func ListingAlert(baseURL string, l *models.Listing) (subject, body string) {
	covered := "Uncovered"
	if l.Covered {
		covered = "Covered"
	}
	subject = fmt.Sprintf("New hangar at %s: $%.0f/month", l.AirportICAO, l.PriceMonth)
	body = fmt.Sprintf(
		"<p>A new hangar matching your alert was just listed.</p>"+
			"<p><strong>%s</strong> &middot; %s &middot; %d sqft &middot; $%.2f/month</p>"+
			`<p><a href="%s/listing/%d">View listing</a></p>`+
			`<p style="color:#888">Manage alerts on your <a href="%s/profile">profile</a>.</p>`,
		html.EscapeString(l.AirportICAO), covered, l.SizeSqft, l.PriceMonth,
		strings.TrimRight(baseURL, "/"), l.ID, strings.TrimRight(baseURL, "/"),
	)
	return subject, body
}

// AdminNotice wraps a plain-text admin notification.
func AdminNotice(subject, text string) (string, string) {
	return "[HangarLinks] " + subject, "<pre>" + html.EscapeString(text) + "</pre>"
}
