// Package components renders the HTMX fragments swapped into pages.
package components

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"io"

	"github.com/a-h/templ"

	"github.com/hangarlinks/hangarlinks/internal/pkg/marketplace"
)

// QueueStats is the job queue summary polled by the admin queue page.
type QueueStats struct {
	Pending    int64
	Processing int64
	Delayed    int64
	Completed  int64
	Failed     int64
	Retrying   int64
	Running    bool
}

func QueueStatsTable(s QueueStats) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		state := "stopped"
		if s.Running {
			state = "running"
		}
		rows := []struct {
			label string
			value int64
		}{
			{"Queued", s.Pending},
			{"Processing", s.Processing},
			{"Delayed retries", s.Delayed},
			{"Completed", s.Completed},
			{"Retrying", s.Retrying},
			{"Failed", s.Failed},
		}
		if _, err := fmt.Fprintf(w, `<p>Workers are <strong>%s</strong>.</p><table class="queue-stats"><tbody>`, state); err != nil {
			return err
		}
		for _, r := range rows {
			if _, err := fmt.Fprintf(w, `<tr><th>%s</th><td>%d</td></tr>`, templ.EscapeString(r.label), r.value); err != nil {
				return err
			}
		}
		_, err := io.WriteString(w, `</tbody></table>`)
		return err
	})
}

// PriceIntelBadge summarises the going rate at an airport for the listing form.
func PriceIntelBadge(icao string, pi *marketplace.PriceIntel) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if icao == "" {
			return nil
		}
		if pi == nil {
			_, err := fmt.Fprintf(w, `<p class="price-intel muted">No other active listings at %s yet. You set the market.</p>`, templ.EscapeString(icao))
			return err
		}
		_, err := fmt.Fprintf(w,
			`<p class="price-intel">%d active listings at %s: $%.0f to $%.0f, average <strong>$%.0f</strong>/month.</p>`,
			pi.Count, templ.EscapeString(icao), pi.Min, pi.Max, pi.Avg)
		return err
	})
}

// HTML renders a component for embedding in an html/template page.
func HTML(ctx context.Context, c templ.Component) (template.HTML, error) {
	var buf bytes.Buffer
	if err := c.Render(ctx, &buf); err != nil {
		return "", err
	}
	return template.HTML(buf.String()), nil
}
