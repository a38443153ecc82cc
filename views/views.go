// Package views holds the server-rendered pages. Templates are embedded so
// the binary runs from any working directory.
package views

import (
	"embed"
	"fmt"
	"io/fs"
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/template/html/v2"

	"github.com/hangarlinks/hangarlinks/internal/pkg/utils"
)

//go:embed templates templates/*/_*.html
var files embed.FS

// Layout is the base layout every page renders into.
const Layout = "layouts/main"

// NewEngine builds the html engine over the embedded templates.
func NewEngine() *html.Engine {
	sub, err := fs.Sub(files, "templates")
	if err != nil {
		panic(err)
	}
	engine := html.NewFileSystem(http.FS(sub), ".html")
	for name, fn := range Funcs() {
		engine.AddFunc(name, fn)
	}
	return engine
}

// Funcs are the helpers available in every template.
func Funcs() map[string]interface{} {
	return map[string]interface{}{
		"money":   Money,
		"avatar":  utils.GetGravatarURL,
		"cents":   Cents,
		"date":    formatDate,
		"datep":   formatDatePtr,
		"pct":     func(v float64) string { return fmt.Sprintf("%.0f%%", v) },
		"upper":   strings.ToUpper,
		"inc":     func(i int) int { return i + 1 },
		"dec":     func(i int) int { return i - 1 },
		"derefi":  derefInt,
		"hasPrev": func(page int) bool { return page > 1 },
		"hasNext": func(page, perPage int, total int64) bool { return int64(page*perPage) < total },
	}
}

// Money formats a dollar amount with thousands separators, e.g. 1,200.00.
func Money(v float64) string {
	neg := v < 0
	if neg {
		v = -v
	}
	s := fmt.Sprintf("%.2f", v)
	whole, frac := s[:len(s)-3], s[len(s)-3:]

	var b strings.Builder
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	out := b.String() + frac
	if neg {
		return "-" + out
	}
	return out
}

// Cents formats an amount in cents as dollars.
func Cents(c int64) string {
	return Money(float64(c) / 100)
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("Jan 2, 2006")
}

func formatDatePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return formatDate(*t)
}

func derefInt(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}
