package controllers

import (
	"errors"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/sujit-baniya/flash"
	"gorm.io/gorm"

	"github.com/hangarlinks/hangarlinks/app/models"
	"github.com/hangarlinks/hangarlinks/internal/pkg/env"
	"github.com/hangarlinks/hangarlinks/internal/pkg/jobqueue"
	"github.com/hangarlinks/hangarlinks/internal/pkg/session"
	"github.com/hangarlinks/hangarlinks/internal/pkg/usercontext"
	"github.com/hangarlinks/hangarlinks/internal/pkg/viewmodel"
	"github.com/hangarlinks/hangarlinks/views"
)

// Jobs is the background work controllers hand off. *jobqueue.Manager implements it.
type Jobs interface {
	EnqueueListingPhoto(photo *models.ListingPhoto, uploadDir string, backup bool) (*jobqueue.Job, error)
	EnqueueListingAlerts(listingID uint) (*jobqueue.Job, error)
	NotifyAdmin(subject, text string)
}

var validate = validator.New()

// errNotFound renders as 404 through handleRepoError.
var errNotFound = gorm.ErrRecordNotFound

// render executes a page inside the main layout.
func render(c *fiber.Ctx, name, title string, data fiber.Map) error {
	if data == nil {
		data = fiber.Map{}
	}
	data["Layout"] = viewmodel.NewLayout(c, title)
	return c.Render(name, data, views.Layout)
}

func renderError(c *fiber.Ctx, code int, message string) error {
	c.Status(code)
	return render(c, "error", strconv.Itoa(code), fiber.Map{"Code": code, "Message": message})
}

func notFound(c *fiber.Ctx) error {
	return renderError(c, fiber.StatusNotFound, "We couldn't find that page.")
}

func redirectError(c *fiber.Ctx, message, to string) error {
	return flash.WithError(c, fiber.Map{"type": "error", "message": message}).Redirect(to, fiber.StatusSeeOther)
}

func redirectSuccess(c *fiber.Ctx, message, to string) error {
	return flash.WithSuccess(c, fiber.Map{"type": "success", "message": message}).Redirect(to, fiber.StatusSeeOther)
}

func redirectInfo(c *fiber.Ctx, message, to string) error {
	return flash.WithInfo(c, fiber.Map{"type": "info", "message": message}).Redirect(to, fiber.StatusSeeOther)
}

// handleRepoError maps a missing record to 404 and logs everything else.
func handleRepoError(c *fiber.Ctx, component string, err error) error {
	if isNotFound(err) {
		return notFound(c)
	}
	log.Errorf("[%s] %v", component, err)
	return renderError(c, fiber.StatusInternalServerError, "Something went wrong. Please try again.")
}

func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

func paramID(c *fiber.Ctx, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Params(name), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

func queryPage(c *fiber.Ctx) int {
	page := c.QueryInt("page", 1)
	if page < 1 {
		page = 1
	}
	return page
}

// checkbox reports whether an HTML checkbox was ticked.
func checkbox(c *fiber.Ctx, name string) bool {
	v := strings.ToLower(c.FormValue(name))
	return v == "on" || v == "true" || v == "1" || v == "yes"
}

// optionalFloat parses a form or query value; blanks and junk give nil.
func optionalFloat(raw string) *float64 {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil
	}
	return &v
}

func optionalInt(raw string) *int {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return nil
	}
	return &v
}

func optionalUint(raw string) *uint {
	v, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 64)
	if err != nil || v == 0 {
		return nil
	}
	id := uint(v)
	return &id
}

// optionalDate parses a YYYY-MM-DD form value.
func optionalDate(raw string) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return nil
	}
	return &t
}

// absoluteURL prefixes a path with the public base URL for payment redirects.
func absoluteURL(path string) string {
	return env.PublicURL() + path
}

// startSession logs the user in. An account whose email matches ADMIN_EMAIL
// is promoted to admin on the way.
func startSession(c *fiber.Ctx, user *models.User, markAdmin func(id uint) error) error {
	if admin := strings.TrimSpace(env.GetEnv("ADMIN_EMAIL", "")); admin != "" && !user.IsAdmin && strings.EqualFold(admin, user.Email) {
		if err := markAdmin(user.ID); err != nil {
			log.Warnf("[Auth] could not grant admin to %s: %v", user.Email, err)
		} else {
			user.IsAdmin = true
		}
	}

	store := session.GetSessionStore()
	if store == nil {
		return errors.New("session store not initialized")
	}
	sess, err := store.Get(c)
	if err != nil {
		return err
	}
	if err := sess.Regenerate(); err != nil {
		return err
	}
	sess.Set(usercontext.SessionUserID, user.ID)
	sess.Set(usercontext.SessionUserName, user.Username)
	sess.Set(usercontext.SessionIsAdmin, user.IsAdmin)
	sess.Set(usercontext.SessionRole, user.Role)
	sess.Set(usercontext.SessionPlan, user.PlanTier())
	return sess.Save()
}

// refreshSessionPlan re-reads the plan on the next request, e.g. after an upgrade.
func refreshSessionPlan(c *fiber.Ctx) {
	if err := session.SetSessionValue(c, usercontext.SessionPlan, ""); err != nil {
		log.Warnf("[Session] could not reset plan: %v", err)
	}
}

// safeNext only allows local redirect targets. Browsers read a backslash
// after the leading slash as a second slash.
func safeNext(next string) string {
	if len(next) == 0 || next[0] != '/' {
		return "/"
	}
	if len(next) > 1 && (next[1] == '/' || next[1] == '\\') {
		return "/"
	}
	return next
}

// truncateRunes cuts s to at most n characters without splitting one.
func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
