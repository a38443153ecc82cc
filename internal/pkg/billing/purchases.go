package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/hangarlinks/hangarlinks/app/models"
	"github.com/hangarlinks/hangarlinks/app/repository"
	"github.com/hangarlinks/hangarlinks/internal/pkg/insights"
	"github.com/hangarlinks/hangarlinks/internal/pkg/marketplace"
)

var (
	ErrNotPaid        = errors.New("checkout session is not paid")
	ErrUnknownProduct = errors.New("unknown product")
)

// PurchaseRequest describes a one-off checkout.
type PurchaseRequest struct {
	UserID      *uint
	Kind        string
	Reference   string
	TargetID    uint
	Name        string
	AmountCents int64
	Email       string
	SuccessURL  string
	CancelURL   string
}

// AdminNotifier receives purchases that need manual follow-up.
// *jobqueue.Manager implements it.
type AdminNotifier interface {
	NotifyAdmin(subject, text string)
}

// Purchases starts one-off checkouts and applies them once paid.
type Purchases struct {
	stripe     *StripeClient
	purchases  repository.PurchaseRepository
	listings   repository.ListingRepository
	users      repository.UserRepository
	bookings   repository.BookingRepository
	whiteLabel repository.WhiteLabelRepository
	notifier   AdminNotifier
	now        func() time.Time

	invalidatePriceIntel func(icao string)
}

func NewPurchases(stripe *StripeClient, repos *repository.Repositories) *Purchases {
	return &Purchases{
		stripe:     stripe,
		purchases:  repos.Purchase,
		listings:   repos.Listing,
		users:      repos.User,
		bookings:   repos.Booking,
		whiteLabel: repos.WhiteLabel,
		now:        time.Now,

		invalidatePriceIntel: marketplace.InvalidatePriceIntel,
	}
}

// NotifyAdminWith sets who is told about white-label reservations.
func (p *Purchases) NotifyAdminWith(n AdminNotifier) {
	p.notifier = n
}

// Start creates the checkout session and the pending purchase record.
func (p *Purchases) Start(ctx context.Context, req PurchaseRequest) (*CheckoutSession, error) {
	metadata := map[string]string{"kind": req.Kind, "reference": req.Reference}
	if req.UserID != nil {
		metadata["user_id"] = fmt.Sprint(*req.UserID)
	}
	if req.TargetID != 0 {
		metadata["target_id"] = fmt.Sprint(req.TargetID)
	}

	session, err := p.stripe.CreateCheckoutSession(ctx, CheckoutParams{
		Mode:          CheckoutModePayment,
		LineItems:     []LineItem{{Name: req.Name, AmountCents: req.AmountCents, Quantity: 1}},
		SuccessURL:    req.SuccessURL,
		CancelURL:     req.CancelURL,
		CustomerEmail: req.Email,
		Metadata:      metadata,
	})
	if err != nil {
		return nil, err
	}

	rec := &models.Purchase{
		UserID:          req.UserID,
		Kind:            req.Kind,
		Reference:       req.Reference,
		TargetID:        req.TargetID,
		AmountCents:     req.AmountCents,
		CheckoutSession: session.ID,
		Status:          models.PURCHASE_PENDING,
	}
	if err := p.purchases.Create(rec); err != nil {
		return nil, fmt.Errorf("record purchase: %w", err)
	}
	return session, nil
}

// FulfillSession verifies payment with Stripe before fulfilling. Used by
// the success redirects.
func (p *Purchases) FulfillSession(ctx context.Context, sessionID string) (*models.Purchase, bool, error) {
	session, err := p.stripe.RetrieveCheckoutSession(ctx, sessionID)
	if err != nil {
		return nil, false, err
	}
	if !session.Paid() {
		return nil, false, ErrNotPaid
	}
	return p.Fulfill(sessionID)
}

// Fulfill applies a paid purchase. It reports false when the purchase was
// already fulfilled.
func (p *Purchases) Fulfill(sessionID string) (*models.Purchase, bool, error) {
	rec, err := p.purchases.GetBySession(sessionID)
	if err != nil {
		return nil, false, err
	}
	if rec.IsFulfilled() {
		return rec, false, nil
	}

	now := p.now()
	if err := p.apply(rec, now); err != nil {
		return rec, false, err
	}
	first, err := p.purchases.MarkPaid(rec.ID, now)
	if err != nil {
		return rec, false, err
	}
	if first {
		rec.Status = models.PURCHASE_PAID
		rec.FulfilledAt = &now
		log.Infof("[Billing] fulfilled %s purchase %d (%s)", rec.Kind, rec.ID, rec.Reference)
		p.announce(rec)
	}
	return rec, first, nil
}

// announce mails the admin about a white-label reservation once, from
// whichever of the success page and the webhook fulfilled it first.
func (p *Purchases) announce(rec *models.Purchase) {
	if p.notifier == nil || rec.Kind != models.PURCHASE_WHITE_LABEL {
		return
	}
	req, err := p.whiteLabel.GetByID(rec.TargetID)
	if err != nil {
		log.Errorf("[Billing] white-label request %d: %v", rec.TargetID, err)
		return
	}
	p.notifier.NotifyAdmin("[HangarLinks] WHITE-LABEL RESERVATION", fmt.Sprintf(
		"FBO:     %s\nContact: %s <%s>\n", req.FBOName, req.ContactName, req.ContactEmail))
}

func (p *Purchases) apply(rec *models.Purchase, now time.Time) error {
	switch rec.Kind {
	case models.PURCHASE_SPONSORED:
		tier, ok := SponsoredTierByCode(rec.Reference)
		if !ok {
			return fmt.Errorf("%w: sponsored tier %q", ErrUnknownProduct, rec.Reference)
		}
		return p.listings.UpdateFields(rec.TargetID, map[string]interface{}{
			"is_featured":         true,
			"featured_tier":       tier.Code,
			"featured_expires_at": now.AddDate(0, 0, tier.Days),
		})
	case models.PURCHASE_INSIGHTS:
		product, ok := insights.ProductByCode(rec.Reference)
		if !ok {
			return fmt.Errorf("%w: insights %q", ErrUnknownProduct, rec.Reference)
		}
		if rec.UserID == nil {
			return errors.New("insights purchase without user")
		}
		return p.users.UpdateFields(*rec.UserID, map[string]interface{}{
			"has_analytics_access": true,
			"analytics_expires_at": now.AddDate(0, 0, product.AccessDays),
		})
	case models.PURCHASE_WHITE_LABEL:
		return p.whiteLabel.UpdateStatus(rec.TargetID, models.WHITE_LABEL_PAID)
	case models.PURCHASE_MARKET_REPORT:
		return nil
	}
	return fmt.Errorf("%w: kind %q", ErrUnknownProduct, rec.Kind)
}

// ConfirmBookingSession verifies payment, then confirms the booking.
func (p *Purchases) ConfirmBookingSession(ctx context.Context, sessionID string) (*models.Booking, bool, error) {
	session, err := p.stripe.RetrieveCheckoutSession(ctx, sessionID)
	if err != nil {
		return nil, false, err
	}
	if !session.Paid() {
		return nil, false, ErrNotPaid
	}
	return p.ConfirmBooking(sessionID)
}

// ConfirmBooking marks the booking Confirmed and the listing Rented. A
// booking that is no longer Pending is left alone.
func (p *Purchases) ConfirmBooking(sessionID string) (*models.Booking, bool, error) {
	booking, err := p.bookings.GetByPaymentID(sessionID)
	if err != nil {
		return nil, false, err
	}
	if booking.Status != models.BOOKING_PENDING {
		return booking, false, nil
	}

	booking.Status = models.BOOKING_CONFIRMED
	if err := p.bookings.Update(booking); err != nil {
		return booking, false, err
	}
	fields := map[string]interface{}{"status": models.LISTING_RENTED}
	if booking.InsuranceOptIn {
		fields["insurance_active"] = true
	}
	if err := p.listings.UpdateFields(booking.ListingID, fields); err != nil {
		return booking, true, err
	}
	// a Rented listing no longer counts towards its airport's prices
	if icao := booking.Listing.AirportICAO; icao != "" {
		p.invalidatePriceIntel(icao)
	}
	return booking, true, nil
}
