package controllers

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/hangarlinks/hangarlinks/app/models"
	"github.com/hangarlinks/hangarlinks/app/repository"
	"github.com/hangarlinks/hangarlinks/internal/pkg/billing"
	"github.com/hangarlinks/hangarlinks/internal/pkg/flash"
	"github.com/hangarlinks/hangarlinks/internal/pkg/marketplace"
	"github.com/hangarlinks/hangarlinks/internal/pkg/metrics"
	"github.com/hangarlinks/hangarlinks/internal/pkg/usercontext"
)

const (
	insuranceLineItem = "Short-Term Hangar Insurance (Avemco Partner)"
	maxReviewLength   = 2000
)

var ratingChoices = []int{5, 4, 3, 2, 1}

type BookingController struct {
	repos     *repository.Repositories
	stripe    *billing.StripeClient
	purchases *billing.Purchases
	now       func() time.Time
}

func NewBookingController(repos *repository.Repositories, stripe *billing.StripeClient, purchases *billing.Purchases) *BookingController {
	return &BookingController{repos: repos, stripe: stripe, purchases: purchases, now: time.Now}
}

// HandleBook opens a payment checkout for one month and records a Pending booking.
func (bc *BookingController) HandleBook(c *fiber.Ctx) error {
	id, ok := paramID(c, "id")
	if !ok {
		return notFound(c)
	}
	listing, err := bc.repos.Listing.GetByID(id)
	if err != nil {
		return handleRepoError(c, "Bookings", err)
	}
	detailURL := fmt.Sprintf("/listing/%d", listing.ID)
	uid := usercontext.GetUserID(c)
	if listing.OwnerID == uid {
		return redirectError(c, "You can't book your own hangar.", detailURL)
	}
	if !listing.IsActive() {
		return redirectError(c, "This hangar is not available right now.", detailURL)
	}

	insurance := checkbox(c, "insurance") || checkbox(c, "add_insurance")
	quote := marketplace.QuoteBooking(listing.PriceMonth, insurance)
	items := []billing.LineItem{{
		Name:        fmt.Sprintf("Hangar Rental at %s (includes %.0f%% platform fee)", listing.AirportICAO, marketplace.PlatformFeeRate*100),
		AmountCents: quote.RentCents + quote.FeeCents,
		Quantity:    1,
	}}
	if insurance {
		items = append(items, billing.LineItem{Name: insuranceLineItem, AmountCents: quote.InsuranceCents, Quantity: 1})
	}

	session, err := bc.stripe.CreateCheckoutSession(c.UserContext(), billing.CheckoutParams{
		Mode:              billing.CheckoutModePayment,
		LineItems:         items,
		SuccessURL:        absoluteURL("/booking/success?session_id=" + billing.SessionIDPlaceholder),
		CancelURL:         absoluteURL(detailURL),
		ClientReferenceID: fmt.Sprint(uid),
		Metadata:          map[string]string{"kind": "booking", "listing_id": fmt.Sprint(listing.ID)},
	})
	if err != nil {
		log.Errorf("[Bookings] checkout for listing %d: %v", listing.ID, err)
		return redirectError(c, "Payment Error: "+err.Error(), detailURL)
	}
	metrics.CheckoutStarted("booking", session.Mock)

	start := bc.now()
	booking := &models.Booking{
		ListingID:       listing.ID,
		RenterID:        uid,
		StartDate:       start,
		EndDate:         start.AddDate(0, 0, quote.Days),
		TotalPrice:      quote.Total(),
		PlatformFee:     quote.Fee(),
		Status:          models.BOOKING_PENDING,
		StripePaymentID: session.ID,
		InsuranceOptIn:  insurance,
		InsuranceFee:    quote.Insurance(),
	}
	if err := bc.repos.Booking.Create(booking); err != nil {
		return handleRepoError(c, "Bookings", err)
	}
	metrics.Booking(models.BOOKING_PENDING)
	return c.Redirect(session.URL, fiber.StatusSeeOther)
}

// HandleSuccess confirms the booking once Stripe reports the session paid.
func (bc *BookingController) HandleSuccess(c *fiber.Ctx) error {
	sessionID := strings.TrimSpace(c.Query("session_id"))
	if sessionID == "" {
		return notFound(c)
	}
	booking, first, err := bc.purchases.ConfirmBookingSession(c.UserContext(), sessionID)
	switch {
	case err == nil:
	case errors.Is(err, billing.ErrNotPaid):
		return redirectError(c, "Your payment has not completed yet.", "/")
	case errors.Is(err, billing.ErrMockSession):
		return redirectError(c, "That checkout session is not valid.", "/")
	default:
		return handleRepoError(c, "Bookings", err)
	}
	if booking.RenterID != usercontext.GetUserID(c) {
		return redirectError(c, "Unauthorized", "/")
	}
	if first {
		metrics.Booking(models.BOOKING_CONFIRMED)
		log.Infof("[Bookings] booking %d confirmed for listing %d", booking.ID, booking.ListingID)
	}
	flash.Set(c, fiber.Map{"type": "success", "message": "Booking Confirmed! Rental agreement generated."})
	return render(c, "bookings/success", "Booking confirmed", fiber.Map{"Booking": booking})
}

func (bc *BookingController) party(c *fiber.Ctx) (*models.Booking, error) {
	id, ok := paramID(c, "id")
	if !ok {
		return nil, errNotFound
	}
	return bc.repos.Booking.GetByID(id)
}

func (bc *BookingController) HandleAgreement(c *fiber.Ctx) error {
	booking, err := bc.party(c)
	if err != nil {
		return handleRepoError(c, "Bookings", err)
	}
	uid := usercontext.GetUserID(c)
	if !booking.IsParty(uid) {
		return redirectError(c, "Unauthorized", "/")
	}
	return render(c, "bookings/agreement", fmt.Sprintf("Rental agreement #%d", booking.ID), fiber.Map{
		"Booking":     booking,
		"CanComplete": canReview(booking, uid),
		"Ratings":     ratingChoices,
	})
}

// canReview reports whether uid still has to rate the other side.
func canReview(b *models.Booking, uid uint) bool {
	if b.Status != models.BOOKING_CONFIRMED && b.Status != models.BOOKING_COMPLETED {
		return false
	}
	if uid == b.RenterID {
		return b.OwnerRating == nil
	}
	return uid == b.Listing.OwnerID && b.RenterRating == nil
}

// HandleComplete records one side's rating and folds it into the other
// side's reputation.
func (bc *BookingController) HandleComplete(c *fiber.Ctx) error {
	booking, err := bc.party(c)
	if err != nil {
		return handleRepoError(c, "Bookings", err)
	}
	uid := usercontext.GetUserID(c)
	if !booking.IsParty(uid) {
		return redirectError(c, "Unauthorized", "/")
	}
	agreementURL := fmt.Sprintf("/agreement/%d", booking.ID)
	if !canReview(booking, uid) {
		return redirectError(c, "This rental can't be reviewed.", agreementURL)
	}
	score := optionalInt(c.FormValue("rating"))
	if score == nil || *score < 1 || *score > 5 {
		return redirectError(c, "Please pick a rating from 1 to 5.", agreementURL)
	}
	review := truncateRunes(strings.TrimSpace(c.FormValue("review")), maxReviewLength)

	var rated *models.User
	if uid == booking.RenterID {
		booking.OwnerRating, booking.OwnerReview = score, review
		rated = &booking.Listing.Owner
	} else {
		booking.RenterRating, booking.RenterReview = score, review
		rated = &booking.Renter
	}
	booking.Status = models.BOOKING_COMPLETED
	if err := bc.repos.Booking.Update(booking); err != nil {
		return handleRepoError(c, "Bookings", err)
	}

	rep, count := marketplace.UpdateReputation(rated.ReputationScore, rated.RentalsCount, *score)
	if err := bc.repos.User.UpdateFields(rated.ID, map[string]interface{}{
		"reputation_score": rep,
		"rentals_count":    count,
	}); err != nil {
		log.Errorf("[Bookings] reputation for user %d: %v", rated.ID, err)
	}
	metrics.Booking(models.BOOKING_COMPLETED)
	return redirectSuccess(c, "Rental completed and reviewed!", "/")
}
