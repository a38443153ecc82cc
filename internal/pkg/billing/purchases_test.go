package billing

import (
	"context"
	"testing"
	"time"

	"github.com/hangarlinks/hangarlinks/app/models"
	"github.com/hangarlinks/hangarlinks/app/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fakePurchases struct {
	byID map[uint]*models.Purchase
}

func (f *fakePurchases) Create(p *models.Purchase) error {
	p.ID = uint(len(f.byID) + 1)
	f.byID[p.ID] = p
	return nil
}

func (f *fakePurchases) GetBySession(sessionID string) (*models.Purchase, error) {
	for _, p := range f.byID {
		if p.CheckoutSession == sessionID {
			copied := *p
			return &copied, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakePurchases) MarkPaid(id uint, at time.Time) (bool, error) {
	p, ok := f.byID[id]
	if !ok || p.Status != models.PURCHASE_PENDING {
		return false, nil
	}
	p.Status = models.PURCHASE_PAID
	p.FulfilledAt = &at
	return true, nil
}

// Only the methods purchases touch are implemented; the embedded interface
// panics on anything else.
type fakeListings struct {
	repository.ListingRepository
	updates map[uint]map[string]interface{}
}

func (f *fakeListings) UpdateFields(id uint, fields map[string]interface{}) error {
	if f.updates[id] == nil {
		f.updates[id] = map[string]interface{}{}
	}
	for k, v := range fields {
		f.updates[id][k] = v
	}
	return nil
}

type fakeUsers struct {
	repository.UserRepository
	updates map[uint]map[string]interface{}
}

func (f *fakeUsers) UpdateFields(id uint, fields map[string]interface{}) error {
	f.updates[id] = fields
	return nil
}

type fakeBookings struct {
	repository.BookingRepository
	bookings map[string]*models.Booking
}

func (f *fakeBookings) GetByPaymentID(paymentID string) (*models.Booking, error) {
	b, ok := f.bookings[paymentID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *b
	return &copied, nil
}

func (f *fakeBookings) Update(b *models.Booking) error {
	copied := *b
	f.bookings[b.StripePaymentID] = &copied
	return nil
}

type fakeWhiteLabel struct {
	repository.WhiteLabelRepository
	status map[uint]string
}

func (f *fakeWhiteLabel) UpdateStatus(id uint, status string) error {
	f.status[id] = status
	return nil
}

func (f *fakeWhiteLabel) GetByID(id uint) (*models.WhiteLabelRequest, error) {
	return &models.WhiteLabelRequest{ID: id, FBOName: "Skyport FBO", ContactName: "Dana", ContactEmail: "dana@skyport.test", Status: f.status[id]}, nil
}

type fakeNotifier struct {
	subjects []string
	texts    []string
}

func (n *fakeNotifier) NotifyAdmin(subject, text string) {
	n.subjects = append(n.subjects, subject)
	n.texts = append(n.texts, text)
}

type purchaseFixture struct {
	p          *Purchases
	purchases  *fakePurchases
	listings   *fakeListings
	users      *fakeUsers
	bookings   *fakeBookings
	whiteLabel *fakeWhiteLabel
	notifier   *fakeNotifier
	evicted    []string
}

func newPurchaseFixture() *purchaseFixture {
	f := &purchaseFixture{
		purchases:  &fakePurchases{byID: map[uint]*models.Purchase{}},
		listings:   &fakeListings{updates: map[uint]map[string]interface{}{}},
		users:      &fakeUsers{updates: map[uint]map[string]interface{}{}},
		bookings:   &fakeBookings{bookings: map[string]*models.Booking{}},
		whiteLabel: &fakeWhiteLabel{status: map[uint]string{}},
		notifier:   &fakeNotifier{},
	}
	f.p = NewPurchases(&StripeClient{}, &repository.Repositories{
		Purchase:   f.purchases,
		Listing:    f.listings,
		User:       f.users,
		Booking:    f.bookings,
		WhiteLabel: f.whiteLabel,
	})
	f.p.now = fixedNow
	f.p.invalidatePriceIntel = func(icao string) { f.evicted = append(f.evicted, icao) }
	f.p.NotifyAdminWith(f.notifier)
	return f
}

func TestPurchases_SponsoredFulfilledOnce(t *testing.T) {
	f := newPurchaseFixture()
	ownerID := uint(9)

	session, err := f.p.Start(context.Background(), PurchaseRequest{
		UserID:      &ownerID,
		Kind:        models.PURCHASE_SPONSORED,
		Reference:   "gold",
		TargetID:    42,
		Name:        "Gold Featured",
		AmountCents: 9900,
		SuccessURL:  "http://localhost/sponsored/success?session_id=" + SessionIDPlaceholder,
	})
	require.NoError(t, err)
	assert.Equal(t, "sponsored", session.Metadata["kind"])
	assert.Equal(t, "42", session.Metadata["target_id"])

	rec, first, err := f.p.FulfillSession(context.Background(), session.ID)
	require.NoError(t, err)
	assert.True(t, first)
	assert.True(t, rec.IsFulfilled())

	fields := f.listings.updates[42]
	assert.Equal(t, true, fields["is_featured"])
	assert.Equal(t, "gold", fields["featured_tier"])
	assert.Equal(t, fixedNow().AddDate(0, 0, 30), fields["featured_expires_at"])

	_, again, err := f.p.Fulfill(session.ID)
	require.NoError(t, err)
	assert.False(t, again)
}

func TestPurchases_InsightsGrantsAccess(t *testing.T) {
	f := newPurchaseFixture()
	userID := uint(3)
	session, err := f.p.Start(context.Background(), PurchaseRequest{
		UserID: &userID, Kind: models.PURCHASE_INSIGHTS, Reference: "subscription",
		Name: "Insights", AmountCents: 9900, SuccessURL: "http://x/?s=" + SessionIDPlaceholder,
	})
	require.NoError(t, err)

	_, first, err := f.p.Fulfill(session.ID)
	require.NoError(t, err)
	assert.True(t, first)
	assert.Equal(t, true, f.users.updates[3]["has_analytics_access"])
	assert.Equal(t, fixedNow().AddDate(0, 0, 365), f.users.updates[3]["analytics_expires_at"])
}

func TestPurchases_WhiteLabelAndUnknown(t *testing.T) {
	f := newPurchaseFixture()
	session, err := f.p.Start(context.Background(), PurchaseRequest{
		Kind: models.PURCHASE_WHITE_LABEL, Reference: "white_label", TargetID: 5,
		Name: WhiteLabelProductName, AmountCents: WhiteLabelPriceCents, SuccessURL: "http://x",
	})
	require.NoError(t, err)
	_, _, err = f.p.Fulfill(session.ID)
	require.NoError(t, err)
	assert.Equal(t, models.WHITE_LABEL_PAID, f.whiteLabel.status[5])
	require.Len(t, f.notifier.subjects, 1)
	assert.Equal(t, "[HangarLinks] WHITE-LABEL RESERVATION", f.notifier.subjects[0])
	assert.Contains(t, f.notifier.texts[0], "Skyport FBO")

	// a second visit to the success page sends nothing
	_, again, err := f.p.Fulfill(session.ID)
	require.NoError(t, err)
	assert.False(t, again)
	assert.Len(t, f.notifier.subjects, 1)

	bad, err := f.p.Start(context.Background(), PurchaseRequest{
		Kind: models.PURCHASE_SPONSORED, Reference: "diamond", TargetID: 1,
		Name: "x", AmountCents: 1, SuccessURL: "http://x",
	})
	require.NoError(t, err)
	_, _, err = f.p.Fulfill(bad.ID)
	assert.ErrorIs(t, err, ErrUnknownProduct)
}

func TestPurchases_ConfirmBooking(t *testing.T) {
	f := newPurchaseFixture()
	f.bookings.bookings["mock_b1"] = &models.Booking{
		ID: 1, ListingID: 8, StripePaymentID: "mock_b1", Status: models.BOOKING_PENDING, InsuranceOptIn: true,
		Listing: models.Listing{ID: 8, AirportICAO: "CYHM"},
	}

	b, first, err := f.p.ConfirmBookingSession(context.Background(), "mock_b1")
	require.NoError(t, err)
	assert.True(t, first)
	assert.Equal(t, models.BOOKING_CONFIRMED, b.Status)
	assert.Equal(t, models.LISTING_RENTED, f.listings.updates[8]["status"])
	assert.Equal(t, true, f.listings.updates[8]["insurance_active"])

	assert.Equal(t, []string{"CYHM"}, f.evicted)

	_, again, err := f.p.ConfirmBooking("mock_b1")
	require.NoError(t, err)
	assert.False(t, again)
	assert.Len(t, f.evicted, 1)

	_, _, err = f.p.ConfirmBooking("missing")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}
