package billing

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/hangarlinks/hangarlinks/app/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testWebhookSecret = "whsec_test"

func newTestProcessor(repo *fakeRepo, f *purchaseFixture) *WebhookProcessor {
	svc := newTestService(repo)
	var p *Purchases
	if f != nil {
		p = f.p
	}
	w := NewWebhookProcessor(svc, p, testWebhookSecret, false)
	w.now = fixedNow
	return w
}

func signed(payload string) ([]byte, string) {
	body := []byte(payload)
	return body, SignStripePayload(body, testWebhookSecret, fixedNow())
}

func TestWebhook_InvalidSignature(t *testing.T) {
	repo := newFakeRepo()
	w := newTestProcessor(repo, nil)

	_, err := w.Process(context.Background(), []byte(`{"id":"evt_1","type":"invoice.payment_succeeded"}`), "t=1,v1=00")
	assert.ErrorIs(t, err, ErrInvalidSignature)
	assert.Empty(t, repo.events)
}

func TestWebhook_ForgedDeliveryDoesNotClaimEventID(t *testing.T) {
	repo := newFakeRepo(&models.User{ID: 7})
	w := newTestProcessor(repo, nil)
	payload := `{"id":"evt_forged","type":"checkout.session.completed","data":{"object":{
		"id":"cs_f","mode":"subscription","subscription":"sub_f","metadata":{"user_id":"7","plan":"owner_premium"}}}}`

	_, err := w.Process(context.Background(), []byte(payload), SignStripePayload([]byte(payload), "whsec_wrong", fixedNow()))
	require.ErrorIs(t, err, ErrInvalidSignature)

	body, sig := signed(payload)
	out, err := w.Process(context.Background(), body, sig)
	require.NoError(t, err)
	assert.False(t, out.Duplicate)
	assert.True(t, repo.users[7].IsPremium)
}

func TestWebhook_FailedEventIsRetried(t *testing.T) {
	repo := newFakeRepo()
	w := newTestProcessor(repo, nil)
	body, sig := signed(`{"id":"evt_retry","type":"checkout.session.completed","data":{"object":{
		"id":"cs_r","mode":"subscription","subscription":"sub_r","metadata":{"user_id":"7","plan":"renter_premium"}}}}`)

	_, err := w.Process(context.Background(), body, sig)
	require.Error(t, err)
	require.Len(t, repo.events, 1)
	assert.NotEmpty(t, repo.events[0].ProcessingError)

	repo.users[7] = &models.User{ID: 7}
	out, err := w.Process(context.Background(), body, sig)
	require.NoError(t, err)
	assert.False(t, out.Duplicate)
	assert.True(t, repo.users[7].IsPremium)
	assert.Empty(t, repo.events[0].ProcessingError)

	out, err = w.Process(context.Background(), body, sig)
	require.NoError(t, err)
	assert.True(t, out.Duplicate)
}

func TestWebhook_UnfinishedEventIsRetried(t *testing.T) {
	repo := newFakeRepo(&models.User{ID: 2, SubscriptionTier: models.TIER_PREMIUM, IsPremium: true})
	repo.subs = append(repo.subs, models.BillingSubscription{ID: 1, UserID: 2, Provider: "stripe", ProviderSubscriptionID: "sub_u", Tier: "premium", Status: "active"})
	// stored by a delivery that died before it was marked processed
	repo.events = append(repo.events, models.BillingWebhookEvent{ID: 1, Provider: "stripe", ProviderEventID: "evt_half", EventType: EventSubscriptionDeleted})
	w := newTestProcessor(repo, nil)

	body, sig := signed(`{"id":"evt_half","type":"customer.subscription.deleted","data":{"object":{"id":"sub_u"}}}`)
	out, err := w.Process(context.Background(), body, sig)
	require.NoError(t, err)
	assert.False(t, out.Duplicate)
	assert.False(t, repo.users[2].IsPremium)
	assert.NotNil(t, repo.events[0].ProcessedAt)
}

func TestWebhook_UnsignedAllowedOnlyWithoutSecret(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)
	w := NewWebhookProcessor(svc, nil, "", true)

	out, err := w.Process(context.Background(), []byte(`{"id":"evt_dev","type":"ping"}`), "")
	require.NoError(t, err)
	assert.True(t, out.Ignored)

	strict := NewWebhookProcessor(svc, nil, "", false)
	_, err = strict.Process(context.Background(), []byte(`{"id":"evt_prod","type":"ping"}`), "")
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestWebhook_Duplicate(t *testing.T) {
	repo := newFakeRepo()
	w := newTestProcessor(repo, nil)
	body, sig := signed(`{"id":"evt_dup","type":"ping"}`)

	out, err := w.Process(context.Background(), body, sig)
	require.NoError(t, err)
	assert.False(t, out.Duplicate)

	out, err = w.Process(context.Background(), body, sig)
	require.NoError(t, err)
	assert.True(t, out.Duplicate)
}

func TestWebhook_InvalidJSON(t *testing.T) {
	w := newTestProcessor(newFakeRepo(), nil)
	_, err := w.Process(context.Background(), []byte(`{not json`), "")
	assert.ErrorIs(t, err, ErrInvalidPayload)
}

func TestWebhook_SubscriptionCheckoutActivatesPremium(t *testing.T) {
	repo := newFakeRepo(&models.User{ID: 7})
	w := newTestProcessor(repo, nil)
	body, sig := signed(`{"id":"evt_sub","type":"checkout.session.completed","data":{"object":{
		"id":"cs_1","mode":"subscription","payment_status":"paid","subscription":"sub_123","customer":"cus_9",
		"metadata":{"user_id":"7","plan":"renter_premium"}}}}`)

	_, err := w.Process(context.Background(), body, sig)
	require.NoError(t, err)
	assert.True(t, repo.users[7].IsPremium)
	require.Len(t, repo.subs, 1)
	assert.Equal(t, "sub_123", repo.subs[0].ProviderSubscriptionID)
	require.Len(t, repo.accounts, 1)
	assert.Equal(t, "cus_9", repo.accounts[0].ProviderAccountID)
	assert.NotNil(t, repo.events[0].ProcessedAt)
	assert.Empty(t, repo.events[0].ProcessingError)
}

func TestWebhook_PaymentCheckoutFulfillsPurchase(t *testing.T) {
	repo := newFakeRepo()
	f := newPurchaseFixture()
	session, err := f.p.Start(context.Background(), PurchaseRequest{
		Kind: models.PURCHASE_SPONSORED, Reference: "silver", TargetID: 11,
		Name: "Silver Featured", AmountCents: 4900, SuccessURL: "http://x",
	})
	require.NoError(t, err)

	w := newTestProcessor(repo, f)
	body, sig := signed(`{"id":"evt_pay","type":"checkout.session.completed","data":{"object":{"id":"` + session.ID + `","mode":"payment","payment_status":"paid","metadata":{"kind":"sponsored"}}}}`)
	_, err = w.Process(context.Background(), body, sig)
	require.NoError(t, err)
	assert.Equal(t, "silver", f.listings.updates[11]["featured_tier"])

	// Unknown sessions are acknowledged.
	body, sig = signed(`{"id":"evt_other","type":"checkout.session.completed","data":{"object":{"id":"cs_unknown","mode":"payment"}}}`)
	_, err = w.Process(context.Background(), body, sig)
	require.NoError(t, err)
}

func TestWebhook_WhiteLabelPaidOnlyByWebhookNotifiesAdmin(t *testing.T) {
	f := newPurchaseFixture()
	session, err := f.p.Start(context.Background(), PurchaseRequest{
		Kind: models.PURCHASE_WHITE_LABEL, Reference: "reservation", TargetID: 3,
		Name: WhiteLabelProductName, AmountCents: WhiteLabelPriceCents, SuccessURL: "http://x",
	})
	require.NoError(t, err)

	w := newTestProcessor(newFakeRepo(), f)
	body, sig := signed(`{"id":"evt_wl","type":"checkout.session.completed","data":{"object":{"id":"` + session.ID + `","mode":"payment","metadata":{"kind":"white_label"}}}}`)
	_, err = w.Process(context.Background(), body, sig)
	require.NoError(t, err)
	assert.Equal(t, models.WHITE_LABEL_PAID, f.whiteLabel.status[3])
	assert.Len(t, f.notifier.subjects, 1)
}

func TestWebhook_BookingCheckoutConfirms(t *testing.T) {
	f := newPurchaseFixture()
	f.bookings.bookings["cs_book"] = &models.Booking{ID: 2, ListingID: 4, StripePaymentID: "cs_book", Status: models.BOOKING_PENDING}
	w := newTestProcessor(newFakeRepo(), f)

	body, sig := signed(`{"id":"evt_b","type":"checkout.session.completed","data":{"object":{"id":"cs_book","mode":"payment","metadata":{"kind":"booking"}}}}`)
	_, err := w.Process(context.Background(), body, sig)
	require.NoError(t, err)
	assert.Equal(t, models.BOOKING_CONFIRMED, f.bookings.bookings["cs_book"].Status)
}

func TestWebhook_SubscriptionDeletedResetsToFree(t *testing.T) {
	repo := newFakeRepo(&models.User{ID: 2, SubscriptionTier: models.TIER_PREMIUM, IsPremium: true})
	repo.subs = append(repo.subs, models.BillingSubscription{ID: 1, UserID: 2, Provider: "stripe", ProviderSubscriptionID: "sub_del", Tier: "premium", Status: "active"})
	w := newTestProcessor(repo, nil)

	body, sig := signed(`{"id":"evt_del","type":"customer.subscription.deleted","data":{"object":{"id":"sub_del"}}}`)
	_, err := w.Process(context.Background(), body, sig)
	require.NoError(t, err)
	assert.False(t, repo.users[2].IsPremium)
	assert.Equal(t, models.TIER_FREE, repo.users[2].SubscriptionTier)
}

func TestWebhook_InvoicePaidExtends(t *testing.T) {
	expires := fixedNow().AddDate(0, 0, 5)
	repo := newFakeRepo(&models.User{ID: 6, SubscriptionTier: models.TIER_PREMIUM, IsPremium: true, SubscriptionExpires: &expires})
	repo.subs = append(repo.subs, models.BillingSubscription{ID: 1, UserID: 6, Provider: "stripe", ProviderSubscriptionID: "sub_inv", Tier: "premium", Status: "active"})
	w := newTestProcessor(repo, nil)

	body, sig := signed(`{"id":"evt_inv","type":"invoice.payment_succeeded","data":{"object":{"subscription":"sub_inv"}}}`)
	_, err := w.Process(context.Background(), body, sig)
	require.NoError(t, err)
	require.NotNil(t, repo.users[6].SubscriptionExpires)
	assert.Equal(t, expires.AddDate(0, 0, 30), *repo.users[6].SubscriptionExpires)
}

func TestWebhook_SubscriptionUpdatedSyncsStatus(t *testing.T) {
	repo := newFakeRepo(&models.User{ID: 8, SubscriptionTier: models.TIER_PREMIUM, IsPremium: true})
	repo.subs = append(repo.subs, models.BillingSubscription{ID: 1, UserID: 8, Provider: "stripe", ProviderSubscriptionID: "sub_up", PlanCode: "owner_premium", Tier: "premium", Status: "active"})
	w := newTestProcessor(repo, nil)

	end := fixedNow().AddDate(0, 1, 0).Unix()
	body, sig := signed(`{"id":"evt_up","type":"customer.subscription.updated","data":{"object":{"id":"sub_up","status":"unpaid","cancel_at_period_end":true,"current_period_end":` + strconv.FormatInt(end, 10) + `}}}`)
	_, err := w.Process(context.Background(), body, sig)
	require.NoError(t, err)

	assert.Equal(t, "unpaid", repo.subs[0].Status)
	assert.True(t, repo.subs[0].CancelAtPeriodEnd)
	require.NotNil(t, repo.subs[0].CurrentPeriodEnd)
	assert.Equal(t, time.Unix(end, 0), *repo.subs[0].CurrentPeriodEnd)
	assert.False(t, repo.users[8].IsPremium)
}

func TestWebhook_SubscriptionUpdatedAdoptsLinkedCustomer(t *testing.T) {
	repo := newFakeRepo(&models.User{ID: 12})
	repo.accounts = append(repo.accounts, models.BillingAccount{ID: 1, UserID: 12, Provider: "stripe", ProviderAccountID: "cus_12"})
	w := newTestProcessor(repo, nil)

	body, sig := signed(`{"id":"evt_adopt","type":"customer.subscription.updated","data":{"object":{"id":"sub_dash","customer":"cus_12","status":"active","metadata":{"plan":"owner_premium"},"items":{"data":[{"price":{"recurring":{"interval":"year"}}}]}}}}`)
	_, err := w.Process(context.Background(), body, sig)
	require.NoError(t, err)

	require.Len(t, repo.subs, 1)
	assert.Equal(t, uint(12), repo.subs[0].UserID)
	assert.Equal(t, "premium", repo.subs[0].Tier)
	assert.Equal(t, "year", repo.subs[0].BillingInterval)
	assert.True(t, repo.users[12].IsPremium)

	// Unknown customers are acknowledged without a subscription.
	body, sig = signed(`{"id":"evt_stranger","type":"customer.subscription.updated","data":{"object":{"id":"sub_x","customer":"cus_none","status":"active"}}}`)
	_, err = w.Process(context.Background(), body, sig)
	require.NoError(t, err)
	assert.Len(t, repo.subs, 1)
}
