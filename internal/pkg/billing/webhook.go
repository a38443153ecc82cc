package billing

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/hangarlinks/hangarlinks/app/models"
	"github.com/tidwall/gjson"
	"gorm.io/gorm"
)

var (
	ErrInvalidSignature = errors.New("invalid_signature")
	ErrInvalidPayload   = errors.New("invalid_payload")
)

const (
	EventCheckoutCompleted   = "checkout.session.completed"
	EventSubscriptionDeleted = "customer.subscription.deleted"
	EventSubscriptionUpdated = "customer.subscription.updated"
	EventInvoicePaid         = "invoice.payment_succeeded"
)

// WebhookOutcome tells the handler how a delivery was treated.
type WebhookOutcome struct {
	EventID   string
	EventType string
	Duplicate bool
	Ignored   bool
}

// WebhookProcessor verifies, stores and applies Stripe webhook deliveries.
type WebhookProcessor struct {
	svc           *Service
	purchases     *Purchases
	secret        string
	allowUnsigned bool
	now           func() time.Time
}

// NewWebhookProcessor builds a processor. allowUnsigned only takes effect
// when secret is empty.
func NewWebhookProcessor(svc *Service, purchases *Purchases, secret string, allowUnsigned bool) *WebhookProcessor {
	return &WebhookProcessor{
		svc:           svc,
		purchases:     purchases,
		secret:        strings.TrimSpace(secret),
		allowUnsigned: allowUnsigned,
		now:           time.Now,
	}
}

func (w *WebhookProcessor) signatureValid(payload []byte, header string) bool {
	if w.secret == "" {
		return w.allowUnsigned
	}
	return VerifyStripeWebhookSignature(payload, header, w.secret, w.now())
}

// Process handles one delivery. Deliveries with a bad signature are never
// stored, so they cannot claim the event id of the genuine one. A stored
// event that failed or never finished is applied again on redelivery.
func (w *WebhookProcessor) Process(ctx context.Context, payload []byte, signatureHeader string) (WebhookOutcome, error) {
	if !gjson.ValidBytes(payload) {
		return WebhookOutcome{}, ErrInvalidPayload
	}
	event := gjson.ParseBytes(payload)
	out := WebhookOutcome{
		EventID:   event.Get("id").String(),
		EventType: event.Get("type").String(),
	}
	if !w.signatureValid(payload, signatureHeader) {
		log.Warnf("[Billing] webhook %s rejected: invalid signature", out.EventID)
		return out, ErrInvalidSignature
	}

	created, stored, err := w.svc.RecordWebhookEvent(ctx, WebhookDelivery{
		Provider:        models.BillingProviderStripe,
		ProviderEventID: out.EventID,
		EventType:       out.EventType,
		PayloadJSON:     string(payload),
		SignatureValid:  true,
	})
	if err != nil {
		return out, fmt.Errorf("persist webhook: %w", err)
	}
	if !created {
		if stored.Settled() {
			out.Duplicate = true
			return out, nil
		}
		log.Infof("[Billing] retrying webhook %s (%s), last error: %q", out.EventID, out.EventType, stored.ProcessingError)
	}

	obj := event.Get("data.object")
	var procErr error
	switch out.EventType {
	case EventCheckoutCompleted:
		procErr = w.checkoutCompleted(ctx, obj)
	case EventSubscriptionDeleted:
		procErr = w.subscriptionStatus(ctx, obj.Get("id").String(), models.BillingStatusCanceled)
	case EventSubscriptionUpdated:
		procErr = w.subscriptionUpdated(ctx, obj, string(payload))
	case EventInvoicePaid:
		procErr = w.invoicePaid(ctx, obj)
	default:
		out.Ignored = true
	}

	_ = w.svc.MarkWebhookProcessed(ctx, stored.ID, procErr)
	if procErr != nil {
		log.Warnf("[Billing] webhook %s (%s) failed: %v", out.EventID, out.EventType, procErr)
	}
	return out, procErr
}

func (w *WebhookProcessor) checkoutCompleted(ctx context.Context, obj gjson.Result) error {
	session := sessionFromJSON(obj)
	if session.ID == "" {
		return ErrInvalidPayload
	}

	if session.Mode == CheckoutModeSubscription {
		userID, err := strconv.ParseUint(session.Metadata["user_id"], 10, 64)
		if err != nil || userID == 0 {
			return fmt.Errorf("subscription checkout %s without user_id", session.ID)
		}
		_, err = w.svc.ActivateFromCheckout(ctx, uint(userID), session, session.Metadata["plan"])
		return err
	}

	if w.purchases == nil {
		return nil
	}
	if session.Metadata["kind"] == models.PURCHASE_BOOKING {
		_, _, err := w.purchases.ConfirmBooking(session.ID)
		return ignoreNotFound(err)
	}
	_, _, err := w.purchases.Fulfill(session.ID)
	return ignoreNotFound(err)
}

func (w *WebhookProcessor) subscriptionStatus(ctx context.Context, subID, status string) error {
	if subID == "" {
		return ErrInvalidPayload
	}
	_, _, err := w.svc.SetSubscriptionStatus(ctx, subID, status)
	return ignoreNotFound(err)
}

func (w *WebhookProcessor) subscriptionUpdated(ctx context.Context, obj gjson.Result, raw string) error {
	subID := obj.Get("id").String()
	if subID == "" {
		return ErrInvalidPayload
	}
	customer := idOrObject(obj.Get("customer"))

	in := SubscriptionUpdate{
		Provider:               models.BillingProviderStripe,
		ProviderSubscriptionID: subID,
		ProviderCustomerID:     customer,
		Status:                 obj.Get("status").String(),
		CancelAtPeriodEnd:      obj.Get("cancel_at_period_end").Bool(),
		RawPayloadJSON:         raw,
	}
	existing, err := w.svc.repo.GetSubscription(models.BillingProviderStripe, subID)
	switch {
	case err == nil:
		in.UserID = existing.UserID
		in.PlanCode = existing.PlanCode
		in.BillingInterval = existing.BillingInterval
	case errors.Is(err, gorm.ErrRecordNotFound):
		// Not from our checkout, e.g. created in the Stripe dashboard. It is
		// adopted when the customer is linked to a user.
		if customer == "" {
			return nil
		}
		account, err := w.svc.repo.GetBillingAccountByProviderAccountID(models.BillingProviderStripe, customer)
		if err != nil {
			return ignoreNotFound(err)
		}
		in.UserID = account.UserID
		in.PlanCode = obj.Get("metadata.plan").String()
		in.BillingInterval = obj.Get("items.data.0.price.recurring.interval").String()
		log.Infof("[Billing] adopting subscription %s for user %d", subID, account.UserID)
	default:
		return err
	}

	if end := obj.Get("current_period_end").Int(); end > 0 {
		t := time.Unix(end, 0)
		in.CurrentPeriodEnd = &t
	}
	_, _, err = w.svc.SyncSubscription(ctx, in)
	return err
}

func (w *WebhookProcessor) invoicePaid(ctx context.Context, obj gjson.Result) error {
	subID := idOrObject(obj.Get("subscription"))
	if subID == "" {
		return nil
	}
	sub, err := w.svc.repo.GetSubscription(models.BillingProviderStripe, subID)
	if err != nil {
		return ignoreNotFound(err)
	}
	until, err := w.svc.ExtendSubscription(ctx, sub.UserID, SubscriptionTermDays)
	if err != nil {
		return err
	}
	log.Infof("[Billing] user %d premium extended until %s", sub.UserID, until.Format(time.DateOnly))
	return nil
}

// Events for sessions or subscriptions we never created are acknowledged.
func ignoreNotFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	return err
}
