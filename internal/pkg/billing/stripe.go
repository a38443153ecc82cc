package billing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hangarlinks/hangarlinks/internal/pkg/env"
	"github.com/tidwall/gjson"
)

const (
	defaultStripeAPIBaseURL = "https://api.stripe.com/v1"

	CheckoutModePayment      = "payment"
	CheckoutModeSubscription = "subscription"

	// Stripe substitutes this placeholder in success URLs.
	SessionIDPlaceholder = "{CHECKOUT_SESSION_ID}"

	mockSessionPrefix = "mock_"
)

var ErrMockSession = errors.New("mock checkout session used while Stripe is configured")

type StripeClient struct {
	SecretKey      string
	PublishableKey string
	APIBaseURL     string
	Currency       string

	HTTPClient *http.Client
}

// LineItem is one priced item of a checkout. Interval is empty for one-off payments.
type LineItem struct {
	Name        string
	AmountCents int64
	Quantity    int
	Interval    string
}

type CheckoutParams struct {
	Mode              string
	LineItems         []LineItem
	SuccessURL        string
	CancelURL         string
	CustomerEmail     string
	ClientReferenceID string
	Metadata          map[string]string
}

type CheckoutSession struct {
	ID             string
	URL            string
	Mode           string
	Status         string
	PaymentStatus  string
	SubscriptionID string
	CustomerID     string
	AmountTotal    int64
	Metadata       map[string]string
	Mock           bool
}

// Paid reports whether the customer completed payment.
func (s *CheckoutSession) Paid() bool {
	return s.PaymentStatus == "paid" || s.PaymentStatus == "no_payment_required" || s.Status == "complete"
}

func NewStripeClientFromEnv() *StripeClient {
	return &StripeClient{
		SecretKey:      strings.TrimSpace(env.GetEnv("STRIPE_SECRET_KEY", "")),
		PublishableKey: strings.TrimSpace(env.GetEnv("STRIPE_PUBLISHABLE_KEY", "")),
		APIBaseURL:     strings.TrimSpace(env.GetEnv("STRIPE_API_BASE_URL", defaultStripeAPIBaseURL)),
		Currency:       "usd",
		HTTPClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// IsMock reports whether checkouts are simulated because no secret key is set.
func (c *StripeClient) IsMock() bool {
	return c == nil || strings.TrimSpace(c.SecretKey) == ""
}

// IsMockSessionID reports whether id was issued in mock mode.
func IsMockSessionID(id string) bool {
	return strings.HasPrefix(id, mockSessionPrefix)
}

func (c *StripeClient) CreateCheckoutSession(ctx context.Context, p CheckoutParams) (*CheckoutSession, error) {
	if len(p.LineItems) == 0 {
		return nil, errors.New("checkout needs at least one line item")
	}
	if strings.TrimSpace(p.SuccessURL) == "" {
		return nil, errors.New("success url is required")
	}
	mode := p.Mode
	if mode == "" {
		mode = CheckoutModePayment
	}

	if c.IsMock() {
		id := mockSessionPrefix + uuid.NewString()
		var total int64
		for _, li := range p.LineItems {
			total += li.AmountCents * int64(max(li.Quantity, 1))
		}
		return &CheckoutSession{
			ID:            id,
			URL:           strings.ReplaceAll(p.SuccessURL, SessionIDPlaceholder, id),
			Mode:          mode,
			Status:        "complete",
			PaymentStatus: "paid",
			AmountTotal:   total,
			Metadata:      p.Metadata,
			Mock:          true,
		}, nil
	}

	form := url.Values{}
	form.Set("mode", mode)
	form.Set("success_url", p.SuccessURL)
	if p.CancelURL != "" {
		form.Set("cancel_url", p.CancelURL)
	}
	form.Set("payment_method_types[0]", "card")
	if p.CustomerEmail != "" {
		form.Set("customer_email", p.CustomerEmail)
	}
	if p.ClientReferenceID != "" {
		form.Set("client_reference_id", p.ClientReferenceID)
	}
	currency := c.Currency
	if currency == "" {
		currency = "usd"
	}
	for i, li := range p.LineItems {
		prefix := "line_items[" + strconv.Itoa(i) + "]"
		form.Set(prefix+"[price_data][currency]", currency)
		form.Set(prefix+"[price_data][product_data][name]", li.Name)
		form.Set(prefix+"[price_data][unit_amount]", strconv.FormatInt(li.AmountCents, 10))
		if li.Interval != "" {
			form.Set(prefix+"[price_data][recurring][interval]", li.Interval)
		}
		form.Set(prefix+"[quantity]", strconv.Itoa(max(li.Quantity, 1)))
	}
	for k, v := range p.Metadata {
		form.Set("metadata["+k+"]", v)
		if mode == CheckoutModeSubscription {
			form.Set("subscription_data[metadata]["+k+"]", v)
		}
	}

	body, err := c.do(ctx, http.MethodPost, "/checkout/sessions", form)
	if err != nil {
		return nil, fmt.Errorf("stripe create checkout session: %w", err)
	}
	return parseCheckoutSession(body), nil
}

// RetrieveCheckoutSession loads a session. Mock sessions are only accepted
// while Stripe is not configured.
func (c *StripeClient) RetrieveCheckoutSession(ctx context.Context, id string) (*CheckoutSession, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, errors.New("session id is required")
	}
	if IsMockSessionID(id) {
		if !c.IsMock() {
			return nil, ErrMockSession
		}
		return &CheckoutSession{ID: id, Status: "complete", PaymentStatus: "paid", Mock: true}, nil
	}
	if c.IsMock() {
		return nil, errors.New("stripe is not configured")
	}

	body, err := c.do(ctx, http.MethodGet, "/checkout/sessions/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, fmt.Errorf("stripe retrieve checkout session: %w", err)
	}
	return parseCheckoutSession(body), nil
}

// CancelSubscription cancels immediately. Mock subscriptions need no remote call.
func (c *StripeClient) CancelSubscription(ctx context.Context, subscriptionID string) error {
	subscriptionID = strings.TrimSpace(subscriptionID)
	if subscriptionID == "" {
		return errors.New("subscription id is required")
	}
	if c.IsMock() || IsMockSessionID(subscriptionID) {
		return nil
	}
	if _, err := c.do(ctx, http.MethodDelete, "/subscriptions/"+url.PathEscape(subscriptionID), nil); err != nil {
		return fmt.Errorf("stripe cancel subscription: %w", err)
	}
	return nil
}

func (c *StripeClient) do(ctx context.Context, method, path string, form url.Values) ([]byte, error) {
	var reader io.Reader
	if form != nil {
		reader = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, method, strings.TrimRight(c.APIBaseURL, "/")+path, reader)
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(c.SecretKey, "")
	req.Header.Set("Accept", "application/json")
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	client := c.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := gjson.GetBytes(body, "error.message").String()
		if msg == "" {
			msg = string(body)
		}
		return nil, fmt.Errorf("status=%d: %s", resp.StatusCode, msg)
	}
	return body, nil
}

func parseCheckoutSession(body []byte) *CheckoutSession {
	r := gjson.ParseBytes(body)
	return sessionFromJSON(r)
}

func sessionFromJSON(r gjson.Result) *CheckoutSession {
	s := &CheckoutSession{
		ID:             r.Get("id").String(),
		URL:            r.Get("url").String(),
		Mode:           r.Get("mode").String(),
		Status:         r.Get("status").String(),
		PaymentStatus:  r.Get("payment_status").String(),
		SubscriptionID: idOrObject(r.Get("subscription")),
		CustomerID:     idOrObject(r.Get("customer")),
		AmountTotal:    r.Get("amount_total").Int(),
		Metadata:       map[string]string{},
	}
	r.Get("metadata").ForEach(func(k, v gjson.Result) bool {
		s.Metadata[k.String()] = v.String()
		return true
	})
	return s
}

// Expandable fields are either an id string or the expanded object.
func idOrObject(r gjson.Result) string {
	if r.IsObject() {
		return r.Get("id").String()
	}
	return r.String()
}
