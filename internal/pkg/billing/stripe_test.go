package billing

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateCheckoutSession_Mock(t *testing.T) {
	c := &StripeClient{}
	require.True(t, c.IsMock())

	session, err := c.CreateCheckoutSession(context.Background(), CheckoutParams{
		LineItems:  []LineItem{{Name: "Gold Featured", AmountCents: 9900, Quantity: 1}},
		SuccessURL: "http://localhost/sponsored/success?session_id=" + SessionIDPlaceholder,
		Metadata:   map[string]string{"kind": "sponsored"},
	})
	require.NoError(t, err)
	assert.True(t, session.Mock)
	assert.True(t, IsMockSessionID(session.ID))
	assert.Equal(t, "http://localhost/sponsored/success?session_id="+session.ID, session.URL)
	assert.Equal(t, int64(9900), session.AmountTotal)
	assert.True(t, session.Paid())

	got, err := c.RetrieveCheckoutSession(context.Background(), session.ID)
	require.NoError(t, err)
	assert.True(t, got.Paid())
}

func TestCreateCheckoutSession_Validation(t *testing.T) {
	c := &StripeClient{}
	_, err := c.CreateCheckoutSession(context.Background(), CheckoutParams{SuccessURL: "http://x"})
	assert.Error(t, err)
	_, err = c.CreateCheckoutSession(context.Background(), CheckoutParams{LineItems: []LineItem{{Name: "x", AmountCents: 1}}})
	assert.Error(t, err)
}

func TestRetrieveCheckoutSession_RejectsMockWhenConfigured(t *testing.T) {
	c := &StripeClient{SecretKey: "sk_test_123"}
	_, err := c.RetrieveCheckoutSession(context.Background(), "mock_abc")
	assert.ErrorIs(t, err, ErrMockSession)
}

func TestCreateCheckoutSession_Remote(t *testing.T) {
	var form url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, _, ok := r.BasicAuth()
		if !ok || user != "sk_test_123" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if r.URL.Path != "/checkout/sessions" || r.Method != http.MethodPost {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		body, _ := io.ReadAll(r.Body)
		form, _ = url.ParseQuery(string(body))
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":"cs_test_1","url":"https://checkout.stripe.com/c/cs_test_1","mode":"subscription","status":"open","payment_status":"unpaid","metadata":{"user_id":"7"}}`)
	}))
	defer srv.Close()

	c := &StripeClient{SecretKey: "sk_test_123", APIBaseURL: srv.URL, HTTPClient: srv.Client()}
	session, err := c.CreateCheckoutSession(context.Background(), CheckoutParams{
		Mode:       CheckoutModeSubscription,
		LineItems:  []LineItem{{Name: "Owner Premium", AmountCents: 999, Quantity: 1, Interval: "month"}},
		SuccessURL: "http://localhost/subscription/success?session_id=" + SessionIDPlaceholder,
		Metadata:   map[string]string{"user_id": "7", "plan": "owner_premium"},
	})
	require.NoError(t, err)
	assert.Equal(t, "cs_test_1", session.ID)
	assert.False(t, session.Paid())
	assert.Equal(t, "7", session.Metadata["user_id"])

	assert.Equal(t, "subscription", form.Get("mode"))
	assert.Equal(t, "999", form.Get("line_items[0][price_data][unit_amount]"))
	assert.Equal(t, "month", form.Get("line_items[0][price_data][recurring][interval]"))
	assert.Equal(t, "owner_premium", form.Get("subscription_data[metadata][plan]"))
	assert.True(t, strings.Contains(form.Get("success_url"), SessionIDPlaceholder))
}

func TestStripeErrorMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"error":{"message":"No such checkout.session"}}`)
	}))
	defer srv.Close()

	c := &StripeClient{SecretKey: "sk_test_123", APIBaseURL: srv.URL, HTTPClient: srv.Client()}
	_, err := c.RetrieveCheckoutSession(context.Background(), "cs_missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "No such checkout.session")
}

func TestSessionFromJSON_ExpandedFields(t *testing.T) {
	s := parseCheckoutSession([]byte(`{"id":"cs_1","subscription":{"id":"sub_1"},"customer":"cus_1","payment_status":"paid"}`))
	assert.Equal(t, "sub_1", s.SubscriptionID)
	assert.Equal(t, "cus_1", s.CustomerID)
	assert.True(t, s.Paid())
}
