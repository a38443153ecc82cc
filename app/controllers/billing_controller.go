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
	"github.com/hangarlinks/hangarlinks/internal/pkg/constants"
	"github.com/hangarlinks/hangarlinks/internal/pkg/entitlements"
	"github.com/hangarlinks/hangarlinks/internal/pkg/flash"
	"github.com/hangarlinks/hangarlinks/internal/pkg/insights"
	"github.com/hangarlinks/hangarlinks/internal/pkg/metrics"
	"github.com/hangarlinks/hangarlinks/internal/pkg/usercontext"
)

const (
	sponsoredRoute     = "/pricing/sponsored"
	insightsRoute      = "/insights"
	marketReportsRoute = "/insights/market-reports"
	manageSubRoute     = "/manage-subscription"
)

// BillingController serves subscriptions, one-off purchases and the Stripe webhook.
type BillingController struct {
	repos     *repository.Repositories
	service   *billing.Service
	stripe    *billing.StripeClient
	purchases *billing.Purchases
	webhooks  *billing.WebhookProcessor
	jobs      Jobs
	now       func() time.Time
}

func NewBillingController(repos *repository.Repositories, service *billing.Service, purchases *billing.Purchases, webhooks *billing.WebhookProcessor, jobs Jobs) *BillingController {
	return &BillingController{
		repos:     repos,
		service:   service,
		stripe:    service.Stripe(),
		purchases: purchases,
		webhooks:  webhooks,
		jobs:      jobs,
		now:       time.Now,
	}
}

func (bc *BillingController) HandlePricing(c *fiber.Ctx) error {
	uc := usercontext.GetUserContext(c)
	return render(c, "billing/pricing", "Pricing", fiber.Map{
		"Mock":  bc.stripe.IsMock(),
		"Plans": []entitlements.PlanInfo{entitlements.OwnerPremium, entitlements.RenterPremium},
		"Plan":  entitlements.PlanForRole(uc.Role),
	})
}

// planFromForm accepts "owner"/"renter" as well as full plan codes.
func planFromForm(planType, role string) entitlements.PlanInfo {
	switch strings.ToLower(strings.TrimSpace(planType)) {
	case "owner":
		return entitlements.OwnerPremium
	case "renter":
		return entitlements.RenterPremium
	}
	if plan, ok := entitlements.PlanByCode(planType); ok {
		return plan
	}
	return entitlements.PlanForRole(role)
}

func (bc *BillingController) HandleCreateCheckoutSession(c *fiber.Ctx) error {
	uc := usercontext.GetUserContext(c)
	if uc.IsPremium() {
		return redirectInfo(c, "You're already on Premium.", manageSubRoute)
	}
	plan := planFromForm(c.FormValue("plan_type"), uc.Role)

	session, err := bc.stripe.CreateCheckoutSession(c.UserContext(), billing.CheckoutParams{
		Mode: billing.CheckoutModeSubscription,
		LineItems: []billing.LineItem{{
			Name:        plan.Name,
			AmountCents: plan.PriceCents,
			Quantity:    1,
			Interval:    plan.Interval,
		}},
		SuccessURL:        absoluteURL("/subscription/success?session_id=" + billing.SessionIDPlaceholder + "&plan=" + plan.Code),
		CancelURL:         absoluteURL("/subscription/cancel"),
		CustomerEmail:     uc.Email,
		ClientReferenceID: fmt.Sprint(uc.UserID),
		Metadata:          map[string]string{"user_id": fmt.Sprint(uc.UserID), "plan": plan.Code},
	})
	if err != nil {
		log.Errorf("[Billing] subscription checkout for user %d: %v", uc.UserID, err)
		return redirectError(c, "Payment error: "+err.Error(), constants.PricingRoute)
	}
	metrics.CheckoutStarted("subscription", session.Mock)
	return c.Redirect(session.URL, fiber.StatusSeeOther)
}

// HandleSubscriptionSuccess activates the plan once the session is paid.
// The webhook does the same, whichever arrives first wins.
func (bc *BillingController) HandleSubscriptionSuccess(c *fiber.Ctx) error {
	uc := usercontext.GetUserContext(c)
	plan, ok := entitlements.PlanByCode(c.Query("plan"))
	if !ok {
		plan = entitlements.PlanForRole(uc.Role)
	}

	session, err := bc.stripe.RetrieveCheckoutSession(c.UserContext(), c.Query("session_id"))
	if err != nil {
		log.Warnf("[Billing] subscription success for user %d: %v", uc.UserID, err)
		return redirectError(c, "We couldn't verify your checkout.", constants.PricingRoute)
	}
	if !session.Paid() {
		return redirectError(c, "Your payment has not completed yet.", constants.PricingRoute)
	}
	if !session.Mock && session.Metadata["user_id"] != fmt.Sprint(uc.UserID) {
		return redirectError(c, "Unauthorized", constants.PricingRoute)
	}

	if _, err := bc.service.ActivateFromCheckout(c.UserContext(), uc.UserID, session, plan.Code); err != nil {
		log.Errorf("[Billing] activate subscription for user %d: %v", uc.UserID, err)
		return renderError(c, fiber.StatusInternalServerError, "Your payment went through but activation failed. Please contact support.")
	}
	refreshSessionPlan(c)
	bc.notifyAdminSubscription(uc, plan)

	flash.Set(c, fiber.Map{"type": "success", "message": "Welcome to Premium! Your subscription is active."})
	return render(c, "billing/subscription_success", "Welcome to Premium", fiber.Map{"Plan": plan})
}

func (bc *BillingController) notifyAdminSubscription(uc usercontext.UserContext, plan entitlements.PlanInfo) {
	if bc.jobs == nil {
		return
	}
	bc.jobs.NotifyAdmin("[HangarLinks] NEW SUBSCRIPTION", fmt.Sprintf(
		"User:  %s <%s>\nPlan:  %s\nTime:  %s\n",
		uc.Username, uc.Email, plan.Name, bc.now().UTC().Format("2006-01-02 15:04 UTC"),
	))
}

func (bc *BillingController) HandleSubscriptionCancel(c *fiber.Ctx) error {
	return redirectInfo(c, "Subscription checkout was cancelled. You can try again anytime.", constants.PricingRoute)
}

func (bc *BillingController) HandleManageSubscription(c *fiber.Ctx) error {
	uid := usercontext.GetUserID(c)
	user, err := bc.repos.User.GetByID(uid)
	if err != nil {
		return handleRepoError(c, "Billing", err)
	}
	data := fiber.Map{"User": user}
	sub, err := bc.service.ActiveSubscription(c.UserContext(), uid)
	switch {
	case err == nil:
		data["Subscription"] = sub
	case !isNotFound(err):
		return handleRepoError(c, "Billing", err)
	}
	return render(c, "billing/manage", "Subscription", data)
}

func (bc *BillingController) HandleCancelSubscription(c *fiber.Ctx) error {
	uid := usercontext.GetUserID(c)
	if err := bc.service.CancelUserSubscriptions(c.UserContext(), uid); err != nil {
		log.Errorf("[Billing] cancel subscriptions for user %d: %v", uid, err)
		return redirectError(c, "Error cancelling: "+err.Error(), manageSubRoute)
	}
	refreshSessionPlan(c)
	return redirectInfo(c, "Subscription cancelled. You can re-subscribe anytime.", constants.PricingRoute)
}

// HandleStripeWebhook acknowledges duplicates and rejects unsigned deliveries.
func (bc *BillingController) HandleStripeWebhook(c *fiber.Ctx) error {
	out, err := bc.webhooks.Process(c.UserContext(), c.Body(), c.Get("Stripe-Signature"))
	switch {
	case errors.Is(err, billing.ErrInvalidSignature):
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid_signature"})
	case errors.Is(err, billing.ErrInvalidPayload):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_payload"})
	case err != nil:
		log.Errorf("[Billing] webhook %s: %v", out.EventID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "processing_failed"})
	case out.Duplicate:
		return c.JSON(fiber.Map{"ok": true, "duplicate": true})
	}
	return c.JSON(fiber.Map{"status": "success"})
}

func (bc *BillingController) HandleSponsoredPricing(c *fiber.Ctx) error {
	listings, err := bc.repos.Listing.ActiveByOwner(usercontext.GetUserID(c))
	if err != nil {
		return handleRepoError(c, "Billing", err)
	}
	return render(c, "billing/sponsored", "Featured placements", fiber.Map{
		"Listings": listings,
		"Tiers":    billing.SponsoredTiers,
	})
}

func (bc *BillingController) HandlePromoteListing(c *fiber.Ctx) error {
	tier, ok := billing.SponsoredTierByCode(c.Params("tier"))
	if !ok {
		return redirectError(c, "Invalid plan selected.", sponsoredRoute)
	}
	listingID := optionalUint(c.FormValue("listing_id"))
	if listingID == nil {
		return redirectError(c, "Please select a listing to promote.", sponsoredRoute)
	}
	listing, err := bc.repos.Listing.GetByID(*listingID)
	if err != nil {
		return handleRepoError(c, "Billing", err)
	}
	uc := usercontext.GetUserContext(c)
	if listing.OwnerID != uc.UserID {
		return renderError(c, fiber.StatusForbidden, "You can only promote your own listings.")
	}

	session, err := bc.purchases.Start(c.UserContext(), billing.PurchaseRequest{
		UserID:      &uc.UserID,
		Kind:        models.PURCHASE_SPONSORED,
		Reference:   tier.Code,
		TargetID:    listing.ID,
		Name:        fmt.Sprintf("%s - %s", tier.Name, listing.AirportICAO),
		AmountCents: tier.PriceCents,
		Email:       uc.Email,
		SuccessURL:  absoluteURL("/sponsored/success?session_id=" + billing.SessionIDPlaceholder),
		CancelURL:   absoluteURL(sponsoredRoute),
	})
	if err != nil {
		log.Errorf("[Billing] sponsored checkout for listing %d: %v", listing.ID, err)
		return redirectError(c, "Error: "+err.Error(), sponsoredRoute)
	}
	metrics.CheckoutStarted(models.PURCHASE_SPONSORED, session.Mock)
	return c.Redirect(session.URL, fiber.StatusSeeOther)
}

// fulfill verifies and applies a one-off purchase from a success redirect.
// Only the buyer may complete it.
func (bc *BillingController) fulfill(c *fiber.Ctx, kind, fallback string) (*models.Purchase, error) {
	rec, _, err := bc.purchases.FulfillSession(c.UserContext(), c.Query("session_id"))
	switch {
	case err == nil:
	case errors.Is(err, billing.ErrNotPaid):
		return nil, redirectError(c, "Your payment has not completed yet.", fallback)
	case errors.Is(err, billing.ErrMockSession):
		return nil, redirectError(c, "That checkout session is not valid.", fallback)
	case isNotFound(err):
		return nil, notFound(c)
	default:
		log.Errorf("[Billing] fulfill %s session: %v", kind, err)
		return nil, redirectError(c, "We couldn't verify your payment. Please contact support.", fallback)
	}
	if rec.Kind != kind {
		return nil, notFound(c)
	}
	if rec.UserID != nil && *rec.UserID != usercontext.GetUserID(c) {
		return nil, redirectError(c, "Unauthorized", "/")
	}
	return rec, nil
}

func (bc *BillingController) HandleSponsoredSuccess(c *fiber.Ctx) error {
	rec, err := bc.fulfill(c, models.PURCHASE_SPONSORED, sponsoredRoute)
	if rec == nil {
		return err
	}
	tier, _ := billing.SponsoredTierByCode(rec.Reference)
	return redirectSuccess(c, fmt.Sprintf("Success! Listing is now %s.", tier.Name), fmt.Sprintf("/listing/%d", rec.TargetID))
}

// HandleInsights shows market analytics to users with access and the
// product teaser to everyone else.
func (bc *BillingController) HandleInsights(c *fiber.Ctx) error {
	user, err := bc.repos.User.GetByID(usercontext.GetUserID(c))
	if err != nil {
		return handleRepoError(c, "Insights", err)
	}
	if !entitlements.HasInsightsAccess(user, bc.now()) {
		return render(c, "billing/insights_teaser", "Market analytics", fiber.Map{"Products": insights.Products})
	}
	return render(c, "billing/insights", "Market analytics", fiber.Map{
		"Forecast": insights.NewForecast(nil),
		"Market":   insights.NewMarketData(nil),
	})
}

func (bc *BillingController) HandleBuyInsights(c *fiber.Ctx) error {
	product, ok := insights.ProductByCode(c.Params("type"))
	if !ok {
		return redirectError(c, "Invalid plan selected.", insightsRoute)
	}
	uc := usercontext.GetUserContext(c)
	session, err := bc.purchases.Start(c.UserContext(), billing.PurchaseRequest{
		UserID:      &uc.UserID,
		Kind:        models.PURCHASE_INSIGHTS,
		Reference:   product.Code,
		Name:        product.Name,
		AmountCents: product.PriceCents,
		Email:       uc.Email,
		SuccessURL:  absoluteURL("/insights/success?session_id=" + billing.SessionIDPlaceholder),
		CancelURL:   absoluteURL(insightsRoute),
	})
	if err != nil {
		log.Errorf("[Billing] insights checkout for user %d: %v", uc.UserID, err)
		return redirectError(c, "Payment Error: "+err.Error(), insightsRoute)
	}
	metrics.CheckoutStarted(models.PURCHASE_INSIGHTS, session.Mock)
	return c.Redirect(session.URL, fiber.StatusSeeOther)
}

func (bc *BillingController) HandleInsightsSuccess(c *fiber.Ctx) error {
	rec, err := bc.fulfill(c, models.PURCHASE_INSIGHTS, insightsRoute)
	if rec == nil {
		return err
	}
	return redirectSuccess(c, "Analytics Unlocked!", insightsRoute)
}

func (bc *BillingController) HandleWhiteLabel(c *fiber.Ctx) error {
	return render(c, "billing/white_label", "White label", fiber.Map{"PriceCents": int64(billing.WhiteLabelPriceCents)})
}

// HandleWhiteLabelSubmit records the request as Pending Payment and opens
// the reservation checkout.
func (bc *BillingController) HandleWhiteLabelSubmit(c *fiber.Ctx) error {
	req := &models.WhiteLabelRequest{
		FBOName:      strings.TrimSpace(c.FormValue("fbo_name")),
		ContactName:  strings.TrimSpace(c.FormValue("contact_name")),
		ContactEmail: strings.TrimSpace(c.FormValue("contact_email")),
		Status:       models.WHITE_LABEL_PENDING_PAYMENT,
	}
	if err := validate.Struct(req); err != nil {
		return redirectError(c, "Please fill in the FBO name, contact name and a valid email.", "/white-label")
	}
	if err := bc.repos.WhiteLabel.Create(req); err != nil {
		return handleRepoError(c, "WhiteLabel", err)
	}

	var buyer *uint
	if usercontext.IsLoggedIn(c) {
		uid := usercontext.GetUserID(c)
		buyer = &uid
	}
	session, err := bc.purchases.Start(c.UserContext(), billing.PurchaseRequest{
		UserID:      buyer,
		Kind:        models.PURCHASE_WHITE_LABEL,
		Reference:   "reservation",
		TargetID:    req.ID,
		Name:        billing.WhiteLabelProductName,
		AmountCents: billing.WhiteLabelPriceCents,
		Email:       req.ContactEmail,
		SuccessURL:  absoluteURL("/white-label/success?session_id=" + billing.SessionIDPlaceholder),
		CancelURL:   absoluteURL("/white-label"),
	})
	if err != nil {
		log.Errorf("[WhiteLabel] checkout for request %d: %v", req.ID, err)
		return redirectError(c, "Payment Error: "+err.Error(), "/white-label")
	}
	if err := bc.repos.WhiteLabel.SetCheckoutSession(req.ID, session.ID); err != nil {
		log.Warnf("[WhiteLabel] store session for request %d: %v", req.ID, err)
	}
	metrics.CheckoutStarted(models.PURCHASE_WHITE_LABEL, session.Mock)
	return c.Redirect(session.URL, fiber.StatusSeeOther)
}

func (bc *BillingController) HandleWhiteLabelSuccess(c *fiber.Ctx) error {
	rec, err := bc.fulfill(c, models.PURCHASE_WHITE_LABEL, "/white-label")
	if rec == nil {
		return err
	}
	req, err := bc.repos.WhiteLabel.GetByID(rec.TargetID)
	if err != nil {
		return handleRepoError(c, "WhiteLabel", err)
	}
	return render(c, "billing/white_label_success", "Reservation confirmed", fiber.Map{"Request": req})
}

// HandleMarketReports lists the reports. Returning from a paid checkout
// confirms the purchase on the same page.
func (bc *BillingController) HandleMarketReports(c *fiber.Ctx) error {
	if c.Query("session_id") != "" {
		rec, err := bc.fulfill(c, models.PURCHASE_MARKET_REPORT, marketReportsRoute)
		if rec == nil {
			return err
		}
		report, _ := insights.ReportByID(rec.Reference)
		flash.Set(c, fiber.Map{"type": "success", "message": fmt.Sprintf("You bought %s!", report.Title)})
	}
	return render(c, "billing/market_reports", "Market reports", fiber.Map{"Reports": insights.Reports})
}

func (bc *BillingController) HandleBuyReport(c *fiber.Ctx) error {
	report, ok := insights.ReportByID(c.Params("id"))
	if !ok {
		return notFound(c)
	}
	uc := usercontext.GetUserContext(c)
	session, err := bc.purchases.Start(c.UserContext(), billing.PurchaseRequest{
		UserID:      &uc.UserID,
		Kind:        models.PURCHASE_MARKET_REPORT,
		Reference:   report.ID,
		Name:        report.Title,
		AmountCents: report.PriceCents,
		Email:       uc.Email,
		SuccessURL:  absoluteURL(marketReportsRoute + "?session_id=" + billing.SessionIDPlaceholder),
		CancelURL:   absoluteURL(marketReportsRoute),
	})
	if err != nil {
		log.Errorf("[Billing] report checkout for user %d: %v", uc.UserID, err)
		return redirectError(c, "Payment Error: "+err.Error(), marketReportsRoute)
	}
	metrics.CheckoutStarted(models.PURCHASE_MARKET_REPORT, session.Mock)
	return c.Redirect(session.URL, fiber.StatusSeeOther)
}
