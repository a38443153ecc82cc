package billing

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/hangarlinks/hangarlinks/app/models"
	"github.com/hangarlinks/hangarlinks/internal/pkg/entitlements"
	"gorm.io/gorm"
)

// Service keeps local subscription state in line with the payment provider.
type Service struct {
	repo   Repository
	stripe *StripeClient
	now    func() time.Time
}

// NewService creates a billing service from an injected repository.
func NewService(repo Repository, stripe *StripeClient) *Service {
	return &Service{repo: repo, stripe: stripe, now: time.Now}
}

// NewServiceFromDB creates a billing service from a GORM DB handle and the
// Stripe settings in the environment.
func NewServiceFromDB(db *gorm.DB) *Service {
	return NewService(NewRepository(db), NewStripeClientFromEnv())
}

func (s *Service) Stripe() *StripeClient {
	return s.stripe
}

// UpsertBillingAccount links a user to a provider customer.
func (s *Service) UpsertBillingAccount(ctx context.Context, userID uint, provider, providerAccountID, email string) (*models.BillingAccount, error) {
	_ = ctx
	p := strings.ToLower(strings.TrimSpace(provider))
	paID := strings.TrimSpace(providerAccountID)
	if userID == 0 || p == "" || paID == "" {
		return nil, errors.New("user_id, provider and provider_account_id are required")
	}

	account := &models.BillingAccount{
		UserID:            userID,
		Provider:          p,
		ProviderAccountID: paID,
		Email:             strings.TrimSpace(email),
	}
	if err := s.repo.UpsertBillingAccount(account); err != nil {
		return nil, err
	}
	return account, nil
}

// SyncSubscription upserts provider subscription data and reconciles user plan.
func (s *Service) SyncSubscription(ctx context.Context, in SubscriptionUpdate) (*models.BillingSubscription, string, error) {
	provider := strings.ToLower(strings.TrimSpace(in.Provider))
	if in.UserID == 0 || provider == "" || strings.TrimSpace(in.ProviderSubscriptionID) == "" {
		return nil, "", errors.New("user_id, provider and provider_subscription_id are required")
	}

	status := strings.ToLower(strings.TrimSpace(in.Status))
	if status == "" {
		status = models.BillingStatusActive
	}

	sub := &models.BillingSubscription{
		UserID:                 in.UserID,
		Provider:               provider,
		ProviderSubscriptionID: strings.TrimSpace(in.ProviderSubscriptionID),
		ProviderCustomerID:     strings.TrimSpace(in.ProviderCustomerID),
		PlanCode:               strings.TrimSpace(in.PlanCode),
		Tier:                   string(tierForPlanCode(in.PlanCode)),
		BillingInterval:        billingInterval(in.BillingInterval),
		Status:                 status,
		CurrentPeriodEnd:       in.CurrentPeriodEnd,
		CancelAtPeriodEnd:      in.CancelAtPeriodEnd,
		RawPayloadJSON:         in.RawPayloadJSON,
	}
	if err := s.repo.UpsertSubscription(sub); err != nil {
		return nil, "", err
	}

	effectivePlan, err := s.ReconcileUserPlan(ctx, in.UserID)
	if err != nil {
		return sub, "", err
	}
	return sub, effectivePlan, nil
}

// ActivateFromCheckout records a completed subscription checkout. Mock
// sessions get a synthetic subscription id so the flow is identical.
func (s *Service) ActivateFromCheckout(ctx context.Context, userID uint, session *CheckoutSession, planCode string) (string, error) {
	if session == nil {
		return "", errors.New("checkout session is required")
	}
	subID := session.SubscriptionID
	if subID == "" {
		subID = mockSessionPrefix + "sub_" + strings.TrimPrefix(session.ID, mockSessionPrefix)
	}
	if session.CustomerID != "" {
		if _, err := s.UpsertBillingAccount(ctx, userID, models.BillingProviderStripe, session.CustomerID, ""); err != nil {
			log.Warnf("[Billing] link customer %s to user %d: %v", session.CustomerID, userID, err)
		}
	}

	end := s.now().AddDate(0, 0, SubscriptionTermDays)
	_, plan, err := s.SyncSubscription(ctx, SubscriptionUpdate{
		UserID:                 userID,
		Provider:               models.BillingProviderStripe,
		ProviderSubscriptionID: subID,
		ProviderCustomerID:     session.CustomerID,
		PlanCode:               planCode,
		BillingInterval:        models.BillingIntervalMonth,
		Status:                 models.BillingStatusActive,
		CurrentPeriodEnd:       &end,
	})
	if err != nil {
		return "", err
	}
	if err := s.repo.UpdateUserFields(userID, map[string]interface{}{"subscription_expires": end}); err != nil {
		return plan, err
	}
	return plan, nil
}

// ReconcileUserPlan computes and writes the best effective plan for a user.
func (s *Service) ReconcileUserPlan(ctx context.Context, userID uint) (string, error) {
	_ = ctx
	if userID == 0 {
		return "", errors.New("user_id is required")
	}

	subs, err := s.repo.ListSubscriptionsByUser(userID)
	if err != nil {
		return "", err
	}

	best := effectiveTier(subs)
	premium := best == entitlements.PlanPremium

	u, err := s.repo.GetUser(userID)
	if err != nil {
		return "", err
	}
	if entitlements.Normalize(u.SubscriptionTier) == best && u.IsPremium == premium {
		return string(best), nil
	}

	fields := map[string]interface{}{
		"subscription_tier": string(best),
		"is_premium":        premium,
	}
	if !premium {
		fields["subscription_expires"] = nil
	}
	if err := s.repo.UpdateUserFields(userID, fields); err != nil {
		return "", err
	}
	return string(best), nil
}

// SetSubscriptionStatus updates a known provider subscription and reconciles its user.
func (s *Service) SetSubscriptionStatus(ctx context.Context, providerSubscriptionID, status string) (*models.BillingSubscription, string, error) {
	sub, err := s.repo.GetSubscription(models.BillingProviderStripe, strings.TrimSpace(providerSubscriptionID))
	if err != nil {
		return nil, "", err
	}
	if err := s.repo.UpdateSubscriptionStatus(sub.ID, strings.ToLower(status)); err != nil {
		return sub, "", err
	}
	sub.Status = strings.ToLower(status)
	plan, err := s.ReconcileUserPlan(ctx, sub.UserID)
	return sub, plan, err
}

// ExtendSubscription pushes the user's paid period by days, from the later
// of now and the current expiry.
func (s *Service) ExtendSubscription(ctx context.Context, userID uint, days int) (time.Time, error) {
	_ = ctx
	u, err := s.repo.GetUser(userID)
	if err != nil {
		return time.Time{}, err
	}
	from := s.now()
	if u.SubscriptionExpires != nil && u.SubscriptionExpires.After(from) {
		from = *u.SubscriptionExpires
	}
	until := from.AddDate(0, 0, days)
	err = s.repo.UpdateUserFields(userID, map[string]interface{}{
		"subscription_expires": until,
		"subscription_tier":    string(entitlements.PlanPremium),
		"is_premium":           true,
	})
	return until, err
}

// ActiveSubscription returns the user's newest entitling subscription.
func (s *Service) ActiveSubscription(ctx context.Context, userID uint) (*models.BillingSubscription, error) {
	_ = ctx
	subs, err := s.repo.ListSubscriptionsByUser(userID)
	if err != nil {
		return nil, err
	}
	for i := range subs {
		if entitles(subs[i].Status) {
			return &subs[i], nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

// CancelUserSubscriptions cancels every entitling subscription at the
// provider and drops the user to the free plan.
func (s *Service) CancelUserSubscriptions(ctx context.Context, userID uint) error {
	subs, err := s.repo.ListSubscriptionsByUser(userID)
	if err != nil {
		return err
	}
	for _, sub := range subs {
		if !entitles(sub.Status) {
			continue
		}
		if err := s.stripe.CancelSubscription(ctx, sub.ProviderSubscriptionID); err != nil {
			return fmt.Errorf("cancel %s: %w", sub.ProviderSubscriptionID, err)
		}
		if err := s.repo.UpdateSubscriptionStatus(sub.ID, models.BillingStatusCanceled); err != nil {
			return err
		}
	}
	if err := s.repo.UpdateUserFields(userID, map[string]interface{}{
		"subscription_tier":    string(entitlements.PlanFree),
		"is_premium":           false,
		"subscription_expires": nil,
	}); err != nil {
		return err
	}
	return nil
}

// RecordWebhookEvent persists webhook payloads idempotently.
func (s *Service) RecordWebhookEvent(ctx context.Context, in WebhookDelivery) (bool, *models.BillingWebhookEvent, error) {
	_ = ctx
	provider := strings.ToLower(strings.TrimSpace(in.Provider))
	if provider == "" {
		return false, nil, errors.New("provider is required")
	}
	eventID := strings.TrimSpace(in.ProviderEventID)
	if eventID == "" {
		sum := sha256.Sum256([]byte(in.PayloadJSON))
		eventID = "hash:" + hex.EncodeToString(sum[:])
	}

	event := &models.BillingWebhookEvent{
		Provider:        provider,
		ProviderEventID: eventID,
		EventType:       strings.TrimSpace(in.EventType),
		PayloadJSON:     in.PayloadJSON,
		SignatureValid:  in.SignatureValid,
	}
	return s.repo.CreateWebhookEventIfNotExists(event)
}

// MarkWebhookProcessed marks an event as processed and stores an optional error.
func (s *Service) MarkWebhookProcessed(ctx context.Context, webhookEventID uint, processingErr error) error {
	_ = ctx
	if webhookEventID == 0 {
		return errors.New("webhook_event_id is required")
	}
	errMsg := ""
	if processingErr != nil {
		errMsg = processingErr.Error()
	}
	return s.repo.MarkWebhookProcessed(webhookEventID, errMsg)
}
