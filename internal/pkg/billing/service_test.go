package billing

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/hangarlinks/hangarlinks/app/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fakeRepo struct {
	users    map[uint]*models.User
	accounts []models.BillingAccount
	subs     []models.BillingSubscription
	events   []models.BillingWebhookEvent
}

func newFakeRepo(users ...*models.User) *fakeRepo {
	r := &fakeRepo{users: map[uint]*models.User{}}
	for _, u := range users {
		r.users[u.ID] = u
	}
	return r
}

func (r *fakeRepo) UpsertBillingAccount(account *models.BillingAccount) error {
	for i := range r.accounts {
		if r.accounts[i].UserID == account.UserID && r.accounts[i].Provider == account.Provider {
			r.accounts[i].ProviderAccountID = account.ProviderAccountID
			return nil
		}
	}
	account.ID = uint(len(r.accounts) + 1)
	r.accounts = append(r.accounts, *account)
	return nil
}

func (r *fakeRepo) GetBillingAccountByProviderAccountID(provider, providerAccountID string) (*models.BillingAccount, error) {
	for i := range r.accounts {
		if r.accounts[i].Provider == provider && r.accounts[i].ProviderAccountID == providerAccountID {
			return &r.accounts[i], nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeRepo) UpsertSubscription(sub *models.BillingSubscription) error {
	for i := range r.subs {
		if r.subs[i].Provider == sub.Provider && r.subs[i].ProviderSubscriptionID == sub.ProviderSubscriptionID {
			sub.ID = r.subs[i].ID
			r.subs[i] = *sub
			return nil
		}
	}
	sub.ID = uint(len(r.subs) + 1)
	r.subs = append(r.subs, *sub)
	return nil
}

func (r *fakeRepo) GetSubscription(provider, providerSubscriptionID string) (*models.BillingSubscription, error) {
	for i := range r.subs {
		if r.subs[i].Provider == provider && r.subs[i].ProviderSubscriptionID == providerSubscriptionID {
			s := r.subs[i]
			return &s, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeRepo) ListSubscriptionsByUser(userID uint) ([]models.BillingSubscription, error) {
	var out []models.BillingSubscription
	for i := len(r.subs) - 1; i >= 0; i-- {
		if r.subs[i].UserID == userID {
			out = append(out, r.subs[i])
		}
	}
	return out, nil
}

func (r *fakeRepo) UpdateSubscriptionStatus(id uint, status string) error {
	for i := range r.subs {
		if r.subs[i].ID == id {
			r.subs[i].Status = status
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (r *fakeRepo) GetUser(userID uint) (*models.User, error) {
	u, ok := r.users[userID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *u
	return &copied, nil
}

func (r *fakeRepo) UpdateUserFields(userID uint, fields map[string]interface{}) error {
	u, ok := r.users[userID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	for k, v := range fields {
		switch k {
		case "subscription_tier":
			u.SubscriptionTier = v.(string)
		case "is_premium":
			u.IsPremium = v.(bool)
		case "subscription_expires":
			if t, ok := v.(time.Time); ok {
				u.SubscriptionExpires = &t
			} else {
				u.SubscriptionExpires = nil
			}
		default:
			return fmt.Errorf("unexpected field %s", k)
		}
	}
	return nil
}

func (r *fakeRepo) CreateWebhookEventIfNotExists(event *models.BillingWebhookEvent) (bool, *models.BillingWebhookEvent, error) {
	for i := range r.events {
		if r.events[i].Provider == event.Provider && r.events[i].ProviderEventID == event.ProviderEventID {
			return false, &r.events[i], nil
		}
	}
	event.ID = uint(len(r.events) + 1)
	r.events = append(r.events, *event)
	return true, event, nil
}

func (r *fakeRepo) MarkWebhookProcessed(id uint, processingError string) error {
	for i := range r.events {
		if r.events[i].ID == id {
			now := time.Now()
			r.events[i].ProcessedAt = &now
			r.events[i].ProcessingError = processingError
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func fixedNow() time.Time {
	return time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC)
}

func newTestService(repo *fakeRepo) *Service {
	svc := NewService(repo, &StripeClient{})
	svc.now = fixedNow
	return svc
}

func TestActivateFromCheckout_Mock(t *testing.T) {
	repo := newFakeRepo(&models.User{ID: 7, SubscriptionTier: models.TIER_FREE})
	svc := newTestService(repo)

	plan, err := svc.ActivateFromCheckout(context.Background(), 7, &CheckoutSession{ID: "mock_abc", Mock: true}, "owner_premium")
	require.NoError(t, err)
	assert.Equal(t, "premium", plan)

	u := repo.users[7]
	assert.True(t, u.IsPremium)
	assert.Equal(t, models.TIER_PREMIUM, u.SubscriptionTier)
	require.NotNil(t, u.SubscriptionExpires)
	assert.Equal(t, fixedNow().AddDate(0, 0, 30), *u.SubscriptionExpires)

	require.Len(t, repo.subs, 1)
	assert.Equal(t, "mock_sub_abc", repo.subs[0].ProviderSubscriptionID)
	assert.Equal(t, "owner_premium", repo.subs[0].PlanCode)
}

func TestReconcileUserPlan_DowngradesWithoutEntitlingSubscription(t *testing.T) {
	expires := fixedNow().Add(24 * time.Hour)
	repo := newFakeRepo(&models.User{ID: 3, SubscriptionTier: models.TIER_PREMIUM, IsPremium: true, SubscriptionExpires: &expires})
	repo.subs = append(repo.subs, models.BillingSubscription{ID: 1, UserID: 3, Provider: "stripe", ProviderSubscriptionID: "sub_1", Tier: "premium", Status: "canceled"})
	svc := newTestService(repo)

	plan, err := svc.ReconcileUserPlan(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, "free", plan)
	assert.False(t, repo.users[3].IsPremium)
	assert.Nil(t, repo.users[3].SubscriptionExpires)
}

func TestSetSubscriptionStatus_Canceled(t *testing.T) {
	repo := newFakeRepo(&models.User{ID: 4, SubscriptionTier: models.TIER_PREMIUM, IsPremium: true})
	repo.subs = append(repo.subs, models.BillingSubscription{ID: 1, UserID: 4, Provider: "stripe", ProviderSubscriptionID: "sub_9", Tier: "premium", Status: "active"})
	svc := newTestService(repo)

	_, plan, err := svc.SetSubscriptionStatus(context.Background(), "sub_9", models.BillingStatusCanceled)
	require.NoError(t, err)
	assert.Equal(t, "free", plan)
	assert.Equal(t, models.BillingStatusCanceled, repo.subs[0].Status)

	_, _, err = svc.SetSubscriptionStatus(context.Background(), "sub_missing", models.BillingStatusCanceled)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestExtendSubscription(t *testing.T) {
	later := fixedNow().AddDate(0, 0, 10)
	repo := newFakeRepo(
		&models.User{ID: 1},
		&models.User{ID: 2, SubscriptionExpires: &later},
	)
	svc := newTestService(repo)

	until, err := svc.ExtendSubscription(context.Background(), 1, 30)
	require.NoError(t, err)
	assert.Equal(t, fixedNow().AddDate(0, 0, 30), until)

	until, err = svc.ExtendSubscription(context.Background(), 2, 30)
	require.NoError(t, err)
	assert.Equal(t, later.AddDate(0, 0, 30), until)
	assert.True(t, repo.users[2].IsPremium)
}

func TestCancelUserSubscriptions(t *testing.T) {
	repo := newFakeRepo(&models.User{ID: 5, SubscriptionTier: models.TIER_PREMIUM, IsPremium: true})
	repo.subs = append(repo.subs,
		models.BillingSubscription{ID: 1, UserID: 5, Provider: "stripe", ProviderSubscriptionID: "mock_sub_1", Tier: "premium", Status: "active"},
		models.BillingSubscription{ID: 2, UserID: 5, Provider: "stripe", ProviderSubscriptionID: "sub_old", Tier: "premium", Status: "canceled"},
	)
	svc := newTestService(repo)

	require.NoError(t, svc.CancelUserSubscriptions(context.Background(), 5))
	assert.Equal(t, models.BillingStatusCanceled, repo.subs[0].Status)
	assert.False(t, repo.users[5].IsPremium)
	assert.Equal(t, models.TIER_FREE, repo.users[5].SubscriptionTier)

	_, err := svc.ActiveSubscription(context.Background(), 5)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestRecordWebhookEvent_Idempotent(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)
	in := WebhookDelivery{Provider: "Stripe", ProviderEventID: "evt_1", EventType: "x", PayloadJSON: "{}"}

	created, first, err := svc.RecordWebhookEvent(context.Background(), in)
	require.NoError(t, err)
	assert.True(t, created)

	created, second, err := svc.RecordWebhookEvent(context.Background(), in)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)

	created, hashed, err := svc.RecordWebhookEvent(context.Background(), WebhookDelivery{Provider: "stripe", PayloadJSON: `{"a":1}`})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Contains(t, hashed.ProviderEventID, "hash:")
}
