package billing

import (
	"time"

	"github.com/hangarlinks/hangarlinks/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository is the storage the billing service needs. Rows are keyed by
// (provider, provider id) so replays from Stripe land on the same record.
type Repository interface {
	UpsertBillingAccount(account *models.BillingAccount) error
	GetBillingAccountByProviderAccountID(provider, providerAccountID string) (*models.BillingAccount, error)
	UpsertSubscription(sub *models.BillingSubscription) error
	GetSubscription(provider, providerSubscriptionID string) (*models.BillingSubscription, error)
	ListSubscriptionsByUser(userID uint) ([]models.BillingSubscription, error)
	UpdateSubscriptionStatus(id uint, status string) error
	GetUser(userID uint) (*models.User, error)
	UpdateUserFields(userID uint, fields map[string]interface{}) error
	CreateWebhookEventIfNotExists(event *models.BillingWebhookEvent) (bool, *models.BillingWebhookEvent, error)
	MarkWebhookProcessed(id uint, processingError string) error
}

type gormRepository struct {
	db  *gorm.DB
	now func() time.Time
}

func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db, now: time.Now}
}

var (
	accountKey      = []string{"provider", "provider_account_id"}
	subscriptionKey = []string{"provider", "provider_subscription_id"}
	eventKey        = []string{"provider", "provider_event_id"}
)

func conflictOn(cols []string) []clause.Column {
	out := make([]clause.Column, len(cols))
	for i, c := range cols {
		out[i] = clause.Column{Name: c}
	}
	return out
}

// byProviderKey loads dest by its (provider, provider id) pair.
func (r *gormRepository) byProviderKey(dest interface{}, key []string, provider, providerID string) error {
	return r.db.Where(key[0]+" = ? AND "+key[1]+" = ?", provider, providerID).First(dest).Error
}

// upsert inserts row or overwrites updateCols on a key conflict, then reloads
// row so its ID is set in both cases.
func (r *gormRepository) upsert(row interface{}, key []string, updateCols []string, provider, providerID string) error {
	err := r.db.Clauses(clause.OnConflict{
		Columns:   conflictOn(key),
		DoUpdates: clause.AssignmentColumns(updateCols),
	}).Create(row).Error
	if err != nil {
		return err
	}
	return r.byProviderKey(row, key, provider, providerID)
}

func (r *gormRepository) UpsertBillingAccount(account *models.BillingAccount) error {
	return r.upsert(account, accountKey, []string{"user_id", "email", "updated_at"},
		account.Provider, account.ProviderAccountID)
}

func (r *gormRepository) GetBillingAccountByProviderAccountID(provider, providerAccountID string) (*models.BillingAccount, error) {
	var account models.BillingAccount
	if err := r.byProviderKey(&account, accountKey, provider, providerAccountID); err != nil {
		return nil, err
	}
	return &account, nil
}

func (r *gormRepository) UpsertSubscription(sub *models.BillingSubscription) error {
	return r.upsert(sub, subscriptionKey, []string{
		"user_id", "provider_customer_id", "plan_code", "tier", "billing_interval", "status",
		"current_period_end", "cancel_at_period_end", "raw_payload_json", "updated_at",
	}, sub.Provider, sub.ProviderSubscriptionID)
}

func (r *gormRepository) GetSubscription(provider, providerSubscriptionID string) (*models.BillingSubscription, error) {
	var sub models.BillingSubscription
	if err := r.byProviderKey(&sub, subscriptionKey, provider, providerSubscriptionID); err != nil {
		return nil, err
	}
	return &sub, nil
}

// ListSubscriptionsByUser returns the most recently touched first.
func (r *gormRepository) ListSubscriptionsByUser(userID uint) ([]models.BillingSubscription, error) {
	var subs []models.BillingSubscription
	err := r.db.Where("user_id = ?", userID).Order("updated_at DESC").Find(&subs).Error
	return subs, err
}

func (r *gormRepository) UpdateSubscriptionStatus(id uint, status string) error {
	return r.db.Model(&models.BillingSubscription{}).Where("id = ?", id).Update("status", status).Error
}

func (r *gormRepository) GetUser(userID uint) (*models.User, error) {
	var u models.User
	if err := r.db.First(&u, userID).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *gormRepository) UpdateUserFields(userID uint, fields map[string]interface{}) error {
	return r.db.Model(&models.User{}).Where("id = ?", userID).Updates(fields).Error
}

// CreateWebhookEventIfNotExists reports created=false when Stripe redelivers
// an event already stored. The stored row is returned either way.
func (r *gormRepository) CreateWebhookEventIfNotExists(event *models.BillingWebhookEvent) (bool, *models.BillingWebhookEvent, error) {
	tx := r.db.Clauses(clause.OnConflict{Columns: conflictOn(eventKey), DoNothing: true}).Create(event)
	if tx.Error != nil {
		return false, nil, tx.Error
	}
	var stored models.BillingWebhookEvent
	if err := r.byProviderKey(&stored, eventKey, event.Provider, event.ProviderEventID); err != nil {
		return false, nil, err
	}
	return tx.RowsAffected > 0, &stored, nil
}

func (r *gormRepository) MarkWebhookProcessed(id uint, processingError string) error {
	now := r.now()
	return r.db.Model(&models.BillingWebhookEvent{}).Where("id = ?", id).Updates(map[string]interface{}{
		"processed_at":     &now,
		"processing_error": processingError,
	}).Error
}
