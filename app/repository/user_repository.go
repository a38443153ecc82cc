package repository

import (
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/hangarlinks/hangarlinks/app/models"
)

type userRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) users() *gorm.DB {
	return r.db.Model(&models.User{})
}

// first loads the single user matching cond.
func (r *userRepository) first(cond string, arg interface{}) (*models.User, error) {
	var u models.User
	if err := r.db.Where(cond, arg).First(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *userRepository) exists(cond string, arg interface{}) (bool, error) {
	var n int64
	err := r.users().Where(cond, arg).Count(&n).Error
	return n > 0, err
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (r *userRepository) Create(user *models.User) error {
	return r.db.Create(user).Error
}

func (r *userRepository) GetByID(id uint) (*models.User, error) {
	return r.first("id = ?", id)
}

func (r *userRepository) GetByEmail(email string) (*models.User, error) {
	return r.first("email = ?", normalizeEmail(email))
}

// GetByReferralCode finds the owner of a referral code. Codes are stored uppercase.
func (r *userRepository) GetByReferralCode(code string) (*models.User, error) {
	return r.first("referral_code = ?", strings.ToUpper(strings.TrimSpace(code)))
}

func (r *userRepository) EmailExists(email string) (bool, error) {
	return r.exists("email = ?", normalizeEmail(email))
}

func (r *userRepository) UsernameExists(username string) (bool, error) {
	return r.exists("username = ?", strings.TrimSpace(username))
}

// GetByAPIKeyHash resolves an unrevoked key hash to its owner.
func (r *userRepository) GetByAPIKeyHash(hash string) (*models.User, *models.UserSettings, error) {
	hash = strings.TrimSpace(hash)
	if hash == "" {
		return nil, nil, gorm.ErrRecordNotFound
	}
	var settings models.UserSettings
	err := r.db.Where("api_key_hash = ? AND api_key_revoked_at IS NULL", hash).First(&settings).Error
	if err != nil {
		return nil, nil, err
	}
	user, err := r.GetByID(settings.UserID)
	if err != nil {
		return nil, nil, err
	}
	return user, &settings, nil
}

func (r *userRepository) UpdateFields(id uint, fields map[string]interface{}) error {
	return r.users().Where("id = ?", id).Updates(fields).Error
}

// AddPoints credits reward points in one UPDATE.
func (r *userRepository) AddPoints(id uint, points int) error {
	return r.users().Where("id = ?", id).
		UpdateColumn("points", gorm.Expr("points + ?", points)).Error
}

func (r *userRepository) Count() (int64, error) {
	var n int64
	err := r.users().Count(&n).Error
	return n, err
}

func (r *userRepository) CountPremium() (int64, error) {
	var n int64
	err := r.users().
		Where("is_premium = ? OR subscription_tier = ?", true, models.TIER_PREMIUM).
		Count(&n).Error
	return n, err
}

// GetDailyStats counts sign-ups per day.
func (r *userRepository) GetDailyStats(from, to time.Time) ([]models.DailyStats, error) {
	return dailyStats(r.users(), from, to)
}

// AlertSubscribers returns every user with listing alerts on, except exclude.
func (r *userRepository) AlertSubscribers(exclude uint) ([]AlertSubscriber, error) {
	var settings []models.UserSettings
	err := r.db.Where("alert_enabled = ? AND user_id <> ?", true, exclude).Find(&settings).Error
	if err != nil || len(settings) == 0 {
		return nil, err
	}

	ids := make([]uint, len(settings))
	for i, s := range settings {
		ids[i] = s.UserID
	}
	var users []models.User
	if err := r.db.Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, err
	}
	byID := make(map[uint]models.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}

	out := make([]AlertSubscriber, 0, len(settings))
	for _, s := range settings {
		if u, ok := byID[s.UserID]; ok {
			out = append(out, AlertSubscriber{User: u, Settings: s})
		}
	}
	return out, nil
}

// ExpireSubscriptions moves users whose paid period ended back to free.
func (r *userRepository) ExpireSubscriptions(now time.Time) (int64, error) {
	tx := r.users().
		Where("subscription_tier = ? AND subscription_expires < ?", models.TIER_PREMIUM, now).
		Updates(map[string]interface{}{
			"subscription_tier": models.TIER_FREE,
			"is_premium":        false,
		})
	return tx.RowsAffected, tx.Error
}

// ExpireAnalyticsAccess revokes insights access whose term ended.
func (r *userRepository) ExpireAnalyticsAccess(now time.Time) (int64, error) {
	tx := r.users().
		Where("has_analytics_access = ? AND analytics_expires_at < ?", true, now).
		Update("has_analytics_access", false)
	return tx.RowsAffected, tx.Error
}

// dayExpr is formatted in SQL so the driver returns a string, not a time.
const dayExpr = "DATE_FORMAT(created_at, '%Y-%m-%d')"

// dailyStats groups q by the calendar day of created_at.
func dailyStats(q *gorm.DB, from, to time.Time) ([]models.DailyStats, error) {
	var out []models.DailyStats
	err := q.Select(dayExpr+" AS date, COUNT(*) AS count").
		Where("created_at BETWEEN ? AND ?", from, to).
		Group(dayExpr).
		Order("date").
		Scan(&out).Error
	if err != nil {
		return nil, fmt.Errorf("daily stats: %w", err)
	}
	return out, nil
}
