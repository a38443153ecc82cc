package models

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base32"
	"encoding/hex"
	"strings"
	"time"

	"gorm.io/gorm"
)

// UserSettings holds the listing alert preferences of one user and the
// metadata of their API key. Only the SHA-256 of the key is stored.
type UserSettings struct {
	ID     uint `gorm:"primaryKey" json:"id"`
	UserID uint `gorm:"uniqueIndex" json:"user_id"`

	AlertEnabled     bool     `gorm:"default:false;index" json:"alert_enabled"`
	AlertAirport     string   `gorm:"type:varchar(4);default:''" json:"alert_airport"`
	AlertMaxPrice    *float64 `json:"alert_max_price,omitempty"`
	AlertMinSize     *int     `json:"alert_min_size,omitempty"`
	AlertCoveredOnly bool     `gorm:"default:false" json:"alert_covered_only"`
	SeasonalAlerts   bool     `gorm:"default:true" json:"seasonal_alerts"`

	APIKeyHash       string     `gorm:"type:char(64);default:''" json:"-"`
	APIKeyPrefix     string     `gorm:"type:varchar(20);default:''" json:"api_key_prefix"`
	APIKeyCreatedAt  *time.Time `json:"api_key_created_at"`
	APIKeyLastUsedAt *time.Time `json:"api_key_last_used_at"`
	APIKeyRevokedAt  *time.Time `json:"api_key_revoked_at"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// DefaultUserSettings are the values a user starts with.
func DefaultUserSettings(userID uint) UserSettings {
	return UserSettings{UserID: userID, SeasonalAlerts: true}
}

// HomeAirport returns the alert airport, uppercased.
func (us *UserSettings) HomeAirport() string {
	if us == nil {
		return ""
	}
	return strings.ToUpper(strings.TrimSpace(us.AlertAirport))
}

func (us *UserSettings) HasActiveAPIKey() bool {
	return us != nil && us.APIKeyHash != "" && us.APIKeyRevokedAt == nil
}

// IssueAPIKey replaces any existing key and returns the new secret. The
// secret is not recoverable once the caller drops it.
func (us *UserSettings) IssueAPIKey(now time.Time) (string, error) {
	key, err := newAPIKey()
	if err != nil {
		return "", err
	}
	us.APIKeyHash = HashAPIKey(key)
	us.APIKeyPrefix = key[:apiKeyDisplayLen]
	us.APIKeyCreatedAt = &now
	us.APIKeyLastUsedAt = nil
	us.APIKeyRevokedAt = nil
	return key, nil
}

// RevokeAPIKey keeps the row but forgets the key.
func (us *UserSettings) RevokeAPIKey(now time.Time) {
	us.APIKeyHash, us.APIKeyPrefix = "", ""
	us.APIKeyLastUsedAt = nil
	us.APIKeyRevokedAt = &now
}

func HashAPIKey(raw string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(raw)))
	return hex.EncodeToString(sum[:])
}

const (
	apiKeyScheme     = "hgl_"
	apiKeyEntropy    = 32
	apiKeyDisplayLen = 16
)

var apiKeyEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

func newAPIKey() (string, error) {
	secret := make([]byte, apiKeyEntropy)
	if _, err := rand.Read(secret); err != nil {
		return "", err
	}
	return apiKeyScheme + strings.ToLower(apiKeyEncoding.EncodeToString(secret)), nil
}
