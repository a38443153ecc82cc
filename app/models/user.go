package models

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/hangarlinks/hangarlinks/internal/pkg/shortener"
)

const (
	ROLE_OWNER  = "owner"
	ROLE_RENTER = "renter"

	TIER_FREE    = "free"
	TIER_PREMIUM = "premium"
)

type User struct {
	ID                  uint           `gorm:"primaryKey" json:"id"`
	Username            string         `gorm:"uniqueIndex;type:varchar(80);not null" json:"username" validate:"required,min=3,max=80"`
	Email               string         `gorm:"uniqueIndex;type:varchar(120);not null" json:"email" validate:"required,email,max=120"`
	Password            string         `gorm:"type:text" json:"-" validate:"required,min=6"`
	Role                string         `gorm:"type:varchar(20);default:'renter'" json:"role" validate:"oneof=owner renter"`
	IsAdmin             bool           `gorm:"default:false" json:"is_admin"`
	ReputationScore     float64        `gorm:"default:5.0" json:"reputation_score"`
	RentalsCount        int            `gorm:"default:0" json:"rentals_count"`
	IsPremium           bool           `gorm:"default:false" json:"is_premium"`
	SubscriptionTier    string         `gorm:"type:varchar(20);default:'free'" json:"subscription_tier"`
	SubscriptionExpires *time.Time     `gorm:"type:timestamp;default:null" json:"subscription_expires,omitempty"`
	HasAnalyticsAccess  bool           `gorm:"default:false" json:"has_analytics_access"`
	AnalyticsExpiresAt  *time.Time     `gorm:"type:timestamp;default:null" json:"analytics_expires_at,omitempty"`
	SearchCountToday    int            `gorm:"default:0" json:"-"`
	SearchResetDate     *time.Time     `gorm:"type:date;default:null" json:"-"`
	Points              int            `gorm:"default:0" json:"points"`
	ReferralCode        *string        `gorm:"uniqueIndex;type:varchar(20)" json:"referral_code,omitempty"`
	ReferredByID        *uint          `gorm:"index" json:"referred_by_id,omitempty"`
	IsCertified         bool           `gorm:"default:false" json:"is_certified"`
	LastLoginAt         *time.Time     `gorm:"type:timestamp;default:null" json:"last_login_at"`
	CreatedAt           time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt           time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt           gorm.DeletedAt `gorm:"index" json:"-"`
}

func (u *User) Validate() error {
	v := validator.New()

	return v.Struct(u)
}

func CreateUser(username string, email string, password string, role string) (*User, error) {
	pw, err := HashPassword(password)
	if err != nil {
		return nil, err
	}

	if role != ROLE_OWNER {
		role = ROLE_RENTER
	}

	u := &User{
		Username:         strings.TrimSpace(username),
		Email:            strings.ToLower(strings.TrimSpace(email)),
		Password:         pw,
		Role:             role,
		ReputationScore:  5.0,
		SubscriptionTier: TIER_FREE,
	}

	err = u.Validate()
	if err != nil {
		return nil, err
	}

	return u, nil
}

func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)

	return string(bytes), err
}

// CheckPasswordHash compares the given password with the stored hash.
func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))

	return err == nil
}

// CheckPassword verifies if the provided password matches the user's stored password
func (u *User) CheckPassword(password string) bool {
	return CheckPasswordHash(password, u.Password)
}

// SetPassword hashes and sets a new password for the user
func (u *User) SetPassword(password string) error {
	hashedPassword, err := HashPassword(password)
	if err != nil {
		return err
	}
	u.Password = hashedPassword
	return nil
}

func (u *User) IsOwner() bool {
	return u.Role == ROLE_OWNER
}

// HasPremium reports whether the user is on a paid tier, by flag or by tier name.
func (u *User) HasPremium() bool {
	return u.IsPremium || u.SubscriptionTier == TIER_PREMIUM
}

// PlanTier is the tier name carried in the session and request context.
func (u *User) PlanTier() string {
	if u.HasPremium() {
		return TIER_PREMIUM
	}
	return TIER_FREE
}

// GenerateReferralCode returns an 8 character code from A-Z0-9.
func GenerateReferralCode() (string, error) {
	return shortener.RandomCode(shortener.Referral, 8)
}

// EnsureReferralCode assigns a referral code when the user has none yet.
// Callers persist the user afterwards.
func (u *User) EnsureReferralCode() (bool, error) {
	if u.ReferralCode != nil && *u.ReferralCode != "" {
		return false, nil
	}
	code, err := GenerateReferralCode()
	if err != nil {
		return false, err
	}
	u.ReferralCode = &code
	return true, nil
}
