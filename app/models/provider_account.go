package models

import "time"

// ProviderAccount links an OAuth identity (Google, Facebook, Discord) to a user.
// One identity maps to exactly one user; a user may link several.
type ProviderAccount struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	UserID         uint       `gorm:"index" json:"user_id"`
	Provider       string     `gorm:"index:provider_uid,unique;type:varchar(50)" json:"provider"`
	ProviderUserID string     `gorm:"index:provider_uid,unique;type:varchar(191)" json:"provider_user_id"`
	Email          string     `gorm:"type:varchar(120)" json:"email"`
	AccessToken    string     `gorm:"type:text" json:"-"`
	RefreshToken   string     `gorm:"type:text" json:"-"`
	ExpiresAt      *time.Time `gorm:"type:timestamp;default:null" json:"expires_at,omitempty"`
	CreatedAt      time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// SetTokens stores the tokens from the latest provider login.
// A zero expiry means the provider did not send one.
func (pa *ProviderAccount) SetTokens(access, refresh string, expires time.Time) {
	pa.AccessToken = access
	pa.RefreshToken = refresh
	pa.ExpiresAt = nil
	if !expires.IsZero() {
		pa.ExpiresAt = &expires
	}
}
