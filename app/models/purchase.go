package models

import "time"

const (
	PURCHASE_SPONSORED     = "sponsored"
	PURCHASE_INSIGHTS      = "insights"
	PURCHASE_MARKET_REPORT = "market_report"
	PURCHASE_WHITE_LABEL   = "white_label"

	// Checkout metadata kind for bookings. Bookings keep their own table.
	PURCHASE_BOOKING = "booking"

	PURCHASE_PENDING = "pending"
	PURCHASE_PAID    = "paid"
)

// Purchase records a one-off checkout so that the success redirect and the
// webhook can both fulfil it exactly once.
type Purchase struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	UserID          *uint      `gorm:"index" json:"user_id,omitempty"`
	Kind            string     `gorm:"type:varchar(30);not null;index" json:"kind"`
	Reference       string     `gorm:"type:varchar(100);not null" json:"reference"`
	TargetID        uint       `gorm:"default:0" json:"target_id"`
	AmountCents     int64      `gorm:"not null" json:"amount_cents"`
	CheckoutSession string     `gorm:"type:varchar(191);uniqueIndex;not null" json:"-"`
	Status          string     `gorm:"type:varchar(20);default:'pending';index" json:"status"`
	FulfilledAt     *time.Time `gorm:"type:timestamp;default:null" json:"fulfilled_at,omitempty"`
	CreatedAt       time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (p *Purchase) IsFulfilled() bool {
	return p.Status == PURCHASE_PAID && p.FulfilledAt != nil
}
