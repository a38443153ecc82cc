package models

import (
	"math"
	"time"
)

const (
	BOOKING_PENDING   = "Pending"
	BOOKING_CONFIRMED = "Confirmed"
	BOOKING_CANCELLED = "Cancelled"
	BOOKING_COMPLETED = "Completed"
)

type Booking struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	ListingID       uint      `gorm:"not null;index" json:"listing_id"`
	Listing         Listing   `gorm:"foreignKey:ListingID" json:"listing,omitempty"`
	RenterID        uint      `gorm:"not null;index" json:"renter_id"`
	Renter          User      `gorm:"foreignKey:RenterID" json:"renter,omitempty"`
	StartDate       time.Time `gorm:"type:date;not null" json:"start_date"`
	EndDate         time.Time `gorm:"type:date;not null" json:"end_date"`
	TotalPrice      float64   `gorm:"not null" json:"total_price"`
	PlatformFee     float64   `gorm:"default:0" json:"platform_fee"`
	Status          string    `gorm:"type:varchar(20);default:'Pending';index" json:"status"`
	StripePaymentID string    `gorm:"type:varchar(191);index" json:"stripe_payment_id,omitempty"`
	InsuranceOptIn  bool      `gorm:"default:false" json:"insurance_opt_in"`
	InsuranceFee    float64   `gorm:"default:0" json:"insurance_fee"`
	OwnerRating     *int      `json:"owner_rating,omitempty"`
	RenterRating    *int      `json:"renter_rating,omitempty"`
	OwnerReview     string    `gorm:"type:text" json:"owner_review,omitempty"`
	RenterReview    string    `gorm:"type:text" json:"renter_review,omitempty"`
	CreatedAt       time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// IsParty reports whether the user is the renter or the owner of the booked listing.
// Listing must be loaded.
func (b *Booking) IsParty(userID uint) bool {
	return userID != 0 && (b.RenterID == userID || b.Listing.OwnerID == userID)
}

// OwnerEarnings is the rent part of TotalPrice, without the platform fee and
// the insurance premium.
func (b *Booking) OwnerEarnings() float64 {
	return math.Round((b.TotalPrice-b.PlatformFee-b.InsuranceFee)*100) / 100
}
