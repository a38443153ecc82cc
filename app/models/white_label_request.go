package models

import "time"

const (
	WHITE_LABEL_PENDING         = "Pending"
	WHITE_LABEL_PENDING_PAYMENT = "Pending Payment"
	WHITE_LABEL_PAID            = "Paid"
	WHITE_LABEL_APPROVED        = "Approved"
	WHITE_LABEL_REJECTED        = "Rejected"
)

// WhiteLabelRequest is an FBO asking for a branded copy of the marketplace.
type WhiteLabelRequest struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	FBOName         string    `gorm:"column:fbo_name;type:varchar(200);not null" json:"fbo_name" validate:"required,max=200"`
	ContactName     string    `gorm:"type:varchar(120);not null" json:"contact_name" validate:"required,max=120"`
	ContactEmail    string    `gorm:"type:varchar(120);not null" json:"contact_email" validate:"required,email,max=120"`
	Status          string    `gorm:"type:varchar(30);default:'Pending';index" json:"status"`
	CheckoutSession string    `gorm:"type:varchar(191);index" json:"-"`
	CreatedAt       time.Time `gorm:"autoCreateTime" json:"created_at"`
}
