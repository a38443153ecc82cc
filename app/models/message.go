package models

import "time"

type Message struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	SenderID   *uint     `gorm:"index" json:"sender_id,omitempty"`
	Sender     *User     `gorm:"foreignKey:SenderID" json:"sender,omitempty"`
	ReceiverID uint      `gorm:"not null;index" json:"receiver_id"`
	Receiver   User      `gorm:"foreignKey:ReceiverID" json:"receiver,omitempty"`
	ListingID  *uint     `gorm:"index" json:"listing_id,omitempty"`
	Content    string    `gorm:"type:text;not null" json:"content"`
	Read       bool      `gorm:"default:false" json:"read"`
	IsGuest    bool      `gorm:"default:false" json:"is_guest"`
	GuestEmail string    `gorm:"type:varchar(120);default:''" json:"guest_email,omitempty"`
	CreatedAt  time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}

// Conversation summarises the latest exchange with one partner.
type Conversation struct {
	Partner     User
	LastMessage Message
	UnreadCount int64
}
