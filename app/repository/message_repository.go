package repository

import (
	"github.com/hangarlinks/hangarlinks/app/models"
	"gorm.io/gorm"
)

type messageRepository struct {
	db *gorm.DB
}

// NewMessageRepository creates a new message repository instance
func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &messageRepository{db: db}
}

func (r *messageRepository) Create(message *models.Message) error {
	return r.db.Omit("Sender", "Receiver").Create(message).Error
}

// Thread returns all messages between two users, oldest first.
func (r *messageRepository) Thread(userID, partnerID uint) ([]models.Message, error) {
	var messages []models.Message
	err := r.db.Preload("Sender").
		Where("(sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)",
			userID, partnerID, partnerID, userID).
		Order("created_at ASC").
		Find(&messages).Error
	return messages, err
}

func (r *messageRepository) MarkThreadRead(receiverID, senderID uint) error {
	return r.db.Model(&models.Message{}).
		Where("receiver_id = ? AND sender_id = ? AND `read` = ?", receiverID, senderID, false).
		Update("read", true).Error
}

// Conversations groups a user's messages by partner, newest exchange first.
// Guest inquiries have no sender account and are listed under the receiver only.
func (r *messageRepository) Conversations(userID uint) ([]models.Conversation, error) {
	var messages []models.Message
	err := r.db.
		Where("sender_id = ? OR receiver_id = ?", userID, userID).
		Order("created_at DESC").
		Find(&messages).Error
	if err != nil {
		return nil, err
	}

	order := make([]uint, 0)
	latest := make(map[uint]models.Message)
	unread := make(map[uint]int64)
	for _, m := range messages {
		if m.SenderID == nil {
			continue
		}
		partnerID := *m.SenderID
		if partnerID == userID {
			partnerID = m.ReceiverID
		}
		if _, seen := latest[partnerID]; !seen {
			latest[partnerID] = m
			order = append(order, partnerID)
		}
		if m.ReceiverID == userID && !m.Read {
			unread[partnerID]++
		}
	}
	if len(order) == 0 {
		return nil, nil
	}

	var partners []models.User
	if err := r.db.Where("id IN ?", order).Find(&partners).Error; err != nil {
		return nil, err
	}
	byID := make(map[uint]models.User, len(partners))
	for _, p := range partners {
		byID[p.ID] = p
	}

	conversations := make([]models.Conversation, 0, len(order))
	for _, id := range order {
		partner, ok := byID[id]
		if !ok {
			continue
		}
		conversations = append(conversations, models.Conversation{
			Partner:     partner,
			LastMessage: latest[id],
			UnreadCount: unread[id],
		})
	}
	return conversations, nil
}

func (r *messageRepository) CountForUser(userID uint) (int64, error) {
	var count int64
	err := r.db.Model(&models.Message{}).
		Where("sender_id = ? OR receiver_id = ?", userID, userID).
		Count(&count).Error
	return count, err
}
