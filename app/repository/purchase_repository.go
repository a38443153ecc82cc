package repository

import (
	"time"

	"github.com/hangarlinks/hangarlinks/app/models"
	"gorm.io/gorm"
)

type purchaseRepository struct {
	db *gorm.DB
}

// NewPurchaseRepository creates a new purchase repository instance
func NewPurchaseRepository(db *gorm.DB) PurchaseRepository {
	return &purchaseRepository{db: db}
}

func (r *purchaseRepository) Create(p *models.Purchase) error {
	return r.db.Create(p).Error
}

func (r *purchaseRepository) GetBySession(sessionID string) (*models.Purchase, error) {
	var p models.Purchase
	if err := r.db.Where("checkout_session = ?", sessionID).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

// MarkPaid flips a pending purchase to paid. It returns false when another
// caller already fulfilled it.
func (r *purchaseRepository) MarkPaid(id uint, at time.Time) (bool, error) {
	res := r.db.Model(&models.Purchase{}).
		Where("id = ? AND status = ?", id, models.PURCHASE_PENDING).
		Updates(map[string]interface{}{
			"status":       models.PURCHASE_PAID,
			"fulfilled_at": at,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
