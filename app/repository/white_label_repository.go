package repository

import (
	"github.com/hangarlinks/hangarlinks/app/models"
	"gorm.io/gorm"
)

type whiteLabelRepository struct {
	db *gorm.DB
}

// NewWhiteLabelRepository creates a new white-label request repository instance
func NewWhiteLabelRepository(db *gorm.DB) WhiteLabelRepository {
	return &whiteLabelRepository{db: db}
}

func (r *whiteLabelRepository) Create(req *models.WhiteLabelRequest) error {
	return r.db.Create(req).Error
}

func (r *whiteLabelRepository) GetByID(id uint) (*models.WhiteLabelRequest, error) {
	var req models.WhiteLabelRequest
	if err := r.db.First(&req, id).Error; err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *whiteLabelRepository) UpdateStatus(id uint, status string) error {
	res := r.db.Model(&models.WhiteLabelRequest{}).Where("id = ?", id).Update("status", status)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *whiteLabelRepository) SetCheckoutSession(id uint, sessionID string) error {
	return r.db.Model(&models.WhiteLabelRequest{}).Where("id = ?", id).Updates(map[string]interface{}{
		"checkout_session": sessionID,
		"status":           models.WHITE_LABEL_PENDING_PAYMENT,
	}).Error
}

func (r *whiteLabelRepository) List(offset, limit int) ([]models.WhiteLabelRequest, error) {
	var reqs []models.WhiteLabelRequest
	err := r.db.Order("created_at DESC").Offset(offset).Limit(limit).Find(&reqs).Error
	return reqs, err
}
