package repository

import (
	"github.com/hangarlinks/hangarlinks/app/models"
	"gorm.io/gorm"
)

type adRepository struct {
	db *gorm.DB
}

// NewAdRepository creates a new ad repository instance
func NewAdRepository(db *gorm.DB) AdRepository {
	return &adRepository{db: db}
}

func (r *adRepository) Create(ad *models.Ad) error {
	return r.db.Create(ad).Error
}

func (r *adRepository) GetByID(id uint) (*models.Ad, error) {
	var ad models.Ad
	if err := r.db.First(&ad, id).Error; err != nil {
		return nil, err
	}
	return &ad, nil
}

func (r *adRepository) List() ([]models.Ad, error) {
	var ads []models.Ad
	err := r.db.Order("created_at DESC").Find(&ads).Error
	return ads, err
}

// RandomActive picks active ads for a placement in random order.
func (r *adRepository) RandomActive(placement string, limit int) ([]models.Ad, error) {
	var ads []models.Ad
	err := r.db.Where("active = ? AND placement = ?", true, placement).
		Order("RAND()").Limit(limit).Find(&ads).Error
	return ads, err
}

// Toggle flips the active flag.
func (r *adRepository) Toggle(id uint) error {
	res := r.db.Model(&models.Ad{}).Where("id = ?", id).
		UpdateColumn("active", gorm.Expr("NOT active"))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *adRepository) Delete(id uint) error {
	res := r.db.Delete(&models.Ad{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *adRepository) Stats() (*models.AdStats, error) {
	stats := &models.AdStats{}
	if err := r.db.Model(&models.Ad{}).Where("active = ?", true).Count(&stats.ActiveCount).Error; err != nil {
		return nil, err
	}
	err := r.db.Model(&models.Ad{}).
		Select("COALESCE(SUM(impressions), 0), COALESCE(SUM(clicks), 0)").
		Row().Scan(&stats.TotalImpressions, &stats.TotalClicks)
	if err != nil {
		return nil, err
	}
	return stats, nil
}
