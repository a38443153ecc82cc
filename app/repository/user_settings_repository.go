package repository

import (
	"time"

	"github.com/hangarlinks/hangarlinks/app/models"
	"gorm.io/gorm"
)

type userSettingsRepository struct {
	db *gorm.DB
}

// NewUserSettingsRepository creates a new user settings repository instance
func NewUserSettingsRepository(db *gorm.DB) UserSettingsRepository {
	return &userSettingsRepository{db: db}
}

// GetOrCreate loads the user's settings, inserting the defaults on first use.
func (r *userSettingsRepository) GetOrCreate(userID uint) (*models.UserSettings, error) {
	var settings models.UserSettings
	err := r.db.Where("user_id = ?", userID).
		Attrs(models.DefaultUserSettings(userID)).
		FirstOrCreate(&settings).Error
	if err != nil {
		return nil, err
	}
	return &settings, nil
}

func (r *userSettingsRepository) Save(settings *models.UserSettings) error {
	return r.db.Save(settings).Error
}

func (r *userSettingsRepository) TouchAPIKey(id uint, at time.Time) error {
	return r.db.Model(&models.UserSettings{}).Where("id = ?", id).
		Update("api_key_last_used_at", at).Error
}
