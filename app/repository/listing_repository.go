package repository

import (
	"database/sql"
	"strings"
	"time"

	"github.com/hangarlinks/hangarlinks/app/models"
	"gorm.io/gorm"
)

// Great-circle distance in statute miles between (lat, lon) params and the row's coordinates.
const distanceMilesSQL = "3959 * ACOS(LEAST(1, COS(RADIANS(?)) * COS(RADIANS(lat)) * COS(RADIANS(lon) - RADIANS(?)) + SIN(RADIANS(?)) * SIN(RADIANS(lat))))"

const publicListingOrder = "is_featured DESC, is_premium_listing DESC, created_at DESC"

// listingRepository implements the ListingRepository interface
type listingRepository struct {
	db *gorm.DB
}

// NewListingRepository creates a new listing repository instance
func NewListingRepository(db *gorm.DB) ListingRepository {
	return &listingRepository{db: db}
}

func (r *listingRepository) Create(listing *models.Listing) error {
	return r.db.Create(listing).Error
}

// GetByID loads a listing with its owner and photos
func (r *listingRepository) GetByID(id uint) (*models.Listing, error) {
	var listing models.Listing
	err := r.db.Preload("Owner").Preload("Photos").First(&listing, id).Error
	if err != nil {
		return nil, err
	}
	return &listing, nil
}

func (r *listingRepository) Update(listing *models.Listing) error {
	return r.db.Omit("Owner", "Photos").Save(listing).Error
}

func (r *listingRepository) UpdateFields(id uint, fields map[string]interface{}) error {
	return r.db.Model(&models.Listing{}).Where("id = ?", id).Updates(fields).Error
}

func applyListingFilter(q *gorm.DB, f ListingFilter) *gorm.DB {
	q = q.Where("status = ?", models.LISTING_ACTIVE)

	if airport := strings.ToUpper(strings.TrimSpace(f.Airport)); airport != "" {
		if f.Lat != nil && f.Lon != nil && f.RadiusMi > 0 {
			q = q.Where("(airport_icao = ? OR (lat IS NOT NULL AND lon IS NOT NULL AND "+distanceMilesSQL+" <= ?))",
				airport, *f.Lat, *f.Lon, *f.Lat, f.RadiusMi)
		} else {
			q = q.Where("airport_icao = ?", airport)
		}
	}

	switch f.Covered {
	case "yes":
		q = q.Where("covered = ?", true)
	case "no":
		q = q.Where("covered = ?", false)
	}

	if f.MinPrice != nil {
		q = q.Where("price_month >= ?", *f.MinPrice)
	}
	if f.MaxPrice != nil {
		q = q.Where("price_month <= ?", *f.MaxPrice)
	}
	if f.OwnerOnly != 0 {
		q = q.Where("owner_id = ?", f.OwnerOnly)
	}
	return q
}

// Search returns one page of Active listings, featured first.
func (r *listingRepository) Search(filter ListingFilter, page, perPage int) ([]models.Listing, int64, error) {
	if page < 1 {
		page = 1
	}

	var total int64
	if err := applyListingFilter(r.db.Model(&models.Listing{}), filter).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var listings []models.Listing
	err := applyListingFilter(r.db.Model(&models.Listing{}), filter).
		Preload("Owner").Preload("Photos").
		Order(publicListingOrder).
		Offset((page - 1) * perPage).Limit(perPage).
		Find(&listings).Error
	return listings, total, err
}

// Recent returns the newest Active listings
func (r *listingRepository) Recent(limit int) ([]models.Listing, error) {
	var listings []models.Listing
	err := r.db.Preload("Photos").Where("status = ?", models.LISTING_ACTIVE).
		Order("created_at DESC").Limit(limit).Find(&listings).Error
	return listings, err
}

func (r *listingRepository) ListByOwner(ownerID uint, offset, limit int) ([]models.Listing, error) {
	var listings []models.Listing
	err := r.db.Preload("Photos").Where("owner_id = ?", ownerID).
		Order("created_at DESC").Offset(offset).Limit(limit).Find(&listings).Error
	return listings, err
}

func (r *listingRepository) ActiveByOwner(ownerID uint) ([]models.Listing, error) {
	var listings []models.Listing
	err := r.db.Where("owner_id = ? AND status = ?", ownerID, models.LISTING_ACTIVE).
		Order("created_at DESC").Find(&listings).Error
	return listings, err
}

func (r *listingRepository) AllByOwner(ownerID uint) ([]models.Listing, error) {
	var listings []models.Listing
	err := r.db.Where("owner_id = ?", ownerID).Order("created_at DESC").Find(&listings).Error
	return listings, err
}

func (r *listingRepository) CountByOwner(ownerID uint) (int64, error) {
	var count int64
	err := r.db.Model(&models.Listing{}).Where("owner_id = ?", ownerID).Count(&count).Error
	return count, err
}

func (r *listingRepository) CountActiveByOwner(ownerID uint) (int64, error) {
	var count int64
	err := r.db.Model(&models.Listing{}).
		Where("owner_id = ? AND status = ?", ownerID, models.LISTING_ACTIVE).
		Count(&count).Error
	return count, err
}

// ActivePricesAt returns monthly prices of the other Active listings at an airport.
func (r *listingRepository) ActivePricesAt(icao string, excludeID uint) ([]float64, error) {
	var prices []float64
	q := r.db.Model(&models.Listing{}).
		Where("airport_icao = ? AND status = ?", strings.ToUpper(icao), models.LISTING_ACTIVE)
	if excludeID != 0 {
		q = q.Where("id <> ?", excludeID)
	}
	err := q.Pluck("price_month", &prices).Error
	return prices, err
}

// AveragePriceAt returns the average Active price; ok is false when there are none.
func (r *listingRepository) AveragePriceAt(icao string) (float64, bool, error) {
	var avg sql.NullFloat64
	err := r.db.Model(&models.Listing{}).
		Select("AVG(price_month)").
		Where("airport_icao = ? AND status = ?", strings.ToUpper(icao), models.LISTING_ACTIVE).
		Row().Scan(&avg)
	if err != nil {
		return 0, false, err
	}
	return avg.Float64, avg.Valid, nil
}

// IncrementLikes bumps the like counter and returns the new value.
func (r *listingRepository) IncrementLikes(id uint) (int, error) {
	err := r.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Listing{}).Where("id = ?", id).
			UpdateColumn("likes", gorm.Expr("likes + 1"))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	var likes int
	err = r.db.Model(&models.Listing{}).Where("id = ?", id).Select("likes").Row().Scan(&likes)
	return likes, err
}

func (r *listingRepository) ActiveAtAirport(icao string, limit int) ([]models.Listing, error) {
	var listings []models.Listing
	err := r.db.Preload("Owner").Preload("Photos").
		Where("airport_icao = ? AND status = ?", strings.ToUpper(icao), models.LISTING_ACTIVE).
		Limit(limit).Find(&listings).Error
	return listings, err
}

// MatchCandidates returns Active listings, featured and newest first.
func (r *listingRepository) MatchCandidates(limit int) ([]models.Listing, error) {
	var listings []models.Listing
	err := r.db.Preload("Owner").Preload("Photos").
		Where("status = ?", models.LISTING_ACTIVE).
		Order("is_featured DESC, created_at DESC").
		Limit(limit).Find(&listings).Error
	return listings, err
}

// TopByHealth returns the healthiest Active listings matching the concierge filter.
func (r *listingRepository) TopByHealth(filter ConciergeFilter, limit int) ([]models.Listing, error) {
	q := r.db.Where("status = ?", models.LISTING_ACTIVE)
	if len(filter.Airports) > 0 {
		q = q.Where("airport_icao IN ?", filter.Airports)
	}
	if filter.MaxPrice != nil {
		q = q.Where("price_month <= ?", *filter.MaxPrice)
	}
	if filter.CoveredOnly {
		q = q.Where("covered = ?", true)
	}

	var listings []models.Listing
	err := q.Order("health_score DESC").Limit(limit).Find(&listings).Error
	return listings, err
}

// ExpireFeatured clears featured boosts that ran out before now.
func (r *listingRepository) ExpireFeatured(now time.Time) (int64, error) {
	tx := r.db.Model(&models.Listing{}).
		Where("is_featured = ? AND featured_expires_at IS NOT NULL AND featured_expires_at < ?", true, now).
		Updates(map[string]interface{}{
			"is_featured":   false,
			"featured_tier": "",
		})
	return tx.RowsAffected, tx.Error
}

func (r *listingRepository) MissingCoordinates(limit int) ([]models.Listing, error) {
	var listings []models.Listing
	err := r.db.Where("lat IS NULL OR lon IS NULL").Limit(limit).Find(&listings).Error
	return listings, err
}

func applyAdminFilter(q *gorm.DB, f AdminListingFilter) *gorm.DB {
	if s := strings.TrimSpace(f.Query); s != "" {
		q = q.Where("airport_icao LIKE ?", "%"+strings.ToUpper(s)+"%")
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	switch f.Featured {
	case "yes":
		q = q.Where("is_featured = ?", true)
	case "no":
		q = q.Where("is_featured = ?", false)
	}
	return q
}

// AdminSearch lists all listings for the admin table, featured first, then newest.
func (r *listingRepository) AdminSearch(filter AdminListingFilter, page, perPage int) ([]models.Listing, int64, error) {
	if page < 1 {
		page = 1
	}

	var total int64
	if err := applyAdminFilter(r.db.Model(&models.Listing{}), filter).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var listings []models.Listing
	err := applyAdminFilter(r.db.Model(&models.Listing{}), filter).
		Preload("Owner").
		Order("is_featured DESC, created_at DESC").
		Offset((page - 1) * perPage).Limit(perPage).
		Find(&listings).Error
	return listings, total, err
}

func (r *listingRepository) Count() (int64, error) {
	var count int64
	err := r.db.Model(&models.Listing{}).Count(&count).Error
	return count, err
}

func (r *listingRepository) CountFeatured() (int64, error) {
	var count int64
	err := r.db.Model(&models.Listing{}).Where("is_featured = ?", true).Count(&count).Error
	return count, err
}

func (r *listingRepository) CountActive() (int64, error) {
	var count int64
	err := r.db.Model(&models.Listing{}).Where("status = ?", models.LISTING_ACTIVE).Count(&count).Error
	return count, err
}

// GetDailyStats counts new listings per day.
func (r *listingRepository) GetDailyStats(from, to time.Time) ([]models.DailyStats, error) {
	return dailyStats(r.db.Model(&models.Listing{}), from, to)
}

func (r *listingRepository) AddPhoto(photo *models.ListingPhoto) error {
	return r.db.Create(photo).Error
}

func (r *listingRepository) GetPhoto(id uint) (*models.ListingPhoto, error) {
	var photo models.ListingPhoto
	if err := r.db.First(&photo, id).Error; err != nil {
		return nil, err
	}
	return &photo, nil
}

func (r *listingRepository) UpdatePhoto(id uint, fields map[string]interface{}) error {
	return r.db.Model(&models.ListingPhoto{}).Where("id = ?", id).Updates(fields).Error
}
