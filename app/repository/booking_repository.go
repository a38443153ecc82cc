package repository

import (
	"database/sql"

	"github.com/hangarlinks/hangarlinks/app/models"
	"gorm.io/gorm"
)

type bookingRepository struct {
	db *gorm.DB
}

// NewBookingRepository creates a new booking repository instance
func NewBookingRepository(db *gorm.DB) BookingRepository {
	return &bookingRepository{db: db}
}

func (r *bookingRepository) Create(booking *models.Booking) error {
	return r.db.Omit("Listing", "Renter").Create(booking).Error
}

// GetByID loads a booking together with its listing and renter
func (r *bookingRepository) GetByID(id uint) (*models.Booking, error) {
	var booking models.Booking
	err := r.db.Preload("Listing").Preload("Listing.Owner").Preload("Renter").First(&booking, id).Error
	if err != nil {
		return nil, err
	}
	return &booking, nil
}

func (r *bookingRepository) GetByPaymentID(paymentID string) (*models.Booking, error) {
	var booking models.Booking
	err := r.db.Preload("Listing").Where("stripe_payment_id = ?", paymentID).First(&booking).Error
	if err != nil {
		return nil, err
	}
	return &booking, nil
}

func (r *bookingRepository) Update(booking *models.Booking) error {
	return r.db.Omit("Listing", "Renter").Save(booking).Error
}

// ConfirmedForOwner returns confirmed bookings on any listing the owner has.
func (r *bookingRepository) ConfirmedForOwner(ownerID uint) ([]models.Booking, error) {
	var bookings []models.Booking
	err := r.db.
		Joins("JOIN listings ON listings.id = bookings.listing_id").
		Where("listings.owner_id = ? AND bookings.status = ?", ownerID, models.BOOKING_CONFIRMED).
		Order("bookings.created_at DESC").
		Find(&bookings).Error
	return bookings, err
}

// SumForRenter totals a renter's bookings in the given statuses.
func (r *bookingRepository) SumForRenter(renterID uint, statuses ...string) (float64, error) {
	var sum sql.NullFloat64
	q := r.db.Model(&models.Booking{}).Select("SUM(total_price)").Where("renter_id = ?", renterID)
	if len(statuses) > 0 {
		q = q.Where("status IN ?", statuses)
	}
	if err := q.Row().Scan(&sum); err != nil {
		return 0, err
	}
	return sum.Float64, nil
}

func (r *bookingRepository) Count() (int64, error) {
	var count int64
	err := r.db.Model(&models.Booking{}).Count(&count).Error
	return count, err
}
