package repository

import (
	"time"

	"github.com/hangarlinks/hangarlinks/app/models"
	"gorm.io/gorm"
)

type UserRepository interface {
	Create(user *models.User) error
	GetByID(id uint) (*models.User, error)
	GetByEmail(email string) (*models.User, error)
	GetByReferralCode(code string) (*models.User, error)
	EmailExists(email string) (bool, error)
	UsernameExists(username string) (bool, error)
	GetByAPIKeyHash(hash string) (*models.User, *models.UserSettings, error)
	UpdateFields(id uint, fields map[string]interface{}) error
	AddPoints(id uint, points int) error
	Count() (int64, error)
	CountPremium() (int64, error)
	GetDailyStats(from, to time.Time) ([]models.DailyStats, error)
	AlertSubscribers(excludeUserID uint) ([]AlertSubscriber, error)
	ExpireSubscriptions(now time.Time) (int64, error)
	ExpireAnalyticsAccess(now time.Time) (int64, error)
}

// UserSettingsRepository handles alert preferences and API keys
type UserSettingsRepository interface {
	GetOrCreate(userID uint) (*models.UserSettings, error)
	Save(settings *models.UserSettings) error
	TouchAPIKey(id uint, at time.Time) error
}

// ListingRepository defines the interface for listing-related database operations
type ListingRepository interface {
	Create(listing *models.Listing) error
	GetByID(id uint) (*models.Listing, error)
	Update(listing *models.Listing) error
	UpdateFields(id uint, fields map[string]interface{}) error
	Search(filter ListingFilter, page, perPage int) ([]models.Listing, int64, error)
	Recent(limit int) ([]models.Listing, error)
	ListByOwner(ownerID uint, offset, limit int) ([]models.Listing, error)
	ActiveByOwner(ownerID uint) ([]models.Listing, error)
	AllByOwner(ownerID uint) ([]models.Listing, error)
	CountByOwner(ownerID uint) (int64, error)
	CountActiveByOwner(ownerID uint) (int64, error)
	ActivePricesAt(icao string, excludeID uint) ([]float64, error)
	AveragePriceAt(icao string) (float64, bool, error)
	IncrementLikes(id uint) (int, error)
	ActiveAtAirport(icao string, limit int) ([]models.Listing, error)
	MatchCandidates(limit int) ([]models.Listing, error)
	TopByHealth(filter ConciergeFilter, limit int) ([]models.Listing, error)
	ExpireFeatured(now time.Time) (int64, error)
	MissingCoordinates(limit int) ([]models.Listing, error)
	AdminSearch(filter AdminListingFilter, page, perPage int) ([]models.Listing, int64, error)
	Count() (int64, error)
	CountFeatured() (int64, error)
	CountActive() (int64, error)
	GetDailyStats(from, to time.Time) ([]models.DailyStats, error)
	AddPhoto(photo *models.ListingPhoto) error
	GetPhoto(id uint) (*models.ListingPhoto, error)
	UpdatePhoto(id uint, fields map[string]interface{}) error
}

// BookingRepository defines the interface for booking-related database operations
type BookingRepository interface {
	Create(booking *models.Booking) error
	GetByID(id uint) (*models.Booking, error)
	GetByPaymentID(paymentID string) (*models.Booking, error)
	Update(booking *models.Booking) error
	ConfirmedForOwner(ownerID uint) ([]models.Booking, error)
	SumForRenter(renterID uint, statuses ...string) (float64, error)
	Count() (int64, error)
}

// MessageRepository defines the interface for user messaging
type MessageRepository interface {
	Create(message *models.Message) error
	Thread(userID, partnerID uint) ([]models.Message, error)
	MarkThreadRead(receiverID, senderID uint) error
	Conversations(userID uint) ([]models.Conversation, error)
	CountForUser(userID uint) (int64, error)
}

// AdRepository defines the interface for ad inventory
type AdRepository interface {
	Create(ad *models.Ad) error
	GetByID(id uint) (*models.Ad, error)
	List() ([]models.Ad, error)
	RandomActive(placement string, limit int) ([]models.Ad, error)
	Toggle(id uint) error
	Delete(id uint) error
	Stats() (*models.AdStats, error)
}

// WhiteLabelRepository defines the interface for white-label requests
type WhiteLabelRepository interface {
	Create(req *models.WhiteLabelRequest) error
	GetByID(id uint) (*models.WhiteLabelRequest, error)
	UpdateStatus(id uint, status string) error
	SetCheckoutSession(id uint, sessionID string) error
	List(offset, limit int) ([]models.WhiteLabelRequest, error)
}

// PurchaseRepository defines the interface for one-off checkout records
type PurchaseRepository interface {
	Create(p *models.Purchase) error
	GetBySession(sessionID string) (*models.Purchase, error)
	MarkPaid(id uint, at time.Time) (bool, error)
}

// QueueRepository reads the job queue and purges derived cache keys.
type QueueRepository interface {
	Snapshot(keys QueueKeys) (QueueSnapshot, error)
	FindKeysByPatterns(patterns []string) ([]string, error)
	DeleteKeys(keys []string) (int64, error)
}

// ListingFilter holds the public search parameters.
type ListingFilter struct {
	Airport   string
	RadiusMi  int
	Lat       *float64
	Lon       *float64
	Covered   string // "yes", "no" or ""
	MinPrice  *float64
	MaxPrice  *float64
	OwnerOnly uint
}

// ConciergeFilter narrows the concierge listing lookup.
type ConciergeFilter struct {
	Airports    []string
	MaxPrice    *float64
	CoveredOnly bool
}

// AdminListingFilter holds the admin listing table filters.
type AdminListingFilter struct {
	Query    string
	Status   string
	Featured string // "yes", "no" or ""
}

// AlertSubscriber pairs a user with alert preferences for listing alerts.
type AlertSubscriber struct {
	User     models.User
	Settings models.UserSettings
}

// Repositories struct holds all repository instances
type Repositories struct {
	User         UserRepository
	UserSettings UserSettingsRepository
	Listing      ListingRepository
	Booking      BookingRepository
	Message      MessageRepository
	Ad           AdRepository
	WhiteLabel   WhiteLabelRepository
	Purchase     PurchaseRepository
	Queue        QueueRepository
}

// NewRepositories creates a new instance of all repositories
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		User:         NewUserRepository(db),
		UserSettings: NewUserSettingsRepository(db),
		Listing:      NewListingRepository(db),
		Booking:      NewBookingRepository(db),
		Message:      NewMessageRepository(db),
		Ad:           NewAdRepository(db),
		WhiteLabel:   NewWhiteLabelRepository(db),
		Purchase:     NewPurchaseRepository(db),
		Queue:        NewQueueRepository(),
	}
}
