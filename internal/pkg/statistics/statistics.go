package statistics

import (
	"log"
	"strconv"
	"sync"
	"time"

	"github.com/hangarlinks/hangarlinks/app/repository"
	"github.com/hangarlinks/hangarlinks/internal/pkg/cache"
)

const (
	CacheKeyActiveListings   = "statistics:listings:active"
	CacheKeyFeaturedListings = "statistics:listings:featured"
	CacheKeyUsers            = "statistics:users:total"
	CacheKeyPremiumUsers     = "statistics:users:premium"
	CacheKeyBookings         = "statistics:bookings:total"
	CacheExpiration          = 30 * time.Minute
)

// StatisticsData holds the marketplace counts shown on the home and admin pages.
type StatisticsData struct {
	ActiveListings   int
	FeaturedListings int
	TotalUsers       int
	PremiumUsers     int
	TotalBookings    int
}

type stat struct {
	key   string
	count func(*repository.Repositories) (int64, error)
}

var stats = []stat{
	{CacheKeyActiveListings, func(r *repository.Repositories) (int64, error) { return r.Listing.CountActive() }},
	{CacheKeyFeaturedListings, func(r *repository.Repositories) (int64, error) { return r.Listing.CountFeatured() }},
	{CacheKeyUsers, func(r *repository.Repositories) (int64, error) { return r.User.Count() }},
	{CacheKeyPremiumUsers, func(r *repository.Repositories) (int64, error) { return r.User.CountPremium() }},
	{CacheKeyBookings, func(r *repository.Repositories) (int64, error) { return r.Booking.Count() }},
}

var (
	lastCacheUpdate     time.Time
	cacheUpdateMutex    sync.Mutex
	cacheUpdateInterval = 5 * time.Minute
)

// ShouldUpdateCache reports whether the refresh interval has passed.
func ShouldUpdateCache() bool {
	cacheUpdateMutex.Lock()
	defer cacheUpdateMutex.Unlock()
	return time.Since(lastCacheUpdate) > cacheUpdateInterval
}

// UpdateCacheIfNeeded refreshes the cache at most once per interval.
func UpdateCacheIfNeeded() {
	if !ShouldUpdateCache() {
		return
	}
	cacheUpdateMutex.Lock()
	defer cacheUpdateMutex.Unlock()

	log.Println("Refreshing statistics cache...")
	if err := UpdateStatisticsCache(); err != nil {
		log.Printf("Error refreshing statistics cache: %v", err)
		return
	}
	lastCacheUpdate = time.Now()
}

// ResetCacheUpdateTimer forces the next UpdateCacheIfNeeded to refresh.
func ResetCacheUpdateTimer() {
	cacheUpdateMutex.Lock()
	defer cacheUpdateMutex.Unlock()
	lastCacheUpdate = time.Time{}
}

// UpdateStatisticsCache recounts everything and stores it in the cache.
func UpdateStatisticsCache() error {
	repos := repository.GetGlobalRepositories()
	for _, s := range stats {
		n, err := s.count(repos)
		if err != nil {
			log.Printf("Error counting %s: %v", s.key, err)
			return err
		}
		if err := cache.Set(s.key, strconv.FormatInt(n, 10), CacheExpiration); err != nil {
			log.Printf("Error caching %s: %v", s.key, err)
			return err
		}
	}
	return nil
}

// cached reads a count from the cache, falling back to the database on a miss.
func cached(s stat) int {
	if val, err := cache.Get(s.key); err == nil {
		if n, perr := strconv.ParseInt(val, 10, 64); perr == nil {
			return int(n)
		}
	}

	n, err := s.count(repository.GetGlobalRepositories())
	if err != nil {
		log.Printf("Error counting %s: %v", s.key, err)
		return 0
	}
	if err := cache.Set(s.key, strconv.FormatInt(n, 10), CacheExpiration); err != nil {
		log.Printf("Error caching %s: %v", s.key, err)
	}
	return int(n)
}

// GetStatisticsData returns all statistics, refreshing the cache when due.
func GetStatisticsData() StatisticsData {
	UpdateCacheIfNeeded()

	values := make(map[string]int, len(stats))
	for _, s := range stats {
		values[s.key] = cached(s)
	}
	return StatisticsData{
		ActiveListings:   values[CacheKeyActiveListings],
		FeaturedListings: values[CacheKeyFeaturedListings],
		TotalUsers:       values[CacheKeyUsers],
		PremiumUsers:     values[CacheKeyPremiumUsers],
		TotalBookings:    values[CacheKeyBookings],
	}
}
