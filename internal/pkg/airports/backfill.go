package airports

import (
	"github.com/hangarlinks/hangarlinks/app/models"
)

// ListingStore is the part of the listing repository the backfill needs.
type ListingStore interface {
	MissingCoordinates(limit int) ([]models.Listing, error)
	UpdateFields(id uint, fields map[string]interface{}) error
}

// BackfillResult counts what a backfill run did.
type BackfillResult struct {
	Updated int
	Unknown int
}

// Backfill sets coordinates on listings that have none, in batches of
// batchSize. Unknown airports receive the default coordinates so that they
// are not picked up again.
func Backfill(store ListingStore, batchSize int) (BackfillResult, error) {
	var res BackfillResult
	if batchSize <= 0 {
		batchSize = 500
	}
	for {
		listings, err := store.MissingCoordinates(batchSize)
		if err != nil {
			return res, err
		}
		if len(listings) == 0 {
			return res, nil
		}
		for _, l := range listings {
			c, found := Lookup(l.AirportICAO)
			if err := store.UpdateFields(l.ID, map[string]interface{}{"lat": c.Lat, "lon": c.Lon}); err != nil {
				return res, err
			}
			if found {
				res.Updated++
			} else {
				res.Unknown++
			}
		}
		if len(listings) < batchSize {
			return res, nil
		}
	}
}
