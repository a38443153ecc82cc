package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/hangarlinks/hangarlinks/app/models"
	"github.com/hangarlinks/hangarlinks/app/repository"
	"github.com/hangarlinks/hangarlinks/internal/pkg/airports"
	"github.com/hangarlinks/hangarlinks/internal/pkg/marketplace"
)

var seedPassword string

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Create demo accounts and listings",
	Long: `Create a demo owner, a demo renter and one Active listing at each of
CYTZ, KJFK, KLAX and CYHM. Existing demo accounts are left alone, so the
command can be run more than once.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return seed(cmd.OutOrStdout(), connect(), seedPassword)
	},
}

func init() {
	seedCmd.Flags().StringVar(&seedPassword, "password", "hangar123", "password for the demo accounts")
}

type seedListing struct {
	icao        string
	sizeSqft    int
	covered     bool
	price       float64
	description string
}

var seedListings = []seedListing{
	{"CYTZ", 1200, true, 850, "Heated T-hangar on the island, door fits a C182."},
	{"KJFK", 3000, true, 4200, "Corporate hangar bay with office space and 24h access."},
	{"KLAX", 900, false, 600, "Tie-down with shade structure near the west ramp."},
	{"CYHM", 1500, true, 700, "Box hangar with power and a bi-fold door."},
}

func ensureUser(repos *repository.Repositories, username, email, password, role string) (*models.User, bool, error) {
	existing, err := repos.User.GetByEmail(email)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, err
	}
	u, err := models.CreateUser(username, email, password, role)
	if err != nil {
		return nil, false, err
	}
	if err := repos.User.Create(u); err != nil {
		return nil, false, err
	}
	return u, true, nil
}

func seed(out io.Writer, repos *repository.Repositories, password string) error {
	owner, created, err := ensureUser(repos, "demo_owner", "owner@hangarlinks.test", password, models.ROLE_OWNER)
	if err != nil {
		return fmt.Errorf("seed owner: %w", err)
	}
	if _, _, err := ensureUser(repos, "demo_renter", "renter@hangarlinks.test", password, models.ROLE_RENTER); err != nil {
		return fmt.Errorf("seed renter: %w", err)
	}
	if !created {
		fmt.Fprintln(out, "Demo accounts already exist, skipping listings.")
		return nil
	}

	for _, s := range seedListings {
		coords, _ := airports.Lookup(s.icao)
		l := &models.Listing{
			AirportICAO: s.icao,
			SizeSqft:    s.sizeSqft,
			Covered:     s.covered,
			PriceMonth:  s.price,
			Description: s.description,
			Status:      models.LISTING_ACTIVE,
			HealthScore: marketplace.HealthScore(0, false, false, owner.ReputationScore),
			Lat:         &coords.Lat,
			Lon:         &coords.Lon,
			OwnerID:     owner.ID,
		}
		if err := repos.Listing.Create(l); err != nil {
			return fmt.Errorf("seed listing at %s: %w", s.icao, err)
		}
	}
	fmt.Fprintf(out, "Seeded 2 demo accounts and %d listings.\n", len(seedListings))
	return nil
}
