// Command hangarctl runs one-off maintenance against the HangarLinks database.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/hangarlinks/hangarlinks/app/repository"
	"github.com/hangarlinks/hangarlinks/internal/pkg/database"
	"github.com/hangarlinks/hangarlinks/internal/pkg/env"
)

var rootCmd = &cobra.Command{
	Use:   "hangarctl",
	Short: "HangarLinks maintenance commands",
	Long: `Maintenance commands for a HangarLinks installation.

Database settings come from the same .env file as the server.`,
	SilenceUsage: true,
}

// connect opens the database and returns the repositories. AutoMigrate runs
// as part of the setup, so the commands work on an empty database.
func connect() *repository.Repositories {
	env.SetupEnvFile()
	database.SetupDatabase()
	repository.InitializeFactory(database.GetDB())
	return repository.GetGlobalRepositories()
}

func init() {
	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(setAdminCmd)
	rootCmd.AddCommand(backfillCoordsCmd)
	rootCmd.AddCommand(expireFeaturedCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
