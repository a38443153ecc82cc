// Command migrate applies the SQL migrations in ./migrations.
package main

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/mysql"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/spf13/cobra"

	"github.com/hangarlinks/hangarlinks/internal/pkg/database"
	"github.com/hangarlinks/hangarlinks/internal/pkg/env"
)

var source string

var rootCmd = &cobra.Command{
	Use:          "migrate",
	Short:        "Apply HangarLinks SQL migrations",
	SilenceUsage: true,
}

// withMigrator opens the migrator for the configured database and closes it after fn.
func withMigrator(fn func(m *migrate.Migrate) error) error {
	env.SetupEnvFile()
	cfg := database.Config()
	log.Printf("Database %s@%s/%s, source %s", cfg.User, cfg.Addr, cfg.DBName, source)

	m, err := migrate.New(source, database.MigrationURL())
	if err != nil {
		return fmt.Errorf("init migrations: %w", err)
	}
	defer func() {
		if srcErr, dbErr := m.Close(); srcErr != nil || dbErr != nil {
			log.Printf("close migrator: %v, %v", srcErr, dbErr)
		}
	}()
	return fn(m)
}

// noChange turns migrate.ErrNoChange into a log line.
func noChange(err error, done string) error {
	switch {
	case errors.Is(err, migrate.ErrNoChange):
		log.Println("No change: database is already there")
		return nil
	case err != nil:
		return err
	}
	log.Println(done)
	return nil
}

func versionArg(arg string) (uint, error) {
	v, err := strconv.ParseUint(arg, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid version %q", arg)
	}
	return uint(v), nil
}

var upCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withMigrator(func(m *migrate.Migrate) error {
			return noChange(m.Up(), "Migrations applied")
		})
	},
}

var downCmd = &cobra.Command{
	Use:   "down [steps]",
	Short: "Roll back the last migration, or the given number of steps",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		steps := 1
		if len(args) == 1 {
			n, err := strconv.Atoi(args[0])
			if err != nil || n < 1 {
				return fmt.Errorf("invalid step count %q", args[0])
			}
			steps = n
		}
		return withMigrator(func(m *migrate.Migrate) error {
			return noChange(m.Steps(-steps), fmt.Sprintf("Rolled back %d migration(s)", steps))
		})
	},
}

var gotoCmd = &cobra.Command{
	Use:   "goto <version>",
	Short: "Migrate up or down to a version",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		v, err := versionArg(args[0])
		if err != nil {
			return err
		}
		return withMigrator(func(m *migrate.Migrate) error {
			return noChange(m.Migrate(v), fmt.Sprintf("Migrated to version %d", v))
		})
	},
}

var forceCmd = &cobra.Command{
	Use:   "force <version>",
	Short: "Set the version without running migrations, clearing the dirty flag",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		v, err := versionArg(args[0])
		if err != nil {
			return err
		}
		return withMigrator(func(m *migrate.Migrate) error {
			if err := m.Force(int(v)); err != nil {
				return err
			}
			log.Printf("Forced version %d", v)
			return nil
		})
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the current migration version",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withMigrator(func(m *migrate.Migrate) error {
			version, dirty, err := m.Version()
			if errors.Is(err, migrate.ErrNilVersion) {
				log.Println("No migrations have been applied yet")
				return nil
			}
			if err != nil {
				return fmt.Errorf("read version: %w", err)
			}
			state := ""
			if dirty {
				state = " (dirty, fix the schema and run force)"
			}
			log.Printf("Current migration version: %d%s", version, state)
			return nil
		})
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&source, "source", "file://migrations", "migration source URL")
	rootCmd.AddCommand(upCmd, downCmd, gotoCmd, forceCmd, statusCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
