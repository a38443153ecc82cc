package database

import (
	"fmt"
	"log"
	"net"
	"time"

	mysqldriver "github.com/go-sql-driver/mysql"
	"github.com/hangarlinks/hangarlinks/app/models"
	"github.com/hangarlinks/hangarlinks/internal/pkg/env"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

const maxRetries = 5
const retryDelay = 5 * time.Second

var DB *gorm.DB

// GetDB returns the shared database handle set up by SetupDatabase.
func GetDB() *gorm.DB {
	return DB
}

// SetDB replaces the shared handle. Used by tests and the CLI.
func SetDB(db *gorm.DB) {
	DB = db
}

// DSN builds the MySQL data source name from the environment.
func DSN() string {
	return Config().FormatDSN()
}

// MigrationURL is the DSN in the URL form golang-migrate expects. Migration
// files hold several statements each.
func MigrationURL() string {
	cfg := Config()
	cfg.MultiStatements = true
	return "mysql://" + cfg.FormatDSN()
}

// Config reads DB_USER, DB_PASSWORD, DB_HOST, DB_PORT and DB_NAME.
func Config() *mysqldriver.Config {
	cfg := mysqldriver.NewConfig()
	cfg.User = env.GetEnv("DB_USER", "")
	cfg.Passwd = env.GetEnv("DB_PASSWORD", "")
	cfg.Net = "tcp"
	cfg.Addr = net.JoinHostPort(env.GetEnv("DB_HOST", "127.0.0.1"), env.GetEnv("DB_PORT", "3306"))
	cfg.DBName = env.GetEnv("DB_NAME", "")
	cfg.ParseTime = true
	cfg.Loc = time.Local
	cfg.Params = map[string]string{"charset": "utf8mb4"}
	return cfg
}

// Open connects to MySQL with the driver options used across the app.
func Open(dsn string) (*gorm.DB, error) {
	return gorm.Open(mysql.New(mysql.Config{
		DSN:                       dsn,
		DefaultStringSize:         256,
		DisableDatetimePrecision:  true,
		DontSupportRenameIndex:    true,
		DontSupportRenameColumn:   true,
		SkipInitializeWithVersion: false,
	}), &gorm.Config{})
}

// Models lists every table managed by AutoMigrate.
func Models() []interface{} {
	return []interface{}{
		&models.User{},
		&models.UserSettings{},
		&models.ProviderAccount{},
		&models.Listing{},
		&models.ListingPhoto{},
		&models.Booking{},
		&models.Message{},
		&models.Ad{},
		&models.WhiteLabelRequest{},
		&models.Purchase{},
		&models.BillingAccount{},
		&models.BillingSubscription{},
		&models.BillingWebhookEvent{},
	}
}

func SetupDatabase() {
	var err error
	dsn := DSN()

	for i := 0; i < maxRetries; i++ {
		DB, err = Open(dsn)
		if err == nil {
			if err = DB.AutoMigrate(Models()...); err != nil {
				log.Printf("AutoMigrate failed: %v", err)
			}
			return
		}

		log.Printf("Failed to connect to database (try %d/%d): %v", i+1, maxRetries, err)
		if i < maxRetries-1 {
			log.Printf("Retrying in %v...", retryDelay)
			time.Sleep(retryDelay)
		}
	}

	if err != nil {
		panic(err)
	}
}

// Ping runs a trivial query to check connectivity.
func Ping(db *gorm.DB) error {
	if db == nil {
		return fmt.Errorf("database not initialized")
	}
	return db.Exec("SELECT 1").Error
}
