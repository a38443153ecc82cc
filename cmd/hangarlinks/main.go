package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/basicauth"
	"github.com/gofiber/fiber/v2/middleware/favicon"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/hangarlinks/hangarlinks/app/controllers"
	"github.com/hangarlinks/hangarlinks/app/repository"
	apiv1 "github.com/hangarlinks/hangarlinks/internal/api/v1"
	"github.com/hangarlinks/hangarlinks/internal/pkg/airports"
	"github.com/hangarlinks/hangarlinks/internal/pkg/billing"
	"github.com/hangarlinks/hangarlinks/internal/pkg/cache"
	"github.com/hangarlinks/hangarlinks/internal/pkg/constants"
	"github.com/hangarlinks/hangarlinks/internal/pkg/database"
	"github.com/hangarlinks/hangarlinks/internal/pkg/env"
	"github.com/hangarlinks/hangarlinks/internal/pkg/hcaptcha"
	"github.com/hangarlinks/hangarlinks/internal/pkg/jobqueue"
	"github.com/hangarlinks/hangarlinks/internal/pkg/mail"
	"github.com/hangarlinks/hangarlinks/internal/pkg/metrics"
	"github.com/hangarlinks/hangarlinks/internal/pkg/router"
	"github.com/hangarlinks/hangarlinks/internal/pkg/s3backup"
	"github.com/hangarlinks/hangarlinks/views"
)

func main() {
	app, manager := NewApplication()

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		log.Println("Shutting down...")
		manager.Stop()
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Printf("Shutdown: %v", err)
		}
	}()

	err := app.Listen(fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "localhost"), env.GetEnv("APP_PORT", "4000")))
	if err != nil {
		log.Fatal(err)
	}
}

func NewApplication() (*fiber.App, *jobqueue.Manager) {
	env.SetupEnvFile()
	database.SetupDatabase()
	cache.SetupCache()

	basePath := findBasePath()

	db := database.GetDB()
	repository.InitializeFactory(db)
	repos := repository.GetGlobalRepositories()

	if path := env.GetEnv("AIRPORTS_CSV", ""); path != "" {
		if err := airports.LoadCSVFile(path); err != nil {
			log.Printf("Warning: could not load airports from %s: %v", path, err)
		}
	}

	uploadDir := env.GetEnv("UPLOAD_FOLDER", constants.UploadsPath)
	if err := os.MkdirAll(uploadDir, 0o755); err != nil {
		panic(err)
	}

	// S3 photo backups are optional; a broken config disables them.
	backupCfg, err := s3backup.LoadConfig()
	if err != nil {
		log.Printf("Warning: S3 backup disabled: %v", err)
		backupCfg = &s3backup.Config{}
	}
	var backup s3backup.Uploader
	if backupCfg.IsEnabled() {
		client, err := s3backup.NewClient(backupCfg)
		if err != nil {
			log.Printf("Warning: S3 backup disabled: %v", err)
		} else {
			backup = client
		}
	}

	// JOB QUEUE
	manager := jobqueue.GetManager()
	jobqueue.RegisterHandlers(manager.GetQueue(), jobqueue.Deps{
		Repos:        repos,
		Mailer:       mail.NewSMTPMailer(),
		Backup:       backup,
		BackupConfig: backupCfg,
		BaseURL:      env.PublicURL(),
		AdminEmail:   env.GetEnv("ADMIN_EMAIL", ""),
	})
	if err := manager.Start(); err != nil {
		panic(err)
	}

	// BILLING
	billingService := billing.NewServiceFromDB(db)
	purchases := billing.NewPurchases(billingService.Stripe(), repos)
	purchases.NotifyAdminWith(manager)
	webhooks := billing.NewWebhookProcessor(billingService, purchases, env.GetEnv("STRIPE_WEBHOOK_SECRET", ""), env.IsDev())

	ctrl := controllers.New(controllers.Deps{
		Repos:        repos,
		Jobs:         manager,
		Scheduler:    manager,
		Captcha:      hcaptcha.NewVerifierFromEnv(),
		Billing:      billingService,
		Purchases:    purchases,
		Webhooks:     webhooks,
		UploadDir:    uploadDir,
		BackupPhotos: backup != nil,
	})

	// init fiber app
	app := fiber.New(fiber.Config{
		Views:     views.NewEngine(),
		BodyLimit: env.GetEnvInt("MAX_UPLOAD_MB", 16) * 1024 * 1024,
	})

	app.Use(favicon.New())

	// recovery and logging
	app.Use(recover.New(), logger.New())

	// fiber and prometheus metrics
	metricsAuth := basicauth.New(basicauth.Config{
		Users: map[string]string{
			env.GetEnv("METRICS_USER", "admin"): env.GetEnv("METRICS_PASSWORD", "change-me"),
		},
	})
	app.Get("/metrics", metricsAuth, monitor.New())
	app.Get("/metrics/prometheus", metricsAuth, metrics.Handler())

	// static files
	app.Static(constants.PublicRoute, basePath+"public", fiber.Static{
		CacheDuration: 15 * time.Second,
		Compress:      true,
	})

	// static uploads
	app.Static(constants.UploadsRoute, uploadDir, fiber.Static{
		CacheDuration: 10 * time.Second,
		Compress:      false,
		MaxAge:        604800, // 7 days
	})

	// SWAGGER / OPENAPI
	docPath := basePath + "public/docs/v1/openapi.yml"
	app.Use(swagger.New(swagger.Config{
		BasePath: "/docs/api/",
		FilePath: docPath,
		Path:     "v1",
		Title:    "HangarLinks API",
	}))

	doc, err := apiv1.LoadDocument(docPath)
	if err != nil {
		panic(err)
	}
	validator, err := apiv1.RequestValidator(doc)
	if err != nil {
		panic(err)
	}

	// ROUTER
	router.InstallRouter(app,
		router.NewHttpRouter(ctrl),
		router.NewApiRouter(ctrl, apiv1.NewAPIServer(repos), validator),
	)

	return app, manager
}

// findBasePath locates the directory holding public/ when started from the
// repository root or from cmd/hangarlinks.
func findBasePath() string {
	for _, path := range []string{"./", "../../", "../../../"} {
		if _, err := os.Stat(path + "public"); !os.IsNotExist(err) {
			return path
		}
	}
	panic("Could not find project root directory")
}
