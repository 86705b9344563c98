package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/getsentry/sentry-go"
	"github.com/sirupsen/logrus"

	"discoverly/config"
	"discoverly/middleware"
	"discoverly/routes"
	"discoverly/services"
	"discoverly/utils"
)

func main() {
	logger := log.New(os.Stdout, "DISCOVERLY: ", log.Ldate|log.Ltime|log.Lshortfile)

	if err := config.LoadConfig(); err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}
	cfg := config.AppConfig

	utils.InitLogger(cfg.Environment, cfg.LogLevel)
	flush, err := utils.InitSentry(cfg.SentryDSN, cfg.Environment)
	if err != nil {
		logrus.WithError(err).Warn("Sentry disabled")
	}

	// run returns instead of exiting so buffered Sentry events are sent
	if err := run(cfg, logger); err != nil {
		sentry.CaptureException(err)
		flush()
		logger.Fatal(err)
	}
	flush()
}

func run(cfg config.Config, logger *log.Logger) error {
	if err := config.ConnectDB(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	opts := services.Options{
		LeaderboardCacheSize: cfg.LeaderboardSize,
		LeaderboardCacheTTL:  cfg.LeaderboardTTL,
	}
	mailer := utils.NewMailer(utils.MailerConfig{
		Host:      cfg.SMTP.Host,
		Port:      cfg.SMTP.Port,
		Username:  cfg.SMTP.Username,
		Password:  cfg.SMTP.Password,
		FromEmail: cfg.SMTP.FromEmail,
		FromName:  cfg.SMTP.FromName,
	})
	if mailer.Enabled() {
		opts.Notifier = mailer
	} else {
		logrus.Info("SMTP host not set, notification emails are disabled")
	}

	svc := services.New(config.DB, opts)
	app := routes.NewApp(svc, cfg, middleware.NewRateLimitStorage(cfg.Redis))

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		logger.Println("Shutting down server...")
		if err := app.Shutdown(); err != nil {
			logger.Printf("Shutdown error: %v", err)
		}
	}()

	logger.Printf("🚀 Server starting on port %s", cfg.ServerPort)
	if err := app.Listen(":" + cfg.ServerPort); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}
