// Package bootstrap builds the collaborators shared by the server and the cronjob runner.
package bootstrap

import (
	"context"
	"database/sql"
	"fmt"

	"iotkit-lending-backend/internal/config"
	"iotkit-lending-backend/internal/logger"
	"iotkit-lending-backend/internal/repository/postgres"
	"iotkit-lending-backend/internal/service"
)

// OpenStore connects to postgres with the configured driver.
func OpenStore(ctx context.Context, cfg *config.Config) (*sql.DB, *postgres.Store, error) {
	logger.Info("Connecting to database...", "driver", cfg.Database.Driver, "host", cfg.Database.Host, "port", cfg.Database.Port, "database", cfg.Database.Database)
	db, err := postgres.Open(ctx, cfg.Database.Driver, cfg.GetDatabaseConnectionString())
	if err != nil {
		return nil, nil, err
	}
	logger.Info("Database connection established")
	return db, postgres.NewStore(db), nil
}

// EmailService returns the configured email provider, or nil when email is off.
func EmailService(cfg config.EmailConfig) service.EmailService {
	switch cfg.Provider {
	case "smtp":
		return service.NewSMTPEmailService(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.User, cfg.SMTP.Password, cfg.From, cfg.FromName)
	case "sendgrid":
		return service.NewSendGridEmailService(cfg.SendGrid.APIKey, cfg.From, cfg.FromName)
	default:
		return nil
	}
}

// Channels builds the notification delivery channels. A push channel that
// fails to initialise is logged and left out.
func Channels(ctx context.Context, cfg *config.Config, extra ...service.Notifier) []service.Notifier {
	var channels []service.Notifier
	if email := EmailService(cfg.Email); email != nil {
		channels = append(channels, service.NewEmailNotifier(email))
	}
	if cfg.Firebase.Enabled {
		push, err := service.NewPushNotifier(ctx, cfg.Firebase.ProjectID, cfg.Firebase.CredentialsFile)
		if err != nil {
			logger.Warn("Push notifications disabled", "error", err)
		} else {
			channels = append(channels, push)
		}
	}
	channels = append(channels, extra...)

	names := make([]string, 0, len(channels))
	for _, c := range channels {
		names = append(names, c.Name())
	}
	logger.Info("Notification channels", "channels", fmt.Sprint(names))
	return channels
}
