package herald

import (
	"context"
	"fmt"
	"os"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/robfig/cron/v3"

	"github.com/openclay/herald/internal/notices"
	"github.com/openclay/herald/internal/notices/backend"
	"github.com/openclay/herald/internal/notices/backend/email"
	"github.com/openclay/herald/internal/notices/backend/telegram"
	"github.com/openclay/herald/internal/notices/drain"
	"github.com/openclay/herald/internal/notices/render"
	"github.com/openclay/herald/internal/notices/storage/sqlite"
	entrypoint "github.com/openclay/herald/internal/platform/cmd"
	"github.com/openclay/herald/internal/platform/logging"
)

// Run starts the herald dispatch daemon.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceHerald, func(ctx context.Context) error {
		return run(ctx, cfg)
	})
}

func run(ctx context.Context, cfg Config) error {
	log := logging.New(logging.Config{Level: cfg.LogLevel, Console: cfg.LogConsole})

	store, err := sqlite.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := store.Close(); closeErr != nil {
			log.Error().Err(closeErr).Msg("close store")
		}
	}()

	registry, err := buildRegistry(cfg)
	if err != nil {
		return err
	}
	for _, b := range registry.All() {
		log.Info().Str("medium", b.Slug()).Msg("delivery backend enabled")
	}

	renderer, err := render.New(os.DirFS(cfg.TemplatesDir))
	if err != nil {
		return err
	}

	service := notices.NewService(notices.Config{
		QueueAll:      cfg.QueueAll,
		PrimaryMedium: cfg.PrimaryMedium,
		DefaultLocale: cfg.DefaultLocale,
		SiteName:      cfg.SiteName,
		SiteURL:       cfg.SiteURL,
	}, store, registry, renderer, notices.WithLogger(log))

	if cfg.TypesFile != "" {
		defs, err := LoadDefinitions(cfg.TypesFile)
		if err != nil {
			return err
		}
		if err := RegisterDefinitions(ctx, service, defs); err != nil {
			return err
		}
		log.Info().
			Int("levels", len(defs.Levels)).
			Int("types", len(defs.Types)).
			Msg("notice definitions registered")
	}

	worker, err := drain.New(store, service, drain.WithLogger(log))
	if err != nil {
		return err
	}
	scheduler := cron.New()
	if _, err := scheduler.AddFunc(cfg.DrainSchedule, func() {
		if _, err := worker.Run(ctx); err != nil && ctx.Err() == nil {
			log.Error().Err(err).Msg("drain pass failed")
		}
	}); err != nil {
		return fmt.Errorf("schedule drain worker: %w", err)
	}
	scheduler.Start()
	defer scheduler.Stop()

	if _, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		log.Warn().Err(err).Msg("sd_notify ready")
	}
	log.Info().Str("db", cfg.DBPath).Str("schedule", cfg.DrainSchedule).Msg("herald running")

	<-ctx.Done()
	if _, err := daemon.SdNotify(false, daemon.SdNotifyStopping); err != nil {
		log.Warn().Err(err).Msg("sd_notify stopping")
	}
	return nil
}

// buildRegistry enables each delivery backend whose configuration is
// present. An empty registry is valid: notices stay on-site only.
func buildRegistry(cfg Config) (*backend.Registry, error) {
	var backends []backend.Backend

	if cfg.EmailFrom != "" && cfg.SMTPHost != "" {
		transport, err := email.NewSMTPTransport(email.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
		})
		if err != nil {
			return nil, err
		}
		emailBackend, err := email.New(email.Config{
			From:          cfg.EmailFrom,
			SubjectPrefix: cfg.EmailSubjectPrefix,
			RateLimit:     cfg.EmailRateLimit,
		}, transport)
		if err != nil {
			return nil, err
		}
		backends = append(backends, emailBackend)
	}

	if cfg.TelegramToken != "" {
		telegramBackend, err := telegram.New(telegram.Config{
			Token:     cfg.TelegramToken,
			RateLimit: cfg.TelegramRateLimit,
		})
		if err != nil {
			return nil, err
		}
		backends = append(backends, telegramBackend)
	}

	return backend.NewRegistry(backends...)
}
