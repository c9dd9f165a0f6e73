// Package herald parses dispatch daemon flags and launches the service.
package herald

import (
	"flag"

	entrypoint "github.com/openclay/herald/internal/platform/cmd"
)

// Config holds herald daemon configuration.
type Config struct {
	DBPath       string `env:"HERALD_DB_PATH" envDefault:"herald.db"`
	TemplatesDir string `env:"HERALD_TEMPLATES_DIR" envDefault:"templates"`
	// TypesFile optionally points at a YAML file of notice type and
	// level definitions registered at startup.
	TypesFile string `env:"HERALD_TYPES_FILE"`

	LogLevel   string `env:"HERALD_LOG_LEVEL" envDefault:"info"`
	LogConsole bool   `env:"HERALD_LOG_CONSOLE"`

	QueueAll      bool   `env:"HERALD_QUEUE_ALL"`
	PrimaryMedium string `env:"HERALD_PRIMARY_MEDIUM" envDefault:"email"`
	DefaultLocale string `env:"HERALD_DEFAULT_LOCALE" envDefault:"en"`
	SiteName      string `env:"HERALD_SITE_NAME" envDefault:"herald"`
	SiteURL       string `env:"HERALD_SITE_URL"`
	// DrainSchedule is a cron expression for queue drain passes.
	DrainSchedule string `env:"HERALD_DRAIN_SCHEDULE" envDefault:"@every 30s"`

	// Email delivery activates when both From and SMTPHost are set.
	EmailFrom          string  `env:"HERALD_EMAIL_FROM"`
	EmailSubjectPrefix string  `env:"HERALD_EMAIL_SUBJECT_PREFIX"`
	EmailRateLimit     float64 `env:"HERALD_EMAIL_RATE_LIMIT"`
	SMTPHost           string  `env:"HERALD_SMTP_HOST"`
	SMTPPort           int     `env:"HERALD_SMTP_PORT" envDefault:"587"`
	SMTPUsername       string  `env:"HERALD_SMTP_USERNAME"`
	SMTPPassword       string  `env:"HERALD_SMTP_PASSWORD"`

	// Telegram delivery activates when a token is set.
	TelegramToken     string  `env:"HERALD_TELEGRAM_TOKEN"`
	TelegramRateLimit float64 `env:"HERALD_TELEGRAM_RATE_LIMIT"`
}

// ParseConfig parses environment and flags into Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "Path to the notices SQLite database")
	fs.StringVar(&cfg.TemplatesDir, "templates", cfg.TemplatesDir, "Directory holding notice templates")
	fs.StringVar(&cfg.TypesFile, "types", cfg.TypesFile, "YAML file of notice type definitions")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level (trace, debug, info, warn, error)")
	fs.BoolVar(&cfg.QueueAll, "queue-all", cfg.QueueAll, "Defer every dispatch to the drain worker by default")
	fs.StringVar(&cfg.DrainSchedule, "drain-schedule", cfg.DrainSchedule, "Cron schedule for queue drain passes")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
