// Package notices implements notification dispatch: typed notices, per-user
// delivery preferences, template rendering, pluggable delivery backends,
// deferred dispatch batches and observation subscriptions.
package notices

import (
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/text/language"

	"github.com/openclay/herald/internal/notices/backend"
	"github.com/openclay/herald/internal/notices/render"
	"github.com/openclay/herald/internal/notices/storage"
	"github.com/openclay/herald/internal/platform/id"
)

// Config carries dispatch-wide settings.
type Config struct {
	// QueueAll defers every dispatch that does not request immediate
	// delivery explicitly.
	QueueAll bool
	// PrimaryMedium is the medium whose preference decides on-site
	// visibility when the caller does not pin it.
	PrimaryMedium string
	// DefaultLocale is the BCP 47 tag used when a recipient has no stored
	// notification language.
	DefaultLocale string
	// SiteName labels the sending site in template context.
	SiteName string
	// SiteURL is the site base URL exposed to templates.
	SiteURL string
}

func (c Config) withDefaults() Config {
	if c.PrimaryMedium == "" {
		c.PrimaryMedium = "email"
	}
	if c.DefaultLocale == "" {
		c.DefaultLocale = "en"
	}
	return c
}

// ContextProcessor contributes site-wide template context to every render.
// Returned keys are overridden by per-dispatch extra context.
type ContextProcessor func() map[string]any

// Service orchestrates notice dispatch and inbox behavior.
type Service struct {
	cfg        Config
	store      storage.Store
	registry   *backend.Registry
	renderer   *render.Renderer
	processors []ContextProcessor
	log        zerolog.Logger
	tracer     trace.Tracer
	clock      func() time.Time
	newID      func() (string, error)
}

// Option adjusts optional service collaborators.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(log zerolog.Logger) Option {
	return func(s *Service) { s.log = log }
}

// WithClock overrides the time source.
func WithClock(clock func() time.Time) Option {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithIDGenerator overrides the notice ID source.
func WithIDGenerator(newID func() (string, error)) Option {
	return func(s *Service) {
		if newID != nil {
			s.newID = newID
		}
	}
}

// WithContextProcessors registers site-wide template context contributors.
func WithContextProcessors(processors ...ContextProcessor) Option {
	return func(s *Service) { s.processors = append(s.processors, processors...) }
}

// NewService constructs the notices service.
func NewService(cfg Config, store storage.Store, registry *backend.Registry, renderer *render.Renderer, opts ...Option) *Service {
	service := &Service{
		cfg:      cfg.withDefaults(),
		store:    store,
		registry: registry,
		renderer: renderer,
		log:      zerolog.Nop(),
		tracer:   otel.Tracer("herald/notices"),
		clock:    time.Now,
		newID:    id.NewID,
	}
	for _, opt := range opts {
		opt(service)
	}
	return service
}

func (s *Service) nowUTC() time.Time {
	return s.clock().UTC()
}

// localeFor resolves a recipient's notification language, falling back to the
// configured default when the stored tag is empty or malformed.
func (s *Service) localeFor(stored string) language.Tag {
	if stored != "" {
		if tag, err := language.Parse(stored); err == nil {
			return tag
		}
	}
	if tag, err := language.Parse(s.cfg.DefaultLocale); err == nil {
		return tag
	}
	return language.English
}
