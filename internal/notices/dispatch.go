package notices

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/text/message"

	"github.com/openclay/herald/internal/notices/backend"
	"github.com/openclay/herald/internal/notices/render"
	"github.com/openclay/herald/internal/notices/storage"
)

// SendInput describes one dispatch request.
type SendInput struct {
	// Recipients are the directly targeted user IDs.
	Recipients []string
	// Label selects the notice type.
	Label string
	// Extra is merged into the template context and wins over base keys.
	Extra map[string]any
	// SenderID optionally attributes the notice to a sending user.
	SenderID string
	// RelatedObjectID optionally links the notice to an application object.
	RelatedObjectID string
	// OnSite pins on-site visibility; nil defers to the recipient's
	// preference for the primary medium.
	OnSite *bool
	// Queue defers dispatch to the drain worker.
	Queue bool
	// Now forces immediate dispatch even when deferral is the default.
	Now bool
	// SkipGroups suppresses group expansion. Deferred batches set it on
	// replay because groups were already expanded at queue time.
	SkipGroups bool
	// Mediums restricts delivery to the named backends. Empty means every
	// registered backend is considered.
	Mediums []string
}

// DeliveryReport aggregates the outcome of one immediate dispatch.
type DeliveryReport struct {
	// Recipients is the number of users dispatched to after expansion.
	Recipients int
	// Delivered counts successful per-backend deliveries.
	Delivered int
	// Queued reports that dispatch was deferred instead of delivered.
	Queued bool
	// Failures holds every failed (recipient, medium) delivery.
	Failures []*backend.DeliveryError
}

// Err folds the failures into one error, nil when everything delivered.
func (r *DeliveryReport) Err() error {
	if r == nil || len(r.Failures) == 0 {
		return nil
	}
	errs := make([]error, len(r.Failures))
	for i, failure := range r.Failures {
		errs[i] = failure
	}
	return errors.Join(errs...)
}

// Send dispatches one notice to the recipients, either immediately or via
// the deferred queue. Mode resolution: explicit Queue or Now flags win, and
// requesting both is an error; otherwise Config.QueueAll decides.
func (s *Service) Send(ctx context.Context, input SendInput) (*DeliveryReport, error) {
	if s == nil || s.store == nil {
		return nil, ErrStoreNotConfigured
	}
	if input.Queue && input.Now {
		return nil, ErrSendModeConflict
	}
	input.Label = strings.TrimSpace(input.Label)
	if input.Label == "" {
		return nil, ErrLabelRequired
	}
	if len(input.Recipients) == 0 {
		return nil, ErrRecipientsRequired
	}

	queue := input.Queue
	if !input.Queue && !input.Now {
		queue = s.cfg.QueueAll
	}
	if queue {
		if err := s.enqueue(ctx, input); err != nil {
			return nil, err
		}
		return &DeliveryReport{Queued: true}, nil
	}
	return s.sendNow(ctx, input)
}

func (s *Service) sendNow(ctx context.Context, input SendInput) (*DeliveryReport, error) {
	ctx, span := s.tracer.Start(ctx, "notices.send")
	defer span.End()
	span.SetAttributes(attribute.String("notice.label", input.Label))

	recipients := input.Recipients
	if !input.SkipGroups {
		expanded, err := s.ExpandRecipients(ctx, input.Label, input.Recipients)
		if err != nil {
			return nil, err
		}
		recipients = expanded
	}

	noticeType, err := s.store.GetNoticeTypeByLabel(ctx, input.Label)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrNoticeTypeNotFound
		}
		return nil, err
	}

	report := &DeliveryReport{Recipients: len(recipients)}
	for _, userID := range recipients {
		if err := s.sendToRecipient(ctx, noticeTypeFromRecord(noticeType), input, userID, report); err != nil {
			return nil, err
		}
	}

	s.log.Info().
		Str("label", input.Label).
		Int("recipients", report.Recipients).
		Int("delivered", report.Delivered).
		Int("failures", len(report.Failures)).
		Msg("notice dispatched")
	return report, nil
}

// sendToRecipient persists the on-site notice and attempts delivery over
// every enabled medium. Delivery failures are collected in the report so one
// broken mailbox never aborts the rest of the fan-out.
func (s *Service) sendToRecipient(ctx context.Context, noticeType NoticeType, input SendInput, userID string, report *DeliveryReport) error {
	contact, err := s.store.GetRecipient(ctx, userID)
	contactKnown := err == nil
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return err
	}

	printer := message.NewPrinter(s.localeFor(contact.Locale))
	data := s.templateContext(printer, noticeType, input, userID)

	canonical, err := s.renderer.Render(render.Request{
		TypeSlug:   noticeType.TemplateSlug(),
		MediumSlug: render.CanonicalMedium,
		Formats:    []string{render.CanonicalFormat},
		Data:       data,
		Printer:    printer,
	})
	if err != nil {
		return err
	}

	onSite, err := s.onSiteFor(ctx, userID, input)
	if err != nil {
		return err
	}

	noticeID, err := s.newID()
	if err != nil {
		return err
	}
	if err := s.store.PutNotice(ctx, storage.NoticeRecord{
		ID:              noticeID,
		RecipientID:     userID,
		SenderID:        input.SenderID,
		Label:           input.Label,
		Message:         canonical[render.CanonicalFormat],
		OnSite:          onSite,
		Unseen:          true,
		RelatedObjectID: input.RelatedObjectID,
		CreatedAt:       s.nowUTC(),
	}); err != nil {
		return err
	}

	// No contact row or an inactive recipient means the notice stays
	// on-site only.
	if !contactKnown || !contact.Active {
		return nil
	}

	backends := s.registry.All()
	if len(input.Mediums) > 0 {
		backends = s.registry.Subset(input.Mediums)
	}
	for _, b := range backends {
		enabled, err := s.ShouldSend(ctx, userID, input.Label, b.Slug())
		if err != nil {
			return err
		}
		if !enabled {
			continue
		}

		rendered, err := s.renderer.Render(render.Request{
			TypeSlug:   noticeType.TemplateSlug(),
			MediumSlug: b.Slug(),
			Formats:    b.Formats(),
			Data:       data,
			Printer:    printer,
		})
		if err != nil {
			return err
		}

		if err := b.Send(ctx, rendered, backend.Recipient{
			UserID:         userID,
			Email:          contact.Email,
			TelegramChatID: contact.TelegramChatID,
		}); err != nil {
			failure := &backend.DeliveryError{Medium: b.Slug(), Recipient: userID, Err: err}
			report.Failures = append(report.Failures, failure)
			s.log.Warn().Err(err).
				Str("medium", b.Slug()).
				Str("recipient", userID).
				Msg("notice delivery failed")
			continue
		}
		report.Delivered++
	}
	return nil
}

// templateContext assembles the render context: base keys, then context
// processors, then the per-dispatch extra, later layers winning.
func (s *Service) templateContext(printer *message.Printer, noticeType NoticeType, input SendInput, userID string) map[string]any {
	data := map[string]any{
		"recipient": userID,
		"sender":    input.SenderID,
		"notice":    localizeDisplay(printer, noticeType.Display),
		"current_site": map[string]any{
			"name": s.cfg.SiteName,
			"url":  s.cfg.SiteURL,
		},
	}
	for _, processor := range s.processors {
		for key, value := range processor() {
			data[key] = value
		}
	}
	for key, value := range input.Extra {
		data[key] = value
	}
	return data
}

// localizeDisplay resolves a display name through the recipient's message
// catalog. A literal percent sign is escaped so it is not read as a
// formatting verb.
func localizeDisplay(printer *message.Printer, display string) string {
	return printer.Sprintf(strings.ReplaceAll(display, "%", "%%"))
}

// onSiteFor resolves on-site visibility: an explicit request wins, otherwise
// the recipient's preference for the configured primary medium decides.
func (s *Service) onSiteFor(ctx context.Context, userID string, input SendInput) (bool, error) {
	if input.OnSite != nil {
		return *input.OnSite, nil
	}
	if !s.registry.Has(s.cfg.PrimaryMedium) {
		return true, nil
	}
	setting, err := s.Setting(ctx, userID, input.Label, s.cfg.PrimaryMedium)
	if err != nil {
		return false, fmt.Errorf("resolve on-site preference: %w", err)
	}
	return setting.OnSite, nil
}
