package notices

import (
	"context"
	"errors"
	"strings"

	"github.com/openclay/herald/internal/notices/storage"
)

// NoticeType classifies notices and anchors preference defaults.
type NoticeType struct {
	// Label is the unique machine identifier, e.g. "friends_invite".
	Label string
	// Display is the short human-readable name shown in settings.
	Display string
	// Description explains when this notice fires.
	Description string
	// Slug overrides the template directory name; empty means Label.
	Slug string
	// Level is an optional severity slug.
	Level string
	// Default is the sensitivity threshold: a medium is enabled by
	// default when its sensitivity is at most this value.
	Default int
}

// TemplateSlug is the directory templates for this type live under.
func (t NoticeType) TemplateSlug() string {
	if t.Slug != "" {
		return t.Slug
	}
	return t.Label
}

// NoticeLevel is a severity classification attachable to notice types.
type NoticeLevel struct {
	Slug        string
	Title       string
	Description string
}

// CreateNoticeType registers or refreshes a notice type. An existing
// definition is rewritten only when a field actually changed, so repeated
// startup registration is cheap and idempotent.
func (s *Service) CreateNoticeType(ctx context.Context, input NoticeType) error {
	if s == nil || s.store == nil {
		return ErrStoreNotConfigured
	}
	input.Label = strings.TrimSpace(input.Label)
	if input.Label == "" {
		return ErrLabelRequired
	}
	input.Display = strings.TrimSpace(input.Display)
	input.Description = strings.TrimSpace(input.Description)
	input.Slug = strings.TrimSpace(input.Slug)
	input.Level = strings.TrimSpace(input.Level)

	existing, err := s.store.GetNoticeTypeByLabel(ctx, input.Label)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			return err
		}
	} else if existing == noticeTypeRecord(input) {
		return nil
	}

	if err := s.store.PutNoticeType(ctx, noticeTypeRecord(input)); err != nil {
		return err
	}
	s.log.Debug().Str("label", input.Label).Msg("notice type registered")
	return nil
}

// NoticeTypeByLabel loads one notice type definition.
func (s *Service) NoticeTypeByLabel(ctx context.Context, label string) (NoticeType, error) {
	if s == nil || s.store == nil {
		return NoticeType{}, ErrStoreNotConfigured
	}
	record, err := s.store.GetNoticeTypeByLabel(ctx, strings.TrimSpace(label))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return NoticeType{}, ErrNoticeTypeNotFound
		}
		return NoticeType{}, err
	}
	return noticeTypeFromRecord(record), nil
}

// NoticeTypes lists every registered notice type ordered by label.
func (s *Service) NoticeTypes(ctx context.Context) ([]NoticeType, error) {
	if s == nil || s.store == nil {
		return nil, ErrStoreNotConfigured
	}
	records, err := s.store.ListNoticeTypes(ctx)
	if err != nil {
		return nil, err
	}
	results := make([]NoticeType, 0, len(records))
	for _, record := range records {
		results = append(results, noticeTypeFromRecord(record))
	}
	return results, nil
}

// CreateNoticeLevel registers or refreshes a severity classification.
func (s *Service) CreateNoticeLevel(ctx context.Context, input NoticeLevel) error {
	if s == nil || s.store == nil {
		return ErrStoreNotConfigured
	}
	input.Slug = strings.TrimSpace(input.Slug)
	if input.Slug == "" {
		return ErrLabelRequired
	}
	return s.store.PutNoticeLevel(ctx, storage.NoticeLevelRecord{
		Slug:        input.Slug,
		Title:       strings.TrimSpace(input.Title),
		Description: strings.TrimSpace(input.Description),
	})
}

// NoticeLevelBySlug loads one severity classification.
func (s *Service) NoticeLevelBySlug(ctx context.Context, slug string) (NoticeLevel, error) {
	if s == nil || s.store == nil {
		return NoticeLevel{}, ErrStoreNotConfigured
	}
	record, err := s.store.GetNoticeLevelBySlug(ctx, strings.TrimSpace(slug))
	if err != nil {
		return NoticeLevel{}, err
	}
	return NoticeLevel{Slug: record.Slug, Title: record.Title, Description: record.Description}, nil
}

func noticeTypeRecord(t NoticeType) storage.NoticeTypeRecord {
	return storage.NoticeTypeRecord{
		Label:       t.Label,
		Display:     t.Display,
		Description: t.Description,
		Slug:        t.Slug,
		Level:       t.Level,
		Default:     t.Default,
	}
}

func noticeTypeFromRecord(record storage.NoticeTypeRecord) NoticeType {
	return NoticeType{
		Label:       record.Label,
		Display:     record.Display,
		Description: record.Description,
		Slug:        record.Slug,
		Level:       record.Level,
		Default:     record.Default,
	}
}
