package notices

import (
	"context"
	"errors"
	"strings"

	"github.com/openclay/herald/internal/notices/storage"
)

// Setting is one user's delivery preference for a (notice type, medium) pair.
type Setting struct {
	UserID string
	Label  string
	Medium string
	// Send enables delivery over the medium.
	Send bool
	// OnSite keeps notices of this type visible in the on-site inbox.
	OnSite bool
}

// RowSettings is one notice type's preference row across every configured
// medium, in registry order.
type RowSettings struct {
	Type     NoticeType
	Settings []Setting
}

// Setting resolves one (user, label, medium) preference, materializing the
// default row on first access. The default enables a medium when its
// sensitivity is at most the notice type's default threshold.
func (s *Service) Setting(ctx context.Context, userID, label, medium string) (Setting, error) {
	if s == nil || s.store == nil {
		return Setting{}, ErrStoreNotConfigured
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return Setting{}, ErrUserIDRequired
	}
	label = strings.TrimSpace(label)
	if label == "" {
		return Setting{}, ErrLabelRequired
	}

	// Unknown mediums fail fast: a stored preference for a medium no
	// backend serves would silently never deliver.
	b, err := s.registry.Get(medium)
	if err != nil {
		return Setting{}, err
	}

	record, err := s.store.GetSetting(ctx, userID, label, medium)
	if err == nil {
		return settingFromRecord(record), nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return Setting{}, err
	}

	noticeType, err := s.store.GetNoticeTypeByLabel(ctx, label)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return Setting{}, ErrNoticeTypeNotFound
		}
		return Setting{}, err
	}

	fresh := storage.SettingRecord{
		UserID: userID,
		Label:  label,
		Medium: medium,
		Send:   b.Sensitivity() <= noticeType.Default,
		OnSite: true,
	}
	if err := s.store.InsertSetting(ctx, fresh); err != nil {
		// A concurrent resolver won the insert; their row is the truth.
		if errors.Is(err, storage.ErrConflict) {
			record, lookupErr := s.store.GetSetting(ctx, userID, label, medium)
			if lookupErr != nil {
				return Setting{}, lookupErr
			}
			return settingFromRecord(record), nil
		}
		return Setting{}, err
	}
	return settingFromRecord(fresh), nil
}

// ShouldSend reports whether a notice of the labeled type should be delivered
// to the user over the medium.
func (s *Service) ShouldSend(ctx context.Context, userID, label, medium string) (bool, error) {
	setting, err := s.Setting(ctx, userID, label, medium)
	if err != nil {
		return false, err
	}
	return setting.Send, nil
}

// UpdateSetting persists an explicit preference, materializing the row first
// so partial updates start from the defaults.
func (s *Service) UpdateSetting(ctx context.Context, input Setting) (Setting, error) {
	if _, err := s.Setting(ctx, input.UserID, input.Label, input.Medium); err != nil {
		return Setting{}, err
	}
	record := storage.SettingRecord{
		UserID: strings.TrimSpace(input.UserID),
		Label:  strings.TrimSpace(input.Label),
		Medium: input.Medium,
		Send:   input.Send,
		OnSite: input.OnSite,
	}
	if err := s.store.UpdateSetting(ctx, record); err != nil {
		return Setting{}, err
	}
	return settingFromRecord(record), nil
}

// SettingsForLabel returns one user's preferences for a single notice type,
// one setting per registered medium in registration order. Missing rows are
// materialized with their defaults on first call.
func (s *Service) SettingsForLabel(ctx context.Context, userID, label string) ([]Setting, error) {
	if s == nil || s.store == nil {
		return nil, ErrStoreNotConfigured
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, ErrUserIDRequired
	}
	label = strings.TrimSpace(label)
	if label == "" {
		return nil, ErrLabelRequired
	}

	existing, err := s.store.ListSettingsByLabel(ctx, userID, label)
	if err != nil {
		return nil, err
	}
	byMedium := make(map[string]Setting, len(existing))
	for _, record := range existing {
		byMedium[record.Medium] = settingFromRecord(record)
	}

	backends := s.registry.All()
	settings := make([]Setting, 0, len(backends))
	for _, b := range backends {
		if setting, ok := byMedium[b.Slug()]; ok {
			settings = append(settings, setting)
			continue
		}
		setting, err := s.Setting(ctx, userID, label, b.Slug())
		if err != nil {
			return nil, err
		}
		settings = append(settings, setting)
	}
	return settings, nil
}

// SettingsTable materializes one user's full preference table: every notice
// type crossed with every registered medium, defaults created as needed.
// Rows are ordered by label, columns by backend registration order.
func (s *Service) SettingsTable(ctx context.Context, userID string) ([]RowSettings, error) {
	if s == nil || s.store == nil {
		return nil, ErrStoreNotConfigured
	}
	types, err := s.NoticeTypes(ctx)
	if err != nil {
		return nil, err
	}

	backends := s.registry.All()
	rows := make([]RowSettings, 0, len(types))
	for _, noticeType := range types {
		row := RowSettings{
			Type:     noticeType,
			Settings: make([]Setting, 0, len(backends)),
		}
		for _, b := range backends {
			setting, err := s.Setting(ctx, userID, noticeType.Label, b.Slug())
			if err != nil {
				return nil, err
			}
			row.Settings = append(row.Settings, setting)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func settingFromRecord(record storage.SettingRecord) Setting {
	return Setting{
		UserID: record.UserID,
		Label:  record.Label,
		Medium: record.Medium,
		Send:   record.Send,
		OnSite: record.OnSite,
	}
}
