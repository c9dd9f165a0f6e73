package notices

import (
	"context"
	"strings"
	"time"

	"github.com/openclay/herald/internal/notices/storage"
)

// Notice is one persisted notification instance.
type Notice struct {
	ID              string
	RecipientID     string
	SenderID        string
	Label           string
	Message         string
	OnSite          bool
	Unseen          bool
	Archived        bool
	RelatedObjectID string
	CreatedAt       time.Time
}

// InboxFilter narrows an inbox listing. The zero value lists unarchived
// notices, newest first.
type InboxFilter struct {
	// IncludeArchived also lists archived notices.
	IncludeArchived bool
	// Unseen filters by seen state when set.
	Unseen *bool
	// OnSite filters by on-site visibility when set.
	OnSite *bool
	// Sent lists notices the user sent instead of received.
	Sent bool
}

// NoticesFor lists a user's notices honoring the filter.
func (s *Service) NoticesFor(ctx context.Context, userID string, filter InboxFilter) ([]Notice, error) {
	if s == nil || s.store == nil {
		return nil, ErrStoreNotConfigured
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, ErrUserIDRequired
	}
	records, err := s.store.ListNotices(ctx, userID, storage.NoticeFilter{
		IncludeArchived: filter.IncludeArchived,
		Unseen:          filter.Unseen,
		OnSite:          filter.OnSite,
		Sent:            filter.Sent,
	})
	if err != nil {
		return nil, err
	}
	results := make([]Notice, 0, len(records))
	for _, record := range records {
		results = append(results, noticeFromRecord(record))
	}
	return results, nil
}

// UnseenCount returns the number of unseen, unarchived notices.
func (s *Service) UnseenCount(ctx context.Context, userID string) (int, error) {
	if s == nil || s.store == nil {
		return 0, ErrStoreNotConfigured
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return 0, ErrUserIDRequired
	}
	return s.store.CountUnseen(ctx, userID)
}

// MarkSeen marks one notice as seen and reports whether it was unseen.
func (s *Service) MarkSeen(ctx context.Context, noticeID string) (bool, error) {
	if s == nil || s.store == nil {
		return false, ErrStoreNotConfigured
	}
	return s.store.MarkNoticeSeen(ctx, strings.TrimSpace(noticeID))
}

// MarkAllSeen marks every unseen notice of one user as seen.
func (s *Service) MarkAllSeen(ctx context.Context, userID string) error {
	if s == nil || s.store == nil {
		return ErrStoreNotConfigured
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return ErrUserIDRequired
	}
	return s.store.MarkAllSeen(ctx, userID)
}

// Archive hides one notice from default listings. Archiving twice is a
// no-op.
func (s *Service) Archive(ctx context.Context, noticeID string) error {
	if s == nil || s.store == nil {
		return ErrStoreNotConfigured
	}
	return s.store.ArchiveNotice(ctx, strings.TrimSpace(noticeID))
}

// NoticeByID loads one notice.
func (s *Service) NoticeByID(ctx context.Context, noticeID string) (Notice, error) {
	if s == nil || s.store == nil {
		return Notice{}, ErrStoreNotConfigured
	}
	record, err := s.store.GetNotice(ctx, strings.TrimSpace(noticeID))
	if err != nil {
		return Notice{}, err
	}
	return noticeFromRecord(record), nil
}

func noticeFromRecord(record storage.NoticeRecord) Notice {
	return Notice{
		ID:              record.ID,
		RecipientID:     record.RecipientID,
		SenderID:        record.SenderID,
		Label:           record.Label,
		Message:         record.Message,
		OnSite:          record.OnSite,
		Unseen:          record.Unseen,
		Archived:        record.Archived,
		RelatedObjectID: record.RelatedObjectID,
		CreatedAt:       record.CreatedAt,
	}
}
