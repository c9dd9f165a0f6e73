// Package storage defines the persistence boundary for the notices service.
package storage

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound indicates a requested record is missing.
	ErrNotFound = errors.New("record not found")
	// ErrConflict indicates a write conflicted with uniqueness constraints.
	ErrConflict = errors.New("record conflict")
)

// NoticeTypeRecord stores one labeled notification category.
type NoticeTypeRecord struct {
	Label       string
	Display     string
	Description string
	// Slug overrides the template folder; empty means use the label.
	Slug string
	// Level references an optional NoticeLevelRecord by slug.
	Level string
	// Default is the sensitivity threshold: a medium is enabled by default
	// when its sensitivity is less than or equal to this value.
	Default int
}

// TemplateSlug returns the template folder for this notice type.
func (r NoticeTypeRecord) TemplateSlug() string {
	if r.Slug != "" {
		return r.Slug
	}
	return r.Label
}

// NoticeLevelRecord stores one descriptive severity classification.
type NoticeLevelRecord struct {
	Slug        string
	Title       string
	Description string
}

// SettingRecord stores one (user, notice type, medium) delivery preference.
type SettingRecord struct {
	UserID string
	Label  string
	Medium string
	Send   bool
	OnSite bool
}

// NoticeRecord stores one rendered, persisted notification instance.
type NoticeRecord struct {
	ID          string
	RecipientID string
	SenderID    string
	Label       string
	Message     string
	OnSite      bool
	Unseen      bool
	Archived    bool
	// RelatedObjectID loosely references an application object; it is not a
	// foreign key.
	RelatedObjectID string
	CreatedAt       time.Time
}

// NoticeFilter narrows notice listings. Nil pointer fields mean "any".
type NoticeFilter struct {
	// IncludeArchived keeps archived notices in the listing.
	IncludeArchived bool
	Unseen          *bool
	OnSite          *bool
	// Sent matches by sender instead of recipient.
	Sent bool
}

// QueueBatchRecord stores one opaque serialized batch of deferred dispatches.
type QueueBatchRecord struct {
	ID        string
	Payload   []byte
	CreatedAt time.Time
}

// GroupRecord stores one named collection of users.
type GroupRecord struct {
	Slug        string
	Name        string
	Description string
}

// RecipientRecord stores per-user contact and locale data used for delivery.
type RecipientRecord struct {
	UserID         string
	Email          string
	TelegramChatID int64
	// Locale is a BCP 47 tag; empty means no stored notification language.
	Locale string
	Active bool
}

// ObservedItemRecord stores one standing observation subscription.
type ObservedItemRecord struct {
	ID         string
	ObjectKind string
	ObjectID   string
	ObserverID string
	Label      string
	Signal     string
	CreatedAt  time.Time
}

// NoticeTypeStore persists notice type and level definitions.
type NoticeTypeStore interface {
	PutNoticeType(ctx context.Context, record NoticeTypeRecord) error
	GetNoticeTypeByLabel(ctx context.Context, label string) (NoticeTypeRecord, error)
	ListNoticeTypes(ctx context.Context) ([]NoticeTypeRecord, error)
	PutNoticeLevel(ctx context.Context, record NoticeLevelRecord) error
	GetNoticeLevelBySlug(ctx context.Context, slug string) (NoticeLevelRecord, error)
}

// SettingStore persists per-user delivery preferences.
//
// InsertSetting must return ErrConflict when the (user, label, medium) triple
// already exists; callers recover by re-fetching.
type SettingStore interface {
	GetSetting(ctx context.Context, userID, label, medium string) (SettingRecord, error)
	InsertSetting(ctx context.Context, record SettingRecord) error
	UpdateSetting(ctx context.Context, record SettingRecord) error
	ListSettingsByLabel(ctx context.Context, userID, label string) ([]SettingRecord, error)
}

// NoticeStore persists notification instances, newest first on listing.
type NoticeStore interface {
	PutNotice(ctx context.Context, record NoticeRecord) error
	GetNotice(ctx context.Context, id string) (NoticeRecord, error)
	ListNotices(ctx context.Context, userID string, filter NoticeFilter) ([]NoticeRecord, error)
	CountUnseen(ctx context.Context, userID string) (int, error)
	// MarkNoticeSeen flips unseen to false and reports whether the notice was
	// unseen before the call.
	MarkNoticeSeen(ctx context.Context, id string) (bool, error)
	MarkAllSeen(ctx context.Context, userID string) error
	ArchiveNotice(ctx context.Context, id string) error
}

// QueueStore persists deferred dispatch batches.
type QueueStore interface {
	PutQueueBatch(ctx context.Context, record QueueBatchRecord) error
	ListQueueBatches(ctx context.Context, limit int) ([]QueueBatchRecord, error)
	DeleteQueueBatch(ctx context.Context, id string) error
}

// GroupStore persists groups, their members and their subscriptions.
type GroupStore interface {
	PutGroup(ctx context.Context, record GroupRecord) error
	AddGroupMember(ctx context.Context, groupSlug, userID string) error
	SetGroupNoticeTypes(ctx context.Context, groupSlug string, labels []string) error
	// ListSubscribedMembers returns the ids of every member of every group
	// subscribed to the given notice type label.
	ListSubscribedMembers(ctx context.Context, label string) ([]string, error)
}

// RecipientStore persists delivery contact data.
type RecipientStore interface {
	PutRecipient(ctx context.Context, record RecipientRecord) error
	GetRecipient(ctx context.Context, userID string) (RecipientRecord, error)
}

// ObservationStore persists observation subscriptions.
type ObservationStore interface {
	PutObservedItem(ctx context.Context, record ObservedItemRecord) error
	ListObservedItems(ctx context.Context, kind, objectID, signal string) ([]ObservedItemRecord, error)
	ListObservedItemsForObserver(ctx context.Context, kind, objectID, observerID, signal string) ([]ObservedItemRecord, error)
	// DeleteObservedItems removes matching subscriptions and reports how many
	// rows were deleted.
	DeleteObservedItems(ctx context.Context, kind, objectID, observerID, signal string) (int, error)
}

// Store is the full persistence surface required by the notices service.
type Store interface {
	NoticeTypeStore
	SettingStore
	NoticeStore
	QueueStore
	GroupStore
	RecipientStore
	ObservationStore
}
