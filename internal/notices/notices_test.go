package notices

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"testing/fstest"
	"time"

	"github.com/openclay/herald/internal/notices/backend"
	"github.com/openclay/herald/internal/notices/render"
	"github.com/openclay/herald/internal/notices/storage"
)

type fakeStore struct {
	mu sync.Mutex

	types      map[string]storage.NoticeTypeRecord
	levels     map[string]storage.NoticeLevelRecord
	settings   map[string]storage.SettingRecord
	notices    map[string]storage.NoticeRecord
	batches    []storage.QueueBatchRecord
	groups     map[string]storage.GroupRecord
	members    map[string]map[string]bool
	groupTypes map[string]map[string]bool
	recipients map[string]storage.RecipientRecord
	observed   []storage.ObservedItemRecord

	// insertSettingConflicts forces the next N setting inserts to report
	// a uniqueness conflict, simulating a concurrent writer.
	insertSettingConflicts int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		types:      make(map[string]storage.NoticeTypeRecord),
		levels:     make(map[string]storage.NoticeLevelRecord),
		settings:   make(map[string]storage.SettingRecord),
		notices:    make(map[string]storage.NoticeRecord),
		groups:     make(map[string]storage.GroupRecord),
		members:    make(map[string]map[string]bool),
		groupTypes: make(map[string]map[string]bool),
		recipients: make(map[string]storage.RecipientRecord),
	}
}

func settingKey(userID, label, medium string) string {
	return userID + "|" + label + "|" + medium
}

func (f *fakeStore) PutNoticeType(_ context.Context, record storage.NoticeTypeRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.types[record.Label] = record
	return nil
}

func (f *fakeStore) GetNoticeTypeByLabel(_ context.Context, label string) (storage.NoticeTypeRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	record, ok := f.types[label]
	if !ok {
		return storage.NoticeTypeRecord{}, storage.ErrNotFound
	}
	return record, nil
}

func (f *fakeStore) ListNoticeTypes(_ context.Context) ([]storage.NoticeTypeRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	labels := make([]string, 0, len(f.types))
	for label := range f.types {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	results := make([]storage.NoticeTypeRecord, 0, len(labels))
	for _, label := range labels {
		results = append(results, f.types[label])
	}
	return results, nil
}

func (f *fakeStore) PutNoticeLevel(_ context.Context, record storage.NoticeLevelRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.levels[record.Slug] = record
	return nil
}

func (f *fakeStore) GetNoticeLevelBySlug(_ context.Context, slug string) (storage.NoticeLevelRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	record, ok := f.levels[slug]
	if !ok {
		return storage.NoticeLevelRecord{}, storage.ErrNotFound
	}
	return record, nil
}

func (f *fakeStore) GetSetting(_ context.Context, userID, label, medium string) (storage.SettingRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	record, ok := f.settings[settingKey(userID, label, medium)]
	if !ok {
		return storage.SettingRecord{}, storage.ErrNotFound
	}
	return record, nil
}

func (f *fakeStore) InsertSetting(_ context.Context, record storage.SettingRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := settingKey(record.UserID, record.Label, record.Medium)
	if f.insertSettingConflicts > 0 {
		f.insertSettingConflicts--
		// The concurrent writer's row lands with inverted flags so the
		// test can tell whose write survived.
		f.settings[key] = storage.SettingRecord{
			UserID: record.UserID,
			Label:  record.Label,
			Medium: record.Medium,
			Send:   !record.Send,
			OnSite: record.OnSite,
		}
		return storage.ErrConflict
	}
	if _, exists := f.settings[key]; exists {
		return storage.ErrConflict
	}
	f.settings[key] = record
	return nil
}

func (f *fakeStore) UpdateSetting(_ context.Context, record storage.SettingRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := settingKey(record.UserID, record.Label, record.Medium)
	if _, exists := f.settings[key]; !exists {
		return storage.ErrNotFound
	}
	f.settings[key] = record
	return nil
}

func (f *fakeStore) ListSettingsByLabel(_ context.Context, userID, label string) ([]storage.SettingRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var results []storage.SettingRecord
	for _, record := range f.settings {
		if record.UserID == userID && record.Label == label {
			results = append(results, record)
		}
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Medium < results[j].Medium })
	return results, nil
}

func (f *fakeStore) PutNotice(_ context.Context, record storage.NoticeRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.notices[record.ID]; exists {
		return storage.ErrConflict
	}
	f.notices[record.ID] = record
	return nil
}

func (f *fakeStore) GetNotice(_ context.Context, id string) (storage.NoticeRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	record, ok := f.notices[id]
	if !ok {
		return storage.NoticeRecord{}, storage.ErrNotFound
	}
	return record, nil
}

func (f *fakeStore) ListNotices(_ context.Context, userID string, filter storage.NoticeFilter) ([]storage.NoticeRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var results []storage.NoticeRecord
	for _, record := range f.notices {
		if filter.Sent {
			if record.SenderID != userID {
				continue
			}
		} else if record.RecipientID != userID {
			continue
		}
		if record.Archived && !filter.IncludeArchived {
			continue
		}
		if filter.Unseen != nil && record.Unseen != *filter.Unseen {
			continue
		}
		if filter.OnSite != nil && record.OnSite != *filter.OnSite {
			continue
		}
		results = append(results, record)
	}
	sort.Slice(results, func(i, j int) bool {
		if !results[i].CreatedAt.Equal(results[j].CreatedAt) {
			return results[i].CreatedAt.After(results[j].CreatedAt)
		}
		return results[i].ID > results[j].ID
	})
	return results, nil
}

func (f *fakeStore) CountUnseen(_ context.Context, userID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, record := range f.notices {
		if record.RecipientID == userID && record.Unseen && !record.Archived {
			count++
		}
	}
	return count, nil
}

func (f *fakeStore) MarkNoticeSeen(_ context.Context, id string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	record, ok := f.notices[id]
	if !ok {
		return false, storage.ErrNotFound
	}
	if !record.Unseen {
		return false, nil
	}
	record.Unseen = false
	f.notices[id] = record
	return true, nil
}

func (f *fakeStore) MarkAllSeen(_ context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, record := range f.notices {
		if record.RecipientID == userID && record.Unseen {
			record.Unseen = false
			f.notices[id] = record
		}
	}
	return nil
}

func (f *fakeStore) ArchiveNotice(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	record, ok := f.notices[id]
	if !ok {
		return storage.ErrNotFound
	}
	record.Archived = true
	f.notices[id] = record
	return nil
}

func (f *fakeStore) PutQueueBatch(_ context.Context, record storage.QueueBatchRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches = append(f.batches, record)
	return nil
}

func (f *fakeStore) ListQueueBatches(_ context.Context, limit int) ([]storage.QueueBatchRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	results := make([]storage.QueueBatchRecord, 0, len(f.batches))
	for i, record := range f.batches {
		if i >= limit {
			break
		}
		results = append(results, record)
	}
	return results, nil
}

func (f *fakeStore) DeleteQueueBatch(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, record := range f.batches {
		if record.ID == id {
			f.batches = append(f.batches[:i], f.batches[i+1:]...)
			return nil
		}
	}
	return storage.ErrNotFound
}

func (f *fakeStore) PutGroup(_ context.Context, record storage.GroupRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.groups[record.Slug] = record
	return nil
}

func (f *fakeStore) AddGroupMember(_ context.Context, groupSlug, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.members[groupSlug] == nil {
		f.members[groupSlug] = make(map[string]bool)
	}
	f.members[groupSlug][userID] = true
	return nil
}

func (f *fakeStore) SetGroupNoticeTypes(_ context.Context, groupSlug string, labels []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	set := make(map[string]bool, len(labels))
	for _, label := range labels {
		set[label] = true
	}
	f.groupTypes[groupSlug] = set
	return nil
}

func (f *fakeStore) ListSubscribedMembers(_ context.Context, label string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	seen := make(map[string]bool)
	for groupSlug, labels := range f.groupTypes {
		if !labels[label] {
			continue
		}
		for userID := range f.members[groupSlug] {
			seen[userID] = true
		}
	}
	results := make([]string, 0, len(seen))
	for userID := range seen {
		results = append(results, userID)
	}
	sort.Strings(results)
	return results, nil
}

func (f *fakeStore) PutRecipient(_ context.Context, record storage.RecipientRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recipients[record.UserID] = record
	return nil
}

func (f *fakeStore) GetRecipient(_ context.Context, userID string) (storage.RecipientRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	record, ok := f.recipients[userID]
	if !ok {
		return storage.RecipientRecord{}, storage.ErrNotFound
	}
	return record, nil
}

func (f *fakeStore) PutObservedItem(_ context.Context, record storage.ObservedItemRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.observed = append(f.observed, record)
	return nil
}

func (f *fakeStore) ListObservedItems(_ context.Context, kind, objectID, signal string) ([]storage.ObservedItemRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var results []storage.ObservedItemRecord
	for _, record := range f.observed {
		if record.ObjectKind == kind && record.ObjectID == objectID && record.Signal == signal {
			results = append(results, record)
		}
	}
	return results, nil
}

func (f *fakeStore) ListObservedItemsForObserver(_ context.Context, kind, objectID, observerID, signal string) ([]storage.ObservedItemRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var results []storage.ObservedItemRecord
	for _, record := range f.observed {
		if record.ObjectKind == kind && record.ObjectID == objectID && record.ObserverID == observerID && record.Signal == signal {
			results = append(results, record)
		}
	}
	return results, nil
}

func (f *fakeStore) DeleteObservedItems(_ context.Context, kind, objectID, observerID, signal string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := f.observed[:0]
	deleted := 0
	for _, record := range f.observed {
		if record.ObjectKind == kind && record.ObjectID == objectID && record.ObserverID == observerID && record.Signal == signal {
			deleted++
			continue
		}
		kept = append(kept, record)
	}
	f.observed = kept
	return deleted, nil
}

// fakeBackend records deliveries and optionally fails for chosen recipients.
type fakeBackend struct {
	mu sync.Mutex

	slug        string
	sensitivity int
	formats     []string

	failFor map[string]error
	sent    []fakeDelivery
}

type fakeDelivery struct {
	Recipient backend.Recipient
	Rendered  map[string]string
}

func newFakeBackend(slug string, sensitivity int, formats ...string) *fakeBackend {
	if len(formats) == 0 {
		formats = []string{"short.txt", "full.txt"}
	}
	return &fakeBackend{
		slug:        slug,
		sensitivity: sensitivity,
		formats:     formats,
		failFor:     make(map[string]error),
	}
}

func (b *fakeBackend) Slug() string      { return b.slug }
func (b *fakeBackend) Title() string     { return b.slug }
func (b *fakeBackend) Sensitivity() int  { return b.sensitivity }
func (b *fakeBackend) Formats() []string { return b.formats }

func (b *fakeBackend) Send(_ context.Context, rendered map[string]string, recipient backend.Recipient) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.failFor[recipient.UserID]; err != nil {
		return err
	}
	b.sent = append(b.sent, fakeDelivery{Recipient: recipient, Rendered: rendered})
	return nil
}

func (b *fakeBackend) deliveries() []fakeDelivery {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]fakeDelivery(nil), b.sent...)
}

func fixedClock(value time.Time) func() time.Time {
	return func() time.Time { return value }
}

func sequentialIDs() func() (string, error) {
	var mu sync.Mutex
	next := 0
	return func() (string, error) {
		mu.Lock()
		defer mu.Unlock()
		next++
		return fmt.Sprintf("id-%03d", next), nil
	}
}

func fixedTestTime() time.Time {
	return time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
}

func backendRegistry(backends ...backend.Backend) (*backend.Registry, error) {
	return backend.NewRegistry(backends...)
}

func noticesRenderer() (*render.Renderer, error) {
	return render.New(testTemplates())
}

func testTemplates() fstest.MapFS {
	return fstest.MapFS{
		"notice.html": {Data: []byte(`{{T .notice}} for {{.recipient}}`)},
		"short.txt":   {Data: []byte(`{{T .notice}}`)},
		"full.txt":    {Data: []byte(`{{T .notice}} from {{.current_site.name}}`)},
		"message.txt": {Data: []byte(`{{T .notice}}`)},
	}
}

func newTestService(t *testing.T, cfg Config, store storage.Store, backends ...backend.Backend) *Service {
	t.Helper()
	registry, err := backend.NewRegistry(backends...)
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}
	renderer, err := render.New(testTemplates())
	if err != nil {
		t.Fatalf("new renderer: %v", err)
	}
	return NewService(cfg, store, registry, renderer,
		WithClock(fixedClock(fixedTestTime())),
		WithIDGenerator(sequentialIDs()),
	)
}

func registerType(t *testing.T, service *Service, noticeType NoticeType) {
	t.Helper()
	if err := service.CreateNoticeType(context.Background(), noticeType); err != nil {
		t.Fatalf("create notice type %s: %v", noticeType.Label, err)
	}
}
