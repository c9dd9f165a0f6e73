// Package sqlite provides SQLite-backed persistence for the notices service.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/openclay/herald/internal/notices/storage"
	"github.com/openclay/herald/internal/notices/storage/sqlite/migrations"
	"github.com/openclay/herald/internal/platform/storage/sqlitemigrate"
	_ "modernc.org/sqlite"
)

// Store provides SQLite-backed persistence for notices state.
type Store struct {
	sqlDB *sql.DB
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens a notices SQLite store at the provided path.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	store := &Store{sqlDB: sqlDB}
	if err := sqlitemigrate.ApplyMigrations(sqlDB, migrations.FS); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return store, nil
}

// Close closes the underlying SQLite database.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func (s *Store) ready(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	return nil
}

// PutNoticeType upserts one notice type definition keyed by label.
func (s *Store) PutNoticeType(ctx context.Context, record storage.NoticeTypeRecord) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	record.Label = strings.TrimSpace(record.Label)
	if record.Label == "" {
		return fmt.Errorf("notice type label is required")
	}

	_, err := s.sqlDB.ExecContext(ctx, `
	INSERT INTO notice_types (label, display, description, slug, level, sensitivity_default)
	VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT(label) DO UPDATE SET
		display = excluded.display,
		description = excluded.description,
		slug = excluded.slug,
		level = excluded.level,
		sensitivity_default = excluded.sensitivity_default
	`, record.Label, record.Display, record.Description, record.Slug, record.Level, record.Default)
	if err != nil {
		return fmt.Errorf("put notice type: %w", err)
	}
	return nil
}

// GetNoticeTypeByLabel loads one notice type by its unique label.
func (s *Store) GetNoticeTypeByLabel(ctx context.Context, label string) (storage.NoticeTypeRecord, error) {
	if err := s.ready(ctx); err != nil {
		return storage.NoticeTypeRecord{}, err
	}

	row := s.sqlDB.QueryRowContext(ctx, `
SELECT label, display, description, slug, level, sensitivity_default
FROM notice_types
WHERE label = ?
`, strings.TrimSpace(label))
	var record storage.NoticeTypeRecord
	if err := row.Scan(&record.Label, &record.Display, &record.Description, &record.Slug, &record.Level, &record.Default); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.NoticeTypeRecord{}, storage.ErrNotFound
		}
		return storage.NoticeTypeRecord{}, fmt.Errorf("get notice type: %w", err)
	}
	return record, nil
}

// ListNoticeTypes lists all notice type definitions ordered by label.
func (s *Store) ListNoticeTypes(ctx context.Context) ([]storage.NoticeTypeRecord, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT label, display, description, slug, level, sensitivity_default
FROM notice_types
ORDER BY label
`)
	if err != nil {
		return nil, fmt.Errorf("list notice types: %w", err)
	}
	defer rows.Close()

	var results []storage.NoticeTypeRecord
	for rows.Next() {
		var record storage.NoticeTypeRecord
		if err := rows.Scan(&record.Label, &record.Display, &record.Description, &record.Slug, &record.Level, &record.Default); err != nil {
			return nil, fmt.Errorf("scan notice type row: %w", err)
		}
		results = append(results, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate notice type rows: %w", err)
	}
	return results, nil
}

// PutNoticeLevel upserts one severity classification keyed by slug.
func (s *Store) PutNoticeLevel(ctx context.Context, record storage.NoticeLevelRecord) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	record.Slug = strings.TrimSpace(record.Slug)
	if record.Slug == "" {
		return fmt.Errorf("notice level slug is required")
	}

	_, err := s.sqlDB.ExecContext(ctx, `
	INSERT INTO notice_levels (slug, title, description)
	VALUES (?, ?, ?)
	ON CONFLICT(slug) DO UPDATE SET
		title = excluded.title,
		description = excluded.description
	`, record.Slug, record.Title, record.Description)
	if err != nil {
		return fmt.Errorf("put notice level: %w", err)
	}
	return nil
}

// GetNoticeLevelBySlug loads one severity classification.
func (s *Store) GetNoticeLevelBySlug(ctx context.Context, slug string) (storage.NoticeLevelRecord, error) {
	if err := s.ready(ctx); err != nil {
		return storage.NoticeLevelRecord{}, err
	}

	row := s.sqlDB.QueryRowContext(ctx, `
SELECT slug, title, description FROM notice_levels WHERE slug = ?
`, strings.TrimSpace(slug))
	var record storage.NoticeLevelRecord
	if err := row.Scan(&record.Slug, &record.Title, &record.Description); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.NoticeLevelRecord{}, storage.ErrNotFound
		}
		return storage.NoticeLevelRecord{}, fmt.Errorf("get notice level: %w", err)
	}
	return record, nil
}

// GetSetting loads one (user, label, medium) preference.
func (s *Store) GetSetting(ctx context.Context, userID, label, medium string) (storage.SettingRecord, error) {
	if err := s.ready(ctx); err != nil {
		return storage.SettingRecord{}, err
	}

	row := s.sqlDB.QueryRowContext(ctx, `
SELECT user_id, label, medium, send, on_site
FROM notice_settings
WHERE user_id = ? AND label = ? AND medium = ?
`, userID, label, medium)
	record, err := scanSetting(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.SettingRecord{}, storage.ErrNotFound
		}
		return storage.SettingRecord{}, fmt.Errorf("get setting: %w", err)
	}
	return record, nil
}

// InsertSetting creates one preference row; ErrConflict when the triple exists.
func (s *Store) InsertSetting(ctx context.Context, record storage.SettingRecord) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if record.UserID == "" || record.Label == "" || record.Medium == "" {
		return fmt.Errorf("setting user, label and medium are required")
	}

	_, err := s.sqlDB.ExecContext(ctx, `
	INSERT INTO notice_settings (user_id, label, medium, send, on_site)
	VALUES (?, ?, ?, ?, ?)
	`, record.UserID, record.Label, record.Medium, boolToInt(record.Send), boolToInt(record.OnSite))
	if err != nil {
		if isUniqueConstraintError(err) {
			return storage.ErrConflict
		}
		return fmt.Errorf("insert setting: %w", err)
	}
	return nil
}

// UpdateSetting rewrites the send/on_site flags of one existing preference.
func (s *Store) UpdateSetting(ctx context.Context, record storage.SettingRecord) error {
	if err := s.ready(ctx); err != nil {
		return err
	}

	result, err := s.sqlDB.ExecContext(ctx, `
	UPDATE notice_settings SET send = ?, on_site = ?
	WHERE user_id = ? AND label = ? AND medium = ?
	`, boolToInt(record.Send), boolToInt(record.OnSite), record.UserID, record.Label, record.Medium)
	if err != nil {
		return fmt.Errorf("update setting: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update setting rows affected: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// ListSettingsByLabel lists one user's preferences for a label, ordered by medium.
func (s *Store) ListSettingsByLabel(ctx context.Context, userID, label string) ([]storage.SettingRecord, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT user_id, label, medium, send, on_site
FROM notice_settings
WHERE user_id = ? AND label = ?
ORDER BY medium
`, userID, label)
	if err != nil {
		return nil, fmt.Errorf("list settings: %w", err)
	}
	defer rows.Close()

	var results []storage.SettingRecord
	for rows.Next() {
		record, scanErr := scanSetting(rows.Scan)
		if scanErr != nil {
			return nil, fmt.Errorf("scan setting row: %w", scanErr)
		}
		results = append(results, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate setting rows: %w", err)
	}
	return results, nil
}

// PutNotice persists one notification instance.
func (s *Store) PutNotice(ctx context.Context, record storage.NoticeRecord) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if record.ID == "" {
		return fmt.Errorf("notice id is required")
	}
	if record.RecipientID == "" {
		return fmt.Errorf("notice recipient is required")
	}
	if record.CreatedAt.IsZero() {
		return fmt.Errorf("notice created_at is required")
	}

	_, err := s.sqlDB.ExecContext(ctx, `
	INSERT INTO notices (
		id, recipient_id, sender_id, label, message, on_site, unseen, archived, related_object_id, created_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		record.ID,
		record.RecipientID,
		record.SenderID,
		record.Label,
		record.Message,
		boolToInt(record.OnSite),
		boolToInt(record.Unseen),
		boolToInt(record.Archived),
		record.RelatedObjectID,
		toMillis(record.CreatedAt),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return storage.ErrConflict
		}
		return fmt.Errorf("put notice: %w", err)
	}
	return nil
}

// GetNotice loads one notice by id.
func (s *Store) GetNotice(ctx context.Context, id string) (storage.NoticeRecord, error) {
	if err := s.ready(ctx); err != nil {
		return storage.NoticeRecord{}, err
	}

	row := s.sqlDB.QueryRowContext(ctx, `
SELECT id, recipient_id, sender_id, label, message, on_site, unseen, archived, related_object_id, created_at
FROM notices
WHERE id = ?
`, id)
	record, err := scanNotice(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.NoticeRecord{}, storage.ErrNotFound
		}
		return storage.NoticeRecord{}, fmt.Errorf("get notice: %w", err)
	}
	return record, nil
}

// ListNotices lists one user's notices newest first, honoring the filter.
func (s *Store) ListNotices(ctx context.Context, userID string, filter storage.NoticeFilter) ([]storage.NoticeRecord, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	if userID == "" {
		return nil, fmt.Errorf("user id is required")
	}

	query := `
SELECT id, recipient_id, sender_id, label, message, on_site, unseen, archived, related_object_id, created_at
FROM notices
WHERE `
	args := make([]any, 0, 5)
	if filter.Sent {
		query += "sender_id = ?"
	} else {
		query += "recipient_id = ?"
	}
	args = append(args, userID)

	if !filter.IncludeArchived {
		query += " AND archived = 0"
	}
	if filter.Unseen != nil {
		query += " AND unseen = ?"
		args = append(args, boolToInt(*filter.Unseen))
	}
	if filter.OnSite != nil {
		query += " AND on_site = ?"
		args = append(args, boolToInt(*filter.OnSite))
	}
	query += " ORDER BY created_at DESC, id DESC"

	rows, err := s.sqlDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list notices: %w", err)
	}
	defer rows.Close()

	var results []storage.NoticeRecord
	for rows.Next() {
		record, scanErr := scanNotice(rows.Scan)
		if scanErr != nil {
			return nil, fmt.Errorf("scan notice row: %w", scanErr)
		}
		results = append(results, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate notice rows: %w", err)
	}
	return results, nil
}

// CountUnseen returns the number of unseen, unarchived notices for one recipient.
func (s *Store) CountUnseen(ctx context.Context, userID string) (int, error) {
	if err := s.ready(ctx); err != nil {
		return 0, err
	}

	var count int
	if err := s.sqlDB.QueryRowContext(ctx, `
SELECT COUNT(1) FROM notices
WHERE recipient_id = ? AND unseen = 1 AND archived = 0
`, userID).Scan(&count); err != nil {
		return 0, fmt.Errorf("count unseen notices: %w", err)
	}
	return count, nil
}

// MarkNoticeSeen flips unseen to false once and reports the previous state.
func (s *Store) MarkNoticeSeen(ctx context.Context, id string) (bool, error) {
	if err := s.ready(ctx); err != nil {
		return false, err
	}

	result, err := s.sqlDB.ExecContext(ctx, `
	UPDATE notices SET unseen = 0 WHERE id = ? AND unseen = 1
	`, id)
	if err != nil {
		return false, fmt.Errorf("mark notice seen: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark notice seen rows affected: %w", err)
	}
	if affected > 0 {
		return true, nil
	}

	// Nothing flipped: distinguish "already seen" from "missing".
	if _, err := s.GetNotice(ctx, id); err != nil {
		return false, err
	}
	return false, nil
}

// MarkAllSeen marks every unseen notice of one recipient as seen.
func (s *Store) MarkAllSeen(ctx context.Context, userID string) error {
	if err := s.ready(ctx); err != nil {
		return err
	}

	if _, err := s.sqlDB.ExecContext(ctx, `
	UPDATE notices SET unseen = 0 WHERE recipient_id = ? AND unseen = 1
	`, userID); err != nil {
		return fmt.Errorf("mark all seen: %w", err)
	}
	return nil
}

// ArchiveNotice sets the archived flag; repeat calls are no-ops.
func (s *Store) ArchiveNotice(ctx context.Context, id string) error {
	if err := s.ready(ctx); err != nil {
		return err
	}

	result, err := s.sqlDB.ExecContext(ctx, `
	UPDATE notices SET archived = 1 WHERE id = ?
	`, id)
	if err != nil {
		return fmt.Errorf("archive notice: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("archive notice rows affected: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// PutQueueBatch persists one serialized dispatch batch.
func (s *Store) PutQueueBatch(ctx context.Context, record storage.QueueBatchRecord) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if record.ID == "" {
		return fmt.Errorf("queue batch id is required")
	}
	if record.CreatedAt.IsZero() {
		return fmt.Errorf("queue batch created_at is required")
	}

	_, err := s.sqlDB.ExecContext(ctx, `
	INSERT INTO notice_queue_batches (id, payload, created_at) VALUES (?, ?, ?)
	`, record.ID, record.Payload, toMillis(record.CreatedAt))
	if err != nil {
		if isUniqueConstraintError(err) {
			return storage.ErrConflict
		}
		return fmt.Errorf("put queue batch: %w", err)
	}
	return nil
}

// ListQueueBatches lists pending batches oldest first.
func (s *Store) ListQueueBatches(ctx context.Context, limit int) ([]storage.QueueBatchRecord, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be greater than zero")
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT id, payload, created_at
FROM notice_queue_batches
ORDER BY created_at ASC, id ASC
LIMIT ?
`, limit)
	if err != nil {
		return nil, fmt.Errorf("list queue batches: %w", err)
	}
	defer rows.Close()

	var results []storage.QueueBatchRecord
	for rows.Next() {
		var record storage.QueueBatchRecord
		var createdAt int64
		if err := rows.Scan(&record.ID, &record.Payload, &createdAt); err != nil {
			return nil, fmt.Errorf("scan queue batch row: %w", err)
		}
		record.CreatedAt = fromMillis(createdAt)
		results = append(results, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate queue batch rows: %w", err)
	}
	return results, nil
}

// DeleteQueueBatch removes one processed batch.
func (s *Store) DeleteQueueBatch(ctx context.Context, id string) error {
	if err := s.ready(ctx); err != nil {
		return err
	}

	result, err := s.sqlDB.ExecContext(ctx, `DELETE FROM notice_queue_batches WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete queue batch: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete queue batch rows affected: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// PutGroup upserts one group keyed by slug.
func (s *Store) PutGroup(ctx context.Context, record storage.GroupRecord) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	record.Slug = strings.TrimSpace(record.Slug)
	if record.Slug == "" {
		return fmt.Errorf("group slug is required")
	}

	_, err := s.sqlDB.ExecContext(ctx, `
	INSERT INTO groups (slug, name, description) VALUES (?, ?, ?)
	ON CONFLICT(slug) DO UPDATE SET
		name = excluded.name,
		description = excluded.description
	`, record.Slug, record.Name, record.Description)
	if err != nil {
		return fmt.Errorf("put group: %w", err)
	}
	return nil
}

// AddGroupMember adds one user to a group; repeat adds are no-ops.
func (s *Store) AddGroupMember(ctx context.Context, groupSlug, userID string) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if groupSlug == "" || userID == "" {
		return fmt.Errorf("group slug and user id are required")
	}

	_, err := s.sqlDB.ExecContext(ctx, `
	INSERT OR IGNORE INTO group_members (group_slug, user_id) VALUES (?, ?)
	`, groupSlug, userID)
	if err != nil {
		if isForeignKeyConstraintError(err) {
			return storage.ErrNotFound
		}
		return fmt.Errorf("add group member: %w", err)
	}
	return nil
}

// SetGroupNoticeTypes replaces the subscription set of one group.
func (s *Store) SetGroupNoticeTypes(ctx context.Context, groupSlug string, labels []string) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if groupSlug == "" {
		return fmt.Errorf("group slug is required")
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin group subscription write: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM group_notice_types WHERE group_slug = ?`, groupSlug); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("clear group subscriptions: %w", err)
	}
	for _, label := range labels {
		if _, err := tx.ExecContext(ctx, `
		INSERT OR IGNORE INTO group_notice_types (group_slug, label) VALUES (?, ?)
		`, groupSlug, label); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("add group subscription: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit group subscription write: %w", err)
	}
	return nil
}

// ListSubscribedMembers returns members of every group subscribed to label.
func (s *Store) ListSubscribedMembers(ctx context.Context, label string) ([]string, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT DISTINCT gm.user_id
FROM group_members gm
JOIN group_notice_types gnt ON gnt.group_slug = gm.group_slug
WHERE gnt.label = ?
ORDER BY gm.user_id
`, label)
	if err != nil {
		return nil, fmt.Errorf("list subscribed members: %w", err)
	}
	defer rows.Close()

	var results []string
	for rows.Next() {
		var userID string
		if err := rows.Scan(&userID); err != nil {
			return nil, fmt.Errorf("scan subscribed member row: %w", err)
		}
		results = append(results, userID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate subscribed member rows: %w", err)
	}
	return results, nil
}

// PutRecipient upserts one recipient contact row keyed by user id.
func (s *Store) PutRecipient(ctx context.Context, record storage.RecipientRecord) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	record.UserID = strings.TrimSpace(record.UserID)
	if record.UserID == "" {
		return fmt.Errorf("recipient user id is required")
	}

	_, err := s.sqlDB.ExecContext(ctx, `
	INSERT INTO recipients (user_id, email, telegram_chat_id, locale, active)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(user_id) DO UPDATE SET
		email = excluded.email,
		telegram_chat_id = excluded.telegram_chat_id,
		locale = excluded.locale,
		active = excluded.active
	`, record.UserID, record.Email, record.TelegramChatID, record.Locale, boolToInt(record.Active))
	if err != nil {
		return fmt.Errorf("put recipient: %w", err)
	}
	return nil
}

// GetRecipient loads one recipient contact row.
func (s *Store) GetRecipient(ctx context.Context, userID string) (storage.RecipientRecord, error) {
	if err := s.ready(ctx); err != nil {
		return storage.RecipientRecord{}, err
	}

	row := s.sqlDB.QueryRowContext(ctx, `
SELECT user_id, email, telegram_chat_id, locale, active
FROM recipients
WHERE user_id = ?
`, userID)
	var record storage.RecipientRecord
	var active int
	if err := row.Scan(&record.UserID, &record.Email, &record.TelegramChatID, &record.Locale, &active); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.RecipientRecord{}, storage.ErrNotFound
		}
		return storage.RecipientRecord{}, fmt.Errorf("get recipient: %w", err)
	}
	record.Active = active == 1
	return record, nil
}

// PutObservedItem persists one observation subscription.
func (s *Store) PutObservedItem(ctx context.Context, record storage.ObservedItemRecord) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if record.ID == "" {
		return fmt.Errorf("observed item id is required")
	}
	if record.CreatedAt.IsZero() {
		return fmt.Errorf("observed item created_at is required")
	}

	_, err := s.sqlDB.ExecContext(ctx, `
	INSERT INTO observed_items (id, object_kind, object_id, observer_id, label, signal, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		record.ID,
		record.ObjectKind,
		record.ObjectID,
		record.ObserverID,
		record.Label,
		record.Signal,
		toMillis(record.CreatedAt),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return storage.ErrConflict
		}
		return fmt.Errorf("put observed item: %w", err)
	}
	return nil
}

// ListObservedItems lists subscriptions for one (object, signal) pair, oldest first.
func (s *Store) ListObservedItems(ctx context.Context, kind, objectID, signal string) ([]storage.ObservedItemRecord, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT id, object_kind, object_id, observer_id, label, signal, created_at
FROM observed_items
WHERE object_kind = ? AND object_id = ? AND signal = ?
ORDER BY created_at ASC, id ASC
`, kind, objectID, signal)
	if err != nil {
		return nil, fmt.Errorf("list observed items: %w", err)
	}
	defer rows.Close()
	return collectObservedItems(rows)
}

// ListObservedItemsForObserver lists one observer's subscriptions for an (object, signal) pair.
func (s *Store) ListObservedItemsForObserver(ctx context.Context, kind, objectID, observerID, signal string) ([]storage.ObservedItemRecord, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT id, object_kind, object_id, observer_id, label, signal, created_at
FROM observed_items
WHERE object_kind = ? AND object_id = ? AND observer_id = ? AND signal = ?
ORDER BY created_at ASC, id ASC
`, kind, objectID, observerID, signal)
	if err != nil {
		return nil, fmt.Errorf("list observed items for observer: %w", err)
	}
	defer rows.Close()
	return collectObservedItems(rows)
}

// DeleteObservedItems removes matching subscriptions and reports the count.
func (s *Store) DeleteObservedItems(ctx context.Context, kind, objectID, observerID, signal string) (int, error) {
	if err := s.ready(ctx); err != nil {
		return 0, err
	}

	result, err := s.sqlDB.ExecContext(ctx, `
	DELETE FROM observed_items
	WHERE object_kind = ? AND object_id = ? AND observer_id = ? AND signal = ?
	`, kind, objectID, observerID, signal)
	if err != nil {
		return 0, fmt.Errorf("delete observed items: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete observed items rows affected: %w", err)
	}
	return int(affected), nil
}

type scanner func(dest ...any) error

func scanSetting(scan scanner) (storage.SettingRecord, error) {
	var record storage.SettingRecord
	var send, onSite int
	if err := scan(&record.UserID, &record.Label, &record.Medium, &send, &onSite); err != nil {
		return storage.SettingRecord{}, err
	}
	record.Send = send == 1
	record.OnSite = onSite == 1
	return record, nil
}

func scanNotice(scan scanner) (storage.NoticeRecord, error) {
	var record storage.NoticeRecord
	var onSite, unseen, archived int
	var createdAt int64
	if err := scan(
		&record.ID,
		&record.RecipientID,
		&record.SenderID,
		&record.Label,
		&record.Message,
		&onSite,
		&unseen,
		&archived,
		&record.RelatedObjectID,
		&createdAt,
	); err != nil {
		return storage.NoticeRecord{}, err
	}
	record.OnSite = onSite == 1
	record.Unseen = unseen == 1
	record.Archived = archived == 1
	record.CreatedAt = fromMillis(createdAt)
	return record, nil
}

func collectObservedItems(rows *sql.Rows) ([]storage.ObservedItemRecord, error) {
	var results []storage.ObservedItemRecord
	for rows.Next() {
		var record storage.ObservedItemRecord
		var createdAt int64
		if err := rows.Scan(
			&record.ID,
			&record.ObjectKind,
			&record.ObjectID,
			&record.ObserverID,
			&record.Label,
			&record.Signal,
			&createdAt,
		); err != nil {
			return nil, fmt.Errorf("scan observed item row: %w", err)
		}
		record.CreatedAt = fromMillis(createdAt)
		results = append(results, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate observed item rows: %w", err)
	}
	return results, nil
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	value := strings.ToLower(err.Error())
	return strings.Contains(value, "unique constraint failed")
}

func isForeignKeyConstraintError(err error) bool {
	if err == nil {
		return false
	}
	value := strings.ToLower(err.Error())
	return strings.Contains(value, "foreign key constraint failed")
}
