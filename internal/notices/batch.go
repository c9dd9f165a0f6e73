package notices

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/openclay/herald/internal/notices/storage"
)

// batchPayloadVersion guards the serialized queue format so older batches
// are detected instead of misread after upgrades.
const batchPayloadVersion = 1

type batchPayload struct {
	Version int            `json:"version"`
	Notices []queuedNotice `json:"notices"`
}

type queuedNotice struct {
	UserID          string         `json:"user_id"`
	Label           string         `json:"label"`
	ExtraContext    map[string]any `json:"extra_context"`
	OnSite          *bool          `json:"on_site,omitempty"`
	SenderID        string         `json:"sender_id,omitempty"`
	RelatedObjectID string         `json:"related_object_id,omitempty"`
}

// enqueue expands groups and persists one serialized batch for the drain
// worker. Expansion happens here so membership changes between queueing and
// draining do not alter who was targeted.
func (s *Service) enqueue(ctx context.Context, input SendInput) error {
	// An unknown label must abort here, not surface at drain time.
	if _, err := s.store.GetNoticeTypeByLabel(ctx, input.Label); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ErrNoticeTypeNotFound
		}
		return err
	}

	recipients := input.Recipients
	if !input.SkipGroups {
		expanded, err := s.ExpandRecipients(ctx, input.Label, input.Recipients)
		if err != nil {
			return err
		}
		recipients = expanded
	}

	extra := input.Extra
	if extra == nil {
		extra = map[string]any{}
	}
	// Deferred notices default to on-site visibility unless the caller
	// pinned the flag.
	onSite := input.OnSite
	if onSite == nil {
		visible := true
		onSite = &visible
	}
	payload := batchPayload{Version: batchPayloadVersion}
	for _, userID := range recipients {
		payload.Notices = append(payload.Notices, queuedNotice{
			UserID:          userID,
			Label:           input.Label,
			ExtraContext:    extra,
			OnSite:          onSite,
			SenderID:        input.SenderID,
			RelatedObjectID: input.RelatedObjectID,
		})
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode queue batch: %w", err)
	}
	batchID, err := s.newID()
	if err != nil {
		return err
	}
	if err := s.store.PutQueueBatch(ctx, storage.QueueBatchRecord{
		ID:        batchID,
		Payload:   raw,
		CreatedAt: s.nowUTC(),
	}); err != nil {
		return err
	}

	s.log.Debug().
		Str("batch_id", batchID).
		Str("label", input.Label).
		Int("recipients", len(recipients)).
		Msg("notice batch queued")
	return nil
}

// DecodeBatch parses one serialized queue payload, rejecting unknown
// versions.
func DecodeBatch(raw []byte) ([]SendInput, error) {
	var payload batchPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("decode queue batch: %w", err)
	}
	if payload.Version != batchPayloadVersion {
		return nil, fmt.Errorf("unsupported queue batch version %d", payload.Version)
	}

	inputs := make([]SendInput, 0, len(payload.Notices))
	for _, queued := range payload.Notices {
		inputs = append(inputs, SendInput{
			Recipients:      []string{queued.UserID},
			Label:           queued.Label,
			Extra:           queued.ExtraContext,
			SenderID:        queued.SenderID,
			RelatedObjectID: queued.RelatedObjectID,
			OnSite:          queued.OnSite,
			Now:             true,
			SkipGroups:      true,
		})
	}
	return inputs, nil
}
