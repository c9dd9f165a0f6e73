package notices

import (
	"context"
	"strings"

	"github.com/openclay/herald/internal/notices/storage"
)

// ObjectRef identifies an application object by kind and ID. The notices
// service never dereferences it; it only keys observation subscriptions.
type ObjectRef struct {
	Kind string `json:"kind"`
	ID   string `json:"id"`
}

func (r ObjectRef) valid() bool {
	return strings.TrimSpace(r.Kind) != "" && strings.TrimSpace(r.ID) != ""
}

// ObserveInput subscribes one user to changes of one object.
type ObserveInput struct {
	Object ObjectRef
	// ObserverID is the subscribing user.
	ObserverID string
	// Label is the notice type fired when the object changes.
	Label string
	// Signal names the application event that triggers the observation,
	// e.g. "post_save".
	Signal string
}

// Observe creates an observation subscription. The label must be a
// registered notice type so later firing cannot hit an unknown type.
func (s *Service) Observe(ctx context.Context, input ObserveInput) error {
	if s == nil || s.store == nil {
		return ErrStoreNotConfigured
	}
	if !input.Object.valid() {
		return ErrObjectRefRequired
	}
	input.ObserverID = strings.TrimSpace(input.ObserverID)
	if input.ObserverID == "" {
		return ErrUserIDRequired
	}
	input.Signal = strings.TrimSpace(input.Signal)
	if input.Signal == "" {
		return ErrSignalRequired
	}
	if _, err := s.NoticeTypeByLabel(ctx, input.Label); err != nil {
		return err
	}

	itemID, err := s.newID()
	if err != nil {
		return err
	}
	return s.store.PutObservedItem(ctx, storage.ObservedItemRecord{
		ID:         itemID,
		ObjectKind: strings.TrimSpace(input.Object.Kind),
		ObjectID:   strings.TrimSpace(input.Object.ID),
		ObserverID: input.ObserverID,
		Label:      strings.TrimSpace(input.Label),
		Signal:     input.Signal,
		CreatedAt:  s.nowUTC(),
	})
}

// StopObserving removes a user's subscriptions for one (object, signal)
// pair. Removing a subscription that does not exist is an error.
func (s *Service) StopObserving(ctx context.Context, object ObjectRef, observerID, signal string) error {
	if s == nil || s.store == nil {
		return ErrStoreNotConfigured
	}
	if !object.valid() {
		return ErrObjectRefRequired
	}
	observerID = strings.TrimSpace(observerID)
	if observerID == "" {
		return ErrUserIDRequired
	}

	deleted, err := s.store.DeleteObservedItems(ctx, strings.TrimSpace(object.Kind), strings.TrimSpace(object.ID), observerID, strings.TrimSpace(signal))
	if err != nil {
		return err
	}
	if deleted == 0 {
		return ErrObservationNotFound
	}
	return nil
}

// IsObserving reports whether a user has a subscription for the (object,
// signal) pair. Duplicate subscriptions still count as observing.
func (s *Service) IsObserving(ctx context.Context, object ObjectRef, observerID, signal string) (bool, error) {
	if s == nil || s.store == nil {
		return false, ErrStoreNotConfigured
	}
	observerID = strings.TrimSpace(observerID)
	if observerID == "" {
		return false, nil
	}
	items, err := s.store.ListObservedItemsForObserver(ctx, strings.TrimSpace(object.Kind), strings.TrimSpace(object.ID), observerID, strings.TrimSpace(signal))
	if err != nil {
		return false, err
	}
	return len(items) > 0, nil
}

// SendObservationNotices dispatches to every observer of the (object,
// signal) pair using each subscription's stored label. The object reference
// is exposed to templates under the "observed" key.
func (s *Service) SendObservationNotices(ctx context.Context, object ObjectRef, signal string, extra map[string]any) (*DeliveryReport, error) {
	if s == nil || s.store == nil {
		return nil, ErrStoreNotConfigured
	}
	if !object.valid() {
		return nil, ErrObjectRefRequired
	}

	items, err := s.store.ListObservedItems(ctx, strings.TrimSpace(object.Kind), strings.TrimSpace(object.ID), strings.TrimSpace(signal))
	if err != nil {
		return nil, err
	}

	combined := &DeliveryReport{}
	for _, item := range items {
		data := make(map[string]any, len(extra)+1)
		for key, value := range extra {
			data[key] = value
		}
		data["observed"] = object

		report, err := s.Send(ctx, SendInput{
			Recipients:      []string{item.ObserverID},
			Label:           item.Label,
			Extra:           data,
			RelatedObjectID: item.ObjectID,
		})
		if err != nil {
			return nil, err
		}
		combined.Recipients += report.Recipients
		combined.Delivered += report.Delivered
		combined.Queued = combined.Queued || report.Queued
		combined.Failures = append(combined.Failures, report.Failures...)
	}
	return combined, nil
}
