package notices

import (
	"context"
	"sort"
	"strings"

	"github.com/openclay/herald/internal/notices/storage"
)

// Group is a named set of users that can subscribe to notice types.
type Group struct {
	Slug        string
	Name        string
	Description string
}

// CreateGroup registers or refreshes a group.
func (s *Service) CreateGroup(ctx context.Context, input Group) error {
	if s == nil || s.store == nil {
		return ErrStoreNotConfigured
	}
	input.Slug = strings.TrimSpace(input.Slug)
	if input.Slug == "" {
		return ErrLabelRequired
	}
	return s.store.PutGroup(ctx, storage.GroupRecord{
		Slug:        input.Slug,
		Name:        strings.TrimSpace(input.Name),
		Description: strings.TrimSpace(input.Description),
	})
}

// AddGroupMember adds a user to a group. Re-adding is a no-op.
func (s *Service) AddGroupMember(ctx context.Context, groupSlug, userID string) error {
	if s == nil || s.store == nil {
		return ErrStoreNotConfigured
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return ErrUserIDRequired
	}
	return s.store.AddGroupMember(ctx, strings.TrimSpace(groupSlug), userID)
}

// SubscribeGroup replaces the set of notice types a group receives.
func (s *Service) SubscribeGroup(ctx context.Context, groupSlug string, labels []string) error {
	if s == nil || s.store == nil {
		return ErrStoreNotConfigured
	}
	groupSlug = strings.TrimSpace(groupSlug)
	if groupSlug == "" {
		return ErrLabelRequired
	}
	cleaned := make([]string, 0, len(labels))
	for _, label := range labels {
		label = strings.TrimSpace(label)
		if label == "" {
			continue
		}
		cleaned = append(cleaned, label)
	}
	return s.store.SetGroupNoticeTypes(ctx, groupSlug, cleaned)
}

// ExpandRecipients unions the direct recipients with every group member
// subscribed to the label. The result is deduplicated and sorted so dispatch
// order is deterministic.
func (s *Service) ExpandRecipients(ctx context.Context, label string, direct []string) ([]string, error) {
	if s == nil || s.store == nil {
		return nil, ErrStoreNotConfigured
	}

	seen := make(map[string]bool, len(direct))
	for _, userID := range direct {
		userID = strings.TrimSpace(userID)
		if userID == "" {
			continue
		}
		seen[userID] = true
	}

	members, err := s.store.ListSubscribedMembers(ctx, strings.TrimSpace(label))
	if err != nil {
		return nil, err
	}
	for _, userID := range members {
		seen[userID] = true
	}

	results := make([]string, 0, len(seen))
	for userID := range seen {
		results = append(results, userID)
	}
	sort.Strings(results)
	return results, nil
}
