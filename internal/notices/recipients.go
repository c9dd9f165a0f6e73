package notices

import (
	"context"
	"strings"

	"github.com/openclay/herald/internal/notices/storage"
)

// Recipient is one user's delivery contact details. A user without a
// recipient row still accumulates on-site notices but receives no backend
// deliveries.
type Recipient struct {
	UserID         string
	Email          string
	TelegramChatID int64
	// Locale is the user's notification language as a BCP 47 tag.
	Locale string
	// Active gates backend delivery without losing contact details.
	Active bool
}

// RegisterRecipient creates or refreshes a user's contact details.
func (s *Service) RegisterRecipient(ctx context.Context, input Recipient) error {
	if s == nil || s.store == nil {
		return ErrStoreNotConfigured
	}
	input.UserID = strings.TrimSpace(input.UserID)
	if input.UserID == "" {
		return ErrUserIDRequired
	}
	return s.store.PutRecipient(ctx, storage.RecipientRecord{
		UserID:         input.UserID,
		Email:          strings.TrimSpace(input.Email),
		TelegramChatID: input.TelegramChatID,
		Locale:         strings.TrimSpace(input.Locale),
		Active:         input.Active,
	})
}

// RecipientByID loads one user's contact details.
func (s *Service) RecipientByID(ctx context.Context, userID string) (Recipient, error) {
	if s == nil || s.store == nil {
		return Recipient{}, ErrStoreNotConfigured
	}
	record, err := s.store.GetRecipient(ctx, strings.TrimSpace(userID))
	if err != nil {
		return Recipient{}, err
	}
	return Recipient{
		UserID:         record.UserID,
		Email:          record.Email,
		TelegramChatID: record.TelegramChatID,
		Locale:         record.Locale,
		Active:         record.Active,
	}, nil
}
