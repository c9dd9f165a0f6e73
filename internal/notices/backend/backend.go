// Package backend defines the delivery backend contract and registry for
// notice dispatch. A backend owns one delivery medium (email, telegram) and
// declares which rendered formats it consumes.
package backend

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotRegistered reports a lookup for a medium no backend serves.
var ErrNotRegistered = errors.New("backend not registered")

// Recipient carries the contact details a backend needs to deliver.
type Recipient struct {
	UserID         string
	Email          string
	TelegramChatID int64
}

// Backend delivers rendered notices over one medium.
type Backend interface {
	// Slug is the stable medium identifier used in preference rows.
	Slug() string
	// Title is the human-readable medium name shown in settings.
	Title() string
	// Sensitivity is the minimum notice-type default at which this
	// medium is enabled without an explicit preference.
	Sensitivity() int
	// Formats lists the template formats this backend renders.
	Formats() []string
	// Send delivers the rendered formats to one recipient.
	Send(ctx context.Context, rendered map[string]string, recipient Recipient) error
}

// DeliveryError reports a failed delivery to one recipient over one medium.
type DeliveryError struct {
	Medium    string
	Recipient string
	Err       error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("deliver %s to %s: %v", e.Medium, e.Recipient, e.Err)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}
