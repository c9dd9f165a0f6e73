package notices

import "errors"

var (
	// ErrStoreNotConfigured indicates the service is missing persistence wiring.
	ErrStoreNotConfigured = errors.New("notice store is not configured")
	// ErrNoticeTypeNotFound indicates dispatch referenced an unregistered label.
	ErrNoticeTypeNotFound = errors.New("notice type not found")
	// ErrObservationNotFound indicates removal of a subscription that does not exist.
	ErrObservationNotFound = errors.New("observed item not found")
	// ErrSendModeConflict indicates both immediate and deferred dispatch were requested.
	ErrSendModeConflict = errors.New("queue and now flags are mutually exclusive")
	// ErrLabelRequired indicates a notice-type label is required.
	ErrLabelRequired = errors.New("notice type label is required")
	// ErrUserIDRequired indicates a user identity is required.
	ErrUserIDRequired = errors.New("user id is required")
	// ErrRecipientsRequired indicates dispatch had no one to notify.
	ErrRecipientsRequired = errors.New("at least one recipient is required")
	// ErrObjectRefRequired indicates an observation is missing its target.
	ErrObjectRefRequired = errors.New("object kind and id are required")
	// ErrSignalRequired indicates an observation is missing its trigger name.
	ErrSignalRequired = errors.New("observation signal is required")
	// ErrIDGeneratorExhausted indicates a fixed test ID sequence was exhausted.
	ErrIDGeneratorExhausted = errors.New("notice id generator exhausted")
)
