package notices

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func registerRecipient(t *testing.T, service *Service, userID, email string) {
	t.Helper()
	if err := service.RegisterRecipient(context.Background(), Recipient{
		UserID: userID,
		Email:  email,
		Active: true,
	}); err != nil {
		t.Fatalf("register recipient %s: %v", userID, err)
	}
}

func TestSendDeliversOverEnabledMediumsOnly(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	email := newFakeBackend("email", 1)
	onsite := newFakeBackend("onsite", 3)
	service := newTestService(t, Config{SiteName: "herald"}, store, email, onsite)
	registerType(t, service, NoticeType{Label: "friends_invite", Display: "Invitation Received", Default: 2})
	registerRecipient(t, service, "user-1", "user-1@example.com")

	report, err := service.Send(context.Background(), SendInput{
		Recipients: []string{"user-1"},
		Label:      "friends_invite",
		SenderID:   "user-2",
		Now:        true,
	})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if report.Recipients != 1 || report.Delivered != 1 || len(report.Failures) != 0 {
		t.Fatalf("unexpected report: %+v", report)
	}
	if report.Err() != nil {
		t.Fatalf("unexpected report error: %v", report.Err())
	}

	// Exactly one notice persisted, rendered from the canonical template.
	if len(store.notices) != 1 {
		t.Fatalf("expected 1 stored notice, got %d", len(store.notices))
	}
	for _, record := range store.notices {
		if record.Message != "Invitation Received for user-1" {
			t.Fatalf("unexpected stored message: %q", record.Message)
		}
		if !record.Unseen || record.SenderID != "user-2" {
			t.Fatalf("unexpected stored notice: %+v", record)
		}
	}

	// The low-sensitivity medium delivered; the high-sensitivity one was
	// skipped by the default preference.
	sent := email.deliveries()
	if len(sent) != 1 {
		t.Fatalf("expected 1 email delivery, got %d", len(sent))
	}
	if sent[0].Recipient.Email != "user-1@example.com" {
		t.Fatalf("unexpected delivery recipient: %+v", sent[0].Recipient)
	}
	if sent[0].Rendered["full.txt"] != "Invitation Received from herald" {
		t.Fatalf("unexpected rendered body: %q", sent[0].Rendered["full.txt"])
	}
	if len(onsite.deliveries()) != 0 {
		t.Fatal("expected no delivery over disabled medium")
	}
}

func TestSendRestrictsToRequestedMediums(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	email := newFakeBackend("email", 1)
	sms := newFakeBackend("sms", 1)
	service := newTestService(t, Config{SiteName: "herald"}, store, email, sms)
	registerType(t, service, NoticeType{Label: "friends_invite", Display: "Invitation Received", Default: 2})
	registerRecipient(t, service, "user-1", "user-1@example.com")

	report, err := service.Send(context.Background(), SendInput{
		Recipients: []string{"user-1"},
		Label:      "friends_invite",
		Now:        true,
		Mediums:    []string{"sms"},
	})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if report.Delivered != 1 {
		t.Fatalf("expected 1 delivery, got %d", report.Delivered)
	}
	if len(email.deliveries()) != 0 {
		t.Fatal("expected excluded medium to stay untouched")
	}
	if len(sms.deliveries()) != 1 {
		t.Fatalf("expected 1 sms delivery, got %d", len(sms.deliveries()))
	}
	// The on-site record is written regardless of the medium restriction.
	if len(store.notices) != 1 {
		t.Fatalf("expected 1 stored notice, got %d", len(store.notices))
	}
}

func TestSendModeConflict(t *testing.T) {
	t.Parallel()

	service := newTestService(t, Config{}, newFakeStore(), newFakeBackend("email", 1))
	_, err := service.Send(context.Background(), SendInput{
		Recipients: []string{"user-1"},
		Label:      "friends_invite",
		Queue:      true,
		Now:        true,
	})
	if !errors.Is(err, ErrSendModeConflict) {
		t.Fatalf("expected ErrSendModeConflict, got %v", err)
	}
}

func TestSendValidatesInput(t *testing.T) {
	t.Parallel()

	service := newTestService(t, Config{}, newFakeStore(), newFakeBackend("email", 1))

	if _, err := service.Send(context.Background(), SendInput{Recipients: []string{"user-1"}}); !errors.Is(err, ErrLabelRequired) {
		t.Fatalf("expected ErrLabelRequired, got %v", err)
	}
	if _, err := service.Send(context.Background(), SendInput{Label: "friends_invite"}); !errors.Is(err, ErrRecipientsRequired) {
		t.Fatalf("expected ErrRecipientsRequired, got %v", err)
	}
	_, err := service.Send(context.Background(), SendInput{
		Recipients: []string{"user-1"},
		Label:      "missing",
		Now:        true,
	})
	if !errors.Is(err, ErrNoticeTypeNotFound) {
		t.Fatalf("expected ErrNoticeTypeNotFound, got %v", err)
	}
}

func TestSendQueueAllDefersByDefault(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	email := newFakeBackend("email", 1)
	service := newTestService(t, Config{QueueAll: true}, store, email)
	registerType(t, service, NoticeType{Label: "friends_invite", Display: "Invitation Received", Default: 2})

	report, err := service.Send(context.Background(), SendInput{
		Recipients: []string{"user-1"},
		Label:      "friends_invite",
	})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if !report.Queued {
		t.Fatal("expected deferred dispatch")
	}
	if len(store.batches) != 1 {
		t.Fatalf("expected 1 queued batch, got %d", len(store.batches))
	}
	if len(email.deliveries()) != 0 || len(store.notices) != 0 {
		t.Fatal("expected no immediate delivery when queued")
	}

	// An explicit Now flag overrides the queue-all default.
	registerRecipient(t, service, "user-1", "user-1@example.com")
	report, err = service.Send(context.Background(), SendInput{
		Recipients: []string{"user-1"},
		Label:      "friends_invite",
		Now:        true,
	})
	if err != nil {
		t.Fatalf("send now: %v", err)
	}
	if report.Queued || report.Delivered != 1 {
		t.Fatalf("unexpected immediate report: %+v", report)
	}
}

func TestSendExpandsGroupRecipients(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	email := newFakeBackend("email", 1)
	service := newTestService(t, Config{}, store, email)
	registerType(t, service, NoticeType{Label: "release_notes", Display: "Release Notes", Default: 2})
	for _, userID := range []string{"user-1", "user-2", "user-3"} {
		registerRecipient(t, service, userID, userID+"@example.com")
	}
	if err := service.CreateGroup(context.Background(), Group{Slug: "beta-testers", Name: "Beta Testers"}); err != nil {
		t.Fatalf("create group: %v", err)
	}
	for _, userID := range []string{"user-2", "user-3"} {
		if err := service.AddGroupMember(context.Background(), "beta-testers", userID); err != nil {
			t.Fatalf("add member: %v", err)
		}
	}
	if err := service.SubscribeGroup(context.Background(), "beta-testers", []string{"release_notes"}); err != nil {
		t.Fatalf("subscribe group: %v", err)
	}

	// user-2 is targeted directly and via the group; it must be counted
	// once.
	report, err := service.Send(context.Background(), SendInput{
		Recipients: []string{"user-1", "user-2"},
		Label:      "release_notes",
		Now:        true,
	})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if report.Recipients != 3 || report.Delivered != 3 {
		t.Fatalf("unexpected report: %+v", report)
	}
	if len(store.notices) != 3 {
		t.Fatalf("expected a notice per unique recipient, got %d", len(store.notices))
	}
}

func TestSendAggregatesDeliveryFailures(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	email := newFakeBackend("email", 1)
	email.failFor["user-2"] = errors.New("mailbox full")
	service := newTestService(t, Config{}, store, email)
	registerType(t, service, NoticeType{Label: "friends_invite", Display: "Invitation Received", Default: 2})
	for _, userID := range []string{"user-1", "user-2", "user-3"} {
		registerRecipient(t, service, userID, userID+"@example.com")
	}

	report, err := service.Send(context.Background(), SendInput{
		Recipients: []string{"user-1", "user-2", "user-3"},
		Label:      "friends_invite",
		Now:        true,
	})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	// One broken mailbox never stops the rest of the fan-out.
	if report.Delivered != 2 || len(report.Failures) != 1 {
		t.Fatalf("unexpected report: %+v", report)
	}
	if report.Failures[0].Recipient != "user-2" || report.Failures[0].Medium != "email" {
		t.Fatalf("unexpected failure: %+v", report.Failures[0])
	}
	if report.Err() == nil || !strings.Contains(report.Err().Error(), "mailbox full") {
		t.Fatalf("expected aggregated error, got %v", report.Err())
	}
	// Every recipient still got the on-site notice.
	if len(store.notices) != 3 {
		t.Fatalf("expected 3 stored notices, got %d", len(store.notices))
	}
}

func TestSendWithoutContactRowStaysOnSite(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	email := newFakeBackend("email", 1)
	service := newTestService(t, Config{}, store, email)
	registerType(t, service, NoticeType{Label: "friends_invite", Display: "Invitation Received", Default: 2})

	report, err := service.Send(context.Background(), SendInput{
		Recipients: []string{"user-unknown"},
		Label:      "friends_invite",
		Now:        true,
	})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if report.Delivered != 0 || len(report.Failures) != 0 {
		t.Fatalf("unexpected report: %+v", report)
	}
	if len(store.notices) != 1 {
		t.Fatalf("expected on-site notice persisted, got %d", len(store.notices))
	}
	if len(email.deliveries()) != 0 {
		t.Fatal("expected no backend delivery without contact details")
	}
}

func TestSendInactiveRecipientSkipsBackends(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	email := newFakeBackend("email", 1)
	service := newTestService(t, Config{}, store, email)
	registerType(t, service, NoticeType{Label: "friends_invite", Display: "Invitation Received", Default: 2})
	if err := service.RegisterRecipient(context.Background(), Recipient{
		UserID: "user-1",
		Email:  "user-1@example.com",
		Active: false,
	}); err != nil {
		t.Fatalf("register recipient: %v", err)
	}

	report, err := service.Send(context.Background(), SendInput{
		Recipients: []string{"user-1"},
		Label:      "friends_invite",
		Now:        true,
	})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if report.Delivered != 0 || len(store.notices) != 1 {
		t.Fatalf("expected on-site only for inactive recipient, got %+v", report)
	}
}

func TestSendLocalizedByRecipientLocale(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	email := newFakeBackend("email", 1)
	service := newTestService(t, Config{}, store, email)
	registerType(t, service, NoticeType{Label: "friends_invite", Display: "Invitation Received", Default: 2})
	if err := service.RegisterRecipient(context.Background(), Recipient{
		UserID: "user-1",
		Email:  "user-1@example.com",
		Locale: "pt-BR",
		Active: true,
	}); err != nil {
		t.Fatalf("register recipient: %v", err)
	}

	// Without catalog entries the display string passes through, but the
	// malformed-locale fallback must not fail dispatch.
	if _, err := service.Send(context.Background(), SendInput{
		Recipients: []string{"user-1"},
		Label:      "friends_invite",
		Now:        true,
	}); err != nil {
		t.Fatalf("send: %v", err)
	}

	if err := service.RegisterRecipient(context.Background(), Recipient{
		UserID: "user-1",
		Email:  "user-1@example.com",
		Locale: "not-a-locale!!",
		Active: true,
	}); err != nil {
		t.Fatalf("update recipient: %v", err)
	}
	if _, err := service.Send(context.Background(), SendInput{
		Recipients: []string{"user-1"},
		Label:      "friends_invite",
		Now:        true,
	}); err != nil {
		t.Fatalf("send with malformed locale: %v", err)
	}
}

func TestSendOnSitePinnedAndPreferenceDriven(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	email := newFakeBackend("email", 1)
	service := newTestService(t, Config{PrimaryMedium: "email"}, store, email)
	registerType(t, service, NoticeType{Label: "friends_invite", Display: "Invitation Received", Default: 2})
	registerRecipient(t, service, "user-1", "user-1@example.com")

	// Preference for the primary medium controls on-site visibility.
	if _, err := service.UpdateSetting(context.Background(), Setting{
		UserID: "user-1",
		Label:  "friends_invite",
		Medium: "email",
		Send:   true,
		OnSite: false,
	}); err != nil {
		t.Fatalf("update setting: %v", err)
	}
	if _, err := service.Send(context.Background(), SendInput{
		Recipients: []string{"user-1"},
		Label:      "friends_invite",
		Now:        true,
	}); err != nil {
		t.Fatalf("send: %v", err)
	}

	// An explicit pin wins over the preference.
	pinned := true
	if _, err := service.Send(context.Background(), SendInput{
		Recipients: []string{"user-1"},
		Label:      "friends_invite",
		OnSite:     &pinned,
		Now:        true,
	}); err != nil {
		t.Fatalf("send pinned: %v", err)
	}

	onSite := 0
	for _, record := range store.notices {
		if record.OnSite {
			onSite++
		}
	}
	if len(store.notices) != 2 || onSite != 1 {
		t.Fatalf("expected one on-site of two notices, got %d of %d", onSite, len(store.notices))
	}
}

func TestSendDisplayWithLiteralPercent(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	email := newFakeBackend("email", 1)
	service := newTestService(t, Config{SiteName: "herald"}, store, email)
	registerType(t, service, NoticeType{Label: "spring_sale", Display: "50% Off Sale", Default: 2})
	registerRecipient(t, service, "user-1", "user-1@example.com")

	if _, err := service.Send(context.Background(), SendInput{
		Recipients: []string{"user-1"},
		Label:      "spring_sale",
		Now:        true,
	}); err != nil {
		t.Fatalf("send: %v", err)
	}
	for _, record := range store.notices {
		if record.Message != "50% Off Sale for user-1" {
			t.Fatalf("expected percent kept literal, got %q", record.Message)
		}
	}
	sent := email.deliveries()
	if len(sent) != 1 || sent[0].Rendered["short.txt"] != "50% Off Sale" {
		t.Fatalf("unexpected rendered subject: %+v", sent)
	}
}

func TestSendExtraContextWinsOverBase(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	email := newFakeBackend("email", 1)
	service := newTestService(t, Config{SiteName: "herald"}, store, email)
	registerType(t, service, NoticeType{Label: "friends_invite", Display: "Invitation Received", Default: 2})
	registerRecipient(t, service, "user-1", "user-1@example.com")

	if _, err := service.Send(context.Background(), SendInput{
		Recipients: []string{"user-1"},
		Label:      "friends_invite",
		Extra:      map[string]any{"notice": "Overridden"},
		Now:        true,
	}); err != nil {
		t.Fatalf("send: %v", err)
	}
	for _, record := range store.notices {
		if record.Message != "Overridden for user-1" {
			t.Fatalf("expected extra context to win, got %q", record.Message)
		}
	}
}

func TestContextProcessorsContribute(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	email := newFakeBackend("email", 1)
	registry, err := backendRegistry(email)
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}
	renderer, err := noticesRenderer()
	if err != nil {
		t.Fatalf("new renderer: %v", err)
	}
	service := NewService(Config{}, store, registry, renderer,
		WithClock(fixedClock(fixedTestTime())),
		WithIDGenerator(sequentialIDs()),
		WithContextProcessors(func() map[string]any {
			return map[string]any{"notice": "From Processor"}
		}),
	)
	registerType(t, service, NoticeType{Label: "friends_invite", Display: "Invitation Received", Default: 2})

	if _, err := service.Send(context.Background(), SendInput{
		Recipients: []string{"user-1"},
		Label:      "friends_invite",
		Now:        true,
	}); err != nil {
		t.Fatalf("send: %v", err)
	}
	for _, record := range store.notices {
		if record.Message != "From Processor for user-1" {
			t.Fatalf("expected processor context applied, got %q", record.Message)
		}
	}
}
