// Package email delivers notices as plain-text email messages.
package email

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/emersion/go-message/mail"
	"golang.org/x/time/rate"

	"github.com/openclay/herald/internal/notices/backend"
)

// FormatSubject and FormatBody are the templates this backend renders. The
// subject is collapsed to a single line before sending.
const (
	FormatSubject = "short.txt"
	FormatBody    = "full.txt"
)

const defaultSensitivity = 1

// Transport submits one composed message.
type Transport interface {
	Send(ctx context.Context, from string, to []string, raw []byte) error
}

// Config carries email composition settings.
type Config struct {
	// From is the envelope and header sender address.
	From string
	// SubjectPrefix is prepended to every subject, e.g. "[herald] ".
	SubjectPrefix string
	// Sensitivity overrides the default preference threshold.
	Sensitivity int
	// RateLimit caps outbound messages per second; zero disables the cap.
	RateLimit float64
	// Clock stamps the Date header; nil means time.Now.
	Clock func() time.Time
}

// Backend delivers notices over email.
type Backend struct {
	cfg       Config
	transport Transport
	limiter   *rate.Limiter
	clock     func() time.Time
}

// New builds the email backend.
func New(cfg Config, transport Transport) (*Backend, error) {
	if strings.TrimSpace(cfg.From) == "" {
		return nil, fmt.Errorf("from address is required")
	}
	if transport == nil {
		return nil, fmt.Errorf("transport is required")
	}
	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), 1)
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Backend{cfg: cfg, transport: transport, limiter: limiter, clock: clock}, nil
}

func (b *Backend) Slug() string  { return "email" }
func (b *Backend) Title() string { return "Email" }

func (b *Backend) Sensitivity() int {
	if b.cfg.Sensitivity > 0 {
		return b.cfg.Sensitivity
	}
	return defaultSensitivity
}

func (b *Backend) Formats() []string {
	return []string{FormatSubject, FormatBody}
}

// Send composes and submits one message. Recipients without an email address
// cannot be delivered to.
func (b *Backend) Send(ctx context.Context, rendered map[string]string, recipient backend.Recipient) error {
	address := strings.TrimSpace(recipient.Email)
	if address == "" {
		return fmt.Errorf("recipient %s has no email address", recipient.UserID)
	}
	if err := b.limiter.Wait(ctx); err != nil {
		return err
	}

	raw, err := b.compose(address, rendered)
	if err != nil {
		return err
	}
	return b.transport.Send(ctx, b.cfg.From, []string{address}, raw)
}

func (b *Backend) compose(address string, rendered map[string]string) ([]byte, error) {
	subject := b.cfg.SubjectPrefix + collapseSubject(rendered[FormatSubject])

	var header mail.Header
	header.SetDate(b.clock())
	header.SetAddressList("From", []*mail.Address{{Address: b.cfg.From}})
	header.SetAddressList("To", []*mail.Address{{Address: address}})
	header.SetSubject(subject)
	header.SetContentType("text/plain", map[string]string{"charset": "utf-8"})

	var buf bytes.Buffer
	writer, err := mail.CreateSingleInlineWriter(&buf, header)
	if err != nil {
		return nil, fmt.Errorf("compose message: %w", err)
	}
	if _, err := io.WriteString(writer, rendered[FormatBody]); err != nil {
		_ = writer.Close()
		return nil, fmt.Errorf("write message body: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("finish message: %w", err)
	}
	return buf.Bytes(), nil
}

// collapseSubject folds a rendered subject template onto one line. Templates
// often carry leading whitespace and trailing newlines.
func collapseSubject(value string) string {
	return strings.Join(strings.Fields(value), " ")
}
