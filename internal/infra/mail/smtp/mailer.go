package smtp

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/wneessen/go-mail"

	domain "github.com/bryanwahyu/solidity-audit/internal/domain/audits"
)

// Mailer hands a report body to the SMTP transport. One attempt per Send —
// a failed delivery is reported to the caller, never retried here.
type Mailer struct {
	host     string
	port     int
	username string
	password string
	from     string
	timeout  time.Duration
}

func New(host string, port int, username, password, from string, timeout time.Duration) (*Mailer, error) {
	if strings.TrimSpace(host) == "" || strings.TrimSpace(from) == "" {
		return nil, fmt.Errorf("smtp host and from address are required")
	}
	if port <= 0 {
		port = 587
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Mailer{
		host:     host,
		port:     port,
		username: username,
		password: password,
		from:     from,
		timeout:  timeout,
	}, nil
}

// Send transmits the whole report body as the message text plus a plain-text
// attachment. All-or-nothing: any transport error surfaces as ErrDelivery.
func (m *Mailer) Send(ctx context.Context, job *domain.EmailJob) error {
	msg := mail.NewMsg()
	if err := msg.From(m.from); err != nil {
		return fmt.Errorf("%w: invalid sender: %v", domain.ErrDelivery, err)
	}
	if err := msg.To(job.Recipient); err != nil {
		return fmt.Errorf("%w: invalid recipient: %v", domain.ErrDelivery, err)
	}
	subject := job.Subject
	if subject == "" {
		subject = "Smart Contract Audit Report"
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextPlain, job.Body)

	attachment := job.AttachmentName
	if attachment == "" {
		attachment = "audit_report.txt"
	}
	if err := msg.AttachReader(attachment, strings.NewReader(job.Body)); err != nil {
		return fmt.Errorf("%w: attach report: %v", domain.ErrDelivery, err)
	}

	opts := []mail.Option{
		mail.WithPort(m.port),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
		mail.WithTimeout(m.timeout),
	}
	if m.username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(m.username),
			mail.WithPassword(m.password),
		)
	}

	client, err := mail.NewClient(m.host, opts...)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrDelivery, err)
	}
	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrDelivery, err)
	}
	return nil
}
