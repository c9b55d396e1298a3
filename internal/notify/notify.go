package notify

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"html/template"
	"sort"

	"github.com/go-mail/mail/v2"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/segyhp/rent-ledger/internal/config"
	"github.com/segyhp/rent-ledger/internal/domain"
)

// Templates understood by the notifiers
const (
	TemplateRentDueSoon     = "rent_due_soon"
	TemplateRentPastDue     = "rent_past_due"
	TemplatePaymentReceived = "payment_received"
	TemplatePaymentFailed   = "payment_failed"
	TemplatePaymentRefunded = "payment_refunded"
	TemplateLateFeeApplied  = "late_fee_applied"
)

// Notifier delivers a tenant-facing message. Callers treat it as fire and
// forget: an error is logged, never propagated into billing.
type Notifier interface {
	Notify(ctx context.Context, tenantID uuid.UUID, template string, params map[string]string) error
}

// ContactLookup resolves a tenant's contact details
type ContactLookup interface {
	GetByTenant(ctx context.Context, tenantID uuid.UUID) (*domain.TenantContact, error)
}

// Sender delivers a rendered email
type Sender interface {
	Send(to, subject, htmlBody string) error
}

// LogNotifier only logs notifications, for development and disabled email
type LogNotifier struct {
	logger logrus.FieldLogger
}

func NewLogNotifier(logger logrus.FieldLogger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(ctx context.Context, tenantID uuid.UUID, tmpl string, params map[string]string) error {
	fields := logrus.Fields{"tenant_id": tenantID, "template": tmpl}
	for k, v := range params {
		fields["param_"+k] = v
	}
	n.logger.WithFields(fields).Info("notification")
	return nil
}

// EmailNotifier renders a template and mails it to the tenant's contact address
type EmailNotifier struct {
	sender   Sender
	contacts ContactLookup
	logger   logrus.FieldLogger
}

func NewEmailNotifier(sender Sender, contacts ContactLookup, logger logrus.FieldLogger) *EmailNotifier {
	return &EmailNotifier{sender: sender, contacts: contacts, logger: logger}
}

func (n *EmailNotifier) Notify(ctx context.Context, tenantID uuid.UUID, tmpl string, params map[string]string) error {
	contact, err := n.contacts.GetByTenant(ctx, tenantID)
	if err != nil {
		return fmt.Errorf("lookup contact for tenant %s: %w", tenantID, err)
	}
	if contact.Email == "" {
		return fmt.Errorf("tenant %s has no email address", tenantID)
	}

	subject, body, err := Render(tmpl, contact.Name, params)
	if err != nil {
		return err
	}
	return n.sender.Send(contact.Email, subject, body)
}

// SMTPSender sends mail through an SMTP relay
type SMTPSender struct {
	dialer *mail.Dialer
	from   string
	logger logrus.FieldLogger
}

func NewSMTPSender(cfg config.NotificationConfig, logger logrus.FieldLogger) *SMTPSender {
	d := mail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword)
	d.TLSConfig = &tls.Config{ServerName: cfg.SMTPHost}
	return &SMTPSender{dialer: d, from: cfg.From, logger: logger}
}

func (s *SMTPSender) Send(to, subject, htmlBody string) error {
	m := mail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", htmlBody)

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("send email to %s: %w", to, err)
	}

	s.logger.WithField("to", to).Debug("email sent")
	return nil
}

var subjects = map[string]string{
	TemplateRentDueSoon:     "Your rent is due soon",
	TemplateRentPastDue:     "Your rent is past due",
	TemplatePaymentReceived: "Payment received",
	TemplatePaymentFailed:   "Payment failed",
	TemplatePaymentRefunded: "Payment refunded",
	TemplateLateFeeApplied:  "A late fee was added to your rent",
}

var bodies = template.Must(template.New("body").Parse(`
<h1>{{.Subject}}</h1>
<p>Hello {{if .Name}}{{.Name}}{{else}}there{{end}},</p>
<ul>
{{range .Params}}<li>{{.Key}}: <strong>{{.Value}}</strong></li>
{{end}}</ul>
<small>This is an automated message, please do not reply.</small>
`))

type param struct {
	Key   string
	Value string
}

// Render builds the subject and HTML body for a template
func Render(tmpl, name string, params map[string]string) (string, string, error) {
	subject, ok := subjects[tmpl]
	if !ok {
		return "", "", fmt.Errorf("unknown notification template %q", tmpl)
	}

	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	ordered := make([]param, 0, len(keys))
	for _, k := range keys {
		ordered = append(ordered, param{Key: k, Value: params[k]})
	}

	var buf bytes.Buffer
	err := bodies.Execute(&buf, struct {
		Subject string
		Name    string
		Params  []param
	}{subject, name, ordered})
	if err != nil {
		return "", "", err
	}
	return subject, buf.String(), nil
}

// Dispatch sends through n and logs failures instead of returning them
func Dispatch(ctx context.Context, n Notifier, logger logrus.FieldLogger, tenantID uuid.UUID, tmpl string, params map[string]string) bool {
	if n == nil {
		return false
	}
	if err := n.Notify(ctx, tenantID, tmpl, params); err != nil {
		logger.WithError(err).WithFields(logrus.Fields{
			"tenant_id": tenantID,
			"template":  tmpl,
		}).Warn("notification failed")
		return false
	}
	return true
}
