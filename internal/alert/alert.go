// Package alert emails operators when a run ends with a fatal error.
package alert

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"classrefresh/internal/pipeline"

	"github.com/jordan-wright/email"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("classrefresh/alert")

type SmtpConfig struct {
	Server       string   `json:"server"`
	Port         int      `json:"port"`
	EmailAddress string   `json:"email_address"`
	Password     string   `json:"password"`
	To           []string `json:"to"`
}

// Enabled is false when no smtp server was configured.
func (c SmtpConfig) Enabled() bool {
	return c.Server != "" && len(c.To) > 0
}

type Mailer struct {
	config SmtpConfig
}

func NewMailer(config SmtpConfig) Mailer {
	return Mailer{config: config}
}

// Subject is the subject line of the alert for a failed run.
func Subject(summary pipeline.Summary) string {
	return fmt.Sprintf("[classrefresh] run %s failed", summary.RunID)
}

// Body renders the plain text alert for a failed run.
func Body(cfg pipeline.Config, summary pipeline.Summary, runErr error) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Run %s over [%d, %d) for term %s ended with an error.\n\n", summary.RunID, cfg.Start, cfg.End, cfg.Term)
	fmt.Fprintf(&b, "%s\n\n", runErr)
	fmt.Fprintf(&b, "Checked: %d\n", summary.Checked)
	fmt.Fprintf(&b, "Written: %d\n", summary.Written)
	fmt.Fprintf(&b, "Skipped: %d\n", summary.Skipped)
	fmt.Fprintf(&b, "Malformed: %d\n", summary.Malformed)
	fmt.Fprintf(&b, "Rate limited: %d\n", summary.RateLimited)
	fmt.Fprintf(&b, "Connection retries: %d\n", summary.ConnectionRetries)
	fmt.Fprintf(&b, "Elapsed: %s\n", summary.Elapsed)
	return b.String()
}

func (m Mailer) SendRunFailure(ctx context.Context, cfg pipeline.Config, summary pipeline.Summary, runErr error) error {
	_, span := tracer.Start(ctx, "alert:send_run_failure")
	defer span.End()

	mail := email.NewEmail()
	mail.From = fmt.Sprintf("classrefresh <%s>", m.config.EmailAddress)
	mail.To = m.config.To
	mail.Subject = Subject(summary)
	mail.Text = []byte(Body(cfg, summary, runErr))

	addr := fmt.Sprintf("%s:%d", m.config.Server, m.config.Port)
	err := mail.Send(
		addr,
		smtp.PlainAuth("", m.config.EmailAddress, m.config.Password, m.config.Server),
	)
	if err != nil && strings.Contains(err.Error(), "server doesn't support AUTH") {
		err = mail.Send(addr, nil)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to send email")
		return fmt.Errorf("send alert: %w", err)
	}
	return nil
}
