package notifications

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"mediaconv/internal/config"
)

type sendFunc func(ctx context.Context, msg []byte) error

type smtpService struct {
	from      string
	to        []string
	onSuccess bool
	send      sendFunc
	now       func() time.Time
}

func newSMTPService(cfg config.Notifications, timeout time.Duration) *smtpService {
	svc := &smtpService{
		from:      cfg.SMTPFrom,
		to:        splitRecipients(cfg.Recipient),
		onSuccess: cfg.OnSuccess,
		now:       time.Now,
	}
	svc.send = func(ctx context.Context, msg []byte) error {
		return deliver(ctx, cfg, timeout, svc.from, svc.to, msg)
	}
	return svc
}

func (s *smtpService) NotifyFailure(ctx context.Context, failure Failure) error {
	subject := fmt.Sprintf("[mediaconv] FAILED %s (%s)", jobLabel(failure.Job), failure.Reason)
	return s.send(ctx, s.compose(subject, failureBody(failure)))
}

func (s *smtpService) NotifySuccess(ctx context.Context, success Success) error {
	if !s.onSuccess {
		return nil
	}
	var body strings.Builder
	fmt.Fprintf(&body, "Converted: %s\n", jobLabel(success.Job))
	if success.Job != nil {
		fmt.Fprintf(&body, "Source: %s\n", success.Job.SourcePath)
	}
	fmt.Fprintf(&body, "Output: %s\n", success.OutputPath)
	fmt.Fprintf(&body, "Attempts: %d\n", success.Attempts)
	if success.Duration > 0 {
		fmt.Fprintf(&body, "Duration: %s\n", success.Duration.Round(time.Second))
	}
	subject := fmt.Sprintf("[mediaconv] OK %s", jobLabel(success.Job))
	return s.send(ctx, s.compose(subject, body.String()))
}

func (s *smtpService) compose(subject, body string) []byte {
	var msg bytes.Buffer
	fmt.Fprintf(&msg, "From: %s\r\n", s.from)
	fmt.Fprintf(&msg, "To: %s\r\n", strings.Join(s.to, ", "))
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	fmt.Fprintf(&msg, "Date: %s\r\n", s.now().Format(time.RFC1123Z))
	fmt.Fprintf(&msg, "Message-ID: <%s@mediaconv>\r\n", uuid.NewString())
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	msg.WriteString("Content-Transfer-Encoding: 8bit\r\n\r\n")
	msg.WriteString(strings.ReplaceAll(strings.ReplaceAll(body, "\r\n", "\n"), "\n", "\r\n"))
	return msg.Bytes()
}

func failureBody(failure Failure) string {
	var body strings.Builder
	fmt.Fprintf(&body, "Job: %s\n", jobLabel(failure.Job))
	if job := failure.Job; job != nil {
		fmt.Fprintf(&body, "ID: %d\n", job.ID)
		fmt.Fprintf(&body, "Source: %s\n", job.SourcePath)
		fmt.Fprintf(&body, "Type: %s\n", job.MediaType)
	}
	fmt.Fprintf(&body, "Reason: %s\n", failure.Reason)
	if msg := strings.TrimSpace(failure.Message); msg != "" {
		fmt.Fprintf(&body, "Message: %s\n", msg)
	}
	if len(failure.Attempts) > 0 {
		body.WriteString("\nAttempts:\n")
		for _, attempt := range failure.Attempts {
			p := attempt.Params
			fmt.Fprintf(&body, "  #%d %s %s frame_buffers=%d b_frames=%d padding=%s %dx%d (%s)\n",
				attempt.Number, attempt.Outcome, attempt.Reason,
				p.FrameBuffers, p.BFrames, p.PaddingMode, p.Width, p.Height,
				attempt.Duration.Round(time.Second))
		}
	}
	for _, excerpt := range failure.LogExcerpts {
		if strings.TrimSpace(excerpt.Lines) == "" {
			continue
		}
		fmt.Fprintf(&body, "\n--- %s ---\n%s\n", excerpt.Name, excerpt.Lines)
	}
	return body.String()
}

func splitRecipients(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// deliver sends msg over SMTP. Implicit TLS dials straight into TLS (port
// 465); otherwise STARTTLS is used when the server offers it.
func deliver(ctx context.Context, cfg config.Notifications, timeout time.Duration, from string, to []string, msg []byte) error {
	if len(to) == 0 {
		return fmt.Errorf("smtp: no recipients configured")
	}
	addr := net.JoinHostPort(cfg.SMTPHost, strconv.Itoa(cfg.SMTPPort))
	dialer := &net.Dialer{Timeout: timeout}
	tlsConfig := &tls.Config{ServerName: cfg.SMTPHost, MinVersion: tls.VersionTLS12}

	var (
		conn net.Conn
		err  error
	)
	if cfg.SMTPImplicitTLS {
		conn, err = (&tls.Dialer{NetDialer: dialer, Config: tlsConfig}).DialContext(ctx, "tcp", addr)
	} else {
		conn, err = dialer.DialContext(ctx, "tcp", addr)
	}
	if err != nil {
		return fmt.Errorf("smtp dial %s: %w", addr, err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	} else {
		_ = conn.SetDeadline(time.Now().Add(timeout))
	}

	client, err := smtp.NewClient(conn, cfg.SMTPHost)
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("smtp handshake: %w", err)
	}
	defer client.Close()

	if !cfg.SMTPImplicitTLS {
		if ok, _ := client.Extension("STARTTLS"); ok {
			if err := client.StartTLS(tlsConfig); err != nil {
				return fmt.Errorf("smtp starttls: %w", err)
			}
		}
	}
	if cfg.SMTPUsername != "" {
		auth := smtp.PlainAuth("", cfg.SMTPUsername, cfg.SMTPPassword, cfg.SMTPHost)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("smtp auth: %w", err)
		}
	}
	if err := client.Mail(from); err != nil {
		return fmt.Errorf("smtp mail from: %w", err)
	}
	for _, rcpt := range to {
		if err := client.Rcpt(rcpt); err != nil {
			return fmt.Errorf("smtp rcpt %s: %w", rcpt, err)
		}
	}
	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("smtp data: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		_ = w.Close()
		return fmt.Errorf("smtp write: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("smtp data close: %w", err)
	}
	return client.Quit()
}
