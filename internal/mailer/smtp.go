package mailer

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"mime"
	"net"
	"net/mail"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samber/oops"

	"github.com/nixlim/mailwatch/internal/config"
)

// TLS modes accepted in config.SMTPConfig.TLS.
const (
	TLSStartTLS = "starttls"
	TLSImplicit = "implicit"
	TLSNone     = "none"
)

// SMTPTransport delivers mail through an SMTP relay.
type SMTPTransport struct {
	cfg      config.SMTPConfig
	boundary func() string
	newID    func() string
}

func NewSMTPTransport(cfg config.SMTPConfig) *SMTPTransport {
	if cfg.TLS == "" {
		cfg.TLS = TLSStartTLS
	}
	if cfg.TimeoutSeconds <= 0 {
		cfg.TimeoutSeconds = 30
	}
	return &SMTPTransport{
		cfg:      cfg,
		boundary: func() string { return "mailwatch-" + uuid.NewString() },
		newID:    uuid.NewString,
	}
}

// Send delivers msg. The recipient is checked before any connection is made,
// so a malformed address fails with INVALID_EMAIL without touching the relay.
func (t *SMTPTransport) Send(ctx context.Context, msg Message) error {
	to, err := mail.ParseAddress(msg.To)
	if err != nil {
		return oops.Code(CodeInvalidEmail).Wrapf(err, "recipient %q", msg.To)
	}
	if strings.ContainsAny(msg.Subject, "\r\n") {
		return oops.Code(CodeAPIError).Errorf("subject contains a line break")
	}

	body := t.buildMessage(to, msg)

	addr := net.JoinHostPort(t.cfg.Host, strconv.Itoa(t.cfg.Port))
	conn, err := t.dial(ctx, addr)
	if err != nil {
		return oops.Code(CodeNetworkError).Wrapf(err, "dial %s", addr)
	}
	defer conn.Close()

	deadline := time.Now().Add(t.cfg.Timeout())
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = conn.SetDeadline(deadline)

	client, err := smtp.NewClient(conn, t.cfg.Host)
	if err != nil {
		return replyError(err, CodeAPIError, "smtp greeting")
	}
	defer client.Close()

	if t.cfg.TLS == TLSStartTLS {
		if ok, _ := client.Extension("STARTTLS"); ok {
			if err := client.StartTLS(t.tlsConfig()); err != nil {
				return replyError(err, CodeAPIError, "starttls")
			}
		}
	}

	if t.cfg.Username != "" {
		auth := smtp.PlainAuth("", t.cfg.Username, t.cfg.Password, t.cfg.Host)
		if err := client.Auth(auth); err != nil {
			return replyError(err, CodeAPIError, "auth")
		}
	}

	if err := client.Mail(t.cfg.From); err != nil {
		return replyError(err, CodeAPIError, "mail from")
	}
	if err := client.Rcpt(to.Address); err != nil {
		return replyError(err, CodeInvalidEmail, "rcpt to")
	}

	w, err := client.Data()
	if err != nil {
		return replyError(err, CodeAPIError, "data")
	}
	if _, err := w.Write(body); err != nil {
		return replyError(err, CodeAPIError, "write")
	}
	if err := w.Close(); err != nil {
		return replyError(err, CodeAPIError, "close data")
	}

	if err := client.Quit(); err != nil {
		return replyError(err, CodeAPIError, "quit")
	}
	return nil
}

func (t *SMTPTransport) dial(ctx context.Context, addr string) (net.Conn, error) {
	nd := &net.Dialer{Timeout: t.cfg.Timeout()}
	if t.cfg.TLS == TLSImplicit {
		d := &tls.Dialer{NetDialer: nd, Config: t.tlsConfig()}
		return d.DialContext(ctx, "tcp", addr)
	}
	return nd.DialContext(ctx, "tcp", addr)
}

func (t *SMTPTransport) tlsConfig() *tls.Config {
	return &tls.Config{
		ServerName:         t.cfg.Host,
		InsecureSkipVerify: t.cfg.SkipVerify,
	}
}

// messageIDDomain is the domain of the From address, or the relay host when
// From has none.
func (t *SMTPTransport) messageIDDomain() string {
	if i := strings.LastIndex(t.cfg.From, "@"); i >= 0 && i < len(t.cfg.From)-1 {
		return t.cfg.From[i+1:]
	}
	return t.cfg.Host
}

func (t *SMTPTransport) buildMessage(to *mail.Address, msg Message) []byte {
	from := mail.Address{Name: t.cfg.FromName, Address: t.cfg.From}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "From: %s\r\n", from.String())
	fmt.Fprintf(&buf, "To: %s\r\n", to.String())
	fmt.Fprintf(&buf, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", msg.Subject))
	fmt.Fprintf(&buf, "Date: %s\r\n", time.Now().UTC().Format(time.RFC1123Z))
	fmt.Fprintf(&buf, "Message-ID: <%s@%s>\r\n", t.newID(), t.messageIDDomain())
	buf.WriteString("MIME-Version: 1.0\r\n")

	switch {
	case msg.HTMLBody != "" && msg.TextBody != "":
		boundary := t.boundary()
		fmt.Fprintf(&buf, "Content-Type: multipart/alternative; boundary=%q\r\n\r\n", boundary)

		fmt.Fprintf(&buf, "--%s\r\n", boundary)
		buf.WriteString("Content-Type: text/plain; charset=utf-8\r\n\r\n")
		buf.WriteString(msg.TextBody)
		buf.WriteString("\r\n")

		fmt.Fprintf(&buf, "--%s\r\n", boundary)
		buf.WriteString("Content-Type: text/html; charset=utf-8\r\n\r\n")
		buf.WriteString(msg.HTMLBody)
		buf.WriteString("\r\n")

		fmt.Fprintf(&buf, "--%s--\r\n", boundary)
	case msg.HTMLBody != "":
		buf.WriteString("Content-Type: text/html; charset=utf-8\r\n\r\n")
		buf.WriteString(msg.HTMLBody)
	default:
		buf.WriteString("Content-Type: text/plain; charset=utf-8\r\n\r\n")
		buf.WriteString(msg.TextBody)
	}

	return buf.Bytes()
}
