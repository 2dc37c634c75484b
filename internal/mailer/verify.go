package mailer

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"net/url"
	"strings"
	texttemplate "text/template"

	"github.com/nixlim/mailwatch/internal/config"
)

// Verifier sends account verification email.
type Verifier struct {
	sender  Transport
	baseURL string
	appName string

	html *template.Template
	text *texttemplate.Template
}

type verificationData struct {
	Name    string
	AppName string
	Link    string
}

// NewVerifier renders verification messages with the base URL and app name
// from cfg and delivers them through sender, normally a MonitoredSender.
func NewVerifier(sender Transport, cfg config.SMTPConfig) (*Verifier, error) {
	html, err := template.New("verification").Parse(verificationHTML)
	if err != nil {
		return nil, fmt.Errorf("parse verification template: %w", err)
	}
	text, err := texttemplate.New("verification.txt").Parse(verificationText)
	if err != nil {
		return nil, fmt.Errorf("parse verification text template: %w", err)
	}
	return &Verifier{
		sender:  sender,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		appName: cfg.AppName,
		html:    html,
		text:    text,
	}, nil
}

// VerificationLink returns the link a user follows to verify their address.
func (v *Verifier) VerificationLink(token string) string {
	return v.baseURL + "/verify-email?token=" + url.QueryEscape(token)
}

// SendVerification emails to a verification link carrying token, addressed
// to name.
func (v *Verifier) SendVerification(ctx context.Context, to, name, token string) error {
	data := verificationData{
		Name:    name,
		AppName: v.appName,
		Link:    v.VerificationLink(token),
	}

	var htmlBuf, textBuf bytes.Buffer
	if err := v.html.Execute(&htmlBuf, data); err != nil {
		return fmt.Errorf("execute verification template: %w", err)
	}
	if err := v.text.Execute(&textBuf, data); err != nil {
		return fmt.Errorf("execute verification text template: %w", err)
	}

	return v.sender.Send(ctx, Message{
		To:       to,
		Subject:  fmt.Sprintf("Verify your email for %s", v.appName),
		HTMLBody: htmlBuf.String(),
		TextBody: textBuf.String(),
	})
}

var verificationText = strings.TrimSpace(`
Hi {{.Name}},

Welcome to {{.AppName}}! Please verify your email address so we can send you care reminders for your plants:

{{.Link}}

This link will expire in 24 hours.

Happy growing,
The {{.AppName}} Team
`)

var verificationHTML = strings.TrimSpace(`
<!DOCTYPE html>
<html>
<head>
    <meta charset="utf-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>Verify your email</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #2f3e2f; }
        .container { max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { text-align: center; padding: 20px 0; }
        .content { background: #f3f8f1; padding: 30px; border-radius: 8px; }
        .button { display: inline-block; background: #4a7c59; color: white; padding: 12px 30px; text-decoration: none; border-radius: 5px; margin: 20px 0; }
        .footer { text-align: center; padding: 20px; color: #6b7b6b; font-size: 14px; }
    </style>
</head>
<body>
    <div class="container">
        <div class="header">
            <h1>{{.AppName}}</h1>
        </div>
        <div class="content">
            <h2>Verify your email address</h2>
            <p>Hi {{.Name}},</p>
            <p>Thanks for joining {{.AppName}}! Click the button below to verify your email address:</p>
            <p style="text-align: center;">
                <a href="{{.Link}}" class="button">Verify Email</a>
            </p>
            <p>Or copy and paste this link into your browser:</p>
            <p style="word-break: break-all; color: #6b7b6b;">{{.Link}}</p>
            <p>This link will expire in 24 hours.</p>
        </div>
        <div class="footer">
            <p>If you didn't create an account, you can safely ignore this email.</p>
        </div>
    </div>
</body>
</html>
`)
