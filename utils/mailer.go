package utils

import (
	"bytes"
	"fmt"
	"html/template"
	"time"

	"github.com/badoux/checkmail"
	"gopkg.in/gomail.v2"
)

const (
	TemplateTesterApproved = "tester_approved"
	TemplateRewardIssued   = "reward_issued"
)

var emailTemplates = map[string]string{
	TemplateTesterApproved: `<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"><title>{{.Subject}}</title></head>
<body style="font-family: Arial, sans-serif; color: #333; max-width: 600px; margin: 0 auto; padding: 20px;">
    <h2>You're in!</h2>
    <p>Hi {{.Name}},</p>
    <p>Your application to the <strong>{{.Program}}</strong> beta has been approved. Start testing and share your feedback to earn points.</p>
    <p style="font-size: 12px; color: #7f8c8d;">© {{.Year}} Discoverly</p>
</body>
</html>`,
	TemplateRewardIssued: `<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"><title>{{.Subject}}</title></head>
<body style="font-family: Arial, sans-serif; color: #333; max-width: 600px; margin: 0 auto; padding: 20px;">
    <h2>You earned a reward</h2>
    <p>Hi {{.Name}},</p>
    <p>The team behind <strong>{{.Program}}</strong> sent you a {{.RewardType}} reward.{{if .ExpiresAt}} Claim it before {{.ExpiresAt}}.{{end}}</p>
    <p style="font-size: 12px; color: #7f8c8d;">© {{.Year}} Discoverly</p>
</body>
</html>`,
}

type dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

type MailerConfig struct {
	Host      string
	Port      int
	Username  string
	Password  string
	FromEmail string
	FromName  string
}

// Mailer sends templated notification emails over SMTP. A Mailer without
// a host drops every message.
type Mailer struct {
	cfg    MailerConfig
	dialer dialer
}

func NewMailer(cfg MailerConfig) *Mailer {
	m := &Mailer{cfg: cfg}
	if cfg.Host != "" {
		m.dialer = gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	}
	return m
}

func (m *Mailer) Enabled() bool {
	return m != nil && m.dialer != nil
}

// Send renders templateName with data and delivers it to a single recipient.
func (m *Mailer) Send(to, subject, templateName string, data map[string]interface{}) error {
	if !m.Enabled() {
		return nil
	}
	if err := checkmail.ValidateFormat(to); err != nil {
		return fmt.Errorf("invalid recipient %q: %w", to, err)
	}

	body, err := renderTemplate(templateName, subject, data)
	if err != nil {
		return err
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", msg.FormatAddress(m.cfg.FromEmail, m.cfg.FromName))
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", body)

	if err := m.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("error sending email: %w", err)
	}
	return nil
}

func renderTemplate(name, subject string, data map[string]interface{}) (string, error) {
	content, ok := emailTemplates[name]
	if !ok {
		return "", fmt.Errorf("template '%s' not found", name)
	}
	tmpl, err := template.New(name).Parse(content)
	if err != nil {
		return "", fmt.Errorf("error parsing template: %w", err)
	}

	vars := map[string]interface{}{"Subject": subject, "Year": time.Now().Year()}
	for k, v := range data {
		vars[k] = v
	}

	var body bytes.Buffer
	if err := tmpl.Execute(&body, vars); err != nil {
		return "", fmt.Errorf("error executing template: %w", err)
	}
	return body.String(), nil
}
