package services

import (
	"bytes"
	"fmt"
	"html/template"
	"net/smtp"
	"strings"

	"github.com/thrivewithai/thrive-backend/internal/config"
	"github.com/thrivewithai/thrive-backend/internal/models"
)

var (
	adminNotificationTmpl = template.Must(template.New("admin").Parse(`<html>
<body>
	<h2>New {{.Type}}: {{.Title}}</h2>
	<p><strong>From:</strong> {{.SubmitterName}} &lt;{{.SubmitterEmail}}&gt;</p>
	<p><strong>Category:</strong> {{.Category}} &middot; <strong>Priority:</strong> {{.Priority}}{{if .Rating}} &middot; <strong>Rating:</strong> {{.Rating}}/5{{end}}</p>
	{{if .PagePath}}<p><strong>Page:</strong> {{.PagePath}}</p>{{end}}
	<p>{{.Description}}</p>
	<p><a href="{{.AdminURL}}">Open in admin</a></p>
</body>
</html>`))

	submitterResponseTmpl = template.Must(template.New("response").Parse(`<html>
<body>
	<p>Hi {{.Name}},</p>
	<p>Thanks for your feedback "<strong>{{.Title}}</strong>". Our team has replied:</p>
	<blockquote>{{.Response}}</blockquote>
	<p>Current status: <strong>{{.Status}}</strong></p>
	<p>The ThriveWithAI team</p>
</body>
</html>`))
)

type EmailService struct {
	cfg        config.SMTPConfig
	adminEmail string
	siteURL    string
	sendMail   func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewEmailService(cfg config.SMTPConfig, adminEmail, siteURL string) *EmailService {
	return &EmailService{
		cfg:        cfg,
		adminEmail: adminEmail,
		siteURL:    strings.TrimRight(siteURL, "/"),
		sendMail:   smtp.SendMail,
	}
}

func (s *EmailService) IsConfigured() bool {
	return s.cfg.Host != "" && s.cfg.Username != "" && s.cfg.Password != "" && s.cfg.From != ""
}

// SendMail is a no-op when SMTP is not configured.
func (s *EmailService) SendMail(from, to, subject, html string) error {
	if !s.IsConfigured() {
		return nil
	}
	if from == "" {
		from = s.cfg.From
	}

	addr := fmt.Sprintf("%s:%s", s.cfg.Host, s.cfg.Port)
	auth := smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)

	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/html; charset=\"UTF-8\"\r\n\r\n%s",
		from, to, sanitizeHeader(subject), html)

	return s.sendMail(addr, auth, from, []string{to}, []byte(msg))
}

func (s *EmailService) SendFeedbackNotification(fb *models.Feedback) error {
	if s.adminEmail == "" {
		return nil
	}

	var body bytes.Buffer
	err := adminNotificationTmpl.Execute(&body, map[string]interface{}{
		"Type":           fb.Type,
		"Title":          fb.Title,
		"SubmitterName":  fb.SubmitterName,
		"SubmitterEmail": fb.SubmitterEmail,
		"Category":       fb.Category,
		"Priority":       fb.Priority,
		"Rating":         fb.Rating,
		"PagePath":       fb.PagePath,
		"Description":    fb.Description,
		"AdminURL":       fmt.Sprintf("%s/admin/feedback/%s", s.siteURL, fb.ID),
	})
	if err != nil {
		return fmt.Errorf("failed to render admin notification: %w", err)
	}

	subject := fmt.Sprintf("[Feedback] %s: %s", fb.Type, fb.Title)
	return s.SendMail(s.cfg.From, s.adminEmail, subject, body.String())
}

func (s *EmailService) SendFeedbackResponse(fb *models.Feedback) error {
	response := ""
	if fb.AdminResponse != nil {
		response = *fb.AdminResponse
	}

	name := fb.SubmitterName
	if name == "" {
		name = "there"
	}

	var body bytes.Buffer
	err := submitterResponseTmpl.Execute(&body, map[string]interface{}{
		"Name":     name,
		"Title":    fb.Title,
		"Response": response,
		"Status":   strings.ReplaceAll(fb.Status, "_", " "),
	})
	if err != nil {
		return fmt.Errorf("failed to render response email: %w", err)
	}

	return s.SendMail(s.cfg.From, fb.SubmitterEmail, "Re: "+fb.Title, body.String())
}

func sanitizeHeader(s string) string {
	return strings.NewReplacer("\r", " ", "\n", " ").Replace(s)
}
