package email

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"log/slog"
	"strings"

	"github.com/rfontaine/atelier/internal/domain"
)

// Service handles email composition and sending.
//
// A Service with a nil sender is valid and sends nothing: deployments
// without mail credentials still run the full pipeline, each skipped send
// is just logged.
type Service struct {
	sender      Sender
	fromAddress string
	fromName    string
	logger      *slog.Logger
	tmpl        *template.Template
}

// NewService creates a new email service. sender may be nil to disable
// outbound mail.
func NewService(sender Sender, fromAddress, fromName string, logger *slog.Logger) (*Service, error) {
	tmpl, err := template.New("order_confirmation").
		Funcs(template.FuncMap{"formatAmount": domain.FormatAmount}).
		Parse(orderConfirmationTemplate)
	if err != nil {
		return nil, fmt.Errorf("failed to parse order confirmation template: %w", err)
	}

	return &Service{
		sender:      sender,
		fromAddress: fromAddress,
		fromName:    fromName,
		logger:      logger.With("service", "email"),
		tmpl:        tmpl,
	}, nil
}

// Enabled reports whether outbound mail is configured.
func (s *Service) Enabled() bool {
	return s.sender != nil
}

// SendOrderConfirmation sends the receipt email for a paid order.
func (s *Service) SendOrderConfirmation(ctx context.Context, data OrderConfirmationEmail) error {
	if s.sender == nil {
		s.logger.Info("email disabled, skipping order confirmation",
			"order_number", data.OrderNumber,
			"to", data.Email)
		return nil
	}

	if data.Email == "" {
		return ErrInvalidToAddress
	}

	htmlBody, textBody, err := s.render(data)
	if err != nil {
		return fmt.Errorf("failed to render order confirmation: %w", err)
	}

	msg := &Email{
		To:       []string{data.Email},
		From:     s.fromHeader(),
		Subject:  data.Subject(),
		HTMLBody: htmlBody,
		TextBody: textBody,
	}

	messageID, err := s.sender.Send(ctx, msg)
	if err != nil {
		return fmt.Errorf("failed to send order confirmation email: %w", err)
	}

	s.logger.Info("order confirmation sent",
		"order_number", data.OrderNumber,
		"to", data.Email,
		"message_id", messageID)
	return nil
}

func (s *Service) fromHeader() string {
	if s.fromName != "" {
		return fmt.Sprintf("%s <%s>", s.fromName, s.fromAddress)
	}
	return s.fromAddress
}

func (s *Service) render(data OrderConfirmationEmail) (string, string, error) {
	var buf bytes.Buffer
	if err := s.tmpl.Execute(&buf, data); err != nil {
		return "", "", err
	}
	htmlBody := buf.String()
	return htmlBody, generatePlainText(htmlBody), nil
}

// generatePlainText creates a simple plain text version from HTML
func generatePlainText(html string) string {
	text := html

	text = strings.ReplaceAll(text, "<br>", "\n")
	text = strings.ReplaceAll(text, "<br/>", "\n")
	text = strings.ReplaceAll(text, "<br />", "\n")
	text = strings.ReplaceAll(text, "</p>", "\n\n")
	text = strings.ReplaceAll(text, "</td>", " ")
	text = strings.ReplaceAll(text, "</tr>", "\n")
	text = strings.ReplaceAll(text, "</h1>", "\n\n")
	text = strings.ReplaceAll(text, "</h2>", "\n\n")

	for strings.Contains(text, "<") && strings.Contains(text, ">") {
		start := strings.Index(text, "<")
		end := strings.Index(text, ">")
		if start >= 0 && end > start {
			text = text[:start] + text[end+1:]
		} else {
			break
		}
	}

	text = strings.ReplaceAll(text, "&nbsp;", " ")
	text = strings.ReplaceAll(text, "&amp;", "&")
	text = strings.ReplaceAll(text, "&lt;", "<")
	text = strings.ReplaceAll(text, "&gt;", ">")
	text = strings.ReplaceAll(text, "&quot;", "\"")
	text = strings.ReplaceAll(text, "&#34;", "\"")
	text = strings.ReplaceAll(text, "&#39;", "'")

	lines := strings.Split(text, "\n")
	var cleaned []string
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line != "" {
			cleaned = append(cleaned, line)
		}
	}

	return strings.Join(cleaned, "\n")
}
