package email

import (
	"context"
	"fmt"
	"time"

	"setora/internal/config"
	"setora/internal/logger"
	"setora/internal/metrics"
	"setora/internal/models"

	"github.com/mailgun/mailgun-go/v5"
)

const sendTimeout = 10 * time.Second

type Service struct {
	client      mailgun.Mailgun
	domain      string
	senderEmail string
	senderName  string
	enabled     bool
}

// NewService returns a disabled service unless a Mailgun domain and API key
// are configured.
func NewService(cfg *config.Config) *Service {
	enabled := cfg.EmailEnabled()

	var client mailgun.Mailgun
	if enabled {
		client = mailgun.NewMailgun(cfg.MailgunAPIKey)
	}

	return &Service{
		client:      client,
		domain:      cfg.MailgunDomain,
		senderEmail: cfg.MailgunSenderEmail,
		senderName:  cfg.MailgunSenderName,
		enabled:     enabled,
	}
}

func (s *Service) IsEnabled() bool {
	return s != nil && s.enabled
}

func (s *Service) SendWelcomeEmail(ctx context.Context, user *models.User) error {
	if !s.IsEnabled() {
		return fmt.Errorf("email service is not configured")
	}

	message := mailgun.NewMessage(
		s.domain,
		fmt.Sprintf("%s <%s>", s.senderName, s.senderEmail),
		fmt.Sprintf("Welcome to Setora, %s!", user.Name),
		s.generateWelcomeText(user),
		user.Email,
	)
	message.SetHTML(s.generateWelcomeHTML(user))

	ctx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	if _, err := s.client.Send(ctx, message); err != nil {
		metrics.EmailsTotal.WithLabelValues(metrics.EmailFailed).Inc()
		return fmt.Errorf("failed to send welcome email: %w", err)
	}

	metrics.EmailsTotal.WithLabelValues(metrics.EmailSent).Inc()
	logger.Info("Welcome email sent", "email", user.Email, "user_id", user.ID)
	return nil
}

// SendWelcomeEmailAsync sends the welcome email in the background. Signup
// never waits on or fails because of the mail provider.
func (s *Service) SendWelcomeEmailAsync(user *models.User) {
	if !s.IsEnabled() {
		return
	}

	go func() {
		if err := s.SendWelcomeEmail(context.Background(), user); err != nil {
			logger.Warn("Failed to send welcome email",
				"email", user.Email,
				"user_id", user.ID,
				"error", err)
		}
	}()
}
