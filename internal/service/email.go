package service

import (
	"context"
	"fmt"

	"iotkit-lending-backend/internal/domain"
	"iotkit-lending-backend/internal/logger"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"gopkg.in/gomail.v2"
)

const emailSignature = "\n\nBest regards,\nIoT Kit Lending Admin"

type smtpEmailService struct {
	host     string
	port     int
	username string
	password string
	from     string
	fromName string
}

func NewSMTPEmailService(host string, port int, username, password, from, fromName string) EmailService {
	return &smtpEmailService{
		host:     host,
		port:     port,
		username: username,
		password: password,
		from:     from,
		fromName: fromName,
	}
}

func (s *smtpEmailService) SendNotificationEmail(ctx context.Context, to, subject, body string) error {
	m := gomail.NewMessage()
	m.SetAddressHeader("From", s.from, s.fromName)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body+emailSignature)

	d := gomail.NewDialer(s.host, s.port, s.username, s.password)

	logger.ExternalServiceCall("smtp", "DialAndSend", "to", to)
	err := d.DialAndSend(m)
	logger.ExternalServiceResult("smtp", "DialAndSend", err, "to", to)
	if err != nil {
		return fmt.Errorf("failed to send email via gomail: %w", err)
	}
	return nil
}

type sendGridEmailService struct {
	client   *sendgrid.Client
	from     string
	fromName string
}

func NewSendGridEmailService(apiKey, from, fromName string) EmailService {
	return &sendGridEmailService{
		client:   sendgrid.NewSendClient(apiKey),
		from:     from,
		fromName: fromName,
	}
}

func (s *sendGridEmailService) SendNotificationEmail(ctx context.Context, to, subject, body string) error {
	message := mail.NewSingleEmail(
		mail.NewEmail(s.fromName, s.from),
		subject,
		mail.NewEmail("", to),
		body+emailSignature,
		"",
	)

	logger.ExternalServiceCall("sendgrid", "Send", "to", to)
	resp, err := s.client.SendWithContext(ctx, message)
	if err == nil && resp.StatusCode >= 300 {
		err = fmt.Errorf("sendgrid returned status %d: %s", resp.StatusCode, resp.Body)
	}
	logger.ExternalServiceResult("sendgrid", "Send", err, "to", to)
	if err != nil {
		return fmt.Errorf("failed to send email via sendgrid: %w", err)
	}
	return nil
}

// emailNotifier adapts an EmailService into a dispatcher channel.
type emailNotifier struct {
	email EmailService
}

func NewEmailNotifier(email EmailService) Notifier {
	return &emailNotifier{email: email}
}

func (n *emailNotifier) Name() string { return "email" }

func (n *emailNotifier) Notify(ctx context.Context, account *domain.Account, note *domain.Notification) error {
	if account == nil || account.Email == "" {
		return nil
	}
	return n.email.SendNotificationEmail(ctx, account.Email, note.Title, note.Message)
}
