package email

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"log/slog"
	"strings"
	"text/template"
	"time"

	"github.com/grubermed/totenschein/internal/storage"
)

//go:embed templates/*.txt
var templateFS embed.FS

// Service composes the outgoing practice mail: invoice dispatch, payment
// reminders and funeral home inquiries. Every sent message is archived
// through the storage provider for audit purposes.
type Service struct {
	sender       Sender
	archive      storage.Storage
	logger       *slog.Logger
	fromAddress  string
	fromName     string
	practiceName string
	templates    *template.Template
}

func NewService(sender Sender, archive storage.Storage, logger *slog.Logger, fromAddress, fromName, practiceName string) (*Service, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/*.txt")
	if err != nil {
		return nil, fmt.Errorf("failed to parse email templates: %w", err)
	}

	return &Service{
		sender:       sender,
		archive:      archive,
		logger:       logger,
		fromAddress:  fromAddress,
		fromName:     fromName,
		practiceName: practiceName,
		templates:    tmpl,
	}, nil
}

// InvoiceMail carries the data for an invoice dispatch message.
type InvoiceMail struct {
	To           string
	OrderNumber  int64
	Version      int32
	PatientName  string
	InvoiceDate  string
	Amount       string
	DocumentName string
	Document     []byte
	Reminder     bool
}

// SendInvoice mails a rendered billing document as attachment.
func (s *Service) SendInvoice(ctx context.Context, m InvoiceMail) error {
	tmplName := "invoice.txt"
	subject := fmt.Sprintf("Rechnung Nr. %d-%d zur aerztlichen Leichenschau", m.OrderNumber, m.Version)
	if m.Reminder {
		tmplName = "reminder.txt"
		subject = fmt.Sprintf("Zahlungserinnerung zur Rechnung Nr. %d-%d", m.OrderNumber, m.Version)
	}

	body, err := s.render(tmplName, struct {
		InvoiceMail
		PracticeName string
	}{m, s.practiceName})
	if err != nil {
		return err
	}

	mail := &Email{
		To:       []string{m.To},
		From:     fmt.Sprintf("%s <%s>", s.fromName, s.fromAddress),
		Subject:  subject,
		TextBody: body,
		Attachments: []Attachment{{
			Filename:    m.DocumentName,
			ContentType: "text/html",
			Content:     m.Document,
		}},
	}

	if _, err := s.sender.Send(ctx, mail); err != nil {
		return fmt.Errorf("failed to send invoice email: %w", err)
	}

	s.archiveMail(ctx, m.OrderNumber, mail)
	return nil
}

// InquiryMail carries the data for a funeral home inquiry.
type InquiryMail struct {
	To          string
	OrderNumber int64
	OrderDate   string
	PatientName string
}

// SendInquiry asks a funeral home to confirm it was commissioned.
func (s *Service) SendInquiry(ctx context.Context, m InquiryMail) error {
	body, err := s.render("inquiry.txt", struct {
		InquiryMail
		PracticeName string
	}{m, s.practiceName})
	if err != nil {
		return err
	}

	mail := &Email{
		To:       []string{m.To},
		From:     fmt.Sprintf("%s <%s>", s.fromName, s.fromAddress),
		Subject:  fmt.Sprintf("Anfrage zur Leichenschau vom %s (Vorgang %d)", m.OrderDate, m.OrderNumber),
		TextBody: body,
	}

	if _, err := s.sender.Send(ctx, mail); err != nil {
		return fmt.Errorf("failed to send inquiry email: %w", err)
	}

	s.archiveMail(ctx, m.OrderNumber, mail)
	return nil
}

func (s *Service) render(name string, data interface{}) (string, error) {
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("failed to render email template %s: %w", name, err)
	}
	return buf.String(), nil
}

// archiveMail writes a copy of the outgoing message to the audit mail
// store. Archive failures are logged, never propagated: the mail is out.
func (s *Service) archiveMail(ctx context.Context, orderNumber int64, mail *Email) {
	var b strings.Builder
	fmt.Fprintf(&b, "To: %s\n", strings.Join(mail.To, ", "))
	fmt.Fprintf(&b, "From: %s\n", mail.From)
	fmt.Fprintf(&b, "Subject: %s\n", mail.Subject)
	fmt.Fprintf(&b, "Date: %s\n", time.Now().Format(time.RFC3339))
	for _, att := range mail.Attachments {
		fmt.Fprintf(&b, "Attachment: %s\n", att.Filename)
	}
	fmt.Fprintf(&b, "\n%s", mail.TextBody)

	key := fmt.Sprintf("mail/%d_%d.txt", orderNumber, time.Now().UnixNano())
	if _, err := s.archive.Put(ctx, key, strings.NewReader(b.String())); err != nil {
		s.logger.Error("failed to archive outgoing mail", "order_number", orderNumber, "error", err)
	}
}
