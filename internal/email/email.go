package email

import (
	"context"
	"sync"
)

// Email represents an email message to be sent.
type Email struct {
	To          []string     // Recipient email addresses
	From        string       // Sender email address
	Subject     string       // Email subject
	TextBody    string       // Plain text body
	Attachments []Attachment // File attachments (optional)
}

// Attachment represents a file attachment for an email.
type Attachment struct {
	Filename    string // Name of the file
	ContentType string // MIME type
	Content     []byte // File content
}

// Sender defines the interface for sending emails.
type Sender interface {
	// Send sends an email message.
	// Returns the message ID from the email provider (if available).
	Send(ctx context.Context, email *Email) (string, error)
}

// Mock is a test implementation of Sender that records sent messages.
type Mock struct {
	mu       sync.Mutex
	SendFunc func(ctx context.Context, email *Email) (string, error)
	Sent     []*Email
}

func (m *Mock) Send(ctx context.Context, email *Email) (string, error) {
	m.mu.Lock()
	m.Sent = append(m.Sent, email)
	m.mu.Unlock()
	if m.SendFunc != nil {
		return m.SendFunc(ctx, email)
	}
	return "mock-message-id", nil
}
