package notify

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

// Contact is the deliverable address for a platform user.
type Contact struct {
	Name  string
	Email string
}

// ContactResolver looks up the contact details behind a user id. The
// storage layer implements this over the patients and therapists tables.
type ContactResolver interface {
	ResolveContact(ctx context.Context, userID uuid.UUID) (*Contact, error)
}

// EmailSender delivers notifications as transactional email via SendGrid.
type EmailSender struct {
	client    *sendgrid.Client
	resolver  ContactResolver
	fromEmail string
	fromName  string
}

func NewEmailSender(apiKey, fromEmail, fromName string, resolver ContactResolver) *EmailSender {
	if apiKey == "" {
		return nil
	}
	return &EmailSender{
		client:    sendgrid.NewSendClient(apiKey),
		resolver:  resolver,
		fromEmail: fromEmail,
		fromName:  fromName,
	}
}

func (s *EmailSender) Send(ctx context.Context, recipientID uuid.UUID, kind Kind, payload map[string]string) error {
	contact, err := s.resolver.ResolveContact(ctx, recipientID)
	if err != nil {
		return fmt.Errorf("resolve contact: %w", err)
	}
	if contact.Email == "" {
		return fmt.Errorf("user %s has no email address", recipientID)
	}

	subject, body := render(kind, payload)

	from := mail.NewEmail(s.fromName, s.fromEmail)
	to := mail.NewEmail(contact.Name, contact.Email)
	message := mail.NewSingleEmailPlainText(from, subject, to, body)

	resp, err := s.client.SendWithContext(ctx, message)
	if err != nil {
		return fmt.Errorf("sendgrid send: %w", err)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("sendgrid send: status %d", resp.StatusCode)
	}

	return nil
}

func render(kind Kind, payload map[string]string) (subject, body string) {
	when := payload["scheduled_for"]
	who := payload["patient_name"]

	switch kind {
	case KindBookingRequest:
		return "New booking request",
			fmt.Sprintf("%s requested a session on %s.", who, when)
	case KindBookingConfirmed:
		return "Your booking is confirmed",
			fmt.Sprintf("Your session on %s has been confirmed by your therapist.", when)
	case KindBookingDeclined:
		return "Your booking was declined",
			fmt.Sprintf("Your booking request for %s was declined. Reason: %s", when, payload["reason"])
	case KindAppointmentCancelled:
		return "Appointment cancelled",
			fmt.Sprintf("The appointment on %s was cancelled. Reason: %s", when, payload["reason"])
	case KindSessionReminder:
		return "Upcoming session reminder",
			fmt.Sprintf("You have a session coming up on %s.", when)
	default:
		return string(kind), fmt.Sprintf("%v", payload)
	}
}
