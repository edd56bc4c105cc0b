package notify

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hackgods/telehealth-booking/internal/metrics"
)

type Kind string

const (
	KindBookingRequest       Kind = "BOOKING_REQUEST"
	KindBookingConfirmed     Kind = "BOOKING_CONFIRMED"
	KindBookingDeclined      Kind = "BOOKING_DECLINED"
	KindAppointmentCancelled Kind = "APPOINTMENT_CANCELLED"
	KindSessionReminder      Kind = "SESSION_REMINDER"
)

// Sender delivers one notification to one user. Implementations may be
// email, push, or anything else; the scheduling core does not care.
type Sender interface {
	Send(ctx context.Context, recipientID uuid.UUID, kind Kind, payload map[string]string) error
}

// Dispatcher is the hook the scheduling service calls after each committed
// state change. Delivery is best effort: a failed send is logged and
// swallowed, never surfaced to the caller, and never rolls back the
// transition that triggered it.
type Dispatcher struct {
	sender Sender
	log    *zap.Logger
	m      *metrics.Metrics
}

func NewDispatcher(sender Sender, log *zap.Logger, m *metrics.Metrics) *Dispatcher {
	return &Dispatcher{
		sender: sender,
		log:    log,
		m:      m,
	}
}

func (d *Dispatcher) Notify(ctx context.Context, recipientID uuid.UUID, kind Kind, payload map[string]string) {
	if d == nil || d.sender == nil {
		return
	}

	if err := d.sender.Send(ctx, recipientID, kind, payload); err != nil {
		d.log.Warn("notification dispatch failed",
			zap.String("kind", string(kind)),
			zap.String("recipient_id", recipientID.String()),
			zap.Error(err),
		)
		if d.m != nil {
			d.m.NotificationsTotal.WithLabelValues(string(kind), "error").Inc()
		}
		return
	}

	if d.m != nil {
		d.m.NotificationsTotal.WithLabelValues(string(kind), "ok").Inc()
	}
}
