package payment

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Processor is the external payment collaborator. The scheduling core only
// computes the refund percentage; moving money is entirely this side's job.
type Processor interface {
	Refund(ctx context.Context, appointmentID uuid.UUID, amountCents int64, percent int) error
}

// LogProcessor records refund instructions without charging anything.
// Stands in for the real processor in dev and tests.
type LogProcessor struct {
	log *zap.Logger
}

func NewLogProcessor(log *zap.Logger) *LogProcessor {
	return &LogProcessor{log: log}
}

func (p *LogProcessor) Refund(_ context.Context, appointmentID uuid.UUID, amountCents int64, percent int) error {
	p.log.Info("refund instruction",
		zap.String("appointment_id", appointmentID.String()),
		zap.Int64("amount_cents", amountCents),
		zap.Int("percent", percent),
	)
	return nil
}
