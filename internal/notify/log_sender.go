package notify

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// LogSender writes notifications to the log instead of delivering them.
// Used in dev and as the fallback when no email sender is configured.
type LogSender struct {
	log *zap.Logger
}

func NewLogSender(log *zap.Logger) *LogSender {
	return &LogSender{log: log}
}

func (s *LogSender) Send(_ context.Context, recipientID uuid.UUID, kind Kind, payload map[string]string) error {
	fields := []zap.Field{
		zap.String("recipient_id", recipientID.String()),
		zap.String("kind", string(kind)),
	}
	for k, v := range payload {
		fields = append(fields, zap.String(k, v))
	}
	s.log.Info("notification", fields...)
	return nil
}
