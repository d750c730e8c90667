package noop

import (
	"context"

	"go.uber.org/zap"

	"permitflow/internal/logger"
	"permitflow/internal/port"
)

type noopSender struct {
	portalURL string
	logger    *zap.Logger
}

// NewNoopSender creates a no-op EmailSender that logs acknowledgments instead of sending them.
func NewNoopSender(portalURL string, log *zap.Logger) port.EmailSender {
	return &noopSender{portalURL: portalURL, logger: logger.OrNop(log)}
}

func (s *noopSender) SendSubmissionAcknowledgment(_ context.Context, ack port.Acknowledgment) error {
	s.logger.Info("noop.SendSubmissionAcknowledgment: email suppressed",
		zap.String("to", ack.ToEmail),
		zap.String("name", ack.ToName),
		zap.String("form", ack.FormTitle),
		zap.String("tracking_url", s.portalURL+ack.TrackingURL),
	)
	return nil
}
