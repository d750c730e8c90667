package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"permitflow/internal/logger"
)

// SessionExpirer discards sessions that have been idle too long.
type SessionExpirer interface {
	ExpireIdle(ctx context.Context, maxIdle time.Duration) int
}

// SessionReaperConfig holds settings for the session reaper.
type SessionReaperConfig struct {
	SweepInterval time.Duration
	IdleTTL       time.Duration
}

// SessionReaper periodically discards abandoned wizard sessions so their uploads and previews
// do not accumulate.
type SessionReaper struct {
	sessions SessionExpirer
	cfg      SessionReaperConfig
	logger   *zap.Logger
}

// NewSessionReaper creates a new SessionReaper.
func NewSessionReaper(sessions SessionExpirer, cfg SessionReaperConfig, log *zap.Logger) *SessionReaper {
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = 5 * time.Minute
	}
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = 2 * time.Hour
	}
	return &SessionReaper{sessions: sessions, cfg: cfg, logger: logger.OrNop(log)}
}

// Start sweeps until ctx is canceled.
func (r *SessionReaper) Start(ctx context.Context) {
	ticker := time.NewTicker(r.cfg.SweepInterval)
	defer ticker.Stop()

	r.logger.Info("sessionReaper: started",
		zap.Duration("sweep_interval", r.cfg.SweepInterval), zap.Duration("idle_ttl", r.cfg.IdleTTL))

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("sessionReaper: shutdown complete")
			return
		case <-ticker.C:
			// a shutdown mid-sweep must still release previews
			n := r.sessions.ExpireIdle(context.WithoutCancel(ctx), r.cfg.IdleTTL)
			if n > 0 {
				r.logger.Debug("sessionReaper: sweep finished", zap.Int("expired", n))
			}
		}
	}
}
