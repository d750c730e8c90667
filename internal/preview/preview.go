// Package preview stages uploaded documents for viewing. At most one preview per session is open;
// opening another releases the first.
package preview

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"permitflow/internal/domain"
	"permitflow/internal/form"
	"permitflow/internal/logger"
	"permitflow/internal/port"
)

// Handle describes an open preview.
type Handle struct {
	Field     string    `json:"field"`
	URL       string    `json:"url"`
	FileName  string    `json:"file_name"`
	ExpiresAt time.Time `json:"expires_at"`

	key string
}

// Manager creates per-session previewers over a shared object store.
type Manager struct {
	store  port.ObjectStorage
	bucket string
	expiry int64
	logger *zap.Logger
}

// NewManager creates a Manager. expirySeconds bounds how long a preview URL stays valid.
func NewManager(store port.ObjectStorage, bucket string, expirySeconds int64, log *zap.Logger) *Manager {
	if expirySeconds <= 0 {
		expirySeconds = 900
	}
	return &Manager{store: store, bucket: bucket, expiry: expirySeconds, logger: logger.OrNop(log)}
}

// ForSession returns a previewer scoped to one wizard session.
func (m *Manager) ForSession(sessionID string) *Previewer {
	return &Previewer{mgr: m, sessionID: sessionID}
}

// Previewer owns the single open preview of one session.
type Previewer struct {
	mgr       *Manager
	sessionID string

	mu      sync.Mutex
	current *Handle
}

// Open stages file and returns its preview URL. Any previously open preview is released first.
func (p *Previewer) Open(ctx context.Context, field string, file *form.File) (*Handle, error) {
	if file == nil {
		return nil, fmt.Errorf("%w: nothing attached to %s", domain.ErrNoPreview, field)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.current != nil {
		p.release(ctx, p.current)
		p.current = nil
	}

	ext, ok := domain.AllowedContentTypes[file.ContentType]
	if !ok {
		ext = "bin"
	}
	key := path.Join("previews", p.sessionID, uuid.New().String()+"."+ext)

	if _, err := p.mgr.store.Upload(ctx, port.UploadInput{
		Bucket:      p.mgr.bucket,
		Key:         key,
		Body:        bytes.NewReader(file.Data),
		ContentType: file.ContentType,
		Size:        file.Size(),
	}); err != nil {
		return nil, fmt.Errorf("staging preview: %w", err)
	}

	url, err := p.mgr.store.GetPresignedURL(ctx, p.mgr.bucket, key, p.mgr.expiry)
	if err != nil {
		p.release(ctx, &Handle{key: key, Field: field})
		return nil, fmt.Errorf("presigning preview: %w", err)
	}

	p.current = &Handle{
		Field:     field,
		URL:       url,
		FileName:  file.Name,
		ExpiresAt: time.Now().Add(time.Duration(p.mgr.expiry) * time.Second),
		key:       key,
	}
	p.mgr.logger.Debug("preview.Previewer.Open: opened", zap.String("session", p.sessionID), zap.String("field", field))
	h := *p.current
	return &h, nil
}

// Close releases the open preview. It returns domain.ErrNoPreview when nothing is open.
func (p *Previewer) Close(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == nil {
		return domain.ErrNoPreview
	}
	p.release(ctx, p.current)
	p.current = nil
	return nil
}

// CloseField releases the open preview only if it shows field. Used when the file is removed.
func (p *Previewer) CloseField(ctx context.Context, field string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current != nil && p.current.Field == field {
		p.release(ctx, p.current)
		p.current = nil
	}
}

// Current returns the open preview, if any.
func (p *Previewer) Current() (*Handle, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == nil {
		return nil, false
	}
	h := *p.current
	return &h, true
}

func (p *Previewer) release(ctx context.Context, h *Handle) {
	if err := p.mgr.store.Delete(ctx, p.mgr.bucket, h.key); err != nil {
		p.mgr.logger.Warn("preview.Previewer.release: delete failed",
			zap.String("session", p.sessionID), zap.String("field", h.Field), zap.Error(err))
	}
}
