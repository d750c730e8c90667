package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"permitflow/internal/domain"
	"permitflow/internal/extraction"
	"permitflow/internal/form"
	"permitflow/internal/formdef"
	"permitflow/internal/inflight"
	"permitflow/internal/logger"
	"permitflow/internal/metrics"
	"permitflow/internal/port"
	"permitflow/internal/preview"
	"permitflow/internal/review"
	"permitflow/internal/submission"
	"permitflow/internal/validator"
	"permitflow/internal/verification"
	"permitflow/internal/wizard"
)

// Verifier checks reference ids against the permit office and looks up applicants.
type Verifier interface {
	Verify(ctx context.Context, cache *verification.Cache, kind domain.VerifyKind, id string) domain.VerificationResult
	LookupApplicant(ctx context.Context, applicantID string) (map[string]string, error)
}

// Extractor reads and classifies an uploaded document.
type Extractor interface {
	ExtractAndClassify(ctx context.Context, kind domain.DocumentKind, file *form.File, progress func(int)) extraction.Outcome
}

// CreateSessionInput is the DTO for starting a wizard.
type CreateSessionInput struct {
	FormType    domain.FormType
	ApplicantID string
}

// SetFieldsInput is the DTO for updating form values.
type SetFieldsInput struct {
	Values map[string]string
	Flags  map[string]bool
}

// StepOutcome is the result of a Next request.
type StepOutcome struct {
	State       wizard.State      `json:"state"`
	FieldErrors map[string]string `json:"field_errors,omitempty"`
}

// WizardService owns the in-memory wizard sessions.
type WizardService interface {
	CreateSession(ctx context.Context, input *CreateSessionInput) (*SessionView, error)
	GetSession(ctx context.Context, id string) (*SessionView, error)
	DiscardSession(ctx context.Context, id string) error
	SetFields(ctx context.Context, id string, input *SetFieldsInput) (*SessionView, error)
	AttachFile(ctx context.Context, id, field string, file *form.File) (*SessionView, error)
	RemoveFile(ctx context.Context, id, field string) (*SessionView, error)
	VerifyAttachment(ctx context.Context, id, attachment, referenceID string) (*domain.VerificationResult, error)
	ExtractDocument(ctx context.Context, id, attachment string) (*domain.DocumentState, error)
	DocumentStates(ctx context.Context, id string) (map[string]domain.DocumentState, error)
	OpenPreview(ctx context.Context, id, field string) (*preview.Handle, error)
	ClosePreview(ctx context.Context, id string) error
	Next(ctx context.Context, id string) (*StepOutcome, error)
	Previous(ctx context.Context, id string) (*wizard.State, error)
	ValidateStep(ctx context.Context, id string, step int) (*validator.Result, error)
	Submit(ctx context.Context, id string, consent bool) (*submission.Result, error)
	ReviewWorkbook(ctx context.Context, id string, w io.Writer) (string, error)
	ReviewCSV(ctx context.Context, id string, w io.Writer) (string, error)
	ExpireIdle(ctx context.Context, maxIdle time.Duration) int
	Close()
}

// WizardDeps are the collaborators of the wizard service.
type WizardDeps struct {
	Verifier  Verifier
	Extractor Extractor
	Submitter wizard.Submitter
	Previews  *preview.Manager
	Email     port.EmailSender
	Metrics   *metrics.Metrics
	Logger    *zap.Logger
}

// WizardConfig tunes the wizard service.
type WizardConfig struct {
	// Strict requires ID-only attachment slots to have passed verification.
	Strict bool
	// RedirectDelay is how long a submitted session lives before it is discarded.
	RedirectDelay     time.Duration
	MaxUploadBytes    int64
	ExtractionWorkers int
	ExtractionTimeout time.Duration
}

var errExtractionDisabled = errors.New("document extraction is not configured")

type wizardService struct {
	deps   WizardDeps
	cfg    WizardConfig
	logger *zap.Logger
	now    func() time.Time

	mu       sync.RWMutex
	sessions map[string]*session
	closed   bool

	sem chan struct{}
	wg  sync.WaitGroup
}

// NewWizardService creates a new WizardService.
func NewWizardService(deps WizardDeps, cfg WizardConfig) WizardService {
	if cfg.ExtractionWorkers <= 0 {
		cfg.ExtractionWorkers = 2
	}
	if cfg.ExtractionTimeout <= 0 {
		cfg.ExtractionTimeout = 5 * time.Minute
	}
	if cfg.RedirectDelay <= 0 {
		cfg.RedirectDelay = 3 * time.Second
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 10 << 20
	}
	return &wizardService{
		deps:     deps,
		cfg:      cfg,
		logger:   logger.OrNop(deps.Logger),
		now:      time.Now,
		sessions: make(map[string]*session),
		sem:      make(chan struct{}, cfg.ExtractionWorkers),
	}
}

func (s *wizardService) options(sess *session) validator.Options {
	opts := validator.Options{Mode: validator.PresenceOnly, Verified: sess.cache}
	if s.cfg.Strict {
		opts.Mode = validator.VerifiedOnly
	}
	return opts
}

func (s *wizardService) get(id string) (*session, error) {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	sess.touch(s.now())
	return sess, nil
}

func (s *wizardService) CreateSession(ctx context.Context, input *CreateSessionInput) (*SessionView, error) {
	def, err := formdef.Get(input.FormType)
	if err != nil {
		return nil, err
	}
	sv, err := validator.NewStepValidator(def)
	if err != nil {
		return nil, fmt.Errorf("building validator for %s: %w", def.Type, err)
	}

	id := uuid.New().String()
	f := form.New()
	now := s.now()
	sess := &session{
		id:        id,
		def:       def,
		form:      f,
		validator: sv,
		wizard:    wizard.New(sv, f, s.deps.Submitter),
		cache:     verification.NewCache(),
		tracker:   extraction.NewTracker(),
		previewer: s.deps.Previews.ForSession(id),
		idSeq:     inflight.NewSequencer(),
		createdAt: now,
		idStates:  make(map[string]domain.IDVerificationState),
		lastSeen:  now,
	}

	if applicantID := strings.TrimSpace(input.ApplicantID); applicantID != "" {
		sess.prefilled = s.prefill(ctx, sess, applicantID)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, errors.New("wizard service is shutting down")
	}
	s.sessions[id] = sess
	s.mu.Unlock()

	s.deps.Metrics.SessionOpened()
	s.logger.Info("service.CreateSession: session created",
		zap.String("session", id), zap.String("form", string(def.Type)), zap.Int("prefilled", len(sess.prefilled)))
	return sess.view(), nil
}

// prefill copies the applicant's stored details into empty form fields. Lookup failures are logged
// and leave the form untouched.
func (s *wizardService) prefill(ctx context.Context, sess *session, applicantID string) []string {
	if s.deps.Verifier == nil {
		return nil
	}
	if _, ok := sess.def.Field("applicant_id"); ok {
		sess.form.SetIfEmpty("applicant_id", applicantID)
	}
	details, err := s.deps.Verifier.LookupApplicant(ctx, applicantID)
	if err != nil {
		s.logger.Warn("service.prefill: applicant lookup failed",
			zap.String("session", sess.id), zap.String("applicant_id", applicantID), zap.Error(err))
		return nil
	}
	var filled []string
	for _, key := range sess.def.FieldKeys() {
		field, _ := sess.def.Field(key)
		if field.Kind == domain.FieldKindFlag || field.Kind == domain.FieldKindSignature {
			continue
		}
		v, ok := details[key]
		if !ok || strings.TrimSpace(v) == "" {
			continue
		}
		if sess.form.SetIfEmpty(key, v) {
			filled = append(filled, key)
		}
	}
	return filled
}

func (s *wizardService) GetSession(_ context.Context, id string) (*SessionView, error) {
	sess, err := s.get(id)
	if err != nil {
		return nil, err
	}
	return sess.view(), nil
}

func (s *wizardService) DiscardSession(ctx context.Context, id string) error {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	if ok {
		delete(s.sessions, id)
	}
	s.mu.Unlock()
	if !ok {
		return domain.ErrSessionNotFound
	}
	s.release(ctx, sess)
	s.logger.Info("service.DiscardSession: session discarded", zap.String("session", id))
	return nil
}

// release frees the resources a removed session holds.
func (s *wizardService) release(ctx context.Context, sess *session) {
	sess.mu.Lock()
	if sess.discard != nil {
		sess.discard.Stop()
		sess.discard = nil
	}
	sess.mu.Unlock()
	if err := sess.previewer.Close(ctx); err != nil && !errors.Is(err, domain.ErrNoPreview) {
		s.logger.Warn("service.release: closing preview failed", zap.String("session", sess.id), zap.Error(err))
	}
	for _, key := range sess.tracker.Keys() {
		sess.tracker.Reset(key)
	}
	s.deps.Metrics.SessionClosed()
}

func (s *wizardService) SetFields(_ context.Context, id string, input *SetFieldsInput) (*SessionView, error) {
	sess, err := s.get(id)
	if err != nil {
		return nil, err
	}

	// validate everything before writing anything
	for key := range input.Values {
		if _, ok := sess.def.Field(key); !ok {
			return nil, fmt.Errorf("%w: %s", domain.ErrUnknownField, key)
		}
	}
	for key := range input.Flags {
		f, ok := sess.def.Field(key)
		if !ok || f.Kind != domain.FieldKindFlag {
			return nil, fmt.Errorf("%w: %s is not a flag", domain.ErrUnknownField, key)
		}
	}

	idFields := make(map[string]string)
	for _, a := range sess.def.Attachments() {
		if a.IDField != "" {
			idFields[a.IDField] = a.Key
		}
	}

	for key, value := range input.Values {
		f, _ := sess.def.Field(key)
		if f.Kind == domain.FieldKindFlag {
			sess.form.SetFlag(key, form.ParseFlag(value))
			continue
		}
		if attachment, isID := idFields[key]; isID && strings.TrimSpace(value) != strings.TrimSpace(sess.form.Value(key)) {
			sess.resetIDState(attachment)
		}
		sess.form.Set(key, value)
	}
	for key, v := range input.Flags {
		sess.form.SetFlag(key, v)
	}
	return sess.view(), nil
}

func (s *wizardService) AttachFile(ctx context.Context, id, field string, file *form.File) (*SessionView, error) {
	sess, err := s.get(id)
	if err != nil {
		return nil, err
	}
	if file == nil || len(file.Data) == 0 {
		return nil, domain.ErrNoFileAttached
	}
	if file.Size() > s.cfg.MaxUploadBytes {
		return nil, domain.ErrFileTooLarge
	}
	if err := acceptsFile(sess.def, field, file); err != nil {
		return nil, err
	}

	sess.tracker.Reset(field)
	sess.previewer.CloseField(ctx, field)
	sess.form.SetFile(field, file)
	s.logger.Debug("service.AttachFile: file attached",
		zap.String("session", id), zap.String("field", field), zap.Int64("bytes", file.Size()))
	return sess.view(), nil
}

func acceptsFile(def *formdef.Definition, field string, file *form.File) error {
	if a, ok := def.Attachment(field); ok {
		if !a.AcceptsFile() {
			return fmt.Errorf("%w: %s takes a reference id only", domain.ErrUnknownAttachment, field)
		}
		if _, ok := domain.AllowedContentTypes[file.ContentType]; !ok {
			return domain.ErrUnsupportedFileType
		}
		return nil
	}
	if f, ok := def.Field(field); ok && f.Kind == domain.FieldKindSignature {
		if !strings.HasPrefix(file.ContentType, "image/") {
			return domain.ErrUnsupportedFileType
		}
		return nil
	}
	return fmt.Errorf("%w: %s", domain.ErrUnknownAttachment, field)
}

func (s *wizardService) RemoveFile(ctx context.Context, id, field string) (*SessionView, error) {
	sess, err := s.get(id)
	if err != nil {
		return nil, err
	}
	if !sess.form.HasFile(field) {
		return nil, fmt.Errorf("%w: %s", domain.ErrNoFileAttached, field)
	}
	sess.tracker.Reset(field)
	sess.previewer.CloseField(ctx, field)
	sess.form.RemoveFile(field)
	return sess.view(), nil
}

func (s *wizardService) VerifyAttachment(ctx context.Context, id, attachment, referenceID string) (*domain.VerificationResult, error) {
	sess, err := s.get(id)
	if err != nil {
		return nil, err
	}
	req, ok := sess.def.Attachment(attachment)
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownAttachment, attachment)
	}
	if !req.AcceptsID() || req.VerifyKind == "" {
		return nil, fmt.Errorf("%w: %s", domain.ErrNotVerifiable, attachment)
	}

	if referenceID = strings.TrimSpace(referenceID); referenceID != "" {
		if referenceID != strings.TrimSpace(sess.form.Value(req.IDField)) {
			sess.resetIDState(attachment)
		}
		sess.form.Set(req.IDField, referenceID)
	} else {
		referenceID = strings.TrimSpace(sess.form.Value(req.IDField))
	}

	seq := sess.idSeq.Next(attachment)
	sess.mu.Lock()
	sess.idStates[attachment] = domain.IDVerificationState{Verifying: true, ID: referenceID}
	sess.mu.Unlock()

	res := s.deps.Verifier.Verify(ctx, sess.cache, req.VerifyKind, referenceID)

	applied := sess.idSeq.Apply(attachment, seq, func() {
		sess.mu.Lock()
		sess.idStates[attachment] = domain.IDVerificationState{
			Verified: res.Success,
			ID:       referenceID,
			Message:  res.Message,
		}
		sess.mu.Unlock()
		if res.Success && res.CrossRefID != "" && req.CrossRefField != "" {
			sess.form.Set(req.CrossRefField, res.CrossRefID)
		}
	})
	if !applied {
		s.logger.Debug("service.VerifyAttachment: superseded result dropped",
			zap.String("session", id), zap.String("attachment", attachment), zap.Uint64("seq", seq))
	}
	return &res, nil
}

func (s *wizardService) ExtractDocument(_ context.Context, id, attachment string) (*domain.DocumentState, error) {
	if s.deps.Extractor == nil {
		return nil, errExtractionDisabled
	}
	sess, err := s.get(id)
	if err != nil {
		return nil, err
	}
	req, ok := sess.def.Attachment(attachment)
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownAttachment, attachment)
	}
	file := sess.form.File(attachment)
	if file == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrNoFileAttached, attachment)
	}

	seq := sess.tracker.Begin(attachment)
	kind := req.DocumentKind

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.sem <- struct{}{}
		defer func() { <-s.sem }()

		// Use a fresh context independent of the request context
		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ExtractionTimeout)
		defer cancel()

		out := s.deps.Extractor.ExtractAndClassify(ctx, kind, file, func(pct int) {
			sess.tracker.Progress(attachment, seq, pct)
		})
		if !sess.tracker.Finish(attachment, seq, out) {
			s.logger.Debug("service.ExtractDocument: superseded result dropped",
				zap.String("session", id), zap.String("attachment", attachment), zap.Uint64("seq", seq))
		}
	}()

	st, _ := sess.tracker.State(attachment)
	return &st, nil
}

func (s *wizardService) DocumentStates(_ context.Context, id string) (map[string]domain.DocumentState, error) {
	sess, err := s.get(id)
	if err != nil {
		return nil, err
	}
	return sess.tracker.Snapshot(), nil
}

func (s *wizardService) OpenPreview(ctx context.Context, id, field string) (*preview.Handle, error) {
	sess, err := s.get(id)
	if err != nil {
		return nil, err
	}
	return sess.previewer.Open(ctx, field, sess.form.File(field))
}

func (s *wizardService) ClosePreview(ctx context.Context, id string) error {
	sess, err := s.get(id)
	if err != nil {
		return err
	}
	return sess.previewer.Close(ctx)
}

func (s *wizardService) Next(_ context.Context, id string) (*StepOutcome, error) {
	sess, err := s.get(id)
	if err != nil {
		return nil, err
	}
	opts := s.options(sess)
	from := sess.wizard.State().CurrentStep
	st, err := sess.wizard.Next(opts)
	out := &StepOutcome{State: st}
	if err != nil {
		res := sess.validator.Validate(from, sess.form, opts)
		out.FieldErrors = res.FieldErrors
		return out, err
	}
	return out, nil
}

func (s *wizardService) Previous(_ context.Context, id string) (*wizard.State, error) {
	sess, err := s.get(id)
	if err != nil {
		return nil, err
	}
	st := sess.wizard.Previous()
	return &st, nil
}

func (s *wizardService) ValidateStep(_ context.Context, id string, step int) (*validator.Result, error) {
	sess, err := s.get(id)
	if err != nil {
		return nil, err
	}
	if step == 0 {
		step = sess.wizard.State().CurrentStep
	}
	if _, err := sess.def.Step(step); err != nil {
		return nil, err
	}
	res := sess.validator.Validate(step, sess.form, s.options(sess))
	return &res, nil
}

func (s *wizardService) Submit(ctx context.Context, id string, consent bool) (*submission.Result, error) {
	sess, err := s.get(id)
	if err != nil {
		return nil, err
	}
	res, err := sess.wizard.Submit(ctx, consent, s.options(sess))
	if err != nil {
		s.logger.Info("service.Submit: submission not accepted", zap.String("session", id), zap.Error(err))
		return nil, err
	}

	s.acknowledge(ctx, sess, res)

	delay := res.RedirectAfter
	if delay <= 0 {
		delay = s.cfg.RedirectDelay
	}
	sess.mu.Lock()
	sess.discard = time.AfterFunc(delay, func() {
		_ = s.DiscardSession(context.Background(), id)
	})
	sess.mu.Unlock()
	s.logger.Info("service.Submit: application submitted", zap.String("session", id), zap.String("form", string(sess.def.Type)))
	return res, nil
}

// acknowledge emails the applicant in the background. Failures never affect the submission.
func (s *wizardService) acknowledge(ctx context.Context, sess *session, res *submission.Result) {
	if s.deps.Email == nil {
		return
	}
	to := strings.TrimSpace(sess.form.Value("email"))
	if to == "" {
		return
	}
	ack := port.Acknowledgment{
		ToEmail:     to,
		ToName:      strings.TrimSpace(sess.form.Value("first_name") + " " + sess.form.Value("last_name")),
		FormTitle:   sess.def.Title,
		BusinessRef: firstNonEmpty(sess.form.Value("business_name"), sess.form.Value("activity_name")),
		Message:     res.Message,
		TrackingURL: res.RedirectURL,
	}
	ctx = context.WithoutCancel(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		if err := s.deps.Email.SendSubmissionAcknowledgment(ctx, ack); err != nil {
			s.logger.Warn("service.acknowledge: email failed", zap.String("session", sess.id), zap.Error(err))
		}
	}()
}

func (s *wizardService) buildReview(id string) (*review.Review, string, error) {
	sess, err := s.get(id)
	if err != nil {
		return nil, "", err
	}
	r := review.Build(sess.def, sess.form.Snapshot(), sess.tracker.Snapshot(), sess.idStateSnapshot())
	name := firstNonEmpty(sess.form.Value("business_name"), sess.form.Value("activity_name"), string(sess.def.Type))
	return r, name, nil
}

func (s *wizardService) ReviewWorkbook(_ context.Context, id string, w io.Writer) (string, error) {
	r, name, err := s.buildReview(id)
	if err != nil {
		return "", err
	}
	if err := review.WriteXLSX(w, r); err != nil {
		return "", err
	}
	return review.BuildFilename(name, "xlsx", s.now()), nil
}

func (s *wizardService) ReviewCSV(_ context.Context, id string, w io.Writer) (string, error) {
	r, name, err := s.buildReview(id)
	if err != nil {
		return "", err
	}
	if err := review.WriteCSV(w, r); err != nil {
		return "", err
	}
	return review.BuildFilename(name, "csv", s.now()), nil
}

// ExpireIdle discards sessions untouched for longer than maxIdle and returns how many it removed.
func (s *wizardService) ExpireIdle(ctx context.Context, maxIdle time.Duration) int {
	cutoff := s.now().Add(-maxIdle)
	var expired []*session
	s.mu.Lock()
	for id, sess := range s.sessions {
		if sess.idleSince().Before(cutoff) {
			expired = append(expired, sess)
			delete(s.sessions, id)
		}
	}
	s.mu.Unlock()
	for _, sess := range expired {
		s.release(ctx, sess)
	}
	if len(expired) > 0 {
		s.logger.Info("service.ExpireIdle: sessions expired", zap.Int("count", len(expired)))
	}
	return len(expired)
}

// Close discards every session and waits for background work to finish.
func (s *wizardService) Close() {
	s.mu.Lock()
	s.closed = true
	sessions := s.sessions
	s.sessions = make(map[string]*session)
	s.mu.Unlock()
	for _, sess := range sessions {
		s.release(context.Background(), sess)
	}
	s.wg.Wait()
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
