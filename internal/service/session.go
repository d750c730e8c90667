package service

import (
	"sync"
	"time"

	"permitflow/internal/domain"
	"permitflow/internal/extraction"
	"permitflow/internal/form"
	"permitflow/internal/formdef"
	"permitflow/internal/inflight"
	"permitflow/internal/preview"
	"permitflow/internal/validator"
	"permitflow/internal/verification"
	"permitflow/internal/wizard"
)

// SessionView is the serializable state of a wizard session.
type SessionView struct {
	ID              string                                `json:"id"`
	FormType        domain.FormType                       `json:"form_type"`
	Title           string                                `json:"title"`
	Wizard          wizard.State                          `json:"wizard"`
	Form            form.Snapshot                         `json:"form"`
	Documents       map[string]domain.DocumentState       `json:"documents"`
	IDVerifications map[string]domain.IDVerificationState `json:"id_verifications"`
	Preview         *preview.Handle                       `json:"preview,omitempty"`
	Prefilled       []string                              `json:"prefilled,omitempty"`
	CreatedAt       time.Time                             `json:"created_at"`
}

// session is one applicant's in-progress application.
type session struct {
	id        string
	def       *formdef.Definition
	form      *form.Form
	validator *validator.StepValidator
	wizard    *wizard.Controller
	cache     *verification.Cache
	tracker   *extraction.Tracker
	previewer *preview.Previewer
	idSeq     *inflight.Sequencer
	createdAt time.Time

	mu        sync.Mutex
	idStates  map[string]domain.IDVerificationState
	prefilled []string
	lastSeen  time.Time
	discard   *time.Timer
}

func (s *session) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

func (s *session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

func (s *session) idStateSnapshot() map[string]domain.IDVerificationState {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]domain.IDVerificationState, len(s.idStates))
	for k, v := range s.idStates {
		out[k] = v
	}
	return out
}

// resetIDState drops the badge of an attachment and invalidates its pending check.
func (s *session) resetIDState(attachment string) {
	s.idSeq.Invalidate(attachment)
	s.mu.Lock()
	delete(s.idStates, attachment)
	s.mu.Unlock()
}

func (s *session) view() *SessionView {
	v := &SessionView{
		ID:              s.id,
		FormType:        s.def.Type,
		Title:           s.def.Title,
		Wizard:          s.wizard.State(),
		Form:            s.form.Snapshot(),
		Documents:       s.tracker.Snapshot(),
		IDVerifications: s.idStateSnapshot(),
		CreatedAt:       s.createdAt,
	}
	if h, ok := s.previewer.Current(); ok {
		v.Preview = h
	}
	s.mu.Lock()
	v.Prefilled = append([]string(nil), s.prefilled...)
	s.mu.Unlock()
	// data URLs are large; the client already holds the signature it drew
	for _, key := range s.def.FieldKeys() {
		if f, _ := s.def.Field(key); f.Kind == domain.FieldKindSignature && v.Form.Values[key] != "" {
			v.Form.Values[key] = "(signed)"
		}
	}
	return v
}
