package mocks

import (
	"context"
	"io"
	"time"

	"github.com/stretchr/testify/mock"

	"permitflow/internal/domain"
	"permitflow/internal/form"
	"permitflow/internal/preview"
	"permitflow/internal/service"
	"permitflow/internal/submission"
	"permitflow/internal/validator"
	"permitflow/internal/wizard"
)

// MockWizardService is a mock implementation of service.WizardService.
type MockWizardService struct {
	mock.Mock
}

func (m *MockWizardService) CreateSession(ctx context.Context, input *service.CreateSessionInput) (*service.SessionView, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.SessionView), args.Error(1)
}

func (m *MockWizardService) GetSession(ctx context.Context, id string) (*service.SessionView, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.SessionView), args.Error(1)
}

func (m *MockWizardService) DiscardSession(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockWizardService) SetFields(ctx context.Context, id string, input *service.SetFieldsInput) (*service.SessionView, error) {
	args := m.Called(ctx, id, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.SessionView), args.Error(1)
}

func (m *MockWizardService) AttachFile(ctx context.Context, id, field string, file *form.File) (*service.SessionView, error) {
	args := m.Called(ctx, id, field, file)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.SessionView), args.Error(1)
}

func (m *MockWizardService) RemoveFile(ctx context.Context, id, field string) (*service.SessionView, error) {
	args := m.Called(ctx, id, field)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.SessionView), args.Error(1)
}

func (m *MockWizardService) VerifyAttachment(ctx context.Context, id, attachment, referenceID string) (*domain.VerificationResult, error) {
	args := m.Called(ctx, id, attachment, referenceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.VerificationResult), args.Error(1)
}

func (m *MockWizardService) ExtractDocument(ctx context.Context, id, attachment string) (*domain.DocumentState, error) {
	args := m.Called(ctx, id, attachment)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.DocumentState), args.Error(1)
}

func (m *MockWizardService) DocumentStates(ctx context.Context, id string) (map[string]domain.DocumentState, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]domain.DocumentState), args.Error(1)
}

func (m *MockWizardService) OpenPreview(ctx context.Context, id, field string) (*preview.Handle, error) {
	args := m.Called(ctx, id, field)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*preview.Handle), args.Error(1)
}

func (m *MockWizardService) ClosePreview(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockWizardService) Next(ctx context.Context, id string) (*service.StepOutcome, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.StepOutcome), args.Error(1)
}

func (m *MockWizardService) Previous(ctx context.Context, id string) (*wizard.State, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*wizard.State), args.Error(1)
}

func (m *MockWizardService) ValidateStep(ctx context.Context, id string, step int) (*validator.Result, error) {
	args := m.Called(ctx, id, step)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*validator.Result), args.Error(1)
}

func (m *MockWizardService) Submit(ctx context.Context, id string, consent bool) (*submission.Result, error) {
	args := m.Called(ctx, id, consent)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*submission.Result), args.Error(1)
}

func (m *MockWizardService) ReviewWorkbook(ctx context.Context, id string, w io.Writer) (string, error) {
	args := m.Called(ctx, id, w)
	return args.String(0), args.Error(1)
}

func (m *MockWizardService) ReviewCSV(ctx context.Context, id string, w io.Writer) (string, error) {
	args := m.Called(ctx, id, w)
	return args.String(0), args.Error(1)
}

func (m *MockWizardService) ExpireIdle(ctx context.Context, maxIdle time.Duration) int {
	args := m.Called(ctx, maxIdle)
	return args.Int(0)
}

func (m *MockWizardService) Close() {
	m.Called()
}
