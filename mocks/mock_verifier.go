package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"permitflow/internal/domain"
	"permitflow/internal/verification"
)

// MockVerifier is a mock implementation of service.Verifier.
type MockVerifier struct {
	mock.Mock
}

func (m *MockVerifier) Verify(ctx context.Context, cache *verification.Cache, kind domain.VerifyKind, id string) domain.VerificationResult {
	args := m.Called(ctx, cache, kind, id)
	return args.Get(0).(domain.VerificationResult)
}

func (m *MockVerifier) LookupApplicant(ctx context.Context, applicantID string) (map[string]string, error) {
	args := m.Called(ctx, applicantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]string), args.Error(1)
}
