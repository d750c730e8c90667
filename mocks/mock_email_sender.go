package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"permitflow/internal/port"
)

// MockEmailSender is a mock implementation of port.EmailSender.
type MockEmailSender struct {
	mock.Mock
}

func (m *MockEmailSender) SendSubmissionAcknowledgment(ctx context.Context, ack port.Acknowledgment) error {
	args := m.Called(ctx, ack)
	return args.Error(0)
}
