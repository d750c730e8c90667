package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"permitflow/internal/port"
)

// MockRecognizer is a mock implementation of port.Recognizer.
type MockRecognizer struct {
	mock.Mock
}

func (m *MockRecognizer) Recognize(ctx context.Context, img port.Image, onProgress func(port.ProgressEvent)) (string, error) {
	args := m.Called(ctx, img, onProgress)
	return args.String(0), args.Error(1)
}

func (m *MockRecognizer) Terminate() error {
	args := m.Called()
	return args.Error(0)
}

// MockRecognizerFactory is a mock implementation of port.RecognizerFactory.
type MockRecognizerFactory struct {
	mock.Mock
}

func (m *MockRecognizerFactory) NewRecognizer(ctx context.Context) (port.Recognizer, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(port.Recognizer), args.Error(1)
}

// MockRasterizer is a mock implementation of port.Rasterizer.
type MockRasterizer struct {
	mock.Mock
}

func (m *MockRasterizer) Rasterize(ctx context.Context, document []byte, maxPages, scale int) ([]port.Image, error) {
	args := m.Called(ctx, document, maxPages, scale)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]port.Image), args.Error(1)
}

// MockTextLayerReader is a mock implementation of port.TextLayerReader.
type MockTextLayerReader struct {
	mock.Mock
}

func (m *MockTextLayerReader) ReadText(ctx context.Context, document []byte, maxPages int) (string, error) {
	args := m.Called(ctx, document, maxPages)
	return args.String(0), args.Error(1)
}
