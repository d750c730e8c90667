package preview_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"permitflow/internal/domain"
	"permitflow/internal/form"
	"permitflow/internal/port"
	"permitflow/internal/preview"
	"permitflow/internal/storage/memory"
	"permitflow/mocks"
)

func pdf(name string) *form.File {
	return &form.File{Name: name, ContentType: "application/pdf", Data: []byte("%PDF-" + name)}
}

func TestPreviewer_OpenTwiceReleasesFirst(t *testing.T) {
	store := memory.NewStore("/api/v1/previews")
	p := preview.NewManager(store, "previews", 60, nil).ForSession("sess-1")
	ctx := context.Background()

	first, err := p.Open(ctx, "barangay_clearance", pdf("a"))
	require.NoError(t, err)
	assert.Equal(t, 1, store.Len())

	second, err := p.Open(ctx, "valid_id", pdf("b"))
	require.NoError(t, err)

	assert.Equal(t, 1, store.Len(), "first preview must be released")
	assert.NotEqual(t, first.URL, second.URL)
	cur, ok := p.Current()
	require.True(t, ok)
	assert.Equal(t, "valid_id", cur.Field)
}

func TestPreviewer_DeleteHappensBeforeUpload(t *testing.T) {
	store := new(mocks.MockObjectStorage)
	var calls []string
	store.On("Upload", mock.Anything, mock.Anything).Run(func(mock.Arguments) { calls = append(calls, "upload") }).
		Return(&port.UploadOutput{}, nil)
	store.On("GetPresignedURL", mock.Anything, "previews", mock.Anything, int64(60)).Return("https://s3/preview", nil)
	store.On("Delete", mock.Anything, "previews", mock.MatchedBy(func(k string) bool { return strings.HasPrefix(k, "previews/sess-1/") })).
		Run(func(mock.Arguments) { calls = append(calls, "delete") }).Return(nil)

	p := preview.NewManager(store, "previews", 60, nil).ForSession("sess-1")
	ctx := context.Background()

	_, err := p.Open(ctx, "barangay_clearance", pdf("a"))
	require.NoError(t, err)
	_, err = p.Open(ctx, "barangay_clearance", pdf("b"))
	require.NoError(t, err)

	assert.Equal(t, []string{"upload", "delete", "upload"}, calls)
}

func TestPreviewer_Close(t *testing.T) {
	store := memory.NewStore("")
	p := preview.NewManager(store, "previews", 60, nil).ForSession("s")
	ctx := context.Background()

	assert.ErrorIs(t, p.Close(ctx), domain.ErrNoPreview)

	_, err := p.Open(ctx, "valid_id", pdf("a"))
	require.NoError(t, err)
	require.NoError(t, p.Close(ctx))
	assert.Zero(t, store.Len())
	_, ok := p.Current()
	assert.False(t, ok)
}

func TestPreviewer_CloseFieldOnlyMatching(t *testing.T) {
	store := memory.NewStore("")
	p := preview.NewManager(store, "previews", 60, nil).ForSession("s")
	ctx := context.Background()

	_, err := p.Open(ctx, "valid_id", pdf("a"))
	require.NoError(t, err)

	p.CloseField(ctx, "barangay_clearance")
	assert.Equal(t, 1, store.Len())
	p.CloseField(ctx, "valid_id")
	assert.Zero(t, store.Len())
}

func TestPreviewer_PresignFailureReleasesUpload(t *testing.T) {
	store := new(mocks.MockObjectStorage)
	store.On("Upload", mock.Anything, mock.Anything).Return(&port.UploadOutput{}, nil)
	store.On("GetPresignedURL", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return("", errors.New("denied"))
	store.On("Delete", mock.Anything, "previews", mock.Anything).Return(nil).Once()

	p := preview.NewManager(store, "previews", 60, nil).ForSession("s")
	_, err := p.Open(context.Background(), "valid_id", pdf("a"))

	assert.ErrorContains(t, err, "denied")
	store.AssertExpectations(t)
	_, ok := p.Current()
	assert.False(t, ok)
}

func TestPreviewer_NilFile(t *testing.T) {
	p := preview.NewManager(memory.NewStore(""), "previews", 60, nil).ForSession("s")
	_, err := p.Open(context.Background(), "valid_id", nil)
	assert.ErrorIs(t, err, domain.ErrNoPreview)
}
