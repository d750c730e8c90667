package handler_test

import (
	"bytes"
	"context"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"permitflow/internal/handler"
	"permitflow/internal/port"
	"permitflow/internal/storage/memory"
)

func TestPreviewHandler_Serve(t *testing.T) {
	store := memory.NewStore("/previews")
	_, err := store.Upload(context.Background(), port.UploadInput{
		Bucket:      "previews",
		Key:         "previews/s1/abc.png",
		Body:        bytes.NewReader(pngBytes),
		ContentType: "image/png",
	})
	require.NoError(t, err)
	_, err = store.GetPresignedURL(context.Background(), "previews", "previews/s1/abc.png", 60)
	require.NoError(t, err)

	h := handler.NewPreviewHandler(store)
	c, w := newContext(http.MethodGet, "/previews/previews/previews/s1/abc.png", nil,
		gin.Params{{Key: "bucket", Value: "previews"}, {Key: "key", Value: "/previews/s1/abc.png"}})
	h.Serve(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	assert.Equal(t, pngBytes, w.Body.Bytes())

	require.NoError(t, store.Delete(context.Background(), "previews", "previews/s1/abc.png"))
	c, w = newContext(http.MethodGet, "/previews/previews/previews/s1/abc.png", nil,
		gin.Params{{Key: "bucket", Value: "previews"}, {Key: "key", Value: "/previews/s1/abc.png"}})
	h.Serve(c)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
