package classifier

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyUploadsFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/classify", r.URL.Path)
		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		body, _ := io.ReadAll(file)
		assert.Equal(t, "id.png", header.Filename)
		assert.Equal(t, "png-bytes", string(body))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"document_score":0.8123,"non_document_score":0.1877}`))
	}))
	defer srv.Close()

	scores, err := New(srv.URL, time.Second).Classify(context.Background(), "id.png", []byte("png-bytes"))
	require.NoError(t, err)
	assert.InDelta(t, 0.8123, scores.DocumentScore, 1e-9)
}

func TestClassifyRejectsOutOfRangeScores(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"document_score":1.5,"non_document_score":0}`))
	}))
	defer srv.Close()

	_, err := New(srv.URL, time.Second).Classify(context.Background(), "id.png", []byte("x"))
	assert.Error(t, err)
}

func TestClassifySurfacesServerErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	_, err := New(srv.URL, time.Second).Classify(context.Background(), "id.png", []byte("x"))
	assert.Error(t, err)
}
