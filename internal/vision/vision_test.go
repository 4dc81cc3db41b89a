// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package vision

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/notemill/pkg/types"
)

func init() {
	RetryBaseDelay = time.Millisecond
}

func newTestClient(ts *httptest.Server) *OllamaClient {
	return NewOllamaClient(types.VisionConfig{
		Endpoint:   ts.URL + "/",
		Model:      "llava",
		Prompt:     "describe",
		MaxRetries: 3,
	}, ts.Client())
}

func TestDescribe(t *testing.T) {
	var got generateRequest
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		json.NewEncoder(w).Encode(generateResponse{Response: "  A whiteboard sketch.\n"})
	}))
	defer ts.Close()

	desc, err := newTestClient(ts).Describe(context.Background(), []byte("png-bytes"))
	require.NoError(t, err)

	assert.Equal(t, "A whiteboard sketch.", desc)
	assert.Equal(t, "llava", got.Model)
	assert.Equal(t, "describe", got.Prompt)
	assert.False(t, got.Stream)
	require.Len(t, got.Images, 1)
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("png-bytes")), got.Images[0])
}

func TestDescribe_RetriesThrottledRequests(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req generateRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req), "body must be resent on retry")
		assert.Len(t, req.Images, 1)

		if atomic.AddInt32(&calls, 1) <= 2 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		json.NewEncoder(w).Encode(generateResponse{Response: "ok"})
	}))
	defer ts.Close()

	desc, err := newTestClient(ts).Describe(context.Background(), []byte("img"))
	require.NoError(t, err)
	assert.Equal(t, "ok", desc)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestDescribe_Errors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		wantErr string
	}{
		{
			name: "server error with message",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
				json.NewEncoder(w).Encode(generateResponse{Error: "model not loaded"})
			},
			wantErr: "HTTP 500: model not loaded",
		},
		{
			name: "throttled past retry budget",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusTooManyRequests)
			},
			wantErr: "HTTP 429",
		},
		{
			name: "empty description",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				json.NewEncoder(w).Encode(generateResponse{Response: "   "})
			},
			wantErr: "empty description",
		},
		{
			name: "malformed body",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.Write([]byte("<html>"))
			},
			wantErr: "decoding vision response",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := httptest.NewServer(tt.handler)
			defer ts.Close()

			_, err := newTestClient(ts).Describe(context.Background(), []byte("img"))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestDoWithRetry_ContextCancelledDuringBackoff(t *testing.T) {
	old := RetryBaseDelay
	RetryBaseDelay = time.Hour
	defer func() { RetryBaseDelay = old }()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	req, err := http.NewRequest(http.MethodGet, ts.URL, nil)
	require.NoError(t, err)
	_, err = DoWithRetry(ctx, ts.Client(), req, 3)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestNew(t *testing.T) {
	assert.Nil(t, New(types.VisionConfig{}))
	assert.NotNil(t, New(types.VisionConfig{Endpoint: "http://localhost:11434"}))
}

func TestIsImage(t *testing.T) {
	assert.True(t, IsImage("photo.JPG"))
	assert.True(t, IsImage("diagram.webp"))
	assert.False(t, IsImage("report.pdf"))
}
