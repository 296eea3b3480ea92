package gemini

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

	"github.com/deusflow/trendpress/internal/logger"
	"github.com/deusflow/trendpress/internal/retry"
)

func newTestClient(baseURL string) *Client {
	return newRESTClient(Options{
		APIKey:      "test-key",
		BaseURL:     baseURL,
		SearchModel: "search-model",
		ImageModel:  "image-model",
		Retry:       retry.RetryConfig{MaxAttempts: 2, Delay: time.Millisecond},
		Logger:      logger.Discard(),
	})
}

func TestGenerateWithSearch_SendsSearchTool(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1beta/models/search-model:generateContent", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-goog-api-key"))

		var req generateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Tools, 1)
		assert.Contains(t, req.Tools[0], "google_search")
		assert.Equal(t, "prompt", req.Contents[0].Parts[0].Text)

		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"# Title\n"},{"text":"body"}]}}]}`))
	}))
	defer srv.Close()

	out, err := newTestClient(srv.URL).GenerateWithSearch(context.Background(), "prompt")
	require.NoError(t, err)
	assert.Equal(t, "# Title\nbody", out)
}

func TestGenerateWithSearch_EmptyCandidates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"candidates":[]}`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).GenerateWithSearch(context.Background(), "prompt")
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestGenerateWithSearch_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"ok"}]}}]}`))
	}))
	defer srv.Close()

	out, err := newTestClient(srv.URL).GenerateWithSearch(context.Background(), "prompt")
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.Equal(t, int32(2), calls.Load())
}

func TestGenerateWithSearch_ClientErrorIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"bad"}`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).GenerateWithSearch(context.Background(), "prompt")
	require.Error(t, err)
	assert.ErrorIs(t, err, retry.ErrPermanent)
	assert.Equal(t, int32(1), calls.Load())
}

func TestGenerateImage_DecodesPrediction(t *testing.T) {
	png := []byte{0x89, 'P', 'N', 'G'}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1beta/models/image-model:predict", r.URL.Path)

		var req predictRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "a flat lay", req.Instances[0]["prompt"])
		assert.Equal(t, "16:9", req.Parameters["aspectRatio"])

		resp := map[string]any{
			"predictions": []map[string]string{{"bytesBase64Encoded": base64.StdEncoding.EncodeToString(png)}},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	img, err := newTestClient(srv.URL).GenerateImage(context.Background(), "a flat lay")
	require.NoError(t, err)
	assert.Equal(t, png, img)
}

func TestGenerateImage_NoPredictions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"predictions":[]}`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).GenerateImage(context.Background(), "x")
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestGenerateText_WithoutSDKClient(t *testing.T) {
	_, err := newTestClient("http://unused").GenerateText(context.Background(), "x")
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestDummy(t *testing.T) {
	d := Dummy{}
	ctx := context.Background()

	kw, err := d.GenerateText(ctx, `Return JSON {"keywords": [...]}`)
	require.NoError(t, err)
	assert.Contains(t, kw, "エクソソーム")

	ko, err := d.GenerateText(ctx, "Translate the following Japanese beauty or cosmetic keyword into Korean.\n\nKeyword: 水光肌")
	require.NoError(t, err)
	assert.Equal(t, "물광 피부", ko)
	assert.NotContains(t, ko, "\n")

	article, err := d.GenerateWithSearch(ctx, "write about retinol")
	require.NoError(t, err)
	assert.True(t, len(article) > 2 && article[:2] == "# ")

	_, err = d.GenerateImage(ctx, "x")
	assert.ErrorIs(t, err, ErrUnavailable)
}
