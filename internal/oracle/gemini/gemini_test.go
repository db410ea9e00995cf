package gemini

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGenerateURLReturnsTrimmedText(t *testing.T) {
	t.Parallel()

	var gotPath, gotKey string
	var gotBody apiRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("x-goog-api-key")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		resp := map[string]any{
			"candidates": []map[string]any{{
				"content": map[string]any{
					"parts": []map[string]string{{"text": "`https://www.google.com/search?q=chef`\n"}},
				},
			}},
		}
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	defer srv.Close()

	c, err := New(Config{APIKey: "k", Model: "gemini-2.0-flash", Endpoint: srv.URL})
	require.NoError(t, err)

	got, err := c.GenerateURL(context.Background(), "my local forum", "chef")
	require.NoError(t, err)
	require.Equal(t, "https://www.google.com/search?q=chef", got)
	require.Equal(t, "/gemini-2.0-flash:generateContent", gotPath)
	require.Equal(t, "k", gotKey)

	require.Len(t, gotBody.Contents, 1)
	prompt := gotBody.Contents[0].Parts[0].Text
	require.True(t, strings.Contains(prompt, "my local forum"))
	require.True(t, strings.Contains(prompt, "chef"))
	require.True(t, strings.Contains(prompt, "URLのみ"))
}

func TestGenerateURLAPIError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":{"message":"quota"}}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c, err := New(Config{APIKey: "k", Endpoint: srv.URL})
	require.NoError(t, err)

	_, err = c.GenerateURL(context.Background(), "forum", "chef")
	require.Error(t, err)
	require.Contains(t, err.Error(), "status 429")
}

func TestGenerateURLEmptyCandidates(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"candidates":[]}`))
	}))
	defer srv.Close()

	c, err := New(Config{APIKey: "k", Endpoint: srv.URL})
	require.NoError(t, err)

	_, err = c.GenerateURL(context.Background(), "forum", "chef")
	require.Error(t, err)
	require.Contains(t, err.Error(), "empty response")
}

func TestNewRequiresAPIKey(t *testing.T) {
	t.Parallel()

	_, err := New(Config{})
	require.Error(t, err)
}
