// Package gemini implements the URL-synthesis oracle against the Gemini
// REST API. It is used only as a fallback when no static site template
// matches a source name.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultEndpoint = "https://generativelanguage.googleapis.com/v1beta/models"

// Config controls the oracle client.
type Config struct {
	APIKey   string
	Model    string
	Endpoint string
	Timeout  time.Duration
}

// Client calls the generateContent endpoint with a prompt constrained to
// return a bare URL.
type Client struct {
	cfg  Config
	http *http.Client
}

// New constructs a Client.
func New(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-2.0-flash"
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = defaultEndpoint
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// buildPrompt constrains the model to emit exactly one URL. The wording
// matches the deployed Japanese prompt: identify the domain for the
// service name, build a search URL for the keyword restricted to the last
// 24 hours, answer with the URL only.
func buildPrompt(source, word string) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("タスク：サービス名『%s』からドメインを特定し、", source))
	sb.WriteString(fmt.Sprintf("キーワード『%s』を24時間以内の新着に絞って検索するGoogle検索URLを1つ生成せよ。\n", word))
	sb.WriteString("制約：\n")
	sb.WriteString(fmt.Sprintf("1. 『%s』が日本語の場合、適切なドメイン（indeed.com, x.com, jalan.net 等）に自力で変換すること。\n", source))
	sb.WriteString("2. 回答はURLのみ（https://...）とし、余計な説明や装飾（`等）は一切省くこと。")
	return sb.String()
}

type apiRequest struct {
	Contents []apiContent `json:"contents"`
}

type apiContent struct {
	Parts []apiPart `json:"parts"`
}

type apiPart struct {
	Text string `json:"text"`
}

type apiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []apiPart `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// GenerateURL asks the model for a search URL. The raw trimmed text is
// returned; the resolver validates that it actually contains a URL.
func (c *Client) GenerateURL(ctx context.Context, source, word string) (string, error) {
	reqBody := apiRequest{
		Contents: []apiContent{{Parts: []apiPart{{Text: buildPrompt(source, word)}}}},
	}
	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/%s:generateContent", strings.TrimSuffix(c.cfg.Endpoint, "/"), c.cfg.Model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(jsonBody))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.cfg.APIKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("api error (status %d): %s", resp.StatusCode, truncate(string(body), 200))
	}

	var apiResp apiResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return "", fmt.Errorf("unmarshal response: %w", err)
	}
	if apiResp.Error != nil {
		return "", fmt.Errorf("api error: %s", apiResp.Error.Message)
	}
	if len(apiResp.Candidates) == 0 || len(apiResp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("empty response")
	}

	text := apiResp.Candidates[0].Content.Parts[0].Text
	return strings.TrimSpace(strings.ReplaceAll(text, "`", "")), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
