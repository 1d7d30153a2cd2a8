package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"clipcast/log"
	apperrors "clipcast/pkg/errors"
)

// TokenStore provides the bearer token synchronously. Absence is a
// precondition failure for every outbound call in this package.
type TokenStore interface {
	Token() (string, error)
}

// StaticTokenStore serves a fixed token, typically from config.
type StaticTokenStore struct {
	Value string
}

func (s StaticTokenStore) Token() (string, error) {
	if strings.TrimSpace(s.Value) == "" {
		return "", apperrors.ErrTokenMissing
	}
	return s.Value, nil
}

// synthesizeRequest matches the remote TTS endpoint contract.
type synthesizeRequest struct {
	Voice  string `json:"voice"`
	Mode   string `json:"mode"`
	Markup string `json:"markup"`
}

// apiError is the JSON error body shape; either field may carry the message.
type apiError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (e apiError) text() string {
	if e.Error != "" {
		return e.Error
	}
	return e.Message
}

// Client talks to the remote TTS endpoint and the media upload service.
type Client struct {
	http      *resty.Client
	baseUrl   string
	uploadUrl string
	tokens    TokenStore
}

func NewClient(baseUrl, uploadUrl, proxy string, tokens TokenStore) *Client {
	httpClient := resty.New().
		SetTimeout(60 * time.Second).
		SetRetryCount(0)
	if proxy != "" {
		httpClient.SetProxy(proxy)
	}
	return &Client{
		http:      httpClient,
		baseUrl:   strings.TrimRight(baseUrl, "/"),
		uploadUrl: strings.TrimRight(uploadUrl, "/"),
		tokens:    tokens,
	}
}

// Synthesize posts markup to the TTS endpoint and returns the raw audio
// bytes. HTTP 429 is tagged as CodeRateLimited so callers back off instead of
// retrying immediately.
func (c *Client) Synthesize(ctx context.Context, voice, markup string) ([]byte, error) {
	token, err := c.tokens.Token()
	if err != nil {
		return nil, err
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetBody(synthesizeRequest{Voice: voice, Mode: "markup", Markup: markup}).
		Post(c.baseUrl + "/synthesize")
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeTTSFailed, "Speech synthesis request failed", err)
	}

	if resp.StatusCode() == http.StatusTooManyRequests {
		log.GetLogger().Warn("tts endpoint rate limited", zap.String("voice", voice))
		return nil, apperrors.Wrap(apperrors.CodeRateLimited, "Speech synthesis rate limited", nil)
	}

	if resp.StatusCode() != http.StatusOK {
		msg := errorMessage(resp.Body())
		if isAuthExpiredMessage(msg) {
			return nil, apperrors.WrapWithDetail(apperrors.CodeAuthExpired, "Auth token expired", msg, nil)
		}
		return nil, apperrors.WrapWithDetail(apperrors.CodeTTSFailed, "Speech synthesis failed",
			fmt.Sprintf("status %d: %s", resp.StatusCode(), msg), nil)
	}

	body := resp.Body()
	if len(body) == 0 {
		return nil, apperrors.New(apperrors.CodeTTSFailed, "Speech synthesis returned no audio")
	}
	return body, nil
}

// Upload posts audio as a multipart form with scene metadata and returns the
// remote URL.
func (c *Client) Upload(ctx context.Context, filename string, data []byte, meta map[string]string) (string, error) {
	token, err := c.tokens.Token()
	if err != nil {
		return "", err
	}

	req := c.http.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetFileReader("file", filename, bytes.NewReader(data))
	for k, v := range meta {
		req.SetFormData(map[string]string{k: v})
	}

	resp, err := req.Post(c.uploadUrl + "/file")
	if err != nil {
		return "", apperrors.Wrap(apperrors.CodeUploadFailed, "Audio upload failed", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return "", apperrors.WrapWithDetail(apperrors.CodeUploadFailed, "Audio upload failed",
			fmt.Sprintf("status %d: %s", resp.StatusCode(), errorMessage(resp.Body())), nil)
	}

	var out struct {
		Url string `json:"url"`
	}
	if err := json.Unmarshal(resp.Body(), &out); err != nil || out.Url == "" {
		return "", apperrors.Wrap(apperrors.CodeUploadFailed, "Audio upload returned no url", err)
	}
	return out.Url, nil
}

// Fetch downloads previously uploaded audio bytes from a remote URL.
func (c *Client) Fetch(ctx context.Context, url string) ([]byte, error) {
	resp, err := c.http.R().SetContext(ctx).Get(url)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeFileNotFound, "Remote audio fetch failed", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, apperrors.WrapWithDetail(apperrors.CodeFileNotFound, "Remote audio fetch failed",
			fmt.Sprintf("status %d", resp.StatusCode()), nil)
	}
	return resp.Body(), nil
}

func errorMessage(body []byte) string {
	var e apiError
	if err := json.Unmarshal(body, &e); err == nil && e.text() != "" {
		return e.text()
	}
	s := string(body)
	if len(s) > 200 {
		s = s[:200]
	}
	return s
}

// isAuthExpiredMessage detects auth expiry by message content; the API layer
// does not use a dedicated status for it.
func isAuthExpiredMessage(msg string) bool {
	lower := strings.ToLower(msg)
	return strings.Contains(lower, "token expired") ||
		strings.Contains(lower, "token invalid") ||
		strings.Contains(lower, "unauthorized")
}
