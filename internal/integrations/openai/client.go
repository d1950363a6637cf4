package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"triage-agent/internal/domain"
	"triage-agent/internal/integrations/paramstore"
)

const (
	providerName       = "openai"
	tokenParameterLeaf = "open-ai-token"
	defaultBaseURL     = "https://api.openai.com/v1"
	defaultModel       = "gpt-4o-mini"
	defaultTemperature = 0.7
)

// chatRequest is the minimal request shape for the Chat Completions endpoint.
type chatRequest struct {
	Model       string               `json:"model"`
	Messages    []domain.ChatMessage `json:"messages"`
	Temperature *float64             `json:"temperature,omitempty"`
}

// chatResponse is the minimal response shape returned by the Chat Completions endpoint.
type chatResponse struct {
	ID      string `json:"id"`
	Choices []struct {
		Index   int                `json:"index"`
		Message domain.ChatMessage `json:"message"`
	} `json:"choices"`
}

// HTTPStatusError captures non-2xx upstream responses with status-aware context.
type HTTPStatusError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("openai: unexpected status %d from %s: %s", e.StatusCode, e.URL, e.Body)
}

func (e *HTTPStatusError) HTTPStatusCode() int {
	return e.StatusCode
}

// Client turns single prompts into chat completions against an
// OpenAI-compatible endpoint.
type Client struct {
	baseURL     string
	model       string
	temperature float64
	httpClient  *http.Client
	apiKey      string
}

type Option func(*Client)

func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimSpace(baseURL)
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

func WithTemperature(t float64) Option {
	return func(c *Client) {
		c.temperature = t
	}
}

// NewClient resolves the API token from <paramPrefix>/open-ai-token before
// returning, so a missing credential fails at startup rather than mid
// consultation.
func NewClient(ctx context.Context, ps paramstore.Getter, paramPrefix, model string, opts ...Option) (*Client, error) {
	if ps == nil {
		return nil, configErr(errors.New("paramstore getter must not be nil"))
	}
	paramPrefix = strings.TrimRight(strings.TrimSpace(paramPrefix), "/")
	if paramPrefix == "" {
		return nil, configErr(errors.New("parameter prefix must not be empty"))
	}
	model = strings.TrimSpace(model)
	if model == "" {
		model = defaultModel
	}

	apiKey, err := paramstore.FetchToken(ctx, ps, paramstore.TokenName(paramPrefix, tokenParameterLeaf))
	if err != nil {
		return nil, configErr(err)
	}

	c := &Client{
		baseURL:     defaultBaseURL,
		model:       model,
		temperature: defaultTemperature,
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		apiKey:      apiKey,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func configErr(err error) error {
	return &domain.ConfigurationError{Component: providerName, Err: err}
}

func genErr(err error) error {
	return &domain.GenerationError{Provider: providerName, Err: err}
}

// resolvedHTTPClient returns the configured HTTP client, or a default with a
// 30s timeout if none was set.
func (c *Client) resolvedHTTPClient() *http.Client {
	if c.httpClient != nil {
		return c.httpClient
	}
	return &http.Client{Timeout: 30 * time.Second}
}

func chatURL(baseURL string) string {
	base := strings.TrimRight(baseURL, "/")
	if base == "" {
		base = defaultBaseURL
	}
	if strings.HasSuffix(base, "/v1") {
		return base + "/chat/completions"
	}
	return base + "/v1/chat/completions"
}

// Generate sends prompt as a single user message and returns the first
// choice. Every failure is a *domain.GenerationError.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	temp := c.temperature
	body, err := json.Marshal(chatRequest{
		Model:       c.model,
		Messages:    []domain.ChatMessage{{Role: "user", Content: prompt}},
		Temperature: &temp,
	})
	if err != nil {
		return "", genErr(fmt.Errorf("marshal request: %w", err))
	}

	url := chatURL(c.baseURL)

	req, reqErr := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if reqErr != nil {
		return "", genErr(fmt.Errorf("create request: %w", reqErr))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	raw, err := c.doJSONRequest(req, url)
	if err != nil {
		return "", genErr(fmt.Errorf("request failed: %w", err))
	}

	var payload chatResponse
	if decErr := json.Unmarshal(raw, &payload); decErr != nil {
		return "", genErr(fmt.Errorf("decode response: %w", decErr))
	}
	if len(payload.Choices) == 0 {
		return "", genErr(errors.New("no choices in response"))
	}
	content := strings.TrimSpace(payload.Choices[0].Message.Content)
	if content == "" {
		return "", genErr(errors.New("empty completion"))
	}
	return content, nil
}

func (c *Client) doJSONRequest(req *http.Request, url string) ([]byte, error) {
	res, doErr := c.resolvedHTTPClient().Do(req)
	if doErr != nil {
		return nil, doErr
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		buf, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return nil, &HTTPStatusError{
			StatusCode: res.StatusCode,
			URL:        url,
			Body:       string(buf),
		}
	}

	buf, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	return buf, nil
}
