// Package gemini adapts langchaingo's Google AI model to the single-prompt
// generation contract used by the consultation flow.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/googleai"
	"github.com/tmc/langchaingo/schema"

	"triage-agent/internal/domain"
	"triage-agent/internal/integrations/paramstore"
)

const (
	providerName       = "gemini"
	tokenParameterLeaf = "gemini-token"
	defaultModel       = "gemini-1.5-flash"
	defaultTemperature = 0.7
)

// contentGenerator is the slice of llms.Model this package needs.
// *googleai.GoogleAI satisfies it.
type contentGenerator interface {
	GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error)
}

type Client struct {
	llm         contentGenerator
	temperature float64
}

type Option func(*Client)

func WithTemperature(t float64) Option {
	return func(c *Client) {
		c.temperature = t
	}
}

// NewClient resolves the API token from <paramPrefix>/gemini-token and
// initializes the Google AI model with it.
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

	llm, err := googleai.New(
		ctx,
		googleai.WithAPIKey(apiKey),
		googleai.WithDefaultModel(model),
	)
	if err != nil {
		return nil, configErr(fmt.Errorf("initialize model: %w", err))
	}
	return newClient(llm, opts...)
}

func newClient(llm contentGenerator, opts ...Option) (*Client, error) {
	if llm == nil {
		return nil, configErr(errors.New("model must not be nil"))
	}
	c := &Client{llm: llm, temperature: defaultTemperature}
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

// Generate sends prompt as one human message and returns the first
// non-empty candidate.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := c.llm.GenerateContent(ctx,
		[]llms.MessageContent{llms.TextParts(schema.ChatMessageTypeHuman, prompt)},
		llms.WithTemperature(c.temperature),
	)
	if err != nil {
		return "", genErr(err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return "", genErr(errors.New("no choices in response"))
	}
	for _, choice := range resp.Choices {
		if choice == nil {
			continue
		}
		if text := strings.TrimSpace(choice.Content); text != "" {
			return text, nil
		}
	}
	return "", genErr(errors.New("empty completion"))
}
