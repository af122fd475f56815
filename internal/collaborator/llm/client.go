// Package llm adapts an OpenAI-compatible chat completions API to the
// classifier, extractor and guesser collaborators.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/JakeFAU/funding-crawler/internal/funding"
)

// Config selects the endpoint and model.
type Config struct {
	BaseURL     string
	APIKey      string
	Model       string
	Timeout     time.Duration
	Temperature float32
}

// Client implements funding.Classifier, funding.Extractor and funding.Guesser.
type Client struct {
	api     *openai.Client
	model   string
	temp    float32
	timeout time.Duration
	logger  *zap.Logger
}

// New builds a Client. BaseURL may point at any OpenAI-compatible server.
func New(cfg Config, logger *zap.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.Model) == "" {
		return nil, fmt.Errorf("llm.model is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	apiCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		apiCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	apiCfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	return &Client{
		api:     openai.NewClientWithConfig(apiCfg),
		model:   cfg.Model,
		temp:    cfg.Temperature,
		timeout: cfg.Timeout,
		logger:  logger,
	}, nil
}

// ClassifyFunding asks whether text is about a company raising money.
func (c *Client) ClassifyFunding(ctx context.Context, text string) (bool, error) {
	content, err := c.complete(ctx, "classify", buildClassifyPrompt(text), 256)
	if err != nil {
		return false, err
	}
	var verdict struct {
		IsFunding bool   `json:"is_funding"`
		Reason    string `json:"reason"`
	}
	if err := decodeObject(content, &verdict); err != nil {
		return false, fmt.Errorf("classify: %w", err)
	}
	c.logger.Debug("funding classification",
		zap.Bool("is_funding", verdict.IsFunding),
		zap.String("reason", verdict.Reason),
	)
	return verdict.IsFunding, nil
}

// ExtractFunding pulls one or more funding events out of text.
func (c *Client) ExtractFunding(ctx context.Context, text string) (funding.ExtractionResult, error) {
	content, err := c.complete(ctx, "extract", buildExtractPrompt(text), 1024)
	if err != nil {
		return funding.ExtractionResult{}, err
	}
	result, err := decodeExtraction(content)
	if err != nil {
		return funding.ExtractionResult{}, fmt.Errorf("extract: %w", err)
	}
	return result, nil
}

// GuessEntityLinks proposes likely website domains and a profile URL.
func (c *Client) GuessEntityLinks(ctx context.Context, text string, companyName string) (funding.LinkGuess, error) {
	content, err := c.complete(ctx, "guess", buildGuessPrompt(text, companyName), 256)
	if err != nil {
		return funding.LinkGuess{}, err
	}
	var guess funding.LinkGuess
	if err := decodeObject(content, &guess); err != nil {
		return funding.LinkGuess{}, fmt.Errorf("guess links: %w", err)
	}
	return guess, nil
}

func (c *Client) complete(ctx context.Context, op, prompt string, maxTokens int) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		MaxTokens:   maxTokens,
		Temperature: c.temp,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return "", classifyError(op, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%s: empty completion", op)
	}
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return "", fmt.Errorf("%s: empty completion", op)
	}
	return content, nil
}

// classifyError marks provider throttling and outages as transient.
func classifyError(op string, err error) error {
	status := 0
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	}
	if status == http.StatusTooManyRequests || status >= http.StatusInternalServerError {
		return &funding.TransientError{Op: op, Status: status, Err: err}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &funding.TransientError{Op: op, Err: err}
	}
	return fmt.Errorf("%s: %w", op, err)
}
