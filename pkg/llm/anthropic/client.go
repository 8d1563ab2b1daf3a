// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
// Package anthropic implements llm.Backend on the Anthropic Messages API.
package anthropic

import (
	"context"
	"net/http"
	"strings"
	"time"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/cockroachdb/errors"
	"github.com/teradata-labs/toolbridge/pkg/llm"
	"go.uber.org/zap"
)

const (
	// DefaultAnthropicModel is the default Claude model
	DefaultAnthropicModel = "claude-sonnet-4-5-20250929"
	// DefaultMaxTokens is the default maximum tokens per request
	DefaultMaxTokens = 4096
	// DefaultTemperature is the default LLM temperature
	DefaultTemperature = 0.7
	// DefaultTimeout is the default per-attempt HTTP timeout
	DefaultTimeout = 60 * time.Second
	// DefaultMaxRetries is the SDK retry budget for 429/5xx.
	DefaultMaxRetries = 2
)

// Client implements llm.Backend for Anthropic's Claude API.
type Client struct {
	name        string
	model       string
	maxTokens   int
	temperature float64
	api         anthropicsdk.Client
	rateLimiter *llm.RateLimiter
	logger      *zap.Logger
}

// Config holds configuration for the Anthropic client.
type Config struct {
	APIKey      string
	BaseURL     string // Default: SDK default
	Model       string // Default: claude-sonnet-4-5-20250929
	Timeout     time.Duration
	MaxTokens   int      // Default: 4096
	Temperature *float64 // nil selects DefaultTemperature; 0 is honoured
	MaxRetries  int      // Default: 2, <0 disables
	HTTPClient  *http.Client
	RateLimiter *llm.RateLimiter
	Logger      *zap.Logger

	// Bedrock, when set, sends requests through AWS Bedrock with AWS
	// credentials instead of an API key.
	Bedrock *BedrockConfig
}

// NewClient creates a new Anthropic client.
func NewClient(config Config) (*Client, error) {
	if config.APIKey == "" && config.Bedrock == nil {
		return nil, errors.New("API key is required")
	}
	if config.Model == "" {
		config.Model = DefaultAnthropicModel
		if config.Bedrock != nil {
			config.Model = DefaultBedrockModelID
		}
	}
	if config.Timeout == 0 {
		config.Timeout = DefaultTimeout
	}
	if config.MaxTokens == 0 {
		config.MaxTokens = DefaultMaxTokens
	}
	temperature := DefaultTemperature
	if config.Temperature != nil {
		temperature = *config.Temperature
	}
	if config.MaxRetries == 0 {
		config.MaxRetries = DefaultMaxRetries
	} else if config.MaxRetries < 0 {
		config.MaxRetries = 0
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}

	name := "anthropic"
	opts := []option.RequestOption{
		option.WithMaxRetries(config.MaxRetries),
		option.WithRequestTimeout(config.Timeout),
	}
	if config.Bedrock != nil {
		bedrockOpt, err := bedrockOption(context.Background(), *config.Bedrock)
		if err != nil {
			return nil, err
		}
		name = "bedrock"
		opts = append(opts, bedrockOpt)
	} else {
		opts = append(opts, option.WithAPIKey(config.APIKey))
	}
	if config.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(strings.TrimSuffix(config.BaseURL, "/")+"/"))
	}
	if config.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(config.HTTPClient))
	}

	return &Client{
		name:        name,
		model:       config.Model,
		maxTokens:   config.MaxTokens,
		temperature: temperature,
		api:         anthropicsdk.NewClient(opts...),
		rateLimiter: config.RateLimiter,
		logger:      config.Logger,
	}, nil
}

// Name returns the provider name.
func (c *Client) Name() string {
	return c.name
}

// Model returns the model identifier.
func (c *Client) Model() string {
	return c.model
}

// Complete sends the conversation and returns the concatenated text blocks
// of the reply. Leading system messages are sent out of band.
func (c *Client) Complete(ctx context.Context, messages []llm.Message) (string, error) {
	return c.rateLimiter.Do(ctx, func(ctx context.Context) (string, error) {
		return c.complete(ctx, messages)
	})
}

func (c *Client) complete(ctx context.Context, messages []llm.Message) (string, error) {

	system, rest := llm.SplitSystem(messages)
	params := anthropicsdk.MessageNewParams{
		Model:       anthropicsdk.Model(c.model),
		MaxTokens:   int64(c.maxTokens),
		Temperature: anthropicsdk.Float(c.temperature),
		Messages:    convertMessages(rest),
	}
	for _, s := range system {
		params.System = append(params.System, anthropicsdk.TextBlockParam{Text: s})
	}

	start := time.Now()
	resp, err := c.api.Messages.New(ctx, params)
	if err != nil {
		return "", classify(err)
	}

	c.logger.Debug("message completed",
		zap.String("model", c.model),
		zap.Duration("duration", time.Since(start)),
		zap.Int64("input_tokens", resp.Usage.InputTokens),
		zap.Int64("output_tokens", resp.Usage.OutputTokens),
		zap.String("stop_reason", string(resp.StopReason)))

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if strings.TrimSpace(text.String()) == "" {
		return "", errors.Mark(errors.New("response contained no text"), llm.ErrBackendError)
	}
	return text.String(), nil
}

// convertMessages maps the conversation onto alternating user/assistant
// turns. The API rejects an empty message list, so a placeholder user turn
// is sent when only system text exists.
func convertMessages(messages []llm.Message) []anthropicsdk.MessageParam {
	out := make([]anthropicsdk.MessageParam, 0, len(messages))
	for _, m := range messages {
		if m.Role == llm.RoleAssistant {
			out = append(out, anthropicsdk.NewAssistantMessage(anthropicsdk.NewTextBlock(m.Content)))
			continue
		}
		out = append(out, anthropicsdk.NewUserMessage(anthropicsdk.NewTextBlock(m.Content)))
	}
	if len(out) == 0 {
		out = append(out, anthropicsdk.NewUserMessage(anthropicsdk.NewTextBlock(".")))
	}
	return out
}

func classify(err error) error {
	var apiErr *anthropicsdk.Error
	if errors.As(err, &apiErr) {
		return llm.ClassifyStatus(apiErr.StatusCode, errors.Wrapf(err, "messages API failed (status %d)", apiErr.StatusCode))
	}
	return llm.ClassifyStatus(0, errors.Wrap(err, "messages API failed"))
}

var _ llm.Backend = (*Client)(nil)
