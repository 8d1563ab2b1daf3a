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
// Package openai implements llm.Backend on top of any OpenAI-compatible
// chat-completions API. The defaults target DeepSeek.
package openai

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
	"github.com/teradata-labs/toolbridge/pkg/llm"
	"go.uber.org/zap"
)

// Default configuration values.
const (
	DefaultName        = "deepseek"
	DefaultBaseURL     = "https://api.deepseek.com"
	DefaultModel       = "deepseek-chat"
	DefaultTimeout     = 60 * time.Second
	DefaultMaxTokens   = 4096
	DefaultTemperature = 0.7
	DefaultMaxRetries  = 2
)

// Client implements llm.Backend for OpenAI-compatible APIs.
type Client struct {
	name        string
	model       string
	maxTokens   int
	temperature float64
	api         openai.Client
	rateLimiter *llm.RateLimiter
	logger      *zap.Logger
}

// Config holds configuration for the client.
type Config struct {
	Name        string // provider name reported by Name(). Default: deepseek
	APIKey      string
	BaseURL     string        // Default: https://api.deepseek.com
	Model       string        // Default: deepseek-chat
	Timeout     time.Duration // per attempt. Default: 60s
	MaxTokens   int           // Default: 4096
	Temperature *float64      // nil selects DefaultTemperature; 0 is honoured
	MaxRetries  int           // SDK retries on 429/5xx. Default: 2, <0 disables
	HTTPClient  *http.Client
	RateLimiter *llm.RateLimiter
	Logger      *zap.Logger
}

// NewClient creates a new client. It does not contact the API.
func NewClient(config Config) (*Client, error) {
	if config.APIKey == "" {
		return nil, errors.New("API key is required")
	}
	if config.Name == "" {
		config.Name = DefaultName
	}
	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL
	}
	if config.Model == "" {
		config.Model = DefaultModel
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

	opts := []option.RequestOption{
		option.WithAPIKey(config.APIKey),
		option.WithBaseURL(strings.TrimSuffix(config.BaseURL, "/") + "/"),
		option.WithMaxRetries(config.MaxRetries),
		option.WithRequestTimeout(config.Timeout),
	}
	if config.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(config.HTTPClient))
	}

	return &Client{
		name:        config.Name,
		model:       config.Model,
		maxTokens:   config.MaxTokens,
		temperature: temperature,
		api:         openai.NewClient(opts...),
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

// Complete sends the conversation and returns the first choice's text.
func (c *Client) Complete(ctx context.Context, messages []llm.Message) (string, error) {
	return c.rateLimiter.Do(ctx, func(ctx context.Context) (string, error) {
		return c.complete(ctx, messages)
	})
}

func (c *Client) complete(ctx context.Context, messages []llm.Message) (string, error) {

	params := openai.ChatCompletionNewParams{
		Model:       shared.ChatModel(c.model),
		Messages:    convertMessages(messages),
		Temperature: openai.Float(c.temperature),
		MaxTokens:   openai.Int(int64(c.maxTokens)),
	}

	start := time.Now()
	resp, err := c.api.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", classify(err)
	}

	c.logger.Debug("chat completion",
		zap.String("provider", c.name),
		zap.String("model", c.model),
		zap.Duration("duration", time.Since(start)),
		zap.Int64("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int64("completion_tokens", resp.Usage.CompletionTokens))

	if len(resp.Choices) == 0 {
		return "", errors.Mark(errors.New("response contained no choices"), llm.ErrBackendError)
	}
	content := resp.Choices[0].Message.Content
	if strings.TrimSpace(content) == "" {
		return "", errors.Mark(errors.New("response contained no text"), llm.ErrBackendError)
	}
	return content, nil
}

func convertMessages(messages []llm.Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case llm.RoleSystem:
			out = append(out, openai.SystemMessage(m.Content))
		case llm.RoleAssistant:
			out = append(out, openai.AssistantMessage(m.Content))
		default:
			out = append(out, openai.UserMessage(m.Content))
		}
	}
	return out
}

// classify maps SDK failures onto the backend failure classes.
func classify(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return llm.ClassifyStatus(apiErr.StatusCode, errors.Wrapf(err, "chat completion failed (status %d)", apiErr.StatusCode))
	}
	return llm.ClassifyStatus(0, errors.Wrap(err, "chat completion failed"))
}

var _ llm.Backend = (*Client)(nil)
