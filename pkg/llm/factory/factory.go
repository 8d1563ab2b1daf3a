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
// Package factory builds a text-generation backend from configuration.
package factory

import (
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/teradata-labs/toolbridge/pkg/llm"
	"github.com/teradata-labs/toolbridge/pkg/llm/anthropic"
	"github.com/teradata-labs/toolbridge/pkg/llm/openai"
	"go.uber.org/zap"
)

// Supported providers.
const (
	ProviderDeepSeek  = "deepseek"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderBedrock   = "bedrock"
)

// OpenAIBaseURL is the public OpenAI endpoint.
const OpenAIBaseURL = "https://api.openai.com/v1"

// APIKeyEnv maps each provider to the environment variable holding its key.
var APIKeyEnv = map[string]string{
	ProviderDeepSeek:  "DEEPSEEK_API_KEY",
	ProviderOpenAI:    "OPENAI_API_KEY",
	ProviderAnthropic: "ANTHROPIC_API_KEY",
}

// ErrUnknownProvider is returned for a provider name the factory cannot build.
var ErrUnknownProvider = errors.New("unknown LLM provider")

// ErrMissingAPIKey is returned when no key was configured or found.
var ErrMissingAPIKey = errors.New("API key not configured")

// FactoryConfig holds configuration for creating a backend.
type FactoryConfig struct {
	Provider string // Default: deepseek
	APIKey   string // falls back to the provider's environment variable
	BaseURL  string
	Model    string // Default: the provider's default model

	MaxTokens         int
	Temperature       *float64 // nil selects the backend default
	Timeout           time.Duration
	MaxRetries        int
	RequestsPerSecond float64 // <=0 disables rate limiting

	// Bedrock settings; AWS credentials come from the default chain
	// unless a profile is named.
	BedrockRegion  string
	BedrockProfile string

	Logger *zap.Logger
}

// ProviderFactory creates backends dynamically based on configuration.
type ProviderFactory struct {
	config FactoryConfig
	models *ModelRegistry
}

// NewProviderFactory creates a new provider factory.
func NewProviderFactory(config FactoryConfig) *ProviderFactory {
	if config.Provider == "" {
		config.Provider = ProviderDeepSeek
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}
	return &ProviderFactory{config: config, models: NewModelRegistry()}
}

// Models returns the model registry.
func (f *ProviderFactory) Models() *ModelRegistry {
	return f.models
}

// ResolveAPIKey returns the configured key, else the provider's environment
// variable.
func (f *ProviderFactory) ResolveAPIKey() string {
	if f.config.APIKey != "" {
		return f.config.APIKey
	}
	if env, ok := APIKeyEnv[f.config.Provider]; ok {
		return os.Getenv(env)
	}
	return ""
}

func knownProvider(name string) bool {
	_, ok := APIKeyEnv[name]
	return ok || name == ProviderBedrock
}

// IsProviderAvailable checks whether a backend can be built.
func (f *ProviderFactory) IsProviderAvailable() bool {
	if f.config.Provider == ProviderBedrock {
		return true
	}
	return knownProvider(f.config.Provider) && f.ResolveAPIKey() != ""
}

// CreateBackend builds the configured backend. It does not contact the API.
func (f *ProviderFactory) CreateBackend() (llm.Backend, error) {
	provider := f.config.Provider
	if !knownProvider(provider) {
		return nil, errors.Wrapf(ErrUnknownProvider, "%q (supported: %s, %s, %s, %s)",
			provider, ProviderDeepSeek, ProviderOpenAI, ProviderAnthropic, ProviderBedrock)
	}

	apiKey := f.ResolveAPIKey()
	if apiKey == "" && provider != ProviderBedrock {
		return nil, errors.Wrapf(ErrMissingAPIKey, "%s: set %s or store a key with 'toolbridge config set-key'",
			provider, APIKeyEnv[provider])
	}

	model := f.config.Model
	if model == "" {
		model = f.models.DefaultModel(provider)
	}

	var limiter *llm.RateLimiter
	if f.config.RequestsPerSecond > 0 {
		rlConfig := llm.DefaultRateLimiterConfig()
		rlConfig.RequestsPerSecond = f.config.RequestsPerSecond
		rlConfig.Logger = f.config.Logger
		limiter = llm.NewRateLimiter(rlConfig)
	}

	f.config.Logger.Debug("creating backend",
		zap.String("provider", provider),
		zap.String("model", model),
		zap.Bool("rate_limited", limiter != nil))

	switch provider {
	case ProviderAnthropic, ProviderBedrock:
		var bedrockCfg *anthropic.BedrockConfig
		if provider == ProviderBedrock {
			bedrockCfg = &anthropic.BedrockConfig{Region: f.config.BedrockRegion, Profile: f.config.BedrockProfile}
		}
		return anthropic.NewClient(anthropic.Config{
			Bedrock:     bedrockCfg,
			APIKey:      apiKey,
			BaseURL:     f.config.BaseURL,
			Model:       model,
			Timeout:     f.config.Timeout,
			MaxTokens:   f.config.MaxTokens,
			Temperature: f.config.Temperature,
			MaxRetries:  f.config.MaxRetries,
			RateLimiter: limiter,
			Logger:      f.config.Logger,
		})
	default:
		baseURL := f.config.BaseURL
		if baseURL == "" && provider == ProviderOpenAI {
			baseURL = OpenAIBaseURL
		}
		return openai.NewClient(openai.Config{
			Name:        provider,
			APIKey:      apiKey,
			BaseURL:     baseURL,
			Model:       model,
			Timeout:     f.config.Timeout,
			MaxTokens:   f.config.MaxTokens,
			Temperature: f.config.Temperature,
			MaxRetries:  f.config.MaxRetries,
			RateLimiter: limiter,
			Logger:      f.config.Logger,
		})
	}
}
