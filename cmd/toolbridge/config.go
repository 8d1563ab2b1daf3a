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
package main

import (
	"os"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/viper"
	"github.com/teradata-labs/toolbridge/internal/log"
	"github.com/teradata-labs/toolbridge/pkg/agent"
	"github.com/teradata-labs/toolbridge/pkg/llm/factory"
	"github.com/teradata-labs/toolbridge/pkg/mcp/client"
	"github.com/zalando/go-keyring"
)

const (
	// ServiceName for keyring storage
	ServiceName = "toolbridge"
	// EnvPrefix namespaces environment overrides, e.g. TOOLBRIDGE_LLM_MODEL.
	EnvPrefix = "TOOLBRIDGE"
	// DefaultConfigFileName is the config file looked up without --config.
	DefaultConfigFileName = "toolbridge"
)

// Transport names accepted by server.transport.
const (
	TransportSSE    = "sse"
	TransportDirect = "direct"
)

// Config holds all configuration for the agent CLI.
// Priority: CLI flags > env vars > config file > defaults
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Client  ClientConfig  `mapstructure:"client"`
	LLM     LLMConfig     `mapstructure:"llm"`
	Agent   AgentConfig   `mapstructure:"agent"`
	Logging log.Config   `mapstructure:"logging"`
}

// ServerConfig locates the tool server.
type ServerConfig struct {
	URL        string `mapstructure:"url"`
	Transport  string `mapstructure:"transport"`
	SSEPath    string `mapstructure:"sse_path"`
	DirectPath string `mapstructure:"direct_path"`
}

// ClientConfig tunes the protocol client.
type ClientConfig struct {
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// LLMConfig selects and tunes the language-model backend.
type LLMConfig struct {
	Provider          string        `mapstructure:"provider"`
	APIKey            string        `mapstructure:"api_key"`
	BaseURL           string        `mapstructure:"base_url"`
	Model             string        `mapstructure:"model"`
	Temperature       float64       `mapstructure:"temperature"`
	MaxTokens         int           `mapstructure:"max_tokens"`
	Timeout           time.Duration `mapstructure:"timeout"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	BedrockRegion     string        `mapstructure:"bedrock_region"`
	BedrockProfile    string        `mapstructure:"bedrock_profile"`
}

// AgentConfig bounds the tool-use loop.
type AgentConfig struct {
	MaxToolRounds int `mapstructure:"max_tool_rounds"`
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.url", "http://localhost:8000")
	v.SetDefault("server.transport", TransportSSE)
	v.SetDefault("server.sse_path", "/sse")
	v.SetDefault("server.direct_path", "/mcp")

	v.SetDefault("client.request_timeout", client.DefaultRequestTimeout)

	v.SetDefault("llm.provider", factory.ProviderDeepSeek)
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.base_url", "")
	v.SetDefault("llm.model", "")
	v.SetDefault("llm.temperature", 0.7)
	v.SetDefault("llm.max_tokens", 4096)
	v.SetDefault("llm.timeout", 60*time.Second)
	v.SetDefault("llm.requests_per_second", 2.0)
	v.SetDefault("llm.bedrock_region", "us-west-2")
	v.SetDefault("llm.bedrock_profile", "")

	v.SetDefault("agent.max_tool_rounds", agent.DefaultMaxToolRounds)

	// The CLI prints answers on stdout; keep stderr quiet by default.
	v.SetDefault("logging.level", "warn")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.file", "")
}

// LoadConfig merges defaults, the config file, environment variables and
// bound flags into a Config.
func LoadConfig(v *viper.Viper, cfgFile string) (*Config, error) {
	setDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.toolbridge")
		v.SetConfigName(DefaultConfigFileName)
		v.SetConfigType("yaml")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, errors.Wrapf(err, "error reading config file %s", v.ConfigFileUsed())
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}

	switch config.Server.Transport {
	case TransportSSE, TransportDirect:
	default:
		return nil, errors.Newf("server.transport must be %q or %q (got %q)",
			TransportSSE, TransportDirect, config.Server.Transport)
	}
	return &config, nil
}

// KeyringKey is the keyring entry holding a provider's API key.
func KeyringKey(provider string) string {
	return provider + "_api_key"
}

// ListAvailableSecretKeys returns the keyring entries set-key accepts.
func ListAvailableSecretKeys() []string {
	return []string{
		KeyringKey(factory.ProviderDeepSeek),
		KeyringKey(factory.ProviderOpenAI),
		KeyringKey(factory.ProviderAnthropic),
	}
}

// ResolveAPIKey returns the key for the configured provider: config or
// flag first, then the provider's environment variable, then the system
// keyring. Keyring failures are treated as "not set".
func (c *Config) ResolveAPIKey() string {
	if c.LLM.APIKey != "" {
		return c.LLM.APIKey
	}
	if env, ok := factory.APIKeyEnv[c.LLM.Provider]; ok {
		if key := os.Getenv(env); key != "" {
			return key
		}
	}
	key, err := keyring.Get(ServiceName, KeyringKey(c.LLM.Provider))
	if err != nil {
		return ""
	}
	return key
}
