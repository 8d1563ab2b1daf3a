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
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := LoadConfig(viper.New(), "")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8000", cfg.Server.URL)
	assert.Equal(t, TransportSSE, cfg.Server.Transport)
	assert.Equal(t, 30*time.Second, cfg.Client.RequestTimeout)
	assert.Equal(t, "deepseek", cfg.LLM.Provider)
	assert.Equal(t, 0.7, cfg.LLM.Temperature)
	assert.Equal(t, 4096, cfg.LLM.MaxTokens)
	assert.Equal(t, 60*time.Second, cfg.LLM.Timeout)
	assert.Equal(t, 2.0, cfg.LLM.RequestsPerSecond)
	assert.Equal(t, 1, cfg.Agent.MaxToolRounds)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestLoadConfig_FileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agent.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  url: http://tools.internal:9000
  transport: direct
llm:
  provider: anthropic
  model: claude-sonnet-4-5-20250929
agent:
  max_tool_rounds: 3
`), 0600))
	t.Setenv("TOOLBRIDGE_LLM_TEMPERATURE", "0.2")
	t.Setenv("TOOLBRIDGE_CLIENT_REQUEST_TIMEOUT", "5s")

	cfg, err := LoadConfig(viper.New(), path)
	require.NoError(t, err)
	assert.Equal(t, "http://tools.internal:9000", cfg.Server.URL)
	assert.Equal(t, TransportDirect, cfg.Server.Transport)
	assert.Equal(t, "anthropic", cfg.LLM.Provider)
	assert.Equal(t, "claude-sonnet-4-5-20250929", cfg.LLM.Model)
	assert.Equal(t, 3, cfg.Agent.MaxToolRounds)
	assert.Equal(t, 0.2, cfg.LLM.Temperature)
	assert.Equal(t, 5*time.Second, cfg.Client.RequestTimeout)
}

func TestLoadConfig_BadTransport(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("TOOLBRIDGE_SERVER_TRANSPORT", "carrier-pigeon")

	_, err := LoadConfig(viper.New(), "")
	assert.ErrorContains(t, err, "server.transport")
}

func TestResolveAPIKey(t *testing.T) {
	keyring.MockInit()
	t.Setenv("DEEPSEEK_API_KEY", "")

	cfg := &Config{LLM: LLMConfig{Provider: "deepseek"}}
	assert.Empty(t, cfg.ResolveAPIKey())

	require.NoError(t, keyring.Set(ServiceName, "deepseek_api_key", "sk-from-keyring"))
	assert.Equal(t, "sk-from-keyring", cfg.ResolveAPIKey())

	t.Setenv("DEEPSEEK_API_KEY", "sk-from-env")
	assert.Equal(t, "sk-from-env", cfg.ResolveAPIKey())

	cfg.LLM.APIKey = "sk-from-flag"
	assert.Equal(t, "sk-from-flag", cfg.ResolveAPIKey())
}

func TestListAvailableSecretKeys(t *testing.T) {
	assert.Equal(t, []string{"deepseek_api_key", "openai_api_key", "anthropic_api_key"}, ListAvailableSecretKeys())
	assert.NoError(t, checkKeyName("openai_api_key"))
	assert.Error(t, checkKeyName("hawk_api_key"))
}
