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
// toolbridge is a command-line agent that answers questions with a language
// model and delegates arithmetic to a toolbridge tool server.
//
// Usage:
//
//	toolbridge --server http://localhost:8000            # interactive
//	toolbridge -i "What is 145 plus 237?"                # one query
//	toolbridge tools --output yaml                       # list tools
package main

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"

	"github.com/MakeNowJust/heredoc"
	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/teradata-labs/toolbridge/internal/log"
	"github.com/teradata-labs/toolbridge/internal/version"
	"github.com/teradata-labs/toolbridge/pkg/llm"
	"github.com/teradata-labs/toolbridge/pkg/llm/factory"
	"github.com/teradata-labs/toolbridge/pkg/mcp/client"
	"github.com/teradata-labs/toolbridge/pkg/mcp/transport"
	"go.uber.org/zap"
)

// cli carries state shared by every subcommand.
type cli struct {
	v       *viper.Viper
	cfgFile string
	cfg     *Config
	logger  *zap.Logger
}

func newRootCmd() *cobra.Command {
	c := &cli{v: viper.New(), logger: zap.NewNop()}
	var input string

	cmd := &cobra.Command{
		Use:   "toolbridge",
		Short: "LLM agent with tool calling",
		Long: heredoc.Doc(`
			toolbridge answers questions with a language model. When the model
			asks for a calculation, toolbridge runs it on a toolbridge tool server
			and hands the result back to the model.

			Without --input it starts an interactive session; type 'exit' or
			'quit' to leave.
		`),
		Example: heredoc.Doc(`
			# Ask once
			toolbridge -i "What is 145 plus 237?"

			# Interactive session against a remote server
			toolbridge --server http://10.0.0.5:8000

			# Use Anthropic instead of DeepSeek
			toolbridge --llm-provider anthropic -i "Divide 10 by 4"
		`),
		Version:           version.Get(),
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: c.setup,
		RunE: func(cmd *cobra.Command, args []string) error {
			if input != "" {
				return c.runAsk(cmd, input)
			}
			return c.runInteractive(cmd)
		},
	}
	cmd.PersistentPostRun = func(*cobra.Command, []string) { _ = log.Sync() }

	cmd.Flags().StringVarP(&input, "input", "i", "", "one-time input to process")

	flags := cmd.PersistentFlags()
	flags.StringVar(&c.cfgFile, "config", "", "config file (default: ./toolbridge.yaml or $HOME/.toolbridge/toolbridge.yaml)")
	flags.StringP("server", "s", "http://localhost:8000", "tool server URL")
	flags.String("transport", TransportSSE, "tool server transport (sse, direct)")
	flags.String("llm-provider", factory.ProviderDeepSeek, "LLM provider (deepseek, openai, anthropic, bedrock)")
	flags.String("api-key", "", "LLM API key (or use env/keyring)")
	flags.String("model", "", "LLM model (default: the provider's default)")
	flags.Int("max-tool-rounds", 1, "tool invocations allowed per query")
	flags.String("log-level", "warn", "log level (debug, info, warn, error)")
	flags.String("log-format", "text", "log format (text, json)")
	flags.String("log-file", "", "write logs to this file instead of stderr")

	_ = c.v.BindPFlag("server.url", flags.Lookup("server"))
	_ = c.v.BindPFlag("server.transport", flags.Lookup("transport"))
	_ = c.v.BindPFlag("llm.provider", flags.Lookup("llm-provider"))
	_ = c.v.BindPFlag("llm.api_key", flags.Lookup("api-key"))
	_ = c.v.BindPFlag("llm.model", flags.Lookup("model"))
	_ = c.v.BindPFlag("agent.max_tool_rounds", flags.Lookup("max-tool-rounds"))
	_ = c.v.BindPFlag("logging.level", flags.Lookup("log-level"))
	_ = c.v.BindPFlag("logging.format", flags.Lookup("log-format"))
	_ = c.v.BindPFlag("logging.file", flags.Lookup("log-file"))

	cmd.AddCommand(c.newAskCmd())
	cmd.AddCommand(c.newToolsCmd())
	cmd.AddCommand(c.newTestBackendCmd())
	cmd.AddCommand(newConfigCmd())
	return cmd
}

// setup loads configuration and the logger before any subcommand runs.
func (c *cli) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := LoadConfig(c.v, c.cfgFile)
	if err != nil {
		return err
	}
	logger, err := log.Build(cfg.Logging)
	if err != nil {
		return err
	}
	log.SetLogger(logger)
	c.cfg = cfg
	c.logger = logger
	return nil
}

// newTransport builds the configured client transport.
func (c *cli) newTransport() (transport.Transport, error) {
	switch c.cfg.Server.Transport {
	case TransportDirect:
		endpoint, err := url.JoinPath(c.cfg.Server.URL, c.cfg.Server.DirectPath)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid server URL %q", c.cfg.Server.URL)
		}
		return transport.NewDirectTransport(transport.DirectConfig{
			Endpoint: endpoint,
			Logger:   c.logger.Named("transport"),
		})
	default:
		return transport.NewSSETransport(transport.SSEConfig{
			Endpoint: c.cfg.Server.URL,
			SSEPath:  c.cfg.Server.SSEPath,
			Logger:   c.logger.Named("transport"),
		})
	}
}

// connect opens a ready-to-list session with the tool server.
func (c *cli) connect(ctx context.Context, status io.Writer) (*client.Client, error) {
	tr, err := c.newTransport()
	if err != nil {
		return nil, err
	}
	mc, err := client.NewClient(client.Config{
		Transport:      tr,
		Version:        version.Get(),
		RequestTimeout: c.cfg.Client.RequestTimeout,
		Logger:         c.logger.Named("client"),
	})
	if err != nil {
		return nil, err
	}

	if err := mc.Connect(ctx); err != nil {
		_ = mc.Close()
		return nil, errors.Wrapf(err, "connect to tool server at %s", c.cfg.Server.URL)
	}
	result, err := mc.Initialize(ctx)
	if err != nil {
		_ = mc.Close()
		return nil, errors.Wrapf(err, "initialize session with %s", c.cfg.Server.URL)
	}
	fmt.Fprintf(status, "Connected to server: %s %s\n", result.ServerInfo.Name, result.ServerInfo.Version)
	return mc, nil
}

// newBackend creates the configured LLM backend.
func (c *cli) newBackend() (llm.Backend, error) {
	temperature := c.cfg.LLM.Temperature
	f := factory.NewProviderFactory(factory.FactoryConfig{
		Provider:          c.cfg.LLM.Provider,
		APIKey:            c.cfg.ResolveAPIKey(),
		BaseURL:           c.cfg.LLM.BaseURL,
		Model:             c.cfg.LLM.Model,
		MaxTokens:         c.cfg.LLM.MaxTokens,
		Temperature:       &temperature,
		Timeout:           c.cfg.LLM.Timeout,
		RequestsPerSecond: c.cfg.LLM.RequestsPerSecond,
		BedrockRegion:     c.cfg.LLM.BedrockRegion,
		BedrockProfile:    c.cfg.LLM.BedrockProfile,
		Logger:            c.logger.Named("llm"),
	})
	return f.CreateBackend()
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
