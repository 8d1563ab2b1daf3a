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
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/viper"
	"github.com/teradata-labs/toolbridge/internal/log"
	"github.com/teradata-labs/toolbridge/pkg/mcp/session"
	"github.com/teradata-labs/toolbridge/pkg/mcp/transport"
)

const (
	// EnvPrefix namespaces environment overrides, e.g. TOOLBRIDGE_SERVER_PORT.
	EnvPrefix = "TOOLBRIDGE"
	// DefaultConfigFileName is the config file looked up without --config.
	DefaultConfigFileName = "toolbridge"
)

// Config holds all configuration for the tool server.
// Priority: CLI flags > env vars > config file > defaults
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Session  SessionConfig  `mapstructure:"session"`
	Dispatch DispatchConfig `mapstructure:"dispatch"`
	Logging  log.Config     `mapstructure:"logging"`
}

// ServerConfig holds the listener and route settings.
type ServerConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	SSEPath      string `mapstructure:"sse_path"`
	MessagesPath string `mapstructure:"messages_path"`
	DirectPath   string `mapstructure:"direct_path"` // empty disables the direct transport
}

// SessionConfig holds session lifecycle settings.
type SessionConfig struct {
	TTL           time.Duration `mapstructure:"ttl"` // 0 disables idle expiry
	SweepSchedule string        `mapstructure:"sweep_schedule"`
	QueueSize     int           `mapstructure:"queue_size"`
}

// DispatchConfig holds request dispatch settings.
type DispatchConfig struct {
	HandlerTimeout time.Duration `mapstructure:"handler_timeout"`
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.sse_path", "/sse")
	v.SetDefault("server.messages_path", transport.DefaultMessagesPath)
	v.SetDefault("server.direct_path", "/mcp")

	v.SetDefault("session.ttl", 30*time.Minute)
	v.SetDefault("session.sweep_schedule", session.DefaultSweepSchedule)
	v.SetDefault("session.queue_size", transport.DefaultQueueSize)

	v.SetDefault("dispatch.handler_timeout", 30*time.Second)

	v.SetDefault("logging.level", "info")
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
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Validate checks values viper cannot type-check.
func (c *Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return errors.Newf("server.port %d out of range", c.Server.Port)
	}
	for key, path := range map[string]string{
		"server.sse_path":      c.Server.SSEPath,
		"server.messages_path": c.Server.MessagesPath,
	} {
		if !strings.HasPrefix(path, "/") {
			return errors.Newf("%s must start with '/' (got %q)", key, path)
		}
	}
	if c.Server.SSEPath == c.Server.MessagesPath || c.Server.SSEPath == c.Server.DirectPath || c.Server.MessagesPath == c.Server.DirectPath {
		return errors.New("server paths must be distinct")
	}
	if c.Session.TTL < 0 {
		return errors.New("session.ttl must not be negative")
	}
	if c.Session.QueueSize < 0 {
		return errors.New("session.queue_size must not be negative")
	}
	return nil
}
