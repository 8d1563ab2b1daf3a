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
package anthropic

import (
	"context"

	"github.com/anthropics/anthropic-sdk-go/bedrock"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/cockroachdb/errors"
)

// Bedrock defaults.
const (
	DefaultBedrockModelID = "us.anthropic.claude-sonnet-4-5-20250929-v1:0"
	DefaultBedrockRegion  = "us-west-2"
)

// BedrockConfig routes the Messages API through AWS Bedrock. Credentials
// resolve in order: explicit keys, named profile, default chain.
type BedrockConfig struct {
	Region          string
	Profile         string
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
}

func bedrockOption(ctx context.Context, cfg BedrockConfig) (option.RequestOption, error) {
	if cfg.Region == "" {
		cfg.Region = DefaultBedrockRegion
	}

	loaders := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	switch {
	case cfg.AccessKeyID != "" && cfg.SecretAccessKey != "":
		loaders = append(loaders, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, cfg.SessionToken)))
	case cfg.Profile != "":
		loaders = append(loaders, config.WithSharedConfigProfile(cfg.Profile))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, loaders...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load AWS config")
	}
	return bedrock.WithConfig(awsCfg), nil
}
