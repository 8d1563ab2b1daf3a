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
package factory

import "sort"

// ModelInfo describes a model a provider serves.
type ModelInfo struct {
	ID            string `json:"id" yaml:"id"`
	Name          string `json:"name" yaml:"name"`
	Provider      string `json:"provider" yaml:"provider"`
	ContextWindow int    `json:"context_window" yaml:"context_window"`
	Default       bool   `json:"default,omitempty" yaml:"default,omitempty"`
}

// ModelRegistry holds the known models per provider. The first model of
// each provider is its default.
type ModelRegistry struct {
	models map[string][]ModelInfo
}

// NewModelRegistry creates a registry of the supported providers' models.
func NewModelRegistry() *ModelRegistry {
	return &ModelRegistry{
		models: map[string][]ModelInfo{
			ProviderDeepSeek: {
				{ID: "deepseek-chat", Name: "DeepSeek Chat", ContextWindow: 64000},
				{ID: "deepseek-reasoner", Name: "DeepSeek Reasoner", ContextWindow: 64000},
			},
			ProviderOpenAI: {
				{ID: "gpt-4.1", Name: "GPT-4.1", ContextWindow: 1047576},
				{ID: "gpt-4o", Name: "GPT-4o", ContextWindow: 128000},
				{ID: "gpt-4o-mini", Name: "GPT-4o mini", ContextWindow: 128000},
			},
			ProviderAnthropic: {
				{ID: "claude-sonnet-4-5-20250929", Name: "Claude Sonnet 4.5", ContextWindow: 200000},
				{ID: "claude-3-5-haiku-20241022", Name: "Claude 3.5 Haiku", ContextWindow: 200000},
			},
			ProviderBedrock: {
				{ID: "us.anthropic.claude-sonnet-4-5-20250929-v1:0", Name: "Claude Sonnet 4.5 (Bedrock)", ContextWindow: 200000},
			},
		},
	}
}

// GetModelsForProvider returns all models for a specific provider.
func (r *ModelRegistry) GetModelsForProvider(provider string) []ModelInfo {
	models := r.models[provider]
	if models == nil {
		return nil
	}

	result := make([]ModelInfo, len(models))
	for i, m := range models {
		m.Provider = provider
		m.Default = i == 0
		result[i] = m
	}
	return result
}

// DefaultModel returns the default model of a provider, or "" if the
// provider is unknown.
func (r *ModelRegistry) DefaultModel(provider string) string {
	if models := r.models[provider]; len(models) > 0 {
		return models[0].ID
	}
	return ""
}

// Providers returns the known provider names, sorted.
func (r *ModelRegistry) Providers() []string {
	names := make([]string, 0, len(r.models))
	for name := range r.models {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GetAllModels returns all models from all providers, grouped by provider
// in name order.
func (r *ModelRegistry) GetAllModels() []ModelInfo {
	var all []ModelInfo
	for _, p := range r.Providers() {
		all = append(all, r.GetModelsForProvider(p)...)
	}
	return all
}
