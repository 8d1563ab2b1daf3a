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
package agent

import (
	"encoding/json"
	"regexp"
	"strings"
)

// ToolCall is a tool invocation extracted from backend output.
type ToolCall struct {
	Tool       string                 `json:"tool"`
	Parameters map[string]interface{} `json:"parameters"`
}

var (
	taggedFence = regexp.MustCompile("(?s)```json[ \t]*\r?\n(.*?)\r?\n[ \t]*```")
	bareFence   = regexp.MustCompile("(?s)```[ \t]*\r?\n(.*?)\r?\n[ \t]*```")
)

// ParseToolCall looks for a tool invocation in text. Candidates are tried
// in order: ```json fenced blocks, bare ``` fenced blocks, the whole text,
// then every JSON object embedded in the prose. The first object with a
// string "tool" and an object "parameters" wins. Anything else, including
// blocks that fail to parse, is not an invocation.
func ParseToolCall(text string) (ToolCall, bool) {
	for _, fence := range []*regexp.Regexp{taggedFence, bareFence} {
		for _, m := range fence.FindAllStringSubmatch(text, -1) {
			if call, ok := decodeToolCall(m[1]); ok {
				return call, true
			}
		}
	}

	if call, ok := decodeToolCall(text); ok {
		return call, true
	}

	for i := strings.IndexByte(text, '{'); i >= 0; {
		if call, ok := decodeEmbedded(text[i:]); ok {
			return call, true
		}
		next := strings.IndexByte(text[i+1:], '{')
		if next < 0 {
			break
		}
		i += next + 1
	}
	return ToolCall{}, false
}

func decodeToolCall(s string) (ToolCall, bool) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal([]byte(strings.TrimSpace(s)), &obj); err != nil {
		return ToolCall{}, false
	}
	return fromObject(obj)
}

// decodeEmbedded decodes the first JSON value at the start of s and ignores
// whatever follows it.
func decodeEmbedded(s string) (ToolCall, bool) {
	var obj map[string]json.RawMessage
	if err := json.NewDecoder(strings.NewReader(s)).Decode(&obj); err != nil {
		return ToolCall{}, false
	}
	return fromObject(obj)
}

func fromObject(obj map[string]json.RawMessage) (ToolCall, bool) {
	var call ToolCall
	rawTool, ok := obj["tool"]
	if !ok || json.Unmarshal(rawTool, &call.Tool) != nil || call.Tool == "" {
		return ToolCall{}, false
	}
	rawParams, ok := obj["parameters"]
	if !ok || json.Unmarshal(rawParams, &call.Parameters) != nil || call.Parameters == nil {
		return ToolCall{}, false
	}
	return call, true
}
