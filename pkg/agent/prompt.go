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
	"fmt"
	"strings"

	"github.com/teradata-labs/toolbridge/pkg/mcp/protocol"
)

const fence = "```"

// FormatCatalog renders tools the way they are shown to the model:
//
//	Tool: calculator:add
//	Description: Add two numbers together
//	Parameters:
//	  - a (required): First number (type: number)
func FormatCatalog(tools []protocol.Tool) string {
	blocks := make([]string, 0, len(tools))
	for _, tool := range tools {
		var b strings.Builder
		fmt.Fprintf(&b, "Tool: %s\n", tool.Name)
		fmt.Fprintf(&b, "Description: %s\n", tool.Description)
		b.WriteString("Parameters:\n")
		for _, p := range tool.Parameters {
			b.WriteString("  - " + p.Name)
			if p.Required {
				b.WriteString(" (required)")
			}
			desc := p.Description
			if desc == "" {
				desc = "No description"
			}
			fmt.Fprintf(&b, ": %s (type: %s)\n", desc, p.Type)
		}
		blocks = append(blocks, b.String())
	}
	return strings.Join(blocks, "\n")
}

func jsonBlock(tool string, params ...string) string {
	var b strings.Builder
	b.WriteString(fence + "json\n{\n")
	fmt.Fprintf(&b, "  \"tool\": %q,\n", tool)
	b.WriteString("  \"parameters\": {\n")
	for i, p := range params {
		b.WriteString("    " + p)
		if i < len(params)-1 {
			b.WriteString(",")
		}
		b.WriteString("\n")
	}
	b.WriteString("  }\n}\n" + fence + "\n")
	return b.String()
}

// BuildSystemPrompt embeds the catalog and the invocation format. The
// multi-step guidance is only included when more than one tool round is
// allowed per query.
func BuildSystemPrompt(tools []protocol.Tool, maxToolRounds int) string {
	var b strings.Builder
	b.WriteString("You are a helpful assistant with access to the following tools:\n\n")
	b.WriteString(FormatCatalog(tools))
	b.WriteString("\n\nTo use a tool, include a JSON block anywhere in your response like this:\n")
	b.WriteString(jsonBlock("tool_name", `"param1": value1`, `"param2": value2`))
	b.WriteString("\nIMPORTANT RULES:\n")
	b.WriteString("1. You can explain your reasoning, but ALWAYS use tools for operations - NEVER perform calculations yourself\n")
	b.WriteString("2. Use ONE tool call per response\n")
	b.WriteString("3. Use the exact tool names listed above\n")
	b.WriteString("4. If no tool fits the request, answer directly without a JSON block\n")

	if maxToolRounds > 1 {
		b.WriteString("\nFor multi-step tasks:\n")
		b.WriteString("1. First explain which step you're on and what you're doing (e.g., 'Step 1: I'll add these numbers')\n")
		b.WriteString("2. Then include the JSON block to call the appropriate tool\n")
		b.WriteString("3. After receiving a tool result, make the next tool call if more operations remain\n")
		b.WriteString("4. Only provide a final answer when the entire task is complete\n\n")
		b.WriteString("For example, to calculate '5+10-3':\n")
		b.WriteString("Step a: I'll add 5 and 10\n")
		b.WriteString(jsonBlock("calculator:add", `"a": 5`, `"b": 10`))
		b.WriteString("\nAfter receiving result 15:\n")
		b.WriteString("Step b: Now I'll subtract 3 from the result 15\n")
		b.WriteString(jsonBlock("calculator:subtract", `"a": 15`, `"b": 3`))
		b.WriteString("\nAfter receiving result 12:\n")
		b.WriteString("The result of 5+10-3 is 12.\n")
	}

	b.WriteString("\nWhen a tool result is provided, answer the user's question in natural language using it.")
	return b.String()
}
