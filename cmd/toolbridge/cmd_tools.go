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
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/MakeNowJust/heredoc"
	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"github.com/teradata-labs/toolbridge/pkg/mcp/protocol"
	"gopkg.in/yaml.v3"
)

// Output formats accepted by --output.
const (
	OutputTable = "table"
	OutputJSON  = "json"
	OutputYAML  = "yaml"
)

func (c *cli) newToolsCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "tools",
		Short: "List the tools offered by the server",
		Long: heredoc.Doc(`
			Connect to the tool server, negotiate a session and print its tool
			catalog.
		`),
		Example: heredoc.Doc(`
			toolbridge tools
			toolbridge tools --output json
		`),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			mc, err := c.connect(ctx, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer func() { _ = mc.Close() }()

			tools, err := mc.ListTools(ctx)
			if err != nil {
				return errors.Wrap(err, "list tools")
			}
			return renderTools(cmd.OutOrStdout(), tools, output)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", OutputTable, "output format (table, json, yaml)")
	return cmd
}

// toolView is the serialisable shape of a catalog entry. The raw input
// schema is left out; parameters already describe it.
type toolView struct {
	Name        string          `json:"name" yaml:"name"`
	Description string          `json:"description,omitempty" yaml:"description,omitempty"`
	Parameters  []parameterView `json:"parameters" yaml:"parameters"`
	Returns     string          `json:"returns,omitempty" yaml:"returns,omitempty"`
}

type parameterView struct {
	Name        string `json:"name" yaml:"name"`
	Type        string `json:"type" yaml:"type"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	Required    bool   `json:"required" yaml:"required"`
}

func viewOf(t protocol.Tool) toolView {
	v := toolView{Name: t.Name, Description: t.Description, Parameters: []parameterView{}}
	for _, p := range t.Parameters {
		v.Parameters = append(v.Parameters, parameterView{
			Name:        p.Name,
			Type:        string(p.Type),
			Description: p.Description,
			Required:    p.Required,
		})
	}
	if t.Returns != nil {
		v.Returns = string(t.Returns.Type)
	}
	return v
}

func renderTools(w io.Writer, tools []protocol.Tool, format string) error {
	views := make([]toolView, 0, len(tools))
	for _, t := range tools {
		views = append(views, viewOf(t))
	}

	switch format {
	case OutputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(views)

	case OutputYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(views); err != nil {
			return errors.Wrap(err, "encode yaml")
		}
		return enc.Close()

	case OutputTable, "":
		if len(tools) == 0 {
			_, err := fmt.Fprintln(w, "The server offers no tools.")
			return err
		}
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "NAME\tPARAMETERS\tRETURNS\tDESCRIPTION")
		fmt.Fprintln(tw, "----\t----------\t-------\t-----------")
		for _, v := range views {
			params := make([]string, 0, len(v.Parameters))
			for _, p := range v.Parameters {
				s := p.Name + ":" + p.Type
				if !p.Required {
					s += "?"
				}
				params = append(params, s)
			}
			returns := v.Returns
			if returns == "" {
				returns = "-"
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", v.Name, strings.Join(params, ", "), returns, v.Description)
		}
		return tw.Flush()

	default:
		return errors.Newf("unknown output format %q (expected table, json or yaml)", format)
	}
}
