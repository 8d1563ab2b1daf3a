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
	"context"
	"fmt"
	"io"
	"time"

	"github.com/MakeNowJust/heredoc"
	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"github.com/teradata-labs/toolbridge/pkg/llm"
)

const backendProbe = "Hello, are you working?"

func (c *cli) newTestBackendCmd() *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "test-backend",
		Short: "Check that the LLM backend answers",
		Long: heredoc.Doc(`
			Send a single short message to the configured LLM backend and print
			its reply. The tool server is not contacted.
		`),
		RunE: func(cmd *cobra.Command, args []string) error {
			backend, err := c.newBackend()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			return probeBackend(ctx, backend, cmd.OutOrStdout())
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "give up after this long")
	return cmd
}

func probeBackend(ctx context.Context, backend llm.Backend, out io.Writer) error {
	fmt.Fprintf(out, "Testing %s backend (model %s)...\n", backend.Name(), backend.Model())
	start := time.Now()
	reply, err := backend.Complete(ctx, []llm.Message{{Role: llm.RoleUser, Content: backendProbe}})
	if err != nil {
		if errors.Is(err, llm.ErrBackendUnavailable) {
			return errors.Wrap(err, "backend unreachable")
		}
		return errors.Wrap(err, "backend rejected the request")
	}
	fmt.Fprintf(out, "Response (%s): %s\n", time.Since(start).Round(time.Millisecond), reply)
	fmt.Fprintln(out, "Backend connection successful!")
	return nil
}
