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
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/MakeNowJust/heredoc"
	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"github.com/teradata-labs/toolbridge/pkg/agent"
	"go.uber.org/zap"
)

// asker is the part of *agent.Agent the REPL needs.
type asker interface {
	Ask(ctx context.Context, query string) (*agent.Answer, error)
}

func (c *cli) newAskCmd() *cobra.Command {
	var input string
	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Answer a single question",
		Long: heredoc.Doc(`
			Answer one question and exit. The question is taken from --input or
			from the remaining arguments.
		`),
		Example: heredoc.Doc(`
			toolbridge ask "Subtract 50 from 100"
			toolbridge ask -i "What is 145 plus 237?"
		`),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := input
			if query == "" {
				query = strings.Join(args, " ")
			}
			if strings.TrimSpace(query) == "" {
				return errors.New("a question is required (pass it as an argument or with --input)")
			}
			return c.runAsk(cmd, query)
		},
	}
	cmd.Flags().StringVarP(&input, "input", "i", "", "question to answer")
	return cmd
}

// startAgent connects to the tool server, discovers its tools and wires
// the backend. The returned cleanup closes the session.
func (c *cli) startAgent(ctx context.Context, status io.Writer) (*agent.Agent, func(), error) {
	backend, err := c.newBackend()
	if err != nil {
		return nil, nil, err
	}
	mc, err := c.connect(ctx, status)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		if err := mc.Close(); err != nil {
			c.logger.Warn("closing tool session", zap.Error(err))
		}
	}

	ag, err := agent.New(agent.Config{
		Backend:       backend,
		Tools:         mc,
		MaxToolRounds: c.cfg.Agent.MaxToolRounds,
		Logger:        c.logger.Named("agent"),
	})
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	if err := ag.Start(ctx); err != nil {
		cleanup()
		return nil, nil, err
	}
	fmt.Fprintf(status, "Discovered %d tools\n", len(ag.Catalog()))
	return ag, cleanup, nil
}

func (c *cli) runAsk(cmd *cobra.Command, query string) error {
	ctx := cmd.Context()
	ag, cleanup, err := c.startAgent(ctx, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer cleanup()

	answer, err := ag.Ask(ctx, query)
	if err != nil {
		return err
	}
	reportInvocations(cmd.ErrOrStderr(), answer)
	fmt.Fprintf(cmd.OutOrStdout(), "\nAssistant: %s\n", answer.Text)
	return nil
}

func (c *cli) runInteractive(cmd *cobra.Command) error {
	ctx := cmd.Context()
	ag, cleanup, err := c.startAgent(ctx, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer cleanup()

	return repl(ctx, ag, cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr())
}

// repl reads one query per line until EOF, "exit" or "quit". A failed
// query is reported and the loop continues.
func repl(ctx context.Context, ag asker, in io.Reader, out, status io.Writer) error {
	fmt.Fprintln(out, "\nLLM Agent ready for interaction. Type 'exit' to quit.")
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "\nYou: ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		switch strings.ToLower(line) {
		case "":
			continue
		case "exit", "quit":
			return nil
		}

		fmt.Fprintln(status, "Processing...")
		answer, err := ag.Ask(ctx, line)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			fmt.Fprintf(status, "Error: %v\n", err)
			continue
		}
		reportInvocations(status, answer)
		fmt.Fprintf(out, "\nAssistant: %s\n", answer.Text)
	}
}

func reportInvocations(w io.Writer, answer *agent.Answer) {
	for _, inv := range answer.Invocations {
		if inv.Err != nil {
			fmt.Fprintf(w, "Tool %s failed after %s\n", inv.Tool, inv.Duration.Round(time.Millisecond))
			continue
		}
		fmt.Fprintf(w, "Executed tool: %s -> %s (%s)\n", inv.Tool, inv.Result, inv.Duration.Round(time.Millisecond))
	}
}
