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
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/MakeNowJust/heredoc"
	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"github.com/zalando/go-keyring"
	"golang.org/x/term"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage toolbridge secrets",
		Long:  `Store, inspect and remove LLM API keys in the system keyring.`,
		// Secrets do not depend on the rest of the configuration.
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
	}

	keyList := "Available keys: " + strings.Join(ListAvailableSecretKeys(), ", ")

	setKey := &cobra.Command{
		Use:   "set-key [key-name]",
		Short: "Save API key to system keyring",
		Long: heredoc.Docf(`
			Save an API key to the system keyring securely.

			The key will be stored in your system's secure credential storage
			(Keychain on macOS, Credential Manager on Windows, Secret Service on Linux).

			%s
		`, keyList),
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			keyName := args[0]
			if err := checkKeyName(keyName); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Enter %s (input hidden): ", keyName)
			secret, err := readSecret(cmd.InOrStdin())
			fmt.Fprintln(cmd.ErrOrStderr())
			if err != nil {
				return errors.Wrap(err, "error reading input")
			}
			if secret == "" {
				return errors.New("secret cannot be empty")
			}
			if err := keyring.Set(ServiceName, keyName, secret); err != nil {
				return errors.Wrap(err, "error saving to keyring")
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Saved %s to system keyring\n", keyName)
			return nil
		},
	}

	getKey := &cobra.Command{
		Use:   "get-key [key-name]",
		Short: "Retrieve API key from system keyring",
		Long:  `Retrieve an API key from the system keyring (for verification). The value is masked.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			keyName := args[0]
			secret, err := keyring.Get(ServiceName, keyName)
			if err != nil {
				return errors.Wrapf(err, "key not found in keyring, set it with: toolbridge config set-key %s", keyName)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", keyName, maskSecret(secret))
			return nil
		},
	}

	deleteKey := &cobra.Command{
		Use:   "delete-key [key-name]",
		Short: "Delete API key from system keyring",
		Long:  `Remove an API key from the system keyring.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			keyName := args[0]
			if err := keyring.Delete(ServiceName, keyName); err != nil {
				return errors.Wrap(err, "error deleting key")
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Deleted %s from system keyring\n", keyName)
			return nil
		},
	}

	listKeys := &cobra.Command{
		Use:   "list-keys",
		Short: "List available secret keys",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			for _, k := range ListAvailableSecretKeys() {
				fmt.Fprintf(cmd.OutOrStdout(), "  - %s\n", k)
			}
		},
	}

	cmd.AddCommand(setKey, getKey, deleteKey, listKeys)
	return cmd
}

func checkKeyName(name string) error {
	if slices.Contains(ListAvailableSecretKeys(), name) {
		return nil
	}
	return errors.Newf("invalid key name: %s (available: %s)", name, strings.Join(ListAvailableSecretKeys(), ", "))
}

// readSecret reads without echo from a terminal, or a single line from
// anything else (pipes, tests).
func readSecret(in io.Reader) (string, error) {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		b, err := term.ReadPassword(int(f.Fd()))
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(b)), nil
	}
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func maskSecret(s string) string {
	if len(s) <= 8 {
		return "***"
	}
	return s[:4] + "..." + s[len(s)-4:]
}
