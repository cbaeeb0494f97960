// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/term"

	"github.com/bureau-foundation/teamflow/lib/secret"
)

// ReadPassword reads a password from passwordFile ("-" reads the first
// line of stdin), or prompts on the terminal with echo disabled when
// passwordFile is empty. The caller must Close the returned buffer.
func ReadPassword(passwordFile string) (*secret.Buffer, error) {
	if passwordFile != "" {
		return secret.Read(passwordFile)
	}

	stdinFileDescriptor := int(os.Stdin.Fd())
	if !term.IsTerminal(stdinFileDescriptor) {
		return nil, errors.New("no terminal available for interactive password prompt (use --password-file)")
	}

	fmt.Fprint(os.Stderr, "Password: ")
	passwordBytes, err := term.ReadPassword(stdinFileDescriptor)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("reading password: %w", err)
	}
	if len(passwordBytes) == 0 {
		return nil, errors.New("empty password")
	}
	return secret.NewFromBytes(passwordBytes)
}
