// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"filippo.io/age"
	"github.com/spf13/pflag"

	"github.com/bureau-foundation/teamflow/cmd/teamflow/cli"
	"github.com/bureau-foundation/teamflow/lib/snapshot"
)

func snapshotCommand(env *environment) *cli.Command {
	return &cli.Command{
		Name:    "snapshot",
		Summary: "Export or import the whole store",
		Description: `Copy every planner table to or from a snapshot file.

Snapshots are compressed (zstd by default) and may be encrypted to one
or more age recipients. Import replaces the store's rows in a single
transaction: a truncated or corrupt snapshot changes nothing.

Credentials and sessions are not part of a snapshot.`,
		Subcommands: []*cli.Command{
			snapshotExportCommand(env),
			snapshotImportCommand(env),
		},
	}
}

func snapshotExportCommand(env *environment) *cli.Command {
	var (
		global      globalOptions
		compression string
		recipients  []string
	)
	return &cli.Command{
		Name:    "export",
		Summary: "Write a snapshot file",
		Usage:   "teamflow snapshot export <file> [flags]",
		Examples: []cli.Example{
			{Description: "Compressed, unencrypted", Command: "teamflow snapshot export backup.tfsnap"},
			{Description: "Encrypted to a recipient, to stdout", Command: "teamflow snapshot export - --recipient age1ql3z7hjy54pw3hyww5ayyfg7zqgvc7w3j2elw8zmrj2kg5sfn9aqmcac8p > backup.tfsnap.age"},
		},
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("export", pflag.ContinueOnError)
			global.addFlags(flagSet)
			flagSet.StringVar(&compression, "compression", "zstd", "none, lz4, or zstd")
			flagSet.StringSliceVar(&recipients, "recipient", nil, "encrypt to this age public key (repeatable)")
			return flagSet
		},
		Run: func(args []string) error {
			if err := expectArgs(args, 1, "teamflow snapshot export <file> [flags]"); err != nil {
				return err
			}
			tag, err := snapshot.ParseCompression(compression)
			if err != nil {
				return err
			}
			parsed, err := snapshot.ParseRecipients(recipients)
			if err != nil {
				return err
			}

			app, err := env.open(&global, "snapshot/export")
			if err != nil {
				return err
			}
			defer app.Close()

			options := snapshot.Options{
				Compression: tag,
				Recipients:  parsed,
				Logger:      app.logger,
			}
			summary, err := writeOutput(args[0], env.stdout, func(w io.Writer) (snapshot.Summary, error) {
				return snapshot.Export(env.ctx, app.store, w, options)
			})
			if err != nil {
				return err
			}
			app.logger.Info("snapshot exported", "file", args[0], "rows", summary.Total(), "compression", tag.String(), "encrypted", len(parsed) > 0)
			if args[0] != "-" {
				fmt.Fprintf(env.stdout, "Exported %s to %s\n", describeSummary(summary), args[0])
			}
			return nil
		},
	}
}

func snapshotImportCommand(env *environment) *cli.Command {
	var (
		global        globalOptions
		identityFiles []string
	)
	return &cli.Command{
		Name:    "import",
		Summary: "Replace the store's rows with a snapshot",
		Usage:   "teamflow snapshot import <file> [flags]",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("import", pflag.ContinueOnError)
			global.addFlags(flagSet)
			flagSet.StringSliceVarP(&identityFiles, "identity", "i", nil, "age identity file for encrypted snapshots (repeatable)")
			return flagSet
		},
		Run: func(args []string) error {
			if err := expectArgs(args, 1, "teamflow snapshot import <file> [flags]"); err != nil {
				return err
			}
			identities, err := readIdentities(identityFiles)
			if err != nil {
				return err
			}

			var input io.Reader = os.Stdin
			if args[0] != "-" {
				file, err := os.Open(args[0])
				if err != nil {
					return fmt.Errorf("opening snapshot: %w", err)
				}
				defer file.Close()
				input = file
			}

			app, err := env.open(&global, "snapshot/import")
			if err != nil {
				return err
			}
			defer app.Close()

			summary, err := snapshot.Import(env.ctx, app.store, input, snapshot.Options{
				Identities: identities,
				Logger:     app.logger,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(env.stdout, "Imported %s (exported %s)\n", describeSummary(summary), summary.Header.CreatedAt)
			return nil
		},
	}
}

// writeOutput runs write against path, or stdout for "-". Files are
// written to a temporary sibling and renamed into place on success.
func writeOutput(path string, stdout io.Writer, write func(io.Writer) (snapshot.Summary, error)) (snapshot.Summary, error) {
	if path == "-" {
		return write(stdout)
	}
	temporary, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return snapshot.Summary{}, fmt.Errorf("creating snapshot file: %w", err)
	}
	summary, err := write(temporary)
	if closeErr := temporary.Close(); err == nil {
		err = closeErr
	}
	if err == nil {
		err = os.Rename(temporary.Name(), path)
	}
	if err != nil {
		return snapshot.Summary{}, errors.Join(err, os.Remove(temporary.Name()))
	}
	return summary, nil
}

func readIdentities(paths []string) ([]age.Identity, error) {
	var identities []age.Identity
	for _, path := range paths {
		file, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("opening identity file: %w", err)
		}
		parsed, err := age.ParseIdentities(file)
		file.Close()
		if err != nil {
			return nil, fmt.Errorf("parsing identity file %s: %w", path, err)
		}
		identities = append(identities, parsed...)
	}
	return identities, nil
}

// describeSummary renders "12 rows (tasks 7, teams 2, ...)".
func describeSummary(summary snapshot.Summary) string {
	tables := make([]string, 0, len(summary.Rows))
	for table := range summary.Rows {
		tables = append(tables, table)
	}
	slices.Sort(tables)
	parts := make([]string, 0, len(tables))
	for _, table := range tables {
		parts = append(parts, fmt.Sprintf("%s %d", table, summary.Rows[table]))
	}
	return fmt.Sprintf("%d rows (%s)", summary.Total(), strings.Join(parts, ", "))
}
