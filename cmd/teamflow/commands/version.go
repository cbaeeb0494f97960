// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"fmt"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/teamflow/cmd/teamflow/cli"
	"github.com/bureau-foundation/teamflow/lib/version"
)

func versionCommand(env *environment) *cli.Command {
	var full bool
	return &cli.Command{
		Name:    "version",
		Summary: "Print version information",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("version", pflag.ContinueOnError)
			flagSet.BoolVar(&full, "full", false, "include toolchain and platform")
			return flagSet
		},
		Run: func(args []string) error {
			if full {
				fmt.Fprintln(env.stdout, "teamflow "+version.Full())
				return nil
			}
			fmt.Fprintln(env.stdout, "teamflow "+version.Info())
			return nil
		},
	}
}
