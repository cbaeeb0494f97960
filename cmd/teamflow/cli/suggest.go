// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"strings"

	"github.com/spf13/pflag"
)

// maxSuggestDistance is the largest edit distance still offered as a
// "did you mean".
const maxSuggestDistance = 3

// suggestCommand returns the subcommand name closest to unknown, or "".
func suggestCommand(unknown string, commands []*Command) string {
	names := make([]string, len(commands))
	for i, command := range commands {
		names[i] = command.Name
	}
	return closest(unknown, names)
}

// suggestFlag looks at the first long flag in args that flagSet does
// not define and returns the closest defined one as "--name", or "".
// Shorthands and anything after "--" are not considered.
func suggestFlag(args []string, flagSet *pflag.FlagSet) string {
	unknown := ""
	for _, arg := range args {
		if arg == "--" {
			break
		}
		name, ok := strings.CutPrefix(arg, "--")
		if !ok {
			continue
		}
		name, _, _ = strings.Cut(name, "=")
		if flagSet.Lookup(name) == nil {
			unknown = name
			break
		}
	}
	if unknown == "" {
		return ""
	}

	var names []string
	flagSet.VisitAll(func(flag *pflag.Flag) { names = append(names, flag.Name) })
	if match := closest(unknown, names); match != "" {
		return "--" + match
	}
	return ""
}

// closest returns the candidate nearest to word within
// maxSuggestDistance, preferring the earliest on ties.
func closest(word string, candidates []string) string {
	best, bestDistance := "", maxSuggestDistance+1
	for _, candidate := range candidates {
		if distance := levenshtein(word, candidate); distance < bestDistance {
			best, bestDistance = candidate, distance
		}
	}
	return best
}

// levenshtein is the edit distance between a and b in runes.
func levenshtein(a, b string) int {
	source, target := []rune(a), []rune(b)
	row := make([]int, len(target)+1)
	for j := range row {
		row[j] = j
	}
	for i := 1; i <= len(source); i++ {
		diagonal := row[0]
		row[0] = i
		for j := 1; j <= len(target); j++ {
			substitution := diagonal
			if source[i-1] != target[j-1] {
				substitution++
			}
			diagonal = row[j]
			row[j] = min(row[j]+1, row[j-1]+1, substitution)
		}
	}
	return row[len(target)]
}
