// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package secret

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
)

// Read loads a secret from path, or the first line of stdin when path
// is "-". Trailing CR and LF are stripped; other whitespace is part of
// the secret. The heap copies made while reading are zeroed.
func Read(path string) (*Buffer, error) {
	if path == "-" {
		return ReadLine(os.Stdin)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	defer Zero(data)
	trimmed := bytes.TrimRight(data, "\r\n")
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%s is empty (after stripping trailing newlines)", path)
	}
	return NewFromBytes(trimmed)
}

// ReadLine loads a secret from the first line of r.
func ReadLine(r io.Reader) (*Buffer, error) {
	scanner := bufio.NewScanner(r)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("reading secret: %w", err)
		}
		return nil, errors.New("no secret on input")
	}
	line := bytes.TrimRight(scanner.Bytes(), "\r")
	if len(line) == 0 {
		return nil, errors.New("secret line is empty")
	}
	return NewFromBytes(line)
}
