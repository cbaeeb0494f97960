// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package datastore

import (
	"fmt"

	"github.com/bureau-foundation/teamflow/lib/codec"
)

// Decode converts one row payload into T.
func Decode[T any](payload codec.RawMessage) (T, error) {
	var value T
	if len(payload) == 0 {
		return value, newError(CodeInvalid, "", "empty row payload")
	}
	if err := codec.Unmarshal(payload, &value); err != nil {
		return value, &Error{Code: CodeInvalid, Message: fmt.Sprintf("decoding %T", value), Err: err}
	}
	return value, nil
}

// DecodeAll converts row payloads into a slice of T, stopping at the
// first failure.
func DecodeAll[T any](payloads []codec.RawMessage) ([]T, error) {
	values := make([]T, 0, len(payloads))
	for _, payload := range payloads {
		value, err := Decode[T](payload)
		if err != nil {
			return nil, err
		}
		values = append(values, value)
	}
	return values, nil
}

// Fields decodes a row payload into a generic field map.
func Fields(payload codec.RawMessage) (map[string]any, error) {
	return Decode[map[string]any](payload)
}
