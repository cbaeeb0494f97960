// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package datastore

import (
	"errors"
	"fmt"

	"zombiezen.com/go/sqlite"
)

// Error is the structured failure returned by every DataService
// operation. Callers can use errors.As to extract it, or errors.Is
// against the code sentinels:
//
//	if errors.Is(err, datastore.ErrConflict) { ... }
//
//	var storeErr *datastore.Error
//	if errors.As(err, &storeErr) && storeErr.Table == "team_members" { ... }
type Error struct {
	// Code classifies the failure.
	Code string
	// Table is the collection the operation addressed, if any.
	Table string
	// Message is a human-readable description.
	Message string
	// Err is the underlying cause, if any.
	Err error
}

// Error codes.
const (
	CodeAuthRequired = "auth_required"
	CodeNotFound     = "not_found"
	CodeConflict     = "conflict"
	CodeTransport    = "transport"
	CodeInvalid      = "invalid"
)

// Sentinels for errors.Is. They match any *Error with the same code.
var (
	ErrAuthRequired = &Error{Code: CodeAuthRequired}
	ErrNotFound     = &Error{Code: CodeNotFound}
	ErrConflict     = &Error{Code: CodeConflict}
	ErrTransport    = &Error{Code: CodeTransport}
	ErrInvalid      = &Error{Code: CodeInvalid}
)

func (e *Error) Error() string {
	message := e.Message
	if message == "" {
		message = e.Code
	}
	if e.Table != "" {
		message = e.Table + ": " + message
	}
	if e.Err != nil {
		return fmt.Sprintf("datastore: %s: %v", message, e.Err)
	}
	return "datastore: " + message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches sentinels by code.
func (e *Error) Is(target error) bool {
	sentinel, ok := target.(*Error)
	if !ok {
		return false
	}
	return sentinel.Table == "" && sentinel.Message == "" && sentinel.Err == nil && sentinel.Code == e.Code
}

// IsCode reports whether err is an *Error with the given code.
func IsCode(err error, code string) bool {
	var storeErr *Error
	if errors.As(err, &storeErr) {
		return storeErr.Code == code
	}
	return false
}

func newError(code, table, format string, args ...any) *Error {
	return &Error{Code: code, Table: table, Message: fmt.Sprintf(format, args...)}
}

// classify converts a SQLite or pool failure into an *Error.
// Uniqueness and primary key violations are conflicts, check and
// not-null violations are invalid input, anything else is transport.
func classify(table string, err error) error {
	if err == nil {
		return nil
	}
	var storeErr *Error
	if errors.As(err, &storeErr) {
		return err
	}
	switch sqlite.ErrCode(err) {
	case sqlite.ResultConstraintUnique, sqlite.ResultConstraintPrimaryKey:
		return &Error{Code: CodeConflict, Table: table, Message: "duplicate key", Err: err}
	case sqlite.ResultConstraintCheck, sqlite.ResultConstraintNotNull:
		return &Error{Code: CodeInvalid, Table: table, Message: "constraint violated", Err: err}
	}
	return &Error{Code: CodeTransport, Table: table, Message: "store failure", Err: err}
}
