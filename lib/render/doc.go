// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package render draws planner data for the terminal: the task board
// and list, the online users list, and comment threads with markdown
// bodies.
//
// A [Renderer] owns a lipgloss renderer bound to one output and color
// profile. Commands build one per invocation with the profile termenv
// detects for stdout; tests pass termenv.Ascii to get plain text.
// Comment markdown is parsed with goldmark and fenced code is
// highlighted with chroma when the profile has color.
package render
