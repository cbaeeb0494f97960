// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package planner

import "strings"

// Profile is the user summary joined onto memberships, comments, and
// presence rows.
type Profile struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FullName  string `json:"full_name"`
	AvatarURL string `json:"avatar_url"`
}

// DisplayName is the full name, or the email when no name is set.
func (p Profile) DisplayName() string {
	if p.FullName != "" {
		return p.FullName
	}
	return p.Email
}

// Initials returns up to two uppercase initials from name, else the
// first two characters of email, else "U".
func Initials(name, email string) string {
	if fields := strings.Fields(name); len(fields) > 0 {
		var initials []rune
		for _, field := range fields {
			initials = append(initials, []rune(field)[0])
			if len(initials) == 2 {
				break
			}
		}
		return strings.ToUpper(string(initials))
	}
	if runes := []rune(email); len(runes) > 0 {
		return strings.ToUpper(string(runes[:min(2, len(runes))]))
	}
	return "U"
}
