// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package validation provides input validation for KM24 search strings.
//
// Search strings reach the KM24 API verbatim, so malformed operators or
// separators silently produce zero hits instead of errors. The validators
// here catch the common LLM mistakes (lowercase operators, comma-separated
// term lists) before a recipe is handed to a journalist.
package validation

import (
	"fmt"
	"regexp"
	"strings"
)

// KM24 search syntax:
//   - Boolean operators AND, OR, NOT must be uppercase.
//   - Parallel terms are separated by semicolons, never commas.
//   - ~phrase~ matches an exact phrase.
//   - A leading tilde anchors the term at the start of the text.
var lowercaseOperatorPattern = regexp.MustCompile(`(?:^|\s)(and|or|not)(?:\s|$)`)

// ValidateSearchString checks a KM24 search string for syntax errors.
//
// It returns one error per problem found, in source order. A nil slice
// means the string is syntactically valid. Empty strings are valid:
// many modules are monitored by filters alone.
//
// Example:
//
//	errs := validation.ValidateSearchString("landbrug,ejendom")
//	// errs[0]: search string contains comma: use semicolon (;) to separate terms
func ValidateSearchString(s string) []error {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}

	var errs []error

	for _, m := range lowercaseOperatorPattern.FindAllStringSubmatch(s, -1) {
		errs = append(errs, fmt.Errorf("invalid operator %q: boolean operators must be uppercase (%s)", m[1], strings.ToUpper(m[1])))
	}

	if strings.Contains(s, ",") {
		errs = append(errs, fmt.Errorf("search string contains comma: use semicolon (;) to separate terms"))
	}

	for _, term := range strings.Split(s, ";") {
		term = strings.TrimSpace(term)
		n := strings.Count(term, "~")
		if n%2 == 0 {
			continue
		}
		// A single leading tilde anchors the term; anything else is an
		// exact phrase missing its closing tilde.
		if n == 1 && strings.HasPrefix(term, "~") && !strings.HasSuffix(term, "~") {
			continue
		}
		errs = append(errs, fmt.Errorf("unterminated exact phrase in %q: close it with a second tilde (~phrase~)", term))
	}

	return errs
}

// IsValidSearchString reports whether s passes ValidateSearchString.
func IsValidSearchString(s string) bool {
	return len(ValidateSearchString(s)) == 0
}

// NormalizeSearchString cleans up separator noise without changing meaning:
// repeated semicolons collapse to one, whitespace around semicolons is
// trimmed, and runs of spaces become a single space. Operators and tilde
// constructs pass through untouched.
func NormalizeSearchString(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}

	parts := strings.Split(s, ";")
	kept := parts[:0]
	for _, p := range parts {
		p = strings.Join(strings.Fields(p), " ")
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, ";")
}
