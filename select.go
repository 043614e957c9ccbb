// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/drc

package drc

import (
	"fmt"
	"strings"

	"github.com/woozymasta/pathrules"
)

// ResourceName returns extract-relative name of entry, e.g. "bitmap/0x0001.png".
// Raw names always use the ".bin" extension.
func ResourceName(e ResourceEntry, raw bool) string {
	return fmt.Sprintf("%s/0x%04x.%s", e.Kind, e.ID, resourceExt(e.Kind, raw))
}

// resourceExt returns extension of converted or raw output.
func resourceExt(kind Kind, raw bool) string {
	if raw {
		return "bin"
	}

	switch kind {
	case KindBitmap:
		return "png"
	case KindSound:
		return "wav"
	case KindPalette:
		return "txt"
	default:
		return "bin"
	}
}

// selectMatcher holds compiled resource selection rules.
type selectMatcher struct {
	matcher *pathrules.Matcher
}

// newSelectMatcher compiles selection rules; nil matcher selects everything.
func newSelectMatcher(rules []pathrules.Rule, opts pathrules.MatcherOptions) (*selectMatcher, error) {
	rules = normalizeSelectRules(rules)
	if len(rules) == 0 {
		return nil, nil
	}

	matcher, err := pathrules.NewMatcher(rules, opts)
	if err != nil {
		return nil, fmt.Errorf("%w: compile rules: %w", ErrInvalidSelectPattern, err)
	}

	return &selectMatcher{matcher: matcher}, nil
}

// normalizeSelectRules trims patterns, converts separators, and drops empty patterns.
func normalizeSelectRules(rules []pathrules.Rule) []pathrules.Rule {
	normalized := make([]pathrules.Rule, 0, len(rules))
	for _, rule := range rules {
		pattern := strings.TrimSpace(strings.ReplaceAll(rule.Pattern, `\`, "/"))
		if pattern == "" {
			continue
		}

		normalized = append(normalized, pathrules.Rule{
			Action:  rule.Action,
			Pattern: pattern,
		})
	}

	return normalized
}

// Match reports whether resource name passes selection rules.
func (m *selectMatcher) Match(name string) bool {
	if m == nil || m.matcher == nil {
		return true
	}

	return m.matcher.Included(name, false)
}

// Select returns entries whose resource names pass rules, in directory order.
// Empty rules select every entry.
func (b *Blob) Select(rules []pathrules.Rule, opts pathrules.MatcherOptions, raw bool) ([]ResourceEntry, error) {
	if b == nil {
		return nil, ErrNilBlob
	}

	eo := ExtractOptions{MatcherOptions: opts}
	eo.applyDefaults()

	m, err := newSelectMatcher(rules, eo.MatcherOptions)
	if err != nil {
		return nil, err
	}

	out := make([]ResourceEntry, 0, len(b.entries))
	for _, e := range b.entries {
		if m.Match(ResourceName(e, raw)) {
			out = append(out, e)
		}
	}

	return out, nil
}
