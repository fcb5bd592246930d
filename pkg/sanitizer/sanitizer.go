package sanitizer

import (
	"html"
	"slices"
	"strings"
)

type Strategy func(string) string

// Chain applies strategies left to right.
func Chain(strategies ...Strategy) Strategy {
	return func(s string) string {
		for _, fn := range strategies {
			s = fn(s)
		}
		return s
	}
}

var (
	text = Chain(stripControl, TrimAndNormalize, html.EscapeString)
	tag  = Chain(stripControl, TrimAndNormalize, strings.ToLower)
)

// SanitizeText is applied to free text such as a booking purpose.
func SanitizeText(input string) string {
	return text(input)
}

func SanitizeNameOrLocation(input string) string {
	return text(input)
}

func SanitizeTag(input string) string {
	return tag(input)
}

// SanitizeSlice applies strategy to every value, dropping empties and
// duplicates while keeping first-seen order. Never returns nil.
func SanitizeSlice(values []string, strategy Strategy) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		s := strategy(v)
		if s == "" || slices.Contains(out, s) {
			continue
		}
		out = append(out, s)
	}
	return out
}

func SanitizeEquipment(items []string) []string {
	return SanitizeSlice(items, SanitizeTag)
}
