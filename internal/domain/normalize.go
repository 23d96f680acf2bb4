package domain

import "strings"

// NormalizeHumanName trims leading/trailing whitespace and collapses internal whitespace runs.
// It is used for displayName normalization.
func NormalizeHumanName(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// NormalizeFamilyName trims surrounding whitespace only; interior spacing is the owner's choice.
func NormalizeFamilyName(s string) string {
	return strings.TrimSpace(s)
}

// NormalizeEmail lowercases and trims an email address for uniqueness comparisons.
func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
