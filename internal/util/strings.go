// Package util provides common utility functions used across the mcp-auth
// library. These utilities handle string manipulation and other shared
// operations that don't fit into domain-specific packages.
package util

import "strings"

// SafeTruncate safely truncates a string to maxLen characters without
// panicking. Returns the original string if it's shorter than maxLen,
// otherwise returns the first maxLen characters. This prevents index out
// of bounds errors when logging sensitive data like tokens, where only a
// prefix should be shown.
//
// If maxLen is negative, it's treated as 0 and returns an empty string.
//
// Example:
//
//	SafeTruncate("very-long-token-abc123", 8) // Returns: "very-lon"
//	SafeTruncate("short", 10)                  // Returns: "short"
func SafeTruncate(s string, maxLen int) string {
	if maxLen < 0 {
		return ""
	}
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen]
}

// NormalizeURL normalizes a URL for comparison by removing trailing
// slashes, so URLs with and without trailing slashes compare equal.
func NormalizeURL(url string) string {
	return strings.TrimRight(url, "/")
}
