package scans

import "strings"

// SanitizeCode removes null bytes and control characters and trims spaces.
// Decoders sometimes append CR/LF or a GS separator to the payload.
func SanitizeCode(input string) string {
	var result strings.Builder
	result.Grow(len(input))
	for _, r := range input {
		if r >= 32 && r != 127 {
			result.WriteRune(r)
		}
	}
	return strings.TrimSpace(result.String())
}
