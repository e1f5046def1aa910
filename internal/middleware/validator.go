package middleware

import (
	"fmt"
	"mime"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// Input validation and sanitization utilities

// SanitizeString removes dangerous characters from strings
func SanitizeString(input string) string {
	input = strings.ReplaceAll(input, "\x00", "")

	var result strings.Builder
	for _, r := range input {
		if r >= 32 || r == '\t' || r == '\n' {
			result.WriteRune(r)
		}
	}

	return strings.TrimSpace(result.String())
}

// ValidateSessionID checks the id has the uuid shape sessions are created with.
func ValidateSessionID(id string) error {
	if id == "" {
		return fmt.Errorf("session ID cannot be empty")
	}
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("invalid session ID format")
	}
	return nil
}

// ValidatePartNum validates a product number path parameter
func ValidatePartNum(partNum string) error {
	if partNum == "" {
		return fmt.Errorf("part number cannot be empty")
	}
	if len(partNum) > 255 {
		return fmt.Errorf("part number too long (max 255 chars)")
	}
	return nil
}

// ValidateLimit parses a ?limit= value and clamps it to [1, max]. An empty or
// unparsable value yields def.
func ValidateLimit(raw string, def, max int) int {
	limit, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || limit <= 0 {
		return def
	}
	if limit > max {
		return max
	}
	return limit
}

var allowedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
}

// ValidateImageContentType returns the bare media type of an accepted frame.
func ValidateImageContentType(header string) (string, error) {
	mt, _, err := mime.ParseMediaType(header)
	if err != nil {
		return "", fmt.Errorf("invalid content type %q", header)
	}
	if !allowedImageTypes[mt] {
		return "", fmt.Errorf("unsupported content type %s (allowed: image/jpeg, image/png, image/webp)", mt)
	}
	return mt, nil
}
