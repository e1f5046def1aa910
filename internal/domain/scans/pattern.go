package scans

import (
	"regexp"
	"strings"

	"golang.org/x/text/width"
)

// product numbers look like 12-345; the surrounding characters must not be digits
var productNumberRe = regexp.MustCompile(`(?:^|[^0-9])([0-9]{2}-[0-9]{3})(?:[^0-9]|$)`)

var dashReplacer = strings.NewReplacer(
	"‐", "-", // hyphen
	"‑", "-", // non-breaking hyphen
	"‒", "-", // figure dash
	"–", "-", // en dash
	"—", "-", // em dash
	"−", "-", // minus sign
)

// ExtractProductNumber returns the first product number found in OCR text,
// scanning left to right and top to bottom.
func ExtractProductNumber(text string) (string, bool) {
	if text == "" {
		return "", false
	}
	normalized := dashReplacer.Replace(width.Narrow.String(text))
	m := productNumberRe.FindStringSubmatch(normalized)
	if m == nil {
		return "", false
	}
	return m[1], true
}
