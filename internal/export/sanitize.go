package export

import (
	"strings"
	"unicode"
)

// SanitizeName drops control characters, replaces anything outside a
// conservative set with '_' and truncates to maxLen runes (0 for no limit).
func SanitizeName(s string, maxLen int) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsControl(r) {
			continue
		}
		if isAllowedNameRune(r) {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}

	cleaned := strings.TrimSpace(b.String())
	if maxLen > 0 {
		runes := []rune(cleaned)
		if len(runes) > maxLen {
			cleaned = string(runes[:maxLen])
		}
	}
	return cleaned
}

func isAllowedNameRune(r rune) bool {
	if unicode.IsLetter(r) || unicode.IsDigit(r) {
		return true
	}
	switch r {
	case ' ', '-', '_', '.', ',', '(', ')':
		return true
	default:
		return false
	}
}

// Filename builds a download filename for a project export.
func Filename(projectName, ext string) string {
	name := strings.ReplaceAll(SanitizeName(projectName, 80), " ", "_")
	name = strings.Trim(name, "._")
	if name == "" {
		name = "project"
	}
	return name + ext
}
