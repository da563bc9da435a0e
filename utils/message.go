package utils

import (
	"fmt"
	"strings"
	"unicode"
)

// ContainsSensitiveCharacters reports whether content carries control
// characters other than newline and tab.
func ContainsSensitiveCharacters(content string) bool {
	for _, r := range content {
		if unicode.IsControl(r) && r != '\n' && r != '\t' {
			return true
		}
	}
	return false
}

// ValidateMessageContent checks that a message body is sendable: not
// blank, within MaxMessageLength runes, and free of control characters
// other than newline and tab.
func ValidateMessageContent(content string) error {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return fmt.Errorf("message content is empty")
	}
	runes := []rune(trimmed)
	if len(runes) > MaxMessageLength {
		return fmt.Errorf("message content exceeds %d characters (%d)", MaxMessageLength, len(runes))
	}
	if ContainsSensitiveCharacters(trimmed) {
		return fmt.Errorf("message content contains control characters")
	}
	return nil
}

// SanitizeMessage trims the message and collapses runs of spaces and
// tabs into single spaces. Newlines are preserved. The result is stable
// under repeated application.
func SanitizeMessage(content string) string {
	lines := strings.Split(content, "\n")
	for i, line := range lines {
		lines[i] = strings.Join(strings.Fields(line), " ")
	}
	joined := strings.Join(lines, "\n")
	return strings.TrimSpace(joined)
}

// FragmentMessage splits content into fragments of at most limit runes,
// breaking on word boundaries. A single word longer than the limit is
// split mid-word. No fragment is empty.
func FragmentMessage(content string, limit int) []string {
	sanitized := SanitizeMessage(content)
	if sanitized == "" || limit <= 0 {
		return nil
	}
	if len([]rune(sanitized)) <= limit {
		return []string{sanitized}
	}

	var fragments []string
	var current []rune
	for _, word := range strings.Fields(sanitized) {
		runes := []rune(word)
		// oversized word: flush and hard-split
		if len(runes) > limit {
			if len(current) > 0 {
				fragments = append(fragments, string(current))
				current = nil
			}
			for len(runes) > limit {
				fragments = append(fragments, string(runes[:limit]))
				runes = runes[limit:]
			}
			if len(runes) > 0 {
				current = runes
			}
			continue
		}
		if len(current) == 0 {
			current = runes
			continue
		}
		if len(current)+1+len(runes) <= limit {
			current = append(current, ' ')
			current = append(current, runes...)
		} else {
			fragments = append(fragments, string(current))
			current = runes
		}
	}
	if len(current) > 0 {
		fragments = append(fragments, string(current))
	}
	return fragments
}
