package utils

import (
	"fmt"
	"strings"
)

const (
	phoneMinDigits = 7
	phoneMaxDigits = 15
)

// InvalidNumber pairs a rejected phone number with the reason.
type InvalidNumber struct {
	Number string `json:"number"`
	Reason string `json:"reason"`
}

// NormalizePhoneNumber strips formatting characters from a raw phone
// number, keeping digits and a single leading plus sign.
func NormalizePhoneNumber(raw string) string {
	trimmed := strings.TrimSpace(raw)
	var b strings.Builder
	for i, r := range trimmed {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '+' && i == 0:
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '(' || r == ')' || r == '.':
			// formatting characters are dropped
		default:
			// keep the offending rune so validation can reject it
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ValidatePhoneNumber normalizes and validates a phone number. The
// accepted form is an optional leading plus followed by 7 to 15 digits.
func ValidatePhoneNumber(raw string) (string, error) {
	normalized := NormalizePhoneNumber(raw)
	if normalized == "" {
		return "", fmt.Errorf("empty phone number")
	}
	digits := normalized
	if strings.HasPrefix(digits, "+") {
		digits = digits[1:]
	}
	if digits == "" {
		return "", fmt.Errorf("phone number %q has no digits", raw)
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			return "", fmt.Errorf("phone number %q contains invalid character %q", raw, r)
		}
	}
	if len(digits) < phoneMinDigits {
		return "", fmt.Errorf("phone number %q is too short", raw)
	}
	if len(digits) > phoneMaxDigits {
		return "", fmt.Errorf("phone number %q is too long", raw)
	}
	return normalized, nil
}

// PreparePhoneList validates and normalizes a recipient list, removing
// duplicates while preserving first-seen order. Rejected entries are
// returned with their reasons, along with the number of duplicates
// dropped.
func PreparePhoneList(raw []string) ([]string, []InvalidNumber, int) {
	valid := make([]string, 0, len(raw))
	var invalid []InvalidNumber
	duplicates := 0
	seen := make(map[string]struct{}, len(raw))
	for _, number := range raw {
		normalized, err := ValidatePhoneNumber(number)
		if err != nil {
			invalid = append(invalid, InvalidNumber{Number: number, Reason: err.Error()})
			continue
		}
		if _, ok := seen[normalized]; ok {
			duplicates++
			continue
		}
		seen[normalized] = struct{}{}
		valid = append(valid, normalized)
	}
	return valid, invalid, duplicates
}

// PartitionNumbers splits a recipient list into chunks of at most size
// elements, preserving order.
func PartitionNumbers(numbers []string, size int) [][]string {
	if size <= 0 || len(numbers) == 0 {
		return nil
	}
	batches := make([][]string, 0, (len(numbers)+size-1)/size)
	for start := 0; start < len(numbers); start += size {
		end := start + size
		if end > len(numbers) {
			end = len(numbers)
		}
		batches = append(batches, numbers[start:end])
	}
	return batches
}
