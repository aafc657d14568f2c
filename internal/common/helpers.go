// Package common contains small utilities shared across the project:
// credit formatting and splitting outbound text to the transport limit.
package common

import (
	"fmt"
	"strings"
)

// FormatCredits renders a credit count for user-facing copy.
//
// Examples:
//
//	FormatCredits(1)  → "1 credit"
//	FormatCredits(5)  → "5 credits"
//	FormatCredits(0)  → "0 credits"
func FormatCredits(n int) string {
	if n == 1 || n == -1 {
		return fmt.Sprintf("%d credit", n)
	}
	return fmt.Sprintf("%d credits", n)
}

// FormatMonths renders a month count for user-facing copy.
func FormatMonths(n int) string {
	if n == 1 {
		return "1 month"
	}
	return fmt.Sprintf("%d months", n)
}

// SplitMessage splits text into chunks of at most limit characters so each
// chunk fits in one outbound message. Splits happen at the last newline
// before the limit, falling back to the last space, falling back to a hard
// cut. Runes, not bytes: a multibyte character is never cut in half.
func SplitMessage(text string, limit int) []string {
	if limit <= 0 || text == "" {
		return nil
	}

	runes := []rune(text)
	if len(runes) <= limit {
		return []string{text}
	}

	var chunks []string
	for len(runes) > limit {
		cut := limit
		window := string(runes[:limit])

		// Prefer a newline break, then a space break.
		if i := strings.LastIndexByte(window, '\n'); i > 0 {
			cut = len([]rune(window[:i]))
		} else if i := strings.LastIndexByte(window, ' '); i > 0 {
			cut = len([]rune(window[:i]))
		}

		chunks = append(chunks, strings.TrimRight(string(runes[:cut]), " \n"))
		runes = []rune(strings.TrimLeft(string(runes[cut:]), " \n"))
	}
	if len(runes) > 0 {
		chunks = append(chunks, string(runes))
	}
	return chunks
}
