// Package referrals — codegen.go generates referral codes and extracts them
// from free-text messages.
package referrals

import (
	"crypto/rand"
	"math/big"
	"regexp"
	"strings"

	"voxnote.app/whatsapp-bot/internal/ledger"
)

// codeAlphabet is the 26-character set codes are drawn from. Visually
// ambiguous glyphs are excluded (I, L, O, Q, S, Z and the digits 0, 1, 2, 5)
// so codes survive being read aloud or retyped from a screenshot.
const codeAlphabet = "ABCDEFGHJKMNPRTUVWXY346789"

var (
	// magicCodeRe matches the fixed test codes (TEST followed by three
	// digits) used by the deterministic offline mode. Recognised everywhere
	// so a test code embedded in a message is extracted like a real one.
	magicCodeRe = regexp.MustCompile(`(?i)(?:^|[^0-9A-Za-z])(TEST[0-9]{3})(?:[^0-9A-Za-z]|$)`)

	// codeRe matches a standalone 6-character run of the code alphabet.
	// The boundary guards keep longer alphanumeric runs from matching, since
	// a false positive would short-circuit normal message handling.
	codeRe = regexp.MustCompile(`(?i)(?:^|[^0-9A-Za-z])([` + codeAlphabet + `]{6})(?:[^0-9A-Za-z]|$)`)
)

// GenerateCode draws an uppercase code of the standard length by independent
// uniform draws from the alphabet. Uniqueness is NOT guaranteed by
// construction; the caller retries against the store's unique constraint.
func GenerateCode() (string, error) {
	var sb strings.Builder
	max := big.NewInt(int64(len(codeAlphabet)))
	for i := 0; i < ledger.ReferralCodeLength; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		sb.WriteByte(codeAlphabet[n.Int64()])
	}
	return sb.String(), nil
}

// ExtractCode finds the first referral code embedded in message, returning
// it uppercased, or "" when the message contains none. Matching is
// case-insensitive and ignores surrounding whitespace and punctuation.
func ExtractCode(message string) string {
	msg := strings.TrimSpace(message)
	if msg == "" {
		return ""
	}
	if m := magicCodeRe.FindStringSubmatch(msg); m != nil {
		return strings.ToUpper(m[1])
	}
	if m := codeRe.FindStringSubmatch(msg); m != nil {
		return strings.ToUpper(m[1])
	}
	return ""
}

// IsMagicCode reports whether code is one of the fixed offline-mode codes.
func IsMagicCode(code string) bool {
	return magicCodeRe.MatchString(code)
}
