package referrals

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voxnote.app/whatsapp-bot/internal/ledger"
)

func TestGenerateCode(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		code, err := GenerateCode()
		require.NoError(t, err)
		assert.Len(t, code, ledger.ReferralCodeLength)
		for _, r := range code {
			assert.True(t, strings.ContainsRune(codeAlphabet, r), "unexpected rune %q in %s", r, code)
		}
		seen[code] = true
	}
	// 50 draws from 26^6 colliding down to a handful would mean broken rand.
	assert.Greater(t, len(seen), 45)
}

func TestGenerateCodeSkipsAmbiguousGlyphs(t *testing.T) {
	for _, r := range "ILOQSZ0125" {
		assert.False(t, strings.ContainsRune(codeAlphabet, r), "ambiguous rune %q in alphabet", r)
	}
}

func TestExtractCode(t *testing.T) {
	tests := []struct {
		name    string
		message string
		want    string
	}{
		{"magic code in sentence", "hey can you transcribe this TEST123 thanks", "TEST123"},
		{"plain message", "just a normal message", ""},
		{"greeting", "hola, puedes ayudarme?", ""},
		{"bare code", "ABD34F", "ABD34F"},
		{"lowercase code", "abd34f", "ABD34F"},
		{"code in sentence", "my friend sent me code ABD34F yesterday", "ABD34F"},
		{"code with punctuation", "code: ABD34F!", "ABD34F"},
		{"magic code lowercase", "test456", "TEST456"},
		{"longer alphanumeric run", "ABCDEFG", ""},
		{"embedded in word", "xABD34Fx", ""},
		{"too short", "ABD34", ""},
		{"excluded letters", "SILVER", ""},
		{"empty", "", ""},
		{"whitespace only", "   \n ", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractCode(tt.message))
		})
	}
}

func TestExtractCodePrefersMagicCode(t *testing.T) {
	// Both a magic and a regular code present: the magic code wins so the
	// deterministic mode stays drivable from any message.
	assert.Equal(t, "TEST100", ExtractCode("ABD34F and TEST100"))
}

func TestIsMagicCode(t *testing.T) {
	assert.True(t, IsMagicCode("TEST100"))
	assert.True(t, IsMagicCode("TEST999"))
	assert.False(t, IsMagicCode("ABD34F"))
	assert.False(t, IsMagicCode("TEST1"))
	assert.False(t, IsMagicCode(""))
}

func TestValidCodeShape(t *testing.T) {
	assert.True(t, validCodeShape("ABD34F"))
	assert.False(t, validCodeShape("ABD34"))   // too short
	assert.False(t, validCodeShape("ABD34FX")) // too long
	assert.False(t, validCodeShape("TEST12"))  // S not in alphabet
	assert.False(t, validCodeShape("abd34f"))  // callers normalize first
}
