package common

import (
	"encoding/base64"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"golang.org/x/crypto/argon2"
)

func encodeTestHash(password string) string {
	salt := []byte("0123456789abcdef")
	var (
		iterations  uint32 = 1
		memory      uint32 = 8 * 1024
		parallelism uint8  = 1
	)
	key := argon2.IDKey([]byte(password), salt, iterations, memory, parallelism, 32)
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, memory, iterations, parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key))
}

func TestParseArgon2idHash(t *testing.T) {
	salt, hash, err := ParseArgon2idHash(encodeTestHash("secret"))
	require.NoError(t, err)
	assert.Len(t, salt, 16)
	assert.Len(t, hash, 32)
}

func TestParseArgon2idHashRejectsGarbage(t *testing.T) {
	for _, bad := range []string{
		"",
		"plaintext",
		"$argon2i$v=19$m=65536,t=3,p=2$c2FsdA$aGFzaA",
		"$argon2id$v=19$m=65536,t=3,p=2$not!base64$aGFzaA",
	} {
		_, _, err := ParseArgon2idHash(bad)
		assert.Error(t, err, "hash %q", bad)
	}
}

func TestVerifyArgon2id(t *testing.T) {
	encoded := encodeTestHash("correct horse")

	assert.True(t, VerifyArgon2id("correct horse", encoded))
	assert.False(t, VerifyArgon2id("wrong", encoded))
	assert.False(t, VerifyArgon2id("correct horse", "not-a-hash"))
}
