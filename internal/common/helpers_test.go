package common

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatCredits(t *testing.T) {
	assert.Equal(t, "1 credit", FormatCredits(1))
	assert.Equal(t, "0 credits", FormatCredits(0))
	assert.Equal(t, "5 credits", FormatCredits(5))
	assert.Equal(t, "25 credits", FormatCredits(25))
}

func TestFormatMonths(t *testing.T) {
	assert.Equal(t, "1 month", FormatMonths(1))
	assert.Equal(t, "3 months", FormatMonths(3))
	assert.Equal(t, "12 months", FormatMonths(12))
}

func TestSplitMessageShortText(t *testing.T) {
	chunks := SplitMessage("hello", 4096)
	require.Len(t, chunks, 1)
	assert.Equal(t, "hello", chunks[0])
}

func TestSplitMessagePrefersNewline(t *testing.T) {
	text := "first line\nsecond line\nthird line"
	chunks := SplitMessage(text, 25)

	require.Len(t, chunks, 2)
	assert.Equal(t, "first line\nsecond line", chunks[0])
	assert.Equal(t, "third line", chunks[1])
}

func TestSplitMessageFallsBackToSpace(t *testing.T) {
	text := strings.Repeat("word ", 20) // 100 chars, no newlines
	chunks := SplitMessage(text, 30)

	require.Greater(t, len(chunks), 1)
	for _, c := range chunks {
		assert.LessOrEqual(t, len([]rune(c)), 30)
		assert.False(t, strings.HasPrefix(c, " "))
		assert.False(t, strings.HasSuffix(c, " "))
	}
}

func TestSplitMessageHardCut(t *testing.T) {
	text := strings.Repeat("a", 100)
	chunks := SplitMessage(text, 40)

	require.Len(t, chunks, 3)
	assert.Equal(t, strings.Repeat("a", 40), chunks[0])
	assert.Equal(t, strings.Repeat("a", 40), chunks[1])
	assert.Equal(t, strings.Repeat("a", 20), chunks[2])
}

func TestSplitMessageKeepsRunesWhole(t *testing.T) {
	text := strings.Repeat("é", 50)
	chunks := SplitMessage(text, 20)

	var total int
	for _, c := range chunks {
		assert.True(t, strings.ContainsRune(c, 'é'))
		total += len([]rune(c))
	}
	assert.Equal(t, 50, total)
}

func TestSplitMessageEmpty(t *testing.T) {
	assert.Nil(t, SplitMessage("", 10))
	assert.Nil(t, SplitMessage("text", 0))
}
