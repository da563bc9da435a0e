package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateMessageContent(t *testing.T) {
	assert.NoError(t, ValidateMessageContent("hello world"))
	assert.NoError(t, ValidateMessageContent("line one\nline two\ttabbed"))

	assert.Error(t, ValidateMessageContent(""))
	assert.Error(t, ValidateMessageContent("   "))
	assert.Error(t, ValidateMessageContent("bad\x00byte"))
	assert.Error(t, ValidateMessageContent(strings.Repeat("x", MaxMessageLength+1)))

	// exactly at the limit is fine
	assert.NoError(t, ValidateMessageContent(strings.Repeat("x", MaxMessageLength)))
}

func TestContainsSensitiveCharacters(t *testing.T) {
	assert.False(t, ContainsSensitiveCharacters("hello world"))
	assert.False(t, ContainsSensitiveCharacters("line one\nline two\ttabbed"))

	assert.True(t, ContainsSensitiveCharacters("bad\x00byte"))
	assert.True(t, ContainsSensitiveCharacters("sub\x1abyte"))
	// the check is length-independent
	assert.True(t, ContainsSensitiveCharacters(strings.Repeat("x ", 700)+"bad\x00word"))
}

func TestSanitizeMessage(t *testing.T) {
	assert.Equal(t, "hello world", SanitizeMessage("  hello   world  "))
	assert.Equal(t, "a b\nc d", SanitizeMessage("a \t b\nc   d"))

	// stable under repeated application
	sanitized := SanitizeMessage("  multiple   spaces\n\n and \t tabs ")
	assert.Equal(t, sanitized, SanitizeMessage(sanitized))
}

func TestFragmentMessage(t *testing.T) {
	t.Run("short content is a single fragment", func(t *testing.T) {
		fragments := FragmentMessage("hello world", 100)
		require.Len(t, fragments, 1)
		assert.Equal(t, "hello world", fragments[0])
	})

	t.Run("splits on word boundaries", func(t *testing.T) {
		fragments := FragmentMessage("aaaa bbbb cccc dddd", 9)
		require.Len(t, fragments, 2)
		assert.Equal(t, "aaaa bbbb", fragments[0])
		assert.Equal(t, "cccc dddd", fragments[1])
	})

	t.Run("no fragment exceeds the limit", func(t *testing.T) {
		content := strings.Repeat("word ", 500)
		for _, fragment := range FragmentMessage(content, 50) {
			assert.LessOrEqual(t, len([]rune(fragment)), 50)
			assert.NotEmpty(t, fragment)
		}
	})

	t.Run("oversized word is hard split", func(t *testing.T) {
		fragments := FragmentMessage(strings.Repeat("x", 25), 10)
		require.Len(t, fragments, 3)
		assert.Equal(t, strings.Repeat("x", 10), fragments[0])
		assert.Equal(t, strings.Repeat("x", 10), fragments[1])
		assert.Equal(t, strings.Repeat("x", 5), fragments[2])
	})

	t.Run("content is preserved across fragments", func(t *testing.T) {
		content := "the quick brown fox jumps over the lazy dog"
		joined := strings.Join(FragmentMessage(content, 12), " ")
		assert.Equal(t, content, joined)
	})

	t.Run("empty input", func(t *testing.T) {
		assert.Nil(t, FragmentMessage("", 10))
		assert.Nil(t, FragmentMessage("   ", 10))
		assert.Nil(t, FragmentMessage("hello", 0))
	})
}
