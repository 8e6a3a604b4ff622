package store

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/procura/procura/internal/apperr"
)

func TestCanTransition(t *testing.T) {
	assert.True(t, CanTransition(ConversationInProgress, ConversationCompleted))
	assert.True(t, CanTransition(ConversationInProgress, ConversationAborted))
	assert.False(t, CanTransition(ConversationCompleted, ConversationInProgress))
	assert.False(t, CanTransition(ConversationAborted, ConversationCompleted))
	assert.False(t, CanTransition(ConversationInProgress, ConversationInProgress))
}

func TestNormalizeMessageContent(t *testing.T) {
	for _, in := range []string{"", "   ", "\n\t "} {
		_, err := NormalizeMessageContent(in)
		require.Error(t, err)
		assert.True(t, apperr.Is(err, apperr.KindValidation))
		assert.Contains(t, err.Error(), "cannot be empty")
	}

	got, err := NormalizeMessageContent("  hello  ")
	require.NoError(t, err)
	assert.Equal(t, "hello", got)

	_, err = NormalizeMessageContent(strings.Repeat("x", MaxMessageLength+1))
	assert.Error(t, err)
}

func TestPreviewAndTruncate(t *testing.T) {
	assert.Equal(t, "a b c", Preview("  a \n b\tc "))
	assert.Len(t, []rune(Preview(strings.Repeat("é", 300))), MaxTitleLength)
	assert.Equal(t, "héll", Truncate("héllo", 4))
}

func TestNewItemID(t *testing.T) {
	id := NewItemID()
	assert.Regexp(t, `^[0-9a-f]{24}$`, id)
	assert.NotEqual(t, id, NewItemID())
}
