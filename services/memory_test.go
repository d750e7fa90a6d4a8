package services

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go_audit_backend/models"
)

func TestConversationStore_AppendAndHistory(t *testing.T) {
	store := newTestConversationStore()

	assert.Empty(t, store.History("sess-1"))

	store.Append("sess-1", models.ChatMessage{Role: "user", Content: "hello"})
	store.Append("sess-1", models.ChatMessage{Role: "assistant", Content: "hi"})

	history := store.History("sess-1")
	require.Len(t, history, 2)
	assert.Equal(t, "hello", history[0].Content)
	assert.Equal(t, "hi", history[1].Content)

	// sessions do not leak into each other
	assert.Empty(t, store.History("sess-2"))
}

func TestConversationStore_Clear(t *testing.T) {
	store := newTestConversationStore()
	store.Append("sess-1", models.ChatMessage{Role: "user", Content: "x"})
	store.Clear("sess-1")
	assert.Empty(t, store.History("sess-1"))
}

func TestTrimToBudget_DropsOldestFirst(t *testing.T) {
	big := strings.Repeat("a", 400)
	messages := []models.ChatMessage{
		{Role: "user", Content: big},
		{Role: "assistant", Content: big},
		{Role: "user", Content: "recent"},
	}

	// budget fits roughly one big message
	trimmed := trimToBudget(messages, 120)
	require.NotEmpty(t, trimmed)
	assert.Equal(t, "recent", trimmed[len(trimmed)-1].Content)
	assert.Less(t, len(trimmed), len(messages))
}

func TestTrimToBudget_KeepsLatestEvenOverBudget(t *testing.T) {
	messages := []models.ChatMessage{
		{Role: "user", Content: strings.Repeat("a", 10000)},
	}
	trimmed := trimToBudget(messages, 10)
	require.Len(t, trimmed, 1)
}

func TestTrimToBudget_NoTrimUnderBudget(t *testing.T) {
	messages := []models.ChatMessage{
		{Role: "user", Content: "short"},
		{Role: "assistant", Content: "reply"},
	}
	assert.Equal(t, messages, trimToBudget(messages, 4096))
}
