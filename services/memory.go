package services

import (
	"time"

	"go_audit_backend/models"
	"go_audit_backend/pkg/logging"
	"go_audit_backend/platform/cache"
)

const conversationTTL = 2 * time.Hour

// ConversationStore keeps per-session message history. Sessions are created
// on first use and never shared; the continuity key is the pipeline session
// id, so extraction batches and audit turns of one run see each other.
type ConversationStore struct {
	cache       *cache.TypedCache[[]models.ChatMessage]
	tokenBudget int
}

func NewConversationStore(cacheService cache.CacheService, tokenBudget int) *ConversationStore {
	return &ConversationStore{
		cache:       cache.NewTypedCache[[]models.ChatMessage](cacheService),
		tokenBudget: tokenBudget,
	}
}

func conversationKey(sessionID string) string {
	return "conversation:" + sessionID
}

// History returns the trimmed message history for a session. A missing or
// unreadable entry yields an empty history rather than an error.
func (s *ConversationStore) History(sessionID string) []models.ChatMessage {
	messages, ok, err := s.cache.Get(conversationKey(sessionID))
	if err != nil {
		logging.Logger.Error("fail reading conversation", "session_id", sessionID, "error", err)
		return nil
	}
	if !ok {
		return nil
	}
	return trimToBudget(messages, s.tokenBudget)
}

// Append adds messages to a session's history.
func (s *ConversationStore) Append(sessionID string, messages ...models.ChatMessage) {
	history := s.History(sessionID)
	history = append(history, messages...)
	if err := s.cache.Set(conversationKey(sessionID), history, conversationTTL); err != nil {
		logging.Logger.Error("fail writing conversation", "session_id", sessionID, "error", err)
	}
}

// Clear removes a session's history.
func (s *ConversationStore) Clear(sessionID string) {
	if err := s.cache.Delete(conversationKey(sessionID)); err != nil {
		logging.Logger.Error("fail clearing conversation", "session_id", sessionID, "error", err)
	}
}

// trimToBudget keeps the most recent messages whose approximate token count
// fits the budget, never splitting a message. Four characters per token is
// close enough for trimming.
func trimToBudget(messages []models.ChatMessage, budget int) []models.ChatMessage {
	if budget <= 0 {
		return messages
	}
	total := 0
	start := len(messages)
	for i := len(messages) - 1; i >= 0; i-- {
		total += approxTokens(messages[i])
		if total > budget {
			break
		}
		start = i
	}
	// keep at least the latest message even when it alone exceeds the budget
	if start == len(messages) && len(messages) > 0 {
		start = len(messages) - 1
	}
	return messages[start:]
}

func approxTokens(m models.ChatMessage) int {
	n := len(m.Content)
	for _, tc := range m.ToolCalls {
		n += len(tc.Function.Arguments) + len(tc.Function.Name)
	}
	return n/4 + 1
}
