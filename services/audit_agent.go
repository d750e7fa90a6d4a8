package services

import (
	"context"
	"encoding/json"
	"fmt"

	"go_audit_backend/models"
	"go_audit_backend/pkg/logging"
)

// AuditStreamer is the audit call consumed by the pipeline: a streaming,
// session-scoped answer to one requirement, yielded as typed chunks.
type AuditStreamer interface {
	StreamAudit(ctx context.Context, sessionID, question, scopeKey string, yield func(models.AuditChunk) error) error
}

const auditInstruction = `You are an audit assistant. You are given one tender/audit requirement; decide whether the vectorized bid document satisfies it. Use the search_audit_db tool to retrieve the relevant passages before judging. Answer with a verdict (compliant / non-compliant / not determinable), the evidence found, and a short justification. Cite the retrieved passages you relied on.`

// maxToolRounds bounds how many tool cycles one question may trigger.
const maxToolRounds = 5

// AuditAgent serves audit questions with a tool-using model loop: stream the
// assistant output, reassemble fragmented tool calls, dispatch them through
// the registry, feed results back, and repeat until the model stops.
type AuditAgent struct {
	streamer ChatStreamer
	registry *ToolRegistry
	store    *ConversationStore
}

func NewAuditAgent(streamer ChatStreamer, registry *ToolRegistry, store *ConversationStore) *AuditAgent {
	return &AuditAgent{streamer: streamer, registry: registry, store: store}
}

func (a *AuditAgent) StreamAudit(ctx context.Context, sessionID, question, scopeKey string, yield func(models.AuditChunk) error) error {
	userMsg := models.ChatMessage{Role: "user", Content: question}
	messages := append([]models.ChatMessage{{Role: "system", Content: auditInstruction}}, a.store.History(sessionID)...)
	messages = append(messages, userMsg)
	a.store.Append(sessionID, userMsg)

	aggregator := NewToolCallAggregator()

	for round := 0; round <= maxToolRounds; round++ {
		var assistantText string
		var finishReason string

		err := a.streamer.StreamChat(ctx, messages, a.registry.Definitions(), func(delta models.StreamDelta) error {
			if delta.ToolFragment != nil {
				aggregator.Add(*delta.ToolFragment)
				return nil
			}
			if delta.Text != "" {
				assistantText += delta.Text
				return yield(models.AuditChunk{Type: models.ChunkTypeText, Text: delta.Text})
			}
			if delta.FinishReason != "" {
				finishReason = delta.FinishReason
			}
			return nil
		})
		if err != nil {
			return err
		}

		if finishReason != "tool_calls" && !aggregator.Pending() {
			assistant := models.ChatMessage{Role: "assistant", Content: assistantText}
			a.store.Append(sessionID, assistant)
			return yield(models.AuditChunk{Type: models.ChunkTypeFinal, Text: "audit turn finished"})
		}

		merged := aggregator.Finish()
		if len(merged) == 0 {
			// finish said tool_calls but nothing accumulated; treat as done
			a.store.Append(sessionID, models.ChatMessage{Role: "assistant", Content: assistantText})
			return yield(models.AuditChunk{Type: models.ChunkTypeFinal, Text: "audit turn finished"})
		}

		if err := yield(models.AuditChunk{Type: models.ChunkTypeData, Data: merged}); err != nil {
			return err
		}

		assistant := models.ChatMessage{Role: "assistant", Content: assistantText, ToolCalls: wireCalls(merged)}
		messages = append(messages, assistant)
		a.store.Append(sessionID, assistant)

		var citations []models.SearchResult
		for _, call := range merged {
			result, err := a.registry.Dispatch(ctx, scopeKey, call)
			if err != nil {
				logging.Logger.Error("fail tool dispatch", "tool", call.Name, "error", err)
				result = &ToolResult{Content: fmt.Sprintf("tool %s failed: %v", call.Name, err)}
			}
			citations = append(citations, result.Citations...)

			toolMsg := models.ChatMessage{
				Role:       "tool",
				Content:    result.Content,
				ToolCallID: call.CallID,
				Name:       call.Name,
			}
			messages = append(messages, toolMsg)
			a.store.Append(sessionID, toolMsg)

			if err := yield(models.AuditChunk{Type: models.ChunkTypeData, Data: map[string]interface{}{
				"name":         call.Name,
				"tool_call_id": call.CallID,
				"tool_output":  result.Content,
			}}); err != nil {
				return err
			}
		}
		if len(citations) > 0 {
			if err := yield(models.AuditChunk{Type: models.ChunkTypeMetadata, Metadata: map[string]interface{}{
				"search_dbs": citations,
			}}); err != nil {
				return err
			}
		}
	}
	return fmt.Errorf("audit aborted after %d tool rounds", maxToolRounds)
}

// wireCalls converts merged calls back to the wire shape the model expects in
// the assistant message that triggered them.
func wireCalls(merged []models.MergedToolCall) []models.WireToolCall {
	calls := make([]models.WireToolCall, 0, len(merged))
	for _, m := range merged {
		args, ok := m.Arguments.(string)
		if !ok {
			if data, err := json.Marshal(m.Arguments); err == nil {
				args = string(data)
			}
		}
		calls = append(calls, models.WireToolCall{
			ID:   m.CallID,
			Type: m.CallType,
			Function: models.WireFunction{
				Name:      m.Name,
				Arguments: args,
			},
		})
	}
	return calls
}
