package services

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"go_audit_backend/models"
	"go_audit_backend/pkg/logging"
)

// ExtractInvoker runs one stateful extraction call. Calls sharing a session
// id must observe each other so section numbering stays consistent across
// groups of the same document.
type ExtractInvoker interface {
	Invoke(ctx context.Context, sessionID, groupText string) (string, error)
}

const extractInstruction = `You are an audit requirement extraction assistant. You are given a fragment of a tender/audit requirements document. Tasks:
1) Extract the distinct section-level requirements from the fragment.
2) Emit each one as an object: {"section_id": "<the original or inferred numbering>", "content": "<the full requirement, with enough context to stand alone>"}.
3) Output exactly one JSON array of such objects. No explanations, no commentary, no code fences.
4) When the source has no explicit numbering, infer it from the structure and keep it consistent with earlier fragments (you have conversation memory).
5) Never return an empty array; when nothing is clearly numbered, merge sensibly and number the sections "UN-1", "UN-2", and so on.`

// SessionExtractInvoker implements the extraction call on the chat model,
// carrying continuity through the conversation store.
type SessionExtractInvoker struct {
	completer ChatCompleter
	store     *ConversationStore
}

func NewSessionExtractInvoker(completer ChatCompleter, store *ConversationStore) *SessionExtractInvoker {
	return &SessionExtractInvoker{completer: completer, store: store}
}

func (inv *SessionExtractInvoker) Invoke(ctx context.Context, sessionID, groupText string) (string, error) {
	userMsg := models.ChatMessage{
		Role:    "user",
		Content: fmt.Sprintf("%s\n\n=== fragment begin ===\n%s\n=== fragment end ===", extractInstruction, groupText),
	}
	messages := append(inv.store.History(sessionID), userMsg)
	reply, err := inv.completer.Complete(ctx, messages)
	if err != nil {
		return "", err
	}
	inv.store.Append(sessionID, userMsg, models.ChatMessage{Role: "assistant", Content: reply})
	return reply, nil
}

var jsonArrayRe = regexp.MustCompile(`(?s)\[\s*\{.*\}\s*\]`)

// parseJSONArray expects the response to be a bare JSON array; when the model
// wrapped it in prose, the first array-shaped substring is tried instead.
// Both failing yields an empty slice, never an error.
func parseJSONArray(text string) []map[string]interface{} {
	text = strings.TrimSpace(text)

	var arr []map[string]interface{}
	if err := json.Unmarshal([]byte(text), &arr); err == nil {
		return arr
	}
	if m := jsonArrayRe.FindString(text); m != "" {
		if err := json.Unmarshal([]byte(m), &arr); err == nil {
			return arr
		}
	}
	return nil
}

// ExtractService drives batched requirement extraction over long documents.
type ExtractService struct {
	invoker ExtractInvoker
}

func NewExtractService(invoker ExtractInvoker) *ExtractService {
	return &ExtractService{invoker: invoker}
}

// ExtractAll splits text into paragraph groups of groupSize, extracts each
// group in order through the stateful extraction call, and yields surviving
// items one by one. A group is sent only after the previous group's response
// has been parsed; nothing is buffered across groups. A failed group yields
// one synthetic ERROR item and extraction moves on.
func (s *ExtractService) ExtractAll(ctx context.Context, text, sessionID string, groupSize int, yield func(models.RequirementItem, models.RequirementMeta) error) error {
	paragraphs := SplitParagraphs(text)
	groups := GroupParagraphs(paragraphs, groupSize)

	running := 0
	for chunkIdx, groupText := range groups {
		response, err := s.invoker.Invoke(ctx, sessionID, groupText)
		if err != nil {
			logging.Logger.Error("fail extraction group", "chunk_index", chunkIdx, "error", err)
			errItem := models.RequirementItem{
				SectionID: fmt.Sprintf("ERROR-%d", chunkIdx+1),
				Content:   fmt.Sprintf("extraction failed: %v", err),
			}
			meta := models.RequirementMeta{ChunkIndex: chunkIdx, IndexInChunk: 0, TotalInChunk: 1}
			if err := yield(errItem, meta); err != nil {
				return err
			}
			continue
		}

		items := cleanItems(parseJSONArray(response), &running)
		total := len(items)
		for i, item := range items {
			meta := models.RequirementMeta{ChunkIndex: chunkIdx, IndexInChunk: i, TotalInChunk: total}
			if err := yield(item, meta); err != nil {
				return err
			}
		}
	}
	return nil
}

// cleanItems coerces raw extraction objects into RequirementItems: both
// fields stringified and trimmed, empty content dropped, missing section ids
// synthesized from the running item count.
func cleanItems(raw []map[string]interface{}, running *int) []models.RequirementItem {
	cleaned := make([]models.RequirementItem, 0, len(raw))
	for _, entry := range raw {
		content := strings.TrimSpace(stringify(entry["content"]))
		if content == "" {
			continue
		}
		*running++
		sectionID := strings.TrimSpace(stringify(entry["section_id"]))
		if sectionID == "" {
			sectionID = fmt.Sprintf("UN-%d", *running)
		}
		cleaned = append(cleaned, models.RequirementItem{SectionID: sectionID, Content: content})
	}
	return cleaned
}

func stringify(v interface{}) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	default:
		return fmt.Sprintf("%v", s)
	}
}
