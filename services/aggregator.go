package services

import (
	"encoding/json"
	"sort"
	"strings"

	"go_audit_backend/models"
)

// ToolCallAggregator reassembles streamed tool-call fragments into complete
// calls. Fragments sharing an index belong to the same call; argument pieces
// are concatenated in arrival order while identity fields keep the last
// non-empty value seen. One aggregator serves one conversation and is reused
// across finish cycles.
type ToolCallAggregator struct {
	pending map[int]*pendingCall
}

type pendingCall struct {
	args     strings.Builder
	callID   string
	callType string
	name     string
}

func NewToolCallAggregator() *ToolCallAggregator {
	return &ToolCallAggregator{pending: make(map[int]*pendingCall)}
}

// Add folds one fragment into the accumulator for its index.
func (a *ToolCallAggregator) Add(frag models.ToolCallFragment) {
	call, ok := a.pending[frag.Index]
	if !ok {
		call = &pendingCall{}
		a.pending[frag.Index] = call
	}
	call.args.WriteString(frag.ArgsPiece)
	if frag.CallID != "" {
		call.callID = frag.CallID
	}
	if frag.CallType != "" {
		call.callType = frag.CallType
	}
	if frag.Name != "" {
		call.name = frag.Name
	}
}

// Pending reports whether any fragments are buffered.
func (a *ToolCallAggregator) Pending() bool {
	return len(a.pending) > 0
}

// Finish merges everything accumulated so far, ordered by ascending index,
// and resets the aggregator for the next cycle. Argument text that is not
// valid JSON is kept as the raw string rather than failing the merge. A
// finish with nothing buffered yields an empty list.
func (a *ToolCallAggregator) Finish() []models.MergedToolCall {
	indices := make([]int, 0, len(a.pending))
	for idx := range a.pending {
		indices = append(indices, idx)
	}
	sort.Ints(indices)

	merged := make([]models.MergedToolCall, 0, len(indices))
	for _, idx := range indices {
		call := a.pending[idx]
		raw := call.args.String()
		var arguments interface{}
		if err := json.Unmarshal([]byte(raw), &arguments); err != nil {
			arguments = raw
		}
		merged = append(merged, models.MergedToolCall{
			Index:     idx,
			CallID:    call.callID,
			CallType:  call.callType,
			Name:      call.name,
			Arguments: arguments,
		})
	}
	a.pending = make(map[int]*pendingCall)
	return merged
}
