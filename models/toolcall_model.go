package models

// ToolCallFragment is one streamed piece of a tool call. The model emits
// arguments split over many fragments that share an Index; identity fields
// may arrive on any fragment of the group.
type ToolCallFragment struct {
	Index     int    `json:"index"`
	CallID    string `json:"id,omitempty"`
	CallType  string `json:"type,omitempty"`
	Name      string `json:"name,omitempty"`
	ArgsPiece string `json:"arguments,omitempty"`
}

// MergedToolCall is a fully reassembled tool call. Arguments holds the parsed
// JSON object when the accumulated argument text is valid JSON, otherwise the
// raw accumulated string.
type MergedToolCall struct {
	Index     int         `json:"index"`
	CallID    string      `json:"id"`
	CallType  string      `json:"type"`
	Name      string      `json:"name"`
	Arguments interface{} `json:"arguments"`
}
