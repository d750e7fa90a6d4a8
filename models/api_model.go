package models

// ExtractRequest drives the extraction-only SSE endpoint.
type ExtractRequest struct {
	Text      string `json:"text"`
	SessionID string `json:"session_id"`
	GroupSize int    `json:"group_size"`
}

// BatchAuditRequest is the full two-phase entry: extract everything from the
// requirement text, vectorize the documents, then audit each item.
type BatchAuditRequest struct {
	RequirementsContent string   `json:"requirements_content"`
	DocsContents        []string `json:"docs_contents"`
	UserID              int64    `json:"user_id"`
	FileID              string   `json:"file_id"`
	FileName            string   `json:"file_name"`
	GroupSize           int      `json:"group_size"`
}

// PreSplitBatchAuditRequest is the alternate entry with caller-provided
// requirement items and pre-split document paragraphs.
type PreSplitBatchAuditRequest struct {
	Requirements []string `json:"requirements"`
	DocsContents []string `json:"docs_contents"`
	UserID       int64    `json:"user_id"`
	FileID       string   `json:"file_id"`
	FileName     string   `json:"file_name"`
}

// AuditOneRequest audits a single requirement against a vectorized file.
type AuditOneRequest struct {
	OneRequirement string `json:"one_requirement"`
	FileID         string `json:"file_id"`
}

// VectorizeResult is the knowledge service's upsert acknowledgement.
type VectorizeResult struct {
	ID              string `json:"id"`
	UserID          int64  `json:"userId"`
	EmbeddingResult bool   `json:"embedding_result"`
}

// SearchResult is one citation returned by the knowledge search.
type SearchResult struct {
	Title   string `json:"title"`
	ID      string `json:"id"`
	Content string `json:"content"`
}
