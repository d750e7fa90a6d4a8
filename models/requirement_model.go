package models

import "time"

// RequirementItem is one extracted audit requirement. SectionID is taken from
// the extraction output or synthesized as "UN-<n>" when missing.
type RequirementItem struct {
	SectionID string `json:"section_id"`
	Content   string `json:"content"`
}

// RequirementMeta locates an item within the batched extraction run.
type RequirementMeta struct {
	ChunkIndex   int `json:"chunk_index"`
	IndexInChunk int `json:"index_in_chunk"`
	TotalInChunk int `json:"total_in_chunk"`
}

// IndexedRequirement is a requirement positioned in the audit order.
type IndexedRequirement struct {
	Index       int             `json:"index"`
	Requirement string          `json:"requirement"`
	Meta        RequirementMeta `json:"meta"`
}

const (
	SessionStatusVectorizing = "vectorizing"
	SessionStatusExtracting  = "extracting"
	SessionStatusAuditing    = "auditing"
	SessionStatusCompleted   = "completed"
	SessionStatusFailed      = "failed"
)

// AuditSession is the durable record of one batch audit request.
type AuditSession struct {
	ID         string `gorm:"primaryKey"`
	FileID     string
	UserID     int64
	FileName   string
	ArchiveKey string
	Status     string
	Total      int
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// AuditResult is the per-requirement outcome within a session.
type AuditResult struct {
	ID           string `gorm:"primaryKey"`
	SessionID    string `gorm:"index"`
	ItemIndex    int
	Requirement  string
	Result       string
	ErrorMessage string
	CreatedAt    time.Time
}
