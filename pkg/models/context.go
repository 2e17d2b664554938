package models

import "github.com/google/uuid"

// ContextEntry is a single formatted block of retrieved record text.
type ContextEntry struct {
	RecordUUID    uuid.UUID  `json:"record_uuid"`
	Kind          RecordKind `json:"kind"`
	FormattedText string     `json:"formatted_text"`
	RelevanceRank int        `json:"relevance_rank"`
	TokenCount    int        `json:"token_count"`
}

// AssembledContext is the bounded, deduplicated context passed to generation.
// Entries are ordered by descending relevance and unique by record UUID, and
// TotalTokens never exceeds the budget the context was assembled under.
type AssembledContext struct {
	Entries     []ContextEntry `json:"entries"`
	TotalTokens int            `json:"total_tokens"`
	// Truncated is true if ranked hits were dropped to honor the budget.
	Truncated bool `json:"truncated"`
}

// Empty is true when no relevant records survived retrieval. Downstream
// generation must treat this as insufficient grounding, never as license to
// answer from prior knowledge.
func (c *AssembledContext) Empty() bool {
	return len(c.Entries) == 0
}
