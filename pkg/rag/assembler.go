package rag

import (
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/smarthealth/medquery/pkg/models"
)

// charsPerTokenEstimate is the fallback when no token counter is available
// for the configured model.
const charsPerTokenEstimate = 4

// ContextAssembler selects, deduplicates, and formats the minimal sufficient
// context from ranked retrieval hits under a token budget.
type ContextAssembler struct {
	counter models.TokenCounter
}

// NewContextAssembler returns an assembler. counter may be nil, in which case
// token counts are estimated from character length.
func NewContextAssembler(counter models.TokenCounter) *ContextAssembler {
	return &ContextAssembler{counter: counter}
}

// Assemble renders hits into a bounded context. Hits are processed in ranked
// order (ascending distance, most recent first on ties), duplicates resolve
// to the higher-ranked occurrence, and accumulation stops before the first
// block that would exceed the budget. Zero hits yields an empty context with
// Truncated false; generation must treat that as insufficient grounding.
func (a *ContextAssembler) Assemble(
	hits []models.RetrievalHit,
	budgetTokens int,
) (*models.AssembledContext, error) {
	if budgetTokens <= 0 {
		return nil, models.NewBadRequestError("context budget must be positive")
	}

	ranked := make([]models.RetrievalHit, len(hits))
	copy(ranked, hits)
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Dist != ranked[j].Dist {
			return ranked[i].Dist < ranked[j].Dist
		}
		return ranked[i].Record.CreatedAt.After(ranked[j].Record.CreatedAt)
	})

	assembled := &models.AssembledContext{
		Entries: []models.ContextEntry{},
	}

	seen := make(map[uuid.UUID]bool, len(ranked))
	rank := 0
	for _, hit := range ranked {
		// Hits merged from multiple retrievals may repeat a record; keep
		// only the higher-ranked occurrence.
		if seen[hit.Record.UUID] {
			continue
		}
		seen[hit.Record.UUID] = true
		rank++

		text := formatRecordBlock(&hit.Record)
		tokens := a.countTokens(text)

		if assembled.TotalTokens+tokens > budgetTokens {
			assembled.Truncated = true
			break
		}

		assembled.Entries = append(assembled.Entries, models.ContextEntry{
			RecordUUID:    hit.Record.UUID,
			Kind:          hit.Record.Kind,
			FormattedText: text,
			RelevanceRank: rank,
			TokenCount:    tokens,
		})
		assembled.TotalTokens += tokens
	}

	return assembled, nil
}

func (a *ContextAssembler) countTokens(text string) int {
	if a.counter != nil {
		count, err := a.counter.GetTokenCount(text)
		if err == nil && count > 0 {
			return count
		}
	}
	return len(text)/charsPerTokenEstimate + 1
}

// formatRecordBlock renders the fixed-shape text block for one record:
// kind, key fields, then the source text.
func formatRecordBlock(record *models.IndexedRecord) string {
	var sb strings.Builder
	sb.WriteString(string(record.Kind))
	if !record.CreatedAt.IsZero() {
		sb.WriteString(fmt.Sprintf(" (%s)", record.CreatedAt.Format("2006-01-02")))
	}
	sb.WriteString(": ")
	sb.WriteString(strings.TrimSpace(record.SourceText))
	return sb.String()
}
