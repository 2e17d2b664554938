package rag

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/smarthealth/medquery/pkg/models"
)

// RecordIndexer embeds clinical record text and writes it to the record
// index. It is the single ingestion path; records never enter the index
// without an embedding.
type RecordIndexer struct {
	embedder models.EmbeddingsClient
	index    models.RecordIndex
}

func NewRecordIndexer(
	embedder models.EmbeddingsClient,
	index models.RecordIndex,
) *RecordIndexer {
	return &RecordIndexer{
		embedder: embedder,
		index:    index,
	}
}

// IndexText embeds text and upserts it as a record of the given kind for
// the given patient. Returns the stored record.
func (ri *RecordIndexer) IndexText(
	ctx context.Context,
	kind models.RecordKind,
	patientID string,
	text string,
) (*models.IndexedRecord, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, models.NewBadRequestError("record text cannot be empty")
	}
	if patientID == "" {
		return nil, models.NewBadRequestError("patient id cannot be empty")
	}

	embeddings, err := ri.embedder.EmbedTexts(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("failed to embed record text: %w", err)
	}
	if len(embeddings) != 1 {
		return nil, fmt.Errorf("expected 1 embedding, got %d", len(embeddings))
	}

	record := &models.IndexedRecord{
		UUID:       uuid.New(),
		Kind:       kind,
		PatientID:  patientID,
		SourceText: text,
		Embedding:  embeddings[0],
	}
	if err := ri.index.Upsert(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to upsert record: %w", err)
	}

	return record, nil
}
