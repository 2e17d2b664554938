package postgres

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"github.com/uptrace/bun"

	"github.com/smarthealth/medquery/pkg/models"
	"github.com/smarthealth/medquery/pkg/store"
)

var _ models.AuditStore = &AuditStoreDAO{}

// AuditStoreDAO is an append-only audit sink. Entries are immutable once
// written; there is no update or delete path.
type AuditStoreDAO struct {
	db *bun.DB
}

func NewAuditStoreDAO(db *bun.DB) *AuditStoreDAO {
	return &AuditStoreDAO{
		db: db,
	}
}

func (dao *AuditStoreDAO) Create(ctx context.Context, entry *models.AuditEntry) error {
	if entry.UserID == "" {
		return models.NewBadRequestError("audit entry requires a user_id")
	}
	if entry.QuestionText == "" {
		return models.NewBadRequestError("audit entry requires question text")
	}

	outcome, err := outcomeToMap(entry.Outcome)
	if err != nil {
		return store.NewStorageError("failed to marshal audit outcome", err)
	}

	entryDB := &AuditLogSchema{
		UUID:         entry.UUID,
		UserID:       entry.UserID,
		PatientID:    entry.PatientID,
		QuestionText: entry.QuestionText,
		Outcome:      outcome,
	}
	if entryDB.UUID == uuid.Nil {
		entryDB.UUID = uuid.New()
	}
	if len(entry.QuestionEmbedding) > 0 {
		entryDB.QuestionEmbedding = pgvector.NewVector(entry.QuestionEmbedding)
	}

	_, err = dao.db.NewInsert().Model(entryDB).Returning("*").Exec(ctx)
	if err != nil {
		return store.NewStorageError("failed to create audit entry", err)
	}

	entry.UUID = entryDB.UUID
	entry.CreatedAt = entryDB.CreatedAt

	return nil
}

func outcomeToMap(outcome *models.QueryOutcome) (map[string]interface{}, error) {
	if outcome == nil {
		return nil, nil
	}
	payload, err := json.Marshal(outcome)
	if err != nil {
		return nil, err
	}
	var outcomeMap map[string]interface{}
	if err := json.Unmarshal(payload, &outcomeMap); err != nil {
		return nil, err
	}
	return outcomeMap, nil
}
