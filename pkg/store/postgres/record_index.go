package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"github.com/uptrace/bun"

	"github.com/smarthealth/medquery/pkg/models"
	"github.com/smarthealth/medquery/pkg/store"
)

var _ models.RecordIndex = &RecordIndexDAO{}

// RecordIndexDAO implements the record index over postgres + pgvector.
//
// Searches use cosine distance against an ivfflat index. The index is
// build-then-query: vectors upserted after the last index build may be
// invisible to approximate scans until the next rebuild. This is an accepted
// eventual-consistency window of the store.
type RecordIndexDAO struct {
	db         *bun.DB
	dimensions int
}

func NewRecordIndexDAO(db *bun.DB, dimensions int) *RecordIndexDAO {
	return &RecordIndexDAO{
		db:         db,
		dimensions: dimensions,
	}
}

// Upsert inserts the record or, if a record with the same UUID exists,
// replaces its embedding. All other fields are immutable after creation.
func (dao *RecordIndexDAO) Upsert(ctx context.Context, record *models.IndexedRecord) error {
	if record.Kind == "" {
		return models.NewBadRequestError("record kind cannot be empty")
	}
	if record.PatientID == "" {
		return models.NewBadRequestError("record patient_id cannot be empty")
	}
	if len(record.Embedding) != dao.dimensions {
		return store.NewEmbeddingMismatchError(
			fmt.Errorf("got %d dimensions, index expects %d", len(record.Embedding), dao.dimensions),
		)
	}

	recordDB := &RecordEmbeddingSchema{
		UUID:       record.UUID,
		Kind:       string(record.Kind),
		PatientID:  record.PatientID,
		SourceText: record.SourceText,
		Embedding:  pgvector.NewVector(record.Embedding),
		IsEmbedded: true,
	}
	if recordDB.UUID == uuid.Nil {
		recordDB.UUID = uuid.New()
	}

	_, err := dao.db.NewInsert().
		Model(recordDB).
		On("CONFLICT (uuid) DO UPDATE").
		Set("embedding = EXCLUDED.embedding").
		Set("is_embedded = EXCLUDED.is_embedded").
		Set("updated_at = current_timestamp").
		Exec(ctx)
	if err != nil {
		if strings.Contains(err.Error(), "expected") && strings.Contains(err.Error(), "dimensions") {
			return store.NewEmbeddingMismatchError(err)
		}
		return store.NewStorageError("failed to upsert record", err)
	}

	record.UUID = recordDB.UUID

	return nil
}

type recordSearchRow struct {
	UUID       uuid.UUID `bun:"uuid"`
	Kind       string    `bun:"kind"`
	PatientID  string    `bun:"patient_id"`
	SourceText string    `bun:"source_text"`
	CreatedAt  time.Time `bun:"created_at"`
	Dist       float64   `bun:"dist"`
}

// Search returns at most query.Limit hits within query.Scope, ascending by
// cosine distance with ties broken by most recent record first.
//
// The scope filter is part of the SQL WHERE clause so out-of-scope rows never
// participate in the scan; existence of other patients' records cannot leak
// through timing or result pagination.
func (dao *RecordIndexDAO) Search(
	ctx context.Context,
	query *models.SearchQuery,
) ([]models.RetrievalHit, error) {
	if query == nil {
		return nil, store.NewStorageError("nil query received", nil)
	}
	if query.Scope.PatientID == "" {
		return nil, models.NewBadRequestError("search scope requires a patient_id")
	}
	if len(query.Embedding) != dao.dimensions {
		return nil, store.NewEmbeddingMismatchError(
			fmt.Errorf("got %d dimensions, index expects %d", len(query.Embedding), dao.dimensions),
		)
	}

	vector := pgvector.NewVector(query.Embedding)

	dbQuery := dao.db.NewSelect().
		TableExpr("record_embedding AS re").
		ColumnExpr("re.uuid, re.kind, re.patient_id, re.source_text, re.created_at").
		ColumnExpr("re.embedding <=> ? AS dist", vector).
		Where("re.patient_id = ?", query.Scope.PatientID).
		Where("re.is_embedded = true").
		Where("re.deleted_at IS NULL")

	if len(query.Scope.Kinds) > 0 {
		kinds := make([]string, len(query.Scope.Kinds))
		for i, kind := range query.Scope.Kinds {
			kinds[i] = string(kind)
		}
		dbQuery = dbQuery.Where("re.kind IN (?)", bun.In(kinds))
	}

	// MaxDistance is a hard cutoff: hits further away are excluded even if
	// fewer than Limit results remain.
	if query.MaxDistance > 0 {
		dbQuery = dbQuery.Where("(re.embedding <=> ?) <= ?", vector, query.MaxDistance)
	}

	limit := query.Limit
	if limit == 0 {
		limit = DefaultSearchLimit
	}

	dbQuery = dbQuery.
		OrderExpr("dist ASC").
		OrderExpr("re.created_at DESC").
		Limit(limit)

	var rows []recordSearchRow
	if err := dbQuery.Scan(ctx, &rows); err != nil {
		return nil, store.NewStorageError("record index search failed", err)
	}

	// Zero hits is a valid, non-error outcome.
	hits := make([]models.RetrievalHit, len(rows))
	for i, row := range rows {
		hits[i] = models.RetrievalHit{
			Record: models.IndexedRecord{
				UUID:       row.UUID,
				Kind:       models.RecordKind(row.Kind),
				PatientID:  row.PatientID,
				SourceText: row.SourceText,
				CreatedAt:  row.CreatedAt,
			},
			Dist: row.Dist,
			Rank: i + 1,
		}
	}

	return hits, nil
}

const DefaultSearchLimit = 15

// GetRecord returns a record by UUID.
func (dao *RecordIndexDAO) GetRecord(
	ctx context.Context,
	recordUUID uuid.UUID,
) (*models.IndexedRecord, error) {
	recordDB := new(RecordEmbeddingSchema)
	err := dao.db.NewSelect().
		Model(recordDB).
		Where("uuid = ?", recordUUID).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.NewNotFoundError("record " + recordUUID.String())
		}
		return nil, store.NewStorageError("failed to get record", err)
	}

	return &models.IndexedRecord{
		UUID:       recordDB.UUID,
		Kind:       models.RecordKind(recordDB.Kind),
		PatientID:  recordDB.PatientID,
		SourceText: recordDB.SourceText,
		Embedding:  recordDB.Embedding.Slice(),
		CreatedAt:  recordDB.CreatedAt,
	}, nil
}

// PurgeDeleted hard deletes all soft-deleted rows in the record index.
func (dao *RecordIndexDAO) PurgeDeleted(ctx context.Context) error {
	_, err := dao.db.NewDelete().
		Model(&RecordEmbeddingSchema{}).
		WhereDeleted().
		ForceDelete().
		Exec(ctx)
	if err != nil {
		return store.NewStorageError("failed to purge deleted records", err)
	}

	return nil
}
