package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"github.com/uptrace/bun"

	"github.com/smarthealth/medquery/config"
)

type PatientSchema struct {
	bun.BaseModel `bun:"table:patient,alias:p"`

	UUID      uuid.UUID `bun:",pk,type:uuid,default:gen_random_uuid()"`
	ID        int64     `bun:",autoincrement"` // used as a cursor for pagination
	CreatedAt time.Time `bun:"type:timestamptz,notnull,default:current_timestamp"`
	UpdatedAt time.Time `bun:"type:timestamptz,nullzero,default:current_timestamp"`
	DeletedAt time.Time `bun:"type:timestamptz,soft_delete,nullzero"`
	PatientID string    `bun:",unique,notnull"`
	FirstName string    `bun:","`
	LastName  string    `bun:","`
	BirthDate time.Time `bun:"type:date,nullzero"`
	// DocumentType + DocumentNumber are the caller-facing lookup key.
	DocumentType   string `bun:",notnull"`
	DocumentNumber string `bun:",notnull"`
}

var _ bun.BeforeAppendModelHook = (*PatientSchema)(nil)

func (s *PatientSchema) BeforeAppendModel(_ context.Context, query bun.Query) error {
	if _, ok := query.(*bun.UpdateQuery); ok {
		s.UpdatedAt = time.Now()
	}
	return nil
}

var _ bun.AfterCreateTableHook = (*PatientSchema)(nil)

func (*PatientSchema) AfterCreateTable(
	ctx context.Context,
	query *bun.CreateTableQuery,
) error {
	_, err := query.DB().NewCreateIndex().
		Model((*PatientSchema)(nil)).
		Index("patient_document_idx").
		Column("document_type", "document_number").
		Unique().
		IfNotExists().
		Exec(ctx)
	return err
}

// RecordEmbeddingSchema is the record index: one row per indexed clinical
// record, embedding alongside its scope keys. Rows are append-only; only the
// embedding is replaced after creation.
type RecordEmbeddingSchema struct {
	bun.BaseModel `bun:"table:record_embedding,alias:re"`

	UUID       uuid.UUID       `bun:",pk,type:uuid,default:gen_random_uuid()"`
	CreatedAt  time.Time       `bun:"type:timestamptz,notnull,default:current_timestamp"`
	UpdatedAt  time.Time       `bun:"type:timestamptz,nullzero,default:current_timestamp"`
	DeletedAt  time.Time       `bun:"type:timestamptz,soft_delete,nullzero"`
	Kind       string          `bun:",notnull"`
	PatientID  string          `bun:",notnull"`
	SourceText string          `bun:",notnull"`
	Embedding  pgvector.Vector `bun:"type:vector(1536)"`
	IsEmbedded bool            `bun:"type:bool,notnull,default:false"`
	Patient    *PatientSchema  `bun:"rel:belongs-to,join:patient_id=patient_id,on_delete:cascade"`
}

var _ bun.BeforeAppendModelHook = (*RecordEmbeddingSchema)(nil)

func (s *RecordEmbeddingSchema) BeforeAppendModel(_ context.Context, query bun.Query) error {
	if _, ok := query.(*bun.UpdateQuery); ok {
		s.UpdatedAt = time.Now()
	}
	return nil
}

var _ bun.AfterCreateTableHook = (*RecordEmbeddingSchema)(nil)

func (*RecordEmbeddingSchema) AfterCreateTable(
	ctx context.Context,
	query *bun.CreateTableQuery,
) error {
	_, err := query.DB().NewCreateIndex().
		Model((*RecordEmbeddingSchema)(nil)).
		Index("record_embedding_patient_id_idx").
		Column("patient_id").
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return err
	}

	_, err = query.DB().NewCreateIndex().
		Model((*RecordEmbeddingSchema)(nil)).
		Index("record_embedding_kind_idx").
		Column("kind").
		IfNotExists().
		Exec(ctx)
	return err
}

// AuditLogSchema is the append-only audit sink. There is no update or delete
// path from this service.
type AuditLogSchema struct {
	bun.BaseModel `bun:"table:audit_log,alias:al"`

	UUID              uuid.UUID              `bun:",pk,type:uuid,default:gen_random_uuid()"`
	CreatedAt         time.Time              `bun:"type:timestamptz,notnull,default:current_timestamp"`
	UserID            string                 `bun:",notnull"`
	PatientID         string                 `bun:",nullzero"`
	QuestionText      string                 `bun:",notnull"`
	QuestionEmbedding pgvector.Vector        `bun:"type:vector(1536),nullzero"`
	Outcome           map[string]interface{} `bun:"type:jsonb,nullzero,json_use_number"`
}

var _ bun.AfterCreateTableHook = (*AuditLogSchema)(nil)

func (*AuditLogSchema) AfterCreateTable(
	ctx context.Context,
	query *bun.CreateTableQuery,
) error {
	_, err := query.DB().NewCreateIndex().
		Model((*AuditLogSchema)(nil)).
		Index("audit_log_user_id_idx").
		Column("user_id").
		IfNotExists().
		Exec(ctx)
	return err
}

var tableList = []bun.AfterCreateTableHook{
	&AuditLogSchema{},
	&RecordEmbeddingSchema{},
	&PatientSchema{},
}

// CreateSchema creates the db schema if it does not exist.
func CreateSchema(
	ctx context.Context,
	cfg *config.Config,
	db *bun.DB,
) error {
	// iterate through tableList in reverse order to create tables with
	// foreign keys last
	for i := len(tableList) - 1; i >= 0; i-- {
		schema := tableList[i]
		_, err := db.NewCreateTable().
			Model(schema).
			IfNotExists().
			WithForeignKeys().
			Exec(ctx)
		if err != nil {
			// bun still trying to create indexes despite IfNotExists flag
			if strings.Contains(err.Error(), "already exists") {
				continue
			}
			return fmt.Errorf("error creating table for schema %T: %w", schema, err)
		}
	}

	// check that the embedding column width matches the configured model
	if err := checkEmbeddingDims(ctx, cfg, db); err != nil {
		return fmt.Errorf("error checking embedding dimensions: %w", err)
	}

	// An ivfflat index trades recall for speed: freshly upserted vectors may
	// not be visible to approximate queries until the index is rebuilt. This
	// eventual-consistency window is accepted and documented; exact scans
	// remain correct without the index.
	if err := createIVFFlatIndex(ctx, db, "record_embedding", "embedding"); err != nil {
		return fmt.Errorf("error creating ivfflat index: %w", err)
	}

	return nil
}

// createIVFFlatIndex creates an ivfflat index on the given table and column
// if it does not exist. Only vector_cosine_ops is supported.
func createIVFFlatIndex(ctx context.Context, db *bun.DB, table, column string) error {
	const lists = 100

	idx := table + "_" + column + "_ivfflat_idx"

	_, err := db.ExecContext(
		ctx,
		"CREATE INDEX IF NOT EXISTS ? ON ? USING ivfflat (? vector_cosine_ops) WITH (lists = ?);",
		bun.Safe(idx),
		bun.Ident(table),
		bun.Ident(column),
		lists,
	)
	return err
}

// checkEmbeddingDims checks the dimensions of the record embedding column against the
// dimensions of the configured embedding model. If they do not match, the column is dropped and
// recreated with the correct dimensions.
func checkEmbeddingDims(ctx context.Context, cfg *config.Config, db *bun.DB) error {
	width, err := getEmbeddingColumnWidth(ctx, "record_embedding", db)
	if err != nil {
		return fmt.Errorf("error getting embedding column width: %w", err)
	}

	if width != cfg.EmbeddingsClient.Dimensions {
		log.Warnf(
			"record embedding dimensions are %d, expected %d. migrating embedding column width to %d. "+
				"this drops existing embedding vectors; records must be re-embedded",
			width,
			cfg.EmbeddingsClient.Dimensions,
			cfg.EmbeddingsClient.Dimensions,
		)
		err := migrateEmbeddingDims(ctx, db, cfg.EmbeddingsClient.Dimensions)
		if err != nil {
			return fmt.Errorf("error migrating embedding dimensions: %w", err)
		}
	}
	return nil
}

// getEmbeddingColumnWidth returns the width of the embedding column in the provided table.
func getEmbeddingColumnWidth(ctx context.Context, tableName string, db *bun.DB) (int, error) {
	var width int
	err := db.NewSelect().
		Table("pg_attribute").
		ColumnExpr("atttypmod"). // vector width is stored in atttypmod
		Where("attrelid = ?::regclass", tableName).
		Where("attname = 'embedding'").
		Scan(ctx, &width)
	if err != nil {
		return 0, fmt.Errorf("error getting embedding column width: %w", err)
	}
	return width, nil
}

// migrateEmbeddingDims drops the old embedding column and creates a new one with the
// correct dimensions. Existing vectors are lost and must be regenerated under
// the new model version; mixing vectors across model versions is never valid.
func migrateEmbeddingDims(
	ctx context.Context,
	db *bun.DB,
	dimensions int,
) error {
	columnQuery := `DO $$
BEGIN
    IF EXISTS (
        SELECT 1
        FROM   information_schema.columns
        WHERE  table_name = 'record_embedding'
        AND    column_name = 'embedding'
    ) THEN
        ALTER TABLE record_embedding DROP COLUMN embedding;
    END IF;
END $$;`

	_, err := db.ExecContext(ctx, columnQuery)
	if err != nil {
		return fmt.Errorf("error dropping column embedding: %w", err)
	}
	_, err = db.NewAddColumn().
		Model((*RecordEmbeddingSchema)(nil)).
		ColumnExpr(fmt.Sprintf("embedding vector(%d)", dimensions)).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("error adding column embedding: %w", err)
	}

	// the ivfflat index was dropped with the column
	if err := createIVFFlatIndex(ctx, db, "record_embedding", "embedding"); err != nil {
		return fmt.Errorf("error recreating ivfflat index: %w", err)
	}

	return nil
}
