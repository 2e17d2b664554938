package models

import (
	"context"

	"github.com/google/uuid"
)

// RecordIndex is a persisted vector similarity index over clinical records.
// Implementations must be safe for concurrent use; each search is a fresh,
// finite query.
//
// Implementations backed by a build-then-query structure (e.g. an ivfflat
// index) may not surface freshly upserted vectors until the index catches up.
// This eventual-consistency window is an accepted property of the store, not
// a correctness violation.
type RecordIndex interface {
	// Upsert inserts the record or replaces the embedding of an existing one.
	Upsert(ctx context.Context, record *IndexedRecord) error
	// Search returns at most query.Limit hits within query.Scope, ascending
	// by cosine distance with ties broken by most recent record first.
	// Returning zero hits is a valid, non-error outcome.
	Search(ctx context.Context, query *SearchQuery) ([]RetrievalHit, error)
	// GetRecord returns a record by UUID.
	GetRecord(ctx context.Context, recordUUID uuid.UUID) (*IndexedRecord, error)
	// PurgeDeleted hard deletes soft-deleted index rows.
	PurgeDeleted(ctx context.Context) error
}

// PatientStore resolves patients from their lookup key.
type PatientStore interface {
	// Get resolves a patient by identity document. Returns a NotFoundError
	// if no patient matches.
	Get(ctx context.Context, lookup *PatientLookup) (*Patient, error)
	// Create adds a patient. Used by fixtures and tests; patient management
	// proper lives outside this service.
	Create(ctx context.Context, patient *Patient) (*Patient, error)
}

// AuditStore is an append-only audit sink. Entries are never updated or
// deleted from this service.
type AuditStore interface {
	Create(ctx context.Context, entry *AuditEntry) error
}
