package models

import (
	"time"

	"github.com/google/uuid"
)

// RecordKind identifies the clinical source a record was indexed from.
type RecordKind string

const (
	RecordKindQuestion       RecordKind = "question"
	RecordKindMedicalSummary RecordKind = "medical_summary"
	RecordKindAppointment    RecordKind = "appointment"
	RecordKindDiagnosis      RecordKind = "diagnosis"
	RecordKindPrescription   RecordKind = "prescription"
)

// DefaultRecordKinds are the kinds searched when the retrieval config does
// not name an explicit subset.
var DefaultRecordKinds = []RecordKind{
	RecordKindMedicalSummary,
	RecordKindAppointment,
	RecordKindDiagnosis,
	RecordKindPrescription,
	RecordKindQuestion,
}

// IndexedRecord is a single entry in the record index: the source text of a
// clinical record alongside its embedding and its owning patient. Records are
// append-only; only the embedding may be replaced after creation, e.g. when
// re-embedding under a new model version.
type IndexedRecord struct {
	UUID       uuid.UUID  `json:"uuid"`
	Kind       RecordKind `json:"kind"`
	PatientID  string     `json:"patient_id"`
	SourceText string     `json:"source_text"`
	Embedding  []float32  `json:"embedding,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// RetrievalHit is a single scored result of a record index search.
// Transient; produced per query and never persisted.
type RetrievalHit struct {
	Record IndexedRecord `json:"record"`
	// Dist is the cosine distance to the query vector. Lower is more similar.
	Dist float64 `json:"dist"`
	Rank int     `json:"rank"`
}

// ScopeFilter constrains a search to the records the caller is authorized to
// see. It is applied inside the storage query itself, never as a post-filter.
type ScopeFilter struct {
	PatientID string       `json:"patient_id"`
	Kinds     []RecordKind `json:"kinds,omitempty"`
}

// SearchQuery is the input to a record index search.
type SearchQuery struct {
	Embedding []float32   `json:"embedding"`
	Scope     ScopeFilter `json:"scope"`
	// Limit is the global k across all kinds in scope.
	Limit int `json:"limit"`
	// MaxDistance is a hard cosine distance cutoff. Hits further away are
	// excluded even if fewer than Limit results remain.
	MaxDistance float64 `json:"max_distance"`
}
