package models

import (
	"time"

	"github.com/google/uuid"
)

// PipelineState tracks how far a query invocation progressed. The state
// reached is persisted with the audit entry for failure analysis.
type PipelineState string

const (
	PipelineStateReceived     PipelineState = "received"
	PipelineStateResolved     PipelineState = "resolved"
	PipelineStateEmbedded     PipelineState = "embedded"
	PipelineStateRetrieved    PipelineState = "retrieved"
	PipelineStateContextBuilt PipelineState = "context_built"
	PipelineStateGenerated    PipelineState = "generated"
	PipelineStateAudited      PipelineState = "audited"
	PipelineStateDone         PipelineState = "done"
	PipelineStateFailed       PipelineState = "failed"
)

type QueryStatus string

const (
	// QueryStatusSuccess: an answer grounded in retrieved records.
	QueryStatusSuccess QueryStatus = "success"
	// QueryStatusNoData: the pipeline ran to completion but no relevant
	// records were found. A valid outcome, not a failure.
	QueryStatusNoData QueryStatus = "no_data"
	// QueryStatusFailed: a genuine system failure.
	QueryStatusFailed QueryStatus = "failed"
)

// QueryRequest is the inbound question payload.
type QueryRequest struct {
	DocumentType   string `json:"document_type"   validate:"required"`
	DocumentNumber string `json:"document_number" validate:"required"`
	Question       string `json:"question"        validate:"required,min=3"`
}

// QueryOutcome is the pipeline's answer to the caller.
type QueryOutcome struct {
	Status           QueryStatus   `json:"status"`
	Answer           string        `json:"answer,omitempty"`
	CitedRecordUUIDs []uuid.UUID   `json:"cited_record_uuids,omitempty"`
	Patient          *Patient      `json:"patient,omitempty"`
	State            PipelineState `json:"state"`
	FailureMessage   string        `json:"failure_message,omitempty"`
	RecordsRetrieved int           `json:"records_retrieved"`
	ContextTokens    int           `json:"context_tokens"`
	Duration         time.Duration `json:"duration_ms"`
}
