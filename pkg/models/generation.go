package models

import (
	"time"

	"github.com/google/uuid"
)

// GenerationParams bound a single completion call.
type GenerationParams struct {
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
	Timeout     time.Duration `json:"timeout"`
	MaxAttempts uint          `json:"max_attempts"`
}

type GenerationStatus string

const (
	GenerationStatusSuccess GenerationStatus = "success"
	GenerationStatusFailed  GenerationStatus = "failed"
)

// GenerationFailureKind distinguishes transient exhaustion from terminal
// request failures.
type GenerationFailureKind string

const (
	GenerationFailureUnavailable  GenerationFailureKind = "unavailable"
	GenerationFailureNonRetryable GenerationFailureKind = "non_retryable"
)

// GenerationResult is the outcome of one generation call. A model that could
// not answer from the supplied context is a Success with Insufficient set:
// absence of an answer is a domain outcome, not a system error.
type GenerationResult struct {
	Status GenerationStatus `json:"status"`
	Answer string           `json:"answer,omitempty"`
	// CitedRecordUUIDs are the context entries the answer was grounded in.
	CitedRecordUUIDs []uuid.UUID `json:"cited_record_uuids,omitempty"`
	// Insufficient is true when the supplied context did not contain enough
	// information to answer.
	Insufficient   bool                  `json:"insufficient,omitempty"`
	FailureKind    GenerationFailureKind `json:"failure_kind,omitempty"`
	FailureMessage string                `json:"failure_message,omitempty"`
}

func NewGenerationFailure(kind GenerationFailureKind, message string) *GenerationResult {
	return &GenerationResult{
		Status:         GenerationStatusFailed,
		FailureKind:    kind,
		FailureMessage: message,
	}
}
