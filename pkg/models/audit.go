package models

import (
	"time"

	"github.com/google/uuid"
)

// AuditEntry records one completed pipeline invocation, success or terminal
// failure. Written exactly once per invocation, immutable once written, never
// deleted by this service.
type AuditEntry struct {
	UUID         uuid.UUID `json:"uuid"`
	UserID       string    `json:"user_id"`
	PatientID    string    `json:"patient_id,omitempty"`
	QuestionText string    `json:"question_text"`
	// QuestionEmbedding is empty when the pipeline failed before embedding.
	QuestionEmbedding []float32     `json:"question_embedding,omitempty"`
	Outcome           *QueryOutcome `json:"outcome"`
	CreatedAt         time.Time     `json:"created_at"`
}
