package models

import (
	"github.com/smarthealth/medquery/config"
)

// AppState is a struct that holds the state of the application
// Use cmd.NewAppState to create a new instance
type AppState struct {
	LLMClient        LLM
	EmbeddingsClient EmbeddingsClient
	RecordIndex      RecordIndex
	PatientStore     PatientStore
	AuditStore       AuditStore
	Config           *config.Config
}
