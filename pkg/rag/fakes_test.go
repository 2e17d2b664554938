package rag

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	llms2 "github.com/tmc/langchaingo/llms"

	"github.com/smarthealth/medquery/config"
	"github.com/smarthealth/medquery/pkg/models"
)

type fakeLLM struct {
	mu        sync.Mutex
	callCount int
	callFn    func(attempt int, prompt string) (string, error)
}

func (f *fakeLLM) Call(
	_ context.Context,
	prompt string,
	_ ...llms2.CallOption,
) (string, error) {
	f.mu.Lock()
	f.callCount++
	attempt := f.callCount
	f.mu.Unlock()
	return f.callFn(attempt, prompt)
}

func (f *fakeLLM) GetTokenCount(text string) (int, error) {
	return len(text) / charsPerTokenEstimate, nil
}

func (f *fakeLLM) Init(_ context.Context, _ *config.Config) error {
	return nil
}

func (f *fakeLLM) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.callCount
}

type fakeEmbedder struct {
	callCount int
	embedding []float32
	err       error
}

func (f *fakeEmbedder) EmbedTexts(
	_ context.Context,
	texts []string,
) ([][]float32, error) {
	f.callCount++
	if f.err != nil {
		return nil, f.err
	}
	embeddings := make([][]float32, len(texts))
	for i := range texts {
		embeddings[i] = f.embedding
	}
	return embeddings, nil
}

func (f *fakeEmbedder) Init(_ context.Context, _ *config.Config) error {
	return nil
}

type fakeRecordIndex struct {
	hits      []models.RetrievalHit
	searchErr error
	queries   []*models.SearchQuery
	upserts   []*models.IndexedRecord
}

func (f *fakeRecordIndex) Upsert(_ context.Context, record *models.IndexedRecord) error {
	f.upserts = append(f.upserts, record)
	return nil
}

func (f *fakeRecordIndex) Search(
	_ context.Context,
	query *models.SearchQuery,
) ([]models.RetrievalHit, error) {
	f.queries = append(f.queries, query)
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return f.hits, nil
}

func (f *fakeRecordIndex) GetRecord(
	_ context.Context,
	_ uuid.UUID,
) (*models.IndexedRecord, error) {
	return nil, models.NewNotFoundError("record")
}

func (f *fakeRecordIndex) PurgeDeleted(_ context.Context) error {
	return nil
}

type fakePatientStore struct {
	patient *models.Patient
	err     error
}

func (f *fakePatientStore) Get(
	_ context.Context,
	_ *models.PatientLookup,
) (*models.Patient, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.patient, nil
}

func (f *fakePatientStore) Create(
	_ context.Context,
	patient *models.Patient,
) (*models.Patient, error) {
	return patient, nil
}

type fakeAuditStore struct {
	entries   []*models.AuditEntry
	snapshots []map[string]interface{}
	err       error
}

// Create serializes the outcome the way the DAO does, so tests can assert
// on the payload as persisted rather than on fields mutated after the write.
func (f *fakeAuditStore) Create(_ context.Context, entry *models.AuditEntry) error {
	if f.err != nil {
		return f.err
	}
	blob, err := json.Marshal(entry.Outcome)
	if err != nil {
		return err
	}
	var snapshot map[string]interface{}
	if err := json.Unmarshal(blob, &snapshot); err != nil {
		return err
	}
	f.entries = append(f.entries, entry)
	f.snapshots = append(f.snapshots, snapshot)
	return nil
}
