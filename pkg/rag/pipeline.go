package rag

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/smarthealth/medquery/config"
	"github.com/smarthealth/medquery/pkg/models"
)

// auditWriteTimeout bounds the best-effort audit write that runs after the
// caller's context may already be canceled.
const auditWriteTimeout = 5 * time.Second

// QueryPipeline runs a single patient question end to end: resolve and
// authorize the patient, embed the question, retrieve in scope, assemble
// context, generate a grounded answer, and audit the invocation.
type QueryPipeline struct {
	cfg          *config.Config
	embedder     models.EmbeddingsClient
	index        models.RecordIndex
	patients     models.PatientStore
	audit        models.AuditStore
	orchestrator *GenerationOrchestrator
	assembler    *ContextAssembler
}

func NewQueryPipeline(appState *models.AppState) *QueryPipeline {
	var counter models.TokenCounter
	if appState.LLMClient != nil {
		counter = appState.LLMClient
	}
	return &QueryPipeline{
		cfg:      appState.Config,
		embedder: appState.EmbeddingsClient,
		index:    appState.RecordIndex,
		patients: appState.PatientStore,
		audit:    appState.AuditStore,
		orchestrator: NewGenerationOrchestrator(
			appState.LLMClient,
			appState.Config.CustomPrompts.GenerationPrompt,
		),
		assembler: NewContextAssembler(counter),
	}
}

// Ask answers a clinical question about a single patient.
//
// Caller faults return an error with a nil outcome: NotFoundError when no
// patient matches the lookup, AccessDeniedError when the identity may not
// query the patient, BadRequestError for malformed input. The access check
// runs before any external call is made, so an unauthorized question never
// reaches the embedding provider.
//
// System failures return a non-nil outcome with Status failed and a nil
// error: the pipeline ran and the outcome, including the state reached, is
// reported and audited. Exactly one audit entry is written per invocation;
// an audit write failure is logged but never masks the outcome.
func (p *QueryPipeline) Ask(
	ctx context.Context,
	identity *models.Identity,
	lookup *models.PatientLookup,
	question string,
) (*models.QueryOutcome, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, models.NewBadRequestError("question cannot be empty")
	}

	start := time.Now()
	outcome := &models.QueryOutcome{
		State: models.PipelineStateReceived,
	}
	entry := &models.AuditEntry{
		UserID:       identity.UserID,
		QuestionText: question,
		Outcome:      outcome,
	}

	patient, err := p.patients.Get(ctx, lookup)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) || errors.Is(err, models.ErrBadRequest) {
			return nil, p.failCaller(ctx, entry, start, err)
		}
		return p.fail(ctx, entry, start, fmt.Errorf("patient lookup failed: %w", err)), nil
	}
	if !identity.CanAccess(patient.PatientID) {
		// Audit the denial, then refuse. The embedding provider is never
		// called for a question the caller may not ask.
		entry.PatientID = patient.PatientID
		deniedErr := models.NewAccessDeniedError("patient " + patient.PatientID)
		return nil, p.failCaller(ctx, entry, start, deniedErr)
	}
	entry.PatientID = patient.PatientID
	outcome.Patient = patient
	outcome.State = models.PipelineStateResolved

	embeddings, err := p.embedder.EmbedTexts(ctx, []string{question})
	if err != nil {
		if errors.Is(err, models.ErrInputTooLarge) {
			return nil, p.failCaller(ctx, entry, start, models.NewBadRequestError(err.Error()))
		}
		return p.fail(ctx, entry, start, fmt.Errorf("failed to embed question: %w", err)), nil
	}
	if len(embeddings) != 1 {
		return p.fail(ctx, entry, start,
			fmt.Errorf("expected 1 embedding, got %d", len(embeddings))), nil
	}
	questionEmbedding := embeddings[0]
	entry.QuestionEmbedding = questionEmbedding
	outcome.State = models.PipelineStateEmbedded

	hits, err := p.index.Search(ctx, &models.SearchQuery{
		Embedding: questionEmbedding,
		Scope: models.ScopeFilter{
			PatientID: patient.PatientID,
			Kinds:     p.retrievalKinds(),
		},
		Limit:       p.cfg.Retrieval.TopK,
		MaxDistance: p.cfg.Retrieval.MaxDistance,
	})
	if err != nil {
		return p.fail(ctx, entry, start, fmt.Errorf("record search failed: %w", err)), nil
	}
	outcome.RecordsRetrieved = len(hits)
	outcome.State = models.PipelineStateRetrieved

	assembled, err := p.assembler.Assemble(hits, p.cfg.Context.MaxTokens)
	if err != nil {
		return p.fail(ctx, entry, start, fmt.Errorf("context assembly failed: %w", err)), nil
	}
	outcome.ContextTokens = assembled.TotalTokens
	outcome.State = models.PipelineStateContextBuilt

	result := p.orchestrator.Generate(ctx, question, assembled, models.GenerationParams{
		Temperature: p.cfg.LLM.Temperature,
		MaxTokens:   p.cfg.LLM.MaxTokens,
		Timeout:     time.Duration(p.cfg.LLM.TimeoutSeconds) * time.Second,
		MaxAttempts: p.cfg.LLM.MaxAttempts,
	})
	if result.Status == models.GenerationStatusFailed {
		return p.fail(ctx, entry, start,
			fmt.Errorf("generation failed (%s): %s", result.FailureKind, result.FailureMessage)), nil
	}
	outcome.State = models.PipelineStateGenerated
	outcome.Answer = result.Answer
	outcome.CitedRecordUUIDs = result.CitedRecordUUIDs
	if result.Insufficient {
		outcome.Status = models.QueryStatusNoData
	} else {
		outcome.Status = models.QueryStatusSuccess
		p.indexQuestion(ctx, patient.PatientID, question, result.Answer, questionEmbedding)
	}

	// Finalize before the audit write so the persisted row carries the
	// terminal state and timing, not a snapshot of a half-built outcome.
	outcome.State = models.PipelineStateDone
	outcome.Duration = time.Since(start)
	p.writeAudit(ctx, entry)

	return outcome, nil
}

// failCaller audits a caller-fault termination (unknown patient, denied
// access, oversized input) and returns the error for the caller. Caller
// faults are still invocations that reached the service, so they get the
// same one audit entry every terminal path gets.
func (p *QueryPipeline) failCaller(
	ctx context.Context,
	entry *models.AuditEntry,
	start time.Time,
	err error,
) error {
	entry.Outcome.Status = models.QueryStatusFailed
	entry.Outcome.State = models.PipelineStateFailed
	entry.Outcome.FailureMessage = err.Error()
	entry.Outcome.Duration = time.Since(start)
	p.writeAudit(ctx, entry)
	return err
}

// fail finalizes a system-failure outcome, audits it, and returns it.
func (p *QueryPipeline) fail(
	ctx context.Context,
	entry *models.AuditEntry,
	start time.Time,
	err error,
) *models.QueryOutcome {
	log.Errorf("query pipeline failed at state %s: %s", entry.Outcome.State, err)
	entry.Outcome.Status = models.QueryStatusFailed
	entry.Outcome.State = models.PipelineStateFailed
	entry.Outcome.FailureMessage = err.Error()
	entry.Outcome.Duration = time.Since(start)
	p.writeAudit(ctx, entry)
	return entry.Outcome
}

// writeAudit persists the audit entry for this invocation. The write runs on
// a detached context so a caller hangup cannot suppress it, and a write
// failure is logged but never propagated.
func (p *QueryPipeline) writeAudit(ctx context.Context, entry *models.AuditEntry) {
	auditCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), auditWriteTimeout)
	defer cancel()

	if err := p.audit.Create(auditCtx, entry); err != nil {
		log.Errorf("failed to write audit entry for user %s: %s", entry.UserID, err)
	}
}

// indexQuestion stores the answered question back into the index so similar
// followups can retrieve it. Best effort.
func (p *QueryPipeline) indexQuestion(
	ctx context.Context,
	patientID string,
	question string,
	answer string,
	embedding []float32,
) {
	err := p.index.Upsert(ctx, &models.IndexedRecord{
		Kind:       models.RecordKindQuestion,
		PatientID:  patientID,
		SourceText: fmt.Sprintf("Q: %s\nA: %s", question, answer),
		Embedding:  embedding,
	})
	if err != nil {
		log.Warnf("failed to index answered question for patient %s: %s", patientID, err)
	}
}

func (p *QueryPipeline) retrievalKinds() []models.RecordKind {
	if len(p.cfg.Retrieval.Kinds) == 0 {
		return models.DefaultRecordKinds
	}
	kinds := make([]models.RecordKind, len(p.cfg.Retrieval.Kinds))
	for i, kind := range p.cfg.Retrieval.Kinds {
		kinds[i] = models.RecordKind(kind)
	}
	return kinds
}
