package rag

import (
	"context"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/google/uuid"
	llms2 "github.com/tmc/langchaingo/llms"

	"github.com/smarthealth/medquery/internal"
	"github.com/smarthealth/medquery/pkg/llms"
	"github.com/smarthealth/medquery/pkg/models"
)

var log = internal.GetLogger()

const DefaultGenerationTimeout = 60 * time.Second
const DefaultGenerationAttempts = 3

// GenerationOrchestrator builds the grounded prompt, drives the completion
// call with retry/backoff, and validates the response.
type GenerationOrchestrator struct {
	llm models.LLM
	// promptTemplate defaults to generationPromptTemplate and may be
	// overridden via custom_prompts.generation_prompt.
	promptTemplate string
}

func NewGenerationOrchestrator(llm models.LLM, customPrompt string) *GenerationOrchestrator {
	promptTemplate := generationPromptTemplate
	if customPrompt != "" {
		promptTemplate = customPrompt
	}
	return &GenerationOrchestrator{
		llm:            llm,
		promptTemplate: promptTemplate,
	}
}

// Generate answers the question from the assembled context only.
//
// An empty context short-circuits to an explicit insufficient-information
// success without calling the model: the service never answers from prior
// knowledge. Transient completion failures are retried with exponential
// backoff and jitter; non-retryable failures surface immediately. A model
// that declines to answer from the context is a Success, not a Failure.
func (o *GenerationOrchestrator) Generate(
	ctx context.Context,
	question string,
	assembled *models.AssembledContext,
	params models.GenerationParams,
) *models.GenerationResult {
	if assembled == nil || assembled.Empty() {
		return &models.GenerationResult{
			Status:       models.GenerationStatusSuccess,
			Answer:       InsufficientInformationAnswer,
			Insufficient: true,
		}
	}

	prompt, err := o.buildPrompt(question, assembled)
	if err != nil {
		return models.NewGenerationFailure(
			models.GenerationFailureNonRetryable,
			"failed to build prompt: "+err.Error(),
		)
	}

	timeout := params.Timeout
	if timeout == 0 {
		timeout = DefaultGenerationTimeout
	}
	maxAttempts := params.MaxAttempts
	if maxAttempts == 0 {
		maxAttempts = DefaultGenerationAttempts
	}

	var answer string
	err = retry.Do(
		func() error {
			attemptCtx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			completion, err := o.llm.Call(
				attemptCtx,
				prompt,
				llms2.WithTemperature(params.Temperature),
				llms2.WithMaxTokens(params.MaxTokens),
			)
			if err != nil {
				return err
			}
			if strings.TrimSpace(completion) == "" {
				return llms.NewLLMError("empty completion response", nil)
			}
			answer = completion
			return nil
		},
		retry.Attempts(maxAttempts),
		retry.Context(ctx),
		retry.DelayType(retry.CombineDelay(retry.BackOffDelay, retry.RandomDelay)),
		retry.MaxJitter(500*time.Millisecond),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			return !llms.IsNonRetryable(err)
		}),
		retry.OnRetry(func(n uint, err error) {
			log.Warnf("retrying generation attempt #%d: %s", n+1, err)
		}),
	)
	if err != nil {
		if llms.IsNonRetryable(err) {
			return models.NewGenerationFailure(
				models.GenerationFailureNonRetryable, err.Error(),
			)
		}
		return models.NewGenerationFailure(
			models.GenerationFailureUnavailable, err.Error(),
		)
	}

	return o.validateResponse(answer, assembled)
}

func (o *GenerationOrchestrator) buildPrompt(
	question string,
	assembled *models.AssembledContext,
) (string, error) {
	entries := make([]promptEntry, len(assembled.Entries))
	for i, entry := range assembled.Entries {
		entries[i] = promptEntry{
			RecordUUID:    entry.RecordUUID.String(),
			Kind:          string(entry.Kind),
			FormattedText: entry.FormattedText,
		}
	}

	return internal.ParsePrompt(o.promptTemplate, generationPromptData{
		Entries:  entries,
		Question: question,
	})
}

// validateResponse maps the raw completion to a GenerationResult: the
// insufficiency protocol takes precedence, then citations are resolved
// against the supplied context entries.
func (o *GenerationOrchestrator) validateResponse(
	answer string,
	assembled *models.AssembledContext,
) *models.GenerationResult {
	if isInsufficiencyAnswer(answer) {
		return &models.GenerationResult{
			Status:       models.GenerationStatusSuccess,
			Answer:       InsufficientInformationAnswer,
			Insufficient: true,
		}
	}

	return &models.GenerationResult{
		Status:           models.GenerationStatusSuccess,
		Answer:           strings.TrimSpace(answer),
		CitedRecordUUIDs: extractCitations(answer, assembled),
	}
}

func isInsufficiencyAnswer(answer string) bool {
	if strings.Contains(answer, InsufficientInformationMarker) {
		return true
	}
	lowered := strings.ToLower(answer)
	for _, phrase := range insufficiencyPhrases {
		if strings.Contains(lowered, phrase) {
			return true
		}
	}
	return false
}

// extractCitations returns the context entries whose record ids appear in
// the answer. Ids the model invents that don't match a supplied entry are
// dropped.
func extractCitations(
	answer string,
	assembled *models.AssembledContext,
) []uuid.UUID {
	cited := make([]uuid.UUID, 0, len(assembled.Entries))
	for _, entry := range assembled.Entries {
		if strings.Contains(answer, entry.RecordUUID.String()) {
			cited = append(cited, entry.RecordUUID)
		}
	}
	return cited
}
