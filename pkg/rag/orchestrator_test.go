package rag

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smarthealth/medquery/pkg/llms"
	"github.com/smarthealth/medquery/pkg/models"
)

var testGenerationParams = models.GenerationParams{
	Temperature: 0.0,
	MaxTokens:   256,
	Timeout:     5 * time.Second,
	MaxAttempts: 3,
}

func makeAssembledContext(entryCount int) *models.AssembledContext {
	assembled := &models.AssembledContext{}
	for i := 0; i < entryCount; i++ {
		assembled.Entries = append(assembled.Entries, models.ContextEntry{
			RecordUUID:    uuid.New(),
			Kind:          models.RecordKindDiagnosis,
			FormattedText: fmt.Sprintf("diagnosis (2023-01-0%d): condition %d", i+1, i+1),
			RelevanceRank: i + 1,
			TokenCount:    10,
		})
		assembled.TotalTokens += 10
	}
	return assembled
}

func TestGenerate(t *testing.T) {
	assembled := makeAssembledContext(2)
	cited := assembled.Entries[0].RecordUUID

	llmClient := &fakeLLM{
		callFn: func(_ int, prompt string) (string, error) {
			assert.Contains(t, prompt, "What conditions does the patient have?")
			assert.Contains(t, prompt, assembled.Entries[0].RecordUUID.String())
			return fmt.Sprintf(
				"The patient has condition 1 [record: %s].", cited,
			), nil
		},
	}
	orchestrator := NewGenerationOrchestrator(llmClient, "")

	result := orchestrator.Generate(
		context.Background(),
		"What conditions does the patient have?",
		assembled,
		testGenerationParams,
	)

	assert.Equal(t, models.GenerationStatusSuccess, result.Status)
	assert.False(t, result.Insufficient)
	assert.Contains(t, result.Answer, "condition 1")
	require.Len(t, result.CitedRecordUUIDs, 1)
	assert.Equal(t, cited, result.CitedRecordUUIDs[0])
}

func TestGenerate_EmptyContextShortCircuits(t *testing.T) {
	llmClient := &fakeLLM{
		callFn: func(_ int, _ string) (string, error) {
			return "should never be called", nil
		},
	}
	orchestrator := NewGenerationOrchestrator(llmClient, "")

	result := orchestrator.Generate(
		context.Background(),
		"What conditions does the patient have?",
		&models.AssembledContext{},
		testGenerationParams,
	)

	assert.Equal(t, models.GenerationStatusSuccess, result.Status)
	assert.True(t, result.Insufficient)
	assert.Equal(t, InsufficientInformationAnswer, result.Answer)
	assert.Zero(t, llmClient.calls())
}

func TestGenerate_InsufficiencyMarkerIsSuccess(t *testing.T) {
	llmClient := &fakeLLM{
		callFn: func(_ int, _ string) (string, error) {
			return InsufficientInformationMarker, nil
		},
	}
	orchestrator := NewGenerationOrchestrator(llmClient, "")

	result := orchestrator.Generate(
		context.Background(),
		"Any known allergies?",
		makeAssembledContext(1),
		testGenerationParams,
	)

	assert.Equal(t, models.GenerationStatusSuccess, result.Status)
	assert.True(t, result.Insufficient)
	assert.Empty(t, result.CitedRecordUUIDs)
}

func TestGenerate_InsufficiencyPhraseIsSuccess(t *testing.T) {
	llmClient := &fakeLLM{
		callFn: func(_ int, _ string) (string, error) {
			return "There is not enough information in the records to say.", nil
		},
	}
	orchestrator := NewGenerationOrchestrator(llmClient, "")

	result := orchestrator.Generate(
		context.Background(),
		"Any known allergies?",
		makeAssembledContext(1),
		testGenerationParams,
	)

	assert.Equal(t, models.GenerationStatusSuccess, result.Status)
	assert.True(t, result.Insufficient)
}

func TestGenerate_RetriesTransientFailures(t *testing.T) {
	llmClient := &fakeLLM{
		callFn: func(attempt int, _ string) (string, error) {
			if attempt < 3 {
				return "", llms.NewLLMError("rate limited", nil)
			}
			return "The patient takes metformin.", nil
		},
	}
	orchestrator := NewGenerationOrchestrator(llmClient, "")

	result := orchestrator.Generate(
		context.Background(),
		"What medication does the patient take?",
		makeAssembledContext(1),
		testGenerationParams,
	)

	assert.Equal(t, models.GenerationStatusSuccess, result.Status)
	assert.Equal(t, 3, llmClient.calls())
}

func TestGenerate_ExhaustedRetriesIsUnavailable(t *testing.T) {
	llmClient := &fakeLLM{
		callFn: func(_ int, _ string) (string, error) {
			return "", llms.NewLLMError("rate limited", nil)
		},
	}
	orchestrator := NewGenerationOrchestrator(llmClient, "")

	result := orchestrator.Generate(
		context.Background(),
		"What medication does the patient take?",
		makeAssembledContext(1),
		testGenerationParams,
	)

	assert.Equal(t, models.GenerationStatusFailed, result.Status)
	assert.Equal(t, models.GenerationFailureUnavailable, result.FailureKind)
	assert.Equal(t, 3, llmClient.calls())
}

func TestGenerate_NonRetryableFailsImmediately(t *testing.T) {
	llmClient := &fakeLLM{
		callFn: func(_ int, _ string) (string, error) {
			return "", llms.NewLLMError("bad request", llms.ErrInvalidRequest)
		},
	}
	orchestrator := NewGenerationOrchestrator(llmClient, "")

	result := orchestrator.Generate(
		context.Background(),
		"What medication does the patient take?",
		makeAssembledContext(1),
		testGenerationParams,
	)

	assert.Equal(t, models.GenerationStatusFailed, result.Status)
	assert.Equal(t, models.GenerationFailureNonRetryable, result.FailureKind)
	assert.Equal(t, 1, llmClient.calls())
}

func TestGenerate_EmptyCompletionRetried(t *testing.T) {
	llmClient := &fakeLLM{
		callFn: func(attempt int, _ string) (string, error) {
			if attempt == 1 {
				return "   ", nil
			}
			return "The patient takes metformin.", nil
		},
	}
	orchestrator := NewGenerationOrchestrator(llmClient, "")

	result := orchestrator.Generate(
		context.Background(),
		"What medication does the patient take?",
		makeAssembledContext(1),
		testGenerationParams,
	)

	assert.Equal(t, models.GenerationStatusSuccess, result.Status)
	assert.Equal(t, 2, llmClient.calls())
}

func TestGenerate_InventedCitationsDropped(t *testing.T) {
	assembled := makeAssembledContext(1)
	llmClient := &fakeLLM{
		callFn: func(_ int, _ string) (string, error) {
			return fmt.Sprintf(
				"Condition 1 [record: %s] and something else [record: %s].",
				assembled.Entries[0].RecordUUID, uuid.New(),
			), nil
		},
	}
	orchestrator := NewGenerationOrchestrator(llmClient, "")

	result := orchestrator.Generate(
		context.Background(),
		"What conditions does the patient have?",
		assembled,
		testGenerationParams,
	)

	require.Len(t, result.CitedRecordUUIDs, 1)
	assert.Equal(t, assembled.Entries[0].RecordUUID, result.CitedRecordUUIDs[0])
}
