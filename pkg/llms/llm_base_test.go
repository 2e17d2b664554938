package llms

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smarthealth/medquery/config"
	"github.com/smarthealth/medquery/pkg/models"
)

func TestGetLLMModelName_ValidOpenAI(t *testing.T) {
	cfg := &config.Config{
		LLM: config.LLM{Service: "openai", Model: "gpt-3.5-turbo"},
	}

	model, err := GetLLMModelName(cfg)
	require.NoError(t, err)
	assert.Equal(t, "gpt-3.5-turbo", model)
}

func TestGetLLMModelName_ValidAnthropic(t *testing.T) {
	cfg := &config.Config{
		LLM: config.LLM{Service: "anthropic", Model: "claude-2"},
	}

	model, err := GetLLMModelName(cfg)
	require.NoError(t, err)
	assert.Equal(t, "claude-2", model)
}

func TestGetLLMModelName_Invalid(t *testing.T) {
	cfg := &config.Config{
		LLM: config.LLM{Service: "openai", Model: "not-a-model"},
	}

	_, err := GetLLMModelName(cfg)
	assert.Error(t, err)
}

func TestGetLLMModelName_CustomEndpointSkipsValidation(t *testing.T) {
	cfg := &config.Config{
		LLM: config.LLM{
			Service:        "openai",
			Model:          "local-model",
			OpenAIEndpoint: "http://localhost:8080",
		},
	}

	model, err := GetLLMModelName(cfg)
	require.NoError(t, err)
	assert.Equal(t, "local-model", model)
}

func TestIsNonRetryable(t *testing.T) {
	assert.True(t, IsNonRetryable(NewLLMError("bad request", ErrInvalidRequest)))
	assert.True(t, IsNonRetryable(models.ErrInputTooLarge))
	assert.False(t, IsNonRetryable(NewLLMError("rate limited", nil)))
	assert.False(t, IsNonRetryable(assert.AnError))
}

func TestClassifyCompletionError(t *testing.T) {
	authErr := errors.New(
		"API returned unexpected status code: 401 Incorrect API key provided",
	)
	classified := classifyCompletionError(authErr)
	assert.ErrorIs(t, classified, ErrInvalidRequest)
	assert.True(t, IsNonRetryable(classified))
	assert.Contains(t, classified.Error(), "401")
}

func TestClassifyCompletionError_TransientErrorsPassThrough(t *testing.T) {
	rateLimited := errors.New("API returned unexpected status code: 429 Rate limit reached")
	assert.Equal(t, rateLimited, classifyCompletionError(rateLimited))
	assert.False(t, IsNonRetryable(classifyCompletionError(rateLimited)))

	serverErr := errors.New("API returned unexpected status code: 500")
	assert.Equal(t, serverErr, classifyCompletionError(serverErr))
	assert.False(t, IsNonRetryable(classifyCompletionError(serverErr)))

	assert.NoError(t, classifyCompletionError(nil))
}

func TestRetryPolicy_NoRetryOnCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	shouldRetry, err := retryPolicy(ctx, nil, nil)
	assert.False(t, shouldRetry)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRetryPolicy_NoRetryOn400(t *testing.T) {
	resp := &http.Response{StatusCode: http.StatusBadRequest}

	shouldRetry, _ := retryPolicy(context.Background(), resp, nil)
	assert.False(t, shouldRetry)
}

func TestRetryPolicy_RetryOn500(t *testing.T) {
	resp := &http.Response{StatusCode: http.StatusInternalServerError}

	shouldRetry, _ := retryPolicy(context.Background(), resp, nil)
	assert.True(t, shouldRetry)
}

func TestEmbedTexts_RejectsOversizedInput(t *testing.T) {
	client := &OpenAIEmbeddingsClient{maxInputChars: 100}

	_, err := client.EmbedTexts(
		context.Background(),
		[]string{strings.Repeat("a", 101)},
	)
	assert.ErrorIs(t, err, models.ErrInputTooLarge)
}
