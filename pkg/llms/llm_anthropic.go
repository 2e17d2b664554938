package llms

import (
	"context"
	"time"

	"github.com/tmc/langchaingo/llms/anthropic"

	"github.com/tmc/langchaingo/llms"

	"github.com/smarthealth/medquery/config"
	"github.com/smarthealth/medquery/pkg/models"
)

const AnthropicAPITimeout = 30 * time.Second
const AnthropicAPIKeyNotSetError = "MEDQUERY_ANTHROPIC_API_KEY is not set" //nolint:gosec

var _ models.LLM = &AnthropicLLM{}

func NewAnthropicLLM(ctx context.Context, cfg *config.Config) (*AnthropicLLM, error) {
	zllm := &AnthropicLLM{}
	err := zllm.Init(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return zllm, nil
}

type AnthropicLLM struct {
	client *anthropic.LLM
}

func (zllm *AnthropicLLM) Init(_ context.Context, cfg *config.Config) error {
	options, err := zllm.configureClient(cfg)
	if err != nil {
		return err
	}

	// Create a new client instance with options
	llm, err := anthropic.New(options...)
	if err != nil {
		return err
	}
	zllm.client = llm

	return nil
}

func (zllm *AnthropicLLM) Call(ctx context.Context,
	prompt string,
	options ...llms.CallOption,
) (string, error) {
	// If the LLM is not initialized, return an error
	if zllm.client == nil {
		return "", NewLLMError(InvalidLLMModelError, nil)
	}

	if len(options) == 0 {
		options = append(options, llms.WithTemperature(DefaultTemperature))
	}

	thisCtx, cancel := context.WithTimeout(ctx, AnthropicAPITimeout)
	defer cancel()

	prompt = "Human: " + prompt + "\nAssistant:"

	completion, err := zllm.client.Call(thisCtx, prompt, options...)
	if err != nil {
		return "", classifyCompletionError(err)
	}

	return completion, nil
}

// GetTokenCount returns the number of tokens in the text.
// Return 0 for now, since we don't have a token count function for Claude
// models; the assembler falls back to a character estimate.
func (zllm *AnthropicLLM) GetTokenCount(_ string) (int, error) {
	return 0, nil
}

func (zllm *AnthropicLLM) configureClient(cfg *config.Config) ([]anthropic.Option, error) {
	apiKey := cfg.LLM.AnthropicAPIKey
	// If the key is not set, log a fatal error and exit
	if apiKey == "" {
		log.Fatal(AnthropicAPIKeyNotSetError)
	}

	options := make([]anthropic.Option, 0)
	options = append(
		options,
		anthropic.WithModel(cfg.LLM.Model),
		anthropic.WithToken(apiKey),
	)

	return options, nil
}
