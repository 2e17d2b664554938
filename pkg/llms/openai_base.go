package llms

import (
	"context"
	"time"

	"github.com/smarthealth/medquery/config"
	"github.com/tmc/langchaingo/llms/openai"
)

const OpenAIAPITimeout = 90 * time.Second
const MaxOpenAIAPIRequestAttempts = 5

const OpenAIAPIKeyNotSetError = "MEDQUERY_OPENAI_API_KEY is not set"                      //nolint:gosec
const EmbeddingsOpenAIAPIKeyNotSetError = "MEDQUERY_EMBEDDINGS_OPENAI_API_KEY is not set" //nolint:gosec

type ClientType string

const (
	EmbeddingsClientType ClientType = "embeddings"
	LLMClientType        ClientType = "llm"
)

func NewOpenAIChatClient(options ...openai.Option) (*openai.Chat, error) {
	client, err := openai.NewChat(options...)
	if err != nil {
		return nil, err
	}
	return client, nil
}

func GetOpenAIAPIKey(cfg *config.Config, clientType ClientType) string {
	var apiKey string

	if clientType == EmbeddingsClientType {
		apiKey = cfg.EmbeddingsClient.OpenAIAPIKey
		// If the key is not set, log a fatal error and exit
		if apiKey == "" {
			log.Fatal(EmbeddingsOpenAIAPIKeyNotSetError)
		}
	} else {
		apiKey = cfg.LLM.OpenAIAPIKey
		if apiKey == "" {
			log.Fatal(OpenAIAPIKeyNotSetError)
		}
	}
	return apiKey
}

// EmbedTextsWithOpenAIClient embeds texts with a bounded timeout. All texts
// are embedded or none are.
func EmbedTextsWithOpenAIClient(
	ctx context.Context,
	texts []string,
	openAIClient *openai.Chat,
	clientType ClientType,
) ([][]float32, error) {
	// If the Client is not initialized, return an error
	if openAIClient == nil {
		if clientType == EmbeddingsClientType {
			return nil, NewEmbeddingsClientError(InvalidEmbeddingsClientError, nil)
		}
		return nil, NewLLMError(InvalidLLMModelError, nil)
	}

	thisCtx, cancel := context.WithTimeout(ctx, OpenAIAPITimeout)
	defer cancel()

	embeddings, err := openAIClient.CreateEmbedding(thisCtx, texts)
	if err != nil {
		message := "error while creating embedding"
		if clientType == EmbeddingsClientType {
			return nil, NewEmbeddingsClientError(message, err)
		}
		return nil, NewLLMError(message, err)
	}

	return embeddings, nil
}

func GetBaseOpenAIClientOptions(apiKey, validModel string) []openai.Option {
	retryableHTTPClient := NewRetryableHTTPClient(MaxOpenAIAPIRequestAttempts, OpenAIAPITimeout)

	options := make([]openai.Option, 0)
	options = append(
		options,
		openai.WithHTTPClient(retryableHTTPClient.StandardClient()),
		openai.WithModel(validModel),
		openai.WithToken(apiKey),
	)

	return options
}

func ConfigureOpenAIClientOptions(
	options []openai.Option,
	cfg *config.Config,
	clientType ClientType,
) []openai.Option {
	var openAIEndpoint string
	var openAIOrgID string

	if clientType == EmbeddingsClientType {
		openAIEndpoint = cfg.EmbeddingsClient.OpenAIEndpoint
		openAIOrgID = cfg.EmbeddingsClient.OpenAIOrgID
	} else {
		openAIEndpoint = cfg.LLM.OpenAIEndpoint
		openAIOrgID = cfg.LLM.OpenAIOrgID
	}

	if openAIEndpoint != "" {
		options = append(options, openai.WithBaseURL(openAIEndpoint))
	}

	if openAIOrgID != "" {
		options = append(options, openai.WithOrganization(openAIOrgID))
	}

	return options
}
