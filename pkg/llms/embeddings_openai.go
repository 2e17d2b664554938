package llms

import (
	"context"
	"fmt"

	"github.com/smarthealth/medquery/config"
	"github.com/smarthealth/medquery/pkg/models"
	"github.com/tmc/langchaingo/llms/openai"
)

var _ models.EmbeddingsClient = &OpenAIEmbeddingsClient{}

func NewOpenAIEmbeddingsClient(ctx context.Context, cfg *config.Config) (*OpenAIEmbeddingsClient, error) {
	client := &OpenAIEmbeddingsClient{}
	err := client.Init(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return client, nil
}

type OpenAIEmbeddingsClient struct {
	client        *openai.Chat
	dimensions    int
	maxInputChars int
}

func (c *OpenAIEmbeddingsClient) Init(_ context.Context, cfg *config.Config) error {
	options, err := c.configureClient(cfg)
	if err != nil {
		return err
	}

	// Create a new client instance with options.
	// Even if it will just be used for embeddings,
	// it uses the same langchain openai chat client builder
	client, err := openai.NewChat(options...)
	if err != nil {
		return err
	}

	c.client = client
	c.dimensions = cfg.EmbeddingsClient.Dimensions
	c.maxInputChars = cfg.EmbeddingsClient.MaxInputChars

	return nil
}

// EmbedTexts embeds the given texts. Input exceeding the configured maximum
// length is rejected before any API call is made.
func (c *OpenAIEmbeddingsClient) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	for i, text := range texts {
		if c.maxInputChars > 0 && len(text) > c.maxInputChars {
			return nil, fmt.Errorf(
				"text %d is %d chars, max is %d: %w",
				i, len(text), c.maxInputChars, models.ErrInputTooLarge,
			)
		}
	}

	embeddings, err := EmbedTextsWithOpenAIClient(ctx, texts, c.client, EmbeddingsClientType)
	if err != nil {
		return nil, err
	}

	// Vectors are all-or-nothing: a width mismatch means the configured
	// dimensions don't match the embedding model and must not reach the index.
	for _, embedding := range embeddings {
		if c.dimensions > 0 && len(embedding) != c.dimensions {
			return nil, NewEmbeddingsClientError(
				fmt.Sprintf(
					"embedding width %d does not match configured dimensions %d",
					len(embedding), c.dimensions,
				), nil,
			)
		}
	}

	return embeddings, nil
}

func getValidOpenAIModel() string {
	for k := range ValidOpenAILLMs {
		return k
	}
	return "gpt-3.5-turbo"
}

func (c *OpenAIEmbeddingsClient) configureClient(cfg *config.Config) ([]openai.Option, error) {
	// Retrieve the OpenAIAPIKey from configuration
	apiKey := GetOpenAIAPIKey(cfg, EmbeddingsClientType)

	// Even if it will only be used for embeddings, we should pass a valid openai llm model
	// to avoid any errors
	validOpenaiLLMModel := getValidOpenAIModel()

	options := GetBaseOpenAIClientOptions(apiKey, validOpenaiLLMModel)

	options = ConfigureOpenAIClientOptions(options, cfg, EmbeddingsClientType)

	return options, nil
}
