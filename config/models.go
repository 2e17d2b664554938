package config

// Config holds the configuration of the application
// Use cmd.NewConfig to create a new instance
type Config struct {
	LLM              LLM                    `mapstructure:"llm"`
	EmbeddingsClient EmbeddingsClient       `mapstructure:"embeddings"`
	Retrieval        RetrievalConfig        `mapstructure:"retrieval"`
	Context          ContextConfig          `mapstructure:"context"`
	Store            StoreConfig            `mapstructure:"store"`
	Server           ServerConfig           `mapstructure:"server"`
	Log              LogConfig              `mapstructure:"log"`
	Auth             AuthConfig             `mapstructure:"auth"`
	DataConfig       DataConfig             `mapstructure:"data"`
	CustomPrompts    CustomPromptsConfig    `mapstructure:"custom_prompts"`
}

type LLM struct {
	Service string `mapstructure:"service"`
	Model   string `mapstructure:"model"`
	// OpenAIAPIKey and AnthropicAPIKey are loaded from ENV not config file.
	OpenAIAPIKey    string  `mapstructure:"openai_api_key"`
	AnthropicAPIKey string  `mapstructure:"anthropic_api_key"`
	OpenAIEndpoint  string  `mapstructure:"openai_endpoint"`
	OpenAIOrgID     string  `mapstructure:"openai_org_id"`
	Temperature     float64 `mapstructure:"temperature"`
	MaxTokens       int     `mapstructure:"max_tokens"`
	// TimeoutSeconds bounds a single completion attempt.
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
	// MaxAttempts is the total number of completion attempts before the
	// generation is reported as unavailable.
	MaxAttempts uint `mapstructure:"max_attempts"`
}

type EmbeddingsClient struct {
	Service string `mapstructure:"service"`
	Model   string `mapstructure:"model"`
	// Dimensions must match the vector column width of the record index.
	Dimensions int `mapstructure:"dimensions"`
	// MaxInputChars rejects oversized input before any API call is made.
	MaxInputChars int `mapstructure:"max_input_chars"`
	// OpenAIAPIKey is loaded from ENV not config file.
	OpenAIAPIKey   string `mapstructure:"openai_api_key"`
	OpenAIEndpoint string `mapstructure:"openai_endpoint"`
	OpenAIOrgID    string `mapstructure:"openai_org_id"`
}

type RetrievalConfig struct {
	// TopK is the global result cap across all record kinds.
	TopK int `mapstructure:"top_k"`
	// MaxDistance is the cosine distance cutoff. Hits further away are
	// excluded even if fewer than TopK results remain.
	MaxDistance float64 `mapstructure:"max_distance"`
	// Kinds is the list of record kinds searched per question.
	Kinds []string `mapstructure:"kinds"`
}

type ContextConfig struct {
	// MaxTokens is the assembled context budget.
	MaxTokens int `mapstructure:"max_tokens"`
}

type StoreConfig struct {
	Type     string         `mapstructure:"type"`
	Postgres PostgresConfig `mapstructure:"postgres"`
}

type PostgresConfig struct {
	DSN string `mapstructure:"dsn"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type AuthConfig struct {
	// Secret is loaded from ENV not config file.
	Secret   string `mapstructure:"secret"`
	Required bool   `mapstructure:"required"`
}

type DataConfig struct {
	// PurgeEvery is the period between hard deletes of soft-deleted index
	// rows, in minutes. If set to 0, hard deletes are disabled.
	PurgeEvery int `mapstructure:"purge_every"`
}

type CustomPromptsConfig struct {
	// GenerationPrompt overrides the built-in grounded answer prompt.
	// It must retain the Context and Question template variables.
	GenerationPrompt string `mapstructure:"generation_prompt"`
}
