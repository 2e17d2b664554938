package config

import (
	"strings"

	"github.com/smarthealth/medquery/internal"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// We're bootstrapping so avoid any imports from other packages
var log = logrus.New()

// EnvVars maps config keys to environment variables that hold secrets.
// These are always loaded from ENV, never from the config file.
var EnvVars = map[string]string{
	"llm.openai_api_key":        "MEDQUERY_OPENAI_API_KEY",
	"llm.anthropic_api_key":     "MEDQUERY_ANTHROPIC_API_KEY",
	"embeddings.openai_api_key": "MEDQUERY_EMBEDDINGS_OPENAI_API_KEY",
	"auth.secret":               "MEDQUERY_AUTH_SECRET",
}

// LoadConfig loads the config file and ENV variables into a Config struct
func LoadConfig(configFile string) (*Config, error) {
	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	viper.SetConfigType("yaml")

	viper.SetEnvPrefix("MEDQUERY")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		return nil, err
	}

	// Environment variables take precedence over config file
	loadDotEnv()

	for key, envVar := range EnvVars {
		if err := viper.BindEnv(key, envVar); err != nil {
			log.Fatalf("Error binding environment variable: %s", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	applyDefaults(&cfg)

	return &cfg, nil
}

// applyDefaults fills in settings that must never be zero-valued.
func applyDefaults(cfg *Config) {
	if cfg.EmbeddingsClient.Dimensions == 0 {
		cfg.EmbeddingsClient.Dimensions = 1536
	}
	if cfg.EmbeddingsClient.MaxInputChars == 0 {
		cfg.EmbeddingsClient.MaxInputChars = 32_768
	}
	if cfg.Retrieval.TopK == 0 {
		cfg.Retrieval.TopK = 15
	}
	if cfg.Retrieval.MaxDistance == 0 {
		// Equivalent to a minimum cosine similarity of 0.3
		cfg.Retrieval.MaxDistance = 0.7
	}
	if cfg.Context.MaxTokens == 0 {
		cfg.Context.MaxTokens = 3000
	}
	if cfg.LLM.TimeoutSeconds == 0 {
		cfg.LLM.TimeoutSeconds = 60
	}
	if cfg.LLM.MaxAttempts == 0 {
		cfg.LLM.MaxAttempts = 3
	}
	if cfg.LLM.MaxTokens == 0 {
		cfg.LLM.MaxTokens = 1024
	}
}

// loadDotEnv loads environment variables from .env file
func loadDotEnv() {
	err := godotenv.Load()
	if err != nil {
		log.Warn(".env file not found or unable to load")
	}
}

// SetLogLevel sets the log level based on the config file. Defaults to INFO if not set or invalid
func SetLogLevel(cfg *Config) {
	level, err := logrus.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	internal.SetLogLevel(level)
	log.Info("Log level set to: ", level)
}
