// Package config reads runtime settings from an optional YAML file, a local
// .env file and the process environment, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"triage-agent/internal/domain"
)

const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"

	BackendDynamoDB = "dynamodb"
	BackendPostgres = "postgres"
)

type Config struct {
	LLMProvider         string        `yaml:"llm_provider"`
	LLMModel            string        `yaml:"llm_model"`
	ParamPrefix         string        `yaml:"param_prefix"`
	KnowledgeBackend    string        `yaml:"knowledge_backend"`
	KnowledgeTable      string        `yaml:"knowledge_table"`
	DatabaseURL         string        `yaml:"database_url"`
	RetrievalTopK       int           `yaml:"retrieval_top_k"`
	CollaboratorTimeout time.Duration `yaml:"collaborator_timeout"`
	MaxMessageLength    int           `yaml:"max_message_length"`
	Port                int           `yaml:"port"`
	SessionIdleTTL      time.Duration `yaml:"session_idle_ttl"`
}

// Defaults returns the settings used when nothing overrides them.
func Defaults() Config {
	return Config{
		LLMProvider:         ProviderOpenAI,
		KnowledgeBackend:    BackendDynamoDB,
		RetrievalTopK:       3,
		CollaboratorTimeout: 20 * time.Second,
		MaxMessageLength:    2000,
		Port:                8080,
		SessionIdleTTL:      2 * time.Hour,
	}
}

// Load reads .env (if present), then CONFIG_FILE (if set), then environment
// overrides. It only parses; call Validate or ValidateKnowledge before use.
func Load() (Config, error) {
	// Missing .env is fine outside local development.
	_ = godotenv.Load()
	return load(os.Getenv)
}

func load(getenv func(string) string) (Config, error) {
	cfg := Defaults()
	if path := strings.TrimSpace(getenv("CONFIG_FILE")); path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	str := func(key string, dst *string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	str("LLM_PROVIDER", &cfg.LLMProvider)
	str("LLM_MODEL", &cfg.LLMModel)
	str("PARAM_PREFIX", &cfg.ParamPrefix)
	str("KNOWLEDGE_BACKEND", &cfg.KnowledgeBackend)
	str("KNOWLEDGE_TABLE", &cfg.KnowledgeTable)
	str("DATABASE_URL", &cfg.DatabaseURL)

	var errs []error
	errs = append(errs,
		envInt(getenv, "RETRIEVAL_TOP_K", &cfg.RetrievalTopK),
		envInt(getenv, "MAX_MESSAGE_LENGTH", &cfg.MaxMessageLength),
		envInt(getenv, "PORT", &cfg.Port),
		envDuration(getenv, "COLLABORATOR_TIMEOUT", &cfg.CollaboratorTimeout),
		envDuration(getenv, "SESSION_IDLE_TTL", &cfg.SessionIdleTTL),
	)
	if err := errors.Join(errs...); err != nil {
		return Config{}, configErr(err)
	}

	cfg.LLMProvider = strings.ToLower(cfg.LLMProvider)
	cfg.KnowledgeBackend = strings.ToLower(cfg.KnowledgeBackend)
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return configErr(fmt.Errorf("read %s: %w", path, err))
	}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return configErr(fmt.Errorf("parse %s: %w", path, err))
	}
	return nil
}

func envInt(getenv func(string) string, key string, dst *int) error {
	v := strings.TrimSpace(getenv(key))
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}

func envDuration(getenv func(string) string, key string, dst *time.Duration) error {
	v := strings.TrimSpace(getenv(key))
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = d
	return nil
}

// Validate checks everything the consultation service needs.
func (c Config) Validate() error {
	var errs []error
	switch c.LLMProvider {
	case ProviderOpenAI, ProviderGemini:
	default:
		errs = append(errs, fmt.Errorf("LLM_PROVIDER %q must be %s or %s", c.LLMProvider, ProviderOpenAI, ProviderGemini))
	}
	if strings.TrimSpace(c.ParamPrefix) == "" {
		errs = append(errs, errors.New("PARAM_PREFIX is required"))
	}
	if c.RetrievalTopK <= 0 {
		errs = append(errs, errors.New("RETRIEVAL_TOP_K must be positive"))
	}
	if c.MaxMessageLength <= 0 {
		errs = append(errs, errors.New("MAX_MESSAGE_LENGTH must be positive"))
	}
	if c.CollaboratorTimeout < 0 {
		errs = append(errs, errors.New("COLLABORATOR_TIMEOUT must not be negative"))
	}
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT %d out of range", c.Port))
	}
	if err := c.knowledgeErr(); err != nil {
		errs = append(errs, err)
	}
	if err := errors.Join(errs...); err != nil {
		return configErr(err)
	}
	return nil
}

// ValidateKnowledge checks only the knowledge-base settings, for tools that
// never call the language model.
func (c Config) ValidateKnowledge() error {
	if err := c.knowledgeErr(); err != nil {
		return configErr(err)
	}
	return nil
}

func (c Config) knowledgeErr() error {
	switch c.KnowledgeBackend {
	case BackendDynamoDB:
		if strings.TrimSpace(c.KnowledgeTable) == "" {
			return errors.New("KNOWLEDGE_TABLE is required for the dynamodb backend")
		}
	case BackendPostgres:
		if strings.TrimSpace(c.DatabaseURL) == "" {
			return errors.New("DATABASE_URL is required for the postgres backend")
		}
	default:
		return fmt.Errorf("KNOWLEDGE_BACKEND %q must be %s or %s", c.KnowledgeBackend, BackendDynamoDB, BackendPostgres)
	}
	return nil
}

func configErr(err error) error {
	return &domain.ConfigurationError{Component: "config", Err: err}
}
