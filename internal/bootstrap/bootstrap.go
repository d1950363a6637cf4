// Package bootstrap builds the consultation service from configuration.
// Every failure here is a *domain.ConfigurationError and is fatal.
package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	_ "github.com/lib/pq"

	"triage-agent/internal/config"
	"triage-agent/internal/domain"
	"triage-agent/internal/integrations/gemini"
	"triage-agent/internal/integrations/openai"
	"triage-agent/internal/integrations/paramstore"
	"triage-agent/internal/repository"
	"triage-agent/internal/retrieval"
	"triage-agent/internal/usecase"
)

// KnowledgeBase is a searchable, writable document index.
type KnowledgeBase interface {
	retrieval.Searcher
	PutDocuments(ctx context.Context, docs []domain.KnowledgeDocument) error
}

// App owns the constructed service and the resources behind it.
type App struct {
	Service   *usecase.TriageService
	Knowledge KnowledgeBase

	closers []func() error
}

// Close releases database connections. It is safe to call on a partially
// built App.
func (a *App) Close() error {
	var first error
	for _, c := range a.closers {
		if err := c(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// LoadAWSConfig loads the default AWS credential chain.
func LoadAWSConfig(ctx context.Context) (aws.Config, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return aws.Config{}, &domain.ConfigurationError{Component: "aws", Err: err}
	}
	return cfg, nil
}

// New validates cfg and builds the full service.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	awsCfg, err := LoadAWSConfig(ctx)
	if err != nil {
		return nil, err
	}

	gen, err := NewGenerator(ctx, cfg, paramstore.NewFromConfig(awsCfg))
	if err != nil {
		return nil, err
	}

	app := &App{}
	kb, closer, err := NewKnowledgeBase(ctx, cfg, awsCfg)
	if err != nil {
		return nil, err
	}
	app.Knowledge = kb
	if closer != nil {
		app.closers = append(app.closers, closer)
	}

	svc, err := NewService(cfg, gen, kb, logger)
	if err != nil {
		_ = app.Close()
		return nil, err
	}
	app.Service = svc
	return app, nil
}

// NewGenerator picks the language-model client named by cfg.LLMProvider.
func NewGenerator(ctx context.Context, cfg config.Config, getter paramstore.Getter) (usecase.Generator, error) {
	switch cfg.LLMProvider {
	case config.ProviderOpenAI:
		c, err := openai.NewClient(ctx, getter, cfg.ParamPrefix, cfg.LLMModel)
		if err != nil {
			return nil, err
		}
		return c, nil
	case config.ProviderGemini:
		c, err := gemini.NewClient(ctx, getter, cfg.ParamPrefix, cfg.LLMModel)
		if err != nil {
			return nil, err
		}
		return c, nil
	default:
		return nil, &domain.ConfigurationError{
			Component: "llm",
			Err:       fmt.Errorf("unknown provider %q", cfg.LLMProvider),
		}
	}
}

// NewKnowledgeBase opens the backend named by cfg.KnowledgeBackend. The
// returned closer is nil when there is nothing to release.
func NewKnowledgeBase(ctx context.Context, cfg config.Config, awsCfg aws.Config) (KnowledgeBase, func() error, error) {
	if err := cfg.ValidateKnowledge(); err != nil {
		return nil, nil, err
	}
	switch cfg.KnowledgeBackend {
	case config.BackendDynamoDB:
		kb, err := repository.NewDynamoKnowledgeBase(awsdynamodb.NewFromConfig(awsCfg), cfg.KnowledgeTable)
		if err != nil {
			return nil, nil, &domain.ConfigurationError{Component: "dynamodb", Err: err}
		}
		return kb, nil, nil
	case config.BackendPostgres:
		return openPostgres(ctx, cfg.DatabaseURL)
	}
	// ValidateKnowledge rejects anything else.
	return nil, nil, &domain.ConfigurationError{Component: "knowledge", Err: fmt.Errorf("unknown backend %q", cfg.KnowledgeBackend)}
}

func openPostgres(ctx context.Context, dsn string) (KnowledgeBase, func() error, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, nil, &domain.ConfigurationError{Component: "postgres", Err: err}
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, nil, &domain.ConfigurationError{Component: "postgres", Err: fmt.Errorf("ping: %w", err)}
	}
	kb, err := repository.NewPostgresKnowledgeBase(db)
	if err != nil {
		_ = db.Close()
		return nil, nil, &domain.ConfigurationError{Component: "postgres", Err: err}
	}
	if err := kb.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, nil, &domain.ConfigurationError{Component: "postgres", Err: err}
	}
	return kb, db.Close, nil
}

// NewService wires retrieval and generation into the orchestrator.
func NewService(cfg config.Config, gen usecase.Generator, searcher retrieval.Searcher, logger *slog.Logger) (*usecase.TriageService, error) {
	adapter, err := retrieval.NewAdapter(searcher,
		retrieval.WithTopK(cfg.RetrievalTopK),
		retrieval.WithTimeout(cfg.CollaboratorTimeout),
		retrieval.WithLogger(logger),
	)
	if err != nil {
		return nil, &domain.ConfigurationError{Component: "retrieval", Err: err}
	}
	svc, err := usecase.NewTriageService(gen, adapter,
		usecase.WithMaxMessageLength(cfg.MaxMessageLength),
		usecase.WithCallTimeout(cfg.CollaboratorTimeout),
		usecase.WithLogger(logger),
	)
	if err != nil {
		return nil, &domain.ConfigurationError{Component: "usecase", Err: err}
	}
	return svc, nil
}
