package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "embed"

	"triage-agent/internal/domain"
)

const backendPostgres = "postgres"

//go:embed schema.sql
var schemaSQL string

const searchSQL = `
	SELECT content
	FROM knowledge_documents
	WHERE search_vector @@ to_tsquery('english', $1)
	ORDER BY ts_rank(search_vector, to_tsquery('english', $1)) DESC, disease
	LIMIT $2`

const upsertSQL = `
	INSERT INTO knowledge_documents (disease, content)
	VALUES ($1, $2)
	ON CONFLICT (disease) DO UPDATE SET
		content = EXCLUDED.content,
		updated_at = now()`

// sqlDB is the subset of *sql.DB used by PostgresKnowledgeBase.
type sqlDB interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// PostgresKnowledgeBase searches knowledge documents with Postgres full-text
// search.
type PostgresKnowledgeBase struct {
	db sqlDB
}

func NewPostgresKnowledgeBase(db sqlDB) (*PostgresKnowledgeBase, error) {
	if db == nil {
		return nil, errors.New("repository: db must not be nil")
	}
	return &PostgresKnowledgeBase{db: db}, nil
}

// Migrate creates the knowledge table and its search index if missing.
func (kb *PostgresKnowledgeBase) Migrate(ctx context.Context) error {
	if _, err := kb.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("repository: migrate: %w", err)
	}
	return nil
}

// Search returns up to k document contents matching any term of query,
// best ts_rank first.
func (kb *PostgresKnowledgeBase) Search(ctx context.Context, query string, k int) ([]string, error) {
	tsq := buildTSQuery(query)
	if tsq == "" || k <= 0 {
		return nil, nil
	}

	rows, err := kb.db.QueryContext(ctx, searchSQL, tsq, k)
	if err != nil {
		return nil, &domain.RetrievalError{Backend: backendPostgres, Err: fmt.Errorf("query: %w", err)}
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var content string
		if err := rows.Scan(&content); err != nil {
			return nil, &domain.RetrievalError{Backend: backendPostgres, Err: fmt.Errorf("scan: %w", err)}
		}
		out = append(out, content)
	}
	if err := rows.Err(); err != nil {
		return nil, &domain.RetrievalError{Backend: backendPostgres, Err: err}
	}
	return out, nil
}

// PutDocuments upserts docs by disease.
func (kb *PostgresKnowledgeBase) PutDocuments(ctx context.Context, docs []domain.KnowledgeDocument) error {
	for _, d := range docs {
		if strings.TrimSpace(d.Disease) == "" {
			return errors.New("repository: PutDocuments: disease is required")
		}
		if _, err := kb.db.ExecContext(ctx, upsertSQL, d.Disease, d.Content); err != nil {
			return fmt.Errorf("repository: PutDocuments %q: %w", d.Disease, err)
		}
	}
	return nil
}

// buildTSQuery ORs the query terms into a to_tsquery expression. Terms are
// reduced to letters and digits so user text cannot inject tsquery operators.
func buildTSQuery(query string) string {
	return strings.Join(queryTerms(query), " | ")
}
