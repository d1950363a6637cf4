// Package retrieval wraps a similarity-search collaborator so that lookups
// never abort a consultation.
package retrieval

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"
)

const (
	// ContextUnavailable replaces the medical context whenever search fails.
	ContextUnavailable = "context unavailable"
	// GenericQuery is searched when no symptoms are known.
	GenericQuery = "general symptoms"
	// DefaultTopK is the number of snippets joined into the context.
	DefaultTopK = 3
)

// Searcher is the similarity-search collaborator over a pre-built index.
type Searcher interface {
	Search(ctx context.Context, query string, k int) ([]string, error)
}

// Adapter degrades search failures to ContextUnavailable.
type Adapter struct {
	searcher Searcher
	topK     int
	timeout  time.Duration
	logger   *slog.Logger
}

type Option func(*Adapter)

// WithTopK overrides DefaultTopK. Non-positive values are ignored.
func WithTopK(k int) Option {
	return func(a *Adapter) {
		if k > 0 {
			a.topK = k
		}
	}
}

// WithTimeout bounds every search call. Zero disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(a *Adapter) {
		a.timeout = d
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(a *Adapter) {
		if l != nil {
			a.logger = l
		}
	}
}

func NewAdapter(s Searcher, opts ...Option) (*Adapter, error) {
	if s == nil {
		return nil, errors.New("retrieval: searcher must not be nil")
	}
	a := &Adapter{
		searcher: s,
		topK:     DefaultTopK,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// QueryForSymptoms joins symptom tags into a search query, falling back to
// GenericQuery so the searcher never sees an empty string.
func QueryForSymptoms(symptoms []string) string {
	q := strings.TrimSpace(strings.Join(symptoms, " "))
	if q == "" {
		return GenericQuery
	}
	return q
}

// RetrieveContext returns the top snippets for query separated by blank
// lines. Errors, timeouts and empty results all yield ContextUnavailable.
func (a *Adapter) RetrieveContext(ctx context.Context, query string) string {
	query = strings.TrimSpace(query)
	if query == "" {
		query = GenericQuery
	}

	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	snippets, err := a.searcher.Search(ctx, query, a.topK)
	if err != nil {
		a.logger.Warn("retrieval failed, continuing without context", "query", query, "err", err)
		return ContextUnavailable
	}

	parts := make([]string, 0, len(snippets))
	for _, s := range snippets {
		if s = strings.TrimSpace(s); s != "" {
			parts = append(parts, s)
		}
		if len(parts) == a.topK {
			break
		}
	}
	if len(parts) == 0 {
		return ContextUnavailable
	}
	return strings.Join(parts, "\n\n")
}
