package domain

import "context"

// Searcher is an external web search provider.
type Searcher interface {
	Search(ctx context.Context, query string) ([]SearchResult, error)
	Name() string
}
