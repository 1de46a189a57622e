package search

import (
	"context"
	"log/slog"

	"relaybot/internal/domain"
)

// Gateway wraps a Searcher and never fails: provider errors and empty
// result sets both degrade to an empty list. The result is bounded to
// maxResults entries.
type Gateway struct {
	searcher   domain.Searcher
	maxResults int
	logger     *slog.Logger
}

// NewGateway creates a gateway around the given searcher.
func NewGateway(searcher domain.Searcher, maxResults int, logger *slog.Logger) *Gateway {
	if maxResults <= 0 {
		maxResults = 3
	}
	return &Gateway{
		searcher:   searcher,
		maxResults: maxResults,
		logger:     logger,
	}
}

// Search returns up to maxResults hits for the query. On any provider
// error the failure is logged and an empty list is returned.
func (g *Gateway) Search(ctx context.Context, query string) []domain.SearchResult {
	results, err := g.searcher.Search(ctx, query)
	if err != nil {
		g.logger.Warn("search failed, continuing without results",
			"provider", g.searcher.Name(),
			"err", err,
		)
		return nil
	}
	if len(results) > g.maxResults {
		results = results[:g.maxResults]
	}
	return results
}
