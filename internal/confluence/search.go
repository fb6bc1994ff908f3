package confluence

import (
	"context"
	"log/slog"
	"strings"
)

// Search strategies reported by SearchPages.
const (
	StrategyCQL    = "cql"
	StrategyFilter = "filter"
)

var defaultSearchExpand = []string{"space", "version", "ancestors"}

// SearchResult is the payload of search_pages.
type SearchResult struct {
	Results        []PageView     `json:"results"`
	Pagination     PaginationView `json:"pagination"`
	Links          PageLinksView  `json:"_links"`
	SearchStrategy string         `json:"searchStrategy"`
}

// SearchPages runs a CQL search. When the CQL call is rejected with 400 or
// 403 and a space key or title filter was supplied, the plain content
// listing is queried with those filters instead.
func (s *Service) SearchPages(ctx context.Context, p SearchPagesParams) (*SearchResult, error) {
	cql := strings.TrimSpace(p.CQL)
	subj := Subject{CQL: cql, SpaceKey: p.SpaceKey, Title: p.Title}
	start, limit := window(p.Start, p.Limit)
	expand := expandParam(p.Expand, defaultSearchExpand)
	hasFilters := strings.TrimSpace(p.SpaceKey) != "" || strings.TrimSpace(p.Title) != ""

	var (
		res      ResultPage[Content]
		strategy = StrategyFilter
	)

	if cql != "" {
		query := windowQuery(start, limit)
		query.Set("cql", cql)
		query.Set("expand", expand)

		err := s.api.Get(ctx, contentPath("search"), query, &res)
		switch {
		case err == nil:
			strategy = StrategyCQL
		case hasFilters && IsFallbackCandidate(err):
			s.logger.Warn("cql search rejected, falling back to content filters",
				slog.String("cql", cql),
				slog.Any("error", err),
			)
			res = ResultPage[Content]{}
		default:
			return nil, Classify(OpSearchPages, subj, err)
		}
	}

	if strategy == StrategyFilter {
		if err := s.filterPages(ctx, p, start, limit, expand, &res); err != nil {
			return nil, Classify(OpSearchPages, subj, err)
		}
	}

	results := make([]PageView, 0, len(res.Results))
	for i := range res.Results {
		results = append(results, normalizePage(&res.Results[i], 0))
	}
	pagination, links := normalizePagination(&res, start, limit)

	return &SearchResult{
		Results:        results,
		Pagination:     pagination,
		Links:          links,
		SearchStrategy: strategy,
	}, nil
}

func (s *Service) filterPages(ctx context.Context, p SearchPagesParams, start, limit int, expand string, out *ResultPage[Content]) error {
	query := windowQuery(start, limit)
	query.Set("type", "page")
	query.Set("expand", expand)
	if key := strings.TrimSpace(p.SpaceKey); key != "" {
		query.Set("spaceKey", key)
	}
	if title := strings.TrimSpace(p.Title); title != "" {
		query.Set("title", title)
	}
	return s.api.Get(ctx, contentPath(), query, out)
}
