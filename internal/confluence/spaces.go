package confluence

import (
	"context"
)

var defaultSpaceExpand = []string{"description.plain", "homepage", "permissions"}

// SpacesResult is the payload of list_spaces.
type SpacesResult struct {
	Spaces     []SpaceView    `json:"spaces"`
	Pagination PaginationView `json:"pagination"`
	Links      PageLinksView  `json:"_links"`
}

// ListSpaces retrieves Confluence spaces.
func (s *Service) ListSpaces(ctx context.Context, p ListSpacesParams) (*SpacesResult, error) {
	if err := p.Validate(); err != nil {
		return nil, Invalid(OpListSpaces, err)
	}

	start, limit := window(p.Start, p.Limit)
	query := windowQuery(start, limit)
	query.Set("expand", expandParam(p.Expand, defaultSpaceExpand))
	if p.Type != "" {
		query.Set("type", p.Type)
	}
	if p.Status != "" {
		query.Set("status", p.Status)
	}

	var res ResultPage[Space]
	if err := s.api.Get(ctx, "/space", query, &res); err != nil {
		return nil, Classify(OpListSpaces, Subject{}, err)
	}

	spaces := make([]SpaceView, 0, len(res.Results))
	for i := range res.Results {
		spaces = append(spaces, normalizeSpace(&res.Results[i]))
	}
	pagination, links := normalizePagination(&res, start, limit)

	return &SpacesResult{Spaces: spaces, Pagination: pagination, Links: links}, nil
}
