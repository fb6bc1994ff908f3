package confluence

import (
	"context"
)

// VersionsResult is the payload of list_page_versions.
type VersionsResult struct {
	Versions   []VersionRecordView `json:"versions"`
	Pagination PaginationView      `json:"pagination"`
	Links      PageLinksView       `json:"_links"`
}

// ListPageVersions returns the version history of a page. Every record
// carries the REST link that reads that version's body.
func (s *Service) ListPageVersions(ctx context.Context, p ListPageVersionsParams) (*VersionsResult, error) {
	subj := Subject{PageID: p.PageID}
	if err := p.Validate(); err != nil {
		return nil, Invalid(OpListPageVersions, err)
	}

	start, limit := window(p.Start, p.Limit)

	var res ResultPage[Version]
	path := "/experimental" + contentPath(p.PageID, "version")
	if err := s.api.Get(ctx, path, windowQuery(start, limit), &res); err != nil {
		return nil, Classify(OpListPageVersions, subj, err)
	}

	versions := make([]VersionRecordView, 0, len(res.Results))
	for i := range res.Results {
		versions = append(versions, normalizeVersionRecord(p.PageID, &res.Results[i]))
	}
	pagination, links := normalizePagination(&res, start, limit)

	return &VersionsResult{Versions: versions, Pagination: pagination, Links: links}, nil
}
