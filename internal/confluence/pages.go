package confluence

import (
	"context"
	"log/slog"
	"net/url"
	"strings"
	"time"
)

var defaultPageExpand = []string{"body.storage", "version", "space", "ancestors", "children.page", "descendants.comment"}

// PageResult is the payload of create_page and get_page.
type PageResult struct {
	Page PageView `json:"page"`
}

// UpdatePageResult is the payload of update_page.
type UpdatePageResult struct {
	Page            PageView `json:"page"`
	PreviousVersion int      `json:"previousVersion"`
	UpdateMessage   string   `json:"updateMessage"`
}

// DeletedPageView describes a page after permanent deletion.
type DeletedPageView struct {
	ID      string `json:"id"`
	Status  string `json:"status"`
	Title   string `json:"title"`
	Version struct {
		Number int    `json:"number"`
		When   string `json:"when"`
	} `json:"version"`
}

// DeletePageResult is the payload of delete_page.
type DeletePageResult struct {
	Page        DeletedPageView `json:"page"`
	DeleteType  string          `json:"deleteType"`
	Recoverable bool            `json:"recoverable"`
}

// CreatePage creates a page, optionally below a parent page.
func (s *Service) CreatePage(ctx context.Context, p CreatePageParams) (*PageResult, error) {
	p.SpaceKey = s.createCase.apply(p.SpaceKey)
	p.ParentID = strings.TrimSpace(p.ParentID)
	subj := Subject{SpaceKey: p.SpaceKey, Title: p.Title, ParentID: p.ParentID}

	if err := p.Validate(); err != nil {
		return nil, Invalid(OpCreatePage, err)
	}

	req := contentRequest{
		Type:  "page",
		Title: p.Title,
		Space: &keyRef{Key: p.SpaceKey},
		Body:  storage(p.Content),
	}
	if p.ParentID != "" {
		req.Ancestors = []idRef{{ID: p.ParentID}}
	}

	var created Content
	if err := s.api.Post(ctx, contentPath(), req, &created); err != nil {
		return nil, Classify(OpCreatePage, subj, err)
	}

	if len(created.Ancestors) == 0 && p.ParentID != "" {
		created.Ancestors = []Content{{ID: p.ParentID}}
	}

	return &PageResult{Page: normalizePage(&created, 1)}, nil
}

// GetPage reads a page, or one of its historical versions when p.Version is set.
func (s *Service) GetPage(ctx context.Context, p GetPageParams) (*PageResult, error) {
	subj := Subject{PageID: p.PageID, Version: p.Version}
	if err := p.Validate(); err != nil {
		return nil, Invalid(OpGetPage, err)
	}

	query := url.Values{}
	query.Set("expand", expandParam(p.Expand, defaultPageExpand))
	if p.Version > 0 {
		query.Set("status", "historical")
		query.Set("version", itoa(p.Version))
	}

	var page Content
	if err := s.api.Get(ctx, contentPath(p.PageID), query, &page); err != nil {
		return nil, Classify(OpGetPage, subj, err)
	}

	return &PageResult{Page: normalizePage(&page, 0)}, nil
}

// UpdatePage submits a new version of a page. When title or content are
// omitted the current page is read first and its values are kept; the
// two calls are not atomic and a concurrent edit surfaces as a conflict.
func (s *Service) UpdatePage(ctx context.Context, p UpdatePageParams) (*UpdatePageResult, error) {
	subj := Subject{PageID: p.PageID, Version: p.VersionNumber}
	if err := p.Validate(); err != nil {
		return nil, Invalid(OpUpdatePage, err)
	}

	previous := p.VersionNumber - 1
	title, body := p.Title, p.Content
	spaceKey := s.updateCase.apply(p.SpaceKey)

	if title == "" || body == "" {
		var current Content
		query := url.Values{"expand": []string{"body.storage,version,space"}}
		if err := s.api.Get(ctx, contentPath(p.PageID), query, &current); err != nil {
			return nil, Classify(OpUpdatePage, subj, err)
		}

		if current.Version != nil && current.Version.Number > 0 {
			currentNumber := current.Version.Number
			if p.VersionNumber <= currentNumber {
				return nil, versionConflict(OpUpdatePage, subj, currentNumber, nil)
			}
			if p.VersionNumber > currentNumber+1 {
				return nil, newError(KindBadRequest, OpUpdatePage, 0, nil,
					"Invalid version number %d during %s. Page %q is at version %d, submit %d.",
					p.VersionNumber, OpUpdatePage, p.PageID, currentNumber, currentNumber+1)
			}
			previous = currentNumber
		}

		if title == "" {
			title = current.Title
		}
		if body == "" && current.Body != nil && current.Body.Storage != nil {
			body = current.Body.Storage.Value
		}
		if spaceKey == "" && current.Space != nil {
			spaceKey = s.updateCase.apply(current.Space.Key)
		}
	}

	req := contentRequest{
		ID:      p.PageID,
		Type:    "page",
		Title:   title,
		Version: &versionRef{Number: p.VersionNumber, Message: p.VersionMessage},
	}
	if spaceKey != "" {
		req.Space = &keyRef{Key: spaceKey}
	}
	if body != "" {
		req.Body = storage(body)
	}

	var updated Content
	if err := s.api.Put(ctx, contentPath(p.PageID), req, &updated); err != nil {
		return nil, Classify(OpUpdatePage, subj, err)
	}

	s.logger.Debug("confluence page updated",
		slog.String("page_id", p.PageID),
		slog.Int("version", p.VersionNumber),
	)

	return &UpdatePageResult{
		Page:            normalizePage(&updated, p.VersionNumber),
		PreviousVersion: previous,
		UpdateMessage:   p.VersionMessage,
	}, nil
}

// DeletePage permanently deletes a page. Data Center does not move pages
// to the trash through this endpoint.
func (s *Service) DeletePage(ctx context.Context, p DeletePageParams) (*DeletePageResult, error) {
	subj := Subject{PageID: p.PageID}
	if err := p.Validate(); err != nil {
		return nil, Invalid(OpDeletePage, err)
	}

	var deleted Content
	if err := s.api.Delete(ctx, contentPath(p.PageID), &deleted); err != nil {
		return nil, Classify(OpDeletePage, subj, err)
	}

	view := DeletedPageView{
		ID:     firstNonEmpty(deleted.ID, p.PageID),
		Status: "deleted",
		Title:  deleted.Title,
	}
	view.Version.When = s.now().UTC().Format(time.RFC3339)
	if deleted.Version != nil {
		view.Version.Number = deleted.Version.Number
		if deleted.Version.When != "" {
			view.Version.When = deleted.Version.When
		}
	}

	return &DeletePageResult{
		Page:        view,
		DeleteType:  "permanent",
		Recoverable: false,
	}, nil
}
