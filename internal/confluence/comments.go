package confluence

import (
	"context"
	"strings"
	"time"
)

var defaultCommentExpand = []string{"body.storage", "version", "ancestors", "children.comment"}

// CommentsResult is the payload of list_comments.
type CommentsResult struct {
	Comments   []CommentView  `json:"comments"`
	Pagination PaginationView `json:"pagination"`
	Links      PageLinksView  `json:"_links"`
}

// AddCommentResult is the payload of add_comment.
type AddCommentResult struct {
	Comment         CommentView `json:"comment"`
	IsReply         bool        `json:"isReply"`
	ParentCommentID string      `json:"parentCommentId"`
}

// UpdateCommentResult is the payload of update_comment.
type UpdateCommentResult struct {
	Comment         CommentView `json:"comment"`
	PreviousVersion int         `json:"previousVersion"`
	UpdateMessage   string      `json:"updateMessage"`
}

// DeletedCommentView describes a comment after deletion.
type DeletedCommentView struct {
	ID        string `json:"id"`
	Status    string `json:"status"`
	DeletedAt string `json:"deletedAt"`
}

// DeleteCommentResult is the payload of delete_comment.
type DeleteCommentResult struct {
	Comment       DeletedCommentView `json:"comment"`
	CascadeEffect bool               `json:"cascadeEffect"`
	Message       string             `json:"message"`
}

// ListComments returns the comments of a page with their replies.
func (s *Service) ListComments(ctx context.Context, p ListCommentsParams) (*CommentsResult, error) {
	subj := Subject{PageID: p.PageID}
	if err := p.Validate(); err != nil {
		return nil, Invalid(OpListComments, err)
	}

	start, limit := window(p.Start, p.Limit)
	query := windowQuery(start, limit)
	query.Set("expand", expandParam(p.Expand, defaultCommentExpand))
	if p.Depth != "" {
		query.Set("depth", p.Depth)
	}

	var res ResultPage[Content]
	if err := s.api.Get(ctx, contentPath(p.PageID, "child", "comment"), query, &res); err != nil {
		return nil, Classify(OpListComments, subj, err)
	}

	pagination, links := normalizePagination(&res, start, limit)
	return &CommentsResult{
		Comments:   normalizeComments(res.Results),
		Pagination: pagination,
		Links:      links,
	}, nil
}

// AddComment attaches a comment to a page, or replies to an existing
// comment when ParentCommentID is set.
func (s *Service) AddComment(ctx context.Context, p AddCommentParams) (*AddCommentResult, error) {
	p.ParentCommentID = strings.TrimSpace(p.ParentCommentID)
	subj := Subject{PageID: p.PageID, ParentID: p.ParentCommentID}
	if err := p.Validate(); err != nil {
		return nil, Invalid(OpAddComment, err)
	}

	req := contentRequest{
		Type:      "comment",
		Container: &containerRef{ID: p.PageID, Type: "page"},
		Body:      storage(p.Content),
	}
	if p.ParentCommentID != "" {
		req.Ancestors = []idRef{{ID: p.ParentCommentID}}
	}

	var created Content
	if err := s.api.Post(ctx, contentPath(), req, &created); err != nil {
		return nil, Classify(OpAddComment, subj, err)
	}

	view := normalizeComment(&created, 1)
	if view.Container.ID == "" {
		view.Container = ContentRefView{ID: p.PageID, Type: "page"}
	}

	return &AddCommentResult{
		Comment:         view,
		IsReply:         p.ParentCommentID != "",
		ParentCommentID: p.ParentCommentID,
	}, nil
}

// UpdateComment replaces a comment body. Stale version numbers are
// rejected by Confluence and reported as conflicts.
func (s *Service) UpdateComment(ctx context.Context, p UpdateCommentParams) (*UpdateCommentResult, error) {
	subj := Subject{CommentID: p.CommentID, Version: p.VersionNumber}
	if err := p.Validate(); err != nil {
		return nil, Invalid(OpUpdateComment, err)
	}

	req := contentRequest{
		ID:      p.CommentID,
		Type:    "comment",
		Body:    storage(p.Content),
		Version: &versionRef{Number: p.VersionNumber, Message: p.VersionMessage},
	}

	var updated Content
	if err := s.api.Put(ctx, contentPath(p.CommentID), req, &updated); err != nil {
		return nil, Classify(OpUpdateComment, subj, err)
	}

	view := normalizeComment(&updated, p.VersionNumber)
	view.ID = firstNonEmpty(view.ID, p.CommentID)

	return &UpdateCommentResult{
		Comment:         view,
		PreviousVersion: p.VersionNumber - 1,
		UpdateMessage:   p.VersionMessage,
	}, nil
}

// DeleteComment deletes a comment. Confluence removes its replies with it.
func (s *Service) DeleteComment(ctx context.Context, p DeleteCommentParams) (*DeleteCommentResult, error) {
	subj := Subject{CommentID: p.CommentID}
	if err := p.Validate(); err != nil {
		return nil, Invalid(OpDeleteComment, err)
	}

	if err := s.api.Delete(ctx, contentPath(p.CommentID), nil); err != nil {
		return nil, Classify(OpDeleteComment, subj, err)
	}

	return &DeleteCommentResult{
		Comment: DeletedCommentView{
			ID:        p.CommentID,
			Status:    "deleted",
			DeletedAt: s.now().UTC().Format(time.RFC3339),
		},
		CascadeEffect: true,
		Message:       "Comment and all nested replies have been permanently deleted",
	}, nil
}
