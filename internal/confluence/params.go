package confluence

import (
	"regexp"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

const (
	defaultLimit = 25
	maxLimit     = 200
)

var spaceKeyPattern = regexp.MustCompile(`^[A-Z0-9]+$`)

// window applies the pagination defaults shared by every list operation.
func window(start, limit int) (int, int) {
	if start < 0 {
		start = 0
	}
	switch {
	case limit == 0:
		limit = defaultLimit
	case limit < 1:
		limit = 1
	case limit > maxLimit:
		limit = maxLimit
	}
	return start, limit
}

// CreatePageParams are the arguments of confluence.create_page.
type CreatePageParams struct {
	SpaceKey string `json:"spaceKey" jsonschema:"required" jsonschema_description:"Space key, e.g. DEV or PROJ"`
	Title    string `json:"title" jsonschema:"required" jsonschema_description:"Page title"`
	Content  string `json:"content" jsonschema:"required" jsonschema_description:"Page body in Confluence storage format"`
	ParentID string `json:"parentId,omitempty" jsonschema_description:"Optional parent page ID"`
}

func (p CreatePageParams) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.SpaceKey, validation.Required, validation.Match(spaceKeyPattern).Error("must be uppercase alphanumeric, e.g. DEV")),
		validation.Field(&p.Title, validation.Required),
		validation.Field(&p.Content, validation.Required),
	)
}

// GetPageParams are the arguments of confluence.get_page.
type GetPageParams struct {
	PageID  string   `json:"pageId" jsonschema:"required" jsonschema_description:"Page ID"`
	Expand  []string `json:"expand,omitempty" jsonschema_description:"Expansions, defaults to body.storage, version, space, ancestors, children.page, descendants.comment"`
	Version int      `json:"version,omitempty" jsonschema_description:"Historical version number to read" jsonschema:"minimum=1"`
}

func (p GetPageParams) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.PageID, validation.Required),
		validation.Field(&p.Version, validation.Min(0)),
	)
}

// UpdatePageParams are the arguments of confluence.update_page.
type UpdatePageParams struct {
	PageID         string `json:"pageId" jsonschema:"required" jsonschema_description:"Page ID"`
	Title          string `json:"title,omitempty" jsonschema_description:"New title, current title when omitted"`
	Content        string `json:"content,omitempty" jsonschema_description:"New body in storage format, current body when omitted"`
	SpaceKey       string `json:"spaceKey,omitempty" jsonschema_description:"Space key, current space when omitted"`
	VersionNumber  int    `json:"versionNumber" jsonschema:"required,minimum=1" jsonschema_description:"Current version + 1"`
	VersionMessage string `json:"versionMessage,omitempty" jsonschema_description:"Version comment"`
}

func (p UpdatePageParams) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.PageID, validation.Required),
		validation.Field(&p.VersionNumber, validation.Required, validation.Min(1)),
	)
}

// DeletePageParams are the arguments of confluence.delete_page.
type DeletePageParams struct {
	PageID string `json:"pageId" jsonschema:"required" jsonschema_description:"Page ID to delete permanently"`
}

func (p DeletePageParams) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.PageID, validation.Required),
	)
}

// SearchPagesParams are the arguments of confluence.search_pages.
type SearchPagesParams struct {
	CQL      string   `json:"cqlQuery,omitempty" jsonschema_description:"CQL query, e.g. type=page AND space.key=DEV"`
	SpaceKey string   `json:"spaceKey,omitempty" jsonschema_description:"Space key filter, also used when CQL is rejected"`
	Title    string   `json:"title,omitempty" jsonschema_description:"Title filter, also used when CQL is rejected"`
	Start    int      `json:"start,omitempty" jsonschema_description:"Offset, default 0" jsonschema:"minimum=0"`
	Limit    int      `json:"limit,omitempty" jsonschema_description:"Page size, default 25" jsonschema:"minimum=1,maximum=200"`
	Expand   []string `json:"expand,omitempty" jsonschema_description:"Expansions, defaults to space, version, ancestors"`
}

// ListSpacesParams are the arguments of confluence.list_spaces.
type ListSpacesParams struct {
	Start  int      `json:"start,omitempty" jsonschema_description:"Offset, default 0" jsonschema:"minimum=0"`
	Limit  int      `json:"limit,omitempty" jsonschema_description:"Page size, default 25" jsonschema:"minimum=1,maximum=200"`
	Type   string   `json:"type,omitempty" jsonschema_description:"Space type filter" jsonschema:"enum=global,enum=personal"`
	Status string   `json:"status,omitempty" jsonschema_description:"Space status filter" jsonschema:"enum=current,enum=archived"`
	Expand []string `json:"expand,omitempty" jsonschema_description:"Expansions, defaults to description.plain, homepage, permissions"`
}

func (p ListSpacesParams) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Type, validation.In("global", "personal")),
		validation.Field(&p.Status, validation.In("current", "archived")),
	)
}

// ListPageVersionsParams are the arguments of confluence.list_page_versions.
type ListPageVersionsParams struct {
	PageID string `json:"pageId" jsonschema:"required" jsonschema_description:"Page ID"`
	Start  int    `json:"start,omitempty" jsonschema_description:"Offset, default 0" jsonschema:"minimum=0"`
	Limit  int    `json:"limit,omitempty" jsonschema_description:"Page size, default 25" jsonschema:"minimum=1,maximum=200"`
}

func (p ListPageVersionsParams) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.PageID, validation.Required),
	)
}

// ListCommentsParams are the arguments of confluence.list_comments.
type ListCommentsParams struct {
	PageID string   `json:"pageId" jsonschema:"required" jsonschema_description:"Page ID"`
	Start  int      `json:"start,omitempty" jsonschema_description:"Offset, default 0" jsonschema:"minimum=0"`
	Limit  int      `json:"limit,omitempty" jsonschema_description:"Page size, default 25" jsonschema:"minimum=1,maximum=200"`
	Expand []string `json:"expand,omitempty" jsonschema_description:"Expansions, defaults to body.storage, version, ancestors, children.comment"`
	Depth  string   `json:"depth,omitempty" jsonschema_description:"Set to all to include nested replies" jsonschema:"enum=all"`
}

func (p ListCommentsParams) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.PageID, validation.Required),
		validation.Field(&p.Depth, validation.In("all")),
	)
}

// AddCommentParams are the arguments of confluence.add_comment.
type AddCommentParams struct {
	PageID          string `json:"pageId" jsonschema:"required" jsonschema_description:"Page the comment is attached to"`
	Content         string `json:"content" jsonschema:"required" jsonschema_description:"Comment body in storage format"`
	ParentCommentID string `json:"parentCommentId,omitempty" jsonschema_description:"Parent comment ID for a threaded reply"`
}

func (p AddCommentParams) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.PageID, validation.Required),
		validation.Field(&p.Content, validation.Required),
	)
}

// UpdateCommentParams are the arguments of confluence.update_comment.
type UpdateCommentParams struct {
	CommentID      string `json:"commentId" jsonschema:"required" jsonschema_description:"Comment ID"`
	Content        string `json:"content" jsonschema:"required" jsonschema_description:"New comment body in storage format"`
	VersionNumber  int    `json:"versionNumber" jsonschema:"required,minimum=1" jsonschema_description:"Current version + 1"`
	VersionMessage string `json:"versionMessage,omitempty" jsonschema_description:"Version comment"`
}

func (p UpdateCommentParams) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.CommentID, validation.Required),
		validation.Field(&p.Content, validation.Required),
		validation.Field(&p.VersionNumber, validation.Required, validation.Min(1)),
	)
}

// DeleteCommentParams are the arguments of confluence.delete_comment.
type DeleteCommentParams struct {
	CommentID string `json:"commentId" jsonschema:"required" jsonschema_description:"Comment ID, replies are deleted with it"`
}

func (p DeleteCommentParams) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.CommentID, validation.Required),
	)
}
