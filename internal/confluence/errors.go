package confluence

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/ylchen07/confluence-dc-mcp/internal/atlassian"
)

// Kind is the closed set of failure categories reported to callers.
type Kind string

const (
	KindAuthentication      Kind = "Authentication"
	KindAuthorization       Kind = "Authorization"
	KindNotFound            Kind = "NotFound"
	KindBadRequest          Kind = "BadRequest"
	KindConflict            Kind = "Conflict"
	KindRateLimited         Kind = "RateLimited"
	KindUpstreamUnavailable Kind = "UpstreamUnavailable"
	KindNetwork             Kind = "Network"
)

// Op names an operation in human readable form. It is embedded in every
// error message.
type Op string

const (
	OpCreatePage       Op = "create page"
	OpGetPage          Op = "get page"
	OpUpdatePage       Op = "update page"
	OpDeletePage       Op = "delete page"
	OpSearchPages      Op = "search pages"
	OpListSpaces       Op = "list spaces"
	OpListPageVersions Op = "list page versions"
	OpListComments     Op = "list comments"
	OpAddComment       Op = "add comment"
	OpUpdateComment    Op = "update comment"
	OpDeleteComment    Op = "delete comment"
)

// Subject identifies what an operation was acting on.
type Subject struct {
	PageID    string
	CommentID string
	ParentID  string
	SpaceKey  string
	Title     string
	CQL       string
	// Version is the requested historical version on reads and the
	// submitted version number on updates.
	Version int
}

// Error is a classified operation failure.
type Error struct {
	Kind    Kind
	Op      Op
	Status  int
	Message string
	// CurrentVersion is set on version conflicts when the current version is known.
	CurrentVersion int

	err error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.err
}

// Retryable reports whether the caller may retry the same request unchanged.
func (e *Error) Retryable() bool {
	switch e.Kind {
	case KindRateLimited, KindUpstreamUnavailable, KindNetwork:
		return true
	}
	return false
}

func newError(kind Kind, op Op, status int, err error, format string, args ...any) *Error {
	return &Error{
		Kind:    kind,
		Op:      op,
		Status:  status,
		Message: fmt.Sprintf(format, args...),
		err:     err,
	}
}

// Invalid reports a local validation or argument decoding failure.
func Invalid(op Op, err error) *Error {
	return newError(KindBadRequest, op, 0, err, "Invalid arguments for %s: %v", op, err)
}

// AsError returns the classified error inside err, if any.
func AsError(err error) (*Error, bool) {
	var ce *Error
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}

// IsFallbackCandidate reports whether a failed CQL search may be retried
// through plain content filters.
func IsFallbackCandidate(err error) bool {
	var apiErr *atlassian.Error
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.StatusCode == http.StatusBadRequest || apiErr.StatusCode == http.StatusForbidden
}

// Classify maps a failed call into the error taxonomy. Errors that are
// already classified pass through unchanged.
func Classify(op Op, subj Subject, err error) *Error {
	if err == nil {
		return nil
	}
	if ce, ok := AsError(err); ok {
		return ce
	}

	var apiErr *atlassian.Error
	if !errors.As(err, &apiErr) {
		switch {
		case errors.Is(err, atlassian.ErrDecode):
			return newError(KindUpstreamUnavailable, op, 0, err, "Confluence returned an unreadable response during %s. Retry later.", op)
		case errors.Is(err, context.Canceled):
			return newError(KindNetwork, op, 0, err, "Request for %s was cancelled.", op)
		}
		return newError(KindNetwork, op, 0, err, "Network error during %s: %v", op, err)
	}

	status := apiErr.StatusCode
	switch {
	case status == http.StatusUnauthorized:
		return newError(KindAuthentication, op, status, err, "Authentication failed for %s. Check the personal access token.", op)
	case status == http.StatusForbidden:
		return newError(KindAuthorization, op, status, err, "Insufficient permissions to %s. Check permissions for the personal access token.", describe(op, subj))
	case status == http.StatusNotFound:
		return newError(KindNotFound, op, status, err, "%s", notFoundMessage(op, subj))
	case status == http.StatusConflict:
		return conflict(op, subj, apiErr)
	case status == http.StatusTooManyRequests:
		return newError(KindRateLimited, op, status, err, "Rate limit exceeded for %s. Retry later.", op)
	case status >= 500:
		return newError(KindUpstreamUnavailable, op, status, err, "Confluence server error (HTTP %d) during %s. Retry later.", status, op)
	case status == http.StatusBadRequest:
		return badRequest(op, subj, apiErr)
	}

	return newError(KindBadRequest, op, status, err, "HTTP %d during %s: %s", status, op, detail(apiErr))
}

// describe renders "<op> <target>" for permission messages.
func describe(op Op, subj Subject) string {
	switch op {
	case OpCreatePage:
		return fmt.Sprintf("create page in space %q", subj.SpaceKey)
	case OpGetPage, OpUpdatePage, OpDeletePage:
		return fmt.Sprintf("%s %q", op, subj.PageID)
	case OpListPageVersions:
		return fmt.Sprintf("access version history for page %q", subj.PageID)
	case OpListComments:
		return fmt.Sprintf("access comments for page %q", subj.PageID)
	case OpAddComment:
		return fmt.Sprintf("add comment to page %q", subj.PageID)
	case OpUpdateComment, OpDeleteComment:
		return fmt.Sprintf("%s %q", op, subj.CommentID)
	}
	return string(op)
}

func notFoundMessage(op Op, subj Subject) string {
	switch op {
	case OpCreatePage:
		return fmt.Sprintf("Space %q not found or not accessible during %s.", subj.SpaceKey, op)
	case OpGetPage:
		if subj.Version > 0 {
			return fmt.Sprintf("Version %d of page %q not found during %s.", subj.Version, subj.PageID, op)
		}
		return fmt.Sprintf("Page %q not found or not accessible during %s.", subj.PageID, op)
	case OpDeletePage:
		return fmt.Sprintf("Page %q not found or already deleted during %s.", subj.PageID, op)
	case OpListPageVersions:
		return fmt.Sprintf("Page %q not found or version history not accessible during %s.", subj.PageID, op)
	case OpAddComment:
		if subj.ParentID != "" {
			return fmt.Sprintf("Page %q or parent comment %q not found during %s.", subj.PageID, subj.ParentID, op)
		}
		return fmt.Sprintf("Page %q not found or not accessible during %s.", subj.PageID, op)
	case OpUpdateComment:
		return fmt.Sprintf("Comment %q not found or not accessible during %s.", subj.CommentID, op)
	case OpDeleteComment:
		return fmt.Sprintf("Comment %q not found or already deleted during %s.", subj.CommentID, op)
	case OpUpdatePage, OpListComments:
		return fmt.Sprintf("Page %q not found or not accessible during %s.", subj.PageID, op)
	}
	return fmt.Sprintf("Resource not found during %s. Check that the page, space or endpoint exists.", op)
}

func conflict(op Op, subj Subject, apiErr *atlassian.Error) *Error {
	switch op {
	case OpUpdatePage, OpUpdateComment:
		return versionConflict(op, subj, apiErr.CurrentVersion, apiErr)
	case OpCreatePage:
		return newError(KindConflict, op, apiErr.StatusCode, apiErr,
			"Conflict during %s: title %q may already exist in space %q.", op, subj.Title, subj.SpaceKey)
	case OpDeletePage:
		return newError(KindConflict, op, apiErr.StatusCode, apiErr,
			"Cannot %s %q: the page may have child pages or be protected.", op, subj.PageID)
	case OpDeleteComment:
		return newError(KindConflict, op, apiErr.StatusCode, apiErr,
			"Cannot %s %q: the comment may be protected or have system restrictions.", op, subj.CommentID)
	}
	return newError(KindConflict, op, apiErr.StatusCode, apiErr, "Conflict during %s: %s", op, detail(apiErr))
}

// versionConflict reports a stale version number. current is 0 when unknown.
func versionConflict(op Op, subj Subject, current int, cause error) *Error {
	resource, id := "page", subj.PageID
	if op == OpUpdateComment {
		resource, id = "comment", subj.CommentID
	}

	currentText := "unknown"
	if current > 0 {
		currentText = strconv.Itoa(current)
	}

	status := 0
	var apiErr *atlassian.Error
	if errors.As(cause, &apiErr) {
		status = apiErr.StatusCode
	}

	e := newError(KindConflict, op, status, cause,
		"Version conflict during %s: %s %q has been updated by another user. Current version: %s, provided version: %d. Fetch the latest version and retry with current version + 1.",
		op, resource, id, currentText, subj.Version)
	e.CurrentVersion = current
	return e
}

func badRequest(op Op, subj Subject, apiErr *atlassian.Error) *Error {
	status := apiErr.StatusCode
	switch op {
	case OpCreatePage:
		if apiErr.Mentions("parent") {
			return newError(KindBadRequest, op, status, apiErr,
				"Invalid parent page ID %q during %s. The parent page may not exist or may be in another space.", subj.ParentID, op)
		}
	case OpAddComment:
		if apiErr.Mentions("parent") || apiErr.Mentions("ancestor") {
			return newError(KindBadRequest, op, status, apiErr,
				"Invalid parent comment ID %q during %s. The parent comment may not exist on page %q.", subj.ParentID, op, subj.PageID)
		}
	case OpUpdatePage, OpUpdateComment:
		if apiErr.Mentions("version") {
			if apiErr.CurrentVersion > 0 && subj.Version <= apiErr.CurrentVersion {
				return versionConflict(op, subj, apiErr.CurrentVersion, apiErr)
			}
			return newError(KindBadRequest, op, status, apiErr,
				"Invalid version number %d during %s. Version must be current version + 1.", subj.Version, op)
		}
	case OpSearchPages:
		if apiErr.Mentions("cql") {
			return newError(KindBadRequest, op, status, apiErr,
				"Invalid CQL query %q during %s. Check CQL syntax and try again.", subj.CQL, op)
		}
	}
	return newError(KindBadRequest, op, status, apiErr, "Invalid request for %s: %s", op, detail(apiErr))
}

func detail(apiErr *atlassian.Error) string {
	if s := apiErr.Summary(); s != "" {
		return s
	}
	return http.StatusText(apiErr.StatusCode)
}
