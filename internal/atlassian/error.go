package atlassian

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"strings"
)

// Error represents a non-2xx Confluence REST response.
type Error struct {
	StatusCode    int
	Message       string
	Reason        string
	ErrorMessages []string
	// CurrentVersion is the version the server reported on a conflicting
	// update, or 0 when it did not say.
	CurrentVersion int
	Body           string
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}

	if summary := e.Summary(); summary != "" {
		return fmt.Sprintf("atlassian: %d %s", e.StatusCode, summary)
	}

	return fmt.Sprintf("atlassian: %d", e.StatusCode)
}

// Summary returns the most specific human readable message in the response.
func (e *Error) Summary() string {
	switch {
	case e.Message != "":
		return e.Message
	case len(e.ErrorMessages) > 0:
		return e.ErrorMessages[0]
	case e.Reason != "":
		return e.Reason
	}
	return strings.TrimSpace(e.Body)
}

// Mentions reports whether any message in the response contains substr,
// ignoring case.
func (e *Error) Mentions(substr string) bool {
	needle := strings.ToLower(substr)
	for _, msg := range append([]string{e.Message, e.Reason}, e.ErrorMessages...) {
		if strings.Contains(strings.ToLower(msg), needle) {
			return true
		}
	}
	return false
}

type errorBody struct {
	Message        string          `json:"message"`
	Reason         string          `json:"reason"`
	ErrorMessages  []string        `json:"errorMessages"`
	CurrentVersion json.RawMessage `json:"currentVersion"`
	Data           struct {
		Errors []struct {
			Message struct {
				Key         string `json:"key"`
				Translation string `json:"translation"`
			} `json:"message"`
		} `json:"errors"`
	} `json:"data"`
}

var currentVersionPattern = regexp.MustCompile(`(?i)current version is:?\s*(\d+)`)

func parseError(res *http.Response) error {
	data, _ := io.ReadAll(res.Body)
	apiErr := &Error{StatusCode: res.StatusCode, Body: string(data)}

	var body errorBody
	if len(data) > 0 && json.Unmarshal(data, &body) == nil {
		apiErr.Message = body.Message
		apiErr.Reason = body.Reason
		apiErr.ErrorMessages = body.ErrorMessages
		for _, item := range body.Data.Errors {
			if msg := item.Message.Translation; msg != "" {
				apiErr.ErrorMessages = append(apiErr.ErrorMessages, msg)
			} else if item.Message.Key != "" {
				apiErr.ErrorMessages = append(apiErr.ErrorMessages, item.Message.Key)
			}
		}
		apiErr.CurrentVersion = parseVersion(body.CurrentVersion)
	}

	if apiErr.CurrentVersion == 0 {
		if m := currentVersionPattern.FindStringSubmatch(apiErr.Message); m != nil {
			apiErr.CurrentVersion, _ = strconv.Atoi(m[1])
		}
	}

	return apiErr
}

// parseVersion accepts both 7 and "7".
func parseVersion(raw json.RawMessage) int {
	if len(raw) == 0 {
		return 0
	}
	var n int
	if json.Unmarshal(raw, &n) == nil {
		return n
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		n, _ = strconv.Atoi(strings.TrimSpace(s))
	}
	return n
}
