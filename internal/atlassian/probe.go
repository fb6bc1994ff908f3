package atlassian

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
)

// ProbeResult is the outcome of TestConnection.
type ProbeResult struct {
	Success bool         `json:"success"`
	Message string       `json:"message"`
	Details ProbeDetails `json:"details"`
}

// ProbeDetails carries the identity on success and the failure cause otherwise.
type ProbeDetails struct {
	User      string `json:"user,omitempty"`
	AccountID string `json:"accountId,omitempty"`
	BaseURL   string `json:"baseUrl"`
	Status    int    `json:"status,omitempty"`
	Error     string `json:"error,omitempty"`
}

type currentUser struct {
	DisplayName string `json:"displayName"`
	Username    string `json:"username"`
	UserKey     string `json:"userKey"`
	AccountID   string `json:"accountId"`
}

// TestConnection reads the authenticated user. It never returns an error:
// failures are described in the result.
func (c *Client) TestConnection(ctx context.Context) ProbeResult {
	result := ProbeResult{Details: ProbeDetails{BaseURL: c.BaseURL()}}

	var user currentUser
	err := c.Get(ctx, "/user/current", nil, &user)
	if err == nil {
		id := firstNonEmpty(user.AccountID, user.Username, user.UserKey)
		name := firstNonEmpty(user.DisplayName, id)
		c.logger.Info("confluence connection verified", slog.String("user", name))

		result.Success = true
		result.Message = fmt.Sprintf("Successfully connected to Confluence as %s", name)
		result.Details.User = name
		result.Details.AccountID = id
		return result
	}

	result.Details.Error = err.Error()

	var apiErr *Error
	if !errors.As(err, &apiErr) {
		result.Message = fmt.Sprintf("Network error: %v", err)
		return result
	}

	result.Details.Status = apiErr.StatusCode
	switch apiErr.StatusCode {
	case http.StatusUnauthorized:
		result.Message = "Authentication failed - check your personal access token"
	case http.StatusForbidden:
		result.Message = "Access denied - check token permissions"
	case http.StatusNotFound:
		result.Message = "API endpoint not found - check base URL and Confluence version"
	default:
		result.Message = fmt.Sprintf("HTTP %d: %s", apiErr.StatusCode, firstNonEmpty(apiErr.Summary(), http.StatusText(apiErr.StatusCode)))
	}

	return result
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
