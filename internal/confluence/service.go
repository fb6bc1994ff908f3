package confluence

import (
	"context"
	"log/slog"
	"net/url"
	"strings"
	"time"
)

// API is the subset of the REST client used by the service. It is
// implemented by *atlassian.Client.
type API interface {
	Get(ctx context.Context, path string, query url.Values, out any) error
	Post(ctx context.Context, path string, body, out any) error
	Put(ctx context.Context, path string, body, out any) error
	Delete(ctx context.Context, path string, out any) error
}

// CasePolicy controls how a space key is rewritten before it is sent.
type CasePolicy string

const (
	CasePreserve CasePolicy = "preserve"
	CaseUpper    CasePolicy = "upper"
	CaseLower    CasePolicy = "lower"
)

func (p CasePolicy) apply(key string) string {
	key = strings.TrimSpace(key)
	switch p {
	case CaseUpper:
		return strings.ToUpper(key)
	case CaseLower:
		return strings.ToLower(key)
	}
	return key
}

// Service exposes the Confluence operations offered as MCP tools. It holds
// no mutable state and is safe for concurrent use.
type Service struct {
	api        API
	createCase CasePolicy
	updateCase CasePolicy
	now        func() time.Time
	logger     *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithSpaceKeyCase sets the space key case policy for page creation and
// page updates.
func WithSpaceKeyCase(create, update CasePolicy) Option {
	return func(s *Service) {
		s.createCase = create
		s.updateCase = update
	}
}

// WithClock overrides the time source used for deletion timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// WithLogger sets the logger used for non-fatal events such as search fallbacks.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// NewService constructs a Confluence service.
func NewService(api API, opts ...Option) *Service {
	s := &Service{
		api:        api,
		createCase: CasePreserve,
		updateCase: CasePreserve,
		now:        time.Now,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func contentPath(parts ...string) string {
	builder := strings.Builder{}
	builder.WriteString("/content")

	for _, part := range parts {
		if trimmed := strings.Trim(part, "/"); trimmed != "" {
			builder.WriteByte('/')
			builder.WriteString(trimmed)
		}
	}

	return builder.String()
}

func expandParam(requested, defaults []string) string {
	if len(requested) == 0 {
		return strings.Join(defaults, ",")
	}
	cleaned := make([]string, 0, len(requested))
	for _, e := range requested {
		if e = strings.TrimSpace(e); e != "" {
			cleaned = append(cleaned, e)
		}
	}
	return strings.Join(cleaned, ",")
}

func windowQuery(start, limit int) url.Values {
	q := url.Values{}
	q.Set("start", itoa(start))
	q.Set("limit", itoa(limit))
	return q
}
