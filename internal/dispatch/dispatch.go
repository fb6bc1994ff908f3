// Package dispatch routes tool invocations to Confluence operations and
// wraps their outcome in the success/failure envelope.
package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/google/uuid"

	"github.com/ylchen07/confluence-dc-mcp/internal/confluence"
	"github.com/ylchen07/confluence-dc-mcp/internal/state"
)

// Tool names recognised by the dispatcher.
const (
	ToolCreatePage       = "confluence.create_page"
	ToolGetPage          = "confluence.get_page"
	ToolUpdatePage       = "confluence.update_page"
	ToolDeletePage       = "confluence.delete_page"
	ToolSearchPages      = "confluence.search_pages"
	ToolListSpaces       = "confluence.list_spaces"
	ToolListPageVersions = "confluence.list_page_versions"
	ToolListComments     = "confluence.list_comments"
	ToolAddComment       = "confluence.add_comment"
	ToolUpdateComment    = "confluence.update_comment"
	ToolDeleteComment    = "confluence.delete_comment"
)

// ProtocolError reports a request the dispatcher cannot route. It is
// returned as an error and never wrapped in an envelope.
type ProtocolError struct {
	Tool string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("unknown tool %q", e.Tool)
}

// Envelope is the uniform result of a routed call: {success:true, ...payload}
// or {success:false, error, errorKind, retryable}.
type Envelope map[string]any

// Success reports the envelope's success flag.
func (e Envelope) Success() bool {
	ok, _ := e["success"].(bool)
	return ok
}

// Handler runs one operation against a raw argument bag.
type Handler func(ctx context.Context, args map[string]any) (any, error)

// Dispatcher maps tool names to handlers. It is immutable after New.
type Dispatcher struct {
	handlers map[string]Handler
	session  *state.Session
	logger   *slog.Logger
	now      func() time.Time
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithSession records call outcomes into session.
func WithSession(session *state.Session) Option {
	return func(d *Dispatcher) {
		d.session = session
	}
}

// WithLogger sets the logger used for per-call logging.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

// New builds a dispatcher over the Confluence service.
func New(svc *confluence.Service, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		logger: slog.Default(),
		now:    time.Now,
		handlers: map[string]Handler{
			ToolCreatePage:       bind(confluence.OpCreatePage, svc.CreatePage),
			ToolGetPage:          bind(confluence.OpGetPage, svc.GetPage),
			ToolUpdatePage:       bind(confluence.OpUpdatePage, svc.UpdatePage),
			ToolDeletePage:       bind(confluence.OpDeletePage, svc.DeletePage),
			ToolSearchPages:      bind(confluence.OpSearchPages, svc.SearchPages),
			ToolListSpaces:       bind(confluence.OpListSpaces, svc.ListSpaces),
			ToolListPageVersions: bind(confluence.OpListPageVersions, svc.ListPageVersions),
			ToolListComments:     bind(confluence.OpListComments, svc.ListComments),
			ToolAddComment:       bind(confluence.OpAddComment, svc.AddComment),
			ToolUpdateComment:    bind(confluence.OpUpdateComment, svc.UpdateComment),
			ToolDeleteComment:    bind(confluence.OpDeleteComment, svc.DeleteComment),
		},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Names returns the registered tool names, sorted.
func (d *Dispatcher) Names() []string {
	names := make([]string, 0, len(d.handlers))
	for name := range d.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Dispatch runs the named tool. Business failures come back as a failure
// envelope with a nil error; only an unknown tool or an unencodable result
// yields an error.
func (d *Dispatcher) Dispatch(ctx context.Context, name string, args map[string]any) (Envelope, error) {
	handler, ok := d.handlers[name]
	if !ok {
		d.logger.Warn("unknown tool requested", slog.String("tool", name))
		return nil, &ProtocolError{Tool: name}
	}

	logger := d.logger.With(
		slog.String("request_id", uuid.NewString()),
		slog.String("tool", name),
	)

	started := time.Now()
	payload, err := handler(ctx, args)
	elapsed := time.Since(started)

	if err != nil {
		ce, ok := confluence.AsError(err)
		if !ok {
			ce = confluence.Classify(confluence.Op(name), confluence.Subject{}, err)
		}
		logger.Warn("tool call failed",
			slog.String("kind", string(ce.Kind)),
			slog.Bool("retryable", ce.Retryable()),
			slog.Duration("duration", elapsed),
			slog.String("error", ce.Message),
		)
		if d.session != nil {
			d.session.RecordFailure(name, string(ce.Kind), ce.Message, d.now())
		}
		return Failure(ce), nil
	}

	env, err := Success(payload)
	if err != nil {
		logger.Error("encode tool result", slog.Any("error", err))
		return nil, fmt.Errorf("dispatch: %s: %w", name, err)
	}

	logger.Info("tool call succeeded", slog.Duration("duration", elapsed))
	if d.session != nil {
		d.session.RecordSuccess(name, d.now())
	}
	return env, nil
}

// Success flattens payload into a success envelope.
func Success(payload any) (Envelope, error) {
	env := Envelope{}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode payload: %w", err)
		}
		if err := json.Unmarshal(data, &env); err != nil {
			return nil, fmt.Errorf("payload is not an object: %w", err)
		}
	}
	env["success"] = true
	return env, nil
}

// Failure builds the failure envelope of a classified error.
func Failure(e *confluence.Error) Envelope {
	return Envelope{
		"success":   false,
		"error":     e.Message,
		"errorKind": string(e.Kind),
		"retryable": e.Retryable(),
	}
}

// bind adapts a typed operation to a Handler. Arguments are decoded with
// weak typing so "25" and 25.0 both fill an int field; unknown keys are
// rejected.
func bind[P, R any](op confluence.Op, fn func(context.Context, P) (R, error)) Handler {
	return func(ctx context.Context, args map[string]any) (any, error) {
		var params P
		if err := decode(args, &params); err != nil {
			return nil, confluence.Invalid(op, err)
		}

		res, err := fn(ctx, params)
		if err != nil {
			return nil, confluence.Classify(op, confluence.Subject{}, err)
		}
		return res, nil
	}
}

func decode(args map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		TagName:          "json",
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	})
	if err != nil {
		return err
	}
	return dec.Decode(args)
}
