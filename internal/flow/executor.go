package flow

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/contentmix/internal/media"
	"github.com/sells-group/contentmix/internal/model"
	"github.com/sells-group/contentmix/internal/prompt"
	"github.com/sells-group/contentmix/internal/registry"
	"github.com/sells-group/contentmix/pkg/anthropic"
)

// Recorder receives the audit record of every flow invocation.
type Recorder interface {
	RecordFlowRun(ctx context.Context, run model.FlowRun) error
}

// Executor runs flows against an Inferencer. It holds no per-call state
// and is safe for concurrent use.
type Executor struct {
	inferencer Inferencer
	registry   *registry.Registry
	tolerance  float64
	revenue    float64
	recorders  []Recorder
	now        func() time.Time
}

// Option configures an Executor.
type Option func(*Executor)

// WithRegistry replaces the default feature registry.
func WithRegistry(r *registry.Registry) Option {
	return func(e *Executor) { e.registry = r }
}

// WithRecorder adds a flow run recorder. Recording errors are logged only.
func WithRecorder(r Recorder) Option {
	return func(e *Executor) { e.recorders = append(e.recorders, r) }
}

// WithSumTolerance sets the fraction of the revenue pool the attributed
// values may deviate by before a warning is logged.
func WithSumTolerance(f float64) Option {
	return func(e *Executor) { e.tolerance = f }
}

// WithTotalRevenue sets the revenue pool used when an attribution request
// passed to Run carries none.
func WithTotalRevenue(v float64) Option {
	return func(e *Executor) { e.revenue = v }
}

// NewExecutor creates an Executor.
func NewExecutor(inf Inferencer, opts ...Option) *Executor {
	e := &Executor{
		inferencer: inf,
		registry:   registry.Default(),
		tolerance:  0.01,
		now:        time.Now,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Registry returns the feature registry used for validation.
func (e *Executor) Registry() *registry.Registry { return e.registry }

// run is the shared flow skeleton: build the request, infer once, decode.
func run[T any](ctx context.Context, e *Executor, name Name, build func() (Request, error), decode func(string) (T, error)) Outcome[T] {
	start := e.now()
	out := func() Outcome[T] {
		req, err := build()
		if err != nil {
			return failed[T](name, KindInput, err)
		}
		req.Flow = name

		resp, err := e.inferencer.Infer(ctx, req)
		if err != nil {
			return failed[T](name, KindCollaborator, err)
		}
		if resp == nil {
			return failed[T](name, KindSchema, ErrEmptyOutput)
		}

		v, err := decode(resp.Text)
		var o Outcome[T]
		if err != nil {
			o = failed[T](name, KindSchema, err)
		} else {
			o = completed(v)
		}
		o.Usage = resp.Usage
		return o
	}()
	out.Duration = e.now().Sub(start)

	e.record(ctx, name, out.State, out.Err, out.Usage, out.Duration, start)
	return out
}

func (e *Executor) record(ctx context.Context, name Name, state model.FlowState, ferr *FlowError, usage model.TokenUsage, d time.Duration, at time.Time) {
	fields := []zap.Field{
		zap.String("flow", string(name)),
		zap.String("state", string(state)),
		zap.Duration("duration", d),
	}
	if ferr != nil {
		fields = append(fields, zap.String("kind", string(ferr.Kind)), zap.Error(ferr.Cause))
		zap.L().Warn("flow: failed", fields...)
	} else {
		zap.L().Info("flow: completed", fields...)
	}

	if len(e.recorders) == 0 {
		return
	}
	fr := model.FlowRun{
		ID:         uuid.NewString(),
		Flow:       string(name),
		State:      state,
		DurationMs: d.Milliseconds(),
		Usage:      usage,
		CreatedAt:  at.UTC(),
	}
	if ferr != nil {
		fr.ErrorKind = string(ferr.Kind)
		fr.Error = ferr.Cause.Error()
	}
	for _, r := range e.recorders {
		if err := r.RecordFlowRun(ctx, fr); err != nil {
			zap.L().Warn("flow: record run failed", zap.String("flow", string(name)), zap.Error(err))
		}
	}
}

// mediaRequest checks the media reference and attaches inlineable images.
func mediaRequest(r prompt.Rendered, ref string) (Request, error) {
	req := Request{System: r.System, Instruction: r.Instruction}
	if media.IsDataURI(ref) {
		f, err := media.ParseDataURI(ref)
		if err != nil {
			return Request{}, err
		}
		if _, err := f.Kind(); err != nil {
			return Request{}, err
		}
		if media.Inlineable(f.MIMEType) {
			req.Images = []anthropic.Image{{MediaType: f.MIMEType, Data: dataPayload(ref)}}
		}
		return req, nil
	}
	if mt := media.ReferenceType(ref); mt != "" {
		if _, err := media.Classify(mt); err != nil {
			return Request{}, err
		}
	}
	return req, nil
}

// dataPayload returns the base64 part of a data URI without re-encoding.
func dataPayload(ref string) string {
	_, payload, _ := strings.Cut(ref, ",")
	return payload
}

// IsKind reports whether err is a FlowError of kind k.
func IsKind(err error, k ErrorKind) bool {
	var fe *FlowError
	return errors.As(err, &fe) && fe.Kind == k
}

// AsFlowError extracts a FlowError, wrapping any other error as a
// collaborator failure of flow.
func AsFlowError(flow Name, err error) *FlowError {
	var fe *FlowError
	if errors.As(err, &fe) {
		return fe
	}
	return &FlowError{Flow: flow, Kind: KindCollaborator, Cause: eris.Wrap(err, "flow: unexpected error")}
}
