// Package flow runs the four analysis flows. Each flow renders one prompt,
// makes one inference call and validates the reply field by field before
// reporting it as completed. There are no retries and no defaults: any
// problem fails the flow.
package flow

import (
	"fmt"
	"time"

	"github.com/sells-group/contentmix/internal/model"
)

// Name identifies a flow.
type Name string

const (
	BrandSafety        Name = "brandSafety"
	AssetAnalysis      Name = "assetAnalysis"
	CreativeScorecard  Name = "creativeScorecard"
	ContentAttribution Name = "contentAttribution"
)

// Names returns every flow name.
func Names() []Name {
	return []Name{BrandSafety, AssetAnalysis, CreativeScorecard, ContentAttribution}
}

// ParseName resolves a flow name.
func ParseName(s string) (Name, bool) {
	for _, n := range Names() {
		if string(n) == s {
			return n, true
		}
	}
	return "", false
}

// ErrorKind classifies why a flow failed.
type ErrorKind string

const (
	// KindCollaborator covers inference errors, timeouts and an open circuit.
	KindCollaborator ErrorKind = "collaborator"
	// KindSchema covers empty, non-JSON or schema-violating output.
	KindSchema ErrorKind = "schema"
	// KindInput covers invalid caller input, rejected before inference.
	KindInput ErrorKind = "input"
)

// FlowError is the failure of one flow invocation.
type FlowError struct {
	Flow  Name
	Kind  ErrorKind
	Cause error
}

func (e *FlowError) Error() string {
	return fmt.Sprintf("flow %s: %s error: %v", e.Flow, e.Kind, e.Cause)
}

func (e *FlowError) Unwrap() error { return e.Cause }

// Outcome is the result of a flow. Value is set only when State is
// completed, Err only when it is failed.
type Outcome[T any] struct {
	State    model.FlowState
	Value    *T
	Err      *FlowError
	Usage    model.TokenUsage
	Duration time.Duration
}

// Completed reports whether the flow produced a validated value.
func (o Outcome[T]) Completed() bool { return o.State == model.FlowCompleted }

// Result unpacks the outcome into the usual value, error pair.
func (o Outcome[T]) Result() (*T, error) {
	switch o.State {
	case model.FlowCompleted:
		return o.Value, nil
	case model.FlowFailed:
		return nil, o.Err
	}
	return nil, fmt.Errorf("flow: outcome is %s", o.State)
}

func completed[T any](v T) Outcome[T] {
	return Outcome[T]{State: model.FlowCompleted, Value: &v}
}

func failed[T any](flow Name, kind ErrorKind, cause error) Outcome[T] {
	return Outcome[T]{State: model.FlowFailed, Err: &FlowError{Flow: flow, Kind: kind, Cause: cause}}
}
