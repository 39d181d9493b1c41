package flow

import (
	"bytes"
	"context"
	"encoding/json"

	"github.com/rotisserie/eris"

	"github.com/sells-group/contentmix/internal/model"
	"github.com/sells-group/contentmix/internal/prompt"
)

// ErrUnknownFlow is returned by Run for a name that is not a flow.
var ErrUnknownFlow = eris.New("flow: unknown flow")

// Result is the kind-erased product of Run.
type Result struct {
	Flow       Name             `json:"flow"`
	Output     any              `json:"output"`
	Usage      model.TokenUsage `json:"usage"`
	DurationMs int64            `json:"durationMs"`
}

// Run decodes the JSON input of the named flow and executes it. An unknown
// name returns ErrUnknownFlow; every other failure is a *FlowError.
func (e *Executor) Run(ctx context.Context, name string, input []byte) (*Result, error) {
	n, ok := ParseName(name)
	if !ok {
		return nil, eris.Wrapf(ErrUnknownFlow, "%q", name)
	}

	switch n {
	case ContentAttribution:
		var req model.AttributionRequest
		if err := decodeInput(input, &req); err != nil {
			return nil, &FlowError{Flow: n, Kind: KindInput, Cause: err}
		}
		if req.TotalRevenue == 0 {
			req.TotalRevenue = e.revenue
		}
		return result(n, e.Attribution(ctx, req))
	default:
		var in prompt.MediaInput
		if err := decodeInput(input, &in); err != nil {
			return nil, &FlowError{Flow: n, Kind: KindInput, Cause: err}
		}
		switch n {
		case BrandSafety:
			return result(n, e.BrandSafety(ctx, in))
		case AssetAnalysis:
			return result(n, e.AssetAnalysis(ctx, in))
		default:
			return result(n, e.Scorecard(ctx, in))
		}
	}
}

func result[T any](n Name, o Outcome[T]) (*Result, error) {
	v, err := o.Result()
	if err != nil {
		return nil, err
	}
	return &Result{Flow: n, Output: v, Usage: o.Usage, DurationMs: o.Duration.Milliseconds()}, nil
}

func decodeInput(input []byte, dst any) error {
	if len(bytes.TrimSpace(input)) == 0 {
		return eris.New("flow: request body is empty")
	}
	dec := json.NewDecoder(bytes.NewReader(input))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return eris.Wrap(err, "flow: decode input")
	}
	return nil
}
