package flow

import (
	"context"
	"math"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/contentmix/internal/model"
	"github.com/sells-group/contentmix/internal/prompt"
)

type attributedWire struct {
	Creator         *string  `json:"creator"`
	ContentSnID     *string  `json:"contentSnId"`
	AttributedValue *float64 `json:"attributedValue"`
	Conversions     *float64 `json:"conversions"`
}

type attributionWire struct {
	AttributedAssets []attributedWire `json:"attributedAssets"`
}

// Attribution distributes the revenue pool across a batch of assets by
// conversion share.
func (e *Executor) Attribution(ctx context.Context, req model.AttributionRequest) Outcome[model.AttributionReport] {
	return run(ctx, e, ContentAttribution, func() (Request, error) {
		r, err := prompt.Attribution(req)
		if err != nil {
			return Request{}, err
		}
		return Request{System: r.System, Instruction: r.Instruction}, nil
	}, func(text string) (model.AttributionReport, error) {
		rep, err := decodeAttribution(req, text)
		if err == nil {
			e.checkSum(req, rep)
		}
		return rep, err
	})
}

func decodeAttribution(req model.AttributionRequest, text string) (model.AttributionReport, error) {
	var w attributionWire
	if err := decodeOutput(text, &w); err != nil {
		return model.AttributionReport{}, err
	}

	inputs := make(map[string]model.AssetPerformance, len(req.Assets))
	for _, a := range req.Assets {
		inputs[a.ContentSnID] = a
	}

	var p problems
	if w.AttributedAssets == nil {
		p.addf("attributedAssets is missing")
	}
	got := make(map[string]model.AttributedAsset, len(w.AttributedAssets))
	for i, a := range w.AttributedAssets {
		if blank(a.ContentSnID) {
			p.addf("attributedAssets[%d].contentSnId is missing", i)
			continue
		}
		id := strings.TrimSpace(*a.ContentSnID)
		in, ok := inputs[id]
		if !ok {
			p.addf("attributedAssets[%d] has unknown contentSnId %q", i, id)
			continue
		}
		if _, dup := got[id]; dup {
			p.addf("contentSnId %q is attributed more than once", id)
			continue
		}

		out := model.AttributedAsset{ContentSnID: id, Conversions: in.Conversions}
		valid := true
		if blank(a.Creator) {
			p.addf("%s: creator is missing", id)
			valid = false
		} else {
			out.Creator = strings.TrimSpace(*a.Creator)
		}
		switch {
		case a.AttributedValue == nil:
			p.addf("%s: attributedValue is missing", id)
			valid = false
		case math.IsNaN(*a.AttributedValue) || math.IsInf(*a.AttributedValue, 0) || *a.AttributedValue < 0:
			p.addf("%s: attributedValue %g must be a non-negative number", id, *a.AttributedValue)
			valid = false
		default:
			out.AttributedValue = *a.AttributedValue
		}
		switch {
		case a.Conversions == nil:
			p.addf("%s: conversions is missing", id)
			valid = false
		case *a.Conversions != float64(in.Conversions):
			p.addf("%s: conversions %g do not match input %d", id, *a.Conversions, in.Conversions)
			valid = false
		}
		if valid {
			got[id] = out
		}
	}
	for _, a := range req.Assets {
		if _, ok := got[a.ContentSnID]; !ok && !p.mentions(a.ContentSnID) {
			p.addf("%s is not attributed", a.ContentSnID)
		}
	}
	if err := p.err(ContentAttribution); err != nil {
		return model.AttributionReport{}, err
	}

	rep := model.AttributionReport{AttributedAssets: make([]model.AttributedAsset, 0, len(req.Assets))}
	for _, a := range req.Assets {
		rep.AttributedAssets = append(rep.AttributedAssets, got[a.ContentSnID])
	}
	return rep, nil
}

// checkSum warns when the attributed values stray from the revenue pool.
// The sum is instructed, not enforced.
func (e *Executor) checkSum(req model.AttributionRequest, rep model.AttributionReport) {
	var sum float64
	for _, a := range rep.AttributedAssets {
		sum += a.AttributedValue
	}
	if dev := math.Abs(sum - req.TotalRevenue); dev > e.tolerance*req.TotalRevenue {
		zap.L().Warn("flow: attributed values do not sum to the revenue pool",
			zap.Float64("sum", sum),
			zap.Float64("total_revenue", req.TotalRevenue),
			zap.Float64("deviation", dev),
		)
	}
}
