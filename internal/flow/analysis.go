package flow

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/contentmix/internal/features"
	"github.com/sells-group/contentmix/internal/model"
	"github.com/sells-group/contentmix/internal/prompt"
	"github.com/sells-group/contentmix/internal/registry"
)

type determinationWire struct {
	Determination   json.RawMessage `json:"determination"`
	ConfidenceScore *float64        `json:"confidenceScore"`
	Reasoning       *string         `json:"reasoning"`
}

// analysisWire ignores any mlReadyFeatures in the reply. The vector is
// always recomputed from the validated determinations.
type analysisWire struct {
	Analysis map[string]map[string]determinationWire `json:"analysis"`
}

// AssetAnalysis scores every registry feature of a creative and flattens
// the result into the ML feature vector.
func (e *Executor) AssetAnalysis(ctx context.Context, in prompt.MediaInput) Outcome[model.AssetAnalysis] {
	return run(ctx, e, AssetAnalysis, func() (Request, error) {
		r, err := prompt.AssetAnalysis(e.registry, in)
		if err != nil {
			return Request{}, err
		}
		return mediaRequest(r, in.Media)
	}, func(text string) (model.AssetAnalysis, error) {
		return decodeAnalysis(e.registry, text)
	})
}

func decodeAnalysis(reg *registry.Registry, text string) (model.AssetAnalysis, error) {
	var w analysisWire
	if err := decodeOutput(text, &w); err != nil {
		return model.AssetAnalysis{}, err
	}
	if w.Analysis == nil {
		return model.AssetAnalysis{}, problems{"analysis is missing"}.err(AssetAnalysis)
	}

	var a model.QualitativeAnalysis
	var p problems
	for _, spec := range reg.Features() {
		group, field, _ := strings.Cut(spec.Name, ".")
		d, ok := w.Analysis[group][field]
		if !ok {
			p.addf("%s is missing", spec.Name)
			continue
		}
		v, err := determinationValue(spec, d)
		if err != nil {
			p.addf("%s: %v", spec.Name, err)
			continue
		}
		if err := spec.Validate(v); err != nil {
			p.addf("%s", strings.TrimPrefix(err.Error(), "registry: "))
			continue
		}
		if err := a.SetFeature(spec.Name, v); err != nil {
			p.addf("%v", err)
		}
	}
	if err := p.err(AssetAnalysis); err != nil {
		return model.AssetAnalysis{}, err
	}

	return model.AssetAnalysis{
		Analysis:        a,
		MLReadyFeatures: features.FlattenWith(reg, a),
	}, nil
}

// determinationValue decodes the wire determination using the kind the
// registry declares. Missing fields are errors, never zero values.
func determinationValue(spec registry.FeatureSpec, d determinationWire) (model.FeatureValue, error) {
	v := model.FeatureValue{Kind: spec.Kind}
	if isNull(d.Determination) {
		return v, eris.New("determination is missing")
	}
	if d.ConfidenceScore == nil {
		return v, eris.New("confidenceScore is missing")
	}
	if d.Reasoning == nil {
		return v, eris.New("reasoning is missing")
	}
	v.Confidence = *d.ConfidenceScore
	v.Reasoning = *d.Reasoning

	var err error
	switch spec.Kind {
	case model.KindBoolean:
		err = json.Unmarshal(d.Determination, &v.Bool)
	case model.KindCategorical:
		err = json.Unmarshal(d.Determination, &v.Category)
	case model.KindNumeric:
		err = json.Unmarshal(d.Determination, &v.Number)
	}
	if err != nil {
		return v, eris.Errorf("determination %s is not a %s value", string(d.Determination), spec.Kind)
	}
	return v, nil
}
