// Package features converts qualitative determinations into the numeric
// feature vector consumed by downstream models.
package features

import (
	"github.com/rotisserie/eris"

	"github.com/sells-group/contentmix/internal/model"
	"github.com/sells-group/contentmix/internal/registry"
)

// Flatten encodes a with the default registry.
func Flatten(a model.QualitativeAnalysis) model.FeatureVector {
	return FlattenWith(registry.Default(), a)
}

// FlattenWith encodes every flattenable feature of a per the registry's
// encoding rules. Values without an encoding ("Not Applicable", free text)
// are omitted from the result.
func FlattenWith(reg *registry.Registry, a model.QualitativeAnalysis) model.FeatureVector {
	out := make(model.FeatureVector)
	for _, spec := range reg.Features() {
		if spec.Flatten == nil {
			continue
		}
		v, ok := a.Feature(spec.Name)
		if !ok {
			continue
		}
		if n, ok := spec.Encode(v); ok {
			out[spec.Flatten.Key] = n
		}
	}
	return out
}

// Override is a user edit to one determination. Confidence and Reasoning
// default to the model's values when omitted.
type Override struct {
	Determination any      `json:"determination"`
	Confidence    *float64 `json:"confidenceScore,omitempty"`
	Reasoning     *string  `json:"reasoning,omitempty"`
}

// ApplyOverrides returns a copy of a with the overrides applied. Each
// override is validated against the registry; the first invalid override
// aborts and a is returned unchanged.
func ApplyOverrides(a model.QualitativeAnalysis, overrides map[string]Override) (model.QualitativeAnalysis, error) {
	out := a
	for name, o := range overrides {
		spec, ok := registry.Describe(name)
		if !ok {
			return a, eris.Errorf("features: override for unknown feature %s", name)
		}
		cur, _ := out.Feature(name)
		next, err := apply(spec, cur, o)
		if err != nil {
			return a, err
		}
		if err := spec.Validate(next); err != nil {
			return a, eris.Wrapf(err, "features: override %s", name)
		}
		if err := out.SetFeature(name, next); err != nil {
			return a, eris.Wrapf(err, "features: override %s", name)
		}
	}
	return out, nil
}

func apply(spec registry.FeatureSpec, cur model.FeatureValue, o Override) (model.FeatureValue, error) {
	next := cur
	switch spec.Kind {
	case model.KindBoolean:
		b, ok := o.Determination.(bool)
		if !ok {
			return next, eris.Errorf("features: override %s: want boolean, got %T", spec.Name, o.Determination)
		}
		next.Bool = b
	case model.KindCategorical:
		s, ok := o.Determination.(string)
		if !ok {
			return next, eris.Errorf("features: override %s: want string, got %T", spec.Name, o.Determination)
		}
		next.Category = s
	case model.KindNumeric:
		switch n := o.Determination.(type) {
		case float64:
			next.Number = n
		case int:
			next.Number = float64(n)
		default:
			return next, eris.Errorf("features: override %s: want number, got %T", spec.Name, o.Determination)
		}
	}
	if o.Confidence != nil {
		next.Confidence = *o.Confidence
	}
	if o.Reasoning != nil {
		next.Reasoning = *o.Reasoning
	}
	return next, nil
}
