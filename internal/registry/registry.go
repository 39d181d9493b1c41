// Package registry holds the static definitions of every analyzable creative
// feature: its kind, allowed values, and flattening rule.
package registry

import (
	_ "embed"
	"math"
	"slices"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/contentmix/internal/model"
)

//go:embed features.yaml
var featuresDoc []byte

// Range bounds a numeric determination (inclusive).
type Range struct {
	Min float64 `yaml:"min" json:"min"`
	Max float64 `yaml:"max" json:"max"`
}

// Contains reports whether v lies within the range.
func (r Range) Contains(v float64) bool {
	return v >= r.Min && v <= r.Max
}

// Flattening maps a determination onto one key of the feature vector.
// Booleans encode as 0/1 and numerics pass through, so Encoding is only set
// for categorical features.
type Flattening struct {
	Key      string             `yaml:"key" json:"key"`
	Encoding map[string]float64 `yaml:"encoding" json:"encoding,omitempty"`
}

// Category is a named group of features.
type Category struct {
	Name  string `yaml:"name" json:"name"`
	Label string `yaml:"label" json:"label"`
}

// FeatureSpec describes one analyzable feature.
type FeatureSpec struct {
	Name       string            `yaml:"name" json:"name"`
	Kind       model.FeatureKind `yaml:"kind" json:"kind"`
	Label      string            `yaml:"label" json:"label"`
	Guidance   string            `yaml:"guidance" json:"guidance"`
	Categories []string          `yaml:"categories" json:"categories,omitempty"`
	// Open categorical features accept any non-empty value; Categories then
	// only lists suggestions.
	Open    bool        `yaml:"open" json:"open,omitempty"`
	Range   *Range      `yaml:"range" json:"range,omitempty"`
	Flatten *Flattening `yaml:"flatten" json:"flatten,omitempty"`
}

// Group returns the category portion of the dotted feature name.
func (s FeatureSpec) Group() string {
	group, _, _ := strings.Cut(s.Name, ".")
	return group
}

// Allows reports whether value is an acceptable categorical determination.
// The "Not Applicable" sentinel is accepted by every categorical feature.
func (s FeatureSpec) Allows(value string) bool {
	if s.Kind != model.KindCategorical {
		return false
	}
	if value == model.NotApplicable {
		return true
	}
	if s.Open {
		return strings.TrimSpace(value) != ""
	}
	return slices.Contains(s.Categories, value)
}

// AllowedValues returns the enumeration offered to the model and to UI
// override controls, including the "Not Applicable" sentinel.
func (s FeatureSpec) AllowedValues() []string {
	if s.Kind != model.KindCategorical {
		return nil
	}
	out := make([]string, 0, len(s.Categories)+1)
	out = append(out, s.Categories...)
	return append(out, model.NotApplicable)
}

// Validate checks a determination against the feature definition: kind, enumeration
// membership or numeric range, confidence in [0,1], and non-empty reasoning.
func (s FeatureSpec) Validate(v model.FeatureValue) error {
	if v.Kind != s.Kind {
		return eris.Errorf("registry: %s: expected %s determination, got %s", s.Name, s.Kind, v.Kind)
	}
	switch s.Kind {
	case model.KindCategorical:
		if !s.Allows(v.Category) {
			return eris.Errorf("registry: %s: %q is not one of %s", s.Name, v.Category, strings.Join(s.AllowedValues(), ", "))
		}
	case model.KindNumeric:
		if math.IsNaN(v.Number) || math.IsInf(v.Number, 0) {
			return eris.Errorf("registry: %s: determination is not a finite number", s.Name)
		}
		if s.Range != nil && !s.Range.Contains(v.Number) {
			return eris.Errorf("registry: %s: %g outside range [%g, %g]", s.Name, v.Number, s.Range.Min, s.Range.Max)
		}
	}
	if math.IsNaN(v.Confidence) || v.Confidence < 0 || v.Confidence > 1 {
		return eris.Errorf("registry: %s: confidence %g outside [0, 1]", s.Name, v.Confidence)
	}
	if strings.TrimSpace(v.Reasoning) == "" {
		return eris.Errorf("registry: %s: reasoning is empty", s.Name)
	}
	return nil
}

// Encode returns the flattened value of v. The second return is false when
// the feature is not flattened or the value has no encoding.
func (s FeatureSpec) Encode(v model.FeatureValue) (float64, bool) {
	if s.Flatten == nil || v.Kind != s.Kind {
		return 0, false
	}
	switch s.Kind {
	case model.KindBoolean:
		if v.Bool {
			return 1, true
		}
		return 0, true
	case model.KindNumeric:
		return v.Number, true
	default:
		n, ok := s.Flatten.Encoding[v.Category]
		return n, ok
	}
}

// Registry is an immutable, indexed set of feature specs.
type Registry struct {
	categories []Category
	features   []FeatureSpec
	byName     map[string]int
}

type document struct {
	Categories []Category    `yaml:"categories"`
	Features   []FeatureSpec `yaml:"features"`
}

// Load parses and checks a registry document.
func Load(data []byte) (*Registry, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, eris.Wrap(err, "registry: parse document")
	}
	if len(doc.Features) == 0 {
		return nil, eris.New("registry: document defines no features")
	}

	groups := make(map[string]bool, len(doc.Categories))
	for _, c := range doc.Categories {
		groups[c.Name] = true
	}

	r := &Registry{
		categories: doc.Categories,
		features:   doc.Features,
		byName:     make(map[string]int, len(doc.Features)),
	}
	keys := make(map[string]string)
	for i, f := range doc.Features {
		if _, dup := r.byName[f.Name]; dup {
			return nil, eris.Errorf("registry: duplicate feature %s", f.Name)
		}
		if !groups[f.Group()] {
			return nil, eris.Errorf("registry: feature %s has undeclared category", f.Name)
		}
		if err := checkSpec(f); err != nil {
			return nil, err
		}
		if f.Flatten != nil {
			if other, dup := keys[f.Flatten.Key]; dup {
				return nil, eris.Errorf("registry: flatten key %s used by %s and %s", f.Flatten.Key, other, f.Name)
			}
			keys[f.Flatten.Key] = f.Name
		}
		r.byName[f.Name] = i
	}
	return r, nil
}

func checkSpec(f FeatureSpec) error {
	switch f.Kind {
	case model.KindBoolean:
	case model.KindCategorical:
		if len(f.Categories) == 0 {
			return eris.Errorf("registry: categorical feature %s has no categories", f.Name)
		}
		if f.Flatten != nil {
			for _, c := range f.Categories {
				if _, ok := f.Flatten.Encoding[c]; !ok {
					return eris.Errorf("registry: feature %s: category %q has no encoding", f.Name, c)
				}
			}
		}
	case model.KindNumeric:
		if f.Range == nil || f.Range.Min > f.Range.Max {
			return eris.Errorf("registry: numeric feature %s needs a valid range", f.Name)
		}
	default:
		return eris.Errorf("registry: feature %s has unknown kind %q", f.Name, f.Kind)
	}
	if f.Flatten != nil && f.Flatten.Key == "" {
		return eris.Errorf("registry: feature %s has empty flatten key", f.Name)
	}
	return nil
}

// MustLoad is Load that panics on error.
func MustLoad(data []byte) *Registry {
	r, err := Load(data)
	if err != nil {
		panic(err)
	}
	return r
}

// Describe looks up a feature by dotted name.
func (r *Registry) Describe(name string) (FeatureSpec, bool) {
	i, ok := r.byName[name]
	if !ok {
		return FeatureSpec{}, false
	}
	return r.features[i], true
}

// Features returns every feature spec in document order.
func (r *Registry) Features() []FeatureSpec {
	return slices.Clone(r.features)
}

// Categories returns the feature groups in document order.
func (r *Registry) Categories() []Category {
	return slices.Clone(r.categories)
}

// FlattenKeys returns the feature vector keys in document order.
func (r *Registry) FlattenKeys() []string {
	var keys []string
	for _, f := range r.features {
		if f.Flatten != nil {
			keys = append(keys, f.Flatten.Key)
		}
	}
	return keys
}

// ValidateDetermination validates v against the named feature.
func (r *Registry) ValidateDetermination(name string, v model.FeatureValue) error {
	spec, ok := r.Describe(name)
	if !ok {
		return eris.Errorf("registry: unknown feature %s", name)
	}
	return spec.Validate(v)
}

var defaultRegistry = MustLoad(featuresDoc)

// Default returns the registry built from the embedded feature document.
func Default() *Registry { return defaultRegistry }

// Describe looks up a feature in the default registry.
func Describe(name string) (FeatureSpec, bool) { return defaultRegistry.Describe(name) }

// Features returns the default registry's features.
func Features() []FeatureSpec { return defaultRegistry.Features() }

// Categories returns the default registry's categories.
func Categories() []Category { return defaultRegistry.Categories() }

// ValidateDetermination validates v against the default registry.
func ValidateDetermination(name string, v model.FeatureValue) error {
	return defaultRegistry.ValidateDetermination(name, v)
}
