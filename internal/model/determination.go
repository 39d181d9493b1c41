package model

// FeatureKind identifies the value type of a feature determination.
type FeatureKind string

const (
	KindBoolean     FeatureKind = "boolean"
	KindCategorical FeatureKind = "categorical"
	KindNumeric     FeatureKind = "numeric"
)

// NotApplicable is the categorical sentinel for features that do not apply
// to the asset's format (e.g. pacing for a static image).
const NotApplicable = "Not Applicable"

// BoolDetermination is a yes/no judgment with confidence and reasoning.
type BoolDetermination struct {
	Determination   bool    `json:"determination"`
	ConfidenceScore float64 `json:"confidenceScore"`
	Reasoning       string  `json:"reasoning"`
}

// CategoricalDetermination is a judgment drawn from a declared enumeration.
type CategoricalDetermination struct {
	Determination   string  `json:"determination"`
	ConfidenceScore float64 `json:"confidenceScore"`
	Reasoning       string  `json:"reasoning"`
}

// NumericDetermination is a scored judgment within a declared range.
type NumericDetermination struct {
	Determination   float64 `json:"determination"`
	ConfidenceScore float64 `json:"confidenceScore"`
	Reasoning       string  `json:"reasoning"`
}

// FeatureValue is a kind-erased view of a single determination, used where
// code walks features by name instead of by struct field.
type FeatureValue struct {
	Kind       FeatureKind `json:"kind"`
	Bool       bool        `json:"bool,omitempty"`
	Category   string      `json:"category,omitempty"`
	Number     float64     `json:"number,omitempty"`
	Confidence float64     `json:"confidenceScore"`
	Reasoning  string      `json:"reasoning"`
}

// Value returns the determination as an untyped value.
func (v FeatureValue) Value() any {
	switch v.Kind {
	case KindBoolean:
		return v.Bool
	case KindCategorical:
		return v.Category
	default:
		return v.Number
	}
}
