package model

import (
	"github.com/rotisserie/eris"
)

// MessageStrategy groups determinations about what the creative says.
type MessageStrategy struct {
	HasSingleMessageFocus  BoolDetermination        `json:"hasSingleMessageFocus"`
	MessageComplexity      CategoricalDetermination `json:"messageComplexity"`
	UsesRightBrainElements BoolDetermination        `json:"usesRightBrainElements"`
}

// Execution groups determinations about how the creative is produced.
type Execution struct {
	MusicProminentlyFeatured BoolDetermination        `json:"musicProminentlyFeatured"`
	IsEmotionalStorytelling  BoolDetermination        `json:"isEmotionalStorytelling"`
	UsesHumor                BoolDetermination        `json:"usesHumor"`
	Pacing                   CategoricalDetermination `json:"pacing"`
}

// EmotionalImpact groups determinations about the creative's emotional register.
type EmotionalImpact struct {
	IsEmotionDriven BoolDetermination        `json:"isEmotionDriven"`
	PrimaryEmotion  CategoricalDetermination `json:"primaryEmotion"`
	HasPositiveTone BoolDetermination        `json:"hasPositiveTone"`
}

// Performance groups determinations about expected effectiveness.
type Performance struct {
	HasAttentionGrabbingIntro    BoolDetermination        `json:"hasAttentionGrabbingIntro"`
	CreativeNovelty              CategoricalDetermination `json:"creativeNovelty"`
	BrandFitScore                NumericDetermination     `json:"brandFitScore"`
	HasClearCallToAction         CategoricalDetermination `json:"hasClearCallToAction"`
	TargetAudienceAlignmentScore NumericDetermination     `json:"targetAudienceAlignmentScore"`
}

// QualitativeAnalysis is the fixed nested record produced by the asset
// analysis flow. Its shape never changes; only values vary.
type QualitativeAnalysis struct {
	MessageStrategy MessageStrategy `json:"messageStrategy"`
	Execution       Execution       `json:"execution"`
	EmotionalImpact EmotionalImpact `json:"emotionalImpact"`
	Performance     Performance     `json:"performance"`
}

// FeatureVector is the flattened numeric encoding of a QualitativeAnalysis.
// Keys whose source value cannot be encoded are absent, never zero-filled.
type FeatureVector map[string]float64

// featureNames lists every feature path in registry order.
var featureNames = []string{
	"messageStrategy.hasSingleMessageFocus",
	"messageStrategy.messageComplexity",
	"messageStrategy.usesRightBrainElements",
	"execution.musicProminentlyFeatured",
	"execution.isEmotionalStorytelling",
	"execution.usesHumor",
	"execution.pacing",
	"emotionalImpact.isEmotionDriven",
	"emotionalImpact.primaryEmotion",
	"emotionalImpact.hasPositiveTone",
	"performance.hasAttentionGrabbingIntro",
	"performance.creativeNovelty",
	"performance.brandFitScore",
	"performance.hasClearCallToAction",
	"performance.targetAudienceAlignmentScore",
}

// FeatureNames returns the dotted paths of every determination in a
// QualitativeAnalysis.
func FeatureNames() []string {
	out := make([]string, len(featureNames))
	copy(out, featureNames)
	return out
}

func (a *QualitativeAnalysis) slot(name string) any {
	switch name {
	case "messageStrategy.hasSingleMessageFocus":
		return &a.MessageStrategy.HasSingleMessageFocus
	case "messageStrategy.messageComplexity":
		return &a.MessageStrategy.MessageComplexity
	case "messageStrategy.usesRightBrainElements":
		return &a.MessageStrategy.UsesRightBrainElements
	case "execution.musicProminentlyFeatured":
		return &a.Execution.MusicProminentlyFeatured
	case "execution.isEmotionalStorytelling":
		return &a.Execution.IsEmotionalStorytelling
	case "execution.usesHumor":
		return &a.Execution.UsesHumor
	case "execution.pacing":
		return &a.Execution.Pacing
	case "emotionalImpact.isEmotionDriven":
		return &a.EmotionalImpact.IsEmotionDriven
	case "emotionalImpact.primaryEmotion":
		return &a.EmotionalImpact.PrimaryEmotion
	case "emotionalImpact.hasPositiveTone":
		return &a.EmotionalImpact.HasPositiveTone
	case "performance.hasAttentionGrabbingIntro":
		return &a.Performance.HasAttentionGrabbingIntro
	case "performance.creativeNovelty":
		return &a.Performance.CreativeNovelty
	case "performance.brandFitScore":
		return &a.Performance.BrandFitScore
	case "performance.hasClearCallToAction":
		return &a.Performance.HasClearCallToAction
	case "performance.targetAudienceAlignmentScore":
		return &a.Performance.TargetAudienceAlignmentScore
	}
	return nil
}

// Feature returns the named determination as a FeatureValue.
func (a *QualitativeAnalysis) Feature(name string) (FeatureValue, bool) {
	switch d := a.slot(name).(type) {
	case *BoolDetermination:
		return FeatureValue{Kind: KindBoolean, Bool: d.Determination, Confidence: d.ConfidenceScore, Reasoning: d.Reasoning}, true
	case *CategoricalDetermination:
		return FeatureValue{Kind: KindCategorical, Category: d.Determination, Confidence: d.ConfidenceScore, Reasoning: d.Reasoning}, true
	case *NumericDetermination:
		return FeatureValue{Kind: KindNumeric, Number: d.Determination, Confidence: d.ConfidenceScore, Reasoning: d.Reasoning}, true
	}
	return FeatureValue{}, false
}

// SetFeature writes v into the named determination. The kind of v must
// match the kind of the target field.
func (a *QualitativeAnalysis) SetFeature(name string, v FeatureValue) error {
	switch d := a.slot(name).(type) {
	case *BoolDetermination:
		if v.Kind != KindBoolean {
			return eris.Errorf("model: feature %s is boolean, got %s", name, v.Kind)
		}
		*d = BoolDetermination{Determination: v.Bool, ConfidenceScore: v.Confidence, Reasoning: v.Reasoning}
	case *CategoricalDetermination:
		if v.Kind != KindCategorical {
			return eris.Errorf("model: feature %s is categorical, got %s", name, v.Kind)
		}
		*d = CategoricalDetermination{Determination: v.Category, ConfidenceScore: v.Confidence, Reasoning: v.Reasoning}
	case *NumericDetermination:
		if v.Kind != KindNumeric {
			return eris.Errorf("model: feature %s is numeric, got %s", name, v.Kind)
		}
		*d = NumericDetermination{Determination: v.Number, ConfidenceScore: v.Confidence, Reasoning: v.Reasoning}
	default:
		return eris.Errorf("model: unknown feature %s", name)
	}
	return nil
}
