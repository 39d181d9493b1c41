package model

// BrandSafetyVerdict is the safety portion of a brand safety report.
type BrandSafetyVerdict struct {
	IsSafe    bool     `json:"isSafe"`
	Flags     []string `json:"flags"`
	Reasoning string   `json:"reasoning"`
}

// BrandSafetyReport identifies the advertiser behind a creative and whether
// the creative is safe to run.
type BrandSafetyReport struct {
	ParentCompany string             `json:"parentCompany"`
	Brand         string             `json:"brand"`
	Product       string             `json:"product"`
	BrandSafety   BrandSafetyVerdict `json:"brandSafety"`
}

// AssetAnalysis is the output of the qualitative asset analysis flow: the
// nested determinations plus their flattened encoding.
type AssetAnalysis struct {
	Analysis        QualitativeAnalysis `json:"analysis"`
	MLReadyFeatures FeatureVector       `json:"mlReadyFeatures"`
}

// RubricItem scores one scorecard category.
type RubricItem struct {
	Category    string  `json:"category"`
	Score       float64 `json:"score"`
	Explanation string  `json:"explanation"`
}

// ScorecardThreshold is the overall score below which improvement
// recommendations must be present.
const ScorecardThreshold = 50

// Scorecard is the output of the creative scorecard flow.
type Scorecard struct {
	OverallContentScore        float64      `json:"overallContentScore"`
	AnalysisRubric             []RubricItem `json:"analysisRubric"`
	ImprovementRecommendations []string     `json:"improvementRecommendations,omitempty"`
}

// AssetPerformance summarizes one asset's results for attribution.
type AssetPerformance struct {
	Creator     string `json:"creator" csv:"creator" yaml:"creator"`
	Type        string `json:"type" csv:"type" yaml:"type"`
	Length      string `json:"length" csv:"length" yaml:"length"`
	Campaign    string `json:"campaign" csv:"campaign" yaml:"campaign"`
	Tags        string `json:"tags" csv:"tags" yaml:"tags"`
	Daypart     string `json:"daypart" csv:"daypart" yaml:"daypart"`
	SpotLength  string `json:"spotLength" csv:"spot_length" yaml:"spotLength"`
	Conversions int    `json:"conversions" csv:"conversions" yaml:"conversions"`
	ContentSnID string `json:"contentSnId" csv:"content_sn_id" yaml:"contentSnId"`
}

// AttributionRequest is the batch input to the content attribution flow.
type AttributionRequest struct {
	Assets       []AssetPerformance `json:"assets"`
	TotalRevenue float64            `json:"totalRevenue"`
}

// AttributedAsset is one asset's share of the revenue pool.
type AttributedAsset struct {
	Creator         string  `json:"creator"`
	ContentSnID     string  `json:"contentSnId"`
	AttributedValue float64 `json:"attributedValue"`
	Conversions     int     `json:"conversions"`
}

// AttributionReport is the output of the content attribution flow.
type AttributionReport struct {
	AttributedAssets []AttributedAsset `json:"attributedAssets"`
}

// TokenUsage tracks token consumption.
type TokenUsage struct {
	InputTokens         int     `json:"input_tokens"`
	OutputTokens        int     `json:"output_tokens"`
	CacheCreationTokens int     `json:"cache_creation_tokens"`
	CacheReadTokens     int     `json:"cache_read_tokens"`
	Cost                float64 `json:"cost"`
}

// Add merges token usage from another instance.
func (t *TokenUsage) Add(other TokenUsage) {
	t.InputTokens += other.InputTokens
	t.OutputTokens += other.OutputTokens
	t.CacheCreationTokens += other.CacheCreationTokens
	t.CacheReadTokens += other.CacheReadTokens
	t.Cost += other.Cost
}

// Scorecard rubric categories, in the order they are graded.
const (
	RubricMessageClarity    = "Clarity of Message"
	RubricBrandIntegration  = "Brand Identity & Integration"
	RubricProductionQuality = "Visual Appeal & Production Quality"
	RubricCTAEffectiveness  = "Call to Action (CTA) Effectiveness"
	RubricBrandSafety       = "Brand Safety & Contextual Appropriateness"
)

// ScorecardCategories returns the five rubric categories every scorecard grades.
func ScorecardCategories() []string {
	return []string{
		RubricMessageClarity,
		RubricBrandIntegration,
		RubricProductionQuality,
		RubricCTAEffectiveness,
		RubricBrandSafety,
	}
}
