package cost

import "math"

// Rates holds per-provider pricing configuration.
type Rates struct {
	Anthropic  map[string]ModelRate `yaml:"anthropic" mapstructure:"anthropic"`
	Perception PerceptionRate       `yaml:"perception" mapstructure:"perception"`
}

// ModelRate holds per-model token pricing (per million tokens).
type ModelRate struct {
	Input         float64 `yaml:"input" mapstructure:"input"`
	Output        float64 `yaml:"output" mapstructure:"output"`
	BatchDiscount float64 `yaml:"batch_discount" mapstructure:"batch_discount"`
	CacheWriteMul float64 `yaml:"cache_write_mul" mapstructure:"cache_write_mul"`
	CacheReadMul  float64 `yaml:"cache_read_mul" mapstructure:"cache_read_mul"`
}

// PerceptionRate holds Google Cloud perception pricing.
type PerceptionRate struct {
	VisionPerFeature float64 `yaml:"vision_per_feature" mapstructure:"vision_per_feature"` // per image, per feature
	VideoPerMinute   float64 `yaml:"video_per_minute" mapstructure:"video_per_minute"`     // per feature
	SpeechPer15s     float64 `yaml:"speech_per_15s" mapstructure:"speech_per_15s"`
}

// Usage is the token breakdown of one Claude call.
type Usage struct {
	Input      int
	Output     int
	CacheWrite int
	CacheRead  int
}

// Calculator computes costs for API usage.
type Calculator struct {
	rates Rates
}

// NewCalculator creates a Calculator with the given rates.
func NewCalculator(rates Rates) *Calculator {
	return &Calculator{rates: rates}
}

// Claude computes the cost for a Claude API call. Unknown models cost 0.
func (c *Calculator) Claude(model string, isBatch bool, u Usage) float64 {
	rate, ok := c.rates.Anthropic[model]
	if !ok {
		return 0
	}

	batchMul := 1.0
	if isBatch {
		batchMul = rate.BatchDiscount
	}

	inCost := (float64(u.Input) / 1e6) * rate.Input
	outCost := (float64(u.Output) / 1e6) * rate.Output
	cwCost := (float64(u.CacheWrite) / 1e6) * rate.Input * rate.CacheWriteMul
	crCost := (float64(u.CacheRead) / 1e6) * rate.Input * rate.CacheReadMul

	return (inCost + outCost + cwCost + crCost) * batchMul
}

// Vision returns the cost of annotating one image with n features.
func (c *Calculator) Vision(features int) float64 {
	return float64(features) * c.rates.Perception.VisionPerFeature
}

// Video returns the cost of annotating seconds of video with n features.
// Billing rounds up to whole minutes.
func (c *Calculator) Video(seconds float64, features int) float64 {
	minutes := math.Ceil(seconds / 60)
	return minutes * float64(features) * c.rates.Perception.VideoPerMinute
}

// Speech returns the cost of transcribing seconds of audio, billed in
// 15-second increments.
func (c *Calculator) Speech(seconds float64) float64 {
	return math.Ceil(seconds/15) * c.rates.Perception.SpeechPer15s
}

// DefaultRates returns the default pricing rates.
func DefaultRates() Rates {
	return Rates{
		Anthropic: map[string]ModelRate{
			"claude-haiku-4-5-20251001": {
				Input: 1.00, Output: 5.00,
				BatchDiscount: 0.5, CacheWriteMul: 1.25, CacheReadMul: 0.1,
			},
			"claude-sonnet-4-5-20250929": {
				Input: 3.00, Output: 15.00,
				BatchDiscount: 0.5, CacheWriteMul: 1.25, CacheReadMul: 0.1,
			},
			"claude-opus-4-6": {
				Input: 15.00, Output: 75.00,
				BatchDiscount: 0.5, CacheWriteMul: 1.25, CacheReadMul: 0.1,
			},
		},
		Perception: PerceptionRate{
			VisionPerFeature: 0.0015,
			VideoPerMinute:   0.10,
			SpeechPer15s:     0.006,
		},
	}
}
