package prompt

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/sells-group/contentmix/internal/model"
	"github.com/sells-group/contentmix/internal/registry"
)

const jsonOnly = "Respond with a valid JSON object and nothing else. No markdown, no commentary."

const brandSafetySystem = `You are an expert brand safety and advertising analyst. You identify the advertiser behind a creative and flag anything that makes it unsafe to run. ` + jsonOnly

const brandSafetySteps = `Analyze the creative asset in four steps and return only the final result.

Step 1: Visual and contextual analysis. Identify brand logos, product names shown, on-screen text and the overall context of the advertisement.
Step 2: Knowledge lookup. Using the brand identified in step 1, determine its correct parent company (for example "Dove" belongs to "Unilever").
Step 3: Brand safety scan. Look for profanity, violence, sensitive subjects and nuanced contextual issues such as derogatory wording.
Step 4: Synthesis. Set brandSafety.isSafe to false if step 3 found any issue. List each violation category in brandSafety.flags and explain the findings in brandSafety.reasoning.`

const brandSafetySchema = `Output JSON shape:
{
  "parentCompany": "<parent company>",
  "brand": "<brand>",
  "product": "<product>",
  "brandSafety": {
    "isSafe": <true if flags is empty, otherwise false>,
    "flags": ["<violation category>", ...],
    "reasoning": "<concise explanation>"
  }
}`

const assetAnalysisSystem = `You are an expert creative advertising strategist. Your analysis is informed by any contextual and technical data supplied with the creative. ` + jsonOnly

const assetAnalysisSteps = `Analysis process:
1. Identify format: decide whether the file is a VIDEO, IMAGE or AUDIO file.
2. Standardize components: for video use keyframes, the audio track and a transcript; for an image use the visuals and any text it contains; for audio use the sound and a transcript.
3. Evaluate every rubric feature below against those components. For any categorical feature that does not apply to the format (for example pacing for a static image) you MUST return "Not Applicable" instead of guessing.
4. Give every feature a determination, a confidenceScore between 0.0 and 1.0, and a short reasoning.`

func rubric(reg *registry.Registry) string {
	var b strings.Builder
	b.WriteString("Rubric:")
	for _, cat := range reg.Categories() {
		fmt.Fprintf(&b, "\n\n%s (%s):", cat.Label, cat.Name)
		for _, f := range reg.Features() {
			if f.Group() != cat.Name {
				continue
			}
			_, field, _ := strings.Cut(f.Name, ".")
			fmt.Fprintf(&b, "\n- %s: %s", field, f.Guidance)
		}
	}
	return b.String()
}

// determinationShape describes the determination value the model must return.
func determinationShape(f registry.FeatureSpec) string {
	switch f.Kind {
	case model.KindBoolean:
		return "true | false"
	case model.KindNumeric:
		if f.Range != nil {
			return fmt.Sprintf("<number %s-%s>", fmtNum(f.Range.Min), fmtNum(f.Range.Max))
		}
		return "<number>"
	default:
		vals := f.AllowedValues()
		quoted := make([]string, len(vals))
		for i, v := range vals {
			quoted[i] = strconv.Quote(v)
		}
		if f.Open {
			return "<one word, e.g. " + strings.Join(quoted, " | ") + ">"
		}
		return strings.Join(quoted, " | ")
	}
}

func fmtNum(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func analysisSchema(reg *registry.Registry) string {
	var b strings.Builder
	b.WriteString("Output JSON shape:\n{\n  \"analysis\": {")
	cats := reg.Categories()
	for ci, cat := range cats {
		fmt.Fprintf(&b, "\n    %q: {", cat.Name)
		var fields []string
		for _, f := range reg.Features() {
			if f.Group() != cat.Name {
				continue
			}
			_, field, _ := strings.Cut(f.Name, ".")
			fields = append(fields, fmt.Sprintf("\n      %q: {\"determination\": %s, \"confidenceScore\": <0.0-1.0>, \"reasoning\": \"<why>\"}",
				field, determinationShape(f)))
		}
		b.WriteString(strings.Join(fields, ","))
		b.WriteString("\n    }")
		if ci < len(cats)-1 {
			b.WriteString(",")
		}
	}
	b.WriteString("\n  }\n}")
	return b.String()
}

const scorecardSystem = `You are an expert creative advertising analyst. You grade creative assets against a fixed rubric. ` + jsonOnly

var scorecardGuidance = map[string]string{
	model.RubricMessageClarity:    "How effectively is the core message or value proposition communicated? Is it simple, direct and understandable?",
	model.RubricBrandIntegration:  "How well are the brand's assets (logo, colors, tone of voice) integrated? Is it instantly recognizable as an ad for that brand?",
	model.RubricProductionQuality: "How strong are the visuals, including cinematography, editing, graphics, lighting and overall aesthetic appeal?",
	model.RubricCTAEffectiveness:  "How compelling and clear is the call to action? Does it guide the viewer on what to do next?",
	model.RubricBrandSafety:       "Does the creative contain profanity, negative sentiment or contextually inappropriate content? Is it inclusive and culturally aware?",
}

func scorecardRubric() string {
	var b strings.Builder
	b.WriteString("Score the creative from 0 to 100 in each rubric category and explain each score in one or two sentences. overallContentScore is the weighted average of the category scores.\n\nGrading rubric:")
	for i, c := range model.ScorecardCategories() {
		fmt.Fprintf(&b, "\n%d. %s: %s", i+1, c, scorecardGuidance[c])
	}
	fmt.Fprintf(&b, "\n\nIf overallContentScore is below %d you MUST also provide 3-5 specific, actionable recommendations in improvementRecommendations, focused on the lowest-scoring categories. If it is %d or higher, omit improvementRecommendations entirely.",
		model.ScorecardThreshold, model.ScorecardThreshold)
	return b.String()
}

const scorecardSchema = `Output JSON shape:
{
  "overallContentScore": <0-100>,
  "analysisRubric": [
    {"category": "<rubric category, exactly as named above>", "score": <0-100>, "explanation": "<1-2 sentences>"}
  ],
  "improvementRecommendations": ["<recommendation>", ...]
}`

const attributionSystem = `You are a marketing data scientist specializing in multi-touch attribution. ` + jsonOnly

const attributionTask = `Attribute a monetary value to each content asset based on the conversions it drove. The total revenue from all conversions is %s. Distribute this revenue across the assets in proportion to their conversion share: assets with more conversions receive a higher value, assets with equal conversions receive equal values, and the attributed values must sum to the total revenue. Return exactly one entry per asset, using its Content ID as contentSnId and repeating its conversions unchanged.`

const attributionSchema = `Output JSON shape:
{
  "attributedAssets": [
    {"creator": "<creator>", "contentSnId": "<Content ID>", "attributedValue": <dollars>, "conversions": <integer>}
  ]
}`
