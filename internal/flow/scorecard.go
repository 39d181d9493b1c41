package flow

import (
	"context"
	"math"
	"slices"
	"strings"

	"github.com/sells-group/contentmix/internal/model"
	"github.com/sells-group/contentmix/internal/prompt"
)

type rubricWire struct {
	Category    *string  `json:"category"`
	Score       *float64 `json:"score"`
	Explanation *string  `json:"explanation"`
}

type scorecardWire struct {
	OverallContentScore        *float64     `json:"overallContentScore"`
	AnalysisRubric             []rubricWire `json:"analysisRubric"`
	ImprovementRecommendations []string     `json:"improvementRecommendations"`
}

const (
	minRecommendations = 3
	maxRecommendations = 5
)

// Scorecard grades a creative against the five rubric categories.
func (e *Executor) Scorecard(ctx context.Context, in prompt.MediaInput) Outcome[model.Scorecard] {
	return run(ctx, e, CreativeScorecard, func() (Request, error) {
		return ScorecardRequest(in)
	}, decodeScorecard)
}

// ScorecardRequest builds the scorecard request without sending it, for
// callers that submit through the batch API.
func ScorecardRequest(in prompt.MediaInput) (Request, error) {
	r, err := prompt.Scorecard(in)
	if err != nil {
		return Request{}, err
	}
	req, err := mediaRequest(r, in.Media)
	req.Flow = CreativeScorecard
	return req, err
}

// ScorecardResult validates a scorecard reply obtained outside Infer.
func (e *Executor) ScorecardResult(ctx context.Context, text string, usage model.TokenUsage) Outcome[model.Scorecard] {
	start := e.now()
	var out Outcome[model.Scorecard]
	if v, err := decodeScorecard(text); err != nil {
		out = failed[model.Scorecard](CreativeScorecard, KindSchema, err)
	} else {
		out = completed(v)
	}
	out.Usage = usage
	e.record(ctx, CreativeScorecard, out.State, out.Err, usage, 0, start)
	return out
}

func validScore(v float64) bool {
	return !math.IsNaN(v) && v >= 0 && v <= 100
}

func decodeScorecard(text string) (model.Scorecard, error) {
	var w scorecardWire
	if err := decodeOutput(text, &w); err != nil {
		return model.Scorecard{}, err
	}

	var p problems
	if w.OverallContentScore == nil {
		p.addf("overallContentScore is missing")
	} else if !validScore(*w.OverallContentScore) {
		p.addf("overallContentScore %g outside [0, 100]", *w.OverallContentScore)
	}

	want := model.ScorecardCategories()
	seen := make(map[string]bool, len(want))
	rubric := make([]model.RubricItem, 0, len(w.AnalysisRubric))
	for i, item := range w.AnalysisRubric {
		if blank(item.Category) {
			p.addf("analysisRubric[%d].category is missing", i)
			continue
		}
		cat := strings.TrimSpace(*item.Category)
		if !slices.Contains(want, cat) {
			p.addf("analysisRubric[%d].category %q is not a rubric category", i, cat)
			continue
		}
		if seen[cat] {
			p.addf("analysisRubric category %q is repeated", cat)
			continue
		}
		seen[cat] = true
		if item.Score == nil {
			p.addf("analysisRubric %q score is missing", cat)
		} else if !validScore(*item.Score) {
			p.addf("analysisRubric %q score %g outside [0, 100]", cat, *item.Score)
		}
		if blank(item.Explanation) {
			p.addf("analysisRubric %q explanation is missing or empty", cat)
		}
		if item.Score != nil && !blank(item.Explanation) {
			rubric = append(rubric, model.RubricItem{Category: cat, Score: *item.Score, Explanation: *item.Explanation})
		}
	}
	for _, c := range want {
		if !seen[c] {
			p.addf("analysisRubric is missing %q", c)
		}
	}

	recs := w.ImprovementRecommendations
	if w.OverallContentScore != nil && validScore(*w.OverallContentScore) {
		below := *w.OverallContentScore < model.ScorecardThreshold
		switch {
		case below && (len(recs) < minRecommendations || len(recs) > maxRecommendations):
			p.addf("overallContentScore %g is below %d and needs %d-%d improvementRecommendations, got %d",
				*w.OverallContentScore, model.ScorecardThreshold, minRecommendations, maxRecommendations, len(recs))
		case !below && len(recs) > 0:
			p.addf("overallContentScore %g is at least %d but improvementRecommendations were returned",
				*w.OverallContentScore, model.ScorecardThreshold)
		}
	}
	for i, r := range recs {
		if strings.TrimSpace(r) == "" {
			p.addf("improvementRecommendations[%d] is empty", i)
		}
	}
	if err := p.err(CreativeScorecard); err != nil {
		return model.Scorecard{}, err
	}

	sc := model.Scorecard{
		OverallContentScore: *w.OverallContentScore,
		AnalysisRubric:      orderRubric(rubric, want),
	}
	if len(recs) > 0 {
		sc.ImprovementRecommendations = append([]string{}, recs...)
	}
	return sc, nil
}

// orderRubric returns items in rubric order.
func orderRubric(items []model.RubricItem, order []string) []model.RubricItem {
	out := make([]model.RubricItem, 0, len(items))
	for _, c := range order {
		for _, it := range items {
			if it.Category == c {
				out = append(out, it)
			}
		}
	}
	return out
}
