package flow

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/contentmix/internal/model"
	"github.com/sells-group/contentmix/internal/prompt"
)

func rubricReply(t *testing.T, overall float64, recs []string, rubric []map[string]any) string {
	t.Helper()
	if rubric == nil {
		for _, c := range model.ScorecardCategories() {
			rubric = append(rubric, map[string]any{"category": c, "score": overall, "explanation": "Scored against " + c})
		}
	}
	body := map[string]any{"overallContentScore": overall, "analysisRubric": rubric}
	if recs != nil {
		body["improvementRecommendations"] = recs
	}
	b, err := json.Marshal(body)
	require.NoError(t, err)
	return string(b)
}

func runScorecard(t *testing.T, text string) Outcome[model.Scorecard] {
	t.Helper()
	inf := &mockInferencer{}
	inf.On("Infer", mock.Anything, forFlow(CreativeScorecard)).Return(reply(text), nil)
	return NewExecutor(inf).Scorecard(context.Background(), prompt.MediaInput{Media: mediaInput()})
}

var threeRecs = []string{"Show the product earlier", "Add a spoken call to action", "Tighten the middle section"}

func TestScorecard_LowScoreWithRecommendations(t *testing.T) {
	out := runScorecard(t, rubricReply(t, 42, threeRecs, nil))

	require.True(t, out.Completed(), "%v", out.Err)
	assert.Equal(t, float64(42), out.Value.OverallContentScore)
	assert.Len(t, out.Value.AnalysisRubric, 5)
	assert.Equal(t, threeRecs, out.Value.ImprovementRecommendations)
}

func TestScorecard_HighScoreWithoutRecommendations(t *testing.T) {
	for name, text := range map[string]string{
		"absent": rubricReply(t, 78, nil, nil),
		"empty":  rubricReply(t, 78, []string{}, nil),
		"null":   `{"overallContentScore": 78, "analysisRubric": ` + rubricOnly(t, 78) + `, "improvementRecommendations": null}`,
	} {
		t.Run(name, func(t *testing.T) {
			out := runScorecard(t, text)

			require.True(t, out.Completed(), "%v", out.Err)
			assert.Nil(t, out.Value.ImprovementRecommendations)
		})
	}
}

func TestScorecard_ThresholdBoundary(t *testing.T) {
	out := runScorecard(t, rubricReply(t, 50, nil, nil))
	require.True(t, out.Completed(), "%v", out.Err)

	out = runScorecard(t, rubricReply(t, 49.5, nil, nil))
	require.NotNil(t, out.Err)
	assert.Equal(t, KindSchema, out.Err.Kind)
}

func TestScorecard_RubricOrdered(t *testing.T) {
	cats := model.ScorecardCategories()
	var rubric []map[string]any
	for i := len(cats) - 1; i >= 0; i-- {
		rubric = append(rubric, map[string]any{"category": cats[i], "score": 80, "explanation": "fine"})
	}

	out := runScorecard(t, rubricReply(t, 80, nil, rubric))

	require.True(t, out.Completed(), "%v", out.Err)
	for i, item := range out.Value.AnalysisRubric {
		assert.Equal(t, cats[i], item.Category)
	}
}

func TestScorecard_SchemaViolations(t *testing.T) {
	cats := model.ScorecardCategories()
	four := []map[string]any{}
	for _, c := range cats[:4] {
		four = append(four, map[string]any{"category": c, "score": 40, "explanation": "x"})
	}
	repeated := append(append([]map[string]any{}, four...), map[string]any{"category": cats[0], "score": 40, "explanation": "x"})
	unknown := append(append([]map[string]any{}, four...), map[string]any{"category": "Sound Design", "score": 40, "explanation": "x"})
	noExpl := append(append([]map[string]any{}, four...), map[string]any{"category": cats[4], "score": 40, "explanation": ""})
	badScore := append(append([]map[string]any{}, four...), map[string]any{"category": cats[4], "score": 140, "explanation": "x"})

	tests := []struct {
		name    string
		text    string
		wantMsg string
	}{
		{"low score without recommendations", rubricReply(t, 42, nil, nil), "needs 3-5 improvementRecommendations, got 0"},
		{"low score with two recommendations", rubricReply(t, 42, threeRecs[:2], nil), "got 2"},
		{"low score with six recommendations", rubricReply(t, 42, append(threeRecs, "a", "b", "c"), nil), "got 6"},
		{"high score with recommendations", rubricReply(t, 78, threeRecs, nil), "improvementRecommendations were returned"},
		{"missing category", rubricReply(t, 42, threeRecs, four), `missing "` + cats[4] + `"`},
		{"repeated category", rubricReply(t, 42, threeRecs, repeated), "is repeated"},
		{"unknown category", rubricReply(t, 42, threeRecs, unknown), "is not a rubric category"},
		{"empty explanation", rubricReply(t, 42, threeRecs, noExpl), "explanation is missing or empty"},
		{"rubric score out of range", rubricReply(t, 42, threeRecs, badScore), "score 140 outside [0, 100]"},
		{"overall out of range", rubricReply(t, 120, nil, nil), "overallContentScore 120 outside [0, 100]"},
		{"missing overall", `{"analysisRubric": ` + rubricOnly(t, 60) + `}`, "overallContentScore is missing"},
		{"empty recommendation", rubricReply(t, 42, []string{"a", " ", "c"}, nil), "improvementRecommendations[1] is empty"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := runScorecard(t, tt.text)

			assert.Equal(t, model.FlowFailed, out.State)
			require.NotNil(t, out.Err)
			assert.Equal(t, KindSchema, out.Err.Kind)
			assert.Contains(t, out.Err.Error(), tt.wantMsg)
		})
	}
}

func TestScorecardRequest(t *testing.T) {
	req, err := ScorecardRequest(prompt.MediaInput{Media: mediaInput()})
	require.NoError(t, err)
	assert.Equal(t, CreativeScorecard, req.Flow)
	assert.NotEmpty(t, req.System)
	assert.Contains(t, req.Instruction, mediaInput())

	_, err = ScorecardRequest(prompt.MediaInput{})
	assert.Error(t, err)
}

func TestScorecardResult_Records(t *testing.T) {
	rec := &memRecorder{}
	e := NewExecutor(&mockInferencer{}, WithRecorder(rec))
	usage := model.TokenUsage{InputTokens: 10, OutputTokens: 5}

	ok := e.ScorecardResult(context.Background(), rubricReply(t, 90, nil, nil), usage)
	bad := e.ScorecardResult(context.Background(), "not json", usage)

	assert.True(t, ok.Completed())
	assert.Equal(t, usage, ok.Usage)
	require.NotNil(t, bad.Err)
	assert.Equal(t, KindSchema, bad.Err.Kind)
	require.Len(t, rec.runs, 2)
	assert.Equal(t, model.FlowCompleted, rec.runs[0].State)
	assert.Equal(t, model.FlowFailed, rec.runs[1].State)
}

func rubricOnly(t *testing.T, score float64) string {
	t.Helper()
	var rubric []map[string]any
	for _, c := range model.ScorecardCategories() {
		rubric = append(rubric, map[string]any{"category": c, "score": score, "explanation": "x"})
	}
	b, err := json.Marshal(rubric)
	require.NoError(t, err)
	return string(b)
}
