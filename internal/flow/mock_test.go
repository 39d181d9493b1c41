package flow

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/contentmix/internal/model"
	"github.com/sells-group/contentmix/internal/prompt"
	"github.com/sells-group/contentmix/internal/registry"
	"github.com/sells-group/contentmix/pkg/anthropic"
)

// --- Inferencer Mock ---

type mockInferencer struct {
	mock.Mock
}

func (m *mockInferencer) Infer(ctx context.Context, req Request) (*Response, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Response), args.Error(1)
}

func reply(text string) *Response {
	return &Response{Text: text, Model: "claude-sonnet-4-5-20250929", Usage: model.TokenUsage{InputTokens: 100, OutputTokens: 50}}
}

func forFlow(n Name) any {
	return mock.MatchedBy(func(r Request) bool { return r.Flow == n })
}

// --- Anthropic Client Mock ---

type mockAIClient struct {
	mock.Mock
}

func (m *mockAIClient) CreateMessage(ctx context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*anthropic.MessageResponse), args.Error(1)
}

func (m *mockAIClient) CreateBatch(ctx context.Context, req anthropic.BatchRequest) (*anthropic.BatchResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*anthropic.BatchResponse), args.Error(1)
}

func (m *mockAIClient) GetBatch(ctx context.Context, batchID string) (*anthropic.BatchResponse, error) {
	args := m.Called(ctx, batchID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*anthropic.BatchResponse), args.Error(1)
}

func (m *mockAIClient) GetBatchResults(ctx context.Context, batchID string) (anthropic.BatchResultIterator, error) {
	args := m.Called(ctx, batchID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(anthropic.BatchResultIterator), args.Error(1)
}

// --- Recorder ---

type memRecorder struct {
	mu   sync.Mutex
	runs []model.FlowRun
	err  error
}

func (r *memRecorder) RecordFlowRun(_ context.Context, run model.FlowRun) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs = append(r.runs, run)
	return r.err
}

// --- Fixtures ---

// validAnalysis returns a well-formed analysis reply as nested maps keyed
// by category, feature, then determination field.
func validAnalysis() map[string]map[string]map[string]any {
	out := map[string]map[string]map[string]any{}
	for _, f := range registry.Features() {
		group, field, _ := strings.Cut(f.Name, ".")
		if out[group] == nil {
			out[group] = map[string]map[string]any{}
		}
		var det any
		switch f.Kind {
		case model.KindBoolean:
			det = true
		case model.KindCategorical:
			det = f.Categories[0]
		default:
			det = 4
		}
		out[group][field] = map[string]any{
			"determination":   det,
			"confidenceScore": 0.9,
			"reasoning":       "clearly visible in the opening frames",
		}
	}
	return out
}

func analysisJSON(t *testing.T, analysis any, extra map[string]any) string {
	t.Helper()
	body := map[string]any{"analysis": analysis}
	for k, v := range extra {
		body[k] = v
	}
	b, err := json.Marshal(body)
	require.NoError(t, err)
	return string(b)
}

func mediaInput() string {
	return "gs://contentmix/assets/summer-spot.mp4"
}

func promptInput() prompt.MediaInput {
	return prompt.MediaInput{Media: mediaInput()}
}
