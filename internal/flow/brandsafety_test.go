package flow

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/contentmix/internal/model"
	"github.com/sells-group/contentmix/internal/prompt"
	"github.com/sells-group/contentmix/internal/resilience"
)

const safeReply = "```json\n" + `{
  "parentCompany": "Acme Holdings",
  "brand": "Acme",
  "product": "Summer Lemonade",
  "brandSafety": {"isSafe": true, "flags": [], "reasoning": "Family friendly beach scene."}
}` + "\n```"

func TestBrandSafety_Completed(t *testing.T) {
	inf := &mockInferencer{}
	inf.On("Infer", mock.Anything, forFlow(BrandSafety)).Return(reply(safeReply), nil)
	rec := &memRecorder{}

	e := NewExecutor(inf, WithRecorder(rec))
	out := e.BrandSafety(context.Background(), prompt.MediaInput{Media: mediaInput()})

	require.True(t, out.Completed(), "%v", out.Err)
	assert.Equal(t, "Acme Holdings", out.Value.ParentCompany)
	assert.Equal(t, "Acme", out.Value.Brand)
	assert.Equal(t, "Summer Lemonade", out.Value.Product)
	assert.True(t, out.Value.BrandSafety.IsSafe)
	assert.Empty(t, out.Value.BrandSafety.Flags)
	assert.NotNil(t, out.Value.BrandSafety.Flags)
	assert.Equal(t, 100, out.Usage.InputTokens)

	require.Len(t, rec.runs, 1)
	assert.Equal(t, "brandSafety", rec.runs[0].Flow)
	assert.Equal(t, model.FlowCompleted, rec.runs[0].State)
	assert.NotEmpty(t, rec.runs[0].ID)
	assert.Empty(t, rec.runs[0].ErrorKind)
	inf.AssertExpectations(t)
}

func TestBrandSafety_UnsafeWithFlags(t *testing.T) {
	inf := &mockInferencer{}
	inf.On("Infer", mock.Anything, mock.Anything).Return(reply(`{
		"parentCompany": "Acme Holdings", "brand": "Acme", "product": "Energy Shot",
		"brandSafety": {"isSafe": false, "flags": ["Dangerous stunt", "Alcohol"], "reasoning": "Stunt on a rooftop."}
	}`), nil)

	out := NewExecutor(inf).BrandSafety(context.Background(), prompt.MediaInput{Media: mediaInput()})

	require.True(t, out.Completed(), "%v", out.Err)
	assert.False(t, out.Value.BrandSafety.IsSafe)
	assert.Equal(t, []string{"Dangerous stunt", "Alcohol"}, out.Value.BrandSafety.Flags)
}

func TestBrandSafety_SchemaViolations(t *testing.T) {
	tests := []struct {
		name    string
		reply   string
		wantMsg string
	}{
		{"safe with flags", `{"parentCompany":"A","brand":"B","product":"C","brandSafety":{"isSafe":true,"flags":["Violence"],"reasoning":"r"}}`, "isSafe is true but 1 flags"},
		{"unsafe without flags", `{"parentCompany":"A","brand":"B","product":"C","brandSafety":{"isSafe":false,"flags":[],"reasoning":"r"}}`, "isSafe is false but 0 flags"},
		{"missing brand", `{"parentCompany":"A","product":"C","brandSafety":{"isSafe":true,"flags":[],"reasoning":"r"}}`, "brand is missing"},
		{"empty product", `{"parentCompany":"A","brand":"B","product":" ","brandSafety":{"isSafe":true,"flags":[],"reasoning":"r"}}`, "product is missing or empty"},
		{"missing verdict", `{"parentCompany":"A","brand":"B","product":"C"}`, "brandSafety is missing"},
		{"missing flags", `{"parentCompany":"A","brand":"B","product":"C","brandSafety":{"isSafe":true,"reasoning":"r"}}`, "flags is missing"},
		{"missing isSafe", `{"parentCompany":"A","brand":"B","product":"C","brandSafety":{"flags":[],"reasoning":"r"}}`, "isSafe is missing"},
		{"empty flag", `{"parentCompany":"A","brand":"B","product":"C","brandSafety":{"isSafe":false,"flags":[""],"reasoning":"r"}}`, "flags[0] is empty"},
		{"empty output", "", "empty output"},
		{"null output", "null", "empty output"},
		{"prose", "Sorry, I can't help with that.", "not a JSON object"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inf := &mockInferencer{}
			inf.On("Infer", mock.Anything, mock.Anything).Return(reply(tt.reply), nil)
			rec := &memRecorder{}

			out := NewExecutor(inf, WithRecorder(rec)).BrandSafety(context.Background(), prompt.MediaInput{Media: mediaInput()})

			assert.Equal(t, model.FlowFailed, out.State)
			assert.Nil(t, out.Value)
			require.NotNil(t, out.Err)
			assert.Equal(t, KindSchema, out.Err.Kind)
			assert.Contains(t, out.Err.Error(), tt.wantMsg)
			require.Len(t, rec.runs, 1)
			assert.Equal(t, "schema", rec.runs[0].ErrorKind)
		})
	}
}

func TestBrandSafety_ReportsEveryProblem(t *testing.T) {
	inf := &mockInferencer{}
	inf.On("Infer", mock.Anything, mock.Anything).Return(reply(`{"brandSafety":{"isSafe":true,"flags":["x"]}}`), nil)

	out := NewExecutor(inf).BrandSafety(context.Background(), prompt.MediaInput{Media: mediaInput()})

	require.NotNil(t, out.Err)
	msg := out.Err.Error()
	for _, want := range []string{"parentCompany", "brand is missing", "product", "reasoning", "isSafe is true"} {
		assert.Contains(t, msg, want)
	}
}

func TestBrandSafety_CollaboratorFailure(t *testing.T) {
	for name, cause := range map[string]error{
		"inference error": errors.New("connection reset by peer"),
		"circuit open":    resilience.ErrCircuitOpen,
		"timeout":         context.DeadlineExceeded,
	} {
		t.Run(name, func(t *testing.T) {
			inf := &mockInferencer{}
			inf.On("Infer", mock.Anything, mock.Anything).Return(nil, cause)

			out := NewExecutor(inf).BrandSafety(context.Background(), prompt.MediaInput{Media: mediaInput()})

			assert.Equal(t, model.FlowFailed, out.State)
			require.NotNil(t, out.Err)
			assert.Equal(t, KindCollaborator, out.Err.Kind)
			assert.ErrorIs(t, out.Err, cause)
		})
	}
}

func TestBrandSafety_InputRejectedBeforeInference(t *testing.T) {
	tests := []struct {
		name  string
		media string
	}{
		{"empty media", ""},
		{"unsupported data uri", "data:application/pdf;base64,JVBERi0xLjQK"},
		{"malformed data uri", "data:image/png,notbase64"},
		{"empty payload", "data:image/png;base64,"},
		{"unsupported extension", "gs://contentmix/deck.pdf"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inf := &mockInferencer{}

			out := NewExecutor(inf).BrandSafety(context.Background(), prompt.MediaInput{Media: tt.media})

			assert.Equal(t, model.FlowFailed, out.State)
			require.NotNil(t, out.Err)
			assert.Equal(t, KindInput, out.Err.Kind)
			inf.AssertNotCalled(t, "Infer", mock.Anything, mock.Anything)
		})
	}
}

func TestBrandSafety_AttachesInlineImage(t *testing.T) {
	img := "data:image/png;base64,iVBORw0KGgo="
	inf := &mockInferencer{}
	inf.On("Infer", mock.Anything, mock.MatchedBy(func(r Request) bool {
		return len(r.Images) == 1 &&
			r.Images[0].MediaType == "image/png" &&
			r.Images[0].Data == "iVBORw0KGgo=" &&
			!strings.Contains(r.Instruction, "iVBORw0KGgo=")
	})).Return(reply(safeReply), nil)

	out := NewExecutor(inf).BrandSafety(context.Background(), prompt.MediaInput{Media: img})

	require.True(t, out.Completed(), "%v", out.Err)
	inf.AssertExpectations(t)
}

func TestBrandSafety_RecorderErrorIgnored(t *testing.T) {
	inf := &mockInferencer{}
	inf.On("Infer", mock.Anything, mock.Anything).Return(reply(safeReply), nil)
	rec := &memRecorder{err: errors.New("db down")}

	out := NewExecutor(inf, WithRecorder(rec)).BrandSafety(context.Background(), prompt.MediaInput{Media: mediaInput()})

	assert.True(t, out.Completed())
	assert.Len(t, rec.runs, 1)
}
