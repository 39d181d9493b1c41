package flow

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/contentmix/internal/model"
)

func TestRun_UnknownFlow(t *testing.T) {
	_, err := NewExecutor(&mockInferencer{}).Run(context.Background(), "fedsync", []byte(`{}`))
	assert.ErrorIs(t, err, ErrUnknownFlow)
}

func TestRun_InputDecodeErrors(t *testing.T) {
	for name, body := range map[string]string{
		"empty":         "",
		"not json":      "media=x",
		"unknown field": `{"media": "gs://b/a.mp4", "extra": 1}`,
	} {
		t.Run(name, func(t *testing.T) {
			inf := &mockInferencer{}
			_, err := NewExecutor(inf).Run(context.Background(), "brandSafety", []byte(body))

			require.Error(t, err)
			assert.True(t, IsKind(err, KindInput))
			inf.AssertNotCalled(t, "Infer", mock.Anything, mock.Anything)
		})
	}
}

func TestRun_BrandSafety(t *testing.T) {
	inf := &mockInferencer{}
	inf.On("Infer", mock.Anything, forFlow(BrandSafety)).Return(reply(safeReply), nil)

	res, err := NewExecutor(inf).Run(context.Background(), "brandSafety",
		[]byte(`{"media": "gs://contentmix/a.mp4", "manualData": {"campaignName": "Summer"}}`))

	require.NoError(t, err)
	assert.Equal(t, BrandSafety, res.Flow)
	rep, ok := res.Output.(*model.BrandSafetyReport)
	require.True(t, ok)
	assert.Equal(t, "Acme", rep.Brand)
	assert.Equal(t, 100, res.Usage.InputTokens)
}

func TestRun_SchemaFailure(t *testing.T) {
	inf := &mockInferencer{}
	inf.On("Infer", mock.Anything, mock.Anything).Return(reply("{}"), nil)

	_, err := NewExecutor(inf).Run(context.Background(), "creativeScorecard", []byte(`{"media": "gs://contentmix/a.mp4"}`))

	assert.True(t, IsKind(err, KindSchema))
}

func TestRun_AttributionDefaultsRevenue(t *testing.T) {
	inf := &mockInferencer{}
	inf.On("Infer", mock.Anything, mock.MatchedBy(func(r Request) bool {
		return r.Flow == ContentAttribution && strings.Contains(r.Instruction, "$50,000.00")
	})).Return(reply(attributionReply), nil)

	body := `{"assets": [
	  {"creator": "Jane Smith", "conversions": 10, "contentSnId": "VID-ACME-SUMM-20240715-A001"},
	  {"creator": "Bob Lee", "conversions": 30, "contentSnId": "VID-ACME-SUMM-20240715-B002"},
	  {"creator": "Ana Ruiz", "conversions": 10, "contentSnId": "IMG-ACME-SUMM-20240715-C003"}
	]}`
	res, err := NewExecutor(inf, WithTotalRevenue(50000)).Run(context.Background(), "contentAttribution", []byte(body))

	require.NoError(t, err)
	rep := res.Output.(*model.AttributionReport)
	assert.Len(t, rep.AttributedAssets, 3)
	inf.AssertExpectations(t)
}

func TestRun_AttributionWithoutRevenue(t *testing.T) {
	inf := &mockInferencer{}
	_, err := NewExecutor(inf).Run(context.Background(), "contentAttribution",
		[]byte(`{"assets": [{"creator": "A", "conversions": 1, "contentSnId": "X"}]}`))

	assert.True(t, IsKind(err, KindInput))
	inf.AssertNotCalled(t, "Infer", mock.Anything, mock.Anything)
}
