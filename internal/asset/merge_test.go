package asset

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/contentmix/internal/media"
	"github.com/sells-group/contentmix/internal/model"
)

func testParts() Parts {
	roas := 3.2
	return Parts{
		Upload: Upload{
			File:        &media.File{Name: "spot.mp4"},
			Creator:     "Acme Corp",
			Campaign:    "Summer",
			Length:      "15s",
			Daypart:     "Prime",
			ContentType: model.ContentTypeUGC,
			ROAS:        &roas,
		},
		Kind:     model.MediaVideo,
		MediaURI: "gs://contentmix/spot.mp4",
		BrandSafety: model.BrandSafetyReport{
			ParentCompany: "Acme Holdings", Brand: "Acme", Product: "Lotion",
			BrandSafety: model.BrandSafetyVerdict{IsSafe: false, Flags: []string{"alcohol"}, Reasoning: "beer on screen"},
		},
		Analysis: model.AssetAnalysis{MLReadyFeatures: model.FeatureVector{"execution_pacing": 1}},
	}
}

func TestMerge(t *testing.T) {
	created := time.Date(2024, 7, 15, 8, 0, 0, 0, time.UTC)
	a := Merge(testParts(), "id-1", "VID-ACME-SUMM-20240715-AAAA", created)

	assert.Equal(t, "id-1", a.ID)
	assert.Equal(t, "spot.mp4", a.Name)
	assert.Equal(t, "Acme Holdings", a.ParentCompany)
	assert.Equal(t, "Lotion", a.Product)
	require.NotNil(t, a.BrandSafety)
	assert.Equal(t, []string{"alcohol"}, a.BrandSafety.Flags)
	assert.Equal(t, model.AssetStatusNew, a.Status)
	assert.Equal(t, model.ContentTypeUGC, a.ContentType)
	assert.Equal(t, "N/A", a.SpotLength)
	assert.Equal(t, "Prime", a.Daypart)
	assert.Equal(t, 3.2, *a.ROAS)
	assert.Equal(t, "2024-07-15", a.CreationDate)
	assert.Equal(t, 1.0, a.MLReadyFeatures["execution_pacing"])
}

func TestMerge_Defaults(t *testing.T) {
	p := testParts()
	p.Upload.ContentType = ""
	p.Upload.Name = "Named"
	p.BrandSafety.BrandSafety.Flags = nil

	a := Merge(p, "id-1", "X", time.Now())
	assert.Equal(t, model.ContentTypeBranded, a.ContentType)
	assert.Equal(t, "Named", a.Name)
	assert.NotNil(t, a.BrandSafety.Flags)
	assert.Empty(t, a.BrandSafety.Flags)
}

func TestMerge_Deterministic(t *testing.T) {
	created := time.Now()
	assert.Equal(t, Merge(testParts(), "id", "X", created), Merge(testParts(), "id", "X", created))
}
