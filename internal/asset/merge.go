package asset

import (
	"time"

	"github.com/sells-group/contentmix/internal/model"
)

// Parts are the validated pieces of one asset.
type Parts struct {
	Upload       Upload
	Kind         model.MediaKind
	MediaURI     string
	BrandSafety  model.BrandSafetyReport
	Analysis     model.AssetAnalysis
	Quantitative *model.QuantitativeContext
}

// Merge builds the asset record. It reads only its arguments, so the order
// in which the flows finished has no effect.
func Merge(p Parts, id, contentSnID string, created time.Time) *model.Asset {
	up := p.Upload
	safety := p.BrandSafety.BrandSafety
	if safety.Flags == nil {
		safety.Flags = []string{}
	}
	analysis := p.Analysis.Analysis

	a := &model.Asset{
		ID:          id,
		ContentSnID: contentSnID,
		Name:        up.Name,
		Creator:     up.Creator,
		Type:        p.Kind,
		Length:      orNA(up.Length),
		Campaign:    up.Campaign,
		Tags:        up.Tags,
		Daypart:     orNA(up.Daypart),
		SpotLength:  orNA(up.SpotLength),
		Thumbnail:   up.Thumbnail,
		MediaURI:    p.MediaURI,

		ParentCompany: p.BrandSafety.ParentCompany,
		Brand:         p.BrandSafety.Brand,
		Product:       p.BrandSafety.Product,
		BrandSafety:   &safety,

		Analysis:        &analysis,
		MLReadyFeatures: p.Analysis.MLReadyFeatures,
		Manual:          up.Manual,
		Quantitative:    p.Quantitative,

		Status:      model.AssetStatusNew,
		ContentType: up.ContentType,

		ROAS:  up.ROAS,
		Spend: up.Spend,
		CPA:   up.CPA,
	}
	if a.ContentType == "" {
		a.ContentType = model.ContentTypeBranded
	}
	if a.Name == "" && up.File != nil {
		a.Name = up.File.Name
	}
	a.StampCreated(created)
	return a
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}
