package flow

import (
	"context"
	"strings"

	"github.com/sells-group/contentmix/internal/model"
	"github.com/sells-group/contentmix/internal/prompt"
)

type brandSafetyWire struct {
	ParentCompany *string `json:"parentCompany"`
	Brand         *string `json:"brand"`
	Product       *string `json:"product"`
	BrandSafety   *struct {
		IsSafe    *bool     `json:"isSafe"`
		Flags     *[]string `json:"flags"`
		Reasoning *string   `json:"reasoning"`
	} `json:"brandSafety"`
}

// BrandSafety identifies the advertiser behind a creative and scans it for
// brand safety issues.
func (e *Executor) BrandSafety(ctx context.Context, in prompt.MediaInput) Outcome[model.BrandSafetyReport] {
	return run(ctx, e, BrandSafety, func() (Request, error) {
		r, err := prompt.BrandSafety(in)
		if err != nil {
			return Request{}, err
		}
		return mediaRequest(r, in.Media)
	}, decodeBrandSafety)
}

func decodeBrandSafety(text string) (model.BrandSafetyReport, error) {
	var w brandSafetyWire
	if err := decodeOutput(text, &w); err != nil {
		return model.BrandSafetyReport{}, err
	}

	var p problems
	for _, f := range []struct {
		name string
		v    *string
	}{
		{"parentCompany", w.ParentCompany},
		{"brand", w.Brand},
		{"product", w.Product},
	} {
		if blank(f.v) {
			p.addf("%s is missing or empty", f.name)
		}
	}

	if w.BrandSafety == nil {
		p.addf("brandSafety is missing")
		return model.BrandSafetyReport{}, p.err(BrandSafety)
	}
	bs := w.BrandSafety
	if blank(bs.Reasoning) {
		p.addf("brandSafety.reasoning is missing or empty")
	}
	if bs.Flags == nil {
		p.addf("brandSafety.flags is missing")
	} else {
		for i, f := range *bs.Flags {
			if strings.TrimSpace(f) == "" {
				p.addf("brandSafety.flags[%d] is empty", i)
			}
		}
	}
	if bs.IsSafe == nil {
		p.addf("brandSafety.isSafe is missing")
	} else if bs.Flags != nil && *bs.IsSafe != (len(*bs.Flags) == 0) {
		p.addf("brandSafety.isSafe is %t but %d flags were raised", *bs.IsSafe, len(*bs.Flags))
	}
	if err := p.err(BrandSafety); err != nil {
		return model.BrandSafetyReport{}, err
	}

	return model.BrandSafetyReport{
		ParentCompany: strings.TrimSpace(*w.ParentCompany),
		Brand:         strings.TrimSpace(*w.Brand),
		Product:       strings.TrimSpace(*w.Product),
		BrandSafety: model.BrandSafetyVerdict{
			IsSafe:    *bs.IsSafe,
			Flags:     append([]string{}, *bs.Flags...),
			Reasoning: *bs.Reasoning,
		},
	}, nil
}
