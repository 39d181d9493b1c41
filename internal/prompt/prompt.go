// Package prompt renders the instruction text sent to the inference
// collaborator for each analysis flow.
package prompt

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/sells-group/contentmix/internal/media"
	"github.com/sells-group/contentmix/internal/model"
	"github.com/sells-group/contentmix/internal/registry"
)

// ErrNoMedia is returned when a media reference is missing.
var ErrNoMedia = eris.New("prompt: media reference is required")

// MediaInput is the payload of the three single-asset flows.
type MediaInput struct {
	Media        string                     `json:"media"`
	Manual       *model.ManualContext       `json:"manualData,omitempty"`
	Quantitative *model.QuantitativeContext `json:"quantitativeData,omitempty"`
}

// Payload is the original input the rendered instruction was built from.
type Payload struct {
	Media       *MediaInput               `json:"media,omitempty"`
	Attribution *model.AttributionRequest `json:"attribution,omitempty"`
}

// Rendered is a complete request for one flow. System is stable across
// calls of the same flow and is sent as a cacheable system block.
type Rendered struct {
	System      string
	Instruction string
	Payload     Payload
}

// mediaLine refers to the creative. Data URIs are attached to the request
// separately, so their bytes are never inlined into the text.
func mediaLine(ref string) string {
	if media.IsDataURI(ref) {
		if mt := media.ReferenceType(ref); mt != "" {
			return fmt.Sprintf("Analyze the attached file (%s).", mt)
		}
		return "Analyze the attached file."
	}
	return "Analyze this file: " + ref
}

func checkMedia(in MediaInput) error {
	if strings.TrimSpace(in.Media) == "" {
		return ErrNoMedia
	}
	return nil
}

// contextBlock renders the manual and quantitative context. Absent fields are
// left out and an empty block renders as "".
func contextBlock(manual *model.ManualContext, quant *model.QuantitativeContext) string {
	var lines []string
	add := func(label, value string) {
		if v := strings.TrimSpace(value); v != "" {
			lines = append(lines, "- "+label+": "+v)
		}
	}
	if manual != nil {
		add("Campaign Name", manual.CampaignName)
		add("Agency", manual.CreativeAgencyName)
		add("Platform", strings.Join(manual.PlatformAired, ", "))
		add("Endorsement", manual.EndorsementType)
		add("Narrator", manual.NarratorType)
		if manual.WasCreativeTested != nil {
			add("Creative Tested", yesNo(*manual.WasCreativeTested))
		}
	}
	if !quant.IsZero() {
		add("Transcript", quant.Transcript)
		if quant.ShotCount != nil {
			add("Shot Count", strconv.Itoa(*quant.ShotCount))
		}
		add("Detected Objects", strings.Join(quant.DetectedObjects, ", "))
		add("On-screen Text", quant.OCRText)
	}
	if len(lines) == 0 {
		return ""
	}
	return "Provided context (manual and quantitative):\n" + strings.Join(lines, "\n")
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

// join assembles non-empty sections separated by blank lines.
func join(sections ...string) string {
	out := make([]string, 0, len(sections))
	for _, s := range sections {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return strings.Join(out, "\n\n")
}

// BrandSafety renders the brand safety and product identification request.
func BrandSafety(in MediaInput) (Rendered, error) {
	if err := checkMedia(in); err != nil {
		return Rendered{}, err
	}
	return Rendered{
		System: brandSafetySystem,
		Instruction: join(
			brandSafetySteps,
			mediaLine(in.Media),
			contextBlock(in.Manual, nil),
			brandSafetySchema,
		),
		Payload: Payload{Media: &in},
	}, nil
}

// AssetAnalysis renders the qualitative analysis request. The rubric and
// output schema are generated from reg.
func AssetAnalysis(reg *registry.Registry, in MediaInput) (Rendered, error) {
	if err := checkMedia(in); err != nil {
		return Rendered{}, err
	}
	return Rendered{
		System: assetAnalysisSystem,
		Instruction: join(
			assetAnalysisSteps,
			mediaLine(in.Media),
			contextBlock(in.Manual, in.Quantitative),
			rubric(reg),
			analysisSchema(reg),
		),
		Payload: Payload{Media: &in},
	}, nil
}

// Scorecard renders the creative scorecard request.
func Scorecard(in MediaInput) (Rendered, error) {
	if err := checkMedia(in); err != nil {
		return Rendered{}, err
	}
	return Rendered{
		System: scorecardSystem,
		Instruction: join(
			scorecardRubric(),
			mediaLine(in.Media),
			contextBlock(in.Manual, in.Quantitative),
			scorecardSchema,
		),
		Payload: Payload{Media: &in},
	}, nil
}

var printer = message.NewPrinter(language.English)

// Money formats an amount in US dollars with thousands separators.
func Money(v float64) string {
	return printer.Sprintf("$%.2f", v)
}

// Attribution renders the content attribution request: one line per asset
// and the total revenue pool to distribute.
func Attribution(req model.AttributionRequest) (Rendered, error) {
	if len(req.Assets) == 0 {
		return Rendered{}, eris.New("prompt: attribution needs at least one asset")
	}
	if req.TotalRevenue <= 0 {
		return Rendered{}, eris.Errorf("prompt: total revenue must be > 0, got %g", req.TotalRevenue)
	}
	seen := make(map[string]bool, len(req.Assets))
	lines := make([]string, 0, len(req.Assets))
	for i, a := range req.Assets {
		if strings.TrimSpace(a.ContentSnID) == "" {
			return Rendered{}, eris.Errorf("prompt: asset %d has no contentSnId", i)
		}
		if seen[a.ContentSnID] {
			return Rendered{}, eris.Errorf("prompt: duplicate contentSnId %s", a.ContentSnID)
		}
		if a.Conversions < 0 {
			return Rendered{}, eris.Errorf("prompt: asset %s has negative conversions", a.ContentSnID)
		}
		seen[a.ContentSnID] = true
		lines = append(lines, assetLine(a))
	}

	task := fmt.Sprintf(attributionTask, Money(req.TotalRevenue))
	return Rendered{
		System: attributionSystem,
		Instruction: join(
			task,
			"Asset data:\n"+strings.Join(lines, "\n"),
			attributionSchema,
		),
		Payload: Payload{Attribution: &req},
	}, nil
}

func assetLine(a model.AssetPerformance) string {
	parts := []string{"Content ID: " + a.ContentSnID}
	add := func(label, v string) {
		if v = strings.TrimSpace(v); v != "" {
			parts = append(parts, label+": "+v)
		}
	}
	add("Creator", a.Creator)
	add("Type", a.Type)
	add("Length", a.Length)
	add("Campaign", a.Campaign)
	add("Tags", a.Tags)
	add("Daypart", a.Daypart)
	add("Spot Length", a.SpotLength)
	parts = append(parts, "Conversions: "+strconv.Itoa(a.Conversions))
	return "- " + strings.Join(parts, ", ")
}
