package perception

import (
	"context"
	"slices"
	"strings"

	vision "cloud.google.com/go/vision/v2/apiv1"
	visionpb "cloud.google.com/go/vision/v2/apiv1/visionpb"
	"github.com/rotisserie/eris"
	"google.golang.org/api/option"

	"github.com/sells-group/contentmix/internal/model"
)

// minObjectScore drops low-confidence labels and objects.
const minObjectScore = 0.6

type visionAPI interface {
	annotate(ctx context.Context, req *visionpb.BatchAnnotateImagesRequest) (*visionpb.BatchAnnotateImagesResponse, error)
	Close() error
}

type visionClient struct {
	c *vision.ImageAnnotatorClient
}

func newVisionClient(ctx context.Context, opts ...option.ClientOption) (*visionClient, error) {
	c, err := vision.NewImageAnnotatorClient(ctx, opts...)
	if err != nil {
		return nil, eris.Wrap(err, "perception: vision client")
	}
	return &visionClient{c: c}, nil
}

func (v *visionClient) annotate(ctx context.Context, req *visionpb.BatchAnnotateImagesRequest) (*visionpb.BatchAnnotateImagesResponse, error) {
	return v.c.BatchAnnotateImages(ctx, req)
}

func (v *visionClient) Close() error { return v.c.Close() }

var visionFeatures = []*visionpb.Feature{
	{Type: visionpb.Feature_DOCUMENT_TEXT_DETECTION},
	{Type: visionpb.Feature_LABEL_DETECTION, MaxResults: 15},
	{Type: visionpb.Feature_OBJECT_LOCALIZATION, MaxResults: 15},
}

func (g *GCP) extractImage(ctx context.Context, src Source) (*Result, error) {
	if g.vision == nil {
		return nil, eris.Wrap(ErrServiceDisabled, ServiceVision)
	}

	img := &visionpb.Image{}
	switch {
	case len(src.content()) > 0:
		img.Content = src.content()
	case src.Ref != "":
		img.Source = &visionpb.ImageSource{ImageUri: src.Ref}
	default:
		return nil, eris.New("perception: image has no content")
	}
	req := &visionpb.BatchAnnotateImagesRequest{
		Requests: []*visionpb.AnnotateImageRequest{{Image: img, Features: visionFeatures}},
	}

	resp, err := call(ctx, g, ServiceVision, "annotate_image", func(ctx context.Context) (*visionpb.BatchAnnotateImagesResponse, error) {
		return g.vision.annotate(ctx, req)
	})
	if err != nil {
		return nil, eris.Wrap(err, "perception: vision annotate")
	}

	qc, err := parseVision(resp)
	if err != nil {
		return nil, err
	}
	return &Result{Context: qc, Service: ServiceVision, Cost: g.cost().Vision(len(visionFeatures))}, nil
}

func parseVision(resp *visionpb.BatchAnnotateImagesResponse) (*model.QuantitativeContext, error) {
	qc := &model.QuantitativeContext{}
	if resp == nil || len(resp.GetResponses()) == 0 || resp.GetResponses()[0] == nil {
		return qc, nil
	}
	r := resp.GetResponses()[0]
	if msg := r.GetError().GetMessage(); msg != "" {
		return nil, eris.Errorf("perception: vision annotate error: %s", msg)
	}

	qc.OCRText = collapseWhitespace(r.GetFullTextAnnotation().GetText())

	var names []string
	for _, o := range r.GetLocalizedObjectAnnotations() {
		if o.GetScore() >= minObjectScore {
			names = append(names, o.GetName())
		}
	}
	for _, l := range r.GetLabelAnnotations() {
		if l.GetScore() >= minObjectScore {
			names = append(names, l.GetDescription())
		}
	}
	qc.DetectedObjects = dedupe(names)
	return qc, nil
}

// dedupe trims names and drops blanks and case-insensitive repeats,
// keeping first-seen order.
func dedupe(names []string) []string {
	var out []string
	var seen []string
	for _, n := range names {
		n = strings.TrimSpace(n)
		key := strings.ToLower(n)
		if n == "" || slices.Contains(seen, key) {
			continue
		}
		seen = append(seen, key)
		out = append(out, n)
	}
	return out
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(strings.ReplaceAll(s, "\u00a0", " ")), " ")
}
