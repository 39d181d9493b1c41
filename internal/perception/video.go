package perception

import (
	"context"
	"strings"

	videointelligence "cloud.google.com/go/videointelligence/apiv1"
	vipb "cloud.google.com/go/videointelligence/apiv1/videointelligencepb"
	"github.com/rotisserie/eris"
	"google.golang.org/api/option"

	"github.com/sells-group/contentmix/internal/model"
)

type videoAPI interface {
	annotate(ctx context.Context, req *vipb.AnnotateVideoRequest) (*vipb.AnnotateVideoResponse, error)
	Close() error
}

type videoClient struct {
	c *videointelligence.Client
}

func newVideoClient(ctx context.Context, opts ...option.ClientOption) (*videoClient, error) {
	c, err := videointelligence.NewClient(ctx, opts...)
	if err != nil {
		return nil, eris.Wrap(err, "perception: videointelligence client")
	}
	return &videoClient{c: c}, nil
}

// annotate starts the long-running operation and waits for it.
func (v *videoClient) annotate(ctx context.Context, req *vipb.AnnotateVideoRequest) (*vipb.AnnotateVideoResponse, error) {
	op, err := v.c.AnnotateVideo(ctx, req)
	if err != nil {
		return nil, err
	}
	return op.Wait(ctx)
}

func (v *videoClient) Close() error { return v.c.Close() }

var videoFeatures = []vipb.Feature{
	vipb.Feature_SHOT_CHANGE_DETECTION,
	vipb.Feature_SPEECH_TRANSCRIPTION,
	vipb.Feature_TEXT_DETECTION,
	vipb.Feature_LABEL_DETECTION,
}

func (g *GCP) extractVideo(ctx context.Context, src Source) (*Result, error) {
	if g.video == nil {
		return nil, eris.Wrap(ErrServiceDisabled, ServiceVideo)
	}

	req := &vipb.AnnotateVideoRequest{
		Features: videoFeatures,
		VideoContext: &vipb.VideoContext{
			SpeechTranscriptionConfig: &vipb.SpeechTranscriptionConfig{
				LanguageCode:               g.language(),
				EnableAutomaticPunctuation: true,
			},
			TextDetectionConfig: &vipb.TextDetectionConfig{},
		},
	}
	switch {
	case src.gcsURI() != "":
		req.InputUri = src.gcsURI()
	case len(src.content()) > 0:
		req.InputContent = src.content()
	default:
		return nil, eris.Errorf("perception: video needs a gs:// URI or content, got %q", src.Ref)
	}

	resp, err := call(ctx, g, ServiceVideo, "annotate_video", func(ctx context.Context) (*vipb.AnnotateVideoResponse, error) {
		return g.video.annotate(ctx, req)
	})
	if err != nil {
		return nil, eris.Wrap(err, "perception: videointelligence annotate")
	}

	qc, seconds, err := parseVideo(resp)
	if err != nil {
		return nil, err
	}
	return &Result{Context: qc, Service: ServiceVideo, Cost: g.cost().Video(seconds, len(videoFeatures))}, nil
}

// parseVideo returns the context and the annotated duration in seconds.
func parseVideo(resp *vipb.AnnotateVideoResponse) (*model.QuantitativeContext, float64, error) {
	qc := &model.QuantitativeContext{}
	if resp == nil || len(resp.GetAnnotationResults()) == 0 || resp.GetAnnotationResults()[0] == nil {
		return qc, 0, nil
	}
	ar := resp.GetAnnotationResults()[0]
	if msg := ar.GetError().GetMessage(); msg != "" {
		return nil, 0, eris.Errorf("perception: videointelligence error: %s", msg)
	}

	var seconds float64
	shots := ar.GetShotAnnotations()
	if len(shots) > 0 {
		n := len(shots)
		qc.ShotCount = &n
		for _, s := range shots {
			if end := s.GetEndTimeOffset().AsDuration().Seconds(); end > seconds {
				seconds = end
			}
		}
	}

	var transcript []string
	for _, st := range ar.GetSpeechTranscriptions() {
		alts := st.GetAlternatives()
		if len(alts) == 0 {
			continue
		}
		if t := strings.TrimSpace(alts[0].GetTranscript()); t != "" {
			transcript = append(transcript, t)
		}
	}
	qc.Transcript = strings.Join(transcript, " ")

	var text []string
	for _, ta := range ar.GetTextAnnotations() {
		text = append(text, ta.GetText())
	}
	qc.OCRText = strings.Join(dedupe(text), " | ")

	var labels []string
	for _, la := range ar.GetSegmentLabelAnnotations() {
		labels = append(labels, la.GetEntity().GetDescription())
	}
	qc.DetectedObjects = dedupe(labels)
	return qc, seconds, nil
}
