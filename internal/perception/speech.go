package perception

import (
	"context"
	"strings"

	speech "cloud.google.com/go/speech/apiv1"
	speechpb "cloud.google.com/go/speech/apiv1/speechpb"
	"github.com/rotisserie/eris"
	"google.golang.org/api/option"

	"github.com/sells-group/contentmix/internal/model"
)

type speechAPI interface {
	recognize(ctx context.Context, req *speechpb.LongRunningRecognizeRequest) (*speechpb.LongRunningRecognizeResponse, error)
	Close() error
}

type speechClient struct {
	c *speech.Client
}

func newSpeechClient(ctx context.Context, opts ...option.ClientOption) (*speechClient, error) {
	c, err := speech.NewClient(ctx, opts...)
	if err != nil {
		return nil, eris.Wrap(err, "perception: speech client")
	}
	return &speechClient{c: c}, nil
}

func (s *speechClient) recognize(ctx context.Context, req *speechpb.LongRunningRecognizeRequest) (*speechpb.LongRunningRecognizeResponse, error) {
	op, err := s.c.LongRunningRecognize(ctx, req)
	if err != nil {
		return nil, err
	}
	return op.Wait(ctx)
}

func (s *speechClient) Close() error { return s.c.Close() }

func (g *GCP) extractAudio(ctx context.Context, src Source) (*Result, error) {
	if g.speech == nil {
		return nil, eris.Wrap(ErrServiceDisabled, ServiceSpeech)
	}

	req := &speechpb.LongRunningRecognizeRequest{
		Config: &speechpb.RecognitionConfig{
			LanguageCode:               g.language(),
			Encoding:                   speechEncoding(src.mimeType()),
			EnableAutomaticPunctuation: true,
		},
	}
	switch {
	case len(src.content()) > 0:
		req.Audio = &speechpb.RecognitionAudio{AudioSource: &speechpb.RecognitionAudio_Content{Content: src.content()}}
	case src.gcsURI() != "":
		req.Audio = &speechpb.RecognitionAudio{AudioSource: &speechpb.RecognitionAudio_Uri{Uri: src.gcsURI()}}
	default:
		return nil, eris.Errorf("perception: audio needs a gs:// URI or content, got %q", src.Ref)
	}

	resp, err := call(ctx, g, ServiceSpeech, "long_running_recognize", func(ctx context.Context) (*speechpb.LongRunningRecognizeResponse, error) {
		return g.speech.recognize(ctx, req)
	})
	if err != nil {
		return nil, eris.Wrap(err, "perception: speech recognize")
	}

	qc, seconds := parseSpeech(resp)
	return &Result{Context: qc, Service: ServiceSpeech, Cost: g.cost().Speech(seconds)}, nil
}

// speechEncoding maps a MIME type to the recognizer encoding. Unknown
// types are left for the API to detect from the file header.
func speechEncoding(mimeType string) speechpb.RecognitionConfig_AudioEncoding {
	m := strings.ToLower(mimeType)
	switch {
	case strings.Contains(m, "wav"):
		return speechpb.RecognitionConfig_LINEAR16
	case strings.Contains(m, "flac"):
		return speechpb.RecognitionConfig_FLAC
	case strings.Contains(m, "mpeg"), strings.Contains(m, "mp3"):
		return speechpb.RecognitionConfig_MP3
	case strings.Contains(m, "ogg"), strings.Contains(m, "opus"):
		return speechpb.RecognitionConfig_OGG_OPUS
	case strings.Contains(m, "webm"):
		return speechpb.RecognitionConfig_WEBM_OPUS
	default:
		return speechpb.RecognitionConfig_ENCODING_UNSPECIFIED
	}
}

// parseSpeech returns the context and the recognized duration in seconds.
func parseSpeech(resp *speechpb.LongRunningRecognizeResponse) (*model.QuantitativeContext, float64) {
	qc := &model.QuantitativeContext{}
	var parts []string
	var seconds float64
	for _, r := range resp.GetResults() {
		if end := r.GetResultEndTime().AsDuration().Seconds(); end > seconds {
			seconds = end
		}
		alts := r.GetAlternatives()
		if len(alts) == 0 {
			continue
		}
		if t := strings.TrimSpace(alts[0].GetTranscript()); t != "" {
			parts = append(parts, t)
		}
	}
	qc.Transcript = strings.Join(parts, " ")
	return qc, seconds
}
