// Package perception extracts objective data from creatives (transcripts,
// shot counts, on-screen text, detected objects) with Google Cloud's vision,
// video intelligence and speech APIs. The result feeds the quantitative
// context of the analysis prompts.
package perception

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"google.golang.org/api/option"

	"github.com/sells-group/contentmix/internal/config"
	"github.com/sells-group/contentmix/internal/cost"
	"github.com/sells-group/contentmix/internal/media"
	"github.com/sells-group/contentmix/internal/model"
	"github.com/sells-group/contentmix/internal/resilience"
)

// Service names, also used as circuit breaker keys.
const (
	ServiceVision = "vision"
	ServiceVideo  = "video"
	ServiceSpeech = "speech"
)

// Source is the media to perceive. Ref is a gs:// URI; File holds the
// bytes when the media was uploaded directly. At least one must be set.
type Source struct {
	Ref  string
	File *media.File
}

func (s Source) mimeType() string {
	if s.File != nil && s.File.MIMEType != "" {
		return s.File.MIMEType
	}
	return media.ReferenceType(s.Ref)
}

func (s Source) gcsURI() string {
	if strings.HasPrefix(s.Ref, "gs://") {
		return s.Ref
	}
	return ""
}

func (s Source) content() []byte {
	if s.File != nil {
		return s.File.Data
	}
	return nil
}

// Result is the extracted context plus the estimated spend.
type Result struct {
	Context *model.QuantitativeContext
	Service string
	Cost    float64
}

// Extractor produces the quantitative context of one creative.
type Extractor interface {
	Extract(ctx context.Context, src Source) (*Result, error)
	Close() error
}

// Disabled is the Extractor used when perception is turned off. It returns
// an empty context.
type Disabled struct{}

// Extract implements Extractor.
func (Disabled) Extract(context.Context, Source) (*Result, error) {
	return &Result{Context: &model.QuantitativeContext{}}, nil
}

// Close implements Extractor.
func (Disabled) Close() error { return nil }

// NewExtractor creates an Extractor based on config.
func NewExtractor(ctx context.Context, cfg config.PerceptionConfig, breakers *resilience.ServiceBreakers, calc *cost.Calculator) (Extractor, error) {
	if !cfg.Enabled {
		return Disabled{}, nil
	}
	if !cfg.Vision && !cfg.Video && !cfg.Speech {
		return nil, eris.New("perception: enabled but no service is turned on")
	}

	opts := ClientOptions(cfg)
	g := &GCP{
		languageCode: cfg.LanguageCode,
		timeout:      time.Duration(cfg.TimeoutSecs) * time.Second,
		retry:        resilience.RetryPolicyFor(cfg.MaxAttempts),
		breakers:     breakers,
		calc:         calc,
	}
	if cfg.Vision {
		v, err := newVisionClient(ctx, opts...)
		if err != nil {
			return nil, err
		}
		g.vision = v
	}
	if cfg.Video {
		v, err := newVideoClient(ctx, opts...)
		if err != nil {
			_ = g.Close()
			return nil, err
		}
		g.video = v
	}
	if cfg.Speech {
		s, err := newSpeechClient(ctx, opts...)
		if err != nil {
			_ = g.Close()
			return nil, err
		}
		g.speech = s
	}
	return g, nil
}

// ClientOptions returns the credentials options for the Google Cloud
// clients. Inline JSON wins over a credentials file; with neither set the
// clients fall back to application default credentials.
func ClientOptions(cfg config.PerceptionConfig) []option.ClientOption {
	if js := strings.TrimSpace(cfg.CredentialsJSON); js != "" {
		return []option.ClientOption{option.WithCredentialsJSON([]byte(js))}
	}
	if f := strings.TrimSpace(cfg.CredentialsFile); f != "" {
		return []option.ClientOption{option.WithCredentialsFile(f)}
	}
	return nil
}
