package perception

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/contentmix/internal/cost"
	"github.com/sells-group/contentmix/internal/media"
	"github.com/sells-group/contentmix/internal/model"
	"github.com/sells-group/contentmix/internal/resilience"
)

// ErrServiceDisabled is returned when the media kind needs a service that
// is turned off.
var ErrServiceDisabled = eris.New("perception: service disabled")

// GCP routes each media kind to its Google Cloud service: images to vision,
// video to video intelligence, audio to speech. Calls are retried on
// transient errors and guarded by one circuit breaker per service.
type GCP struct {
	vision visionAPI
	video  videoAPI
	speech speechAPI

	languageCode string
	timeout      time.Duration
	retry        resilience.RetryPolicy
	breakers     *resilience.ServiceBreakers
	calc         *cost.Calculator
}

// Extract implements Extractor.
func (g *GCP) Extract(ctx context.Context, src Source) (*Result, error) {
	if src.Ref == "" && src.File == nil {
		return nil, eris.New("perception: source has neither reference nor content")
	}
	kind, err := media.Classify(src.mimeType())
	if err != nil {
		return nil, eris.Wrap(err, "perception: classify source")
	}
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	var res *Result
	switch kind {
	case model.MediaImage:
		res, err = g.extractImage(ctx, src)
	case model.MediaVideo:
		res, err = g.extractVideo(ctx, src)
	default:
		res, err = g.extractAudio(ctx, src)
	}
	if err != nil {
		return nil, err
	}

	zap.L().Info("perception: extracted",
		zap.String("service", res.Service),
		zap.String("media_kind", string(kind)),
		zap.Bool("has_transcript", res.Context.Transcript != ""),
		zap.Int("objects", len(res.Context.DetectedObjects)),
		zap.Float64("cost_usd", res.Cost),
	)
	return res, nil
}

// Close releases every client.
func (g *GCP) Close() error {
	var firstErr error
	for _, c := range []interface{ Close() error }{g.vision, g.video, g.speech} {
		if c == nil {
			continue
		}
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// call runs fn for service behind its breaker, retrying transient failures.
func call[T any](ctx context.Context, g *GCP, service, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	retry := g.retry
	retry.OnRetry = resilience.RetryLogger(service, op)
	return resilience.Retry(ctx, retry, func(ctx context.Context) (T, error) {
		if g.breakers == nil {
			return fn(ctx)
		}
		return resilience.ExecuteVal(ctx, g.breakers.Get(service), fn)
	})
}

func (g *GCP) cost() *cost.Calculator {
	if g.calc == nil {
		g.calc = cost.NewCalculator(cost.DefaultRates())
	}
	return g.calc
}

func (g *GCP) language() string {
	if g.languageCode == "" {
		return "en-US"
	}
	return g.languageCode
}
