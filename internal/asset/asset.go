// Package asset turns an upload into a persisted Asset: it validates the
// media, runs the optional perception pre-pass, analyzes the creative with
// the brand safety and asset analysis flows in parallel, merges the
// results and saves one record.
package asset

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/contentmix/internal/features"
	"github.com/sells-group/contentmix/internal/flow"
	"github.com/sells-group/contentmix/internal/media"
	"github.com/sells-group/contentmix/internal/model"
	"github.com/sells-group/contentmix/internal/perception"
	"github.com/sells-group/contentmix/internal/prompt"
	"github.com/sells-group/contentmix/internal/registry"
	"github.com/sells-group/contentmix/internal/store"
)

// ErrInvalidUpload is returned for uploads rejected before any inference.
var ErrInvalidUpload = eris.New("asset: invalid upload")

// snIDAttempts bounds regeneration of a colliding contentSnId.
const snIDAttempts = 3

// Upload is one creative plus the metadata the user entered for it.
// Exactly one of File and MediaRef is set.
type Upload struct {
	File     *media.File
	MediaRef string

	Name        string
	Creator     string
	Campaign    string
	Length      string
	Tags        string
	Daypart     string
	SpotLength  string
	Thumbnail   string
	ContentType model.AssetContentType

	Manual       *model.ManualContext
	Quantitative *model.QuantitativeContext
	Overrides    map[string]features.Override

	ROAS  *float64
	Spend *float64
	CPA   *float64
}

// Flows runs the two analyses an upload needs. *flow.Executor implements it.
type Flows interface {
	BrandSafety(ctx context.Context, in prompt.MediaInput) flow.Outcome[model.BrandSafetyReport]
	AssetAnalysis(ctx context.Context, in prompt.MediaInput) flow.Outcome[model.AssetAnalysis]
	Registry() *registry.Registry
}

// Analyzer runs the upload pipeline.
type Analyzer struct {
	flows     Flows
	store     store.Store
	perceiver perception.Extractor
	archive   media.Archive
	maxBytes  int64
	now       func() time.Time
	rand      io.Reader
	newID     func() string
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithPerception enables the perception pre-pass.
func WithPerception(p perception.Extractor) Option {
	return func(a *Analyzer) { a.perceiver = p }
}

// WithArchive stores uploaded bytes before analysis.
func WithArchive(ar media.Archive) Option {
	return func(a *Analyzer) { a.archive = ar }
}

// WithMaxBytes caps the upload size.
func WithMaxBytes(n int64) Option {
	return func(a *Analyzer) { a.maxBytes = n }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(a *Analyzer) { a.now = now }
}

// WithRandom replaces the contentSnId suffix source.
func WithRandom(r io.Reader) Option {
	return func(a *Analyzer) { a.rand = r }
}

// NewAnalyzer creates an Analyzer. st may be nil when only Analyze is used.
func NewAnalyzer(flows Flows, st store.Store, opts ...Option) *Analyzer {
	a := &Analyzer{
		flows: flows,
		store: st,
		now:   time.Now,
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Ingest analyzes the upload and saves the merged asset.
func (a *Analyzer) Ingest(ctx context.Context, up Upload) (*model.Asset, error) {
	asset, err := a.Analyze(ctx, up)
	if err != nil {
		return nil, err
	}
	if err := a.Save(ctx, asset); err != nil {
		return nil, err
	}
	return asset, nil
}

// Analyze validates the upload and returns the merged, unsaved asset. Any
// flow failure aborts the merge; the error carries the *flow.FlowError.
func (a *Analyzer) Analyze(ctx context.Context, up Upload) (*model.Asset, error) {
	kind, err := a.validate(up)
	if err != nil {
		return nil, err
	}

	ref := up.MediaRef
	if up.File != nil && a.archive != nil {
		key := a.now().UTC().Format("2006/01/02")
		uri, err := a.archive.Put(ctx, key, up.File)
		if err != nil {
			return nil, eris.Wrap(err, "asset: archive upload")
		}
		ref = uri
	}

	quant := a.perceive(ctx, kind, ref, up)
	in := prompt.MediaInput{
		Media:        flowMedia(up.File, ref),
		Manual:       up.Manual,
		Quantitative: quant,
	}

	var safety model.BrandSafetyReport
	var analysis model.AssetAnalysis
	var g errgroup.Group
	g.Go(func() error {
		r, err := a.flows.BrandSafety(ctx, in).Result()
		if err != nil {
			return err
		}
		safety = *r
		return nil
	})
	g.Go(func() error {
		r, err := a.flows.AssetAnalysis(ctx, in).Result()
		if err != nil {
			return err
		}
		analysis = *r
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "asset: analyze")
	}

	if len(up.Overrides) > 0 {
		edited, err := features.ApplyOverrides(analysis.Analysis, up.Overrides)
		if err != nil {
			return nil, eris.Wrap(errors.Join(ErrInvalidUpload, err), "asset: apply overrides")
		}
		analysis.Analysis = edited
		analysis.MLReadyFeatures = features.FlattenWith(a.flows.Registry(), edited)
	}

	created := a.now()
	sn, err := ContentSnID(kind, up.Creator, up.Campaign, created, a.rand)
	if err != nil {
		return nil, err
	}
	asset := Merge(Parts{
		Upload:       up,
		Kind:         kind,
		MediaURI:     persistentRef(ref),
		BrandSafety:  safety,
		Analysis:     analysis,
		Quantitative: quant,
	}, a.newID(), sn, created)

	zap.L().Info("asset: analyzed",
		zap.String("content_sn_id", asset.ContentSnID),
		zap.String("type", string(kind)),
		zap.Bool("is_safe", safety.BrandSafety.IsSafe),
		zap.Int("features", len(asset.MLReadyFeatures)),
	)
	return asset, nil
}

// Save writes the asset in a single insert. A contentSnId collision draws
// a new suffix.
func (a *Analyzer) Save(ctx context.Context, asset *model.Asset) error {
	if a.store == nil {
		return eris.New("asset: no store configured")
	}
	var err error
	for attempt := 0; attempt < snIDAttempts; attempt++ {
		err = a.store.CreateAsset(ctx, asset)
		if !errors.Is(err, store.ErrConflict) {
			break
		}
		sn, snErr := ContentSnID(asset.Type, asset.Creator, asset.Campaign, asset.CreatedAt, a.rand)
		if snErr != nil {
			return snErr
		}
		zap.L().Debug("asset: contentSnId collision", zap.String("content_sn_id", asset.ContentSnID))
		asset.ContentSnID = sn
	}
	if err != nil {
		return eris.Wrap(err, "asset: save")
	}
	zap.L().Info("asset: saved", zap.String("id", asset.ID), zap.String("content_sn_id", asset.ContentSnID))
	return nil
}

func (a *Analyzer) validate(up Upload) (model.MediaKind, error) {
	invalid := func(format string, args ...any) error {
		return eris.Wrapf(ErrInvalidUpload, format, args...)
	}

	hasRef := strings.TrimSpace(up.MediaRef) != ""
	switch {
	case up.File == nil && !hasRef:
		return "", invalid("a file or media reference is required")
	case up.File != nil && hasRef:
		return "", invalid("send a file or a media reference, not both")
	}
	if strings.TrimSpace(up.Creator) == "" {
		return "", invalid("creator is required")
	}
	if strings.TrimSpace(up.Campaign) == "" {
		return "", invalid("campaign is required")
	}
	if up.ContentType != "" && !up.ContentType.Valid() {
		return "", invalid("unknown content type %q", up.ContentType)
	}
	for name := range up.Overrides {
		if _, ok := a.flows.Registry().Describe(name); !ok {
			return "", invalid("override for unknown feature %s", name)
		}
	}

	if up.File != nil {
		if err := up.File.CheckSize(a.maxBytes); err != nil {
			return "", eris.Wrap(errors.Join(ErrInvalidUpload, err), "asset: validate")
		}
		kind, err := up.File.Kind()
		if err != nil {
			return "", eris.Wrap(errors.Join(ErrInvalidUpload, err), "asset: validate")
		}
		return kind, nil
	}

	if media.IsDataURI(up.MediaRef) {
		f, err := media.ParseDataURI(up.MediaRef)
		if err != nil {
			return "", eris.Wrap(errors.Join(ErrInvalidUpload, err), "asset: validate")
		}
		if err := f.CheckSize(a.maxBytes); err != nil {
			return "", eris.Wrap(errors.Join(ErrInvalidUpload, err), "asset: validate")
		}
		kind, err := f.Kind()
		if err != nil {
			return "", eris.Wrap(errors.Join(ErrInvalidUpload, err), "asset: validate")
		}
		return kind, nil
	}
	kind, err := media.Classify(media.ReferenceType(up.MediaRef))
	if err != nil {
		return "", eris.Wrap(errors.Join(ErrInvalidUpload, err), "asset: validate")
	}
	return kind, nil
}

// perceive runs the pre-pass and fills the blanks of the caller's context.
// A failure only loses the enrichment.
func (a *Analyzer) perceive(ctx context.Context, kind model.MediaKind, ref string, up Upload) *model.QuantitativeContext {
	if a.perceiver == nil {
		return up.Quantitative
	}
	src := perception.Source{Ref: ref, File: up.File}
	if src.File == nil && media.IsDataURI(ref) {
		f, err := media.ParseDataURI(ref)
		if err == nil {
			src = perception.Source{File: f}
		}
	}
	res, err := a.perceiver.Extract(ctx, src)
	if err != nil {
		zap.L().Warn("asset: perception failed, continuing without it",
			zap.String("type", string(kind)), zap.Error(err))
		return up.Quantitative
	}
	return mergeQuantitative(up.Quantitative, res.Context)
}

func mergeQuantitative(given, found *model.QuantitativeContext) *model.QuantitativeContext {
	if found.IsZero() {
		return given
	}
	out := *found
	if given != nil {
		if given.Transcript != "" {
			out.Transcript = given.Transcript
		}
		if given.ShotCount != nil {
			out.ShotCount = given.ShotCount
		}
		if len(given.DetectedObjects) > 0 {
			out.DetectedObjects = given.DetectedObjects
		}
		if given.OCRText != "" {
			out.OCRText = given.OCRText
		}
	}
	return &out
}

// flowMedia picks the reference the flows see: inline bytes for images the
// model can read directly, otherwise the archived reference when present.
func flowMedia(f *media.File, ref string) string {
	if f == nil {
		return ref
	}
	if media.Inlineable(f.MIMEType) || ref == "" {
		return f.DataURI()
	}
	return ref
}

// persistentRef drops data URIs, which would copy the media into the record.
func persistentRef(ref string) string {
	if media.IsDataURI(ref) {
		return ""
	}
	return ref
}
