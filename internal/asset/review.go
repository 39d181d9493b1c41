package asset

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/contentmix/internal/model"
	"github.com/sells-group/contentmix/internal/store"
)

// ErrInvalidTransition is returned when the review workflow forbids a
// status change.
var ErrInvalidTransition = eris.New("asset: invalid status transition")

// Transition moves an asset along the review workflow:
// New → In Review → Approved | Rejected, Rejected → In Review,
// Approved → Ready for Publisher → Picked Up.
func Transition(ctx context.Context, st store.Store, id string, to model.AssetStatus) (*model.Asset, error) {
	if !to.Valid() {
		return nil, eris.Wrapf(ErrInvalidTransition, "unknown status %q", to)
	}
	a, err := st.GetAsset(ctx, id)
	if err != nil {
		return nil, err
	}
	from := a.Status
	if !from.CanTransition(to) {
		return nil, eris.Wrapf(ErrInvalidTransition, "%q to %q", from, to)
	}
	if err := st.UpdateAssetStatus(ctx, id, from, to); err != nil {
		return nil, err
	}
	a.Status = to
	zap.L().Info("asset: status changed",
		zap.String("id", id), zap.String("from", string(from)), zap.String("to", string(to)))
	return a, nil
}

// Update applies a status transition and a content type change together.
// Both are checked against the current asset before anything is written, so
// a rejected transition leaves the content type untouched. Nil fields are
// left as they are.
func Update(ctx context.Context, st store.Store, id string, to *model.AssetStatus, ct *model.AssetContentType) (*model.Asset, error) {
	if ct != nil && !ct.Valid() {
		return nil, eris.Wrapf(ErrInvalidUpload, "unknown content type %q", *ct)
	}
	if to != nil && !to.Valid() {
		return nil, eris.Wrapf(ErrInvalidTransition, "unknown status %q", *to)
	}
	a, err := st.GetAsset(ctx, id)
	if err != nil {
		return nil, err
	}
	if to != nil {
		from := a.Status
		if !from.CanTransition(*to) {
			return nil, eris.Wrapf(ErrInvalidTransition, "%q to %q", from, *to)
		}
		if err := st.UpdateAssetStatus(ctx, id, from, *to); err != nil {
			return nil, err
		}
		a.Status = *to
		zap.L().Info("asset: status changed",
			zap.String("id", id), zap.String("from", string(from)), zap.String("to", string(*to)))
	}
	if ct != nil && *ct != a.ContentType {
		if err := st.UpdateAssetContentType(ctx, id, *ct); err != nil {
			return nil, err
		}
		a.ContentType = *ct
	}
	return a, nil
}

// SetContentType reclassifies an asset.
func SetContentType(ctx context.Context, st store.Store, id string, ct model.AssetContentType) (*model.Asset, error) {
	if !ct.Valid() {
		return nil, eris.Wrapf(ErrInvalidUpload, "unknown content type %q", ct)
	}
	if err := st.UpdateAssetContentType(ctx, id, ct); err != nil {
		return nil, err
	}
	return st.GetAsset(ctx, id)
}

// RecordScore stores a scorecard's overall score as the asset's contentScore.
func RecordScore(ctx context.Context, st store.Store, id string, sc model.Scorecard) error {
	if err := st.SetContentScore(ctx, id, sc.OverallContentScore); err != nil {
		return eris.Wrapf(err, "asset: record score %s", id)
	}
	return nil
}
