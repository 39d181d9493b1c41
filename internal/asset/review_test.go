package asset

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/contentmix/internal/model"
	"github.com/sells-group/contentmix/internal/store"
)

func seedAsset(t *testing.T, st store.Store, status model.AssetStatus) string {
	t.Helper()
	a := &model.Asset{ID: "a1", ContentSnID: "VID-ACME-SUMM-20240715-AAAA", Creator: "Acme",
		Type: model.MediaVideo, Status: status, ContentType: model.ContentTypeBranded}
	a.StampCreated(time.Now())
	require.NoError(t, st.CreateAsset(context.Background(), a))
	return a.ID
}

func TestTransition_Workflow(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	id := seedAsset(t, st, model.AssetStatusNew)

	for _, to := range []model.AssetStatus{
		model.AssetStatusInReview,
		model.AssetStatusRejected,
		model.AssetStatusInReview,
		model.AssetStatusApproved,
		model.AssetStatusReadyForPublisher,
		model.AssetStatusPickedUp,
	} {
		a, err := Transition(ctx, st, id, to)
		require.NoError(t, err, "to %s", to)
		assert.Equal(t, to, a.Status)
	}

	got, err := st.GetAsset(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, model.AssetStatusPickedUp, got.Status)
}

func TestTransition_Rejected(t *testing.T) {
	tests := []struct {
		name string
		from model.AssetStatus
		to   model.AssetStatus
	}{
		{"skip review", model.AssetStatusNew, model.AssetStatusApproved},
		{"back to new", model.AssetStatusInReview, model.AssetStatusNew},
		{"publish rejected", model.AssetStatusRejected, model.AssetStatusReadyForPublisher},
		{"terminal", model.AssetStatusPickedUp, model.AssetStatusInReview},
		{"same", model.AssetStatusApproved, model.AssetStatusApproved},
		{"unknown", model.AssetStatusNew, "Archived"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := newTestStore(t)
			id := seedAsset(t, st, tt.from)

			_, err := Transition(context.Background(), st, id, tt.to)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidTransition))

			got, err := st.GetAsset(context.Background(), id)
			require.NoError(t, err)
			assert.Equal(t, tt.from, got.Status)
		})
	}
}

func TestTransition_NotFound(t *testing.T) {
	st := newTestStore(t)
	_, err := Transition(context.Background(), st, "missing", model.AssetStatusInReview)
	require.Error(t, err)
	assert.True(t, errors.Is(err, store.ErrNotFound))
}

func TestSetContentType(t *testing.T) {
	st := newTestStore(t)
	id := seedAsset(t, st, model.AssetStatusNew)

	a, err := SetContentType(context.Background(), st, id, model.ContentTypeEndorsed)
	require.NoError(t, err)
	assert.Equal(t, model.ContentTypeEndorsed, a.ContentType)

	_, err = SetContentType(context.Background(), st, id, "Sponsored")
	assert.True(t, errors.Is(err, ErrInvalidUpload))
}

func TestRecordScore(t *testing.T) {
	st := newTestStore(t)
	id := seedAsset(t, st, model.AssetStatusNew)

	require.NoError(t, RecordScore(context.Background(), st, id, model.Scorecard{OverallContentScore: 64}))
	got, err := st.GetAsset(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, got.ContentScore)
	assert.Equal(t, 64.0, *got.ContentScore)

	err = RecordScore(context.Background(), st, "missing", model.Scorecard{OverallContentScore: 1})
	assert.True(t, errors.Is(err, store.ErrNotFound))
}

func TestUpdate_StatusAndContentType(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	id := seedAsset(t, st, model.AssetStatusNew)

	to := model.AssetStatusInReview
	ct := model.ContentTypeMixed
	a, err := Update(ctx, st, id, &to, &ct)
	require.NoError(t, err)
	assert.Equal(t, model.AssetStatusInReview, a.Status)
	assert.Equal(t, model.ContentTypeMixed, a.ContentType)

	got, err := st.GetAsset(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, model.AssetStatusInReview, got.Status)
	assert.Equal(t, model.ContentTypeMixed, got.ContentType)
}

func TestUpdate_RejectedWritesNothing(t *testing.T) {
	approved := model.AssetStatusApproved
	archived := model.AssetStatus("Archived")
	ugc := model.ContentTypeUGC
	viral := model.AssetContentType("Viral")

	tests := []struct {
		name string
		to   *model.AssetStatus
		ct   *model.AssetContentType
		want error
	}{
		{"invalid transition", &approved, &ugc, ErrInvalidTransition},
		{"unknown status", &archived, &ugc, ErrInvalidTransition},
		{"unknown content type", &approved, &viral, ErrInvalidUpload},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := newTestStore(t)
			ctx := context.Background()
			id := seedAsset(t, st, model.AssetStatusNew)

			_, err := Update(ctx, st, id, tt.to, tt.ct)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want))

			got, err := st.GetAsset(ctx, id)
			require.NoError(t, err)
			assert.Equal(t, model.AssetStatusNew, got.Status)
			assert.Equal(t, model.ContentTypeBranded, got.ContentType)
		})
	}
}

func TestUpdate_ContentTypeOnly(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	id := seedAsset(t, st, model.AssetStatusApproved)

	ct := model.ContentTypeUGC
	a, err := Update(ctx, st, id, nil, &ct)
	require.NoError(t, err)
	assert.Equal(t, model.AssetStatusApproved, a.Status)
	assert.Equal(t, model.ContentTypeUGC, a.ContentType)

	_, err = Update(ctx, st, "missing", nil, &ct)
	assert.True(t, errors.Is(err, store.ErrNotFound))
}
