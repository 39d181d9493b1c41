// Package store persists assets, flow run audit records and imported
// performance rows. SQLiteStore is the default backend; PostgresStore is
// used in production.
package store

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/contentmix/internal/model"
)

var (
	// ErrNotFound is returned when the requested record does not exist.
	ErrNotFound = eris.New("store: not found")
	// ErrConflict is returned when a write collides with existing state: a
	// duplicate contentSnId or a status that changed underneath the caller.
	ErrConflict = eris.New("store: conflict")
)

// AssetFilter specifies criteria for listing assets.
type AssetFilter struct {
	// Search matches name or contentSnId, case-insensitively.
	Search       string                   `json:"search,omitempty"`
	Statuses     []model.AssetStatus      `json:"statuses,omitempty"`
	ContentTypes []model.AssetContentType `json:"content_types,omitempty"`
	Limit        int                      `json:"limit,omitempty"`
	Offset       int                      `json:"offset,omitempty"`
}

// FlowRunFilter specifies criteria for listing flow runs.
type FlowRunFilter struct {
	Flow   string          `json:"flow,omitempty"`
	State  model.FlowState `json:"state,omitempty"`
	Since  time.Time       `json:"since,omitempty"`
	Limit  int             `json:"limit,omitempty"`
	Offset int             `json:"offset,omitempty"`
}

// Store defines the persistence interface for creative assets.
type Store interface {
	// Assets
	CreateAsset(ctx context.Context, a *model.Asset) error
	GetAsset(ctx context.Context, id string) (*model.Asset, error)
	ListAssets(ctx context.Context, filter AssetFilter) ([]model.Asset, error)
	// UpdateAssetStatus moves an asset from one status to another. It
	// returns ErrConflict when the stored status is no longer from.
	UpdateAssetStatus(ctx context.Context, id string, from, to model.AssetStatus) error
	UpdateAssetContentType(ctx context.Context, id string, ct model.AssetContentType) error
	SetContentScore(ctx context.Context, id string, score float64) error

	// Flow runs
	RecordFlowRun(ctx context.Context, run model.FlowRun) error
	ListFlowRuns(ctx context.Context, filter FlowRunFilter) ([]model.FlowRun, error)

	// Performance rows keyed by contentSnId
	UpsertPerformance(ctx context.Context, rows []model.AssetPerformance) (int64, error)
	ListPerformance(ctx context.Context) ([]model.AssetPerformance, error)

	// Lifecycle
	Ping(ctx context.Context) error
	Migrate(ctx context.Context) error
	Close() error
}

const defaultLimit = 100

func limitOf(n int) int {
	if n <= 0 {
		return defaultLimit
	}
	return n
}

// likePattern escapes LIKE wildcards in s and wraps it for substring match.
func likePattern(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(strings.TrimSpace(s)) + "%"
}

// encodeAsset serializes the asset document stored alongside the indexed
// columns.
func encodeAsset(a *model.Asset) ([]byte, error) {
	if a == nil {
		return nil, eris.New("store: nil asset")
	}
	if a.ID == "" {
		return nil, eris.New("store: asset id is required")
	}
	if a.ContentSnID == "" {
		return nil, eris.New("store: asset contentSnId is required")
	}
	b, err := json.Marshal(a)
	if err != nil {
		return nil, eris.Wrap(err, "store: marshal asset")
	}
	return b, nil
}

// decodeAsset restores an asset document. The mutable columns and the
// stored creation timestamp are the source of truth and override the document.
func decodeAsset(doc []byte, status, contentType string, score *float64, createdAt time.Time) (*model.Asset, error) {
	var a model.Asset
	if err := json.Unmarshal(doc, &a); err != nil {
		return nil, eris.Wrap(err, "store: unmarshal asset")
	}
	a.Status = model.AssetStatus(status)
	a.ContentType = model.AssetContentType(contentType)
	a.ContentScore = score
	if !createdAt.IsZero() {
		a.StampCreated(createdAt)
	}
	return &a, nil
}

func statusStrings(in []model.AssetStatus) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = string(s)
	}
	return out
}

func contentTypeStrings(in []model.AssetContentType) []string {
	out := make([]string, len(in))
	for i, c := range in {
		out[i] = string(c)
	}
	return out
}
