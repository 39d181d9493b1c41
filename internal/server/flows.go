package server

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/sells-group/contentmix/internal/asset"
	"github.com/sells-group/contentmix/internal/flow"
	"github.com/sells-group/contentmix/internal/model"
	"github.com/sells-group/contentmix/internal/store"
)

// handleRunFlow runs one flow on the JSON body. For creativeScorecard an
// assetId query parameter stores the overall score on that asset.
func (s *Server) handleRunFlow(w http.ResponseWriter, r *http.Request) {
	if s.flows == nil {
		writeError(w, http.StatusServiceUnavailable, "flows are not configured")
		return
	}
	name := chi.URLParam(r, "flow")
	if _, ok := flow.ParseName(name); !ok {
		writeError(w, http.StatusNotFound, "unknown flow "+strconv.Quote(name))
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.opts.MaxBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorBody{Error: "request body too large", Flow: name, Kind: string(flow.KindInput)})
			return
		}
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "read request body", Flow: name, Kind: string(flow.KindInput)})
		return
	}

	res, err := s.flows.Run(r.Context(), name, body)
	if err != nil {
		writeFailure(w, err)
		return
	}

	if id := r.URL.Query().Get("assetId"); id != "" && res.Flow == flow.CreativeScorecard {
		sc, ok := res.Output.(*model.Scorecard)
		if ok && s.store != nil {
			if err := asset.RecordScore(r.Context(), s.store, id, *sc); err != nil {
				writeFailure(w, err)
				return
			}
			zap.L().Info("server: content score recorded", zap.String("asset", id), zap.Float64("score", sc.OverallContentScore))
		}
	}

	w.Header().Set("X-Flow-Duration-Ms", strconv.FormatInt(res.DurationMs, 10))
	writeJSON(w, http.StatusOK, res.Output)
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, "store is not configured")
		return
	}
	q := r.URL.Query()
	limit, offset, err := paging(q.Get("limit"), q.Get("offset"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	runs, err := s.store.ListFlowRuns(r.Context(), store.FlowRunFilter{
		Flow:   q.Get("flow"),
		State:  model.FlowState(q.Get("state")),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		writeFailure(w, err)
		return
	}
	if runs == nil {
		runs = []model.FlowRun{}
	}
	writeJSON(w, http.StatusOK, runs)
}
