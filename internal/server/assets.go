package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rotisserie/eris"

	"github.com/sells-group/contentmix/internal/asset"
	"github.com/sells-group/contentmix/internal/features"
	"github.com/sells-group/contentmix/internal/media"
	"github.com/sells-group/contentmix/internal/model"
	"github.com/sells-group/contentmix/internal/store"
)

// assetPatch is the body of PATCH /api/assets/{id}. Both fields are optional.
type assetPatch struct {
	Status      *model.AssetStatus      `json:"status"`
	ContentType *model.AssetContentType `json:"contentType"`
}

func (s *Server) handleListAssets(w http.ResponseWriter, r *http.Request) {
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

	f := store.AssetFilter{Search: q.Get("search"), Limit: limit, Offset: offset}
	for _, v := range splitValues(q["status"]) {
		st := model.AssetStatus(v)
		if !st.Valid() {
			writeError(w, http.StatusBadRequest, "unknown status "+strconv.Quote(v))
			return
		}
		f.Statuses = append(f.Statuses, st)
	}
	for _, v := range splitValues(q["contentType"]) {
		ct := model.AssetContentType(v)
		if !ct.Valid() {
			writeError(w, http.StatusBadRequest, "unknown content type "+strconv.Quote(v))
			return
		}
		f.ContentTypes = append(f.ContentTypes, ct)
	}

	assets, err := s.store.ListAssets(r.Context(), f)
	if err != nil {
		writeFailure(w, err)
		return
	}
	if assets == nil {
		assets = []model.Asset{}
	}
	writeJSON(w, http.StatusOK, assets)
}

func (s *Server) handleGetAsset(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, "store is not configured")
		return
	}
	a, err := s.store.GetAsset(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (s *Server) handlePatchAsset(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, "store is not configured")
		return
	}
	var p assetPatch
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, s.opts.MaxBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if p.Status == nil && p.ContentType == nil {
		writeError(w, http.StatusBadRequest, "status or contentType is required")
		return
	}

	a, err := asset.Update(r.Context(), s.store, chi.URLParam(r, "id"), p.Status, p.ContentType)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// handleUpload accepts a multipart form with either a "file" part or a
// "mediaRef" field plus the manual metadata fields, analyzes the creative
// and saves it.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if s.ingester == nil {
		writeError(w, http.StatusServiceUnavailable, "asset analysis is not configured")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxBody)
	if err := r.ParseMultipartForm(s.opts.MaxBody); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "upload too large")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	defer r.MultipartForm.RemoveAll() //nolint:errcheck

	up, err := uploadFromForm(r)
	if err != nil {
		writeFailure(w, err)
		return
	}

	a, err := s.ingester.Ingest(r.Context(), up)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

func uploadFromForm(r *http.Request) (asset.Upload, error) {
	form := r.MultipartForm
	get := func(k string) string {
		if v := form.Value[k]; len(v) > 0 {
			return strings.TrimSpace(v[0])
		}
		return ""
	}

	up := asset.Upload{
		MediaRef:    get("mediaRef"),
		Name:        get("name"),
		Creator:     get("creator"),
		Campaign:    get("campaign"),
		Length:      get("length"),
		Tags:        get("tags"),
		Daypart:     get("daypart"),
		SpotLength:  get("spotLength"),
		Thumbnail:   get("thumbnail"),
		ContentType: model.AssetContentType(get("contentType")),
	}

	if fhs := form.File["file"]; len(fhs) > 0 {
		fh := fhs[0]
		f, err := fh.Open()
		if err != nil {
			return up, eris.Wrap(err, "server: open upload")
		}
		data, err := io.ReadAll(f)
		f.Close() //nolint:errcheck
		if err != nil {
			return up, eris.Wrap(err, "server: read upload")
		}
		up.File = &media.File{
			Name:     fh.Filename,
			MIMEType: media.DetectType(fh.Header.Get("Content-Type"), fh.Filename, data),
			Data:     data,
		}
	}

	if err := decodeField(get("manual"), &up.Manual); err != nil {
		return up, eris.Wrap(errors.Join(asset.ErrInvalidUpload, err), "manual")
	}
	if err := decodeField(get("quantitative"), &up.Quantitative); err != nil {
		return up, eris.Wrap(errors.Join(asset.ErrInvalidUpload, err), "quantitative")
	}
	var overrides map[string]features.Override
	if err := decodeField(get("overrides"), &overrides); err != nil {
		return up, eris.Wrap(errors.Join(asset.ErrInvalidUpload, err), "overrides")
	}
	up.Overrides = overrides

	for k, dst := range map[string]**float64{"roas": &up.ROAS, "spend": &up.Spend, "cpa": &up.CPA} {
		v := get(k)
		if v == "" {
			continue
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return up, eris.Wrapf(asset.ErrInvalidUpload, "%s must be a number", k)
		}
		*dst = &f
	}
	return up, nil
}

func decodeField(raw string, dst any) error {
	if raw == "" {
		return nil
	}
	return json.Unmarshal([]byte(raw), dst)
}

func paging(limitStr, offsetStr string) (limit, offset int, err error) {
	if limitStr != "" {
		if limit, err = strconv.Atoi(limitStr); err != nil || limit < 0 {
			return 0, 0, eris.New("limit must be a non-negative integer")
		}
	}
	if offsetStr != "" {
		if offset, err = strconv.Atoi(offsetStr); err != nil || offset < 0 {
			return 0, 0, eris.New("offset must be a non-negative integer")
		}
	}
	return limit, offset, nil
}

// splitValues accepts both repeated and comma-separated query values.
func splitValues(vals []string) []string {
	var out []string
	for _, v := range vals {
		for _, p := range strings.Split(v, ",") {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}
