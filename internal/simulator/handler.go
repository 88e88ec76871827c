package simulator

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"cdn-sim/internal/catalog"
	"cdn-sim/internal/playback"
	"cdn-sim/internal/uploads"

	"github.com/go-chi/chi/v5"
)

// multipartOverhead is the body allowance beyond the file size for the
// multipart envelope.
const multipartOverhead = 1 << 20

// Handler exposes simulator HTTP endpoints using go-chi.
type Handler struct {
	host      *Host
	catalog   *catalog.Catalog
	uploads   *uploads.Store
	log       *slog.Logger
	maxUpload int64
}

// NewHandler returns a Handler. maxUpload bounds the size of uploaded files.
func NewHandler(host *Host, cat *catalog.Catalog, store *uploads.Store, log *slog.Logger, maxUpload int64) *Handler {
	return &Handler{host: host, catalog: cat, uploads: store, log: log, maxUpload: maxUpload}
}

type catalogResponse struct {
	Videos    []catalog.Video `json:"videos"`
	Selection *Selection      `json:"selection,omitempty"`
}

// ListCatalog handles GET /catalog.
func (h *Handler) ListCatalog(w http.ResponseWriter, r *http.Request) {
	resp := catalogResponse{Videos: h.catalog.List()}
	if sel, ok := h.host.Selection(); ok {
		resp.Selection = &sel
	}
	h.writeJSON(w, http.StatusOK, resp)
}

type selectionRequest struct {
	VideoID string `json:"video_id"`
}

// Select handles POST /selection.
// Body: { "video_id": "sintel" }.
func (h *Handler) Select(w http.ResponseWriter, r *http.Request) {
	var req selectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.VideoID == "" {
		h.log.Debug("invalid selection body")
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	if err := h.host.SelectVideo(req.VideoID); err != nil {
		h.writeError(w, "select video failed", err)
		return
	}

	sel, _ := h.host.Selection()
	h.writeJSON(w, http.StatusOK, sel)
}

type uploadResponse struct {
	Upload    *uploads.Upload `json:"upload"`
	Selection Selection       `json:"selection"`
}

// Upload handles POST /uploads with a multipart "file" field. The stored
// file becomes the selection of both players.
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	if h.maxUpload > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload+multipartOverhead)
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			w.WriteHeader(http.StatusRequestEntityTooLarge)
			return
		}
		h.log.Debug("invalid upload", slog.String("error", err.Error()))
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	defer file.Close()

	u, err := h.uploads.Save(header.Filename, file, h.maxUpload)
	if err != nil {
		h.writeError(w, "save upload failed", err)
		return
	}
	if err := h.host.SelectUpload(u); err != nil {
		u.Release()
		h.writeError(w, "select upload failed", err)
		return
	}

	h.log.Info("upload selected",
		slog.String("upload_id", u.ID),
		slog.String("name", u.Name),
		slog.Int64("size", u.Size))
	sel, _ := h.host.Selection()
	h.writeJSON(w, http.StatusCreated, uploadResponse{Upload: u, Selection: sel})
}

// ServeUpload handles GET /uploads/{upload_id}. Range requests are supported
// so media elements can seek.
func (h *Handler) ServeUpload(w http.ResponseWriter, r *http.Request) {
	f, u, err := h.uploads.Open(chi.URLParam(r, "upload_id"))
	if err != nil {
		h.writeError(w, "open upload failed", err)
		return
	}
	defer f.Close()

	http.ServeContent(w, r, u.Name, u.SavedAt, f)
}

// ListPlayers handles GET /players.
func (h *Handler) ListPlayers(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.host.Players())
}

// GetPlayer handles GET /players/{player_id}.
func (h *Handler) GetPlayer(w http.ResponseWriter, r *http.Request) {
	view, err := h.host.Player(chi.URLParam(r, "player_id"))
	if err != nil {
		h.writeError(w, "get player failed", err)
		return
	}
	h.writeJSON(w, http.StatusOK, view)
}

type eventRequest struct {
	Event  string `json:"event"`
	Paused bool   `json:"paused"`
	Ended  bool   `json:"ended"`
}

// ReportEvent handles POST /players/{player_id}/events.
// Body: { "event": "waiting", "paused": false, "ended": false }.
func (h *Handler) ReportEvent(w http.ResponseWriter, r *http.Request) {
	playerID := chi.URLParam(r, "player_id")

	var req eventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log.Debug("invalid event body", slog.String("error", err.Error()))
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	ev, err := playback.ParseMediaEvent(req.Event)
	if err != nil {
		h.log.Debug("invalid media event", slog.String("error", err.Error()))
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	st := playback.MediaState{Paused: req.Paused, Ended: req.Ended}
	if err := h.host.ReportEvent(playerID, ev, st); err != nil {
		h.writeError(w, "report event failed", err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (h *Handler) writeError(w http.ResponseWriter, msg string, err error) {
	switch {
	case errors.Is(err, ErrUnknownVideo), errors.Is(err, ErrUnknownPlayer), errors.Is(err, uploads.ErrNotFound):
		h.log.Debug(msg, slog.String("error", err.Error()))
		w.WriteHeader(http.StatusNotFound)
	case errors.Is(err, playback.ErrInvalidSource):
		h.log.Info(msg, slog.String("error", err.Error()))
		w.WriteHeader(http.StatusBadRequest)
	case errors.Is(err, uploads.ErrTooLarge):
		h.log.Info(msg, slog.String("error", err.Error()))
		w.WriteHeader(http.StatusRequestEntityTooLarge)
	case errors.Is(err, playback.ErrClosed):
		w.WriteHeader(http.StatusServiceUnavailable)
	default:
		h.log.Error(msg, slog.String("error", err.Error()))
		w.WriteHeader(http.StatusInternalServerError)
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Debug("write response", slog.String("error", err.Error()))
	}
}
