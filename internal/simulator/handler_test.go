package simulator

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"cdn-sim/internal/playback"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHandler(t *testing.T, maxUpload int64) (*Handler, *hostHarness) {
	t.Helper()
	hh := newHostHarness(t)
	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	return NewHandler(hh.host, hh.catalog, hh.store, log, maxUpload), hh
}

func newTestRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()
	r.Get("/catalog", h.ListCatalog)
	r.Post("/selection", h.Select)
	r.Post("/uploads", h.Upload)
	r.Get("/uploads/{upload_id}", h.ServeUpload)
	r.Route("/players", func(r chi.Router) {
		r.Get("/", h.ListPlayers)
		r.Get("/{player_id}", h.GetPlayer)
		r.Post("/{player_id}/events", h.ReportEvent)
	})
	return r
}

func doJSON(t *testing.T, r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func multipartBody(t *testing.T, name string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", name)
	require.NoError(t, err)
	_, err = fw.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestHandler_ListCatalog(t *testing.T) {
	h, hh := newTestHandler(t, 0)
	r := newTestRouter(h)
	require.NoError(t, hh.host.Start())

	rec := doJSON(t, r, http.MethodGet, "/catalog", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp catalogResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Videos, 3)
	require.NotNil(t, resp.Selection)
	assert.Equal(t, "big-buck-bunny", resp.Selection.VideoID)
}

func TestHandler_Select(t *testing.T) {
	h, _ := newTestHandler(t, 0)
	r := newTestRouter(h)

	rec := doJSON(t, r, http.MethodPost, "/selection", map[string]string{"video_id": "sintel"})
	require.Equal(t, http.StatusOK, rec.Code)

	var sel Selection
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sel))
	assert.Equal(t, "Sintel", sel.Title)
}

func TestHandler_Select_errors(t *testing.T) {
	h, _ := newTestHandler(t, 0)
	r := newTestRouter(h)

	if rec := doJSON(t, r, http.MethodPost, "/selection", map[string]string{"video_id": "nope"}); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
	if rec := doJSON(t, r, http.MethodPost, "/selection", map[string]string{}); rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestHandler_UploadAndServe(t *testing.T) {
	h, hh := newTestHandler(t, 1024)
	r := newTestRouter(h)

	body, ct := multipartBody(t, "clip.mp4", []byte("fake video"))
	req := httptest.NewRequest(http.MethodPost, "/uploads", body)
	req.Header.Set("Content-Type", ct)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp struct {
		Upload struct {
			ID  string `json:"upload_id"`
			URL string `json:"url"`
		} `json:"upload"`
		Selection Selection `json:"selection"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, resp.Upload.ID, resp.Selection.UploadID)

	view, err := hh.host.Player(LocalPlayerID)
	require.NoError(t, err)
	assert.Equal(t, resp.Upload.URL, view.ActiveURL)

	rec = doJSON(t, r, http.MethodGet, resp.Upload.URL, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "fake video", rec.Body.String())

	// Range requests are honoured for seeking.
	req = httptest.NewRequest(http.MethodGet, resp.Upload.URL, nil)
	req.Header.Set("Range", "bytes=5-")
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusPartialContent, rec.Code)
	assert.Equal(t, "video", rec.Body.String())
}

func TestHandler_Upload_too_large(t *testing.T) {
	h, hh := newTestHandler(t, 4)
	r := newTestRouter(h)

	body, ct := multipartBody(t, "big.mp4", []byte("0123456789"))
	req := httptest.NewRequest(http.MethodPost, "/uploads", body)
	req.Header.Set("Content-Type", ct)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Equal(t, 0, hh.store.Len())
}

func TestHandler_Upload_missing_file(t *testing.T) {
	h, _ := newTestHandler(t, 0)
	r := newTestRouter(h)

	rec := doJSON(t, r, http.MethodPost, "/uploads", map[string]string{"file": "x"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandler_ServeUpload_not_found(t *testing.T) {
	h, _ := newTestHandler(t, 0)
	r := newTestRouter(h)

	rec := doJSON(t, r, http.MethodGet, "/uploads/unknown", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandler_Players(t *testing.T) {
	h, hh := newTestHandler(t, 0)
	r := newTestRouter(h)
	require.NoError(t, hh.host.Start())

	rec := doJSON(t, r, http.MethodGet, "/players", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var views []struct {
		PlayerID  string `json:"player_id"`
		Remote    bool   `json:"remote"`
		LoadState string `json:"load_state"`
		Title     string `json:"title"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &views))
	require.Len(t, views, 2)
	assert.Equal(t, LocalPlayerID, views[0].PlayerID)
	assert.False(t, views[0].Remote)
	assert.Equal(t, RemotePlayerID, views[1].PlayerID)
	assert.True(t, views[1].Remote)
	assert.Equal(t, "Loading", views[1].LoadState)

	if rec := doJSON(t, r, http.MethodGet, "/players/cdn", nil); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestHandler_ReportEvent(t *testing.T) {
	h, hh := newTestHandler(t, 0)
	r := newTestRouter(h)
	require.NoError(t, hh.host.Start())

	rec := doJSON(t, r, http.MethodPost, "/players/local/events", map[string]any{"event": "waiting"})
	require.Equal(t, http.StatusAccepted, rec.Code)

	view, _ := hh.host.Player(LocalPlayerID)
	assert.Equal(t, playback.StateStalled, view.LoadState)
	assert.False(t, view.StallDeadline.IsZero())

	if rec := doJSON(t, r, http.MethodPost, "/players/local/events", map[string]any{"event": "seeking"}); rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
	if rec := doJSON(t, r, http.MethodPost, "/players/cdn/events", map[string]any{"event": "playing"}); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}
