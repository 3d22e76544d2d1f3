package rest

import (
	"encoding/json"
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/marcopiovanello/dlp-bridge/server/internal"
	"github.com/marcopiovanello/dlp-bridge/server/internal/events"
	"github.com/marcopiovanello/dlp-bridge/server/internal/library"
	"github.com/marcopiovanello/dlp-bridge/server/internal/orchestrator"
)

type Handler struct {
	service *Service
	hub     *events.Hub
	log     *slog.Logger
}

func NewHandler(s *Service, hub *events.Hub, log *slog.Logger) *Handler {
	return &Handler{
		service: s,
		hub:     hub,
		log:     log.With(slog.String("component", "rest")),
	}
}

// statusOf maps domain errors to HTTP status codes.
func statusOf(err error) int {
	var fetchErr *orchestrator.FetchError

	switch {
	case errors.Is(err, orchestrator.ErrEmptyURL),
		errors.Is(err, orchestrator.ErrInvalidURL),
		errors.Is(err, library.ErrInvalidName),
		errors.Is(err, library.ErrNotMedia):
		return http.StatusBadRequest
	case errors.Is(err, orchestrator.ErrAlreadyInProgress),
		errors.Is(err, library.ErrNoPublicPath):
		return http.StatusConflict
	case errors.Is(err, orchestrator.ErrNoMedia),
		errors.Is(err, fs.ErrNotExist):
		return http.StatusNotFound
	case errors.As(err, &fetchErr):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, v any) {
	writeJSONStatus(w, http.StatusOK, v)
}

func writeJSONStatus(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
}

func fileName(r *http.Request) string {
	name := chi.URLParam(r, "name")
	if unescaped, err := url.PathUnescape(name); err == nil {
		return unescaped
	}
	return name
}

func (h *Handler) FetchInfo(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	var req infoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	info, err := h.service.FetchInfo(r.Context(), req.URL)
	if err != nil {
		http.Error(w, err.Error(), statusOf(err))
		return
	}

	writeJSON(w, info)
}

func (h *Handler) CachedInfo(w http.ResponseWriter, r *http.Request) {
	info := h.service.CachedInfo()
	if info == nil {
		http.Error(w, orchestrator.ErrNoMedia.Error(), http.StatusNotFound)
		return
	}

	writeJSON(w, info)
}

func (h *Handler) ClearInfo(w http.ResponseWriter, r *http.Request) {
	h.service.ClearInfo()
	writeJSON(w, "ok")
}

func (h *Handler) Download(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	var req internal.DownloadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	id, err := h.service.Download(req)
	if err != nil {
		http.Error(w, err.Error(), statusOf(err))
		return
	}

	writeJSONStatus(w, http.StatusAccepted, sessionResponse{Id: id})
}

func (h *Handler) DownloadBest(w http.ResponseWriter, r *http.Request) {
	id, err := h.service.DownloadBest()
	if err != nil {
		http.Error(w, err.Error(), statusOf(err))
		return
	}

	writeJSONStatus(w, http.StatusAccepted, sessionResponse{Id: id})
}

func (h *Handler) Stop(w http.ResponseWriter, r *http.Request) {
	h.service.Stop()
	writeJSONStatus(w, http.StatusAccepted, "ok")
}

func (h *Handler) Current(w http.ResponseWriter, r *http.Request) {
	snap := h.service.Current()
	if snap == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	writeJSON(w, snap)
}

func (h *Handler) Version(w http.ResponseWriter, r *http.Request) {
	api, ytdlp, err := h.service.GetVersion(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, versionResponse{API: api, YtDlp: ytdlp})
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Update(r.Context()); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, "ok")
}

func (h *Handler) Library(w http.ResponseWriter, r *http.Request) {
	files := h.service.Library(r.Context())
	if files == nil {
		files = []internal.DownloadInfo{}
	}

	writeJSON(w, files)
}

func (h *Handler) DeleteLibrary(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteLibrary(); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, "ok")
}

func (h *Handler) FreeSpace(w http.ResponseWriter, r *http.Request) {
	free, err := h.service.FreeSpace()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, free)
}

// Stream serves a media file for playback, or as an attachment with
// ?download=true for sharing.
func (h *Handler) Stream(w http.ResponseWriter, r *http.Request) {
	name := fileName(r)

	f, fi, err := h.service.Open(name)
	if err != nil {
		http.Error(w, err.Error(), statusOf(err))
		return
	}
	defer f.Close()

	if r.URL.Query().Get("download") == "true" {
		w.Header().Set("Content-Disposition", "attachment; filename*=UTF-8''"+url.PathEscape(fi.Name()))
	}

	http.ServeContent(w, r, fi.Name(), fi.ModTime(), f)
}

func (h *Handler) Thumbnail(w http.ResponseWriter, r *http.Request) {
	thumb, err := h.service.Thumbnail(r.Context(), fileName(r))
	if err != nil {
		http.Error(w, err.Error(), statusOf(err))
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	w.Write(thumb)
}

func (h *Handler) DeleteFile(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteFile(fileName(r)); err != nil {
		http.Error(w, err.Error(), statusOf(err))
		return
	}

	writeJSON(w, "ok")
}

func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	path, err := h.service.Export(fileName(r))
	if err != nil {
		http.Error(w, err.Error(), statusOf(err))
		return
	}

	writeJSON(w, exportResponse{Path: path})
}

func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	records, err := h.service.History()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if records == nil {
		records = []internal.SessionRecord{}
	}

	writeJSON(w, records)
}

func (h *Handler) ClearHistory(w http.ResponseWriter, r *http.Request) {
	if err := h.service.ClearHistory(); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, "ok")
}
