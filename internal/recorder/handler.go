package recorder

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

const playlistContentType = "application/vnd.apple.mpegurl"

// Handler exposes the recorder engine over HTTP using go-chi.
type Handler struct {
	mgr *Manager
	log *slog.Logger
}

// NewHandler returns a Handler backed by the given Manager.
func NewHandler(mgr *Manager, log *slog.Logger) *Handler {
	return &Handler{mgr: mgr, log: log}
}

// Routes mounts all recorder endpoints on r.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/rooms", h.WatchRoom)
	r.Route("/rooms/{room_id}", func(r chi.Router) {
		r.Delete("/", h.UnwatchRoom)
		r.Get("/status", h.GetStatus)
		r.Get("/archives", h.ListArchives)
		r.Delete("/archives/{session_id}", h.DeleteArchive)
		r.Get("/videos", h.ListVideos)
		r.Route("/sessions/{session_id}", func(r chi.Router) {
			r.Get("/playlist.m3u8", h.GetPlaylist)
			r.Post("/clips", h.CreateClip)
		})
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func uintParam(r *http.Request, name string) (uint64, bool) {
	n, err := strconv.ParseUint(chi.URLParam(r, name), 10, 64)
	return n, err == nil
}

// roomRecorder resolves the recorder for the room_id path parameter,
// writing the error response itself when resolution fails.
func (h *Handler) roomRecorder(w http.ResponseWriter, r *http.Request) (*Recorder, bool) {
	roomID, ok := uintParam(r, "room_id")
	if !ok {
		w.WriteHeader(http.StatusBadRequest)
		return nil, false
	}
	rec, ok := h.mgr.Get(roomID)
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return nil, false
	}
	return rec, true
}

// WatchRoom handles POST /rooms. Body: {"room_id": 21452505}.
func (h *Handler) WatchRoom(w http.ResponseWriter, r *http.Request) {
	var body struct {
		RoomID uint64 `json:"room_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.RoomID == 0 {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	if _, err := h.mgr.Watch(r.Context(), body.RoomID); err != nil {
		if errors.Is(err, ErrAlreadyWatching) {
			w.WriteHeader(http.StatusConflict)
			return
		}
		h.log.Error("watch room failed", slog.Uint64("room_id", body.RoomID), slog.String("error", err.Error()))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	h.log.Info("room watched", slog.Uint64("room_id", body.RoomID))
	w.WriteHeader(http.StatusCreated)
}

// UnwatchRoom handles DELETE /rooms/{room_id}.
func (h *Handler) UnwatchRoom(w http.ResponseWriter, r *http.Request) {
	roomID, ok := uintParam(r, "room_id")
	if !ok {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	if err := h.mgr.Unwatch(r.Context(), roomID); err != nil {
		if errors.Is(err, ErrUnknownRoom) {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		h.log.Error("unwatch room failed", slog.Uint64("room_id", roomID), slog.String("error", err.Error()))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// GetStatus handles GET /rooms/{room_id}/status.
func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	rec, ok := h.roomRecorder(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"room":       rec.Room(),
		"live":       rec.Live(),
		"session_id": rec.SessionID(),
	})
}

// GetPlaylist handles GET /rooms/{room_id}/sessions/{session_id}/playlist.m3u8.
func (h *Handler) GetPlaylist(w http.ResponseWriter, r *http.Request) {
	rec, ok := h.roomRecorder(w, r)
	if !ok {
		return
	}
	sessionID, ok := uintParam(r, "session_id")
	if !ok {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", playlistContentType)
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(rec.Playlist(sessionID)))
}

// ListArchives handles GET /rooms/{room_id}/archives.
func (h *Handler) ListArchives(w http.ResponseWriter, r *http.Request) {
	rec, ok := h.roomRecorder(w, r)
	if !ok {
		return
	}
	archives, err := rec.Archives(r.Context())
	if err != nil {
		h.log.Error("list archives failed", slog.String("error", err.Error()))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, archives)
}

// DeleteArchive handles DELETE /rooms/{room_id}/archives/{session_id}.
func (h *Handler) DeleteArchive(w http.ResponseWriter, r *http.Request) {
	rec, ok := h.roomRecorder(w, r)
	if !ok {
		return
	}
	sessionID, ok := uintParam(r, "session_id")
	if !ok {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	if err := rec.DeleteArchive(r.Context(), sessionID); err != nil {
		if errors.Is(err, ErrArchiveNotFound) {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		h.log.Error("delete archive failed", slog.Uint64("session_id", sessionID), slog.String("error", err.Error()))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// ListVideos handles GET /rooms/{room_id}/videos.
func (h *Handler) ListVideos(w http.ResponseWriter, r *http.Request) {
	rec, ok := h.roomRecorder(w, r)
	if !ok {
		return
	}
	videos, err := rec.Videos(r.Context())
	if err != nil {
		h.log.Error("list videos failed", slog.String("error", err.Error()))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, videos)
}

// CreateClip handles POST /rooms/{room_id}/sessions/{session_id}/clips.
// Body: {"start": 10.0, "end": 40.0, "output_dir": "clips"}; start and end
// are offsets in cache units and may arrive reversed.
func (h *Handler) CreateClip(w http.ResponseWriter, r *http.Request) {
	rec, ok := h.roomRecorder(w, r)
	if !ok {
		return
	}
	sessionID, ok := uintParam(r, "session_id")
	if !ok {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	var body struct {
		Start     float64 `json:"start"`
		End       float64 `json:"end"`
		OutputDir string  `json:"output_dir"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	file, err := rec.Clip(r.Context(), sessionID, body.Start, body.End, body.OutputDir)
	if err != nil {
		if errors.Is(err, ErrEmptyCache) {
			writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
			return
		}
		h.log.Error("create clip failed",
			slog.Uint64("session_id", sessionID),
			slog.String("error", err.Error()))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"file": file})
}
