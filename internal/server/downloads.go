package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/tunebox/internal/shared"
	"github.com/desertthunder/tunebox/internal/tasks"
)

// DownloadHandler starts and controls download jobs.
type DownloadHandler struct {
	manager *tasks.Manager
	logger  *log.Logger
	mux     *http.ServeMux
}

// NewDownloadHandler creates the downloads API handler.
func NewDownloadHandler(manager *tasks.Manager, logger *log.Logger) *DownloadHandler {
	h := &DownloadHandler{manager: manager, logger: logger, mux: http.NewServeMux()}

	h.mux.HandleFunc("POST /api/downloads", h.start)
	h.mux.HandleFunc("GET /api/downloads", h.list)
	h.mux.HandleFunc("GET /api/downloads/events", h.events)
	h.mux.HandleFunc("GET /api/downloads/{id}", h.get)
	h.mux.HandleFunc("POST /api/downloads/{id}/{action}", h.control)
	return h
}

func (h *DownloadHandler) Routes() []string {
	return []string{"/api/downloads", "/api/downloads/"}
}

func (h *DownloadHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

type downloadRequest struct {
	VideoID string `json:"video_id"`
}

func (h *DownloadHandler) start(w http.ResponseWriter, r *http.Request) {
	var req downloadRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	job, err := h.manager.Start(r.Context(), strings.TrimSpace(req.VideoID))
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Location", "/api/downloads/"+job.ID)
	writeJSON(w, http.StatusAccepted, job)
}

func (h *DownloadHandler) list(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, nonNil(h.manager.List()))
}

func (h *DownloadHandler) get(w http.ResponseWriter, r *http.Request) {
	job, err := h.manager.Get(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// control handles pause, resume and cancel.
func (h *DownloadHandler) control(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var err error
	switch action := r.PathValue("action"); action {
	case "pause":
		_, err = h.manager.Pause(id)
	case "resume":
		_, err = h.manager.Resume(id)
	case "cancel":
		err = h.manager.Cancel(id)
	default:
		writeError(w, fmt.Errorf("%w: unknown action %q", shared.ErrInvalidArgument, action))
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}

	job, err := h.manager.Get(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

type progressEvent struct {
	Phase   string    `json:"phase"`
	Step    int       `json:"step,omitempty"`
	Total   int       `json:"total,omitempty"`
	Message string    `json:"message"`
	Job     tasks.Job `json:"job"`
}

// events streams progress updates as server-sent events until the client goes away.
func (h *DownloadHandler) events(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, fmt.Errorf("streaming unsupported"))
		return
	}

	updates, unsubscribe := h.manager.Subscribe()
	defer unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			data, err := json.Marshal(progressEvent{
				Phase:   update.Phase.String(),
				Step:    update.Step,
				Total:   update.Total,
				Message: update.Message,
				Job:     update.Job,
			})
			if err != nil {
				h.logger.Warn("failed to encode progress event", "error", err)
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", update.Phase, data)
			flusher.Flush()
		}
	}
}
