package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"slices"
	"strings"

	"github.com/gorilla/mux"
)

// maxConfigureBody bounds PUT /live/entities bodies.
const maxConfigureBody = 1 << 20

// LiveHandler serves tracked entity views.
type LiveHandler struct {
	live LiveService
}

// NewLiveHandler creates a new live handler.
func NewLiveHandler(live LiveService) *LiveHandler {
	return &LiveHandler{live: live}
}

type configureRequest struct {
	EntityIDs []string `json:"entity_ids"`
}

type configureResponse struct {
	Tracked []string `json:"tracked"`
}

// HandleList handles GET /live.
func (h *LiveHandler) HandleList(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.live.Views())
}

// HandleGet handles GET /live/{entityID}.
func (h *LiveHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["entityID"]
	v, ok := h.live.View(id)
	if !ok {
		writeError(w, http.StatusNotFound, "not_found", fmt.Errorf("%w: %s", ErrNotTracked, id))
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// HandleRefresh handles POST /live/refresh. It returns once the cycle has
// finished so the caller can read fresh views right away.
func (h *LiveHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	if err := h.live.RefreshAll(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, "unavailable", fmt.Errorf("%w: %w", ErrUnavailable, err))
		return
	}
	writeJSON(w, http.StatusAccepted, statusResponse{Status: "refreshed"})
}

// HandleConfigure handles PUT /live/entities.
func (h *LiveHandler) HandleConfigure(w http.ResponseWriter, r *http.Request) {
	var req configureRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxConfigureBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("%w: %w", ErrBadRequest, err))
		return
	}
	if req.EntityIDs == nil {
		writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("%w: missing entity_ids", ErrBadRequest))
		return
	}

	ids := make([]string, 0, len(req.EntityIDs))
	for _, id := range req.EntityIDs {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	ids = slices.Compact(ids)

	if err := h.live.Configure(r.Context(), ids); err != nil {
		writeError(w, http.StatusServiceUnavailable, "unavailable", fmt.Errorf("%w: %w", ErrUnavailable, err))
		return
	}
	writeJSON(w, http.StatusOK, configureResponse{Tracked: ids})
}
