// Package httpapi exposes editing sessions over HTTP.
//
// REST endpoints drive the editor store of a project; GET .../events
// streams the store's event bus to browser observers over a websocket.
// Writes reach the row store through each session's syncer, exactly as
// they would from an in-process caller.
package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/roach88/hotspot/internal/model"
	"github.com/roach88/hotspot/internal/session"
)

// Server routes API requests to editing sessions.
type Server struct {
	sessions *session.Manager
	logger   *slog.Logger
	upgrader websocket.Upgrader
}

// NewServer creates a server over sessions. A nil logger means
// slog.Default().
func NewServer(sessions *session.Manager, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		sessions: sessions,
		logger:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
	}
}

// Handler returns the API router.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	api := r.PathPrefix("/api").Subrouter()

	api.HandleFunc("/projects", s.listProjects).Methods(http.MethodGet)
	api.HandleFunc("/projects", s.createProject).Methods(http.MethodPost)

	api.HandleFunc("/projects/{project}", s.getProject).Methods(http.MethodGet)
	api.HandleFunc("/projects/{project}", s.deleteProject).Methods(http.MethodDelete)

	p := api.PathPrefix("/projects/{project}").Subrouter()
	p.HandleFunc("/state", s.getState).Methods(http.MethodGet)
	p.HandleFunc("/save", s.save).Methods(http.MethodPost)
	p.HandleFunc("/events", s.streamEvents).Methods(http.MethodGet)
	p.HandleFunc("/analytics", s.listAnalytics).Methods(http.MethodGet)
	p.HandleFunc("/analytics", s.recordAnalytics).Methods(http.MethodPost)

	p.HandleFunc("/slides", s.listSlides).Methods(http.MethodGet)
	p.HandleFunc("/slides", s.addSlide).Methods(http.MethodPost)
	p.HandleFunc("/slides/{slide}", s.updateSlide).Methods(http.MethodPatch)
	p.HandleFunc("/slides/{slide}", s.deleteSlide).Methods(http.MethodDelete)
	p.HandleFunc("/slides/{slide}/reorder", s.reorderSlide).Methods(http.MethodPost)
	p.HandleFunc("/slides/{slide}/hotspots", s.listHotspots).Methods(http.MethodGet)
	p.HandleFunc("/active-slide", s.setActiveSlide).Methods(http.MethodPut)

	p.HandleFunc("/hotspots", s.createHotspot).Methods(http.MethodPost)
	p.HandleFunc("/hotspots/{hotspot}", s.getHotspot).Methods(http.MethodGet)
	p.HandleFunc("/hotspots/{hotspot}", s.updateHotspot).Methods(http.MethodPatch)
	p.HandleFunc("/hotspots/{hotspot}", s.deleteHotspot).Methods(http.MethodDelete)
	p.HandleFunc("/hotspots/{hotspot}/position", s.moveHotspot).Methods(http.MethodPut)
	p.HandleFunc("/hotspots/{hotspot}/reorder", s.reorderHotspot).Methods(http.MethodPost)
	p.HandleFunc("/selection", s.selectHotspot).Methods(http.MethodPut)

	return r
}

// errorResponse is the JSON body of every failed request.
type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

func statusOf(code model.ErrorCode) int {
	switch code {
	case model.ErrCodeValidation:
		return http.StatusBadRequest
	case model.ErrCodeNotFound:
		return http.StatusNotFound
	case model.ErrCodeCapacityExceeded:
		return http.StatusConflict
	case model.ErrCodePersistence:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var merr *model.Error
	if !errors.As(err, &merr) {
		s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Code: "INTERNAL", Message: err.Error()})
		return
	}
	status := statusOf(merr.Code)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	writeJSON(w, status, errorResponse{Code: string(merr.Code), Message: merr.Message, Field: merr.Field})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// decode reads a JSON body into v, rejecting unknown fields.
func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return model.NewValidationError("", "", "", "invalid JSON body: "+err.Error())
	}
	return nil
}
