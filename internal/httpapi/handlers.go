package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/roach88/hotspot/internal/model"
	"github.com/roach88/hotspot/internal/session"
)

type createProjectRequest struct {
	Title       string         `json:"title"`
	Description string         `json:"description"`
	CreatedBy   string         `json:"createdBy"`
	Settings    map[string]any `json:"settings"`
	SharedWith  []string       `json:"sharedWith"`
}

type reorderRequest struct {
	From int `json:"from"`
	To   int `json:"to"`
}

type activeSlideRequest struct {
	SlideID string `json:"slideId"`
}

type selectionRequest struct {
	HotspotID string `json:"hotspotId"`
}

// stateResponse summarizes an editing session.
type stateResponse struct {
	ProjectID   string   `json:"projectId"`
	ActiveSlide string   `json:"activeSlide"`
	Selected    string   `json:"selected"`
	Pending     int      `json:"pending"`
	Dirty       []string `json:"dirty"`
}

type projectResponse struct {
	Project model.Project `json:"project"`
	Slides  []model.Slide `json:"slides"`
}

// session resolves the {project} route variable, writing the error
// response itself when it fails.
func (s *Server) session(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	sess, err := s.sessions.Get(r.Context(), mux.Vars(r)["project"])
	if err != nil {
		s.writeError(w, r, err)
		return nil, false
	}
	return sess, true
}

func (s *Server) listProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := s.sessions.Adapter().ListProjects(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if projects == nil {
		projects = []model.Project{}
	}
	writeJSON(w, http.StatusOK, projects)
}

func (s *Server) createProject(w http.ResponseWriter, r *http.Request) {
	var req createProjectRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	p, err := s.sessions.Adapter().CreateProject(r.Context(), model.Project{
		Title:       req.Title,
		Description: req.Description,
		CreatedBy:   req.CreatedBy,
		Settings:    req.Settings,
		SharedWith:  req.SharedWith,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.logger.Info("project created", "project_id", p.ID, "document_id", p.DocumentID)
	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) getProject(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, projectResponse{Project: sess.Project, Slides: sess.Store.Slides()})
}

func (s *Server) deleteProject(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["project"]
	s.sessions.Forget(id)
	if err := s.sessions.Adapter().DeleteProject(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.logger.Info("project deleted", "project_id", id)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) getState(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	dirty := sess.Store.Dirty()
	if dirty == nil {
		dirty = []string{}
	}
	writeJSON(w, http.StatusOK, stateResponse{
		ProjectID:   sess.Project.ID,
		ActiveSlide: sess.Store.ActiveSlide(),
		Selected:    sess.Store.Selected(),
		Pending:     sess.Store.Queue().Len(),
		Dirty:       dirty,
	})
}

func (s *Server) save(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	if err := sess.Syncer.Save(r.Context()); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sess.Syncer.Stats())
}

func (s *Server) listAnalytics(w http.ResponseWriter, r *http.Request) {
	events, err := s.sessions.Adapter().ListAnalytics(r.Context(), mux.Vars(r)["project"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if events == nil {
		events = []model.AnalyticsEvent{}
	}
	writeJSON(w, http.StatusOK, events)
}

func (s *Server) recordAnalytics(w http.ResponseWriter, r *http.Request) {
	var ev model.AnalyticsEvent
	if err := decode(r, &ev); err != nil {
		s.writeError(w, r, err)
		return
	}
	ev.ProjectID = mux.Vars(r)["project"]
	saved, err := s.sessions.Adapter().RecordAnalytics(r.Context(), ev)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, saved)
}

func (s *Server) listSlides(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, nonNil(sess.Store.Slides()))
}

func (s *Server) addSlide(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var p model.SlidePatch
	if err := decode(r, &p); err != nil {
		s.writeError(w, r, err)
		return
	}
	sl, err := sess.Store.AddSlide(p)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, sl)
}

func (s *Server) updateSlide(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var p model.SlidePatch
	if err := decode(r, &p); err != nil {
		s.writeError(w, r, err)
		return
	}
	sl, err := sess.Store.UpdateSlide(mux.Vars(r)["slide"], p)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sl)
}

func (s *Server) deleteSlide(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	if err := sess.Store.DeleteSlide(mux.Vars(r)["slide"]); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) reorderSlide(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req reorderRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := sess.Store.ReorderSlide(mux.Vars(r)["slide"], req.From, req.To); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(sess.Store.Slides()))
}

func (s *Server) listHotspots(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	slideID := mux.Vars(r)["slide"]
	if _, err := sess.Store.Slide(slideID); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(sess.Store.Hotspots(slideID)))
}

func (s *Server) setActiveSlide(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req activeSlideRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := sess.Store.SetActiveSlide(req.SlideID); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) createHotspot(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var p model.HotspotPatch
	if err := decode(r, &p); err != nil {
		s.writeError(w, r, err)
		return
	}
	h, err := sess.Store.CreateHotspot(p)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, h)
}

func (s *Server) getHotspot(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	h, err := sess.Store.Hotspot(mux.Vars(r)["hotspot"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h)
}

func (s *Server) updateHotspot(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var p model.HotspotPatch
	if err := decode(r, &p); err != nil {
		s.writeError(w, r, err)
		return
	}
	h, err := sess.Store.UpdateHotspot(mux.Vars(r)["hotspot"], p)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h)
}

func (s *Server) moveHotspot(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var pos model.Position
	if err := decode(r, &pos); err != nil {
		s.writeError(w, r, err)
		return
	}
	h, err := sess.Store.UpdateHotspotPosition(mux.Vars(r)["hotspot"], pos)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h)
}

func (s *Server) deleteHotspot(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	if err := sess.Store.DeleteHotspot(mux.Vars(r)["hotspot"]); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) reorderHotspot(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req reorderRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	id := mux.Vars(r)["hotspot"]
	if err := sess.Store.ReorderHotspot(id, req.From, req.To); err != nil {
		s.writeError(w, r, err)
		return
	}
	h, err := sess.Store.Hotspot(id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(sess.Store.Hotspots(h.SlideID)))
}

func (s *Server) selectHotspot(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req selectionRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	sess.Store.SelectHotspot(req.HotspotID)
	w.WriteHeader(http.StatusNoContent)
}

func nonNil[T any](list []T) []T {
	if list == nil {
		return []T{}
	}
	return list
}
