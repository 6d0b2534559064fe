package persist

import (
	"cmp"
	"context"
	"errors"
	"slices"

	"github.com/roach88/hotspot/internal/model"
	"github.com/roach88/hotspot/internal/rowstore"
)

// CreateProject creates the project's document, bootstraps its sheets and
// writes the project row. Missing id, status and timestamps are filled in.
func (a *Adapter) CreateProject(ctx context.Context, p model.Project) (model.Project, error) {
	if p.ID == "" {
		p.ID = a.ids.NewID(model.PrefixProject)
	}
	if p.Status == "" {
		p.Status = model.ProjectDraft
	}
	if p.DocumentID != "" {
		return model.Project{}, model.NewValidationError(model.KindProject, p.ID, "documentId",
			"document id is assigned on creation")
	}
	now := a.now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	if err := a.validator.ValidateProject(p); err != nil {
		return model.Project{}, err
	}
	row, err := ProjectRow(p)
	if err != nil {
		return model.Project{}, model.NewValidationError(model.KindProject, p.ID, "", err.Error())
	}

	docID, err := a.client.CreateDocument(ctx, p.Title)
	if err != nil {
		return model.Project{}, model.NewPersistenceError("create document", err)
	}
	doc, err := a.client.OpenDocument(ctx, docID)
	if err != nil {
		return model.Project{}, model.NewPersistenceError("open document", err)
	}
	if err := a.bootstrap(ctx, doc); err != nil {
		return model.Project{}, err
	}
	if err := doc.AppendRow(ctx, string(model.KindProject), row); err != nil {
		return model.Project{}, model.NewPersistenceError("append project", err)
	}
	a.cacheDocument(p.ID, docID)
	p.DocumentID = docID

	a.logger.Info("created project", "project_id", p.ID, "document_id", docID)
	return p, nil
}

// GetProject reads projectID.
func (a *Adapter) GetProject(ctx context.Context, projectID string) (model.Project, error) {
	row, err := a.GetRowByID(ctx, projectID, model.KindProject, projectID)
	if err != nil {
		return model.Project{}, err
	}
	p := ProjectFromRow(row)
	p.DocumentID, _ = a.cachedDocument(projectID)
	return p, nil
}

// ListProjects returns every project of every document, in document
// creation order.
func (a *Adapter) ListProjects(ctx context.Context) ([]model.Project, error) {
	ids, err := a.client.ListDocuments(ctx)
	if err != nil {
		return nil, model.NewPersistenceError("list documents", err)
	}
	projects := []model.Project{}
	for _, docID := range ids {
		doc, err := a.client.OpenDocument(ctx, docID)
		if err != nil {
			return nil, model.NewPersistenceError("open document", err)
		}
		rows, err := doc.GetAllRows(ctx, string(model.KindProject))
		if errors.Is(err, rowstore.ErrSheetNotFound) {
			continue
		}
		if err != nil {
			return nil, model.NewPersistenceError("read projects", err)
		}
		for _, r := range rows {
			p := ProjectFromRow(r)
			p.DocumentID = docID
			a.cacheDocument(p.ID, docID)
			projects = append(projects, p)
		}
	}
	return projects, nil
}

// UpdateProject overwrites the project row. The document id is immutable:
// a non-empty DocumentID different from the stored one is rejected.
func (a *Adapter) UpdateProject(ctx context.Context, p model.Project) (model.Project, error) {
	current, err := a.GetProject(ctx, p.ID)
	if err != nil {
		return model.Project{}, err
	}
	if p.DocumentID != "" && p.DocumentID != current.DocumentID {
		return model.Project{}, model.NewValidationError(model.KindProject, p.ID, "documentId",
			"document id cannot change once assigned")
	}
	p.DocumentID = current.DocumentID
	p.CreatedAt = current.CreatedAt
	p.UpdatedAt = a.now().UTC()
	if p.Status == "" {
		p.Status = current.Status
	}
	if err := a.validator.ValidateProject(p); err != nil {
		return model.Project{}, err
	}
	row, err := ProjectRow(p)
	if err != nil {
		return model.Project{}, model.NewValidationError(model.KindProject, p.ID, "", err.Error())
	}
	if _, err := a.Upsert(ctx, p.ID, model.KindProject, p.ID, row); err != nil {
		return model.Project{}, err
	}
	return p, nil
}

// Slides returns the stored slides of projectID sorted by order.
func (a *Adapter) Slides(ctx context.Context, projectID string) ([]model.Slide, error) {
	rows, err := a.GetAllRows(ctx, projectID, model.KindSlide)
	if err != nil {
		return nil, err
	}
	col := SlideLayout.Column("projectId")
	slides := []model.Slide{}
	for _, r := range rows {
		if col < len(r) && rowstore.CellEqual(r[col], projectID) {
			slides = append(slides, SlideFromRow(r))
		}
	}
	slices.SortStableFunc(slides, func(x, y model.Slide) int { return cmp.Compare(x.Order, y.Order) })
	return slides, nil
}

// Hotspots returns the stored hotspots of slideID sorted by order.
func (a *Adapter) Hotspots(ctx context.Context, projectID, slideID string) ([]model.Hotspot, error) {
	all, err := a.ProjectHotspots(ctx, projectID)
	if err != nil {
		return nil, err
	}
	return all[slideID], nil
}

// ProjectHotspots returns the stored hotspots of every slide of projectID,
// keyed by slide id and sorted by order.
func (a *Adapter) ProjectHotspots(ctx context.Context, projectID string) (map[string][]model.Hotspot, error) {
	rows, err := a.GetAllRows(ctx, projectID, model.KindHotspot)
	if err != nil {
		return nil, err
	}
	out := make(map[string][]model.Hotspot)
	for _, r := range rows {
		h := HotspotFromRow(r)
		out[h.SlideID] = append(out[h.SlideID], h)
	}
	for _, list := range out {
		slices.SortStableFunc(list, func(x, y model.Hotspot) int { return cmp.Compare(x.Order, y.Order) })
	}
	return out, nil
}

// RecordAnalytics appends one visitor interaction. A missing id or
// timestamp is filled in.
func (a *Adapter) RecordAnalytics(ctx context.Context, ev model.AnalyticsEvent) (model.AnalyticsEvent, error) {
	if ev.ID == "" {
		ev.ID = a.ids.NewID(model.PrefixAnalytics)
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = a.now().UTC()
	}
	if ev.EventType == "" {
		ev.EventType = model.AnalyticsView
	}
	row, err := AnalyticsRow(ev)
	if err != nil {
		return model.AnalyticsEvent{}, model.NewValidationError(model.KindAnalytics, ev.ID, "metadata", err.Error())
	}
	doc, err := a.document(ctx, ev.ProjectID)
	if err != nil {
		return model.AnalyticsEvent{}, err
	}
	unlock := a.lockDocument(doc.ID())
	defer unlock()

	if err := doc.AppendRow(ctx, string(model.KindAnalytics), row); err != nil {
		return model.AnalyticsEvent{}, model.NewPersistenceError("append analytics", err)
	}
	return ev, nil
}

// ListAnalytics returns the recorded interactions of projectID in
// recording order.
func (a *Adapter) ListAnalytics(ctx context.Context, projectID string) ([]model.AnalyticsEvent, error) {
	rows, err := a.GetAllRows(ctx, projectID, model.KindAnalytics)
	if err != nil {
		return nil, err
	}
	events := make([]model.AnalyticsEvent, 0, len(rows))
	for _, r := range rows {
		events = append(events, AnalyticsFromRow(r))
	}
	return events, nil
}
