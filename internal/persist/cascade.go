package persist

import (
	"context"
	"fmt"

	"github.com/roach88/hotspot/internal/model"
	"github.com/roach88/hotspot/internal/rowstore"
)

// DeleteHotspot removes the hotspot row id. Deleting an absent row is not an
// error, so a retried flush converges.
func (a *Adapter) DeleteHotspot(ctx context.Context, projectID, id string) (bool, error) {
	doc, err := a.document(ctx, projectID)
	if err != nil {
		return false, err
	}
	unlock := a.lockDocument(doc.ID())
	defer unlock()

	ok, err := doc.DeleteRowByID(ctx, string(model.KindHotspot), id)
	if err != nil {
		return false, model.NewPersistenceError("delete hotspot "+id, err)
	}
	return ok, nil
}

// DeleteSlide removes slideID and every hotspot on it, hotspots first.
// It returns the number of rows removed.
func (a *Adapter) DeleteSlide(ctx context.Context, projectID, slideID string) (int, error) {
	doc, err := a.document(ctx, projectID)
	if err != nil {
		return 0, err
	}
	unlock := a.lockDocument(doc.ID())
	defer unlock()

	return a.deleteSlideLocked(ctx, doc, slideID)
}

func (a *Adapter) deleteSlideLocked(ctx context.Context, doc rowstore.Document, slideID string) (int, error) {
	n, err := doc.DeleteRowsByColumnValue(ctx, string(model.KindHotspot), HotspotLayout.Column("slideId"), slideID)
	if err != nil {
		return 0, model.NewPersistenceError("delete hotspots of slide "+slideID, err)
	}
	if err := a.mustCascade(ctx, doc, []string{slideID}); err != nil {
		return n, err
	}
	ok, err := doc.DeleteRowByID(ctx, string(model.KindSlide), slideID)
	if err != nil {
		return n, model.NewPersistenceError("delete slide "+slideID, err)
	}
	if ok {
		n++
	}
	a.logger.Debug("deleted slide", "document_id", doc.ID(), "slide_id", slideID, "rows", n)
	return n, nil
}

// mustCascade verifies that no hotspot row still references one of
// slideIDs. Removing a slide row while its hotspots remain would orphan
// them, which only a broken delete path can cause, so it panics.
func (a *Adapter) mustCascade(ctx context.Context, doc rowstore.Document, slideIDs []string) error {
	rows, err := doc.GetAllRows(ctx, string(model.KindHotspot))
	if err != nil {
		return model.NewPersistenceError("read hotspots", err)
	}
	doomed := make(map[string]bool, len(slideIDs))
	for _, id := range slideIDs {
		doomed[id] = true
	}
	col := HotspotLayout.Column("slideId")
	for _, r := range rows {
		if col < len(r) && doomed[rowstore.CellString(r[col])] {
			panic(fmt.Sprintf("persist: cascade order violated: hotspot %s still references slide %s",
				rowstore.RowID(r), rowstore.CellString(r[col])))
		}
	}
	return nil
}

// DeleteProject removes every row of projectID in dependency order
// (hotspots of each slide, slides, analytics, the project row) and then the
// project's document.
func (a *Adapter) DeleteProject(ctx context.Context, projectID string) error {
	doc, err := a.document(ctx, projectID)
	if err != nil {
		return err
	}
	unlock := a.lockDocument(doc.ID())
	defer unlock()

	slideIDs, err := a.slideIDsOf(ctx, doc, projectID)
	if err != nil {
		return err
	}
	hotspotCol := HotspotLayout.Column("slideId")
	for _, sid := range slideIDs {
		if _, err := doc.DeleteRowsByColumnValue(ctx, string(model.KindHotspot), hotspotCol, sid); err != nil {
			return model.NewPersistenceError("delete hotspots of slide "+sid, err)
		}
	}
	if err := a.mustCascade(ctx, doc, slideIDs); err != nil {
		return err
	}
	if _, err := doc.DeleteRowsByColumnValue(ctx, string(model.KindSlide), SlideLayout.Column("projectId"), projectID); err != nil {
		return model.NewPersistenceError("delete slides of project "+projectID, err)
	}
	if _, err := doc.DeleteRowsByColumnValue(ctx, string(model.KindAnalytics), AnalyticsLayout.Column("projectId"), projectID); err != nil {
		return model.NewPersistenceError("delete analytics of project "+projectID, err)
	}
	if _, err := doc.DeleteRowByID(ctx, string(model.KindProject), projectID); err != nil {
		return model.NewPersistenceError("delete project "+projectID, err)
	}
	if err := a.client.DeleteDocument(ctx, doc.ID()); err != nil {
		return model.NewPersistenceError("delete document "+doc.ID(), err)
	}
	a.forget(projectID, doc.ID())
	a.logger.Info("deleted project", "project_id", projectID, "document_id", doc.ID(), "slides", len(slideIDs))
	return nil
}
