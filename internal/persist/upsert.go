package persist

import (
	"context"
	"fmt"

	"github.com/roach88/hotspot/internal/model"
	"github.com/roach88/hotspot/internal/rowstore"
)

// Outcome is what an upsert did to the stored row.
type Outcome int

const (
	// Unchanged means the stored row already had identical content.
	Unchanged Outcome = iota
	// Updated means an existing row was overwritten in place.
	Updated
	// Inserted means the row was appended.
	Inserted
)

func (o Outcome) String() string {
	switch o {
	case Unchanged:
		return "unchanged"
	case Updated:
		return "updated"
	case Inserted:
		return "inserted"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// SaveStats counts upsert outcomes of a batch.
type SaveStats struct {
	Inserted  int `json:"inserted"`
	Updated   int `json:"updated"`
	Unchanged int `json:"unchanged"`
	Deleted   int `json:"deleted"`
}

// Writes returns the number of row-store writes the batch issued.
func (s SaveStats) Writes() int { return s.Inserted + s.Updated + s.Deleted }

func (s *SaveStats) add(o Outcome) {
	switch o {
	case Inserted:
		s.Inserted++
	case Updated:
		s.Updated++
	default:
		s.Unchanged++
	}
}

// Upsert writes row as the row of kind with the given id: read-before-write,
// overwrite in place when present, append otherwise. A row whose content
// hash equals the stored one is not rewritten.
func (a *Adapter) Upsert(ctx context.Context, projectID string, kind model.EntityKind, id string, row []any) (Outcome, error) {
	if _, err := LayoutFor(kind); err != nil {
		return Unchanged, err
	}
	if rowstore.RowID(row) != id {
		return Unchanged, fmt.Errorf("upsert %s: row id %q does not match %q", kind, rowstore.RowID(row), id)
	}
	doc, err := a.document(ctx, projectID)
	if err != nil {
		return Unchanged, err
	}
	unlock := a.lockDocument(doc.ID())
	defer unlock()

	var stats SaveStats
	if err := a.upsertRows(ctx, doc, kind, [][]any{row}, &stats); err != nil {
		return Unchanged, err
	}
	switch {
	case stats.Inserted > 0:
		return Inserted, nil
	case stats.Updated > 0:
		return Updated, nil
	default:
		return Unchanged, nil
	}
}

// upsertRows upserts one chunk of rows of kind. The sheet is read once per
// chunk. Caller holds the document lock.
func (a *Adapter) upsertRows(ctx context.Context, doc rowstore.Document, kind model.EntityKind, rows [][]any, stats *SaveStats) error {
	sheet := string(kind)
	stored, err := doc.GetAllRows(ctx, sheet)
	if err != nil {
		return model.NewPersistenceError("read "+sheet, err)
	}
	hashes := make(map[string]string, len(stored))
	for _, r := range stored {
		id := rowstore.RowID(r)
		if _, seen := hashes[id]; seen {
			continue
		}
		h, err := model.RowHash(kind, r)
		if err != nil {
			return model.NewPersistenceError("hash "+sheet, err)
		}
		hashes[id] = h
	}

	for _, row := range rows {
		norm, err := rowstore.NormalizeRow(row)
		if err != nil {
			return model.NewPersistenceError("encode "+sheet, err)
		}
		id := rowstore.RowID(norm)
		h, err := model.RowHash(kind, norm)
		if err != nil {
			return model.NewPersistenceError("hash "+sheet, err)
		}

		old, exists := hashes[id]
		switch {
		case exists && old == h:
			stats.add(Unchanged)
		case exists:
			ok, err := doc.UpdateRowByID(ctx, sheet, id, norm)
			if err != nil {
				return model.NewPersistenceError("update "+sheet+" "+id, err)
			}
			if !ok {
				// removed between the read and the write
				if err := doc.AppendRow(ctx, sheet, norm); err != nil {
					return model.NewPersistenceError("append "+sheet+" "+id, err)
				}
				stats.add(Inserted)
			} else {
				stats.add(Updated)
			}
		default:
			if err := doc.AppendRow(ctx, sheet, norm); err != nil {
				return model.NewPersistenceError("append "+sheet+" "+id, err)
			}
			stats.add(Inserted)
		}
		hashes[id] = h
	}
	return nil
}

// chunks splits rows into slices of at most size rows.
func chunks(rows [][]any, size int) [][][]any {
	var out [][][]any
	for len(rows) > size {
		out = append(out, rows[:size])
		rows = rows[size:]
	}
	if len(rows) > 0 {
		out = append(out, rows)
	}
	return out
}

// SaveHotspots upserts list in chunks of the configured batch size. Chunks
// bound the payload per call; they are not transactions. A failure mid-batch
// leaves earlier chunks written, and a retry converges because upserts are
// idempotent.
func (a *Adapter) SaveHotspots(ctx context.Context, projectID string, list []model.Hotspot) (SaveStats, error) {
	var stats SaveStats
	if len(list) == 0 {
		return stats, nil
	}
	doc, err := a.document(ctx, projectID)
	if err != nil {
		return stats, err
	}
	unlock := a.lockDocument(doc.ID())
	defer unlock()

	err = a.saveHotspotsLocked(ctx, doc, list, &stats)
	return stats, err
}

func (a *Adapter) saveHotspotsLocked(ctx context.Context, doc rowstore.Document, list []model.Hotspot, stats *SaveStats) error {
	rows := make([][]any, len(list))
	for i, h := range list {
		rows[i] = HotspotRow(h)
	}
	for i, chunk := range chunks(rows, a.batchSize) {
		if err := a.upsertRows(ctx, doc, model.KindHotspot, chunk, stats); err != nil {
			return err
		}
		a.logger.Debug("saved hotspot chunk",
			"document_id", doc.ID(),
			"chunk", i,
			"rows", len(chunk),
		)
	}
	return nil
}

// SyncSlideHotspots makes the stored hotspots of slideID equal list: every
// hotspot in list is upserted and stored rows of the slide that are absent
// from list are deleted. This is the full-list replace used by coalesced
// flushes; the last writer wins.
func (a *Adapter) SyncSlideHotspots(ctx context.Context, projectID, slideID string, list []model.Hotspot) (SaveStats, error) {
	var stats SaveStats
	for _, h := range list {
		if h.SlideID != slideID {
			return stats, fmt.Errorf("sync slide %s: hotspot %s belongs to slide %s", slideID, h.ID, h.SlideID)
		}
	}
	doc, err := a.document(ctx, projectID)
	if err != nil {
		return stats, err
	}
	unlock := a.lockDocument(doc.ID())
	defer unlock()

	if err := a.saveHotspotsLocked(ctx, doc, list, &stats); err != nil {
		return stats, err
	}

	keep := make(map[string]bool, len(list))
	for _, h := range list {
		keep[h.ID] = true
	}
	stale, err := a.hotspotIDsOf(ctx, doc, slideID)
	if err != nil {
		return stats, err
	}
	for _, id := range stale {
		if keep[id] {
			continue
		}
		if _, err := doc.DeleteRowByID(ctx, string(model.KindHotspot), id); err != nil {
			return stats, model.NewPersistenceError("delete hotspot "+id, err)
		}
		stats.Deleted++
	}
	return stats, nil
}

// hotspotIDsOf returns the ids of stored hotspot rows on slideID.
func (a *Adapter) hotspotIDsOf(ctx context.Context, doc rowstore.Document, slideID string) ([]string, error) {
	rows, err := doc.GetAllRows(ctx, string(model.KindHotspot))
	if err != nil {
		return nil, model.NewPersistenceError("read hotspots", err)
	}
	col := HotspotLayout.Column("slideId")
	var ids []string
	for _, r := range rows {
		if col < len(r) && rowstore.CellEqual(r[col], slideID) {
			ids = append(ids, rowstore.RowID(r))
		}
	}
	return ids, nil
}

// SaveSlides upserts slides.
func (a *Adapter) SaveSlides(ctx context.Context, projectID string, slides []model.Slide) (SaveStats, error) {
	var stats SaveStats
	if len(slides) == 0 {
		return stats, nil
	}
	doc, err := a.document(ctx, projectID)
	if err != nil {
		return stats, err
	}
	unlock := a.lockDocument(doc.ID())
	defer unlock()

	err = a.saveSlidesLocked(ctx, doc, slides, &stats)
	return stats, err
}

func (a *Adapter) saveSlidesLocked(ctx context.Context, doc rowstore.Document, slides []model.Slide, stats *SaveStats) error {
	rows := make([][]any, len(slides))
	for i, s := range slides {
		rows[i] = SlideRow(s)
	}
	for _, chunk := range chunks(rows, a.batchSize) {
		if err := a.upsertRows(ctx, doc, model.KindSlide, chunk, stats); err != nil {
			return err
		}
	}
	return nil
}

// SyncProjectSlides makes the stored slides of projectID equal slides.
// Stored slides absent from the list are deleted together with their
// hotspots, hotspots first.
func (a *Adapter) SyncProjectSlides(ctx context.Context, projectID string, slides []model.Slide) (SaveStats, error) {
	var stats SaveStats
	for _, s := range slides {
		if s.ProjectID != projectID {
			return stats, fmt.Errorf("sync project %s: slide %s belongs to project %s", projectID, s.ID, s.ProjectID)
		}
	}
	doc, err := a.document(ctx, projectID)
	if err != nil {
		return stats, err
	}
	unlock := a.lockDocument(doc.ID())
	defer unlock()

	if err := a.saveSlidesLocked(ctx, doc, slides, &stats); err != nil {
		return stats, err
	}

	keep := make(map[string]bool, len(slides))
	for _, s := range slides {
		keep[s.ID] = true
	}
	stored, err := a.slideIDsOf(ctx, doc, projectID)
	if err != nil {
		return stats, err
	}
	for _, id := range stored {
		if keep[id] {
			continue
		}
		n, err := a.deleteSlideLocked(ctx, doc, id)
		if err != nil {
			return stats, err
		}
		stats.Deleted += n
	}

	// hotspots of a slide deleted before its own row was stored
	orphans, err := a.orphanSlideIDsOf(ctx, doc, keep)
	if err != nil {
		return stats, err
	}
	col := HotspotLayout.Column("slideId")
	for _, id := range orphans {
		n, err := doc.DeleteRowsByColumnValue(ctx, string(model.KindHotspot), col, id)
		if err != nil {
			return stats, model.NewPersistenceError("delete hotspots of slide "+id, err)
		}
		a.logger.Debug("deleted orphaned hotspots", "document_id", doc.ID(), "slide_id", id, "rows", n)
		stats.Deleted += n
	}
	return stats, nil
}

// orphanSlideIDsOf returns, in first-seen order, the slide ids referenced
// by stored hotspot rows that are not in keep.
func (a *Adapter) orphanSlideIDsOf(ctx context.Context, doc rowstore.Document, keep map[string]bool) ([]string, error) {
	rows, err := doc.GetAllRows(ctx, string(model.KindHotspot))
	if err != nil {
		return nil, model.NewPersistenceError("read hotspots", err)
	}
	col := HotspotLayout.Column("slideId")
	seen := make(map[string]bool)
	var ids []string
	for _, r := range rows {
		if col >= len(r) {
			continue
		}
		id := rowstore.CellString(r[col])
		if keep[id] || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	return ids, nil
}

// slideIDsOf returns the ids of stored slide rows of projectID.
func (a *Adapter) slideIDsOf(ctx context.Context, doc rowstore.Document, projectID string) ([]string, error) {
	rows, err := doc.GetAllRows(ctx, string(model.KindSlide))
	if err != nil {
		return nil, model.NewPersistenceError("read slides", err)
	}
	col := SlideLayout.Column("projectId")
	var ids []string
	for _, r := range rows {
		if col < len(r) && rowstore.CellEqual(r[col], projectID) {
			ids = append(ids, rowstore.RowID(r))
		}
	}
	return ids, nil
}
