package persist

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/hotspot/internal/model"
	"github.com/roach88/hotspot/internal/rowstore"
	"github.com/roach88/hotspot/internal/testutil"
)

type fixture struct {
	ctx     context.Context
	adapter *Adapter
	rec     *testutil.RecordingClient
	project model.Project
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	ctx := context.Background()
	rec := testutil.NewRecordingClient(rowstore.NewMemory())
	clk := testutil.NewVirtualClock()
	opts = append([]Option{
		WithIDGenerator(model.NewSequenceIDs()),
		WithNow(clk.Now),
	}, opts...)
	a := New(rec, opts...)

	p, err := a.CreateProject(ctx, model.Project{Title: "Onboarding tour", CreatedBy: "ana@example.com"})
	require.NoError(t, err)
	rec.Reset()
	return &fixture{ctx: ctx, adapter: a, rec: rec, project: p}
}

func hotspotsOn(slideID string, n int) []model.Hotspot {
	list := make([]model.Hotspot, n)
	for i := range list {
		h := model.DefaultHotspot(i)
		h.ID = fmt.Sprintf("hs_%s_%d", slideID, i+1)
		h.SlideID = slideID
		h.Order = i
		list[i] = h
	}
	return list
}

func slidesOf(projectID string, n int) []model.Slide {
	list := make([]model.Slide, n)
	for i := range list {
		s := model.DefaultSlide(i)
		s.ID = fmt.Sprintf("slide_%d", i+1)
		s.ProjectID = projectID
		s.Order = i
		list[i] = s
	}
	return list
}

func indexOf(log []string, entry string) int {
	return slices.Index(log, entry)
}

func TestCreateProject(t *testing.T) {
	f := newFixture(t)

	assert.Equal(t, "proj_1", f.project.ID)
	assert.Equal(t, model.ProjectDraft, f.project.Status)
	assert.Equal(t, "doc_1", f.project.DocumentID)
	assert.Equal(t, testutil.Epoch, f.project.CreatedAt)

	got, err := f.adapter.GetProject(f.ctx, f.project.ID)
	require.NoError(t, err)
	assert.Equal(t, f.project.Title, got.Title)
	assert.Equal(t, f.project.CreatedBy, got.CreatedBy)
	assert.Equal(t, f.project.DocumentID, got.DocumentID)
	assert.Equal(t, f.project.CreatedAt, got.CreatedAt)

	doc, err := f.rec.OpenDocument(f.ctx, f.project.DocumentID)
	require.NoError(t, err)
	for _, l := range layouts {
		header, err := doc.Headers(f.ctx, string(l.Kind))
		require.NoError(t, err)
		assert.Equal(t, l.Columns, header)
	}
	meta, err := doc.GetAllRows(f.ctx, metaSheet)
	require.NoError(t, err)
	assert.Equal(t, [][]any{{metaLayoutVersion, float64(LayoutVersion)}}, meta)
}

func TestCreateProject_Validation(t *testing.T) {
	f := newFixture(t)

	_, err := f.adapter.CreateProject(f.ctx, model.Project{Title: "   "})
	assert.True(t, model.IsValidation(err))

	_, err = f.adapter.CreateProject(f.ctx, model.Project{Title: "x", DocumentID: "doc_42"})
	assert.True(t, model.IsValidation(err))
	assert.Zero(t, f.rec.Calls(testutil.OpCreateDocument))
}

func TestDocumentLookup_ScansOnCacheMiss(t *testing.T) {
	f := newFixture(t)

	// a fresh adapter over the same store has an empty cache
	other := New(f.rec)
	id, err := other.DocumentID(f.ctx, f.project.ID)
	require.NoError(t, err)
	assert.Equal(t, f.project.DocumentID, id)

	_, err = other.DocumentID(f.ctx, "proj_404")
	assert.True(t, model.IsNotFound(err))
}

func TestListProjects(t *testing.T) {
	f := newFixture(t)
	second, err := f.adapter.CreateProject(f.ctx, model.Project{Title: "Pricing page"})
	require.NoError(t, err)

	list, err := f.adapter.ListProjects(f.ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, f.project.ID, list[0].ID)
	assert.Equal(t, second.ID, list[1].ID)
	assert.Equal(t, second.DocumentID, list[1].DocumentID)
}

func TestUpdateProject(t *testing.T) {
	f := newFixture(t)

	p := f.project
	p.Title = "Renamed"
	p.Status = model.ProjectPublished
	updated, err := f.adapter.UpdateProject(f.ctx, p)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", updated.Title)

	got, err := f.adapter.GetProject(f.ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Title)
	assert.Equal(t, model.ProjectPublished, got.Status)

	rows, err := f.adapter.GetAllRows(f.ctx, p.ID, model.KindProject)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestUpdateProject_DocumentIDImmutable(t *testing.T) {
	f := newFixture(t)

	p := f.project
	p.DocumentID = "doc_other"
	_, err := f.adapter.UpdateProject(f.ctx, p)
	require.Error(t, err)
	var me *model.Error
	require.ErrorAs(t, err, &me)
	assert.Equal(t, "documentId", me.Field)
}

func TestUpsert_Outcomes(t *testing.T) {
	f := newFixture(t)
	h := hotspotsOn("slide_1", 1)[0]

	got, err := f.adapter.Upsert(f.ctx, f.project.ID, model.KindHotspot, h.ID, HotspotRow(h))
	require.NoError(t, err)
	assert.Equal(t, Inserted, got)

	got, err = f.adapter.Upsert(f.ctx, f.project.ID, model.KindHotspot, h.ID, HotspotRow(h))
	require.NoError(t, err)
	assert.Equal(t, Unchanged, got)

	h.Name = "Renamed"
	got, err = f.adapter.Upsert(f.ctx, f.project.ID, model.KindHotspot, h.ID, HotspotRow(h))
	require.NoError(t, err)
	assert.Equal(t, Updated, got)

	row, err := f.adapter.GetRowByID(f.ctx, f.project.ID, model.KindHotspot, h.ID)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", HotspotFromRow(row).Name)

	assert.Equal(t, 1, f.rec.Calls(testutil.OpAppendRow))
	assert.Equal(t, 1, f.rec.Calls(testutil.OpUpdateRowByID))
}

func TestUpsert_RejectsMismatchedID(t *testing.T) {
	f := newFixture(t)
	h := hotspotsOn("slide_1", 1)[0]
	_, err := f.adapter.Upsert(f.ctx, f.project.ID, model.KindHotspot, "hs_other", HotspotRow(h))
	assert.Error(t, err)
}

func TestGetRowByID_NotFound(t *testing.T) {
	f := newFixture(t)
	_, err := f.adapter.GetRowByID(f.ctx, f.project.ID, model.KindSlide, "slide_404")
	assert.True(t, model.IsNotFound(err))
}

func TestSaveHotspots_Idempotent(t *testing.T) {
	f := newFixture(t)
	list := hotspotsOn("slide_1", 4)

	first, err := f.adapter.SaveHotspots(f.ctx, f.project.ID, list)
	require.NoError(t, err)
	assert.Equal(t, 4, first.Inserted)
	rowsOnce, err := f.adapter.GetAllRows(f.ctx, f.project.ID, model.KindHotspot)
	require.NoError(t, err)

	second, err := f.adapter.SaveHotspots(f.ctx, f.project.ID, list)
	require.NoError(t, err)
	assert.Equal(t, 4, second.Unchanged)
	assert.Zero(t, second.Writes())

	rowsTwice, err := f.adapter.GetAllRows(f.ctx, f.project.ID, model.KindHotspot)
	require.NoError(t, err)
	assert.Equal(t, rowsOnce, rowsTwice)
}

func TestSaveHotspots_Chunks(t *testing.T) {
	f := newFixture(t, WithBatchSize(2))
	list := hotspotsOn("slide_1", 5)

	stats, err := f.adapter.SaveHotspots(f.ctx, f.project.ID, list)
	require.NoError(t, err)
	assert.Equal(t, 5, stats.Inserted)

	reads := 0
	for _, e := range f.rec.Log() {
		if e == testutil.OpGetAllRows+" hotspots" {
			reads++
		}
	}
	assert.Equal(t, 3, reads, "one read per chunk")
}

func TestSaveHotspots_PartialFailureConvergesOnRetry(t *testing.T) {
	f := newFixture(t, WithBatchSize(2))
	list := hotspotsOn("slide_1", 4)

	// the first chunk lands, the first append of the second chunk fails
	_, err := f.adapter.SaveHotspots(f.ctx, f.project.ID, list[:2])
	require.NoError(t, err)
	boom := errors.New("rate limited")
	f.rec.FailNext(testutil.OpAppendRow, 1, boom)

	_, err = f.adapter.SaveHotspots(f.ctx, f.project.ID, list)
	require.Error(t, err)
	assert.True(t, model.IsPersistence(err))
	assert.ErrorIs(t, err, boom)

	stats, err := f.adapter.SaveHotspots(f.ctx, f.project.ID, list)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Unchanged)
	assert.Equal(t, 2, stats.Inserted)

	got, err := f.adapter.Hotspots(f.ctx, f.project.ID, "slide_1")
	require.NoError(t, err)
	assert.Len(t, got, 4)
}

func TestSyncSlideHotspots_ReplacesFullList(t *testing.T) {
	f := newFixture(t)
	a := hotspotsOn("slide_a", 3)
	b := hotspotsOn("slide_b", 2)
	_, err := f.adapter.SaveHotspots(f.ctx, f.project.ID, append(slices.Clone(a), b...))
	require.NoError(t, err)

	// drop the middle hotspot and move the last one up
	next := []model.Hotspot{a[0], a[2]}
	next[1].Order = 1
	stats, err := f.adapter.SyncSlideHotspots(f.ctx, f.project.ID, "slide_a", next)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Updated)
	assert.Equal(t, 1, stats.Deleted)

	got, err := f.adapter.Hotspots(f.ctx, f.project.ID, "slide_a")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, a[0].ID, got[0].ID)
	assert.Equal(t, a[2].ID, got[1].ID)
	assert.Equal(t, 1, got[1].Order)

	other, err := f.adapter.Hotspots(f.ctx, f.project.ID, "slide_b")
	require.NoError(t, err)
	assert.Len(t, other, 2)
}

func TestSyncSlideHotspots_EmptyListClearsSlide(t *testing.T) {
	f := newFixture(t)
	_, err := f.adapter.SaveHotspots(f.ctx, f.project.ID, hotspotsOn("slide_a", 2))
	require.NoError(t, err)

	stats, err := f.adapter.SyncSlideHotspots(f.ctx, f.project.ID, "slide_a", nil)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Deleted)
}

func TestSyncSlideHotspots_RejectsForeignHotspot(t *testing.T) {
	f := newFixture(t)
	_, err := f.adapter.SyncSlideHotspots(f.ctx, f.project.ID, "slide_a", hotspotsOn("slide_b", 1))
	assert.Error(t, err)
}

func TestSyncProjectSlides_CascadesRemovedSlides(t *testing.T) {
	f := newFixture(t)
	slides := slidesOf(f.project.ID, 3)
	_, err := f.adapter.SaveSlides(f.ctx, f.project.ID, slides)
	require.NoError(t, err)
	_, err = f.adapter.SaveHotspots(f.ctx, f.project.ID, hotspotsOn("slide_2", 2))
	require.NoError(t, err)
	f.rec.Reset()

	next := []model.Slide{slides[0], slides[2]}
	next[1].Order = 1
	stats, err := f.adapter.SyncProjectSlides(f.ctx, f.project.ID, next)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Deleted, "two hotspots and one slide")

	log := f.rec.Log()
	assert.Less(t,
		indexOf(log, testutil.OpDeleteRowsByColumnValue+" hotspots"),
		indexOf(log, testutil.OpDeleteRowByID+" slides"))

	got, err := f.adapter.Slides(f.ctx, f.project.ID)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "slide_3", got[1].ID)
	assert.Equal(t, 1, got[1].Order)

	hs, err := f.adapter.Hotspots(f.ctx, f.project.ID, "slide_2")
	require.NoError(t, err)
	assert.Empty(t, hs)
}

func TestSyncProjectSlides_RemovesHotspotsOfUnstoredSlides(t *testing.T) {
	f := newFixture(t)
	slides := slidesOf(f.project.ID, 1)
	_, err := f.adapter.SaveSlides(f.ctx, f.project.ID, slides)
	require.NoError(t, err)
	// slide_2 never reached the slide sheet
	_, err = f.adapter.SaveHotspots(f.ctx, f.project.ID, hotspotsOn("slide_2", 2))
	require.NoError(t, err)
	_, err = f.adapter.SaveHotspots(f.ctx, f.project.ID, hotspotsOn("slide_1", 1))
	require.NoError(t, err)

	stats, err := f.adapter.SyncProjectSlides(f.ctx, f.project.ID, slides)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Deleted)

	bySlide, err := f.adapter.ProjectHotspots(f.ctx, f.project.ID)
	require.NoError(t, err)
	assert.Empty(t, bySlide["slide_2"])
	assert.Len(t, bySlide["slide_1"], 1)
}

func TestDeleteSlide_HotspotsFirst(t *testing.T) {
	f := newFixture(t)
	_, err := f.adapter.SaveSlides(f.ctx, f.project.ID, slidesOf(f.project.ID, 1))
	require.NoError(t, err)
	_, err = f.adapter.SaveHotspots(f.ctx, f.project.ID, hotspotsOn("slide_1", 3))
	require.NoError(t, err)
	f.rec.Reset()

	n, err := f.adapter.DeleteSlide(f.ctx, f.project.ID, "slide_1")
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	log := f.rec.Log()
	assert.Less(t,
		indexOf(log, testutil.OpDeleteRowsByColumnValue+" hotspots"),
		indexOf(log, testutil.OpDeleteRowByID+" slides"))
}

func TestDeleteHotspot(t *testing.T) {
	f := newFixture(t)
	list := hotspotsOn("slide_1", 2)
	_, err := f.adapter.SaveHotspots(f.ctx, f.project.ID, list)
	require.NoError(t, err)

	ok, err := f.adapter.DeleteHotspot(f.ctx, f.project.ID, list[0].ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = f.adapter.DeleteHotspot(f.ctx, f.project.ID, list[0].ID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDeleteProject_CascadeCompleteness(t *testing.T) {
	f := newFixture(t)
	other, err := f.adapter.CreateProject(f.ctx, model.Project{Title: "Keep me"})
	require.NoError(t, err)

	for _, p := range []model.Project{f.project, other} {
		_, err := f.adapter.SaveSlides(f.ctx, p.ID, slidesOf(p.ID, 2))
		require.NoError(t, err)
		for _, sid := range []string{"slide_1", "slide_2"} {
			_, err := f.adapter.SaveHotspots(f.ctx, p.ID, hotspotsOn(sid, 2))
			require.NoError(t, err)
		}
		_, err = f.adapter.RecordAnalytics(f.ctx, model.AnalyticsEvent{ProjectID: p.ID, SlideID: "slide_1"})
		require.NoError(t, err)
	}
	f.rec.Reset()

	require.NoError(t, f.adapter.DeleteProject(f.ctx, f.project.ID))

	log := f.rec.Log()
	hotspots := indexOf(log, testutil.OpDeleteRowsByColumnValue+" hotspots")
	slidesIdx := indexOf(log, testutil.OpDeleteRowsByColumnValue+" slides")
	project := indexOf(log, testutil.OpDeleteRowByID+" projects")
	document := indexOf(log, testutil.OpDeleteDocument)
	require.NotEqual(t, -1, hotspots)
	assert.Less(t, hotspots, slidesIdx)
	assert.Less(t, slidesIdx, project)
	assert.Less(t, project, document)

	_, err = f.adapter.GetProject(f.ctx, f.project.ID)
	assert.True(t, model.IsNotFound(err))

	// the other project is untouched
	slides, err := f.adapter.Slides(f.ctx, other.ID)
	require.NoError(t, err)
	assert.Len(t, slides, 2)
	all, err := f.adapter.ProjectHotspots(f.ctx, other.ID)
	require.NoError(t, err)
	assert.Len(t, all["slide_1"], 2)
	assert.Len(t, all["slide_2"], 2)

	list, err := f.adapter.ListProjects(f.ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, other.ID, list[0].ID)
}

func TestMustCascade_PanicsOnOrphans(t *testing.T) {
	f := newFixture(t)
	_, err := f.adapter.SaveHotspots(f.ctx, f.project.ID, hotspotsOn("slide_1", 1))
	require.NoError(t, err)
	doc, err := f.rec.OpenDocument(f.ctx, f.project.DocumentID)
	require.NoError(t, err)

	assert.Panics(t, func() {
		_ = f.adapter.mustCascade(f.ctx, doc, []string{"slide_1"})
	})
	assert.NotPanics(t, func() {
		_ = f.adapter.mustCascade(f.ctx, doc, []string{"slide_2"})
	})
}

func TestBootstrap_RejectsForeignHeader(t *testing.T) {
	ctx := context.Background()
	mem := rowstore.NewMemory()
	docID, err := mem.CreateDocument(ctx, "legacy")
	require.NoError(t, err)
	doc, err := mem.OpenDocument(ctx, docID)
	require.NoError(t, err)
	require.NoError(t, doc.EnsureSheetExists(ctx, "projects"))
	require.NoError(t, doc.AppendRow(ctx, "projects", []any{"proj_legacy", "Legacy"}))
	require.NoError(t, doc.EnsureSheetExists(ctx, "hotspots"))
	require.NoError(t, doc.SetupHeaders(ctx, "hotspots", []string{"id", "name", "slideId"}))

	a := New(mem)
	_, err = a.Slides(ctx, "proj_legacy")
	require.Error(t, err)
	assert.True(t, model.IsPersistence(err))
}

func TestBootstrap_RejectsNewerLayout(t *testing.T) {
	ctx := context.Background()
	mem := rowstore.NewMemory()
	docID, err := mem.CreateDocument(ctx, "future")
	require.NoError(t, err)
	doc, err := mem.OpenDocument(ctx, docID)
	require.NoError(t, err)
	require.NoError(t, doc.EnsureSheetExists(ctx, "projects"))
	require.NoError(t, doc.AppendRow(ctx, "projects", []any{"proj_future", "Future"}))
	require.NoError(t, doc.EnsureSheetExists(ctx, metaSheet))
	require.NoError(t, doc.AppendRow(ctx, metaSheet, []any{metaLayoutVersion, LayoutVersion + 1}))

	_, err = New(mem).Slides(ctx, "proj_future")
	assert.True(t, model.IsPersistence(err))
}

func TestBootstrap_ConcurrentFirstUseWritesOneVersionRow(t *testing.T) {
	ctx := context.Background()
	mem := rowstore.NewMemory()
	docID, err := mem.CreateDocument(ctx, "shared")
	require.NoError(t, err)
	doc, err := mem.OpenDocument(ctx, docID)
	require.NoError(t, err)
	require.NoError(t, doc.EnsureSheetExists(ctx, "projects"))
	require.NoError(t, doc.AppendRow(ctx, "projects", []any{"proj_shared", "Shared"}))

	a := New(mem)
	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = a.Slides(ctx, "proj_shared")
		}()
	}
	wg.Wait()
	for _, err := range errs {
		require.NoError(t, err)
	}

	meta, err := doc.GetAllRows(ctx, metaSheet)
	require.NoError(t, err)
	assert.Len(t, meta, 1)
}

func TestAnalytics(t *testing.T) {
	f := newFixture(t)

	ev, err := f.adapter.RecordAnalytics(f.ctx, model.AnalyticsEvent{
		ProjectID: f.project.ID,
		SlideID:   "slide_1",
		HotspotID: "hs_1",
		EventType: model.AnalyticsClick,
		SessionID: "sess_1",
		Metadata:  map[string]any{"device": "mobile"},
	})
	require.NoError(t, err)
	assert.Equal(t, "evt_1", ev.ID)
	assert.Equal(t, testutil.Epoch, ev.Timestamp)

	list, err := f.adapter.ListAnalytics(f.ctx, f.project.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, ev.ID, list[0].ID)
	assert.Equal(t, model.AnalyticsClick, list[0].EventType)
	assert.Equal(t, map[string]any{"device": "mobile"}, list[0].Metadata)
	assert.Equal(t, ev.Timestamp, list[0].Timestamp)
}

func TestPersistenceErrors(t *testing.T) {
	f := newFixture(t)
	boom := errors.New("backend unavailable")
	f.rec.FailNext(testutil.OpGetAllRows, 1, boom)

	_, err := f.adapter.SaveHotspots(f.ctx, f.project.ID, hotspotsOn("slide_1", 1))
	require.Error(t, err)
	assert.True(t, model.IsPersistence(err))
	assert.ErrorIs(t, err, boom)
}

func TestTimestampsAreUTC(t *testing.T) {
	ctx := context.Background()
	local := time.FixedZone("CET", 3600)
	a := New(rowstore.NewMemory(), WithNow(func() time.Time {
		return time.Date(2024, 5, 1, 10, 0, 0, 0, local)
	}))
	p, err := a.CreateProject(ctx, model.Project{Title: "Tour"})
	require.NoError(t, err)
	assert.Equal(t, time.UTC, p.CreatedAt.Location())

	got, err := a.GetProject(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, p.CreatedAt.Equal(got.CreatedAt))
}
