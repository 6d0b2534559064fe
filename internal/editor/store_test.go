package editor

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/hotspot/internal/model"
	"github.com/roach88/hotspot/internal/testutil"
)

// newTestStore returns a store for proj_1 with one active slide (slide_1)
// and deterministic ids and time.
func newTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	opts = append([]Option{
		WithIDGenerator(model.NewSequenceIDs()),
		WithClock(testutil.NewVirtualClock()),
	}, opts...)
	s := New("proj_1", opts...)

	sl, err := s.AddSlide(model.SlidePatch{})
	require.NoError(t, err)
	require.Equal(t, "slide_1", sl.ID)
	require.NoError(t, s.SetActiveSlide(sl.ID))
	return s
}

// recordEvents subscribes to every event on s and returns the live log.
func recordEvents(s *Store) *[]Event {
	var got []Event
	s.Bus().SubscribeAll(func(e Event) { got = append(got, e) })
	return &got
}

func orders(list []model.Hotspot) []int {
	out := make([]int, len(list))
	for i, h := range list {
		out[i] = h.Order
	}
	return out
}

func ids(list []model.Hotspot) []string {
	out := make([]string, len(list))
	for i, h := range list {
		out[i] = h.ID
	}
	return out
}

func TestStore_DeleteThenReorderScenario(t *testing.T) {
	s := newTestStore(t)
	for range 3 {
		_, err := s.CreateHotspot(model.HotspotPatch{})
		require.NoError(t, err)
	}
	assert.Equal(t, []int{0, 1, 2}, orders(s.Hotspots("slide_1")))

	require.NoError(t, s.DeleteHotspot("hs_2"))
	list := s.Hotspots("slide_1")
	assert.Equal(t, []string{"hs_1", "hs_3"}, ids(list))
	assert.Equal(t, []int{0, 1}, orders(list))

	require.NoError(t, s.ReorderHotspot("hs_1", 0, 1))
	list = s.Hotspots("slide_1")
	assert.Equal(t, []string{"hs_3", "hs_1"}, ids(list))
	assert.Equal(t, []int{0, 1}, orders(list))
}

func TestStore_CapacityExceeded(t *testing.T) {
	s := newTestStore(t)
	for range DefaultMaxHotspots {
		_, err := s.CreateHotspot(model.HotspotPatch{})
		require.NoError(t, err)
	}
	queued := s.Queue().Len()

	_, err := s.CreateHotspot(model.HotspotPatch{})
	require.Error(t, err)
	assert.True(t, model.IsCapacityExceeded(err))
	assert.Len(t, s.Hotspots("slide_1"), DefaultMaxHotspots)
	assert.Equal(t, queued, s.Queue().Len())
}

func TestStore_CustomCapacity(t *testing.T) {
	s := newTestStore(t, WithMaxHotspots(2))
	_, err := s.CreateHotspot(model.HotspotPatch{})
	require.NoError(t, err)
	_, err = s.CreateHotspot(model.HotspotPatch{})
	require.NoError(t, err)

	_, err = s.CreateHotspot(model.HotspotPatch{})
	assert.True(t, model.IsCapacityExceeded(err))
	assert.Equal(t, 2, s.MaxHotspots())
}

func TestStore_CreateHotspotMergesDefaults(t *testing.T) {
	s := newTestStore(t)
	events := recordEvents(s)

	h, err := s.CreateHotspot(model.HotspotPatch{
		Name:     model.Ptr("Start here"),
		Position: &model.Position{X: 20, Y: 30},
	})
	require.NoError(t, err)

	assert.Equal(t, "hs_1", h.ID)
	assert.Equal(t, "slide_1", h.SlideID)
	assert.Equal(t, "Start here", h.Name)
	assert.Equal(t, model.Position{X: 20, Y: 30}, h.Position)
	assert.Equal(t, model.DefaultColor, h.Color)
	assert.Equal(t, model.SizeMedium, h.Size)
	assert.Equal(t, model.TriggerClick, h.TriggerType)
	assert.Equal(t, model.EventTextPopup, h.EventType)
	assert.True(t, h.PulseAnimation)
	assert.True(t, h.IsVisible)
	assert.Equal(t, testutil.Epoch, h.CreatedAt)

	require.Len(t, *events, 1)
	assert.Equal(t, EventHotspotCreated, (*events)[0].Type)
	assert.Equal(t, HotspotCreatedPayload{Hotspot: h}, (*events)[0].Payload)

	pending := s.Pending("slide_1")
	require.Len(t, pending, 1)
	assert.Equal(t, model.ActionCreate, pending[0].Action)
	assert.Equal(t, h, *pending[0].Hotspot)
}

func TestStore_CreateHotspotWithID(t *testing.T) {
	s := newTestStore(t)

	h, err := s.CreateHotspot(model.HotspotPatch{ID: model.Ptr("hs_intro")})
	require.NoError(t, err)
	assert.Equal(t, "hs_intro", h.ID)

	_, err = s.CreateHotspot(model.HotspotPatch{ID: model.Ptr("hs_intro")})
	assert.True(t, model.IsValidation(err))

	require.NoError(t, s.DeleteHotspot("hs_intro"))
	_, err = s.CreateHotspot(model.HotspotPatch{ID: model.Ptr("hs_intro")})
	assert.True(t, model.IsValidation(err), "deleted ids are never reused")
}

func TestStore_CreateHotspotWithoutActiveSlide(t *testing.T) {
	s := New("proj_1")
	_, err := s.CreateHotspot(model.HotspotPatch{})
	assert.True(t, model.IsNotInitialized(err))
}

func TestStore_CreateHotspotRejectsInvalid(t *testing.T) {
	s := newTestStore(t)
	events := recordEvents(s)

	_, err := s.CreateHotspot(model.HotspotPatch{TooltipContent: model.Ptr("  ")})
	require.Error(t, err)

	var merr *model.Error
	require.True(t, errors.As(err, &merr))
	assert.Equal(t, model.ErrCodeValidation, merr.Code)
	assert.Contains(t, merr.Field, "tooltipContent")
	assert.Empty(t, s.Hotspots("slide_1"))
	assert.Empty(t, *events)
	assert.Empty(t, s.Pending("slide_1"))
}

func TestStore_UpdateHotspotValidationIsAtomic(t *testing.T) {
	s := newTestStore(t)
	h, err := s.CreateHotspot(model.HotspotPatch{})
	require.NoError(t, err)
	queued := s.Queue().Len()
	events := recordEvents(s)

	got, err := s.UpdateHotspot(h.ID, model.HotspotPatch{
		Name:      model.Ptr("Zoomed"),
		EventType: model.Ptr(model.EventPanZoom),
		ZoomLevel: model.Ptr(9.0),
	})
	require.Error(t, err)
	assert.True(t, model.IsValidation(err))
	assert.Equal(t, h, got)

	stored, err := s.Hotspot(h.ID)
	require.NoError(t, err)
	assert.Equal(t, h, stored)
	assert.Equal(t, queued, s.Queue().Len())
	assert.Empty(t, *events)
}

func TestStore_UpdateHotspot(t *testing.T) {
	s := newTestStore(t)
	h, err := s.CreateHotspot(model.HotspotPatch{})
	require.NoError(t, err)
	events := recordEvents(s)

	after, err := s.UpdateHotspot(h.ID, model.HotspotPatch{
		EventType: model.Ptr(model.EventPanZoom),
		ZoomLevel: model.Ptr(2.0),
	})
	require.NoError(t, err)
	assert.Equal(t, model.EventPanZoom, after.EventType)
	assert.Equal(t, h.Order, after.Order)

	require.Len(t, *events, 1)
	assert.Equal(t, HotspotUpdatedPayload{Before: h, After: after}, (*events)[0].Payload)

	pending := s.Pending("slide_1")
	last := pending[len(pending)-1]
	assert.Equal(t, model.ActionUpdate, last.Action)
	assert.Equal(t, h, *last.Previous)

	// same values again: nothing to do
	_, err = s.UpdateHotspot(h.ID, model.HotspotPatch{ZoomLevel: model.Ptr(2.0)})
	require.NoError(t, err)
	assert.Len(t, *events, 1)
	assert.Len(t, s.Pending("slide_1"), len(pending))
}

func TestStore_UpdateHotspotErrors(t *testing.T) {
	s := newTestStore(t)
	h, err := s.CreateHotspot(model.HotspotPatch{})
	require.NoError(t, err)

	_, err = s.UpdateHotspot("hs_404", model.HotspotPatch{})
	assert.True(t, model.IsNotFound(err))

	_, err = s.UpdateHotspot(h.ID, model.HotspotPatch{ID: model.Ptr("hs_other")})
	assert.True(t, model.IsValidation(err))
}

func TestStore_UpdateHotspotPosition(t *testing.T) {
	s := newTestStore(t)
	h, err := s.CreateHotspot(model.HotspotPatch{})
	require.NoError(t, err)
	events := recordEvents(s)

	for _, x := range []float64{10, 20, 130} {
		_, err := s.UpdateHotspotPosition(h.ID, model.Position{X: x, Y: -5})
		require.NoError(t, err)
	}

	got, err := s.Hotspot(h.ID)
	require.NoError(t, err)
	assert.Equal(t, model.Position{X: 100, Y: 0}, got.Position)

	require.Len(t, *events, 3)
	last := (*events)[2].Payload.(HotspotPositionChangedPayload)
	assert.Equal(t, model.Position{X: 20, Y: 0}, last.Before)
	assert.Equal(t, model.Position{X: 100, Y: 0}, last.After)

	var positions []model.ChangeRecord
	for _, r := range s.Pending("slide_1") {
		if r.Action == model.ActionPosition {
			positions = append(positions, r)
		}
	}
	require.Len(t, positions, 1)
	assert.Equal(t, 100.0, positions[0].Hotspot.Position.X)

	_, err = s.UpdateHotspotPosition("hs_404", model.Position{})
	assert.True(t, model.IsNotFound(err))
}

func TestStore_UpdateHotspotPositionRejectsNonFinite(t *testing.T) {
	s := newTestStore(t)
	h, err := s.CreateHotspot(model.HotspotPatch{})
	require.NoError(t, err)
	queued := len(s.Pending("slide_1"))
	events := recordEvents(s)

	for _, pos := range []model.Position{
		{X: math.NaN(), Y: 10},
		{X: 10, Y: math.Inf(1)},
		{X: math.Inf(-1), Y: math.NaN()},
	} {
		_, err := s.UpdateHotspotPosition(h.ID, pos)
		require.Error(t, err)
		assert.True(t, model.IsValidation(err))
	}

	got, err := s.Hotspot(h.ID)
	require.NoError(t, err)
	assert.Equal(t, h.Position, got.Position)
	assert.Len(t, s.Pending("slide_1"), queued)
	assert.Empty(t, *events)
}

func TestStore_DeleteHotspotClearsSelection(t *testing.T) {
	s := newTestStore(t)
	h, err := s.CreateHotspot(model.HotspotPatch{})
	require.NoError(t, err)
	s.SelectHotspot(h.ID)
	events := recordEvents(s)

	require.NoError(t, s.DeleteHotspot(h.ID))

	assert.Empty(t, s.Selected())
	require.Len(t, *events, 2)
	assert.Equal(t, HotspotDeletedPayload{Hotspot: h, WasSelected: true}, (*events)[0].Payload)
	assert.Equal(t, HotspotSelectionChangedPayload{Previous: h.ID}, (*events)[1].Payload)

	err = s.DeleteHotspot(h.ID)
	assert.True(t, model.IsNotFound(err))
}

func TestStore_ReorderHotspotBounds(t *testing.T) {
	s := newTestStore(t)
	for range 3 {
		_, err := s.CreateHotspot(model.HotspotPatch{})
		require.NoError(t, err)
	}
	queued := s.Queue().Len()
	events := recordEvents(s)

	for _, tc := range []struct{ from, to int }{{-1, 0}, {0, 3}, {5, 1}, {1, 1}} {
		require.NoError(t, s.ReorderHotspot("hs_1", tc.from, tc.to))
	}
	assert.Equal(t, []string{"hs_1", "hs_2", "hs_3"}, ids(s.Hotspots("slide_1")))
	assert.Equal(t, queued, s.Queue().Len())
	assert.Empty(t, *events)

	err := s.ReorderHotspot("hs_1", 1, 2)
	assert.True(t, model.IsValidation(err))

	err = s.ReorderHotspot("hs_404", 0, 1)
	assert.True(t, model.IsNotFound(err))
}

func TestStore_ReorderHotspotRecordsFullList(t *testing.T) {
	s := newTestStore(t)
	for range 3 {
		_, err := s.CreateHotspot(model.HotspotPatch{})
		require.NoError(t, err)
	}
	events := recordEvents(s)

	require.NoError(t, s.ReorderHotspot("hs_3", 2, 0))

	pending := s.Pending("slide_1")
	last := pending[len(pending)-1]
	assert.Equal(t, model.ActionReorder, last.Action)
	assert.Equal(t, []string{"hs_3", "hs_1", "hs_2"}, ids(last.Hotspots))
	assert.Equal(t, []int{0, 1, 2}, orders(last.Hotspots))

	require.Len(t, *events, 1)
	payload := (*events)[0].Payload.(HotspotsReorderedPayload)
	assert.Equal(t, 2, payload.From)
	assert.Equal(t, 0, payload.To)
}

func TestStore_SelectHotspot(t *testing.T) {
	var logs bytes.Buffer
	s := newTestStore(t, WithLogger(slog.New(slog.NewTextHandler(&logs, nil))))
	h, err := s.CreateHotspot(model.HotspotPatch{})
	require.NoError(t, err)
	events := recordEvents(s)

	s.SelectHotspot(h.ID)
	s.SelectHotspot(h.ID)
	s.SelectHotspot("hs_404")
	s.SelectHotspot("")

	assert.Empty(t, s.Selected())
	require.Len(t, *events, 2)
	assert.Equal(t, HotspotSelectionChangedPayload{Current: h.ID}, (*events)[0].Payload)
	assert.Equal(t, HotspotSelectionChangedPayload{Previous: h.ID}, (*events)[1].Payload)
	assert.Contains(t, logs.String(), "unknown hotspot")
}

func TestStore_SetActiveSlide(t *testing.T) {
	s := newTestStore(t)
	h, err := s.CreateHotspot(model.HotspotPatch{})
	require.NoError(t, err)
	s.SelectHotspot(h.ID)
	second, err := s.AddSlide(model.SlidePatch{Title: model.Ptr("Details")})
	require.NoError(t, err)
	events := recordEvents(s)

	require.NoError(t, s.SetActiveSlide(second.ID))
	require.NoError(t, s.SetActiveSlide(second.ID))

	assert.Equal(t, second.ID, s.ActiveSlide())
	assert.Empty(t, s.Selected())
	require.Len(t, *events, 1)
	assert.Equal(t, SlideChangedPayload{Previous: "slide_1", Current: second.ID, ClearedSelection: h.ID}, (*events)[0].Payload)

	assert.True(t, model.IsNotFound(s.SetActiveSlide("slide_404")))
	assert.True(t, model.IsValidation(s.SetActiveSlide("")))
}

func TestStore_HandlersMayReadStore(t *testing.T) {
	s := newTestStore(t)
	var seen int
	s.Bus().Subscribe(EventHotspotCreated, func(e Event) {
		seen = len(s.Hotspots(e.SlideID))
	})

	_, err := s.CreateHotspot(model.HotspotPatch{})
	require.NoError(t, err)
	assert.Equal(t, 1, seen)
}

func TestStore_RecordQueuedBeforeEvent(t *testing.T) {
	s := newTestStore(t)
	var queued int
	s.Bus().Subscribe(EventHotspotCreated, func(e Event) {
		queued = len(s.Pending(e.SlideID))
	})

	_, err := s.CreateHotspot(model.HotspotPatch{})
	require.NoError(t, err)
	assert.Equal(t, 1, queued)
}

func TestStore_Slides(t *testing.T) {
	s := newTestStore(t)
	_, err := s.AddSlide(model.SlidePatch{Title: model.Ptr("Two")})
	require.NoError(t, err)
	_, err = s.AddSlide(model.SlidePatch{Title: model.Ptr("Three")})
	require.NoError(t, err)

	require.NoError(t, s.ReorderSlide("slide_3", 2, 0))
	slides := s.Slides()
	require.Len(t, slides, 3)
	assert.Equal(t, "slide_3", slides[0].ID)
	assert.Equal(t, 0, slides[0].Order)
	assert.Equal(t, 2, slides[2].Order)

	// slide_3 sits at index 0 now
	err = s.ReorderSlide("slide_2", 0, 1)
	assert.True(t, model.IsValidation(err))
	assert.Equal(t, "slide_3", s.Slides()[0].ID)

	updated, err := s.UpdateSlide("slide_2", model.SlidePatch{Duration: model.Ptr(5.0)})
	require.NoError(t, err)
	assert.Equal(t, 5.0, updated.Duration)

	_, err = s.UpdateSlide("slide_2", model.SlidePatch{
		Background: &model.Background{URL: "ftp://nope", Kind: model.MediaImage},
	})
	assert.True(t, model.IsValidation(err))

	for _, r := range s.Pending("proj_1") {
		assert.Equal(t, model.KindSlide, r.Kind)
	}
}

func TestStore_DeleteSlide(t *testing.T) {
	s := newTestStore(t)
	h, err := s.CreateHotspot(model.HotspotPatch{})
	require.NoError(t, err)
	s.SelectHotspot(h.ID)
	_, err = s.AddSlide(model.SlidePatch{})
	require.NoError(t, err)
	events := recordEvents(s)

	require.NoError(t, s.DeleteSlide("slide_1"))

	assert.Empty(t, s.ActiveSlide())
	assert.Empty(t, s.Selected())
	assert.Empty(t, s.Hotspots("slide_1"))
	assert.Empty(t, s.Pending("slide_1"), "hotspot records of the slide are discarded")

	slides := s.Slides()
	require.Len(t, slides, 1)
	assert.Equal(t, 0, slides[0].Order)

	require.Len(t, *events, 2)
	assert.Equal(t, EventSlideChanged, (*events)[0].Type)
	deleted := (*events)[1].Payload.(SlideDeletedPayload)
	assert.Equal(t, "slide_1", deleted.Slide.ID)
	assert.Equal(t, 1, deleted.Hotspots)

	_, err = s.Hotspot(h.ID)
	assert.True(t, model.IsNotFound(err))
	assert.True(t, model.IsNotFound(s.DeleteSlide("slide_1")))
}

func TestStore_DeleteInactiveSlideClearsItsSelection(t *testing.T) {
	s := newTestStore(t)
	h, err := s.CreateHotspot(model.HotspotPatch{})
	require.NoError(t, err)
	other, err := s.AddSlide(model.SlidePatch{})
	require.NoError(t, err)
	require.NoError(t, s.SetActiveSlide(other.ID))
	s.SelectHotspot(h.ID)
	require.Equal(t, h.ID, s.Selected())
	events := recordEvents(s)

	require.NoError(t, s.DeleteSlide("slide_1"))

	assert.Equal(t, other.ID, s.ActiveSlide())
	assert.Empty(t, s.Selected())
	require.Len(t, *events, 2)
	assert.Equal(t, EventHotspotSelectionChanged, (*events)[0].Type)
	assert.Equal(t, h.ID, (*events)[0].Payload.(HotspotSelectionChangedPayload).Previous)
	assert.Equal(t, EventSlideDeleted, (*events)[1].Type)
}

type fakeLoader struct {
	slides   []model.Slide
	hotspots map[string][]model.Hotspot
	err      error
}

func (l fakeLoader) Slides(context.Context, string) ([]model.Slide, error) {
	return l.slides, l.err
}

func (l fakeLoader) ProjectHotspots(context.Context, string) (map[string][]model.Hotspot, error) {
	return l.hotspots, nil
}

func TestStore_Load(t *testing.T) {
	h1 := model.DefaultHotspot(0)
	h1.ID, h1.SlideID, h1.Order = "hs_a", "slide_a", 0
	h2 := model.DefaultHotspot(1)
	h2.ID, h2.SlideID, h2.Order = "hs_b", "slide_a", 4
	loader := fakeLoader{
		slides: []model.Slide{
			{ID: "slide_a", ProjectID: "proj_1", Order: 0},
			{ID: "slide_b", ProjectID: "proj_1", Order: 2},
		},
		hotspots: map[string][]model.Hotspot{"slide_a": {h1, h2}},
	}

	s := New("proj_1", WithClock(testutil.NewVirtualClock()))
	events := recordEvents(s)
	require.NoError(t, s.Load(context.Background(), loader))

	assert.Equal(t, 1, s.Slides()[1].Order)
	assert.Equal(t, []int{0, 1}, orders(s.Hotspots("slide_a")))
	assert.Empty(t, s.Hotspots("slide_b"))
	assert.Zero(t, s.Queue().Len())
	assert.Empty(t, *events)

	require.NoError(t, s.SetActiveSlide("slide_b"))
	_, err := s.CreateHotspot(model.HotspotPatch{ID: model.Ptr("hs_a")})
	assert.True(t, model.IsValidation(err))

	loadErr := errors.New("row store down")
	assert.ErrorIs(t, New("proj_1").Load(context.Background(), fakeLoader{err: loadErr}), loadErr)
}

func TestStore_OrderDensityUnderRandomEdits(t *testing.T) {
	s := newTestStore(t)
	rng := rand.New(rand.NewPCG(7, 11))

	for step := range 500 {
		list := s.Hotspots("slide_1")
		switch op := rng.IntN(3); {
		case op == 0 || len(list) == 0:
			_, err := s.CreateHotspot(model.HotspotPatch{})
			if err != nil {
				require.True(t, model.IsCapacityExceeded(err), "step %d: %v", step, err)
			}
		case op == 1:
			require.NoError(t, s.DeleteHotspot(list[rng.IntN(len(list))].ID))
		default:
			from, to := rng.IntN(len(list)), rng.IntN(len(list))
			require.NoError(t, s.ReorderHotspot(list[from].ID, from, to))
		}

		list = s.Hotspots("slide_1")
		for i, h := range list {
			require.Equal(t, i, h.Order, "step %d", step)
		}
	}
}
