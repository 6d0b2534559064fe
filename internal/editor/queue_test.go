package editor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/hotspot/internal/clock"
	"github.com/roach88/hotspot/internal/model"
)

func hotspotRecord(action model.Action, slideID, id string, x float64) model.ChangeRecord {
	h := model.DefaultHotspot(0)
	h.ID = id
	h.SlideID = slideID
	h.Position.X = x
	return model.ChangeRecord{Action: action, Kind: model.KindHotspot, Scope: slideID, Hotspot: &h}
}

func TestChangeQueue_StampsIDAndSeq(t *testing.T) {
	q := NewChangeQueue(clock.NewSeqAt(40))

	a := q.Append(hotspotRecord(model.ActionCreate, "slide_1", "hs_1", 10))
	b := q.Append(hotspotRecord(model.ActionUpdate, "slide_1", "hs_1", 10))

	assert.NotEmpty(t, a.ID)
	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, int64(41), a.Seq)
	assert.Equal(t, int64(42), b.Seq)
	assert.Equal(t, 2, q.Len())
}

func TestChangeQueue_PositionSupersedes(t *testing.T) {
	q := NewChangeQueue(nil)
	q.Append(hotspotRecord(model.ActionPosition, "slide_1", "hs_1", 10))
	q.Append(hotspotRecord(model.ActionPosition, "slide_1", "hs_2", 20))
	q.Append(hotspotRecord(model.ActionUpdate, "slide_1", "hs_1", 10))
	q.Append(hotspotRecord(model.ActionPosition, "slide_1", "hs_1", 30))

	pending := q.Pending("slide_1")
	require.Len(t, pending, 3)
	assert.Equal(t, "hs_2", pending[0].EntityID())
	assert.Equal(t, model.ActionUpdate, pending[1].Action)
	assert.Equal(t, model.ActionPosition, pending[2].Action)
	assert.Equal(t, 30.0, pending[2].Hotspot.Position.X)
}

func TestChangeQueue_PendingByScope(t *testing.T) {
	q := NewChangeQueue(nil)
	q.Append(hotspotRecord(model.ActionCreate, "slide_2", "hs_1", 0))
	q.Append(hotspotRecord(model.ActionCreate, "slide_1", "hs_2", 0))
	q.Append(hotspotRecord(model.ActionCreate, "slide_2", "hs_3", 0))

	assert.Len(t, q.Pending("slide_2"), 2)
	assert.Len(t, q.Pending(""), 3)
	assert.Empty(t, q.Pending("slide_9"))
	assert.Equal(t, []string{"slide_2", "slide_1"}, q.Scopes())
}

func TestChangeQueue_AckAndDiscard(t *testing.T) {
	q := NewChangeQueue(nil)
	a := q.Append(hotspotRecord(model.ActionCreate, "slide_1", "hs_1", 0))
	q.Append(hotspotRecord(model.ActionCreate, "slide_1", "hs_2", 0))
	q.Append(hotspotRecord(model.ActionCreate, "slide_2", "hs_3", 0))

	assert.Equal(t, 1, q.Ack([]string{a.ID, "unknown"}))
	assert.Zero(t, q.Ack([]string{a.ID}))
	assert.Zero(t, q.Ack(nil))

	assert.Equal(t, 1, q.Discard("slide_1"))
	assert.Equal(t, []string{"slide_2"}, q.Scopes())
	assert.Equal(t, 1, q.Len())
}
