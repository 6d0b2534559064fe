package editor

import (
	"slices"

	"github.com/roach88/hotspot/internal/model"
)

// SetActiveSlide makes id the active slide and clears the selection.
// Activating the slide that is already active does nothing.
//
// The outgoing slide's pending records are flushed by the synchronization
// policy when it observes EventSlideChanged.
func (s *Store) SetActiveSlide(id string) error {
	var events []Event
	s.mu.Lock()
	defer s.emitAfterUnlock(&events)

	if id == "" {
		return model.NewValidationError(model.KindSlide, "", "id", "slide id is required")
	}
	if s.slideIndexLocked(id) < 0 {
		return model.NewNotFoundError(model.KindSlide, id)
	}
	if id == s.active {
		return nil
	}
	if _, ok := s.hotspots[id]; !ok {
		s.hotspots[id] = nil
	}

	prev, cleared := s.active, s.selected
	s.active = id
	s.selected = ""

	s.logger.Debug("active slide changed", "project_id", s.projectID, "from", prev, "to", id)
	events = append(events, s.event(EventSlideChanged, id, SlideChangedPayload{
		Previous:         prev,
		Current:          id,
		ClearedSelection: cleared,
	}))
	return nil
}

// CreateHotspot adds a hotspot to the active slide. Fields set in p are
// merged over the type defaults; the new hotspot goes last in order.
//
// Errors: NotInitialized without an active slide, CapacityExceeded when the
// slide is full, Validation when the merged hotspot is invalid or p.ID is
// already taken.
func (s *Store) CreateHotspot(p model.HotspotPatch) (model.Hotspot, error) {
	var events []Event
	s.mu.Lock()
	defer s.emitAfterUnlock(&events)

	slideID := s.active
	if slideID == "" {
		return model.Hotspot{}, model.NewNotInitializedError("active slide")
	}
	list := s.hotspots[slideID]
	if len(list) >= s.maxHotspots {
		return model.Hotspot{}, model.NewCapacityError(slideID, s.maxHotspots)
	}

	h := p.Apply(model.DefaultHotspot(len(list)))
	switch {
	case p.ID == nil || *p.ID == "":
		h.ID = s.ids.NewID(model.PrefixHotspot)
	case s.idInUseLocked(*p.ID):
		return model.Hotspot{}, model.NewValidationError(model.KindHotspot, *p.ID, "id", "id already in use")
	default:
		h.ID = *p.ID
	}
	h.SlideID = slideID
	h.Order = len(list)
	now := s.now()
	h.CreatedAt, h.UpdatedAt = now, now

	if err := s.validator.ValidateHotspot(h); err != nil {
		return model.Hotspot{}, err
	}

	s.hotspots[slideID] = append(list, h)
	s.queue.Append(model.ChangeRecord{
		Action:  model.ActionCreate,
		Kind:    model.KindHotspot,
		Scope:   slideID,
		Hotspot: &h,
	})
	events = append(events, s.event(EventHotspotCreated, slideID, HotspotCreatedPayload{Hotspot: h}))
	return h, nil
}

// UpdateHotspot merges p onto hotspot id. The merged result is validated as
// a whole; on error nothing changes. A patch that changes nothing is a no-op
// and publishes no event.
func (s *Store) UpdateHotspot(id string, p model.HotspotPatch) (model.Hotspot, error) {
	var events []Event
	s.mu.Lock()
	defer s.emitAfterUnlock(&events)

	slideID, i := s.findHotspotLocked(id)
	if i < 0 {
		return model.Hotspot{}, model.NewNotFoundError(model.KindHotspot, id)
	}
	if p.ID != nil && *p.ID != id {
		return model.Hotspot{}, model.NewValidationError(model.KindHotspot, id, "id", "id is immutable")
	}

	before := s.hotspots[slideID][i]
	after := p.Apply(before)
	if after == before {
		return before, nil
	}
	after.UpdatedAt = s.now()
	if err := s.validator.ValidateHotspot(after); err != nil {
		return before, err
	}

	s.hotspots[slideID][i] = after
	s.queue.Append(model.ChangeRecord{
		Action:   model.ActionUpdate,
		Kind:     model.KindHotspot,
		Scope:    slideID,
		Hotspot:  &after,
		Previous: &before,
	})
	events = append(events, s.event(EventHotspotUpdated, slideID, HotspotUpdatedPayload{Before: before, After: after}))
	return after, nil
}

// UpdateHotspotPosition moves hotspot id. It is the drag fast path: a
// finite position is clamped to [0, 100] without further validation. The
// queued record supersedes any earlier position record of the hotspot.
func (s *Store) UpdateHotspotPosition(id string, pos model.Position) (model.Hotspot, error) {
	var events []Event
	s.mu.Lock()
	defer s.emitAfterUnlock(&events)

	slideID, i := s.findHotspotLocked(id)
	if i < 0 {
		return model.Hotspot{}, model.NewNotFoundError(model.KindHotspot, id)
	}

	if !pos.Finite() {
		return model.Hotspot{}, model.NewValidationError(model.KindHotspot, id, "position", "coordinates must be finite numbers")
	}
	h := s.hotspots[slideID][i]
	before := h.Position
	pos = pos.Clamp()
	if pos == before {
		return h, nil
	}
	h.Position = pos
	h.UpdatedAt = s.now()
	s.hotspots[slideID][i] = h

	s.queue.Append(model.ChangeRecord{
		Action:  model.ActionPosition,
		Kind:    model.KindHotspot,
		Scope:   slideID,
		Hotspot: &h,
	})
	events = append(events, s.event(EventHotspotPositionChanged, slideID, HotspotPositionChangedPayload{
		HotspotID: id,
		Before:    before,
		After:     pos,
	}))
	return h, nil
}

// DeleteHotspot removes hotspot id and renumbers its siblings. The id is
// retired and never handed out again.
func (s *Store) DeleteHotspot(id string) error {
	var events []Event
	s.mu.Lock()
	defer s.emitAfterUnlock(&events)

	slideID, i := s.findHotspotLocked(id)
	if i < 0 {
		return model.NewNotFoundError(model.KindHotspot, id)
	}

	list := s.hotspots[slideID]
	gone := list[i]
	list = slices.Delete(list, i, i+1)
	renumberHotspots(list, s.now())
	s.hotspots[slideID] = list
	s.retired[id] = true

	wasSelected := s.selected == id
	if wasSelected {
		s.selected = ""
	}

	s.queue.Append(model.ChangeRecord{
		Action:  model.ActionDelete,
		Kind:    model.KindHotspot,
		Scope:   slideID,
		Hotspot: &gone,
	})
	events = append(events, s.event(EventHotspotDeleted, slideID, HotspotDeletedPayload{
		Hotspot:     gone,
		WasSelected: wasSelected,
	}))
	if wasSelected {
		events = append(events, s.event(EventHotspotSelectionChanged, slideID, HotspotSelectionChangedPayload{
			Previous: id,
		}))
	}
	return nil
}

// ReorderHotspot moves hotspot id from index from to index to within its
// slide. Out-of-range indexes and from == to are silently ignored. The
// queued record carries the full reordered list.
func (s *Store) ReorderHotspot(id string, from, to int) error {
	var events []Event
	s.mu.Lock()
	defer s.emitAfterUnlock(&events)

	slideID, i := s.findHotspotLocked(id)
	if i < 0 {
		return model.NewNotFoundError(model.KindHotspot, id)
	}
	list := s.hotspots[slideID]
	if from < 0 || from >= len(list) || to < 0 || to >= len(list) || from == to {
		return nil
	}
	if list[from].ID != id {
		return model.NewValidationError(model.KindHotspot, id, "fromIndex", "hotspot is not at the source index")
	}

	list = move(list, from, to)
	renumberHotspots(list, s.now())
	s.hotspots[slideID] = list
	snapshot := slices.Clone(list)

	s.queue.Append(model.ChangeRecord{
		Action:   model.ActionReorder,
		Kind:     model.KindHotspot,
		Scope:    slideID,
		Hotspots: snapshot,
	})
	events = append(events, s.event(EventHotspotsReordered, slideID, HotspotsReorderedPayload{
		HotspotID: id,
		From:      from,
		To:        to,
		Hotspots:  snapshot,
	}))
	return nil
}

// SelectHotspot selects hotspot id, or clears the selection for "". An
// unknown id is logged and ignored.
func (s *Store) SelectHotspot(id string) {
	var events []Event
	s.mu.Lock()
	defer s.emitAfterUnlock(&events)

	slideID := s.active
	if id != "" {
		sid, i := s.findHotspotLocked(id)
		if i < 0 {
			s.logger.Warn("select: unknown hotspot", "project_id", s.projectID, "hotspot_id", id)
			return
		}
		slideID = sid
	}
	if id == s.selected {
		return
	}

	prev := s.selected
	s.selected = id
	events = append(events, s.event(EventHotspotSelectionChanged, slideID, HotspotSelectionChangedPayload{
		Previous: prev,
		Current:  id,
	}))
}
