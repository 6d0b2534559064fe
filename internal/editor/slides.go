package editor

import (
	"slices"

	"github.com/roach88/hotspot/internal/model"
)

// AddSlide appends a slide to the project. Fields set in p are merged over
// the slide defaults.
func (s *Store) AddSlide(p model.SlidePatch) (model.Slide, error) {
	var events []Event
	s.mu.Lock()
	defer s.emitAfterUnlock(&events)

	sl := p.Apply(model.DefaultSlide(len(s.slides)))
	switch {
	case p.ID == nil || *p.ID == "":
		sl.ID = s.ids.NewID(model.PrefixSlide)
	case s.idInUseLocked(*p.ID):
		return model.Slide{}, model.NewValidationError(model.KindSlide, *p.ID, "id", "id already in use")
	default:
		sl.ID = *p.ID
	}
	sl.ProjectID = s.projectID
	sl.Order = len(s.slides)
	now := s.now()
	sl.CreatedAt, sl.UpdatedAt = now, now

	if err := s.validator.ValidateSlide(sl); err != nil {
		return model.Slide{}, err
	}

	s.slides = append(s.slides, sl)
	s.hotspots[sl.ID] = nil
	s.queue.Append(model.ChangeRecord{
		Action: model.ActionCreate,
		Kind:   model.KindSlide,
		Scope:  s.projectID,
		Slide:  &sl,
	})
	events = append(events, s.event(EventSlideAdded, sl.ID, SlideAddedPayload{Slide: sl}))
	return sl, nil
}

// UpdateSlide merges p onto slide id with the same atomicity as
// UpdateHotspot.
func (s *Store) UpdateSlide(id string, p model.SlidePatch) (model.Slide, error) {
	var events []Event
	s.mu.Lock()
	defer s.emitAfterUnlock(&events)

	i := s.slideIndexLocked(id)
	if i < 0 {
		return model.Slide{}, model.NewNotFoundError(model.KindSlide, id)
	}
	if p.ID != nil && *p.ID != id {
		return model.Slide{}, model.NewValidationError(model.KindSlide, id, "id", "id is immutable")
	}

	before := s.slides[i]
	after := p.Apply(before)
	if after == before {
		return before, nil
	}
	after.UpdatedAt = s.now()
	if err := s.validator.ValidateSlide(after); err != nil {
		return before, err
	}

	s.slides[i] = after
	s.queue.Append(model.ChangeRecord{
		Action: model.ActionUpdate,
		Kind:   model.KindSlide,
		Scope:  s.projectID,
		Slide:  &after,
	})
	events = append(events, s.event(EventSlideUpdated, id, SlideUpdatedPayload{Before: before, After: after}))
	return after, nil
}

// DeleteSlide removes slide id together with its hotspots and renumbers the
// remaining slides. Queued hotspot records of the slide are discarded; the
// project-scoped delete record makes the persistence layer cascade the
// stored hotspot rows. Deleting the active slide leaves no slide active.
func (s *Store) DeleteSlide(id string) error {
	var events []Event
	s.mu.Lock()
	defer s.emitAfterUnlock(&events)

	i := s.slideIndexLocked(id)
	if i < 0 {
		return model.NewNotFoundError(model.KindSlide, id)
	}

	gone := s.slides[i]
	s.slides = slices.Delete(s.slides, i, i+1)
	renumberSlides(s.slides, s.now())

	dropped := s.hotspots[id]
	for _, h := range dropped {
		s.retired[h.ID] = true
	}
	delete(s.hotspots, id)
	s.retired[id] = true
	discarded := s.queue.Discard(id)

	if s.active == id {
		cleared := s.selected
		s.active, s.selected = "", ""
		events = append(events, s.event(EventSlideChanged, "", SlideChangedPayload{
			Previous:         id,
			ClearedSelection: cleared,
		}))
	} else if sel := s.selected; sel != "" && slices.ContainsFunc(dropped, func(h model.Hotspot) bool { return h.ID == sel }) {
		s.selected = ""
		events = append(events, s.event(EventHotspotSelectionChanged, id, HotspotSelectionChangedPayload{Previous: sel}))
	}

	s.queue.Append(model.ChangeRecord{
		Action: model.ActionDelete,
		Kind:   model.KindSlide,
		Scope:  s.projectID,
		Slide:  &gone,
	})
	s.logger.Debug("slide deleted",
		"project_id", s.projectID,
		"slide_id", id,
		"hotspots", len(dropped),
		"discarded_records", discarded,
	)
	events = append(events, s.event(EventSlideDeleted, id, SlideDeletedPayload{Slide: gone, Hotspots: len(dropped)}))
	return nil
}

// ReorderSlide moves slide id from index from to index to, with the same
// bounds rules as ReorderHotspot.
func (s *Store) ReorderSlide(id string, from, to int) error {
	var events []Event
	s.mu.Lock()
	defer s.emitAfterUnlock(&events)

	if s.slideIndexLocked(id) < 0 {
		return model.NewNotFoundError(model.KindSlide, id)
	}
	n := len(s.slides)
	if from < 0 || from >= n || to < 0 || to >= n || from == to {
		return nil
	}
	if s.slides[from].ID != id {
		return model.NewValidationError(model.KindSlide, id, "fromIndex", "slide is not at the source index")
	}

	s.slides = move(s.slides, from, to)
	renumberSlides(s.slides, s.now())
	snapshot := slices.Clone(s.slides)

	s.queue.Append(model.ChangeRecord{
		Action: model.ActionReorder,
		Kind:   model.KindSlide,
		Scope:  s.projectID,
		Slides: snapshot,
	})
	events = append(events, s.event(EventSlidesReordered, id, SlidesReorderedPayload{
		SlideID: id,
		From:    from,
		To:      to,
		Slides:  snapshot,
	}))
	return nil
}
