package harness

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/hotspot/internal/editor"
	"github.com/roach88/hotspot/internal/model"
)

// traceEvent renders e as a compact, timestamp-free trace entry.
func traceEvent(e editor.Event) EventTrace {
	t := EventTrace{Type: string(e.Type), SlideID: e.SlideID}
	switch p := e.Payload.(type) {
	case editor.SlideChangedPayload:
		t.Detail = fmt.Sprintf("previous=%s current=%s", orDash(p.Previous), orDash(p.Current))
		if p.ClearedSelection != "" {
			t.Detail += " cleared=" + p.ClearedSelection
		}
	case editor.HotspotCreatedPayload:
		t.Detail = fmt.Sprintf("hotspot=%s order=%d", p.Hotspot.ID, p.Hotspot.Order)
	case editor.HotspotUpdatedPayload:
		t.Detail = "hotspot=" + p.After.ID
	case editor.HotspotPositionChangedPayload:
		t.Detail = fmt.Sprintf("hotspot=%s x=%g y=%g", p.HotspotID, p.After.X, p.After.Y)
	case editor.HotspotDeletedPayload:
		t.Detail = "hotspot=" + p.Hotspot.ID
		if p.WasSelected {
			t.Detail += " selected"
		}
	case editor.HotspotSelectionChangedPayload:
		t.Detail = fmt.Sprintf("previous=%s current=%s", orDash(p.Previous), orDash(p.Current))
	case editor.HotspotsReorderedPayload:
		ids := make([]string, len(p.Hotspots))
		for i, h := range p.Hotspots {
			ids[i] = h.ID
		}
		t.Detail = fmt.Sprintf("hotspot=%s from=%d to=%d order=%s", p.HotspotID, p.From, p.To, strings.Join(ids, ","))
	case editor.SlideAddedPayload:
		t.Detail = fmt.Sprintf("order=%d", p.Slide.Order)
	case editor.SlideUpdatedPayload:
		t.Detail = fmt.Sprintf("title=%q", p.After.Title)
	case editor.SlideDeletedPayload:
		t.Detail = fmt.Sprintf("hotspots=%d", p.Hotspots)
	case editor.SlidesReorderedPayload:
		ids := make([]string, len(p.Slides))
		for i, sl := range p.Slides {
			ids[i] = sl.ID
		}
		t.Detail = fmt.Sprintf("from=%d to=%d order=%s", p.From, p.To, strings.Join(ids, ","))
	case editor.SyncStateChangedPayload:
		t.Detail = fmt.Sprintf("scope=%s state=%s pending=%d token=%s", p.Scope, p.State, p.Pending, p.Token)
	}
	return t
}

// String renders the event as one trace line.
func (e EventTrace) String() string {
	var b strings.Builder
	b.WriteString(e.Type)
	if e.SlideID != "" {
		b.WriteString(" slide=")
		b.WriteString(e.SlideID)
	}
	if e.Detail != "" {
		b.WriteByte(' ')
		b.WriteString(e.Detail)
	}
	return b.String()
}

// String renders the step as one trace line.
func (s StepTrace) String() string {
	line := fmt.Sprintf("%d %s", s.Index, s.Do)
	if s.ID != "" {
		line += " " + s.ID
	}
	return line + " -> " + s.Outcome
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// flattenHotspots orders stored hotspots by slide id, then by order.
// Rows of slides that no longer exist are kept, so a missed cascade shows.
func flattenHotspots(bySlide map[string][]model.Hotspot) []model.Hotspot {
	out := []model.Hotspot{}
	for _, list := range bySlide {
		out = append(out, list...)
	}
	slices.SortStableFunc(out, func(x, y model.Hotspot) int {
		if c := cmp.Compare(x.SlideID, y.SlideID); c != 0 {
			return c
		}
		return cmp.Compare(x.Order, y.Order)
	})
	return out
}

// checkInvariants returns every violated store invariant:
// dense slide and hotspot orders, the per-slide limit, and an active slide
// and selection that refer to existing entities.
func checkInvariants(s *editor.Store) []string {
	var out []string
	slides := s.Slides()
	for i, sl := range slides {
		if sl.Order != i {
			out = append(out, fmt.Sprintf("slide %s has order %d at index %d", sl.ID, sl.Order, i))
		}
		list := s.Hotspots(sl.ID)
		if len(list) > s.MaxHotspots() {
			out = append(out, fmt.Sprintf("slide %s holds %d hotspots, limit %d", sl.ID, len(list), s.MaxHotspots()))
		}
		for j, h := range list {
			if h.Order != j {
				out = append(out, fmt.Sprintf("hotspot %s has order %d at index %d", h.ID, h.Order, j))
			}
		}
	}
	if active := s.ActiveSlide(); active != "" {
		if _, err := s.Slide(active); err != nil {
			out = append(out, "active slide "+active+" does not exist")
		}
	}
	if sel := s.Selected(); sel != "" {
		if _, err := s.Hotspot(sel); err != nil {
			out = append(out, "selected hotspot "+sel+" does not exist")
		}
	}
	return out
}
