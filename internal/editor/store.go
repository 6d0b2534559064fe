// Package editor holds the authoritative in-memory state of one project's
// editing session: its slides, the hotspots of every slide, the active
// slide and the selection.
//
// The Store is the single point of mutation. Every accepted mutation
//  1. is validated against the entity schema (position moves excepted),
//  2. is applied to the in-memory state,
//  3. appends a ChangeRecord to the change queue,
//  4. is announced on the event bus after the store lock is released, so
//     observers may read the store from inside a handler.
//
// Order values of the hotspots on a slide, and of the slides of the
// project, always form the dense permutation 0..n-1.
package editor

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/roach88/hotspot/internal/clock"
	"github.com/roach88/hotspot/internal/model"
	"github.com/roach88/hotspot/internal/schema"
)

// DefaultMaxHotspots is the per-slide hotspot limit.
const DefaultMaxHotspots = 10

// Store is the editing state of one project.
//
// Thread-safety: all methods are safe for concurrent use. Mutations are
// serialized; the intended usage is still a single logical writer.
type Store struct {
	projectID   string
	maxHotspots int
	validator   *schema.Validator
	ids         model.IDGenerator
	clock       clock.Clock
	logger      *slog.Logger
	bus         *Bus
	queue       *ChangeQueue

	mu       sync.Mutex
	slides   []model.Slide
	hotspots map[string][]model.Hotspot // slide id → hotspots in order
	active   string
	selected string
	retired  map[string]bool // deleted ids, never reused
}

// Option configures a Store.
type Option func(*Store)

// WithMaxHotspots sets the per-slide hotspot limit. Values below 1 are
// ignored.
func WithMaxHotspots(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.maxHotspots = n
		}
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithIDGenerator sets the id generator. Default: model.TimestampIDs.
func WithIDGenerator(g model.IDGenerator) Option {
	return func(s *Store) { s.ids = g }
}

// WithClock sets the time source for entity timestamps. Default: clock.Real.
func WithClock(c clock.Clock) Option {
	return func(s *Store) { s.clock = c }
}

// WithValidator sets the schema validator. Default: schema.MustNew().
func WithValidator(v *schema.Validator) Option {
	return func(s *Store) { s.validator = v }
}

// WithBus publishes events on b instead of a private bus.
func WithBus(b *Bus) Option {
	return func(s *Store) { s.bus = b }
}

// WithSeq stamps change records from seq.
func WithSeq(seq *clock.Seq) Option {
	return func(s *Store) { s.queue = NewChangeQueue(seq) }
}

// New creates an empty store for projectID.
func New(projectID string, opts ...Option) *Store {
	s := &Store{
		projectID:   projectID,
		maxHotspots: DefaultMaxHotspots,
		ids:         model.TimestampIDs{},
		clock:       clock.Real{},
		logger:      slog.Default(),
		hotspots:    make(map[string][]model.Hotspot),
		retired:     make(map[string]bool),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.validator == nil {
		s.validator = schema.MustNew()
	}
	if s.bus == nil {
		s.bus = NewBus(s.logger)
	}
	if s.queue == nil {
		s.queue = NewChangeQueue(nil)
	}
	return s
}

// ProjectID returns the project this store edits.
func (s *Store) ProjectID() string { return s.projectID }

// Bus returns the event bus.
func (s *Store) Bus() *Bus { return s.bus }

// Queue returns the change queue.
func (s *Store) Queue() *ChangeQueue { return s.queue }

// MaxHotspots returns the per-slide hotspot limit.
func (s *Store) MaxHotspots() int { return s.maxHotspots }

// Loader reads persisted project state. *persist.Adapter implements it.
type Loader interface {
	Slides(ctx context.Context, projectID string) ([]model.Slide, error)
	ProjectHotspots(ctx context.Context, projectID string) (map[string][]model.Hotspot, error)
}

// Load replaces the in-memory state with the persisted state of the
// project. Nothing is queued and no events are published. Order values are
// renumbered in case the stored ones have gaps.
func (s *Store) Load(ctx context.Context, l Loader) error {
	slides, err := l.Slides(ctx, s.projectID)
	if err != nil {
		return err
	}
	byslide, err := l.ProjectHotspots(ctx, s.projectID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.slides = slices.Clone(slides)
	renumberSlides(s.slides, s.now())
	s.hotspots = make(map[string][]model.Hotspot, len(slides))
	for _, sl := range s.slides {
		list := slices.Clone(byslide[sl.ID])
		renumberHotspots(list, s.now())
		s.hotspots[sl.ID] = list
	}
	if s.slideIndexLocked(s.active) < 0 {
		s.active = ""
	}
	s.selected = ""

	s.logger.Debug("loaded project", "project_id", s.projectID, "slides", len(s.slides))
	return nil
}

// emitAfterUnlock releases the store lock and then publishes events in
// order. Mutations defer it right after locking.
func (s *Store) emitAfterUnlock(events *[]Event) {
	s.mu.Unlock()
	for _, e := range *events {
		s.bus.Publish(e)
	}
}

func (s *Store) event(t EventType, slideID string, payload any) Event {
	return Event{Type: t, ProjectID: s.projectID, SlideID: slideID, Time: s.now(), Payload: payload}
}

func (s *Store) now() time.Time {
	return s.clock.Now().UTC()
}

// Slides returns the slides in order.
func (s *Store) Slides() []model.Slide {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.slides)
}

// Slide returns slide id.
func (s *Store) Slide(id string) (model.Slide, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.slideIndexLocked(id)
	if i < 0 {
		return model.Slide{}, model.NewNotFoundError(model.KindSlide, id)
	}
	return s.slides[i], nil
}

// Hotspots returns the hotspots of slideID in order. An unknown slide has
// no hotspots.
func (s *Store) Hotspots(slideID string) []model.Hotspot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.hotspots[slideID])
}

// Hotspot returns hotspot id.
func (s *Store) Hotspot(id string) (model.Hotspot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	slideID, i := s.findHotspotLocked(id)
	if i < 0 {
		return model.Hotspot{}, model.NewNotFoundError(model.KindHotspot, id)
	}
	return s.hotspots[slideID][i], nil
}

// ActiveSlide returns the active slide id, or "" before SetActiveSlide.
func (s *Store) ActiveSlide() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Selected returns the selected hotspot id, or "".
func (s *Store) Selected() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selected
}

// Pending returns the queued change records of scope ("" for all).
func (s *Store) Pending(scope string) []model.ChangeRecord {
	return s.queue.Pending(scope)
}

// Dirty returns the scopes with unsaved changes.
func (s *Store) Dirty() []string {
	return s.queue.Scopes()
}

func (s *Store) slideIndexLocked(id string) int {
	if id == "" {
		return -1
	}
	return slices.IndexFunc(s.slides, func(sl model.Slide) bool { return sl.ID == id })
}

// findHotspotLocked returns the slide holding hotspot id and its index, or
// ("", -1).
func (s *Store) findHotspotLocked(id string) (string, int) {
	if id == "" {
		return "", -1
	}
	for slideID, list := range s.hotspots {
		if i := slices.IndexFunc(list, func(h model.Hotspot) bool { return h.ID == id }); i >= 0 {
			return slideID, i
		}
	}
	return "", -1
}

// idInUseLocked reports whether id names a live or deleted entity.
func (s *Store) idInUseLocked(id string) bool {
	if s.retired[id] || s.slideIndexLocked(id) >= 0 {
		return true
	}
	_, i := s.findHotspotLocked(id)
	return i >= 0
}

// renumberHotspots rewrites Order to match slice position. Hotspots whose
// order changes get a fresh UpdatedAt.
func renumberHotspots(list []model.Hotspot, now time.Time) {
	for i := range list {
		if list[i].Order != i {
			list[i].Order = i
			list[i].UpdatedAt = now
		}
	}
}

// renumberSlides rewrites Order to match slice position.
func renumberSlides(list []model.Slide, now time.Time) {
	for i := range list {
		if list[i].Order != i {
			list[i].Order = i
			list[i].UpdatedAt = now
		}
	}
}

// move relocates the element at from to index to.
func move[T any](list []T, from, to int) []T {
	item := list[from]
	list = slices.Delete(list, from, from+1)
	return slices.Insert(list, to, item)
}
