// Package syncer decides when pending editor changes are written to the
// row store.
//
// Three triggers feed one flush pipeline:
//
//   - Immediate: leaving a slide flushes that slide's pending changes.
//   - Position debounce (500ms, keyed by hotspot): a drag produces one
//     single-row write carrying the last position.
//   - Coalesced debounce (1000ms, keyed by slide or project): any other edit
//     resends the full current list of the scope.
//
// Save flushes every dirty scope synchronously. Only one flush runs at a
// time per Syncer; requests arriving meanwhile are drained afterwards.
//
// A failed flush leaves its records queued. They are written by the next
// flush of the same scope, whatever triggers it.
package syncer

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/roach88/hotspot/internal/clock"
	"github.com/roach88/hotspot/internal/editor"
	"github.com/roach88/hotspot/internal/model"
	"github.com/roach88/hotspot/internal/persist"
)

// Default debounce windows.
const (
	DefaultPositionDelay = 500 * time.Millisecond
	DefaultEditDelay     = 1000 * time.Millisecond
)

// Persister writes entity lists to the row store. *persist.Adapter
// implements it.
type Persister interface {
	SaveHotspots(ctx context.Context, projectID string, list []model.Hotspot) (persist.SaveStats, error)
	SyncSlideHotspots(ctx context.Context, projectID, slideID string, list []model.Hotspot) (persist.SaveStats, error)
	SyncProjectSlides(ctx context.Context, projectID string, slides []model.Slide) (persist.SaveStats, error)
}

type keyKind int

const (
	keyScope keyKind = iota
	keyPosition
	keyImmediate
)

// flushKey names one debounce slot: a scope (slide or project id) or a
// hotspot whose position is being dragged.
type flushKey struct {
	kind keyKind
	id   string
}

func (k flushKey) String() string {
	switch k.kind {
	case keyPosition:
		return "position:" + k.id
	case keyImmediate:
		return "immediate:" + k.id
	default:
		return "scope:" + k.id
	}
}

// Stats counts flush outcomes since the Syncer was created.
type Stats struct {
	Flushes  int `json:"flushes"`
	Failures int `json:"failures"`
	Writes   int `json:"writes"`
}

// Syncer binds one editor.Store to a Persister.
//
// Thread-safety: all methods are safe for concurrent use. Save must not be
// called from an event handler, since handlers may run inside a flush.
type Syncer struct {
	store     *editor.Store
	persister Persister
	clock     clock.Clock
	tokens    TokenGenerator
	logger    *slog.Logger

	positionDelay time.Duration
	editDelay     time.Duration

	mu      sync.Mutex
	idle    *sync.Cond
	ctx     context.Context
	subs    []editor.Subscription
	timers  map[flushKey]clock.Timer
	gens    map[flushKey]uint64
	queued  []flushKey
	waiting map[flushKey]bool
	running bool
	started bool
	stats   Stats
}

// Option configures a Syncer.
type Option func(*Syncer)

// WithClock sets the timer source. Default: clock.Real.
func WithClock(c clock.Clock) Option {
	return func(s *Syncer) { s.clock = c }
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Syncer) { s.logger = l }
}

// WithTokenGenerator sets the flush token source. Default: UUIDv7Generator.
func WithTokenGenerator(g TokenGenerator) Option {
	return func(s *Syncer) { s.tokens = g }
}

// WithPositionDelay sets the drag debounce window.
func WithPositionDelay(d time.Duration) Option {
	return func(s *Syncer) {
		if d > 0 {
			s.positionDelay = d
		}
	}
}

// WithEditDelay sets the coalescing window for all other edits.
func WithEditDelay(d time.Duration) Option {
	return func(s *Syncer) {
		if d > 0 {
			s.editDelay = d
		}
	}
}

// New creates a Syncer for store. It does nothing until Start.
func New(store *editor.Store, p Persister, opts ...Option) *Syncer {
	s := &Syncer{
		store:         store,
		persister:     p,
		clock:         clock.Real{},
		tokens:        UUIDv7Generator{},
		logger:        slog.Default(),
		positionDelay: DefaultPositionDelay,
		editDelay:     DefaultEditDelay,
		timers:        make(map[flushKey]clock.Timer),
		gens:          make(map[flushKey]uint64),
		waiting:       make(map[flushKey]bool),
	}
	s.idle = sync.NewCond(&s.mu)
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Syncer) ready() error {
	switch {
	case s == nil || s.store == nil:
		return model.NewNotInitializedError("syncer store")
	case s.persister == nil:
		return model.NewNotInitializedError("syncer persistence adapter")
	}
	return nil
}

// Start subscribes to the store's events. Timer-driven flushes run under
// ctx; cancelling it makes them fail (and keeps their records queued).
func (s *Syncer) Start(ctx context.Context) error {
	if err := s.ready(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return nil
	}
	s.started = true
	s.ctx = ctx

	bus := s.store.Bus()
	s.subs = []editor.Subscription{
		bus.Subscribe(editor.EventSlideChanged, s.onSlideChanged),
		bus.Subscribe(editor.EventHotspotPositionChanged, s.onPositionChanged),
	}
	for _, t := range []editor.EventType{
		editor.EventHotspotCreated,
		editor.EventHotspotUpdated,
		editor.EventHotspotDeleted,
		editor.EventHotspotsReordered,
	} {
		s.subs = append(s.subs, bus.Subscribe(t, s.onHotspotEdit))
	}
	for _, t := range []editor.EventType{
		editor.EventSlideAdded,
		editor.EventSlideUpdated,
		editor.EventSlideDeleted,
		editor.EventSlidesReordered,
	} {
		s.subs = append(s.subs, bus.Subscribe(t, s.onSlideEdit))
	}

	s.logger.Debug("syncer started", "project_id", s.store.ProjectID())
	return nil
}

// Stop unsubscribes and cancels pending timers. Queued records stay in the
// store's change queue; call Save first to write them.
func (s *Syncer) Stop() {
	if s.ready() != nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return
	}
	s.started = false
	for _, sub := range s.subs {
		s.store.Bus().Unsubscribe(sub)
	}
	s.subs = nil
	for k, t := range s.timers {
		t.Stop()
		delete(s.timers, k)
	}
	s.queued, s.waiting = nil, make(map[flushKey]bool)
}

// Stats returns the flush counters.
func (s *Syncer) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

func (s *Syncer) onSlideChanged(e editor.Event) {
	p, ok := e.Payload.(editor.SlideChangedPayload)
	if !ok || p.Previous == "" {
		return
	}
	// separate slot: the outgoing slide's coalesced timer keeps running
	s.schedule(flushKey{kind: keyImmediate, id: p.Previous}, 0)
}

func (s *Syncer) onPositionChanged(e editor.Event) {
	p, ok := e.Payload.(editor.HotspotPositionChangedPayload)
	if !ok {
		return
	}
	s.schedule(flushKey{kind: keyPosition, id: p.HotspotID}, s.positionDelay)
}

func (s *Syncer) onHotspotEdit(e editor.Event) {
	if e.SlideID == "" {
		return
	}
	s.schedule(flushKey{kind: keyScope, id: e.SlideID}, s.editDelay)
}

func (s *Syncer) onSlideEdit(editor.Event) {
	s.schedule(flushKey{kind: keyScope, id: s.store.ProjectID()}, s.editDelay)
}

// schedule (re)arms the timer of key. Rearming restarts the window, so a
// burst of events yields one flush after the last of them.
func (s *Syncer) schedule(key flushKey, d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return
	}
	if t, ok := s.timers[key]; ok {
		t.Stop()
	}
	s.gens[key]++
	gen := s.gens[key]
	s.timers[key] = s.clock.AfterFunc(d, func() { s.fire(key, gen) })
}

func (s *Syncer) fire(key flushKey, gen uint64) {
	s.mu.Lock()
	if !s.started || s.gens[key] != gen {
		s.mu.Unlock()
		return
	}
	delete(s.timers, key)
	ctx := s.ctx
	s.logger.Debug("flush due", "key", key.String())
	s.enqueueLocked(key)
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.mu.Unlock()

	s.drain(ctx, nil)
}

func (s *Syncer) enqueueLocked(key flushKey) {
	if s.waiting[key] {
		return
	}
	s.waiting[key] = true
	s.queued = append(s.queued, key)
}

// drain runs every queued flush, then releases the running flag. The
// caller must have set it. It returns the first error seen.
func (s *Syncer) drain(ctx context.Context, first error) error {
	for {
		s.mu.Lock()
		if len(s.queued) == 0 {
			s.running = false
			s.idle.Broadcast()
			s.mu.Unlock()
			return first
		}
		key := s.queued[0]
		s.queued = s.queued[1:]
		delete(s.waiting, key)
		s.mu.Unlock()

		if err := s.flush(ctx, key); err != nil && first == nil {
			first = err
		}
	}
}

// Save synchronously flushes every scope with pending records and returns
// the first persistence failure. Records of failed scopes stay queued.
func (s *Syncer) Save(ctx context.Context) error {
	if err := s.ready(); err != nil {
		return err
	}

	s.mu.Lock()
	for s.running {
		s.idle.Wait()
	}
	s.running = true
	s.mu.Unlock()

	var first error
	for _, scope := range s.store.Dirty() {
		if err := s.flush(ctx, flushKey{kind: keyScope, id: scope}); err != nil && first == nil {
			first = err
		}
	}
	return s.drain(ctx, first)
}

// flush writes the pending records of key and acknowledges them.
func (s *Syncer) flush(ctx context.Context, key flushKey) error {
	switch key.kind {
	case keyPosition:
		return s.flushPosition(ctx, key.id)
	default:
		return s.flushScope(ctx, key.id)
	}
}

// flushPosition writes the single current row of a dragged hotspot.
// A hotspot deleted meanwhile is left to its slide's flush.
func (s *Syncer) flushPosition(ctx context.Context, hotspotID string) error {
	h, err := s.store.Hotspot(hotspotID)
	if err != nil {
		return nil
	}
	var ids []string
	for _, r := range s.store.Pending(h.SlideID) {
		if r.Action == model.ActionPosition && r.EntityID() == hotspotID {
			ids = append(ids, r.ID)
		}
	}
	if len(ids) == 0 {
		return nil
	}
	return s.run(ctx, h.SlideID, ids, func(ctx context.Context) (persist.SaveStats, error) {
		return s.persister.SaveHotspots(ctx, s.store.ProjectID(), []model.Hotspot{h})
	})
}

// flushScope resends the full current list of a slide (hotspots) or of the
// project (slides). The pending records are read before the list, so every
// acknowledged record is reflected in what was written.
func (s *Syncer) flushScope(ctx context.Context, scope string) error {
	pending := s.store.Pending(scope)
	if len(pending) == 0 {
		return nil
	}
	ids := make([]string, len(pending))
	for i, r := range pending {
		ids[i] = r.ID
	}

	projectID := s.store.ProjectID()
	if scope == projectID {
		slides := s.store.Slides()
		return s.run(ctx, scope, ids, func(ctx context.Context) (persist.SaveStats, error) {
			return s.persister.SyncProjectSlides(ctx, projectID, slides)
		})
	}
	list := s.store.Hotspots(scope)
	return s.run(ctx, scope, ids, func(ctx context.Context) (persist.SaveStats, error) {
		return s.persister.SyncSlideHotspots(ctx, projectID, scope, list)
	})
}

// run performs one write under a fresh flush token, acknowledges ids on
// success and reports the sync state on the store's bus.
func (s *Syncer) run(ctx context.Context, scope string, ids []string, write func(context.Context) (persist.SaveStats, error)) error {
	token := s.tokens.Generate()
	log := s.logger.With("flush_token", token, "scope", scope)
	s.publish(scope, editor.SyncSaving, token, nil)

	start := s.clock.Now()
	stats, err := write(ctx)
	if err != nil {
		s.mu.Lock()
		s.stats.Failures++
		s.mu.Unlock()
		if !model.IsPersistence(err) {
			err = model.NewPersistenceError("flush "+scope, err)
		}
		log.Error("flush failed", "records", len(ids), "error", err)
		s.publish(scope, editor.SyncFailed, token, err)
		return err
	}

	acked := s.store.Queue().Ack(ids)
	s.mu.Lock()
	s.stats.Flushes++
	s.stats.Writes += stats.Writes()
	s.mu.Unlock()

	log.Debug("flush complete",
		"records", acked,
		"inserted", stats.Inserted,
		"updated", stats.Updated,
		"unchanged", stats.Unchanged,
		"deleted", stats.Deleted,
		"elapsed", s.clock.Now().Sub(start),
	)
	s.publish(scope, editor.SyncSaved, token, nil)
	return nil
}

func (s *Syncer) publish(scope string, state editor.SyncState, token string, err error) {
	p := editor.SyncStateChangedPayload{
		Scope:   scope,
		State:   state,
		Pending: s.store.Queue().Len(),
		Token:   token,
	}
	if err != nil {
		p.Error = err.Error()
	}
	e := editor.Event{
		Type:      editor.EventSyncStateChanged,
		ProjectID: s.store.ProjectID(),
		Time:      s.clock.Now().UTC(),
		Payload:   p,
	}
	if scope != s.store.ProjectID() {
		e.SlideID = scope
	}
	s.store.Bus().Publish(e)
}
