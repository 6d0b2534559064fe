// Package session wires one project's editing stack: the persisted project,
// an editor.Store hydrated from the row store, and the Syncer writing its
// changes back.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/roach88/hotspot/internal/clock"
	"github.com/roach88/hotspot/internal/editor"
	"github.com/roach88/hotspot/internal/model"
	"github.com/roach88/hotspot/internal/persist"
	"github.com/roach88/hotspot/internal/syncer"
)

// Options tune the editor and syncer of a session. Zero values select the
// package defaults.
type Options struct {
	MaxHotspots   int
	PositionDelay time.Duration
	EditDelay     time.Duration
	Clock         clock.Clock
	Logger        *slog.Logger
	IDs           model.IDGenerator
	Tokens        syncer.TokenGenerator
}

// Session is an open editing session of one project.
type Session struct {
	Project model.Project
	Store   *editor.Store
	Syncer  *syncer.Syncer

	cancel context.CancelFunc
}

// Open loads project projectID under ctx and starts syncing it. Flushes run
// under a context detached from ctx's cancellation, so a session opened by a
// request keeps writing after the request returns. Close ends it.
func Open(ctx context.Context, adapter *persist.Adapter, projectID string, opts Options) (*Session, error) {
	if adapter == nil {
		return nil, model.NewNotInitializedError("persistence adapter")
	}
	project, err := adapter.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("project_id", project.ID)

	storeOpts := []editor.Option{editor.WithLogger(logger), editor.WithMaxHotspots(opts.MaxHotspots)}
	syncOpts := []syncer.Option{
		syncer.WithLogger(logger),
		syncer.WithPositionDelay(opts.PositionDelay),
		syncer.WithEditDelay(opts.EditDelay),
	}
	if opts.Clock != nil {
		storeOpts = append(storeOpts, editor.WithClock(opts.Clock))
		syncOpts = append(syncOpts, syncer.WithClock(opts.Clock))
	}
	if opts.IDs != nil {
		storeOpts = append(storeOpts, editor.WithIDGenerator(opts.IDs))
	}
	if opts.Tokens != nil {
		syncOpts = append(syncOpts, syncer.WithTokenGenerator(opts.Tokens))
	}

	store := editor.New(project.ID, storeOpts...)
	if err := store.Load(ctx, adapter); err != nil {
		return nil, fmt.Errorf("load project %s: %w", project.ID, err)
	}
	sy := syncer.New(store, adapter, syncOpts...)
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	if err := sy.Start(runCtx); err != nil {
		cancel()
		return nil, err
	}
	return &Session{Project: project, Store: store, Syncer: sy, cancel: cancel}, nil
}

// Close writes every pending change and stops the syncer. The syncer is
// stopped even when the final save fails.
func (s *Session) Close(ctx context.Context) error {
	defer s.stop()
	return s.Syncer.Save(ctx)
}

func (s *Session) stop() {
	s.Syncer.Stop()
	if s.cancel != nil {
		s.cancel()
	}
}

// Manager keeps at most one open session per project.
//
// Thread-safety: Manager is safe for concurrent use.
type Manager struct {
	adapter *persist.Adapter
	opts    Options

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewManager creates a manager opening sessions over adapter.
func NewManager(adapter *persist.Adapter, opts Options) *Manager {
	return &Manager{adapter: adapter, opts: opts, sessions: make(map[string]*Session)}
}

// Adapter returns the persistence adapter sessions are opened over.
func (m *Manager) Adapter() *persist.Adapter { return m.adapter }

// Get returns the session of projectID, opening it on first use.
func (m *Manager) Get(ctx context.Context, projectID string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[projectID]; ok {
		return s, nil
	}
	s, err := Open(ctx, m.adapter, projectID, m.opts)
	if err != nil {
		return nil, err
	}
	m.sessions[projectID] = s
	return s, nil
}

// Close saves and closes the session of projectID, if open.
func (m *Manager) Close(ctx context.Context, projectID string) error {
	m.mu.Lock()
	s, ok := m.sessions[projectID]
	delete(m.sessions, projectID)
	m.mu.Unlock()
	if !ok {
		return nil
	}
	return s.Close(ctx)
}

// Forget drops the session of projectID without saving. Used after the
// project itself was deleted.
func (m *Manager) Forget(projectID string) {
	m.mu.Lock()
	s, ok := m.sessions[projectID]
	delete(m.sessions, projectID)
	m.mu.Unlock()
	if ok {
		s.stop()
	}
}

// CloseAll closes every open session and returns the first error.
func (m *Manager) CloseAll(ctx context.Context) error {
	m.mu.Lock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	m.mu.Unlock()
	sort.Strings(ids)

	var first error
	for _, id := range ids {
		if err := m.Close(ctx, id); err != nil && first == nil {
			first = err
		}
	}
	return first
}
