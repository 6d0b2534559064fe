package harness

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/roach88/hotspot/internal/editor"
	"github.com/roach88/hotspot/internal/model"
	"github.com/roach88/hotspot/internal/persist"
	"github.com/roach88/hotspot/internal/rowstore"
	"github.com/roach88/hotspot/internal/session"
	"github.com/roach88/hotspot/internal/testutil"
)

// ErrInjected is the error returned by row-store calls failed through a
// fail_next step.
var ErrInjected = errors.New("injected row-store failure")

// Harness is the scenario execution engine.
// It runs one scenario with a virtual clock, sequential ids and a fixed
// flush token, against an in-memory row store.
type Harness struct {
	adapter *persist.Adapter
	client  *testutil.RecordingClient
	clock   *testutil.VirtualClock
	opts    session.Options
	project model.Project
	session *session.Session
	sub     editor.Subscription
	logger  *slog.Logger
	result  *Result
}

// Option configures a scenario run.
type Option func(*Harness)

// WithLogger routes session and harness logs to l. Default: discarded.
func WithLogger(l *slog.Logger) Option {
	return func(h *Harness) { h.logger = l }
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory row store for isolation.
//
// Execution flow:
// 1. Create the project and open an editing session on it
// 2. Execute steps in order, checking store invariants after each
// 3. Capture the final state and the stored rows
// 4. Evaluate assertions
//
// The returned error reports a broken harness (project creation, final
// capture), not a failed expectation; those land in Result.Errors.
func Run(scenario *Scenario, opts ...Option) (*Result, error) {
	return RunContext(context.Background(), scenario, opts...)
}

// RunContext is Run under ctx.
func RunContext(ctx context.Context, scenario *Scenario, opts ...Option) (*Result, error) {
	client := testutil.NewRecordingClient(rowstore.NewMemory())
	clk := testutil.NewVirtualClock()

	h := &Harness{
		client: client,
		clock:  clk,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		result: NewResult(),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.result.Name = scenario.Name

	h.adapter = persist.New(client,
		persist.WithNow(clk.Now),
		persist.WithIDGenerator(model.NewSequenceIDs()),
		persist.WithLogger(h.logger),
	)
	h.opts = session.Options{
		MaxHotspots: scenario.MaxHotspots,
		Clock:       clk,
		Logger:      h.logger,
		IDs:         model.NewSequenceIDs(),
		Tokens:      testutil.NewFixedTokenGenerator(scenario.FlushToken),
	}

	title := scenario.Project
	if title == "" {
		title = scenario.Name
	}
	project, err := h.adapter.CreateProject(ctx, model.Project{Title: title})
	if err != nil {
		return nil, fmt.Errorf("failed to create project: %w", err)
	}
	h.project = project

	if err := h.open(ctx); err != nil {
		return nil, fmt.Errorf("failed to open session: %w", err)
	}
	defer h.close()

	// only writes caused by the steps are counted
	client.Reset()

	for i, step := range scenario.Steps {
		h.executeStep(ctx, i, step)
	}

	state, err := h.capture(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to capture final state: %w", err)
	}
	h.result.State = state

	for _, msg := range EvaluateAssertions(h.result, scenario.Assertions) {
		h.result.AddError(msg)
	}
	return h.result, nil
}

// open starts a session and records its events.
func (h *Harness) open(ctx context.Context) error {
	s, err := session.Open(ctx, h.adapter, h.project.ID, h.opts)
	if err != nil {
		return err
	}
	h.session = s
	h.sub = s.Store.Bus().SubscribeAll(func(e editor.Event) {
		h.result.Events = append(h.result.Events, traceEvent(e))
	})
	return nil
}

// close stops the session without saving.
func (h *Harness) close() {
	if h.session == nil {
		return
	}
	h.session.Store.Bus().Unsubscribe(h.sub)
	h.session.Syncer.Stop()
	h.session = nil
}

// executeStep runs one step and checks its expectation.
func (h *Harness) executeStep(ctx context.Context, i int, step Step) {
	trace := StepTrace{Index: i + 1, Do: step.Do, ID: step.ID}
	outcome, err := h.apply(ctx, step)

	switch {
	case err != nil:
		code := string(model.CodeOf(err))
		if code == "" {
			code = "ERROR"
		}
		trace.Outcome = "error " + code
		switch {
		case step.Expect == nil:
			h.result.AddError(fmt.Sprintf("step %d (%s): unexpected error: %v", i+1, step.Do, err))
		case step.Expect.Error != code:
			h.result.AddError(fmt.Sprintf("step %d (%s): expected error %s, got %v", i+1, step.Do, step.Expect.Error, err))
		}
	default:
		trace.Outcome = outcome
		if step.Expect != nil {
			h.result.AddError(fmt.Sprintf("step %d (%s): expected error %s, got success", i+1, step.Do, step.Expect.Error))
		}
	}
	h.result.Steps = append(h.result.Steps, trace)

	if h.session != nil {
		for _, msg := range checkInvariants(h.session.Store) {
			h.result.AddError(fmt.Sprintf("step %d (%s): invariant violated: %s", i+1, step.Do, msg))
		}
	}

	h.logger.Info("step completed",
		"step", i+1,
		"do", step.Do,
		"id", step.ID,
		"outcome", trace.Outcome,
	)
}

type reorderArgs struct {
	From int `json:"from"`
	To   int `json:"to"`
}

type advanceArgs struct {
	MS int `json:"ms"`
}

type failArgs struct {
	Op    string `json:"op"`
	Times int    `json:"times"`
}

// apply performs step and returns its outcome text.
func (h *Harness) apply(ctx context.Context, step Step) (string, error) {
	if h.session == nil {
		return "", model.NewNotInitializedError("editing session")
	}
	store := h.session.Store

	switch step.Do {
	case OpAddSlide:
		var p model.SlidePatch
		if err := decodeArgs(step.Args, &p); err != nil {
			return "", err
		}
		sl, err := store.AddSlide(p)
		return sl.ID, err

	case OpUpdateSlide:
		var p model.SlidePatch
		if err := decodeArgs(step.Args, &p); err != nil {
			return "", err
		}
		_, err := store.UpdateSlide(step.ID, p)
		return "ok", err

	case OpDeleteSlide:
		return "ok", store.DeleteSlide(step.ID)

	case OpReorderSlide:
		var a reorderArgs
		if err := decodeArgs(step.Args, &a); err != nil {
			return "", err
		}
		return "ok", store.ReorderSlide(step.ID, a.From, a.To)

	case OpSetActiveSlide:
		return "ok", store.SetActiveSlide(step.ID)

	case OpCreateHotspot:
		var p model.HotspotPatch
		if err := decodeArgs(step.Args, &p); err != nil {
			return "", err
		}
		created, err := store.CreateHotspot(p)
		return created.ID, err

	case OpUpdateHotspot:
		var p model.HotspotPatch
		if err := decodeArgs(step.Args, &p); err != nil {
			return "", err
		}
		_, err := store.UpdateHotspot(step.ID, p)
		return "ok", err

	case OpMoveHotspot:
		var pos model.Position
		if err := decodeArgs(step.Args, &pos); err != nil {
			return "", err
		}
		moved, err := store.UpdateHotspotPosition(step.ID, pos)
		return fmt.Sprintf("x=%g y=%g", moved.Position.X, moved.Position.Y), err

	case OpDeleteHotspot:
		return "ok", store.DeleteHotspot(step.ID)

	case OpReorderHotspot:
		var a reorderArgs
		if err := decodeArgs(step.Args, &a); err != nil {
			return "", err
		}
		return "ok", store.ReorderHotspot(step.ID, a.From, a.To)

	case OpSelectHotspot:
		store.SelectHotspot(step.ID)
		return "selected=" + orDash(store.Selected()), nil

	case OpAdvance:
		var a advanceArgs
		if err := decodeArgs(step.Args, &a); err != nil {
			return "", err
		}
		if a.MS < 0 {
			return "", model.NewValidationError("", "", "ms", "cannot advance by a negative duration")
		}
		h.clock.Advance(time.Duration(a.MS) * time.Millisecond)
		return "ok", nil

	case OpSave:
		return "ok", h.session.Syncer.Save(ctx)

	case OpFailNext:
		var a failArgs
		if err := decodeArgs(step.Args, &a); err != nil {
			return "", err
		}
		if a.Op == "" {
			return "", model.NewValidationError("", "", "op", "fail_next requires op")
		}
		if a.Times <= 0 {
			a.Times = 1
		}
		h.client.FailNext(a.Op, a.Times, ErrInjected)
		return "ok", nil

	case OpReload:
		h.close()
		if err := h.open(ctx); err != nil {
			return "", err
		}
		return fmt.Sprintf("slides=%d", len(h.session.Store.Slides())), nil
	}
	return "", fmt.Errorf("unknown operation %q", step.Do)
}

// decodeArgs converts YAML-parsed args into v through their JSON encoding,
// so the field names match the entities' JSON names. Unknown fields are
// rejected.
func decodeArgs(args map[string]any, v any) error {
	if len(args) == 0 {
		return nil
	}
	data, err := json.Marshal(args)
	if err != nil {
		return model.NewValidationError("", "", "args", err.Error())
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return model.NewValidationError("", "", "args", err.Error())
	}
	return nil
}

// capture reads the final session state and every stored slide and
// hotspot. Counters are read first so the capture's own reads are not
// counted.
func (h *Harness) capture(ctx context.Context) (FinalState, error) {
	calls := make(map[string]int)
	for _, op := range []string{
		testutil.OpAppendRow,
		testutil.OpGetAllRows,
		testutil.OpUpdateRowByID,
		testutil.OpDeleteRowByID,
		testutil.OpDeleteRowsByColumnValue,
	} {
		if n := h.client.Calls(op); n > 0 {
			calls[op] = n
		}
	}
	state := FinalState{
		RowWrites: h.client.RowWrites(),
		Calls:     calls,
	}
	if h.session != nil {
		state.ActiveSlide = h.session.Store.ActiveSlide()
		state.Selected = h.session.Store.Selected()
		state.Pending = h.session.Store.Queue().Len()
	}

	slides, err := h.adapter.Slides(ctx, h.project.ID)
	if err != nil {
		return state, err
	}
	state.Slides = slides

	bySlide, err := h.adapter.ProjectHotspots(ctx, h.project.ID)
	if err != nil {
		return state, err
	}
	state.Hotspots = flattenHotspots(bySlide)
	return state, nil
}
