package harness

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_CreatesAndSavesHotspot(t *testing.T) {
	scenario := &Scenario{
		Name:        "create_and_save",
		Description: "one hotspot reaches the row store",
		FlushToken:  "flush-1",
		Steps: []Step{
			{Do: OpAddSlide, Args: map[string]any{"title": "Intro"}},
			{Do: OpSetActiveSlide, ID: "slide_1"},
			{Do: OpCreateHotspot, Args: map[string]any{"name": "Start", "color": "#fff"}},
			{Do: OpSave},
		},
		Assertions: []Assertion{
			{Type: AssertRowCount, Kind: "hotspots", Count: 1},
			{Type: AssertFinalState, Kind: "hotspots", ID: "hs_1", Expect: map[string]any{
				"name":     "Start",
				"color":    "#fff",
				"order":    0,
				"position": map[string]any{"x": 50},
			}},
			{Type: AssertPending, Count: 0},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	require.True(t, result.Pass, "errors: %v", result.Errors)

	require.Len(t, result.Steps, 4)
	assert.Equal(t, "slide_1", result.Steps[0].Outcome)
	assert.Equal(t, "hs_1", result.Steps[2].Outcome)
	assert.Equal(t, "ok", result.Steps[3].Outcome)
	assert.Equal(t, "slide_1", result.State.ActiveSlide)
	assert.Equal(t, 2, result.State.Calls["AppendRow"])
}

func TestRun_UnexpectedErrorFails(t *testing.T) {
	scenario := &Scenario{
		Name:        "no_active_slide",
		Description: "create without an active slide",
		Steps:       []Step{{Do: OpCreateHotspot}},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "unexpected error")
	assert.Equal(t, "error NOT_INITIALIZED", result.Steps[0].Outcome)
}

func TestRun_WrongErrorCodeFails(t *testing.T) {
	scenario := &Scenario{
		Name:        "wrong_code",
		Description: "expects the wrong code",
		Steps: []Step{
			{Do: OpDeleteSlide, ID: "slide_404", Expect: &ExpectClause{Error: "VALIDATION"}},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "expected error VALIDATION")
	assert.Equal(t, "error NOT_FOUND", result.Steps[0].Outcome)
}

func TestRun_ExpectedErrorNotRaisedFails(t *testing.T) {
	scenario := &Scenario{
		Name:        "missing_error",
		Description: "a valid add_slide cannot fail",
		Steps: []Step{
			{Do: OpAddSlide, Expect: &ExpectClause{Error: "VALIDATION"}},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "got success")
}

func TestRun_UnknownArgumentIsValidationError(t *testing.T) {
	scenario := &Scenario{
		Name:        "typo",
		Description: "misspelled patch field",
		Steps: []Step{
			{Do: OpAddSlide, Args: map[string]any{"titel": "Intro"}, Expect: &ExpectClause{Error: "VALIDATION"}},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Empty(t, result.Events)
}

func TestRun_FailNextKeepsRecordsQueued(t *testing.T) {
	scenario := &Scenario{
		Name:        "failing_write",
		Description: "a failed save leaves the record pending",
		Steps: []Step{
			{Do: OpAddSlide},
			{Do: OpFailNext, Args: map[string]any{"op": "AppendRow"}},
			{Do: OpSave, Expect: &ExpectClause{Error: "PERSISTENCE_FAILURE"}},
		},
		Assertions: []Assertion{
			{Type: AssertPending, Count: 1},
			{Type: AssertRowCount, Kind: "slides", Count: 0},
			{Type: AssertEventCount, Event: "syncStateChanged", Count: 2},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	require.True(t, result.Pass, "errors: %v", result.Errors)

	last := result.Events[len(result.Events)-1]
	assert.Equal(t, "syncStateChanged", last.Type)
	assert.Contains(t, last.Detail, "state=failed")
}

func TestRun_FailNextRequiresOp(t *testing.T) {
	scenario := &Scenario{
		Name:        "fail_next_without_op",
		Description: "fail_next needs an operation name",
		Steps: []Step{
			{Do: OpFailNext, Expect: &ExpectClause{Error: "VALIDATION"}},
			{Do: OpAdvance, Args: map[string]any{"ms": -1}, Expect: &ExpectClause{Error: "VALIDATION"}},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRun_ReloadReadsStoredRows(t *testing.T) {
	scenario := &Scenario{
		Name:        "reload_unsaved",
		Description: "unsaved edits are lost on reload",
		Steps: []Step{
			{Do: OpAddSlide},
			{Do: OpSave},
			{Do: OpAddSlide},
			{Do: OpReload},
		},
		Assertions: []Assertion{
			{Type: AssertRowCount, Kind: "slides", Count: 1},
			{Type: AssertAbsent, Kind: "slides", ID: "slide_2"},
			{Type: AssertPending, Count: 0},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	require.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Equal(t, "slides=1", result.Steps[3].Outcome)
}

func TestRun_FailedAssertionIsReported(t *testing.T) {
	scenario := &Scenario{
		Name:        "bad_assertion",
		Description: "asserts a row that was never saved",
		Steps:       []Step{{Do: OpAddSlide}},
		Assertions: []Assertion{
			{Type: AssertFinalState, Kind: "slides", ID: "slide_1", Expect: map[string]any{"title": "Slide 1"}},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "row not found")
}

func TestRun_WithLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	scenario := &Scenario{
		Name:        "logged",
		Description: "steps are logged",
		Steps:       []Step{{Do: OpAddSlide}},
	}

	result, err := Run(scenario, WithLogger(logger))
	require.NoError(t, err)
	require.True(t, result.Pass)
	assert.Contains(t, buf.String(), "step completed")
	assert.Contains(t, buf.String(), "do=add_slide")
}

func TestRun_Deterministic(t *testing.T) {
	scenario := &Scenario{
		Name:        "deterministic",
		Description: "two runs produce identical snapshots",
		FlushToken:  "flush-det",
		Steps: []Step{
			{Do: OpAddSlide},
			{Do: OpSetActiveSlide, ID: "slide_1"},
			{Do: OpCreateHotspot},
			{Do: OpMoveHotspot, ID: "hs_1", Args: map[string]any{"x": 12.5, "y": 80}},
			{Do: OpAdvance, Args: map[string]any{"ms": 2000}},
		},
	}

	first, err := Run(scenario)
	require.NoError(t, err)
	second, err := Run(scenario)
	require.NoError(t, err)
	assert.Equal(t, string(Snapshot("deterministic", first)), string(Snapshot("deterministic", second)))
}
