package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/hotspot/internal/model"
)

func sampleResult() *Result {
	r := NewResult()
	r.Events = []EventTrace{
		{Type: "slideAdded", SlideID: "slide_1", Detail: "order=0"},
		{Type: "hotspotCreated", SlideID: "slide_1", Detail: "hotspot=hs_1 order=0"},
		{Type: "syncStateChanged", Detail: "scope=proj_1 state=saving pending=2 token=t"},
		{Type: "syncStateChanged", Detail: "scope=proj_1 state=saved pending=1 token=t"},
	}
	r.State = FinalState{
		Pending:   1,
		RowWrites: 2,
		Calls:     map[string]int{"AppendRow": 2},
		Slides:    []model.Slide{{ID: "slide_1", Title: "Intro"}},
		Hotspots: []model.Hotspot{{
			ID:       "hs_1",
			SlideID:  "slide_1",
			Name:     "Start",
			Position: model.Position{X: 25, Y: 75},
		}},
	}
	return r
}

func TestEvaluateAssertions_Pass(t *testing.T) {
	errs := EvaluateAssertions(sampleResult(), []Assertion{
		{Type: AssertEventCount, Event: "syncStateChanged", Count: 2},
		{Type: AssertEventOrder, Events: []string{"slideAdded", "hotspotCreated", "syncStateChanged"}},
		{Type: AssertRowCount, Kind: "slides", Count: 1},
		{Type: AssertRowCount, Kind: "hotspots", Count: 1},
		{Type: AssertRowWrites, Count: 2},
		{Type: AssertCallCount, Op: "AppendRow", Count: 2},
		{Type: AssertCallCount, Op: "DeleteRowByID", Count: 0},
		{Type: AssertPending, Count: 1},
		{Type: AssertAbsent, Kind: "hotspots", ID: "hs_2"},
		{Type: AssertFinalState, Kind: "hotspots", ID: "hs_1", Expect: map[string]any{
			"name":     "Start",
			"position": map[string]any{"y": 75},
		}},
	})
	assert.Empty(t, errs)
}

func TestEvaluateAssertions_Failures(t *testing.T) {
	tests := []struct {
		name      string
		assertion Assertion
		want      string
	}{
		{
			name:      "event count",
			assertion: Assertion{Type: AssertEventCount, Event: "slideAdded", Count: 2},
			want:      "2 occurrences of slideAdded",
		},
		{
			name:      "event order",
			assertion: Assertion{Type: AssertEventOrder, Events: []string{"hotspotCreated", "slideAdded"}},
			want:      "should be before",
		},
		{
			name:      "missing event",
			assertion: Assertion{Type: AssertEventOrder, Events: []string{"slideAdded", "slideDeleted"}},
			want:      "missing event: slideDeleted",
		},
		{
			name:      "row writes",
			assertion: Assertion{Type: AssertRowWrites, Count: 5},
			want:      "Actual: 2 row writes",
		},
		{
			name:      "absent",
			assertion: Assertion{Type: AssertAbsent, Kind: "slides", ID: "slide_1"},
			want:      "row present",
		},
		{
			name: "field mismatch",
			assertion: Assertion{Type: AssertFinalState, Kind: "hotspots", ID: "hs_1", Expect: map[string]any{
				"position": map[string]any{"x": 30},
			}},
			want: `field "position"`,
		},
		{
			name: "unknown field",
			assertion: Assertion{Type: AssertFinalState, Kind: "slides", ID: "slide_1", Expect: map[string]any{
				"subtitle": "x",
			}},
			want: `field "subtitle" to exist`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := EvaluateAssertions(sampleResult(), []Assertion{tt.assertion})
			require.Len(t, errs, 1)
			assert.Contains(t, errs[0], "assertion 1:")
			assert.Contains(t, errs[0], tt.want)
		})
	}
}

func TestValuesMatch(t *testing.T) {
	assert.True(t, valuesMatch(1, float64(1)))
	assert.True(t, valuesMatch(2.5, 2.5))
	assert.False(t, valuesMatch(1, "1"))
	assert.True(t, valuesMatch("a", "a"))
	assert.True(t, valuesMatch([]any{1, "b"}, []any{float64(1), "b"}))
	assert.False(t, valuesMatch([]any{1}, []any{float64(1), float64(2)}))
	assert.True(t, valuesMatch(map[string]any{"x": 1}, map[string]any{"x": float64(1), "y": float64(2)}))
	assert.False(t, valuesMatch(map[string]any{"z": 1}, map[string]any{"x": float64(1)}))
}
