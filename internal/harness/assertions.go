package harness

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Events   []EventTrace // Event trace for context, if relevant
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Events) > 0 {
		fmt.Fprintf(&buf, "\nEvents:\n")
		for i, ev := range e.Events {
			fmt.Fprintf(&buf, "  [%d] %s\n", i+1, ev)
		}
	}
	return buf.String()
}

// EvaluateAssertions checks every assertion against result and returns the
// failure messages.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errs []string
	for i, a := range assertions {
		if err := evaluate(result, a); err != nil {
			errs = append(errs, fmt.Sprintf("assertion %d: %v", i+1, err))
		}
	}
	return errs
}

func evaluate(result *Result, a Assertion) error {
	switch a.Type {
	case AssertEventCount:
		return assertEventCount(result, a)
	case AssertEventOrder:
		return assertEventOrder(result, a)
	case AssertRowCount:
		return assertRowCount(result.State, a)
	case AssertRowWrites:
		return assertNumber(AssertRowWrites, "row writes", a.Count, result.State.RowWrites)
	case AssertCallCount:
		return assertNumber(AssertCallCount, a.Op+" calls", a.Count, result.State.Calls[a.Op])
	case AssertPending:
		return assertNumber(AssertPending, "pending change records", a.Count, result.State.Pending)
	case AssertFinalState:
		return assertFinalState(result.State, a)
	case AssertAbsent:
		if _, ok := result.State.stored(a.Kind, a.ID); ok {
			return &AssertionError{
				Type:     AssertAbsent,
				Expected: fmt.Sprintf("no stored %s row %s", a.Kind, a.ID),
				Actual:   "row present",
			}
		}
		return nil
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}

// assertEventCount checks that the event type was published exactly the
// specified number of times.
func assertEventCount(result *Result, a Assertion) error {
	if n := result.EventCount(a.Event); n != a.Count {
		return &AssertionError{
			Type:     AssertEventCount,
			Expected: fmt.Sprintf("%d occurrences of %s", a.Count, a.Event),
			Actual:   fmt.Sprintf("%d occurrences", n),
			Events:   result.Events,
		}
	}
	return nil
}

// assertEventOrder checks that the first occurrences of the events appear
// in the specified order. Intervening events are allowed.
func assertEventOrder(result *Result, a Assertion) error {
	positions := make(map[string]int)
	for i, ev := range result.Events {
		if _, seen := positions[ev.Type]; !seen {
			positions[ev.Type] = i + 1
		}
	}

	for _, t := range a.Events {
		if positions[t] == 0 {
			return &AssertionError{
				Type:     AssertEventOrder,
				Expected: fmt.Sprintf("all events present: %v", a.Events),
				Actual:   fmt.Sprintf("missing event: %s", t),
				Events:   result.Events,
			}
		}
	}
	for i := 1; i < len(a.Events); i++ {
		prev, curr := a.Events[i-1], a.Events[i]
		if positions[prev] >= positions[curr] {
			return &AssertionError{
				Type:     AssertEventOrder,
				Expected: fmt.Sprintf("events in order: %v", a.Events),
				Actual: fmt.Sprintf("%s (pos %d) should be before %s (pos %d)",
					prev, positions[prev], curr, positions[curr]),
				Events: result.Events,
			}
		}
	}
	return nil
}

func assertRowCount(state FinalState, a Assertion) error {
	n := len(state.Hotspots)
	if a.Kind == "slides" {
		n = len(state.Slides)
	}
	return assertNumber(AssertRowCount, "stored "+a.Kind, a.Count, n)
}

func assertNumber(typ, what string, want, got int) error {
	if want != got {
		return &AssertionError{
			Type:     typ,
			Expected: fmt.Sprintf("%d %s", want, what),
			Actual:   fmt.Sprintf("%d %s", got, what),
		}
	}
	return nil
}

// assertFinalState checks the stored row of an entity. Expected values are
// compared against the entity's JSON encoding with subset semantics, so
// nested objects such as position may list only some fields.
func assertFinalState(state FinalState, a Assertion) error {
	entity, ok := state.stored(a.Kind, a.ID)
	if !ok {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("stored %s row %s", a.Kind, a.ID),
			Actual:   "row not found",
		}
	}
	actual, err := toMap(entity)
	if err != nil {
		return err
	}

	keys := make([]string, 0, len(a.Expect))
	for k := range a.Expect {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		want := a.Expect[key]
		got, exists := actual[key]
		if !exists {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("field %q to exist", key),
				Actual:   fmt.Sprintf("field %q not present on %s %s", key, a.Kind, a.ID),
			}
		}
		if !valuesMatch(want, got) {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("field %q = %v", key, want),
				Actual:   fmt.Sprintf("field %q = %v", key, got),
			}
		}
	}
	return nil
}

func toMap(v any) (map[string]any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode stored entity: %w", err)
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decode stored entity: %w", err)
	}
	return out, nil
}

// valuesMatch compares a YAML-parsed expected value with a JSON-decoded
// actual value. Numbers compare by value; objects use subset semantics.
func valuesMatch(want, got any) bool {
	if w, ok := toFloat(want); ok {
		g, ok := toFloat(got)
		return ok && w == g
	}
	if wm, ok := want.(map[string]any); ok {
		gm, ok := got.(map[string]any)
		if !ok {
			return false
		}
		for k, wv := range wm {
			gv, exists := gm[k]
			if !exists || !valuesMatch(wv, gv) {
				return false
			}
		}
		return true
	}
	if ws, ok := want.([]any); ok {
		gs, ok := got.([]any)
		if !ok || len(ws) != len(gs) {
			return false
		}
		for i := range ws {
			if !valuesMatch(ws[i], gs[i]) {
				return false
			}
		}
		return true
	}
	return reflect.DeepEqual(want, got)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}
