package harness

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// Snapshot renders the trace and the final state of a run as stable text.
// Timestamps and record ids are left out, so a scenario produces the same
// bytes on every run.
func Snapshot(name string, result *Result) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "scenario: %s\n", name)
	fmt.Fprintf(&buf, "pass: %t\n", result.Pass)

	buf.WriteString("steps:\n")
	for _, s := range result.Steps {
		fmt.Fprintf(&buf, "  %s\n", s)
	}

	buf.WriteString("events:\n")
	for _, e := range result.Events {
		fmt.Fprintf(&buf, "  %s\n", e)
	}

	st := result.State
	buf.WriteString("state:\n")
	fmt.Fprintf(&buf, "  active: %s\n", orDash(st.ActiveSlide))
	fmt.Fprintf(&buf, "  selected: %s\n", orDash(st.Selected))
	fmt.Fprintf(&buf, "  pending: %d\n", st.Pending)
	fmt.Fprintf(&buf, "  row_writes: %d\n", st.RowWrites)

	buf.WriteString("slides:\n")
	for _, sl := range st.Slides {
		fmt.Fprintf(&buf, "  %s order=%d title=%q\n", sl.ID, sl.Order, sl.Title)
	}
	buf.WriteString("hotspots:\n")
	for _, h := range st.Hotspots {
		fmt.Fprintf(&buf, "  %s slide=%s order=%d name=%q x=%g y=%g\n",
			h.ID, h.SlideID, h.Order, h.Name, h.Position.X, h.Position.Y)
	}
	return buf.Bytes()
}

// RunWithGolden executes a scenario and compares its snapshot against a
// golden file stored in testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if the snapshot doesn't match.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	AssertGolden(t, scenario.Name, result)
	return result, nil
}

// AssertGolden compares an existing result against the golden file named
// scenarioName.
func AssertGolden(t *testing.T, scenarioName string, result *Result) {
	t.Helper()

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, Snapshot(scenarioName, result))
}
