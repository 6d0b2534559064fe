package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Scenario is a scripted editing session. Steps drive the editor store and
// the virtual clock; assertions check the outcome and the rows that reached
// the row store.
type Scenario struct {
	// Name uniquely identifies the scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what the scenario demonstrates.
	Description string `yaml:"description"`

	// Project is the title of the project created before the first step.
	// Defaults to the scenario name.
	Project string `yaml:"project,omitempty"`

	// MaxHotspots overrides the per-slide hotspot limit.
	MaxHotspots int `yaml:"max_hotspots,omitempty"`

	// FlushToken is the fixed token stamped on every flush.
	// If empty, defaults to "test-flush-default".
	FlushToken string `yaml:"flush_token,omitempty"`

	// Steps run in order against one editing session.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final trace and the stored rows.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// Step is one scripted operation.
type Step struct {
	// Do is the operation name, one of the Op constants.
	Do string `yaml:"do"`

	// ID is the target slide or hotspot, when the operation has one.
	ID string `yaml:"id,omitempty"`

	// Args are the operation arguments. For create and update operations
	// they are the entity fields, named as in the JSON encoding.
	Args map[string]any `yaml:"args,omitempty"`

	// Expect declares an expected failure. A step without Expect must
	// succeed.
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// ExpectClause specifies the expected step outcome.
type ExpectClause struct {
	// Error is the expected error code (e.g. "VALIDATION").
	Error string `yaml:"error"`
}

// Step operations.
const (
	OpAddSlide       = "add_slide"
	OpUpdateSlide    = "update_slide"
	OpDeleteSlide    = "delete_slide"
	OpReorderSlide   = "reorder_slide"
	OpSetActiveSlide = "set_active_slide"
	OpCreateHotspot  = "create_hotspot"
	OpUpdateHotspot  = "update_hotspot"
	OpMoveHotspot    = "move_hotspot"
	OpDeleteHotspot  = "delete_hotspot"
	OpReorderHotspot = "reorder_hotspot"
	OpSelectHotspot  = "select_hotspot"
	OpAdvance        = "advance"
	OpSave           = "save"
	OpFailNext       = "fail_next"
	OpReload         = "reload"
)

// stepNeedsID lists the operations that require Step.ID.
var stepNeedsID = map[string]bool{
	OpUpdateSlide:    true,
	OpDeleteSlide:    true,
	OpReorderSlide:   true,
	OpSetActiveSlide: true,
	OpUpdateHotspot:  true,
	OpMoveHotspot:    true,
	OpDeleteHotspot:  true,
	OpReorderHotspot: true,
}

var knownOps = map[string]bool{
	OpAddSlide: true, OpUpdateSlide: true, OpDeleteSlide: true, OpReorderSlide: true,
	OpSetActiveSlide: true, OpCreateHotspot: true, OpUpdateHotspot: true, OpMoveHotspot: true,
	OpDeleteHotspot: true, OpReorderHotspot: true, OpSelectHotspot: true, OpAdvance: true,
	OpSave: true, OpFailNext: true, OpReload: true,
}

// Assertion validates the trace or the stored rows.
type Assertion struct {
	// Type is one of the Assert constants.
	Type string `yaml:"type"`

	// Event is the event type (event_count).
	Event string `yaml:"event,omitempty"`

	// Events is the expected event order (event_order).
	Events []string `yaml:"events,omitempty"`

	// Kind is "slides" or "hotspots" (row_count, final_state).
	Kind string `yaml:"kind,omitempty"`

	// ID selects the stored entity (final_state).
	ID string `yaml:"id,omitempty"`

	// Op is a row-store operation name (call_count).
	Op string `yaml:"op,omitempty"`

	// Expect contains expected field values (final_state), subset match.
	Expect map[string]any `yaml:"expect,omitempty"`

	// Count is the expected number (event_count, row_count, row_writes,
	// call_count, pending).
	Count int `yaml:"count"`
}

// Assertion types.
const (
	AssertEventCount = "event_count"
	AssertEventOrder = "event_order"
	AssertRowCount   = "row_count"
	AssertRowWrites  = "row_writes"
	AssertCallCount  = "call_count"
	AssertPending    = "pending"
	AssertFinalState = "final_state"
	AssertAbsent     = "absent"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}
	if s.MaxHotspots < 0 {
		return fmt.Errorf("max_hotspots must not be negative")
	}

	for i, step := range s.Steps {
		if !knownOps[step.Do] {
			return fmt.Errorf("step %d: unknown operation %q", i+1, step.Do)
		}
		if stepNeedsID[step.Do] && step.ID == "" {
			return fmt.Errorf("step %d: %s requires id", i+1, step.Do)
		}
		if step.Expect != nil && step.Expect.Error == "" {
			return fmt.Errorf("step %d: expect requires error", i+1)
		}
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(a); err != nil {
			return fmt.Errorf("assertion %d: %w", i+1, err)
		}
	}
	return nil
}

func validateAssertion(a Assertion) error {
	switch a.Type {
	case AssertEventCount:
		if a.Event == "" {
			return fmt.Errorf("event_count requires event")
		}
	case AssertEventOrder:
		if len(a.Events) < 2 {
			return fmt.Errorf("event_order requires at least 2 events")
		}
	case AssertRowCount:
		if err := validateKind(a.Kind); err != nil {
			return err
		}
	case AssertCallCount:
		if a.Op == "" {
			return fmt.Errorf("call_count requires op")
		}
	case AssertFinalState, AssertAbsent:
		if err := validateKind(a.Kind); err != nil {
			return err
		}
		if a.ID == "" {
			return fmt.Errorf("%s requires id", a.Type)
		}
		if a.Type == AssertFinalState && len(a.Expect) == 0 {
			return fmt.Errorf("final_state requires expect")
		}
	case AssertRowWrites, AssertPending:
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
	return nil
}

func validateKind(kind string) error {
	switch kind {
	case "slides", "hotspots":
		return nil
	case "":
		return fmt.Errorf("kind is required")
	default:
		return fmt.Errorf("unknown kind %q (want slides or hotspots)", kind)
	}
}
