package harness

import "github.com/roach88/hotspot/internal/model"

// StepTrace records one executed step.
type StepTrace struct {
	Index   int    `json:"index"`
	Do      string `json:"do"`
	ID      string `json:"id,omitempty"`
	Outcome string `json:"outcome"`
}

// EventTrace is a compact rendering of one bus event.
type EventTrace struct {
	Type    string `json:"type"`
	SlideID string `json:"slide_id,omitempty"`
	Detail  string `json:"detail,omitempty"`
}

// FinalState is the session and row-store state after the last step.
type FinalState struct {
	ActiveSlide string          `json:"active_slide"`
	Selected    string          `json:"selected"`
	Pending     int             `json:"pending"`
	RowWrites   int             `json:"row_writes"`
	Calls       map[string]int  `json:"calls"`
	Slides      []model.Slide   `json:"slides"`
	Hotspots    []model.Hotspot `json:"hotspots"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Name is the scenario name.
	Name string `json:"name"`

	// Pass is true when every step met its expectation and every
	// assertion held.
	Pass bool `json:"pass"`

	// Steps holds one entry per executed step.
	Steps []StepTrace `json:"steps"`

	// Events holds every bus event in publication order.
	Events []EventTrace `json:"events"`

	// Errors contains failure messages. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// State is captured after the last step.
	State FinalState `json:"state"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Steps:  []StepTrace{},
		Events: []EventTrace{},
		Errors: []string{},
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// EventCount returns how many events of type t were published.
func (r *Result) EventCount(t string) int {
	n := 0
	for _, e := range r.Events {
		if e.Type == t {
			n++
		}
	}
	return n
}

// stored returns the stored slide or hotspot with the given id.
func (s FinalState) stored(kind, id string) (any, bool) {
	switch kind {
	case "slides":
		for _, sl := range s.Slides {
			if sl.ID == id {
				return sl, true
			}
		}
	case "hotspots":
		for _, h := range s.Hotspots {
			if h.ID == id {
				return h, true
			}
		}
	}
	return nil, false
}
