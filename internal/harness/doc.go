// Package harness runs scripted editing scenarios against a real editing
// session.
//
// A scenario is a YAML file of steps (add a slide, create and drag
// hotspots, advance the clock, inject row-store failures, save, reload)
// plus assertions on the event trace and on the rows that reached the row
// store. Every run uses a fresh in-memory row store wrapped in a recording
// client, a virtual clock, sequential ids and a fixed flush token, so the
// same scenario always produces the same trace.
//
// After every step the harness checks the store invariants: slide and
// hotspot orders are dense, no slide exceeds the hotspot limit, and the
// active slide and selection refer to existing entities.
//
// Snapshot renders a run as text for golden comparison with goldie:
//
//	result, err := harness.RunWithGolden(t, scenario)
//
// RunDir runs a directory of scenarios and summarizes the outcome; the
// hotspot CLI uses it for `hotspot scenario`.
package harness
