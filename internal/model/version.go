package model

// Version constants for the persisted row layout and the engine.
const (
	// SchemaVersion is the row layout version written to every document.
	SchemaVersion = 1

	// EngineVersion is the hotspot engine version.
	EngineVersion = "0.1.0"
)
