// Package model defines the domain entities of the hotspot editor and the
// primitives shared by every other internal package.
//
// This package imports nothing internal. It holds:
//   - Project, Slide, Hotspot and AnalyticsEvent entity types
//   - ChangeRecord, the unit of pending write-behind work
//   - partial-update patches and type defaults
//   - the coded error taxonomy (validation, not found, capacity, ...)
//   - id generation and canonical JSON for JSON-valued cells
//
// Cross-entity references are plain ids. Nothing here holds a pointer to a
// parent entity, so deleting a parent never leaves a dangling reference.
package model
