package model

import (
	"math"
	"time"
)

// ProjectStatus is the publication state of a project.
type ProjectStatus string

const (
	ProjectDraft     ProjectStatus = "draft"
	ProjectPublished ProjectStatus = "published"
	ProjectArchived  ProjectStatus = "archived"
)

// MediaKind is the type of a slide background.
type MediaKind string

const (
	MediaNone  MediaKind = "none"
	MediaImage MediaKind = "image"
	MediaVideo MediaKind = "video"
	MediaGIF   MediaKind = "gif"
)

// TriggerKind is the visitor interaction that fires a hotspot.
type TriggerKind string

const (
	TriggerClick TriggerKind = "click"
	TriggerHover TriggerKind = "hover"
	TriggerTouch TriggerKind = "touch"
)

// EventKind is the effect a hotspot produces when triggered.
type EventKind string

const (
	EventTextOnImage EventKind = "text-on-image"
	EventTextPopup   EventKind = "text-popup"
	EventPanZoom     EventKind = "pan-zoom"
	EventSpotlight   EventKind = "spotlight"
)

// HotspotSize is the rendered marker size.
type HotspotSize string

const (
	SizeSmall  HotspotSize = "small"
	SizeMedium HotspotSize = "medium"
	SizeLarge  HotspotSize = "large"
)

// TooltipPosition anchors tooltip text relative to the marker.
type TooltipPosition string

const (
	TooltipAuto   TooltipPosition = "auto"
	TooltipTop    TooltipPosition = "top"
	TooltipBottom TooltipPosition = "bottom"
	TooltipLeft   TooltipPosition = "left"
	TooltipRight  TooltipPosition = "right"
)

// Project is the root of a walkthrough. Each project lives in exactly one
// row-store document; DocumentID never changes once assigned.
type Project struct {
	ID          string         `json:"id"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Status      ProjectStatus  `json:"status"`
	Settings    map[string]any `json:"settings"`
	Analytics   map[string]any `json:"analytics"`
	CreatedAt   time.Time      `json:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt"`
	CreatedBy   string         `json:"createdBy"`
	SharedWith  []string       `json:"sharedWith"`
	DocumentID  string         `json:"documentId"`
}

// Background is the media shown behind a slide's hotspots.
type Background struct {
	URL  string    `json:"url"`
	Kind MediaKind `json:"kind"`
}

// Slide is one screen of a project. Order is dense and zero-based within the
// owning project.
type Slide struct {
	ID         string     `json:"id"`
	ProjectID  string     `json:"projectId"`
	Title      string     `json:"title"`
	Background Background `json:"background"`
	Order      int        `json:"order"`
	// Duration is the auto-advance delay in seconds; 0 disables auto-advance.
	Duration  float64   `json:"duration"`
	IsActive  bool      `json:"isActive"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Position is a point on the canvas in percent of width and height, so it is
// independent of the rendered resolution.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Finite reports whether neither coordinate is NaN or infinite.
func (p Position) Finite() bool {
	return !math.IsNaN(p.X) && !math.IsInf(p.X, 0) && !math.IsNaN(p.Y) && !math.IsInf(p.Y, 0)
}

// Clamp limits both coordinates to [0, 100].
func (p Position) Clamp() Position {
	return Position{X: clampPercent(p.X), Y: clampPercent(p.Y)}
}

func clampPercent(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 100:
		return 100
	default:
		return v
	}
}

// Hotspot is an interactive marker placed on a slide.
type Hotspot struct {
	ID              string          `json:"id"`
	SlideID         string          `json:"slideId"`
	Name            string          `json:"name"`
	Color           string          `json:"color"`
	Size            HotspotSize     `json:"size"`
	Position        Position        `json:"position"`
	PulseAnimation  bool            `json:"pulseAnimation"`
	TriggerType     TriggerKind     `json:"triggerType"`
	EventType       EventKind       `json:"eventType"`
	TooltipContent  string          `json:"tooltipContent"`
	TooltipPosition TooltipPosition `json:"tooltipPosition"`
	ZoomLevel       float64         `json:"zoomLevel"`
	PanOffsetX      float64         `json:"panOffsetX"`
	PanOffsetY      float64         `json:"panOffsetY"`
	BannerText      string          `json:"bannerText"`
	IsVisible       bool            `json:"isVisible"`
	Order           int             `json:"order"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

// AnalyticsKind classifies a recorded visitor interaction.
type AnalyticsKind string

const (
	AnalyticsView     AnalyticsKind = "view"
	AnalyticsClick    AnalyticsKind = "click"
	AnalyticsHover    AnalyticsKind = "hover"
	AnalyticsComplete AnalyticsKind = "complete"
)

// AnalyticsEvent is one visitor interaction recorded against a project.
type AnalyticsEvent struct {
	ID        string         `json:"id"`
	ProjectID string         `json:"projectId"`
	SlideID   string         `json:"slideId"`
	HotspotID string         `json:"hotspotId"`
	EventType AnalyticsKind  `json:"eventType"`
	Timestamp time.Time      `json:"timestamp"`
	SessionID string         `json:"sessionId"`
	Metadata  map[string]any `json:"metadata"`
}

// EntityKind names a persisted entity type. The values double as row-store
// sheet names.
type EntityKind string

const (
	KindProject   EntityKind = "projects"
	KindSlide     EntityKind = "slides"
	KindHotspot   EntityKind = "hotspots"
	KindAnalytics EntityKind = "analytics"
)

// Action is the kind of local mutation a ChangeRecord describes.
type Action string

const (
	ActionCreate   Action = "create"
	ActionUpdate   Action = "update"
	ActionDelete   Action = "delete"
	ActionReorder  Action = "reorder"
	ActionPosition Action = "position"
)

// ChangeRecord is one local mutation waiting to be persisted.
//
// Scope groups records that are flushed together: the slide id for hotspot
// records and the project id for slide records. Seq comes from a logical
// clock, so records of one scope are strictly ordered.
type ChangeRecord struct {
	ID      string     `json:"id"`
	Action  Action     `json:"action"`
	Kind    EntityKind `json:"kind"`
	Scope   string     `json:"scope"`
	Seq     int64      `json:"seq"`
	Hotspot *Hotspot   `json:"hotspot,omitempty"`
	Slide   *Slide     `json:"slide,omitempty"`
	// Previous is the hotspot before an update.
	Previous *Hotspot `json:"previous,omitempty"`
	// Hotspots carries the full reordered list of a reorder record.
	Hotspots []Hotspot `json:"hotspots,omitempty"`
	// Slides carries the full reordered list of a slide reorder record.
	Slides []Slide `json:"slides,omitempty"`
}

// EntityID returns the id of the entity the record is about, or "" for
// list-valued reorder records.
func (r ChangeRecord) EntityID() string {
	switch {
	case r.Hotspot != nil:
		return r.Hotspot.ID
	case r.Slide != nil:
		return r.Slide.ID
	default:
		return ""
	}
}
