package model

import "fmt"

// Default values merged under partial hotspot input.
const (
	DefaultColor     = "#3b82f6"
	DefaultZoomLevel = 1.0
)

// HotspotPatch is a partial hotspot. Nil fields are left untouched when the
// patch is applied, which lets the same type serve creation (merged over
// defaults) and updates (merged over the current state).
type HotspotPatch struct {
	ID              *string          `json:"id,omitempty"`
	Name            *string          `json:"name,omitempty"`
	Color           *string          `json:"color,omitempty"`
	Size            *HotspotSize     `json:"size,omitempty"`
	Position        *Position        `json:"position,omitempty"`
	PulseAnimation  *bool            `json:"pulseAnimation,omitempty"`
	TriggerType     *TriggerKind     `json:"triggerType,omitempty"`
	EventType       *EventKind       `json:"eventType,omitempty"`
	TooltipContent  *string          `json:"tooltipContent,omitempty"`
	TooltipPosition *TooltipPosition `json:"tooltipPosition,omitempty"`
	ZoomLevel       *float64         `json:"zoomLevel,omitempty"`
	PanOffsetX      *float64         `json:"panOffsetX,omitempty"`
	PanOffsetY      *float64         `json:"panOffsetY,omitempty"`
	BannerText      *string          `json:"bannerText,omitempty"`
	IsVisible       *bool            `json:"isVisible,omitempty"`
}

// Apply returns a copy of h with every non-nil patch field set.
// Identity fields (slide, order, timestamps) are never patched.
func (p HotspotPatch) Apply(h Hotspot) Hotspot {
	if p.Name != nil {
		h.Name = *p.Name
	}
	if p.Color != nil {
		h.Color = *p.Color
	}
	if p.Size != nil {
		h.Size = *p.Size
	}
	if p.Position != nil {
		h.Position = *p.Position
	}
	if p.PulseAnimation != nil {
		h.PulseAnimation = *p.PulseAnimation
	}
	if p.TriggerType != nil {
		h.TriggerType = *p.TriggerType
	}
	if p.EventType != nil {
		h.EventType = *p.EventType
	}
	if p.TooltipContent != nil {
		h.TooltipContent = *p.TooltipContent
	}
	if p.TooltipPosition != nil {
		h.TooltipPosition = *p.TooltipPosition
	}
	if p.ZoomLevel != nil {
		h.ZoomLevel = *p.ZoomLevel
	}
	if p.PanOffsetX != nil {
		h.PanOffsetX = *p.PanOffsetX
	}
	if p.PanOffsetY != nil {
		h.PanOffsetY = *p.PanOffsetY
	}
	if p.BannerText != nil {
		h.BannerText = *p.BannerText
	}
	if p.IsVisible != nil {
		h.IsVisible = *p.IsVisible
	}
	return h
}

// DefaultHotspot returns the type defaults for the n-th hotspot (zero-based)
// on a slide. The default event is a text popup, which needs tooltip text to
// validate, so a placeholder text is included.
func DefaultHotspot(n int) Hotspot {
	return Hotspot{
		Name:            fmt.Sprintf("Hotspot %d", n+1),
		Color:           DefaultColor,
		Size:            SizeMedium,
		Position:        Position{X: 50, Y: 50},
		PulseAnimation:  true,
		TriggerType:     TriggerClick,
		EventType:       EventTextPopup,
		TooltipContent:  "New hotspot",
		TooltipPosition: TooltipAuto,
		ZoomLevel:       DefaultZoomLevel,
		IsVisible:       true,
	}
}

// SlidePatch is a partial slide.
type SlidePatch struct {
	ID         *string     `json:"id,omitempty"`
	Title      *string     `json:"title,omitempty"`
	Background *Background `json:"background,omitempty"`
	Duration   *float64    `json:"duration,omitempty"`
	IsActive   *bool       `json:"isActive,omitempty"`
}

// Apply returns a copy of s with every non-nil patch field set.
func (p SlidePatch) Apply(s Slide) Slide {
	if p.Title != nil {
		s.Title = *p.Title
	}
	if p.Background != nil {
		s.Background = *p.Background
	}
	if p.Duration != nil {
		s.Duration = *p.Duration
	}
	if p.IsActive != nil {
		s.IsActive = *p.IsActive
	}
	return s
}

// DefaultSlide returns the defaults for the n-th slide (zero-based).
func DefaultSlide(n int) Slide {
	return Slide{
		Title:      fmt.Sprintf("Slide %d", n+1),
		Background: Background{Kind: MediaNone},
		IsActive:   true,
	}
}

// Ptr returns a pointer to v. Handy for building patches.
func Ptr[T any](v T) *T {
	return &v
}
