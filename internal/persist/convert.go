package persist

import (
	"fmt"

	"github.com/roach88/hotspot/internal/model"
)

// Decoding is lenient: the row store holds schemaless cells, so a missing or
// malformed value falls back to the default listed here instead of failing.
//
//	order           0
//	isVisible       true
//	pulseAnimation  true
//	color           #3b82f6
//	size            medium
//	triggerType     click
//	eventType       text-popup
//	tooltipPosition auto
//	zoomLevel       1
//	backgroundType  none
//	isActive        true
//	status          draft
//	settings        {}

// ProjectRow encodes p in ProjectLayout order.
func ProjectRow(p model.Project) ([]any, error) {
	settings := p.Settings
	if settings == nil {
		settings = map[string]any{}
	}
	settingsCell, err := jsonCell(settings)
	if err != nil {
		return nil, fmt.Errorf("project %s settings: %w", p.ID, err)
	}
	analytics := p.Analytics
	if analytics == nil {
		analytics = map[string]any{}
	}
	analyticsCell, err := jsonCell(analytics)
	if err != nil {
		return nil, fmt.Errorf("project %s analytics: %w", p.ID, err)
	}
	shared := p.SharedWith
	if shared == nil {
		shared = []string{}
	}
	sharedCell, err := jsonCell(shared)
	if err != nil {
		return nil, fmt.Errorf("project %s sharedWith: %w", p.ID, err)
	}
	return ProjectLayout.Encode(Record{
		"id":          p.ID,
		"name":        p.Title,
		"description": p.Description,
		"status":      string(p.Status),
		"settings":    settingsCell,
		"analytics":   analyticsCell,
		"createdAt":   timeCell(p.CreatedAt),
		"updatedAt":   timeCell(p.UpdatedAt),
		"createdBy":   p.CreatedBy,
		"sharedWith":  sharedCell,
	}), nil
}

// ProjectFromRow decodes a project row. The document id is not part of the
// row; the caller fills it in.
func ProjectFromRow(row []any) model.Project {
	r := ProjectLayout.Decode(row)
	return model.Project{
		ID:          r.String("id", ""),
		Title:       r.String("name", ""),
		Description: r.String("description", ""),
		Status:      model.ProjectStatus(r.String("status", string(model.ProjectDraft))),
		Settings:    r.Map("settings"),
		Analytics:   r.Map("analytics"),
		CreatedAt:   r.Time("createdAt"),
		UpdatedAt:   r.Time("updatedAt"),
		CreatedBy:   r.String("createdBy", ""),
		SharedWith:  r.Strings("sharedWith"),
	}
}

// SlideRow encodes s in SlideLayout order.
func SlideRow(s model.Slide) []any {
	return SlideLayout.Encode(Record{
		"id":             s.ID,
		"projectId":      s.ProjectID,
		"name":           s.Title,
		"backgroundUrl":  s.Background.URL,
		"backgroundType": string(s.Background.Kind),
		"order":          s.Order,
		"duration":       s.Duration,
		"isActive":       s.IsActive,
		"createdAt":      timeCell(s.CreatedAt),
		"updatedAt":      timeCell(s.UpdatedAt),
	})
}

// SlideFromRow decodes a slide row.
func SlideFromRow(row []any) model.Slide {
	r := SlideLayout.Decode(row)
	return model.Slide{
		ID:        r.String("id", ""),
		ProjectID: r.String("projectId", ""),
		Title:     r.String("name", ""),
		Background: model.Background{
			URL:  r.String("backgroundUrl", ""),
			Kind: model.MediaKind(r.String("backgroundType", string(model.MediaNone))),
		},
		Order:     r.Int("order", 0),
		Duration:  r.Float("duration", 0),
		IsActive:  r.Bool("isActive", true),
		CreatedAt: r.Time("createdAt"),
		UpdatedAt: r.Time("updatedAt"),
	}
}

// HotspotRow encodes h in HotspotLayout order.
func HotspotRow(h model.Hotspot) []any {
	return HotspotLayout.Encode(Record{
		"id":              h.ID,
		"slideId":         h.SlideID,
		"name":            h.Name,
		"color":           h.Color,
		"size":            string(h.Size),
		"x":               h.Position.X,
		"y":               h.Position.Y,
		"pulseAnimation":  h.PulseAnimation,
		"triggerType":     string(h.TriggerType),
		"eventType":       string(h.EventType),
		"tooltipContent":  h.TooltipContent,
		"tooltipPosition": string(h.TooltipPosition),
		"zoomLevel":       h.ZoomLevel,
		"panOffsetX":      h.PanOffsetX,
		"panOffsetY":      h.PanOffsetY,
		"bannerText":      h.BannerText,
		"isVisible":       h.IsVisible,
		"order":           h.Order,
		"createdAt":       timeCell(h.CreatedAt),
		"updatedAt":       timeCell(h.UpdatedAt),
	})
}

// HotspotFromRow decodes a hotspot row.
func HotspotFromRow(row []any) model.Hotspot {
	r := HotspotLayout.Decode(row)
	return model.Hotspot{
		ID:              r.String("id", ""),
		SlideID:         r.String("slideId", ""),
		Name:            r.String("name", ""),
		Color:           r.String("color", model.DefaultColor),
		Size:            model.HotspotSize(r.String("size", string(model.SizeMedium))),
		Position:        model.Position{X: r.Float("x", 50), Y: r.Float("y", 50)},
		PulseAnimation:  r.Bool("pulseAnimation", true),
		TriggerType:     model.TriggerKind(r.String("triggerType", string(model.TriggerClick))),
		EventType:       model.EventKind(r.String("eventType", string(model.EventTextPopup))),
		TooltipContent:  r.String("tooltipContent", ""),
		TooltipPosition: model.TooltipPosition(r.String("tooltipPosition", string(model.TooltipAuto))),
		ZoomLevel:       r.Float("zoomLevel", model.DefaultZoomLevel),
		PanOffsetX:      r.Float("panOffsetX", 0),
		PanOffsetY:      r.Float("panOffsetY", 0),
		BannerText:      r.String("bannerText", ""),
		IsVisible:       r.Bool("isVisible", true),
		Order:           r.Int("order", 0),
		CreatedAt:       r.Time("createdAt"),
		UpdatedAt:       r.Time("updatedAt"),
	}
}

// AnalyticsRow encodes e in AnalyticsLayout order.
func AnalyticsRow(e model.AnalyticsEvent) ([]any, error) {
	meta := e.Metadata
	if meta == nil {
		meta = map[string]any{}
	}
	metaCell, err := jsonCell(meta)
	if err != nil {
		return nil, fmt.Errorf("analytics %s metadata: %w", e.ID, err)
	}
	return AnalyticsLayout.Encode(Record{
		"id":        e.ID,
		"projectId": e.ProjectID,
		"slideId":   e.SlideID,
		"hotspotId": e.HotspotID,
		"eventType": string(e.EventType),
		"timestamp": timeCell(e.Timestamp),
		"sessionId": e.SessionID,
		"metadata":  metaCell,
	}), nil
}

// AnalyticsFromRow decodes an analytics row.
func AnalyticsFromRow(row []any) model.AnalyticsEvent {
	r := AnalyticsLayout.Decode(row)
	return model.AnalyticsEvent{
		ID:        r.String("id", ""),
		ProjectID: r.String("projectId", ""),
		SlideID:   r.String("slideId", ""),
		HotspotID: r.String("hotspotId", ""),
		EventType: model.AnalyticsKind(r.String("eventType", string(model.AnalyticsView))),
		Timestamp: r.Time("timestamp"),
		SessionID: r.String("sessionId", ""),
		Metadata:  r.Map("metadata"),
	}
}
