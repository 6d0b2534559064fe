// Package schema validates entities against the constraints declared in
// entities.cue.
//
// The CUE definitions are the single source of truth for field ranges,
// enumerations and the event-kind requirements of hotspots (a text popup
// needs tooltip text, a pan-zoom needs a zoom level in [1, 5], ...). An
// entity is projected onto its persisted column names, unified with the
// matching definition and validated for concreteness. The first violation
// is reported as a model validation error naming the offending field.
package schema

import (
	_ "embed"
	"fmt"
	"math"
	"strings"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/hotspot/internal/model"
)

//go:embed entities.cue
var entitiesCUE string

// SchemaError reports a problem compiling the embedded schema itself.
type SchemaError struct {
	Message string
	Pos     token.Pos
}

func (e *SchemaError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Message)
	}
	return e.Message
}

// Validator checks entities against the CUE definitions.
//
// Thread-safety: a cue.Context is not safe for concurrent use, so every
// method serializes on an internal mutex.
type Validator struct {
	mu      sync.Mutex
	ctx     *cue.Context
	project cue.Value
	slide   cue.Value
	hotspot cue.Value
}

// New compiles the embedded schema.
func New() (*Validator, error) {
	ctx := cuecontext.New()
	root := ctx.CompileString(entitiesCUE, cue.Filename("entities.cue"))
	if err := root.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	v := &Validator{ctx: ctx}
	defs := []struct {
		path string
		dst  *cue.Value
	}{
		{"#Project", &v.project},
		{"#Slide", &v.slide},
		{"#Hotspot", &v.hotspot},
	}
	for _, d := range defs {
		def := root.LookupPath(cue.ParsePath(d.path))
		if !def.Exists() {
			return nil, &SchemaError{Message: fmt.Sprintf("definition %s missing", d.path)}
		}
		*d.dst = def
	}
	return v, nil
}

// MustNew is like New but panics if the embedded schema does not compile.
// The schema ships with the binary, so failure is a build defect.
func MustNew() *Validator {
	v, err := New()
	if err != nil {
		panic(fmt.Sprintf("schema: %v", err))
	}
	return v
}

// ValidateHotspot checks h, including the event-kind requirements.
func (v *Validator) ValidateHotspot(h model.Hotspot) error {
	fields := HotspotFields(h)
	for _, name := range []string{"x", "y", "zoomLevel", "panOffsetX", "panOffsetY"} {
		if f, ok := fields[name].(float64); ok && (math.IsNaN(f) || math.IsInf(f, 0)) {
			return model.NewValidationError(model.KindHotspot, h.ID, name, "must be a finite number")
		}
	}
	return v.validate(v.hotspot, model.KindHotspot, h.ID, fields)
}

// ValidateSlide checks s.
func (v *Validator) ValidateSlide(s model.Slide) error {
	return v.validate(v.slide, model.KindSlide, s.ID, SlideFields(s))
}

// ValidateProject checks p.
func (v *Validator) ValidateProject(p model.Project) error {
	fields := map[string]any{
		"id":          p.ID,
		"title":       p.Title,
		"description": p.Description,
		"status":      string(p.Status),
		"createdBy":   p.CreatedBy,
	}
	return v.validate(v.project, model.KindProject, p.ID, fields)
}

func (v *Validator) validate(def cue.Value, kind model.EntityKind, id string, fields map[string]any) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	unified := def.Unify(v.ctx.Encode(fields))
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return toValidationError(kind, id, err)
	}
	return nil
}

// HotspotFields projects h onto the column names the schema constrains.
func HotspotFields(h model.Hotspot) map[string]any {
	return map[string]any{
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
	}
}

// SlideFields projects s onto the column names the schema constrains.
func SlideFields(s model.Slide) map[string]any {
	return map[string]any{
		"id":             s.ID,
		"projectId":      s.ProjectID,
		"title":          s.Title,
		"backgroundUrl":  s.Background.URL,
		"backgroundType": string(s.Background.Kind),
		"order":          s.Order,
		"duration":       s.Duration,
		"isActive":       s.IsActive,
	}
}

func toValidationError(kind model.EntityKind, id string, err error) error {
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return model.NewValidationError(kind, id, "", err.Error())
	}
	first := errs[0]
	format, args := first.Msg()
	return model.NewValidationError(kind, id, fieldPath(first.Path()), fmt.Sprintf(format, args...))
}

// fieldPath drops definition selectors such as "#Hotspot" from a CUE path.
func fieldPath(path []string) string {
	parts := make([]string, 0, len(path))
	for _, p := range path {
		if strings.HasPrefix(p, "#") {
			continue
		}
		parts = append(parts, p)
	}
	return strings.Join(parts, ".")
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}
	first := errs[0]
	if positions := errors.Positions(first); len(positions) > 0 {
		return &SchemaError{Message: first.Error(), Pos: positions[0]}
	}
	return &SchemaError{Message: first.Error()}
}
