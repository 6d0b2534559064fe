package persist

import (
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"time"

	"github.com/roach88/hotspot/internal/model"
	"github.com/roach88/hotspot/internal/rowstore"
)

// LayoutVersion is the version of the column layouts below. It is recorded
// in the meta sheet of every document; a document written by a newer layout
// is refused rather than misread.
const LayoutVersion = 1

// Layout is the bidirectional mapping between a typed Record and a
// positional row of one sheet.
type Layout struct {
	Kind    model.EntityKind
	Columns []string
	index   map[string]int
}

func newLayout(kind model.EntityKind, columns ...string) *Layout {
	l := &Layout{Kind: kind, Columns: columns, index: make(map[string]int, len(columns))}
	for i, c := range columns {
		if _, dup := l.index[c]; dup {
			panic(fmt.Sprintf("persist: duplicate column %q in %s layout", c, kind))
		}
		l.index[c] = i
	}
	if columns[rowstore.IDColumn] != "id" {
		panic(fmt.Sprintf("persist: %s layout must start with id", kind))
	}
	return l
}

// Column returns the index of name. Panics on an unknown column: layouts are
// fixed at compile time.
func (l *Layout) Column(name string) int {
	i, ok := l.index[name]
	if !ok {
		panic(fmt.Sprintf("persist: no column %q in %s layout", name, l.Kind))
	}
	return i
}

// Encode lays rec out in column order. Columns missing from rec are nil.
func (l *Layout) Encode(rec Record) []any {
	row := make([]any, len(l.Columns))
	for i, c := range l.Columns {
		row[i] = rec[c]
	}
	return row
}

// Decode names the cells of row. Cells past the end of a short row are
// absent from the record; extra trailing cells are ignored.
func (l *Layout) Decode(row []any) Record {
	rec := make(Record, len(l.Columns))
	for i, c := range l.Columns {
		if i < len(row) {
			rec[c] = row[i]
		}
	}
	return rec
}

// Matches reports whether header is exactly this layout's column list.
func (l *Layout) Matches(header []string) bool {
	return slices.Equal(header, l.Columns)
}

// Persisted layouts, in fixed column order.
var (
	ProjectLayout = newLayout(model.KindProject,
		"id", "name", "description", "status", "settings", "analytics",
		"createdAt", "updatedAt", "createdBy", "sharedWith")

	SlideLayout = newLayout(model.KindSlide,
		"id", "projectId", "name", "backgroundUrl", "backgroundType",
		"order", "duration", "isActive", "createdAt", "updatedAt")

	HotspotLayout = newLayout(model.KindHotspot,
		"id", "slideId", "name", "color", "size", "x", "y", "pulseAnimation",
		"triggerType", "eventType", "tooltipContent", "tooltipPosition",
		"zoomLevel", "panOffsetX", "panOffsetY", "bannerText", "isVisible",
		"order", "createdAt", "updatedAt")

	AnalyticsLayout = newLayout(model.KindAnalytics,
		"id", "projectId", "slideId", "hotspotId", "eventType", "timestamp",
		"sessionId", "metadata")
)

// layouts lists every entity sheet in bootstrap order.
var layouts = []*Layout{ProjectLayout, SlideLayout, HotspotLayout, AnalyticsLayout}

// LayoutFor returns the layout of kind.
func LayoutFor(kind model.EntityKind) (*Layout, error) {
	for _, l := range layouts {
		if l.Kind == kind {
			return l, nil
		}
	}
	return nil, fmt.Errorf("unknown entity kind %q", kind)
}

// Record is one row keyed by column name.
type Record map[string]any

// String returns the cell as text, or def when absent or empty.
func (r Record) String(name, def string) string {
	v, ok := r[name]
	if !ok || v == nil {
		return def
	}
	s := rowstore.CellString(v)
	if s == "" {
		return def
	}
	return s
}

// Float returns the cell as a number, or def when absent or unparsable.
func (r Record) Float(name string, def float64) float64 {
	switch v := r[name].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case string:
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return def
		}
		return f
	default:
		return def
	}
}

// Int returns the cell as an integer, or def when absent or unparsable.
func (r Record) Int(name string, def int) int {
	return int(r.Float(name, float64(def)))
}

// Bool returns the cell as a boolean, or def when absent or unparsable.
func (r Record) Bool(name string, def bool) bool {
	switch v := r[name].(type) {
	case bool:
		return v
	case string:
		b, err := strconv.ParseBool(v)
		if err != nil {
			return def
		}
		return b
	default:
		return def
	}
}

// Time returns the cell parsed as RFC 3339, or the zero time.
func (r Record) Time(name string) time.Time {
	s := r.String(name, "")
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// Map returns the cell decoded as a JSON object, or an empty map.
func (r Record) Map(name string) map[string]any {
	out := map[string]any{}
	s := r.String(name, "")
	if s == "" {
		return out
	}
	if err := json.Unmarshal([]byte(s), &out); err != nil || out == nil {
		return map[string]any{}
	}
	return out
}

// Strings returns the cell decoded as a JSON string array, or nil.
func (r Record) Strings(name string) []string {
	s := r.String(name, "")
	if s == "" {
		return nil
	}
	var out []string
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return nil
	}
	return out
}

func timeCell(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func jsonCell(v any) (string, error) {
	data, err := model.MarshalCanonical(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
