package editor

import (
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/roach88/hotspot/internal/model"
)

// EventType names a state transition observers can subscribe to.
type EventType string

const (
	EventSlideChanged            EventType = "slideChanged"
	EventHotspotCreated          EventType = "hotspotCreated"
	EventHotspotUpdated          EventType = "hotspotUpdated"
	EventHotspotPositionChanged  EventType = "hotspotPositionChanged"
	EventHotspotDeleted          EventType = "hotspotDeleted"
	EventHotspotSelectionChanged EventType = "hotspotSelectionChanged"
	EventHotspotsReordered       EventType = "hotspotsReordered"
	EventSlideAdded              EventType = "slideAdded"
	EventSlideUpdated            EventType = "slideUpdated"
	EventSlideDeleted            EventType = "slideDeleted"
	EventSlidesReordered         EventType = "slidesReordered"
	EventSyncStateChanged        EventType = "syncStateChanged"
)

// Event is one notification on the bus. Payload holds one of the *Payload
// types below, by value.
type Event struct {
	Type      EventType `json:"type"`
	ProjectID string    `json:"projectId"`
	SlideID   string    `json:"slideId,omitempty"`
	Time      time.Time `json:"time"`
	Payload   any       `json:"payload"`
}

// SlideChangedPayload accompanies EventSlideChanged.
type SlideChangedPayload struct {
	Previous string `json:"previous"`
	Current  string `json:"current"`
	// ClearedSelection is the hotspot that was selected before the switch.
	ClearedSelection string `json:"clearedSelection,omitempty"`
}

// HotspotCreatedPayload accompanies EventHotspotCreated.
type HotspotCreatedPayload struct {
	Hotspot model.Hotspot `json:"hotspot"`
}

// HotspotUpdatedPayload accompanies EventHotspotUpdated.
type HotspotUpdatedPayload struct {
	Before model.Hotspot `json:"before"`
	After  model.Hotspot `json:"after"`
}

// HotspotPositionChangedPayload accompanies EventHotspotPositionChanged.
type HotspotPositionChangedPayload struct {
	HotspotID string         `json:"hotspotId"`
	Before    model.Position `json:"before"`
	After     model.Position `json:"after"`
}

// HotspotDeletedPayload accompanies EventHotspotDeleted.
type HotspotDeletedPayload struct {
	Hotspot     model.Hotspot `json:"hotspot"`
	WasSelected bool          `json:"wasSelected"`
}

// HotspotSelectionChangedPayload accompanies EventHotspotSelectionChanged.
type HotspotSelectionChangedPayload struct {
	Previous string `json:"previous"`
	Current  string `json:"current"`
}

// HotspotsReorderedPayload accompanies EventHotspotsReordered.
type HotspotsReorderedPayload struct {
	HotspotID string          `json:"hotspotId"`
	From      int             `json:"from"`
	To        int             `json:"to"`
	Hotspots  []model.Hotspot `json:"hotspots"`
}

// SlideAddedPayload accompanies EventSlideAdded.
type SlideAddedPayload struct {
	Slide model.Slide `json:"slide"`
}

// SlideUpdatedPayload accompanies EventSlideUpdated.
type SlideUpdatedPayload struct {
	Before model.Slide `json:"before"`
	After  model.Slide `json:"after"`
}

// SlideDeletedPayload accompanies EventSlideDeleted.
type SlideDeletedPayload struct {
	Slide model.Slide `json:"slide"`
	// Hotspots is the number of hotspots removed with the slide.
	Hotspots int `json:"hotspots"`
}

// SlidesReorderedPayload accompanies EventSlidesReordered.
type SlidesReorderedPayload struct {
	SlideID string        `json:"slideId"`
	From    int           `json:"from"`
	To      int           `json:"to"`
	Slides  []model.Slide `json:"slides"`
}

// SyncState is the persistence state of one flush scope.
type SyncState string

const (
	SyncSaving SyncState = "saving"
	SyncSaved  SyncState = "saved"
	SyncFailed SyncState = "failed"
)

// SyncStateChangedPayload accompanies EventSyncStateChanged. It is published
// by the synchronization policy, not by the Store.
type SyncStateChangedPayload struct {
	Scope   string    `json:"scope"`
	State   SyncState `json:"state"`
	Pending int       `json:"pending"`
	Token   string    `json:"token"`
	Error   string    `json:"error,omitempty"`
}

// Handler receives events. Handlers run synchronously on the publishing
// goroutine and must not block for long.
type Handler func(Event)

// Subscription identifies one registered handler.
type Subscription struct {
	id uint64
}

type subscriber struct {
	id      uint64
	typ     EventType // empty for SubscribeAll
	handler Handler
}

// Bus is a typed publish/subscribe hub.
//
// Delivery is synchronous and in registration order. A handler that panics
// is recovered and logged; the remaining handlers still run.
//
// Thread-safety: Bus is safe for concurrent use. Handlers may subscribe and
// unsubscribe from inside a handler; the change applies to the next Publish.
type Bus struct {
	mu     sync.RWMutex
	next   uint64
	subs   []subscriber
	logger *slog.Logger
}

// NewBus creates an empty bus. A nil logger means slog.Default().
func NewBus(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{logger: logger}
}

// Subscribe registers h for events of type t.
func (b *Bus) Subscribe(t EventType, h Handler) Subscription {
	return b.add(t, h)
}

// SubscribeAll registers h for every event.
func (b *Bus) SubscribeAll(h Handler) Subscription {
	return b.add("", h)
}

func (b *Bus) add(t EventType, h Handler) Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.next++
	b.subs = append(b.subs, subscriber{id: b.next, typ: t, handler: h})
	return Subscription{id: b.next}
}

// Unsubscribe removes the handler registered under s. It returns false if
// s was already removed.
func (b *Bus) Unsubscribe(s Subscription) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, sub := range b.subs {
		if sub.id == s.id {
			b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
			return true
		}
	}
	return false
}

// Len returns the number of registered handlers.
func (b *Bus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Publish delivers e to every matching handler.
func (b *Bus) Publish(e Event) {
	b.mu.RLock()
	targets := make([]subscriber, 0, len(b.subs))
	for _, sub := range b.subs {
		if sub.typ == "" || sub.typ == e.Type {
			targets = append(targets, sub)
		}
	}
	b.mu.RUnlock()

	for _, sub := range targets {
		b.deliver(sub, e)
	}
}

func (b *Bus) deliver(sub subscriber, e Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event handler panicked",
				"event", string(e.Type),
				"subscription", sub.id,
				"panic", r,
				"stack", string(debug.Stack()),
			)
		}
	}()
	sub.handler(e)
}
