package ws

import (
	"sync"

	"github.com/gardenhub/shoot-events/types"
)

// Batch emitters accumulate the items of one snapshot stream and emit them
// as few wire messages. An emitter belongs to exactly one handler
// invocation; it is never shared across connections or across subscription
// generations. Appends may come from concurrent per-namespace fetches.

// EventsEmitter is the plain form: one buffer, one {kind, items} message per
// non-empty flush.
type EventsEmitter struct {
	mu         sync.Mutex
	kind       string
	client     *Client
	family     subscriptionFamily
	generation uint64
	items      []interface{}
}

func newEventsEmitter(client *Client, family subscriptionFamily, generation uint64, kind string) *EventsEmitter {
	return &EventsEmitter{
		kind:       kind,
		client:     client,
		family:     family,
		generation: generation,
	}
}

func (e *EventsEmitter) BatchEmitObjects(items []interface{}) {
	e.mu.Lock()
	e.items = append(e.items, items...)
	e.mu.Unlock()
}

// Flush emits one {kind, items} message if anything was appended, then
// clears the buffer. An empty flush emits nothing.
func (e *EventsEmitter) Flush() {
	e.mu.Lock()
	items := e.items
	e.items = nil
	e.mu.Unlock()
	if len(items) == 0 {
		return
	}
	e.client.emitIfCurrent(e.family, e.generation, e.kind, types.ObjectsPayload{
		Kind:  e.kind,
		Items: items,
	})
}

func (e *EventsEmitter) BatchEmitObjectsAndFlush(items []interface{}) {
	e.BatchEmitObjects(items)
	e.Flush()
}

// NamespacedBatchEmitter is the namespace-partitioned form: repeated appends
// for one namespace coalesce into a single entry, and one flush emits at
// most one message with at most one entry per namespace, in first-append
// order. The objectKeyPath is carried in the payload so clients can merge
// items by object identity; the emitter itself does not deduplicate.
type NamespacedBatchEmitter struct {
	mu            sync.Mutex
	kind          string
	client        *Client
	family        subscriptionFamily
	generation    uint64
	objectKeyPath string
	order         []string
	items         map[string][]interface{}
}

func newNamespacedBatchEmitter(client *Client, family subscriptionFamily, generation uint64, kind, objectKeyPath string) *NamespacedBatchEmitter {
	return &NamespacedBatchEmitter{
		kind:          kind,
		client:        client,
		family:        family,
		generation:    generation,
		objectKeyPath: objectKeyPath,
		items:         make(map[string][]interface{}),
	}
}

func (e *NamespacedBatchEmitter) BatchEmitObjects(items []interface{}, namespace string) {
	e.mu.Lock()
	if _, ok := e.items[namespace]; !ok {
		e.order = append(e.order, namespace)
	}
	e.items[namespace] = append(e.items[namespace], items...)
	e.mu.Unlock()
}

// Flush emits one {kind, namespaces} message if any entries exist, then
// clears. An empty flush emits nothing.
func (e *NamespacedBatchEmitter) Flush() {
	e.mu.Lock()
	order := e.order
	items := e.items
	e.order = nil
	e.items = make(map[string][]interface{})
	e.mu.Unlock()
	if len(order) == 0 {
		return
	}
	namespaces := make([]types.NamespaceObjects, 0, len(order))
	for _, namespace := range order {
		namespaces = append(namespaces, types.NamespaceObjects{
			Namespace: namespace,
			Items:     items[namespace],
		})
	}
	e.client.emitIfCurrent(e.family, e.generation, e.kind, types.NamespacedObjectsPayload{
		Kind:          e.kind,
		ObjectKeyPath: e.objectKeyPath,
		Namespaces:    namespaces,
	})
}
