// Package watches attaches per-resource-kind change sources to the
// connection layer. Attached sources publish change events directly into
// rooms; they never pass through the subscription handlers.
package watches

import (
	"context"

	"github.com/gardenhub/shoot-events/globals"
)

// AttachFunc attaches one watch source. It returns once the source is
// running; the source itself stops when the context is cancelled.
type AttachFunc func(ctx context.Context) error

type registration struct {
	kind   string
	attach AttachFunc
}

// Dispatcher holds the registered watch sources and attaches them at
// startup. A source failing to attach is logged with its kind and does not
// prevent the remaining sources from attaching.
type Dispatcher struct {
	registrations []registration
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{}
}

func (d *Dispatcher) Register(kind string, attach AttachFunc) {
	d.registrations = append(d.registrations, registration{kind: kind, attach: attach})
}

func (d *Dispatcher) Start(ctx context.Context) {
	for _, reg := range d.registrations {
		if err := reg.attach(ctx); err != nil {
			globals.AppLogger.Error("failed to attach watch", "kind", reg.kind, "error", err)
			continue
		}
		globals.AppLogger.Info("watch attached", "kind", reg.kind)
	}
}
