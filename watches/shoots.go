package watches

import (
	"context"

	"github.com/gardenhub/shoot-events/filter"
	"github.com/gardenhub/shoot-events/globals"
	"github.com/gardenhub/shoot-events/types"
	"github.com/gardenhub/shoot-events/ws"
)

const (
	kindShoots = "shoots"
	kindShoot  = "shoot"
)

// ShootsSource routes shoot change events from the registry into the fleet
// rooms, the filtered fleet rooms and the single-resource room of the
// affected shoot.
type ShootsSource struct {
	hub     *ws.Hub
	events  <-chan types.WatchEvent
	filters filter.Filters
}

func NewShootsSource(hub *ws.Hub, events <-chan types.WatchEvent, filters filter.Filters) *ShootsSource {
	return &ShootsSource{hub: hub, events: events, filters: filters}
}

func (s *ShootsSource) Attach(ctx context.Context) error {
	go s.run(ctx)
	return nil
}

func (s *ShootsSource) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event := <-s.events:
			shoot, ok := event.Object.(types.Shoot)
			if !ok {
				globals.AppLogger.Error("unexpected object on shoot event feed", "type", event.Type)
				continue
			}
			s.route(event.Type, shoot)
		}
	}
}

// route publishes one change event. Members of a filtered room whose filter
// no longer matches the changed object receive the event as DELETED, so
// their view drops the object instead of going stale.
func (s *ShootsSource) route(eventType string, shoot types.Shoot) {
	namespace := shoot.Metadata.Namespace
	name := shoot.Metadata.Name

	s.publish(ws.ShootsRoom(namespace, ""), kindShoots, eventType, shoot)
	for _, flt := range s.filters {
		room := ws.ShootsRoom(namespace, flt.Name)
		if eventType != types.WatchEventDeleted && !flt.Match(shoot) {
			s.publish(room, kindShoots, types.WatchEventDeleted, shoot)
			continue
		}
		s.publish(room, kindShoots, eventType, shoot)
	}
	s.publish(ws.ShootRoom(namespace, name), kindShoot, eventType, shoot)
}

func (s *ShootsSource) publish(room, kind, eventType string, shoot types.Shoot) {
	err := s.hub.Publish(room, kind, types.ObjectEventPayload{
		Kind:   kind,
		Type:   eventType,
		Object: shoot,
	})
	if err != nil {
		globals.AppLogger.Error("failed to publish shoot event", "room", room, "error", err)
	}
}
