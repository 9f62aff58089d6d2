package watches

import (
	"context"

	"github.com/gardenhub/shoot-events/globals"
	"github.com/gardenhub/shoot-events/journal"
	"github.com/gardenhub/shoot-events/types"
	"github.com/gardenhub/shoot-events/ws"
)

const (
	kindIssues   = "issues"
	kindComments = "comments"
)

// JournalSource routes journal change events into the issues room and the
// per-resource comment rooms. Issue events carry the issue itself; comment
// events carry the comment and are routed via the cached issue the comment
// belongs to.
type JournalSource struct {
	hub    *ws.Hub
	cache  *journal.Cache
	events <-chan types.WatchEvent
}

func NewJournalSource(hub *ws.Hub, cache *journal.Cache, events <-chan types.WatchEvent) *JournalSource {
	return &JournalSource{hub: hub, cache: cache, events: events}
}

func (s *JournalSource) Attach(ctx context.Context) error {
	go s.run(ctx)
	return nil
}

func (s *JournalSource) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event := <-s.events:
			switch object := event.Object.(type) {
			case types.Issue:
				s.publish(ws.IssuesRoom, kindIssues, event.Type, object)
			case types.Comment:
				s.routeComment(event.Type, object)
			default:
				globals.AppLogger.Error("unexpected object on journal event feed", "type", event.Type)
			}
		}
	}
}

func (s *JournalSource) routeComment(eventType string, comment types.Comment) {
	issue, found, err := s.cache.GetIssue(comment.Number)
	if err != nil {
		globals.AppLogger.Error("failed to resolve issue for comment", "issue", comment.Number, "error", err)
		return
	}
	if !found {
		globals.AppLogger.Debug("dropping comment event for unknown issue", "issue", comment.Number)
		return
	}
	s.publish(ws.CommentsRoom(issue.Namespace, issue.Name), kindComments, eventType, comment)
}

func (s *JournalSource) publish(room, kind, eventType string, object interface{}) {
	err := s.hub.Publish(room, kind, types.ObjectEventPayload{
		Kind:   kind,
		Type:   eventType,
		Object: object,
	})
	if err != nil {
		globals.AppLogger.Error("failed to publish journal event", "room", room, "error", err)
	}
}
