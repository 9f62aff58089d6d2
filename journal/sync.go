package journal

import (
	"context"
	"time"

	"github.com/gardenhub/shoot-events/globals"
	"github.com/gardenhub/shoot-events/types"
	"github.com/robfig/cron/v3"
)

const syncEventChannelSize = 1000

// IssueSource is the upstream the cache is synced from. The persistence
// store implements it.
type IssueSource interface {
	ListIssues(ctx context.Context) ([]types.Issue, error)
}

// Syncer refreshes the cache from the upstream on a cron schedule and
// publishes the resulting issue change events for the watch layer.
type Syncer struct {
	cache  *Cache
	source IssueSource
	spec   string
	events chan types.WatchEvent
	cron   *cron.Cron
}

func NewSyncer(cache *Cache, source IssueSource, spec string) *Syncer {
	return &Syncer{
		cache:  cache,
		source: source,
		spec:   spec,
		events: make(chan types.WatchEvent, syncEventChannelSize),
	}
}

// Events is the issue change feed. Consumed by the journal watch source.
func (s *Syncer) Events() <-chan types.WatchEvent {
	return s.events
}

// Start performs one initial sync, then schedules periodic syncs.
func (s *Syncer) Start() error {
	if err := s.Sync(context.Background()); err != nil {
		globals.AppLogger.Error("initial journal sync failed", "error", err)
	}
	s.cron = cron.New(cron.WithLocation(time.UTC), cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)))
	_, err := s.cron.AddFunc(s.spec, func() {
		if err := s.Sync(context.Background()); err != nil {
			globals.AppLogger.Error("journal sync failed", "error", err)
		}
	})
	if err != nil {
		return err
	}
	s.cron.Start()
	return nil
}

func (s *Syncer) Stop() {
	if s.cron != nil {
		s.cron.Stop()
	}
}

// Sync reconciles the cache against the upstream issue list.
func (s *Syncer) Sync(ctx context.Context) error {
	issues, err := s.source.ListIssues(ctx)
	if err != nil {
		return err
	}
	changes, err := s.cache.Replace(issues)
	if err != nil {
		return err
	}
	for _, event := range changes {
		s.Publish(event)
	}
	return nil
}

// Publish pushes one externally produced change event into the feed, f.e. a
// comment stored through the ingestion endpoint. Non-blocking, a full
// channel drops the event.
func (s *Syncer) Publish(event types.WatchEvent) {
	select {
	case s.events <- event:
	default:
		globals.AppLogger.Warn("journal event channel full, dropping event")
	}
}
