package shoots

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/gardenhub/shoot-events/filter"
	"github.com/gardenhub/shoot-events/globals"
	"github.com/gardenhub/shoot-events/types"
	"github.com/mitchellh/hashstructure/v2"
)

const eventChannelSize = 1000

// Store is the in-memory shoot registry. Whatever ingests cluster state
// (importers, future watch clients) writes through Apply/Delete; the
// subscription handlers read through List/Read; the shoots watch source
// consumes Events.
type Store struct {
	mu     sync.RWMutex
	shoots map[string]map[string]types.Shoot // namespace -> name -> shoot
	hashes map[string]uint64                 // namespace/name -> revision hash
	events chan types.WatchEvent
}

func NewStore() *Store {
	return &Store{
		shoots: make(map[string]map[string]types.Shoot),
		hashes: make(map[string]uint64),
		events: make(chan types.WatchEvent, eventChannelSize),
	}
}

func objectKey(namespace, name string) string {
	return namespace + "/" + name
}

// List returns the shoots of one namespace, or of all namespaces if
// namespace is empty. A non-nil fleet filter restricts the result to
// matching shoots. The user is accepted for contract parity with remote
// listing services; visibility scoping happens in the subscription handlers.
func (s *Store) List(ctx context.Context, user *types.User, namespace string, flt *filter.Filter) ([]types.Shoot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]types.Shoot, 0)
	appendNamespace := func(ns map[string]types.Shoot) {
		for _, shoot := range ns {
			if flt != nil && !flt.Match(shoot) {
				continue
			}
			result = append(result, shoot)
		}
	}
	if namespace != "" {
		appendNamespace(s.shoots[namespace])
		return result, nil
	}
	for _, ns := range s.shoots {
		appendNamespace(ns)
	}
	return result, nil
}

// Read returns one shoot, or a StatusError with code 404.
func (s *Store) Read(ctx context.Context, user *types.User, name, namespace string) (types.Shoot, error) {
	if err := ctx.Err(); err != nil {
		return types.Shoot{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	shoot, ok := s.shoots[namespace][name]
	if !ok {
		return types.Shoot{}, types.NewStatusError(http.StatusNotFound, fmt.Sprintf("shoot %s/%s not found", namespace, name))
	}
	return shoot, nil
}

// Apply inserts or updates a shoot. Updates that do not change the object
// (by revision hash) are dropped before fan-out.
func (s *Store) Apply(shoot types.Shoot) error {
	hash, err := hashstructure.Hash(shoot, hashstructure.FormatV2, nil)
	if err != nil {
		return err
	}
	key := objectKey(shoot.Metadata.Namespace, shoot.Metadata.Name)

	s.mu.Lock()
	old, known := s.hashes[key]
	if known && old == hash {
		s.mu.Unlock()
		return nil
	}
	ns, ok := s.shoots[shoot.Metadata.Namespace]
	if !ok {
		ns = make(map[string]types.Shoot)
		s.shoots[shoot.Metadata.Namespace] = ns
	}
	ns[shoot.Metadata.Name] = shoot
	s.hashes[key] = hash
	s.mu.Unlock()

	eventType := types.WatchEventModified
	if !known {
		eventType = types.WatchEventAdded
	}
	s.publish(types.WatchEvent{Type: eventType, Object: shoot})
	return nil
}

// Delete removes a shoot if present.
func (s *Store) Delete(namespace, name string) {
	key := objectKey(namespace, name)

	s.mu.Lock()
	shoot, ok := s.shoots[namespace][name]
	if !ok {
		s.mu.Unlock()
		return
	}
	delete(s.shoots[namespace], name)
	if len(s.shoots[namespace]) == 0 {
		delete(s.shoots, namespace)
	}
	delete(s.hashes, key)
	s.mu.Unlock()

	s.publish(types.WatchEvent{Type: types.WatchEventDeleted, Object: shoot})
}

// Events is the change feed consumed by the shoots watch source.
func (s *Store) Events() <-chan types.WatchEvent {
	return s.events
}

func (s *Store) publish(event types.WatchEvent) {
	select {
	case s.events <- event:
	default:
		globals.AppLogger.Warn("shoot event channel full, dropping event")
	}
}
