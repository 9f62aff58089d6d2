package ws

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gardenhub/shoot-events/auth"
	"github.com/gardenhub/shoot-events/globals"
	"github.com/gardenhub/shoot-events/types"
)

const publishChannelSize = 1000

// Protocol namespaces. Each is served by its own hub with its own
// authentication.
const (
	NamespaceShoots   = "shoots"
	NamespaceJournals = "journals"
)

type roomMessage struct {
	room string
	data []byte
}

// Hub owns the connections and room membership of one protocol namespace.
// Snapshot traffic goes from the subscription handlers straight to the
// requesting client; incremental watch traffic is published into rooms and
// fanned out here.
type Hub struct {
	namespace string

	// Registered clients.
	clients map[*Client]struct{}

	// Room membership, both directions. A client's own rooms set lives on
	// the client but is guarded by this hub's lock.
	rooms map[string]map[*Client]struct{}

	publish chan roomMessage

	authenticator auth.Authenticator
	authTimeout   time.Duration
	services      Services

	// mutex for manipulating clients and rooms
	sync.RWMutex
}

func NewHub(namespace string, authenticator auth.Authenticator, authTimeout time.Duration, services Services) *Hub {
	return &Hub{
		namespace:     namespace,
		clients:       make(map[*Client]struct{}),
		rooms:         make(map[string]map[*Client]struct{}),
		publish:       make(chan roomMessage, publishChannelSize),
		authenticator: authenticator,
		authTimeout:   authTimeout,
		services:      services,
	}
}

func (h *Hub) Namespace() string {
	return h.namespace
}

// NoClients returns the number of clients registered.
func (h *Hub) NoClients() int {
	h.RLock()
	defer h.RUnlock()
	return len(h.clients)
}

// RoomSize returns the number of members of a room.
func (h *Hub) RoomSize(room string) int {
	h.RLock()
	defer h.RUnlock()
	return len(h.rooms[room])
}

// Publish marshals one wire message and fans it out to every member of the
// room. Fan-out is asynchronous; a client with a full send buffer misses the
// message (there is no guaranteed delivery, clients re-subscribe to
// recover).
func (h *Hub) Publish(room, event string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(types.WebsocketMessage{Event: event, Data: data})
	if err != nil {
		return err
	}
	h.publish <- roomMessage{room: room, data: raw}
	return nil
}

// Run is the hub fan-out loop. Per-room delivery order follows publish
// order because there is exactly one loop per hub.
func (h *Hub) Run() {
	for msg := range h.publish {
		h.RLock()
		for client := range h.rooms[msg.room] {
			select {
			case client.Send <- msg.data:
			default:
				globals.AppLogger.Warn("send buffer full, dropping room message",
					"namespace", h.namespace, "client", client.id, "room", msg.room)
			}
		}
		h.RUnlock()
	}
}

// register adds the client and joins it to its implicit identity room.
func (h *Hub) register(c *Client) {
	h.Lock()
	h.clients[c] = struct{}{}
	h.Unlock()
	h.JoinRoom(c, c.id)
	globals.AppLogger.Debug("client registered", "namespace", h.namespace, "client", c.id)
}

// unregister removes the client and clears all of its room membership. The
// rooms set is owned by the hub, so nothing dangles after disconnect.
func (h *Hub) unregister(c *Client) {
	h.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		for room := range c.rooms {
			h.removeFromRoomLocked(c, room)
		}
	}
	h.Unlock()
	globals.AppLogger.Debug("client unregistered", "namespace", h.namespace, "client", c.id)
}

func (h *Hub) removeFromRoomLocked(c *Client, room string) {
	delete(c.rooms, room)
	members, ok := h.rooms[room]
	if !ok {
		return
	}
	delete(members, c)
	if len(members) == 0 {
		delete(h.rooms, room)
	}
}

// JoinRoom adds room membership, idempotent if already a member.
func (h *Hub) JoinRoom(c *Client, room string) {
	h.Lock()
	defer h.Unlock()
	if _, ok := c.rooms[room]; ok {
		return
	}
	members, ok := h.rooms[room]
	if !ok {
		members = make(map[*Client]struct{})
		h.rooms[room] = members
	}
	members[c] = struct{}{}
	c.rooms[room] = struct{}{}
	globals.AppLogger.Debug("client subscribed to room", "namespace", h.namespace, "client", c.id, "room", room)
}

// LeaveRooms removes membership from every room satisfying the predicate.
// The client's implicit identity room is always kept.
func (h *Hub) LeaveRooms(c *Client, predicate func(room string) bool) {
	h.Lock()
	defer h.Unlock()
	for room := range c.rooms {
		if room == c.id {
			continue
		}
		if !predicate(room) {
			continue
		}
		globals.AppLogger.Debug("client leaving room", "namespace", h.namespace, "client", c.id, "room", room)
		h.removeFromRoomLocked(c, room)
	}
}
