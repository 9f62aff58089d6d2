package ws

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gardenhub/shoot-events/globals"
	"github.com/gardenhub/shoot-events/types"
	"github.com/gorilla/websocket"
	"github.com/mitchellh/mapstructure"
)

const (
	maxMessageSize  = 1 << 20
	pongWait        = 2 * time.Minute
	pingPeriod      = time.Minute
	writeWait       = 10 * time.Second
	sendChannelSize = 1000
)

// Subscription families. A connection holds at most one live subscription
// per family; a new request for the same family supersedes the old one.
type subscriptionFamily int

const (
	familyShoots subscriptionFamily = iota
	familyIssues
	familyComments
	familyCount
)

// familyState serializes the room-membership transitions of one family and
// tracks its subscription generation. Emissions carrying a stale generation
// are dropped at send time, so a slow fetch of a superseded subscription can
// never reach the client.
type familyState struct {
	mu         sync.Mutex
	generation uint64
}

// Client is a middleman between the websocket connection and the hub.
type Client struct {
	hub *Hub

	// The websocket connection.
	conn *websocket.Conn

	// Buffered channel of outbound messages.
	Send chan []byte

	id   string
	user *types.User

	families [familyCount]familyState

	ctx      context.Context
	cancel   context.CancelFunc
	doneChan chan struct{}

	// room membership, guarded by the hub lock
	rooms map[string]struct{}
}

func newClientId() string {
	var b [8]byte
	_, _ = rand.Read(b[:])
	return hex.EncodeToString(b[:])
}

func NewClient(hub *Hub, conn *websocket.Conn) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		hub:      hub,
		conn:     conn,
		Send:     make(chan []byte, sendChannelSize),
		id:       newClientId(),
		ctx:      ctx,
		cancel:   cancel,
		doneChan: make(chan struct{}),
		rooms:    make(map[string]struct{}),
	}
}

func (c *Client) Id() string {
	return c.id
}

func (c *Client) User() *types.User {
	return c.user
}

// sessionUser returns the authenticated user, or nil after reporting an
// authorization failure for the given kind. Handlers never run before
// authentication, a nil user here is an anomaly worth logging.
func (c *Client) sessionUser(kind string) *types.User {
	if c.user == nil {
		globals.AppLogger.Error("no user on connection", "client", c.id)
		c.Emit(types.EventSubscriptionError, types.SubscriptionError{Kind: kind, Code: 401, Message: "Unauthorized"})
		return nil
	}
	return c.user
}

func (c *Client) nextGeneration(family subscriptionFamily) uint64 {
	return atomic.AddUint64(&c.families[family].generation, 1)
}

func (c *Client) currentGeneration(family subscriptionFamily) uint64 {
	return atomic.LoadUint64(&c.families[family].generation)
}

// joinRoomIfCurrent joins the room unless the subscription generation has
// moved on, which means a newer request for the family superseded this one.
func (c *Client) joinRoomIfCurrent(family subscriptionFamily, generation uint64, room string) bool {
	st := &c.families[family]
	st.mu.Lock()
	defer st.mu.Unlock()
	if c.currentGeneration(family) != generation {
		return false
	}
	c.hub.JoinRoom(c, room)
	return true
}

// Emit sends one wire message to this client.
func (c *Client) Emit(event string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		globals.AppLogger.Error("could not marshal payload", "event", event, "error", err)
		return
	}
	raw, err := json.Marshal(types.WebsocketMessage{Event: event, Data: data})
	if err != nil {
		globals.AppLogger.Error("could not marshal ws message", "event", event, "error", err)
		return
	}
	select {
	case c.Send <- raw:
	case <-c.doneChan:
	}
}

// emitIfCurrent emits only while the generation is still the live
// subscription of the family.
func (c *Client) emitIfCurrent(family subscriptionFamily, generation uint64, event string, payload interface{}) bool {
	if c.currentGeneration(family) != generation {
		globals.AppLogger.Debug("dropping stale emission", "client", c.id, "event", event)
		return false
	}
	c.Emit(event, payload)
	return true
}

func (c *Client) emitError(family subscriptionFamily, generation uint64, kind string, code int, message string) {
	c.emitIfCurrent(family, generation, types.EventSubscriptionError, types.SubscriptionError{
		Kind:    kind,
		Code:    code,
		Message: message,
	})
}

// decodePayload decodes an event payload leniently: unmarshal into a map,
// then weakly decode into the typed request.
func decodePayload(data json.RawMessage, out interface{}) error {
	payload := make(map[string]interface{})
	if len(data) > 0 {
		if err := json.Unmarshal(data, &payload); err != nil {
			return err
		}
	}
	return mapstructure.WeakDecode(payload, out)
}

// ReadLoop pumps messages from the websocket connection to the subscription
// handlers.
//
// The application runs ReadLoop in a per-connection goroutine. The
// application ensures that there is at most one reader on a connection by
// executing all reads from this goroutine.
func (c *Client) ReadLoop() {
	defer func() {
		c.cancel()
		c.conn.Close()
		close(c.doneChan)
	}()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error { c.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				globals.AppLogger.Info("ws closed unexpectedly", "client", c.id, "error", err)
			}
			return
		}

		message := types.WebsocketMessage{}
		err = json.Unmarshal(raw, &message)
		if err != nil {
			globals.AppLogger.Error("could not unmarshal ws message", "client", c.id, "error", err)
			return
		}

		if !c.dispatch(message) {
			return
		}
	}
}

// dispatch routes one inbound message. It returns false when the connection
// should be torn down.
func (c *Client) dispatch(message types.WebsocketMessage) bool {
	switch message.Event {
	case types.EventSubscribeAllShoots:
		if c.hub.namespace != NamespaceShoots {
			break
		}
		req := types.SubscribeAllShootsRequest{}
		if err := decodePayload(message.Data, &req); err != nil {
			globals.AppLogger.Error("could not decode subscribeAllShoots", "client", c.id, "error", err)
			return true
		}
		go c.handleSubscribeAllShoots(req)
		return true

	case types.EventSubscribeShoots:
		if c.hub.namespace != NamespaceShoots {
			break
		}
		req := types.SubscribeShootsRequest{}
		if err := decodePayload(message.Data, &req); err != nil {
			globals.AppLogger.Error("could not decode subscribeShoots", "client", c.id, "error", err)
			return true
		}
		go c.handleSubscribeShoots(req)
		return true

	case types.EventSubscribeShoot:
		if c.hub.namespace != NamespaceShoots {
			break
		}
		req := types.SubscribeShootRequest{}
		if err := decodePayload(message.Data, &req); err != nil {
			globals.AppLogger.Error("could not decode subscribeShoot", "client", c.id, "error", err)
			return true
		}
		go c.handleSubscribeShoot(req)
		return true

	case types.EventSubscribeIssues:
		if c.hub.namespace != NamespaceJournals {
			break
		}
		go c.handleSubscribeIssues()
		return true

	case types.EventSubscribeComments:
		if c.hub.namespace != NamespaceJournals {
			break
		}
		req := types.SubscribeCommentsRequest{}
		if err := decodePayload(message.Data, &req); err != nil {
			globals.AppLogger.Error("could not decode subscribeComments", "client", c.id, "error", err)
			return true
		}
		go c.handleSubscribeComments(req)
		return true

	case types.EventUnsubscribeComments:
		if c.hub.namespace != NamespaceJournals {
			break
		}
		go c.handleUnsubscribeComments()
		return true

	case types.EventDisconnect:
		req := types.DisconnectRequest{}
		if err := decodePayload(message.Data, &req); err != nil {
			globals.AppLogger.Error("could not decode disconnect", "client", c.id, "error", err)
		}
		globals.AppLogger.Debug("client disconnected", "client", c.id, "reason", req.Reason)
		return false
	}

	globals.AppLogger.Warn("unknown event", "namespace", c.hub.namespace, "client", c.id, "event", message.Event)
	return true
}

// WriteLoop pumps messages from the hub to the websocket connection.
//
// A goroutine running WriteLoop is started for each connection. The
// application ensures that there is at most one writer to a connection by
// executing all writes from this goroutine.
func (c *Client) WriteLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case message := <-c.Send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				globals.AppLogger.Info("could not write to ws connection, exiting write loop", "client", c.id)
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				globals.AppLogger.Info("could not send ping message, exiting write loop", "client", c.id)
				return
			}

		case <-c.doneChan:
			return
		}
	}
}
