package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gardenhub/shoot-events/globals"
	"github.com/gardenhub/shoot-events/types"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// HandleConnection upgrades the request and runs the connection. The first
// message must be an authenticate event carrying a bearer token; anything
// else, a failed verification or silence until the deadline ends the
// connection after a direct unauthorized message. No subscription is
// processed before authentication succeeds.
func (h *Hub) HandleConnection(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		globals.AppLogger.Error("could not upgrade connection", "namespace", h.namespace, "error", err)
		return
	}
	client := NewClient(h, conn)

	user, err := h.authenticate(client)
	if err != nil {
		globals.AppLogger.Info("ws authentication failed", "namespace", h.namespace, "client", client.id, "error", err)
		_ = client.writeDirect(types.EventUnauthorized, types.UnauthorizedPayload{Message: "Unauthorized"})
		client.cancel()
		conn.Close()
		return
	}
	client.user = user
	if err := client.writeDirect(types.EventAuthenticated, types.User{Id: user.Id, Email: user.Email}); err != nil {
		globals.AppLogger.Error("could not confirm authentication", "namespace", h.namespace, "client", client.id, "error", err)
		client.cancel()
		conn.Close()
		return
	}

	h.register(client)
	defer h.unregister(client)

	go client.WriteLoop()
	client.ReadLoop()
}

// authenticate reads exactly one message under the authentication deadline
// and verifies its credential. Verification gets its own deadline of the
// same length, so a stalling provider cannot hold the connection open.
func (h *Hub) authenticate(c *Client) (*types.User, error) {
	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(h.authTimeout)); err != nil {
		return nil, err
	}
	_, raw, err := c.conn.ReadMessage()
	if err != nil {
		return nil, err
	}
	message := types.WebsocketMessage{}
	if err := json.Unmarshal(raw, &message); err != nil {
		return nil, err
	}
	if message.Event != types.EventAuthenticate {
		return nil, types.NewStatusError(http.StatusUnauthorized, "expected authenticate event, got "+message.Event)
	}
	req := types.AuthenticateRequest{}
	if err := decodePayload(message.Data, &req); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(c.ctx, h.authTimeout)
	defer cancel()
	return h.authenticator.Authenticate(ctx, req.Credential())
}

// writeDirect writes one wire message on the connection synchronously. Only
// valid before the write loop has started.
func (c *Client) writeDirect(event string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(types.WebsocketMessage{Event: event, Data: data})
	if err != nil {
		return err
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, raw)
}
