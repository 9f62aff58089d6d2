package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gardenhub/shoot-events/types"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
)

type fakeAuthenticator struct {
	user *types.User
	err  error
}

func (f *fakeAuthenticator) Authenticate(ctx context.Context, bearer string) (*types.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	if bearer == "" {
		return nil, fmt.Errorf("no bearer token")
	}
	return f.user, nil
}

func dialTestHub(t *testing.T, hub *Hub) *websocket.Conn {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(hub.HandleConnection))
	t.Cleanup(server.Close)
	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	return conn
}

func writeEvent(t *testing.T, conn *websocket.Conn, event string, payload interface{}) {
	t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatal(err)
	}
	err = conn.WriteJSON(types.WebsocketMessage{Event: event, Data: data})
	if err != nil {
		t.Fatal(err)
	}
}

func readEvent(t *testing.T, conn *websocket.Conn) types.WebsocketMessage {
	t.Helper()
	message := types.WebsocketMessage{}
	if err := conn.ReadJSON(&message); err != nil {
		t.Fatal(err)
	}
	return message
}

func TestConnectionAuthenticationAndSubscription(t *testing.T) {
	user := &types.User{Id: "alice@example.org", Email: "alice@example.org"}
	hub := NewHub(NamespaceJournals, &fakeAuthenticator{user: user}, time.Second, journalServices(true))
	go hub.Run()

	conn := dialTestHub(t, hub)
	writeEvent(t, conn, types.EventAuthenticate, types.AuthenticateRequest{Bearer: "token"})

	message := readEvent(t, conn)
	assert.Equal(t, types.EventAuthenticated, message.Event)
	ack := types.User{}
	if err := json.Unmarshal(message.Data, &ack); err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, "alice@example.org", ack.Id)

	writeEvent(t, conn, types.EventSubscribeIssues, nil)
	message = readEvent(t, conn)
	assert.Equal(t, "issues", message.Event)
	payload := types.ObjectsPayload{}
	if err := json.Unmarshal(message.Data, &payload); err != nil {
		t.Fatal(err)
	}
	assert.Len(t, payload.Items, 2)
}

func TestConnectionRejectsBadCredential(t *testing.T) {
	hub := NewHub(NamespaceJournals, &fakeAuthenticator{err: fmt.Errorf("bad token")}, time.Second, journalServices(true))
	go hub.Run()

	conn := dialTestHub(t, hub)
	writeEvent(t, conn, types.EventAuthenticate, types.AuthenticateRequest{Bearer: "bad"})

	message := readEvent(t, conn)
	assert.Equal(t, types.EventUnauthorized, message.Event)

	// the connection is closed right after the rejection
	_ = conn.SetReadDeadline(time.Now().Add(time.Second))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)
}

func TestConnectionRejectsNonAuthenticateFirstMessage(t *testing.T) {
	user := &types.User{Id: "alice@example.org"}
	hub := NewHub(NamespaceJournals, &fakeAuthenticator{user: user}, time.Second, journalServices(true))
	go hub.Run()

	conn := dialTestHub(t, hub)
	writeEvent(t, conn, types.EventSubscribeIssues, nil)

	message := readEvent(t, conn)
	assert.Equal(t, types.EventUnauthorized, message.Event)
}

type blockingAuthenticator struct{}

func (blockingAuthenticator) Authenticate(ctx context.Context, bearer string) (*types.User, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestVerificationBoundedByAuthTimeout(t *testing.T) {
	hub := NewHub(NamespaceJournals, blockingAuthenticator{}, 200*time.Millisecond, journalServices(true))
	go hub.Run()

	conn := dialTestHub(t, hub)
	writeEvent(t, conn, types.EventAuthenticate, types.AuthenticateRequest{Bearer: "token"})

	// a provider that never answers must still yield a rejection within
	// the configured window
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	message := readEvent(t, conn)
	assert.Equal(t, types.EventUnauthorized, message.Event)
}

func TestConnectionAuthenticationTimeout(t *testing.T) {
	user := &types.User{Id: "alice@example.org"}
	hub := NewHub(NamespaceJournals, &fakeAuthenticator{user: user}, 100*time.Millisecond, journalServices(true))
	go hub.Run()

	conn := dialTestHub(t, hub)
	// say nothing and wait for the server to give up
	message := readEvent(t, conn)
	assert.Equal(t, types.EventUnauthorized, message.Event)
}
