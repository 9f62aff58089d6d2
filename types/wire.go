package types

import "encoding/json"

// Inbound event names. These are a fixed protocol contract shared with the
// dashboard frontend, do not rename.
const (
	EventAuthenticate        = "authenticate"
	EventSubscribeAllShoots  = "subscribeAllShoots"
	EventSubscribeShoots     = "subscribeShoots"
	EventSubscribeShoot      = "subscribeShoot"
	EventSubscribeIssues     = "subscribeIssues"
	EventSubscribeComments   = "subscribeComments"
	EventUnsubscribeComments = "unsubscribeComments"
	EventDisconnect          = "disconnect"
)

// Outbound event names.
const (
	EventAuthenticated         = "authenticated"
	EventUnauthorized          = "unauthorized"
	EventSubscriptionError     = "subscription_error"
	EventBatchNamespacedDone   = "batchNamespacedEventsDone"
	EventShootSubscriptionDone = "shootSubscriptionDone"
)

// JSON-serialized WebsocketMessage is what is actually sent via the Websocket connection
type WebsocketMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// The different subscription requests transferred from the client to here.

// AuthenticateRequest carries the bearer credential. Some clients send it
// as "token", both are accepted.
type AuthenticateRequest struct {
	Bearer string `json:"bearer" mapstructure:"bearer"`
	Token  string `json:"token" mapstructure:"token"`
}

func (r AuthenticateRequest) Credential() string {
	if r.Bearer != "" {
		return r.Bearer
	}
	return r.Token
}

// NamespaceSubscription selects one namespace of a fleet subscription,
// optionally qualified by a named fleet filter.
type NamespaceSubscription struct {
	Namespace string `json:"namespace" mapstructure:"namespace"`
	Filter    string `json:"filter" mapstructure:"filter"`
}

type SubscribeShootsRequest struct {
	Namespaces []NamespaceSubscription `json:"namespaces" mapstructure:"namespaces"`
}

type SubscribeAllShootsRequest struct {
	Filter string `json:"filter" mapstructure:"filter"`
}

type SubscribeShootRequest struct {
	Name      string `json:"name" mapstructure:"name"`
	Namespace string `json:"namespace" mapstructure:"namespace"`
}

type SubscribeCommentsRequest struct {
	Name      string `json:"name" mapstructure:"name"`
	Namespace string `json:"namespace" mapstructure:"namespace"`
}

type DisconnectRequest struct {
	Reason string `json:"reason" mapstructure:"reason"`
}

// Outbound payloads.

type UnauthorizedPayload struct {
	Message string `json:"message"`
}

type SubscriptionError struct {
	Kind    string `json:"kind"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// ObjectsPayload is the plain batch form: all accumulated items of one
// stream in a single message.
type ObjectsPayload struct {
	Kind  string        `json:"kind"`
	Items []interface{} `json:"items"`
}

// NamespaceObjects is one namespace partition of a NamespacedObjectsPayload.
type NamespaceObjects struct {
	Namespace string        `json:"namespace"`
	Items     []interface{} `json:"items"`
}

// NamespacedObjectsPayload is the namespace-partitioned batch form. The
// ObjectKeyPath names the path of the per-object identity key so clients
// can merge items into their local state.
type NamespacedObjectsPayload struct {
	Kind          string             `json:"kind"`
	ObjectKeyPath string             `json:"objectKeyPath,omitempty"`
	Namespaces    []NamespaceObjects `json:"namespaces"`
}

// ObjectEventPayload is one incremental change event published into a room
// by a watch source. The type field uses the watch event types (ADDED,
// MODIFIED, DELETED).
type ObjectEventPayload struct {
	Kind   string      `json:"kind"`
	Type   string      `json:"type"`
	Object interface{} `json:"object"`
}

type BatchNamespacedDonePayload struct {
	Kind       string   `json:"kind"`
	Namespaces []string `json:"namespaces"`
}

type SubscriptionTarget struct {
	Name      string `json:"name"`
	Namespace string `json:"namespace"`
}

type ShootSubscriptionDonePayload struct {
	Kind   string             `json:"kind"`
	Target SubscriptionTarget `json:"target"`
}
