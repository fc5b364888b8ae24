package session

import (
	"encoding/json"

	"redbead/internal/domain"
)

// MessageType names an inbound websocket message.
type MessageType string

const (
	TypeActivity        MessageType = "activity"
	TypeStaySignedIn    MessageType = "stay_signed_in"
	TypeAuthRefresh     MessageType = "auth.refresh"
	TypeCartMerge       MessageType = "cart.merge"
	TypeCheckoutWatch   MessageType = "checkout.watch"
	TypeCheckoutUnwatch MessageType = "checkout.unwatch"
	TypeCheckoutRefresh MessageType = "checkout.refresh"
	TypeCheckoutSave    MessageType = "checkout.save"
)

// EventType names an outbound websocket event.
type EventType string

const (
	EventNotice         EventType = "notice"
	EventNavigate       EventType = "navigate"
	EventReload         EventType = "reload"
	EventCookieExpire   EventType = "cookie.expire"
	EventCartUpdated    EventType = "cart.updated"
	EventInactivity     EventType = "inactivity"
	EventAuthState      EventType = "auth.state"
	EventMergeState     EventType = "merge.state"
	EventCheckoutState  EventType = "checkout.state"
	EventCheckoutExpiry EventType = "checkout.expiry"
	EventError          EventType = "error"
)

// Inbound is the envelope of every client message.
type Inbound struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Event is the envelope of every server push.
type Event struct {
	Type      EventType `json:"type"`
	Payload   any       `json:"payload,omitempty"`
	Timestamp int64     `json:"timestamp"`
}

type activityPayload struct {
	Event string `json:"event"`
}

type checkoutRef struct {
	SessionID string `json:"sessionId"`
}

type checkoutSavePayload struct {
	SessionID string               `json:"sessionId"`
	Patch     domain.CheckoutPatch `json:"patch"`
}

type navigatePayload struct {
	Path string `json:"path"`
}

type cookiePayload struct {
	Name string `json:"name"`
}

type authPayload struct {
	Authenticated bool                `json:"authenticated"`
	Profile       *domain.UserProfile `json:"profile,omitempty"`
}

type mergeStatePayload struct {
	State string `json:"state"`
}

type checkoutStatePayload struct {
	SessionID string                `json:"sessionId"`
	Step      int                   `json:"step"`
	State     *domain.CheckoutState `json:"state"`
}

type checkoutExpiryPayload struct {
	SessionID         string `json:"sessionId"`
	ExpiresAt         int64  `json:"expiresAt"`
	MillisUntilExpiry int64  `json:"millisUntilExpiry"`
	Expired           bool   `json:"expired"`
}

type errorPayload struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}
