package coordinator

import "time"

// ConnectionID uniquely identifies a realtime connection for its lifetime.
type ConnectionID string

// SessionID uniquely identifies one broadcast session.
type SessionID string

// Role is the capability level of a connection.
type Role string

const (
	// RoleViewer is the default role: receives all events, cannot start or
	// stop sessions.
	RoleViewer Role = "viewer"

	// RoleBroadcaster may start a session and stop the session it owns.
	RoleBroadcaster Role = "broadcaster"
)

// Connection describes one registered realtime client.
type Connection struct {
	ID       ConnectionID
	Role     Role
	JoinedAt time.Time
}

// SessionMeta carries the optional overrides a broadcaster may supply when
// starting a session. Empty fields fall back to configured defaults.
type SessionMeta struct {
	Title       string
	Description string
	Locator     string
}

// Session is the record of the currently active broadcast. At most one
// exists at a time; it exists exactly while the state machine is LIVE.
type Session struct {
	ID          SessionID    `json:"id"`
	Title       string       `json:"title"`
	Description string       `json:"description,omitempty"`
	Owner       ConnectionID `json:"-"`
	StartedAt   time.Time    `json:"startedAt"`

	// Locator is the address viewers should use for segment playback.
	Locator string `json:"locator,omitempty"`
}

// Transport is the write side of a connected realtime client. The registry
// and fan-out never see the underlying socket; tests inject fakes and the
// websocket handler wraps a gorilla connection.
type Transport interface {
	WriteEvent(Event) error
	Close() error
}
