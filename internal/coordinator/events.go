package coordinator

import "time"

// Outbound event kinds delivered to realtime clients.
const (
	EventSessionStarted = "session_started"
	EventSessionStopped = "session_stopped"
	EventViewerCount    = "viewer_count_changed"
	EventChatMessage    = "chat_message"
	EventOffline        = "offline"
	EventError          = "error"
)

// Event is a single outbound message. The Type tag selects which of the
// optional fields are meaningful; unused fields are omitted from the JSON.
type Event struct {
	Type      string    `json:"type"`
	Session   *Session  `json:"session,omitempty"`
	Count     int       `json:"count,omitempty"`
	Sender    string    `json:"sender,omitempty"`
	Text      string    `json:"text,omitempty"`
	Timestamp time.Time `json:"timestamp,omitzero"`
	Message   string    `json:"message,omitempty"`
}

// SessionStartedEvent announces a new live session.
func SessionStartedEvent(s *Session) Event {
	return Event{Type: EventSessionStarted, Session: s}
}

// SessionStoppedEvent announces the end of the live session.
func SessionStoppedEvent() Event {
	return Event{Type: EventSessionStopped}
}

// ViewerCountEvent carries the current number of viewer-role connections.
func ViewerCountEvent(count int) Event {
	return Event{Type: EventViewerCount, Count: count}
}

// ChatEvent carries one chat message to every connection.
func ChatEvent(sender, text string, at time.Time) Event {
	return Event{Type: EventChatMessage, Sender: sender, Text: text, Timestamp: at}
}

// OfflineEvent is the baseline marker sent to a newly admitted connection
// when no session is live.
func OfflineEvent() Event {
	return Event{Type: EventOffline}
}

// ErrorEvent is a scoped rejection delivered only to the connection whose
// command failed.
func ErrorEvent(message string) Event {
	return Event{Type: EventError, Message: message}
}

// Inbound message kinds accepted from realtime clients. Unknown kinds and
// undecodable payloads are ignored without penalizing the connection.
const (
	msgJoinAsBroadcaster = "join_as_broadcaster"
	msgStartBroadcast    = "start_broadcast"
	msgStopBroadcast     = "stop_broadcast"
	msgChatMessage       = "chat_message"
)

// clientMessage is the decoded form of an inbound frame. All fields beyond
// Type are optional and only read for the kinds that use them.
type clientMessage struct {
	Type        string `json:"type"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	Locator     string `json:"locator,omitempty"`
	Sender      string `json:"sender,omitempty"`
	Text        string `json:"text,omitempty"`
}
