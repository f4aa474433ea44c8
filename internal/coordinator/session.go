package coordinator

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotBroadcaster is returned when a viewer-role connection attempts
	// to start a session.
	ErrNotBroadcaster = errors.New("connection is not a broadcaster")

	// ErrAlreadyLive is returned when a start command arrives while a
	// session is already active.
	ErrAlreadyLive = errors.New("a session is already live")
)

// RoleSource supplies role information for start authorization. The
// Registry satisfies it.
type RoleSource interface {
	Role(id ConnectionID) (Role, bool)
}

// StateMachine is the canonical authority for whether a broadcast session
// is active, who owns it, and its metadata. Transitions are serialized:
// two commands racing to start or stop are applied atomically with respect
// to each other.
type StateMachine struct {
	mu    sync.Mutex
	roles RoleSource
	live  *Session

	defaultTitle   string
	defaultLocator string
}

// NewStateMachine returns a machine in the OFFLINE state. defaultTitle and
// defaultLocator fill in session metadata the broadcaster leaves empty.
func NewStateMachine(roles RoleSource, defaultTitle, defaultLocator string) *StateMachine {
	return &StateMachine{
		roles:          roles,
		defaultTitle:   defaultTitle,
		defaultLocator: defaultLocator,
	}
}

// Start transitions OFFLINE to LIVE on behalf of owner. It fails with
// ErrNotBroadcaster if owner does not currently hold the broadcaster role,
// and with ErrAlreadyLive if a session is already active.
func (m *StateMachine) Start(owner ConnectionID, meta SessionMeta) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	role, ok := m.roles.Role(owner)
	if !ok || role != RoleBroadcaster {
		return nil, ErrNotBroadcaster
	}
	if m.live != nil {
		return nil, ErrAlreadyLive
	}

	title := meta.Title
	if title == "" {
		title = m.defaultTitle
	}
	locator := meta.Locator
	if locator == "" {
		locator = m.defaultLocator
	}

	m.live = &Session{
		ID:          SessionID(uuid.NewString()),
		Title:       title,
		Description: meta.Description,
		Owner:       owner,
		StartedAt:   time.Now().UTC(),
		Locator:     locator,
	}
	return m.live, nil
}

// Stop ends the live session if caller owns it. A stop from any other
// connection, or while no session is active, is a silent no-op: only the
// owner may end its own session. Returns true if a transition occurred.
func (m *StateMachine) Stop(caller ConnectionID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.live == nil || m.live.Owner != caller {
		return false
	}
	m.live = nil
	return true
}

// Current returns the live session, or false when OFFLINE.
func (m *StateMachine) Current() (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.live == nil {
		return nil, false
	}
	return m.live, true
}
