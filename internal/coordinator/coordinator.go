package coordinator

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"broadcast-coordinator/internal/platform/metrics"
)

// Coordinator ties the registry, the state machine, and the fan-out
// together. All command processing (admit, disconnect, inbound messages)
// is serialized by a single mutex; only the per-connection writer
// goroutines run outside it, so a slow or stalled connection never blocks
// delivery to the others.
type Coordinator struct {
	mu       sync.Mutex
	registry *Registry
	state    *StateMachine
	log      *slog.Logger
	metrics  *metrics.Metrics
}

// New constructs a coordinator in the OFFLINE state with an empty registry.
// Metrics may be nil to disable metric recording (e.g. in tests).
func New(log *slog.Logger, m *metrics.Metrics, defaultTitle, defaultLocator string) *Coordinator {
	reg := NewRegistry()
	return &Coordinator{
		registry: reg,
		state:    NewStateMachine(reg, defaultTitle, defaultLocator),
		log:      log,
		metrics:  m,
	}
}

// Registry exposes the connection registry for read-only queries (viewer
// counts, metrics gauges). Mutation stays inside the coordinator.
func (c *Coordinator) Registry() *Registry {
	return c.registry
}

// State exposes the session state machine for read-only queries.
func (c *Coordinator) State() *StateMachine {
	return c.state
}

// Admit registers a new connection with role viewer, sends it the baseline
// snapshot (the live session, or an offline marker), starts its writer
// goroutine, and announces the new viewer count.
func (c *Coordinator) Admit(t Transport) ConnectionID {
	c.mu.Lock()
	defer c.mu.Unlock()

	baseline := OfflineEvent()
	if sess, live := c.state.Current(); live {
		baseline = SessionStartedEvent(sess)
	}

	m := c.registry.Admit(t, &baseline)
	go c.runWriter(m)

	c.log.Debug("connection admitted", slog.String("connection_id", string(m.conn.ID)))
	c.publishLocked(ViewerCountEvent(c.registry.CountByRole(RoleViewer)))
	return m.conn.ID
}

// Disconnect removes the connection and announces the new viewer count.
// The live session deliberately survives its owner's disconnect; only an
// explicit stop command ends it.
func (c *Coordinator) Disconnect(id ConnectionID) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.registry.Remove(id) {
		return
	}
	c.log.Debug("connection removed", slog.String("connection_id", string(id)))
	c.publishLocked(ViewerCountEvent(c.registry.CountByRole(RoleViewer)))
}

// HandleMessage processes one inbound frame from the given connection.
// Undecodable payloads and unknown kinds are ignored without penalizing
// the connection; command rejections are surfaced to the sender only.
func (c *Coordinator) HandleMessage(id ConnectionID, raw []byte) {
	var msg clientMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		c.log.Debug("undecodable message ignored",
			slog.String("connection_id", string(id)),
			slog.String("error", err.Error()))
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	switch msg.Type {
	case msgJoinAsBroadcaster:
		c.registry.Promote(id)
		c.log.Info("connection promoted to broadcaster", slog.String("connection_id", string(id)))
		c.publishLocked(ViewerCountEvent(c.registry.CountByRole(RoleViewer)))

	case msgStartBroadcast:
		meta := SessionMeta{Title: msg.Title, Description: msg.Description, Locator: msg.Locator}
		sess, err := c.state.Start(id, meta)
		if err != nil {
			c.log.Info("start rejected",
				slog.String("connection_id", string(id)),
				slog.String("error", err.Error()))
			c.sendToLocked(id, ErrorEvent(err.Error()))
			return
		}
		c.log.Info("session started",
			slog.String("session_id", string(sess.ID)),
			slog.String("title", sess.Title))
		if c.metrics != nil {
			c.metrics.IncSessionsStarted()
		}
		c.publishLocked(SessionStartedEvent(sess))

	case msgStopBroadcast:
		// Non-owner and no-session stops are silent no-ops.
		if c.state.Stop(id) {
			c.log.Info("session stopped", slog.String("connection_id", string(id)))
			c.publishLocked(SessionStoppedEvent())
		}

	case msgChatMessage:
		if msg.Text == "" {
			return
		}
		if c.metrics != nil {
			c.metrics.IncChatMessages()
		}
		c.publishLocked(ChatEvent(msg.Sender, msg.Text, time.Now().UTC()))

	default:
		c.log.Debug("unknown message kind ignored",
			slog.String("connection_id", string(id)),
			slog.String("kind", msg.Type))
	}
}

// Publish fans out an event to every registered connection.
func (c *Coordinator) Publish(ev Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.publishLocked(ev)
}

// Close removes every connection, which shuts down their writer goroutines
// and closes their transports.
func (c *Coordinator) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, m := range c.registry.snapshot() {
		c.registry.Remove(m.conn.ID)
	}
}

// publishLocked enqueues ev on every member's queue. A full queue means the
// connection has fallen unrecoverably behind: it is removed and the viewer
// count is recomputed and re-announced, repeating until every remaining
// connection accepts. Caller must hold c.mu.
func (c *Coordinator) publishLocked(ev Event) {
	for {
		failed := c.enqueueAllLocked(ev)
		if len(failed) == 0 {
			return
		}
		for _, id := range failed {
			c.log.Warn("send queue full, removing connection", slog.String("connection_id", string(id)))
			c.registry.Remove(id)
			if c.metrics != nil {
				c.metrics.IncSendFailures()
			}
		}
		ev = ViewerCountEvent(c.registry.CountByRole(RoleViewer))
	}
}

// enqueueAllLocked attempts a non-blocking enqueue to every member and
// returns the connections whose queues were full. Caller must hold c.mu,
// which also guarantees no queue is closed mid-enqueue.
func (c *Coordinator) enqueueAllLocked(ev Event) []ConnectionID {
	var failed []ConnectionID
	for _, m := range c.registry.snapshot() {
		select {
		case m.queue <- ev:
			if c.metrics != nil {
				c.metrics.IncEventsFannedOut()
			}
		default:
			failed = append(failed, m.conn.ID)
		}
	}
	return failed
}

// sendToLocked delivers a scoped event to a single connection. Caller must
// hold c.mu.
func (c *Coordinator) sendToLocked(id ConnectionID, ev Event) {
	for _, m := range c.registry.snapshot() {
		if m.conn.ID != id {
			continue
		}
		select {
		case m.queue <- ev:
		default:
			c.registry.Remove(id)
			if c.metrics != nil {
				c.metrics.IncSendFailures()
			}
		}
		return
	}
}

// runWriter drains one member's queue in FIFO order. A transport write
// failure is an implicit disconnect: the member is removed and the
// remaining queued events are discarded.
func (c *Coordinator) runWriter(m *member) {
	for ev := range m.queue {
		if err := m.transport.WriteEvent(ev); err != nil {
			c.log.Debug("send failed, removing connection",
				slog.String("connection_id", string(m.conn.ID)),
				slog.String("error", err.Error()))
			if c.metrics != nil {
				c.metrics.IncSendFailures()
			}
			c.Disconnect(m.conn.ID)
			for range m.queue {
				// discard until closed
			}
			break
		}
	}
	m.transport.Close()
}
