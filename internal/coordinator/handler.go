package coordinator

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"broadcast-coordinator/internal/liveness"

	"github.com/gorilla/websocket"
)

const writeTimeout = 10 * time.Second

// The host page is served by a separate frontend, so cross-origin upgrades
// are expected.
var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// StatusProber answers point-in-time liveness queries. *liveness.Probe
// satisfies it.
type StatusProber interface {
	Describe(ctx context.Context) liveness.Snapshot
}

// Handler exposes the realtime endpoint and the status endpoint using go-chi.
type Handler struct {
	coord *Coordinator
	probe StatusProber
	log   *slog.Logger

	defaultTitle string
}

// NewHandler returns a Handler for the given coordinator and prober.
func NewHandler(coord *Coordinator, probe StatusProber, log *slog.Logger, defaultTitle string) *Handler {
	return &Handler{coord: coord, probe: probe, log: log, defaultTitle: defaultTitle}
}

// ServeWS handles GET /ws: upgrades the connection, admits it as a viewer,
// and pumps inbound frames into the coordinator until the client goes away.
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Debug("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}

	id := h.coord.Admit(&wsTransport{conn: conn})
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			break
		}
		h.coord.HandleMessage(id, raw)
	}
	h.coord.Disconnect(id)
}

// statusResponse is the point-in-time status payload for polling clients
// that never open a persistent connection.
type statusResponse struct {
	Online          bool       `json:"online"`
	ViewerCount     int        `json:"viewerCount"`
	StreamTitle     string     `json:"streamTitle"`
	LastConnectTime *time.Time `json:"lastConnectTime"`
}

// Status handles GET /api/status. Liveness comes from the probe,
// independent of whether any realtime clients are connected; the title
// comes from the live session when there is one.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	snap := h.probe.Describe(r.Context())

	resp := statusResponse{
		Online:      snap.Online,
		ViewerCount: snap.ViewerCount,
		StreamTitle: h.defaultTitle,
	}
	if !snap.LastSourceConnect.IsZero() {
		t := snap.LastSourceConnect
		resp.LastConnectTime = &t
	}
	if sess, live := h.coord.State().Current(); live {
		resp.StreamTitle = sess.Title
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.log.Error("status encode failed", slog.String("error", err.Error()))
	}
}

// wsTransport adapts a gorilla connection to the Transport interface. The
// coordinator's writer goroutine is the only caller of WriteEvent, so the
// single-writer requirement of gorilla holds.
type wsTransport struct {
	conn *websocket.Conn
}

func (t *wsTransport) WriteEvent(ev Event) error {
	t.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return t.conn.WriteJSON(ev)
}

func (t *wsTransport) Close() error {
	return t.conn.Close()
}
