// Package relay forwards peer-signaling (WHEP-style offer/answer) requests
// verbatim to the media gateway. It holds no session state and is safe to
// serve with arbitrary concurrency.
package relay

import (
	"io"
	"log/slog"
	"net/http"
	"strings"
)

// hopHeaders are connection-scoped headers that must not be forwarded.
var hopHeaders = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// Relay is a stateless request/response forwarder to the gateway base
// address. The inbound path is appended to the base; method, headers, and
// body pass through unchanged in both directions. A network failure talking
// to the gateway is reported as 502 with a JSON error body, never silently
// swallowed.
type Relay struct {
	base   string
	client *http.Client
	log    *slog.Logger

	// OnError, if set, is called once per relay failure (metrics hook).
	OnError func()
}

// New returns a relay targeting the gateway at base. client may be nil to
// use http.DefaultClient.
func New(base string, client *http.Client, log *slog.Logger) *Relay {
	if client == nil {
		client = http.DefaultClient
	}
	return &Relay{
		base:   strings.TrimRight(base, "/"),
		client: client,
		log:    log,
	}
}

// ServeHTTP implements http.Handler.
func (rl *Relay) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	target := rl.base + r.URL.Path
	if r.URL.RawQuery != "" {
		target += "?" + r.URL.RawQuery
	}

	out, err := http.NewRequestWithContext(r.Context(), r.Method, target, r.Body)
	if err != nil {
		rl.fail(w, err)
		return
	}
	copyHeaders(out.Header, r.Header)

	resp, err := rl.client.Do(out)
	if err != nil {
		rl.fail(w, err)
		return
	}
	defer resp.Body.Close()

	copyHeaders(w.Header(), resp.Header)
	w.WriteHeader(resp.StatusCode)
	if _, err := io.Copy(w, resp.Body); err != nil {
		rl.log.Debug("relay response copy failed", slog.String("error", err.Error()))
	}
}

func (rl *Relay) fail(w http.ResponseWriter, err error) {
	rl.log.Warn("gateway unreachable", slog.String("error", err.Error()))
	if rl.OnError != nil {
		rl.OnError()
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadGateway)
	w.Write([]byte(`{"error":"gateway unreachable"}`))
}

func copyHeaders(dst, src http.Header) {
	for name, values := range src {
		if isHopHeader(name) {
			continue
		}
		for _, v := range values {
			dst.Add(name, v)
		}
	}
}

func isHopHeader(name string) bool {
	for _, h := range hopHeaders {
		if strings.EqualFold(name, h) {
			return true
		}
	}
	return false
}
