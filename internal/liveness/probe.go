// Package liveness derives a point-in-time "is the broadcast live" judgment
// from two independent oracles: the modification time of the playlist
// artifact written by the ingest pipeline, and the path topology reported
// by the peer-connection gateway. Either oracle may fail; a failed oracle
// contributes a negative reading instead of an error, so status queries
// degrade gracefully rather than propagating upstream faults.
package liveness

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"
)

// DefaultFreshnessWindow is how recently the playlist artifact must have
// been modified for the segment oracle to report live.
const DefaultFreshnessWindow = 30 * time.Second

// DefaultGatewayTimeout bounds the gateway status poll so a stalled gateway
// cannot indefinitely delay a status query.
const DefaultGatewayTimeout = 3 * time.Second

// Snapshot is a derived, non-authoritative liveness judgment. It is
// recomputed on every query and never stored.
type Snapshot struct {
	Online            bool
	ViewerCount       int
	LastSourceConnect time.Time // zero if unknown
}

// Config carries the probe's collaborator addresses and tuning.
type Config struct {
	// PlaylistPath is the playlist artifact whose mtime the segment
	// oracle reads.
	PlaylistPath string

	// FreshnessWindow overrides DefaultFreshnessWindow when positive.
	FreshnessWindow time.Duration

	// GatewayURL is the peer-connection gateway base address.
	GatewayURL string

	// StreamPath is the gateway path name carrying the broadcast.
	StreamPath string

	// GatewayTimeout overrides DefaultGatewayTimeout when positive.
	GatewayTimeout time.Duration
}

// Probe combines the two oracles with OR semantics: the broadcast is live
// if the playlist artifact is fresh or the gateway reports a ready source
// on the configured path. Viewer count and last-connect time come only
// from the gateway oracle; the file oracle has no notion of either.
type Probe struct {
	cfg    Config
	client *http.Client
	log    *slog.Logger
	now    func() time.Time
}

// New returns a probe using the given configuration. Zero durations fall
// back to the package defaults.
func New(cfg Config, log *slog.Logger) *Probe {
	if cfg.FreshnessWindow <= 0 {
		cfg.FreshnessWindow = DefaultFreshnessWindow
	}
	if cfg.GatewayTimeout <= 0 {
		cfg.GatewayTimeout = DefaultGatewayTimeout
	}
	return &Probe{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.GatewayTimeout},
		log:    log,
		now:    time.Now,
	}
}

// IsLive reports whether either oracle considers the broadcast active.
func (p *Probe) IsLive(ctx context.Context) bool {
	return p.Describe(ctx).Online
}

// Describe recomputes the full liveness snapshot.
func (p *Probe) Describe(ctx context.Context) Snapshot {
	fresh := p.segmentFresh()
	gw, ok := p.gatewayStatus(ctx)
	if !ok {
		return Snapshot{Online: fresh}
	}
	return Snapshot{
		Online:            fresh || gw.live,
		ViewerCount:       gw.readers,
		LastSourceConnect: gw.readyTime,
	}
}

// segmentFresh is the segment-freshness oracle: live iff the playlist
// artifact exists and was modified within the freshness window. A missing
// or unreadable artifact reads as not live.
func (p *Probe) segmentFresh() bool {
	if p.cfg.PlaylistPath == "" {
		return false
	}
	info, err := os.Stat(p.cfg.PlaylistPath)
	if err != nil {
		return false
	}
	return p.now().Sub(info.ModTime()) <= p.cfg.FreshnessWindow
}

// gatewayPathList mirrors the gateway's path-listing response. Only the
// fields the topology oracle reads are declared.
type gatewayPathList struct {
	Items []gatewayPath `json:"items"`
}

type gatewayPath struct {
	Name      string          `json:"name"`
	Ready     bool            `json:"ready"`
	ReadyTime *time.Time      `json:"readyTime"`
	Source    *gatewaySource  `json:"source"`
	Readers   []gatewayReader `json:"readers"`
}

type gatewaySource struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

type gatewayReader struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

type gatewayReading struct {
	live      bool
	readers   int
	readyTime time.Time
}

// gatewayStatus is the gateway-topology oracle: a path is live if it has
// an active, ready source; the viewer count is its active reader count.
// Any network or decode failure degrades to a not-ok reading.
func (p *Probe) gatewayStatus(ctx context.Context) (gatewayReading, bool) {
	if p.cfg.GatewayURL == "" {
		return gatewayReading{}, false
	}

	url := p.cfg.GatewayURL + "/v3/paths/list"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return gatewayReading{}, false
	}
	resp, err := p.client.Do(req)
	if err != nil {
		p.log.Debug("gateway status query failed", slog.String("error", err.Error()))
		return gatewayReading{}, false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		p.log.Debug("gateway status query failed",
			slog.String("error", fmt.Sprintf("unexpected status %d", resp.StatusCode)))
		return gatewayReading{}, false
	}

	var list gatewayPathList
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		p.log.Debug("gateway status decode failed", slog.String("error", err.Error()))
		return gatewayReading{}, false
	}

	for _, item := range list.Items {
		if item.Name != p.cfg.StreamPath {
			continue
		}
		r := gatewayReading{
			live:    item.Ready && item.Source != nil,
			readers: len(item.Readers),
		}
		if item.ReadyTime != nil {
			r.readyTime = *item.ReadyTime
		}
		return r, true
	}
	return gatewayReading{}, true
}
