package liveness

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func writePlaylist(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "live.m3u8")
	if err := os.WriteFile(path, []byte("#EXTM3U\n"), 0o644); err != nil {
		t.Fatalf("write playlist: %v", err)
	}
	return path
}

// gatewayServer serves a canned path-listing response.
func gatewayServer(t *testing.T, body string, status int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v3/paths/list" {
			t.Errorf("gateway queried at %q, want /v3/paths/list", r.URL.Path)
		}
		w.WriteHeader(status)
		fmt.Fprint(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestProbe_segmentFresh(t *testing.T) {
	path := writePlaylist(t, t.TempDir())
	p := New(Config{PlaylistPath: path}, testLogger())

	if !p.IsLive(context.Background()) {
		t.Error("fresh playlist artifact should read live")
	}
}

func TestProbe_segmentStale(t *testing.T) {
	path := writePlaylist(t, t.TempDir())
	old := time.Now().Add(-5 * time.Minute)
	if err := os.Chtimes(path, old, old); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	p := New(Config{PlaylistPath: path}, testLogger())
	if p.IsLive(context.Background()) {
		t.Error("playlist older than the freshness window should not read live")
	}
}

func TestProbe_segmentAbsent(t *testing.T) {
	p := New(Config{PlaylistPath: filepath.Join(t.TempDir(), "missing.m3u8")}, testLogger())
	if p.IsLive(context.Background()) {
		t.Error("missing playlist artifact should not read live")
	}
}

func TestProbe_bothOraclesDegraded(t *testing.T) {
	// No artifact and an unreachable gateway: both oracles degrade and the
	// probe answers false instead of erroring.
	dead := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	dead.Close()

	p := New(Config{
		PlaylistPath: filepath.Join(t.TempDir(), "missing.m3u8"),
		GatewayURL:   dead.URL,
	}, testLogger())

	snap := p.Describe(context.Background())
	if snap.Online || snap.ViewerCount != 0 {
		t.Errorf("degraded snapshot = %+v, want offline/zero", snap)
	}
}

func TestProbe_gatewayTopology(t *testing.T) {
	readyTime := time.Date(2026, 3, 1, 19, 0, 0, 0, time.UTC)
	body := fmt.Sprintf(`{"items":[
		{"name":"other","ready":true,"source":{"type":"rtmpConn","id":"x"},"readers":[]},
		{"name":"live","ready":true,"readyTime":%q,
		 "source":{"type":"rtmpConn","id":"src1"},
		 "readers":[{"type":"webrtcSession","id":"r1"},{"type":"webrtcSession","id":"r2"}]}
	]}`, readyTime.Format(time.RFC3339))
	srv := gatewayServer(t, body, http.StatusOK)

	p := New(Config{
		PlaylistPath: filepath.Join(t.TempDir(), "missing.m3u8"),
		GatewayURL:   srv.URL,
		StreamPath:   "live",
	}, testLogger())

	snap := p.Describe(context.Background())
	if !snap.Online {
		t.Error("ready source on the configured path should read live")
	}
	if snap.ViewerCount != 2 {
		t.Errorf("ViewerCount = %d, want 2 active readers", snap.ViewerCount)
	}
	if !snap.LastSourceConnect.Equal(readyTime) {
		t.Errorf("LastSourceConnect = %v, want %v", snap.LastSourceConnect, readyTime)
	}
}

func TestProbe_gatewayPathNotReady(t *testing.T) {
	body := `{"items":[{"name":"live","ready":false,"source":null,"readers":[]}]}`
	srv := gatewayServer(t, body, http.StatusOK)

	p := New(Config{GatewayURL: srv.URL, StreamPath: "live"}, testLogger())
	if p.IsLive(context.Background()) {
		t.Error("path without a ready source should not read live")
	}
}

func TestProbe_gatewayPathMissing(t *testing.T) {
	srv := gatewayServer(t, `{"items":[]}`, http.StatusOK)

	p := New(Config{GatewayURL: srv.URL, StreamPath: "live"}, testLogger())
	snap := p.Describe(context.Background())
	if snap.Online || snap.ViewerCount != 0 {
		t.Errorf("snapshot = %+v, want offline/zero for unknown path", snap)
	}
}

func TestProbe_gatewayErrorStatus(t *testing.T) {
	srv := gatewayServer(t, `boom`, http.StatusInternalServerError)

	p := New(Config{GatewayURL: srv.URL, StreamPath: "live"}, testLogger())
	if p.IsLive(context.Background()) {
		t.Error("gateway 500 should degrade to not live")
	}
}

func TestProbe_gatewayTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
	}))
	t.Cleanup(srv.Close)

	p := New(Config{
		GatewayURL:     srv.URL,
		StreamPath:     "live",
		GatewayTimeout: 50 * time.Millisecond,
	}, testLogger())

	start := time.Now()
	if p.IsLive(context.Background()) {
		t.Error("stalled gateway should degrade to not live")
	}
	if time.Since(start) > 250*time.Millisecond {
		t.Errorf("query took %v, timeout should bound the gateway poll", time.Since(start))
	}
}

func TestProbe_oracleDisagreement_orSemantics(t *testing.T) {
	// Stale file but gateway still reporting a reader: OR combination wins.
	path := writePlaylist(t, t.TempDir())
	old := time.Now().Add(-10 * time.Minute)
	if err := os.Chtimes(path, old, old); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	body := `{"items":[{"name":"live","ready":true,
		"source":{"type":"rtmpConn","id":"src1"},
		"readers":[{"type":"webrtcSession","id":"r1"}]}]}`
	srv := gatewayServer(t, body, http.StatusOK)

	p := New(Config{
		PlaylistPath: path,
		GatewayURL:   srv.URL,
		StreamPath:   "live",
	}, testLogger())

	snap := p.Describe(context.Background())
	if !snap.Online {
		t.Error("gateway-live should override a stale artifact (OR semantics)")
	}
	if snap.ViewerCount != 1 {
		t.Errorf("ViewerCount = %d, want 1", snap.ViewerCount)
	}

	t.Run("fresh_file_with_dead_gateway", func(t *testing.T) {
		// The other direction of the disagreement.
		fresh := writePlaylist(t, t.TempDir())
		dead := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
		dead.Close()

		p := New(Config{PlaylistPath: fresh, GatewayURL: dead.URL, StreamPath: "live"}, testLogger())
		if !p.IsLive(context.Background()) {
			t.Error("fresh artifact should read live even when the gateway is down")
		}
	})
}

func TestProbe_freshnessWindowOverride(t *testing.T) {
	path := writePlaylist(t, t.TempDir())
	old := time.Now().Add(-45 * time.Second)
	if err := os.Chtimes(path, old, old); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	tight := New(Config{PlaylistPath: path}, testLogger())
	if tight.IsLive(context.Background()) {
		t.Error("45s old artifact should be stale under the default 30s window")
	}

	wide := New(Config{PlaylistPath: path, FreshnessWindow: 2 * time.Minute}, testLogger())
	if !wide.IsLive(context.Background()) {
		t.Error("45s old artifact should be fresh under a 2m window")
	}
}
