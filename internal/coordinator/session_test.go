package coordinator

import (
	"errors"
	"testing"
)

// staticRoles is a fixed role table for state machine tests.
type staticRoles map[ConnectionID]Role

func (s staticRoles) Role(id ConnectionID) (Role, bool) {
	r, ok := s[id]
	return r, ok
}

func TestStateMachine_Start(t *testing.T) {
	roles := staticRoles{"b1": RoleBroadcaster, "v1": RoleViewer}
	sm := NewStateMachine(roles, "Community Radio", "/segments/live.m3u8")

	sess, err := sm.Start("b1", SessionMeta{Title: "Evening Service", Description: "weekly"})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if sess.ID == "" {
		t.Error("session should have a generated identifier")
	}
	if sess.Title != "Evening Service" || sess.Description != "weekly" {
		t.Errorf("metadata not applied: %+v", sess)
	}
	if sess.Owner != "b1" {
		t.Errorf("Owner = %q, want b1", sess.Owner)
	}
	if sess.StartedAt.IsZero() {
		t.Error("StartedAt should be set")
	}
	if sess.Locator != "/segments/live.m3u8" {
		t.Errorf("empty locator should fall back to default, got %q", sess.Locator)
	}

	got, live := sm.Current()
	if !live || got != sess {
		t.Errorf("Current() = %v live=%v, want the started session", got, live)
	}
}

func TestStateMachine_Start_viewerRejected(t *testing.T) {
	roles := staticRoles{"v1": RoleViewer}
	sm := NewStateMachine(roles, "", "")

	_, err := sm.Start("v1", SessionMeta{})
	if !errors.Is(err, ErrNotBroadcaster) {
		t.Errorf("expected ErrNotBroadcaster, got %v", err)
	}
	if _, live := sm.Current(); live {
		t.Error("a viewer start must never change the state")
	}
}

func TestStateMachine_Start_unknownConnectionRejected(t *testing.T) {
	sm := NewStateMachine(staticRoles{}, "", "")

	_, err := sm.Start("ghost", SessionMeta{})
	if !errors.Is(err, ErrNotBroadcaster) {
		t.Errorf("expected ErrNotBroadcaster, got %v", err)
	}
}

func TestStateMachine_Start_whileLive(t *testing.T) {
	roles := staticRoles{"b1": RoleBroadcaster, "b2": RoleBroadcaster}
	sm := NewStateMachine(roles, "", "")

	first, err := sm.Start("b1", SessionMeta{Title: "one"})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	_, err = sm.Start("b2", SessionMeta{Title: "two"})
	if !errors.Is(err, ErrAlreadyLive) {
		t.Errorf("expected ErrAlreadyLive, got %v", err)
	}

	got, live := sm.Current()
	if !live || got != first {
		t.Error("rejected start must not replace the live session")
	}
}

func TestStateMachine_Start_defaultTitle(t *testing.T) {
	roles := staticRoles{"b1": RoleBroadcaster}
	sm := NewStateMachine(roles, "Community Radio", "")

	sess, err := sm.Start("b1", SessionMeta{})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if sess.Title != "Community Radio" {
		t.Errorf("Title = %q, want configured default", sess.Title)
	}
}

func TestStateMachine_Stop(t *testing.T) {
	roles := staticRoles{"b1": RoleBroadcaster, "b2": RoleBroadcaster}
	sm := NewStateMachine(roles, "", "")

	t.Run("noop_when_offline", func(t *testing.T) {
		if sm.Stop("b1") {
			t.Error("Stop while OFFLINE should be a no-op")
		}
	})

	if _, err := sm.Start("b1", SessionMeta{}); err != nil {
		t.Fatalf("Start: %v", err)
	}

	t.Run("noop_for_non_owner", func(t *testing.T) {
		if sm.Stop("b2") {
			t.Error("Stop by non-owner should be a no-op")
		}
		if _, live := sm.Current(); !live {
			t.Error("session must survive a non-owner stop")
		}
	})

	t.Run("owner_stops", func(t *testing.T) {
		if !sm.Stop("b1") {
			t.Error("owner Stop should transition LIVE to OFFLINE")
		}
		if _, live := sm.Current(); live {
			t.Error("Current should report OFFLINE after stop")
		}
	})

	t.Run("second_stop_noop", func(t *testing.T) {
		if sm.Stop("b1") {
			t.Error("second Stop should be a no-op")
		}
	})
}
