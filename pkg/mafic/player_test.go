package mafic

import (
	"context"
	"testing"
	"time"
)

func TestPlayerCommandsRequireConnection(t *testing.T) {
	registry := NewNodeRegistry(newTestAdapter())
	player := registry.NewPlayer(100, 555)

	ctx := context.Background()
	track := Track{ID: "aaa"}

	tests := []struct {
		name string
		call func() error
	}{
		{"play", func() error { return player.Play(ctx, track, nil) }},
		{"stop", func() error { return player.Stop(ctx) }},
		{"pause", func() error { return player.Pause(ctx) }},
		{"seek", func() error { return player.Seek(ctx, 1000) }},
		{"volume", func() error { return player.SetVolume(ctx, 50) }},
		{"filters", func() error {
			return player.AddFilter(ctx, "eq", Filter{Volume: Float(0.5)}, false)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.call(); err != ErrPlayerNotConnected {
				t.Errorf("expected ErrPlayerNotConnected, got %v", err)
			}
		})
	}
}

func TestPlayerPosition(t *testing.T) {
	registry := NewNodeRegistry(newTestAdapter())

	newTestPlayer := func() *Player {
		player := registry.NewPlayer(100, 555)
		player.current = &Track{ID: "aaa", Length: 60000}
		player.connected = true
		player.position = 30000
		player.lastUpdate = time.Now().Add(-2 * time.Second)
		return player
	}

	t.Run("extrapolates while playing", func(t *testing.T) {
		pos := newTestPlayer().Position()
		if pos < 31900 || pos > 34000 {
			t.Errorf("expected about 32000ms, got %d", pos)
		}
	})

	t.Run("frozen while paused", func(t *testing.T) {
		player := newTestPlayer()
		player.paused = true
		if pos := player.Position(); pos != 30000 {
			t.Errorf("expected 30000ms, got %d", pos)
		}
	})

	t.Run("clamped to track length", func(t *testing.T) {
		player := newTestPlayer()
		player.lastUpdate = time.Now().Add(-5 * time.Minute)
		if pos := player.Position(); pos != 60000 {
			t.Errorf("expected the track length, got %d", pos)
		}
	})

	t.Run("zero when idle", func(t *testing.T) {
		player := registry.NewPlayer(100, 555)
		if pos := player.Position(); pos != 0 {
			t.Errorf("expected 0, got %d", pos)
		}
	})
}

func TestPlayerUpdateState(t *testing.T) {
	registry := NewNodeRegistry(newTestAdapter())
	player := registry.NewPlayer(100, 555)

	player.updateState(PlayerUpdateState{
		Time:      1500467109,
		Position:  12345,
		Connected: true,
		Ping:      17,
	})

	if player.Ping() != 17 {
		t.Errorf("expected ping 17, got %d", player.Ping())
	}
	if !player.Connected() {
		t.Error("expected the player to report connected")
	}
}

func TestPlayerDispatchEvents(t *testing.T) {
	adapter := newTestAdapter()
	registry := NewNodeRegistry(adapter)

	setup := func() *Player {
		player := registry.NewPlayer(100, 555)
		player.current = &Track{ID: "aaa", Title: "Current"}
		return player
	}

	t.Run("track end clears the current track", func(t *testing.T) {
		player := setup()
		player.dispatchEvent(TrackEndEventPayload{Reason: "finished"})
		if player.Current() != nil {
			t.Error("expected the current track to be cleared")
		}

		events := adapter.dispatched()
		end, ok := events[len(events)-1].(TrackEndEvent)
		if !ok {
			t.Fatalf("expected a TrackEndEvent, got %T", events[len(events)-1])
		}
		if end.Reason != EndReasonFinished {
			t.Errorf("expected the finished reason, got %q", end.Reason)
		}
		// The node omitted the track, so the locally known one is used.
		if end.Track.Title != "Current" {
			t.Errorf("expected the local track fallback, got %+v", end.Track)
		}
	})

	t.Run("replaced tracks stay current", func(t *testing.T) {
		player := setup()
		player.dispatchEvent(TrackEndEventPayload{Reason: "replaced"})
		if player.Current() == nil {
			t.Error("a replaced track must not clear the current track")
		}
	})

	t.Run("v3 upper case reasons are normalised", func(t *testing.T) {
		player := setup()
		player.dispatchEvent(TrackEndEventPayload{Reason: "STOPPED"})

		events := adapter.dispatched()
		end := events[len(events)-1].(TrackEndEvent)
		if end.Reason != EndReasonStopped {
			t.Errorf("expected the stopped reason, got %q", end.Reason)
		}
	})

	t.Run("track stuck carries a duration", func(t *testing.T) {
		player := setup()
		player.dispatchEvent(TrackStuckEventPayload{ThresholdMs: 1500})

		events := adapter.dispatched()
		stuck, ok := events[len(events)-1].(TrackStuckEvent)
		if !ok {
			t.Fatalf("expected a TrackStuckEvent, got %T", events[len(events)-1])
		}
		if stuck.Threshold != 1500*time.Millisecond {
			t.Errorf("expected 1.5s, got %v", stuck.Threshold)
		}
	})

	t.Run("websocket closed passes through", func(t *testing.T) {
		player := setup()
		player.dispatchEvent(WebSocketClosedEventPayload{Code: 4006, Reason: "expired", ByRemote: true})

		events := adapter.dispatched()
		closed, ok := events[len(events)-1].(WebSocketClosedEvent)
		if !ok {
			t.Fatalf("expected a WebSocketClosedEvent, got %T", events[len(events)-1])
		}
		if closed.Code != 4006 || !closed.ByRemote {
			t.Errorf("unexpected event: %+v", closed)
		}
	})
}

func TestPlayerFilterMergeOrder(t *testing.T) {
	registry := NewNodeRegistry(newTestAdapter())
	player := registry.NewPlayer(100, 555)

	player.filters = []filterEntry{
		{label: "first", filter: Filter{Timescale: &Timescale{Speed: Float(1.2)}, Volume: Float(0.5)}},
		{label: "second", filter: Filter{Volume: Float(0.9)}},
	}

	merged := player.mergedFilters()
	if merged.Timescale == nil || *merged.Timescale.Speed != 1.2 {
		t.Errorf("expected the first filter's timescale to survive: %+v", merged)
	}
	if merged.Volume == nil || *merged.Volume != 0.9 {
		t.Errorf("later labels win conflicts, got %+v", merged.Volume)
	}

	if !player.HasFilter("first") || player.HasFilter("missing") {
		t.Error("HasFilter mismatch")
	}
}

func TestPlayerVoiceLifecycle(t *testing.T) {
	server := newFakeNodeServer(t)
	adapter := newTestAdapter()
	registry := NewNodeRegistry(adapter)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	node, err := registry.CreateNode(ctx, server.config("TEST"))
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	defer node.Close()

	player := registry.NewPlayer(100, 555)
	channelID := int64(555)

	// Half a handshake is not enough to bind.
	if err := player.OnVoiceStateUpdate(ctx, "vs-session", &channelID); err != nil {
		t.Fatalf("voice state update failed: %v", err)
	}
	if player.Connected() {
		t.Fatal("a player must not connect before the server update arrives")
	}

	if err := player.OnVoiceServerUpdate(ctx, "tok", "us-west1.discord.media:443"); err != nil {
		t.Fatalf("voice server update failed: %v", err)
	}
	if !player.Connected() {
		t.Fatal("expected the player to be connected")
	}
	if player.Node() != node {
		t.Fatal("expected the player to bind to the node")
	}
	if node.GetPlayer(100) != player {
		t.Fatal("expected the node to track the player")
	}

	// Playback commands now flow over REST.
	if err := player.Play(ctx, Track{ID: "aaa", Length: 60000}, nil); err != nil {
		t.Fatalf("play failed: %v", err)
	}
	if current := player.Current(); current == nil || current.ID != "aaa" {
		t.Fatalf("expected the track to be current, got %+v", current)
	}

	if err := player.Pause(ctx); err != nil {
		t.Fatalf("pause failed: %v", err)
	}
	if !player.Paused() {
		t.Fatal("expected the player to be paused")
	}

	if err := player.SetVolume(ctx, 42); err != nil {
		t.Fatalf("volume failed: %v", err)
	}
	if player.Volume() != 42 {
		t.Fatalf("expected volume 42, got %d", player.Volume())
	}

	if err := player.Stop(ctx); err != nil {
		t.Fatalf("stop failed: %v", err)
	}
	if player.Current() != nil {
		t.Fatal("expected no current track after stop")
	}

	// Leaving voice tears everything down.
	if err := player.OnVoiceStateUpdate(ctx, "vs-session", nil); err != nil {
		t.Fatalf("disconnect failed: %v", err)
	}
	if player.Connected() {
		t.Fatal("expected the player to be disconnected")
	}
	if node.GetPlayer(100) != nil {
		t.Fatal("expected the node to forget the player")
	}

	destroyed := server.destroyedGuilds()
	if len(destroyed) != 1 || destroyed[0] != "100" {
		t.Fatalf("expected the node-side player to be destroyed, got %v", destroyed)
	}
	left := adapter.leftGuilds()
	if len(left) != 1 || left[0] != 100 {
		t.Fatalf("expected the voice channel to be left, got %v", left)
	}
}

func TestPlayerRebindsOnEndpointChange(t *testing.T) {
	server := newFakeNodeServer(t)
	adapter := newTestAdapter()
	registry := NewNodeRegistry(adapter)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	node, err := registry.CreateNode(ctx, server.config("TEST"))
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	defer node.Close()

	player := registry.NewPlayer(100, 555)
	channelID := int64(555)
	if err := player.OnVoiceStateUpdate(ctx, "vs", &channelID); err != nil {
		t.Fatal(err)
	}
	if err := player.OnVoiceServerUpdate(ctx, "tok", "us-west1.discord.media:443"); err != nil {
		t.Fatal(err)
	}

	// A region move hands out a new endpoint; the player must re-run
	// placement and forward the fresh credentials.
	if err := player.OnVoiceServerUpdate(ctx, "tok2", "rotterdam7.discord.media:443"); err != nil {
		t.Fatalf("endpoint change failed: %v", err)
	}
	if player.VoiceEndpoint() != "rotterdam7.discord.media:443" {
		t.Fatalf("expected the new endpoint, got %q", player.VoiceEndpoint())
	}
	if player.Node() == nil {
		t.Fatal("expected the player to stay bound")
	}
}
