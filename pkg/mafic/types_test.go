package mafic

import (
	"encoding/json"
	"testing"
)

func TestDecodeIncoming(t *testing.T) {
	t.Run("ready", func(t *testing.T) {
		msg, err := DecodeIncoming([]byte(`{"op":"ready","resumed":true,"sessionId":"abc"}`))
		if err != nil {
			t.Fatalf("decode failed: %v", err)
		}
		ready, ok := msg.(ReadyMessage)
		if !ok {
			t.Fatalf("expected a ReadyMessage, got %T", msg)
		}
		if !ready.Resumed || ready.SessionID != "abc" {
			t.Fatalf("unexpected ready message: %+v", ready)
		}
	})

	t.Run("player update", func(t *testing.T) {
		body := `{"op":"playerUpdate","guildId":"123","state":{"time":1500467109,"position":60000,"connected":true,"ping":42}}`

		msg, err := DecodeIncoming([]byte(body))
		if err != nil {
			t.Fatalf("decode failed: %v", err)
		}
		update, ok := msg.(PlayerUpdateMessage)
		if !ok {
			t.Fatalf("expected a PlayerUpdateMessage, got %T", msg)
		}
		if update.GuildID != "123" || update.State.Position != 60000 || update.State.Ping != 42 {
			t.Fatalf("unexpected update: %+v", update)
		}
	})

	t.Run("stats", func(t *testing.T) {
		body := `{"op":"stats","players":5,"playingPlayers":2,"uptime":1000,
			"memory":{"free":1,"used":2,"allocated":3,"reservable":4},
			"cpu":{"cores":8,"systemLoad":0.5,"lavalinkLoad":0.1},
			"frameStats":{"sent":3000,"nulled":10,"deficit":0}}`

		msg, err := DecodeIncoming([]byte(body))
		if err != nil {
			t.Fatalf("decode failed: %v", err)
		}
		stats, ok := msg.(StatsMessage)
		if !ok {
			t.Fatalf("expected a StatsMessage, got %T", msg)
		}
		if stats.PlayingPlayers != 2 || stats.CPU.Cores != 8 || stats.FrameStats == nil || stats.FrameStats.Nulled != 10 {
			t.Fatalf("unexpected stats: %+v", stats)
		}
	})

	t.Run("track end event", func(t *testing.T) {
		body := `{"op":"event","type":"TrackEndEvent","guildId":"123","encodedTrack":"aaa","reason":"finished"}`

		msg, err := DecodeIncoming([]byte(body))
		if err != nil {
			t.Fatalf("decode failed: %v", err)
		}
		event, ok := msg.(EventMessage)
		if !ok {
			t.Fatalf("expected an EventMessage, got %T", msg)
		}
		end, ok := event.Event.(TrackEndEventPayload)
		if !ok {
			t.Fatalf("expected a TrackEndEventPayload, got %T", event.Event)
		}
		if end.Reason != "finished" {
			t.Fatalf("unexpected reason %q", end.Reason)
		}
	})

	t.Run("websocket closed event", func(t *testing.T) {
		body := `{"op":"event","type":"WebSocketClosedEvent","guildId":"123","code":4006,"reason":"session expired","byRemote":true}`

		msg, err := DecodeIncoming([]byte(body))
		if err != nil {
			t.Fatalf("decode failed: %v", err)
		}
		closed, ok := msg.(EventMessage).Event.(WebSocketClosedEventPayload)
		if !ok {
			t.Fatalf("expected a WebSocketClosedEventPayload, got %T", msg.(EventMessage).Event)
		}
		if closed.Code != 4006 || !closed.ByRemote {
			t.Fatalf("unexpected payload: %+v", closed)
		}
	})

	t.Run("unknown event type survives", func(t *testing.T) {
		body := `{"op":"event","type":"SegmentsLoaded","guildId":"123","segments":[]}`

		msg, err := DecodeIncoming([]byte(body))
		if err != nil {
			t.Fatalf("decode failed: %v", err)
		}
		unknown, ok := msg.(EventMessage).Event.(UnknownEventPayload)
		if !ok {
			t.Fatalf("expected an UnknownEventPayload, got %T", msg.(EventMessage).Event)
		}
		if unknown.Type != "SegmentsLoaded" || len(unknown.Raw) == 0 {
			t.Fatalf("unexpected payload: %+v", unknown)
		}
	})

	t.Run("unknown op survives", func(t *testing.T) {
		msg, err := DecodeIncoming([]byte(`{"op":"somethingNew","answer":42}`))
		if err != nil {
			t.Fatalf("decode failed: %v", err)
		}
		unknown, ok := msg.(UnknownMessage)
		if !ok {
			t.Fatalf("expected an UnknownMessage, got %T", msg)
		}
		if unknown.Op != "somethingNew" {
			t.Fatalf("unexpected op %q", unknown.Op)
		}
	})

	t.Run("invalid json", func(t *testing.T) {
		if _, err := DecodeIncoming([]byte(`{`)); err == nil {
			t.Error("expected an error")
		}
	})
}

func TestUpdatePlayerPayloadMarshal(t *testing.T) {
	t.Run("partial updates stay partial", func(t *testing.T) {
		volume := 50
		data, err := json.Marshal(UpdatePlayerPayload{Volume: &volume})
		if err != nil {
			t.Fatalf("marshal failed: %v", err)
		}
		if string(data) != `{"volume":50}` {
			t.Fatalf("unexpected payload: %s", data)
		}
	})

	t.Run("clear track forces explicit null", func(t *testing.T) {
		data, err := json.Marshal(UpdatePlayerPayload{ClearTrack: true})
		if err != nil {
			t.Fatalf("marshal failed: %v", err)
		}
		if string(data) != `{"encodedTrack":null}` {
			t.Fatalf("unexpected payload: %s", data)
		}
	})

	t.Run("clear track merges with other fields", func(t *testing.T) {
		paused := true
		data, err := json.Marshal(UpdatePlayerPayload{ClearTrack: true, Paused: &paused})
		if err != nil {
			t.Fatalf("marshal failed: %v", err)
		}

		var decoded map[string]json.RawMessage
		if err := json.Unmarshal(data, &decoded); err != nil {
			t.Fatalf("round trip failed: %v", err)
		}
		if string(decoded["encodedTrack"]) != "null" {
			t.Errorf("expected an explicit null track, got %s", decoded["encodedTrack"])
		}
		if string(decoded["paused"]) != "true" {
			t.Errorf("expected paused to survive, got %s", decoded["paused"])
		}
	})
}

func TestGuildIDRoundTrip(t *testing.T) {
	id, err := parseGuildID("123456789012345678")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if formatGuildID(id) != "123456789012345678" {
		t.Fatalf("round trip changed the id: %d", id)
	}

	if _, err := parseGuildID("not-a-number"); err == nil {
		t.Error("expected an error")
	}
}
