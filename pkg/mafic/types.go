package mafic

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// ConnectionState enum for a node's websocket session.
type ConnectionState string

const (
	Disconnected  ConnectionState = "disconnected"
	Connecting    ConnectionState = "connecting"
	AwaitingReady ConnectionState = "awaiting_ready"
	Available     ConnectionState = "available"
)

// VoiceState is the voice credential triple a player forwards to its node,
// extended by the node with connection info in REST player responses.
type VoiceState struct {
	Token     string `json:"token"`
	Endpoint  string `json:"endpoint"`
	SessionID string `json:"sessionId"`
	Connected bool   `json:"connected,omitempty"`
	Ping      int    `json:"ping,omitempty"`
}

// PlayerState is the REST representation of one player on a node.
type PlayerState struct {
	GuildID string         `json:"guildId"`
	Track   *TrackData     `json:"track"`
	Volume  int            `json:"volume"`
	Paused  bool           `json:"paused"`
	Voice   VoiceState     `json:"voice"`
	Filters FiltersPayload `json:"filters"`
}

// UpdatePlayerPayload is the body of a PATCH player request. Pointer fields
// are omitted when nil so partial updates stay partial. ClearTrack forces
// an explicit null encodedTrack, which tells the node to stop playback.
type UpdatePlayerPayload struct {
	EncodedTrack *string         `json:"encodedTrack,omitempty"`
	Identifier   *string         `json:"identifier,omitempty"`
	Position     *int64          `json:"position,omitempty"`
	EndTime      *int64          `json:"endTime,omitempty"`
	Volume       *int            `json:"volume,omitempty"`
	Paused       *bool           `json:"paused,omitempty"`
	Filters      *FiltersPayload `json:"filters,omitempty"`
	Voice        *VoiceState     `json:"voice,omitempty"`
	ClearTrack   bool            `json:"-"`
}

func (u UpdatePlayerPayload) MarshalJSON() ([]byte, error) {
	type alias UpdatePlayerPayload
	data, err := json.Marshal(alias(u))
	if err != nil || !u.ClearTrack {
		return data, err
	}
	if string(data) == "{}" {
		return []byte(`{"encodedTrack":null}`), nil
	}
	return append([]byte(`{"encodedTrack":null,`), data[1:]...), nil
}

// UpdateSessionPayload configures resumption on a node session.
type UpdateSessionPayload struct {
	ResumingKey *string `json:"resumingKey,omitempty"`
	Resuming    *bool   `json:"resuming,omitempty"`
	Timeout     int     `json:"timeout"`
}

// Plugin is one plugin reported by a node.
type Plugin struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// ExceptionData is the error detail a node attaches to failed loads and
// track exception events.
type ExceptionData struct {
	Severity string `json:"severity"`
	Message  string `json:"message"`
	Cause    string `json:"cause,omitempty"`
}

// IncomingMessage is one frame from the node websocket, discriminated by
// the "op" field. Unknown ops decode to UnknownMessage rather than failing.
type IncomingMessage interface {
	incomingOp() string
}

// PlayerUpdateState carries position and connectivity for one player.
type PlayerUpdateState struct {
	Time      int64 `json:"time"`
	Position  int64 `json:"position"`
	Connected bool  `json:"connected"`
	Ping      int   `json:"ping"`
}

// PlayerUpdateMessage is the "playerUpdate" op.
type PlayerUpdateMessage struct {
	GuildID string            `json:"guildId"`
	State   PlayerUpdateState `json:"state"`
}

// StatsMessage is the "stats" op.
type StatsMessage struct {
	Players        int           `json:"players"`
	PlayingPlayers int           `json:"playingPlayers"`
	Uptime         int64         `json:"uptime"`
	Memory         MemoryPayload `json:"memory"`
	CPU            CPUPayload    `json:"cpu"`
	FrameStats     *FramePayload `json:"frameStats,omitempty"`
}

// ReadyMessage is the "ready" op.
type ReadyMessage struct {
	Resumed   bool   `json:"resumed"`
	SessionID string `json:"sessionId"`
}

// EventMessage is the "event" op, itself discriminated by "type".
type EventMessage struct {
	GuildID string `json:"guildId"`
	Event   EventPayload
}

// UnknownMessage preserves frames with an unrecognised op.
type UnknownMessage struct {
	Op  string
	Raw json.RawMessage
}

func (PlayerUpdateMessage) incomingOp() string { return "playerUpdate" }
func (StatsMessage) incomingOp() string        { return "stats" }
func (ReadyMessage) incomingOp() string        { return "ready" }
func (EventMessage) incomingOp() string        { return "event" }
func (m UnknownMessage) incomingOp() string    { return m.Op }

// EventPayload is the per-type body of an "event" frame. Unknown types
// decode to UnknownEvent.
type EventPayload interface {
	eventType() string
}

// Events carry the full track object on v4 nodes and only the encoded id on
// v3 ones, so both fields are present and at most one is set.
type trackEventFields struct {
	Track        *TrackData `json:"track,omitempty"`
	EncodedTrack string     `json:"encodedTrack,omitempty"`
}

func (f trackEventFields) eventTrack() *Track {
	if f.Track != nil {
		t := f.Track.Track()
		return &t
	}
	return nil
}

type TrackStartEventPayload struct {
	trackEventFields
}

type TrackEndEventPayload struct {
	trackEventFields
	Reason string `json:"reason"`
}

type TrackExceptionEventPayload struct {
	trackEventFields
	Exception ExceptionData `json:"exception"`
}

type TrackStuckEventPayload struct {
	trackEventFields
	ThresholdMs int64 `json:"thresholdMs"`
}

type WebSocketClosedEventPayload struct {
	Code     int    `json:"code"`
	Reason   string `json:"reason"`
	ByRemote bool   `json:"byRemote"`
}

// UnknownEventPayload preserves events with an unrecognised type.
type UnknownEventPayload struct {
	Type string
	Raw  json.RawMessage
}

func (TrackStartEventPayload) eventType() string      { return "TrackStartEvent" }
func (TrackEndEventPayload) eventType() string        { return "TrackEndEvent" }
func (TrackExceptionEventPayload) eventType() string  { return "TrackExceptionEvent" }
func (TrackStuckEventPayload) eventType() string      { return "TrackStuckEvent" }
func (WebSocketClosedEventPayload) eventType() string { return "WebSocketClosedEvent" }
func (e UnknownEventPayload) eventType() string       { return e.Type }

// DecodeIncoming decodes one websocket frame into its op-specific message.
func DecodeIncoming(data []byte) (IncomingMessage, error) {
	var envelope struct {
		Op string `json:"op"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, WrapError(err, ErrCodeJSONParse)
	}

	switch envelope.Op {
	case "playerUpdate":
		var msg PlayerUpdateMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, WrapError(err, ErrCodeJSONParse)
		}
		return msg, nil
	case "stats":
		var msg StatsMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, WrapError(err, ErrCodeJSONParse)
		}
		return msg, nil
	case "ready":
		var msg ReadyMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, WrapError(err, ErrCodeJSONParse)
		}
		return msg, nil
	case "event":
		return decodeEvent(data)
	default:
		return UnknownMessage{Op: envelope.Op, Raw: append(json.RawMessage(nil), data...)}, nil
	}
}

func decodeEvent(data []byte) (IncomingMessage, error) {
	var envelope struct {
		Type    string `json:"type"`
		GuildID string `json:"guildId"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, WrapError(err, ErrCodeJSONParse)
	}

	msg := EventMessage{GuildID: envelope.GuildID}

	var payload EventPayload
	var err error
	switch envelope.Type {
	case "TrackStartEvent":
		var p TrackStartEventPayload
		err = json.Unmarshal(data, &p)
		payload = p
	case "TrackEndEvent":
		var p TrackEndEventPayload
		err = json.Unmarshal(data, &p)
		payload = p
	case "TrackExceptionEvent":
		var p TrackExceptionEventPayload
		err = json.Unmarshal(data, &p)
		payload = p
	case "TrackStuckEvent":
		var p TrackStuckEventPayload
		err = json.Unmarshal(data, &p)
		payload = p
	case "WebSocketClosedEvent":
		var p WebSocketClosedEventPayload
		err = json.Unmarshal(data, &p)
		payload = p
	default:
		payload = UnknownEventPayload{Type: envelope.Type, Raw: append(json.RawMessage(nil), data...)}
	}
	if err != nil {
		return nil, WrapError(err, ErrCodeJSONParse)
	}

	msg.Event = payload
	return msg, nil
}

func parseGuildID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("mafic: invalid guild id %q: %w", raw, err)
	}
	return id, nil
}

func formatGuildID(id int64) string {
	return strconv.FormatInt(id, 10)
}
