package mafic

import "time"

// EndReason is why a track stopped playing.
type EndReason string

const (
	EndReasonFinished   EndReason = "finished"
	EndReasonLoadFailed EndReason = "loadFailed"
	EndReasonStopped    EndReason = "stopped"
	EndReasonReplaced   EndReason = "replaced"
	EndReasonCleanup    EndReason = "cleanup"
)

// v3 nodes report reasons in upper snake case.
func normalizeEndReason(raw string) EndReason {
	switch raw {
	case "FINISHED":
		return EndReasonFinished
	case "LOAD_FAILED":
		return EndReasonLoadFailed
	case "STOPPED":
		return EndReasonStopped
	case "REPLACED":
		return EndReasonReplaced
	case "CLEANUP":
		return EndReasonCleanup
	default:
		return EndReason(raw)
	}
}

// Event is a client event delivered to the host adapter.
type Event interface {
	event()
}

// NodeReadyEvent fires when a node finishes reconciliation and becomes
// available.
type NodeReadyEvent struct {
	Node *Node
}

// TrackStartEvent fires when a track starts playing.
type TrackStartEvent struct {
	Player *Player
	Track  Track
}

// TrackEndEvent fires when a track stops playing.
type TrackEndEvent struct {
	Player *Player
	Track  Track
	Reason EndReason
}

// TrackExceptionEvent fires when the node hit an error while playing a
// track.
type TrackExceptionEvent struct {
	Player    *Player
	Track     Track
	Exception ExceptionData
}

// TrackStuckEvent fires when a track made no progress for longer than the
// node's configured threshold.
type TrackStuckEvent struct {
	Player    *Player
	Track     Track
	Threshold time.Duration
}

// WebSocketClosedEvent fires when the voice websocket between the node and
// the platform closed.
type WebSocketClosedEvent struct {
	Player   *Player
	Code     int
	Reason   string
	ByRemote bool
}

func (NodeReadyEvent) event()       {}
func (TrackStartEvent) event()      {}
func (TrackEndEvent) event()        {}
func (TrackExceptionEvent) event()  {}
func (TrackStuckEvent) event()      {}
func (WebSocketClosedEvent) event() {}
