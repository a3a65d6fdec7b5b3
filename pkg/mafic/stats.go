package mafic

import (
	"math"
	"time"
)

// NoStatsWeight is reported by nodes that have not sent statistics yet, so
// they are only picked when nothing better informed exists.
const NoStatsWeight = 6.63e34

// MemoryPayload is the memory section of a stats frame.
type MemoryPayload struct {
	Free       int64 `json:"free"`
	Used       int64 `json:"used"`
	Allocated  int64 `json:"allocated"`
	Reservable int64 `json:"reservable"`
}

// CPUPayload is the CPU section of a stats frame.
type CPUPayload struct {
	Cores        int     `json:"cores"`
	SystemLoad   float64 `json:"systemLoad"`
	LavalinkLoad float64 `json:"lavalinkLoad"`
}

// FramePayload is the optional UDP frame section of a stats frame.
type FramePayload struct {
	Sent    int64 `json:"sent"`
	Nulled  int64 `json:"nulled"`
	Deficit int64 `json:"deficit"`
}

// NodeStats is a snapshot of server-reported load statistics.
type NodeStats struct {
	PlayerCount        int
	PlayingPlayerCount int
	Uptime             time.Duration
	Memory             MemoryPayload
	CPU                CPUPayload
	FrameStats         *FramePayload
}

func newNodeStats(msg StatsMessage) *NodeStats {
	return &NodeStats{
		PlayerCount:        msg.Players,
		PlayingPlayerCount: msg.PlayingPlayers,
		Uptime:             time.Duration(msg.Uptime) * time.Millisecond,
		Memory:             msg.Memory,
		CPU:                msg.CPU,
		FrameStats:         msg.FrameStats,
	}
}

// Weight computes the load score used to prefer less-loaded nodes. The
// constants are tuned values carried over unchanged; their exact shape
// drives selection behaviour.
//
// A rough feel for the terms:
//
//	| cores | load | cpu term |     | null frames | term |
//	|-------|------|----------|     |-------------|------|
//	| 1     | 0.1  | 16       |     | 10          | 30   |
//	| 1     | 0.5  | 114      |     | 100         | 382  |
//	| 3     | 3    | 1315     |     | 250         | 1456 |
//
// The memory term stays near zero until usage crosses 96% of reservable.
func (s *NodeStats) Weight() float64 {
	players := float64(s.PlayingPlayerCount)

	cpu := math.Pow(1.05, 100*s.CPU.SystemLoad/float64(s.CPU.Cores))*10 - 10

	var null, deficit float64
	if s.FrameStats != nil {
		null = math.Pow(1.03, float64(s.FrameStats.Nulled)/6)*600 - 600
		deficit = math.Pow(1.03, float64(s.FrameStats.Deficit)/6)*600 - 600
	}

	mem := math.Max(math.Pow(10, 100*float64(s.Memory.Used)/float64(s.Memory.Reservable)-96), 1) - 1

	return players + cpu + null + deficit + mem
}
