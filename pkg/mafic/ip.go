package mafic

import (
	"encoding/json"
	"strconv"
	"time"
)

// RoutePlannerType discriminates the route planner status shapes.
type RoutePlannerType string

const (
	RoutePlannerNone         RoutePlannerType = ""
	RoutePlannerRotating     RoutePlannerType = "RotatingIpRoutePlanner"
	RoutePlannerNano         RoutePlannerType = "NanoIpRoutePlanner"
	RoutePlannerRotatingNano RoutePlannerType = "RotatingNanoIpRoutePlanner"
	RoutePlannerBalancing    RoutePlannerType = "BalancingIpRoutePlanner"
	RoutePlannerUnknown      RoutePlannerType = "unknown"
)

// IPBlockType is the address family of an IP block.
type IPBlockType string

const (
	IPBlockV4 IPBlockType = "Inet4Address"
	IPBlockV6 IPBlockType = "Inet6Address"
)

// IPBlock describes the address block a route planner rotates over.
type IPBlock struct {
	Type IPBlockType
	Size int64
}

// FailingAddress is one address the node has marked as failing.
type FailingAddress struct {
	Address string
	Time    time.Time
}

// RoutePlannerStatus is the status of a node's outbound-IP rotation
// subsystem. Type selects which variant fields are meaningful:
//
//	RoutePlannerRotating     RotateIndex, IPIndex, CurrentAddress
//	RoutePlannerNano         CurrentAddressIndex
//	RoutePlannerRotatingNano BlockIndex, CurrentAddressIndex
//	RoutePlannerBalancing    none
type RoutePlannerStatus struct {
	Type             RoutePlannerType
	IPBlock          IPBlock
	FailingAddresses []FailingAddress

	RotateIndex         int64
	IPIndex             int64
	CurrentAddress      string
	CurrentAddressIndex int64
	BlockIndex          int64
}

type routePlannerPayload struct {
	Class   *string `json:"class"`
	Details *struct {
		IPBlock struct {
			Type string `json:"type"`
			Size string `json:"size"`
		} `json:"ipBlock"`
		FailingAddresses []struct {
			Address          string `json:"address"`
			FailingTimestamp int64  `json:"failingTimestamp"`
		} `json:"failingAddresses"`
		RotateIndex         string `json:"rotateIndex"`
		IPIndex             string `json:"ipIndex"`
		CurrentAddress      string `json:"currentAddress"`
		CurrentAddressIndex string `json:"currentAddressIndex"`
		BlockIndex          string `json:"blockIndex"`
	} `json:"details"`
}

// parseRoutePlannerStatus decodes a routeplanner/status body. A null class
// means no planner is configured and yields nil. An unrecognised class maps
// to RoutePlannerUnknown so callers can log it without failing.
func parseRoutePlannerStatus(data []byte) (*RoutePlannerStatus, error) {
	var payload routePlannerPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, WrapError(err, ErrCodeJSONParse)
	}

	if payload.Class == nil || payload.Details == nil {
		return nil, nil
	}

	status := &RoutePlannerStatus{
		IPBlock: IPBlock{
			Type: IPBlockType(payload.Details.IPBlock.Type),
			Size: parseWireInt(payload.Details.IPBlock.Size),
		},
	}
	for _, addr := range payload.Details.FailingAddresses {
		status.FailingAddresses = append(status.FailingAddresses, FailingAddress{
			Address: addr.Address,
			Time:    time.UnixMilli(addr.FailingTimestamp).UTC(),
		})
	}

	switch RoutePlannerType(*payload.Class) {
	case RoutePlannerRotating:
		status.Type = RoutePlannerRotating
		status.RotateIndex = parseWireInt(payload.Details.RotateIndex)
		status.IPIndex = parseWireInt(payload.Details.IPIndex)
		status.CurrentAddress = payload.Details.CurrentAddress
	case RoutePlannerNano:
		status.Type = RoutePlannerNano
		status.CurrentAddressIndex = parseWireInt(payload.Details.CurrentAddressIndex)
	case RoutePlannerRotatingNano:
		status.Type = RoutePlannerRotatingNano
		status.BlockIndex = parseWireInt(payload.Details.BlockIndex)
		status.CurrentAddressIndex = parseWireInt(payload.Details.CurrentAddressIndex)
	case RoutePlannerBalancing:
		status.Type = RoutePlannerBalancing
	default:
		status.Type = RoutePlannerUnknown
	}

	return status, nil
}

// Indexes and sizes arrive as decimal strings on the wire.
func parseWireInt(raw string) int64 {
	value, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0
	}
	return value
}
