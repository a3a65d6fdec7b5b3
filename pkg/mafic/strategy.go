package mafic

import (
	"math/rand"
	"regexp"
)

// StrategyFunc narrows a candidate node list for one placement decision.
// Strategies are pure filters: they may reorder or shrink the slice they
// are given but never invent nodes.
type StrategyFunc func(nodes []*Node, guildID int64, shardCount int, endpoint string) []*Node

var voiceEndpointRegex = regexp.MustCompile(`^(?:vip-)?([a-z-]{1,15})\d{1,5}\.discord\.media`)

// ShardStrategy keeps nodes assigned to the guild's shard. Nodes with no
// shard assignment serve every shard.
func ShardStrategy(nodes []*Node, guildID int64, shardCount int, endpoint string) []*Node {
	if shardCount <= 0 {
		shardCount = 1
	}
	shard := int((guildID >> 22) % int64(shardCount))

	matched := make([]*Node, 0, len(nodes))
	for _, node := range nodes {
		ids := node.ShardIDs()
		if ids == nil {
			matched = append(matched, node)
			continue
		}
		for _, id := range ids {
			if id == shard {
				matched = append(matched, node)
				break
			}
		}
	}
	return matched
}

// LocationStrategy keeps nodes preferring the voice endpoint's region.
// A node's configured regions may be voice regions or the group names in
// RegionGroups and BroadGroups. Nodes with no region list serve every
// region. When the endpoint is unrecognized or no node claims its
// region, the candidate set passes through unchanged so a bad endpoint
// never strands a guild.
func LocationStrategy(nodes []*Node, guildID int64, shardCount int, endpoint string) []*Node {
	region := endpointRegion(endpoint)
	if region == "" {
		return nodes
	}

	matched := make([]*Node, 0, len(nodes))
	for _, node := range nodes {
		regions := node.Regions()
		if regions == nil {
			matched = append(matched, node)
			continue
		}
		for _, r := range regions {
			if regionMatches(r, region) {
				matched = append(matched, node)
				break
			}
		}
	}
	if len(matched) == 0 {
		return nodes
	}
	return matched
}

func endpointRegion(endpoint string) string {
	if endpoint == "" {
		return ""
	}
	m := voiceEndpointRegex.FindStringSubmatch(endpoint)
	if m == nil {
		return ""
	}
	return m[1]
}

// UsageStrategy keeps the least loaded nodes by weight. Weights are
// sampled once up front; a stats frame landing mid-selection must not be
// able to empty the candidate set. Nodes that have not reported stats
// score a sentinel high weight, so they lose to any node with data.
func UsageStrategy(nodes []*Node, guildID int64, shardCount int, endpoint string) []*Node {
	if len(nodes) == 0 {
		return nodes
	}

	weights := make([]float64, len(nodes))
	for i, node := range nodes {
		weights[i] = node.Weight()
	}

	lowest := weights[0]
	for _, w := range weights[1:] {
		if w < lowest {
			lowest = w
		}
	}

	matched := make([]*Node, 0, len(nodes))
	for i, node := range nodes {
		if weights[i] == lowest {
			matched = append(matched, node)
		}
	}
	return matched
}

// RandomStrategy keeps one node picked uniformly at random.
func RandomStrategy(nodes []*Node, guildID int64, shardCount int, endpoint string) []*Node {
	if len(nodes) == 0 {
		return nodes
	}
	return []*Node{nodes[rand.Intn(len(nodes))]}
}

// DefaultStrategies is the placement pipeline used when a registry is
// built without an explicit one: shard affinity, then region affinity,
// then load, then a random tiebreak.
func DefaultStrategies() []StrategyFunc {
	return []StrategyFunc{ShardStrategy, LocationStrategy, UsageStrategy, RandomStrategy}
}
