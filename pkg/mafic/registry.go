package mafic

import (
	"context"
	"sync"
)

// NodeRegistry owns the fleet of audio nodes and places guilds onto them.
// All methods are safe for concurrent use.
type NodeRegistry struct {
	adapter    HostAdapter
	log        *Logger
	strategies []StrategyFunc

	mu    sync.RWMutex
	nodes map[string]*Node
}

// RegistryOption customizes a NodeRegistry.
type RegistryOption func(*NodeRegistry)

// WithStrategies replaces the default placement pipeline.
func WithStrategies(strategies ...StrategyFunc) RegistryOption {
	return func(r *NodeRegistry) {
		r.strategies = strategies
	}
}

// WithLogger replaces the registry's logger.
func WithLogger(log *Logger) RegistryOption {
	return func(r *NodeRegistry) {
		r.log = log.WithComponent("registry")
	}
}

// NewNodeRegistry builds a registry bound to a host adapter. The adapter
// must be non-nil before nodes can be created.
func NewNodeRegistry(adapter HostAdapter, opts ...RegistryOption) *NodeRegistry {
	r := &NodeRegistry{
		adapter:    adapter,
		log:        GetGlobalLogger().WithComponent("registry"),
		strategies: DefaultStrategies(),
		nodes:      make(map[string]*Node),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// CreateNode registers a node for the given config and connects it. The
// label must be unique within the registry.
func (r *NodeRegistry) CreateNode(ctx context.Context, config NodeConfig) (*Node, error) {
	if r.adapter == nil {
		return nil, ErrRegistryNotInitialized
	}
	if problems := config.Validate(); len(problems) > 0 {
		return nil, NewMaficError("invalid node config", ErrCodeConfigInvalid).
			AddDetail("label", config.Label).
			AddDetail("problems", problems)
	}

	node := newNode(config, r, r.adapter, r.log)

	r.mu.Lock()
	if _, exists := r.nodes[node.Label()]; exists {
		r.mu.Unlock()
		return nil, NewMaficError("node label already registered", ErrCodeConfigInvalid).
			AddDetail("label", node.Label())
	}
	r.nodes[node.Label()] = node
	r.mu.Unlock()

	r.log.Infof("Created node %s, connecting to it...", node.Label())

	if err := node.Connect(ctx); err != nil {
		// Close before unregistering so a half-open socket cannot linger
		// behind a node nothing can reach anymore.
		node.Close()
		r.mu.Lock()
		delete(r.nodes, node.Label())
		r.mu.Unlock()
		return nil, err
	}
	return node, nil
}

// Node returns the node registered under a label.
func (r *NodeRegistry) Node(label string) (*Node, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	node, ok := r.nodes[label]
	return node, ok
}

// Nodes returns every registered node.
func (r *NodeRegistry) Nodes() []*Node {
	r.mu.RLock()
	defer r.mu.RUnlock()
	nodes := make([]*Node, 0, len(r.nodes))
	for _, node := range r.nodes {
		nodes = append(nodes, node)
	}
	return nodes
}

// availableNodes returns nodes eligible for placement. A node that is
// connected but not yet reconciled does not count.
func (r *NodeRegistry) availableNodes() []*Node {
	r.mu.RLock()
	defer r.mu.RUnlock()
	nodes := make([]*Node, 0, len(r.nodes))
	for _, node := range r.nodes {
		if node.Available() {
			nodes = append(nodes, node)
		}
	}
	return nodes
}

// GetNode picks a node for a guild by running the placement pipeline.
// endpoint is the guild's voice endpoint, empty if unknown.
func (r *NodeRegistry) GetNode(guildID int64, endpoint string) (*Node, error) {
	candidates := r.availableNodes()
	if len(candidates) == 0 {
		return nil, ErrNoNodesAvailable
	}

	for _, strategy := range r.strategies {
		candidates = strategy(candidates, guildID, r.adapter.ShardCount(), endpoint)
		switch len(candidates) {
		case 0:
			return nil, ErrNoNodesAvailable
		case 1:
			return candidates[0], nil
		}
	}

	// The pipeline left several equally good nodes.
	tiebreak := RandomStrategy(candidates, guildID, r.adapter.ShardCount(), endpoint)
	return tiebreak[0], nil
}

// RemoveNode unregisters a node and relocates its players. With transfer
// set, each player is moved onto another node picked by the placement
// pipeline; players that cannot be moved are disconnected. The node's
// transport is closed only after every player has been handled.
func (r *NodeRegistry) RemoveNode(ctx context.Context, label string, transfer bool) error {
	r.mu.Lock()
	node, ok := r.nodes[label]
	if !ok {
		r.mu.Unlock()
		return NewMaficError("no such node", ErrCodeConfigInvalid).AddDetail("label", label)
	}
	delete(r.nodes, label)
	r.mu.Unlock()

	players := node.Players()
	r.log.Infof("Removing node %s with %d players.", label, len(players))

	var wg sync.WaitGroup
	for _, player := range players {
		wg.Add(1)
		go func(player *Player) {
			defer wg.Done()
			r.relocatePlayer(ctx, player, transfer)
		}(player)
	}
	wg.Wait()

	return node.Close()
}

func (r *NodeRegistry) relocatePlayer(ctx context.Context, player *Player, transfer bool) {
	if transfer {
		target, err := r.GetNode(player.GuildID(), player.VoiceEndpoint())
		if err != nil {
			r.log.WithGuild(player.GuildID()).Warn(
				"No node available for transfer, disconnecting player.")
		} else if err := player.TransferTo(ctx, target); err != nil {
			r.log.WithGuild(player.GuildID()).WithError(err).Warn(
				"Player transfer failed, disconnecting it instead.")
		} else {
			return
		}
	}

	if err := player.Disconnect(ctx, true); err != nil {
		r.log.WithGuild(player.GuildID()).WithError(err).Warn("Player disconnect failed.")
	}
}

// NewPlayer builds an unbound player for a guild voice channel. The
// player binds to a node once voice credentials arrive through
// OnVoiceServerUpdate.
func (r *NodeRegistry) NewPlayer(guildID, channelID int64) *Player {
	return newPlayer(r, r.adapter, guildID, channelID)
}

// LoadFleet creates and connects a node for every entry in a fleet config
// file. Creation stops at the first failure.
func (r *NodeRegistry) LoadFleet(ctx context.Context, path string) error {
	fleet, err := LoadFleetConfig(path)
	if err != nil {
		return err
	}

	for _, config := range fleet.Nodes {
		if _, err := r.CreateNode(ctx, config); err != nil {
			return WrapError(err, ErrCodeConfigInvalid).AddDetail("label", config.Label)
		}
	}
	return nil
}

// Close removes every node, disconnecting all players.
func (r *NodeRegistry) Close(ctx context.Context) error {
	var first error
	for _, node := range r.Nodes() {
		if err := r.RemoveNode(ctx, node.Label(), false); err != nil && first == nil {
			first = err
		}
	}
	return first
}
