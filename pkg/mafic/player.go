package mafic

import (
	"context"
	"sync"
	"time"
)

// The filter label used for filters restored during adoption of a player
// the node already knew about.
const resumeFilterLabel = "RESUME"

type filterEntry struct {
	label  string
	filter Filter
}

// PlayOptions tunes a Play call. Zero values leave the node defaults in
// place.
type PlayOptions struct {
	// StartTime is the position to start from, in milliseconds.
	StartTime *int64
	// EndTime stops playback at this position, in milliseconds.
	EndTime *int64
	// Volume sets the player volume together with the track.
	Volume *int
	// Paused starts the track paused when true.
	Paused *bool
	// NoReplace makes the node keep an already playing track instead.
	NoReplace bool
}

// Player is this client's view of playback in one guild voice channel.
// It binds to a node lazily, once the platform delivers voice
// credentials, and follows the node's authoritative state after every
// command.
type Player struct {
	registry *NodeRegistry
	adapter  HostAdapter
	log      *Logger
	guildID  int64

	mu        sync.Mutex
	channelID int64
	node      *Node
	sessionID string
	endpoint  string
	token     string
	connected bool
	readyCh   chan struct{}

	current    *Track
	lastTrack  *Track
	paused     bool
	volume     int
	position   int64
	lastUpdate time.Time
	ping       int
	filters    []filterEntry
}

func newPlayer(registry *NodeRegistry, adapter HostAdapter, guildID, channelID int64) *Player {
	return &Player{
		registry:  registry,
		adapter:   adapter,
		log:       GetGlobalLogger().WithComponent("player").WithGuild(guildID),
		guildID:   guildID,
		channelID: channelID,
		volume:    100,
		ping:      -1,
	}
}

// GuildID returns the guild this player belongs to.
func (p *Player) GuildID() int64 { return p.guildID }

// ChannelID returns the voice channel the player is bound to.
func (p *Player) ChannelID() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.channelID
}

// Node returns the node currently serving this player, nil if unbound.
func (p *Player) Node() *Node {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.node
}

// Connected reports whether voice credentials have been forwarded to a
// node.
func (p *Player) Connected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.connected
}

// Current returns the playing track, nil when idle.
func (p *Player) Current() *Track {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

// Paused reports whether playback is paused.
func (p *Player) Paused() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.paused
}

// Volume returns the player volume, 100 being unchanged.
func (p *Player) Volume() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.volume
}

// Ping returns the node's voice ping in milliseconds, -1 when unknown.
func (p *Player) Ping() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ping
}

// VoiceEndpoint returns the guild's voice endpoint, empty if none arrived
// yet.
func (p *Player) VoiceEndpoint() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.endpoint
}

// Position extrapolates the playback position in milliseconds from the
// last node report, clamped to the track length.
func (p *Player) Position() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.current == nil {
		return 0
	}

	pos := p.position
	if !p.paused && p.connected {
		pos += time.Since(p.lastUpdate).Milliseconds()
	}
	if pos > p.current.Length {
		pos = p.current.Length
	}
	if pos < 0 {
		pos = 0
	}
	return pos
}

// Connect asks the host platform to join the player's voice channel and
// waits until a node holds the resulting credentials.
func (p *Player) Connect(ctx context.Context, selfMute, selfDeaf bool) error {
	p.mu.Lock()
	if p.connected {
		p.mu.Unlock()
		return nil
	}
	ready := p.readyCh
	if ready == nil {
		ready = make(chan struct{})
		p.readyCh = ready
	}
	p.mu.Unlock()

	if err := p.adapter.JoinChannel(ctx, p.guildID, p.ChannelID(), selfMute, selfDeaf); err != nil {
		return err
	}

	select {
	case <-ready:
		return nil
	case <-ctx.Done():
		return WrapError(ctx.Err(), ErrCodeTimeout).AddDetail("guild", p.guildID)
	}
}

// OnVoiceStateUpdate feeds the platform's voice state for our own user
// into the player. A nil channel means we were moved out of voice and
// the player tears itself down.
func (p *Player) OnVoiceStateUpdate(ctx context.Context, sessionID string, channelID *int64) error {
	if channelID == nil {
		return p.Disconnect(ctx, false)
	}

	p.mu.Lock()
	p.channelID = *channelID
	changed := p.sessionID != sessionID
	p.sessionID = sessionID
	p.mu.Unlock()

	if changed {
		return p.forwardVoice(ctx)
	}
	return nil
}

// OnVoiceServerUpdate feeds the platform's voice server credentials into
// the player. The first update binds the player to a node; an endpoint
// change rebinds it, since a region move can invalidate the old
// placement.
func (p *Player) OnVoiceServerUpdate(ctx context.Context, token, endpoint string) error {
	p.mu.Lock()
	rebind := p.node == nil || p.endpoint != endpoint
	p.endpoint = endpoint
	p.token = token
	p.mu.Unlock()

	if rebind {
		node, err := p.registry.GetNode(p.guildID, endpoint)
		if err != nil {
			return err
		}

		p.mu.Lock()
		old := p.node
		p.node = node
		p.mu.Unlock()

		if old != nil && old != node {
			old.removePlayer(p.guildID)
		}
		node.addPlayer(p.guildID, p)
		p.log = p.log.WithLabel(node.Label())
	}

	return p.forwardVoice(ctx)
}

// forwardVoice pushes the buffered credentials to the bound node once
// both halves of the voice handshake have arrived.
func (p *Player) forwardVoice(ctx context.Context) error {
	p.mu.Lock()
	node := p.node
	sessionID, endpoint, token := p.sessionID, p.endpoint, p.token
	p.mu.Unlock()

	if node == nil || sessionID == "" || endpoint == "" {
		return nil
	}

	if err := node.VoiceUpdate(ctx, p.guildID, sessionID, endpoint, token); err != nil {
		return err
	}

	p.mu.Lock()
	p.connected = true
	ready := p.readyCh
	p.readyCh = nil
	p.mu.Unlock()

	if ready != nil {
		close(ready)
	}
	return nil
}

// updateState applies a position report from the node's dispatch loop.
func (p *Player) updateState(state PlayerUpdateState) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.position = state.Position
	p.ping = state.Ping
	p.connected = state.Connected
	p.lastUpdate = time.Now()
}

// setState seeds a freshly adopted player from the node's authoritative
// snapshot. Filters arrive merged, so they are restored under a single
// label.
func (p *Player) setState(node *Node, state PlayerState) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.node = node
	p.log = p.log.WithLabel(node.Label())
	p.sessionID = state.Voice.SessionID
	p.endpoint = state.Voice.Endpoint
	p.token = state.Voice.Token
	p.connected = true
	p.volume = state.Volume
	p.paused = state.Paused
	p.ping = state.Voice.Ping
	p.lastUpdate = time.Now()

	if state.Track != nil {
		track := state.Track.Track()
		p.current = &track
	}
	if !state.Filters.Empty() {
		p.filters = []filterEntry{{label: resumeFilterLabel, filter: state.Filters}}
	}
}

// update is the single write path to the node-side player. The echoed
// state is authoritative for track, pause flag and volume.
func (p *Player) update(ctx context.Context, payload UpdatePlayerPayload, noReplace *bool) error {
	p.mu.Lock()
	node := p.node
	connected := p.connected
	p.mu.Unlock()

	if node == nil || !connected {
		return ErrPlayerNotConnected
	}

	state, err := node.UpdatePlayer(ctx, p.guildID, payload, noReplace)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.volume = state.Volume
	p.paused = state.Paused
	if state.Track != nil {
		track := state.Track.Track()
		p.current = &track
	} else {
		p.current = nil
	}
	if payload.Position != nil {
		p.position = *payload.Position
		p.lastUpdate = time.Now()
	}
	return nil
}

// Play starts a track on the player.
func (p *Player) Play(ctx context.Context, track Track, opts *PlayOptions) error {
	if opts == nil {
		opts = &PlayOptions{}
	}

	payload := UpdatePlayerPayload{
		EncodedTrack: &track.ID,
		Position:     opts.StartTime,
		EndTime:      opts.EndTime,
		Volume:       opts.Volume,
		Paused:       opts.Paused,
	}

	var noReplace *bool
	if opts.NoReplace {
		noReplace = &opts.NoReplace
	}

	return p.update(ctx, payload, noReplace)
}

// Stop stops the current track without leaving the channel.
func (p *Player) Stop(ctx context.Context) error {
	return p.update(ctx, UpdatePlayerPayload{ClearTrack: true}, nil)
}

// Pause pauses playback.
func (p *Player) Pause(ctx context.Context) error {
	paused := true
	return p.update(ctx, UpdatePlayerPayload{Paused: &paused}, nil)
}

// Resume resumes paused playback.
func (p *Player) Resume(ctx context.Context) error {
	paused := false
	return p.update(ctx, UpdatePlayerPayload{Paused: &paused}, nil)
}

// Seek moves the playback position, in milliseconds.
func (p *Player) Seek(ctx context.Context, position int64) error {
	return p.update(ctx, UpdatePlayerPayload{Position: &position}, nil)
}

// SetVolume sets the player volume. 100 is the source volume.
func (p *Player) SetVolume(ctx context.Context, volume int) error {
	return p.update(ctx, UpdatePlayerPayload{Volume: &volume}, nil)
}

// mergedFilters folds the labelled filters into one payload, in the order
// the labels were added.
func (p *Player) mergedFilters() Filter {
	p.mu.Lock()
	entries := make([]filterEntry, len(p.filters))
	copy(entries, p.filters)
	p.mu.Unlock()

	var merged Filter
	for _, entry := range entries {
		merged = merged.Merge(entry.filter)
	}
	return merged
}

func (p *Player) applyFilters(ctx context.Context, fastApply bool) error {
	merged := p.mergedFilters()
	payload := UpdatePlayerPayload{Filters: &merged}

	if !fastApply {
		// Replaying the current position forces the node to rebuild its
		// audio pipeline so the new filters take effect immediately.
		position := p.Position()
		payload.Position = &position
	}

	return p.update(ctx, payload, nil)
}

// AddFilter registers a filter under a label and pushes the merged set to
// the node. Re-using a label overwrites that filter but keeps its slot in
// the merge order. With fastApply the node applies the change lazily,
// without rebuilding the pipeline.
func (p *Player) AddFilter(ctx context.Context, label string, filter Filter, fastApply bool) error {
	p.mu.Lock()
	replaced := false
	for i, entry := range p.filters {
		if entry.label == label {
			p.filters[i].filter = filter
			replaced = true
			break
		}
	}
	if !replaced {
		p.filters = append(p.filters, filterEntry{label: label, filter: filter})
	}
	p.mu.Unlock()

	return p.applyFilters(ctx, fastApply)
}

// RemoveFilter removes the filter under a label and pushes the merged
// remainder to the node. Unknown labels are a no-op.
func (p *Player) RemoveFilter(ctx context.Context, label string, fastApply bool) error {
	p.mu.Lock()
	found := false
	for i, entry := range p.filters {
		if entry.label == label {
			p.filters = append(p.filters[:i], p.filters[i+1:]...)
			found = true
			break
		}
	}
	p.mu.Unlock()

	if !found {
		return nil
	}
	return p.applyFilters(ctx, fastApply)
}

// HasFilter reports whether a filter is registered under a label.
func (p *Player) HasFilter(label string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, entry := range p.filters {
		if entry.label == label {
			return true
		}
	}
	return false
}

// ClearFilters drops every filter and resets the node-side pipeline.
func (p *Player) ClearFilters(ctx context.Context, fastApply bool) error {
	p.mu.Lock()
	p.filters = nil
	p.mu.Unlock()

	return p.applyFilters(ctx, fastApply)
}

// FetchTracks resolves a query through the player's node, falling back to
// any available node when unbound.
func (p *Player) FetchTracks(ctx context.Context, query string, searchType SearchType) ([]Track, *Playlist, error) {
	node := p.Node()
	if node == nil {
		var err error
		node, err = p.registry.GetNode(p.guildID, p.VoiceEndpoint())
		if err != nil {
			return nil, nil, err
		}
	}
	return node.FetchTracks(ctx, query, searchType)
}

// TransferTo moves the player onto another node: the target learns the
// voice credentials and the full playback state before the source copy is
// destroyed, so playback resumes where it left off.
func (p *Player) TransferTo(ctx context.Context, target *Node) error {
	p.mu.Lock()
	source := p.node
	sessionID, endpoint, token := p.sessionID, p.endpoint, p.token
	current := p.current
	paused := p.paused
	volume := p.volume
	p.mu.Unlock()

	if target == source {
		return nil
	}
	if sessionID == "" || endpoint == "" {
		return ErrPlayerNotConnected
	}

	p.log.Infof("Transferring player to node %s.", target.Label())

	if source != nil {
		source.removePlayer(p.guildID)
	}

	p.mu.Lock()
	p.node = target
	p.mu.Unlock()
	target.addPlayer(p.guildID, p)
	p.log = p.log.WithLabel(target.Label())

	if err := target.VoiceUpdate(ctx, p.guildID, sessionID, endpoint, token); err != nil {
		return err
	}

	p.mu.Lock()
	p.connected = true
	p.mu.Unlock()

	payload := UpdatePlayerPayload{
		Volume: &volume,
		Paused: &paused,
	}
	merged := p.mergedFilters()
	if !merged.Empty() {
		payload.Filters = &merged
	}
	if current != nil {
		payload.EncodedTrack = &current.ID
		position := p.Position()
		payload.Position = &position
	}

	if err := p.update(ctx, payload, nil); err != nil {
		return err
	}

	if source != nil {
		if err := source.DestroyPlayer(ctx, p.guildID); err != nil {
			p.log.WithError(err).Warn("Failed to destroy player on the old node.")
		}
	}
	return nil
}

// Disconnect leaves the voice channel and destroys the node-side player.
// With force set, local teardown proceeds even when the node cannot be
// reached.
func (p *Player) Disconnect(ctx context.Context, force bool) error {
	p.mu.Lock()
	node := p.node
	connected := p.connected
	p.node = nil
	p.connected = false
	p.current = nil
	p.filters = nil
	p.sessionID = ""
	p.endpoint = ""
	p.token = ""
	p.mu.Unlock()

	if !connected && !force {
		return nil
	}

	if node != nil {
		node.removePlayer(p.guildID)
		if err := node.DestroyPlayer(ctx, p.guildID); err != nil && !force {
			return err
		}
	}

	if err := p.adapter.LeaveChannel(ctx, p.guildID); err != nil && !force {
		return err
	}
	return nil
}

// dispatchEvent turns a node event payload into a typed event for the
// host adapter. Track events fall back to the locally known track when
// the node omits it, which v3 servers do.
func (p *Player) dispatchEvent(payload EventPayload) {
	switch e := payload.(type) {
	case TrackStartEventPayload:
		track := p.eventTrack(e.eventTrack())
		p.mu.Lock()
		p.lastTrack = &track
		p.mu.Unlock()
		p.adapter.DispatchEvent(TrackStartEvent{Player: p, Track: track})

	case TrackEndEventPayload:
		reason := normalizeEndReason(e.Reason)
		track := p.eventTrack(e.eventTrack())
		p.mu.Lock()
		if reason != EndReasonReplaced {
			p.current = nil
		}
		p.mu.Unlock()
		p.adapter.DispatchEvent(TrackEndEvent{Player: p, Track: track, Reason: reason})

	case TrackExceptionEventPayload:
		p.adapter.DispatchEvent(TrackExceptionEvent{
			Player:    p,
			Track:     p.eventTrack(e.eventTrack()),
			Exception: e.Exception,
		})

	case TrackStuckEventPayload:
		p.adapter.DispatchEvent(TrackStuckEvent{
			Player:    p,
			Track:     p.eventTrack(e.eventTrack()),
			Threshold: time.Duration(e.ThresholdMs) * time.Millisecond,
		})

	case WebSocketClosedEventPayload:
		p.adapter.DispatchEvent(WebSocketClosedEvent{
			Player:   p,
			Code:     e.Code,
			Reason:   e.Reason,
			ByRemote: e.ByRemote,
		})

	default:
		p.log.Warnf("Unknown event type %q, dropping it.", payload.eventType())
	}
}

func (p *Player) eventTrack(fromEvent *Track) Track {
	if fromEvent != nil {
		return *fromEvent
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current != nil {
		return *p.current
	}
	if p.lastTrack != nil {
		return *p.lastTrack
	}
	return Track{}
}
