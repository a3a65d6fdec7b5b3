package mafic

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// ClientName is sent in the websocket handshake so nodes can identify us.
const ClientName = "Mafic-Go/" + Version

// Node is this client's handle to one audio server. It owns the websocket
// session, the REST surface and the per-node player map.
//
// Nodes are built by NodeRegistry.CreateNode; do not construct them
// directly.
type Node struct {
	config   NodeConfig
	adapter  HostAdapter
	registry *NodeRegistry
	log      *Logger
	http     *http.Client

	mu             sync.RWMutex
	state          ConnectionState
	conn           *websocket.Conn
	readyCh        chan struct{}
	sessionID      string
	stats          *NodeStats
	players        map[int64]*Player
	version        int
	checkedVersion bool
	reconnecting   bool
	closed         bool
}

func newNode(config NodeConfig, registry *NodeRegistry, adapter HostAdapter, log *Logger) *Node {
	config.applyDefaults()
	if config.ResumeKey == "" {
		config.ResumeKey = uuid.NewString()
	}

	return &Node{
		config:   config,
		adapter:  adapter,
		registry: registry,
		log:      log.WithComponent("node").WithLabel(config.Label),
		http: &http.Client{
			Timeout: config.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				IdleConnTimeout:     30 * time.Second,
				MaxIdleConnsPerHost: 2,
			},
		},
		state:   Disconnected,
		players: make(map[int64]*Player),
		version: 3,
	}
}

// Host returns the configured host of the node.
func (n *Node) Host() string { return n.config.Host }

// Port returns the configured port of the node.
func (n *Node) Port() int { return n.config.Port }

// Label returns the unique label of the node.
func (n *Node) Label() string { return n.config.Label }

// Secure reports whether the node uses TLS.
func (n *Node) Secure() bool { return n.config.Secure }

// Regions returns the regions this node is preferred for, nil meaning all.
func (n *Node) Regions() []string { return n.config.Regions }

// ShardIDs returns the shards this node is preferred for, nil meaning all.
func (n *Node) ShardIDs() []int { return n.config.ShardIDs }

// State returns the connection state of the node.
func (n *Node) State() ConnectionState {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.state
}

// Available reports whether the node is connected, reconciled and eligible
// for selection.
func (n *Node) Available() bool {
	return n.State() == Available
}

// SessionID returns the server-issued session id, empty until ready.
func (n *Node) SessionID() string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.sessionID
}

// Version returns the negotiated major server version, 3 until probed.
func (n *Node) Version() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.version
}

// Stats returns the last stats snapshot, nil if none arrived yet.
func (n *Node) Stats() *NodeStats {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.stats
}

// Weight is the node's load score; nodes without stats report a sentinel
// high value so better-informed nodes win selection.
func (n *Node) Weight() float64 {
	stats := n.Stats()
	if stats == nil {
		return NoStatsWeight
	}
	return stats.Weight()
}

// Players returns the players currently bound to this node.
func (n *Node) Players() []*Player {
	n.mu.RLock()
	defer n.mu.RUnlock()
	players := make([]*Player, 0, len(n.players))
	for _, p := range n.players {
		players = append(players, p)
	}
	return players
}

// GetPlayer returns the player bound for a guild, if any.
func (n *Node) GetPlayer(guildID int64) *Player {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.players[guildID]
}

func (n *Node) addPlayer(guildID int64, player *Player) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.players[guildID] = player
}

func (n *Node) removePlayer(guildID int64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.players, guildID)
}

// Connect establishes the websocket session. Dial failures are retried
// with exponential backoff until ctx is done; the call returns once the
// node reported ready and reconciliation completed, or with a timeout
// error the caller may retry.
func (n *Node) Connect(ctx context.Context) error {
	n.mu.Lock()
	if n.conn != nil {
		n.mu.Unlock()
		return ErrNodeAlreadyConnected
	}
	n.closed = false
	n.state = Connecting
	n.mu.Unlock()

	return n.connect(ctx, newExpBackoff())
}

func (n *Node) connect(ctx context.Context, backoff *expBackoff) error {
	if err := n.checkVersion(ctx); err != nil {
		n.mu.Lock()
		n.state = Disconnected
		n.mu.Unlock()
		return err
	}

	header := http.Header{}
	header.Set("Authorization", n.config.Password)
	header.Set("User-Id", fmt.Sprint(n.adapter.UserID()))
	header.Set("Client-Name", ClientName)
	if n.Version() == 3 {
		header.Set("Resume-Key", n.config.ResumeKey)
	} else if n.config.ResumingSessionID != "" {
		header.Set("Session-Id", n.config.ResumingSessionID)
	}

	wsURL := websocketURL(n.config, n.Version())

	for {
		n.log.Infof("Connecting to audio server at %s...", wsURL)

		conn, resp, err := websocket.DefaultDialer.DialContext(ctx, wsURL, header)
		if resp != nil && resp.Body != nil {
			resp.Body.Close()
		}
		if err != nil {
			delay := backoff.Delay()
			n.log.WithError(err).Warnf("Failed to connect, retrying in %.2fs", delay.Seconds())

			select {
			case <-ctx.Done():
				n.mu.Lock()
				n.state = Disconnected
				n.mu.Unlock()
				return WrapError(ctx.Err(), ErrCodeConnectionFailed)
			case <-time.After(delay):
			}
			continue
		}

		ready := make(chan struct{})
		n.mu.Lock()
		n.conn = conn
		n.state = AwaitingReady
		n.readyCh = ready
		n.mu.Unlock()

		go n.listen(conn)

		select {
		case <-ready:
			n.log.Info("Node is now available.")
			return nil
		case <-time.After(n.config.Timeout):
			n.log.Error("Timed out waiting for node to become ready.")
			n.abortAttempt(conn)
			return NewMaficError("timed out waiting for ready", ErrCodeTimeout).AddDetail("label", n.config.Label)
		case <-ctx.Done():
			n.abortAttempt(conn)
			return WrapError(ctx.Err(), ErrCodeConnectionFailed)
		}
	}
}

// abortAttempt tears down a dialed socket whose ready never arrived. The
// conn check keeps a slow abort from touching a session established after
// it; the node ends up with no live socket, so a later Connect dials
// fresh.
func (n *Node) abortAttempt(conn *websocket.Conn) {
	n.mu.Lock()
	if n.conn == conn {
		n.conn = nil
		n.state = Disconnected
		n.readyCh = nil
	}
	n.mu.Unlock()
	conn.Close()
}

// checkVersion probes GET /version once and pins the major version used in
// REST and websocket paths. Majors 3 (minor >= 7) and 4 are supported; a
// minor ahead of what we know is a logged warning only.
func (n *Node) checkVersion(ctx context.Context) error {
	n.mu.RLock()
	checked := n.checkedVersion
	n.mu.RUnlock()
	if checked {
		return nil
	}

	raw, err := n.fetchVersionString(ctx)
	if err != nil {
		return err
	}

	major, minor, ok := parseSemver(raw)
	if !ok {
		if strings.HasSuffix(raw, "-SNAPSHOT") {
			major, minor = 4, 0
		} else {
			n.log.Warnf("Could not parse server version %q, assuming 3.7.", raw)
			major, minor = 3, 7
		}
	} else {
		if (major != 3 && major != 4) || (major == 3 && minor < 7) {
			return &VersionError{Version: raw}
		}
		if (major == 3 && minor > 7) || (major == 4 && minor > 0) {
			n.log.Warnf("Server version %s is newer than this client knows; some features may not work.", raw)
		}
	}

	n.mu.Lock()
	n.version = major
	n.checkedVersion = true
	n.mu.Unlock()
	return nil
}

func parseSemver(raw string) (major, minor int, ok bool) {
	parts := strings.SplitN(raw, ".", 3)
	if len(parts) < 3 {
		return 0, 0, false
	}
	if _, err := fmt.Sscanf(parts[0]+" "+parts[1], "%d %d", &major, &minor); err != nil {
		return 0, 0, false
	}
	return major, minor, true
}

// listen is the message dispatch loop, one long-lived goroutine per
// websocket session. It is the sole writer of connection state and stats.
func (n *Node) listen(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			n.handleDisconnect(conn, err)
			return
		}

		msg, err := DecodeIncoming(data)
		if err != nil {
			n.log.WithError(err).Error("Failed to decode websocket frame, dropping it.")
			continue
		}

		n.handleMessage(msg)
	}
}

// handleDisconnect reacts to a read failure on conn. Only the node's
// current session may tear down state; the death of an abandoned socket
// from an earlier attempt must not touch a healthy session.
func (n *Node) handleDisconnect(conn *websocket.Conn, cause error) {
	n.mu.Lock()
	if n.conn != conn {
		n.mu.Unlock()
		conn.Close()
		return
	}
	n.conn = nil
	n.state = Disconnected
	n.readyCh = nil
	closed := n.closed
	alreadyReconnecting := n.reconnecting
	if !closed {
		n.reconnecting = true
	}
	n.mu.Unlock()

	conn.Close()

	if closed || alreadyReconnecting {
		return
	}

	n.log.WithError(cause).Warnf(
		"Websocket to %s:%d closed, reconnecting", n.config.Host, n.config.Port)

	go n.reconnectLoop()
}

func (n *Node) reconnectLoop() {
	backoff := newExpBackoff()

	defer func() {
		n.mu.Lock()
		n.reconnecting = false
		n.mu.Unlock()
	}()

	for {
		delay := backoff.Delay()
		n.log.Infof("Reconnecting in %.2fs...", delay.Seconds())
		time.Sleep(delay)

		n.mu.RLock()
		closed := n.closed
		n.mu.RUnlock()
		if closed {
			return
		}

		err := n.connect(context.Background(), backoff)
		if err == nil {
			return
		}

		var verr *VersionError
		if errors.As(err, &verr) {
			n.log.WithError(err).Error("Server version became unsupported, giving up on reconnect.")
			return
		}

		n.log.WithError(err).Warn("Reconnect attempt failed.")
	}
}

func (n *Node) handleMessage(msg IncomingMessage) {
	n.log.LogMessageEvent(msg.incomingOp(), nil)

	switch m := msg.(type) {
	case PlayerUpdateMessage:
		n.handlePlayerUpdate(m)
	case StatsMessage:
		stats := newNodeStats(m)
		n.mu.Lock()
		n.stats = stats
		n.mu.Unlock()
		n.log.LogStats(stats)
	case EventMessage:
		n.handleEvent(m)
	case ReadyMessage:
		n.handleReady(m)
	case UnknownMessage:
		n.log.Warnf("Unknown incoming message op %q", m.Op)
	}
}

func (n *Node) handlePlayerUpdate(msg PlayerUpdateMessage) {
	guildID, err := parseGuildID(msg.GuildID)
	if err != nil {
		n.log.WithError(err).Error("Player update carried a bad guild id.")
		return
	}

	player := n.GetPlayer(guildID)
	if player == nil {
		if msg.State.Connected {
			// A connected player we do not know about points at a
			// reconciliation bug.
			n.log.WithGuild(guildID).Error("Could not find player for guild, discarding update.")
		} else {
			n.log.WithGuild(guildID).Debug("Dropping update for a player this client does not track.")
		}
		return
	}

	player.updateState(msg.State)
}

func (n *Node) handleEvent(msg EventMessage) {
	guildID, err := parseGuildID(msg.GuildID)
	if err != nil {
		n.log.WithError(err).Error("Event carried a bad guild id.")
		return
	}

	player := n.GetPlayer(guildID)
	if player == nil {
		n.log.WithGuild(guildID).Errorf(
			"Could not find player for guild, discarding %s.", msg.Event.eventType())
		return
	}

	player.dispatchEvent(msg.Event)
}

func (n *Node) handleReady(msg ReadyMessage) {
	n.mu.Lock()
	n.sessionID = msg.SessionID
	n.mu.Unlock()

	n.log.Debugf("Received session id %s", msg.SessionID)

	if msg.Resumed {
		n.log.Info("Successfully resumed connection with the audio server.")
	} else if err := n.ConfigureResuming(context.Background()); err != nil {
		n.log.WithError(err).Warn("Failed to send resume configuration.")
	}

	if err := n.syncPlayers(context.Background()); err != nil {
		n.log.WithError(err).Error("Player reconciliation failed; node stays unavailable.")
		n.mu.Lock()
		conn := n.conn
		n.mu.Unlock()
		if conn != nil {
			conn.Close()
		}
		return
	}

	// readyCh is consumed here so a re-sent ready frame cannot close it a
	// second time. The conn check keeps a ready that raced an abort from
	// resurrecting a torn-down node.
	n.mu.Lock()
	if n.closed || n.conn == nil {
		n.mu.Unlock()
		return
	}
	n.state = Available
	ready := n.readyCh
	n.readyCh = nil
	n.mu.Unlock()

	n.adapter.DispatchEvent(NodeReadyEvent{Node: n})

	if ready != nil {
		close(ready)
	}
}

// syncPlayers reconciles the local player map against the node's
// authoritative session list. Rooms the node knows but we do not are
// adopted; rooms we know but the node does not are torn down. Runs before
// the node flips to Available so commands cannot race an inconsistent
// view.
func (n *Node) syncPlayers(ctx context.Context) error {
	remote, err := n.FetchPlayers(ctx)
	if err != nil {
		return err
	}

	remoteByGuild := make(map[int64]PlayerState, len(remote))
	for _, state := range remote {
		guildID, err := parseGuildID(state.GuildID)
		if err != nil {
			n.log.WithError(err).Error("Remote player carried a bad guild id, skipping it.")
			continue
		}
		remoteByGuild[guildID] = state
	}

	n.mu.RLock()
	localIDs := make([]int64, 0, len(n.players))
	for guildID := range n.players {
		localIDs = append(localIDs, guildID)
	}
	n.mu.RUnlock()

	var wg sync.WaitGroup

	for guildID, state := range remoteByGuild {
		if n.GetPlayer(guildID) != nil {
			continue
		}
		wg.Add(1)
		go func(guildID int64, state PlayerState) {
			defer wg.Done()
			n.adoptPlayer(guildID, state)
		}(guildID, state)
	}

	for _, guildID := range localIDs {
		if _, ok := remoteByGuild[guildID]; ok {
			continue
		}
		wg.Add(1)
		go func(guildID int64) {
			defer wg.Done()
			player := n.GetPlayer(guildID)
			if player == nil {
				return
			}
			n.log.WithGuild(guildID).Info("Node no longer knows this player, tearing it down.")
			if err := player.Disconnect(ctx, true); err != nil {
				n.log.WithGuild(guildID).WithError(err).Warn("Teardown of stale player failed.")
			}
		}(guildID)
	}

	wg.Wait()
	return nil
}

func (n *Node) adoptPlayer(guildID int64, state PlayerState) {
	channelID, ok := n.adapter.VoiceChannelID(guildID)
	if !ok {
		n.log.WithGuild(guildID).Debug("Remote player has no local voice channel, skipping adoption.")
		return
	}

	n.log.WithGuild(guildID).Info("Adopting player reported by the node.")

	player := newPlayer(n.registry, n.adapter, guildID, channelID)
	player.setState(n, state)
	n.addPlayer(guildID, player)
}

// Close tears down the websocket and stops reconnecting. Players bound to
// the node are left to the registry's removal path.
func (n *Node) Close() error {
	n.mu.Lock()
	n.closed = true
	n.state = Disconnected
	conn := n.conn
	n.conn = nil
	n.mu.Unlock()

	if conn != nil {
		return conn.Close()
	}
	return nil
}
