package mafic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
)

var urlRegex = regexp.MustCompile(`^https?://`)

func baseURL(c NodeConfig) string {
	scheme := "http"
	if c.Secure {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, c.Host, c.Port)
}

func restURL(c NodeConfig, version int, path string) string {
	return fmt.Sprintf("%s/v%d/%s", baseURL(c), version, path)
}

func websocketURL(c NodeConfig, version int) string {
	scheme := "ws"
	if c.Secure {
		scheme = "wss"
	}
	return fmt.Sprintf("%s://%s:%d/v%d/websocket", scheme, c.Host, c.Port, version)
}

func sessionPath(sessionID, suffix string) string {
	return fmt.Sprintf("sessions/%s%s", sessionID, suffix)
}

func playerPath(sessionID string, guildID int64) string {
	return sessionPath(sessionID, "/players/"+formatGuildID(guildID))
}

// request performs one REST call against the node. A 204 yields no body;
// other 2xx responses are decoded into out when out is non-nil; errors map
// onto HTTPError so callers can branch on status.
func (n *Node) request(ctx context.Context, method, path string, query url.Values, body, out any) error {
	endpoint := restURL(n.config, n.Version(), path)
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return WrapError(err, ErrCodeJSONParse)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return WrapError(err, ErrCodeConnectionFailed)
	}
	req.Header.Set("Authorization", n.config.Password)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	n.log.Debugf("%s %s", method, endpoint)

	resp, err := n.http.Do(req)
	if err != nil {
		return WrapError(err, ErrCodeConnectionFailed).AddDetail("path", path)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return WrapError(err, ErrCodeConnectionFailed)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &HTTPError{Status: resp.StatusCode, Message: errorMessage(data)}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return WrapError(err, ErrCodeJSONParse).AddDetail("path", path)
	}
	return nil
}

// errorMessage digs the human-readable message out of a server error
// body, falling back to the raw body.
func errorMessage(data []byte) string {
	var body struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(data, &body); err == nil {
		if body.Message != "" {
			return body.Message
		}
		if body.Error != "" {
			return body.Error
		}
	}
	return string(data)
}

func (n *Node) fetchVersionString(ctx context.Context) (string, error) {
	return fetchVersion(ctx, n.http, n.config)
}

// ProbeVersion fetches the version string of the node described by config
// without opening a websocket session.
func ProbeVersion(ctx context.Context, config NodeConfig) (string, error) {
	config.applyDefaults()
	client := &http.Client{Timeout: config.Timeout}
	return fetchVersion(ctx, client, config)
}

func fetchVersion(ctx context.Context, client *http.Client, config NodeConfig) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL(config)+"/version", nil)
	if err != nil {
		return "", WrapError(err, ErrCodeConnectionFailed)
	}
	req.Header.Set("Authorization", config.Password)

	resp, err := client.Do(req)
	if err != nil {
		return "", WrapError(err, ErrCodeConnectionFailed).AddDetail("label", config.Label)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", WrapError(err, ErrCodeConnectionFailed)
	}
	if resp.StatusCode != http.StatusOK {
		return "", &HTTPError{Status: resp.StatusCode, Message: errorMessage(data)}
	}
	return string(bytes.TrimSpace(data)), nil
}

// ConfigureResuming asks the node to keep our session alive across a
// short disconnect. On v3 this registers the resume key; on v4 resuming
// is flagged on the session itself.
func (n *Node) ConfigureResuming(ctx context.Context) error {
	payload := UpdateSessionPayload{Timeout: 60}
	if n.Version() == 3 {
		key := n.config.ResumeKey
		payload.ResumingKey = &key
	} else {
		resuming := true
		payload.Resuming = &resuming
	}

	return n.request(ctx, http.MethodPatch, sessionPath(n.SessionID(), ""), nil, payload, nil)
}

// UpdatePlayer patches the node-side player for a guild. noReplace, when
// true, makes the node ignore a new track if one is already playing.
func (n *Node) UpdatePlayer(ctx context.Context, guildID int64, update UpdatePlayerPayload, noReplace *bool) (*PlayerState, error) {
	var query url.Values
	if noReplace != nil {
		query = url.Values{"noReplace": {strconv.FormatBool(*noReplace)}}
	}

	var state PlayerState
	err := n.request(ctx, http.MethodPatch, playerPath(n.SessionID(), guildID), query, update, &state)
	if err != nil {
		return nil, err
	}
	return &state, nil
}

// DestroyPlayer removes the node-side player for a guild.
func (n *Node) DestroyPlayer(ctx context.Context, guildID int64) error {
	return n.request(ctx, http.MethodDelete, playerPath(n.SessionID(), guildID), nil, nil, nil)
}

// FetchPlayers lists every player the node holds for our session.
func (n *Node) FetchPlayers(ctx context.Context) ([]PlayerState, error) {
	var players []PlayerState
	err := n.request(ctx, http.MethodGet, sessionPath(n.SessionID(), "/players"), nil, nil, &players)
	if err != nil {
		return nil, err
	}
	return players, nil
}

// FetchPlayer returns the node-side state for one guild's player.
func (n *Node) FetchPlayer(ctx context.Context, guildID int64) (*PlayerState, error) {
	var state PlayerState
	err := n.request(ctx, http.MethodGet, playerPath(n.SessionID(), guildID), nil, nil, &state)
	if err != nil {
		return nil, err
	}
	return &state, nil
}

// FetchTracks resolves a query into tracks. Plain text queries are
// prefixed with the search type; anything that already looks like a URL
// is passed through untouched. Exactly one of the returns is set: a track
// list for searches, a playlist for playlist loads, or nil, nil for no
// matches.
func (n *Node) FetchTracks(ctx context.Context, query string, searchType SearchType) ([]Track, *Playlist, error) {
	identifier := query
	if !urlRegex.MatchString(query) {
		identifier = fmt.Sprintf("%s:%s", searchType, query)
	}

	var raw json.RawMessage
	err := n.request(ctx, http.MethodGet, "loadtracks", url.Values{"identifier": {identifier}}, nil, &raw)
	if err != nil {
		return nil, nil, err
	}
	return parseLoadResult(raw)
}

// DecodeTrackRemote asks the node to decode one track id, for source
// versions this client's local decoder does not understand.
func (n *Node) DecodeTrackRemote(ctx context.Context, trackID string) (*Track, error) {
	var data TrackData
	err := n.request(ctx, http.MethodGet, "decodetrack", url.Values{"encodedTrack": {trackID}}, nil, &data)
	if err != nil {
		return nil, err
	}
	if data.Encoded == "" {
		data.Encoded = trackID
	}
	track := data.Track()
	return &track, nil
}

// DecodeTracksRemote decodes a batch of track ids on the node.
func (n *Node) DecodeTracksRemote(ctx context.Context, trackIDs []string) ([]Track, error) {
	var data []TrackData
	err := n.request(ctx, http.MethodPost, "decodetracks", nil, trackIDs, &data)
	if err != nil {
		return nil, err
	}

	tracks := make([]Track, len(data))
	for i, d := range data {
		tracks[i] = d.Track()
	}
	return tracks, nil
}

// FetchPlugins lists the plugins installed on the node.
func (n *Node) FetchPlugins(ctx context.Context) ([]Plugin, error) {
	var plugins []Plugin
	err := n.request(ctx, http.MethodGet, "plugins", nil, nil, &plugins)
	if err != nil {
		return nil, err
	}
	return plugins, nil
}

// FetchRoutePlannerStatus returns the node's route planner state, or nil
// when no planner is configured.
func (n *Node) FetchRoutePlannerStatus(ctx context.Context) (*RoutePlannerStatus, error) {
	var raw json.RawMessage
	err := n.request(ctx, http.MethodGet, "routeplanner/status", nil, nil, &raw)
	if err != nil {
		return nil, err
	}
	return parseRoutePlannerStatus(raw)
}

// UnmarkFailedAddress clears one address from the route planner's failing
// set.
func (n *Node) UnmarkFailedAddress(ctx context.Context, address string) error {
	body := map[string]string{"address": address}
	return n.request(ctx, http.MethodPost, "routeplanner/free/address", nil, body, nil)
}

// UnmarkAllAddresses clears the route planner's entire failing set.
func (n *Node) UnmarkAllAddresses(ctx context.Context) error {
	return n.request(ctx, http.MethodPost, "routeplanner/free/all", nil, nil, nil)
}

// VoiceUpdate forwards the platform voice credentials for a guild to the
// node so it can open the media connection.
func (n *Node) VoiceUpdate(ctx context.Context, guildID int64, sessionID, endpoint, token string) error {
	voice := &VoiceState{
		Token:     token,
		Endpoint:  endpoint,
		SessionID: sessionID,
	}
	_, err := n.UpdatePlayer(ctx, guildID, UpdatePlayerPayload{Voice: voice}, nil)
	return err
}
