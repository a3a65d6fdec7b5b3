package mafic

import "encoding/json"

// TrackInfo is the wire form of a track's metadata.
type TrackInfo struct {
	Identifier string `json:"identifier"`
	IsSeekable bool   `json:"isSeekable"`
	Author     string `json:"author"`
	Length     int64  `json:"length"`
	IsStream   bool   `json:"isStream"`
	Position   int64  `json:"position"`
	Title      string `json:"title"`
	URI        string `json:"uri,omitempty"`
	ArtworkURL string `json:"artworkUrl,omitempty"`
	ISRC       string `json:"isrc,omitempty"`
	SourceName string `json:"sourceName"`
}

// TrackData bundles a track's opaque id with its metadata, as nodes send it.
type TrackData struct {
	Encoded string    `json:"encoded"`
	Info    TrackInfo `json:"info"`
}

// Track represents a playable track. ID is server-defined opaque data which
// this client never interprets, except for best-effort local decoding.
type Track struct {
	ID         string
	Title      string
	Author     string
	Identifier string
	URI        string
	Source     string
	Stream     bool
	Seekable   bool
	Position   int64
	Length     int64
	ArtworkURL string
	ISRC       string
}

// Track converts the wire form into a Track.
func (d TrackData) Track() Track {
	return Track{
		ID:         d.Encoded,
		Title:      d.Info.Title,
		Author:     d.Info.Author,
		Identifier: d.Info.Identifier,
		URI:        d.Info.URI,
		Source:     d.Info.SourceName,
		Stream:     d.Info.IsStream,
		Seekable:   d.Info.IsSeekable,
		Position:   d.Info.Position,
		Length:     d.Info.Length,
		ArtworkURL: d.Info.ArtworkURL,
		ISRC:       d.Info.ISRC,
	}
}

// Data converts the track back into its wire form.
func (t Track) Data() TrackData {
	return TrackData{
		Encoded: t.ID,
		Info: TrackInfo{
			Identifier: t.Identifier,
			IsSeekable: t.Seekable,
			Author:     t.Author,
			Length:     t.Length,
			IsStream:   t.Stream,
			Position:   t.Position,
			Title:      t.Title,
			URI:        t.URI,
			ArtworkURL: t.ArtworkURL,
			ISRC:       t.ISRC,
			SourceName: t.Source,
		},
	}
}

// Playlist is an ordered track collection loaded from a node.
type Playlist struct {
	Name          string
	SelectedTrack int
	Tracks        []Track
	PluginInfo    map[string]any
}

type playlistInfoPayload struct {
	Name          string `json:"name"`
	SelectedTrack int    `json:"selectedTrack"`
}

// parseLoadResult decodes a loadtracks response. The loadType discriminant
// has both v4 (lower case) and v3 (upper case) spellings.
func parseLoadResult(data []byte) ([]Track, *Playlist, error) {
	var envelope struct {
		LoadType string          `json:"loadType"`
		Data     json.RawMessage `json:"data"`
		// v3 fields
		Tracks       []TrackData          `json:"tracks"`
		PlaylistInfo *playlistInfoPayload `json:"playlistInfo"`
		Exception    *ExceptionData       `json:"exception"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, nil, WrapError(err, ErrCodeJSONParse)
	}

	switch envelope.LoadType {
	case "empty", "NO_MATCHES":
		return nil, nil, nil

	case "track":
		var track TrackData
		if err := json.Unmarshal(envelope.Data, &track); err != nil {
			return nil, nil, WrapError(err, ErrCodeJSONParse)
		}
		return []Track{track.Track()}, nil, nil

	case "search":
		var tracks []TrackData
		if err := json.Unmarshal(envelope.Data, &tracks); err != nil {
			return nil, nil, WrapError(err, ErrCodeJSONParse)
		}
		return trackList(tracks), nil, nil

	case "playlist":
		var playlist struct {
			Info       playlistInfoPayload `json:"info"`
			Tracks     []TrackData         `json:"tracks"`
			PluginInfo map[string]any      `json:"pluginInfo"`
		}
		if err := json.Unmarshal(envelope.Data, &playlist); err != nil {
			return nil, nil, WrapError(err, ErrCodeJSONParse)
		}
		return nil, &Playlist{
			Name:          playlist.Info.Name,
			SelectedTrack: playlist.Info.SelectedTrack,
			Tracks:        trackList(playlist.Tracks),
			PluginInfo:    playlist.PluginInfo,
		}, nil

	case "error":
		var exc ExceptionData
		if err := json.Unmarshal(envelope.Data, &exc); err != nil {
			return nil, nil, WrapError(err, ErrCodeJSONParse)
		}
		return nil, nil, &TrackLoadError{Message: exc.Message, Severity: exc.Severity, Cause: exc.Cause}

	case "TRACK_LOADED":
		if len(envelope.Tracks) == 0 {
			return nil, nil, nil
		}
		return []Track{envelope.Tracks[0].Track()}, nil, nil

	case "SEARCH_RESULT":
		return trackList(envelope.Tracks), nil, nil

	case "PLAYLIST_LOADED":
		playlist := &Playlist{
			Tracks:     trackList(envelope.Tracks),
			PluginInfo: map[string]any{},
		}
		if envelope.PlaylistInfo != nil {
			playlist.Name = envelope.PlaylistInfo.Name
			playlist.SelectedTrack = envelope.PlaylistInfo.SelectedTrack
		}
		return nil, playlist, nil

	case "LOAD_FAILED":
		exc := envelope.Exception
		if exc == nil {
			exc = &ExceptionData{Severity: "fault", Message: "load failed"}
		}
		return nil, nil, &TrackLoadError{Message: exc.Message, Severity: exc.Severity, Cause: exc.Cause}

	default:
		globalLogger.WithComponent("track").Warnf("Unknown load type received: %s", envelope.LoadType)
		return nil, nil, nil
	}
}

func trackList(data []TrackData) []Track {
	tracks := make([]Track, len(data))
	for i, d := range data {
		tracks[i] = d.Track()
	}
	return tracks
}
