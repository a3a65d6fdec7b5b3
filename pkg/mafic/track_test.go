package mafic

import (
	"encoding/base64"
	"errors"
	"testing"
)

// buildTrackBlob assembles a version 2 track blob the way servers encode
// them: a flags header, length-prefixed strings and big-endian integers.
func buildTrackBlob() []byte {
	blob := []byte{0x40, 0x00, 0x00, 0x63} // versioned flag, size
	blob = append(blob, 0x02)              // version

	appendString := func(s string) {
		blob = append(blob, 0x00, byte(len(s)))
		blob = append(blob, s...)
		blob = append(blob, 0x00)
	}

	appendString("Test Title")
	appendString("Author")
	blob = append(blob, 0, 0, 0, 0, 0, 0, 0xEA, 0x60) // length 60000ms
	appendString("dQw4w9WgXcQ")
	// stream=false rides on the string terminator, no byte of its own
	blob = append(blob, 0x01, 0x00, 0x1C) // uri present, length prefix
	blob = append(blob, "https://youtu.be/dQw4w9WgXcQ"...)
	blob = append(blob, 0x00)
	appendString("youtube")

	return blob
}

func TestDecodeTrackID(t *testing.T) {
	trackID := base64.StdEncoding.EncodeToString(buildTrackBlob())

	track, err := DecodeTrackID(trackID)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}

	if track.ID != trackID {
		t.Errorf("expected ID to round-trip, got %q", track.ID)
	}
	if track.Title != "Test Title" {
		t.Errorf("expected title %q, got %q", "Test Title", track.Title)
	}
	if track.Author != "Author" {
		t.Errorf("expected author %q, got %q", "Author", track.Author)
	}
	if track.Length != 60000 {
		t.Errorf("expected length 60000, got %d", track.Length)
	}
	if track.Identifier != "dQw4w9WgXcQ" {
		t.Errorf("expected identifier %q, got %q", "dQw4w9WgXcQ", track.Identifier)
	}
	if track.Stream {
		t.Error("expected a non-stream track")
	}
	if !track.Seekable {
		t.Error("non-stream tracks are seekable")
	}
	if track.URI != "https://youtu.be/dQw4w9WgXcQ" {
		t.Errorf("unexpected uri %q", track.URI)
	}
	if track.Source != "youtube" {
		t.Errorf("expected source %q, got %q", "youtube", track.Source)
	}
	if track.Position != 0 {
		t.Errorf("expected zero position, got %d", track.Position)
	}
}

func TestDecodeTrackIDErrors(t *testing.T) {
	tests := []struct {
		name    string
		trackID string
	}{
		{"not base64", "!!not-base64!!"},
		{"truncated", base64.StdEncoding.EncodeToString([]byte{0x40, 0x00})},
		{"header only", base64.StdEncoding.EncodeToString([]byte{0x40, 0x00, 0x00, 0x10, 0x02})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := DecodeTrackID(tt.trackID); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestTrackDataRoundTrip(t *testing.T) {
	track := Track{
		ID:         "opaque",
		Title:      "Song",
		Author:     "Artist",
		Identifier: "abc123",
		URI:        "https://example.com/abc123",
		Source:     "http",
		Stream:     true,
		Position:   1234,
		Length:     98765,
		ISRC:       "USUM71703861",
	}

	if got := track.Data().Track(); got != track {
		t.Errorf("round trip changed the track: %+v != %+v", got, track)
	}
}

func TestParseLoadResult(t *testing.T) {
	t.Run("v4 search", func(t *testing.T) {
		body := `{"loadType":"search","data":[
			{"encoded":"aaa","info":{"title":"One","author":"A","length":1000,"identifier":"x","isSeekable":true,"isStream":false,"position":0,"sourceName":"youtube"}},
			{"encoded":"bbb","info":{"title":"Two","author":"B","length":2000,"identifier":"y","isSeekable":true,"isStream":false,"position":0,"sourceName":"youtube"}}
		]}`

		tracks, playlist, err := parseLoadResult([]byte(body))
		if err != nil {
			t.Fatalf("parse failed: %v", err)
		}
		if playlist != nil {
			t.Fatal("search results must not produce a playlist")
		}
		if len(tracks) != 2 || tracks[0].Title != "One" || tracks[1].ID != "bbb" {
			t.Fatalf("unexpected tracks: %+v", tracks)
		}
	})

	t.Run("v4 single track", func(t *testing.T) {
		body := `{"loadType":"track","data":{"encoded":"aaa","info":{"title":"One","author":"A","length":1000,"identifier":"x","isSeekable":true,"isStream":false,"position":0,"sourceName":"youtube"}}}`

		tracks, _, err := parseLoadResult([]byte(body))
		if err != nil {
			t.Fatalf("parse failed: %v", err)
		}
		if len(tracks) != 1 || tracks[0].ID != "aaa" {
			t.Fatalf("unexpected tracks: %+v", tracks)
		}
	})

	t.Run("v4 playlist", func(t *testing.T) {
		body := `{"loadType":"playlist","data":{
			"info":{"name":"Mix","selectedTrack":1},
			"pluginInfo":{},
			"tracks":[
				{"encoded":"aaa","info":{"title":"One","sourceName":"youtube"}},
				{"encoded":"bbb","info":{"title":"Two","sourceName":"youtube"}}
			]}}`

		tracks, playlist, err := parseLoadResult([]byte(body))
		if err != nil {
			t.Fatalf("parse failed: %v", err)
		}
		if tracks != nil {
			t.Fatal("playlist loads must not produce a bare track list")
		}
		if playlist == nil || playlist.Name != "Mix" || playlist.SelectedTrack != 1 || len(playlist.Tracks) != 2 {
			t.Fatalf("unexpected playlist: %+v", playlist)
		}
	})

	t.Run("v4 empty", func(t *testing.T) {
		tracks, playlist, err := parseLoadResult([]byte(`{"loadType":"empty"}`))
		if err != nil || tracks != nil || playlist != nil {
			t.Fatalf("expected three nils, got %v %v %v", tracks, playlist, err)
		}
	})

	t.Run("v4 error", func(t *testing.T) {
		body := `{"loadType":"error","data":{"message":"bad video","severity":"common","cause":"nope"}}`

		_, _, err := parseLoadResult([]byte(body))
		var loadErr *TrackLoadError
		if !errors.As(err, &loadErr) {
			t.Fatalf("expected a TrackLoadError, got %v", err)
		}
		if loadErr.Message != "bad video" || loadErr.Severity != "common" {
			t.Fatalf("unexpected load error: %+v", loadErr)
		}
	})

	t.Run("v3 search", func(t *testing.T) {
		body := `{"loadType":"SEARCH_RESULT","tracks":[{"encoded":"aaa","info":{"title":"One","sourceName":"youtube"}}]}`

		tracks, _, err := parseLoadResult([]byte(body))
		if err != nil {
			t.Fatalf("parse failed: %v", err)
		}
		if len(tracks) != 1 || tracks[0].Title != "One" {
			t.Fatalf("unexpected tracks: %+v", tracks)
		}
	})

	t.Run("v3 playlist", func(t *testing.T) {
		body := `{"loadType":"PLAYLIST_LOADED","playlistInfo":{"name":"Old Mix","selectedTrack":0},"tracks":[{"encoded":"aaa","info":{"sourceName":"youtube"}}]}`

		_, playlist, err := parseLoadResult([]byte(body))
		if err != nil {
			t.Fatalf("parse failed: %v", err)
		}
		if playlist == nil || playlist.Name != "Old Mix" || len(playlist.Tracks) != 1 {
			t.Fatalf("unexpected playlist: %+v", playlist)
		}
	})

	t.Run("v3 load failed", func(t *testing.T) {
		body := `{"loadType":"LOAD_FAILED","exception":{"message":"denied","severity":"suspicious"}}`

		_, _, err := parseLoadResult([]byte(body))
		var loadErr *TrackLoadError
		if !errors.As(err, &loadErr) {
			t.Fatalf("expected a TrackLoadError, got %v", err)
		}
	})

	t.Run("unknown load type", func(t *testing.T) {
		tracks, playlist, err := parseLoadResult([]byte(`{"loadType":"SOMETHING_NEW"}`))
		if err != nil || tracks != nil || playlist != nil {
			t.Fatalf("unknown load types must be dropped, got %v %v %v", tracks, playlist, err)
		}
	})
}
