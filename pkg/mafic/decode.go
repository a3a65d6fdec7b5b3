package mafic

import (
	"encoding/base64"
	"errors"
	"fmt"
)

const (
	trackFlagVersioned = 1
	trackFlagMask      = 0xC0000000
	trackSizeMask      = 0x3FFFFFFF
)

var errTrackTruncated = errors.New("mafic: track data ended early")

// trackReader walks the length-prefixed binary layout of an opaque track id.
// String fields are NUL-terminated inside the blob; a NUL also doubles as a
// false boolean when it directly follows a string, hence prevNull.
type trackReader struct {
	data     []byte
	pos      int
	flags    int
	size     int
	version  int
	prevNull bool
}

func newTrackReader(data []byte) (*trackReader, error) {
	r := &trackReader{data: data}

	header, err := r.readInt(4)
	if err != nil {
		return nil, err
	}
	r.flags = int((header & trackFlagMask) >> 30)
	r.size = int(header & trackSizeMask)

	if r.flags&trackFlagVersioned != 0 {
		v, err := r.readInt(1)
		if err != nil {
			return nil, err
		}
		r.version = int(v & 0xFF)
	} else {
		r.version = 1
	}

	return r, nil
}

func (r *trackReader) next() (byte, error) {
	if r.pos >= len(r.data) {
		return 0, errTrackTruncated
	}
	b := r.data[r.pos]
	r.pos++
	if r.prevNull && b != 0 {
		r.prevNull = false
	}
	return b, nil
}

func (r *trackReader) readInt(size int) (int64, error) {
	var value int64
	for i := 0; i < size; i++ {
		b, err := r.next()
		if err != nil {
			return 0, err
		}
		value = value*256 + int64(b)
	}
	return value, nil
}

func (r *trackReader) readString() (string, error) {
	var field []byte
	for {
		b, err := r.next()
		if err != nil {
			return "", err
		}
		if b == 0 && len(field) > 0 {
			break
		}
		// Length-prefix bytes before the field proper.
		if b <= 0x20 && len(field) == 0 {
			continue
		}
		field = append(field, b)
	}
	r.prevNull = true
	return string(field), nil
}

func (r *trackReader) readBool() (bool, error) {
	if r.prevNull {
		r.prevNull = false
		return false, nil
	}
	b, err := r.next()
	if err != nil {
		return false, err
	}
	return b != 0, nil
}

func (r *trackReader) readNullableString() (string, error) {
	exists, err := r.readBool()
	if err != nil {
		return "", err
	}
	if !exists {
		return "", nil
	}

	b, err := r.next()
	if err != nil {
		return "", err
	}
	if b != 0 {
		return "", fmt.Errorf("mafic: unexpected byte %#x before optional string", b)
	}

	return r.readString()
}

// DecodeTrackID decodes an opaque track id locally, without asking a node.
//
// This is best effort: plugin-defined fields are not understood, and the
// result is advisory only. Prefer Node.DecodeTrackRemote when accuracy
// matters.
func DecodeTrackID(trackID string) (Track, error) {
	raw, err := base64.StdEncoding.DecodeString(trackID)
	if err != nil {
		return Track{}, fmt.Errorf("mafic: track id is not valid base64: %w", err)
	}

	r, err := newTrackReader(raw)
	if err != nil {
		return Track{}, err
	}

	title, err := r.readString()
	if err != nil {
		return Track{}, err
	}
	author, err := r.readString()
	if err != nil {
		return Track{}, err
	}
	length, err := r.readInt(8)
	if err != nil {
		return Track{}, err
	}
	identifier, err := r.readString()
	if err != nil {
		return Track{}, err
	}
	stream, err := r.readBool()
	if err != nil {
		return Track{}, err
	}

	var uri string
	if r.version >= 2 {
		uri, err = r.readNullableString()
		if err != nil {
			return Track{}, err
		}
		// URI fields carry junk prefix bytes in some encodings.
		for len(uri) > 0 && !hasHTTPPrefix(uri) {
			uri = uri[1:]
		}
	}

	source, err := r.readString()
	if err != nil {
		return Track{}, err
	}

	// Encoded positions are rare; absence is a clean end of data.
	position, err := r.readInt(8)
	if err != nil {
		position = 0
	}

	return Track{
		ID:         trackID,
		Title:      title,
		Author:     author,
		Identifier: identifier,
		URI:        uri,
		Source:     source,
		Stream:     stream,
		Seekable:   !stream,
		Position:   position,
		Length:     length,
	}, nil
}

func hasHTTPPrefix(s string) bool {
	return len(s) >= 4 && s[:4] == "http"
}
