// Package codec provides the audio format registry for wavebridge.
// It consolidates the fallback codec profiles, the realtime codec, and the
// degrade order used when negotiating a playable format with the player.
package codec

import (
	"strings"
	"time"
)

// ID identifies an audio codec/container used by the chunked fallback
// transport, plus the fixed realtime codec.
type ID string

// Codec constants.
const (
	MP3  ID = "mp3"  // MPEG-1 Layer III, most broadly compatible
	AAC  ID = "aac"  // AAC in ADTS
	FLAC ID = "flac" // FLAC, lossless
	Opus ID = "opus" // fixed codec of the realtime transport, never negotiated
)

// Fallback is the last-resort format returned when the player reports
// support for nothing at all.
const Fallback = MP3

// DegradeOrder is the fixed order in which formats are tried when the
// preferred format is not playable.
var DegradeOrder = []ID{MP3, AAC, FLAC}

// Profile describes one fallback codec: how the chunked transport frames
// it and how it is advertised to the player.
type Profile struct {
	ID          ID
	MimeType    string
	Bitrate     int // nominal kbps
	ChunkSize   int // bytes per chunked read
	Heartbeat   time.Duration
	Description string
}

// profiles is the immutable capability table, defined at process start.
var profiles = map[ID]Profile{
	MP3: {
		ID:          MP3,
		MimeType:    "audio/mpeg",
		Bitrate:     320,
		ChunkSize:   16 * 1024,
		Heartbeat:   5 * time.Second,
		Description: "MP3 320kbps (universal)",
	},
	AAC: {
		ID:          AAC,
		MimeType:    "audio/aac",
		Bitrate:     256,
		ChunkSize:   16 * 1024,
		Heartbeat:   5 * time.Second,
		Description: "AAC 256kbps",
	},
	FLAC: {
		ID:          FLAC,
		MimeType:    "audio/flac",
		Bitrate:     1411,
		ChunkSize:   64 * 1024,
		Heartbeat:   10 * time.Second,
		Description: "FLAC lossless",
	},
}

// Lookup returns the profile for id.
func Lookup(id ID) (Profile, bool) {
	p, ok := profiles[id]
	return p, ok
}

// Parse normalizes a codec name to a known fallback ID.
func Parse(s string) (ID, bool) {
	id := ID(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := profiles[id]; ok {
		return id, true
	}
	return "", false
}

// IsFallback reports whether id is a valid chunked-transport format.
func IsFallback(id ID) bool {
	_, ok := profiles[id]
	return ok
}
