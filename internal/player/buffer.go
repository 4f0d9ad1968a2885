package player

import (
	"time"

	"github.com/audiolink/wavebridge/internal/codec"
)

// BufferProfile holds the per-(family, format) buffering parameters used
// when the chunked fallback transport is attached.
type BufferProfile struct {
	// QueueDepth is the playback queue depth in playback blocks.
	QueueDepth int
	// ConnectTimeout bounds how long the transport may take to produce
	// audio before the attempt counts as a failure.
	ConnectTimeout time.Duration
}

// bufferKey keys the buffer table.
type bufferKey struct {
	family Family
	format codec.ID
}

// defaultBufferProfile is used for combinations with no dedicated entry.
var defaultBufferProfile = BufferProfile{QueueDepth: 8, ConnectTimeout: 10 * time.Second}

// bufferProfiles is immutable. Firefox keeps shallower queues because it
// flushes its decode pipeline on source changes; Safari needs longer
// connect timeouts for flac.
var bufferProfiles = map[bufferKey]BufferProfile{
	{FamilyChrome, codec.MP3}:   {QueueDepth: 8, ConnectTimeout: 10 * time.Second},
	{FamilyChrome, codec.AAC}:   {QueueDepth: 8, ConnectTimeout: 10 * time.Second},
	{FamilyChrome, codec.FLAC}:  {QueueDepth: 12, ConnectTimeout: 15 * time.Second},
	{FamilyFirefox, codec.MP3}:  {QueueDepth: 4, ConnectTimeout: 10 * time.Second},
	{FamilyFirefox, codec.AAC}:  {QueueDepth: 4, ConnectTimeout: 12 * time.Second},
	{FamilyFirefox, codec.FLAC}: {QueueDepth: 6, ConnectTimeout: 15 * time.Second},
	{FamilySafari, codec.MP3}:   {QueueDepth: 10, ConnectTimeout: 12 * time.Second},
	{FamilySafari, codec.AAC}:   {QueueDepth: 10, ConnectTimeout: 12 * time.Second},
	{FamilySafari, codec.FLAC}:  {QueueDepth: 16, ConnectTimeout: 20 * time.Second},
	{FamilyEdge, codec.MP3}:     {QueueDepth: 8, ConnectTimeout: 10 * time.Second},
	{FamilyEdge, codec.AAC}:     {QueueDepth: 8, ConnectTimeout: 10 * time.Second},
	{FamilyEdge, codec.FLAC}:    {QueueDepth: 12, ConnectTimeout: 15 * time.Second},
}

// startupDelays are the empirically-derived settle delays applied before
// a restored source is attached. Firefox needs the sink to settle after
// a restart before a new source is accepted.
var startupDelays = map[Family]time.Duration{
	FamilyChrome:  100 * time.Millisecond,
	FamilyFirefox: 750 * time.Millisecond,
	FamilySafari:  500 * time.Millisecond,
	FamilyEdge:    100 * time.Millisecond,
}

// BufferProfileFor returns the buffering parameters for the combination,
// falling back to the chrome-like default for unknown pairs.
func BufferProfileFor(family Family, format codec.ID) BufferProfile {
	if p, ok := bufferProfiles[bufferKey{family, format}]; ok {
		return p
	}
	return defaultBufferProfile
}

// StartupDelay returns the restoration settle delay for family.
func StartupDelay(family Family) time.Duration {
	if d, ok := startupDelays[family]; ok {
		return d
	}
	return startupDelays[FamilyChrome]
}
