package state

import (
	"time"

	"github.com/audiolink/wavebridge/internal/codec"
)

// Snapshot is the persisted session state written on meaningful
// lifecycle changes and read back by the restoration flows.
type Snapshot struct {
	Format     codec.ID  `json:"format"`
	Timestamp  time.Time `json:"timestamp"`
	IsPlaying  bool      `json:"isPlaying"`
	PlaylistID string    `json:"playlistId,omitempty"`
}

// Age returns how old the snapshot is relative to now.
func (s Snapshot) Age(now time.Time) time.Duration {
	return now.Sub(s.Timestamp)
}
