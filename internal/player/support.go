package player

import "github.com/audiolink/wavebridge/internal/codec"

// Support is the playback support the player reported for this session.
// It satisfies codec.Support.
type Support struct {
	playable map[codec.ID]bool
}

// NewSupport builds a Support set from reported format names. Unknown
// names are ignored.
func NewSupport(formats []string) *Support {
	playable := make(map[codec.ID]bool, len(formats))
	for _, f := range formats {
		if id, ok := codec.Parse(f); ok {
			playable[id] = true
		}
	}
	return &Support{playable: playable}
}

// CanPlay implements codec.Support.
func (s *Support) CanPlay(id codec.ID) bool { return s.playable[id] }
