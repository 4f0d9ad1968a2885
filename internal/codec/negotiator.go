package codec

import "log/slog"

// Support reports which fallback formats the attached player can play.
// The player layer supplies the implementation; tests use StaticSupport.
type Support interface {
	CanPlay(id ID) bool
}

// StaticSupport is a fixed support table.
type StaticSupport map[ID]bool

// CanPlay implements Support.
func (s StaticSupport) CanPlay(id ID) bool { return s[id] }

// Negotiator picks the fallback format the current player can actually
// play, applying the fixed degrade order.
type Negotiator struct {
	support Support
	def     ID
	logger  *slog.Logger
}

// NewNegotiator creates a Negotiator. def is the system-wide default used
// when no preference is given; it must be a valid fallback format.
func NewNegotiator(support Support, def ID, logger *slog.Logger) *Negotiator {
	if logger == nil {
		logger = slog.Default()
	}
	if !IsFallback(def) {
		def = Fallback
	}
	return &Negotiator{support: support, def: def, logger: logger}
}

// PickFormat returns a format the player reports as playable, degrading
// from preferred through DegradeOrder. If nothing is playable it returns
// MP3 unconditionally. Pure apart from a diagnostic trace; never errors.
func (n *Negotiator) PickFormat(preferred ID) ID {
	if preferred == "" || !IsFallback(preferred) {
		preferred = n.def
	}

	if n.support.CanPlay(preferred) {
		n.logger.Debug("format negotiated", slog.String("format", string(preferred)), slog.String("reason", "preferred"))
		return preferred
	}

	for _, id := range DegradeOrder {
		if id == preferred {
			continue // already rejected
		}
		if n.support.CanPlay(id) {
			n.logger.Debug("format negotiated",
				slog.String("format", string(id)),
				slog.String("preferred", string(preferred)),
				slog.String("reason", "degraded"),
			)
			return id
		}
	}

	n.logger.Debug("no playable format reported, forcing fallback",
		slog.String("format", string(Fallback)),
	)
	return Fallback
}
