// Package player describes the attached audio player: which family it
// belongs to, which fallback formats it can play, and how deep its
// buffers run per format.
package player

import (
	"log/slog"
	"regexp"
	"sync"
)

// Family is a coarse player family used to select buffering parameters
// and restoration startup delays.
type Family string

// Known player families. Unknown idents fall back to FamilyChrome,
// whose buffering profile is the safest middle ground.
const (
	FamilyChrome  Family = "chrome"
	FamilyFirefox Family = "firefox"
	FamilySafari  Family = "safari"
	FamilyEdge    Family = "edge"
)

// Known ident patterns, checked in order. Edge and Safari must be tested
// before Chrome because their ident strings also contain "chrome" or
// "safari" respectively.
var familyPatterns = []struct {
	pattern *regexp.Regexp
	family  Family
}{
	{regexp.MustCompile(`(?i)edg(e|a|ios)?/`), FamilyEdge},
	{regexp.MustCompile(`(?i)firefox|fxios`), FamilyFirefox},
	{regexp.MustCompile(`(?i)safari`), FamilySafari},
	{regexp.MustCompile(`(?i)chrome|chromium|crios`), FamilyChrome},
}

var chromeOverride = regexp.MustCompile(`(?i)chrome|chromium|crios`)

// DetectFamily infers the player family from an ident string.
func DetectFamily(ident string) Family {
	for _, fp := range familyPatterns {
		if !fp.pattern.MatchString(ident) {
			continue
		}
		// Chrome idents contain "safari"; prefer chrome in that case.
		if fp.family == FamilySafari && chromeOverride.MatchString(ident) {
			return FamilyChrome
		}
		return fp.family
	}
	return FamilyChrome
}

// Detector infers the player family once per session and caches it.
type Detector struct {
	logger *slog.Logger

	mu       sync.Mutex
	detected bool
	family   Family
	ident    string
}

// NewDetector creates a Detector.
func NewDetector(logger *slog.Logger) *Detector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Detector{logger: logger}
}

// Family returns the family for ident. The first call decides for the
// whole session; later calls return the cached result regardless of ident.
func (d *Detector) Family(ident string) Family {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.detected {
		return d.family
	}

	d.family = DetectFamily(ident)
	d.ident = ident
	d.detected = true
	d.logger.Debug("player family detected",
		slog.String("family", string(d.family)),
		slog.String("ident", ident),
	)
	return d.family
}
