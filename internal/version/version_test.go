package version

import (
	"strings"
	"testing"
)

func TestGetInfo(t *testing.T) {
	info := GetInfo()
	if info.Version != Version {
		t.Errorf("expected version %q, got %q", Version, info.Version)
	}
	if !strings.Contains(info.Platform, "/") {
		t.Errorf("platform should be os/arch, got %q", info.Platform)
	}
	if info.GoVersion == "" {
		t.Error("go version should not be empty")
	}
}

func TestString(t *testing.T) {
	s := String()
	if !strings.HasPrefix(s, ApplicationName) {
		t.Errorf("version string should start with %q, got %q", ApplicationName, s)
	}
	if !strings.Contains(s, Version) {
		t.Errorf("version string should contain %q, got %q", Version, s)
	}
}
