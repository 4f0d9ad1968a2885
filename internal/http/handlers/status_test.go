package handlers

import (
	"context"
	"errors"
	"testing"

	"github.com/audiolink/wavebridge/internal/backend"
)

type stubProber struct {
	status backend.StreamStatus
	err    error
}

func (s *stubProber) StreamStatus(context.Context) (*backend.StreamStatus, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &s.status, nil
}

type stubPinger struct {
	err error
}

func (s *stubPinger) Ping(context.Context) error { return s.err }

func TestGetStatus_BackendAvailable(t *testing.T) {
	prober := &stubProber{status: backend.StreamStatus{
		IsActive:      true,
		StatusText:    "live",
		TotalMB:       1.5,
		ActiveClients: 3,
		Format:        "mp3",
	}}
	h := NewStatusHandler(&fakeController{}, prober, nil, "1.0.0", nil)

	out, err := h.GetStatus(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !out.Body.Backend.Available {
		t.Error("expected backend section available")
	}
	if out.Body.Backend.TotalTransfer != "1.5 MB" {
		t.Errorf("expected humanized transfer, got %q", out.Body.Backend.TotalTransfer)
	}
	if out.Body.Process.PID == 0 {
		t.Error("expected process stats populated")
	}
	if out.Body.Version != "1.0.0" {
		t.Errorf("expected version 1.0.0, got %s", out.Body.Version)
	}
}

func TestGetStatus_BackendFailureDegrades(t *testing.T) {
	prober := &stubProber{err: errors.New("connection refused")}
	h := NewStatusHandler(&fakeController{}, prober, nil, "1.0.0", nil)

	out, err := h.GetStatus(context.Background(), nil)
	if err != nil {
		t.Fatalf("backend failure must not fail the request: %v", err)
	}
	if out.Body.Backend.Available {
		t.Error("expected backend section unavailable")
	}
}

func TestGetHealth(t *testing.T) {
	h := NewStatusHandler(&fakeController{}, nil, &stubPinger{}, "1.0.0", nil)

	out, err := h.GetHealth(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Body.Status != "healthy" {
		t.Errorf("expected healthy, got %s", out.Body.Status)
	}
	if out.Body.Checks["database"] != "ok" {
		t.Errorf("expected database ok, got %s", out.Body.Checks["database"])
	}
}

func TestGetHealth_DatabaseDown(t *testing.T) {
	h := NewStatusHandler(&fakeController{}, nil, &stubPinger{err: errors.New("closed")}, "1.0.0", nil)

	out, err := h.GetHealth(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Body.Status != "degraded" {
		t.Errorf("expected degraded, got %s", out.Body.Status)
	}
}
