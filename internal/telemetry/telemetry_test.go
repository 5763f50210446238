package telemetry

import (
	"testing"

	"github.com/brassmonkey/registryd/internal/config"
	"github.com/brassmonkey/registryd/internal/proto"
)

// An unconfigured Sink must be a pure no-op on every call, so callers in
// cmd/registryd never need to nil-check or branch on whether telemetry is
// enabled.
func TestDisabledSinkIsANoop(t *testing.T) {
	s := New(config.TelemetryConfig{})
	if s.enabled() {
		t.Fatal("a Sink with no redis_addr must be disabled")
	}

	info := &proto.RegistryInfo{Device: &proto.Device{ID: "g1", Name: "Shooter"}}
	s.OnRegister(info)
	s.OnRelay("g1", "c1")
	s.OnDisconnect("g1")

	if err := s.Close(); err != nil {
		t.Fatalf("Close on a disabled sink must not error: %v", err)
	}
}

func TestDisabledSinkToleratesNilInfo(t *testing.T) {
	s := New(config.TelemetryConfig{})
	s.OnRegister(nil)
}

func TestKeyAndChannelNamespacing(t *testing.T) {
	s := &Sink{namespace: "arcade"}
	if got, want := s.key("g1"), "registry:arcade:g1"; got != want {
		t.Fatalf("key() = %q, want %q", got, want)
	}
	if got, want := s.channel(), "registry:arcade:events"; got != want {
		t.Fatalf("channel() = %q, want %q", got, want)
	}
}
