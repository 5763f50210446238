package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/brassmonkey/registryd/internal/proto"
	"github.com/brassmonkey/registryd/internal/registry"
)

func TestHandleGetInfoRequiresParams(t *testing.T) {
	s := New(registry.New(), 0)
	ts := httptest.NewServer(s.router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/bmregistry/getInfo.jsp")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestHandleGetInfoReturnsCanPlay(t *testing.T) {
	s := New(registry.New(), 0)
	ts := httptest.NewServer(s.router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/bmregistry/getInfo.jsp?appId=shooter&deviceId=g1")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var out getInfoResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if !out.CanPlay || out.AppID != "shooter" || out.DeviceID != "g1" {
		t.Fatalf("got %#v", out)
	}
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("Access-Control-Allow-Origin = %q, want *", got)
	}
}

func TestHandleMetricsAlwaysSucceeds(t *testing.T) {
	s := New(registry.New(), 0)
	ts := httptest.NewServer(s.router())
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/bmregistry/metrics", "application/x-www-form-urlencoded", strings.NewReader("event=start&token=abc"))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var out metricsResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if out.Status != "success" {
		t.Fatalf("status field = %q, want success", out.Status)
	}
}

func TestHandleDebugRegistryReturnsAllDevices(t *testing.T) {
	reg := registry.New()
	reg.Register(&proto.RegistryInfo{
		Device:  &proto.Device{Type: proto.DeviceFlash, ID: "g1", Name: "Shooter"},
		Address: &proto.DeviceAddress{Host: "10.0.0.1", Port: 7000},
		SlotID:  1,
	})
	reg.Register(&proto.RegistryInfo{
		Device:  &proto.Device{Type: proto.DeviceAndroid, ID: "c1", Name: "Phone"},
		Address: &proto.DeviceAddress{Host: "10.0.0.2", Port: 7001},
	})

	s := New(reg, 0)
	ts := httptest.NewServer(s.router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/debug/registry")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var out []debugDevice
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 devices (debug view sees everyone), got %d", len(out))
	}
}

func TestNotFoundRoute(t *testing.T) {
	s := New(registry.New(), 0)
	ts := httptest.NewServer(s.router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/nonexistent")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}
