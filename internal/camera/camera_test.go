package camera

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/pilebones/go-udev/netlink"

	"signscribe/internal/capture"
)

func TestAvailable(t *testing.T) {
	if err := Available(""); !errors.Is(err, capture.ErrCameraUnavailable) {
		t.Fatalf("expected ErrCameraUnavailable for empty device, got %v", err)
	}
	if err := Available(filepath.Join(t.TempDir(), "video9")); !errors.Is(err, capture.ErrCameraUnavailable) {
		t.Fatalf("expected ErrCameraUnavailable for missing device, got %v", err)
	}
	regular := filepath.Join(t.TempDir(), "video0")
	if err := os.WriteFile(regular, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := Available(regular); !errors.Is(err, capture.ErrCameraUnavailable) {
		t.Fatalf("expected regular file to be rejected, got %v", err)
	}
	if _, err := os.Stat("/dev/null"); err == nil {
		if err := Available("/dev/null"); err != nil {
			t.Fatalf("expected character device to pass, got %v", err)
		}
	}
}

func TestNewMonitor(t *testing.T) {
	if m := NewMonitor("  ", nil, nil); m != nil {
		t.Fatal("expected nil monitor for empty device")
	}
	m := NewMonitor("/dev/video0", nil, nil)
	if m == nil || m.device != "/dev/video0" {
		t.Fatalf("unexpected monitor %+v", m)
	}
	if m.Running() {
		t.Fatal("unstarted monitor should not be running")
	}
}

func TestMonitorNilSafety(t *testing.T) {
	var m *Monitor
	m.Stop()
	if m.Running() {
		t.Fatal("nil monitor should not be running")
	}
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start on nil monitor should return nil, got %v", err)
	}
}

func TestHandleEventFiltersDevice(t *testing.T) {
	var got []Event
	m := NewMonitor("/dev/video0", nil, func(e Event) { got = append(got, e) })

	m.handleEvent(netlink.UEvent{Action: netlink.REMOVE, Env: map[string]string{"DEVNAME": "video1"}})
	m.handleEvent(netlink.UEvent{Action: netlink.REMOVE, Env: map[string]string{"DEVNAME": "video0"}})
	m.handleEvent(netlink.UEvent{Action: netlink.ADD, Env: map[string]string{"DEVPATH": "/devices/pci0000:00/usb1/video4linux/video0"}})

	if len(got) != 2 {
		t.Fatalf("expected 2 events, got %+v", got)
	}
	if !got[0].Removed() || !got[1].Added() {
		t.Fatalf("unexpected event actions %+v", got)
	}
}

func TestBuildMatcher(t *testing.T) {
	matcher := buildMatcher()
	v4l := netlink.UEvent{Action: netlink.ADD, Env: map[string]string{"SUBSYSTEM": "video4linux"}}
	if !matcher.Evaluate(v4l) {
		t.Fatal("expected video4linux add to match")
	}
	block := netlink.UEvent{Action: netlink.ADD, Env: map[string]string{"SUBSYSTEM": "block"}}
	if matcher.Evaluate(block) {
		t.Fatal("expected block event not to match")
	}
}
