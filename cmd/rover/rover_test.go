package main

import (
	"context"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/banshee-data/rover/internal/config"
	"github.com/banshee-data/rover/internal/nav"
	"github.com/banshee-data/rover/internal/serialmux"
)

func TestFlagDefaults(t *testing.T) {
	if *mode != config.ModeGrid {
		t.Errorf("expected -mode default %q, got %q", config.ModeGrid, *mode)
	}
	if *baud != serialmux.DefaultBaudRate {
		t.Errorf("expected -baud default %d, got %d", serialmux.DefaultBaudRate, *baud)
	}
	if *devMode {
		t.Error("expected -dev to default to false")
	}
}

func TestLoadConfig(t *testing.T) {
	cfg, err := loadConfig("")
	if err != nil {
		t.Fatalf("loadConfig(\"\"): %v", err)
	}
	if got := cfg.GetGridTick(); got != 10*time.Millisecond {
		t.Errorf("expected built-in grid tick 10ms, got %v", got)
	}

	path := filepath.Join(t.TempDir(), "robot.json")
	if err := os.WriteFile(path, []byte(`{"base_speed": 12}`), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err = loadConfig(path)
	if err != nil {
		t.Fatalf("loadConfig(%q): %v", path, err)
	}
	if got := cfg.GetBaseSpeed(); got != 12 {
		t.Errorf("expected base speed 12, got %d", got)
	}

	if _, err := loadConfig(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("expected an error for a missing file")
	}
}

func TestNewNavigator(t *testing.T) {
	cfg := config.EmptyRobotConfig()
	tests := []struct {
		mode    string
		want    nav.State
		wantErr bool
	}{
		{config.ModeGrid, nav.StateSearching, false},
		{config.ModeObstacle, nav.StateScanning, false},
		{"maze", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.mode, func(t *testing.T) {
			n, err := newNavigator(tt.mode, cfg, 1, nav.Signals{})
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected an error")
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if n.State() != tt.want {
				t.Errorf("expected initial state %v, got %v", tt.want, n.State())
			}
		})
	}
}

func TestOpenLinkDevReplaysFixture(t *testing.T) {
	for _, m := range []string{config.ModeGrid, config.ModeObstacle} {
		link, err := openLink(true, "", "", m, 0)
		if err != nil {
			t.Fatalf("openLink(dev, %s): %v", m, err)
		}
		if err := link.Close(); err != nil {
			t.Errorf("Close: %v", err)
		}
	}
	if _, err := openLink(true, "", "", "maze", 0); err == nil {
		t.Error("expected an error for an unknown fixture")
	}
}

func TestLoadFixtureFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "board.txt")
	if err := os.WriteFile(path, []byte("R,700,700,200,700,700\n\nP,1,1\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	lines, err := loadFixture(path, config.ModeGrid)
	if err != nil {
		t.Fatalf("loadFixture: %v", err)
	}
	if len(lines) != 2 {
		t.Errorf("expected 2 lines, got %v", lines)
	}

	link, err := openLink(false, path, "", config.ModeGrid, 0)
	if err != nil {
		t.Fatalf("a fixtures file replays without -dev: %v", err)
	}
	link.Close()

	if _, err := loadFixture(filepath.Join(t.TempDir(), "missing.txt"), config.ModeGrid); err == nil {
		t.Error("expected an error for a missing file")
	}
}

func TestServeDebugFailureCancelsRun(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	// A closed listener makes Serve fail at once, as a lost socket would.
	ln.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		serveDebug(ctx, cancel, ln, http.NotFoundHandler())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("serveDebug did not return after the server failed")
	}
	if ctx.Err() == nil {
		t.Error("a failed debug server must cancel the run context")
	}
}

func TestServeDebugStopsWithContext(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		serveDebug(ctx, cancel, ln, http.NotFoundHandler())
		close(done)
	}()

	resp, err := http.Get("http://" + ln.Addr().String() + "/")
	if err != nil {
		t.Fatalf("debug server not serving: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusNotFound)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("serveDebug did not return after cancel")
	}
}
