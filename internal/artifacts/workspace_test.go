package artifacts

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"framewright/internal/graph"
	"framewright/internal/services"
)

func TestOpenCreatesLayout(t *testing.T) {
	ws, err := Open(t.TempDir(), "run-1")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	for _, dir := range []string{DirPortraits, DirFrames, DirTransitions, DirCameras, DirShots} {
		if info, err := os.Stat(filepath.Join(ws.Root(), dir)); err != nil || !info.IsDir() {
			t.Fatalf("missing %s: %v", dir, err)
		}
	}
}

func TestOpenRejectsBadRunID(t *testing.T) {
	for _, id := range []string{"", "..", "a/b"} {
		if _, err := Open(t.TempDir(), id); err == nil {
			t.Fatalf("expected error for %q", id)
		}
	}
}

func TestResolveRejectsEscapes(t *testing.T) {
	ws, err := Open(t.TempDir(), "run")
	if err != nil {
		t.Fatal(err)
	}
	for _, h := range []graph.Handle{"", "../x.png", "/etc/passwd", "frames/../../x"} {
		if _, err := ws.Resolve(h); !errors.Is(err, services.ErrValidation) {
			t.Fatalf("Resolve(%q) = %v, want validation error", h, err)
		}
	}
	got, err := ws.Resolve("frames/shot-000-first.png")
	if err != nil || got != filepath.Join(ws.Root(), "frames", "shot-000-first.png") {
		t.Fatalf("Resolve = %q, %v", got, err)
	}
}

func TestWriteLoadRoundTrip(t *testing.T) {
	ws, err := Open(t.TempDir(), "run")
	if err != nil {
		t.Fatal(err)
	}
	h := CameraHandle(2)
	if ws.Exists(h) {
		t.Fatal("should not exist yet")
	}
	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
	if err := ws.WriteFile(h, png); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	data, mime, err := ws.Load(h)
	if err != nil || mime != "image/png" || len(data) != len(png) {
		t.Fatalf("Load = %d bytes, %q, %v", len(data), mime, err)
	}
	if !ws.Exists(h) {
		t.Fatal("Exists should be true after write")
	}
	if _, _, err := ws.Load(FrameHandle(graph.Frame{ShotIdx: 9, Kind: graph.FrameFirst})); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestLockIsExclusive(t *testing.T) {
	dir := t.TempDir()
	first, err := Open(dir, "run")
	if err != nil {
		t.Fatal(err)
	}
	if err := first.Lock(); err != nil {
		t.Fatalf("Lock: %v", err)
	}
	second, err := Open(dir, "run")
	if err != nil {
		t.Fatal(err)
	}
	if err := second.Lock(); !errors.Is(err, ErrLocked) {
		t.Fatalf("expected ErrLocked, got %v", err)
	}
	if err := first.Unlock(); err != nil {
		t.Fatal(err)
	}
	if err := second.Lock(); err != nil {
		t.Fatalf("Lock after release: %v", err)
	}
	_ = second.Unlock()
}

func TestHandles(t *testing.T) {
	tests := []struct{ got, want graph.Handle }{
		{PortraitHandle(1, "side"), "portraits/char-01-side.png"},
		{FrameHandle(graph.Frame{ShotIdx: 3, Kind: graph.FrameLast}), "frames/shot-003-last.png"},
		{TransitionHandle(4), "transitions/cam-004.mp4"},
		{CameraHandle(4), "cameras/cam-004.png"},
		{ShotClipHandle(7), "shots/shot-007.mp4"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Fatalf("got %q want %q", tt.got, tt.want)
		}
	}
}
