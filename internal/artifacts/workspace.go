package artifacts

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"

	"framewright/internal/graph"
	"framewright/internal/services"
)

// Subdirectories created in every workspace.
const (
	DirPortraits   = "portraits"
	DirFrames      = "frames"
	DirTransitions = "transitions"
	DirCameras     = "cameras"
	DirShots       = "shots"
)

const lockFileName = ".framewright.lock"

// ErrLocked is returned when another process holds the workspace lock.
var ErrLocked = errors.New("workspace is locked by another run")

// Workspace is the directory tree of one run.
type Workspace struct {
	root  string
	runID string
	lock  *flock.Flock
}

// Open creates (or reopens) <runsDir>/<runID> and its subdirectories.
func Open(runsDir, runID string) (*Workspace, error) {
	runID = strings.TrimSpace(runID)
	if runID == "" || strings.ContainsAny(runID, `/\`) || runID == "." || runID == ".." {
		return nil, fmt.Errorf("artifacts: invalid run id %q", runID)
	}
	root := filepath.Join(runsDir, runID)
	for _, dir := range []string{DirPortraits, DirFrames, DirTransitions, DirCameras, DirShots} {
		if err := os.MkdirAll(filepath.Join(root, dir), 0o755); err != nil {
			return nil, fmt.Errorf("artifacts: create %s: %w", dir, err)
		}
	}
	return &Workspace{root: root, runID: runID, lock: flock.New(filepath.Join(root, lockFileName))}, nil
}

// Root returns the absolute workspace directory.
func (w *Workspace) Root() string { return w.root }

// RunID returns the run identifier the workspace belongs to.
func (w *Workspace) RunID() string { return w.runID }

// Lock takes the cross-process workspace lock without blocking.
func (w *Workspace) Lock() error {
	ok, err := w.lock.TryLock()
	if err != nil {
		return fmt.Errorf("artifacts: acquire lock: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrLocked, w.root)
	}
	return nil
}

// Unlock releases the workspace lock.
func (w *Workspace) Unlock() error {
	return w.lock.Unlock()
}

// Resolve maps a handle to an absolute path inside the workspace.
func (w *Workspace) Resolve(h graph.Handle) (string, error) {
	clean := path.Clean(strings.TrimSpace(string(h)))
	if clean == "." || clean == "" || path.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", services.Wrap(services.ErrValidation, "", "resolve artifact", fmt.Sprintf("handle %q escapes workspace", h), nil)
	}
	return filepath.Join(w.root, filepath.FromSlash(clean)), nil
}

// Exists reports whether the handle names a non-empty file.
func (w *Workspace) Exists(h graph.Handle) bool {
	p, err := w.Resolve(h)
	if err != nil {
		return false
	}
	info, err := os.Stat(p)
	return err == nil && info.Mode().IsRegular() && info.Size() > 0
}

// Load returns the artifact's bytes and sniffed MIME type.
func (w *Workspace) Load(h graph.Handle) ([]byte, string, error) {
	p, err := w.Resolve(h)
	if err != nil {
		return nil, "", err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, "", services.Wrap(services.ErrNotFound, "", "load artifact", string(h), err)
		}
		return nil, "", fmt.Errorf("artifacts: read %s: %w", h, err)
	}
	return data, http.DetectContentType(data), nil
}

// WriteFile stores data under the handle, replacing any previous file atomically.
func (w *Workspace) WriteFile(h graph.Handle, data []byte) error {
	p, err := w.Resolve(h)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("artifacts: create dir: %w", err)
	}
	tmp := p + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("artifacts: write %s: %w", h, err)
	}
	if err := os.Rename(tmp, p); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("artifacts: rename %s: %w", h, err)
	}
	return nil
}

// Path is Resolve for handles built by this package, which never escape.
func (w *Workspace) Path(h graph.Handle) string {
	p, err := w.Resolve(h)
	if err != nil {
		panic(err)
	}
	return p
}

// PortraitHandle names one view of a character portrait, e.g.
// portraits/char-01-front.png.
func PortraitHandle(character int, view string) graph.Handle {
	return graph.Handle(fmt.Sprintf("%s/char-%02d-%s.png", DirPortraits, character, view))
}

// FrameHandle names the synthesized still of a frame.
func FrameHandle(f graph.Frame) graph.Handle {
	return graph.Handle(DirFrames + "/" + f.Key() + ".png")
}

// TransitionHandle names the cut clip that introduces a camera.
func TransitionHandle(camera int) graph.Handle {
	return graph.Handle(fmt.Sprintf("%s/cam-%03d.mp4", DirTransitions, camera))
}

// CameraHandle names the reference still grafted onto a camera.
func CameraHandle(camera int) graph.Handle {
	return graph.Handle(fmt.Sprintf("%s/cam-%03d.png", DirCameras, camera))
}

// ShotClipHandle names the rendered clip of a shot.
func ShotClipHandle(shot int) graph.Handle {
	return graph.Handle(fmt.Sprintf("%s/shot-%03d.mp4", DirShots, shot))
}
