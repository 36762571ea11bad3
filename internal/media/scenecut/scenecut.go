// Package scenecut finds content cuts in a clip with ffmpeg's scene score and
// splits the clip at them.
//
// Detection runs select='gt(scene,T)' with showinfo and reads the pts_time of
// every selected frame from ffmpeg's log. Cuts closer than MinSceneSeconds to
// a neighbour or to either end of the clip are discarded.
package scenecut

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

const (
	DefaultThreshold       = 0.3
	DefaultMinSceneSeconds = 0.2
)

// Scene is a half-open interval [Start, End) in seconds.
type Scene struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// RunFunc executes a command and returns its combined output.
type RunFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

// Detector wraps the ffmpeg binary.
type Detector struct {
	FFmpeg          string
	Threshold       float64
	MinSceneSeconds float64
	Run             RunFunc
}

// New returns a Detector with the given tuning; non-positive values take defaults.
func New(ffmpeg string, threshold, minSceneSeconds float64) *Detector {
	d := &Detector{FFmpeg: ffmpeg, Threshold: threshold, MinSceneSeconds: minSceneSeconds, Run: combinedOutput}
	if d.Threshold <= 0 {
		d.Threshold = DefaultThreshold
	}
	if d.MinSceneSeconds < 0 {
		d.MinSceneSeconds = DefaultMinSceneSeconds
	}
	return d
}

func combinedOutput(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

func (d *Detector) binary() string {
	if b := strings.TrimSpace(d.FFmpeg); b != "" {
		return b
	}
	return "ffmpeg"
}

func (d *Detector) run(ctx context.Context, args ...string) ([]byte, error) {
	run := d.Run
	if run == nil {
		run = combinedOutput
	}
	out, err := run(ctx, d.binary(), args...)
	if err != nil {
		return out, fmt.Errorf("ffmpeg %s: %w: %s", args[len(args)-1], err, tail(out))
	}
	return out, nil
}

var (
	ptsPattern      = regexp.MustCompile(`pts_time:\s*([0-9.]+)`)
	durationPattern = regexp.MustCompile(`Duration:\s*(\d+):(\d{2}):(\d{2}(?:\.\d+)?)`)
)

// Detect returns the ordered scenes of the clip at path.
func (d *Detector) Detect(ctx context.Context, path string) ([]Scene, error) {
	filter := fmt.Sprintf("select='gt(scene,%s)',showinfo", strconv.FormatFloat(d.Threshold, 'f', -1, 64))
	out, err := d.run(ctx, "-hide_banner", "-nostdin", "-i", path, "-an", "-vf", filter, "-f", "null", "-")
	if err != nil {
		return nil, err
	}
	duration, cuts, err := ParseShowinfo(out)
	if err != nil {
		return nil, fmt.Errorf("scene detect %s: %w", path, err)
	}
	return Assemble(cuts, duration, d.MinSceneSeconds), nil
}

// ParseShowinfo extracts the input duration and the selected frame times from ffmpeg output.
func ParseShowinfo(out []byte) (float64, []float64, error) {
	duration := -1.0
	var cuts []float64
	scanner := bufio.NewScanner(bytes.NewReader(out))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if duration < 0 {
			if m := durationPattern.FindStringSubmatch(line); m != nil {
				h, _ := strconv.Atoi(m[1])
				mm, _ := strconv.Atoi(m[2])
				s, _ := strconv.ParseFloat(m[3], 64)
				duration = float64(h*3600+mm*60) + s
				continue
			}
		}
		if !strings.Contains(line, "showinfo") {
			continue
		}
		if m := ptsPattern.FindStringSubmatch(line); m != nil {
			if v, err := strconv.ParseFloat(m[1], 64); err == nil {
				cuts = append(cuts, v)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return 0, nil, err
	}
	if duration < 0 {
		return 0, nil, errors.New("duration not found in ffmpeg output")
	}
	return duration, cuts, nil
}

// Assemble turns cut times into contiguous scenes covering [0, duration).
func Assemble(cuts []float64, duration, minScene float64) []Scene {
	if duration <= 0 {
		return nil
	}
	sorted := append([]float64(nil), cuts...)
	sort.Float64s(sorted)

	kept := make([]float64, 0, len(sorted))
	prev := 0.0
	for _, c := range sorted {
		if c-prev < minScene || duration-c < minScene || c <= 0 || c >= duration {
			continue
		}
		kept = append(kept, c)
		prev = c
	}

	scenes := make([]Scene, 0, len(kept)+1)
	start := 0.0
	for _, c := range kept {
		scenes = append(scenes, Scene{Start: start, End: c})
		start = c
	}
	return append(scenes, Scene{Start: start, End: duration})
}

// SceneFileName returns the clip name for the 1-based scene number n.
func SceneFileName(videoPath string, n int) string {
	base := strings.TrimSuffix(filepath.Base(videoPath), filepath.Ext(videoPath))
	return fmt.Sprintf("%s-Scene-%03d.mp4", base, n)
}

// Split writes one clip per scene into outDir and returns their paths in order.
func (d *Detector) Split(ctx context.Context, videoPath string, scenes []Scene, outDir string) ([]string, error) {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("create scene dir: %w", err)
	}
	paths := make([]string, 0, len(scenes))
	for i, s := range scenes {
		out := filepath.Join(outDir, SceneFileName(videoPath, i+1))
		if _, err := d.run(ctx,
			"-hide_banner", "-nostdin", "-y", "-v", "error",
			"-i", videoPath,
			"-ss", formatSeconds(s.Start), "-to", formatSeconds(s.End),
			"-c:v", "libx264", "-an",
			out,
		); err != nil {
			return paths, err
		}
		paths = append(paths, out)
	}
	return paths, nil
}

// ExtractFrame writes the frame at t seconds of videoPath to outPath.
func (d *Detector) ExtractFrame(ctx context.Context, videoPath string, t float64, outPath string) error {
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("create frame dir: %w", err)
	}
	if t < 0 {
		t = 0
	}
	_, err := d.run(ctx,
		"-hide_banner", "-nostdin", "-y", "-v", "error",
		"-ss", formatSeconds(t),
		"-i", videoPath,
		"-frames:v", "1",
		outPath,
	)
	return err
}

func formatSeconds(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}

func tail(out []byte) string {
	s := strings.TrimSpace(string(out))
	if len(s) > 400 {
		s = "..." + s[len(s)-400:]
	}
	return s
}
