package deps

import (
	"fmt"
	"os/exec"
	"strings"
)

// Requirement defines an external binary framewright shells out to.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status reports the availability of a dependency.
type Status struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	Available   bool
	Detail      string
}

// CheckBinaries evaluates the provided requirements and reports availability.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		cmd := strings.TrimSpace(req.Command)
		status := Status{
			Name:        req.Name,
			Command:     cmd,
			Description: strings.TrimSpace(req.Description),
			Optional:    req.Optional,
		}
		if cmd == "" {
			status.Available = false
			status.Detail = "command not configured"
			results = append(results, status)
			continue
		}
		resolved, err := exec.LookPath(cmd)
		if err != nil {
			status.Available = false
			status.Detail = fmt.Sprintf("binary %q not found", cmd)
			results = append(results, status)
			continue
		}
		status.Available = true
		status.Command = resolved
		results = append(results, status)
	}
	return results
}

// ResolveBinary returns the configured command, or fallback when none is set.
func ResolveBinary(configured, fallback string) string {
	if cmd := strings.TrimSpace(configured); cmd != "" {
		return cmd
	}
	return fallback
}

// MediaRequirements lists the FFmpeg tools used for scene cuts and probing.
func MediaRequirements(ffmpeg, ffprobe string) []Requirement {
	return []Requirement{
		{
			Name:        "FFmpeg",
			Command:     ResolveBinary(ffmpeg, "ffmpeg"),
			Description: "Required for scene detection and frame extraction",
		},
		{
			Name:        "FFprobe",
			Command:     ResolveBinary(ffprobe, "ffprobe"),
			Description: "Required for transition clip inspection",
		},
	}
}
