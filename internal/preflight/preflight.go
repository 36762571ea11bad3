package preflight

import (
	"context"

	"framewright/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail,omitempty"`
}

// Options select the checks RunAll performs.
type Options struct {
	// SkipNetwork omits checks that call remote services.
	SkipNetwork bool
}

// RunAll executes all applicable preflight checks for the given config.
func RunAll(ctx context.Context, cfg *config.Config, opts Options) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result

	results = append(results, CheckDirectoryAccess("Runs directory", cfg.Paths.RunsDir))
	results = append(results, CheckDirectoryAccess("Log directory", cfg.Paths.LogDir))
	results = append(results, CheckFreeSpace("Free space", cfg.Paths.RunsDir, cfg.Pipeline.MinFreeGiB))

	for _, status := range CheckSystemDeps(cfg) {
		r := Result{Name: status.Name, Passed: status.Available, Detail: status.Detail}
		if status.Available {
			r.Detail = status.Command
		}
		results = append(results, r)
	}

	results = append(results, CheckCredential("Image service", cfg.Image.APIKey))
	results = append(results, CheckCredential("Video service", cfg.Video.APIKey))

	if opts.SkipNetwork {
		results = append(results, CheckCredential("Judgment LLM", cfg.LLM.APIKey))
	} else {
		results = append(results, CheckLLM(ctx, "Judgment LLM", cfg.LLM))
	}

	return results
}

// Failed returns the results that did not pass.
func Failed(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if !r.Passed {
			out = append(out, r)
		}
	}
	return out
}
