package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"framewright/internal/config"
)

func isolateEnv(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	for _, name := range []string{"FRAMEWRIGHT_LLM_API_KEY", "OPENROUTER_API_KEY", "GEMINI_API_KEY", "GOOGLE_API_KEY", "YUNWU_API_KEY"} {
		t.Setenv(name, "")
	}
	t.Chdir(t.TempDir())
	return home
}

func TestLoadDefaultsWhenMissing(t *testing.T) {
	home := isolateEnv(t)

	cfg, path, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if exists {
		t.Fatalf("expected no config file, got %s", path)
	}
	if want := filepath.Join(home, ".config", "framewright", "config.toml"); path != want {
		t.Fatalf("path = %q, want %q", path, want)
	}
	if want := filepath.Join(home, ".local", "share", "framewright", "runs"); cfg.Paths.RunsDir != want {
		t.Fatalf("runs dir = %q, want %q", cfg.Paths.RunsDir, want)
	}
	if cfg.Pipeline.Attempts != 3 {
		t.Fatalf("attempts = %d, want 3", cfg.Pipeline.Attempts)
	}
	if cfg.LLM.VisionModel != cfg.LLM.Model {
		t.Fatalf("vision model should default to model, got %q", cfg.LLM.VisionModel)
	}
	if cfg.SceneCut.Threshold != 0.3 {
		t.Fatalf("threshold = %v", cfg.SceneCut.Threshold)
	}
}

func TestLoadFileOverridesAndEnvFallback(t *testing.T) {
	isolateEnv(t)
	t.Setenv("GEMINI_API_KEY", "gemini-from-env")

	path := filepath.Join(t.TempDir(), "config.toml")
	body := `
[paths]
runs_dir = "~/runs"

[llm]
api_key = "llm-key"

[video]
api_key = "video-key"
resolution = "1080P"
base_url = "https://example.test/"

[pipeline]
concurrency = 2
attempts = 0

[logging]
format = "JSON"
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !exists {
		t.Fatal("expected config file to exist")
	}
	if cfg.Image.APIKey != "gemini-from-env" {
		t.Fatalf("image api key = %q", cfg.Image.APIKey)
	}
	if cfg.Video.Resolution != "1080p" {
		t.Fatalf("resolution = %q", cfg.Video.Resolution)
	}
	if cfg.Video.BaseURL != "https://example.test" {
		t.Fatalf("base url = %q", cfg.Video.BaseURL)
	}
	if cfg.Pipeline.Concurrency != 2 || cfg.Pipeline.Attempts != 3 {
		t.Fatalf("pipeline = %+v", cfg.Pipeline)
	}
	if cfg.Logging.Format != "json" {
		t.Fatalf("format = %q", cfg.Logging.Format)
	}
	if !strings.HasSuffix(cfg.Paths.RunsDir, "runs") || !filepath.IsAbs(cfg.Paths.RunsDir) {
		t.Fatalf("runs dir not expanded: %q", cfg.Paths.RunsDir)
	}
	if err := cfg.ValidateCredentials(); err != nil {
		t.Fatalf("ValidateCredentials: %v", err)
	}
}

func TestLoadDotEnvDoesNotOverrideEnvironment(t *testing.T) {
	isolateEnv(t)
	t.Setenv("YUNWU_API_KEY", "from-shell")
	if err := os.WriteFile(".env", []byte("YUNWU_API_KEY=from-dotenv\nFRAMEWRIGHT_LLM_API_KEY=llm-dotenv\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, _, _, err := config.Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Video.APIKey != "from-shell" {
		t.Fatalf("video key = %q, want shell value", cfg.Video.APIKey)
	}
	if cfg.LLM.APIKey != "llm-dotenv" {
		t.Fatalf("llm key = %q, want dotenv value", cfg.LLM.APIKey)
	}
}

func TestLoadDotEnvFillsEmptyVariables(t *testing.T) {
	isolateEnv(t)
	t.Setenv("YUNWU_API_KEY", "   ")
	if err := os.WriteFile(".env", []byte("YUNWU_API_KEY=video-dotenv\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, _, _, err := config.Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Video.APIKey != "video-dotenv" {
		t.Fatalf("video key = %q, want dotenv value", cfg.Video.APIKey)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"resolution", func(c *config.Config) { c.Video.Resolution = "4k" }, "video.resolution"},
		{"aspect", func(c *config.Config) { c.Video.AspectRatio = "wide" }, "video.aspect_ratio"},
		{"threshold", func(c *config.Config) { c.SceneCut.Threshold = 1.5 }, "scene_cut.threshold"},
		{"concurrency", func(c *config.Config) { c.Pipeline.Concurrency = 65 }, "pipeline.concurrency"},
		{"format", func(c *config.Config) { c.Logging.Format = "xml" }, "logging.format"},
		{"level", func(c *config.Config) { c.Logging.Level = "trace" }, "logging.level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("Validate() = %v, want error mentioning %q", err, tt.want)
			}
		})
	}
}

func TestValidateCredentialsNamesMissingKey(t *testing.T) {
	cfg := config.Default()
	cfg.LLM.APIKey = "x"
	err := cfg.ValidateCredentials()
	if err == nil || !strings.Contains(err.Error(), "GEMINI_API_KEY") {
		t.Fatalf("expected missing image key error, got %v", err)
	}
}

func TestCreateSampleRoundTrips(t *testing.T) {
	isolateEnv(t)
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load sample: %v", err)
	}
	if !exists {
		t.Fatal("sample not found")
	}
	if cfg.Video.FPS != 16 || cfg.Image.Width != 1600 {
		t.Fatalf("unexpected sample values: %+v %+v", cfg.Video, cfg.Image)
	}
}

func TestEnsureDirectories(t *testing.T) {
	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.RunsDir = filepath.Join(base, "runs")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	for _, dir := range []string{cfg.Paths.RunsDir, cfg.Paths.LogDir} {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			t.Fatalf("%s not created: %v", dir, err)
		}
	}
}
