package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is structurally usable.
func (c *Config) Validate() error {
	if err := c.validateVideo(); err != nil {
		return err
	}
	if err := c.validateSceneCut(); err != nil {
		return err
	}
	if err := c.validatePipeline(); err != nil {
		return err
	}
	return c.validateLogging()
}

// ValidateCredentials reports the first missing API key needed by a pipeline run.
func (c *Config) ValidateCredentials() error {
	defaultPath, err := DefaultConfigPath()
	if err != nil {
		defaultPath = "~/.config/framewright/config.toml"
	}
	switch {
	case c.LLM.APIKey == "":
		return fmt.Errorf("llm.api_key is required. Set FRAMEWRIGHT_LLM_API_KEY or edit %s (create with 'framewright config init')", defaultPath)
	case c.Image.APIKey == "":
		return fmt.Errorf("image.api_key is required. Set GEMINI_API_KEY or edit %s", defaultPath)
	case c.Video.APIKey == "":
		return fmt.Errorf("video.api_key is required. Set YUNWU_API_KEY or edit %s", defaultPath)
	}
	return nil
}

func (c *Config) validateVideo() error {
	switch c.Video.Resolution {
	case "480p", "720p", "1080p":
	default:
		return fmt.Errorf("video.resolution must be one of 480p, 720p, 1080p (got %q)", c.Video.Resolution)
	}
	if !strings.Contains(c.Video.AspectRatio, ":") {
		return fmt.Errorf("video.aspect_ratio must look like 16:9 (got %q)", c.Video.AspectRatio)
	}
	if c.Video.FPS > 60 {
		return errors.New("video.fps must be at most 60")
	}
	return nil
}

func (c *Config) validateSceneCut() error {
	if c.SceneCut.Threshold <= 0 || c.SceneCut.Threshold >= 1 {
		return errors.New("scene_cut.threshold must be between 0 and 1")
	}
	if c.SceneCut.MinSceneSeconds < 0 {
		return errors.New("scene_cut.min_scene_seconds must be non-negative")
	}
	return nil
}

func (c *Config) validatePipeline() error {
	if c.Pipeline.Concurrency > 64 {
		return errors.New("pipeline.concurrency must be at most 64")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json (got %q)", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error (got %q)", c.Logging.Level)
	}
	return nil
}
