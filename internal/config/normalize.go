package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeLLM()
	c.normalizeImage()
	c.normalizeVideo()
	c.normalizePipeline()
	c.normalizeTools()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.RunsDir) == "" {
		c.Paths.RunsDir = defaultRunsDir
	}
	if c.Paths.RunsDir, err = expandPath(c.Paths.RunsDir); err != nil {
		return fmt.Errorf("paths.runs_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeLLM() {
	c.LLM.APIKey = strings.TrimSpace(c.LLM.APIKey)
	if c.LLM.APIKey == "" {
		c.LLM.APIKey = firstEnv("FRAMEWRIGHT_LLM_API_KEY", "OPENROUTER_API_KEY")
	}
	c.LLM.BaseURL = strings.TrimSpace(c.LLM.BaseURL)
	if c.LLM.BaseURL == "" {
		c.LLM.BaseURL = defaultLLMBaseURL
	}
	c.LLM.Model = strings.TrimSpace(c.LLM.Model)
	if c.LLM.Model == "" {
		c.LLM.Model = defaultLLMModel
	}
	c.LLM.VisionModel = strings.TrimSpace(c.LLM.VisionModel)
	if c.LLM.VisionModel == "" {
		c.LLM.VisionModel = c.LLM.Model
	}
	if c.LLM.TimeoutSeconds <= 0 {
		c.LLM.TimeoutSeconds = defaultLLMTimeoutSeconds
	}
}

func (c *Config) normalizeImage() {
	c.Image.APIKey = strings.TrimSpace(c.Image.APIKey)
	if c.Image.APIKey == "" {
		c.Image.APIKey = firstEnv("GEMINI_API_KEY", "GOOGLE_API_KEY")
	}
	c.Image.BaseURL = strings.TrimSpace(c.Image.BaseURL)
	c.Image.Model = strings.TrimSpace(c.Image.Model)
	if c.Image.Model == "" {
		c.Image.Model = defaultImageModel
	}
	if c.Image.Width <= 0 {
		c.Image.Width = defaultImageWidth
	}
	if c.Image.Height <= 0 {
		c.Image.Height = defaultImageHeight
	}
	if c.Image.TimeoutSeconds <= 0 {
		c.Image.TimeoutSeconds = defaultImageTimeoutSeconds
	}
}

func (c *Config) normalizeVideo() {
	c.Video.APIKey = strings.TrimSpace(c.Video.APIKey)
	if c.Video.APIKey == "" {
		c.Video.APIKey = firstEnv("YUNWU_API_KEY")
	}
	c.Video.BaseURL = strings.TrimRight(strings.TrimSpace(c.Video.BaseURL), "/")
	if c.Video.BaseURL == "" {
		c.Video.BaseURL = defaultVideoBaseURL
	}
	c.Video.ModelT2V = valueOr(c.Video.ModelT2V, defaultVideoModelT2V)
	c.Video.ModelFF2V = valueOr(c.Video.ModelFF2V, defaultVideoModelFF2V)
	c.Video.ModelFLF2V = valueOr(c.Video.ModelFLF2V, defaultVideoModelFLF2V)
	c.Video.Resolution = strings.ToLower(valueOr(c.Video.Resolution, defaultVideoResolution))
	c.Video.AspectRatio = valueOr(c.Video.AspectRatio, defaultVideoAspectRatio)
	if c.Video.FPS <= 0 {
		c.Video.FPS = defaultVideoFPS
	}
	if c.Video.DurationSeconds <= 0 {
		c.Video.DurationSeconds = defaultVideoDurationSeconds
	}
	if c.Video.PollIntervalSeconds <= 0 {
		c.Video.PollIntervalSeconds = defaultVideoPollIntervalSeconds
	}
	if c.Video.TimeoutSeconds <= 0 {
		c.Video.TimeoutSeconds = defaultVideoTimeoutSeconds
	}
}

func (c *Config) normalizePipeline() {
	if c.Pipeline.Concurrency <= 0 {
		c.Pipeline.Concurrency = defaultPipelineConcurrency
	}
	if c.Pipeline.Attempts <= 0 {
		c.Pipeline.Attempts = defaultPipelineAttempts
	}
	if c.Pipeline.DecomposeTimeoutSeconds <= 0 {
		c.Pipeline.DecomposeTimeoutSeconds = defaultDecomposeTimeoutSeconds
	}
	if c.Pipeline.JudgmentTimeoutSeconds <= 0 {
		c.Pipeline.JudgmentTimeoutSeconds = defaultJudgmentTimeoutSeconds
	}
}

func (c *Config) normalizeTools() {
	c.Tools.FFmpeg = valueOr(c.Tools.FFmpeg, defaultFFmpegBinary)
	c.Tools.FFprobe = valueOr(c.Tools.FFprobe, defaultFFprobeBinary)
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(valueOr(c.Logging.Format, defaultLogFormat))
	c.Logging.Level = strings.ToLower(valueOr(c.Logging.Level, defaultLogLevel))
}

func valueOr(value, fallback string) string {
	if trimmed := strings.TrimSpace(value); trimmed != "" {
		return trimmed
	}
	return fallback
}

func firstEnv(names ...string) string {
	for _, name := range names {
		if value, ok := os.LookupEnv(name); ok {
			if trimmed := strings.TrimSpace(value); trimmed != "" {
				return trimmed
			}
		}
	}
	return ""
}
