package config

const (
	defaultRunsDir                  = "~/.local/share/framewright/runs"
	defaultLogDir                   = "~/.local/share/framewright/logs"
	defaultLogFormat                = "console"
	defaultLogLevel                 = "info"
	defaultLLMBaseURL               = "https://openrouter.ai/api/v1/chat/completions"
	defaultLLMModel                 = "google/gemini-2.5-flash"
	defaultLLMReferer               = "https://github.com/framewright/framewright"
	defaultLLMTitle                 = "framewright"
	defaultLLMTimeoutSeconds        = 120
	defaultImageModel               = "gemini-2.5-flash-image-preview"
	defaultImageWidth               = 1600
	defaultImageHeight              = 900
	defaultImageTimeoutSeconds      = 180
	defaultVideoBaseURL             = "https://yunwu.ai"
	defaultVideoModelT2V            = "doubao-seedance-1-0-lite-t2v-250428"
	defaultVideoModelFF2V           = "doubao-seedance-1-0-lite-i2v-250428"
	defaultVideoModelFLF2V          = "doubao-seedance-1-0-lite-i2v-250428"
	defaultVideoResolution          = "720p"
	defaultVideoAspectRatio         = "16:9"
	defaultVideoFPS                 = 16
	defaultVideoDurationSeconds     = 5
	defaultVideoPollIntervalSeconds = 2
	defaultVideoTimeoutSeconds      = 900
	defaultSceneCutThreshold        = 0.3
	defaultMinSceneSeconds          = 0.2
	defaultPipelineConcurrency      = 4
	defaultPipelineAttempts         = 3
	defaultDecomposeTimeoutSeconds  = 150
	defaultJudgmentTimeoutSeconds   = 150
	defaultMinFreeGiB               = 2
	defaultFFmpegBinary             = "ffmpeg"
	defaultFFprobeBinary            = "ffprobe"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			RunsDir: defaultRunsDir,
			LogDir:  defaultLogDir,
		},
		LLM: LLM{
			BaseURL:        defaultLLMBaseURL,
			Model:          defaultLLMModel,
			Referer:        defaultLLMReferer,
			Title:          defaultLLMTitle,
			TimeoutSeconds: defaultLLMTimeoutSeconds,
		},
		Image: Image{
			Model:          defaultImageModel,
			Width:          defaultImageWidth,
			Height:         defaultImageHeight,
			TimeoutSeconds: defaultImageTimeoutSeconds,
		},
		Video: Video{
			BaseURL:             defaultVideoBaseURL,
			ModelT2V:            defaultVideoModelT2V,
			ModelFF2V:           defaultVideoModelFF2V,
			ModelFLF2V:          defaultVideoModelFLF2V,
			Resolution:          defaultVideoResolution,
			AspectRatio:         defaultVideoAspectRatio,
			FPS:                 defaultVideoFPS,
			DurationSeconds:     defaultVideoDurationSeconds,
			PollIntervalSeconds: defaultVideoPollIntervalSeconds,
			TimeoutSeconds:      defaultVideoTimeoutSeconds,
		},
		SceneCut: SceneCut{
			Threshold:       defaultSceneCutThreshold,
			MinSceneSeconds: defaultMinSceneSeconds,
		},
		Pipeline: Pipeline{
			Concurrency:             defaultPipelineConcurrency,
			Attempts:                defaultPipelineAttempts,
			DecomposeTimeoutSeconds: defaultDecomposeTimeoutSeconds,
			JudgmentTimeoutSeconds:  defaultJudgmentTimeoutSeconds,
			MinFreeGiB:              defaultMinFreeGiB,
		},
		Tools: Tools{
			FFmpeg:  defaultFFmpegBinary,
			FFprobe: defaultFFprobeBinary,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
