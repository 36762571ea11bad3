package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"framewright/internal/config"
	"framewright/internal/judgment"
	"framewright/internal/ledger"
	"framewright/internal/media/ffprobe"
	"framewright/internal/media/scenecut"
	"framewright/internal/pipeline"
	"framewright/internal/services/imagegen"
	"framewright/internal/services/llm"
	"framewright/internal/services/videogen"
	"framewright/internal/transition"
)

// buildOrchestrator connects the configured service clients to a pipeline.
// A nil store runs without a ledger.
func buildOrchestrator(ctx context.Context, cfg *config.Config, store *ledger.Store, logger *slog.Logger) (*pipeline.Orchestrator, error) {
	// The orchestrator owns the attempt budget, so the LLM client sends each
	// request once.
	llmClient := llm.NewClient(llm.Config{
		APIKey:         cfg.LLM.APIKey,
		BaseURL:        cfg.LLM.BaseURL,
		Model:          cfg.LLM.Model,
		VisionModel:    cfg.LLM.VisionModel,
		Referer:        cfg.LLM.Referer,
		Title:          cfg.LLM.Title,
		TimeoutSeconds: cfg.LLM.TimeoutSeconds,
	}, llm.WithRetryMaxAttempts(1))

	images, err := imagegen.New(ctx, imagegen.Config{
		APIKey:  cfg.Image.APIKey,
		BaseURL: cfg.Image.BaseURL,
		Model:   cfg.Image.Model,
		Width:   cfg.Image.Width,
		Height:  cfg.Image.Height,
		Timeout: seconds(cfg.Image.TimeoutSeconds),
	})
	if err != nil {
		return nil, fmt.Errorf("image service: %w", err)
	}

	video := videogen.NewClient(videogen.Config{
		APIKey:          cfg.Video.APIKey,
		BaseURL:         cfg.Video.BaseURL,
		ModelT2V:        cfg.Video.ModelT2V,
		ModelFF2V:       cfg.Video.ModelFF2V,
		ModelFLF2V:      cfg.Video.ModelFLF2V,
		Resolution:      cfg.Video.Resolution,
		AspectRatio:     cfg.Video.AspectRatio,
		FPS:             cfg.Video.FPS,
		DurationSeconds: cfg.Video.DurationSeconds,
		PollInterval:    seconds(cfg.Video.PollIntervalSeconds),
		Timeout:         seconds(cfg.Video.TimeoutSeconds),
	})

	cutter := scenecut.New(cfg.Tools.FFmpeg, cfg.SceneCut.Threshold, cfg.SceneCut.MinSceneSeconds)
	inspector := ffprobe.NewInspector(cfg.Tools.FFprobe)

	deps := pipeline.Dependencies{
		Judge:       judgment.NewLLM(llmClient),
		Images:      images,
		Transitions: transition.NewSynthesizer(video, logger, cfg.Pipeline.Attempts),
		Clips:       video,
		Extractor:   transition.NewExtractor(cutter, inspector, logger),
		Logger:      logger,
	}
	if store != nil {
		deps.Ledger = store
	}

	return pipeline.New(deps, pipeline.Options{
		RunsDir:          cfg.Paths.RunsDir,
		Concurrency:      cfg.Pipeline.Concurrency,
		Attempts:         cfg.Pipeline.Attempts,
		JudgmentTimeout:  cfg.JudgmentTimeout(),
		DecomposeTimeout: cfg.DecomposeTimeout(),
	}), nil
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}
