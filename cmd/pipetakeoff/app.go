package main

import (
	"log/slog"

	"github.com/joseph-ayodele/pipetakeoff/internal/analysis"
	"github.com/joseph-ayodele/pipetakeoff/internal/common"
	"github.com/joseph-ayodele/pipetakeoff/internal/export"
	"github.com/joseph-ayodele/pipetakeoff/internal/extraction"
	"github.com/joseph-ayodele/pipetakeoff/internal/ingest"
	"github.com/joseph-ayodele/pipetakeoff/internal/llm"
	"github.com/joseph-ayodele/pipetakeoff/internal/llm/gemini"
	"github.com/joseph-ayodele/pipetakeoff/internal/llm/openai"
	"github.com/joseph-ayodele/pipetakeoff/internal/render"
	"github.com/joseph-ayodele/pipetakeoff/internal/session"
)

// app is the wired pipeline shared by every subcommand.
type app struct {
	store    *session.Store
	ingest   *ingest.Service
	analysis *analysis.Service
	export   *export.Service
}

func buildApp(cfg *common.Config, logger *slog.Logger) (*app, error) {
	store := session.New(
		session.WithTTL(cfg.Session.TTL),
		session.WithSweepInterval(cfg.Session.SweepInterval),
		session.WithLogger(logger),
	)

	renderer := render.NewPoppler(render.Config{
		PdftoppmBin:  cfg.Render.PdftoppmBin,
		PdfinfoBin:   cfg.Render.PdfinfoBin,
		DPI:          cfg.Render.DPI,
		MaxDimension: cfg.Render.MaxDimension,
	}, logger)

	models := llm.NewRegistry(cfg.LLM.Provider,
		openai.NewClient(openai.Config{
			APIKey:    cfg.LLM.OpenAIAPIKey,
			BaseURL:   cfg.LLM.OpenAIBaseURL,
			Model:     cfg.LLM.OpenAIModel,
			MaxTokens: cfg.LLM.MaxTokens,
			Timeout:   cfg.LLM.Timeout,
		}, logger),
		gemini.NewClient(gemini.Config{
			APIKey:    cfg.LLM.GeminiAPIKey,
			Model:     cfg.LLM.GeminiModel,
			MaxTokens: cfg.LLM.MaxTokens,
			Timeout:   cfg.LLM.Timeout,
		}, logger),
	)

	prompts, err := llm.NewPromptBuilder()
	if err != nil {
		return nil, err
	}

	return &app{
		store:    store,
		ingest:   ingest.NewService(renderer, store, cfg.Render.Workers, logger),
		analysis: analysis.NewService(store, models, prompts, extraction.NewParser(logger), cfg.LLM.Timeout, logger),
		export:   export.NewService(logger),
	}, nil
}
