// Package analysis runs one drawing page through a vision model and parses the reply.
package analysis

import (
	"context"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/pipetakeoff/constants"
	"github.com/joseph-ayodele/pipetakeoff/internal/common"
	"github.com/joseph-ayodele/pipetakeoff/internal/entity"
	"github.com/joseph-ayodele/pipetakeoff/internal/extraction"
	"github.com/joseph-ayodele/pipetakeoff/internal/llm"
)

const (
	DefaultTimeout  = 5 * time.Minute
	maxPromptLength = 20000
)

type PageSource interface {
	Page(id string, pageNumber int) ([]byte, error)
}

type ModelResolver interface {
	Get(name string) (llm.VisionModel, error)
}

// keyedModel is implemented by providers that can fall back to a server-side key.
type keyedModel interface {
	HasAPIKey() bool
}

type Request struct {
	SessionID    string `json:"sessionId"`
	PageNumber   int    `json:"pageNumber"`
	APIKey       string `json:"apiKey"`
	CustomPrompt string `json:"customPrompt"`
	Provider     string `json:"provider"`
	Model        string `json:"model"`
}

func (r Request) validate() error {
	return common.NewValidator().
		Field("sessionId", r.SessionID, common.Required).
		Field("pageNumber", r.PageNumber, common.AtLeast(1)).
		Field("customPrompt", r.CustomPrompt, common.MaxLength(maxPromptLength)).
		Err()
}

type Service struct {
	pages   PageSource
	models  ModelResolver
	prompts *llm.PromptBuilder
	parser  *extraction.Parser
	timeout time.Duration
	logger  *slog.Logger
}

func NewService(pages PageSource, models ModelResolver, prompts *llm.PromptBuilder, parser *extraction.Parser, timeout time.Duration, logger *slog.Logger) *Service {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{pages: pages, models: models, prompts: prompts, parser: parser, timeout: timeout, logger: logger}
}

// Analyze reads one stored page, asks the model about it and parses the answer.
// Store errors and model errors are returned unchanged; parsing never fails.
func (s *Service) Analyze(ctx context.Context, req Request) (entity.ExtractionOutcome, error) {
	start := time.Now()
	ctx = common.WithSessionID(ctx, req.SessionID)
	log := common.LoggerFrom(ctx, s.logger)

	if err := req.validate(); err != nil {
		return entity.ExtractionOutcome{}, err
	}

	image, err := s.pages.Page(req.SessionID, req.PageNumber)
	if err != nil {
		return entity.ExtractionOutcome{}, err
	}

	model, err := s.models.Get(req.Provider)
	if err != nil {
		return entity.ExtractionOutcome{}, err
	}
	if req.APIKey == "" {
		if km, ok := model.(keyedModel); ok && !km.HasAPIKey() {
			return entity.ExtractionOutcome{}, common.InvalidInputError("apiKey is required: no server key is configured for " + model.Name())
		}
	}

	log.Info("analysis.start",
		"page", req.PageNumber,
		"provider", model.Name(),
		"custom_prompt", req.CustomPrompt != "",
	)

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	text, err := model.Invoke(callCtx, llm.Request{
		Image:    image,
		MIMEType: constants.PNGMimeType,
		Prompt:   s.prompts.Build(req.CustomPrompt),
		Model:    req.Model,
		APIKey:   req.APIKey,
	})
	if err != nil {
		log.Error("analysis.model_failed", "page", req.PageNumber, "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return entity.ExtractionOutcome{}, err
	}

	out := s.parser.Parse(text)
	log.Info("analysis.ok",
		"page", req.PageNumber,
		"materials", len(out.Materials),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return out, nil
}
