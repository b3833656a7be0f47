// Package gemini reads drawing pages with Google's Gemini models.
package gemini

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"google.golang.org/genai"

	"github.com/joseph-ayodele/pipetakeoff/constants"
	"github.com/joseph-ayodele/pipetakeoff/internal/common"
	"github.com/joseph-ayodele/pipetakeoff/internal/llm"
)

const (
	providerName = "gemini"
	DefaultModel = "gemini-2.5-flash"
)

type Config struct {
	APIKey    string
	Model     string
	BaseURL   string // empty uses the public endpoint
	MaxTokens int
	Timeout   time.Duration
}

// Client builds a genai client per call because the API key may differ per request.
type Client struct {
	cfg    Config
	http   *http.Client
	logger *slog.Logger
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{cfg: cfg, http: &http.Client{Timeout: cfg.Timeout}, logger: logger}
}

func (c *Client) Name() string { return providerName }

// HasAPIKey reports whether a server-side key is configured.
func (c *Client) HasAPIKey() bool { return c.cfg.APIKey != "" }

func (c *Client) Invoke(ctx context.Context, req llm.Request) (string, error) {
	start := time.Now()
	log := common.LoggerFrom(ctx, c.logger)

	apiKey := req.APIKey
	if apiKey == "" {
		apiKey = c.cfg.APIKey
	}
	if apiKey == "" {
		return "", &llm.CallError{Provider: providerName, Kind: llm.KindAuth, Err: errors.New("no API key configured")}
	}
	model := req.Model
	if model == "" {
		model = c.cfg.Model
	}
	mimeType := req.MIMEType
	if mimeType == "" {
		mimeType = constants.PNGMimeType
	}

	cc := &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: c.http,
	}
	if c.cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: c.cfg.BaseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return "", llm.TransportError(providerName, err)
	}

	parts := []*genai.Part{
		genai.NewPartFromText(req.Prompt),
		genai.NewPartFromBytes(req.Image, mimeType),
	}
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}
	config := &genai.GenerateContentConfig{ResponseMIMEType: "application/json"}
	if c.cfg.MaxTokens > 0 {
		config.MaxOutputTokens = int32(c.cfg.MaxTokens)
	}

	log.Info("llm.gemini.start", "model", model, "image_bytes", len(req.Image), "prompt_len", len(req.Prompt))

	resp, err := client.Models.GenerateContent(ctx, model, contents, config)
	if err != nil {
		callErr := classify(err)
		log.Error("llm.gemini.error", "kind", callErr.Kind, "status", callErr.StatusCode, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds())
		return "", callErr
	}

	text := resp.Text()
	log.Info("llm.gemini.response",
		"model", model,
		"candidates", len(resp.Candidates),
		"content_len", len(text),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return text, nil
}

func classify(err error) *llm.CallError {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) && apiErr.Code != 0 {
		return llm.StatusError(providerName, apiErr.Code, []byte(apiErr.Message))
	}
	return llm.TransportError(providerName, err)
}
