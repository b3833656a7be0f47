package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/joseph-ayodele/pipetakeoff/internal/common"
	"github.com/joseph-ayodele/pipetakeoff/internal/llm"
)

const providerName = "openai"

func (c *Client) Name() string { return providerName }

// Invoke sends one page image to chat/completions and returns the message content.
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

	body := map[string]any{
		"model":           model,
		"max_tokens":      c.cfg.MaxTokens,
		"response_format": map[string]any{"type": "json_object"},
		"messages": []map[string]any{
			{
				"role": "user",
				"content": []map[string]any{
					{"type": "text", "text": req.Prompt},
					{
						"type": "image_url",
						"image_url": map[string]any{
							"url":    llm.DataURL(req.MIMEType, req.Image),
							"detail": "high",
						},
					},
				},
			},
		},
	}

	log.Info("llm.openai.start", "model", model, "image_bytes", len(req.Image), "prompt_len", len(req.Prompt))

	raw, err := llm.PostJSON(ctx, c.http, llm.Call{
		Provider: providerName,
		URL:      strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions",
		Body:     body,
		Headers:  map[string]string{"Authorization": "Bearer " + apiKey},
	}, log)
	if err != nil {
		return "", err
	}

	var cc struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &cc); err != nil {
		log.Error("llm.openai.decode_error", "error", err, "raw_bytes", len(raw))
		return "", &llm.CallError{Provider: providerName, Kind: llm.KindUpstream, StatusCode: http.StatusOK, Err: err}
	}
	if len(cc.Choices) == 0 {
		log.Error("llm.openai.no_choices", "raw_bytes", len(raw))
		return "", &llm.CallError{Provider: providerName, Kind: llm.KindUpstream, StatusCode: http.StatusOK, Err: errors.New("no choices in response")}
	}

	content := cc.Choices[0].Message.Content
	if strings.TrimSpace(content) == "" {
		log.Warn("llm.openai.empty_content")
	}
	log.Info("llm.openai.response",
		"model", model,
		"content_len", len(content),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return content, nil
}
