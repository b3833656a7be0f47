package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/pipetakeoff/internal/common"
)

// maxResponseBytes caps how much of a provider answer is read into memory.
const maxResponseBytes = 16 << 20

// Call is one JSON POST to a provider endpoint.
type Call struct {
	Provider string
	URL      string
	Body     any
	Headers  map[string]string
}

// PostJSON sends c and returns the body of a 2xx answer. Every failure comes back
// as a *CallError: transport problems as KindTransport, other statuses per KindForStatus.
func PostJSON(ctx context.Context, client *http.Client, c Call, logger *slog.Logger) ([]byte, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Minute}
	}
	reqID := common.RequestIDFromContext(ctx)
	if reqID == "" {
		reqID = uuid.NewString()
	}
	log := logger.With("provider", c.Provider, "req_id", reqID)
	start := time.Now()

	payload, err := json.Marshal(c.Body)
	if err != nil {
		return nil, TransportError(c.Provider, fmt.Errorf("encode request: %w", err))
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, bytes.NewReader(payload))
	if err != nil {
		return nil, TransportError(c.Provider, fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	for k, v := range c.Headers {
		req.Header.Set(k, v)
	}

	log.Debug("llm.http.request", "url", c.URL, "payload_bytes", len(payload))
	resp, err := client.Do(req)
	if err != nil {
		log.Error("llm.http.send_failed", "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return nil, TransportError(c.Provider, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		log.Error("llm.http.read_failed", "status", resp.StatusCode, "error", err)
		return nil, TransportError(c.Provider, fmt.Errorf("read response: %w", err))
	}

	elapsed := time.Since(start).Milliseconds()
	if resp.StatusCode/100 != 2 {
		callErr := StatusError(c.Provider, resp.StatusCode, raw)
		log.Error("llm.http.status_error", "status", resp.StatusCode, "kind", callErr.Kind, "elapsed_ms", elapsed)
		return nil, callErr
	}
	log.Debug("llm.http.response", "status", resp.StatusCode, "bytes", len(raw), "elapsed_ms", elapsed)
	return raw, nil
}
