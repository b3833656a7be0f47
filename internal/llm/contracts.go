// Package llm defines the vision-model capability used to read drawing pages.
package llm

import "context"

// Request is one page image plus the instructions to apply to it.
type Request struct {
	Image    []byte
	MIMEType string // defaults to image/png
	Prompt   string
	Model    string // empty selects the provider default
	APIKey   string
}

// VisionModel returns the model's raw text reply, already unwrapped from the
// provider envelope. Failures are *CallError values.
type VisionModel interface {
	Invoke(ctx context.Context, req Request) (string, error)
	Name() string
}
