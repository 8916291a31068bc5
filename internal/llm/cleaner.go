package llm

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/ocr-eval/harness/pkg/logger"
)

// Cleaner turns OCR text into clean text with one model, optionally
// followed by a second correction pass over its own output.
type Cleaner struct {
	name        string
	model       string
	temperature float32
	correct     bool
	completer   Completer
}

func NewCleaner(name, model string, temperature float32, correct bool, completer Completer) *Cleaner {
	return &Cleaner{
		name:        name,
		model:       model,
		temperature: temperature,
		correct:     correct,
		completer:   completer,
	}
}

func (c *Cleaner) Name() string  { return c.name }
func (c *Cleaner) Model() string { return c.model }

// Clean returns "" for blank input without calling the model.
func (c *Cleaner) Clean(ctx context.Context, ocrText string) (string, error) {
	if strings.TrimSpace(ocrText) == "" {
		return "", nil
	}

	cleaned, err := c.pass(ctx, cleanSystemPrompt, "OCR text:\n---\n"+ocrText+"\n---\nCleaned text:")
	if err != nil {
		return "", fmt.Errorf("clean pass for %s: %w", c.name, err)
	}

	if !c.correct || strings.TrimSpace(cleaned) == "" {
		return cleaned, nil
	}

	corrected, err := c.pass(ctx, correctSystemPrompt, "Pre-cleaned OCR text:\n---\n"+cleaned+"\n---\nCorrected text:")
	if err != nil {
		return "", fmt.Errorf("correction pass for %s: %w", c.name, err)
	}

	logger.Debug("Text cleaned",
		zap.String("cleaner", c.name),
		zap.Int("input_length", len(ocrText)),
		zap.Int("output_length", len(corrected)),
	)

	return corrected, nil
}

func (c *Cleaner) pass(ctx context.Context, system, user string) (string, error) {
	resp, err := c.completer.Complete(ctx, CompletionRequest{
		Model:        c.model,
		SystemPrompt: system,
		UserPrompt:   user,
		Temperature:  c.temperature,
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Content), nil
}
