package llm

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Bounds of the judge's rating scale.
const (
	MinScore = 0
	MaxScore = 5
)

// Judge asks a model to rate cleaned text against the ground truth on a
// 0 to 5 scale.
type Judge struct {
	model       string
	temperature float32
	completer   Completer
}

func NewJudge(model string, temperature float32, completer Completer) *Judge {
	return &Judge{model: model, temperature: temperature, completer: completer}
}

func (j *Judge) Model() string { return j.model }

// Rate returns the judge's raw reply, trimmed. Blank cleaned text is rated
// "0" without a model call.
func (j *Judge) Rate(ctx context.Context, cleaned, groundTruth string) (string, error) {
	if strings.TrimSpace(cleaned) == "" {
		return "0", nil
	}

	resp, err := j.completer.Complete(ctx, CompletionRequest{
		Model:       j.model,
		UserPrompt:  fmt.Sprintf(judgePromptTemplate, groundTruth, cleaned),
		Temperature: j.temperature,
		MaxTokens:   16,
	})
	if err != nil {
		return "", fmt.Errorf("failed to judge: %w", err)
	}
	return strings.TrimSpace(resp.Content), nil
}

var firstInteger = regexp.MustCompile(`\d+`)

// ParseScore extracts the first integer in raw. It reports false, with a
// score of -1, when there is none or when it falls outside MinScore..MaxScore.
func ParseScore(raw string) (int, bool) {
	match := firstInteger.FindString(raw)
	if match == "" {
		return -1, false
	}
	n, err := strconv.Atoi(match)
	if err != nil || n < MinScore || n > MaxScore {
		return -1, false
	}
	return n, true
}
