package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/ocr-eval/harness/internal/metrics"
	"github.com/ocr-eval/harness/internal/scoring"
	"github.com/ocr-eval/harness/pkg/logger"
)

type ScoreHandler struct{}

func NewScoreHandler() *ScoreHandler {
	return &ScoreHandler{}
}

type scoreRequest struct {
	Reference  *string `json:"reference"`
	Hypothesis *string `json:"hypothesis"`
	Diffs      bool    `json:"diffs"`
}

// Score returns WER, CER and the word alignment for one pair. Empty texts
// are valid input.
func (h *ScoreHandler) Score(c *fiber.Ctx) error {
	metrics.ScoreRequests.WithLabelValues("score").Inc()

	var req scoreRequest
	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.Reference == nil || req.Hypothesis == nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "reference and hypothesis are required",
		})
	}

	resp := fiber.Map{
		"metrics":   scoring.ComputeMetrics(*req.Reference, *req.Hypothesis),
		"alignment": scoring.AlignWords(*req.Reference, *req.Hypothesis),
	}
	if req.Diffs {
		resp["differences"] = scoring.DetailedDiffs(*req.Reference, *req.Hypothesis)
	}

	return c.JSON(resp)
}

func (h *ScoreHandler) ScoreBatch(c *fiber.Ctx) error {
	metrics.ScoreRequests.WithLabelValues("batch").Inc()

	var req struct {
		Pairs []scoring.TextPair `json:"pairs"`
	}
	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if len(req.Pairs) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "pairs must not be empty",
		})
	}

	return c.JSON(fiber.Map{
		"count":   len(req.Pairs),
		"results": scoring.ScoreAll(req.Pairs),
	})
}
