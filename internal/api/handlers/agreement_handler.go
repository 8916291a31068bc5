package handlers

import (
	"bytes"
	"errors"
	"math"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/ocr-eval/harness/internal/agreement"
	"github.com/ocr-eval/harness/internal/metrics"
	"github.com/ocr-eval/harness/pkg/logger"
)

type AgreementHandler struct {
	analyzer *agreement.Analyzer
}

func NewAgreementHandler(analyzer *agreement.Analyzer) *AgreementHandler {
	if analyzer == nil {
		analyzer = agreement.DefaultAnalyzer()
	}
	return &AgreementHandler{analyzer: analyzer}
}

// Analyze computes agreement over the posted items.
func (h *AgreementHandler) Analyze(c *fiber.Ctx) error {
	metrics.ScoreRequests.WithLabelValues("agreement").Inc()

	var req struct {
		Items []agreement.ScoredItem `json:"items"`
	}
	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	report, err := h.analyzer.Analyze(req.Items)
	if err != nil {
		return agreementError(c, err)
	}

	return writeReport(c, report)
}

// agreementError maps analysis failures to responses.
func agreementError(c *fiber.Ctx, err error) error {
	var insufficient *agreement.InsufficientDataError
	if errors.As(err, &insufficient) {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"error":   insufficient.Error(),
			"total":   insufficient.Total,
			"skipped": insufficient.Skipped,
		})
	}

	logger.Error("Agreement analysis failed", zap.Error(err))
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error": "Agreement analysis failed",
	})
}

// writeReport answers with JSON, or with the plain-text report when
// format=text is requested.
func writeReport(c *fiber.Ctx, report *agreement.Report) error {
	recordKappa(report)

	if c.Query("format") != "text" {
		return c.JSON(report)
	}

	var buf bytes.Buffer
	if err := agreement.WriteText(&buf, report); err != nil {
		logger.Error("Failed to render agreement report", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to render report",
		})
	}
	c.Set(fiber.HeaderContentType, fiber.MIMETextPlainCharsetUTF8)
	return c.Send(buf.Bytes())
}

func recordKappa(report *agreement.Report) {
	if !math.IsNaN(report.KappaUnweighted) {
		metrics.AgreementKappa.WithLabelValues(agreement.Unweighted.String()).Set(report.KappaUnweighted)
	}
	if !math.IsNaN(report.KappaWeighted) {
		metrics.AgreementKappa.WithLabelValues(agreement.Quadratic.String()).Set(report.KappaWeighted)
	}
}
