package handlers

import (
	"bytes"
	"errors"
	"io"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/ocr-eval/harness/internal/ingestion"
	"github.com/ocr-eval/harness/pkg/logger"
)

type DatasetHandler struct {
	processor *ingestion.Processor
}

func NewDatasetHandler(processor *ingestion.Processor) *DatasetHandler {
	if processor == nil {
		processor = ingestion.NewProcessor(ingestion.DefaultOptions())
	}
	return &DatasetHandler{processor: processor}
}

// ImportHTML splits an HTML edition into chapters. The document is the raw
// request body, or the "file" field of a multipart form.
func (h *DatasetHandler) ImportHTML(c *fiber.Ctx) error {
	var r io.Reader = bytes.NewReader(c.Body())

	if fh, err := c.FormFile("file"); err == nil {
		f, err := fh.Open()
		if err != nil {
			logger.Error("Failed to open uploaded file", zap.Error(err))
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Failed to read uploaded file",
			})
		}
		defer f.Close()
		r = f
	} else if len(c.Body()) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "HTML document is required",
		})
	}

	chapters, err := h.processor.Chapters(r)
	if err != nil {
		if errors.Is(err, ingestion.ErrNoContent) {
			return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
				"error": err.Error(),
			})
		}
		logger.Error("Failed to import HTML", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Failed to parse HTML",
		})
	}

	return c.JSON(fiber.Map{
		"count":    len(chapters),
		"chapters": chapters,
		"texts":    ingestion.Keyed(chapters),
	})
}
