package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/ocr-eval/harness/internal/agreement"
	"github.com/ocr-eval/harness/internal/dataset"
	"github.com/ocr-eval/harness/internal/evaluation"
	"github.com/ocr-eval/harness/internal/storage/models"
	"github.com/ocr-eval/harness/internal/storage/sqlite"
	"github.com/ocr-eval/harness/pkg/logger"
)

// RunStore is satisfied by *sqlite.Client.
type RunStore interface {
	GetRun(ctx context.Context, runID string) (*models.Run, error)
	ListRuns(ctx context.Context, limit int) ([]models.Run, error)
	GetModelOutputs(ctx context.Context, runID string) ([]models.ModelOutput, error)
	SummarizeRun(ctx context.Context, runID string) ([]models.ModelSummary, error)
	ScoredItems(ctx context.Context, runID string) ([]agreement.ScoredItem, error)
	SetHumanScore(ctx context.Context, runID string, itemID int, modelName string, score *int) error
	InsertAgreementReport(ctx context.Context, runID string, report *agreement.Report) (*models.AgreementRecord, error)
}

// RunStarter is satisfied by *evaluation.Manager.
type RunStarter interface {
	Start(ctx context.Context, req evaluation.RunRequest) (*models.Run, error)
	Cancel(runID string) error
}

type RunHandler struct {
	runs       RunStarter
	store      RunStore
	analyzer   *agreement.Analyzer
	datasetDir string
	defaultSet string
}

// NewRunHandler serves pipeline runs. Dataset names in requests are
// resolved inside the directory of defaultDataset.
func NewRunHandler(runs RunStarter, store RunStore, analyzer *agreement.Analyzer, defaultDataset string) *RunHandler {
	if analyzer == nil {
		analyzer = agreement.DefaultAnalyzer()
	}
	return &RunHandler{
		runs:       runs,
		store:      store,
		analyzer:   analyzer,
		datasetDir: filepath.Dir(defaultDataset),
		defaultSet: filepath.Base(defaultDataset),
	}
}

func (h *RunHandler) CreateRun(c *fiber.Ctx) error {
	var req struct {
		Dataset    string `json:"dataset"`
		StartIndex int    `json:"start_index"`
		EndIndex   int    `json:"end_index"`
	}
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			logger.Error("Failed to parse request body", zap.Error(err))
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Invalid request body",
			})
		}
	}
	if req.StartIndex == 0 {
		req.StartIndex = 1
	}

	name := h.defaultSet
	if req.Dataset != "" {
		name = filepath.Base(req.Dataset)
	}
	path := filepath.Join(h.datasetDir, name)

	entries, err := dataset.LoadEntries(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": fmt.Sprintf("dataset %q not found", name),
			})
		}
		logger.Error("Failed to load dataset", zap.String("path", path), zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Failed to load dataset",
		})
	}

	selected, err := dataset.Slice(entries, req.StartIndex, req.EndIndex)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	if len(selected) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "no dataset entries in the requested range",
		})
	}

	run, err := h.runs.Start(c.UserContext(), evaluation.RunRequest{
		DatasetPath: path,
		StartIndex:  req.StartIndex,
		EndIndex:    req.EndIndex,
		Entries:     selected,
	})
	if err != nil {
		logger.Error("Failed to start run", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to start run",
		})
	}

	return c.Status(fiber.StatusAccepted).JSON(run)
}

func (h *RunHandler) ListRuns(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 20)
	if limit <= 0 || limit > 200 {
		limit = 20
	}

	runs, err := h.store.ListRuns(c.UserContext(), limit)
	if err != nil {
		return storeError(c, err)
	}
	if runs == nil {
		runs = []models.Run{}
	}
	return c.JSON(fiber.Map{"runs": runs})
}

type outputView struct {
	models.ModelOutput
	Differences json.RawMessage `json:"differences"`
}

// GetRun returns the run, with its outputs when outputs=true.
func (h *RunHandler) GetRun(c *fiber.Ctx) error {
	runID := c.Params("id")
	run, err := h.store.GetRun(c.UserContext(), runID)
	if err != nil {
		return storeError(c, err)
	}

	if !c.QueryBool("outputs") {
		return c.JSON(fiber.Map{"run": run})
	}

	outputs, err := h.store.GetModelOutputs(c.UserContext(), runID)
	if err != nil {
		return storeError(c, err)
	}

	views := make([]outputView, len(outputs))
	for i, o := range outputs {
		diffs := json.RawMessage(o.Differences)
		if len(diffs) == 0 {
			diffs = json.RawMessage("[]")
		}
		views[i] = outputView{ModelOutput: o, Differences: diffs}
	}

	return c.JSON(fiber.Map{"run": run, "outputs": views})
}

func (h *RunHandler) CancelRun(c *fiber.Ctx) error {
	runID := c.Params("id")
	if err := h.runs.Cancel(runID); err != nil {
		if errors.Is(err, evaluation.ErrRunNotActive) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"error": "Run is not active",
			})
		}
		return storeError(c, err)
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"run_id": runID, "status": "cancelling"})
}

func (h *RunHandler) Summary(c *fiber.Ctx) error {
	runID := c.Params("id")
	if _, err := h.store.GetRun(c.UserContext(), runID); err != nil {
		return storeError(c, err)
	}

	summaries, err := h.store.SummarizeRun(c.UserContext(), runID)
	if err != nil {
		return storeError(c, err)
	}
	if summaries == nil {
		summaries = []models.ModelSummary{}
	}

	if c.Query("format") == "text" {
		var buf bytes.Buffer
		if err := evaluation.GenerateReport(&buf, "Run "+runID, summaries); err != nil {
			return storeError(c, err)
		}
		c.Set(fiber.HeaderContentType, fiber.MIMETextPlainCharsetUTF8)
		return c.Send(buf.Bytes())
	}

	return c.JSON(fiber.Map{"run_id": runID, "models": summaries})
}

// Agreement analyses the run's human-annotated outputs and stores the report.
func (h *RunHandler) Agreement(c *fiber.Ctx) error {
	runID := c.Params("id")
	if _, err := h.store.GetRun(c.UserContext(), runID); err != nil {
		return storeError(c, err)
	}

	items, err := h.store.ScoredItems(c.UserContext(), runID)
	if err != nil {
		return storeError(c, err)
	}

	report, err := h.analyzer.Analyze(items)
	if err != nil {
		return agreementError(c, err)
	}

	if _, err := h.store.InsertAgreementReport(c.UserContext(), runID, report); err != nil {
		logger.Warn("Failed to store agreement report", zap.String("run_id", runID), zap.Error(err))
	}

	return writeReport(c, report)
}

// SetHumanScore records a human score for one output; a null score clears it.
func (h *RunHandler) SetHumanScore(c *fiber.Ctx) error {
	runID := c.Params("id")
	itemID, err := strconv.Atoi(c.Params("item"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "item must be an integer",
		})
	}
	model, err := url.PathUnescape(c.Params("model"))
	if err != nil || model == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid model name",
		})
	}

	var req struct {
		Score *int `json:"score"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.Score != nil && (*req.Score < h.analyzer.ScaleMin || *req.Score > h.analyzer.ScaleMax) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": fmt.Sprintf("score must be between %d and %d", h.analyzer.ScaleMin, h.analyzer.ScaleMax),
		})
	}

	if err := h.store.SetHumanScore(c.UserContext(), runID, itemID, model, req.Score); err != nil {
		return storeError(c, err)
	}

	return c.JSON(fiber.Map{
		"run_id":      runID,
		"item_id":     itemID,
		"model_name":  model,
		"human_score": req.Score,
	})
}

func storeError(c *fiber.Ctx, err error) error {
	if errors.Is(err, sqlite.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Not found",
		})
	}
	logger.Error("Request failed", zap.String("path", c.Path()), zap.Error(err))
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error": "Internal server error",
	})
}
