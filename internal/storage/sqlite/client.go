package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/ocr-eval/harness/internal/agreement"
	"github.com/ocr-eval/harness/internal/storage/models"
	"github.com/ocr-eval/harness/pkg/logger"
)

var ErrNotFound = errors.New("not found")

type Client struct {
	db *sql.DB
}

func NewClient(dbPath string) (*Client, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000", dbPath)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// Pipeline workers write concurrently; one connection serializes them.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	logger.Info("SQLite client initialized", zap.String("path", dbPath))

	return &Client{db: db}, nil
}

func (c *Client) Close() error {
	return c.db.Close()
}

func (c *Client) InitSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		status TEXT NOT NULL,
		dataset_path TEXT,
		start_index INTEGER NOT NULL,
		end_index INTEGER NOT NULL,
		models TEXT NOT NULL,
		items_total INTEGER NOT NULL DEFAULT 0,
		items_done INTEGER NOT NULL DEFAULT 0,
		error TEXT,
		created_at INTEGER NOT NULL,
		finished_at INTEGER
	);
	CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created_at);

	CREATE TABLE IF NOT EXISTS model_outputs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		item_id INTEGER NOT NULL,
		item_key TEXT,
		model_name TEXT NOT NULL,
		original_ocr TEXT,
		ground_truth TEXT,
		cleaned_text TEXT,
		clean_error TEXT,
		wer REAL,
		cer REAL,
		judged INTEGER NOT NULL DEFAULT 0,
		judge_score INTEGER,
		raw_score_text TEXT,
		human_score INTEGER,
		differences TEXT,
		created_at INTEGER NOT NULL,
		UNIQUE (run_id, item_id, model_name),
		FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE
	);
	CREATE INDEX IF NOT EXISTS idx_outputs_run ON model_outputs(run_id);
	CREATE INDEX IF NOT EXISTS idx_outputs_model ON model_outputs(run_id, model_name);

	CREATE TABLE IF NOT EXISTS agreement_reports (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		n INTEGER NOT NULL,
		skipped INTEGER NOT NULL,
		simple_agreement_pct REAL NOT NULL,
		kappa_unweighted REAL,
		kappa_weighted REAL,
		interpretation TEXT NOT NULL,
		recommendation TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE
	);
	CREATE INDEX IF NOT EXISTS idx_agreement_run ON agreement_reports(run_id);
	`

	if _, err := c.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Info("SQLite schema initialized")
	return nil
}

func (c *Client) InsertRun(ctx context.Context, run *models.Run) error {
	modelsJSON, err := json.Marshal(run.Models)
	if err != nil {
		return fmt.Errorf("failed to marshal run models: %w", err)
	}

	query := `
		INSERT INTO runs (id, status, dataset_path, start_index, end_index, models, items_total, items_done, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = c.db.ExecContext(ctx, query,
		run.ID,
		run.Status,
		run.DatasetPath,
		run.StartIndex,
		run.EndIndex,
		string(modelsJSON),
		run.ItemsTotal,
		run.ItemsDone,
		run.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	logger.Info("Run recorded", zap.String("run_id", run.ID), zap.Int("items", run.ItemsTotal))
	return nil
}

func (c *Client) UpdateRunProgress(ctx context.Context, runID string, status models.RunStatus, itemsDone int) error {
	query := `UPDATE runs SET status = ?, items_done = ? WHERE id = ?`
	return c.execOne(ctx, "update run progress", query, status, itemsDone, runID)
}

// FinishRun moves a run to a terminal status.
func (c *Client) FinishRun(ctx context.Context, runID string, status models.RunStatus, errMsg string) error {
	query := `UPDATE runs SET status = ?, error = ?, finished_at = ? WHERE id = ?`
	return c.execOne(ctx, "finish run", query, status, errMsg, time.Now().Unix(), runID)
}

func (c *Client) GetRun(ctx context.Context, runID string) (*models.Run, error) {
	query := `
		SELECT id, status, dataset_path, start_index, end_index, models, items_total, items_done,
			COALESCE(error, ''), created_at, finished_at
		FROM runs WHERE id = ?
	`

	var run models.Run
	var modelsJSON string
	var createdAt int64
	var finishedAt sql.NullInt64

	err := c.db.QueryRowContext(ctx, query, runID).Scan(
		&run.ID,
		&run.Status,
		&run.DatasetPath,
		&run.StartIndex,
		&run.EndIndex,
		&modelsJSON,
		&run.ItemsTotal,
		&run.ItemsDone,
		&run.Error,
		&createdAt,
		&finishedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s: %w", runID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	if err := json.Unmarshal([]byte(modelsJSON), &run.Models); err != nil {
		return nil, fmt.Errorf("failed to decode run models: %w", err)
	}
	run.CreatedAt = time.Unix(createdAt, 0)
	if finishedAt.Valid {
		t := time.Unix(finishedAt.Int64, 0)
		run.FinishedAt = &t
	}

	return &run, nil
}

func (c *Client) ListRuns(ctx context.Context, limit int) ([]models.Run, error) {
	rows, err := c.db.QueryContext(ctx, `SELECT id FROM runs ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}

	runs := make([]models.Run, 0, len(ids))
	for _, id := range ids {
		run, err := c.GetRun(ctx, id)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, nil
}

// UpsertModelOutput stores an output, replacing any earlier output for the
// same run, item and model. An existing human score is kept.
func (c *Client) UpsertModelOutput(ctx context.Context, out *models.ModelOutput) error {
	query := `
		INSERT INTO model_outputs (run_id, item_id, item_key, model_name, original_ocr, ground_truth, cleaned_text,
			clean_error, wer, cer, judged, judge_score, raw_score_text, human_score, differences, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, item_id, model_name) DO UPDATE SET
			cleaned_text = excluded.cleaned_text,
			clean_error = excluded.clean_error,
			wer = excluded.wer,
			cer = excluded.cer,
			judged = excluded.judged,
			judge_score = excluded.judge_score,
			raw_score_text = excluded.raw_score_text,
			human_score = COALESCE(excluded.human_score, model_outputs.human_score),
			differences = excluded.differences
	`

	createdAt := out.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	var judgeScore any
	if out.Judged {
		judgeScore = out.JudgeScore
	}

	_, err := c.db.ExecContext(ctx, query,
		out.RunID,
		out.ItemID,
		out.ItemKey,
		out.ModelName,
		out.OriginalOCR,
		out.GroundTruth,
		out.CleanedText,
		out.CleanError,
		nullableFloat(out.WER),
		nullableFloat(out.CER),
		boolToInt(out.Judged),
		judgeScore,
		out.RawScoreText,
		nullableInt(out.HumanScore),
		out.Differences,
		createdAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert model output: %w", err)
	}

	logger.Debug("Model output stored",
		zap.String("run_id", out.RunID),
		zap.Int("item_id", out.ItemID),
		zap.String("model", out.ModelName),
	)
	return nil
}

// GetModelOutputs returns a run's outputs ordered by item, then by the order
// they were first stored.
func (c *Client) GetModelOutputs(ctx context.Context, runID string) ([]models.ModelOutput, error) {
	query := `
		SELECT id, run_id, item_id, COALESCE(item_key, ''), model_name, COALESCE(original_ocr, ''),
			COALESCE(ground_truth, ''), COALESCE(cleaned_text, ''), COALESCE(clean_error, ''),
			wer, cer, judged, judge_score, COALESCE(raw_score_text, ''), human_score,
			COALESCE(differences, ''), created_at
		FROM model_outputs
		WHERE run_id = ?
		ORDER BY item_id, id
	`

	rows, err := c.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get model outputs: %w", err)
	}
	defer rows.Close()

	var outputs []models.ModelOutput
	for rows.Next() {
		var o models.ModelOutput
		var wer, cer sql.NullFloat64
		var judged int
		var judgeScore, humanScore sql.NullInt64
		var createdAt int64

		err := rows.Scan(
			&o.ID, &o.RunID, &o.ItemID, &o.ItemKey, &o.ModelName, &o.OriginalOCR,
			&o.GroundTruth, &o.CleanedText, &o.CleanError,
			&wer, &cer, &judged, &judgeScore, &o.RawScoreText, &humanScore,
			&o.Differences, &createdAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		o.WER = floatPtr(wer)
		o.CER = floatPtr(cer)
		o.Judged = judged == 1
		if judgeScore.Valid {
			o.JudgeScore = int(judgeScore.Int64)
		}
		o.HumanScore = intPtr(humanScore)
		o.CreatedAt = time.Unix(createdAt, 0)
		outputs = append(outputs, o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to get model outputs: %w", err)
	}
	return outputs, nil
}

// SetHumanScore records or clears (score == nil) a human annotation.
func (c *Client) SetHumanScore(ctx context.Context, runID string, itemID int, modelName string, score *int) error {
	query := `UPDATE model_outputs SET human_score = ? WHERE run_id = ? AND item_id = ? AND model_name = ?`
	if err := c.execOne(ctx, "set human score", query, nullableInt(score), runID, itemID, modelName); err != nil {
		return err
	}

	logger.Info("Human score recorded",
		zap.String("run_id", runID),
		zap.Int("item_id", itemID),
		zap.String("model", modelName),
	)
	return nil
}

// ScoredItems returns the judged outputs of a run as agreement inputs.
func (c *Client) ScoredItems(ctx context.Context, runID string) ([]agreement.ScoredItem, error) {
	query := `
		SELECT item_id, model_name, judge_score, human_score
		FROM model_outputs
		WHERE run_id = ? AND judged = 1
		ORDER BY item_id, id
	`

	rows, err := c.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get scored items: %w", err)
	}
	defer rows.Close()

	var items []agreement.ScoredItem
	for rows.Next() {
		var itemID int
		var model string
		var judgeScore, humanScore sql.NullInt64
		if err := rows.Scan(&itemID, &model, &judgeScore, &humanScore); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		item := agreement.ScoredItem{
			ItemID:     strconv.Itoa(itemID),
			ModelName:  model,
			HumanScore: intPtr(humanScore),
		}
		if judgeScore.Valid && judgeScore.Int64 >= 0 {
			s := int(judgeScore.Int64)
			item.AutomatedScore = &s
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to get scored items: %w", err)
	}
	return items, nil
}

// SummarizeRun aggregates outputs per model. Unparsed judge scores (-1) are
// left out of the mean score.
func (c *Client) SummarizeRun(ctx context.Context, runID string) ([]models.ModelSummary, error) {
	query := `
		SELECT model_name,
			COUNT(*),
			SUM(CASE WHEN wer IS NULL THEN 1 ELSE 0 END),
			SUM(judged),
			SUM(CASE WHEN judged = 1 AND judge_score < 0 THEN 1 ELSE 0 END),
			SUM(CASE WHEN human_score IS NOT NULL THEN 1 ELSE 0 END),
			AVG(wer),
			AVG(cer),
			AVG(CASE WHEN judged = 1 AND judge_score >= 0 THEN judge_score END)
		FROM model_outputs
		WHERE run_id = ?
		GROUP BY model_name
		ORDER BY MIN(id)
	`

	rows, err := c.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize run: %w", err)
	}
	defer rows.Close()

	var summaries []models.ModelSummary
	for rows.Next() {
		var s models.ModelSummary
		var meanWER, meanCER, meanScore sql.NullFloat64
		err := rows.Scan(&s.ModelName, &s.Outputs, &s.Failures, &s.Judged, &s.Unparsed, &s.HumanScored,
			&meanWER, &meanCER, &meanScore)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		s.MeanWER = floatPtr(meanWER)
		s.MeanCER = floatPtr(meanCER)
		s.MeanScore = floatPtr(meanScore)
		summaries = append(summaries, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to summarize run: %w", err)
	}
	return summaries, nil
}

func (c *Client) InsertAgreementReport(ctx context.Context, runID string, report *agreement.Report) (*models.AgreementRecord, error) {
	rec := &models.AgreementRecord{
		RunID:              runID,
		N:                  report.N,
		Skipped:            report.Skipped,
		SimpleAgreementPct: report.SimpleAgreementPct,
		KappaUnweighted:    finite(report.KappaUnweighted),
		KappaWeighted:      finite(report.KappaWeighted),
		Interpretation:     string(report.Interpretation),
		Recommendation:     string(report.Recommendation),
		CreatedAt:          time.Now(),
	}

	query := `
		INSERT INTO agreement_reports (run_id, n, skipped, simple_agreement_pct, kappa_unweighted, kappa_weighted,
			interpretation, recommendation, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	res, err := c.db.ExecContext(ctx, query,
		rec.RunID,
		rec.N,
		rec.Skipped,
		rec.SimpleAgreementPct,
		nullableFloat(rec.KappaUnweighted),
		nullableFloat(rec.KappaWeighted),
		rec.Interpretation,
		rec.Recommendation,
		rec.CreatedAt.Unix(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert agreement report: %w", err)
	}

	rec.ID, _ = res.LastInsertId()
	return rec, nil
}

func (c *Client) LatestAgreementReport(ctx context.Context, runID string) (*models.AgreementRecord, error) {
	query := `
		SELECT id, run_id, n, skipped, simple_agreement_pct, kappa_unweighted, kappa_weighted,
			interpretation, recommendation, created_at
		FROM agreement_reports
		WHERE run_id = ?
		ORDER BY id DESC
		LIMIT 1
	`

	var rec models.AgreementRecord
	var ku, kw sql.NullFloat64
	var createdAt int64
	err := c.db.QueryRowContext(ctx, query, runID).Scan(
		&rec.ID, &rec.RunID, &rec.N, &rec.Skipped, &rec.SimpleAgreementPct, &ku, &kw,
		&rec.Interpretation, &rec.Recommendation, &createdAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("agreement report for run %s: %w", runID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get agreement report: %w", err)
	}

	rec.KappaUnweighted = floatPtr(ku)
	rec.KappaWeighted = floatPtr(kw)
	rec.CreatedAt = time.Unix(createdAt, 0)
	return &rec, nil
}

func (c *Client) execOne(ctx context.Context, op, query string, args ...any) error {
	res, err := c.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to %s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to %s: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("failed to %s: %w", op, ErrNotFound)
	}
	return nil
}

func nullableFloat(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullableInt(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	return &v.Float64
}

func intPtr(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	n := int(v.Int64)
	return &n
}

func finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
