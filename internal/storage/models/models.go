package models

import "time"

type RunStatus string

const (
	RunPending   RunStatus = "pending"
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
	RunCancelled RunStatus = "cancelled"
)

// Terminal reports whether a run in this status will not change again.
func (s RunStatus) Terminal() bool {
	return s == RunCompleted || s == RunFailed || s == RunCancelled
}

type Run struct {
	ID          string     `json:"id"`
	Status      RunStatus  `json:"status"`
	DatasetPath string     `json:"dataset_path"`
	StartIndex  int        `json:"start_index"`
	EndIndex    int        `json:"end_index"`
	Models      []string   `json:"models"`
	ItemsTotal  int        `json:"items_total"`
	ItemsDone   int        `json:"items_done"`
	Error       string     `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	FinishedAt  *time.Time `json:"finished_at,omitempty"`
}

// ModelOutput is one cleaner's result for one item of a run. Metrics are nil
// when cleaning failed; Judged is false when the judge never ran.
type ModelOutput struct {
	ID           int64     `json:"id"`
	RunID        string    `json:"run_id"`
	ItemID       int       `json:"item_id"`
	ItemKey      string    `json:"item_key"`
	ModelName    string    `json:"model_name"`
	OriginalOCR  string    `json:"original_ocr"`
	GroundTruth  string    `json:"ground_truth"`
	CleanedText  string    `json:"cleaned_text"`
	CleanError   string    `json:"clean_error,omitempty"`
	WER          *float64  `json:"wer"`
	CER          *float64  `json:"cer"`
	Judged       bool      `json:"judged"`
	JudgeScore   int       `json:"judge_score"`
	RawScoreText string    `json:"raw_score_text"`
	HumanScore   *int      `json:"human_score,omitempty"`
	Differences  string    `json:"differences"`
	CreatedAt    time.Time `json:"created_at"`
}

// ModelSummary aggregates one model's outputs within a run. Means are nil
// when no output contributed.
type ModelSummary struct {
	ModelName   string   `json:"model_name"`
	Outputs     int      `json:"outputs"`
	Failures    int      `json:"failures"`
	Judged      int      `json:"judged"`
	Unparsed    int      `json:"unparsed_scores"`
	HumanScored int      `json:"human_scored"`
	MeanWER     *float64 `json:"mean_wer"`
	MeanCER     *float64 `json:"mean_cer"`
	MeanScore   *float64 `json:"mean_score"`
}

type AgreementRecord struct {
	ID                 int64     `json:"id"`
	RunID              string    `json:"run_id"`
	N                  int       `json:"n"`
	Skipped            int       `json:"skipped"`
	SimpleAgreementPct float64   `json:"simple_agreement_pct"`
	KappaUnweighted    *float64  `json:"kappa_unweighted"`
	KappaWeighted      *float64  `json:"kappa_weighted"`
	Interpretation     string    `json:"interpretation"`
	Recommendation     string    `json:"recommendation"`
	CreatedAt          time.Time `json:"created_at"`
}
