package dataset

import (
	"strconv"
	"strings"

	"github.com/ocr-eval/harness/internal/agreement"
	"github.com/ocr-eval/harness/internal/scoring"
)

// UnparsedScore is stored when the judge's reply held no integer.
const UnparsedScore = -1

// Item is one record of a pipeline results file.
type Item struct {
	ItemID       int           `json:"item_id"`
	OriginalOCR  string        `json:"original_ocr"`
	GroundTruth  string        `json:"ground_truth"`
	ModelOutputs []ModelOutput `json:"model_outputs"`
}

// ModelOutput is one cleaner's result for an item. Metrics and Judgement are
// nil when cleaning failed.
type ModelOutput struct {
	ModelName   string                `json:"model_name"`
	CleanedText string                `json:"cleaned_text"`
	Metrics     *scoring.MetricResult `json:"metrics"`
	Judgement   *Judgement            `json:"judgement"`
	Differences []scoring.Difference  `json:"differences"`
}

type Judgement struct {
	Score        int    `json:"score"`
	RawScoreText string `json:"raw_score_text"`
	HumanScore   *int   `json:"human_score,omitempty"`
}

// AutomatedScore returns nil for an unparsed judgement.
func (j *Judgement) AutomatedScore() *int {
	if j == nil || j.Score == UnparsedScore {
		return nil
	}
	s := j.Score
	return &s
}

func LoadResults(path string) ([]Item, error) {
	var items []Item
	if err := readJSON(path, &items); err != nil {
		return nil, err
	}
	return items, nil
}

func SaveResults(path string, items []Item) error {
	if items == nil {
		items = []Item{}
	}
	return writeJSON(path, items)
}

// ScoredItems flattens results into agreement inputs, one per judged output.
func ScoredItems(items []Item) []agreement.ScoredItem {
	var out []agreement.ScoredItem
	for _, item := range items {
		for _, mo := range item.ModelOutputs {
			if mo.Judgement == nil {
				continue
			}
			out = append(out, agreement.ScoredItem{
				ItemID:         strconv.Itoa(item.ItemID),
				ModelName:      mo.ModelName,
				HumanScore:     mo.Judgement.HumanScore,
				AutomatedScore: mo.Judgement.AutomatedScore(),
			})
		}
	}
	return out
}

// ExtractByModel flattens results to item id -> field -> text, with one
// "<model>_cleaned" field per cleaner. Items with an id of 0 or less are
// skipped.
func ExtractByModel(items []Item) map[string]map[string]string {
	out := make(map[string]map[string]string, len(items))
	for _, item := range items {
		if item.ItemID <= 0 {
			continue
		}
		fields := map[string]string{
			"original_ocr": item.OriginalOCR,
			"ground_truth": item.GroundTruth,
		}
		for _, mo := range item.ModelOutputs {
			fields[ModelFieldName(mo.ModelName)] = mo.CleanedText
		}
		out[strconv.Itoa(item.ItemID)] = fields
	}
	return out
}

// ModelFieldName derives the extract field for a model: the lower-cased name
// up to its first hyphen, so "Gemini-1.5-Flash" becomes "gemini_cleaned".
func ModelFieldName(model string) string {
	base, _, _ := strings.Cut(model, "-")
	base = strings.ToLower(strings.TrimSpace(base))
	base = strings.ReplaceAll(base, " ", "_")
	return base + "_cleaned"
}

// SaveExtract writes an ExtractByModel result with items in id order.
func SaveExtract(path string, extract map[string]map[string]string) error {
	keys := SortKeys(keysOf(extract))
	return writeOrdered(path, keys, func(key string) any { return extract[key] })
}
