package agreement

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func score(v int) *int { return &v }

func dualScored(human, automated []int) []ScoredItem {
	items := make([]ScoredItem, len(human))
	for i := range human {
		items[i] = ScoredItem{
			ItemID:         strconv.Itoa(i),
			ModelName:      "Mistral",
			HumanScore:     score(human[i]),
			AutomatedScore: score(automated[i]),
		}
	}
	return items
}

func TestAnalyze_InsufficientData(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		items       []ScoredItem
		wantSkipped int
	}{
		{name: "empty"},
		{name: "no human scores", items: []ScoredItem{{ItemID: "1", AutomatedScore: score(3)}}},
		{
			name:        "only malformed judgements",
			items:       []ScoredItem{{ItemID: "1", HumanScore: score(3)}},
			wantSkipped: 1,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			report, err := Analyze(tt.items)

			assert.Nil(t, report)
			require.ErrorIs(t, err, ErrInsufficientData)
			var insufficient *InsufficientDataError
			require.True(t, errors.As(err, &insufficient))
			assert.Equal(t, len(tt.items), insufficient.Total)
			assert.Equal(t, tt.wantSkipped, insufficient.Skipped)
		})
	}
}

func TestAnalyze_FiltersAndPreservesOrder(t *testing.T) {
	t.Parallel()

	items := []ScoredItem{
		{ItemID: "3", ModelName: "A", HumanScore: score(4), AutomatedScore: score(4)},
		{ItemID: "1", ModelName: "A", AutomatedScore: score(2)},
		{ItemID: "2", ModelName: "B", HumanScore: score(5)},
		{ItemID: "7", ModelName: "B", HumanScore: score(1), AutomatedScore: score(3)},
	}

	report, err := Analyze(items)
	require.NoError(t, err)

	assert.Equal(t, 2, report.N)
	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, []Comparison{
		{ItemID: "3", ModelName: "A", Human: 4, Automated: 4},
		{ItemID: "7", ModelName: "B", Human: 1, Automated: 3},
	}, report.Pairs)
	assert.InDelta(t, 50.0, report.SimpleAgreementPct, 1e-12)
}

func TestAnalyze_SkipsScoresOutsideScale(t *testing.T) {
	t.Parallel()

	items := []ScoredItem{
		{ItemID: "1", ModelName: "A", HumanScore: score(3), AutomatedScore: score(3)},
		{ItemID: "2", ModelName: "A", HumanScore: score(4), AutomatedScore: score(1 << 40)},
		{ItemID: "3", ModelName: "A", HumanScore: score(-1), AutomatedScore: score(2)},
		{ItemID: "4", ModelName: "B", HumanScore: score(6), AutomatedScore: score(5)},
		{ItemID: "5", ModelName: "B", HumanScore: score(0), AutomatedScore: score(5)},
	}

	report, err := Analyze(items)
	require.NoError(t, err)

	assert.Equal(t, 2, report.N)
	assert.Equal(t, 3, report.Skipped)
	assert.Equal(t, []int{3, 0}, report.HumanScores())
	assert.Equal(t, []int{3, 5}, report.AutomatedScores())
}

func TestAnalyze_OnlyOutOfScaleScores(t *testing.T) {
	t.Parallel()

	_, err := Analyze([]ScoredItem{{ItemID: "1", HumanScore: score(2), AutomatedScore: score(500)}})

	var insufficient *InsufficientDataError
	require.True(t, errors.As(err, &insufficient))
	assert.Equal(t, 1, insufficient.Skipped)
}

func TestAnalyzer_InvalidScale(t *testing.T) {
	t.Parallel()

	_, err := NewAnalyzer(5, 0, 0.6).Analyze(dualScored([]int{1}, []int{1}))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInsufficientData)
}

func TestAnalyze_PerfectAgreement(t *testing.T) {
	t.Parallel()

	report, err := Analyze(dualScored([]int{0, 1, 2, 3, 4, 5}, []int{0, 1, 2, 3, 4, 5}))
	require.NoError(t, err)

	assert.Equal(t, 100.0, report.SimpleAgreementPct)
	assert.Equal(t, 1.0, report.KappaUnweighted)
	assert.Equal(t, 1.0, report.KappaWeighted)
	assert.Equal(t, AlmostPerfect, report.Interpretation)
	assert.Equal(t, Trustworthy, report.Recommendation)
}

func TestAnalyze_SingleScoreValueIsUndefined(t *testing.T) {
	t.Parallel()

	report, err := Analyze(dualScored([]int{3, 3, 3}, []int{3, 3, 3}))
	require.NoError(t, err)

	assert.Equal(t, 100.0, report.SimpleAgreementPct)
	assert.True(t, math.IsNaN(report.KappaUnweighted))
	assert.True(t, math.IsNaN(report.KappaWeighted))
	assert.Equal(t, Undefined, report.Interpretation)
	assert.Equal(t, Undetermined, report.Recommendation)
}

func TestAnalyze_SingleItemIsValid(t *testing.T) {
	t.Parallel()

	report, err := Analyze(dualScored([]int{4}, []int{2}))
	require.NoError(t, err)

	assert.Equal(t, 1, report.N)
	assert.Zero(t, report.SimpleAgreementPct)
}

func TestAnalyze_OffByOne(t *testing.T) {
	t.Parallel()

	report, err := Analyze(dualScored([]int{1, 2, 3, 4, 5, 3, 2, 4}, []int{1, 2, 3, 4, 4, 2, 2, 5}))
	require.NoError(t, err)

	assert.InDelta(t, 62.5, report.SimpleAgreementPct, 1e-12)
	assert.InDelta(t, 0.52, report.KappaUnweighted, 1e-9)
	assert.InDelta(t, 0.88, report.KappaWeighted, 1e-9)
	assert.Greater(t, report.KappaWeighted, report.KappaUnweighted)
	assert.Equal(t, AlmostPerfect, report.Interpretation)
}

func TestAnalyzer_CustomThreshold(t *testing.T) {
	t.Parallel()

	items := dualScored([]int{1, 2, 3, 4, 5, 3, 2, 4}, []int{1, 2, 3, 4, 4, 2, 2, 5})

	report, err := NewAnalyzer(0, 5, 0.9).Analyze(items)
	require.NoError(t, err)

	assert.Equal(t, ManualReview, report.Recommendation)
}

func TestReport_JSONEncodesNaNAsNull(t *testing.T) {
	t.Parallel()

	report, err := Analyze(dualScored([]int{3}, []int{3}))
	require.NoError(t, err)

	data, err := json.Marshal(report)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"kappa_weighted":null`)
	assert.Contains(t, string(data), `"interpretation":"Undefined"`)

	var decoded Report
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.True(t, math.IsNaN(decoded.KappaWeighted))
	assert.Equal(t, report.Pairs, decoded.Pairs)
}

func TestWriteText(t *testing.T) {
	t.Parallel()

	report, err := Analyze(dualScored([]int{5, 4, 3, 5, 2, 4}, []int{5, 4, 4, 5, 3, 4}))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteText(&buf, report))
	out := buf.String()

	assert.Contains(t, out, "Found 6 samples")
	assert.Contains(t, out, "--- Data Used for Calculation ---")
	assert.Contains(t, out, "Human Scores (Rater 1):     [5, 4, 3, 5, 2, 4]")
	assert.Contains(t, out, "Judge Scores (Rater 2):     [5, 4, 4, 5, 3, 4]")
	assert.Contains(t, out, "Simple Agreement:                   66.67%")
	assert.Contains(t, out, "Cohen's Kappa (Unweighted):         0.520")
	assert.Contains(t, out, "indicates: Almost Perfect Agreement")
	assert.Contains(t, out, "The agreement is substantial.")
}

func TestWriteText_Undefined(t *testing.T) {
	t.Parallel()

	report, err := Analyze(dualScored([]int{2, 2}, []int{2, 2}))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteText(&buf, report))

	assert.Contains(t, buf.String(), "Kappa is undefined")
	assert.Contains(t, buf.String(), "NaN")
}
