package evaluation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ocr-eval/harness/internal/dataset"
	"github.com/ocr-eval/harness/internal/scoring"
)

func TestSummarize(t *testing.T) {
	human := 4
	items := []dataset.Item{
		{ItemID: 1, ModelOutputs: []dataset.ModelOutput{
			{ModelName: "Gemini", Metrics: &scoring.MetricResult{WER: 0.1, CER: 0.05}, Judgement: &dataset.Judgement{Score: 4, HumanScore: &human}},
			{ModelName: "Mistral", Metrics: &scoring.MetricResult{WER: 0.3, CER: 0.2}, Judgement: &dataset.Judgement{Score: -1}},
		}},
		{ItemID: 2, ModelOutputs: []dataset.ModelOutput{
			{ModelName: "Gemini", Metrics: &scoring.MetricResult{WER: 0.3, CER: 0.15}, Judgement: &dataset.Judgement{Score: 2}},
			{ModelName: "Mistral", CleanedText: "[ERROR: boom]"},
		}},
	}

	summaries := Summarize(items)
	require.Len(t, summaries, 2)

	g := summaries[0]
	assert.Equal(t, "Gemini", g.ModelName)
	assert.Equal(t, 2, g.Outputs)
	assert.Equal(t, 1, g.HumanScored)
	assert.InDelta(t, 0.2, *g.MeanWER, 1e-9)
	assert.InDelta(t, 0.1, *g.MeanCER, 1e-9)
	assert.InDelta(t, 3.0, *g.MeanScore, 1e-9)

	m := summaries[1]
	assert.Equal(t, 1, m.Failures)
	assert.Equal(t, 1, m.Unparsed)
	assert.Nil(t, m.MeanScore)
	assert.InDelta(t, 0.3, *m.MeanWER, 1e-9)

	var b strings.Builder
	require.NoError(t, GenerateReport(&b, "Model Comparison", summaries))
	out := b.String()
	assert.Contains(t, out, "--- Model Comparison ---")
	assert.Contains(t, out, "0.2000")
	assert.Contains(t, out, "n/a")
	assert.Contains(t, out, "Lowest mean WER: Gemini")
}

func TestGenerateReport_Empty(t *testing.T) {
	var b strings.Builder
	require.NoError(t, GenerateReport(&b, "Empty", nil))
	assert.Contains(t, b.String(), "No model outputs.")
}
