package evaluation

import (
	"bufio"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/ocr-eval/harness/internal/dataset"
	"github.com/ocr-eval/harness/internal/storage/models"
)

// Summarize aggregates results per model in order of first appearance.
// Failed cleanings count toward Failures only; unparsed judge scores are
// left out of MeanScore.
func Summarize(items []dataset.Item) []models.ModelSummary {
	type acc struct {
		summary              models.ModelSummary
		wer, cer, score      float64
		scored, scoreSamples int
	}

	var order []string
	byModel := make(map[string]*acc)

	for _, item := range items {
		for _, out := range item.ModelOutputs {
			a, ok := byModel[out.ModelName]
			if !ok {
				a = &acc{summary: models.ModelSummary{ModelName: out.ModelName}}
				byModel[out.ModelName] = a
				order = append(order, out.ModelName)
			}

			a.summary.Outputs++
			if out.Metrics == nil {
				a.summary.Failures++
			} else {
				a.wer += out.Metrics.WER
				a.cer += out.Metrics.CER
				a.scored++
			}

			if out.Judgement == nil {
				continue
			}
			a.summary.Judged++
			if out.Judgement.HumanScore != nil {
				a.summary.HumanScored++
			}
			if s := out.Judgement.AutomatedScore(); s != nil {
				a.score += float64(*s)
				a.scoreSamples++
			} else {
				a.summary.Unparsed++
			}
		}
	}

	summaries := make([]models.ModelSummary, 0, len(order))
	for _, name := range order {
		a := byModel[name]
		if a.scored > 0 {
			a.summary.MeanWER = mean(a.wer, a.scored)
			a.summary.MeanCER = mean(a.cer, a.scored)
		}
		if a.scoreSamples > 0 {
			a.summary.MeanScore = mean(a.score, a.scoreSamples)
		}
		summaries = append(summaries, a.summary)
	}
	return summaries
}

func mean(sum float64, n int) *float64 {
	m := sum / float64(n)
	return &m
}

// GenerateReport writes a per-model comparison table.
func GenerateReport(w io.Writer, title string, summaries []models.ModelSummary) error {
	bw := bufio.NewWriter(w)

	fmt.Fprintf(bw, "--- %s ---\n\n", title)
	if len(summaries) == 0 {
		fmt.Fprintln(bw, "No model outputs.")
		return bw.Flush()
	}

	tw := tabwriter.NewWriter(bw, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "Model\tOutputs\tFailures\tMean WER\tMean CER\tMean Score\tUnparsed\tHuman Scored")
	for _, s := range summaries {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%s\t%s\t%s\t%d\t%d\n",
			s.ModelName, s.Outputs, s.Failures,
			formatMean(s.MeanWER, "%.4f"), formatMean(s.MeanCER, "%.4f"), formatMean(s.MeanScore, "%.2f"),
			s.Unparsed, s.HumanScored,
		)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if best := bestByWER(summaries); best != "" {
		fmt.Fprintf(bw, "\nLowest mean WER: %s\n", best)
	}
	return bw.Flush()
}

func formatMean(v *float64, format string) string {
	if v == nil {
		return "n/a"
	}
	return fmt.Sprintf(format, *v)
}

func bestByWER(summaries []models.ModelSummary) string {
	best := ""
	var bestWER float64
	for _, s := range summaries {
		if s.MeanWER == nil {
			continue
		}
		if best == "" || *s.MeanWER < bestWER {
			best, bestWER = s.ModelName, *s.MeanWER
		}
	}
	return best
}
