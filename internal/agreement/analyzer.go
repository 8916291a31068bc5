// Package agreement measures how closely an automated judge's scores track
// human scores on the same model outputs.
package agreement

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/ocr-eval/harness/pkg/logger"
)

const (
	DefaultScaleMin        = 0
	DefaultScaleMax        = 5
	DefaultReviewThreshold = 0.6
)

// Analyzer holds the score scale and the kappa below which the judge needs
// manual review.
type Analyzer struct {
	ScaleMin        int
	ScaleMax        int
	ReviewThreshold float64
}

// NewAnalyzer returns an analyzer for scores in scaleMin..scaleMax.
func NewAnalyzer(scaleMin, scaleMax int, reviewThreshold float64) *Analyzer {
	return &Analyzer{ScaleMin: scaleMin, ScaleMax: scaleMax, ReviewThreshold: reviewThreshold}
}

// DefaultAnalyzer uses the 0-5 judge scale and a 0.6 review threshold.
func DefaultAnalyzer() *Analyzer {
	return NewAnalyzer(DefaultScaleMin, DefaultScaleMax, DefaultReviewThreshold)
}

// Analyze runs the default analyzer.
func Analyze(items []ScoredItem) (*Report, error) {
	return DefaultAnalyzer().Analyze(items)
}

// Analyze compares human and automated scores over the items that carry
// both. Items without a human score are ignored. Items with a human score
// but no automated score, or with either score outside the scale, are
// skipped with a warning. It returns an *InsufficientDataError when nothing
// is left to compare.
func (a *Analyzer) Analyze(items []ScoredItem) (*Report, error) {
	if !validScale(a.ScaleMin, a.ScaleMax) {
		return nil, fmt.Errorf("invalid score scale %d..%d", a.ScaleMin, a.ScaleMax)
	}

	pairs := make([]Comparison, 0, len(items))
	skipped := 0

	for _, item := range items {
		if item.HumanScore == nil {
			continue
		}
		if item.AutomatedScore == nil {
			skipped++
			logger.Warn("Skipping item without a usable automated score",
				zap.String("item_id", item.ItemID),
				zap.String("model", item.ModelName),
			)
			continue
		}
		if !InScale(*item.HumanScore, a.ScaleMin, a.ScaleMax) || !InScale(*item.AutomatedScore, a.ScaleMin, a.ScaleMax) {
			skipped++
			logger.Warn("Skipping item with a score outside the scale",
				zap.String("item_id", item.ItemID),
				zap.String("model", item.ModelName),
				zap.Int("human", *item.HumanScore),
				zap.Int("automated", *item.AutomatedScore),
				zap.Int("scale_min", a.ScaleMin),
				zap.Int("scale_max", a.ScaleMax),
			)
			continue
		}
		pairs = append(pairs, Comparison{
			ItemID:    item.ItemID,
			ModelName: item.ModelName,
			Human:     *item.HumanScore,
			Automated: *item.AutomatedScore,
		})
	}

	if len(pairs) == 0 {
		return nil, &InsufficientDataError{Total: len(items), Skipped: skipped}
	}

	human := make([]int, len(pairs))
	automated := make([]int, len(pairs))
	agreed := 0
	for i, p := range pairs {
		human[i], automated[i] = p.Human, p.Automated
		if p.Human == p.Automated {
			agreed++
		}
	}

	weighted := CohenKappa(human, automated, Quadratic, a.ScaleMin, a.ScaleMax)
	report := &Report{
		N:                  len(pairs),
		Skipped:            skipped,
		SimpleAgreementPct: 100 * float64(agreed) / float64(len(pairs)),
		KappaUnweighted:    CohenKappa(human, automated, Unweighted, a.ScaleMin, a.ScaleMax),
		KappaWeighted:      weighted,
		Interpretation:     Interpret(weighted),
		Recommendation:     Recommend(weighted, a.ReviewThreshold),
		Pairs:              pairs,
	}

	logger.Info("Agreement analysis complete",
		zap.Int("n", report.N),
		zap.Int("skipped", skipped),
		zap.Float64("simple_agreement_pct", report.SimpleAgreementPct),
		zap.String("interpretation", string(report.Interpretation)),
	)

	return report, nil
}

// HumanScores and AutomatedScores return the aligned rating sequences.
func (r *Report) HumanScores() []int {
	out := make([]int, len(r.Pairs))
	for i, p := range r.Pairs {
		out[i] = p.Human
	}
	return out
}

func (r *Report) AutomatedScores() []int {
	out := make([]int, len(r.Pairs))
	for i, p := range r.Pairs {
		out[i] = p.Automated
	}
	return out
}
