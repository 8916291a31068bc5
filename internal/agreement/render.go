package agreement

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strings"
	"text/tabwriter"
)

// WriteText renders r as the plain-text agreement report.
func WriteText(w io.Writer, r *Report) error {
	bw := bufio.NewWriter(w)

	fmt.Fprintf(bw, "Found %d samples with both human and automated judge scores.\n", r.N)
	if r.Skipped > 0 {
		fmt.Fprintf(bw, "Skipped %d human-scored samples with an unparseable judge score.\n", r.Skipped)
	}

	fmt.Fprint(bw, "\n--- Data Used for Calculation ---\n")
	tw := tabwriter.NewWriter(bw, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprint(tw, "\titem_id\tmodel\thuman_score\tjudge_score\t\n")
	for i, p := range r.Pairs {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%d\t\n", i, p.ItemID, p.ModelName, p.Human, p.Automated)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprint(bw, "\n--- Raw Score Lists ---\n")
	fmt.Fprintf(bw, "Human Scores (Rater 1):     %s\n", intList(r.HumanScores()))
	fmt.Fprintf(bw, "Judge Scores (Rater 2):     %s\n", intList(r.AutomatedScores()))

	fmt.Fprint(bw, "\n--- Agreement Analysis ---\n")
	fmt.Fprintf(bw, "Simple Agreement:                   %.2f%%\n", r.SimpleAgreementPct)
	fmt.Fprintf(bw, "Cohen's Kappa (Unweighted):         %s\n", formatKappa(r.KappaUnweighted))
	fmt.Fprintf(bw, "Cohen's Kappa (Quadratic Weighted): %s  <-- recommended for ordinal scores\n", formatKappa(r.KappaWeighted))

	fmt.Fprint(bw, "\n--- Interpretation of Weighted Kappa ---\n")
	if r.Interpretation == Undefined {
		fmt.Fprint(bw, "Kappa is undefined: both raters used a single score value, so chance agreement is total.\n")
	} else {
		fmt.Fprintf(bw, "The score of %s indicates: %s Agreement\n", formatKappa(r.KappaWeighted), r.Interpretation)
	}

	fmt.Fprint(bw, "\n--- Recommendation ---\n")
	fmt.Fprintln(bw, recommendationText(r.Recommendation))

	return bw.Flush()
}

func recommendationText(rec Recommendation) string {
	switch rec {
	case ManualReview:
		return "The agreement is not yet substantial. Review the disagreements in the table above and refine the judge before relying on it."
	case Trustworthy:
		return "The agreement is substantial. The judge's scores can be trusted on the rest of the dataset."
	default:
		return "No recommendation: score more items with a wider range of values."
	}
}

func formatKappa(k float64) string {
	if math.IsNaN(k) {
		return "NaN"
	}
	return fmt.Sprintf("%.3f", k)
}

func intList(values []int) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = fmt.Sprint(v)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
