package agreement

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

// ScoredItem pairs an optional human score with the automated judge's score
// for one model output. A nil AutomatedScore marks a judgement that could not
// be parsed.
type ScoredItem struct {
	ItemID         string `json:"item_id"`
	ModelName      string `json:"model_name"`
	HumanScore     *int   `json:"human_score,omitempty"`
	AutomatedScore *int   `json:"automated_score"`
}

type Interpretation string

const (
	AlmostPerfect Interpretation = "Almost Perfect"
	Substantial   Interpretation = "Substantial"
	Moderate      Interpretation = "Moderate"
	Fair          Interpretation = "Fair"
	SlightOrPoor  Interpretation = "Slight or Poor"
	Undefined     Interpretation = "Undefined"
)

type Recommendation string

const (
	ManualReview Recommendation = "manual_review"
	Trustworthy  Recommendation = "trustworthy"
	Undetermined Recommendation = "undetermined"
)

// Comparison is one dual-scored item that entered the analysis.
type Comparison struct {
	ItemID    string `json:"item_id"`
	ModelName string `json:"model_name"`
	Human     int    `json:"human_score"`
	Automated int    `json:"automated_score"`
}

// Report is recomputed from scratch on every analysis. Kappa values are NaN
// when chance agreement is total, which happens when both raters used a
// single score value.
type Report struct {
	N                  int            `json:"n"`
	Skipped            int            `json:"skipped"`
	SimpleAgreementPct float64        `json:"simple_agreement_pct"`
	KappaUnweighted    float64        `json:"kappa_unweighted"`
	KappaWeighted      float64        `json:"kappa_weighted"`
	Interpretation     Interpretation `json:"interpretation"`
	Recommendation     Recommendation `json:"recommendation"`
	Pairs              []Comparison   `json:"pairs"`
}

type reportJSON struct {
	N                  int            `json:"n"`
	Skipped            int            `json:"skipped"`
	SimpleAgreementPct float64        `json:"simple_agreement_pct"`
	KappaUnweighted    *float64       `json:"kappa_unweighted"`
	KappaWeighted      *float64       `json:"kappa_weighted"`
	Interpretation     Interpretation `json:"interpretation"`
	Recommendation     Recommendation `json:"recommendation"`
	Pairs              []Comparison   `json:"pairs"`
}

// MarshalJSON writes NaN kappas as null.
func (r Report) MarshalJSON() ([]byte, error) {
	return json.Marshal(reportJSON{
		N:                  r.N,
		Skipped:            r.Skipped,
		SimpleAgreementPct: r.SimpleAgreementPct,
		KappaUnweighted:    finiteOrNil(r.KappaUnweighted),
		KappaWeighted:      finiteOrNil(r.KappaWeighted),
		Interpretation:     r.Interpretation,
		Recommendation:     r.Recommendation,
		Pairs:              r.Pairs,
	})
}

func (r *Report) UnmarshalJSON(data []byte) error {
	var raw reportJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*r = Report{
		N:                  raw.N,
		Skipped:            raw.Skipped,
		SimpleAgreementPct: raw.SimpleAgreementPct,
		KappaUnweighted:    nilOrNaN(raw.KappaUnweighted),
		KappaWeighted:      nilOrNaN(raw.KappaWeighted),
		Interpretation:     raw.Interpretation,
		Recommendation:     raw.Recommendation,
		Pairs:              raw.Pairs,
	}
	return nil
}

func finiteOrNil(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

func nilOrNaN(v *float64) float64 {
	if v == nil {
		return math.NaN()
	}
	return *v
}

// ErrInsufficientData is returned when no item carries both scores.
var ErrInsufficientData = errors.New("insufficient data for agreement analysis")

type InsufficientDataError struct {
	Total   int
	Skipped int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("%s: none of %d items has both a human and an automated score (%d skipped as malformed)",
		ErrInsufficientData, e.Total, e.Skipped)
}

func (e *InsufficientDataError) Unwrap() error { return ErrInsufficientData }
