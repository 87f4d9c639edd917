package services

import (
	"fmt"
	"strings"
)

// Publication thresholds. These are global policy, not per-manuscript settings.
const (
	MinGrammarScore    = 85
	MaxPlagiarismScore = 15
)

// ScoreReport is the outcome of evaluating one pair of quality metrics.
type ScoreReport struct {
	GrammarScore    int  `json:"grammar_score"`
	PlagiarismScore int  `json:"plagiarism_score"`
	GrammarPass     bool `json:"grammar_pass"`
	PlagiarismPass  bool `json:"plagiarism_pass"`
}

// Passed reports whether both metrics clear their threshold.
func (r ScoreReport) Passed() bool {
	return r.GrammarPass && r.PlagiarismPass
}

// Failures describes each failing metric, in a stable order.
func (r ScoreReport) Failures() []string {
	var out []string
	if !r.GrammarPass {
		out = append(out, fmt.Sprintf("grammar score %d%% is below the passing score of %d%%", r.GrammarScore, MinGrammarScore))
	}
	if !r.PlagiarismPass {
		out = append(out, fmt.Sprintf("plagiarism score %d%% exceeds the limit of %d%%", r.PlagiarismScore, MaxPlagiarismScore))
	}
	return out
}

// EvaluateScores applies the fixed thresholds. Both bounds are inclusive.
func EvaluateScores(grammar, plagiarism int) ScoreReport {
	return ScoreReport{
		GrammarScore:    grammar,
		PlagiarismScore: plagiarism,
		GrammarPass:     grammar >= MinGrammarScore,
		PlagiarismPass:  plagiarism <= MaxPlagiarismScore,
	}
}

// CheckScoreGate returns ErrScoreGateFailed when scores are missing or failing.
func CheckScoreGate(grammar, plagiarism *int) error {
	if grammar == nil || plagiarism == nil {
		return fmt.Errorf("%w: manuscript has not been scored", ErrScoreGateFailed)
	}
	report := EvaluateScores(*grammar, *plagiarism)
	if report.Passed() {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrScoreGateFailed, strings.Join(report.Failures(), "; "))
}
