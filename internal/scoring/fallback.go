package scoring

import "github.com/hperssn/focusflow/internal/domain"

const (
	idlePenaltyAfterSec   = 30
	idlePenalty           = 20
	tabPenaltyAfter       = 5
	tabPenalty            = 15
	typingPenaltyBelow    = 10
	typingPenalty         = 10
	fallbackStartingScore = 100
)

// Fallback is the local heuristic used when the ML service is unavailable.
func Fallback(in domain.Metrics) Result {
	score := float64(fallbackStartingScore)
	if in.IdleTime > idlePenaltyAfterSec {
		score -= idlePenalty
	}
	if in.TabSwitches > tabPenaltyAfter {
		score -= tabPenalty
	}
	if in.TypingSpeed < typingPenaltyBelow {
		score -= typingPenalty
	}

	score = domain.ClampScore(score)
	return Result{
		Score:  score,
		Label:  domain.LabelFor(score),
		Source: SourceFallback,
	}
}
