// Package adaptive holds the pure parts of the adaptive quiz engine: the
// difficulty state machine, weighted scoring, feedback synthesis and
// aggregate statistics over finished results.
package adaptive

import "adaptive-quiz-service/internal/domain"

// StreakThreshold is the run length that moves difficulty one level.
const StreakThreshold = 2

// NextDifficulty returns the level for the next question. The streak
// counters must already include the answer being processed.
func NextDifficulty(current domain.Difficulty, isCorrect bool, consecutiveCorrect, consecutiveWrong int) domain.Difficulty {
	idx := current.Index()
	if idx < 0 {
		return current
	}
	switch {
	case isCorrect && consecutiveCorrect >= StreakThreshold && idx < len(domain.Difficulties)-1:
		return domain.Difficulties[idx+1]
	case !isCorrect && consecutiveWrong >= StreakThreshold && idx > 0:
		return domain.Difficulties[idx-1]
	default:
		return current
	}
}

// UpdateStreaks applies one answer to the pair of streak counters. Exactly
// one of the returned values is non-zero.
func UpdateStreaks(isCorrect bool, consecutiveCorrect, consecutiveWrong int) (int, int) {
	if isCorrect {
		return consecutiveCorrect + 1, 0
	}
	return 0, consecutiveWrong + 1
}
