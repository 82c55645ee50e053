package adaptive

import (
	"math"

	"adaptive-quiz-service/internal/domain"
)

// PassingScore is the minimum weighted score that counts as a pass.
const PassingScore = 70

// Weights rewards harder questions more than easier ones.
var Weights = map[domain.Difficulty]float64{
	domain.DifficultyEasy:   1,
	domain.DifficultyMedium: 1.5,
	domain.DifficultyHard:   2,
}

// Score returns the difficulty-weighted percentage of correct answers,
// rounded to the nearest integer. No answers score 0.
func Score(answers []domain.AnswerRecord) int {
	var earned, possible float64
	for _, a := range answers {
		w := Weights[a.Difficulty]
		possible += w
		if a.IsCorrect {
			earned += w
		}
	}
	if possible == 0 {
		return 0
	}
	return int(math.Round(earned / possible * 100))
}

// CountCorrect returns how many answers were correct.
func CountCorrect(answers []domain.AnswerRecord) int {
	n := 0
	for _, a := range answers {
		if a.IsCorrect {
			n++
		}
	}
	return n
}
