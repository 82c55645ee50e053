package adaptive

import (
	"fmt"

	"adaptive-quiz-service/internal/domain"
)

const (
	strengthAccuracy = 80.0
	weaknessAccuracy = 50.0
)

type subjectTally struct {
	subject string
	correct int
	total   int
}

// GenerateFeedback groups answers by subject and turns per-subject accuracy
// and the final difficulty into strengths, weaknesses and recommendations.
// Subjects are reported in the order they were first answered.
func GenerateFeedback(answers []domain.AnswerRecord, finalDifficulty domain.Difficulty) domain.Feedback {
	var tallies []*subjectTally
	bySubject := make(map[string]*subjectTally)
	for _, a := range answers {
		t, ok := bySubject[a.Subject]
		if !ok {
			t = &subjectTally{subject: a.Subject}
			bySubject[a.Subject] = t
			tallies = append(tallies, t)
		}
		t.total++
		if a.IsCorrect {
			t.correct++
		}
	}

	fb := domain.Feedback{
		Strengths:       []string{},
		Weaknesses:      []string{},
		Recommendations: []string{},
	}
	for _, t := range tallies {
		accuracy := float64(t.correct) / float64(t.total) * 100
		switch {
		case accuracy >= strengthAccuracy:
			fb.Strengths = append(fb.Strengths, fmt.Sprintf("Strong performance in %s (%.1f%% accuracy)", t.subject, accuracy))
		case accuracy < weaknessAccuracy:
			fb.Weaknesses = append(fb.Weaknesses, fmt.Sprintf("Needs improvement in %s (%.1f%% accuracy)", t.subject, accuracy))
			fb.Recommendations = append(fb.Recommendations, fmt.Sprintf("Focus on studying %s fundamentals", t.subject))
		}
	}

	switch finalDifficulty {
	case domain.DifficultyHard:
		fb.Recommendations = append(fb.Recommendations, "Excellent! You're ready for advanced topics")
	case domain.DifficultyEasy:
		fb.Recommendations = append(fb.Recommendations, "Review basic concepts and practice more questions")
	}
	return fb
}
