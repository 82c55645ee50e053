package adaptive

import (
	"testing"
	"time"

	"adaptive-quiz-service/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextDifficulty(t *testing.T) {
	tests := []struct {
		name    string
		current domain.Difficulty
		correct bool
		cc, cw  int
		want    domain.Difficulty
	}{
		{"single correct stays", domain.DifficultyMedium, true, 1, 0, domain.DifficultyMedium},
		{"two correct promote", domain.DifficultyMedium, true, 2, 0, domain.DifficultyHard},
		{"three correct promote", domain.DifficultyEasy, true, 3, 0, domain.DifficultyMedium},
		{"hard is the ceiling", domain.DifficultyHard, true, 5, 0, domain.DifficultyHard},
		{"single wrong stays", domain.DifficultyMedium, false, 0, 1, domain.DifficultyMedium},
		{"two wrong demote", domain.DifficultyMedium, false, 0, 2, domain.DifficultyEasy},
		{"easy is the floor", domain.DifficultyEasy, false, 0, 4, domain.DifficultyEasy},
		{"correct ignores wrong streak", domain.DifficultyMedium, true, 1, 3, domain.DifficultyMedium},
		{"unknown level unchanged", domain.Difficulty("expert"), true, 3, 0, domain.Difficulty("expert")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NextDifficulty(tt.current, tt.correct, tt.cc, tt.cw))
		})
	}
}

func TestUpdateStreaksResetsOpposite(t *testing.T) {
	cc, cw := UpdateStreaks(true, 1, 0)
	assert.Equal(t, 2, cc)
	assert.Equal(t, 0, cw)

	cc, cw = UpdateStreaks(false, cc, cw)
	assert.Equal(t, 0, cc)
	assert.Equal(t, 1, cw)
}

func answer(subject string, d domain.Difficulty, correct bool) domain.AnswerRecord {
	return domain.AnswerRecord{Subject: subject, Difficulty: d, IsCorrect: correct}
}

func TestScoreWeightsByDifficulty(t *testing.T) {
	answers := []domain.AnswerRecord{
		answer("Math", domain.DifficultyEasy, true),
		answer("Math", domain.DifficultyEasy, true),
		answer("Math", domain.DifficultyMedium, true),
		answer("Math", domain.DifficultyMedium, false),
		answer("Math", domain.DifficultyHard, true),
	}
	// 5.5 / 7 = 78.57
	assert.Equal(t, 79, Score(answers))
	assert.Equal(t, 4, CountCorrect(answers))
}

func TestScoreEdgeCases(t *testing.T) {
	assert.Equal(t, 0, Score(nil))
	assert.Equal(t, 0, Score([]domain.AnswerRecord{answer("Math", domain.DifficultyHard, false)}))
	assert.Equal(t, 100, Score([]domain.AnswerRecord{answer("Math", domain.DifficultyEasy, true)}))
	// easy wrong (1) + hard right (2): 2/3
	assert.Equal(t, 67, Score([]domain.AnswerRecord{
		answer("Math", domain.DifficultyEasy, false),
		answer("Math", domain.DifficultyHard, true),
	}))
}

func repeat(subject string, correct, total int) []domain.AnswerRecord {
	out := make([]domain.AnswerRecord, 0, total)
	for i := 0; i < total; i++ {
		out = append(out, answer(subject, domain.DifficultyMedium, i < correct))
	}
	return out
}

func TestGenerateFeedbackThresholds(t *testing.T) {
	var answers []domain.AnswerRecord
	answers = append(answers, repeat("Physics", 4, 5)...)
	answers = append(answers, repeat("History", 1, 3)...)
	answers = append(answers, repeat("Biology", 3, 5)...)

	fb := GenerateFeedback(answers, domain.DifficultyMedium)
	assert.Equal(t, []string{"Strong performance in Physics (80.0% accuracy)"}, fb.Strengths)
	assert.Equal(t, []string{"Needs improvement in History (33.3% accuracy)"}, fb.Weaknesses)
	assert.Equal(t, []string{"Focus on studying History fundamentals"}, fb.Recommendations)
}

func TestGenerateFeedbackFinalDifficulty(t *testing.T) {
	fb := GenerateFeedback(nil, domain.DifficultyHard)
	assert.Empty(t, fb.Strengths)
	assert.Empty(t, fb.Weaknesses)
	assert.Equal(t, []string{"Excellent! You're ready for advanced topics"}, fb.Recommendations)

	fb = GenerateFeedback(repeat("Chemistry", 0, 2), domain.DifficultyEasy)
	require.Len(t, fb.Recommendations, 2)
	assert.Equal(t, "Focus on studying Chemistry fundamentals", fb.Recommendations[0])
	assert.Equal(t, "Review basic concepts and practice more questions", fb.Recommendations[1])

	fb = GenerateFeedback(repeat("Chemistry", 1, 1), domain.DifficultyMedium)
	assert.NotNil(t, fb.Recommendations)
	assert.Empty(t, fb.Recommendations)
}

func TestSummarize(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	results := []domain.QuizResult{
		{ID: "r1", Subject: "Math", Score: 80, TotalQuestions: 10, CorrectAnswers: 8, EndTime: base,
			AdaptiveData: domain.AdaptiveData{FinalDifficulty: domain.DifficultyHard}},
		{ID: "r2", Subject: "History", Score: 40, TotalQuestions: 5, CorrectAnswers: 2, EndTime: base.Add(time.Hour),
			AdaptiveData: domain.AdaptiveData{FinalDifficulty: domain.DifficultyEasy}},
		{ID: "r3", Subject: "Math", Score: 65, TotalQuestions: 5, CorrectAnswers: 3, EndTime: base.Add(2 * time.Hour),
			AdaptiveData: domain.AdaptiveData{FinalDifficulty: domain.DifficultyHard}},
	}

	stats := Summarize(results)
	assert.Equal(t, 3, stats.TotalQuizzes)
	assert.Equal(t, 62, stats.AverageScore)
	assert.Equal(t, 20, stats.TotalQuestions)
	assert.Equal(t, 13, stats.CorrectAnswers)
	assert.Equal(t, 65, stats.Accuracy)
	assert.Equal(t, 2, stats.DifficultyStats[domain.DifficultyHard])
	assert.Equal(t, 1, stats.DifficultyStats[domain.DifficultyEasy])
	assert.Equal(t, 0, stats.DifficultyStats[domain.DifficultyMedium])

	require.Len(t, stats.SubjectStats, 2)
	assert.Equal(t, "Math", stats.SubjectStats[0].Subject)
	assert.Equal(t, 2, stats.SubjectStats[0].TotalQuizzes)
	assert.InDelta(t, 73.33, stats.SubjectStats[0].AverageScore, 0.01)

	require.Len(t, stats.RecentActivity, 3)
	assert.Equal(t, "r3", stats.RecentActivity[0].ResultID)
	assert.Equal(t, "r1", stats.RecentActivity[2].ResultID)
}

func TestSummarizeEmpty(t *testing.T) {
	stats := Summarize(nil)
	assert.Zero(t, stats.TotalQuizzes)
	assert.Zero(t, stats.Accuracy)
	assert.Empty(t, stats.SubjectStats)
	assert.Empty(t, stats.RecentActivity)
	assert.Len(t, stats.DifficultyStats, 3)
}
