package adaptive

import (
	"math"
	"sort"
	"time"

	"adaptive-quiz-service/internal/domain"
)

// RecentActivityLimit caps UserStats.RecentActivity.
const RecentActivityLimit = 10

// SubjectStats aggregates a user's results for one subject.
type SubjectStats struct {
	Subject        string  `json:"subject"`
	TotalQuizzes   int     `json:"totalQuizzes"`
	TotalQuestions int     `json:"totalQuestions"`
	CorrectAnswers int     `json:"correctAnswers"`
	AverageScore   float64 `json:"averageScore"`
}

// Activity is a compact entry of the recent results list.
type Activity struct {
	ResultID string    `json:"id"`
	Subject  string    `json:"subject"`
	Score    int       `json:"score"`
	Date     time.Time `json:"date"`
}

// UserStats summarises every result a user has produced.
type UserStats struct {
	TotalQuizzes    int                       `json:"totalQuizzes"`
	AverageScore    int                       `json:"averageScore"`
	TotalQuestions  int                       `json:"totalQuestions"`
	CorrectAnswers  int                       `json:"correctAnswers"`
	Accuracy        int                       `json:"accuracy"`
	SubjectStats    []SubjectStats            `json:"subjectStats"`
	DifficultyStats map[domain.Difficulty]int `json:"difficultyStats"`
	RecentActivity  []Activity                `json:"recentActivity"`
}

// Summarize computes UserStats. DifficultyStats counts results by the final
// difficulty reached; SubjectStats.AverageScore is per-subject accuracy.
func Summarize(results []domain.QuizResult) UserStats {
	stats := UserStats{
		SubjectStats: []SubjectStats{},
		DifficultyStats: map[domain.Difficulty]int{
			domain.DifficultyEasy:   0,
			domain.DifficultyMedium: 0,
			domain.DifficultyHard:   0,
		},
		RecentActivity: []Activity{},
	}
	if len(results) == 0 {
		return stats
	}

	var scoreSum int
	subjects := make(map[string]int)
	for _, r := range results {
		stats.TotalQuizzes++
		stats.TotalQuestions += r.TotalQuestions
		stats.CorrectAnswers += r.CorrectAnswers
		scoreSum += r.Score

		idx, ok := subjects[r.Subject]
		if !ok {
			idx = len(stats.SubjectStats)
			subjects[r.Subject] = idx
			stats.SubjectStats = append(stats.SubjectStats, SubjectStats{Subject: r.Subject})
		}
		s := &stats.SubjectStats[idx]
		s.TotalQuizzes++
		s.TotalQuestions += r.TotalQuestions
		s.CorrectAnswers += r.CorrectAnswers

		if d := r.AdaptiveData.FinalDifficulty; d.Valid() {
			stats.DifficultyStats[d]++
		}
	}

	stats.AverageScore = int(math.Round(float64(scoreSum) / float64(len(results))))
	if stats.TotalQuestions > 0 {
		stats.Accuracy = int(math.Round(float64(stats.CorrectAnswers) / float64(stats.TotalQuestions) * 100))
	}
	for i := range stats.SubjectStats {
		s := &stats.SubjectStats[i]
		if s.TotalQuestions > 0 {
			s.AverageScore = float64(s.CorrectAnswers) / float64(s.TotalQuestions) * 100
		}
	}

	recent := append([]domain.QuizResult(nil), results...)
	sort.SliceStable(recent, func(i, j int) bool {
		return recent[i].EndTime.After(recent[j].EndTime)
	})
	if len(recent) > RecentActivityLimit {
		recent = recent[:RecentActivityLimit]
	}
	for _, r := range recent {
		stats.RecentActivity = append(stats.RecentActivity, Activity{
			ResultID: r.ID,
			Subject:  r.Subject,
			Score:    r.Score,
			Date:     r.EndTime,
		})
	}
	return stats
}
