package cli

import (
	"fmt"
	"os"

	"adaptive-quiz-service/internal/domain"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// questionFile is the YAML layout accepted by seed and --questions.
type questionFile struct {
	Questions []domain.Question `yaml:"questions"`
}

type activeFlags struct {
	Questions []struct {
		IsActive *bool `yaml:"isActive"`
	} `yaml:"questions"`
}

// loadQuestionFile parses and validates a question bank file. Questions
// are active unless they say otherwise; missing ids are generated.
func loadQuestionFile(path string) ([]domain.Question, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return parseQuestions(data)
}

func parseQuestions(data []byte) ([]domain.Question, error) {
	var file questionFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse questions: %w", err)
	}
	var flags activeFlags
	if err := yaml.Unmarshal(data, &flags); err != nil {
		return nil, fmt.Errorf("parse questions: %w", err)
	}

	for i := range file.Questions {
		q := &file.Questions[i]
		q.IsActive = flags.Questions[i].IsActive == nil || *flags.Questions[i].IsActive
		if q.ID == "" {
			q.ID = uuid.NewString()
		}
		if err := q.Validate(); err != nil {
			return nil, fmt.Errorf("question %d (%s): %w", i+1, q.ID, err)
		}
	}
	return file.Questions, nil
}

// sampleQuestions backs the in-memory bank when no file or database is configured.
func sampleQuestions() []domain.Question {
	mk := func(id, subject string, d domain.Difficulty, text string, correct int, options ...string) domain.Question {
		return domain.Question{
			ID:           id,
			Text:         text,
			Options:      options,
			CorrectIndex: correct,
			Subject:      subject,
			Difficulty:   d,
			IsActive:     true,
		}
	}
	return []domain.Question{
		mk("math-e1", "Mathematics", domain.DifficultyEasy, "What is 2 + 2?", 1, "3", "4", "5", "22"),
		mk("math-e2", "Mathematics", domain.DifficultyEasy, "What is 10 / 2?", 2, "2", "4", "5", "8"),
		mk("math-m1", "Mathematics", domain.DifficultyMedium, "What is 12 * 12?", 0, "144", "124", "132", "156"),
		mk("math-m2", "Mathematics", domain.DifficultyMedium, "What is the square root of 81?", 3, "7", "8", "18", "9"),
		mk("math-h1", "Mathematics", domain.DifficultyHard, "What is the derivative of x^3?", 1, "x^2", "3x^2", "3x", "x^3/3"),
		mk("math-h2", "Mathematics", domain.DifficultyHard, "What is the sum of interior angles of a hexagon?", 2, "540", "900", "720", "360"),
		mk("phys-e1", "Physics", domain.DifficultyEasy, "What is the SI unit of force?", 0, "Newton", "Joule", "Watt", "Pascal"),
		mk("phys-m1", "Physics", domain.DifficultyMedium, "What is the acceleration due to gravity on Earth (m/s^2)?", 1, "8.9", "9.8", "10.8", "6.7"),
		mk("phys-h1", "Physics", domain.DifficultyHard, "Which particle mediates the electromagnetic force?", 3, "Gluon", "W boson", "Graviton", "Photon"),
	}
}
