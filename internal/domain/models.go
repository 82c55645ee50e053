package domain

import (
	"math"
	"strings"
	"time"
)

// Difficulty is one of the totally ordered question levels.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// Difficulties lists the levels from lowest to highest.
var Difficulties = []Difficulty{DifficultyEasy, DifficultyMedium, DifficultyHard}

// StartingDifficulty is where every adaptive session begins.
const StartingDifficulty = DifficultyMedium

// AnySubject matches questions of every subject.
const AnySubject = "all"

// OptionCount is the number of answer options every question carries.
const OptionCount = 4

// Valid reports whether d is a known level.
func (d Difficulty) Valid() bool {
	return d.Index() >= 0
}

// Index returns the position of d in Difficulties, or -1.
func (d Difficulty) Index() int {
	for i, level := range Difficulties {
		if level == d {
			return i
		}
	}
	return -1
}

// Question is a multiple-choice question from the question bank.
type Question struct {
	ID           string     `json:"id" yaml:"id" bson:"_id"`
	Text         string     `json:"question" yaml:"question" bson:"question"`
	Options      []string   `json:"options" yaml:"options" bson:"options"`
	CorrectIndex int        `json:"correctAnswer" yaml:"correctAnswer" bson:"correct_answer"`
	Subject      string     `json:"subject" yaml:"subject" bson:"subject"`
	Topic        string     `json:"topic,omitempty" yaml:"topic" bson:"topic"`
	Difficulty   Difficulty `json:"difficulty" yaml:"difficulty" bson:"difficulty"`
	Explanation  string     `json:"explanation,omitempty" yaml:"explanation" bson:"explanation"`
	Tags         []string   `json:"tags,omitempty" yaml:"tags" bson:"tags"`
	IsActive     bool       `json:"isActive" yaml:"isActive" bson:"is_active"`
	UsageCount   int        `json:"usageCount" yaml:"-" bson:"usage_count"`
	CorrectRate  int        `json:"correctRate" yaml:"-" bson:"correct_rate"` // percent, 0-100
	AverageTime  int        `json:"averageTime" yaml:"-" bson:"average_time"` // seconds
	LastUsed     time.Time  `json:"lastUsed" yaml:"-" bson:"last_used"`
}

// Validate checks the structural rules a stored question must satisfy.
func (q Question) Validate() error {
	if strings.TrimSpace(q.Text) == "" {
		return &ValidationError{Field: "question", Message: "question text is required"}
	}
	if len(q.Options) != OptionCount {
		return &ValidationError{Field: "options", Message: "exactly 4 options are required"}
	}
	for _, opt := range q.Options {
		if strings.TrimSpace(opt) == "" {
			return &ValidationError{Field: "options", Message: "options cannot be empty"}
		}
	}
	if q.CorrectIndex < 0 || q.CorrectIndex >= OptionCount {
		return &ValidationError{Field: "correctAnswer", Message: "correct answer index must be between 0 and 3"}
	}
	if strings.TrimSpace(q.Subject) == "" {
		return &ValidationError{Field: "subject", Message: "subject is required"}
	}
	if !q.Difficulty.Valid() {
		return &ValidationError{Field: "difficulty", Message: "difficulty must be easy, medium or hard"}
	}
	return nil
}

// ApplyUsage folds one answered attempt into the running statistics.
func (q *Question) ApplyUsage(isCorrect bool, timeSpentSeconds int, now time.Time) {
	q.UsageCount++
	n := float64(q.UsageCount)

	prevCorrect := math.Round(float64(q.CorrectRate) / 100 * (n - 1))
	if isCorrect {
		prevCorrect++
	}
	q.CorrectRate = int(math.Round(prevCorrect / n * 100))

	totalTime := float64(q.AverageTime) * (n - 1)
	q.AverageTime = int(math.Round((totalTime + float64(timeSpentSeconds)) / n))
	q.LastUsed = now
}

// View strips the answer key so the question can be shown to a quiz taker.
func (q Question) View() QuestionView {
	opts := make([]string, len(q.Options))
	copy(opts, q.Options)
	return QuestionView{
		ID:         q.ID,
		Text:       q.Text,
		Options:    opts,
		Subject:    q.Subject,
		Topic:      q.Topic,
		Difficulty: q.Difficulty,
	}
}

// QuestionView is the client-facing form of a question.
type QuestionView struct {
	ID         string     `json:"id"`
	Text       string     `json:"question"`
	Options    []string   `json:"options"`
	Subject    string     `json:"subject"`
	Topic      string     `json:"topic,omitempty"`
	Difficulty Difficulty `json:"difficulty"`
}

// AnswerRecord is one submitted answer. It is never modified after creation.
type AnswerRecord struct {
	QuestionID          string     `json:"questionId" bson:"question_id"`
	Subject             string     `json:"subject" bson:"subject"`
	Topic               string     `json:"topic,omitempty" bson:"topic"`
	SelectedAnswerIndex int        `json:"selectedAnswer" bson:"selected_answer"`
	CorrectAnswerIndex  int        `json:"correctAnswer" bson:"correct_answer"`
	IsCorrect           bool       `json:"isCorrect" bson:"is_correct"`
	TimeSpentSeconds    int        `json:"timeSpent" bson:"time_spent"`
	Difficulty          Difficulty `json:"difficulty" bson:"difficulty"`
}

// QuizSession is the state of one in-progress adaptive quiz.
type QuizSession struct {
	ID                    string         `json:"sessionId"`
	UserID                string         `json:"userId"`
	Subject               string         `json:"subject"`
	QuestionCount         int            `json:"questionCount"`
	CurrentQuestionNumber int            `json:"currentQuestion"`
	CurrentDifficulty     Difficulty     `json:"currentDifficulty"`
	ConsecutiveCorrect    int            `json:"consecutiveCorrect"`
	ConsecutiveWrong      int            `json:"consecutiveWrong"`
	UsedQuestionIDs       []string       `json:"usedQuestionIds"`
	Answers               []AnswerRecord `json:"answers"`
	StartTime             time.Time      `json:"startTime"`
}

// CurrentQuestionID is the id of the question most recently issued.
func (s QuizSession) CurrentQuestionID() string {
	if len(s.UsedQuestionIDs) == 0 {
		return ""
	}
	return s.UsedQuestionIDs[len(s.UsedQuestionIDs)-1]
}

// Answered reports whether questionID already has an answer in the session.
func (s QuizSession) Answered(questionID string) bool {
	for _, a := range s.Answers {
		if a.QuestionID == questionID {
			return true
		}
	}
	return false
}

// Clone returns a deep copy so stores never share slices with callers.
func (s QuizSession) Clone() QuizSession {
	out := s
	out.UsedQuestionIDs = append([]string(nil), s.UsedQuestionIDs...)
	out.Answers = append([]AnswerRecord(nil), s.Answers...)
	return out
}

// CompletionReason explains why a session reached its terminal state.
type CompletionReason string

const (
	// CompletionFinished means the requested number of questions was answered.
	CompletionFinished CompletionReason = "completed"
	// CompletionExhausted means no unused question matched the criteria.
	CompletionExhausted CompletionReason = "exhausted"
)

// Feedback is the synthesized performance summary of a finished quiz.
type Feedback struct {
	Strengths       []string `json:"strengths" bson:"strengths"`
	Weaknesses      []string `json:"weaknesses" bson:"weaknesses"`
	Recommendations []string `json:"recommendations" bson:"recommendations"`
}

// ProgressionStep records the level and outcome of one answered question.
type ProgressionStep struct {
	QuestionNumber int        `json:"questionNumber" bson:"question_number"`
	Difficulty     Difficulty `json:"difficulty" bson:"difficulty"`
	IsCorrect      bool       `json:"isCorrect" bson:"is_correct"`
}

// AdaptiveData describes how difficulty moved over the quiz.
type AdaptiveData struct {
	StartingDifficulty    Difficulty        `json:"startingDifficulty" bson:"starting_difficulty"`
	FinalDifficulty       Difficulty        `json:"finalDifficulty" bson:"final_difficulty"`
	DifficultyProgression []ProgressionStep `json:"difficultyProgression" bson:"difficulty_progression"`
}

// QuizResult is produced once per completed session.
type QuizResult struct {
	ID                 string           `json:"id" bson:"_id"`
	SessionID          string           `json:"sessionId" bson:"session_id"`
	UserID             string           `json:"userId" bson:"user_id"`
	Subject            string           `json:"subject" bson:"subject"`
	Score              int              `json:"score" bson:"score"`
	CorrectAnswers     int              `json:"correctAnswers" bson:"correct_answers"`
	TotalQuestions     int              `json:"totalQuestions" bson:"total_questions"`
	QuestionsRequested int              `json:"questionsRequested" bson:"questions_requested"`
	TimeSpentSeconds   int              `json:"timeSpent" bson:"time_spent"`
	Passed             bool             `json:"passed" bson:"passed"`
	CompletionReason   CompletionReason `json:"completionReason" bson:"completion_reason"`
	Answers            []AnswerRecord   `json:"questions" bson:"questions"`
	AdaptiveData       AdaptiveData     `json:"adaptiveData" bson:"adaptive_data"`
	Feedback           Feedback         `json:"feedback" bson:"feedback"`
	StartTime          time.Time        `json:"startTime" bson:"start_time"`
	EndTime            time.Time        `json:"endTime" bson:"end_time"`
}

// LastAnswerFeedback tells the caller how their latest answer fared.
type LastAnswerFeedback struct {
	IsCorrect     bool   `json:"isCorrect"`
	CorrectAnswer int    `json:"correctAnswer"`
	Explanation   string `json:"explanation,omitempty"`
}
