package app

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"math"
	"strings"
	"time"

	"adaptive-quiz-service/internal/adaptive"
	"adaptive-quiz-service/internal/domain"
	"github.com/google/uuid"
)

const (
	// callsPerAnswer is the most collaborator calls one SubmitAnswer makes
	// while holding the session lock.
	callsPerAnswer = 7

	DefaultMinQuestions    = 5
	DefaultMaxQuestions    = 50
	DefaultQuestionCount   = 10
	DefaultCallTimeout     = 5 * time.Second
	DefaultLockTimeout     = 5 * time.Second
	maxSelectedAnswerIndex = domain.OptionCount - 1
)

// QuizService runs users through adaptive quizzes. It holds no session
// state itself; everything lives in the injected SessionStore.
type QuizService struct {
	sessions  SessionStore
	questions QuestionRepository
	results   ResultStore
	events    EventPublisher
	metrics   Metrics

	minQuestions int
	maxQuestions int
	passingScore int
	callTimeout  time.Duration
	lockTimeout  time.Duration
	now          func() time.Time
	newID        func() string
}

// Option customises a QuizService.
type Option func(*QuizService)

// WithQuestionLimits bounds the accepted question count.
func WithQuestionLimits(min, max int) Option {
	return func(s *QuizService) {
		if min > 0 && max >= min {
			s.minQuestions, s.maxQuestions = min, max
		}
	}
}

// WithPassingScore sets the score a result needs to count as passed.
func WithPassingScore(score int) Option {
	return func(s *QuizService) {
		if score > 0 && score <= 100 {
			s.passingScore = score
		}
	}
}

// WithCallTimeout bounds every call to a collaborator.
func WithCallTimeout(d time.Duration) Option {
	return func(s *QuizService) {
		if d > 0 {
			s.callTimeout = d
		}
	}
}

// WithLockTimeout bounds how long a request waits for its session.
func WithLockTimeout(d time.Duration) Option {
	return func(s *QuizService) {
		if d > 0 {
			s.lockTimeout = d
		}
	}
}

// WithEvents publishes completion events.
func WithEvents(p EventPublisher) Option {
	return func(s *QuizService) {
		if p != nil {
			s.events = p
		}
	}
}

// WithMetrics records engine metrics.
func WithMetrics(m Metrics) Option {
	return func(s *QuizService) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithClock is used by tests for deterministic timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *QuizService) { s.now = now }
}

// WithIDGenerator is used by tests for deterministic ids.
func WithIDGenerator(newID func() string) Option {
	return func(s *QuizService) { s.newID = newID }
}

func NewQuizService(sessions SessionStore, questions QuestionRepository, results ResultStore, opts ...Option) *QuizService {
	s := &QuizService{
		sessions:     sessions,
		questions:    questions,
		results:      results,
		events:       nopEvents{},
		metrics:      nopMetrics{},
		minQuestions: DefaultMinQuestions,
		maxQuestions: DefaultMaxQuestions,
		passingScore: adaptive.PassingScore,
		callTimeout:  DefaultCallTimeout,
		lockTimeout:  DefaultLockTimeout,
		now:          time.Now,
		newID:        uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// MaxLockHold bounds how long SubmitAnswer can hold a session lock when
// every collaborator call uses its full callTimeout. Distributed lock leases
// must outlast it.
func MaxLockHold(callTimeout time.Duration) time.Duration {
	if callTimeout <= 0 {
		callTimeout = DefaultCallTimeout
	}
	return callsPerAnswer*callTimeout + time.Second
}

// StartedQuiz is returned by StartSession.
type StartedQuiz struct {
	SessionID         string              `json:"sessionId"`
	CurrentQuestion   int                 `json:"currentQuestion"`
	TotalQuestions    int                 `json:"totalQuestions"`
	CurrentDifficulty domain.Difficulty   `json:"currentDifficulty"`
	Question          domain.QuestionView `json:"question"`
}

// AnswerSubmission is one answer sent by a quiz taker.
type AnswerSubmission struct {
	SessionID        string
	UserID           string
	QuestionID       string
	SelectedAnswer   int
	TimeSpentSeconds int
}

// AnswerOutcome reports either the next question or the final result.
type AnswerOutcome struct {
	Completed         bool                      `json:"completed"`
	CompletionReason  domain.CompletionReason   `json:"completionReason,omitempty"`
	Result            *domain.QuizResult        `json:"quizResult,omitempty"`
	NextQuestion      *domain.QuestionView      `json:"nextQuestion,omitempty"`
	CurrentQuestion   int                       `json:"currentQuestion,omitempty"`
	TotalQuestions    int                       `json:"totalQuestions"`
	CurrentDifficulty domain.Difficulty         `json:"currentDifficulty,omitempty"`
	LastAnswer        domain.LastAnswerFeedback `json:"lastAnswer"`
}

// StartSession opens an adaptive quiz for userID and returns its first question.
func (s *QuizService) StartSession(ctx context.Context, userID, subject string, questionCount int) (StartedQuiz, error) {
	if strings.TrimSpace(userID) == "" {
		return StartedQuiz{}, domain.Invalid("userId", "user id is required")
	}
	if questionCount < s.minQuestions || questionCount > s.maxQuestions {
		return StartedQuiz{}, domain.Invalid("questionCount", "question count must be between %d and %d", s.minQuestions, s.maxQuestions)
	}
	subject = strings.TrimSpace(subject)
	if subject == "" {
		subject = domain.AnySubject
	}

	first, ok, err := s.nextCandidate(ctx, domain.StartingDifficulty, subject, nil)
	if err != nil {
		return StartedQuiz{}, err
	}
	if !ok {
		return StartedQuiz{}, domain.ErrNoQuestionsAvailable
	}

	session := domain.QuizSession{
		ID:                    s.newID(),
		UserID:                userID,
		Subject:               subject,
		QuestionCount:         questionCount,
		CurrentQuestionNumber: 1,
		CurrentDifficulty:     domain.StartingDifficulty,
		UsedQuestionIDs:       []string{first.ID},
		Answers:               []domain.AnswerRecord{},
		StartTime:             s.now(),
	}
	callCtx, cancel := s.call(ctx)
	defer cancel()
	if err := s.sessions.Create(callCtx, session); err != nil {
		return StartedQuiz{}, domain.StoreFailure("create session", err)
	}
	s.metrics.SessionStarted(subject)

	return StartedQuiz{
		SessionID:         session.ID,
		CurrentQuestion:   session.CurrentQuestionNumber,
		TotalQuestions:    questionCount,
		CurrentDifficulty: session.CurrentDifficulty,
		Question:          first.View(),
	}, nil
}

// SubmitAnswer records an answer, adapts the difficulty and either issues
// the next question or finalizes the quiz. Concurrent submissions for the
// same session run one after the other.
func (s *QuizService) SubmitAnswer(ctx context.Context, sub AnswerSubmission) (AnswerOutcome, error) {
	if err := validateSubmission(sub); err != nil {
		return AnswerOutcome{}, err
	}

	unlock, err := s.lock(ctx, sub.SessionID)
	if err != nil {
		return AnswerOutcome{}, err
	}
	defer unlock()

	session, err := s.ownedSession(ctx, sub.SessionID, sub.UserID)
	if err != nil {
		return AnswerOutcome{}, err
	}
	if session.Answered(sub.QuestionID) {
		return AnswerOutcome{}, domain.ErrQuestionAlreadyAnswered
	}
	if sub.QuestionID != session.CurrentQuestionID() {
		return AnswerOutcome{}, domain.ErrUnexpectedQuestion
	}

	callCtx, cancel := s.call(ctx)
	question, err := s.questions.FindQuestion(callCtx, sub.QuestionID)
	cancel()
	if err != nil {
		return AnswerOutcome{}, domain.StoreFailure("find question", err)
	}

	isCorrect := sub.SelectedAnswer == question.CorrectIndex
	session.Answers = append(session.Answers, domain.AnswerRecord{
		QuestionID:          question.ID,
		Subject:             question.Subject,
		Topic:               question.Topic,
		SelectedAnswerIndex: sub.SelectedAnswer,
		CorrectAnswerIndex:  question.CorrectIndex,
		IsCorrect:           isCorrect,
		TimeSpentSeconds:    sub.TimeSpentSeconds,
		Difficulty:          question.Difficulty,
	})
	session.ConsecutiveCorrect, session.ConsecutiveWrong = adaptive.UpdateStreaks(isCorrect, session.ConsecutiveCorrect, session.ConsecutiveWrong)

	outcome := AnswerOutcome{
		TotalQuestions: session.QuestionCount,
		LastAnswer: domain.LastAnswerFeedback{
			IsCorrect:     isCorrect,
			CorrectAnswer: question.CorrectIndex,
			Explanation:   question.Explanation,
		},
	}

	// Usage is only counted once the answer is durably part of the session
	// or its result, so a retried submission is not counted twice.
	if session.CurrentQuestionNumber >= session.QuestionCount {
		return s.finishAnswer(ctx, session, domain.CompletionFinished, outcome, sub)
	}

	next := adaptive.NextDifficulty(session.CurrentDifficulty, isCorrect, session.ConsecutiveCorrect, session.ConsecutiveWrong)
	if next != session.CurrentDifficulty {
		// A level change starts a fresh streak at the new level.
		session.ConsecutiveCorrect, session.ConsecutiveWrong = 0, 0
	}
	session.CurrentDifficulty = next

	candidate, ok, err := s.nextCandidate(ctx, next, session.Subject, session.UsedQuestionIDs)
	if err != nil {
		return AnswerOutcome{}, err
	}
	if !ok {
		return s.finishAnswer(ctx, session, domain.CompletionExhausted, outcome, sub)
	}

	session.UsedQuestionIDs = append(session.UsedQuestionIDs, candidate.ID)
	session.CurrentQuestionNumber++

	callCtx, cancel = s.call(ctx)
	defer cancel()
	if err := s.sessions.Replace(callCtx, session); err != nil {
		return AnswerOutcome{}, domain.StoreFailure("update session", err)
	}
	s.answerRecorded(ctx, question.Difficulty, sub, isCorrect)

	view := candidate.View()
	outcome.NextQuestion = &view
	outcome.CurrentQuestion = session.CurrentQuestionNumber
	outcome.CurrentDifficulty = session.CurrentDifficulty
	return outcome, nil
}

// Abandon drops an active session owned by userID.
func (s *QuizService) Abandon(ctx context.Context, sessionID, userID string) error {
	if sessionID == "" {
		return domain.Invalid("sessionId", "session id is required")
	}
	unlock, err := s.lock(ctx, sessionID)
	if err != nil {
		return err
	}
	defer unlock()

	if _, err := s.ownedSession(ctx, sessionID, userID); err != nil {
		return err
	}
	callCtx, cancel := s.call(ctx)
	defer cancel()
	return domain.StoreFailure("delete session", s.sessions.Delete(callCtx, sessionID))
}

// finishAnswer finalizes the session and counts the last answer only when
// nothing is left for a retry to redo.
func (s *QuizService) finishAnswer(ctx context.Context, session domain.QuizSession, reason domain.CompletionReason, outcome AnswerOutcome, sub AnswerSubmission) (AnswerOutcome, error) {
	outcome, err := s.finish(ctx, session, reason, outcome)
	if err != nil {
		return outcome, err
	}
	last := session.Answers[len(session.Answers)-1]
	s.answerRecorded(ctx, last.Difficulty, sub, last.IsCorrect)
	return outcome, nil
}

// finish turns the session into a QuizResult, persists it and removes the
// session. The session is removed even when saving fails; the StoreError
// then carries the computed result.
func (s *QuizService) finish(ctx context.Context, session domain.QuizSession, reason domain.CompletionReason, outcome AnswerOutcome) (AnswerOutcome, error) {
	result := s.buildResult(session, reason)

	callCtx, cancel := s.call(ctx)
	saveErr := s.results.Save(callCtx, result)
	cancel()
	if errors.Is(saveErr, domain.ErrResultExists) {
		// An earlier attempt saved the result but could not drop the session.
		log.Printf("result for session %s already saved, removing session", session.ID)
		saveErr = nil
	}

	callCtx, cancel = s.call(ctx)
	deleteErr := s.sessions.Delete(callCtx, session.ID)
	cancel()

	s.metrics.SessionFinished(reason, result.Score)

	outcome.Completed = true
	outcome.CompletionReason = reason
	outcome.CurrentDifficulty = session.CurrentDifficulty
	outcome.Result = &result

	if err := errors.Join(saveErr, deleteErr); err != nil {
		payload, _ := json.Marshal(result)
		log.Printf("finalize session %s failed: %v; result=%s", session.ID, err, payload)
		op := "save result"
		if saveErr == nil {
			op = "delete session"
		}
		return outcome, &domain.StoreError{Op: op, Err: err, Result: &result}
	}

	callCtx, cancel = s.call(ctx)
	defer cancel()
	if err := s.events.QuizCompleted(callCtx, result); err != nil {
		log.Printf("publish quiz completion %s: %v", result.ID, err)
	}
	return outcome, nil
}

func (s *QuizService) buildResult(session domain.QuizSession, reason domain.CompletionReason) domain.QuizResult {
	end := s.now()
	progression := make([]domain.ProgressionStep, 0, len(session.Answers))
	for i, a := range session.Answers {
		progression = append(progression, domain.ProgressionStep{
			QuestionNumber: i + 1,
			Difficulty:     a.Difficulty,
			IsCorrect:      a.IsCorrect,
		})
	}
	score := adaptive.Score(session.Answers)
	return domain.QuizResult{
		ID:                 s.newID(),
		SessionID:          session.ID,
		UserID:             session.UserID,
		Subject:            session.Subject,
		Score:              score,
		CorrectAnswers:     adaptive.CountCorrect(session.Answers),
		TotalQuestions:     len(session.Answers),
		QuestionsRequested: session.QuestionCount,
		TimeSpentSeconds:   int(math.Round(end.Sub(session.StartTime).Seconds())),
		Passed:             score >= s.passingScore,
		CompletionReason:   reason,
		Answers:            append([]domain.AnswerRecord(nil), session.Answers...),
		AdaptiveData: domain.AdaptiveData{
			StartingDifficulty:    domain.StartingDifficulty,
			FinalDifficulty:       session.CurrentDifficulty,
			DifficultyProgression: progression,
		},
		Feedback:  adaptive.GenerateFeedback(session.Answers, session.CurrentDifficulty),
		StartTime: session.StartTime,
		EndTime:   end,
	}
}

// nextCandidate asks the repository for one unused question.
func (s *QuizService) nextCandidate(ctx context.Context, difficulty domain.Difficulty, subject string, exclude []string) (domain.Question, bool, error) {
	callCtx, cancel := s.call(ctx)
	defer cancel()
	candidates, err := s.questions.FetchAdaptive(callCtx, difficulty, subject, exclude, 1)
	if err != nil {
		return domain.Question{}, false, domain.StoreFailure("fetch questions", err)
	}
	if len(candidates) == 0 {
		return domain.Question{}, false, nil
	}
	return candidates[0], true, nil
}

// answerRecorded updates question statistics and metrics; failures never
// fail the answer.
func (s *QuizService) answerRecorded(ctx context.Context, difficulty domain.Difficulty, sub AnswerSubmission, isCorrect bool) {
	s.metrics.AnswerRecorded(difficulty, isCorrect)
	callCtx, cancel := s.call(ctx)
	defer cancel()
	if err := s.questions.RecordUsage(callCtx, sub.QuestionID, isCorrect, sub.TimeSpentSeconds); err != nil {
		log.Printf("record usage for question %s: %v", sub.QuestionID, err)
	}
}

func (s *QuizService) lock(ctx context.Context, sessionID string) (func(), error) {
	lockCtx, cancel := context.WithTimeout(ctx, s.lockTimeout)
	defer cancel()
	unlock, err := s.sessions.Lock(lockCtx, sessionID)
	if err != nil {
		return nil, domain.StoreFailure("lock session", err)
	}
	return unlock, nil
}

// ownedSession loads a session and hides it from anyone but its owner.
func (s *QuizService) ownedSession(ctx context.Context, sessionID, userID string) (domain.QuizSession, error) {
	callCtx, cancel := s.call(ctx)
	defer cancel()
	session, err := s.sessions.Get(callCtx, sessionID)
	if err != nil {
		return domain.QuizSession{}, domain.StoreFailure("get session", err)
	}
	if session.UserID != userID {
		return domain.QuizSession{}, domain.ErrSessionNotFound
	}
	return session, nil
}

func (s *QuizService) call(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.callTimeout)
}

func validateSubmission(sub AnswerSubmission) error {
	switch {
	case strings.TrimSpace(sub.SessionID) == "":
		return domain.Invalid("sessionId", "session id is required")
	case strings.TrimSpace(sub.UserID) == "":
		return domain.Invalid("userId", "user id is required")
	case strings.TrimSpace(sub.QuestionID) == "":
		return domain.Invalid("questionId", "question id is required")
	case sub.SelectedAnswer < 0 || sub.SelectedAnswer > maxSelectedAnswerIndex:
		return domain.Invalid("selectedAnswer", "selected answer must be between 0 and %d", maxSelectedAnswerIndex)
	case sub.TimeSpentSeconds < 0:
		return domain.Invalid("timeSpent", "time spent cannot be negative")
	}
	return nil
}
