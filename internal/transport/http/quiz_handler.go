package http

import (
	"net/http"
	"strconv"

	"adaptive-quiz-service/internal/app"
	"adaptive-quiz-service/internal/auth"
	"adaptive-quiz-service/internal/domain"
	"github.com/go-chi/chi/v5"
)

// QuizHandler serves the REST endpoints for adaptive quizzes and history.
type QuizHandler struct {
	service          *app.QuizService
	defaultQuestions int
}

func NewQuizHandler(service *app.QuizService, defaultQuestions int) *QuizHandler {
	return &QuizHandler{service: service, defaultQuestions: defaultQuestions}
}

type startRequest struct {
	Subject       string `json:"subject"`
	QuestionCount *int   `json:"questionCount"`
}

type answerRequest struct {
	SessionID      string `json:"sessionId"`
	QuestionID     string `json:"questionId"`
	SelectedAnswer *int   `json:"selectedAnswer"`
	TimeSpent      int    `json:"timeSpent"`
}

type resultsPage struct {
	Results    []domain.QuizResult `json:"results"`
	Pagination pagination          `json:"pagination"`
}

type pagination struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

// Start handles POST /api/quizzes/adaptive/start.
func (h *QuizHandler) Start(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserID(r.Context())
	var req startRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}
	count := h.defaultQuestions
	if req.QuestionCount != nil {
		count = *req.QuestionCount
	}
	started, err := h.service.StartSession(r.Context(), userID, req.Subject, count)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, envelope{Success: true, Data: started})
}

// Answer handles POST /api/quizzes/adaptive/answer.
func (h *QuizHandler) Answer(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserID(r.Context())
	var req answerRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}
	if req.SelectedAnswer == nil {
		respondError(w, domain.Invalid("selectedAnswer", "selected answer is required"))
		return
	}
	outcome, err := h.service.SubmitAnswer(r.Context(), app.AnswerSubmission{
		SessionID:        req.SessionID,
		UserID:           userID,
		QuestionID:       req.QuestionID,
		SelectedAnswer:   *req.SelectedAnswer,
		TimeSpentSeconds: req.TimeSpent,
	})
	if err != nil {
		respondErrorData(w, err, outcome)
		return
	}
	completed := outcome.Completed
	respondJSON(w, http.StatusOK, envelope{Success: true, Completed: &completed, Data: outcome})
}

// Abandon handles DELETE /api/quizzes/adaptive/{sessionID}.
func (h *QuizHandler) Abandon(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserID(r.Context())
	if err := h.service.Abandon(r.Context(), chi.URLParam(r, "sessionID"), userID); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, envelope{Success: true, Message: "quiz session abandoned"})
}

// Results handles GET /api/quizzes/results?page=&limit=&subject=.
func (h *QuizHandler) Results(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserID(r.Context())
	q := r.URL.Query()
	page, err := intParam(q.Get("page"), "page")
	if err != nil {
		respondError(w, err)
		return
	}
	limit, err := intParam(q.Get("limit"), "limit")
	if err != nil {
		respondError(w, err)
		return
	}
	query := app.ResultQuery{Subject: q.Get("subject"), Page: page, Limit: limit}
	results, total, err := h.service.History(r.Context(), userID, query)
	if err != nil {
		respondError(w, err)
		return
	}
	query = app.NormalizeResultQuery(query)
	respondOK(w, resultsPage{
		Results: results,
		Pagination: pagination{
			Page:       query.Page,
			Limit:      query.Limit,
			Total:      total,
			TotalPages: (total + query.Limit - 1) / query.Limit,
		},
	})
}

// Result handles GET /api/quizzes/results/{resultID}.
func (h *QuizHandler) Result(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserID(r.Context())
	result, err := h.service.Result(r.Context(), userID, chi.URLParam(r, "resultID"))
	if err != nil {
		respondError(w, err)
		return
	}
	respondOK(w, result)
}

// Stats handles GET /api/quizzes/stats.
func (h *QuizHandler) Stats(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserID(r.Context())
	stats, err := h.service.Stats(r.Context(), userID)
	if err != nil {
		respondError(w, err)
		return
	}
	respondOK(w, stats)
}

// Subjects handles GET /api/quizzes/subjects.
func (h *QuizHandler) Subjects(w http.ResponseWriter, r *http.Request) {
	subjects, err := h.service.Subjects(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}
	respondOK(w, subjects)
}

func intParam(raw, name string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, domain.Invalid(name, "%s must be a positive integer", name)
	}
	return n, nil
}
