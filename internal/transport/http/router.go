package http

import (
	"net/http"
	"time"

	"adaptive-quiz-service/internal/app"
	"adaptive-quiz-service/internal/auth"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// RouterConfig collects what the HTTP surface is built from.
type RouterConfig struct {
	Service          *app.QuizService
	Auth             *auth.Service
	Metrics          http.Handler
	DefaultQuestions int
	// DevTokens mounts POST /auth/token, which signs a token for any user id.
	DevTokens      bool
	AllowedOrigins []string
	RequestTimeout time.Duration
}

// NewRouter mounts the REST API, the websocket endpoint and the health checks.
func NewRouter(cfg RouterConfig) http.Handler {
	if cfg.DefaultQuestions <= 0 {
		cfg.DefaultQuestions = app.DefaultQuestionCount
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}
	api := NewQuizHandler(cfg.Service, cfg.DefaultQuestions)
	ws := NewWSHandler(cfg.Service, cfg.DefaultQuestions)

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	if len(cfg.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: cfg.AllowedOrigins,
			AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Authorization", "Content-Type"},
			MaxAge:         300,
		}))
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	if cfg.Metrics != nil {
		r.Handle("/metrics", cfg.Metrics)
	}
	if cfg.DevTokens {
		r.Post("/auth/token", devTokenHandler(cfg.Auth))
	}

	authn := cfg.Auth.Middleware(func(w http.ResponseWriter, _ *http.Request, err error) {
		respondError(w, err)
	})

	// websocket connections live past any request timeout
	r.With(authn).Get("/ws", ws.ServeWS)

	r.Route("/api/quizzes", func(qr chi.Router) {
		qr.Use(authn, middleware.Timeout(cfg.RequestTimeout))
		qr.Post("/adaptive/start", api.Start)
		qr.Post("/adaptive/answer", api.Answer)
		qr.Delete("/adaptive/{sessionID}", api.Abandon)
		qr.Get("/results", api.Results)
		qr.Get("/results/{resultID}", api.Result)
		qr.Get("/stats", api.Stats)
		qr.Get("/subjects", api.Subjects)
	})
	return r
}

func devTokenHandler(a *auth.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			UserID string `json:"userId"`
		}
		if err := decodeJSON(r, &req); err != nil {
			respondError(w, err)
			return
		}
		tok, err := a.Issue(req.UserID)
		if err != nil {
			respondError(w, err)
			return
		}
		respondOK(w, map[string]string{"accessToken": tok})
	}
}
