package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"adaptive-quiz-service/internal/app"
	"adaptive-quiz-service/internal/auth"
	"adaptive-quiz-service/internal/domain"
	"adaptive-quiz-service/internal/infra/memory"
	"adaptive-quiz-service/internal/metrics"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	server  *httptest.Server
	auth    *auth.Service
	results *memory.ResultStore
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWithResults(t, nil)
}

// newTestEnvWithResults serves the API with store in place of the memory
// result store when it is not nil.
func newTestEnvWithResults(t *testing.T, store app.ResultStore) *testEnv {
	t.Helper()
	bank, err := memory.NewQuestionBank(sampleQuestions()...)
	require.NoError(t, err)
	results := memory.NewResultStore()
	var resultStore app.ResultStore = results
	if store != nil {
		resultStore = store
	}
	service := app.NewQuizService(memory.NewSessionStore(time.Minute), bank, resultStore,
		app.WithQuestionLimits(1, 10))
	authSvc := auth.NewService("test-secret", "", time.Hour)

	server := httptest.NewServer(NewRouter(RouterConfig{
		Service:          service,
		Auth:             authSvc,
		Metrics:          metrics.NewRecorder().Handler(),
		DefaultQuestions: 3,
		DevTokens:        true,
	}))
	t.Cleanup(server.Close)
	return &testEnv{server: server, auth: authSvc, results: results}
}

func (e *testEnv) token(t *testing.T, userID string) string {
	t.Helper()
	tok, err := e.auth.Issue(userID)
	require.NoError(t, err)
	return tok
}

type apiResponse struct {
	Success   bool            `json:"success"`
	Data      json.RawMessage `json:"data"`
	Completed *bool           `json:"completed"`
	Message   string          `json:"message"`
	Kind      string          `json:"kind"`
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) (int, apiResponse) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, e.server.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := e.server.Client().Do(req)
	require.NoError(t, err, "%s %s", method, path)
	defer resp.Body.Close()

	var out apiResponse
	if resp.Header.Get("Content-Type") == "application/json" {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	}
	return resp.StatusCode, out
}

// sampleQuestions are all answered correctly with option 1.
func sampleQuestions() []domain.Question {
	mk := func(id string, d domain.Difficulty) domain.Question {
		return domain.Question{
			ID:           id,
			Text:         "Question " + id,
			Options:      []string{"a", "b", "c", "d"},
			CorrectIndex: 1,
			Subject:      "Mathematics",
			Difficulty:   d,
			Explanation:  "Because " + id,
			IsActive:     true,
		}
	}
	return []domain.Question{
		mk("e1", domain.DifficultyEasy),
		mk("e2", domain.DifficultyEasy),
		mk("m1", domain.DifficultyMedium),
		mk("m2", domain.DifficultyMedium),
		mk("m3", domain.DifficultyMedium),
		mk("h1", domain.DifficultyHard),
		mk("h2", domain.DifficultyHard),
	}
}
