package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"adaptive-quiz-service/internal/domain"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorderCounts(t *testing.T) {
	r := NewRecorder()

	r.SessionStarted("Physics")
	r.SessionStarted("Physics")
	r.AnswerRecorded(domain.DifficultyMedium, true)
	r.AnswerRecorded(domain.DifficultyHard, false)
	r.AnswerRecorded(domain.DifficultyMedium, true)
	r.SessionFinished(domain.CompletionExhausted, 42)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.sessionsStarted.WithLabelValues("Physics")))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.answers.WithLabelValues("medium", "true")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.answers.WithLabelValues("hard", "false")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.sessionsFinished.WithLabelValues("exhausted")))
	assert.Equal(t, 1, testutil.CollectAndCount(r.scores))
}

func TestRecorderHandler(t *testing.T) {
	r := NewRecorder()
	r.SessionFinished(domain.CompletionFinished, 80)

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)

	assert.True(t, strings.Contains(string(body), `quiz_sessions_finished_total{reason="completed"} 1`))
	assert.True(t, strings.Contains(string(body), "quiz_score_count 1"))
}
