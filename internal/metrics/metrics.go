// Package metrics exposes quiz engine counters for Prometheus.
package metrics

import (
	"net/http"
	"strconv"

	"adaptive-quiz-service/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder implements app.Metrics on its own registry.
type Recorder struct {
	registry *prometheus.Registry

	sessionsStarted  *prometheus.CounterVec
	answers          *prometheus.CounterVec
	sessionsFinished *prometheus.CounterVec
	scores           prometheus.Histogram
}

func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		sessionsStarted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quiz_sessions_started_total",
				Help: "Total number of adaptive quiz sessions started",
			},
			[]string{"subject"},
		),
		answers: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quiz_answers_total",
				Help: "Total number of answers graded",
			},
			[]string{"difficulty", "correct"},
		),
		sessionsFinished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quiz_sessions_finished_total",
				Help: "Total number of sessions finalized",
			},
			[]string{"reason"},
		),
		scores: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "quiz_score",
				Help:    "Distribution of final weighted scores",
				Buckets: prometheus.LinearBuckets(10, 10, 10),
			},
		),
	}
}

func (r *Recorder) SessionStarted(subject string) {
	r.sessionsStarted.WithLabelValues(subject).Inc()
}

func (r *Recorder) AnswerRecorded(difficulty domain.Difficulty, correct bool) {
	r.answers.WithLabelValues(string(difficulty), strconv.FormatBool(correct)).Inc()
}

func (r *Recorder) SessionFinished(reason domain.CompletionReason, score int) {
	r.sessionsFinished.WithLabelValues(string(reason)).Inc()
	r.scores.Observe(float64(score))
}

// Handler serves the registry in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
