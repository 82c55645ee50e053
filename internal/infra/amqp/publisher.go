package amqp

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"adaptive-quiz-service/internal/domain"
	"github.com/google/uuid"
	"github.com/rabbitmq/amqp091-go"
)

const (
	// DefaultExchange is the topic exchange quiz events go to.
	DefaultExchange = "quiz.events"
	// RoutingQuizCompleted is the routing key of QuizCompletedEvent.
	RoutingQuizCompleted = "quiz.completed"

	publishTimeout = 5 * time.Second
)

// QuizCompletedEvent is published once per finished quiz.
type QuizCompletedEvent struct {
	EventID          string                  `json:"eventId"`
	Type             string                  `json:"type"`
	Timestamp        time.Time               `json:"timestamp"`
	ResultID         string                  `json:"resultId"`
	SessionID        string                  `json:"sessionId"`
	UserID           string                  `json:"userId"`
	Subject          string                  `json:"subject"`
	Score            int                     `json:"score"`
	Passed           bool                    `json:"passed"`
	CorrectAnswers   int                     `json:"correctAnswers"`
	TotalQuestions   int                     `json:"totalQuestions"`
	CompletionReason domain.CompletionReason `json:"completionReason"`
	FinalDifficulty  domain.Difficulty       `json:"finalDifficulty"`
}

func newQuizCompletedEvent(result domain.QuizResult, now time.Time) QuizCompletedEvent {
	return QuizCompletedEvent{
		EventID:          uuid.NewString(),
		Type:             RoutingQuizCompleted,
		Timestamp:        now,
		ResultID:         result.ID,
		SessionID:        result.SessionID,
		UserID:           result.UserID,
		Subject:          result.Subject,
		Score:            result.Score,
		Passed:           result.Passed,
		CorrectAnswers:   result.CorrectAnswers,
		TotalQuestions:   result.TotalQuestions,
		CompletionReason: result.CompletionReason,
		FinalDifficulty:  result.AdaptiveData.FinalDifficulty,
	}
}

// channel is the subset of *amqp091.Channel the publisher needs.
type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
	Close() error
}

// Publisher sends quiz events to a RabbitMQ topic exchange.
type Publisher struct {
	conn     *amqp091.Connection
	ch       channel
	exchange string
	clock    func() time.Time
}

// Dial connects to uri and declares the durable topic exchange.
func Dial(uri, exchange string) (*Publisher, error) {
	if exchange == "" {
		exchange = DefaultExchange
	}
	conn, err := amqp091.Dial(uri)
	if err != nil {
		return nil, fmt.Errorf("connect rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}
	p := newPublisher(ch, exchange)
	p.conn = conn
	return p, nil
}

func newPublisher(ch channel, exchange string) *Publisher {
	return &Publisher{ch: ch, exchange: exchange, clock: time.Now}
}

// QuizCompleted publishes a QuizCompletedEvent for result.
func (p *Publisher) QuizCompleted(ctx context.Context, result domain.QuizResult) error {
	return p.publish(ctx, RoutingQuizCompleted, newQuizCompletedEvent(result, p.clock()))
}

func (p *Publisher) publish(ctx context.Context, routingKey string, event any) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	err = p.ch.PublishWithContext(pubCtx, p.exchange, routingKey, false, false, amqp091.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp091.Persistent,
		Timestamp:    p.clock(),
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publish %s: %w", routingKey, err)
	}
	log.Printf("published event: %s", routingKey)
	return nil
}

func (p *Publisher) Close() error {
	if err := p.ch.Close(); err != nil {
		return err
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}
