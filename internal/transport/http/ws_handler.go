package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"adaptive-quiz-service/internal/app"
	"adaptive-quiz-service/internal/auth"
	"adaptive-quiz-service/internal/domain"
	"github.com/gorilla/websocket"
)

// WSHandler plays adaptive quizzes over a websocket. One connection runs at
// most one session at a time; answers without a sessionId go to it.
type WSHandler struct {
	service          *app.QuizService
	defaultQuestions int
	upgrader         websocket.Upgrader
}

func NewWSHandler(service *app.QuizService, defaultQuestions int) *WSHandler {
	return &WSHandler{
		service:          service,
		defaultQuestions: defaultQuestions,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type answerPayload struct {
	SessionID      string `json:"sessionId"`
	QuestionID     string `json:"questionId"`
	SelectedAnswer *int   `json:"selectedAnswer"`
	TimeSpent      int    `json:"timeSpent"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Kind       string                     `json:"kind"`
	Message    string                     `json:"message"`
	Result     *domain.QuizResult         `json:"quizResult,omitempty"`
	LastAnswer *domain.LastAnswerFeedback `json:"lastAnswer,omitempty"`
}

func wsError(err error) outboundMessage[any] {
	payload := errorPayload{Kind: string(domain.KindOf(err)), Message: err.Error()}
	if domain.KindOf(err) == domain.KindInternal {
		payload.Message = "internal error"
	}
	var storeErr *domain.StoreError
	if errors.As(err, &storeErr) {
		payload.Result = storeErr.Result
	}
	return outboundMessage[any]{Type: "error", Payload: payload}
}

// wsAnswerError is wsError plus the feedback of an answer whose quiz was
// finalized but not fully stored.
func wsAnswerError(err error, outcome app.AnswerOutcome) outboundMessage[any] {
	msg := wsError(err)
	if payload, ok := msg.Payload.(errorPayload); ok && payload.Result != nil && outcome.Completed {
		last := outcome.LastAnswer
		payload.LastAnswer = &last
		msg.Payload = payload
	}
	return msg
}

// ServeWS upgrades authenticated requests to websockets and wires them into
// the adaptive quiz use cases.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		respondError(w, domain.ErrInvalidToken)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	send := make(chan outboundMessage[any], 16)
	writerDone := make(chan struct{})

	// single writer: gorilla connections do not support concurrent writes
	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Printf("ws write error: %v", err)
				return
			}
		}
	}()

	emit := func(msg outboundMessage[any]) {
		select {
		case send <- msg:
		case <-writerDone:
		}
	}

	var sessionID string
	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		switch inbound.Type {
		case "start":
			var payload startRequest
			if len(inbound.Payload) > 0 {
				if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
					emit(wsError(domain.Invalid("payload", "invalid start payload")))
					continue
				}
			}
			count := h.defaultQuestions
			if payload.QuestionCount != nil {
				count = *payload.QuestionCount
			}
			started, err := h.service.StartSession(r.Context(), userID, payload.Subject, count)
			if err != nil {
				emit(wsError(err))
				continue
			}
			sessionID = started.SessionID
			emit(outboundMessage[any]{Type: "started", Payload: started})
		case "answer":
			var payload answerPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil || payload.SelectedAnswer == nil {
				emit(wsError(domain.Invalid("payload", "invalid answer payload")))
				continue
			}
			if payload.SessionID == "" {
				payload.SessionID = sessionID
			}
			outcome, err := h.service.SubmitAnswer(r.Context(), app.AnswerSubmission{
				SessionID:        payload.SessionID,
				UserID:           userID,
				QuestionID:       payload.QuestionID,
				SelectedAnswer:   *payload.SelectedAnswer,
				TimeSpentSeconds: payload.TimeSpent,
			})
			if err != nil {
				if outcome.Completed && payload.SessionID == sessionID {
					sessionID = ""
				}
				emit(wsAnswerError(err, outcome))
				continue
			}
			if outcome.Completed {
				if payload.SessionID == sessionID {
					sessionID = ""
				}
				emit(outboundMessage[any]{Type: "completed", Payload: outcome})
				continue
			}
			emit(outboundMessage[any]{Type: "answered", Payload: outcome})
		default:
			emit(wsError(domain.Invalid("type", "unsupported message type")))
		}
	}

	close(send)
	<-writerDone
}
