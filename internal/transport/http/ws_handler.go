package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"campus-gateway/internal/app"
	"campus-gateway/internal/domain"
	"github.com/gorilla/websocket"
)

// WSHandler runs quiz sessions over a websocket: the gateway owns the
// countdown and pushes ticks, the client sends answers and the submit
// signal.
type WSHandler struct {
	quizzes  *app.QuizService
	upgrader websocket.Upgrader
}

func NewWSHandler(quizzes *app.QuizService) *WSHandler {
	return &WSHandler{
		quizzes: quizzes,
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
	QuestionID string `json:"questionId"`
	OptionID   string `json:"optionId"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message   string `json:"message"`
	Retryable bool   `json:"retryable,omitempty"`
}

type quizPayload struct {
	CourseID  string            `json:"courseId"`
	Passmark  int               `json:"passmark"`
	Duration  int               `json:"duration"` // seconds
	Questions []questionPayload `json:"questions"`
}

type questionPayload struct {
	ID      string          `json:"id"`
	Prompt  string          `json:"prompt"`
	Options []optionPayload `json:"options"`
}

type optionPayload struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

type tickPayload struct {
	Remaining int `json:"remaining"` // seconds
}

// ServeWS upgrades the request and drives one quiz session to completion.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	courseID := r.URL.Query().Get("courseId")
	userID := r.URL.Query().Get("userId")
	if courseID == "" || userID == "" {
		http.Error(w, "missing courseId or userId", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	runner, err := h.quizzes.Start(r.Context(), userID, courseID)
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}})
		return
	}

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	eventsDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Printf("ws write error: %v", err)
				return
			}
		}
	}()

	go func() {
		defer close(eventsDone)
		for {
			select {
			case event, ok := <-runner.Events():
				if !ok {
					return
				}
				select {
				case send <- eventMessage(event):
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	send <- outboundMessage[any]{Type: "quiz", Payload: buildQuizPayload(runner.Quiz())}

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		switch inbound.Type {
		case "answer":
			var payload answerPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				send <- errorMessage("invalid answer payload", false)
				continue
			}
			if err := runner.Answer(payload.QuestionID, payload.OptionID); err != nil {
				send <- errorMessage(err.Error(), false)
			}
		case "submit":
			if _, err := runner.Submit(r.Context()); err != nil {
				// The submitted event carries the result on success;
				// here only failures need reporting. A failed upstream
				// write keeps the session retryable.
				retryable := !errors.Is(err, domain.ErrQuizSubmitted) && !errors.Is(err, domain.ErrSubmitInFlight)
				send <- errorMessage(err.Error(), retryable)
			}
		default:
			send <- errorMessage("unsupported message type", false)
		}
	}

	close(closeSignals)
	<-eventsDone
	close(send)
	<-writerDone
}

func eventMessage(event domain.QuizEvent) outboundMessage[any] {
	switch event.Type {
	case domain.QuizEventTick:
		return outboundMessage[any]{Type: "tick", Payload: tickPayload{Remaining: int(event.Remaining / time.Second)}}
	case domain.QuizEventTimeout:
		return outboundMessage[any]{Type: "timeout", Payload: struct{}{}}
	default:
		return outboundMessage[any]{Type: "submitted", Payload: event.Result}
	}
}

func errorMessage(message string, retryable bool) outboundMessage[any] {
	return outboundMessage[any]{Type: "error", Payload: errorPayload{Message: message, Retryable: retryable}}
}

// buildQuizPayload strips the correct option IDs before anything reaches
// the client.
func buildQuizPayload(quiz domain.Quiz) quizPayload {
	payload := quizPayload{
		CourseID:  quiz.Settings.CourseID,
		Passmark:  quiz.Settings.Passmark,
		Duration:  int(quiz.Settings.Duration / time.Second),
		Questions: make([]questionPayload, 0, len(quiz.Questions)),
	}
	for _, question := range quiz.Questions {
		out := questionPayload{
			ID:      question.ID,
			Prompt:  question.Prompt,
			Options: make([]optionPayload, 0, len(question.Options)),
		}
		for _, option := range question.Options {
			out.Options = append(out.Options, optionPayload{ID: option.ID, Text: option.Text})
		}
		payload.Questions = append(payload.Questions, out)
	}
	return payload
}
