package http

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"vocab-quiz-service/internal/app"
	"vocab-quiz-service/internal/domain"
)

type WSHandler struct {
	service        *app.LearningService
	notifications  *Notifications
	limitToFifteen bool
	log            logrus.FieldLogger
	upgrader       websocket.Upgrader
}

func NewWSHandler(service *app.LearningService, notifications *Notifications, limitToFifteen bool, log logrus.FieldLogger) *WSHandler {
	if log == nil {
		log = logrus.StandardLogger()
	}
	if notifications == nil {
		notifications = NewNotifications()
	}
	return &WSHandler{
		service:        service,
		notifications:  notifications,
		limitToFifteen: limitToFifteen,
		log:            log.WithField("component", "ws"),
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
	Index  int    `json:"index"`
	Option string `json:"option"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// topicFromQuery reads ?folder= or ?level=&chapter=&topic=.
func topicFromQuery(r *http.Request) (domain.TopicKey, bool) {
	q := r.URL.Query()
	if folder := q.Get("folder"); folder != "" {
		return domain.FolderKey(folder), true
	}
	key := domain.TopicKey{Level: q.Get("level"), Chapter: q.Get("chapter"), Topic: q.Get("topic")}
	return key, key.Level != "" && key.Chapter != "" && key.Topic != ""
}

// ServeWS upgrades HTTP requests to websockets and drives one quiz session over them.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	key, ok := topicFromQuery(r)
	if !ok {
		http.Error(w, "missing folder, or level, chapter and topic", http.StatusBadRequest)
		return
	}
	limit := h.limitToFifteen
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.ParseBool(raw); err == nil {
			limit = parsed
		}
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).Warn("ws upgrade failed")
		return
	}
	defer conn.Close()

	view, err := h.service.StartTopic(r.Context(), key, limit)
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}})
		return
	}
	topicID := view.TopicID
	defer h.service.Abandon(topicID)

	milestones, cancel := h.notifications.Subscribe()
	defer cancel()

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	milestonesDone := make(chan struct{})

	// single writer: gorilla connections do not support concurrent writes
	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				h.log.WithError(err).Debug("ws write error")
				return
			}
		}
	}()

	go func() {
		defer close(milestonesDone)
		for {
			select {
			case state, ok := <-milestones:
				if !ok {
					return
				}
				select {
				case send <- outboundMessage[any]{Type: "milestone", Payload: state}:
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	send <- outboundMessage[any]{Type: "session", Payload: view}

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		for _, msg := range h.handle(topicID, inbound) {
			send <- msg
		}
	}

	close(closeSignals)
	<-milestonesDone
	close(send)
	<-writerDone
}

func (h *WSHandler) handle(topicID string, inbound inboundMessage) []outboundMessage[any] {
	fail := func(err error) []outboundMessage[any] {
		return []outboundMessage[any]{{Type: "error", Payload: errorPayload{Message: err.Error()}}}
	}

	switch inbound.Type {
	case "answer":
		var payload answerPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			return []outboundMessage[any]{{Type: "error", Payload: errorPayload{Message: "invalid answer payload"}}}
		}
		result, err := h.service.Answer(topicID, payload.Index, payload.Option)
		if err != nil {
			return fail(err)
		}
		view, err := h.service.View(topicID)
		if err != nil {
			return fail(err)
		}
		return []outboundMessage[any]{
			{Type: "answerResult", Payload: result},
			{Type: "session", Payload: view},
		}
	case "back":
		view, err := h.service.Back(topicID)
		if err != nil {
			return fail(err)
		}
		return []outboundMessage[any]{{Type: "session", Payload: view}}
	case "forward":
		view, completion, err := h.service.Forward(topicID)
		if err != nil {
			return fail(err)
		}
		if completion != nil {
			return []outboundMessage[any]{{Type: "completed", Payload: completion}}
		}
		return []outboundMessage[any]{{Type: "session", Payload: view}}
	case "tally":
		tally, err := h.service.Tally(topicID)
		if err != nil {
			return fail(err)
		}
		return []outboundMessage[any]{{Type: "tally", Payload: tally}}
	case "streak":
		return []outboundMessage[any]{{Type: "streak", Payload: h.service.Streak()}}
	default:
		return []outboundMessage[any]{{Type: "error", Payload: errorPayload{Message: "unsupported message type"}}}
	}
}
