package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"quizdeck/internal/app"
	"quizdeck/internal/domain"
	"quizdeck/internal/i18n"
)

// WSHandler drives one attempt per websocket connection.
type WSHandler struct {
	service  *app.QuizService
	tr       *i18n.Translator
	log      logrus.FieldLogger
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.QuizService, tr *i18n.Translator, logger logrus.FieldLogger) *WSHandler {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &WSHandler{
		service: service,
		tr:      tr,
		log:     logger,
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

type selectPayload struct {
	QuestionID string `json:"questionId"`
	Option     string `json:"option"`
}

type outboundMessage struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

type statePayload struct {
	domain.AttemptView
	ClientID string `json:"clientId,omitempty"`
	Message  string `json:"message,omitempty"`
}

type tickPayload struct {
	TimeRemaining int `json:"timeRemaining"`
}

type resultPayload struct {
	domain.Result
	Verdict   string `json:"verdict"`
	Summary   string `json:"summary"`
	TimeLabel string `json:"timeLabel"`
	Message   string `json:"message,omitempty"`
}

// ServeWS upgrades the request and binds the connection to the attempt of user on topic.
// Without a user the connection gets an anonymous attempt keyed by the client query
// parameter, or a fresh client id that is echoed in every state message.
// Closing the connection releases the attempt; the last connection to leave closes it
// and its checkpoint is kept for resume.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	topic := query.Get("topic")
	username := query.Get("user")

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).Warn("ws upgrade failed")
		return
	}
	defer conn.Close()

	ctx := r.Context()
	var attempt *app.Attempt
	if username == "" {
		attempt, err = h.service.StartAnonymous(ctx, query.Get("client"), topic)
	} else {
		attempt, err = h.service.Start(ctx, username, topic)
	}
	if err != nil {
		_ = conn.WriteJSON(outboundMessage{Type: "error", Payload: errorPayload{Message: err.Error()}})
		return
	}
	defer h.service.Release(attempt)
	log := h.log.WithField("key", attempt.Key().String())

	events, cancel := attempt.Subscribe()
	defer cancel()

	// A dead writer closes the socket so the read loop below unblocks.
	out := newOutbox(conn.WriteJSON, func() { conn.Close() }, log)
	closeSignals := make(chan struct{})
	eventsDone := make(chan struct{})

	go func() {
		defer close(eventsDone)
		for {
			select {
			case event, ok := <-events:
				if !ok {
					return
				}
				msg, forward := h.eventMessage(ctx, event)
				if forward && !out.push(msg) {
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	if out.push(h.stateMessage(ctx, attempt)) {
		for {
			var inbound inboundMessage
			if err := conn.ReadJSON(&inbound); err != nil {
				break
			}
			if !out.pushAll(h.dispatch(ctx, attempt, inbound)) {
				break
			}
		}
	}

	close(closeSignals)
	<-eventsDone
	out.close()
}

// dispatch applies one inbound message and returns the replies.
func (h *WSHandler) dispatch(ctx context.Context, attempt *app.Attempt, inbound inboundMessage) []outboundMessage {
	var err error
	switch inbound.Type {
	case "select":
		var payload selectPayload
		if jsonErr := json.Unmarshal(inbound.Payload, &payload); jsonErr != nil {
			return []outboundMessage{h.errorMessage(ctx, errors.New("invalid select payload"))}
		}
		err = attempt.Select(ctx, payload.QuestionID, payload.Option)
	case "next":
		err = attempt.Next(ctx)
	case "previous":
		err = attempt.Previous(ctx)
	case "submit":
		result, submitErr := attempt.Submit(ctx)
		if submitErr != nil {
			return []outboundMessage{h.errorMessage(ctx, submitErr)}
		}
		return []outboundMessage{h.resultMessage(ctx, result), h.stateMessage(ctx, attempt)}
	case "retry":
		err = attempt.Retry(ctx)
	default:
		return []outboundMessage{h.errorMessage(ctx, errors.New("unsupported message type"))}
	}
	if err != nil {
		return []outboundMessage{h.errorMessage(ctx, err)}
	}
	return []outboundMessage{h.stateMessage(ctx, attempt)}
}

// eventMessage forwards countdown ticks and timer-driven submissions. Manual submits
// and retries are answered directly by dispatch.
func (h *WSHandler) eventMessage(ctx context.Context, event domain.AttemptEvent) (outboundMessage, bool) {
	switch event.Type {
	case domain.EventTick:
		return outboundMessage{Type: "tick", Payload: tickPayload{TimeRemaining: event.TimeRemaining}}, true
	case domain.EventSubmitted:
		if event.Result == nil || !event.Result.Expired {
			return outboundMessage{}, false
		}
		msg := h.resultMessage(ctx, *event.Result)
		payload := msg.Payload.(resultPayload)
		payload.Message = h.tr.T(ctx, "TimeUp")
		msg.Payload = payload
		return msg, true
	}
	return outboundMessage{}, false
}

func (h *WSHandler) stateMessage(ctx context.Context, attempt *app.Attempt) outboundMessage {
	state := statePayload{AttemptView: attempt.View(), ClientID: attempt.Key().Client}
	if state.Phase == domain.PhaseUnavailable {
		state.Message = h.tr.T(ctx, "NoQuestions")
	}
	return outboundMessage{Type: "state", Payload: state}
}

func (h *WSHandler) resultMessage(ctx context.Context, result domain.Result) outboundMessage {
	return outboundMessage{Type: "result", Payload: resultPayload{
		Result:    result,
		Verdict:   h.tr.Verdict(ctx, result.Passed),
		Summary:   h.tr.Summary(ctx, result),
		TimeLabel: h.tr.TimeTaken(ctx, result.TimeTaken),
	}}
}

func (h *WSHandler) errorMessage(ctx context.Context, err error) outboundMessage {
	message := err.Error()
	if errors.Is(err, domain.ErrQuizUnavailable) {
		message = h.tr.T(ctx, "NoQuestions")
	}
	return outboundMessage{Type: "error", Payload: errorPayload{Message: message}}
}
