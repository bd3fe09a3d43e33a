package http

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"trivia-quiz-service/internal/app"
	"trivia-quiz-service/internal/domain"
)

type WSHandler struct {
	registry  *app.Registry
	scheduler *app.Scheduler
	questions *app.QuestionService
	batchSize int
	cfg       ConnectionConfig
	upgrader  websocket.Upgrader
}

type WSConfig struct {
	Registry  *app.Registry
	Scheduler *app.Scheduler
	// Questions, when set, sends each joiner the room's random question batch.
	Questions  *app.QuestionService
	BatchSize  int
	Connection ConnectionConfig
}

func NewWSHandler(c WSConfig) *WSHandler {
	if c.BatchSize <= 0 {
		c.BatchSize = app.DefaultBatchSize
	}
	if c.Connection == (ConnectionConfig{}) {
		c.Connection = DefaultConnectionConfig()
	}
	return &WSHandler{
		registry:  c.Registry,
		scheduler: c.Scheduler,
		questions: c.Questions,
		batchSize: c.BatchSize,
		cfg:       c.Connection,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// ServeWS upgrades GET /ws/quiz/{room} and attaches the socket to the room.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	roomID := r.PathValue("room")
	if roomID == "" {
		writeError(w, domain.ErrInvalidInput)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Str("room_id", roomID).Msg("ws upgrade failed")
		return
	}

	c := newConnection(uuid.NewString(), roomID, r.URL.Query().Get("name"), conn, h.cfg)
	go c.writePump()
	defer func() { <-c.writerDone }()

	if _, err := h.registry.Join(roomID, c); err != nil {
		_ = c.Send(domain.ErrorMessage{Err: domain.NewErrorBody(err)})
		c.Close()
		return
	}
	log.Info().Str("room_id", roomID).Str("handle_id", c.id).Str("player", c.player).Msg("participant connected")

	if h.questions != nil {
		h.sendQuestions(r.Context(), c)
	}
	h.readPump(c)
}

func (h *WSHandler) sendQuestions(ctx context.Context, c *connection) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	batch, err := h.questions.RandomBatch(ctx, h.batchSize)
	if err != nil {
		log.Warn().Err(err).Str("room_id", c.roomID).Msg("question batch unavailable")
		_ = c.Send(domain.ErrorMessage{Err: domain.NewErrorBody(err)})
		return
	}
	_ = c.Send(domain.QuestionBatch{Questions: batch})
}

// readPump runs until the socket fails or the room is torn down, then removes
// the participant.
func (h *WSHandler) readPump(c *connection) {
	defer func() {
		h.registry.Leave(c.roomID, c)
		c.Close()
		log.Info().Str("room_id", c.roomID).Str("handle_id", c.id).Msg("participant disconnected")
	}()

	c.conn.SetReadLimit(c.cfg.MaxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Warn().Err(err).Str("handle_id", c.id).Msg("unexpected websocket close")
			}
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout))

		msg, err := domain.ParseInbound(raw)
		if err != nil {
			log.Debug().Err(err).Str("handle_id", c.id).Msg("rejected client message")
			_ = c.Send(domain.ErrorMessage{Err: domain.NewErrorBody(err)})
			continue
		}

		switch msg.(type) {
		case domain.StartTimer:
			if _, err := h.scheduler.Start(c.roomID); err != nil {
				_ = c.Send(domain.ErrorMessage{Err: domain.NewErrorBody(err)})
			}
		}
	}
}
