package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"

	"github.com/hireloop/hireloop/internal/services"
	"github.com/hireloop/hireloop/internal/utils"
)

// WSHandler bridges a session's Redis channels to the candidate's
// browser. Timer ticks and transcripts flow down; draft text and audio
// chunks flow up. The countdown lives server-side but only runs while a
// socket is attached: a disconnect pauses the clock and the session
// stays active and resumable.
type WSHandler struct {
	interviews services.InterviewService
	drafts     services.DraftStore
	redis      *redis.Client
	upgrader   websocket.Upgrader
}

func NewWSHandler(interviews services.InterviewService, drafts services.DraftStore, rdb *redis.Client) *WSHandler {
	return &WSHandler{
		interviews: interviews,
		drafts:     drafts,
		redis:      rdb,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true }, // TODO: restrict origin in prod
		},
	}
}

type wsClientMsg struct {
	Type          string `json:"type"`
	QuestionIndex int    `json:"question_index"`
	Text          string `json:"text"`
	AudioBase64   string `json:"audio_base64"`
}

type wsConn struct {
	c  *websocket.Conn
	mu sync.Mutex
}

func (w *wsConn) writeText(b []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.c.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return w.c.WriteMessage(websocket.TextMessage, b)
}

func (h *WSHandler) SessionWS(c *gin.Context) {
	sessionID := c.Param("session_id")
	if sessionID == "" {
		writeError(c, utils.E(utils.CodeInvalidArgument, "WSHandler.SessionWS", "missing session_id", nil))
		return
	}

	// the session must exist before we upgrade
	if _, err := h.interviews.GetSession(c.Request.Context(), sessionID); err != nil {
		writeError(c, err)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// upgrade already wrote response in most cases
		return
	}
	defer conn.Close()

	// navigating away pauses the countdown; the next connection resumes
	// it with the saved remaining time
	defer h.interviews.Teardown(sessionID)

	wc := &wsConn{c: conn}
	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	timerCh := "session:" + sessionID + ":timer"
	eventsCh := "session:" + sessionID + ":events"

	pubsub := h.redis.Subscribe(ctx, timerCh, eventsCh)
	defer pubsub.Close()

	// reader: WS -> drafts / audio stream
	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		conn.SetPongHandler(func(string) error {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			return nil
		})

		for {
			_, data, rerr := conn.ReadMessage()
			if rerr != nil {
				return
			}

			var msg wsClientMsg
			if err := json.Unmarshal(data, &msg); err != nil {
				_ = wc.writeText([]byte(`{"type":"error","code":"INVALID_ARGUMENT","message":"invalid json"}`))
				continue
			}
			if msg.QuestionIndex < 0 {
				_ = wc.writeText([]byte(`{"type":"error","code":"INVALID_ARGUMENT","message":"question_index must be >= 0"}`))
				continue
			}

			switch msg.Type {
			case "draft":
				if err := h.drafts.Set(ctx, sessionID, msg.QuestionIndex, msg.Text); err != nil {
					_ = wc.writeText([]byte(`{"type":"error","code":"UNAVAILABLE","message":"failed to save draft"}`))
				}

			case "audio_chunk":
				if msg.AudioBase64 == "" {
					_ = wc.writeText([]byte(`{"type":"error","code":"INVALID_ARGUMENT","message":"audio_base64 required"}`))
					continue
				}
				if err := h.redis.XAdd(ctx, &redis.XAddArgs{
					Stream: "answers:audio",
					Values: map[string]any{
						"session_id":     sessionID,
						"question_index": strconv.Itoa(msg.QuestionIndex),
						"audio_base64":   msg.AudioBase64,
						"ts_unix":        strconv.FormatInt(time.Now().UTC().Unix(), 10),
					},
				}).Err(); err != nil {
					_ = wc.writeText([]byte(`{"type":"error","code":"UNAVAILABLE","message":"failed to enqueue audio"}`))
				}

			default:
				_ = wc.writeText([]byte(`{"type":"error","code":"INVALID_ARGUMENT","message":"unknown message type"}`))
			}
		}
	}()

	// writer: Redis Pub/Sub -> WS
	for {
		select {
		case <-readDone:
			return
		case <-ctx.Done():
			return
		default:
			m, err := pubsub.ReceiveMessage(ctx)
			if err != nil {
				return
			}
			if werr := wc.writeText([]byte(m.Payload)); werr != nil {
				return
			}
		}
	}
}
