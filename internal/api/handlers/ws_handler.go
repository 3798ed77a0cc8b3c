package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/yoockh/yoocv/internal/models"
	"github.com/yoockh/yoocv/internal/progress"
	"github.com/yoockh/yoocv/internal/services"
)

const defaultHeartbeat = 30 * time.Second

// ProgressHub hands out live progress subscriptions.
type ProgressHub interface {
	Subscribe(userID, documentID string) *progress.Subscription
	Unsubscribe(sub *progress.Subscription)
}

// ProgressHandler streams document progress over WebSocket or SSE.
type ProgressHandler struct {
	docs      services.DocumentService
	hub       ProgressHub
	log       *logrus.Logger
	heartbeat time.Duration
	upgrader  websocket.Upgrader
}

func NewProgressHandler(docs services.DocumentService, hub ProgressHub, log *logrus.Logger, heartbeat time.Duration, allowedOrigins []string) *ProgressHandler {
	if heartbeat <= 0 {
		heartbeat = defaultHeartbeat
	}
	return &ProgressHandler{
		docs:      docs,
		hub:       hub,
		log:       log,
		heartbeat: heartbeat,
		upgrader: websocket.Upgrader{
			CheckOrigin: originChecker(allowedOrigins),
		},
	}
}

func originChecker(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	set := map[string]bool{}
	for _, o := range allowed {
		set[o] = true
	}
	return func(r *http.Request) bool {
		o := r.Header.Get("Origin")
		return o == "" || set[o]
	}
}

// subscribe registers before reading the status so no transition between
// the read and the subscription is lost.
func (h *ProgressHandler) subscribe(c *gin.Context, p models.Principal) (*progress.Subscription, progress.Event, bool) {
	docID := c.Param("id")
	sub := h.hub.Subscribe(p.UserID, docID)
	st, err := h.docs.Status(c.Request.Context(), p, docID)
	if err != nil {
		h.hub.Unsubscribe(sub)
		writeError(c, err)
		return nil, progress.Event{}, false
	}
	return sub, progress.EventFromStatus(st), true
}

type wsConn struct {
	c  *websocket.Conn
	mu sync.Mutex
}

func (w *wsConn) writeText(b []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	_ = w.c.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return w.c.WriteMessage(websocket.TextMessage, b)
}

func (h *ProgressHandler) WebSocket(c *gin.Context) {
	p, ok := requirePrincipal(c)
	if !ok {
		return
	}
	sub, current, ok := h.subscribe(c, p)
	if !ok {
		return
	}
	defer h.hub.Unsubscribe(sub)

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// upgrade already wrote the response
		return
	}
	defer conn.Close()

	wc := &wsConn{c: conn}
	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	// reader: clients only send control frames; a read error means they left
	go func() {
		defer cancel()
		_ = conn.SetReadDeadline(time.Now().Add(2 * h.heartbeat))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(2 * h.heartbeat))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
			_ = conn.SetReadDeadline(time.Now().Add(2 * h.heartbeat))
		}
	}()

	err = progress.Follow(ctx, sub, current, h.heartbeat, func(ev progress.Event) error {
		b, err := json.Marshal(ev)
		if err != nil {
			return err
		}
		return wc.writeText(b)
	})
	if err != nil && ctx.Err() == nil {
		h.log.WithError(err).WithField("document_id", sub.DocumentID).Debug("progress websocket closed")
	}

	wc.mu.Lock()
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	wc.mu.Unlock()
}
