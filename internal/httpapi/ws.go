package httpapi

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/signalsfoundry/libya-atlas/internal/logging"
	"github.com/signalsfoundry/libya-atlas/internal/render"
	"github.com/signalsfoundry/libya-atlas/internal/view/state"
)

const (
	wsWriteWait      = 10 * time.Second
	wsMaxMessageSize = 64 << 10
	wsSubscribeDepth = 8
)

// wsConn serialises writes to one websocket connection.
type wsConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (w *wsConn) send(msg wsMessage) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	_ = w.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return w.conn.WriteJSON(msg)
}

func (w *wsConn) ping() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait))
}

func (w *wsConn) close(code int, text string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	_ = w.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, text), time.Now().Add(wsWriteWait))
}

// streamSession upgrades to a websocket that pushes a scene for every new
// revision of the session, including animation frames, and applies events
// sent by the client.
func (s *Server) streamSession(c echo.Context) error {
	sess, err := s.registry.Get(c.Param("id"))
	if err != nil {
		return err
	}
	conn, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// The upgrader has already replied.
		return nil
	}
	defer conn.Close()
	conn.SetReadLimit(wsMaxMessageSize)

	ctx, cancel := context.WithCancel(c.Request().Context())
	defer cancel()
	log := logging.FromContext(ctx, s.log)
	ws := &wsConn{conn: conn}

	updates, unsubscribe := sess.Subscribe(wsSubscribeDepth)
	defer unsubscribe()

	if err := ws.send(s.sceneMessage(sess.Snapshot())); err != nil {
		return nil
	}

	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		s.readEvents(ctx, ws, sess)
	}()

	ping := time.NewTicker(s.pingInterval)
	defer ping.Stop()

	for {
		select {
		case vs, ok := <-updates:
			if !ok {
				ws.close(websocket.CloseNormalClosure, "session closed")
				return nil
			}
			if err := ws.send(s.sceneMessage(vs)); err != nil {
				log.Debug(ctx, "websocket write failed", logging.Err(err))
				return nil
			}
		case <-ping.C:
			if err := ws.ping(); err != nil {
				return nil
			}
		case <-readDone:
			return nil
		}
	}
}

func (s *Server) readEvents(ctx context.Context, ws *wsConn, sess *state.Session) {
	log := logging.FromContext(ctx, s.log)
	validate := s.router.Validator
	for {
		var req eventRequest
		if err := ws.conn.ReadJSON(&req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug(ctx, "websocket read failed", logging.Err(err))
			}
			return
		}

		err := validate.Validate(&req)
		if err == nil {
			var ev state.Event
			if ev, err = req.toEvent(); err == nil {
				_, err = sess.Apply(ctx, ev)
			}
		}
		if err != nil {
			msg := wsMessage{Type: wsTypeError, Error: err.Error(), Code: StatusCode(err), Timestamp: time.Now()}
			if werr := ws.send(msg); werr != nil {
				return
			}
		}
	}
}

func (s *Server) sceneMessage(vs state.ViewState) wsMessage {
	scene := render.Build(vs, s.store)
	return wsMessage{Type: wsTypeScene, Scene: &scene, Timestamp: time.Now()}
}
