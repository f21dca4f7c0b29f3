package server

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tessera-dev/tessera/pkg/protocol"
)

const (
	wsWriteTimeout   = 10 * time.Second
	wsMaxMessageSize = 64 * 1024
)

// wsConn is one live websocket client.
type wsConn struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func (c *wsConn) write(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return c.conn.WriteMessage(websocket.BinaryMessage, data)
}

// hub tracks live connections and fans engagement events out to them.
type hub struct {
	logger *slog.Logger

	mu    sync.Mutex
	conns map[*wsConn]struct{}
}

func newHub(logger *slog.Logger) *hub {
	return &hub{
		logger: logger.With("component", "hub"),
		conns:  make(map[*wsConn]struct{}),
	}
}

func (h *hub) add(c *wsConn) {
	h.mu.Lock()
	h.conns[c] = struct{}{}
	h.mu.Unlock()
}

func (h *hub) remove(c *wsConn) {
	h.mu.Lock()
	delete(h.conns, c)
	h.mu.Unlock()
}

func (h *hub) closeAll() {
	h.mu.Lock()
	conns := make([]*wsConn, 0, len(h.conns))
	for c := range h.conns {
		conns = append(conns, c)
	}
	h.conns = make(map[*wsConn]struct{})
	h.mu.Unlock()

	for _, c := range conns {
		c.conn.Close()
	}
}

// broadcast pushes one engagement event to every live connection.
func (h *hub) broadcast(event, entityID, actorID string) {
	data, err := protocol.EncodeFrame(&protocol.Frame{
		Type: protocol.FrameNotify,
		Payload: protocol.EncodeNotification(&protocol.Notification{
			Event:    event,
			EntityID: entityID,
			ActorID:  actorID,
			UnixMs:   uint64(time.Now().UnixMilli()),
		}),
	})
	if err != nil {
		h.logger.Warn("encode notification failed", "error", err)
		return
	}

	h.mu.Lock()
	conns := make([]*wsConn, 0, len(h.conns))
	for c := range h.conns {
		conns = append(conns, c)
	}
	h.mu.Unlock()

	for _, c := range conns {
		if err := c.write(data); err != nil {
			h.logger.Debug("notification write failed", "error", err)
		}
	}
}

// handleLive upgrades the connection and serves protocol frames until the
// client hangs up.
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	actor := actorID(r)
	if q := r.URL.Query().Get("actor"); q != "" {
		actor = q
	}

	c := &wsConn{conn: conn}
	s.hub.add(c)
	defer func() {
		s.hub.remove(c)
		conn.Close()
	}()

	conn.SetReadLimit(wsMaxMessageSize)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Debug("websocket read ended", "error", err)
			}
			return
		}

		frame, err := protocol.DecodeFrame(data)
		if err != nil {
			s.logger.Warn("dropping malformed frame", "error", err)
			continue
		}

		switch frame.Type {
		case protocol.FrameRequest:
			s.serveRequestFrame(c, actor, frame.Payload)
		case protocol.FramePing:
			// Client liveness probe, nothing to do.
		default:
			s.logger.Warn("dropping unexpected frame", "type", frame.Type.String())
		}
	}
}

// serveRequestFrame executes one service call and writes the correlated
// response.
func (s *Server) serveRequestFrame(c *wsConn, actor string, payload []byte) {
	req, err := protocol.DecodeRequest(payload)
	if err != nil {
		s.logger.Warn("dropping malformed request", "error", err)
		return
	}

	resp := &protocol.Response{ID: req.ID}
	switch req.Op {
	case protocol.OpActivate:
		if req.EntityID == "" {
			resp.Err = "missing entity id"
			break
		}
		st := s.store.Activate(actor, req.EntityID)
		resp.OK = true
		resp.Active = st.Active
		resp.Count = uint64(st.Count)
		s.hub.broadcast("activate", req.EntityID, actor)

	case protocol.OpDeactivate:
		if req.EntityID == "" {
			resp.Err = "missing entity id"
			break
		}
		st := s.store.Deactivate(actor, req.EntityID)
		resp.OK = true
		resp.Active = st.Active
		resp.Count = uint64(st.Count)
		s.hub.broadcast("deactivate", req.EntityID, actor)

	case protocol.OpStatus:
		if req.EntityID == "" {
			resp.Err = "missing entity id"
			break
		}
		st := s.store.Status(actor, req.EntityID)
		resp.OK = true
		resp.Active = st.Active
		resp.Count = uint64(st.Count)

	case protocol.OpMarkRead:
		resp.OK = true
		resp.Marked = uint64(s.store.MarkRead(actor, req.ItemIDs))

	default:
		resp.Err = "unknown operation"
	}

	data, err := protocol.EncodeFrame(&protocol.Frame{
		Type:    protocol.FrameResponse,
		Payload: protocol.EncodeResponse(resp),
	})
	if err != nil {
		s.logger.Warn("encode response failed", "error", err)
		return
	}
	if err := c.write(data); err != nil {
		s.logger.Debug("response write failed", "error", err)
	}
}
