package ws

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tessera-dev/tessera/pkg/protocol"
)

var testUpgrader = websocket.Upgrader{}

// fakeServer upgrades one connection and answers request frames with the
// given handler. Returned frames are written back as responses.
func fakeServer(t *testing.T, handle func(req *protocol.Request) *protocol.Response) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()

		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			frame, err := protocol.DecodeFrame(data)
			if err != nil || frame.Type != protocol.FrameRequest {
				continue
			}
			req, err := protocol.DecodeRequest(frame.Payload)
			if err != nil {
				continue
			}
			resp := handle(req)
			resp.ID = req.ID
			out, err := protocol.EncodeFrame(&protocol.Frame{
				Type:    protocol.FrameResponse,
				Payload: protocol.EncodeResponse(resp),
			})
			if err != nil {
				t.Errorf("encode frame: %v", err)
				return
			}
			if err := conn.WriteMessage(websocket.BinaryMessage, out); err != nil {
				return
			}
		}
	}))
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestToggleCalls(t *testing.T) {
	srv := fakeServer(t, func(req *protocol.Request) *protocol.Response {
		switch req.Op {
		case protocol.OpActivate:
			return &protocol.Response{OK: true, Active: true, Count: 5}
		case protocol.OpDeactivate:
			return &protocol.Response{OK: true, Active: false, Count: 4}
		case protocol.OpStatus:
			return &protocol.Response{OK: true, Active: true, Count: 9}
		default:
			return &protocol.Response{Err: "bad op"}
		}
	})
	defer srv.Close()

	c, err := Dial(context.Background(), wsURL(srv), WithLogger(quietLogger()))
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer c.Close()

	st, err := c.Activate(context.Background(), "u1")
	if err != nil {
		t.Fatalf("Activate: %v", err)
	}
	if !st.Active || st.Count != 5 {
		t.Errorf("Activate = %+v, want {true 5}", st)
	}

	st, err = c.Deactivate(context.Background(), "u1")
	if err != nil {
		t.Fatalf("Deactivate: %v", err)
	}
	if st.Active || st.Count != 4 {
		t.Errorf("Deactivate = %+v, want {false 4}", st)
	}

	st, err = c.Status(context.Background(), "u1")
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if !st.Active || st.Count != 9 {
		t.Errorf("Status = %+v, want {true 9}", st)
	}
}

func TestMarkRead(t *testing.T) {
	srv := fakeServer(t, func(req *protocol.Request) *protocol.Response {
		if req.Op != protocol.OpMarkRead {
			return &protocol.Response{Err: "bad op"}
		}
		return &protocol.Response{OK: true, Marked: uint64(len(req.ItemIDs))}
	})
	defer srv.Close()

	c, err := Dial(context.Background(), wsURL(srv), WithLogger(quietLogger()))
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer c.Close()

	n, err := c.MarkRead(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("MarkRead: %v", err)
	}
	if n != 2 {
		t.Errorf("MarkRead = %d, want 2", n)
	}
}

func TestServerErrorSurfaced(t *testing.T) {
	srv := fakeServer(t, func(req *protocol.Request) *protocol.Response {
		return &protocol.Response{OK: false, Err: "entity not found"}
	})
	defer srv.Close()

	c, err := Dial(context.Background(), wsURL(srv), WithLogger(quietLogger()))
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer c.Close()

	_, err = c.Status(context.Background(), "missing")
	if err == nil || !strings.Contains(err.Error(), "entity not found") {
		t.Errorf("err = %v, want entity not found", err)
	}
}

func TestConcurrentCallsCorrelate(t *testing.T) {
	srv := fakeServer(t, func(req *protocol.Request) *protocol.Response {
		// Entity id echoed back via count length so each caller can
		// verify it got its own answer.
		return &protocol.Response{OK: true, Active: true, Count: uint64(len(req.EntityID))}
	})
	defer srv.Close()

	c, err := Dial(context.Background(), wsURL(srv), WithLogger(quietLogger()))
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer c.Close()

	entities := []string{"a", "bb", "ccc", "dddd", "eeeee"}
	errCh := make(chan error, len(entities))
	for _, id := range entities {
		go func(id string) {
			st, err := c.Status(context.Background(), id)
			if err == nil && st.Count != len(id) {
				t.Errorf("Status(%s) count = %d, want %d", id, st.Count, len(id))
			}
			errCh <- err
		}(id)
	}
	for range entities {
		if err := <-errCh; err != nil {
			t.Errorf("Status: %v", err)
		}
	}
}

func TestNotificationsDelivered(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()

		out, err := protocol.EncodeFrame(&protocol.Frame{
			Type: protocol.FrameNotify,
			Payload: protocol.EncodeNotification(&protocol.Notification{
				Event:    "like",
				EntityID: "post-1",
				ActorID:  "u7",
				UnixMs:   1234,
			}),
		})
		if err != nil {
			t.Errorf("encode frame: %v", err)
			return
		}
		if err := conn.WriteMessage(websocket.BinaryMessage, out); err != nil {
			return
		}
		// Hold the connection open until the client hangs up.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	got := make(chan *protocol.Notification, 1)
	c, err := Dial(context.Background(), wsURL(srv),
		WithLogger(quietLogger()),
		WithNotificationHandler(func(n *protocol.Notification) { got <- n }))
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer c.Close()

	select {
	case n := <-got:
		if n.Event != "like" || n.EntityID != "post-1" || n.ActorID != "u7" || n.UnixMs != 1234 {
			t.Errorf("notification = %+v", n)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for notification")
	}
}

func TestCallAfterCloseFails(t *testing.T) {
	srv := fakeServer(t, func(req *protocol.Request) *protocol.Response {
		return &protocol.Response{OK: true}
	})
	defer srv.Close()

	c, err := Dial(context.Background(), wsURL(srv), WithLogger(quietLogger()))
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	c.Close()

	if _, err := c.Status(context.Background(), "u1"); err != ErrClosed {
		t.Errorf("err = %v, want ErrClosed", err)
	}
}
