package hmr

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap/zaptest"

	"github.com/withgalaxy/devbridge/internal/testutil"
	"github.com/withgalaxy/devbridge/pkg/async"
	"github.com/withgalaxy/devbridge/pkg/watcher"
)

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timeout waiting for %s", what)
}

func startServer(t *testing.T, p *testutil.FakePackager) (*Server, *watcher.Watcher, string) {
	t.Helper()
	w, err := watcher.New(t.TempDir(), watcher.Options{})
	if err != nil {
		t.Fatalf("watcher.New failed: %v", err)
	}
	t.Cleanup(func() { w.Close() })

	srv := NewServer(p, w, WithLogger(zaptest.NewLogger(t)))
	server := httptest.NewServer(http.HandlerFunc(srv.HandleWebSocket))
	t.Cleanup(server.Close)

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	return srv, w, wsURL
}

func readMessage(t *testing.T, ws *websocket.Conn) Message {
	t.Helper()
	ws.SetReadDeadline(time.Now().Add(time.Second))
	var msg Message
	if err := ws.ReadJSON(&msg); err != nil {
		t.Fatalf("ReadJSON failed: %v", err)
	}
	return msg
}

func TestNewServer(t *testing.T) {
	p := testutil.NewFakePackager()
	srv := NewServer(p, nil)
	if srv == nil {
		t.Fatal("NewServer returned nil")
	}
	if srv.tracker == nil {
		t.Error("session tracker not initialized")
	}
	if srv.builder == nil {
		t.Error("snapshot builder not initialized")
	}
	if srv.Addr() != nil {
		t.Error("expected no address before SetAddr")
	}
}

func TestServerConnectCreatesSession(t *testing.T) {
	p := testutil.NewFakePackager()
	p.AddFile("index.js", "", "App.js")
	p.AddFile("App.js", "")
	srv, w, wsURL := startServer(t, p)

	ws, _, err := websocket.DefaultDialer.Dial(wsURL+"?platform=ios&bundleEntry=index.js", nil)
	if err != nil {
		t.Fatalf("WebSocket dial failed: %v", err)
	}

	waitFor(t, "session", func() bool { return srv.Sessions().Len() == 1 })
	if w.Listeners() != 1 {
		t.Errorf("expected 1 change listener, got %d", w.Listeners())
	}

	ws.Close()
	waitFor(t, "session teardown", func() bool { return srv.Sessions().Len() == 0 })
	waitFor(t, "listener detach", func() bool { return w.Listeners() == 0 })
}

func TestServerPushesUpdateCycle(t *testing.T) {
	p := testutil.NewFakePackager()
	p.AddFile("index.js", "v1", "App.js")
	p.AddFile("App.js", "")
	srv, w, wsURL := startServer(t, p)

	ws, _, err := websocket.DefaultDialer.Dial(wsURL+"?platform=android&bundleEntry=index.js", nil)
	if err != nil {
		t.Fatalf("WebSocket dial failed: %v", err)
	}
	defer ws.Close()
	waitFor(t, "session", func() bool { return srv.Sessions().Len() == 1 })

	p.AddFile("index.js", "v2", "App.js")
	w.Publish("index.js", async.Resolved(watcher.FileState{Path: "index.js", Exists: true}))

	if msg := readMessage(t, ws); msg.Type != MsgTypeUpdateStart {
		t.Fatalf("expected update-start, got %s", msg.Type)
	}
	update := readMessage(t, ws)
	if update.Type != MsgTypeUpdate {
		t.Fatalf("expected update, got %s", update.Type)
	}
	var body UpdateBody
	if err := update.DecodeBody(&body); err != nil {
		t.Fatalf("decode update: %v", err)
	}
	if len(body.Modules) != 1 || body.Modules[0].Name != "index.js" || body.Modules[0].Code != "v2" {
		t.Errorf("unexpected modules %v", body.Modules)
	}
	if msg := readMessage(t, ws); msg.Type != MsgTypeUpdateDone {
		t.Fatalf("expected update-done, got %s", msg.Type)
	}
}

func TestServerDeletedFileFraming(t *testing.T) {
	p := testutil.NewFakePackager()
	p.AddFile("A.js", "", "B.js")
	p.AddFile("B.js", "")
	srv, w, wsURL := startServer(t, p)

	ws, _, err := websocket.DefaultDialer.Dial(wsURL+"?platform=ios&bundleEntry=A.js", nil)
	if err != nil {
		t.Fatalf("WebSocket dial failed: %v", err)
	}
	defer ws.Close()
	waitFor(t, "session", func() bool { return srv.Sessions().Len() == 1 })

	w.Publish("B.js", async.Resolved(watcher.FileState{Path: "B.js"}))

	if msg := readMessage(t, ws); msg.Type != MsgTypeUpdateStart {
		t.Fatalf("expected update-start, got %s", msg.Type)
	}
	if msg := readMessage(t, ws); msg.Type != MsgTypeUpdateDone {
		t.Fatalf("expected update-done, got %s", msg.Type)
	}
}

func TestServerRejectsUnknownEntry(t *testing.T) {
	p := testutil.NewFakePackager()
	srv, _, wsURL := startServer(t, p)

	ws, _, err := websocket.DefaultDialer.Dial(wsURL+"?platform=ios&bundleEntry=missing.js", nil)
	if err != nil {
		t.Fatalf("WebSocket dial failed: %v", err)
	}
	defer ws.Close()

	msg := readMessage(t, ws)
	if msg.Type != MsgTypeError {
		t.Fatalf("expected error, got %s", msg.Type)
	}
	var body ErrorBody
	if err := msg.DecodeBody(&body); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if body.Type != ErrorKindNotFound {
		t.Errorf("expected NotFoundError, got %s", body.Type)
	}

	ws.SetReadDeadline(time.Now().Add(time.Second))
	_, _, err = ws.ReadMessage()
	if !websocket.IsCloseError(err, websocket.CloseInternalServerErr) {
		t.Errorf("expected close 1011, got %v", err)
	}
	if srv.Sessions().Len() != 0 {
		t.Error("rejected connection must not keep a session")
	}
}

func TestServerShutdownClosesSessions(t *testing.T) {
	p := testutil.NewFakePackager()
	p.AddFile("A.js", "")
	srv, _, wsURL := startServer(t, p)

	ws, _, err := websocket.DefaultDialer.Dial(wsURL+"?platform=ios&bundleEntry=A.js", nil)
	if err != nil {
		t.Fatalf("WebSocket dial failed: %v", err)
	}
	defer ws.Close()
	waitFor(t, "session", func() bool { return srv.Sessions().Len() == 1 })

	srv.Shutdown()
	if srv.Sessions().Len() != 0 {
		t.Error("Shutdown must clear sessions")
	}
}
