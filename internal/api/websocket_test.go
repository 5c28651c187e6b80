package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func dial(t *testing.T, ts *httptest.Server, query string, header http.Header) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws" + query
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, header)
	if err != nil {
		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		t.Fatalf("Dial(%s) error: %v (status %d)", query, err, status)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) ServerMessage {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var msg ServerMessage
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("ReadJSON() error: %v", err)
	}
	return msg
}

func TestWebSocketSession(t *testing.T) {
	_, ts := newTestServer(t, Config{})
	conn := dial(t, ts, "", nil)

	hello := readMessage(t, conn)
	if hello.Type != MessageSession || hello.Session == nil || hello.SessionID == "" {
		t.Fatalf("first message = %+v, want session info", hello)
	}

	for _, tt := range []struct{ text, want string }{
		{"Turn with me to Romans 4:17", "Romans 4:17"},
		{"and verse 20", "Romans 4:20"},
	} {
		if err := conn.WriteJSON(ClientMessage{Type: MessageFragment, Text: tt.text}); err != nil {
			t.Fatal(err)
		}
		msg := readMessage(t, conn)
		if msg.Type != MessageResult || msg.Result == nil {
			t.Fatalf("reply = %+v, want result", msg)
		}
		if len(msg.Result.Direct) != 1 || msg.Result.Direct[0].Display != tt.want {
			t.Errorf("%q resolved to %+v, want %s", tt.text, msg.Result.Direct, tt.want)
		}
		if msg.SessionID != hello.SessionID {
			t.Errorf("SessionID = %q, want %q", msg.SessionID, hello.SessionID)
		}
	}

	if err := conn.WriteJSON(ClientMessage{Type: MessageReset}); err != nil {
		t.Fatal(err)
	}
	if msg := readMessage(t, conn); msg.Type != MessageReset {
		t.Errorf("reply to reset = %+v", msg)
	}
	if err := conn.WriteJSON(ClientMessage{Type: MessageFragment, Text: "verse 20"}); err != nil {
		t.Fatal(err)
	}
	if msg := readMessage(t, conn); msg.Result == nil || len(msg.Result.Direct) != 0 {
		t.Errorf("after reset = %+v, want no references", msg.Result)
	}
}

func TestWebSocketErrors(t *testing.T) {
	_, ts := newTestServer(t, Config{})
	conn := dial(t, ts, "", nil)
	readMessage(t, conn)

	tests := []struct {
		payload string
		code    string
	}{
		{`not json`, "INVALID_INPUT"},
		{`{"type":"shout"}`, "INVALID_INPUT"},
		{`{"type":"fragment","text":"bad\u0000text"}`, "INVALID_INPUT"},
	}
	for _, tt := range tests {
		if err := conn.WriteMessage(websocket.TextMessage, []byte(tt.payload)); err != nil {
			t.Fatal(err)
		}
		msg := readMessage(t, conn)
		if msg.Type != MessageError || msg.Error == nil || msg.Error.Code != tt.code {
			t.Errorf("%s: reply = %+v, want error %s", tt.payload, msg, tt.code)
		}
	}
}

func TestWebSocketSubscribersShareResults(t *testing.T) {
	_, ts := newTestServer(t, Config{})

	status, resp := call(t, ts, http.MethodPost, "/sessions", "")
	if status != http.StatusCreated {
		t.Fatalf("POST /sessions = %d", status)
	}
	id := decodeData[struct {
		ID string `json:"id"`
	}](t, resp).ID

	a := dial(t, ts, "?session="+id, nil)
	b := dial(t, ts, "?session="+id, nil)
	readMessage(t, a)
	readMessage(t, b)

	// A fragment posted over HTTP reaches both subscribers.
	status, _ = call(t, ts, http.MethodPost, "/sessions/"+id+"/fragments", `{"text":"John 3:16"}`)
	if status != http.StatusOK {
		t.Fatalf("POST fragments = %d", status)
	}
	for i, conn := range []*websocket.Conn{a, b} {
		msg := readMessage(t, conn)
		if msg.Type != MessageResult || len(msg.Result.Direct) != 1 || msg.Result.Direct[0].Display != "John 3:16" {
			t.Errorf("subscriber %d got %+v", i, msg)
		}
	}

	// Other sessions do not see it.
	other := dial(t, ts, "", nil)
	readMessage(t, other)
	call(t, ts, http.MethodDelete, "/sessions/"+id, "")
	for i, conn := range []*websocket.Conn{a, b} {
		if msg := readMessage(t, conn); msg.Type != MessageClosed {
			t.Errorf("subscriber %d got %+v, want closed", i, msg)
		}
	}
	other.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	if _, _, err := other.ReadMessage(); err == nil {
		t.Error("unrelated session received a message")
	}
}

func TestWebSocketUnknownSession(t *testing.T) {
	_, ts := newTestServer(t, Config{})
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws?session=missing"
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err == nil {
		t.Fatal("Dial() succeeded for an unknown session")
	}
	if resp == nil || resp.StatusCode != http.StatusNotFound {
		t.Errorf("handshake response = %v, want 404", resp)
	}
}

func TestWebSocketOrigin(t *testing.T) {
	_, ts := newTestServer(t, Config{AllowedOrigins: []string{"https://app.example"}})

	conn := dial(t, ts, "", http.Header{"Origin": {"https://app.example"}})
	readMessage(t, conn)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, http.Header{"Origin": {"https://evil.example"}})
	if err == nil {
		t.Fatal("Dial() succeeded from a disallowed origin")
	}
	if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Errorf("handshake response = %v, want 403", resp)
	}
}

func TestCheckOrigin(t *testing.T) {
	if checkOrigin(nil) != nil {
		t.Error("checkOrigin(nil) should defer to the same-origin check")
	}
	tests := []struct {
		allowed []string
		origin  string
		want    bool
	}{
		{[]string{"*"}, "https://any.example", true},
		{[]string{"https://a.example"}, "https://a.example", true},
		{[]string{"https://a.example"}, "https://b.example", false},
		{[]string{"https://a.example"}, "", true},
	}
	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodGet, "/ws", nil)
		if tt.origin != "" {
			r.Header.Set("Origin", tt.origin)
		}
		if got := checkOrigin(tt.allowed)(r); got != tt.want {
			t.Errorf("checkOrigin(%v)(%q) = %v, want %v", tt.allowed, tt.origin, got, tt.want)
		}
	}
}

func TestClientCloseUnregisters(t *testing.T) {
	s, ts := newTestServer(t, Config{})
	conn := dial(t, ts, "", nil)
	readMessage(t, conn)
	if got := s.hub.Len(); got != 1 {
		t.Fatalf("hub.Len() = %d, want 1", got)
	}

	conn.Close()
	deadline := time.Now().Add(5 * time.Second)
	for s.hub.Len() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("client still registered after close: %d", s.hub.Len())
		}
		time.Sleep(10 * time.Millisecond)
	}
}
