package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/FocuswithJustin/versewatch/core/engine"
	"github.com/FocuswithJustin/versewatch/core/errors"
	"github.com/FocuswithJustin/versewatch/core/translation"
	"github.com/FocuswithJustin/versewatch/internal/logging"
	"github.com/FocuswithJustin/versewatch/internal/metrics"
	"github.com/FocuswithJustin/versewatch/internal/report"
	"github.com/FocuswithJustin/versewatch/internal/session"
)

func TestMain(m *testing.M) {
	logging.SetLogger(logging.Discard())
	os.Exit(m.Run())
}

type testResponse struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *APIError       `json:"error"`
	Meta    *APIMeta        `json:"meta"`
}

func newTestServer(t *testing.T, cfg Config) (*Server, *httptest.Server) {
	t.Helper()
	e := engine.New(translation.NewDefaultStore(), engine.Options{})
	mgr := session.NewManager(e, session.Options{})

	reg := prometheus.NewRegistry()
	cfg.Metrics = metrics.NewMetrics(reg)
	cfg.Gatherer = reg
	cfg.Version = "test"

	s, err := New(cfg, e, mgr)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		ts.Close()
		cancel()
	})
	return s, ts
}

func call(t *testing.T, ts *httptest.Server, method, path, body string, header ...string) (int, testResponse) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, ts.URL+path, r)
	if err != nil {
		t.Fatal(err)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	resp, err := ts.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	var out testResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("%s %s: decoding response: %v", method, path, err)
	}
	return resp.StatusCode, out
}

func decodeData[T any](t *testing.T, resp testResponse) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(resp.Data, &v); err != nil {
		t.Fatalf("decoding data %s: %v", resp.Data, err)
	}
	return v
}

func TestRootAndHealth(t *testing.T) {
	_, ts := newTestServer(t, Config{})

	status, resp := call(t, ts, http.MethodGet, "/", "")
	if status != http.StatusOK || !resp.Success {
		t.Fatalf("GET / = %d %+v", status, resp)
	}
	root := decodeData[map[string]any](t, resp)
	if root["name"] != "VerseWatch API" {
		t.Errorf("name = %v, want VerseWatch API", root["name"])
	}

	status, resp = call(t, ts, http.MethodGet, "/health", "")
	if status != http.StatusOK {
		t.Fatalf("GET /health = %d", status)
	}
	health := decodeData[HealthInfo](t, resp)
	if health.Status != "ok" || health.Version != "test" {
		t.Errorf("health = %+v", health)
	}
	if resp.Meta == nil || resp.Meta.Timestamp == "" {
		t.Error("meta.timestamp missing")
	}

	status, resp = call(t, ts, http.MethodGet, "/nope", "")
	if status != http.StatusNotFound || resp.Success || resp.Error.Code != "NOT_FOUND" {
		t.Errorf("GET /nope = %d %+v", status, resp.Error)
	}
}

func TestTranslations(t *testing.T) {
	_, ts := newTestServer(t, Config{})

	status, resp := call(t, ts, http.MethodGet, "/translations", "")
	if status != http.StatusOK {
		t.Fatalf("GET /translations = %d", status)
	}
	infos := decodeData[[]TranslationInfo](t, resp)
	found := false
	for _, info := range infos {
		if info.ID == translation.DefaultID {
			found = true
		}
	}
	if !found {
		t.Errorf("translations %+v lack %q", infos, translation.DefaultID)
	}
	if resp.Meta.Total != len(infos) {
		t.Errorf("meta.total = %d, want %d", resp.Meta.Total, len(infos))
	}
}

func TestLookup(t *testing.T) {
	_, ts := newTestServer(t, Config{})

	tests := []struct {
		query   string
		status  int
		display string
		code    string
	}{
		{"ref=" + url.QueryEscape("John 3:16"), http.StatusOK, "John 3:16", ""},
		{"translation=kjv&ref=" + url.QueryEscape("1 Corinthians 13:4-7"), http.StatusOK, "1 Corinthians 13:4-7", ""},
		{"", http.StatusBadRequest, "", "INVALID_INPUT"},
		{"ref=" + url.QueryEscape("not a ref"), http.StatusBadRequest, "", "INVALID_INPUT"},
		{"ref=" + url.QueryEscape("Romans 4:11"), http.StatusNotFound, "", "NOT_FOUND"},
		{"translation=nope&ref=" + url.QueryEscape("John 3:16"), http.StatusNotFound, "", "NOT_FOUND"},
		{"translation=..%2Fx&ref=" + url.QueryEscape("John 3:16"), http.StatusBadRequest, "", "INVALID_INPUT"},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			status, resp := call(t, ts, http.MethodGet, "/lookup?"+tt.query, "")
			if status != tt.status {
				t.Fatalf("status = %d, want %d (%+v)", status, tt.status, resp.Error)
			}
			if tt.code != "" {
				if resp.Error == nil || resp.Error.Code != tt.code {
					t.Errorf("error = %+v, want code %s", resp.Error, tt.code)
				}
				return
			}
			ref := decodeData[struct {
				Display string `json:"displayRef"`
				Text    string `json:"verseText"`
			}](t, resp)
			if ref.Display != tt.display || ref.Text == "" {
				t.Errorf("ref = %+v, want %q with text", ref, tt.display)
			}
		})
	}
}

func TestDetectCarriesCallerContext(t *testing.T) {
	_, ts := newTestServer(t, Config{})

	status, resp := call(t, ts, http.MethodPost, "/detect", `{"text":"Turn with me to Romans 4:17"}`)
	if status != http.StatusOK {
		t.Fatalf("POST /detect = %d %+v", status, resp.Error)
	}
	first := decodeData[DetectResponse](t, resp)
	if len(first.Direct) != 1 || first.Direct[0].Display != "Romans 4:17" {
		t.Fatalf("direct = %+v", first.Direct)
	}

	ctxJSON, _ := json.Marshal(first.Context)
	status, resp = call(t, ts, http.MethodPost, "/detect",
		fmt.Sprintf(`{"text":"and verse 20","context":%s}`, ctxJSON))
	if status != http.StatusOK {
		t.Fatalf("POST /detect = %d %+v", status, resp.Error)
	}
	second := decodeData[DetectResponse](t, resp)
	if len(second.Direct) != 1 || second.Direct[0].Display != "Romans 4:20" {
		t.Errorf("direct = %+v, want Romans 4:20", second.Direct)
	}

	// Without the context the follow-up resolves nothing.
	_, resp = call(t, ts, http.MethodPost, "/detect", `{"text":"and verse 20"}`)
	if got := decodeData[DetectResponse](t, resp); len(got.Direct) != 0 {
		t.Errorf("direct without context = %+v, want none", got.Direct)
	}

	status, _ = call(t, ts, http.MethodPost, "/detect", `{"text":"x","bogus":1}`)
	if status != http.StatusBadRequest {
		t.Errorf("unknown field status = %d, want 400", status)
	}
}

func TestSessionLifecycle(t *testing.T) {
	_, ts := newTestServer(t, Config{})

	status, resp := call(t, ts, http.MethodPost, "/sessions", "")
	if status != http.StatusCreated {
		t.Fatalf("POST /sessions = %d %+v", status, resp.Error)
	}
	info := decodeData[session.Info](t, resp)
	base := "/sessions/" + info.ID

	var last session.Result
	for _, text := range []string{"Turn with me to Romans 4:17", "and verse 20"} {
		status, resp = call(t, ts, http.MethodPost, base+"/fragments", fmt.Sprintf(`{"text":%q}`, text))
		if status != http.StatusOK {
			t.Fatalf("POST fragments = %d %+v", status, resp.Error)
		}
		last = decodeData[session.Result](t, resp)
	}
	if len(last.Direct) != 1 || last.Direct[0].Display != "Romans 4:20" {
		t.Errorf("second fragment = %+v, want Romans 4:20", last.Direct)
	}

	_, resp = call(t, ts, http.MethodGet, base, "")
	if got := decodeData[session.Info](t, resp); got.Segments != 2 || got.Context.StartVerse != 20 {
		t.Errorf("session = %+v", got)
	}

	_, resp = call(t, ts, http.MethodGet, "/sessions", "")
	if resp.Meta.Total != 1 {
		t.Errorf("GET /sessions total = %d, want 1", resp.Meta.Total)
	}

	status, resp = call(t, ts, http.MethodGet, base+"/report?segment="+last.SegmentID+"&interim=so", "")
	if status != http.StatusOK {
		t.Fatalf("GET report = %d %+v", status, resp.Error)
	}
	p := decodeData[report.Payload](t, resp)
	if len(p.Segments) != 2 || len(p.References.Direct) != 2 || p.Interim == nil {
		t.Errorf("report = %+v", p)
	}

	status, _ = call(t, ts, http.MethodGet, base+"/report", "")
	if status != http.StatusBadRequest {
		t.Errorf("report without segment = %d, want 400", status)
	}
	status, _ = call(t, ts, http.MethodGet, base+"/report?segment=missing", "")
	if status != http.StatusNotFound {
		t.Errorf("report for unknown segment = %d, want 404", status)
	}

	_, resp = call(t, ts, http.MethodGet, base+"/export", "")
	if tr := decodeData[report.Transcript](t, resp); len(tr.Segments) != 2 {
		t.Errorf("export segments = %d, want 2", len(tr.Segments))
	}

	status, resp = call(t, ts, http.MethodPost, base+"/reset", "")
	if status != http.StatusOK {
		t.Fatalf("POST reset = %d", status)
	}
	if got := decodeData[session.Info](t, resp); !got.Context.IsZero() {
		t.Errorf("context after reset = %+v", got.Context)
	}

	status, _ = call(t, ts, http.MethodDelete, base, "")
	if status != http.StatusOK {
		t.Fatalf("DELETE = %d", status)
	}
	status, _ = call(t, ts, http.MethodGet, base, "")
	if status != http.StatusNotFound {
		t.Errorf("GET after DELETE = %d, want 404", status)
	}
	status, _ = call(t, ts, http.MethodPost, base+"/fragments", `{"text":"John 3:16"}`)
	if status != http.StatusNotFound {
		t.Errorf("fragment after DELETE = %d, want 404", status)
	}
}

func TestSessionRequestErrors(t *testing.T) {
	_, ts := newTestServer(t, Config{MaxFragmentBytes: 32})

	_, resp := call(t, ts, http.MethodPost, "/sessions", `{"translation":"nope"}`)
	id := decodeData[session.Info](t, resp).ID

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		status int
		code   string
	}{
		{"bad translation id", http.MethodPost, "/sessions", `{"translation":"bad/id"}`, http.StatusBadRequest, "INVALID_INPUT"},
		{"missing body", http.MethodPost, "/sessions/" + id + "/fragments", "", http.StatusBadRequest, "INVALID_INPUT"},
		{"bad json", http.MethodPost, "/sessions/" + id + "/fragments", `{"text":`, http.StatusBadRequest, "INVALID_INPUT"},
		{"too large", http.MethodPost, "/sessions/" + id + "/fragments", `{"text":"` + strings.Repeat("a", 40) + `"}`, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE"},
		{"unknown translation", http.MethodPost, "/sessions/" + id + "/fragments", `{"text":"John 3:16"}`, http.StatusNotFound, "NOT_FOUND"},
		{"unknown session", http.MethodPost, "/sessions/missing/reset", "", http.StatusNotFound, "NOT_FOUND"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, resp := call(t, ts, tt.method, tt.path, tt.body)
			if status != tt.status {
				t.Fatalf("status = %d, want %d (%+v)", status, tt.status, resp.Error)
			}
			if resp.Error == nil || resp.Error.Code != tt.code {
				t.Errorf("error = %+v, want code %s", resp.Error, tt.code)
			}
		})
	}
}

func TestErrorStatus(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{errors.NewValidation("text", "bad"), http.StatusBadRequest, "INVALID_INPUT"},
		{errors.NewNotFound("translation", "x"), http.StatusNotFound, "NOT_FOUND"},
		{errors.NewVerseNotFound("John", 3, 99), http.StatusNotFound, "NOT_FOUND"},
		{errors.NewParse("svjson", "books", "missing"), http.StatusUnprocessableEntity, "MALFORMED_TRANSLATION"},
		{errors.NewSource("http", "web", io.ErrUnexpectedEOF), http.StatusServiceUnavailable, "SOURCE_UNAVAILABLE"},
		{fmt.Errorf("load: %w", context.DeadlineExceeded), http.StatusGatewayTimeout, "TIMEOUT"},
		{errBodyTooLarge, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE"},
		{io.ErrClosedPipe, http.StatusInternalServerError, "INTERNAL_ERROR"},
	}
	for _, tt := range tests {
		status, code := errorStatus(tt.err)
		if status != tt.status || code != tt.code {
			t.Errorf("errorStatus(%v) = %d %s, want %d %s", tt.err, status, code, tt.status, tt.code)
		}
	}
}

func TestMalformedTranslation(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(dir+"/broken.svjson", []byte(`{"name":"Broken"}`), 0o644); err != nil {
		t.Fatal(err)
	}
	e := engine.New(translation.NewStore(translation.NewDirSource(dir), translation.StoreOptions{}), engine.Options{})
	reg := prometheus.NewRegistry()
	s, err := New(Config{Metrics: metrics.NewMetrics(reg), Gatherer: reg}, e, session.NewManager(e, session.Options{}))
	if err != nil {
		t.Fatal(err)
	}
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	status, resp := call(t, ts, http.MethodGet, "/lookup?translation=broken&ref=Jude+1:1", "")
	if status != http.StatusUnprocessableEntity || resp.Error.Code != "MALFORMED_TRANSLATION" {
		t.Errorf("lookup in malformed translation = %d %+v", status, resp.Error)
	}
}

func TestSecurityHeadersAndCORS(t *testing.T) {
	_, ts := newTestServer(t, Config{AllowedOrigins: []string{"https://app.example"}})

	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/health", nil)
	req.Header.Set("Origin", "https://app.example")
	resp, err := ts.Client().Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "https://app.example" {
		t.Errorf("Allow-Origin = %q", got)
	}
	if got := resp.Header.Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q", got)
	}
	if resp.Header.Get("X-Request-ID") == "" {
		t.Error("X-Request-ID missing")
	}

	req, _ = http.NewRequest(http.MethodOptions, ts.URL+"/sessions", nil)
	req.Header.Set("Origin", "https://evil.example")
	resp, err = ts.Client().Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("preflight from unknown origin = %d, want 403", resp.StatusCode)
	}
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("Allow-Origin for unknown origin = %q", got)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	_, ts := newTestServer(t, Config{})

	resp, err := ts.Client().Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET /metrics = %d", resp.StatusCode)
	}
	if !strings.Contains(string(body), "versewatch_websocket_clients") {
		t.Errorf("metrics output lacks versewatch_websocket_clients:\n%s", body)
	}
}

func TestNewRejectsWeakAPIKey(t *testing.T) {
	e := engine.New(translation.NewDefaultStore(), engine.Options{})
	_, err := New(Config{Auth: AuthConfig{Enabled: true, APIKey: "short"}}, e, session.NewManager(e, session.Options{}))
	if err == nil {
		t.Error("New() accepted a short API key")
	}
}
