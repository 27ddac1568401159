package server_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	json "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/xkilldash9x/docent/api/schemas"
	"github.com/xkilldash9x/docent/internal/config"
	"github.com/xkilldash9x/docent/internal/dom"
	"github.com/xkilldash9x/docent/internal/executor"
	"github.com/xkilldash9x/docent/internal/orchestrator"
	"github.com/xkilldash9x/docent/internal/resolve"
	"github.com/xkilldash9x/docent/internal/server"
	"github.com/xkilldash9x/docent/internal/snapshot"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const serverPage = `<!DOCTYPE html>
<html>
<head><title>Ada Lovelace</title></head>
<body>
  <header id="hero">
    <h1>Ada Lovelace</h1>
    <p>Analyst, metaphysician, and founder of scientific computing.</p>
  </header>
  <section id="contact">
    <h2>Contact</h2>
    <form id="contact-form">
      <input type="text" name="name" placeholder="Your name">
      <button type="submit">Send</button>
    </form>
  </section>
  <div id="docent-widget">
    <textarea name="docent-input"></textarea>
    <button type="button">Send</button>
  </div>
</body>
</html>`

var testClient = &http.Client{
	Transport: &http.Transport{DisableKeepAlives: true},
	Timeout:   5 * time.Second,
}

// planStub replays scripted responses, mirroring the loop the server hosts.
type planStub struct {
	mu     sync.Mutex
	calls  int
	script []planStep
}

type planStep struct {
	resp schemas.PlanResponse
	err  error
}

func (p *planStub) Plan(_ context.Context, req *schemas.PlanRequest) (*schemas.PlanResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if len(p.script) == 0 {
		return &schemas.PlanResponse{}, nil
	}
	step := p.script[0]
	p.script = p.script[1:]
	if step.err != nil {
		return nil, step.err
	}
	resp := step.resp
	return &resp, nil
}

func (p *planStub) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

// planFunc adapts a function to the PlanningService interface.
type planFunc func(ctx context.Context, req *schemas.PlanRequest) (*schemas.PlanResponse, error)

func (f planFunc) Plan(ctx context.Context, req *schemas.PlanRequest) (*schemas.PlanResponse, error) {
	return f(ctx, req)
}

type testServer struct {
	base string
	addr string
	doc  *dom.Document
}

func startServer(t *testing.T, p schemas.PlanningService, mutate func(*config.ServerConfig)) *testServer {
	t.Helper()

	doc, err := dom.Load(strings.NewReader(serverPage), dom.Options{
		URL:            "http://localhost:8321/",
		ViewportHeight: 200,
	}, nil)
	require.NoError(t, err)

	reg := executor.NewRegistry(doc, resolve.NewResolver(doc, nil), executor.NewHighlighter(doc, time.Minute), nil)
	t.Cleanup(reg.Stop)

	engineCfg := config.EngineConfig{
		MaxActionsPerTurn: 3,
		TranscriptWindow:  40,
		PlannerWindow:     12,
		HighlightMs:       2600,
		ViewportWidth:     1280,
		ViewportHeight:    200,
	}
	engine, err := orchestrator.New(engineCfg, zap.NewNop(), snapshot.NewExtractor(doc, nil), reg, p)
	require.NoError(t, err)

	cfg := config.ServerConfig{
		Host:            "127.0.0.1",
		Port:            0,
		RateLimit:       100,
		RateBurst:       100,
		ShutdownTimeout: 2 * time.Second,
	}
	if mutate != nil {
		mutate(&cfg)
	}

	srv, err := server.New(cfg, zap.NewNop(), engine, snapshot.NewExtractor(doc, nil), p)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- srv.Start(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Error("server did not shut down in time")
		}
	})

	var addr string
	require.Eventually(t, func() bool {
		addr = srv.ListenAddr()
		return addr != ""
	}, 2*time.Second, 10*time.Millisecond, "server never bound its listener")

	return &testServer{base: "http://" + addr, addr: addr, doc: doc}
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := testClient.Post(url, "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestServer_Healthz(t *testing.T) {
	ts := startServer(t, &planStub{}, nil)

	resp, err := testClient.Get(ts.base + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "OK", string(body))
}

func TestServer_ChatEndpoint(t *testing.T) {
	stub := &planStub{script: []planStep{
		{resp: schemas.PlanResponse{AssistantMessage: "The page belongs to Ada Lovelace."}},
	}}
	ts := startServer(t, stub, nil)

	req := schemas.PlanRequest{
		Message:      "whose page is this?",
		PageSnapshot: schemas.PageSnapshot{URL: "http://localhost:8321/"},
	}
	resp := postJSON(t, ts.base+"/api/v1/chat", req)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	plan := decodeBody[schemas.PlanResponse](t, resp)
	assert.Equal(t, "The page belongs to Ada Lovelace.", plan.AssistantMessage)
	assert.False(t, plan.AwaitingToolResults)
}

func TestServer_ChatEndpointErrorMapping(t *testing.T) {
	providerMsg := "The assistant is out of API quota right now. Please try again later."
	stub := &planStub{script: []planStep{
		{err: &schemas.ValidationError{Field: "message", Reason: "must not be empty"}},
		{err: errors.New(providerMsg)},
	}}
	ts := startServer(t, stub, nil)

	req := schemas.PlanRequest{PageSnapshot: schemas.PageSnapshot{URL: "http://localhost:8321/"}}
	resp := postJSON(t, ts.base+"/api/v1/chat", req)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	envelope := decodeBody[schemas.ErrorResponse](t, resp)
	assert.Equal(t, schemas.ErrCodeBadRequest, envelope.Code)
	assert.Contains(t, envelope.Message, "message")

	req.Message = "anything"
	resp = postJSON(t, ts.base+"/api/v1/chat", req)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	envelope = decodeBody[schemas.ErrorResponse](t, resp)
	assert.Equal(t, schemas.ErrCodeProviderFailure, envelope.Code)
	assert.Equal(t, providerMsg, envelope.Message)

	// A body that is not JSON never reaches the planning service.
	before := stub.callCount()
	httpResp, err := testClient.Post(ts.base+"/api/v1/chat", "application/json", strings.NewReader("{not json"))
	require.NoError(t, err)
	httpResp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, httpResp.StatusCode)
	assert.Equal(t, before, stub.callCount())
}

func TestServer_TurnEndpoint(t *testing.T) {
	stub := &planStub{script: []planStep{
		{resp: schemas.PlanResponse{
			AssistantMessage: "Taking you to the contact form.",
			ToolCalls: []schemas.ActionRequest{{
				Name: schemas.ActionNavigateToSection,
				Args: map[string]any{"sectionId": "contact"},
			}},
			AwaitingToolResults: true,
		}},
		{resp: schemas.PlanResponse{AssistantMessage: "You're at the contact form."}},
	}}
	ts := startServer(t, stub, nil)

	resp := postJSON(t, ts.base+"/api/v1/turn", schemas.TurnRequest{Message: "go to contact"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	reply := decodeBody[schemas.TurnReply](t, resp)
	assert.Equal(t, "You're at the contact form.", reply.Reply)
	require.Len(t, reply.Results, 1)
	assert.True(t, reply.Results[0].Success)
	require.Len(t, reply.Timeline, 1)
	assert.Equal(t, schemas.FlowSuccess, reply.Timeline[0].Status)

	// The turn ran against the hosted tree.
	assert.Equal(t, "contact", ts.doc.Fragment())

	resp = postJSON(t, ts.base+"/api/v1/turn", schemas.TurnRequest{Message: "  "})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	envelope := decodeBody[schemas.ErrorResponse](t, resp)
	assert.Equal(t, schemas.ErrCodeBadRequest, envelope.Code)
}

func TestServer_TurnEndpointConflict(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	blocking := planFunc(func(context.Context, *schemas.PlanRequest) (*schemas.PlanResponse, error) {
		close(entered)
		<-release
		return &schemas.PlanResponse{AssistantMessage: "done"}, nil
	})
	ts := startServer(t, blocking, nil)

	payload, err := json.Marshal(schemas.TurnRequest{Message: "slow turn"})
	require.NoError(t, err)

	var firstStatus int
	var firstErr error
	firstDone := make(chan struct{})
	go func() {
		defer close(firstDone)
		resp, err := testClient.Post(ts.base+"/api/v1/turn", "application/json", bytes.NewReader(payload))
		if err != nil {
			firstErr = err
			return
		}
		resp.Body.Close()
		firstStatus = resp.StatusCode
	}()

	<-entered
	resp := postJSON(t, ts.base+"/api/v1/turn", schemas.TurnRequest{Message: "eager turn"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	envelope := decodeBody[schemas.ErrorResponse](t, resp)
	assert.Equal(t, schemas.ErrCodeTurnInFlight, envelope.Code)

	close(release)
	<-firstDone
	require.NoError(t, firstErr)
	assert.Equal(t, http.StatusOK, firstStatus)
}

func TestServer_SnapshotEndpoint(t *testing.T) {
	ts := startServer(t, &planStub{}, nil)

	resp, err := testClient.Get(ts.base + "/api/v1/snapshot")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	snap := decodeBody[schemas.PageSnapshot](t, resp)

	assert.Equal(t, "http://localhost:8321/", snap.URL)
	assert.Equal(t, "Ada Lovelace", snap.Title)
	var ids []string
	for _, section := range snap.Sections {
		ids = append(ids, section.ID)
	}
	assert.Contains(t, ids, "contact")
}

func TestServer_FlowStream(t *testing.T) {
	stub := &planStub{script: []planStep{
		{resp: schemas.PlanResponse{
			ToolCalls: []schemas.ActionRequest{{
				Name: schemas.ActionNavigateToSection,
				Args: map[string]any{"sectionId": "contact"},
			}},
			AwaitingToolResults: true,
		}},
		{resp: schemas.PlanResponse{AssistantMessage: "There you go."}},
	}}
	ts := startServer(t, stub, nil)

	conn, wsResp, err := websocket.DefaultDialer.Dial("ws://"+ts.addr+"/api/v1/flow", nil)
	require.NoError(t, err)
	if wsResp != nil {
		wsResp.Body.Close()
	}
	defer conn.Close()

	resp := postJSON(t, ts.base+"/api/v1/turn", schemas.TurnRequest{Message: "show me contact"})
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	readEvent := func() server.FlowEvent {
		t.Helper()
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		_, payload, err := conn.ReadMessage()
		require.NoError(t, err)
		var ev server.FlowEvent
		require.NoError(t, json.Unmarshal(payload, &ev))
		return ev
	}

	running := readEvent()
	assert.Equal(t, server.EventFlow, running.Type)
	require.NotNil(t, running.Entry)
	assert.Equal(t, schemas.FlowRunning, running.Entry.Status)
	assert.Equal(t, `navigate_to_section "contact"`, running.Entry.Label)

	settled := readEvent()
	assert.Equal(t, server.EventFlow, settled.Type)
	require.NotNil(t, settled.Entry)
	assert.Equal(t, schemas.FlowSuccess, settled.Entry.Status)
	assert.Equal(t, running.Entry.ID, settled.Entry.ID)

	final := readEvent()
	assert.Equal(t, server.EventReply, final.Type)
	assert.Equal(t, "There you go.", final.Reply)
}

func TestServer_RateLimit(t *testing.T) {
	ts := startServer(t, &planStub{}, func(cfg *config.ServerConfig) {
		cfg.RateLimit = 1
		cfg.RateBurst = 1
	})

	resp, err := testClient.Get(ts.base + "/api/v1/snapshot")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = testClient.Get(ts.base + "/api/v1/snapshot")
	require.NoError(t, err)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	envelope := decodeBody[schemas.ErrorResponse](t, resp)
	assert.Equal(t, schemas.ErrCodeRateLimited, envelope.Code)
}

func TestServer_CORSPreflight(t *testing.T) {
	ts := startServer(t, &planStub{}, nil)

	req, err := http.NewRequest(http.MethodOptions, ts.base+"/api/v1/chat", nil)
	require.NoError(t, err)
	resp, err := testClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Contains(t, resp.Header.Get("Access-Control-Allow-Methods"), "POST")
}
