package http

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/afo-kingdom/chancellor"
	"github.com/afo-kingdom/chancellor/pkg/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) (*httptest.Server, *chancellor.Engine) {
	t.Helper()
	metrics := observability.NewMetrics()
	eng, err := chancellor.New(chancellor.WithLifecycleHooks(metrics.Hooks()))
	require.NoError(t, err)
	srv := httptest.NewServer(NewHandler(eng, WithMetricsHandler(metrics.Handler())))
	t.Cleanup(srv.Close)
	return srv, eng
}

func post(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func get(t *testing.T, url string) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestHealthAndInfo(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := get(t, srv.URL+"/health")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", decode(t, resp)["status"])

	info := decode(t, get(t, srv.URL+"/info"))
	assert.Equal(t, "chancellor-http", info["app"])
	assert.Equal(t, strings.TrimSpace(chancellor.Version), info["version"])
}

func TestRun(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := post(t, srv.URL+"/v1/chancellor/run", `{"text":"restart billing-worker","trace_id":"http-1"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decode(t, resp)
	state := body["state"].(map[string]any)
	assert.Equal(t, "http-1", state["trace_id"])
	assert.Equal(t, "REPORT", state["step"])
	summary := body["summary"].(map[string]any)
	assert.Equal(t, "AUTO_RUN", summary["decision"])
}

func TestRun_BadBody(t *testing.T) {
	srv, _ := newTestServer(t)
	resp := post(t, srv.URL+"/v1/chancellor/run", `{"text":`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, decode(t, resp)["error"], "invalid request body")
}

func TestCheckSovereignty(t *testing.T) {
	srv, _ := newTestServer(t)

	body := decode(t, post(t, srv.URL+"/v1/sovereignty/check", `{"trinity_score":95,"risk_score":5,"gap":0.1}`))
	assert.Equal(t, "AUTO_RUN", body["decision"])
	assert.Equal(t, "R1_AUTO_RUN", body["rule_id"])
	check := body["check"].(map[string]any)
	assert.Equal(t, true, check["all_pass"])

	body = decode(t, post(t, srv.URL+"/v1/sovereignty/check", `{"trinity_score":95,"risk_score":75,"gap":0.1}`))
	assert.Equal(t, "BLOCK", body["decision"])
	verdict := body["verdict"].(map[string]any)
	assert.Equal(t, "ASK", verdict["decision"])

	resp := post(t, srv.URL+"/v1/sovereignty/check", `{"trinity_score":150}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestWeights(t *testing.T) {
	srv, _ := newTestServer(t)
	body := decode(t, get(t, srv.URL+"/v1/trinity/weights"))

	weights := body["weights"].(map[string]any)
	assert.Equal(t, 0.35, weights["truth"])
	thresholds := body["thresholds"].(map[string]any)
	assert.Equal(t, 90.0, thresholds["min_trinity"])
}

func TestCheckpoints(t *testing.T) {
	srv, eng := newTestServer(t)
	_, err := eng.Run(context.Background(), map[string]any{"text": "restart api", "trace_id": "cp-1"})
	require.NoError(t, err)

	list := decode(t, get(t, srv.URL+"/v1/checkpoints"))
	assert.Equal(t, []any{"cp-1"}, list["traces"])

	latest := decode(t, get(t, srv.URL+"/v1/checkpoints/cp-1"))
	assert.Equal(t, "REPORT", latest["step"])

	merge := decode(t, get(t, srv.URL+"/v1/checkpoints/cp-1/merge"))
	assert.Equal(t, "MERGE", merge["step"])

	assert.Equal(t, http.StatusBadRequest, get(t, srv.URL+"/v1/checkpoints/cp-1/NOPE").StatusCode)
	assert.Equal(t, http.StatusNotFound, get(t, srv.URL+"/v1/checkpoints/missing").StatusCode)

	req, _ := http.NewRequest(http.MethodDelete, srv.URL+"/v1/checkpoints/cp-1", nil)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, http.StatusNotFound, get(t, srv.URL+"/v1/checkpoints/cp-1").StatusCode)
}

func TestEventsAndVerdicts(t *testing.T) {
	srv, eng := newTestServer(t)
	_, err := eng.Run(context.Background(), map[string]any{"text": "restart api", "trace_id": "ev-1"})
	require.NoError(t, err)

	events := decode(t, get(t, srv.URL+"/v1/traces/ev-1/events"))["events"].([]any)
	assert.Len(t, events, 18)
	assert.Equal(t, http.StatusNotFound, get(t, srv.URL+"/v1/traces/none/events").StatusCode)

	verdicts := decode(t, get(t, srv.URL+"/v1/verdicts?trace_id=ev-1"))["verdicts"].([]any)
	require.Len(t, verdicts, 1)
	assert.Equal(t, "R1_AUTO_RUN", verdicts[0].(map[string]any)["rule_id"])

	assert.Equal(t, http.StatusBadRequest, get(t, srv.URL+"/v1/verdicts?limit=x").StatusCode)
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)
	post(t, srv.URL+"/v1/chancellor/run", `{"text":"restart api"}`)

	resp := get(t, srv.URL+"/metrics")
	scanner := bufio.NewScanner(resp.Body)
	found := false
	for scanner.Scan() {
		if strings.HasPrefix(scanner.Text(), `chancellor_verdicts_total{decision="AUTO_RUN",rule_id="R1_AUTO_RUN"}`) {
			found = true
		}
	}
	assert.True(t, found)
}

func TestStreamVerdicts(t *testing.T) {
	srv, eng := newTestServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/v1/verdicts/stream?trace_id=sse-2", nil)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	lines := bufio.NewScanner(resp.Body)
	require.True(t, lines.Scan())
	assert.Equal(t, "event: ping", lines.Text())

	// The subscription is registered before the ping is written.
	_, err = eng.Run(ctx, map[string]any{"text": "restart api", "trace_id": "sse-1"})
	require.NoError(t, err)
	_, err = eng.Run(ctx, map[string]any{"text": "restart api", "trace_id": "sse-2"})
	require.NoError(t, err)

	var data string
	for lines.Scan() {
		if strings.HasPrefix(lines.Text(), "data: {") {
			data = strings.TrimPrefix(lines.Text(), "data: ")
			break
		}
	}
	var v map[string]any
	require.NoError(t, json.Unmarshal([]byte(data), &v))
	assert.Equal(t, "sse-2", v["trace_id"])
}

func TestCORSPreflight(t *testing.T) {
	srv, _ := newTestServer(t)
	req, _ := http.NewRequest(http.MethodOptions, srv.URL+"/v1/chancellor/run", nil)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}
