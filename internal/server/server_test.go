package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mindloom/mindloom/internal/config"
	"github.com/mindloom/mindloom/internal/engine"
	"github.com/mindloom/mindloom/internal/index"
	"github.com/mindloom/mindloom/internal/index/sqlite"
	"github.com/mindloom/mindloom/internal/ontology"
	"github.com/mindloom/mindloom/pkg/types"
)

// newTestServer runs the engine without a model; ingestion and answering
// take their degraded paths, which is enough to exercise the HTTP layer.
func newTestServer(t *testing.T, cfg *config.Config) *httptest.Server {
	t.Helper()
	backend, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = backend.Close() })

	adapter := index.NewAdapter(backend, nil, index.Options{})
	eng := engine.New(ontology.NewStore(ontology.DefaultCatalog()), nil, adapter, engine.Options{})
	t.Cleanup(eng.Close)

	if cfg == nil {
		cfg = &config.Config{}
	}
	ts := httptest.NewServer(New(eng, cfg).Handler())
	t.Cleanup(ts.Close)
	return ts
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestServer_IngestAndGet(t *testing.T) {
	ts := newTestServer(t, nil)

	resp := postJSON(t, ts.URL+"/v1/memories", engine.IngestRequest{
		UserID:  "u-1",
		Content: "My name is Priya and I work at Initech.",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	report := decodeBody[types.IngestReport](t, resp)
	assert.True(t, report.Success)
	assert.True(t, report.Degraded, "no model configured")
	require.NotEmpty(t, report.MemoryID)

	getResp, err := http.Get(ts.URL + "/v1/memories/" + report.MemoryID)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, getResp.StatusCode)

	record := decodeBody[types.MemoryRecord](t, getResp)
	assert.Equal(t, "u-1", record.UserID)
	assert.Equal(t, "My name is Priya and I work at Initech.", record.Content)
}

func TestServer_IngestValidation(t *testing.T) {
	ts := newTestServer(t, nil)

	resp := postJSON(t, ts.URL+"/v1/memories", engine.IngestRequest{Content: "no user"})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	badResp, err := http.Post(ts.URL+"/v1/memories", "application/json", bytes.NewReader([]byte("{not json")))
	require.NoError(t, err)
	defer badResp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, badResp.StatusCode)
}

func TestServer_GetMissing(t *testing.T) {
	ts := newTestServer(t, nil)

	resp, err := http.Get(ts.URL + "/v1/memories/mem:absent")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServer_Search(t *testing.T) {
	ts := newTestServer(t, nil)

	resp := postJSON(t, ts.URL+"/v1/memories", engine.IngestRequest{
		UserID: "u-1", Content: "I love playing tennis on weekends.",
	})
	resp.Body.Close()

	searchResp := postJSON(t, ts.URL+"/v1/search", searchRequest{UserID: "u-1", Query: "tennis"})
	require.Equal(t, http.StatusOK, searchResp.StatusCode)

	body := decodeBody[searchResponse](t, searchResp)
	require.Equal(t, 1, body.Count)
	assert.Contains(t, body.Results[0].Record.Content, "tennis")
}

func TestServer_SearchEmptyResultIsArray(t *testing.T) {
	ts := newTestServer(t, nil)

	resp := postJSON(t, ts.URL+"/v1/search", searchRequest{UserID: "u-1", Query: "nothing"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody[searchResponse](t, resp)
	assert.Zero(t, body.Count)
	assert.NotNil(t, body.Results)
}

func TestServer_Answer(t *testing.T) {
	ts := newTestServer(t, nil)

	resp := postJSON(t, ts.URL+"/v1/memories", engine.IngestRequest{
		UserID: "u-1", Content: "My name is Priya.",
	})
	resp.Body.Close()

	ansResp := postJSON(t, ts.URL+"/v1/answer", answerRequest{UserID: "u-1", Question: "What is my name?"})
	require.Equal(t, http.StatusOK, ansResp.StatusCode)

	ans := decodeBody[engine.Answer](t, ansResp)
	assert.Equal(t, "Your name is Priya.", ans.Text)

	badResp := postJSON(t, ts.URL+"/v1/answer", answerRequest{UserID: "u-1"})
	defer badResp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, badResp.StatusCode)
}

func TestServer_Delete(t *testing.T) {
	ts := newTestServer(t, nil)

	resp := postJSON(t, ts.URL+"/v1/memories", engine.IngestRequest{
		UserID: "u-1", Content: "temporary note",
	})
	report := decodeBody[types.IngestReport](t, resp)

	req, err := http.NewRequest(http.MethodDelete, ts.URL+"/v1/memories/"+report.MemoryID, nil)
	require.NoError(t, err)
	delResp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer delResp.Body.Close()
	assert.Equal(t, http.StatusNoContent, delResp.StatusCode)

	getResp, err := http.Get(ts.URL + "/v1/memories/" + report.MemoryID)
	require.NoError(t, err)
	defer getResp.Body.Close()
	assert.Equal(t, http.StatusNotFound, getResp.StatusCode)
}

func TestServer_HealthAndStats(t *testing.T) {
	ts := newTestServer(t, nil)

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	health := decodeBody[engine.Health](t, resp)
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, "ok", health.Index)
	assert.Equal(t, "disabled", health.Model, "no model configured")

	ingestResp := postJSON(t, ts.URL+"/v1/memories", engine.IngestRequest{UserID: "u-1", Content: "a note"})
	ingestResp.Body.Close()

	statsResp, err := http.Get(ts.URL + "/v1/stats")
	require.NoError(t, err)
	stats := decodeBody[engine.Snapshot](t, statsResp)
	assert.Equal(t, uint64(1), stats.IngestsTotal)
}

func TestServer_Auth(t *testing.T) {
	cfg := &config.Config{}
	cfg.Security.APIToken = "secret-token"
	ts := newTestServer(t, cfg)

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/healthz", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer secret-token")
	okResp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer okResp.Body.Close()
	assert.Equal(t, http.StatusOK, okResp.StatusCode)

	req.Header.Set("Authorization", "Bearer wrong")
	badResp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer badResp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, badResp.StatusCode)
}

type mockSubscriber struct {
	ch chan []byte
}

func (m *mockSubscriber) sendChannel() chan []byte { return m.ch }
func (m *mockSubscriber) close()                   {}

func TestHub_BroadcastsToSubscribers(t *testing.T) {
	hub := NewHub()
	go hub.Run()
	defer hub.Stop()

	sub := &mockSubscriber{ch: make(chan []byte, 4)}
	hub.register <- sub

	hub.Publish(Event{Type: "memory_ingested", UserID: "u-1", MemoryID: "mem:1"})

	data := <-sub.ch
	var ev Event
	require.NoError(t, json.Unmarshal(data, &ev))
	assert.Equal(t, "memory_ingested", ev.Type)
	assert.Equal(t, "mem:1", ev.MemoryID)
	assert.False(t, ev.Timestamp.IsZero())
}

func TestHub_DropsSlowSubscriber(t *testing.T) {
	hub := NewHub()
	go hub.Run()
	defer hub.Stop()

	fast := &mockSubscriber{ch: make(chan []byte, 16)}
	slow := &mockSubscriber{ch: make(chan []byte)} // unbuffered, never read
	hub.register <- fast
	hub.register <- slow

	hub.Publish(Event{Type: "memory_ingested"})

	<-fast.ch
	hub.Publish(Event{Type: "memory_ingested"})
	<-fast.ch // hub still delivering after dropping the slow subscriber
}
