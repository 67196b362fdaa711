package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/prospect-cli/internal/config"
	"github.com/sells-group/prospect-cli/internal/contacts"
	"github.com/sells-group/prospect-cli/internal/prospect"
	"github.com/sells-group/prospect-cli/internal/questions"
	"github.com/sells-group/prospect-cli/internal/store"
	"github.com/sells-group/prospect-cli/pkg/anthropic"
	"github.com/sells-group/prospect-cli/pkg/apollo"
)

type vendorReply struct {
	status int
	body   string
}

// fakeVendor serves canned replies for the search and bulk match endpoints.
type fakeVendor struct {
	*httptest.Server
	searchHits atomic.Int32
	bulkHits   atomic.Int32
	search     vendorReply
	bulk       vendorReply
}

func newFakeVendor(t *testing.T, search, bulk vendorReply) *fakeVendor {
	t.Helper()
	fv := &fakeVendor{search: search, bulk: bulk}
	fv.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var reply vendorReply
		switch r.URL.Path {
		case "/mixed_people/search":
			fv.searchHits.Add(1)
			reply = fv.search
		case "/people/bulk_match":
			fv.bulkHits.Add(1)
			reply = fv.bulk
		default:
			http.NotFound(w, r)
			return
		}
		w.WriteHeader(reply.status)
		_, _ = w.Write([]byte(reply.body))
	}))
	t.Cleanup(fv.Close)
	return fv
}

type stubLLM struct {
	text string
	err  error
}

func (s *stubLLM) CreateMessage(_ context.Context, _ anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &anthropic.MessageResponse{Content: []anthropic.ContentBlock{{Type: "text", Text: s.text}}}, nil
}

type envOpts struct {
	vendor  *fakeVendor
	noStore bool
	llm     anthropic.Client
}

func testServerConfig() config.ServerConfig {
	return config.ServerConfig{
		AllowedOrigins:   []string{"*"},
		RateLimitPerMin:  6000,
		RateLimitBurst:   100,
		RateLimitClients: 100,
	}
}

func newTestRouter(t *testing.T, o envOpts) http.Handler {
	t.Helper()
	return newRouter(newTestEnv(t, o), testServerConfig())
}

func newTestEnv(t *testing.T, o envOpts) *appEnv {
	t.Helper()

	var client apollo.Client
	if o.vendor != nil {
		client = apollo.NewClient("test-key", apollo.WithBaseURL(o.vendor.URL))
	}

	var st store.Store
	if !o.noStore {
		sq, err := store.NewSQLite(filepath.Join(t.TempDir(), "runs.db"))
		require.NoError(t, err)
		require.NoError(t, sq.Migrate(context.Background()))
		t.Cleanup(func() { sq.Close() }) //nolint:errcheck
		st = sq
	}

	env := &appEnv{Store: st, Service: prospect.NewService(contacts.New(client), st)}
	if o.llm != nil {
		env.Questions = questions.NewGenerator(o.llm, "claude-test", 256)
	}
	return env
}

func doJSON(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &m), rr.Body.String())
	return m
}

const (
	searchOK = `{"people":[
		{"id":"1","first_name":"Ann","last_name":"Lee","email_status":"verified","linkedin_url":"https://linkedin.com/in/ann"},
		{"id":"2","first_name":"Bo","last_name":"Ray","status":"unverified"}
	]}`
	bulkOK = `{"people":[{"email":"a@x.com","email_status":"verified","person":{"first_name":"Ann","last_name":"Lee"},"organization":{"name":"Acme"}}]}`
)

func TestHealthEndpoint(t *testing.T) {
	h := newTestRouter(t, envOpts{})

	rr := doJSON(t, h, http.MethodGet, "/health", "")

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Type"), "application/json")
	assert.Equal(t, "ok", decodeBody(t, rr)["status"])
}

func TestPeople_Success(t *testing.T) {
	fv := newFakeVendor(t, vendorReply{200, searchOK}, vendorReply{200, bulkOK})
	h := newTestRouter(t, envOpts{vendor: fv})

	rr := doJSON(t, h, http.MethodPost, "/api/people", `{"title":"CTO","location":"Austin","limit":5}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	body := decodeBody(t, rr)
	assert.Equal(t, []any{map[string]any{
		"name":         "Ann Lee",
		"title":        "",
		"email":        "a@x.com",
		"company":      "Acme",
		"domain":       "",
		"location":     "",
		"email_status": "verified",
	}}, body["contacts"])

	debug := body["debug"].(map[string]any)
	assert.Equal(t, []any{"1"}, debug["selectedPersonIds"])
	assert.Equal(t, []any{map[string]any{
		"first_name":   "Ann",
		"last_name":    "Lee",
		"linkedin_url": "https://linkedin.com/in/ann",
	}}, debug["bulkDetails"])
	assert.NotNil(t, debug["search"])
	assert.NotNil(t, debug["enrichment"])
	assert.Equal(t, int32(1), fv.searchHits.Load())
	assert.Equal(t, int32(1), fv.bulkHits.Load())

	runID := rr.Header().Get("X-Run-ID")
	require.NotEmpty(t, runID)

	rr = doJSON(t, h, http.MethodGet, "/api/runs/"+runID, "")
	require.Equal(t, http.StatusOK, rr.Code)
	run := decodeBody(t, rr)
	assert.Equal(t, "complete", run["status"])
	assert.Len(t, run["contacts"], 1)
}

func TestPeople_ValidationMakesNoCalls(t *testing.T) {
	fv := newFakeVendor(t, vendorReply{200, searchOK}, vendorReply{200, bulkOK})
	h := newTestRouter(t, envOpts{vendor: fv})

	rr := doJSON(t, h, http.MethodPost, "/api/people", `{"title":"","location":"CA"}`)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, map[string]any{
		"step":  "validate",
		"error": "Both title and location are required",
	}, decodeBody(t, rr))
	assert.Zero(t, fv.searchHits.Load())
	assert.Zero(t, fv.bulkHits.Load())
}

func TestPeople_InvalidJSON(t *testing.T) {
	h := newTestRouter(t, envOpts{})

	rr := doJSON(t, h, http.MethodPost, "/api/people", `{"title":`)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "validate", decodeBody(t, rr)["step"])
}

func TestPeople_EmptySearchIsSuccess(t *testing.T) {
	fv := newFakeVendor(t, vendorReply{200, `{"matches":[]}`}, vendorReply{200, bulkOK})
	h := newTestRouter(t, envOpts{vendor: fv})

	rr := doJSON(t, h, http.MethodPost, "/api/people", `{"title":"CTO","location":"Austin"}`)
	require.Equal(t, http.StatusOK, rr.Code)

	body := decodeBody(t, rr)
	assert.Equal(t, []any{}, body["contacts"])
	debug := body["debug"].(map[string]any)
	assert.Nil(t, debug["enrichment"])
	assert.Equal(t, []any{}, debug["selectedPersonIds"])
	assert.Equal(t, []any{}, debug["bulkDetails"])
	assert.Equal(t, map[string]any{"matches": []any{}}, debug["search"])
	assert.Zero(t, fv.bulkHits.Load())
}

func TestPeople_EnrichFailurePassesStatusThrough(t *testing.T) {
	fv := newFakeVendor(t, vendorReply{200, searchOK}, vendorReply{503, `{"message":"rate limited"}`})
	h := newTestRouter(t, envOpts{vendor: fv})

	rr := doJSON(t, h, http.MethodPost, "/api/people", `{"title":"CTO","location":"Austin"}`)

	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	body := decodeBody(t, rr)
	assert.Equal(t, "enrich", body["step"])
	assert.Equal(t, "rate limited", body["error"])
	assert.Equal(t, map[string]any{"message": "rate limited"}, body["details"])

	rr = doJSON(t, h, http.MethodGet, "/api/runs?status=failed", "")
	require.Equal(t, http.StatusOK, rr.Code)
	runs := decodeBody(t, rr)["runs"].([]any)
	require.Len(t, runs, 1)
	assert.Equal(t, "enrich", runs[0].(map[string]any)["error_step"])
}

func TestPeople_SearchFailureNonJSONBody(t *testing.T) {
	fv := newFakeVendor(t, vendorReply{500, "<html>oops</html>"}, vendorReply{200, bulkOK})
	h := newTestRouter(t, envOpts{vendor: fv})

	rr := doJSON(t, h, http.MethodPost, "/api/people", `{"title":"CTO","location":"Austin"}`)

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	body := decodeBody(t, rr)
	assert.Equal(t, "search", body["step"])
	details := body["details"].(map[string]any)
	assert.Contains(t, details, "parse_error")
	assert.Equal(t, "<html>oops</html>", details["raw"])
}

func TestPeople_MissingKey(t *testing.T) {
	h := newTestRouter(t, envOpts{})

	rr := doJSON(t, h, http.MethodPost, "/api/people", `{"title":"CTO","location":"Austin"}`)

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Equal(t, "internal", decodeBody(t, rr)["step"])
	assert.Empty(t, rr.Header().Get("X-Run-ID"))
}

func TestRuns_UnknownID(t *testing.T) {
	h := newTestRouter(t, envOpts{})

	rr := doJSON(t, h, http.MethodGet, "/api/runs/does-not-exist", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestRuns_HistoryDisabled(t *testing.T) {
	h := newTestRouter(t, envOpts{noStore: true})

	for _, path := range []string{"/api/runs", "/api/runs/abc"} {
		rr := doJSON(t, h, http.MethodGet, path, "")
		assert.Equal(t, http.StatusServiceUnavailable, rr.Code, path)
	}
}

func TestRuns_BadLimit(t *testing.T) {
	h := newTestRouter(t, envOpts{})

	rr := doJSON(t, h, http.MethodGet, "/api/runs?limit=ten", "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestRuns_ListEmpty(t *testing.T) {
	h := newTestRouter(t, envOpts{})

	rr := doJSON(t, h, http.MethodGet, "/api/runs", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, []any{}, decodeBody(t, rr)["runs"])
}

func TestQuestions(t *testing.T) {
	tests := []struct {
		name       string
		llm        anthropic.Client
		body       string
		wantStatus int
		wantStep   string
	}{
		{"ok", &stubLLM{text: "1. Why?\n2. How?"}, `{"goal":"churn","count":2}`, http.StatusOK, ""},
		{"empty goal", &stubLLM{}, `{"goal":"  "}`, http.StatusBadRequest, "validate"},
		{"no key", nil, `{"goal":"churn"}`, http.StatusInternalServerError, "internal"},
		{"llm failure", &stubLLM{err: errors.New("overloaded")}, `{"goal":"churn"}`, http.StatusBadGateway, "internal"},
		{"bad json", &stubLLM{}, `nope`, http.StatusBadRequest, "validate"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestRouter(t, envOpts{llm: tt.llm})

			rr := doJSON(t, h, http.MethodPost, "/api/questions", tt.body)
			assert.Equal(t, tt.wantStatus, rr.Code)
			body := decodeBody(t, rr)
			if tt.wantStep != "" {
				assert.Equal(t, tt.wantStep, body["step"])
				return
			}
			assert.Equal(t, []any{"Why?", "How?"}, body["questions"])
		})
	}
}

func TestRateLimit(t *testing.T) {
	sc := testServerConfig()
	sc.RateLimitPerMin = 1
	sc.RateLimitBurst = 1
	h := newRouter(newTestEnv(t, envOpts{}), sc)

	rr := doJSON(t, h, http.MethodGet, "/api/runs", "")
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = doJSON(t, h, http.MethodGet, "/api/runs", "")
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.NotEmpty(t, rr.Header().Get("Retry-After"))

	// Health is outside the limited group.
	rr = doJSON(t, h, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestCORSPreflight(t *testing.T) {
	h := newTestRouter(t, envOpts{})

	req := httptest.NewRequest(http.MethodOptions, "/api/people", bytes.NewReader(nil))
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
}
