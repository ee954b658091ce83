package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"testcase-workflow-be/internal/bootstrap"
	"testcase-workflow-be/internal/config"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type envelope struct {
	Success bool            `json:"success"`
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type workflowView struct {
	SessionId string `json:"session_id"`
	Stage     struct {
		Id     string `json:"id"`
		Source string `json:"source"`
	} `json:"stage"`
	CurrentChatId string            `json:"current_chat_id"`
	Analysis      string            `json:"analysis"`
	Messages      []json.RawMessage `json:"messages"`
	TestCases     []struct {
		ID    string `json:"id"`
		Title string `json:"title"`
	} `json:"test_cases"`
}

func testConfig(t *testing.T) *config.Config {
	dir := t.TempDir()
	return &config.Config{
		App: config.AppConfig{
			Port:               "0",
			Environment:        "test",
			LogFilePath:        filepath.Join(dir, "app.log"),
			WsLogFilePath:      filepath.Join(dir, "websocket.log"),
			CorsAllowedOrigins: "http://localhost:3001",
		},
		Backend: config.BackendConfig{
			UseMock: true,
			UserId:  "user123",
		},
		Workflow: config.WorkflowConfig{
			SessionTTL: time.Hour,
		},
	}
}

func newTestServer(t *testing.T, cfg *config.Config) *Server {
	t.Helper()

	container, err := bootstrap.NewContainer(cfg)
	require.NoError(t, err)
	require.NoError(t, container.Start(context.Background()))
	t.Cleanup(func() { container.Close(context.Background()) })

	return New(cfg, container)
}

func doJSON(t *testing.T, srv *Server, method, path string, body interface{}, headers ...string) (*http.Response, []byte) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	resp, err := srv.GetApp().Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func decodeView(t *testing.T, raw []byte) workflowView {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(raw, &env))
	require.True(t, env.Success, string(raw))

	var view workflowView
	require.NoError(t, json.Unmarshal(env.Data, &view))
	return view
}

func TestServer_Healthz(t *testing.T) {
	srv := newTestServer(t, testConfig(t))

	resp, _ := doJSON(t, srv, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestServer_WorkflowRun(t *testing.T) {
	srv := newTestServer(t, testConfig(t))

	resp, raw := doJSON(t, srv, http.MethodPost, "/api/v2/sessions", map[string]string{"project_name": "Telehealth"})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(raw))

	var env envelope
	require.NoError(t, json.Unmarshal(raw, &env))
	var created struct {
		Id     string `json:"id"`
		Status string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &created))
	assert.Equal(t, "draft", created.Status)
	base := "/api/v2/sessions/" + created.Id

	steps := []struct {
		method string
		path   string
		body   interface{}
		stage  string
	}{
		{http.MethodPost, base + "/workflow/context", map[string]string{"prompt": "video visit consent"}, "context-fetched"},
		{http.MethodPost, base + "/workflow/start-analysis", nil, "analyze"},
		{http.MethodPost, base + "/workflow/analyze", map[string]string{}, "edit-analysis"},
		{http.MethodPut, base + "/workflow/analysis", map[string]string{"analysis": "REQ-1 consent\nREQ-2 recording"}, "generate-testcases"},
		{http.MethodPost, base + "/workflow/test-cases", nil, "complete"},
	}

	var view workflowView
	for _, step := range steps {
		resp, raw := doJSON(t, srv, step.method, step.path, step.body)
		require.Equal(t, http.StatusOK, resp.StatusCode, "%s %s: %s", step.method, step.path, raw)
		view = decodeView(t, raw)
		assert.Equal(t, step.stage, view.Stage.Id, step.path)
	}

	assert.Equal(t, "REQ-1 consent\nREQ-2 recording", view.Analysis)
	require.Len(t, view.TestCases, 3)
	assert.Equal(t, "TC001", view.TestCases[0].ID)
	assert.Len(t, view.Messages, 4)

	resp, raw = doJSON(t, srv, http.MethodGet, "/api/v2/chats/"+view.CurrentChatId+"/messages", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(raw, &env))
	var messages []json.RawMessage
	require.NoError(t, json.Unmarshal(env.Data, &messages))
	assert.Len(t, messages, 4)

	resp, raw = doJSON(t, srv, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(raw), "testcase_workflow_backend_calls_total")
	assert.Contains(t, string(raw), "testcase_workflow_workflow_stage_transitions_total")
}

func TestServer_ErrorMapping(t *testing.T) {
	srv := newTestServer(t, testConfig(t))

	resp, raw := doJSON(t, srv, http.MethodPost, "/api/v2/sessions", map[string]string{"project_name": "EMR"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var env envelope
	require.NoError(t, json.Unmarshal(raw, &env))
	var created struct {
		Id string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &created))

	tests := []struct {
		name   string
		method string
		path   string
		body   interface{}
		status int
		kind   string
	}{
		{"missing project name", http.MethodPost, "/api/v2/sessions", map[string]string{}, http.StatusBadRequest, "validation_error"},
		{"missing prompt", http.MethodPost, "/api/v2/sessions/" + created.Id + "/workflow/context", map[string]string{}, http.StatusBadRequest, "validation_error"},
		{"analyze before context", http.MethodPost, "/api/v2/sessions/" + created.Id + "/workflow/analyze", map[string]string{"prompt": "x"}, http.StatusConflict, "conflict"},
		{"save before analysis", http.MethodPut, "/api/v2/sessions/" + created.Id + "/workflow/analysis", map[string]string{"analysis": "x"}, http.StatusConflict, "conflict"},
		{"unknown route", http.MethodGet, "/api/v2/nope", nil, http.StatusNotFound, "http_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, raw := doJSON(t, srv, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, resp.StatusCode, string(raw))
			assert.True(t, strings.HasPrefix(resp.Header.Get("Content-Type"), "application/problem+json"))

			var problem struct {
				Type   string `json:"type"`
				Status int    `json:"status"`
			}
			require.NoError(t, json.Unmarshal(raw, &problem))
			assert.Equal(t, tt.kind, problem.Type)
			assert.Equal(t, tt.status, problem.Status)
		})
	}
}

func TestServer_JwtAuth(t *testing.T) {
	cfg := testConfig(t)
	cfg.Auth.JwtSecret = "test-secret"
	srv := newTestServer(t, cfg)

	resp, _ := doJSON(t, srv, http.MethodGet, "/api/v2/sessions", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": "clinician-7",
		"exp":     time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte("test-secret"))
	require.NoError(t, err)

	resp, _ = doJSON(t, srv, http.MethodGet, "/api/v2/sessions", nil, "Authorization", "Bearer "+signed)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = doJSON(t, srv, http.MethodGet, "/api/v2/sessions?token="+signed, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = doJSON(t, srv, http.MethodGet, "/api/v2/sessions", nil, "Authorization", "Bearer not-a-token")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestServer_DocumentUpload(t *testing.T) {
	srv := newTestServer(t, testConfig(t))

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", "requirements.txt")
	require.NoError(t, err)
	_, err = part.Write([]byte("The system shall log every record access."))
	require.NoError(t, err)
	require.NoError(t, w.WriteField("enable_rag", "false"))
	require.NoError(t, w.WriteField("department", "cardiology"))
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v2/documents", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	resp, err := srv.GetApp().Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var env envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	var res struct {
		Result struct {
			Status           string `json:"status"`
			FileType         string `json:"file_type"`
			RAGChunksCreated int    `json:"rag_chunks_created"`
		} `json:"result"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &res))
	assert.Equal(t, "success", res.Result.Status)
	assert.Equal(t, 0, res.Result.RAGChunksCreated)

	// Missing file.
	req = httptest.NewRequest(http.MethodPost, "/api/v2/documents", strings.NewReader(""))
	resp, err = srv.GetApp().Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
