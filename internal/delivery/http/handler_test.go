package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Harsh-BH/sentinel-judge/internal/compiler"
	"github.com/Harsh-BH/sentinel-judge/internal/domain"
	"github.com/Harsh-BH/sentinel-judge/internal/judge"
	"github.com/Harsh-BH/sentinel-judge/internal/pool"
	"github.com/Harsh-BH/sentinel-judge/internal/sandbox/mock"
	"github.com/Harsh-BH/sentinel-judge/internal/sign"
	"github.com/Harsh-BH/sentinel-judge/internal/spj"
	"github.com/Harsh-BH/sentinel-judge/internal/testcase"
	"github.com/Harsh-BH/sentinel-judge/internal/usecase"
	"github.com/Harsh-BH/sentinel-judge/internal/workspace"
)

const testToken = "judge-token"

const aPlusB = `#include <stdio.h>
int main(){ int a, b; scanf("%d%d", &a, &b); printf("%d\n", a+b); return 0; }`

func init() {
	gin.SetMode(gin.TestMode)
}

type stubReporter struct{}

func (stubReporter) Status(context.Context) (*domain.HostStatus, error) {
	return &domain.HostStatus{Hostname: "judge-1", CPU: 12.5, CPUCore: 4, Memory: 40, JudgerVersion: "mock-1.0.0"}, nil
}

type downReplayGuard struct{}

func (downReplayGuard) Remember(context.Context, string, time.Duration) (bool, error) {
	return false, errors.New("dial tcp 127.0.0.1:6379: connect: connection refused")
}

func setupTestRouter(t *testing.T) (*gin.Engine, *mock.Sandbox, *sign.Signer) {
	t.Helper()
	return setupTestRouterWithGuard(t, nil)
}

func setupTestRouterWithGuard(t *testing.T, guard sign.ReplayGuard) (*gin.Engine, *mock.Sandbox, *sign.Signer) {
	t.Helper()
	logger := zap.NewNop()

	caseBase := t.TempDir()
	dir := filepath.Join(caseBase, "normal")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	files := map[string]string{
		"info": `{"spj": false, "test_cases": {"1": {"input_name": "1.in", "output_name": "1.out"}}}`,
		"1.in":  "1 2\n",
		"1.out": "3\n",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	wm, err := workspace.NewManager(workspace.Options{Base: t.TempDir()}, logger)
	if err != nil {
		t.Fatal(err)
	}

	sb := mock.NewToolchain()
	comp := compiler.New(sb, logger)
	cache := spj.NewCache(caseBase, comp, nil, logger)

	workers := pool.NewWorkerPool(2, logger)
	workers.Start(context.Background())
	t.Cleanup(workers.Stop)

	signer, err := sign.NewSigner(testToken, time.Minute)
	if err != nil {
		t.Fatal(err)
	}

	gw := NewGateway(
		signer,
		guard,
		usecase.NewJudgeUsecase(wm, comp, cache, testcase.NewFSStore(caseBase), judge.NewEngine(sb, logger), nil, logger),
		usecase.NewCompileSPJUsecase(cache, logger),
		usecase.NewPingUsecase(stubReporter{}),
		workers,
		logger,
	)

	return NewRouter(gw, sb, logger, 1<<20), sb, signer
}

func signedRequest(t *testing.T, signer *sign.Signer, path string, data any) *http.Request {
	t.Helper()
	env, err := signer.SealRequest(data)
	if err != nil {
		t.Fatal(err)
	}
	return envelopeRequest(t, path, env)
}

func envelopeRequest(t *testing.T, path string, env *sign.Request) *http.Request {
	t.Helper()
	body, _ := json.Marshal(env)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(sign.TokenHeader, sign.HashToken(testToken))
	return req
}

func openResponse(t *testing.T, signer *sign.Signer, w *httptest.ResponseRecorder) *sign.Payload {
	t.Helper()
	var resp sign.Response
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v: %s", err, w.Body.String())
	}
	p, err := signer.OpenResponse(&resp)
	if err != nil {
		t.Fatalf("response signature invalid: %v", err)
	}
	return p
}

func judgeData(id string) map[string]any {
	return map[string]any{
		"language_config": domain.CLanguage,
		"submission_id":   id,
		"src":             aPlusB,
		"max_cpu_time":    1000,
		"max_memory":      128 << 20,
		"test_case_id":    "normal",
	}
}

func TestPing_Success(t *testing.T) {
	router, _, signer := setupTestRouter(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, signedRequest(t, signer, "/ping", map[string]any{}))

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	p := openResponse(t, signer, w)
	if p.Err != nil {
		t.Fatalf("unexpected error kind %s", *p.Err)
	}
	var st domain.HostStatus
	if err := json.Unmarshal(p.Data, &st); err != nil {
		t.Fatal(err)
	}
	if st.Hostname != "judge-1" || st.CPUCore != 4 {
		t.Errorf("unexpected status %+v", st)
	}
}

func TestJudge_Accepted(t *testing.T) {
	router, _, signer := setupTestRouter(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, signedRequest(t, signer, "/judge", judgeData("http-1")))

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	p := openResponse(t, signer, w)
	if p.Err != nil {
		t.Fatalf("unexpected error kind %s: %s", *p.Err, p.Data)
	}
	var resp domain.JudgeResponse
	if err := json.Unmarshal(p.Data, &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Verdict != domain.VerdictAccepted {
		t.Errorf("expected ACCEPTED, got %s", resp.Verdict)
	}
}

func TestJudge_TamperedSignatureRejectedBeforeCompile(t *testing.T) {
	router, sb, signer := setupTestRouter(t)

	env, err := signer.SealRequest(judgeData("tampered"))
	if err != nil {
		t.Fatal(err)
	}
	sig := []byte(env.Signature)
	if sig[0] == 'a' {
		sig[0] = 'b'
	} else {
		sig[0] = 'a'
	}
	env.Signature = string(sig)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, envelopeRequest(t, "/judge", env))

	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected status 401, got %d", w.Code)
	}
	p := openResponse(t, signer, w)
	if p.Err == nil || *p.Err != domain.KindSignatureVerificationFailed {
		t.Errorf("expected SignatureVerificationFailed, got %v", p.Err)
	}
	if calls := len(sb.Calls()); calls != 0 {
		t.Errorf("expected no sandbox calls, got %d", calls)
	}
}

func TestJudge_TamperedDataRejected(t *testing.T) {
	router, sb, signer := setupTestRouter(t)

	env, err := signer.SealRequest(judgeData("tampered-data"))
	if err != nil {
		t.Fatal(err)
	}
	env.Data = json.RawMessage(strings.Replace(string(env.Data), `"max_cpu_time":1000`, `"max_cpu_time":9000`, 1))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, envelopeRequest(t, "/judge", env))

	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected status 401, got %d", w.Code)
	}
	if len(sb.Calls()) != 0 {
		t.Error("tampered request reached the sandbox")
	}
}

func TestRPC_TokenHeaderRequired(t *testing.T) {
	router, _, signer := setupTestRouter(t)

	req := signedRequest(t, signer, "/ping", map[string]any{})
	req.Header.Del(sign.TokenHeader)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected status 401, got %d", w.Code)
	}
}

func TestRPC_ReplayRejected(t *testing.T) {
	router, _, signer := setupTestRouter(t)

	env, err := signer.SealRequest(map[string]any{})
	if err != nil {
		t.Fatal(err)
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, envelopeRequest(t, "/ping", env))
	if w.Code != http.StatusOK {
		t.Fatalf("expected first call to succeed, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	router.ServeHTTP(w, envelopeRequest(t, "/ping", env))
	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected replay to be rejected, got %d", w.Code)
	}
}

// Test: an unreachable replay store is a server fault, not a bad signature
func TestRPC_ReplayGuardOutageIsSystemError(t *testing.T) {
	router, sb, signer := setupTestRouterWithGuard(t, downReplayGuard{})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, signedRequest(t, signer, "/judge", judgeData("guard-down")))

	if w.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", w.Code)
	}
	p := openResponse(t, signer, w)
	if p.Err == nil || *p.Err != domain.KindSystemError {
		t.Errorf("expected SystemError, got %v", p.Err)
	}
	if len(sb.Calls()) != 0 {
		t.Error("request reached the sandbox without a replay check")
	}
}

func TestRPC_StaleTimestampRejected(t *testing.T) {
	router, _, signer := setupTestRouter(t)

	old := signer.WithClock(func() time.Time { return time.Now().Add(-time.Hour) })
	w := httptest.NewRecorder()
	router.ServeHTTP(w, signedRequest(t, old, "/ping", map[string]any{}))

	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected status 401, got %d", w.Code)
	}
}

func TestRPC_InvalidEnvelope(t *testing.T) {
	router, _, _ := setupTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/judge", bytes.NewBufferString("{not json"))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", w.Code)
	}
}

func TestRPC_BodyTooLarge(t *testing.T) {
	router, _, signer := setupTestRouter(t)

	data := judgeData("huge")
	data["src"] = strings.Repeat("x", 2<<20)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, signedRequest(t, signer, "/judge", data))

	if w.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("expected status 413, got %d", w.Code)
	}
}

func TestJudge_InvalidDataIsSignedError(t *testing.T) {
	router, _, signer := setupTestRouter(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, signedRequest(t, signer, "/judge", "not an object"))

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	p := openResponse(t, signer, w)
	if p.Err == nil || *p.Err != domain.KindInvalidRequest {
		t.Errorf("expected InvalidRequest, got %v", p.Err)
	}
}

func TestCompileSPJ_BadSourceIsSPJCompileError(t *testing.T) {
	router, _, signer := setupTestRouter(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, signedRequest(t, signer, "/compile_spj", map[string]any{
		"src":                "int main(){",
		"spj_version":        "1",
		"spj_compile_config": domain.CSPJCompile,
		"test_case_id":       "normal",
	}))

	p := openResponse(t, signer, w)
	if p.Err == nil || *p.Err != domain.KindSPJCompileError {
		t.Fatalf("expected SPJCompileError, got %v", p.Err)
	}
	var msg string
	if err := json.Unmarshal(p.Data, &msg); err != nil || !strings.Contains(msg, "error") {
		t.Errorf("expected compiler diagnostics, got %s", p.Data)
	}
}

func TestLanguages(t *testing.T) {
	router, _, _ := setupTestRouter(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/languages", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	var body struct {
		Languages []domain.LanguageProfile `json:"languages"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if len(body.Languages) != len(domain.Languages) {
		t.Errorf("expected %d languages, got %d", len(domain.Languages), len(body.Languages))
	}
}

func TestHealthz(t *testing.T) {
	router, _, _ := setupTestRouter(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "mock-1.0.0") {
		t.Errorf("unexpected healthz response %d: %s", w.Code, w.Body.String())
	}
}
