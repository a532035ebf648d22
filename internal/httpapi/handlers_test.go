package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"callgrid/internal/auth"
	"callgrid/internal/config"
	"callgrid/internal/dispatch"
	"callgrid/internal/engine"
	"callgrid/internal/escalog"
	"callgrid/internal/reporting"
	"callgrid/internal/scheduler"
	"callgrid/internal/session"
	"callgrid/internal/tiers"

	"github.com/gin-gonic/gin"
)

type harness struct {
	router  *gin.Engine
	engine  *engine.Engine
	reports *reporting.MemoryRepo
}

// identityMW injects a fixed identity the way auth.RequireAccessToken would.
func identityMW(userID, role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := auth.WithIdentity(c.Request.Context(), userID, role)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	gin.SetMode(gin.TestMode)

	order, err := tiers.NewOrder([]string{"primary", "admin", "monitor"})
	if err != nil {
		t.Fatalf("order: %v", err)
	}
	dir := tiers.NewMemoryDirectory()
	dir.SetMembers("primary", "p1")
	dir.SetMembers("admin", "a1")
	dir.SetMembers("monitor", "m1")

	store := session.NewStore(session.NewMemoryRepo(), order, 240*time.Second, 300*time.Second)
	disp := dispatch.NewDispatcher(dir, dispatch.NewMemoryTransport(), dispatch.NewMemoryClaimer(), 1, time.Millisecond, time.Hour)
	rec := escalog.NewRecorder(escalog.NewMemoryRepo())

	eng := engine.New(store, disp, rec)
	sched := scheduler.New(store, eng, time.Second)
	eng.BindScheduler(sched)

	reports := reporting.NewMemoryRepo()

	h := &harness{engine: eng, reports: reports}
	h.router = gin.New()
	return h
}

func (h *harness) mount(userID, role string) {
	hs := Handlers{Engine: h.engine, Reports: reporting.NewService(h.reports)}
	v1 := h.router.Group("/v1")
	v1.Use(identityMW(userID, role))
	{
		v1.POST("/calls", hs.InitiateCall)
		v1.GET("/calls/:call_id", hs.GetCall)
		v1.GET("/calls/:call_id/history", hs.CallHistory)
		v1.POST("/calls/:call_id/answer", hs.AnswerCall)
		v1.POST("/calls/:call_id/cancel", hs.CancelCall)
		v1.POST("/calls/:call_id/escalate", hs.EscalateCall)
		v1.GET("/reports/calls", hs.CallsReport)
		v1.GET("/reports/escalations", hs.EscalationsReport)
	}
}

func (h *harness) do(t *testing.T, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var rd *strings.Reader
	if body == "" {
		rd = strings.NewReader("")
	} else {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)

	var out map[string]any
	if w.Body.Len() > 0 {
		if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
			t.Fatalf("invalid json response %q: %v", w.Body.String(), err)
		}
	}
	return w, out
}

func TestInitiateCall_ReturnsDeadlines(t *testing.T) {
	h := newHarness(t)
	h.mount("client-1", "client")

	w, body := h.do(t, http.MethodPost, "/v1/calls", "")
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %v", w.Code, body)
	}
	if body["status"] != "ringing" || body["tier"] != "primary" {
		t.Fatalf("unexpected body: %v", body)
	}
	if body["client_id"] != "client-1" {
		t.Fatalf("expected client from identity, got %v", body["client_id"])
	}
	if body["warn_at"] == nil || body["escalate_at"] == nil {
		t.Fatalf("expected deadlines in response: %v", body)
	}
}

func TestInitiateCall_RejectsUnknownTier(t *testing.T) {
	h := newHarness(t)
	h.mount("client-1", "client")

	w, _ := h.do(t, http.MethodPost, "/v1/calls", `{"tier":"nope"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestAnswerCall_ResolvesRingingCall(t *testing.T) {
	h := newHarness(t)
	h.mount("p1", "responder")

	_, created := h.do(t, http.MethodPost, "/v1/calls", "")
	id := created["id"].(string)

	w, body := h.do(t, http.MethodPost, "/v1/calls/"+id+"/answer", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %v", w.Code, body)
	}
	if body["status"] != "answered" || body["answered_by"] != "p1" {
		t.Fatalf("unexpected body: %v", body)
	}
}

func TestAnswerCall_UnknownCallIs404(t *testing.T) {
	h := newHarness(t)
	h.mount("p1", "responder")

	w, _ := h.do(t, http.MethodPost, "/v1/calls/nope/answer", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestAnswerAfterCancelIsConflict(t *testing.T) {
	h := newHarness(t)
	h.mount("p1", "responder")

	_, created := h.do(t, http.MethodPost, "/v1/calls", "")
	id := created["id"].(string)

	if w, _ := h.do(t, http.MethodPost, "/v1/calls/"+id+"/cancel", ""); w.Code != http.StatusOK {
		t.Fatalf("cancel failed: %d", w.Code)
	}
	w, _ := h.do(t, http.MethodPost, "/v1/calls/"+id+"/answer", "")
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", w.Code)
	}
}

func TestEscalateCall_AdvancesTierAndRecordsHistory(t *testing.T) {
	h := newHarness(t)
	h.mount("sup-1", "supervisor")

	_, created := h.do(t, http.MethodPost, "/v1/calls", "")
	id := created["id"].(string)

	w, body := h.do(t, http.MethodPost, "/v1/calls/"+id+"/escalate", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %v", w.Code, body)
	}
	if body["tier"] != "admin" || body["status"] != "ringing" {
		t.Fatalf("unexpected body: %v", body)
	}

	w, hist := h.do(t, http.MethodGet, "/v1/calls/"+id+"/history", "")
	if w.Code != http.StatusOK {
		t.Fatalf("history failed: %d", w.Code)
	}
	events := hist["events"].([]any)
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	ev := events[0].(map[string]any)
	if ev["reason"] != "manual" || ev["from_tier"] != "primary" || ev["to_tier"] != "admin" {
		t.Fatalf("unexpected event: %v", ev)
	}
}

func TestEscalateAnsweredCallIsConflict(t *testing.T) {
	h := newHarness(t)
	h.mount("p1", "responder")

	_, created := h.do(t, http.MethodPost, "/v1/calls", "")
	id := created["id"].(string)

	if w, _ := h.do(t, http.MethodPost, "/v1/calls/"+id+"/answer", ""); w.Code != http.StatusOK {
		t.Fatalf("answer failed: %d", w.Code)
	}
	w, _ := h.do(t, http.MethodPost, "/v1/calls/"+id+"/escalate", "")
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", w.Code)
	}
}

func TestCallsReport_RequiresRange(t *testing.T) {
	h := newHarness(t)
	h.mount("sup-1", "supervisor")

	w, _ := h.do(t, http.MethodGet, "/v1/reports/calls", "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestCallsReport_Aggregates(t *testing.T) {
	h := newHarness(t)
	h.mount("sup-1", "supervisor")

	now := time.Unix(1700000000, 0).UTC()
	h.reports.Sessions = []session.CallSession{
		{ID: "c1", ClientID: "cl1", Status: session.StatusAnswered, CreatedAt: now},
		{ID: "c2", ClientID: "cl1", Status: session.StatusExpired, CreatedAt: now},
	}

	from := now.Add(-time.Hour).Format(time.RFC3339)
	to := now.Add(time.Hour).Format(time.RFC3339)
	w, body := h.do(t, http.MethodGet, "/v1/reports/calls?from="+from+"&to="+to, "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %v", w.Code, body)
	}
	if body["total_calls"].(float64) != 2 || body["answered_calls"].(float64) != 1 {
		t.Fatalf("unexpected report: %v", body)
	}
}

func TestLogin_IssuesTokenPair(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mgr, err := auth.NewManager(config.AuthConfig{
		JWTSecret:       "test-secret-test-secret-test-secret",
		JWTIssuer:       "callgrid",
		JWTAudience:     "callgrid-api",
		AccessTokenTTL:  15 * time.Minute,
		RefreshTokenTTL: 24 * time.Hour,
	})
	if err != nil {
		t.Fatalf("manager: %v", err)
	}
	hs := Handlers{Auth: mgr}
	r := gin.New()
	r.POST("/v1/auth/login", hs.Login)

	req := httptest.NewRequest(http.MethodPost, "/v1/auth/login", strings.NewReader(`{"user_id":"u1","role":"client"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var out map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if out["access_token"] == "" || out["refresh_token"] == "" {
		t.Fatalf("expected token pair, got %v", out)
	}
}
