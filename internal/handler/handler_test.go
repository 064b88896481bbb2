package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sysu-ecnc-dev/sla-scheduler/backend/internal/config"
	"github.com/sysu-ecnc-dev/sla-scheduler/backend/internal/domain"
	"github.com/sysu-ecnc-dev/sla-scheduler/backend/internal/metrics"
	"github.com/sysu-ecnc-dev/sla-scheduler/backend/internal/seed"
)

type testResponse struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func newTestConfig() *config.Config {
	cfg := &config.Config{}
	cfg.JWT.Secret = "test-secret"
	cfg.JWT.Expiration = 3600
	cfg.Scheduler.PopulationSize = 250
	cfg.Scheduler.MinPopulationSize = 250
	cfg.Scheduler.MinGenerations = 100
	cfg.Scheduler.MaxGenerations = 500
	cfg.Scheduler.MutationRate = 0.01
	cfg.Scheduler.CrossoverMethod = "single_point"
	cfg.Scheduler.ElitismCount = 1
	cfg.Scheduler.AdaptiveMutation = true
	cfg.Scheduler.CacheSize = 1024
	return cfg
}

func newTestHandler(t *testing.T) *Handler {
	t.Helper()
	h, err := NewHandler(newTestConfig(), nil, seed.DefaultCatalog(), nil, nil, metrics.New())
	require.NoError(t, err)
	h.RegisterRoutes()
	return h
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) testResponse {
	t.Helper()
	var resp testResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

func loginCookie(t *testing.T, h *Handler, role domain.Role) *http.Cookie {
	t.Helper()
	token, expiration, err := h.issueToken(&domain.User{ID: 7, Role: role})
	require.NoError(t, err)
	return &http.Cookie{Name: tokenCookieName, Value: token, Expires: expiration}
}

func idealRequest() []assignmentRequest {
	return []assignmentRequest{
		{Activity: "SLA101A", Room: "Loft 310", TimeSlot: "10 AM", Facilitator: "Glen"},
		{Activity: "SLA101B", Room: "Roman 201", TimeSlot: "11 AM", Facilitator: "Glen"},
		{Activity: "SLA191A", Room: "Loft 206", TimeSlot: "2 PM", Facilitator: "Glen"},
		{Activity: "SLA191B", Room: "Loft 310", TimeSlot: "3 PM", Facilitator: "Glen"},
		{Activity: "SLA201", Room: "Roman 216", TimeSlot: "10 AM", Facilitator: "Singer"},
		{Activity: "SLA291", Room: "Loft 206", TimeSlot: "11 AM", Facilitator: "Singer"},
		{Activity: "SLA304", Room: "Beach 301", TimeSlot: "12 PM", Facilitator: "Singer"},
		{Activity: "SLA394", Room: "Beach 201", TimeSlot: "1 PM", Facilitator: "Singer"},
		{Activity: "SLA303", Room: "Slater 003", TimeSlot: "10 AM", Facilitator: "Zeldin"},
		{Activity: "SLA449", Room: "Roman 201", TimeSlot: "12 PM", Facilitator: "Zeldin"},
		{Activity: "SLA451", Room: "Frank 119", TimeSlot: "1 PM", Facilitator: "Zeldin"},
	}
}

func TestCatalogRequiresLogin(t *testing.T) {
	h := newTestHandler(t)

	rec := httptest.NewRecorder()
	h.Mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/catalog", nil))

	resp := decodeResponse(t, rec)
	assert.False(t, resp.Success)
	assert.Equal(t, "用户未登录", resp.Message)
}

func TestCatalogRejectsForgedToken(t *testing.T) {
	h := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/catalog", nil)
	req.AddCookie(&http.Cookie{Name: tokenCookieName, Value: "not-a-token"})
	rec := httptest.NewRecorder()
	h.Mux.ServeHTTP(rec, req)

	resp := decodeResponse(t, rec)
	assert.False(t, resp.Success)
	assert.Equal(t, "无效的令牌", resp.Message)
}

func TestCatalogRejectsExpiredToken(t *testing.T) {
	h := newTestHandler(t)
	h.config.JWT.Expiration = -60

	req := httptest.NewRequest(http.MethodGet, "/catalog", nil)
	req.AddCookie(loginCookie(t, h, domain.RoleViewer))
	rec := httptest.NewRecorder()
	h.Mux.ServeHTTP(rec, req)

	resp := decodeResponse(t, rec)
	assert.False(t, resp.Success)
	assert.Equal(t, "登录已过期，请重新登录", resp.Message)
}

func TestParseToken(t *testing.T) {
	h := newTestHandler(t)

	token, _, err := h.issueToken(&domain.User{ID: 42, Role: domain.RoleOperator})
	require.NoError(t, err)

	claims, err := h.parseToken(token)
	require.NoError(t, err)
	assert.Equal(t, "42", claims.Subject)
	assert.Equal(t, string(domain.RoleOperator), claims.Role)

	other := newTestHandler(t)
	other.config.JWT.Secret = "another-secret"
	_, err = other.parseToken(token)
	assert.ErrorIs(t, err, jwt.ErrTokenSignatureInvalid)
}

func TestRequestIDHeader(t *testing.T) {
	h := newTestHandler(t)

	rec := httptest.NewRecorder()
	h.Mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/catalog", nil))
	assert.NotEmpty(t, rec.Header().Get(requestIDHeader))

	req := httptest.NewRequest(http.MethodGet, "/catalog", nil)
	req.Header.Set(requestIDHeader, "upstream-id")
	rec = httptest.NewRecorder()
	h.Mux.ServeHTTP(rec, req)
	assert.Equal(t, "upstream-id", rec.Header().Get(requestIDHeader))
}

func TestLogoutClearsCookie(t *testing.T) {
	h := newTestHandler(t)

	rec := httptest.NewRecorder()
	h.Mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/auth/logout", nil))

	resp := decodeResponse(t, rec)
	require.True(t, resp.Success)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, tokenCookieName, cookies[0].Name)
	assert.Empty(t, cookies[0].Value)
	assert.Less(t, cookies[0].MaxAge, 0)
	assert.True(t, cookies[0].HttpOnly)
}

func TestGetCatalog(t *testing.T) {
	h := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/catalog", nil)
	req.AddCookie(loginCookie(t, h, domain.RoleViewer))
	rec := httptest.NewRecorder()
	h.Mux.ServeHTTP(rec, req)

	resp := decodeResponse(t, rec)
	require.True(t, resp.Success)

	var catalog domain.Catalog
	require.NoError(t, json.Unmarshal(resp.Data, &catalog))
	assert.Len(t, catalog.Activities, 11)
	assert.Len(t, catalog.Rooms, 9)
}

func TestViewerCannotCreateRun(t *testing.T) {
	h := newTestHandler(t)

	for _, path := range []string{"/scheduling-runs", "/scheduling-runs/generate"} {
		req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(`{}`))
		req.AddCookie(loginCookie(t, h, domain.RoleViewer))
		rec := httptest.NewRecorder()
		h.Mux.ServeHTTP(rec, req)

		resp := decodeResponse(t, rec)
		assert.False(t, resp.Success, path)
		assert.Equal(t, "权限不足", resp.Message, path)
	}
}

func TestSchedulingRunInvalidID(t *testing.T) {
	h := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/scheduling-runs/abc", nil)
	req.AddCookie(loginCookie(t, h, domain.RoleViewer))
	rec := httptest.NewRecorder()
	h.Mux.ServeHTTP(rec, req)

	resp := decodeResponse(t, rec)
	assert.False(t, resp.Success)
	assert.Equal(t, "运行ID无效", resp.Message)
}

func TestMetricsEndpoint(t *testing.T) {
	h := newTestHandler(t)

	rec := httptest.NewRecorder()
	h.Mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func evaluate(t *testing.T, h *Handler, body any) testResponse {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/schedules/evaluate", bytes.NewReader(payload))
	req.AddCookie(loginCookie(t, h, domain.RoleViewer))
	rec := httptest.NewRecorder()
	h.Mux.ServeHTTP(rec, req)
	return decodeResponse(t, rec)
}

func TestEvaluateSchedule(t *testing.T) {
	h := newTestHandler(t)

	resp := evaluate(t, h, map[string]any{"assignments": idealRequest()})
	require.True(t, resp.Success, resp.Message)

	var result evaluationResult
	require.NoError(t, json.Unmarshal(resp.Data, &result))
	assert.InDelta(t, 11.0, result.Fitness, 1e-9)
	assert.Equal(t, 0, result.TotalViolations)
	assert.Contains(t, result.Violations, "room_conflicts")
}

func TestEvaluateScheduleCountsConflicts(t *testing.T) {
	h := newTestHandler(t)

	rows := idealRequest()
	// SLA101B 和 SLA291 同一时间段使用同一个教室
	rows[1].Room = "Loft 206"

	resp := evaluate(t, h, map[string]any{"assignments": rows})
	require.True(t, resp.Success, resp.Message)

	var result evaluationResult
	require.NoError(t, json.Unmarshal(resp.Data, &result))
	assert.Less(t, result.Fitness, 11.0)
	assert.Equal(t, 1, result.Violations["room_conflicts"])
}

func TestEvaluateScheduleRejectsBadInput(t *testing.T) {
	h := newTestHandler(t)

	missing := idealRequest()[:10]
	unknownRoom := idealRequest()
	unknownRoom[0].Room = "Nowhere 101"
	blank := idealRequest()
	blank[3].Facilitator = ""

	tests := []struct {
		name string
		body any
	}{
		{name: "empty", body: map[string]any{"assignments": []assignmentRequest{}}},
		{name: "missing activity", body: map[string]any{"assignments": missing}},
		{name: "unknown room", body: map[string]any{"assignments": unknownRoom}},
		{name: "blank facilitator", body: map[string]any{"assignments": blank}},
		{name: "unknown field", body: map[string]any{"assignments": idealRequest(), "extra": 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := evaluate(t, h, tt.body)
			assert.False(t, resp.Success)
			assert.NotEmpty(t, resp.Message)
		})
	}
}

func TestRunRequestParameters(t *testing.T) {
	defaults := domain.RunParameters{
		PopulationSize:             250,
		MinimumGenerations:         100,
		MaximumGenerations:         500,
		InitialMutationProbability: 0.01,
		CrossoverMethod:            domain.CrossoverSinglePoint,
		ElitismCount:               1,
		UseAdaptiveMutation:        true,
	}

	var empty runRequest
	assert.Equal(t, defaults, empty.parameters(defaults))

	population := 300
	method := "uniform"
	adaptive := false
	seed := uint64(99)
	req := runRequest{
		PopulationSize:      &population,
		CrossoverMethod:     &method,
		UseAdaptiveMutation: &adaptive,
		Seed:                &seed,
	}

	got := req.parameters(defaults)
	assert.Equal(t, 300, got.PopulationSize)
	assert.Equal(t, domain.CrossoverUniform, got.CrossoverMethod)
	assert.False(t, got.UseAdaptiveMutation)
	assert.Equal(t, uint64(99), got.Seed)
	assert.Equal(t, 100, got.MinimumGenerations)
	assert.Equal(t, 1, got.ElitismCount)
}

func withRun(r *http.Request, run *domain.SchedulingRun) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), SchedulingRunCtx, run))
}

func TestExportSchedulingRun(t *testing.T) {
	h := newTestHandler(t)

	run := &domain.SchedulingRun{
		ID:     12,
		Name:   "春季排课",
		Status: domain.RunStatusSucceeded,
		Assignments: []domain.ScheduledActivity{
			{Activity: "SLA101A", Room: "Loft 310", TimeSlot: "10 AM", Facilitator: "Glen"},
		},
	}

	req := withRun(httptest.NewRequest(http.MethodGet, "/scheduling-runs/12/export?format=csv", nil), run)
	rec := httptest.NewRecorder()
	h.ExportSchedulingRun(rec, req)

	assert.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "12-chun-ji-pai-ke.csv")
	assert.Equal(t, "Activity,Room,Time,Facilitator\nSLA101A,Loft 310,10 AM,Glen\n", rec.Body.String())
}

func TestExportSchedulingRunErrors(t *testing.T) {
	h := newTestHandler(t)

	pending := &domain.SchedulingRun{ID: 3, Status: domain.RunStatusPending}
	req := withRun(httptest.NewRequest(http.MethodGet, "/scheduling-runs/3/export", nil), pending)
	rec := httptest.NewRecorder()
	h.ExportSchedulingRun(rec, req)
	resp := decodeResponse(t, rec)
	assert.False(t, resp.Success)
	assert.Equal(t, "排课运行尚未成功完成", resp.Message)

	done := &domain.SchedulingRun{ID: 3, Status: domain.RunStatusSucceeded}
	req = withRun(httptest.NewRequest(http.MethodGet, "/scheduling-runs/3/export?format=pdf", nil), done)
	rec = httptest.NewRecorder()
	h.ExportSchedulingRun(rec, req)
	resp = decodeResponse(t, rec)
	assert.False(t, resp.Success)
}

func TestDeleteRunningSchedulingRun(t *testing.T) {
	h := newTestHandler(t)

	run := &domain.SchedulingRun{ID: 5, Status: domain.RunStatusRunning}
	req := withRun(httptest.NewRequest(http.MethodDelete, "/scheduling-runs/5", nil), run)
	rec := httptest.NewRecorder()
	h.DeleteSchedulingRun(rec, req)

	resp := decodeResponse(t, rec)
	assert.False(t, resp.Success)
	assert.Equal(t, "排课运行正在执行，无法删除", resp.Message)
}
