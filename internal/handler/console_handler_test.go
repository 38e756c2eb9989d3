package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"powerhause/internal/deploy"
	"powerhause/internal/gateway"
	"powerhause/internal/middleware"
	"powerhause/internal/model"
	"powerhause/internal/session"
	"powerhause/internal/view"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// stubGateway 最小内存网关
type stubGateway struct {
	mu          sync.Mutex
	communities map[string]model.Community
	deployRes   *model.DeploymentResult
	deployErr   error
}

func newStubGateway(cs ...model.Community) *stubGateway {
	g := &stubGateway{communities: make(map[string]model.Community)}
	for _, c := range cs {
		c.ApplyDefaults()
		g.communities[c.ID] = c
	}
	return g
}

func (g *stubGateway) List(ctx context.Context) ([]model.Community, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]model.Community, 0)
	for _, c := range g.communities {
		out = append(out, c)
	}
	return out, nil
}

func (g *stubGateway) Get(ctx context.Context, id string) (*model.Community, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	c, ok := g.communities[id]
	if !ok {
		return nil, gateway.NewNotFound("get community", "Community not found")
	}
	return &c, nil
}

func (g *stubGateway) Create(ctx context.Context, name, purpose string) (*model.Community, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	c := model.Community{ID: "new", Name: name, Purpose: purpose, Rules: []string{}}
	c.ApplyDefaults()
	g.communities[c.ID] = c
	return &c, nil
}

func (g *stubGateway) Update(ctx context.Context, id string, f *model.UpdateFields) (*model.Community, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	c := g.communities[id]
	c.Name, c.Purpose, c.Rules = f.Name, f.Purpose, f.Rules
	c.TelegramToken, c.TelegramChatID = f.TelegramToken, f.TelegramChatID
	c.Status = model.StatusConfigured
	g.communities[id] = c
	return &c, nil
}

func (g *stubGateway) Deploy(ctx context.Context, id string) (*model.DeploymentResult, error) {
	return g.deployRes, g.deployErr
}

func (g *stubGateway) PostNow(ctx context.Context, id string) error {
	c, err := g.Get(ctx, id)
	if err != nil {
		return err
	}
	if c.Status != model.StatusActive {
		return gateway.NewOperation("post now", "Community is not active")
	}
	return nil
}

type consoleEnv struct {
	engine   *gin.Engine
	registry *view.Registry
}

func newConsoleEnv(gw gateway.Gateway) *consoleEnv {
	registry := view.NewRegistry(gw, zap.NewNop(), deploy.WithDelay(5*time.Millisecond))
	h := NewConsoleHandler(registry, gw, zap.NewNop())
	auth := NewAuthHandler(nil, registry, zap.NewNop())

	r := gin.New()
	r.Use(middleware.AuthMiddleware(session.Anonymous{}, zap.NewNop()))
	r.GET("/dashboard", h.Dashboard)
	r.POST("/dashboard/communities", h.CreateCommunity)
	r.POST("/dashboard/communities/:id/post-now", h.PostNow)
	r.POST("/setup/:id", h.OpenSetup)
	r.GET("/setup/:id", h.GetSetup)
	r.DELETE("/setup/:id", h.CloseSetup)
	r.PATCH("/setup/:id/fields", h.SetFields)
	r.POST("/setup/:id/rules", h.AddRule)
	r.PUT("/setup/:id/rules/:index", h.SetRule)
	r.DELETE("/setup/:id/rules/:index", h.RemoveRule)
	r.POST("/setup/:id/save", h.Save)
	r.POST("/setup/:id/deploy", h.Deploy)
	r.GET("/status/:id", h.Status)
	r.POST("/api/auth/logout", auth.Logout)
	r.GET("/api/auth/me", auth.Me)
	return &consoleEnv{engine: r, registry: registry}
}

func (e *consoleEnv) do(t *testing.T, method, path string, body any) (int, map[string]any) {
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.engine.ServeHTTP(w, req)

	out := map[string]any{}
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	}
	return w.Code, out
}

func TestConsole_DashboardCreateAndSetup(t *testing.T) {
	env := newConsoleEnv(newStubGateway())

	code, body := env.do(t, http.MethodGet, "/dashboard", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Empty(t, body["dashboard"].(map[string]any)["communities"])

	code, body = env.do(t, http.MethodPost, "/dashboard/communities", CreateCommunityReq{Name: "  "})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Please enter a community name", body["msg"])

	code, body = env.do(t, http.MethodPost, "/dashboard/communities", CreateCommunityReq{Name: "Book Club"})
	require.Equal(t, http.StatusCreated, code)
	assert.Equal(t, "/setup/new", body["navigate"])

	code, body = env.do(t, http.MethodPost, "/setup/new", nil)
	require.Equal(t, http.StatusOK, code)
	setup := body["setup"].(map[string]any)
	assert.Equal(t, []any{""}, setup["rules"])

	code, _ = env.do(t, http.MethodPut, "/setup/new/rules/0", RuleReq{Value: "Be kind"})
	require.Equal(t, http.StatusOK, code)
	code, body = env.do(t, http.MethodPut, "/setup/new/rules/3", RuleReq{Value: "x"})
	assert.Equal(t, http.StatusBadRequest, code)

	code, body = env.do(t, http.MethodDelete, "/setup/new/rules/0", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, false, body["removed"])

	code, body = env.do(t, http.MethodPost, "/setup/new/save", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "configured", body["setup"].(map[string]any)["status"])
}

func TestConsole_SetFieldsUnknown(t *testing.T) {
	env := newConsoleEnv(newStubGateway(model.Community{ID: "c1", Name: "Book Club"}))

	code, body := env.do(t, http.MethodPatch, "/setup/c1/fields", map[string]string{"color": "red"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "color", body["field"])
}

func TestConsole_SaveBlankName(t *testing.T) {
	env := newConsoleEnv(newStubGateway(model.Community{ID: "c1", Name: "Book Club"}))

	code, _ := env.do(t, http.MethodPatch, "/setup/c1/fields", map[string]string{"name": " "})
	require.Equal(t, http.StatusOK, code)
	code, body := env.do(t, http.MethodPost, "/setup/c1/save", nil)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Community name is required", body["msg"])
}

func TestConsole_SetupNotFound(t *testing.T) {
	env := newConsoleEnv(newStubGateway())

	code, body := env.do(t, http.MethodPost, "/setup/missing", nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "/dashboard", body["back"])
}

func TestConsole_DeployBlankToken(t *testing.T) {
	gw := newStubGateway(model.Community{ID: "c1", Name: "Book Club", TelegramChatID: "-100"})
	env := newConsoleEnv(gw)

	code, body := env.do(t, http.MethodPost, "/setup/c1/deploy", nil)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Telegram bot token and chat ID are required for deployment", body["msg"])
	assert.Equal(t, "idle", body["setup"].(map[string]any)["deploy"].(map[string]any)["state"])
}

func TestConsole_DeployFailure(t *testing.T) {
	gw := newStubGateway(model.Community{ID: "c1", Name: "Book Club", Status: model.StatusConfigured, TelegramToken: "t", TelegramChatID: "-1"})
	gw.deployErr = gateway.NewDeployment("deploy community", "invalid token")
	env := newConsoleEnv(gw)

	code, body := env.do(t, http.MethodPost, "/setup/c1/deploy", nil)
	assert.Equal(t, http.StatusBadGateway, code)
	assert.Equal(t, "invalid token", body["msg"])
	d := body["setup"].(map[string]any)["deploy"].(map[string]any)
	assert.Equal(t, "failed", d["state"])
	assert.Equal(t, "invalid token", d["reason"])
}

func TestConsole_DeploySuccessHandsOffToStatus(t *testing.T) {
	gw := newStubGateway(model.Community{ID: "c1", Name: "Book Club", Status: model.StatusActive, TelegramToken: "1234567890abc", TelegramChatID: "-1"})
	gw.deployRes = &model.DeploymentResult{Status: "deployed", Message: "ok"}
	env := newConsoleEnv(gw)

	code, body := env.do(t, http.MethodPost, "/setup/c1/deploy", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "succeeded", body["setup"].(map[string]any)["deploy"].(map[string]any)["state"])

	require.Eventually(t, func() bool {
		_, body := env.do(t, http.MethodGet, "/setup/c1", nil)
		return body["setup"].(map[string]any)["navigate"] == "/status/c1"
	}, time.Second, 5*time.Millisecond)

	code, body = env.do(t, http.MethodGet, "/status/c1", nil)
	require.Equal(t, http.StatusOK, code)
	status := body["status"].(map[string]any)
	assert.Equal(t, true, status["deployed"])
	assert.Equal(t, "ok", status["message"])
	assert.Equal(t, map[string]any{"status": "deployed", "message": "ok"}, status["deployment"])
	assert.Equal(t, "1234567890...", status["token_preview"])

	// 交接结果只展示一次
	_, body = env.do(t, http.MethodGet, "/status/c1", nil)
	assert.Equal(t, false, body["status"].(map[string]any)["deployed"])
}

func TestConsole_StatusNotFound(t *testing.T) {
	env := newConsoleEnv(newStubGateway())

	code, body := env.do(t, http.MethodGet, "/status/missing", nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "/dashboard", body["back"])
}

func TestConsole_PostNow(t *testing.T) {
	env := newConsoleEnv(newStubGateway(
		model.Community{ID: "live", Name: "Live", Status: model.StatusActive},
		model.Community{ID: "idle", Name: "Idle", Status: model.StatusConfigured},
	))

	code, body := env.do(t, http.MethodPost, "/dashboard/communities/live/post-now", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Post sent successfully!", body["msg"])

	code, body = env.do(t, http.MethodPost, "/dashboard/communities/idle/post-now", nil)
	assert.Equal(t, http.StatusBadGateway, code)
	assert.Equal(t, "Community is not active", body["msg"])
}

func TestConsole_LogoutClosesViews(t *testing.T) {
	env := newConsoleEnv(newStubGateway(model.Community{ID: "c1", Name: "Book Club"}))

	code, _ := env.do(t, http.MethodPost, "/setup/c1", nil)
	require.Equal(t, http.StatusOK, code)
	code, _ = env.do(t, http.MethodPost, "/api/auth/logout", nil)
	require.Equal(t, http.StatusOK, code)

	_, ok := env.registry.Setup(session.AnonymousOperatorID, "c1")
	assert.False(t, ok)

	code, body := env.do(t, http.MethodGet, "/api/auth/me", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["anonymous"])
}
