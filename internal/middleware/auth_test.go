package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"testing"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/ut"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RodrigoCConte/monofloor-admin-sub002/config"
	"github.com/RodrigoCConte/monofloor-admin-sub002/pkg/token"
)

var (
	authOnce sync.Once
	authErr  error
)

func initAuth(t *testing.T) {
	t.Helper()
	authOnce.Do(func() {
		config.Cfg.JWTSecret = "middleware-test-secret"
		config.Cfg.JWTExpireMinutes = 60
		config.Cfg.JWTRefreshDays = 1
		if authErr = token.Init(); authErr != nil {
			return
		}
		authErr = Init()
	})
	require.NoError(t, authErr)
}

func newAuthServer(t *testing.T) *server.Hertz {
	t.Helper()
	initAuth(t)

	h := server.New(server.WithHostPorts("127.0.0.1:0"))
	h.GET("/me", AuthMiddleware(), func(ctx context.Context, c *app.RequestContext) {
		id, ok := GetWorkerID(ctx, c)
		c.JSON(http.StatusOK, map[string]interface{}{"worker_id": id, "ok": ok})
	})
	return h
}

func TestAuthMiddlewareResolvesWorker(t *testing.T) {
	h := newAuthServer(t)
	access, _, _, err := token.GenerateTokenPair(42)
	require.NoError(t, err)

	w := ut.PerformRequest(h.Engine, http.MethodGet, "/me", nil,
		ut.Header{Key: "Authorization", Value: "Bearer " + access})
	resp := w.Result()
	require.Equal(t, http.StatusOK, resp.StatusCode(), string(resp.Body()))

	var body struct {
		WorkerID int64 `json:"worker_id"`
		OK       bool  `json:"ok"`
	}
	require.NoError(t, json.Unmarshal(resp.Body(), &body))
	assert.True(t, body.OK)
	assert.Equal(t, int64(42), body.WorkerID)

	// query 参数同样可以携带令牌
	w = ut.PerformRequest(h.Engine, http.MethodGet, "/me?token="+access, nil)
	assert.Equal(t, http.StatusOK, w.Result().StatusCode())
}

func TestAuthMiddlewareRejects(t *testing.T) {
	h := newAuthServer(t)
	_, refresh, _, err := token.GenerateTokenPair(42)
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
	}{
		{"missing token", ""},
		{"malformed token", "Bearer not-a-jwt"},
		{"refresh token", "Bearer " + refresh},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var headers []ut.Header
			if tt.header != "" {
				headers = append(headers, ut.Header{Key: "Authorization", Value: tt.header})
			}
			w := ut.PerformRequest(h.Engine, http.MethodGet, "/me", nil, headers...)
			resp := w.Result()
			assert.Equal(t, http.StatusUnauthorized, resp.StatusCode())
			assert.Contains(t, string(resp.Body()), "UNAUTHORIZED")
		})
	}
}
