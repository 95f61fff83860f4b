package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"wallet_saga/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "test-secret"

func newRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Logger("test"))
	r.GET("/internal", JWTAuthMiddleware(secret), ServiceOnly(), func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString(CallerKey))
	})
	r.GET("/admin", JWTAuthMiddleware(secret), OperatorOnly(), func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})
	return r
}

func get(t *testing.T, r *gin.Engine, path, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestJWTAuth(t *testing.T) {
	r := newRouter()
	svc, err := utils.GenerateJWT("payment", utils.RoleService, secret, time.Minute)
	require.NoError(t, err)
	op, err := utils.GenerateJWT("alice", utils.RoleOperator, secret, time.Minute)
	require.NoError(t, err)
	forged, err := utils.GenerateJWT("payment", utils.RoleService, "other", time.Minute)
	require.NoError(t, err)
	expired, err := utils.GenerateJWT("payment", utils.RoleService, secret, -time.Minute)
	require.NoError(t, err)

	w := get(t, r, "/internal", svc)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "payment", w.Body.String())

	assert.Equal(t, http.StatusUnauthorized, get(t, r, "/internal", "").Code)
	assert.Equal(t, http.StatusUnauthorized, get(t, r, "/internal", forged).Code)
	assert.Equal(t, http.StatusUnauthorized, get(t, r, "/internal", expired).Code)
	assert.Equal(t, http.StatusForbidden, get(t, r, "/internal", op).Code)
	assert.Equal(t, http.StatusForbidden, get(t, r, "/admin", svc).Code)
	assert.Equal(t, http.StatusOK, get(t, r, "/admin", op).Code)
	assert.Contains(t, get(t, r, "/admin", "").Body.String(), `"code":"unauthorized"`)
}
