package router

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestRegistry_MountsModulesUnderBasePath(t *testing.T) {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	calls := 0

	reg := NewRegistry(engine, "/api").
		Use(func(c *gin.Context) { c.Header("X-Seen", "1"); c.Next() }).
		Add(ModuleFunc(func(rg *gin.RouterGroup) {
			calls++
			rg.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })
		}))
	reg.Mount()
	reg.Mount()

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/ping", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "pong", w.Body.String())
	assert.Equal(t, "1", w.Header().Get("X-Seen"))
	assert.Equal(t, 1, calls)
}
