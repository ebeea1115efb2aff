package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func init() { gin.SetMode(gin.TestMode) }

func serve(r *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestManagerChainAndAbort(t *testing.T) {
	m := NewManager()
	var order []string
	m.Add(func(c *gin.Context) { order = append(order, "a") })
	m.Add(func(c *gin.Context) {
		order = append(order, "b")
		if c.Query("stop") != "" {
			c.AbortWithStatus(http.StatusTeapot)
		}
	})

	r := gin.New()
	r.Use(m.Use())
	r.GET("/x", func(c *gin.Context) { order = append(order, "h"); c.Status(http.StatusOK) })

	assert.Equal(t, http.StatusOK, serve(r, httptest.NewRequest(http.MethodGet, "/x", nil)).Code)
	assert.Equal(t, []string{"a", "b", "h"}, order)

	order = nil
	assert.Equal(t, http.StatusTeapot, serve(r, httptest.NewRequest(http.MethodGet, "/x?stop=1", nil)).Code)
	assert.Equal(t, []string{"a", "b"}, order)

	m.Clear()
	assert.Equal(t, 0, m.Len())
	order = nil
	serve(r, httptest.NewRequest(http.MethodGet, "/x?stop=1", nil))
	assert.Equal(t, []string{"h"}, order)
}

func TestOrigin(t *testing.T) {
	r := gin.New()
	r.Use(Origin([]string{"https://play.example.com/"}))
	r.GET("/ws", func(c *gin.Context) { c.Status(http.StatusOK) })

	upgrade := func(origin string) *http.Request {
		req := httptest.NewRequest(http.MethodGet, "/ws", nil)
		req.Header.Set("Upgrade", "websocket")
		if origin != "" {
			req.Header.Set("Origin", origin)
		}
		return req
	}

	assert.Equal(t, http.StatusOK, serve(r, upgrade("https://play.example.com")).Code)
	assert.Equal(t, http.StatusOK, serve(r, upgrade("")).Code)
	w := serve(r, upgrade("https://evil.example.com"))
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "OriginDenied")

	// plain GETs are not checked
	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	assert.Equal(t, http.StatusOK, serve(r, req).Code)
}

func TestOriginEmptyAllowsAll(t *testing.T) {
	r := gin.New()
	r.Use(Origin(nil))
	r.GET("/ws", func(c *gin.Context) { c.Status(http.StatusOK) })
	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	req.Header.Set("Upgrade", "websocket")
	req.Header.Set("Origin", "https://anything")
	assert.Equal(t, http.StatusOK, serve(r, req).Code)
}

func TestAccessLog(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	r := gin.New()
	r.Use(AccessLog(zap.New(core)))
	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	serve(r, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	entries := logs.FilterMessage("request").All()
	if assert.Len(t, entries, 1) {
		ctx := entries[0].ContextMap()
		assert.Equal(t, "/healthz", ctx["path"])
		assert.Equal(t, int64(http.StatusNoContent), ctx["status"])
	}
}
