package router

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestNewRouter(t *testing.T) {
	r := NewRouter(gin.New())

	assert.Equal(t, "v1", r.apiVersion)
	assert.Empty(t, r.registrars)
}

func TestRouterWithAPIVersion(t *testing.T) {
	r := NewRouter(gin.New(), WithAPIVersion("v2"))

	assert.Equal(t, "v2", r.apiVersion)
}

func TestRouterSetup(t *testing.T) {
	engine := gin.New()
	r := NewRouter(engine, WithAPIVersion("v1"))

	group := NewDomainGroup("test", "/test")
	group.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, "pong")
	})
	r.Register(group).Setup()

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest("GET", "/api/v1/test/ping", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "pong", w.Body.String())
}

func TestDomainGroup_Methods(t *testing.T) {
	engine := gin.New()
	r := NewRouter(engine)

	ok := func(c *gin.Context) { c.String(http.StatusOK, c.Request.Method) }
	group := NewDomainGroup("items", "/items").
		GET("", ok).
		POST("", ok).
		PUT("/:id", ok).
		PATCH("/:id", ok)
	r.Register(group).Setup()

	assert.Equal(t, "items", group.Name())
	assert.Equal(t, "/items", group.Prefix())

	tests := []struct {
		method string
		path   string
	}{
		{"GET", "/api/v1/items"},
		{"POST", "/api/v1/items"},
		{"PUT", "/api/v1/items/1"},
		{"PATCH", "/api/v1/items/1"},
	}
	for _, tt := range tests {
		t.Run(tt.method, func(t *testing.T) {
			w := httptest.NewRecorder()
			engine.ServeHTTP(w, httptest.NewRequest(tt.method, tt.path, nil))

			assert.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, tt.method, w.Body.String())
		})
	}
}

func TestDomainGroup_Middleware(t *testing.T) {
	engine := gin.New()
	r := NewRouter(engine)

	group := NewDomainGroup("guarded", "/guarded").
		Use(func(c *gin.Context) {
			c.Header("X-Group", "guarded")
			c.Next()
		}).
		GET("", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.Register(group).Setup()

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest("GET", "/api/v1/guarded", nil))

	assert.Equal(t, "guarded", w.Header().Get("X-Group"))
}
