package middlewares

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"prepd-server/services/realtime-api/internal/utils/platformerrors"
)

func TestRequestID_PropagatesIncomingHeader(t *testing.T) {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.Use(RequestID())

	var fromGin, fromErr string
	engine.GET("/ping", func(c *gin.Context) {
		fromGin = GetRequestID(c)
		err := platformerrors.NewError(c.Request.Context(), platformerrors.LayerHandler,
			platformerrors.ErrorTypeInternal, "boom", nil, "")
		fromErr = err.RequestID
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(RequestIDHeader, "req-abc")
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	if fromGin != "req-abc" {
		t.Errorf("gin context request ID = %q, want %q", fromGin, "req-abc")
	}
	if fromErr != "req-abc" {
		t.Errorf("error request ID = %q, want %q", fromErr, "req-abc")
	}
	if got := w.Header().Get(RequestIDHeader); got != "req-abc" {
		t.Errorf("response header = %q, want %q", got, "req-abc")
	}
}

func TestRequestID_GeneratesWhenMissing(t *testing.T) {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.Use(RequestID())

	var fromErr string
	engine.GET("/ping", func(c *gin.Context) {
		err := platformerrors.NewError(c.Request.Context(), platformerrors.LayerHandler,
			platformerrors.ErrorTypeInternal, "boom", nil, "")
		fromErr = err.RequestID
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	if fromErr == "" {
		t.Error("error request ID empty, want generated UUID")
	}
	if w.Header().Get(RequestIDHeader) != fromErr {
		t.Errorf("response header = %q, want the generated ID %q", w.Header().Get(RequestIDHeader), fromErr)
	}
}
