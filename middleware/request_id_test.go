package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

func requestIDTestRouter() (*gin.Engine, *string) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(RequestID())

	var seen string
	router.GET("/ping", func(c *gin.Context) {
		seen = GetRequestID(c)
		c.Status(http.StatusOK)
	})
	return router, &seen
}

func TestRequestIDGeneratesUUID(t *testing.T) {
	router, seen := requestIDTestRouter()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))

	id := rec.Header().Get(RequestIDHeader)
	if id == "" {
		t.Fatal("no request id header on response")
	}
	if _, err := uuid.Parse(id); err != nil {
		t.Errorf("request id %q is not a uuid: %v", id, err)
	}
	if *seen != id {
		t.Errorf("handler saw id %q, response header has %q", *seen, id)
	}
}

func TestRequestIDHonorsUpstreamID(t *testing.T) {
	router, seen := requestIDTestRouter()

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(RequestIDHeader, "upstream-id-42")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if got := rec.Header().Get(RequestIDHeader); got != "upstream-id-42" {
		t.Errorf("response header id = %q, want the upstream id", got)
	}
	if *seen != "upstream-id-42" {
		t.Errorf("handler saw id %q, want the upstream id", *seen)
	}
}
