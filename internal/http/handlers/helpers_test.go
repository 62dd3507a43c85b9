package handlers_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/geocoder89/sitehub/internal/http/middlewares"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

const (
	testProjectID = "7a0c5f3e-54a4-4b55-8e0f-0c8f7f1a2b10"
	testUserID    = "3f1d2c4b-9e8a-4c7d-a6b5-112233445566"
)

// mount registers one handler the way the router would, with the caller
// already authenticated and past the project guard.
func mount(method, path string, h gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(middlewares.RequestID())
	r.Use(func(c *gin.Context) {
		c.Set(middlewares.CtxUserID, testUserID)
		c.Next()
	})
	r.Handle(method, path, h)
	return r
}

func serve(r *gin.Engine, method, path, body string, headers ...string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

type errorEnvelope struct {
	Error struct {
		Code      string `json:"code"`
		Message   string `json:"message"`
		RequestID string `json:"requestId"`
	} `json:"error"`
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var env errorEnvelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	require.NotEmpty(t, env.Error.RequestID)
	return env.Error.Code
}
