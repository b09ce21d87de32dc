package api_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/persistorai/fluxtrace/internal/api"
)

const testAPIKey = "test-key"

func init() {
	gin.SetMode(gin.TestMode)
}

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.ErrorLevel)

	return l
}

// newTestRouter builds the full router around deps, filling in the logger
// and a test CORS origin.
func newTestRouter(t *testing.T, deps api.RouterDeps) http.Handler {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	if deps.Log == nil {
		deps.Log = testLogger()
	}

	if deps.CORSOrigins == nil {
		deps.CORSOrigins = []string{"http://localhost:3002"}
	}

	return api.NewRouter(ctx, &deps)
}

// doRequest performs an HTTP request against the router and returns the recorder.
func doRequest(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, http.NoBody)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	return w
}
