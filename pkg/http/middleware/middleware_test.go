package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	applogger "TrendChart/pkg/logger"
)

func logLines(buf *bytes.Buffer) []map[string]interface{} {
	var out []map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]interface{}
		if json.Unmarshal([]byte(line), &m) == nil {
			out = append(out, m)
		}
	}
	return out
}

func TestRecoverWritesEnvelope(t *testing.T) {
	var buf bytes.Buffer
	l := applogger.NewWithWriter(&buf, "info")

	e := echo.New()
	e.Use(Recover(l))
	e.GET("/boom", func(echo.Context) error { panic("kaboom") })

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))
	require.Equal(t, http.StatusInternalServerError, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, float64(500), body["status"])
	assert.Contains(t, rec.Body.String(), "ERR_INTERNAL")

	lines := logLines(&buf)
	require.NotEmpty(t, lines)
	assert.Equal(t, "http panic", lines[0]["message"])
	assert.Equal(t, "kaboom", lines[0]["error"])
	assert.Equal(t, "/boom", lines[0]["path"])
}

func TestRequestLoggingLevels(t *testing.T) {
	var buf bytes.Buffer
	l := applogger.NewWithWriter(&buf, "info")

	e := echo.New()
	e.Use(echomw.RequestID())
	e.Use(RequestLogging(l))
	e.GET("/ok", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	e.GET("/bad", func(echo.Context) error { return echo.NewHTTPError(http.StatusBadRequest, "nope") })
	e.GET("/fail", func(echo.Context) error { return echo.NewHTTPError(http.StatusBadGateway) })

	for _, path := range []string{"/ok", "/bad", "/fail"} {
		e.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	lines := logLines(&buf)
	require.Len(t, lines, 3)
	want := []struct {
		level  string
		status float64
	}{{"info", 200}, {"warn", 400}, {"error", 502}}
	for i, w := range want {
		assert.Equal(t, w.level, lines[i]["level"])
		assert.Equal(t, w.status, lines[i]["status"])
		assert.NotEmpty(t, lines[i]["request_id"])
	}
}
