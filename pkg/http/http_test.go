package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sampleRequest struct {
	Interval int    `query:"interval" json:"interval" validate:"required,gte=1"`
	Name     string `query:"name" json:"name" default:"anon" validate:"max=4"`
	Skipped  string `json:"-"`
}

func bindQuery(t *testing.T, query string) (*sampleRequest, []ValidationError) {
	t.Helper()
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/?"+query, nil), httptest.NewRecorder())
	req := &sampleRequest{}
	return req, ReadAndValidateRequest(c, req)
}

func TestReadAndValidateRequest(t *testing.T) {
	req, errs := bindQuery(t, "interval=3")
	require.Nil(t, errs)
	assert.Equal(t, 3, req.Interval)
	assert.Equal(t, "anon", req.Name)

	_, errs = bindQuery(t, "interval=0&name=toolong")
	require.Len(t, errs, 2)
	assert.Equal(t, ValidationError{Code: "ERR_REQUIRED", Field: "interval", Message: "interval is required"}, errs[0])
	assert.Equal(t, "name", errs[1].Field)
	assert.Equal(t, "name must be at most 4 characters", errs[1].Message)
	assert.Equal(t, map[string]interface{}{"max": "4"}, errs[1].Params)

	_, errs = bindQuery(t, "interval=abc")
	require.Len(t, errs, 1)
	assert.Equal(t, "ERR_BIND", errs[0].Code)
}

func TestAppErrorResponse(t *testing.T) {
	e := echo.New()

	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
	require.NoError(t, AppErrorResponse(c, NotFoundError("id", "missing")))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"status":404,"message":"Not Found","data":[{"code":"ERR_NOT_FOUND","field":"id","message":"missing"}]}`, rec.Body.String())

	rec = httptest.NewRecorder()
	c = e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
	require.NoError(t, AppErrorResponse(c, errors.New("boom")))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "ERR_INTERNAL")
	assert.NotContains(t, rec.Body.String(), "boom")
}

func TestAcceptedResponse(t *testing.T) {
	rec := httptest.NewRecorder()
	c := echo.New().NewContext(httptest.NewRequest(http.MethodPost, "/", nil), rec)
	require.NoError(t, AcceptedResponse(c, "/jobs/1", map[string]string{"id": "1"}))
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "/jobs/1", rec.Header().Get(echo.HeaderLocation))
}

func TestClientDecodeAPIResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		assert.Equal(t, "test/1", r.UserAgent())
		if r.Method == http.MethodPost {
			body, _ := io.ReadAll(r.Body)
			assert.JSONEq(t, `{"a":1}`, string(body))
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		}
		if r.URL.Query().Get("fail") != "" {
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(APIResponse{Status: 400, Message: "Bad Request", Data: []ValidationError{{Code: "ERR_X"}}})
			return
		}
		_ = json.NewEncoder(w).Encode(APIResponse{Status: 200, Message: "OK", Data: map[string]int{"n": len(r.URL.Query()["v"])}})
	}))
	defer srv.Close()

	cli := NewClient(WithUserAgent("test/1"))

	var got struct{ N int }
	err := cli.DecodeAPIResponse(context.Background(), &RequestOptions{
		Method: http.MethodGet, URL: srv.URL, QueryParams: map[string][]string{"v": {"1", "2"}},
	}, &got)
	require.NoError(t, err)
	assert.Equal(t, 2, got.N)

	err = cli.DecodeAPIResponse(context.Background(), &RequestOptions{Method: http.MethodPost, URL: srv.URL, Body: map[string]int{"a": 1}}, nil)
	require.NoError(t, err)

	err = cli.DecodeAPIResponse(context.Background(), &RequestOptions{Method: http.MethodGet, URL: srv.URL + "?fail=1"}, &got)
	var re *ResponseError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, http.StatusBadRequest, re.Status)
	assert.Equal(t, "ERR_X", re.Errors()[0].Code)
	assert.True(t, strings.Contains(err.Error(), "400"))
}
