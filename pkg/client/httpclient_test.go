package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHttpClient_GET(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		assert.Equal(t, "v", r.Header.Get("X-Test"))
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte(`{"error":"short and stout","code":"TEAPOT"}`))
	}))
	defer server.Close()

	c := NewHttpClient(server.URL, WithTimeout(time.Second))
	resp, err := c.GET(context.Background(), "/x", map[string]string{"X-Test": "v"})
	require.NoError(t, err)

	assert.Equal(t, http.StatusTeapot, resp.StatusCode)
	assert.Equal(t, "short and stout", GetErrorMessage(resp))
}

func TestGetErrorMessage_NonJSON(t *testing.T) {
	resp := &Response{Response: &http.Response{StatusCode: http.StatusBadGateway}, Body: []byte("<html>")}
	assert.Equal(t, "status 502", GetErrorMessage(resp))
}
