package upstream

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPostJSON_HappyPath(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.JSONEq(t, `{"a":"b"}`, string(body))
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	header := http.Header{}
	header.Set("Authorization", "Bearer sk-test")
	raw, err := PostJSON(context.Background(), srv.Client(), srv.URL, header, map[string]string{"a": "b"})
	require.NoError(t, err)
	require.Equal(t, `{"ok":true}`, string(raw))
}

func TestPostJSON_Non2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":{"message":"overloaded"}}`))
	}))
	defer srv.Close()

	_, err := PostJSON(context.Background(), srv.Client(), srv.URL+"/x?key=secret", nil, struct{}{})
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	require.Equal(t, http.StatusServiceUnavailable, statusErr.HTTPStatusCode())
	require.Equal(t, "Service Unavailable", statusErr.StatusText)
	require.Equal(t, "overloaded", statusErr.UpstreamMessage())
	require.NotContains(t, err.Error(), "secret")
}

func TestPostJSON_NetworkError(t *testing.T) {
	client := &http.Client{Timeout: 100 * time.Millisecond}
	_, err := PostJSON(context.Background(), client, "http://127.0.0.1:1", nil, struct{}{})
	require.Error(t, err)
	require.Contains(t, err.Error(), "request failed")

	var statusErr *StatusError
	require.False(t, errors.As(err, &statusErr))
}

func TestPostJSON_MarshalError(t *testing.T) {
	_, err := PostJSON(context.Background(), nil, "http://127.0.0.1:1", nil, make(chan int))
	require.Error(t, err)
	require.Contains(t, err.Error(), "marshal request")
}

func TestUpstreamMessage(t *testing.T) {
	cases := []struct {
		name string
		err  StatusError
		want string
	}{
		{name: "nested message", err: StatusError{StatusCode: 400, Body: `{"error":{"message":"bad model"}}`}, want: "bad model"},
		{name: "string error", err: StatusError{StatusCode: 400, Body: `{"error":"bad"}`}, want: "bad"},
		{name: "top-level message", err: StatusError{StatusCode: 400, Body: `{"message":"nope"}`}, want: "nope"},
		{name: "not json uses status text", err: StatusError{StatusCode: 502, StatusText: "Bad Gateway", Body: `<html>`}, want: "Bad Gateway"},
		{name: "empty body without status text", err: StatusError{StatusCode: 404}, want: "Not Found"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, tc.err.UpstreamMessage())
		})
	}
}

func TestRedactURL(t *testing.T) {
	require.Equal(t, "https://x/y", RedactURL("https://x/y?key=abc"))
	require.Equal(t, "https://x/y", RedactURL("https://x/y"))
}
