package transport

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/resident-x/go-omnik/internal/domain"
)

func TestFetchSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/js/status.js", r.URL.Path)
		w.Header().Set("Content-Type", "application/x-javascript")
		_, _ = w.Write([]byte(`var webData="AANN3020,,,Omnik3000tl,3000,1313,685,8901,,1,";`))
	}))
	defer server.Close()

	source := NewHTTPSource(hostOf(t, server))
	defer source.Close()

	body, err := source.Fetch(context.Background(), "js/status.js", nil)
	require.NoError(t, err)
	assert.Contains(t, body, "webData")
}

func TestFetchSendsQueryParams(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "inv_query", r.URL.Query().Get("CMD"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"sn": "12345678"}`))
	}))
	defer server.Close()

	source := NewHTTPSource(hostOf(t, server))
	defer source.Close()

	params := url.Values{}
	params.Set("CMD", "inv_query")
	_, err := source.Fetch(context.Background(), "status.json", params)
	require.NoError(t, err)
}

func TestFetchSendsBasicAuth(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "klaas" || pass != "supercool" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html></html>"))
	}))
	defer server.Close()

	source := NewHTTPSource(hostOf(t, server), WithBasicAuth("klaas", "supercool"))
	defer source.Close()

	_, err := source.Fetch(context.Background(), "status.html", nil)
	require.NoError(t, err)
}

func TestFetchErrorStatusIsConnectionError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	source := NewHTTPSource(hostOf(t, server))
	defer source.Close()

	_, err := source.Fetch(context.Background(), "status.html", nil)
	require.Error(t, err)

	var connErr *domain.ConnectionError
	assert.True(t, errors.As(err, &connErr), "expected a ConnectionError, got %T", err)
}

func TestFetchUnreachableHostIsConnectionError(t *testing.T) {
	source := NewHTTPSource("127.0.0.1:1", WithTimeout(time.Second))
	defer source.Close()

	_, err := source.Fetch(context.Background(), "status.json", nil)
	require.Error(t, err)

	var connErr *domain.ConnectionError
	assert.True(t, errors.As(err, &connErr), "expected a ConnectionError, got %T", err)
}

func TestFetchUnexpectedContentTypeIsDecodeError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte("not status output"))
	}))
	defer server.Close()

	source := NewHTTPSource(hostOf(t, server))
	defer source.Close()

	_, err := source.Fetch(context.Background(), "status.json", nil)
	require.Error(t, err)

	var decodeErr *domain.DecodeError
	assert.True(t, errors.As(err, &decodeErr), "expected a DecodeError, got %T", err)
}

// hostOf strips the scheme from an httptest server URL.
func hostOf(t *testing.T, server *httptest.Server) string {
	t.Helper()
	return strings.TrimPrefix(server.URL, "http://")
}
