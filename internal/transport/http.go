// Package transport fetches raw status payloads from an inverter over
// HTTP(S) or its raw TCP status port. It knows nothing about payload
// structure; parsing lives elsewhere.
package transport

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/resident-x/go-omnik/internal/domain"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Content types the supported firmware families are known to emit.
var acceptedContentTypes = []string{
	"application/json",
	"application/x-javascript",
	"text/html",
}

// HTTPSource fetches payloads from an inverter's embedded web server.
type HTTPSource struct {
	host       string
	useSSL     bool
	username   string
	password   string
	client     *http.Client
	ownsClient bool
	logger     zerolog.Logger
}

// HTTPOption customizes an HTTPSource.
type HTTPOption func(*HTTPSource)

// WithBasicAuth sets credentials sent with every request.
func WithBasicAuth(username, password string) HTTPOption {
	return func(s *HTTPSource) {
		s.username = username
		s.password = password
	}
}

// WithSSL toggles the https scheme.
func WithSSL(useSSL bool) HTTPOption {
	return func(s *HTTPSource) { s.useSSL = useSSL }
}

// WithHTTPClient supplies a caller-owned client. The source will not close
// it; callers that share a client across sources keep control of its
// lifecycle.
func WithHTTPClient(client *http.Client) HTTPOption {
	return func(s *HTTPSource) {
		s.client = client
		s.ownsClient = false
	}
}

// WithTimeout bounds each fetch when the source owns its client.
func WithTimeout(timeout time.Duration) HTTPOption {
	return func(s *HTTPSource) {
		if s.ownsClient {
			s.client.Timeout = timeout
		}
	}
}

// NewHTTPSource creates a fetcher for the given host.
func NewHTTPSource(host string, opts ...HTTPOption) *HTTPSource {
	source := &HTTPSource{
		host:       host,
		client:     &http.Client{Timeout: 10 * time.Second},
		ownsClient: true,
		logger:     log.With().Str("component", "transport").Logger(),
	}
	for _, opt := range opts {
		opt(source)
	}
	return source
}

// Fetch retrieves one payload from the given URI (without leading slash).
// Transport failures and HTTP error statuses surface as ConnectionError;
// an unexpected content type is a DecodeError, because the device answered
// but not with status output.
func (s *HTTPSource) Fetch(ctx context.Context, uri string, params url.Values) (string, error) {
	scheme := "http"
	if s.useSSL {
		scheme = "https"
	}
	endpoint := url.URL{Scheme: scheme, Host: s.host, Path: "/" + uri, RawQuery: params.Encode()}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return "", fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml")
	if s.username != "" || s.password != "" {
		req.SetBasicAuth(s.username, s.password)
	}

	s.logger.Debug().Str("url", endpoint.String()).Msg("Fetching payload")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", domain.NewConnectionError(s.host, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= http.StatusBadRequest {
		return "", domain.NewConnectionError(s.host, fmt.Errorf("unexpected HTTP status %d", resp.StatusCode))
	}

	contentType := resp.Header.Get("Content-Type")
	if !acceptableContentType(contentType) {
		return "", domain.NewDecodeErrorf("unexpected content type %q", contentType)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", domain.NewConnectionError(s.host, err)
	}

	return string(body), nil
}

func acceptableContentType(contentType string) bool {
	for _, accepted := range acceptedContentTypes {
		if strings.Contains(contentType, accepted) {
			return true
		}
	}
	return false
}

// Close releases the internally owned client's idle connections. A
// caller-supplied client is left untouched.
func (s *HTTPSource) Close() {
	if s.ownsClient {
		s.client.CloseIdleConnections()
	}
}
