// Package client provides the façade that fetches a payload from a
// configured inverter and dispatches it to the right parser.
package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/resident-x/go-omnik/internal/domain"
	"github.com/resident-x/go-omnik/internal/parser"
	"github.com/resident-x/go-omnik/internal/protocol"
	"github.com/resident-x/go-omnik/internal/transport"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Endpoint paths per source type.
const (
	uriJavaScript = "js/status.js"
	uriJSON       = "status.json"
	uriHTML       = "status.html"

	defaultTCPPort = 8899
	defaultTimeout = 10 * time.Second
)

// Options configures a Client.
type Options struct {
	// Host is the inverter's address. Required.
	Host string
	// SourceType selects the wire format; defaults to javascript.
	SourceType domain.SourceType
	// Username and Password enable basic auth for web sources. The html
	// source requires both.
	Username string
	Password string
	// UseSSL toggles the https scheme for web sources.
	UseSSL bool
	// Timeout bounds each fetch.
	Timeout time.Duration
	// TCPPort and SerialNumber apply to the tcp source only.
	TCPPort      int
	SerialNumber uint32
	// HTTPClient optionally supplies a caller-owned client reused across
	// requests; the Client will not close it.
	HTTPClient *http.Client
}

// Client fetches and parses status records from one inverter. The two
// accessor calls are independent and safe to issue concurrently; parsing is
// pure and synchronous.
type Client struct {
	opts   Options
	http   *transport.HTTPSource
	logger zerolog.Logger
}

// New validates the options and builds a client. Configuration problems
// (unknown source type, html without credentials, tcp without a serial
// number) are reported here, before any request is made.
func New(opts Options) (*Client, error) {
	if opts.Host == "" {
		return nil, fmt.Errorf("host is required")
	}
	if opts.SourceType == "" {
		opts.SourceType = domain.SourceJavaScript
	}
	if !opts.SourceType.Valid() {
		return nil, fmt.Errorf("unknown source type %q", opts.SourceType)
	}
	if opts.SourceType == domain.SourceHTML && (opts.Username == "" || opts.Password == "") {
		return nil, fmt.Errorf("the html source requires a username and password")
	}
	if opts.SourceType == domain.SourceTCP && opts.SerialNumber == 0 {
		return nil, fmt.Errorf("the tcp source requires the logger serial number")
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.TCPPort == 0 {
		opts.TCPPort = defaultTCPPort
	}

	c := &Client{
		opts:   opts,
		logger: log.With().Str("component", "client").Str("host", opts.Host).Logger(),
	}

	if opts.SourceType != domain.SourceTCP {
		httpOpts := []transport.HTTPOption{
			transport.WithSSL(opts.UseSSL),
			transport.WithTimeout(opts.Timeout),
		}
		if opts.Username != "" || opts.Password != "" {
			httpOpts = append(httpOpts, transport.WithBasicAuth(opts.Username, opts.Password))
		}
		if opts.HTTPClient != nil {
			httpOpts = append(httpOpts, transport.WithHTTPClient(opts.HTTPClient))
		}
		c.http = transport.NewHTTPSource(opts.Host, httpOpts...)
	}

	return c, nil
}

// Inverter fetches and parses production telemetry.
func (c *Client) Inverter(ctx context.Context) (domain.Inverter, error) {
	switch c.opts.SourceType {
	case domain.SourceJSON:
		payload, err := c.fetchJSON(ctx)
		if err != nil {
			return domain.Inverter{}, err
		}
		return parser.JSONInverter(payload)
	case domain.SourceHTML:
		payload, err := c.http.Fetch(ctx, uriHTML, nil)
		if err != nil {
			return domain.Inverter{}, err
		}
		return parser.HTMLInverter(payload)
	case domain.SourceTCP:
		reply, err := transport.FetchFrame(ctx, c.opts.Host, c.opts.TCPPort, c.opts.SerialNumber, c.opts.Timeout)
		if err != nil {
			return domain.Inverter{}, err
		}
		return protocol.ParseReply(c.logger, c.opts.SerialNumber, reply)
	default:
		payload, err := c.http.Fetch(ctx, uriJavaScript, nil)
		if err != nil {
			return domain.Inverter{}, err
		}
		return parser.JSInverter(payload)
	}
}

// Device fetches and parses communication module status. The tcp source has
// no communication module endpoint; it yields an empty record.
func (c *Client) Device(ctx context.Context) (domain.Device, error) {
	switch c.opts.SourceType {
	case domain.SourceJSON:
		payload, err := c.fetchJSON(ctx)
		if err != nil {
			return domain.Device{}, err
		}
		return parser.JSONDevice(payload)
	case domain.SourceHTML:
		payload, err := c.http.Fetch(ctx, uriHTML, nil)
		if err != nil {
			return domain.Device{}, err
		}
		return parser.HTMLDevice(payload)
	case domain.SourceTCP:
		return domain.Device{}, nil
	default:
		payload, err := c.http.Fetch(ctx, uriJavaScript, nil)
		if err != nil {
			return domain.Device{}, err
		}
		return parser.JSDevice(payload)
	}
}

func (c *Client) fetchJSON(ctx context.Context) (string, error) {
	params := url.Values{}
	params.Set("CMD", "inv_query")
	return c.http.Fetch(ctx, uriJSON, params)
}

// Close releases transport resources. Safe to call for every source type.
func (c *Client) Close() error {
	if c.http != nil {
		c.http.Close()
	}
	return nil
}
