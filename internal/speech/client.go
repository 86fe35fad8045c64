// Package speech is a client for the Google Cloud Speech API that can talk
// to the service over gRPC or over plain HTTP/JSON.
package speech

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
)

// Scope is the OAuth2 scope required for authenticating as an API consumer.
var Scope = []string{"https://www.googleapis.com/auth/cloud-platform"}

// ErrClosed is returned by SpeechAPI once the client has been closed.
var ErrClosed = errors.New("speech: client is closed")

// Transport identifies the wire protocol a Client's backend speaks.
type Transport int

const (
	TransportGRPC Transport = iota
	TransportHTTP
)

func (t Transport) String() string {
	switch t {
	case TransportGRPC:
		return "grpc"
	case TransportHTTP:
		return "http"
	default:
		return "unknown"
	}
}

// Options configures a Client. Every field is optional.
type Options struct {
	// Credentials used for requests. When nil and no transport handle is
	// given, Application Default Credentials are used.
	Credentials *google.Credentials

	// HTTPClient is used by the HTTP backend instead of an authenticated
	// client built from Credentials.
	HTTPClient *http.Client

	// GRPCConn is used by the gRPC backend instead of dialing. The caller
	// owns it: Client.Close leaves it open.
	GRPCConn *grpc.ClientConn

	// UseGRPC explicitly selects the transport. When nil the choice falls
	// back to DisableGRPC.
	UseGRPC *bool

	// DisableGRPC is the process-wide default, normally read once from
	// GOOGLE_CLOUD_DISABLE_GRPC by config.Load.
	DisableGRPC bool

	// Endpoint overrides the service address (host:port for gRPC, base URL
	// for HTTP).
	Endpoint string

	Logger logrus.FieldLogger
}

// Bool is a helper for Options.UseGRPC.
func Bool(v bool) *bool { return &v }

type backendFactory func(ctx context.Context, c *Client) (API, error)

// Client bundles the configuration needed for Speech API requests and lazily
// creates the backend that performs them.
type Client struct {
	credentials *google.Credentials
	httpClient  *http.Client
	grpcConn    *grpc.ClientConn
	endpoint    string
	transport   Transport
	log         logrus.FieldLogger

	newGRPC backendFactory
	newHTTP backendFactory

	mu     sync.Mutex
	api    API
	closed bool
}

// New returns a Client with the transport fixed from opts: UseGRPC when set,
// otherwise gRPC unless DisableGRPC. No backend is created until SpeechAPI.
func New(opts Options) *Client {
	useGRPC := !opts.DisableGRPC
	if opts.UseGRPC != nil {
		useGRPC = *opts.UseGRPC
	}

	transport := TransportHTTP
	if useGRPC {
		transport = TransportGRPC
	}

	log := opts.Logger
	if log == nil {
		log = logrus.New()
	}

	return &Client{
		credentials: opts.Credentials,
		httpClient:  opts.HTTPClient,
		grpcConn:    opts.GRPCConn,
		endpoint:    opts.Endpoint,
		transport:   transport,
		log:         log,
		newGRPC:     newGRPCAPI,
		newHTTP:     newHTTPAPI,
	}
}

// NewWithBackend returns a client whose backend is already set, for callers
// that bring their own API implementation.
func NewWithBackend(opts Options, api API) *Client {
	c := New(opts)
	c.api = api
	return c
}

// Transport reports the transport resolved at construction.
func (c *Client) Transport() Transport { return c.transport }

// Credentials returns the credentials given at construction, or nil.
func (c *Client) Credentials() *google.Credentials { return c.credentials }

// Sample builds a Sample bound to this client. Arguments are copied as-is;
// validation happens when the sample is used.
func (c *Client) Sample(cfg SampleConfig) *Sample {
	return &Sample{
		content:    cfg.Content,
		sourceURI:  cfg.SourceURI,
		stream:     cfg.Stream,
		encoding:   cfg.Encoding,
		sampleRate: cfg.SampleRate,
		client:     c,
	}
}

// SpeechAPI returns the backend for this client, creating it on first use.
// The same instance is returned for the lifetime of the client. A failed
// construction is not remembered, so a later call tries again. After Close it
// returns ErrClosed.
func (c *Client) SpeechAPI(ctx context.Context) (API, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, ErrClosed
	}
	if c.api != nil {
		return c.api, nil
	}

	build := c.newHTTP
	if c.transport == TransportGRPC {
		build = c.newGRPC
	}
	api, err := build(ctx, c)
	if err != nil {
		return nil, err
	}

	c.log.WithField("transport", c.transport.String()).Debug("speech api backend created")
	c.api = api
	return api, nil
}

// Close releases the backend, if one was created, and ends the client's
// lifetime. Calling it again is a no-op.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closed = true
	if c.api == nil {
		return nil
	}
	err := c.api.Close()
	c.api = nil
	return err
}

func (c *Client) clientOptions() []option.ClientOption {
	opts := []option.ClientOption{option.WithScopes(Scope...)}
	if c.credentials != nil {
		opts = append(opts, option.WithCredentials(c.credentials))
	}
	if c.endpoint != "" {
		opts = append(opts, option.WithEndpoint(c.endpoint))
	}
	return opts
}
