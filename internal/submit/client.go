package submit

import (
	"context"
	"net/http"
	"time"

	"submitter/internal/models"
	"submitter/internal/ratelimit"
)

// Client bundles a permit pool and a gateway behind the two calls
// applications need: CreateDocument and Shutdown.
type Client struct {
	pool    *ratelimit.PermitPool
	gateway *Gateway
}

type clientOptions struct {
	transport   Transport
	poolOpts    []ratelimit.PoolOption
	gatewayOpts []Option
}

// ClientOption configures a Client.
type ClientOption func(*clientOptions)

// WithTransport replaces the default HTTP transport.
func WithTransport(transport Transport) ClientOption {
	return func(o *clientOptions) { o.transport = transport }
}

// WithPoolOptions passes options to the underlying permit pool.
func WithPoolOptions(opts ...ratelimit.PoolOption) ClientOption {
	return func(o *clientOptions) { o.poolOpts = append(o.poolOpts, opts...) }
}

// WithGatewayOptions passes options to the underlying gateway.
func WithGatewayOptions(opts ...Option) ClientOption {
	return func(o *clientOptions) { o.gatewayOpts = append(o.gatewayOpts, opts...) }
}

// NewClient admits at most requestLimit documents per timeUnit. Invalid
// arguments fail with an error matching ErrConfiguration before any
// background work starts.
func NewClient(timeUnit time.Duration, requestLimit int, opts ...ClientOption) (*Client, error) {
	o := &clientOptions{}
	for _, opt := range opts {
		opt(o)
	}
	if o.transport == nil {
		o.transport = NewHTTPTransport(models.DefaultEndpointURL, &http.Client{Timeout: 30 * time.Second})
	}

	pool, err := ratelimit.NewPermitPool(requestLimit, timeUnit, o.poolOpts...)
	if err != nil {
		return nil, NewConfigurationError("invalid rate limit", err)
	}

	gateway, err := NewGateway(pool, o.transport, o.gatewayOpts...)
	if err != nil {
		pool.Stop()
		return nil, err
	}

	return &Client{
		pool:    pool,
		gateway: gateway,
	}, nil
}

// CreateDocument submits document signed with signature. See Gateway.Submit.
func (c *Client) CreateDocument(ctx context.Context, document any, signature string) (int, error) {
	return c.gateway.Submit(ctx, document, signature)
}

// Pool exposes the client's permit pool for instrumentation.
func (c *Client) Pool() *ratelimit.PermitPool {
	return c.pool
}

// Shutdown stops the replenishment timer. Calls already waiting for a permit
// are not released. Safe to call more than once.
func (c *Client) Shutdown() {
	c.pool.Stop()
}
