// Package httpclient provides an instrumented HTTP client with OTEL tracing and metrics.
package httpclient

import (
	"net/http"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// ClientOptions holds configuration for the instrumented HTTP client.
type ClientOptions struct {
	client         *http.Client
	meterProvider  metric.MeterProvider
	providerName   string
	roundTripper   http.RoundTripper
	requestTimeout *time.Duration
	headers        map[string]string
	baseURL        string
	tracer         trace.Tracer
}

// ClientOption configures ClientOptions.
type ClientOption func(*ClientOptions)

func newClientOptions(opts ...ClientOption) *ClientOptions {
	options := &ClientOptions{}
	for _, o := range opts {
		o(options)
	}
	return options
}

// WithHTTPClient uses c instead of a freshly built client.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(o *ClientOptions) { o.client = c }
}

// WithMeterProvider sets the OTEL meter provider.
func WithMeterProvider(mp metric.MeterProvider) ClientOption {
	return func(o *ClientOptions) { o.meterProvider = mp }
}

// WithProviderName labels metrics and spans with the upstream's name.
func WithProviderName(name string) ClientOption {
	return func(o *ClientOptions) { o.providerName = name }
}

// WithRoundTripper sets a custom HTTP transport.
func WithRoundTripper(rt http.RoundTripper) ClientOption {
	return func(o *ClientOptions) { o.roundTripper = rt }
}

// WithRequestTimeout sets the per-request timeout.
func WithRequestTimeout(timeout time.Duration) ClientOption {
	return func(o *ClientOptions) { o.requestTimeout = &timeout }
}

// WithHeaders sets default headers for all requests.
func WithHeaders(headers map[string]string) ClientOption {
	return func(o *ClientOptions) { o.headers = headers }
}

// WithBaseURL resolves relative request paths against url.
func WithBaseURL(url string) ClientOption {
	return func(o *ClientOptions) { o.baseURL = url }
}

// WithTracer overrides the tracer.
func WithTracer(t trace.Tracer) ClientOption {
	return func(o *ClientOptions) { o.tracer = t }
}

// ResponseErrorHandler turns a response into an error, or returns nil to accept it.
type ResponseErrorHandler func(statusCode int, body []byte) error

// RequestOption configures a single request.
type RequestOption func(*requestBuilder)

// WithResponseErrorHandler sets a custom error handler for the response.
func WithResponseErrorHandler(handler ResponseErrorHandler) RequestOption {
	return func(r *requestBuilder) { r.errorHandler = handler }
}

// WithLabel adds a metric attribute to the request.
func WithLabel(key, value string) RequestOption {
	return func(r *requestBuilder) { r.labels[key] = value }
}
