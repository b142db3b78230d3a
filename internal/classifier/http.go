package classifier

import (
	"net"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/nhle/mailroute/internal/logging"
)

// Default HTTP timeouts for model calls.
const (
	DefaultConnectTimeout = 15 * time.Second
	DefaultReadTimeout    = 30 * time.Second
)

type options struct {
	baseURL   string
	client    *http.Client
	connect   time.Duration
	read      time.Duration
	maxTokens int
	logger    *zap.Logger
}

// Option configures a completer.
type Option func(*options)

// WithBaseURL points the completer at a different API root.
func WithBaseURL(u string) Option {
	return func(o *options) {
		if u != "" {
			o.baseURL = strings.TrimRight(u, "/")
		}
	}
}

// WithHTTPClient replaces the HTTP client. Timeouts are then the caller's
// responsibility.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) {
		o.client = c
	}
}

// WithTimeouts sets the connect and response timeouts. Zero values keep
// the defaults.
func WithTimeouts(connect, read time.Duration) Option {
	return func(o *options) {
		if connect > 0 {
			o.connect = connect
		}
		if read > 0 {
			o.read = read
		}
	}
}

// WithMaxTokens caps the answer length where the provider requires it.
func WithMaxTokens(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxTokens = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

func newOptions(baseURL string, opts []Option) options {
	o := options{
		baseURL:   baseURL,
		connect:   DefaultConnectTimeout,
		read:      DefaultReadTimeout,
		maxTokens: defaultMaxTokens,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.client == nil {
		o.client = newHTTPClient(o.connect, o.read)
	}
	o.logger = logging.OrNop(o.logger)
	return o
}

// newHTTPClient bounds dialing and the TLS handshake by connect, and the
// wait for response headers by read. The whole exchange is capped at their
// sum.
func newHTTPClient(connect, read time.Duration) *http.Client {
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: connect}).DialContext,
		TLSHandshakeTimeout:   connect,
		ResponseHeaderTimeout: read,
		ForceAttemptHTTP2:     true,
	}
	return &http.Client{
		Transport: transport,
		Timeout:   connect + read,
	}
}

// quotaText reports whether a provider message describes a quota or rate
// limit condition.
func quotaText(msg string) bool {
	m := strings.ToLower(msg)
	return strings.Contains(m, "quota exceeded") ||
		strings.Contains(m, "exceeded your current quota") ||
		strings.Contains(m, "rate limit")
}
