package mailbox

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/nhle/mailroute/internal/credential"
	"github.com/nhle/mailroute/internal/logging"
)

// Default network timeouts.
const (
	DefaultConnectTimeout = 15 * time.Second
	DefaultReadTimeout    = 30 * time.Second
)

// Security selects how a mail connection is protected.
type Security string

const (
	// SecurityTLS opens the connection with implicit TLS.
	SecurityTLS Security = "tls"
	// SecurityStartTLS upgrades a plain connection before authenticating.
	SecurityStartTLS Security = "starttls"
	// SecurityInsecure never encrypts. Only meant for local test servers.
	SecurityInsecure Security = "insecure"
)

// ParseSecurity validates a configured security mode.
func ParseSecurity(s string) (Security, error) {
	switch Security(s) {
	case SecurityTLS, SecurityStartTLS, SecurityInsecure:
		return Security(s), nil
	default:
		return "", fmt.Errorf("unknown security mode %q (want tls, starttls or insecure)", s)
	}
}

// Endpoint identifies a mail server.
type Endpoint struct {
	Host     string
	Port     int
	Security Security
}

// Address returns host:port.
func (e Endpoint) Address() string {
	return net.JoinHostPort(e.Host, strconv.Itoa(e.Port))
}

// Credentials authenticate a mailbox session. The password is only revealed
// while the session is being opened.
type Credentials struct {
	Username string
	Password credential.Secret
}

// Timeouts bound connection setup and each read or write.
type Timeouts struct {
	Connect time.Duration
	Read    time.Duration
}

type options struct {
	timeouts  Timeouts
	tlsConfig *tls.Config
	logger    *zap.Logger
}

// Option configures a Fetcher or SMTPSender.
type Option func(*options)

// WithTimeouts overrides the default connect and read timeouts. Zero values
// keep the defaults.
func WithTimeouts(t Timeouts) Option {
	return func(o *options) {
		if t.Connect > 0 {
			o.timeouts.Connect = t.Connect
		}
		if t.Read > 0 {
			o.timeouts.Read = t.Read
		}
	}
}

// WithTLSConfig sets the TLS configuration used for tls and starttls.
func WithTLSConfig(cfg *tls.Config) Option {
	return func(o *options) {
		o.tlsConfig = cfg
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

func newOptions(opts []Option) options {
	o := options{
		timeouts: Timeouts{
			Connect: DefaultConnectTimeout,
			Read:    DefaultReadTimeout,
		},
	}
	for _, opt := range opts {
		opt(&o)
	}
	o.logger = logging.OrNop(o.logger)
	return o
}

func (o options) tlsConfigFor(host string) *tls.Config {
	cfg := &tls.Config{}
	if o.tlsConfig != nil {
		cfg = o.tlsConfig.Clone()
	}
	if cfg.ServerName == "" {
		cfg.ServerName = host
	}
	return cfg
}

// dial opens a TCP connection with the connect timeout, applies the read
// timeout to every read and write, and performs the TLS handshake for
// implicit TLS endpoints. The returned deadlineConn is the transport under
// any TLS layer and records the first I/O failure.
func dial(ctx context.Context, ep Endpoint, o options) (net.Conn, *deadlineConn, error) {
	d := net.Dialer{Timeout: o.timeouts.Connect}
	raw, err := d.DialContext(ctx, "tcp", ep.Address())
	if err != nil {
		return nil, nil, fmt.Errorf("dialing %s: %w", ep.Address(), err)
	}

	conn := &deadlineConn{Conn: raw, timeout: o.timeouts.Read}
	if ep.Security != SecurityTLS {
		return conn, conn, nil
	}

	tlsConn := tls.Client(conn, o.tlsConfigFor(ep.Host))

	hsCtx, cancel := context.WithTimeout(ctx, o.timeouts.Connect)
	defer cancel()
	if err := tlsConn.HandshakeContext(hsCtx); err != nil {
		raw.Close()
		return nil, nil, fmt.Errorf("TLS handshake with %s: %w", ep.Address(), err)
	}

	return tlsConn, conn, nil
}

// deadlineConn pushes the deadline forward before every read and write.
type deadlineConn struct {
	net.Conn
	timeout time.Duration

	mu  sync.Mutex
	err error
}

func (c *deadlineConn) Read(p []byte) (int, error) {
	if c.timeout > 0 {
		if err := c.Conn.SetReadDeadline(time.Now().Add(c.timeout)); err != nil {
			return 0, c.record(err)
		}
	}
	n, err := c.Conn.Read(p)
	if err != nil {
		c.record(err)
	}
	return n, err
}

func (c *deadlineConn) Write(p []byte) (int, error) {
	if c.timeout > 0 {
		if err := c.Conn.SetWriteDeadline(time.Now().Add(c.timeout)); err != nil {
			return 0, c.record(err)
		}
	}
	n, err := c.Conn.Write(p)
	if err != nil {
		c.record(err)
	}
	return n, err
}

func (c *deadlineConn) record(err error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err == nil {
		c.err = err
	}
	return err
}

// failure returns the first I/O error seen on the connection, if any. It
// tells a dropped or timed-out link apart from a server refusal.
func (c *deadlineConn) failure() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}
