package redis

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const defaultPort = 6379

// Options describes how to reach the key-value server, independent of which
// client implementation dials it.
type Options struct {
	Host        string
	Port        int
	Username    string
	Password    string
	DB          int
	TLS         bool
	TLSInsecure bool

	// Zero means the client default.
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Addr returns host:port.
func (o Options) Addr() string {
	port := o.Port
	if port == 0 {
		port = defaultPort
	}
	return net.JoinHostPort(o.Host, strconv.Itoa(port))
}

// TLSConfig returns nil when TLS is off. TLSInsecure skips certificate
// verification for self-signed deployments.
func (o Options) TLSConfig() *tls.Config {
	if !o.TLS {
		return nil
	}
	return &tls.Config{
		ServerName:         o.Host,
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: o.TLSInsecure, //nolint:gosec // operator opt-in for self-signed certs
	}
}

// ParseURL reads redis:// and rediss:// URLs through go-redis, so the
// query options it understands (db, dial_timeout, read_timeout, ...) apply
// to every backend. tlsInsecure only affects rediss URLs.
func ParseURL(raw string, tlsInsecure bool) (Options, error) {
	parsed, err := goredis.ParseURL(raw)
	if err != nil {
		return Options{}, fmt.Errorf("redis: %w", err)
	}

	host, port, err := net.SplitHostPort(parsed.Addr)
	if err != nil {
		return Options{}, fmt.Errorf("redis: invalid address %q: %w", parsed.Addr, err)
	}
	opts := Options{
		Host:         host,
		Username:     parsed.Username,
		Password:     parsed.Password,
		DB:           parsed.DB,
		TLS:          parsed.TLSConfig != nil,
		DialTimeout:  parsed.DialTimeout,
		ReadTimeout:  parsed.ReadTimeout,
		WriteTimeout: parsed.WriteTimeout,
	}
	if opts.Port, err = strconv.Atoi(port); err != nil {
		return Options{}, fmt.Errorf("redis: invalid port %q", port)
	}
	opts.TLSInsecure = opts.TLS && tlsInsecure
	return opts, nil
}

type Client struct {
	*goredis.Client
}

// NewClient builds a go-redis client without contacting the server.
// Context deadlines bound every command, including reconnects.
func NewClient(opts Options) *Client {
	return &Client{Client: goredis.NewClient(&goredis.Options{
		Addr:                  opts.Addr(),
		Username:              opts.Username,
		Password:              opts.Password,
		DB:                    opts.DB,
		TLSConfig:             opts.TLSConfig(),
		DialTimeout:           orDefault(opts.DialTimeout, 5*time.Second),
		ReadTimeout:           orDefault(opts.ReadTimeout, 3*time.Second),
		WriteTimeout:          orDefault(opts.WriteTimeout, 3*time.Second),
		ContextTimeoutEnabled: true,
	})}
}

// New connects with go-redis and verifies the server answers PING.
func New(ctx context.Context, opts Options) (*Client, error) {
	client := NewClient(opts)

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis: ping %s: %w", opts.Addr(), err)
	}

	return client, nil
}

func orDefault(d, def time.Duration) time.Duration {
	if d == 0 {
		return def
	}
	return d
}
