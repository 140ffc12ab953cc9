package resp

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"invite-service/internal/redis"
	"invite-service/internal/store"
)

const defaultTimeout = 3 * time.Second

// Client holds one connection and runs commands one at a time. A network or
// framing failure drops the connection; the next command dials again.
type Client struct {
	opts    redis.Options
	timeout time.Duration

	mu   sync.Mutex
	conn net.Conn
	rd   *Reader
	buf  []byte
}

var _ store.Store = (*Client)(nil)

// NewClient does not dial; use Connect to fail early at startup.
func NewClient(opts redis.Options, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{opts: opts, timeout: timeout}
}

// Connect dials and authenticates if no connection is open.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ensureConn(ctx)
}

func (c *Client) Get(ctx context.Context, key string) (string, error) {
	reply, err := c.Do(ctx, "GET", key)
	if err != nil {
		return "", fmt.Errorf("store: get %s: %w", key, err)
	}
	if reply.Null {
		return "", store.ErrNotFound
	}
	if reply.Kind != KindBulk {
		return "", fmt.Errorf("store: get %s: unexpected reply kind %q", key, reply.Kind)
	}
	return reply.Str, nil
}

func (c *Client) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if ttl <= 0 {
		return fmt.Errorf("store: ttl must be positive for %s", key)
	}

	args := []string{"SET", key, value}
	if ttl%time.Second == 0 {
		args = append(args, "EX", strconv.FormatInt(int64(ttl/time.Second), 10))
	} else {
		args = append(args, "PX", strconv.FormatInt(ttl.Milliseconds(), 10))
	}

	if _, err := c.Do(ctx, args...); err != nil {
		return fmt.Errorf("store: set %s: %w", key, err)
	}
	return nil
}

func (c *Client) Delete(ctx context.Context, key string) error {
	if _, err := c.Do(ctx, "DEL", key); err != nil {
		return fmt.Errorf("store: del %s: %w", key, err)
	}
	return nil
}

func (c *Client) Ping(ctx context.Context) error {
	reply, err := c.Do(ctx, "PING")
	if err != nil {
		return err
	}
	if reply.Str != "PONG" {
		return fmt.Errorf("resp: unexpected ping reply %q", reply.Str)
	}
	return nil
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dropConn()
}

// Do sends one command and reads its reply. Server error lines come back as
// Error and keep the connection open.
func (c *Client) Do(ctx context.Context, args ...string) (Reply, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ensureConn(ctx); err != nil {
		return Reply{}, err
	}

	reply, err := c.roundTrip(ctx, args)
	if err != nil {
		_ = c.dropConn()
		return Reply{}, err
	}
	return reply, reply.Err()
}

func (c *Client) roundTrip(ctx context.Context, args []string) (Reply, error) {
	deadline := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := c.conn.SetDeadline(deadline); err != nil {
		return Reply{}, err
	}

	c.buf = AppendCommand(c.buf[:0], args...)
	if _, err := c.conn.Write(c.buf); err != nil {
		return Reply{}, fmt.Errorf("resp: write: %w", err)
	}
	return c.rd.ReadReply()
}

func (c *Client) ensureConn(ctx context.Context) error {
	if c.conn != nil {
		return nil
	}

	conn, err := dial(ctx, c.opts, c.timeout)
	if err != nil {
		return err
	}
	c.conn = conn
	c.rd = NewReader(conn)

	for _, cmd := range handshake(c.opts) {
		reply, err := c.roundTrip(ctx, cmd)
		if err == nil {
			err = reply.Err()
		}
		if err != nil {
			_ = c.dropConn()
			return fmt.Errorf("resp: %s: %w", cmd[0], err)
		}
	}
	return nil
}

func (c *Client) dropConn() error {
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn, c.rd = nil, nil
	return err
}

func handshake(opts redis.Options) [][]string {
	var cmds [][]string
	switch {
	case opts.Username != "" && opts.Password != "":
		cmds = append(cmds, []string{"AUTH", opts.Username, opts.Password})
	case opts.Password != "":
		cmds = append(cmds, []string{"AUTH", opts.Password})
	}
	if opts.DB != 0 {
		cmds = append(cmds, []string{"SELECT", strconv.Itoa(opts.DB)})
	}
	return cmds
}

func dial(ctx context.Context, opts redis.Options, timeout time.Duration) (net.Conn, error) {
	d := net.Dialer{Timeout: timeout}
	conn, err := d.DialContext(ctx, "tcp", opts.Addr())
	if err != nil {
		return nil, fmt.Errorf("resp: dial %s: %w", opts.Addr(), err)
	}

	tlsCfg := opts.TLSConfig()
	if tlsCfg == nil {
		return conn, nil
	}

	tlsConn := tls.Client(conn, tlsCfg)
	hsCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := tlsConn.HandshakeContext(hsCtx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("resp: tls handshake: %w", err)
	}
	return tlsConn, nil
}

// Ping opens a fresh connection, authenticates, sends PING and closes. Any
// failure, including the timeout elapsing, reports the server unreachable.
func Ping(ctx context.Context, opts redis.Options, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	c := NewClient(opts, timeout)
	defer c.Close()

	err := c.Ping(ctx)
	var srvErr Error
	if errors.As(err, &srvErr) {
		return fmt.Errorf("resp: ping rejected: %w", err)
	}
	return err
}
