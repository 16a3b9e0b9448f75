// Package natsclient manages a NATS connection and the JetStream key-value
// buckets built on it.
package natsclient

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/c360/semcommunity/errors"
)

// ConnectionStatus represents the state of the NATS connection
type ConnectionStatus int

// Possible connection statuses
const (
	StatusDisconnected ConnectionStatus = iota
	StatusConnecting
	StatusConnected
	StatusReconnecting
	StatusClosed
)

// String returns the string representation of ConnectionStatus
func (s ConnectionStatus) String() string {
	switch s {
	case StatusDisconnected:
		return "disconnected"
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	case StatusReconnecting:
		return "reconnecting"
	case StatusClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Error messages
var (
	ErrNotConnected = stderrors.New("not connected to NATS")
	ErrClosed       = stderrors.New("client closed")
)

// Client wraps a NATS connection and its JetStream context.
type Client struct {
	url    string
	status atomic.Value // ConnectionStatus
	logger *slog.Logger

	mu   sync.RWMutex
	conn *nats.Conn
	js   jetstream.JetStream

	maxReconnects int
	reconnectWait time.Duration
	pingInterval  time.Duration
	timeout       time.Duration
	drainTimeout  time.Duration

	username string
	password string
	token    string

	clientName string

	closeOnce sync.Once
}

// NewClient creates a new NATS client with optional configuration
func NewClient(url string, opts ...ClientOption) (*Client, error) {
	if url == "" {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "Client", "NewClient", "url is required")
	}

	c := &Client{
		url:           url,
		logger:        slog.Default(),
		maxReconnects: -1,
		reconnectWait: 2 * time.Second,
		pingInterval:  30 * time.Second,
		timeout:       5 * time.Second,
		drainTimeout:  30 * time.Second,
	}

	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, errors.WrapInvalid(err, "Client", "NewClient", "apply option")
		}
	}

	c.status.Store(StatusDisconnected)
	return c, nil
}

// URL returns the NATS server URL
func (c *Client) URL() string {
	return c.url
}

// Status returns the current connection status
func (c *Client) Status() ConnectionStatus {
	return c.status.Load().(ConnectionStatus)
}

// IsHealthy reports whether the connection is established
func (c *Client) IsHealthy() bool {
	return c.Status() == StatusConnected
}

// Connection returns the underlying NATS connection, nil before Connect.
func (c *Client) Connection() *nats.Conn {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conn
}

func (c *Client) connectionOptions() []nats.Option {
	opts := []nats.Option{
		nats.MaxReconnects(c.maxReconnects),
		nats.ReconnectWait(c.reconnectWait),
		nats.PingInterval(c.pingInterval),
		nats.Timeout(c.timeout),
		nats.DrainTimeout(c.drainTimeout),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if c.Status() == StatusClosed {
				return
			}
			c.status.Store(StatusReconnecting)
			c.logger.Warn("NATS disconnected", "url", c.url, "error", err)
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			c.status.Store(StatusConnected)
			c.logger.Info("NATS reconnected", "url", c.url)
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			c.status.Store(StatusClosed)
		}),
	}

	if c.username != "" && c.password != "" {
		opts = append(opts, nats.UserInfo(c.username, c.password))
	}
	if c.token != "" {
		opts = append(opts, nats.Token(c.token))
	}
	if c.clientName != "" {
		opts = append(opts, nats.Name(c.clientName))
	}

	return opts
}

// Connect establishes the connection and initializes JetStream
func (c *Client) Connect(ctx context.Context) error {
	if c.Status() == StatusClosed {
		return ErrClosed
	}

	c.status.Store(StatusConnecting)
	c.logger.Info("Connecting to NATS", "url", c.url)

	type connResult struct {
		conn *nats.Conn
		err  error
	}
	done := make(chan connResult, 1)
	go func() {
		conn, err := nats.Connect(c.url, c.connectionOptions()...)
		done <- connResult{conn: conn, err: err}
	}()

	var res connResult
	select {
	case res = <-done:
	case <-ctx.Done():
		c.status.Store(StatusDisconnected)
		// Close a connection that completes after we gave up.
		go func() {
			if late := <-done; late.conn != nil {
				late.conn.Close()
			}
		}()
		return errors.WrapTransient(ctx.Err(), "Client", "Connect", "connection cancelled")
	}

	if res.err != nil {
		c.status.Store(StatusDisconnected)
		return errors.WrapTransient(res.err, "Client", "Connect", "establish connection")
	}

	js, err := jetstream.New(res.conn)
	if err != nil {
		res.conn.Close()
		c.status.Store(StatusDisconnected)
		return errors.WrapFatal(err, "Client", "Connect", "initialize jetstream")
	}

	c.mu.Lock()
	c.conn = res.conn
	c.js = js
	c.mu.Unlock()

	c.status.Store(StatusConnected)
	c.logger.Info("Connected to NATS", "url", c.url)
	return nil
}

// WaitForConnection blocks until the client is connected or ctx is done
func (c *Client) WaitForConnection(ctx context.Context) error {
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for {
		if c.IsHealthy() {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("connection timeout: %w", ctx.Err())
		case <-ticker.C:
		}
	}
}

// Close drains and closes the connection. Safe to call more than once.
func (c *Client) Close(ctx context.Context) error {
	var closeErr error
	c.closeOnce.Do(func() {
		c.mu.Lock()
		conn := c.conn
		c.conn = nil
		c.js = nil
		c.password = ""
		c.token = ""
		c.mu.Unlock()

		c.status.Store(StatusClosed)
		if conn == nil {
			return
		}

		drained := make(chan error, 1)
		go func() { drained <- conn.Drain() }()

		select {
		case err := <-drained:
			if err != nil {
				conn.Close()
				closeErr = errors.WrapTransient(err, "Client", "Close", "drain connection")
			}
		case <-ctx.Done():
			conn.Close()
			closeErr = errors.WrapTransient(ctx.Err(), "Client", "Close", "drain connection")
		}
	})
	return closeErr
}

// JetStream returns the JetStream context
func (c *Client) JetStream() (jetstream.JetStream, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.js == nil {
		return nil, ErrNotConnected
	}
	return c.js, nil
}

// CreateKeyValueBucket returns the bucket named in cfg, creating it when missing
func (c *Client) CreateKeyValueBucket(ctx context.Context, cfg jetstream.KeyValueConfig) (jetstream.KeyValue, error) {
	js, err := c.JetStream()
	if err != nil {
		return nil, err
	}

	bucket, err := js.KeyValue(ctx, cfg.Bucket)
	if err == nil {
		c.logger.Debug("Using existing KV bucket", "bucket", cfg.Bucket)
		return bucket, nil
	}

	bucket, err = js.CreateKeyValue(ctx, cfg)
	if err != nil {
		if !isAlreadyExistsError(err) {
			return nil, errors.WrapTransient(err, "Client", "CreateKeyValueBucket",
				fmt.Sprintf("create bucket %s", cfg.Bucket))
		}
		// Lost a creation race; use the winner's bucket.
		bucket, err = js.KeyValue(ctx, cfg.Bucket)
		if err != nil {
			return nil, errors.WrapTransient(err, "Client", "CreateKeyValueBucket",
				fmt.Sprintf("access existing bucket %s", cfg.Bucket))
		}
		return bucket, nil
	}

	c.logger.Info("Created KV bucket", "bucket", cfg.Bucket)
	return bucket, nil
}

// GetKeyValueBucket gets an existing KV bucket
func (c *Client) GetKeyValueBucket(ctx context.Context, name string) (jetstream.KeyValue, error) {
	js, err := c.JetStream()
	if err != nil {
		return nil, err
	}

	bucket, err := js.KeyValue(ctx, name)
	if err != nil {
		if stderrors.Is(err, jetstream.ErrBucketNotFound) {
			return nil, errors.WrapInvalid(errors.ErrBucketNotFound, "Client", "GetKeyValueBucket", name)
		}
		return nil, errors.WrapTransient(err, "Client", "GetKeyValueBucket", fmt.Sprintf("get bucket %s", name))
	}
	return bucket, nil
}

// DeleteKeyValueBucket deletes a KV bucket
func (c *Client) DeleteKeyValueBucket(ctx context.Context, name string) error {
	js, err := c.JetStream()
	if err != nil {
		return err
	}
	if err := js.DeleteKeyValue(ctx, name); err != nil && !stderrors.Is(err, jetstream.ErrBucketNotFound) {
		return errors.WrapTransient(err, "Client", "DeleteKeyValueBucket", fmt.Sprintf("delete bucket %s", name))
	}
	return nil
}

func isAlreadyExistsError(err error) bool {
	if stderrors.Is(err, jetstream.ErrBucketExists) || stderrors.Is(err, jetstream.ErrStreamNameAlreadyInUse) {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "already")
}
