// Package socket keeps the chat server's Socket.IO channel alive and hands
// its events to typed handlers as raw JSON.
package socket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/zishang520/engine.io/v2/types"
	sio "github.com/zishang520/socket.io-client-go/socket"
	"go.uber.org/zap"
)

const (
	handshakeWait = 10 * time.Second

	// DefaultReconnectDelay is the fixed wait between reconnect attempts.
	DefaultReconnectDelay = 2 * time.Second

	serverDisconnect = "io server disconnect"
)

var (
	ErrNotConnected = errors.New("socket not connected")
	ErrClosed       = errors.New("socket closed")
)

// Handler receives the arguments of an event.
type Handler func(args []json.RawMessage)

// Client keeps one Socket.IO connection alive and dispatches events.
type Client struct {
	url    string
	token  string
	logger *zap.Logger

	mu        sync.Mutex
	sock      *sio.Socket
	handlers  map[string][]Handler
	onConnect []func()
	onDrop    []func()
	delay     time.Duration
	closed    bool
}

// New creates a client for rawURL (http, https, ws or wss; an empty path
// means /socket.io/). token is sent as connect auth.
func New(rawURL, token string, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		url:      rawURL,
		token:    token,
		logger:   logger,
		handlers: make(map[string][]Handler),
		delay:    DefaultReconnectDelay,
	}
}

// SetReconnectDelay changes the wait between reconnect attempts. It applies
// to connections opened afterwards.
func (c *Client) SetReconnectDelay(d time.Duration) {
	c.mu.Lock()
	c.delay = d
	c.mu.Unlock()
}

// On registers h for event. Handlers run in arrival order and must not block.
func (c *Client) On(event string, h Handler) {
	c.mu.Lock()
	c.handlers[event] = append(c.handlers[event], h)
	sock := c.sock
	c.mu.Unlock()
	if sock != nil {
		c.listen(sock, event, h)
	}
}

// OnConnect registers fn to run after every successful (re)connect.
func (c *Client) OnConnect(fn func()) {
	c.mu.Lock()
	c.onConnect = append(c.onConnect, fn)
	c.mu.Unlock()
}

// OnDisconnect registers fn to run when an established connection drops.
// It does not run after Close.
func (c *Client) OnDisconnect(fn func()) {
	c.mu.Lock()
	c.onDrop = append(c.onDrop, fn)
	c.mu.Unlock()
}

// Connected reports whether a connection is currently established.
func (c *Client) Connected() bool {
	c.mu.Lock()
	sock := c.sock
	c.mu.Unlock()
	return sock != nil && sock.Connected()
}

// Start connects in the background and keeps reconnecting until Close.
func (c *Client) Start(_ context.Context) {
	if _, err := c.open(nil); err != nil {
		c.logger.Warn("socket not started", zap.Error(err))
	}
}

// Dial opens the connection and waits for the namespace handshake. On
// failure nothing is left running. On success dropped connections are
// re-established automatically.
func (c *Client) Dial(ctx context.Context) error {
	result := make(chan error, 1)
	sock, err := c.open(func(err error) {
		select {
		case result <- err:
		default:
		}
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, handshakeWait)
	defer cancel()
	select {
	case err = <-result:
	case <-ctx.Done():
		err = ctx.Err()
	}
	if err != nil {
		c.discard(sock)
		return err
	}
	return nil
}

// open creates the Socket.IO connection. first, when set, receives the
// outcome of the first handshake.
func (c *Client) open(first func(error)) (*sio.Socket, error) {
	base, path, err := Endpoint(c.url)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrClosed
	}
	if c.sock != nil {
		return nil, errors.New("socket already open")
	}

	delay := float64(c.delay.Milliseconds())
	opts := sio.DefaultOptions()
	opts.SetTransports(types.NewSet(sio.WebSocket))
	opts.SetPath(path)
	opts.SetForceNew(true)
	opts.SetReconnectionDelay(delay)
	opts.SetReconnectionDelayMax(delay)
	opts.SetRandomizationFactor(0)
	opts.SetTimeout(handshakeWait)
	if c.token != "" {
		opts.SetAuth(map[string]any{"token": c.token})
	}

	sock, err := sio.Connect(base, opts)
	if err != nil {
		return nil, fmt.Errorf("socket.io connect: %w", err)
	}
	var once sync.Once
	report := func(err error) {
		if first != nil {
			once.Do(func() { first(err) })
		}
	}

	_ = sock.On("connect", func(...any) {
		report(nil)
		c.connected(sock)
	})
	_ = sock.On("connect_error", func(args ...any) {
		err := connectError(args)
		report(err)
		c.logger.Debug("socket connect failed", zap.Error(err))
	})
	_ = sock.On("disconnect", func(args ...any) {
		reason := ""
		if len(args) > 0 {
			reason, _ = args[0].(string)
		}
		c.dropped(sock, reason)
	})
	for event, hs := range c.handlers {
		for _, h := range hs {
			c.listen(sock, event, h)
		}
	}
	c.sock = sock
	return sock, nil
}

func (c *Client) listen(sock *sio.Socket, event string, h Handler) {
	_ = sock.On(types.EventName(event), func(args ...any) {
		h(rawArgs(args))
	})
}

func (c *Client) connected(sock *sio.Socket) {
	c.mu.Lock()
	if c.sock != sock {
		c.mu.Unlock()
		return
	}
	hooks := append([]func(){}, c.onConnect...)
	c.mu.Unlock()

	c.logger.Info("socket connected", zap.String("sid", sock.Id()))
	for _, fn := range hooks {
		fn()
	}
}

func (c *Client) dropped(sock *sio.Socket, reason string) {
	c.mu.Lock()
	if c.closed || c.sock != sock {
		c.mu.Unlock()
		return
	}
	hooks := append([]func(){}, c.onDrop...)
	delay := c.delay
	c.mu.Unlock()

	c.logger.Warn("socket disconnected", zap.String("reason", reason))
	for _, fn := range hooks {
		fn()
	}
	// The manager only reconnects by itself after transport loss.
	if reason == serverDisconnect {
		time.AfterFunc(delay, func() {
			c.mu.Lock()
			current := !c.closed && c.sock == sock
			c.mu.Unlock()
			if current {
				sock.Connect()
			}
		})
	}
}

// discard tears down a connection whose first handshake failed.
func (c *Client) discard(sock *sio.Socket) {
	c.mu.Lock()
	if c.sock == sock {
		c.sock = nil
	}
	c.mu.Unlock()
	sock.Disconnect()
}

// Emit sends an event without waiting. Failures are logged and dropped.
func (c *Client) Emit(event string, args ...any) {
	if err := c.emit(event, args...); err != nil {
		c.logger.Debug("socket emit dropped", zap.String("event", event), zap.Error(err))
	}
}

// emit refuses to buffer while offline: typing and read events are only
// meaningful live, and rooms are rejoined on connect.
func (c *Client) emit(event string, args ...any) error {
	c.mu.Lock()
	sock := c.sock
	c.mu.Unlock()
	if sock == nil || !sock.Connected() {
		return ErrNotConnected
	}
	return sock.Emit(event, args...)
}

// Close disconnects and stops reconnecting.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	sock := c.sock
	c.sock = nil
	c.mu.Unlock()

	if sock != nil {
		sock.Disconnect()
	}
	return nil
}

func connectError(args []any) error {
	if len(args) > 0 {
		if err, ok := args[0].(error); ok {
			return fmt.Errorf("socket.io connect rejected: %w", err)
		}
		return fmt.Errorf("socket.io connect rejected: %v", args[0])
	}
	return errors.New("socket.io connect rejected")
}

// rawArgs re-encodes decoded event arguments so handlers can unmarshal them
// into their own types. Ack callbacks are dropped.
func rawArgs(args []any) []json.RawMessage {
	out := make([]json.RawMessage, 0, len(args))
	for _, a := range args {
		data, err := json.Marshal(a)
		if err != nil {
			continue
		}
		out = append(out, data)
	}
	return out
}

// Endpoint splits a server URL into the origin Socket.IO connects to and the
// handshake path.
func Endpoint(rawURL string) (origin, path string, err error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", "", fmt.Errorf("parse socket url: %w", err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "http"
	case "https", "wss":
		u.Scheme = "https"
	default:
		return "", "", fmt.Errorf("unsupported socket url scheme %q", u.Scheme)
	}
	path = strings.TrimSuffix(u.Path, "/")
	if path == "" {
		path = "/socket.io"
	}
	return u.Scheme + "://" + u.Host, path, nil
}
