package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/timada-org/skald/pkg/event"
)

// ErrRetriesExhausted is reported through the error handlers when every
// reconnection attempt has failed. The client is idle afterwards; a new
// Connect call is required to resume streaming.
var ErrRetriesExhausted = errors.New("retries exhausted")

const (
	DefaultReconnectDelay       = 3 * time.Second
	DefaultMaxReconnectAttempts = 5
)

type state int

const (
	stateIdle state = iota
	stateConnecting
	stateOpen
	stateReconnecting
)

// ClientOptions configures a stream client.
type ClientOptions struct {
	// BaseURL is the game service root, e.g. http://localhost:6470.
	BaseURL string
	// Token is sent as a bearer Authorization header when set.
	Token string
	// ReconnectDelay is the backoff base unit. Defaults to 3s.
	ReconnectDelay time.Duration
	// MaxReconnectAttempts bounds reconnections before giving up. Defaults to 5.
	MaxReconnectAttempts int
	// HTTPClient defaults to http.DefaultClient.
	HTTPClient *http.Client
	// Logger is the diagnostic sink. Defaults to log.Default().
	Logger *log.Logger
}

// Client maintains one live event stream to a game session, routes its typed
// frames to subscribed handlers and reconnects with exponential backoff after
// transport faults. The composing caller owns the instance and its lifecycle;
// there is no shared package-level client.
//
// At most one transport session exists per client. Every teardown bumps the
// generation counter, and every session or timer callback re-checks the
// generation it was created under, so signals from a superseded session are
// dropped instead of routed.
type Client struct {
	opts   ClientOptions
	router *Router
	start  sessionStarter

	mux       sync.Mutex
	st        state
	sessionID string
	sess      streamSession
	retry     *time.Timer
	attempts  int
	gen       uint64
}

func New(opts ClientOptions) *Client {
	if opts.ReconnectDelay <= 0 {
		opts.ReconnectDelay = DefaultReconnectDelay
	}

	if opts.MaxReconnectAttempts <= 0 {
		opts.MaxReconnectAttempts = DefaultMaxReconnectAttempts
	}

	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}

	if opts.Logger == nil {
		opts.Logger = log.Default()
	}

	return &Client{
		opts:   opts,
		router: NewRouter(opts.Logger),
		start:  startTransportSession,
	}
}

// On subscribes fn to events tagged t and returns the disposer undoing the
// subscription.
func (c *Client) On(t event.Type, fn Handler) func() {
	return c.router.On(t, fn)
}

// OnError subscribes fn to transport errors, including the final
// ErrRetriesExhausted report, and returns the disposer.
func (c *Client) OnError(fn ErrorHandler) func() {
	return c.router.OnError(fn)
}

// IsConnected reports whether the stream is open right now. A client that is
// still connecting, or waiting to reconnect, reports false.
func (c *Client) IsConnected() bool {
	c.mux.Lock()
	defer c.mux.Unlock()

	return c.st == stateOpen
}

// Connect opens the event stream for sessionID. Connecting to the session
// already connecting or open is a no-op. Any other active session is torn
// down first, then the new one is created. Connect never fails synchronously;
// transport problems surface through the error handlers.
func (c *Client) Connect(sessionID string) {
	c.mux.Lock()

	if c.sessionID == sessionID && (c.st == stateConnecting || c.st == stateOpen) {
		c.mux.Unlock()
		c.opts.Logger.Printf("skald: already connected to session %s", sessionID)

		return
	}

	c.teardown()

	c.sessionID = sessionID
	c.st = stateConnecting

	err := c.openSession()
	c.mux.Unlock()

	if err != nil {
		c.router.NotifyError(err)
	}
}

// Disconnect closes the stream and cancels any pending reconnection timer.
// Safe to call at any time, connected or not.
func (c *Client) Disconnect() {
	c.mux.Lock()
	defer c.mux.Unlock()

	c.teardown()
}

// openSession starts a transport session for the current session id. Callers
// hold c.mux. A construction error means no session exists: the client is
// torn back to idle with no retry.
func (c *Client) openSession() error {
	gen := c.gen

	sess, err := c.start(c.opts, c.sessionID, sessionCallbacks{
		onOpen:    func() { c.sessionOpened(gen) },
		onFrame:   func(name, data string) { c.sessionFrame(gen, name, data) },
		onFailure: func() { c.sessionFailed(gen) },
	})
	if err != nil {
		c.teardown()

		return err
	}

	c.sess = sess

	return nil
}

// teardown cancels the pending retry timer, closes the active session and
// bumps the generation so in-flight callbacks from the old session become
// no-ops. Callers hold c.mux.
func (c *Client) teardown() {
	if c.retry != nil {
		c.retry.Stop()
		c.retry = nil
	}

	if c.sess != nil {
		c.sess.close()
		c.sess = nil
	}

	c.gen++
	c.st = stateIdle
	c.sessionID = ""
	c.attempts = 0
}

func (c *Client) sessionOpened(gen uint64) {
	c.mux.Lock()
	defer c.mux.Unlock()

	if gen != c.gen || c.st != stateConnecting {
		return
	}

	c.st = stateOpen
	c.attempts = 0
}

func (c *Client) sessionFrame(gen uint64, name, data string) {
	c.mux.Lock()
	stale := gen != c.gen
	c.mux.Unlock()

	if stale {
		return
	}

	var payload any
	if err := json.Unmarshal([]byte(data), &payload); err != nil {
		c.opts.Logger.Printf("skald: dropping %s frame: %v", name, err)

		return
	}

	c.router.Dispatch(event.Event{Type: event.Type(name), Data: payload})
}

func (c *Client) sessionFailed(gen uint64) {
	c.mux.Lock()

	if gen != c.gen || (c.st != stateConnecting && c.st != stateOpen) {
		c.mux.Unlock()

		return
	}

	id := c.sessionID

	if c.sess != nil {
		c.sess.close()
		c.sess = nil
	}

	if ShouldRetry(c.attempts, c.opts.MaxReconnectAttempts) {
		delay := NextDelay(c.attempts, c.opts.ReconnectDelay)
		c.st = stateReconnecting
		c.retry = time.AfterFunc(delay, func() { c.retryFire(gen) })
		c.mux.Unlock()

		c.router.NotifyError(fmt.Errorf("session %s: stream interrupted, retrying in %s", id, delay))

		return
	}

	c.teardown()
	c.mux.Unlock()

	c.router.NotifyError(fmt.Errorf("session %s: stream interrupted", id))
	c.router.NotifyError(fmt.Errorf("session %s: %w", id, ErrRetriesExhausted))
}

func (c *Client) retryFire(gen uint64) {
	c.mux.Lock()

	if gen != c.gen || c.st != stateReconnecting {
		c.mux.Unlock()

		return
	}

	c.retry = nil
	c.attempts++
	c.st = stateConnecting

	err := c.openSession()
	c.mux.Unlock()

	if err != nil {
		c.router.NotifyError(err)
	}
}
