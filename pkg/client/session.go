package client

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
)

type sessionCallbacks struct {
	onOpen    func()
	onFrame   func(name, data string)
	onFailure func()
}

// streamSession is the client's handle on one live transport connection.
type streamSession interface {
	close()
}

type sessionStarter func(opts ClientOptions, sessionID string, cb sessionCallbacks) (streamSession, error)

func startTransportSession(opts ClientOptions, sessionID string, cb sessionCallbacks) (streamSession, error) {
	return newTransportSession(opts, sessionID, cb)
}

// transportSession owns one streaming connection to the game service for one
// session id and translates it into the three callback signals: opened, frame
// received, failed. Every signal fires from the session's single read
// goroutine, so frames keep wire order.
type transportSession struct {
	cancel    context.CancelFunc
	closeOnce sync.Once
}

// newTransportSession builds the stream request and starts the read loop. A
// request construction error is returned synchronously and means no session
// exists; transport faults past this point are reported through onFailure.
func newTransportSession(opts ClientOptions, sessionID string, cb sessionCallbacks) (*transportSession, error) {
	endpoint := fmt.Sprintf("%s/api/game/%s/sse", strings.TrimSuffix(opts.BaseURL, "/"), url.PathEscape(sessionID))

	ctx, cancel := context.WithCancel(context.Background())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("build stream request: %w", err)
	}

	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	if opts.Token != "" {
		req.Header.Set("Authorization", "Bearer "+opts.Token)
	}

	s := &transportSession{cancel: cancel}

	go s.run(ctx, opts, req, cb)

	return s, nil
}

// close releases the underlying connection. Safe to call multiple times.
func (s *transportSession) close() {
	s.closeOnce.Do(s.cancel)
}

func (s *transportSession) run(ctx context.Context, opts ClientOptions, req *http.Request, cb sessionCallbacks) {
	resp, err := opts.HTTPClient.Do(req)
	if err != nil {
		if ctx.Err() == nil {
			cb.onFailure()
		}

		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		opts.Logger.Printf("skald: stream request refused: %s", resp.Status)
		cb.onFailure()

		return
	}

	cb.onOpen()

	s.readFrames(ctx, resp.Body, opts, cb)
}

// readFrames parses server-sent event framing: an `event:` field names the
// frame, `data:` lines accumulate the body, a blank line dispatches it.
// Comment lines (leading colon) carry keepalives and are skipped. Frames
// without a name arrive on the default channel and are diagnostic-only; they
// never reach onFrame. The reader is unbounded: frame bodies have no
// length limit.
func (s *transportSession) readFrames(ctx context.Context, body io.Reader, opts ClientOptions, cb sessionCallbacks) {
	reader := bufio.NewReader(body)

	var name string
	var data []string

	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			if ctx.Err() == nil {
				cb.onFailure()
			}

			return
		}

		line = strings.TrimRight(line, "\r\n")

		switch {
		case line == "":
			if len(data) > 0 {
				payload := strings.Join(data, "\n")

				if name == "" || name == "message" {
					opts.Logger.Printf("skald: untyped message on stream: %s", payload)
				} else {
					cb.onFrame(name, payload)
				}
			}

			name = ""
			data = nil

		case strings.HasPrefix(line, ":"):
			// keepalive comment

		default:
			field, value, _ := strings.Cut(line, ":")
			value = strings.TrimPrefix(value, " ")

			switch field {
			case "event":
				name = value
			case "data":
				data = append(data, value)
			}
			// id and retry fields are ignored: the client does not replay
		}
	}
}
