package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/timada-org/skald/pkg/event"
)

// APIError is a structured failure returned by the game service.
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("skald api: %s: %s", e.Code, e.Message)
	}

	return fmt.Sprintf("skald api: status %d", e.Status)
}

type ClientOptions struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
}

// Client talks to the game service REST surface. Streaming is handled
// separately by pkg/client.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

func New(options ClientOptions) (*Client, error) {
	if options.BaseURL == "" {
		return nil, errors.New("base url is required")
	}

	u, err := url.Parse(options.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported base url scheme %q", u.Scheme)
	}

	httpClient := options.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &Client{
		baseURL: strings.TrimSuffix(options.BaseURL, "/"),
		token:   options.Token,
		http:    httpClient,
	}, nil
}

// CreateSession starts a new game session and returns its id.
func (c *Client) CreateSession(ctx context.Context) (string, error) {
	var out struct {
		ID string `json:"id"`
	}

	if err := c.do(ctx, http.MethodPost, "/api/game", nil, &out); err != nil {
		return "", err
	}

	if out.ID == "" {
		return "", errors.New("skald api: empty session id")
	}

	return out.ID, nil
}

// State fetches the current snapshot of a session.
func (c *Client) State(ctx context.Context, sessionID string) (*event.GameUpdate, error) {
	var out event.GameUpdate

	path := fmt.Sprintf("/api/game/%s/state", url.PathEscape(sessionID))
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}

	return &out, nil
}

// SendAction submits a player action. The resulting turn is delivered
// over the session's event stream, not in the response.
func (c *Client) SendAction(ctx context.Context, sessionID string, text string) error {
	if text == "" {
		return errors.New("action text is required")
	}

	in := struct {
		Text string `json:"text"`
	}{Text: text}

	path := fmt.Sprintf("/api/game/%s/action", url.PathEscape(sessionID))

	return c.do(ctx, http.MethodPost, path, &in, nil)
}

func (c *Client) do(ctx context.Context, method string, path string, in any, out any) error {
	var body io.Reader

	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}

		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	req.Header.Set("Accept", "application/json")

	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	res, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode >= 400 {
		return decodeError(res)
	}

	if out == nil {
		io.Copy(io.Discard, res.Body)

		return nil
	}

	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	return nil
}

func decodeError(res *http.Response) error {
	apiErr := &APIError{Status: res.StatusCode}

	payload, err := io.ReadAll(io.LimitReader(res.Body, 1<<16))
	if err != nil {
		return apiErr
	}

	// Non-JSON error bodies still surface as an APIError with the status.
	json.Unmarshal(payload, apiErr)

	return apiErr
}
