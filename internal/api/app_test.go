package api_test

import (
	"bufio"
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/timada-org/skald/internal/api"
	"github.com/timada-org/skald/internal/core"
	apiclient "github.com/timada-org/skald/pkg/api"
	"github.com/timada-org/skald/pkg/client"
	"github.com/timada-org/skald/pkg/event"
)

func newTestApp(t *testing.T, config *core.Config) *httptest.Server {
	t.Helper()

	if config == nil {
		config = &core.Config{Server: core.Server{TurnDelayMs: 1}}
	}

	app := api.New(config)
	t.Cleanup(app.Close)

	server := httptest.NewServer(app.Router())
	t.Cleanup(server.Close)

	return server
}

func quietOptions(baseURL string) client.ClientOptions {
	return client.ClientOptions{
		BaseURL:              baseURL,
		ReconnectDelay:       10 * time.Millisecond,
		MaxReconnectAttempts: 5,
		Logger:               log.New(io.Discard, "", 0),
	}
}

type recorder struct {
	mux    sync.Mutex
	events []event.Event
}

func (r *recorder) add(e event.Event) {
	r.mux.Lock()
	defer r.mux.Unlock()

	r.events = append(r.events, e)
}

func (r *recorder) names() []string {
	r.mux.Lock()
	defer r.mux.Unlock()

	names := make([]string, 0, len(r.events))
	for _, e := range r.events {
		names = append(names, string(e.Type))
	}

	return names
}

func (r *recorder) find(t event.Type) (event.Event, bool) {
	r.mux.Lock()
	defer r.mux.Unlock()

	for _, e := range r.events {
		if e.Type == t {
			return e, true
		}
	}

	return event.Event{}, false
}

func TestAppSessionLifecycle(t *testing.T) {
	server := newTestApp(t, nil)

	service, err := apiclient.New(apiclient.ClientOptions{BaseURL: server.URL})
	require.NoError(t, err)

	ctx := context.Background()

	id, err := service.CreateSession(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	state, err := service.State(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 0, state.Turn)
	assert.Equal(t, "The Broken Flagon", state.Location)
	assert.False(t, state.InCombat)
	require.Len(t, state.Party, 2)
	assert.Equal(t, "Brynn", state.Party[0].Name)

	_, err = service.State(ctx, "missing")

	var apiErr *apiclient.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.Status)
	assert.Equal(t, "not_found", apiErr.Code)
}

func TestAppRejectsBadActions(t *testing.T) {
	server := newTestApp(t, nil)

	service, err := apiclient.New(apiclient.ClientOptions{BaseURL: server.URL})
	require.NoError(t, err)

	ctx := context.Background()

	id, err := service.CreateSession(ctx)
	require.NoError(t, err)

	err = service.SendAction(ctx, "missing", "look around")

	var apiErr *apiclient.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "not_found", apiErr.Code)

	// empty action text, past the client-side check
	resp, err := http.Post(server.URL+"/api/game/"+id+"/action", "application/json", strings.NewReader(`{}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = http.Post(server.URL+"/api/game/"+id+"/action", "application/json", strings.NewReader(`not json`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAppStreamsATurn(t *testing.T) {
	server := newTestApp(t, nil)

	service, err := apiclient.New(apiclient.ClientOptions{BaseURL: server.URL})
	require.NoError(t, err)

	ctx := context.Background()

	id, err := service.CreateSession(ctx)
	require.NoError(t, err)

	c := client.New(quietOptions(server.URL))
	defer c.Disconnect()

	rec := &recorder{}
	for _, tp := range event.Types() {
		c.On(tp, rec.add)
	}

	done := make(chan struct{}, 1)
	c.On(event.TypeComplete, func(event.Event) {
		select {
		case done <- struct{}{}:
		default:
		}
	})

	c.Connect(id)
	require.Eventually(t, c.IsConnected, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, service.SendAction(ctx, id, "talk to the innkeeper"))

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("turn never completed")
	}

	assert.Equal(t, []string{
		"thinking",
		"narrative_chunk",
		"narrative_chunk",
		"tool_call",
		"game_update",
		"complete",
	}, rec.names())

	update, ok := rec.find(event.TypeGameUpdate)
	require.True(t, ok)

	streamed, err := event.As[event.GameUpdate](update)
	require.NoError(t, err)
	assert.Equal(t, 1, streamed.Turn)
	require.Len(t, streamed.Party, 2)

	// the REST snapshot agrees with the streamed state
	snapshot, err := service.State(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 1, snapshot.Turn)
}

func TestAppRejectsConcurrentActions(t *testing.T) {
	server := newTestApp(t, &core.Config{Server: core.Server{TurnDelayMs: 200}})

	service, err := apiclient.New(apiclient.ClientOptions{BaseURL: server.URL})
	require.NoError(t, err)

	ctx := context.Background()

	id, err := service.CreateSession(ctx)
	require.NoError(t, err)

	require.NoError(t, service.SendAction(ctx, id, "look around"))

	err = service.SendAction(ctx, id, "look again")

	var apiErr *apiclient.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusConflict, apiErr.Status)
	assert.Equal(t, "turn_in_progress", apiErr.Code)
}

func TestAppStreamEndpoint(t *testing.T) {
	server := newTestApp(t, nil)

	t.Run("unknown session", func(t *testing.T) {
		resp, err := http.Get(server.URL + "/api/game/missing/sse")
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("greets with the session stream", func(t *testing.T) {
		service, err := apiclient.New(apiclient.ClientOptions{BaseURL: server.URL})
		require.NoError(t, err)

		id, err := service.CreateSession(context.Background())
		require.NoError(t, err)

		resp, err := http.Get(server.URL + "/api/game/" + id + "/sse")
		require.NoError(t, err)
		defer resp.Body.Close()

		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

		reader := bufio.NewReader(resp.Body)
		line, err := reader.ReadString('\n')
		require.NoError(t, err)
		assert.Equal(t, fmt.Sprintf("data: {\"stream\":%q}", id), strings.TrimRight(line, "\n"))
	})
}

func TestAppClientReconnects(t *testing.T) {
	server := newTestApp(t, nil)

	service, err := apiclient.New(apiclient.ClientOptions{BaseURL: server.URL})
	require.NoError(t, err)

	ctx := context.Background()

	id, err := service.CreateSession(ctx)
	require.NoError(t, err)

	c := client.New(quietOptions(server.URL))
	defer c.Disconnect()

	errs := make(chan error, 16)
	c.OnError(func(err error) { errs <- err })

	done := make(chan struct{}, 1)
	c.On(event.TypeComplete, func(event.Event) {
		select {
		case done <- struct{}{}:
		default:
		}
	})

	c.Connect(id)
	require.Eventually(t, c.IsConnected, 2*time.Second, 10*time.Millisecond)

	server.CloseClientConnections()

	select {
	case err := <-errs:
		assert.Contains(t, err.Error(), "stream interrupted")
	case <-time.After(2 * time.Second):
		t.Fatal("drop was never reported")
	}

	require.Eventually(t, c.IsConnected, 2*time.Second, 10*time.Millisecond)

	// the reconnected stream still delivers turns
	require.NoError(t, service.SendAction(ctx, id, "press on"))

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("turn never completed after reconnect")
	}
}

func TestAppRequiresAuth(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	n := base64.RawURLEncoding.EncodeToString(key.PublicKey.N.Bytes())
	jwks := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Add("Content-Type", "application/json")
		fmt.Fprintf(w, `{"keys":[{"kty":"RSA","kid":"k1","use":"sig","alg":"RS256","n":"%s","e":"AQAB"}]}`, n)
	}))
	defer jwks.Close()

	server := newTestApp(t, &core.Config{Server: core.Server{TurnDelayMs: 1, JwksURL: jwks.URL}})

	anonymous, err := apiclient.New(apiclient.ClientOptions{BaseURL: server.URL})
	require.NoError(t, err)

	_, err = anonymous.CreateSession(context.Background())

	var apiErr *apiclient.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.MapClaims{
		"sub": "user_123",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	token.Header["kid"] = "k1"

	signed, err := token.SignedString(key)
	require.NoError(t, err)

	authed, err := apiclient.New(apiclient.ClientOptions{BaseURL: server.URL, Token: signed})
	require.NoError(t, err)

	id, err := authed.CreateSession(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, id)
}

func TestAppPersistsSessions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "games.db")
	config := &core.Config{Server: core.Server{TurnDelayMs: 1, Database: path}}

	app := api.New(config)
	server := httptest.NewServer(app.Router())

	service, err := apiclient.New(apiclient.ClientOptions{BaseURL: server.URL})
	require.NoError(t, err)

	ctx := context.Background()

	id, err := service.CreateSession(ctx)
	require.NoError(t, err)

	c := client.New(quietOptions(server.URL))

	done := make(chan struct{}, 1)
	c.On(event.TypeComplete, func(event.Event) {
		select {
		case done <- struct{}{}:
		default:
		}
	})

	c.Connect(id)
	require.Eventually(t, c.IsConnected, 2*time.Second, 10*time.Millisecond)

	// two turns, so the persisted state carries a location change
	for _, text := range []string{"talk to the innkeeper", "set out at first light"} {
		require.NoError(t, service.SendAction(ctx, id, text))

		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatal("turn never completed")
		}
	}

	c.Disconnect()
	server.Close()
	app.Close()

	restarted := api.New(config)
	defer restarted.Close()

	server = httptest.NewServer(restarted.Router())
	defer server.Close()

	service, err = apiclient.New(apiclient.ClientOptions{BaseURL: server.URL})
	require.NoError(t, err)

	state, err := service.State(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 2, state.Turn)
	assert.Equal(t, "The Old Forest Road", state.Location)
	require.Len(t, state.Party, 2)
	assert.Equal(t, 24, state.Party[0].HP)
}
