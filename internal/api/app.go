package api

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/timada-org/skald/internal/core"
	"github.com/timada-org/skald/internal/sse"
)

type App struct {
	server *sse.Server
	master *Master
	store  *core.Store
	config *core.Config
	auth   *core.Auth
}

// New builds the game service. Auth is enabled only when the config
// carries a JWKS url, so local sessions run without tokens.
func New(config *core.Config) *App {
	server := sse.New()

	store := core.NewStore()

	if config.Server.Database != "" {
		s, err := core.OpenStore(config.Server.Database)
		if err != nil {
			log.Fatalln(err)
		}

		store = s
	}

	delay := 250 * time.Millisecond

	if config.Server.TurnDelayMs > 0 {
		delay = time.Duration(config.Server.TurnDelayMs) * time.Millisecond
	}

	master := newMaster(&MasterOptions{
		Server: server,
		Store:  store,
		Delay:  delay,
	})
	master.start()

	var auth *core.Auth

	if config.Server.JwksURL != "" {
		a, err := core.NewAuth(config.Server.JwksURL)
		if err != nil {
			log.Fatalln(err)
		}

		auth = a
	}

	return &App{
		server: server,
		master: master,
		store:  store,
		config: config,
		auth:   auth,
	}
}

func (app *App) Listen() error {
	router := app.Router()

	log.Printf("Listening on %s", app.config.Server.Addr)

	return http.ListenAndServe(app.config.Server.Addr, router)
}

func (app *App) Router() *httprouter.Router {
	router := httprouter.New()
	router.POST("/api/game", app.create())
	router.GET("/api/game/:id/state", app.state())
	router.POST("/api/game/:id/action", app.action())
	router.GET("/api/game/:id/sse", app.stream())

	return router
}

func (app *App) Close() {
	app.master.Close()
}

func (app *App) create() httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		if err := app.authorize(r); err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized", err.Error())
			return
		}

		game, err := app.store.Create()
		if err != nil {
			log.Println(err)
			writeError(w, http.StatusInternalServerError, "internal", "could not create session")
			return
		}

		w.Header().Add("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)

		json.NewEncoder(w).Encode(map[string]string{"id": game.ID})
	}
}

func (app *App) state() httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		if err := app.authorize(r); err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized", err.Error())
			return
		}

		game, ok := app.store.Get(p.ByName("id"))
		if !ok {
			writeError(w, http.StatusNotFound, "not_found", "unknown session")
			return
		}

		w.Header().Add("Content-Type", "application/json")

		json.NewEncoder(w).Encode(game.Snapshot())
	}
}

func (app *App) action() httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		if err := app.authorize(r); err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized", err.Error())
			return
		}

		game, ok := app.store.Get(p.ByName("id"))
		if !ok {
			writeError(w, http.StatusNotFound, "not_found", "unknown session")
			return
		}

		var input struct {
			Text string `json:"text"`
		}

		if err := json.NewDecoder(r.Body).Decode(&input); err != nil || input.Text == "" {
			writeError(w, http.StatusBadRequest, "invalid_action", "action text is required")
			return
		}

		if !app.master.Resolve(game, input.Text) {
			writeError(w, http.StatusConflict, "turn_in_progress", "a turn is already resolving")
			return
		}

		w.Header().Add("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)

		if _, err := w.Write([]byte("{\"success\": true}")); err != nil {
			log.Println(err.Error())
			return
		}
	}
}

func (app *App) stream() httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		if err := app.authorize(r); err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized", err.Error())
			return
		}

		if _, ok := app.store.Get(p.ByName("id")); !ok {
			writeError(w, http.StatusNotFound, "not_found", "unknown session")
			return
		}

		app.server.HandleFunc()(w, r, p)
	}
}

func (app *App) authorize(r *http.Request) error {
	if app.auth == nil {
		return nil
	}

	_, err := app.auth.UserID(r)

	return err
}

func writeError(w http.ResponseWriter, status int, code string, message string) {
	w.Header().Add("Content-Type", "application/json")
	w.WriteHeader(status)

	json.NewEncoder(w).Encode(map[string]string{
		"code":    code,
		"message": message,
	})
}
