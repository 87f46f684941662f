package core

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"

	"github.com/glebarez/sqlite"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"gorm.io/gorm"

	"github.com/timada-org/skald/pkg/event"
)

// Game is one session's authoritative state. Frames describe changes
// to it, the state endpoint serves a snapshot of it.
type Game struct {
	ID string

	mux       sync.Mutex
	state     event.GameUpdate
	resolving bool
}

func newGame(id string) *Game {
	return &Game{
		ID: id,
		state: event.GameUpdate{
			Turn:     0,
			Location: "The Broken Flagon",
			Party: []event.Character{
				{Name: "Brynn", HP: 24, MaxHP: 24},
				{Name: "Sable", HP: 18, MaxHP: 18},
			},
		},
	}
}

// TryBegin marks the game as resolving a turn. It reports false when a
// turn is already in flight, so callers can reject concurrent actions.
func (g *Game) TryBegin() bool {
	g.mux.Lock()
	defer g.mux.Unlock()

	if g.resolving {
		return false
	}

	g.resolving = true

	return true
}

func (g *Game) End() {
	g.mux.Lock()
	defer g.mux.Unlock()

	g.resolving = false
}

// Snapshot returns a copy of the current state. The party slice is
// copied so callers cannot mutate the live state.
func (g *Game) Snapshot() event.GameUpdate {
	g.mux.Lock()
	defer g.mux.Unlock()

	return g.copyState()
}

// Update applies fn to the state under the lock and returns the
// resulting snapshot.
func (g *Game) Update(fn func(state *event.GameUpdate)) event.GameUpdate {
	g.mux.Lock()
	defer g.mux.Unlock()

	fn(&g.state)

	return g.copyState()
}

func (g *Game) copyState() event.GameUpdate {
	state := g.state
	state.Party = make([]event.Character, len(g.state.Party))
	copy(state.Party, g.state.Party)

	return state
}

// GameRecord is the persisted form of a session. The party is stored
// as JSON so the schema stays one flat table.
type GameRecord struct {
	ID       string `gorm:"primaryKey"`
	Turn     int
	Location string
	InCombat bool
	Party    string
}

func newRecord(game *Game) (*GameRecord, error) {
	state := game.Snapshot()

	party, err := json.Marshal(state.Party)
	if err != nil {
		return nil, err
	}

	return &GameRecord{
		ID:       game.ID,
		Turn:     state.Turn,
		Location: state.Location,
		InCombat: state.InCombat,
		Party:    string(party),
	}, nil
}

func (r *GameRecord) game() (*Game, error) {
	var party []event.Character

	if err := json.Unmarshal([]byte(r.Party), &party); err != nil {
		return nil, fmt.Errorf("session %s: decode party: %w", r.ID, err)
	}

	return &Game{
		ID: r.ID,
		state: event.GameUpdate{
			Turn:     r.Turn,
			Location: r.Location,
			Party:    party,
			InCombat: r.InCombat,
		},
	}, nil
}

type Store struct {
	mux   sync.RWMutex
	db    *gorm.DB
	games map[string]*Game
}

// NewStore creates an in-memory store. Sessions vanish with the
// process.
func NewStore() *Store {
	return &Store{
		games: make(map[string]*Game),
	}
}

// OpenStore creates a store backed by a sqlite file. Sessions survive
// restarts, so reconnecting clients find their games again.
func OpenStore(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	if err := db.AutoMigrate(&GameRecord{}); err != nil {
		return nil, err
	}

	store := &Store{
		db:    db,
		games: make(map[string]*Game),
	}

	var records []GameRecord

	if err := db.Find(&records).Error; err != nil {
		return nil, err
	}

	for _, record := range records {
		game, err := record.game()
		if err != nil {
			log.Println(err)
			continue
		}

		store.games[game.ID] = game
	}

	return store, nil
}

func (s *Store) Create() (*Game, error) {
	id, err := gonanoid.New()
	if err != nil {
		return nil, err
	}

	game := newGame(id)

	if s.db != nil {
		record, err := newRecord(game)
		if err != nil {
			return nil, err
		}

		if err := s.db.Create(record).Error; err != nil {
			return nil, err
		}
	}

	s.mux.Lock()
	s.games[id] = game
	s.mux.Unlock()

	return game, nil
}

func (s *Store) Get(id string) (*Game, bool) {
	s.mux.RLock()
	defer s.mux.RUnlock()

	game, ok := s.games[id]

	return game, ok
}

// Save writes the current state through to the database. In-memory
// stores treat it as a no-op.
func (s *Store) Save(game *Game) error {
	if s.db == nil {
		return nil
	}

	record, err := newRecord(game)
	if err != nil {
		return err
	}

	return s.db.Save(record).Error
}
