package api

import (
	"log"
	"strings"
	"time"

	"github.com/timada-org/skald/internal/core"
	"github.com/timada-org/skald/internal/sse"
	"github.com/timada-org/skald/pkg/event"
)

// Publisher delivers frames to the subscribers of a stream.
type Publisher interface {
	Publish(stream string, e *sse.Event)
}

type MasterOptions struct {
	Server Publisher
	Store  *core.Store
	Delay  time.Duration
}

// Master is the scripted game master. It resolves player actions one
// at a time and narrates each turn over the session's stream as the
// same frame sequence a live narrator would produce: thinking, then
// narrative chunks, dice and state frames, and a final complete.
//
// Actions mentioning "chaos" resolve as a failed generation, so client
// error paths can be exercised against a running server.
type Master struct {
	server  Publisher
	store   *core.Store
	delay   time.Duration
	actions chan action
	done    chan struct{}
}

type action struct {
	game *core.Game
	text string
}

func newMaster(options *MasterOptions) *Master {
	return &Master{
		server:  options.Server,
		store:   options.Store,
		delay:   options.Delay,
		actions: make(chan action, 16),
		done:    make(chan struct{}),
	}
}

func (m *Master) start() {
	go func() {
		for {
			select {
			case a := <-m.actions:
				m.resolveTurn(a.game, a.text)
			case <-m.done:
				return
			}
		}
	}()
}

// Resolve queues one action. It reports false when the session is
// already resolving a turn.
func (m *Master) Resolve(game *core.Game, text string) bool {
	if !game.TryBegin() {
		return false
	}

	select {
	case m.actions <- action{game, text}:
		return true
	case <-m.done:
		game.End()

		return false
	}
}

func (m *Master) Close() {
	close(m.done)
}

func (m *Master) resolveTurn(game *core.Game, text string) {
	defer game.End()

	turn := game.Snapshot().Turn
	beat := beats[turn%len(beats)]

	m.publish(game, event.TypeThinking, event.Thinking{Text: beat.thinking})

	if !m.pause() {
		return
	}

	if strings.Contains(strings.ToLower(text), "chaos") {
		m.publish(game, event.TypeError, event.ErrorDetail{
			Code:    "narration_failed",
			Message: "the threads of fate tangled, try a different action",
		})
		m.publish(game, event.TypeComplete, event.Complete{Turn: turn})

		return
	}

	for _, chunk := range beat.chunks {
		m.publish(game, event.TypeNarrativeChunk, event.NarrativeChunk{Text: chunk})

		if !m.pause() {
			return
		}
	}

	if beat.tool != nil {
		m.publish(game, event.TypeToolCall, *beat.tool)

		if !m.pause() {
			return
		}
	}

	if beat.combat != nil {
		m.publish(game, event.TypeCombatUpdate, *beat.combat)

		if !m.pause() {
			return
		}
	}

	state := game.Update(func(state *event.GameUpdate) {
		state.Turn++

		if beat.resolve != nil {
			beat.resolve(state)
		}
	})

	if err := m.store.Save(game); err != nil {
		log.Println(err)
	}

	m.publish(game, event.TypeGameUpdate, state)
	m.publish(game, event.TypeComplete, event.Complete{Turn: state.Turn})
}

func (m *Master) publish(game *core.Game, name event.Type, data any) {
	m.server.Publish(game.ID, &sse.Event{
		Name: string(name),
		Data: data,
	})
}

// pause waits the pacing delay between frames. It reports false when
// the master is closing, so a turn in flight stops early.
func (m *Master) pause() bool {
	if m.delay == 0 {
		return true
	}

	select {
	case <-time.After(m.delay):
		return true
	case <-m.done:
		return false
	}
}
