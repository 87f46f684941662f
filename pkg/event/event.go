package event

import (
	"fmt"
	"strings"

	"github.com/mitchellh/mapstructure"
)

// Type tags a frame pushed by the game master on the session stream.
type Type string

const (
	TypeNarrativeChunk Type = "narrative_chunk"
	TypeToolCall       Type = "tool_call"
	TypeGameUpdate     Type = "game_update"
	TypeCombatUpdate   Type = "combat_update"
	TypeError          Type = "error"
	TypeComplete       Type = "complete"
	TypeThinking       Type = "thinking"
)

// Types returns every known tag in stable order.
func Types() []Type {
	return []Type{
		TypeNarrativeChunk,
		TypeToolCall,
		TypeGameUpdate,
		TypeCombatUpdate,
		TypeError,
		TypeComplete,
		TypeThinking,
	}
}

func (t Type) Known() bool {
	for _, k := range Types() {
		if t == k {
			return true
		}
	}

	return false
}

func (t Type) String() string {
	return string(t)
}

// ParseTypes parses a comma-separated list of tags, rejecting unknown ones.
func ParseTypes(s string) ([]Type, error) {
	var types []Type

	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		t := Type(part)
		if !t.Known() {
			return nil, fmt.Errorf("event type: %s is not recognized", part)
		}

		types = append(types, t)
	}

	if len(types) == 0 {
		return nil, fmt.Errorf("event type list: %q contains no types", s)
	}

	return types, nil
}

// Event is one typed frame received on a session stream. Data holds the
// decoded JSON body; use As to project it onto a payload record.
type Event struct {
	Type Type
	Data any
}

// NarrativeChunk is a fragment of game-master prose for the current turn.
type NarrativeChunk struct {
	Text string `json:"text" mapstructure:"text"`
}

// Thinking marks the game master working on a response.
type Thinking struct {
	Text string `json:"text" mapstructure:"text"`
}

// ToolCall reports a tool the game master invoked while resolving a turn.
type ToolCall struct {
	Name      string         `json:"name" mapstructure:"name"`
	Arguments map[string]any `json:"arguments" mapstructure:"arguments"`
}

// Character is a party or combat actor snapshot.
type Character struct {
	Name  string `json:"name" mapstructure:"name"`
	HP    int    `json:"hp" mapstructure:"hp"`
	MaxHP int    `json:"max_hp" mapstructure:"max_hp"`
}

// GameUpdate is the session state after a resolved turn.
type GameUpdate struct {
	Turn     int         `json:"turn" mapstructure:"turn"`
	Location string      `json:"location" mapstructure:"location"`
	Party    []Character `json:"party" mapstructure:"party"`
	InCombat bool        `json:"in_combat" mapstructure:"in_combat"`
}

// CombatUpdate is the combat state after a resolved combat turn. Actors
// are listed in initiative order.
type CombatUpdate struct {
	Round  int      `json:"round" mapstructure:"round"`
	Actors []string `json:"actors" mapstructure:"actors"`
	Note   string   `json:"note" mapstructure:"note"`
}

// ErrorDetail is a server-reported failure for the current turn.
type ErrorDetail struct {
	Code    string `json:"code" mapstructure:"code"`
	Message string `json:"message" mapstructure:"message"`
}

// Complete marks the end of a streamed turn.
type Complete struct {
	Turn int `json:"turn" mapstructure:"turn"`
}

// As decodes the event body into a payload record.
func As[T any](e Event) (T, error) {
	var out T

	if err := mapstructure.Decode(e.Data, &out); err != nil {
		return out, fmt.Errorf("decode %s payload: %w", e.Type, err)
	}

	return out, nil
}
