package cmd

import (
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/timada-org/skald/pkg/event"
)

var (
	thinkingStyle = lipgloss.NewStyle().Faint(true).Italic(true)
	toolStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("86"))
	updateStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	combatStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("208"))
	errorStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
	promptStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("46"))
)

// midLine tracks whether narrative chunks left the cursor mid-sentence,
// so the next non-chunk frame starts on its own line.
var midLine bool

func endLine() {
	if midLine {
		fmt.Println()

		midLine = false
	}
}

func printEvent(e event.Event) {
	switch e.Type {
	case event.TypeThinking:
		payload, err := event.As[event.Thinking](e)
		if err != nil {
			log.Println(err)
			return
		}

		endLine()
		fmt.Println(thinkingStyle.Render(payload.Text))

	case event.TypeNarrativeChunk:
		payload, err := event.As[event.NarrativeChunk](e)
		if err != nil {
			log.Println(err)
			return
		}

		fmt.Print(payload.Text)
		midLine = true

	case event.TypeToolCall:
		payload, err := event.As[event.ToolCall](e)
		if err != nil {
			log.Println(err)
			return
		}

		args, _ := json.Marshal(payload.Arguments)

		endLine()
		fmt.Println(toolStyle.Render(fmt.Sprintf("[%s %s]", payload.Name, args)))

	case event.TypeGameUpdate:
		payload, err := event.As[event.GameUpdate](e)
		if err != nil {
			log.Println(err)
			return
		}

		endLine()
		fmt.Println(updateStyle.Render(summarize(payload)))

	case event.TypeCombatUpdate:
		payload, err := event.As[event.CombatUpdate](e)
		if err != nil {
			log.Println(err)
			return
		}

		endLine()
		fmt.Println(combatStyle.Render(fmt.Sprintf("round %d: %s (%s)",
			payload.Round, payload.Note, strings.Join(payload.Actors, ", "))))

	case event.TypeError:
		payload, err := event.As[event.ErrorDetail](e)
		if err != nil {
			log.Println(err)
			return
		}

		endLine()
		fmt.Println(errorStyle.Render(fmt.Sprintf("error %s: %s", payload.Code, payload.Message)))

	case event.TypeComplete:
		payload, err := event.As[event.Complete](e)
		if err != nil {
			log.Println(err)
			return
		}

		endLine()
		fmt.Println(updateStyle.Render(fmt.Sprintf("-- turn %d --", payload.Turn)))
	}
}

func summarize(state event.GameUpdate) string {
	var b strings.Builder

	fmt.Fprintf(&b, "turn %d, %s", state.Turn, state.Location)

	if state.InCombat {
		b.WriteString(" [combat]")
	}

	for _, character := range state.Party {
		fmt.Fprintf(&b, " | %s %d/%d", character.Name, character.HP, character.MaxHP)
	}

	return b.String()
}
