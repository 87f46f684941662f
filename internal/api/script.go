package api

import "github.com/timada-org/skald/pkg/event"

// beat is one scripted turn. The master plays beats in order and loops
// when the script runs out, so a session never stops answering.
type beat struct {
	thinking string
	chunks   []string
	tool     *event.ToolCall
	combat   *event.CombatUpdate
	resolve  func(state *event.GameUpdate)
}

var beats = []beat{
	{
		thinking: "The innkeeper sizes the party up.",
		chunks: []string{
			"The innkeeper leans across the bar, lowering his voice. ",
			"\"The road north is closed,\" he says. \"Wolves. Or something wearing wolves.\"",
		},
		tool: &event.ToolCall{
			Name:      "roll_dice",
			Arguments: map[string]any{"sides": 20, "reason": "persuasion"},
		},
	},
	{
		thinking: "The party leaves the village behind.",
		chunks: []string{
			"Dawn finds you on the old forest road, mist pooling between the trees. ",
			"Somewhere ahead a branch snaps, too heavy for a deer.",
		},
		resolve: func(state *event.GameUpdate) {
			state.Location = "The Old Forest Road"
		},
	},
	{
		thinking: "Something moves between the trees.",
		chunks: []string{
			"Shapes detach from the treeline, low and wrong-jointed. ",
			"Steel clears leather as the first of them charges.",
		},
		tool: &event.ToolCall{
			Name:      "roll_dice",
			Arguments: map[string]any{"sides": 20, "reason": "initiative"},
		},
		combat: &event.CombatUpdate{
			Round:  1,
			Actors: []string{"Brynn", "Sable", "gnarlwolf"},
			Note:   "combat begins",
		},
		resolve: func(state *event.GameUpdate) {
			state.InCombat = true
		},
	},
	{
		thinking: "The gnarlwolf circles for an opening.",
		chunks: []string{
			"Brynn catches the lunge on a raised shield, boots skidding in the mud. ",
			"Sable's knife finds a gap in the matted hide.",
		},
		tool: &event.ToolCall{
			Name:      "roll_dice",
			Arguments: map[string]any{"sides": 8, "reason": "damage"},
		},
		combat: &event.CombatUpdate{
			Round:  2,
			Actors: []string{"Brynn", "Sable", "gnarlwolf"},
			Note:   "the gnarlwolf staggers",
		},
		resolve: func(state *event.GameUpdate) {
			state.Party[0].HP -= 5
		},
	},
	{
		thinking: "The fight is all but decided.",
		chunks: []string{
			"The creature breaks, dragging itself into the dark between the trees. ",
			"The road ahead lies open.",
		},
		combat: &event.CombatUpdate{
			Round:  3,
			Actors: []string{"Brynn", "Sable"},
			Note:   "combat ends",
		},
		resolve: func(state *event.GameUpdate) {
			state.InCombat = false
			state.Location = "Forest Clearing"
		},
	},
}
