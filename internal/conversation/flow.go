package conversation

import (
	"context"

	"github.com/heartpipes/clubbot/internal/transport"
)

// FlowName tags a multi-step dialogue. Every flow is a fixed sequence of
// steps in the Engine's flow table; there is no dynamic dispatch on button
// text.
type FlowName string

const (
	FlowJoin       FlowName = "join"
	FlowLeave      FlowName = "leave"
	FlowNewGame    FlowName = "newgame"
	FlowEditGame   FlowName = "editgame"
	FlowCancelGame FlowName = "cancelgame"
	FlowBroadcast  FlowName = "broadcast"
	FlowSetRating  FlowName = "setrating"
	FlowDelPlayer  FlowName = "delplayer"
	FlowSetCard    FlowName = "setcard"
)

// Keys into State.Data. Values are strings; times are stored as RFC 3339.
const (
	dataEventID    = "event_id"
	dataEventTitle = "event_title"
	dataTitle      = "title"
	dataStartsAt   = "starts_at"
	dataCapacity   = "capacity"
	dataLocation   = "location"
	dataField      = "field"
	dataAudience   = "audience" // "all" or an event ID
	dataText       = "text"
	dataPhotoID    = "photo_id"
	dataCaption    = "caption"
	dataPlayerName = "player_name"
)

// nextAction is what a step decided: stay re-prompts the same step (invalid
// input, nothing lost), advance moves to the next step, finish ends the flow
// and discards its state.
type nextAction int

const (
	stay nextAction = iota
	advance
	finish
)

type outcome struct {
	messages []transport.OutboundMessage
	next     nextAction
}

// stepFn validates the input for its step and, on advance, emits the next
// step's prompt. Keeping prompt and validation in one place makes each
// flow's table read top to bottom like the dialogue itself.
type stepFn func(ctx context.Context, e *Engine, userID int64, st *State, in Input) outcome

// introFn produces the entry prompt. started=false declines the flow (for
// example, nothing to pick from) and the returned messages explain why.
type introFn func(ctx context.Context, e *Engine, userID int64, st *State) (msgs []transport.OutboundMessage, started bool, err error)

// flowSpec is one row of the flow table: who may start it, the prompt shown
// on entry, and the step sequence.
type flowSpec struct {
	operatorOnly bool
	intro        introFn
	steps        []stepFn
}

// flowTable enumerates every flow and its steps. The /cancel sentinel is
// handled by the engine before any step runs, so no step needs its own
// cancel branch.
func flowTable() map[FlowName]flowSpec {
	return map[FlowName]flowSpec{
		FlowJoin: {
			intro: introPickOpenEvent("На какую игру записать вас?"),
			steps: []stepFn{stepJoinPickEvent, stepJoinName},
		},
		FlowLeave: {
			intro: introPickOpenEvent("С какой игры вас снять?"),
			steps: []stepFn{stepLeavePickEvent, stepLeaveName},
		},
		FlowNewGame: {
			operatorOnly: true,
			intro:        introNewGame,
			steps: []stepFn{
				stepNewGameTitle,
				stepNewGameStart,
				stepNewGameCapacity,
				stepNewGameLocation,
				stepNewGamePrice,
			},
		},
		FlowEditGame: {
			operatorOnly: true,
			intro:        introPickOpenEvent("Какую игру меняем?"),
			steps:        []stepFn{stepEditPickEvent, stepEditPickField, stepEditValue},
		},
		FlowCancelGame: {
			operatorOnly: true,
			intro:        introPickOpenEvent("Какую игру отменить?"),
			steps:        []stepFn{stepCancelPickEvent, stepCancelConfirm},
		},
		FlowBroadcast: {
			operatorOnly: true,
			intro:        introBroadcast,
			steps:        []stepFn{stepBroadcastAudience, stepBroadcastContent, stepBroadcastConfirm},
		},
		FlowSetRating: {
			operatorOnly: true,
			intro:        introAskText("Имя игрока?"),
			steps:        []stepFn{stepRatingName, stepRatingValue},
		},
		FlowDelPlayer: {
			operatorOnly: true,
			intro:        introAskText("Кого удалить из рейтинга?"),
			steps:        []stepFn{stepDelPlayerName, stepDelPlayerConfirm},
		},
		FlowSetCard: {
			operatorOnly: true,
			intro:        introAskText("Чья карточка?"),
			steps:        []stepFn{stepCardName, stepCardPhoto},
		},
	}
}

// commandFlows maps a command to the flow it starts.
var commandFlows = map[string]FlowName{
	"join":       FlowJoin,
	"leave":      FlowLeave,
	"newgame":    FlowNewGame,
	"editgame":   FlowEditGame,
	"cancelgame": FlowCancelGame,
	"broadcast":  FlowBroadcast,
	"setrating":  FlowSetRating,
	"delplayer":  FlowDelPlayer,
	"setcard":    FlowSetCard,
}
