package conversation

import (
	"context"
	"fmt"

	"github.com/heartpipes/clubbot/internal/transport"
)

// Member-facing flows: /join and /leave.

func repromptWith(text string) outcome {
	return outcome{messages: promptWithCancel(text), next: stay}
}

func advanceWith(msgs []transport.OutboundMessage) outcome {
	return outcome{messages: msgs, next: advance}
}

func finishWith(msgs []transport.OutboundMessage) outcome {
	return outcome{messages: msgs, next: finish}
}

// introPickOpenEvent starts a flow whose first step picks an open event.
func introPickOpenEvent(question string) introFn {
	return func(ctx context.Context, e *Engine, _ int64, _ *State) ([]transport.OutboundMessage, bool, error) {
		msgs, err := e.openEventKeyboard(ctx, question)
		if err != nil {
			return nil, false, err
		}
		// openEventKeyboard returns a plain reply when nothing is open.
		started := len(msgs) == 1 && len(msgs[0].Choices) > 0
		return msgs, started, nil
	}
}

// introAskText starts a flow whose first step is a free-text answer.
func introAskText(question string) introFn {
	return func(_ context.Context, _ *Engine, _ int64, _ *State) ([]transport.OutboundMessage, bool, error) {
		return promptWithCancel(question), true, nil
	}
}

func stepJoinPickEvent(ctx context.Context, e *Engine, _ int64, st *State, in Input) outcome {
	if in.isReserved() {
		return repromptWith("Выберите игру из списка или отправьте её номер.")
	}
	event, ok, err := e.resolveOpenEvent(ctx, in.Text)
	if err != nil {
		return finishWith(e.errorReply(err))
	}
	if !ok {
		return repromptWith("Не нашёл такую игру. Выберите из списка или отправьте номер.")
	}

	st.Data[dataEventID] = event.ID
	st.Data[dataEventTitle] = event.Title
	return advanceWith(promptWithCancel("Под каким именем записать вас?"))
}

func stepJoinName(ctx context.Context, e *Engine, userID int64, st *State, in Input) outcome {
	if in.isReserved() {
		return repromptWith("Напишите имя обычным текстом.")
	}

	conf, err := e.admission.Admit(ctx, st.Data[dataEventID], in.Text, userID)
	if err != nil {
		return finishWith(e.errorReply(err))
	}
	return finishWith(reply(fmt.Sprintf(
		"✅ Вы записаны на «%s»! Занято мест: %d из %d.",
		conf.Event.Title, conf.Registered, conf.Event.Capacity,
	)))
}

func stepLeavePickEvent(ctx context.Context, e *Engine, _ int64, st *State, in Input) outcome {
	if in.isReserved() {
		return repromptWith("Выберите игру из списка или отправьте её номер.")
	}
	event, ok, err := e.resolveOpenEvent(ctx, in.Text)
	if err != nil {
		return finishWith(e.errorReply(err))
	}
	if !ok {
		return repromptWith("Не нашёл такую игру. Выберите из списка или отправьте номер.")
	}

	st.Data[dataEventID] = event.ID
	st.Data[dataEventTitle] = event.Title
	return advanceWith(promptWithCancel("Какое имя снять с игры?"))
}

func stepLeaveName(ctx context.Context, e *Engine, _ int64, st *State, in Input) outcome {
	if in.isReserved() {
		return repromptWith("Напишите имя обычным текстом.")
	}

	if err := e.admission.Withdraw(ctx, st.Data[dataEventID], in.Text); err != nil {
		return finishWith(e.errorReply(err))
	}
	return finishWith(reply(fmt.Sprintf(
		"Запись на «%s» снята.", st.Data[dataEventTitle],
	)))
}
