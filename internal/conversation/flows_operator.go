package conversation

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/heartpipes/clubbot/internal/broadcast"
	"github.com/heartpipes/clubbot/internal/fuzzy"
	"github.com/heartpipes/clubbot/internal/model"
	"github.com/heartpipes/clubbot/internal/namefold"
	"github.com/heartpipes/clubbot/internal/transport"
)

// Operator flows: event management, broadcasts, roster upkeep.

const (
	timeLayout = "2006-01-02 15:04"
	// Club games run about five hours; the end time is an estimate the
	// operator can adjust with /editgame.
	defaultGameLength = 5 * time.Hour

	audienceAll = "all"

	yesButton = "Да"
	noButton  = "Нет"
)

func confirmKeyboard(question string) []transport.OutboundMessage {
	return []transport.OutboundMessage{
		transport.TextWithChoices(question, []string{yesButton, noButton}, []string{cancelButton}),
	}
}

// --- /newgame -------------------------------------------------------------

func introNewGame(_ context.Context, _ *Engine, _ int64, _ *State) ([]transport.OutboundMessage, bool, error) {
	return promptWithCancel("Как назовём игру?"), true, nil
}

func stepNewGameTitle(_ context.Context, _ *Engine, _ int64, st *State, in Input) outcome {
	if in.isReserved() {
		return repromptWith("Напишите название обычным текстом.")
	}
	st.Data[dataTitle] = strings.TrimSpace(in.Text)
	return advanceWith(promptWithCancel("Когда начинаем? Формат: 2026-01-15 19:00"))
}

func stepNewGameStart(_ context.Context, _ *Engine, _ int64, st *State, in Input) outcome {
	if in.isReserved() {
		return repromptWith("Отправьте дату и время текстом, например 2026-01-15 19:00.")
	}
	startsAt, err := time.ParseInLocation(timeLayout, strings.TrimSpace(in.Text), time.Local)
	if err != nil {
		return repromptWith("Не понял дату. Нужен формат 2026-01-15 19:00.")
	}
	st.Data[dataStartsAt] = startsAt.Format(time.RFC3339)
	return advanceWith(promptWithCancel("Сколько мест за столом?"))
}

func stepNewGameCapacity(_ context.Context, _ *Engine, _ int64, st *State, in Input) outcome {
	capacity, err := strconv.Atoi(strings.TrimSpace(in.Text))
	if in.isReserved() || err != nil || capacity <= 0 {
		return repromptWith("Нужно целое число больше нуля.")
	}
	st.Data[dataCapacity] = strconv.Itoa(capacity)
	return advanceWith(promptWithCancel("Где играем?"))
}

func stepNewGameLocation(_ context.Context, _ *Engine, _ int64, st *State, in Input) outcome {
	if in.isReserved() {
		return repromptWith("Напишите адрес или название места текстом.")
	}
	st.Data[dataLocation] = strings.TrimSpace(in.Text)
	return advanceWith(promptWithCancel("Цена входа?"))
}

func stepNewGamePrice(ctx context.Context, e *Engine, userID int64, st *State, in Input) outcome {
	if in.isReserved() {
		return repromptWith("Напишите цену текстом, например «1500₽».")
	}

	startsAt, err := time.Parse(time.RFC3339, st.Data[dataStartsAt])
	if err != nil {
		return finishWith(e.errorReply(err))
	}
	capacity, _ := strconv.Atoi(st.Data[dataCapacity])

	event := &model.Event{
		Title:    st.Data[dataTitle],
		StartsAt: startsAt,
		EndsAt:   startsAt.Add(defaultGameLength),
		Capacity: capacity,
		Location: st.Data[dataLocation],
		Price:    strings.TrimSpace(in.Text),
		Host:     in.FirstName,
	}
	if err := e.events.CreateEvent(ctx, event); err != nil {
		return finishWith(e.errorReply(err))
	}

	return finishWith(reply(fmt.Sprintf(
		"🎉 Игра создана!\n\n«%s»\n%s, %s\nМест: %d, вход: %s\n\nИгроки записываются через /join.",
		event.Title, event.StartsAt.Format("02.01 15:04"), event.Location, event.Capacity, event.Price,
	)))
}

// --- /editgame ------------------------------------------------------------

// Editable fields, button label → data tag.
var editFields = []struct {
	label string
	tag   string
}{
	{"Название", "title"},
	{"Время", "time"},
	{"Мест", "capacity"},
	{"Место", "location"},
	{"Цена", "price"},
	{"Ведущий", "host"},
}

func stepEditPickEvent(ctx context.Context, e *Engine, _ int64, st *State, in Input) outcome {
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

	labels := make([]string, len(editFields))
	for i, f := range editFields {
		labels[i] = f.label
	}
	return advanceWith([]transport.OutboundMessage{
		transport.TextWithChoices("Что меняем?", labels, []string{cancelButton}),
	})
}

func stepEditPickField(_ context.Context, _ *Engine, _ int64, st *State, in Input) outcome {
	if in.isReserved() {
		return repromptWith("Выберите поле кнопкой.")
	}
	for _, f := range editFields {
		if namefold.Equal(in.Text, f.label) {
			st.Data[dataField] = f.tag
			prompt := "Новое значение?"
			switch f.tag {
			case "time":
				prompt = "Новое время? Формат: 2026-01-15 19:00"
			case "capacity":
				prompt = "Новое количество мест?"
			}
			return advanceWith(promptWithCancel(prompt))
		}
	}
	return repromptWith("Выберите поле кнопкой.")
}

func stepEditValue(ctx context.Context, e *Engine, _ int64, st *State, in Input) outcome {
	if in.isReserved() {
		return repromptWith("Отправьте новое значение текстом.")
	}
	value := strings.TrimSpace(in.Text)
	eventID := st.Data[dataEventID]

	if st.Data[dataField] == "capacity" {
		capacity, err := strconv.Atoi(value)
		if err != nil || capacity <= 0 {
			return repromptWith("Нужно целое число больше нуля.")
		}
		// Shrinking below the current sign-up count is allowed; it only
		// closes the door for new registrations.
		if err := e.admission.SetCapacity(ctx, eventID, capacity); err != nil {
			return finishWith(e.errorReply(err))
		}
		return finishWith(reply(fmt.Sprintf("Готово: в «%s» теперь %d мест.", st.Data[dataEventTitle], capacity)))
	}

	event, err := e.events.GetEvent(ctx, eventID)
	if err != nil {
		return finishWith(e.errorReply(err))
	}

	switch st.Data[dataField] {
	case "title":
		event.Title = value
	case "time":
		startsAt, err := time.ParseInLocation(timeLayout, value, time.Local)
		if err != nil {
			return repromptWith("Не понял дату. Нужен формат 2026-01-15 19:00.")
		}
		event.EndsAt = startsAt.Add(event.EndsAt.Sub(event.StartsAt))
		event.StartsAt = startsAt
	case "location":
		event.Location = value
	case "price":
		event.Price = value
	case "host":
		event.Host = value
	default:
		return finishWith(reply(msgFailure))
	}

	if err := e.events.UpdateEvent(ctx, event); err != nil {
		return finishWith(e.errorReply(err))
	}
	return finishWith(reply(fmt.Sprintf("Готово, «%s» обновлена.", event.Title)))
}

// --- /cancelgame ----------------------------------------------------------

func stepCancelPickEvent(ctx context.Context, e *Engine, _ int64, st *State, in Input) outcome {
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
	return advanceWith(confirmKeyboard(fmt.Sprintf("Точно отменить «%s»?", event.Title)))
}

func stepCancelConfirm(ctx context.Context, e *Engine, _ int64, st *State, in Input) outcome {
	switch {
	case in.Kind == KindText && namefold.Equal(in.Text, yesButton):
		if err := e.events.SetEventStatus(ctx, st.Data[dataEventID], model.EventCancelled); err != nil {
			return finishWith(e.errorReply(err))
		}
		return finishWith(reply(fmt.Sprintf("Игра «%s» отменена. Записи сохранены в истории.", st.Data[dataEventTitle])))
	case in.Kind == KindText && namefold.Equal(in.Text, noButton):
		return finishWith(reply("Хорошо, игра остаётся."))
	default:
		return outcome{messages: confirmKeyboard("Ответьте «Да» или «Нет»."), next: stay}
	}
}

// --- /broadcast -----------------------------------------------------------

const everyoneButton = "Всем"

func introBroadcast(ctx context.Context, e *Engine, _ int64, _ *State) ([]transport.OutboundMessage, bool, error) {
	events, err := e.events.ListOpenEvents(ctx)
	if err != nil {
		return nil, false, err
	}

	choices := [][]string{{everyoneButton}}
	text := "Кому отправить рассылку?"
	for _, ev := range events {
		choices = append(choices, []string{ev.Title})
	}
	choices = append(choices, []string{cancelButton})
	return []transport.OutboundMessage{transport.TextWithChoices(text, choices...)}, true, nil
}

func stepBroadcastAudience(ctx context.Context, e *Engine, _ int64, st *State, in Input) outcome {
	if in.isReserved() {
		return repromptWith("Выберите аудиторию кнопкой.")
	}
	if namefold.Equal(in.Text, everyoneButton) {
		st.Data[dataAudience] = audienceAll
		return advanceWith(promptWithCancel("Текст рассылки? Можно прислать фото с подписью."))
	}

	event, ok, err := e.resolveOpenEvent(ctx, in.Text)
	if err != nil {
		return finishWith(e.errorReply(err))
	}
	if !ok {
		return repromptWith("Не нашёл такую игру. Выберите аудиторию кнопкой.")
	}
	st.Data[dataAudience] = event.ID
	st.Data[dataEventTitle] = event.Title
	return advanceWith(promptWithCancel("Текст рассылки? Можно прислать фото с подписью."))
}

func stepBroadcastContent(_ context.Context, _ *Engine, _ int64, st *State, in Input) outcome {
	switch {
	case in.Kind == KindPhoto && in.PhotoFileID != "":
		st.Data[dataPhotoID] = in.PhotoFileID
		st.Data[dataCaption] = in.Caption
	case in.Kind == KindText && !in.isReserved():
		st.Data[dataText] = in.Text
	default:
		return repromptWith("Пришлите текст или фото для рассылки.")
	}
	return advanceWith(confirmKeyboard("Отправляем?"))
}

func stepBroadcastConfirm(ctx context.Context, e *Engine, _ int64, st *State, in Input) outcome {
	switch {
	case in.Kind == KindText && namefold.Equal(in.Text, yesButton):
	case in.Kind == KindText && namefold.Equal(in.Text, noButton):
		return finishWith(reply("Рассылка отменена."))
	default:
		return outcome{messages: confirmKeyboard("Ответьте «Да» или «Нет»."), next: stay}
	}

	audience := broadcast.Everyone()
	if id := st.Data[dataAudience]; id != audienceAll {
		audience = broadcast.EventRegistrants(id)
	}

	var payload transport.OutboundMessage
	if fileID := st.Data[dataPhotoID]; fileID != "" {
		payload = transport.Photo(fileID, st.Data[dataCaption])
	} else {
		payload = transport.Text(st.Data[dataText])
	}

	report, err := e.dispatcher.Dispatch(ctx, audience, payload)
	if err != nil {
		return finishWith(e.errorReply(err))
	}
	return finishWith(reply(fmt.Sprintf(
		"📣 Рассылка завершена: отправлено %d, ошибок %d, всего получателей %d.",
		report.Sent, report.Failed, report.Total,
	)))
}

// --- /setrating -----------------------------------------------------------

func stepRatingName(ctx context.Context, e *Engine, _ int64, st *State, in Input) outcome {
	if in.isReserved() {
		return repromptWith("Напишите имя игрока текстом.")
	}
	name := strings.TrimSpace(in.Text)

	// An existing player found by fuzzy match keeps their canonical
	// spelling; an unknown name creates a new roster entry as typed.
	if _, names, err := e.rosterNames(ctx); err == nil {
		if match, ok := fuzzy.Match(name, names); ok {
			name = match
		}
	}

	st.Data[dataPlayerName] = name
	return advanceWith(promptWithCancel(fmt.Sprintf("Какой рейтинг поставить для %s?", name)))
}

func stepRatingValue(ctx context.Context, e *Engine, _ int64, st *State, in Input) outcome {
	rating, err := strconv.Atoi(strings.TrimSpace(in.Text))
	if in.isReserved() || err != nil || rating < 0 {
		return repromptWith("Нужно целое неотрицательное число.")
	}

	name := st.Data[dataPlayerName]
	if err := e.players.UpsertPlayer(ctx, &model.Player{Name: name, Rating: rating}); err != nil {
		return finishWith(e.errorReply(err))
	}
	return finishWith(reply(fmt.Sprintf("Рейтинг обновлён: %s — %d очков.", name, rating)))
}

// --- /delplayer -----------------------------------------------------------

func stepDelPlayerName(ctx context.Context, e *Engine, _ int64, st *State, in Input) outcome {
	if in.isReserved() {
		return repromptWith("Напишите имя игрока текстом.")
	}

	_, names, err := e.rosterNames(ctx)
	if err != nil {
		return finishWith(e.errorReply(err))
	}
	name, ok := fuzzy.Match(in.Text, names)
	if !ok {
		return repromptWith("Не нашёл такого игрока. Попробуйте ещё раз или /cancel.")
	}

	st.Data[dataPlayerName] = name
	return advanceWith(confirmKeyboard(fmt.Sprintf("Удалить %s из рейтинга?", name)))
}

func stepDelPlayerConfirm(ctx context.Context, e *Engine, _ int64, st *State, in Input) outcome {
	switch {
	case in.Kind == KindText && namefold.Equal(in.Text, yesButton):
		name := st.Data[dataPlayerName]
		ok, err := e.players.DeletePlayer(ctx, namefold.Fold(name))
		if err != nil {
			return finishWith(e.errorReply(err))
		}
		if !ok {
			return finishWith(reply("Игрок уже удалён."))
		}
		return finishWith(reply(fmt.Sprintf("%s удалён из рейтинга.", name)))
	case in.Kind == KindText && namefold.Equal(in.Text, noButton):
		return finishWith(reply("Хорошо, оставляем."))
	default:
		return outcome{messages: confirmKeyboard("Ответьте «Да» или «Нет»."), next: stay}
	}
}

// --- /setcard -------------------------------------------------------------

func stepCardName(ctx context.Context, e *Engine, _ int64, st *State, in Input) outcome {
	if in.isReserved() {
		return repromptWith("Напишите имя игрока текстом.")
	}

	_, names, err := e.rosterNames(ctx)
	if err != nil {
		return finishWith(e.errorReply(err))
	}
	name, ok := fuzzy.Match(in.Text, names)
	if !ok {
		return repromptWith("Не нашёл такого игрока. Попробуйте ещё раз или /cancel.")
	}

	st.Data[dataPlayerName] = name
	return advanceWith(promptWithCancel(fmt.Sprintf("Пришлите фото карточки для %s.", name)))
}

func stepCardPhoto(ctx context.Context, e *Engine, _ int64, st *State, in Input) outcome {
	if in.Kind != KindPhoto || in.PhotoFileID == "" {
		return repromptWith("Нужно именно фото.")
	}

	name := st.Data[dataPlayerName]
	card := &model.PlayerCard{PlayerName: name, FileID: in.PhotoFileID}
	if err := e.players.UpsertCard(ctx, card); err != nil {
		return finishWith(e.errorReply(err))
	}
	return finishWith(reply(fmt.Sprintf("Карточка для %s сохранена.", name)))
}
