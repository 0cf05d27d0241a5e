// Package conversation is the per-user dialogue state machine. An inbound
// update either runs a single-shot command or moves the sender through a
// flow: prompt, validate, next prompt, commit. Invalid input re-prompts in
// place; /cancel aborts from any step; a started flow replaces whatever flow
// was active before (last write wins, intentionally).
package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/heartpipes/clubbot/internal/admission"
	"github.com/heartpipes/clubbot/internal/apperror"
	"github.com/heartpipes/clubbot/internal/broadcast"
	"github.com/heartpipes/clubbot/internal/fuzzy"
	"github.com/heartpipes/clubbot/internal/model"
	"github.com/heartpipes/clubbot/internal/namefold"
	"github.com/heartpipes/clubbot/internal/repository"
	"github.com/heartpipes/clubbot/internal/transport"
)

// Engine routes updates to commands and flow steps.
type Engine struct {
	admission  *admission.Controller
	dispatcher *broadcast.Dispatcher
	events     repository.EventRepository
	players    repository.PlayerRepository
	states     *Store
	operators  map[int64]bool
	flows      map[FlowName]flowSpec
	logger     *slog.Logger
}

func NewEngine(
	ctrl *admission.Controller,
	dispatcher *broadcast.Dispatcher,
	events repository.EventRepository,
	players repository.PlayerRepository,
	states *Store,
	operatorIDs []int64,
	logger *slog.Logger,
) *Engine {
	operators := make(map[int64]bool, len(operatorIDs))
	for _, id := range operatorIDs {
		operators[id] = true
	}
	return &Engine{
		admission:  ctrl,
		dispatcher: dispatcher,
		events:     events,
		players:    players,
		states:     states,
		operators:  operators,
		flows:      flowTable(),
		logger:     logger,
	}
}

// States exposes the state store for the janitor goroutine.
func (e *Engine) States() *Store {
	return e.states
}

// HandleUpdate processes one update from one user and returns the replies.
// Errors never escape: anything that goes wrong becomes a reply and, for
// flow state, a transition back to idle.
func (e *Engine) HandleUpdate(ctx context.Context, userID int64, in Input) []transport.OutboundMessage {
	if in.isCancel() {
		return e.handleCancel(userID)
	}

	if in.Kind == KindCommand {
		return e.handleCommand(ctx, userID, in)
	}

	st, ok := e.states.Get(userID)
	if !ok {
		// Free text outside a flow: nothing to do with it.
		return reply("Я понимаю только команды. Нажмите /start, чтобы увидеть список.")
	}
	return e.runStep(ctx, userID, st, in)
}

func (e *Engine) handleCancel(userID int64) []transport.OutboundMessage {
	if _, ok := e.states.Get(userID); !ok {
		return reply("Сейчас нечего отменять.")
	}
	e.states.Delete(userID)
	return reply("Отменено. Все введённые данные удалены.")
}

func (e *Engine) handleCommand(ctx context.Context, userID int64, in Input) []transport.OutboundMessage {
	if flow, ok := commandFlows[in.Command]; ok {
		return e.startFlow(ctx, userID, flow)
	}

	switch in.Command {
	case "start", "help":
		return reply(greeting)
	case "games":
		return e.commandGames(ctx)
	case "rating":
		return e.commandRating(ctx)
	case "my_rating":
		return e.commandMyRating(ctx, in.FirstName)
	case "card":
		return e.commandCard(ctx, in.Text)
	default:
		return reply("Не знаю такую команду. Нажмите /start, чтобы увидеть список.")
	}
}

func (e *Engine) startFlow(ctx context.Context, userID int64, flow FlowName) []transport.OutboundMessage {
	spec := e.flows[flow]
	if spec.operatorOnly && !e.operators[userID] {
		return reply("Эта команда доступна только администратору клуба.")
	}

	if old, ok := e.states.Get(userID); ok {
		e.logger.Debug("flow replaced",
			slog.Int64("user", userID),
			slog.String("old", string(old.Flow)),
			slog.String("new", string(flow)),
		)
	}

	st := newState(flow)
	msgs, started, err := spec.intro(ctx, e, userID, st)
	if err != nil {
		e.states.Delete(userID)
		e.logger.Error("flow intro failed",
			slog.String("flow", string(flow)),
			slog.String("error", err.Error()),
		)
		return reply(msgFailure)
	}
	if !started {
		// Nothing to do (e.g. no open games); the old flow, if any, is
		// still abandoned — the command already signalled a change of mind.
		e.states.Delete(userID)
		return msgs
	}

	e.states.Put(userID, st)
	return msgs
}

func (e *Engine) runStep(ctx context.Context, userID int64, st *State, in Input) []transport.OutboundMessage {
	spec, ok := e.flows[st.Flow]
	if !ok || st.Step >= len(spec.steps) {
		// State from an unknown flow version; drop it rather than guess.
		e.states.Delete(userID)
		return reply(msgFailure)
	}

	out := spec.steps[st.Step](ctx, e, userID, st, in)
	switch out.next {
	case advance:
		st.Step++
		e.states.Put(userID, st)
	case finish:
		e.states.Delete(userID)
	default:
		e.states.Put(userID, st) // refresh idle timer on re-prompt
	}
	return out.messages
}

// --- single-shot commands -------------------------------------------------

const greeting = `🎯 Добро пожаловать в покер-клуб HeartPipes!

Команды:
/games — ближайшие игры
/join — записаться на игру
/leave — снять запись
/rating — рейтинг игроков
/my_rating — ваш рейтинг
/card <имя> — карточка игрока
/cancel — прервать текущий диалог`

const msgFailure = "Что-то пошло не так. Попробуйте ещё раз чуть позже."

func (e *Engine) commandGames(ctx context.Context) []transport.OutboundMessage {
	events, err := e.events.ListOpenEvents(ctx)
	if err != nil {
		e.logger.Error("listing events failed", slog.String("error", err.Error()))
		return reply(msgFailure)
	}
	if len(events) == 0 {
		return reply("Пока нет запланированных игр.")
	}

	var b strings.Builder
	b.WriteString("🗓 Ближайшие игры:\n")
	for i, ev := range events {
		line, err := e.eventLine(ctx, i+1, &ev)
		if err != nil {
			e.logger.Error("counting registrations failed", slog.String("error", err.Error()))
			return reply(msgFailure)
		}
		b.WriteString("\n" + line)
	}
	b.WriteString("\n\nЗаписаться: /join")
	return reply(b.String())
}

func (e *Engine) eventLine(ctx context.Context, n int, ev *model.Event) (string, error) {
	_, regs, err := e.admission.Roster(ctx, ev.ID)
	if err != nil {
		return "", err
	}
	left := ev.SpotsLeft(len(regs))
	if left < 0 {
		left = 0
	}
	return fmt.Sprintf("%d. %s — %s, %s (свободно мест: %d из %d)",
		n, ev.Title, ev.StartsAt.Format("02.01 15:04"), ev.Location, left, ev.Capacity), nil
}

func (e *Engine) commandRating(ctx context.Context) []transport.OutboundMessage {
	players, err := e.players.ListPlayers(ctx)
	if err != nil {
		e.logger.Error("listing players failed", slog.String("error", err.Error()))
		return reply(msgFailure)
	}
	if len(players) == 0 {
		return reply("Рейтинг пока пуст.")
	}

	var b strings.Builder
	b.WriteString("🏆 Топ игроков:\n")
	for i, p := range players {
		fmt.Fprintf(&b, "\n%d. %s: %d очков", i+1, p.Name, p.Rating)
	}
	return reply(b.String())
}

func (e *Engine) commandMyRating(ctx context.Context, firstName string) []transport.OutboundMessage {
	players, err := e.players.ListPlayers(ctx)
	if err != nil {
		e.logger.Error("listing players failed", slog.String("error", err.Error()))
		return reply(msgFailure)
	}

	names := make([]string, len(players))
	for i, p := range players {
		names[i] = p.Name
	}
	name, ok := fuzzy.Match(firstName, names)
	if !ok {
		return reply("Вас нет в рейтинге. Обратитесь к администратору.")
	}
	for _, p := range players {
		if p.Name == name {
			return reply(fmt.Sprintf("%s, ваш рейтинг: %d очков", p.Name, p.Rating))
		}
	}
	return reply("Вас нет в рейтинге. Обратитесь к администратору.")
}

func (e *Engine) commandCard(ctx context.Context, query string) []transport.OutboundMessage {
	query = strings.TrimSpace(query)
	if query == "" {
		return reply("Укажите имя: /card Иван")
	}

	players, err := e.players.ListPlayers(ctx)
	if err != nil {
		e.logger.Error("listing players failed", slog.String("error", err.Error()))
		return reply(msgFailure)
	}
	names := make([]string, len(players))
	for i, p := range players {
		names[i] = p.Name
	}
	name, ok := fuzzy.Match(query, names)
	if !ok {
		return reply("Не нашёл такого игрока в рейтинге.")
	}

	card, err := e.players.GetCard(ctx, namefold.Fold(name))
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return reply(fmt.Sprintf("У игрока %s пока нет карточки.", name))
		}
		e.logger.Error("getting card failed", slog.String("error", err.Error()))
		return reply(msgFailure)
	}
	return []transport.OutboundMessage{transport.Photo(card.FileID, card.PlayerName)}
}

// --- shared helpers -------------------------------------------------------

func reply(text string) []transport.OutboundMessage {
	return []transport.OutboundMessage{transport.Text(text)}
}

func promptWithCancel(text string) []transport.OutboundMessage {
	return []transport.OutboundMessage{
		transport.TextWithChoices(text, []string{cancelButton}),
	}
}

// errorReply turns a service error into a terminal user message. Specific
// admission errors get specific wording; everything else is the generic
// failure (internals are logged, never shown).
func (e *Engine) errorReply(err error) []transport.OutboundMessage {
	var appErr *apperror.AppError
	switch {
	case errors.Is(err, apperror.ErrDuplicateName):
		existing := ""
		if errors.As(err, &appErr) {
			existing = appErr.Field
		}
		return reply(fmt.Sprintf("Это имя уже в списке — записан(а) %s. Начните заново с другим именем.", existing))
	case errors.Is(err, apperror.ErrCapacityExceeded):
		return reply("Свободных мест на эту игру больше нет 😔")
	case errors.Is(err, apperror.ErrNotFound):
		return reply("Не нашёл такую игру или запись.")
	case errors.Is(err, apperror.ErrValidation):
		if errors.As(err, &appErr) {
			return reply("Некорректное значение: " + appErr.Message)
		}
		return reply("Некорректное значение.")
	default:
		e.logger.Error("operation failed", slog.String("error", err.Error()))
		return reply(msgFailure)
	}
}

// resolveOpenEvent matches user input against the open-event list: a 1-based
// number from the displayed list, or a fuzzy title match.
func (e *Engine) resolveOpenEvent(ctx context.Context, text string) (*model.Event, bool, error) {
	events, err := e.events.ListOpenEvents(ctx)
	if err != nil {
		return nil, false, err
	}
	if len(events) == 0 {
		return nil, false, nil
	}

	text = strings.TrimSpace(text)
	if n, err := strconv.Atoi(text); err == nil {
		if n < 1 || n > len(events) {
			return nil, false, nil
		}
		return &events[n-1], true, nil
	}

	titles := make([]string, len(events))
	for i, ev := range events {
		titles[i] = ev.Title
	}
	title, ok := fuzzy.Match(text, titles)
	if !ok {
		return nil, false, nil
	}
	for i := range events {
		if events[i].Title == title {
			return &events[i], true, nil
		}
	}
	return nil, false, nil
}

// openEventKeyboard builds the numbered list plus a button per event.
func (e *Engine) openEventKeyboard(ctx context.Context, question string) ([]transport.OutboundMessage, error) {
	events, err := e.events.ListOpenEvents(ctx)
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return reply("Пока нет запланированных игр."), nil
	}

	var b strings.Builder
	b.WriteString(question + "\n")
	choices := make([][]string, 0, len(events)+1)
	for i, ev := range events {
		fmt.Fprintf(&b, "\n%d. %s — %s", i+1, ev.Title, ev.StartsAt.Format("02.01 15:04"))
		choices = append(choices, []string{ev.Title})
	}
	choices = append(choices, []string{cancelButton})

	return []transport.OutboundMessage{transport.TextWithChoices(b.String(), choices...)}, nil
}

func (e *Engine) rosterNames(ctx context.Context) ([]model.Player, []string, error) {
	players, err := e.players.ListPlayers(ctx)
	if err != nil {
		return nil, nil, err
	}
	names := make([]string, len(players))
	for i, p := range players {
		names[i] = p.Name
	}
	return players, names, nil
}
