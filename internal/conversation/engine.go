// Package conversation drives multi-step chat flows such as sign in,
// shift photos, proof upload and delegation.
//
// Each chat has at most one active flow. A flow is a (Flow, Step, Data)
// triple; inputs are routed through a dispatch table keyed by flow and
// step. Inputs a step does not accept re-prompt without changing state.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/taskmate/tmbot/internal/backend"
	"github.com/taskmate/tmbot/internal/chat"
	"github.com/taskmate/tmbot/internal/domain"
	"github.com/taskmate/tmbot/internal/render"
)

// Default proof ceilings.
const (
	DefaultMaxProofFiles = 5
	DefaultMaxProofBytes = 50 << 20
)

// Authenticator performs sign in for the auth flow.
type Authenticator interface {
	Login(ctx context.Context, chatID int64, login, password string) (*domain.Session, error)
}

// Turn is the caller context of one input: the chat and its session, which
// is nil before sign in.
type Turn struct {
	ChatID  int64
	Session *domain.Session
}

func (t Turn) token() string {
	if t.Session == nil {
		return ""
	}
	return t.Session.Token
}

// InputKind classifies an inbound input.
type InputKind uint8

const (
	InputText InputKind = 1 << iota
	InputMedia
	InputButton
)

// Input is one user input offered to the active flow.
type Input struct {
	Kind       InputKind
	Text       string
	MessageID  int
	Attachment *chat.Attachment
	Action     chat.Action
}

// TextInput wraps a plain text message.
func TextInput(text string, messageID int) Input {
	return Input{Kind: InputText, Text: text, MessageID: messageID}
}

// MediaInput wraps an uploaded file.
func MediaInput(a *chat.Attachment) Input {
	return Input{Kind: InputMedia, Attachment: a}
}

// ButtonInput wraps a decoded inline button.
func ButtonInput(a chat.Action) Input {
	return Input{Kind: InputButton, Action: a}
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithProofLimits overrides the proof file ceilings.
func WithProofLimits(maxFiles int, maxBytes int64) Option {
	return func(e *Engine) {
		e.maxFiles = maxFiles
		e.maxBytes = maxBytes
	}
}

// Engine holds per-chat flow state. Callers serialize inputs per chat; the
// engine itself is safe across chats.
type Engine struct {
	gw     backend.Gateway
	auth   Authenticator
	out    chat.Messenger
	logger *slog.Logger

	maxFiles int
	maxBytes int64

	starts map[Flow]startFunc
	steps  map[stepKey]step

	mu     sync.Mutex
	states map[int64]*State
}

// NewEngine creates an engine.
func NewEngine(gw backend.Gateway, auth Authenticator, out chat.Messenger, opts ...Option) *Engine {
	e := &Engine{
		gw:       gw,
		auth:     auth,
		out:      out,
		logger:   slog.Default(),
		maxFiles: DefaultMaxProofFiles,
		maxBytes: DefaultMaxProofBytes,
		states:   make(map[int64]*State),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.starts = startTable()
	e.steps = stepTable()
	return e
}

// Start begins the flow identified by data, abandoning any prior flow of
// the chat.
func (e *Engine) Start(ctx context.Context, t Turn, data Data) error {
	start, ok := e.starts[data.flow()]
	if !ok {
		return fmt.Errorf("conversation: no start for flow %s", data.flow())
	}
	e.Reset(t.ChatID)

	next, err := start(e, ctx, t, data)
	if err != nil {
		e.Reset(t.ChatID)
		return err
	}
	e.set(t.ChatID, next)
	if next != nil {
		e.logger.Debug("Flow started", "chat_id", t.ChatID, "flow", next.Flow.String(), "step", next.Step)
	}
	return nil
}

// Advance offers in to the active flow. handled is false when the chat
// has no active flow, or when in is a button that belongs to no step of
// it; the caller then treats the input as stale or as a command.
func (e *Engine) Advance(ctx context.Context, t Turn, in Input) (handled bool, err error) {
	st := e.get(t.ChatID)
	if st == nil {
		return false, nil
	}
	s, ok := e.steps[stepKey{st.Flow, st.Step}]
	if !ok {
		e.logger.Error("No handler for step", "chat_id", t.ChatID, "flow", st.Flow.String(), "step", st.Step)
		e.Reset(t.ChatID)
		return true, nil
	}

	if in.Kind == InputButton && !s.acceptsButton(in.Action.Name) {
		return false, nil
	}
	if in.Kind&s.accepts == 0 {
		return true, s.prompt(e, ctx, t, st)
	}

	next, err := s.handle(e, ctx, t, st, in)
	if err != nil {
		e.Reset(t.ChatID)
		return true, err
	}
	e.set(t.ChatID, next)
	return true, nil
}

// Cancel abandons the active flow and confirms to the user. It reports
// whether there was anything to cancel.
func (e *Engine) Cancel(ctx context.Context, t Turn) (bool, error) {
	if e.get(t.ChatID) == nil {
		return false, nil
	}
	e.Reset(t.ChatID)
	return true, e.finish(ctx, t, render.Cancelled)
}

// CancelFlow is Cancel restricted to one flow, used by cancel buttons so
// a stale button cannot abort a newer flow.
func (e *Engine) CancelFlow(ctx context.Context, t Turn, f Flow) (bool, error) {
	st := e.get(t.ChatID)
	if st == nil || st.Flow != f {
		return false, nil
	}
	return e.Cancel(ctx, t)
}

// Reset drops the chat's state without notifying the user.
func (e *Engine) Reset(chatID int64) {
	e.mu.Lock()
	delete(e.states, chatID)
	e.mu.Unlock()
}

// Active returns a copy of the chat's state, or nil.
func (e *Engine) Active(chatID int64) *State {
	st := e.get(chatID)
	if st == nil {
		return nil
	}
	cp := *st
	return &cp
}

func (e *Engine) get(chatID int64) *State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.states[chatID]
}

func (e *Engine) set(chatID int64, st *State) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if st == nil {
		delete(e.states, chatID)
		return
	}
	e.states[chatID] = st
}

func (e *Engine) send(ctx context.Context, t Turn, msg chat.Message) error {
	if _, err := e.out.Send(ctx, t.ChatID, msg); err != nil {
		return fmt.Errorf("send to chat %d: %w", t.ChatID, err)
	}
	return nil
}

func (e *Engine) say(ctx context.Context, t Turn, text string, kb chat.Keyboard) error {
	return e.send(ctx, t, chat.Message{Text: text, Inline: kb})
}

// finish sends a flow's closing message with the main menu restored.
func (e *Engine) finish(ctx context.Context, t Turn, text string) error {
	msg := chat.Text(text)
	if t.Session != nil {
		msg = render.WithMenu(msg, t.Session.Role)
	}
	return e.send(ctx, t, msg)
}

// fail reports a backend failure. Expired sessions are returned to the
// caller, everything else is shown to the user and swallowed.
func (e *Engine) fail(ctx context.Context, t Turn, op string, err error) error {
	if errors.Is(err, backend.ErrUnauthorized) {
		return fmt.Errorf("%s: %w", op, err)
	}
	e.logger.Warn("Backend call failed", "chat_id", t.ChatID, "op", op, "error", err)
	text := render.GenericError(backend.MessageOf(err))
	if errors.Is(err, backend.ErrRateLimited) {
		text = render.RateLimited
	}
	return e.finish(ctx, t, text)
}

// allowed checks the role capability and tells the user when it is missing.
func (e *Engine) allowed(ctx context.Context, t Turn, action domain.Action) (bool, error) {
	if t.Session != nil && t.Session.Can(action) {
		return true, nil
	}
	return false, e.send(ctx, t, chat.Text(render.Forbidden))
}
