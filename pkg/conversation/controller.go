// Package conversation is the per-chat-user prompt sequence: choose an
// action, enter credentials or a task number, confirm. Terminal steps call
// into the session store and task actions, then the state is reset or
// advanced.
package conversation

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/weforks/taskbot/pkg/automation"
	"github.com/weforks/taskbot/pkg/bus"
	"github.com/weforks/taskbot/pkg/logger"
	"github.com/weforks/taskbot/pkg/todo"
)

type Controller struct {
	bus   *bus.MessageBus
	store *todo.Manager

	mu     sync.Mutex
	states map[string]*userState
}

func NewController(messageBus *bus.MessageBus, store *todo.Manager) *Controller {
	return &Controller{
		bus:    messageBus,
		store:  store,
		states: make(map[string]*userState),
	}
}

// Run consumes inbound chat events until the context is cancelled. Events
// are handled sequentially; per-user serialization is delegated to the chat
// transport.
func (c *Controller) Run(ctx context.Context) {
	for {
		msg, ok := c.bus.ConsumeInbound(ctx)
		if !ok {
			if ctx.Err() != nil {
				return
			}
			continue
		}
		c.Handle(ctx, msg)
	}
}

// Handle resolves the current step for the chat user and advances it.
// Every failure is converted to a chat reply plus a state reset; nothing
// escapes to the caller.
func (c *Controller) Handle(ctx context.Context, msg bus.InboundMessage) {
	if msg.CallbackData != "" {
		c.handleButton(ctx, msg)
		return
	}

	content := strings.TrimSpace(msg.Content)
	switch {
	case content == "/start" || strings.HasPrefix(content, "/start "):
		c.handleStart(msg)
	case content == "/stop":
		c.handleStop(msg)
	default:
		c.handleText(ctx, msg, content)
	}
}

func (c *Controller) handleStart(msg bus.InboundMessage) {
	userID := userKey(msg)
	c.store.Close(userID)
	c.setState(userID, &userState{})
	c.reply(msg, msgStart, AuthKeyboard())
}

func (c *Controller) handleStop(msg bus.InboundMessage) {
	userID := userKey(msg)
	c.store.Close(userID)
	c.setState(userID, &userState{})
	c.reply(msg, msgStopped, nil)
}

func (c *Controller) handleButton(ctx context.Context, msg bus.InboundMessage) {
	userID := userKey(msg)
	state := c.state(userID)

	switch msg.CallbackData {
	case ActionLogin:
		c.setState(userID, &userState{Action: ActionLogin, Step: stepUsername})
		c.reply(msg, msgUsernamePrompt, backKeyboard())

	case ActionRegister:
		c.setState(userID, &userState{Action: ActionRegister, Step: stepUsername})
		c.reply(msg, msgRegisterUsernamePrompt, backKeyboard())

	case ActionBackToAuth:
		c.setState(userID, &userState{})
		c.reply(msg, msgStart, AuthKeyboard())

	case ActionAddTask:
		if !state.Authenticated {
			c.reply(msg, msgChooseAction, AuthKeyboard())
			return
		}
		state.Action = ActionAddTask
		state.Step = stepIdle
		c.setState(userID, state)
		c.reply(msg, msgAddPrompt, nil)

	case ActionShowTasks:
		c.loadAndShowTasks(ctx, msg, "")

	case ActionDeleteTask, ActionRenameTask, ActionCompleteTask:
		c.loadAndShowTasks(ctx, msg, msg.CallbackData)

	default:
		logger.DebugCF("conversation", "Unknown button token", map[string]any{
			"data": msg.CallbackData,
		})
		c.reply(msg, msgChooseAction, c.keyboardFor(state))
	}
}

// loadAndShowTasks runs the list query, renders a numbered snapshot, and —
// unless this is the pure show action — advances the user to task selection
// against that snapshot.
func (c *Controller) loadAndShowTasks(ctx context.Context, msg bus.InboundMessage, action string) {
	userID := userKey(msg)
	state := c.state(userID)

	if !state.Authenticated {
		c.reply(msg, msgChooseAction, AuthKeyboard())
		return
	}

	c.reply(msg, msgLoading, nil)

	tasks, err := c.store.Tasks(ctx, userID)
	if err != nil {
		c.automationFailure(msg, state, err)
		return
	}

	if len(tasks) == 0 {
		state.Action = ""
		state.Step = stepIdle
		c.setState(userID, state)
		c.reply(msg, msgEmptyList, MainKeyboard())
		return
	}

	numbered := make([]string, len(tasks))
	for i, task := range tasks {
		numbered[i] = fmt.Sprintf("%d. %s", i+1, task)
	}
	listing := strings.Join(numbered, "\n")

	if action == "" {
		state.Action = ""
		state.Step = stepIdle
		c.setState(userID, state)
		c.reply(msg, fmt.Sprintf(msgTaskList, listing), MainKeyboard())
		return
	}

	state.Action = action
	state.Step = stepSelectTask
	state.Tasks = tasks
	c.setState(userID, state)
	c.reply(msg, fmt.Sprintf(msgTaskSelect, listing), nil)
}

func (c *Controller) handleText(ctx context.Context, msg bus.InboundMessage, content string) {
	userID := userKey(msg)
	state := c.state(userID)

	switch state.Step {
	case stepUsername:
		if state.Action == ActionLogin || state.Action == ActionRegister {
			state.Username = content
			state.Step = stepPassword
			c.setState(userID, state)
			if state.Action == ActionRegister {
				c.reply(msg, msgRegisterPasswordPrompt, nil)
			} else {
				c.reply(msg, msgPasswordPrompt, nil)
			}
			return
		}

	case stepPassword:
		c.authenticate(ctx, msg, state, content)
		return

	case stepSelectTask:
		c.selectTask(ctx, msg, state, content)
		return

	case stepNewText:
		c.executeRename(ctx, msg, state, content)
		return
	}

	if !state.Authenticated {
		c.reply(msg, msgChooseAction, AuthKeyboard())
		return
	}

	if state.Action == ActionAddTask {
		c.executeAdd(ctx, msg, state, content)
		return
	}

	c.reply(msg, msgChooseAction, MainKeyboard())
}

func (c *Controller) authenticate(ctx context.Context, msg bus.InboundMessage, state *userState, password string) {
	userID := userKey(msg)
	username := state.Username

	if username == "" {
		c.setState(userID, &userState{})
		c.reply(msg, msgSessionErr, AuthKeyboard())
		return
	}

	c.reply(msg, msgWorking, nil)

	var (
		result todo.AuthResult
		err    error
	)
	register := state.Action == ActionRegister
	if register {
		result, err = c.store.Register(ctx, userID, username, password)
	} else {
		result, err = c.store.Login(ctx, userID, username, password)
	}

	if err != nil {
		// Authentication never survives an engine failure.
		c.setState(userID, &userState{})
		if automation.IsSessionLost(err) {
			c.store.Close(userID)
			c.reply(msg, msgSessionLost, AuthKeyboard())
		} else {
			c.reply(msg, fmt.Sprintf(msgError, err.Error()), AuthKeyboard())
		}
		return
	}

	if result.Success {
		c.setState(userID, &userState{Authenticated: true})
		if register {
			c.reply(msg, msgRegisterSuccess, MainKeyboard())
		} else {
			c.reply(msg, msgLoginSuccess, MainKeyboard())
		}
		return
	}

	c.setState(userID, &userState{})
	switch {
	case result.AlreadyInUse:
		c.reply(msg, msgAccountInUse, AuthKeyboard())
	case register && result.AlreadyExists:
		c.reply(msg, msgAccountExists, AuthKeyboard())
	case register:
		reason := result.Error
		if reason == "" {
			reason = "unknown error"
		}
		c.reply(msg, fmt.Sprintf(msgRegisterFailed, reason), AuthKeyboard())
	default:
		c.reply(msg, msgLoginFailed, AuthKeyboard())
	}
}

// selectTask parses a 1-based task number against the cached snapshot. A
// non-numeric or out-of-range entry reprompts without advancing state.
func (c *Controller) selectTask(ctx context.Context, msg bus.InboundMessage, state *userState, content string) {
	userID := userKey(msg)

	n, err := strconv.Atoi(content)
	index := n - 1
	if err != nil || index < 0 || index >= len(state.Tasks) {
		c.reply(msg, msgInvalidNum, nil)
		return
	}

	if state.Action == ActionRenameTask {
		state.Selected = index
		state.Step = stepNewText
		c.setState(userID, state)
		c.reply(msg, msgRenamePrompt, nil)
		return
	}

	c.reply(msg, msgWorking, nil)

	switch state.Action {
	case ActionDeleteTask:
		err = c.store.DeleteTask(ctx, userID, index)
	case ActionCompleteTask:
		err = c.store.CompleteTask(ctx, userID, index)
	}

	c.finishAction(msg, state, err)
}

func (c *Controller) executeRename(ctx context.Context, msg bus.InboundMessage, state *userState, newText string) {
	userID := userKey(msg)
	c.reply(msg, msgWorking, nil)
	err := c.store.RenameTask(ctx, userID, state.Selected, newText)
	c.finishAction(msg, state, err)
}

func (c *Controller) executeAdd(ctx context.Context, msg bus.InboundMessage, state *userState, text string) {
	userID := userKey(msg)
	c.reply(msg, msgWorking, nil)
	err := c.store.AddTask(ctx, userID, text)
	c.finishAction(msg, state, err)
}

// finishAction resets the pending action regardless of outcome; only a lost
// session also clears authentication.
func (c *Controller) finishAction(msg bus.InboundMessage, state *userState, err error) {
	userID := userKey(msg)

	if err != nil {
		c.automationFailure(msg, state, err)
		return
	}

	c.setState(userID, &userState{Authenticated: true})
	c.reply(msg, msgDone, MainKeyboard())
}

// automationFailure applies the error taxonomy: a lost session forces the
// user back to the unauthenticated state; anything else is reported verbatim
// with authentication preserved and the pending action cleared.
func (c *Controller) automationFailure(msg bus.InboundMessage, state *userState, err error) {
	userID := userKey(msg)

	if automation.IsSessionLost(err) {
		logger.WarnCF("conversation", "Session lost", map[string]any{"user_id": userID})
		c.store.Close(userID)
		c.setState(userID, &userState{})
		c.reply(msg, msgSessionLost, AuthKeyboard())
		return
	}

	logger.ErrorCF("conversation", "Automation error", map[string]any{
		"user_id": userID,
		"error":   err.Error(),
	})
	c.setState(userID, &userState{Authenticated: state.Authenticated})
	c.reply(msg, fmt.Sprintf(msgError, err.Error()), c.keyboardFor(state))
}

func (c *Controller) keyboardFor(state *userState) [][]bus.Button {
	if state.Authenticated {
		return MainKeyboard()
	}
	return AuthKeyboard()
}

func (c *Controller) reply(msg bus.InboundMessage, text string, buttons [][]bus.Button) {
	c.bus.PublishOutbound(bus.OutboundMessage{
		Channel: msg.Channel,
		ChatID:  msg.ChatID,
		Content: text,
		Buttons: buttons,
	})
}

// state returns a copy of the user's state, creating the default on first
// contact. Mutations are written back through setState.
func (c *Controller) state(userID string) *userState {
	c.mu.Lock()
	defer c.mu.Unlock()

	stored, ok := c.states[userID]
	if !ok {
		stored = &userState{}
		c.states[userID] = stored
	}
	clone := *stored
	clone.Tasks = stored.Tasks
	return &clone
}

func (c *Controller) setState(userID string, state *userState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.states[userID] = state
}

// userKey resolves the chat-user id: the numeric transport user id when the
// channel provides one, the raw sender id otherwise.
func userKey(msg bus.InboundMessage) string {
	if id := msg.Metadata["user_id"]; id != "" {
		return id
	}
	return msg.SenderID
}
