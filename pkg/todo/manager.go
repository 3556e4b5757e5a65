// Package todo drives a chat user's task list on the external to-do web
// application. Each chat user owns one isolated browser context and page;
// an external account username can be held by at most one chat user at a
// time.
package todo

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/weforks/taskbot/pkg/automation"
	"github.com/weforks/taskbot/pkg/config"
	"github.com/weforks/taskbot/pkg/logger"
)

type Credentials struct {
	Username string
	Password string
}

// Session is one chat user's automation-driven browser tab.
type Session struct {
	UserID        string
	Page          automation.Page
	Authenticated bool
	Credentials   *Credentials
}

// AuthResult is the outcome of a login or registration attempt. Engine
// failures (session lost, startup) travel separately as errors.
type AuthResult struct {
	Success       bool
	Error         string
	AlreadyInUse  bool
	AlreadyExists bool
}

// Manager owns the chat-user-id -> Session map and the username ->
// chat-user-id claim map. All map access goes through its mutex; the claim
// check and insert are a single step, so two users racing for the same
// username cannot both pass.
type Manager struct {
	engine automation.Engine
	cfg    *config.Config

	mu       sync.Mutex
	sessions map[string]*Session
	claims   map[string]string
}

func NewManager(engine automation.Engine, cfg *config.Config) *Manager {
	return &Manager{
		engine:   engine,
		cfg:      cfg,
		sessions: make(map[string]*Session),
		claims:   make(map[string]string),
	}
}

// GetOrCreate returns the user's session, opening a fresh browser context
// and page on first access.
func (m *Manager) GetOrCreate(ctx context.Context, userID string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if session, ok := m.sessions[userID]; ok {
		return session, nil
	}

	page, err := m.engine.NewPage(ctx)
	if err != nil {
		return nil, err
	}

	session := &Session{UserID: userID, Page: page}
	m.sessions[userID] = session
	logger.InfoCF("browser", "Created session", map[string]any{"user_id": userID})
	return session, nil
}

// claim binds username to userID unless another user already holds it.
// Check and insert happen under one lock acquisition.
func (m *Manager) claim(username, userID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if owner, ok := m.claims[username]; ok && owner != userID {
		return false
	}
	m.claims[username] = userID
	return true
}

func (m *Manager) release(username, userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.claims[username] == userID {
		delete(m.claims, username)
	}
}

// Login authenticates the user's session against the external login form.
// The username claim is taken up front and released again on any failure,
// so a second chat user asking for the same account fails immediately
// without touching a page.
func (m *Manager) Login(ctx context.Context, userID, username, password string) (AuthResult, error) {
	if !m.claim(username, userID) {
		logger.WarnCF("browser", "Login rejected, account in use", map[string]any{
			"user_id":  userID,
			"username": username,
		})
		return AuthResult{AlreadyInUse: true, Error: "account is already in use"}, nil
	}

	authenticated := false
	defer func() {
		if !authenticated {
			m.release(username, userID)
		}
	}()

	session, err := m.GetOrCreate(ctx, userID)
	if err != nil {
		return AuthResult{}, err
	}

	page := session.Page
	target := m.cfg.Target
	browser := m.cfg.Browser

	if err := page.Navigate(target.BaseURL); err != nil {
		return AuthResult{}, err
	}
	if err := page.ClickNth(target.TabsSelector, 0); err != nil {
		return AuthResult{}, err
	}
	if err := page.WaitVisible(target.Login.UsernameSelector, browser.LoginFormTimeout()); err != nil {
		return AuthResult{}, err
	}
	if err := page.Fill(target.Login.UsernameSelector, username); err != nil {
		return AuthResult{}, err
	}
	if err := page.Fill(target.Login.PasswordSelector, password); err != nil {
		return AuthResult{}, err
	}
	if err := page.Click(target.Login.SubmitSelector); err != nil {
		return AuthResult{}, err
	}

	time.Sleep(browser.AfterLoginDelay())

	inlineErr, err := page.InlineText(target.ErrorSelector)
	if err != nil {
		return AuthResult{}, err
	}
	if inlineErr != "" {
		logger.WarnCF("browser", "Login failed", map[string]any{
			"user_id": userID,
			"error":   inlineErr,
		})
		return AuthResult{Error: inlineErr}, nil
	}

	// Success is either the URL changing or the task list appearing,
	// whichever comes first.
	err = automation.WaitFirst(
		func() error { return page.WaitURL(target.SuccessURLPattern, browser.PageLoadTimeout()) },
		func() error { return page.WaitVisible(target.Tasks.ListSelector, browser.PageLoadTimeout()) },
	)
	if err != nil {
		if automation.IsTimeout(err) {
			logger.WarnCF("browser", "Login timed out", map[string]any{"user_id": userID})
			return AuthResult{Error: "login failed"}, nil
		}
		return AuthResult{}, err
	}

	m.mu.Lock()
	session.Authenticated = true
	session.Credentials = &Credentials{Username: username, Password: password}
	m.mu.Unlock()

	authenticated = true
	logger.InfoCF("browser", "Login successful", map[string]any{"user_id": userID})
	return AuthResult{Success: true}, nil
}

// Register creates a new external account through the registration tab.
// An inline error containing one of the configured markers is reported as
// "account already exists"; any other inline error is passed through.
func (m *Manager) Register(ctx context.Context, userID, username, password string) (AuthResult, error) {
	if !m.claim(username, userID) {
		logger.WarnCF("browser", "Registration rejected, account in use", map[string]any{
			"user_id":  userID,
			"username": username,
		})
		return AuthResult{AlreadyInUse: true, Error: "account is already in use"}, nil
	}

	authenticated := false
	defer func() {
		if !authenticated {
			m.release(username, userID)
		}
	}()

	session, err := m.GetOrCreate(ctx, userID)
	if err != nil {
		return AuthResult{}, err
	}

	page := session.Page
	target := m.cfg.Target
	browser := m.cfg.Browser

	if err := page.Navigate(target.BaseURL); err != nil {
		return AuthResult{}, err
	}

	time.Sleep(browser.BeforeActionDelay())

	if err := page.ClickNth(target.TabsSelector, 1); err != nil {
		return AuthResult{}, err
	}
	if err := page.WaitVisible(target.Register.UsernameSelector, browser.LoginFormTimeout()); err != nil {
		return AuthResult{}, err
	}
	if err := page.Fill(target.Register.UsernameSelector, username); err != nil {
		return AuthResult{}, err
	}
	if err := page.Fill(target.Register.PasswordSelector, password); err != nil {
		return AuthResult{}, err
	}
	if err := page.Press("Enter"); err != nil {
		return AuthResult{}, err
	}

	time.Sleep(browser.AfterLoginDelay())

	inlineErr, err := page.InlineText(target.ErrorSelector)
	if err != nil {
		return AuthResult{}, err
	}
	if inlineErr != "" {
		exists := matchesAny(inlineErr, target.ExistsMarkers)
		logger.WarnCF("browser", "Registration failed", map[string]any{
			"user_id":        userID,
			"error":          inlineErr,
			"already_exists": exists,
		})
		return AuthResult{Error: inlineErr, AlreadyExists: exists}, nil
	}

	m.mu.Lock()
	session.Authenticated = true
	session.Credentials = &Credentials{Username: username, Password: password}
	m.mu.Unlock()

	authenticated = true
	logger.InfoCF("browser", "Registration successful", map[string]any{"user_id": userID})
	return AuthResult{Success: true}, nil
}

// Close releases the user's page and context, drops the identity claim, and
// removes the session entry. Unknown ids are a no-op.
func (m *Manager) Close(userID string) {
	m.mu.Lock()
	session, ok := m.sessions[userID]
	if !ok {
		m.mu.Unlock()
		return
	}
	if session.Credentials != nil {
		if m.claims[session.Credentials.Username] == userID {
			delete(m.claims, session.Credentials.Username)
		}
	}
	delete(m.sessions, userID)
	m.mu.Unlock()

	if session.Page != nil {
		if err := session.Page.Close(); err != nil {
			logger.DebugCF("browser", "Error closing page", map[string]any{
				"user_id": userID,
				"error":   err.Error(),
			})
		}
	}
	logger.InfoCF("browser", "Session closed", map[string]any{"user_id": userID})
}

// CloseAll closes every session best-effort, then shuts the engine down.
// Used at process shutdown; one stuck session must not block the rest.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	for _, id := range ids {
		m.Close(id)
	}

	if err := m.engine.Close(); err != nil {
		logger.WarnCF("browser", "Error shutting down engine", map[string]any{"error": err.Error()})
	}
}

func matchesAny(text string, markers []string) bool {
	lower := strings.ToLower(text)
	for _, marker := range markers {
		if marker != "" && strings.Contains(lower, strings.ToLower(marker)) {
			return true
		}
	}
	return false
}
