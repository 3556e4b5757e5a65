package todo

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/weforks/taskbot/pkg/automation"
	"github.com/weforks/taskbot/pkg/config"
)

// fakeEngine models the external to-do application: a shared account
// database and per-account task lists, driven through fake pages that
// interpret the default selectors.
type fakeEngine struct {
	mu       sync.Mutex
	target   config.TargetConfig
	accounts map[string]string
	tasks    map[string][]string
	pages    []*fakePage
	closed   bool
	pageErr  error
}

func newFakeEngine(target config.TargetConfig) *fakeEngine {
	return &fakeEngine{
		target:   target,
		accounts: make(map[string]string),
		tasks:    make(map[string][]string),
	}
}

func (e *fakeEngine) NewPage(ctx context.Context) (automation.Page, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.pageErr != nil {
		return nil, e.pageErr
	}
	page := &fakePage{engine: e}
	e.pages = append(e.pages, page)
	return page, nil
}

func (e *fakeEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return nil
}

type fakePage struct {
	engine       *fakeEngine
	username     string
	password     string
	taskInput    string
	registerMode bool
	user         string
	inline       string
	closed       bool
	lost         bool
}

func sessionLostErr(op string) error {
	return &automation.Error{Kind: automation.KindSessionLost, Op: op, Err: errors.New("target page closed")}
}

func timeoutErr(op string) error {
	return &automation.Error{Kind: automation.KindTimeout, Op: op, Err: context.DeadlineExceeded}
}

func (p *fakePage) check(op string) error {
	if p.lost || p.closed {
		return sessionLostErr(op)
	}
	return nil
}

func (p *fakePage) Navigate(url string) error {
	if err := p.check("navigate"); err != nil {
		return err
	}
	p.inline = ""
	return nil
}

func (p *fakePage) WaitVisible(sel string, timeout time.Duration) error {
	if err := p.check("wait_visible"); err != nil {
		return err
	}
	if sel == p.engine.target.Tasks.ListSelector && p.user == "" {
		return timeoutErr("wait_visible")
	}
	return nil
}

func (p *fakePage) WaitURL(pattern string, timeout time.Duration) error {
	if err := p.check("wait_url"); err != nil {
		return err
	}
	if p.user == "" {
		return timeoutErr("wait_url")
	}
	return nil
}

func (p *fakePage) Fill(sel, text string) error {
	if err := p.check("fill"); err != nil {
		return err
	}
	target := p.engine.target
	switch sel {
	case target.Login.UsernameSelector, target.Register.UsernameSelector:
		p.username = text
	case target.Login.PasswordSelector, target.Register.PasswordSelector:
		p.password = text
	case target.Tasks.InputSelector:
		p.taskInput = text
	}
	return nil
}

func (p *fakePage) Click(sel string) error {
	if err := p.check("click"); err != nil {
		return err
	}
	target := p.engine.target
	switch sel {
	case target.Login.SubmitSelector:
		p.attemptLogin()
	case target.Tasks.AddButtonSelector:
		p.appendTask()
	}
	return nil
}

func (p *fakePage) ClickNth(sel string, index int) error {
	if err := p.check("click_nth"); err != nil {
		return err
	}
	if sel == p.engine.target.TabsSelector {
		p.registerMode = index == 1
	}
	return nil
}

func (p *fakePage) ClickChild(rowSel string, index int, childSel string) error {
	if err := p.check("click_child"); err != nil {
		return err
	}
	e := p.engine
	e.mu.Lock()
	defer e.mu.Unlock()
	tasks := e.tasks[p.user]
	if index < 0 || index >= len(tasks) {
		return &automation.Error{Kind: automation.KindOther, Op: "click_child", Err: errors.New("index out of range")}
	}
	if childSel == e.target.Tasks.DeleteSelector {
		e.tasks[p.user] = append(tasks[:index:index], tasks[index+1:]...)
	}
	if childSel == e.target.Tasks.CheckboxSelector {
		e.tasks[p.user][index] = "done:" + tasks[index]
	}
	return nil
}

func (p *fakePage) RetypeChild(rowSel string, index int, childSel, text string) error {
	if err := p.check("retype_child"); err != nil {
		return err
	}
	e := p.engine
	e.mu.Lock()
	defer e.mu.Unlock()
	tasks := e.tasks[p.user]
	if index < 0 || index >= len(tasks) {
		return &automation.Error{Kind: automation.KindOther, Op: "retype_child", Err: errors.New("index out of range")}
	}
	e.tasks[p.user][index] = text
	return nil
}

func (p *fakePage) Texts(sel string) ([]string, error) {
	if err := p.check("texts"); err != nil {
		return nil, err
	}
	e := p.engine
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.tasks[p.user]...), nil
}

func (p *fakePage) Count(sel string) (int, error) {
	if err := p.check("count"); err != nil {
		return 0, err
	}
	e := p.engine
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.tasks[p.user]), nil
}

func (p *fakePage) InlineText(sel string) (string, error) {
	if err := p.check("inline_text"); err != nil {
		return "", err
	}
	return p.inline, nil
}

func (p *fakePage) Press(key string) error {
	if err := p.check("press"); err != nil {
		return err
	}
	if key == "Enter" && p.registerMode {
		p.attemptRegister()
	}
	return nil
}

func (p *fakePage) Close() error {
	p.closed = true
	return nil
}

func (p *fakePage) attemptLogin() {
	e := p.engine
	e.mu.Lock()
	defer e.mu.Unlock()
	if password, ok := e.accounts[p.username]; ok && password == p.password {
		p.user = p.username
		return
	}
	p.inline = "Invalid username or password"
}

func (p *fakePage) attemptRegister() {
	e := p.engine
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.accounts[p.username]; ok {
		p.inline = "User already exists"
		return
	}
	e.accounts[p.username] = p.password
	p.user = p.username
}

func (p *fakePage) appendTask() {
	e := p.engine
	e.mu.Lock()
	defer e.mu.Unlock()
	e.tasks[p.user] = append(e.tasks[p.user], p.taskInput)
	p.taskInput = ""
}

// testConfig returns the default config with all settle delays zeroed.
func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Browser.AfterLoginDelayMS = 0
	cfg.Browser.BeforeActionDelayMS = 0
	cfg.Browser.AfterActionDelayMS = 0
	cfg.Browser.LoginFormTimeoutMS = 100
	cfg.Browser.PageLoadTimeoutMS = 100
	cfg.Browser.TaskListTimeoutMS = 100
	return cfg
}
