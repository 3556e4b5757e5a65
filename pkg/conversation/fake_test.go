package conversation

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/weforks/taskbot/pkg/automation"
	"github.com/weforks/taskbot/pkg/config"
)

// fakeApp stands in for the external to-do application behind the automation
// engine: shared accounts, per-account task lists, pages interpreting the
// default selectors.
type fakeApp struct {
	mu       sync.Mutex
	target   config.TargetConfig
	accounts map[string]string
	tasks    map[string][]string
	pages    []*fakePage
}

func newFakeApp(target config.TargetConfig) *fakeApp {
	return &fakeApp{
		target:   target,
		accounts: make(map[string]string),
		tasks:    make(map[string][]string),
	}
}

func (a *fakeApp) NewPage(ctx context.Context) (automation.Page, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	page := &fakePage{app: a}
	a.pages = append(a.pages, page)
	return page, nil
}

func (a *fakeApp) Close() error { return nil }

type fakePage struct {
	app          *fakeApp
	username     string
	password     string
	taskInput    string
	registerMode bool
	user         string
	inline       string
	closed       bool
	lost         bool
}

func (p *fakePage) check(op string) error {
	if p.lost || p.closed {
		return &automation.Error{Kind: automation.KindSessionLost, Op: op, Err: errors.New("target page closed")}
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
	if sel == p.app.target.Tasks.ListSelector && p.user == "" {
		return &automation.Error{Kind: automation.KindTimeout, Op: "wait_visible", Err: context.DeadlineExceeded}
	}
	return nil
}

func (p *fakePage) WaitURL(pattern string, timeout time.Duration) error {
	if err := p.check("wait_url"); err != nil {
		return err
	}
	if p.user == "" {
		return &automation.Error{Kind: automation.KindTimeout, Op: "wait_url", Err: context.DeadlineExceeded}
	}
	return nil
}

func (p *fakePage) Fill(sel, text string) error {
	if err := p.check("fill"); err != nil {
		return err
	}
	target := p.app.target
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
	a := p.app
	a.mu.Lock()
	defer a.mu.Unlock()
	switch sel {
	case a.target.Login.SubmitSelector:
		if password, ok := a.accounts[p.username]; ok && password == p.password {
			p.user = p.username
		} else {
			p.inline = "Invalid username or password"
		}
	case a.target.Tasks.AddButtonSelector:
		a.tasks[p.user] = append(a.tasks[p.user], p.taskInput)
		p.taskInput = ""
	}
	return nil
}

func (p *fakePage) ClickNth(sel string, index int) error {
	if err := p.check("click_nth"); err != nil {
		return err
	}
	if sel == p.app.target.TabsSelector {
		p.registerMode = index == 1
	}
	return nil
}

func (p *fakePage) ClickChild(rowSel string, index int, childSel string) error {
	if err := p.check("click_child"); err != nil {
		return err
	}
	a := p.app
	a.mu.Lock()
	defer a.mu.Unlock()
	tasks := a.tasks[p.user]
	if index < 0 || index >= len(tasks) {
		return &automation.Error{Kind: automation.KindOther, Op: "click_child", Err: errors.New("index out of range")}
	}
	if childSel == a.target.Tasks.DeleteSelector {
		a.tasks[p.user] = append(tasks[:index:index], tasks[index+1:]...)
	}
	if childSel == a.target.Tasks.CheckboxSelector {
		a.tasks[p.user][index] = "done:" + tasks[index]
	}
	return nil
}

func (p *fakePage) RetypeChild(rowSel string, index int, childSel, text string) error {
	if err := p.check("retype_child"); err != nil {
		return err
	}
	a := p.app
	a.mu.Lock()
	defer a.mu.Unlock()
	if index < 0 || index >= len(a.tasks[p.user]) {
		return &automation.Error{Kind: automation.KindOther, Op: "retype_child", Err: errors.New("index out of range")}
	}
	a.tasks[p.user][index] = text
	return nil
}

func (p *fakePage) Texts(sel string) ([]string, error) {
	if err := p.check("texts"); err != nil {
		return nil, err
	}
	a := p.app
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.tasks[p.user]...), nil
}

func (p *fakePage) Count(sel string) (int, error) {
	if err := p.check("count"); err != nil {
		return 0, err
	}
	a := p.app
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.tasks[p.user]), nil
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
	if key != "Enter" || !p.registerMode {
		return nil
	}
	a := p.app
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.accounts[p.username]; ok {
		p.inline = "User already exists"
		return nil
	}
	a.accounts[p.username] = p.password
	p.user = p.username
	return nil
}

func (p *fakePage) Close() error {
	p.closed = true
	return nil
}
