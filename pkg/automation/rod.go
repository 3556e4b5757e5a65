package automation

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

const (
	// lookupTimeout bounds implicit element lookups (Fill, Click, ...).
	// Explicit waits carry their own timeout.
	lookupTimeout   = 10 * time.Second
	urlPollInterval = 100 * time.Millisecond
)

// RodEngine drives a single Chromium process through go-rod. Each NewPage
// call opens its own incognito browser context, so cookies and storage never
// leak between chat users.
type RodEngine struct {
	browser  *rod.Browser
	launcher *launcher.Launcher
}

func NewRodEngine(headless bool) (*RodEngine, error) {
	l := launcher.New().Headless(headless)

	controlURL, err := l.Launch()
	if err != nil {
		return nil, &Error{Kind: KindFatal, Op: "launch", Err: err}
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		l.Cleanup()
		return nil, &Error{Kind: KindFatal, Op: "connect", Err: err}
	}

	return &RodEngine{browser: browser, launcher: l}, nil
}

func (e *RodEngine) NewPage(ctx context.Context) (Page, error) {
	incognito, err := e.browser.Incognito()
	if err != nil {
		return nil, classify("new_context", err)
	}

	page, err := incognito.Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, classify("new_page", err)
	}

	return &rodPage{browser: incognito, page: page.Context(ctx)}, nil
}

func (e *RodEngine) Close() error {
	err := e.browser.Close()
	e.launcher.Cleanup()
	if err != nil {
		return classify("close_engine", err)
	}
	return nil
}

type rodPage struct {
	browser *rod.Browser // incognito context owning the page
	page    *rod.Page
}

func (p *rodPage) element(op, sel string, timeout time.Duration) (*rod.Element, error) {
	el, err := p.page.Timeout(timeout).Element(sel)
	if err != nil {
		return nil, classify(op, err)
	}
	return el, nil
}

func (p *rodPage) Navigate(url string) error {
	if err := p.page.Navigate(url); err != nil {
		return classify("navigate", err)
	}
	if err := p.page.WaitLoad(); err != nil {
		return classify("navigate", err)
	}
	return nil
}

func (p *rodPage) WaitVisible(sel string, timeout time.Duration) error {
	el, err := p.element("wait_visible", sel, timeout)
	if err != nil {
		return err
	}
	if err := el.WaitVisible(); err != nil {
		return classify("wait_visible", err)
	}
	return nil
}

func (p *rodPage) WaitURL(pattern string, timeout time.Duration) error {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return &Error{Kind: KindOther, Op: "wait_url", Err: err}
	}

	deadline := time.Now().Add(timeout)
	for {
		info, err := p.page.Info()
		if err != nil {
			return classify("wait_url", err)
		}
		if re.MatchString(info.URL) {
			return nil
		}
		if time.Now().After(deadline) {
			return &Error{Kind: KindTimeout, Op: "wait_url", Err: context.DeadlineExceeded}
		}
		time.Sleep(urlPollInterval)
	}
}

func (p *rodPage) Fill(sel, text string) error {
	el, err := p.element("fill", sel, lookupTimeout)
	if err != nil {
		return err
	}
	if err := el.SelectAllText(); err != nil {
		return classify("fill", err)
	}
	if err := el.Input(text); err != nil {
		return classify("fill", err)
	}
	return nil
}

func (p *rodPage) Click(sel string) error {
	el, err := p.element("click", sel, lookupTimeout)
	if err != nil {
		return err
	}
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return classify("click", err)
	}
	return nil
}

func (p *rodPage) ClickNth(sel string, index int) error {
	els, err := p.page.Elements(sel)
	if err != nil {
		return classify("click_nth", err)
	}
	if index < 0 || index >= len(els) {
		return &Error{Kind: KindOther, Op: "click_nth", Err: fmt.Errorf("index %d out of range (%d elements)", index, len(els))}
	}
	if err := els[index].Click(proto.InputMouseButtonLeft, 1); err != nil {
		return classify("click_nth", err)
	}
	return nil
}

func (p *rodPage) ClickChild(rowSel string, index int, childSel string) error {
	child, err := p.child("click_child", rowSel, index, childSel)
	if err != nil {
		return err
	}
	if err := child.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return classify("click_child", err)
	}
	return nil
}

func (p *rodPage) RetypeChild(rowSel string, index int, childSel, text string) error {
	child, err := p.child("retype_child", rowSel, index, childSel)
	if err != nil {
		return err
	}
	if err := child.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return classify("retype_child", err)
	}
	if err := child.SelectAllText(); err != nil {
		return classify("retype_child", err)
	}
	if err := p.page.InsertText(text); err != nil {
		return classify("retype_child", err)
	}
	return p.Press("Enter")
}

func (p *rodPage) child(op, rowSel string, index int, childSel string) (*rod.Element, error) {
	rows, err := p.page.Elements(rowSel)
	if err != nil {
		return nil, classify(op, err)
	}
	if index < 0 || index >= len(rows) {
		return nil, &Error{Kind: KindOther, Op: op, Err: fmt.Errorf("index %d out of range (%d elements)", index, len(rows))}
	}
	child, err := rows[index].Element(childSel)
	if err != nil {
		return nil, classify(op, err)
	}
	return child, nil
}

func (p *rodPage) Texts(sel string) ([]string, error) {
	els, err := p.page.Elements(sel)
	if err != nil {
		return nil, classify("texts", err)
	}

	texts := make([]string, 0, len(els))
	for _, el := range els {
		text, err := el.Text()
		if err != nil {
			return nil, classify("texts", err)
		}
		texts = append(texts, text)
	}
	return texts, nil
}

func (p *rodPage) Count(sel string) (int, error) {
	els, err := p.page.Elements(sel)
	if err != nil {
		return 0, classify("count", err)
	}
	return len(els), nil
}

func (p *rodPage) InlineText(sel string) (string, error) {
	els, err := p.page.Elements(sel)
	if err != nil {
		return "", classify("inline_text", err)
	}
	if len(els) == 0 {
		return "", nil
	}
	text, err := els.First().Text()
	if err != nil {
		return "", classify("inline_text", err)
	}
	return strings.TrimSpace(text), nil
}

func (p *rodPage) Press(key string) error {
	var k input.Key
	switch key {
	case "Enter":
		k = input.Enter
	default:
		return &Error{Kind: KindOther, Op: "press", Err: fmt.Errorf("unsupported key %q", key)}
	}
	if err := p.page.Keyboard.Press(k); err != nil {
		return classify("press", err)
	}
	return nil
}

func (p *rodPage) Close() error {
	pageErr := p.page.Close()

	// Dispose the whole incognito context, not just the tab.
	disposeErr := proto.TargetDisposeBrowserContext{
		BrowserContextID: p.browser.BrowserContextID,
	}.Call(p.browser)

	if pageErr != nil {
		return classify("close_page", pageErr)
	}
	if disposeErr != nil {
		return classify("close_context", disposeErr)
	}
	return nil
}
