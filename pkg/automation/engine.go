// Package automation is the browser-automation boundary. The rest of the
// program depends only on the Engine and Page interfaces and on the typed
// error kinds; any engine offering this capability set is substitutable.
package automation

import (
	"context"
	"time"
)

// Engine is a single long-lived browser process. It is created once at
// startup and injected into the session store; Close shuts it down together
// with every context it spawned.
type Engine interface {
	// NewPage opens a fresh isolated browsing context with one page in it.
	NewPage(ctx context.Context) (Page, error)
	Close() error
}

// Page is one isolated tab. Selectors are CSS. Methods that locate an
// element wait briefly for it to exist; WaitVisible and WaitURL take an
// explicit bound.
type Page interface {
	Navigate(url string) error
	WaitVisible(sel string, timeout time.Duration) error
	// WaitURL blocks until the page URL matches the regexp pattern.
	WaitURL(pattern string, timeout time.Duration) error
	// Fill replaces the current value of the matched input with text.
	Fill(sel, text string) error
	Click(sel string) error
	ClickNth(sel string, index int) error
	// ClickChild clicks childSel inside the index-th element matched by
	// rowSel.
	ClickChild(rowSel string, index int, childSel string) error
	// RetypeChild clicks childSel inside the index-th row, selects all of
	// its text, types the replacement, and confirms with Enter. This is the
	// click-to-edit rename gesture.
	RetypeChild(rowSel string, index int, childSel, text string) error
	// Texts returns the text content of every element matching sel.
	Texts(sel string) ([]string, error)
	Count(sel string) (int, error)
	// InlineText returns the trimmed text of sel, or "" when the element is
	// absent. It never waits; it is meant for optional error banners.
	InlineText(sel string) (string, error)
	Press(key string) error
	Close() error
}

// WaitFirst runs the given waits concurrently and returns nil as soon as one
// of them succeeds. When all fail it returns the first error received.
func WaitFirst(waits ...func() error) error {
	if len(waits) == 0 {
		return nil
	}

	results := make(chan error, len(waits))
	for _, w := range waits {
		go func(w func() error) {
			results <- w()
		}(w)
	}

	var firstErr error
	for range waits {
		err := <-results
		if err == nil {
			return nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
