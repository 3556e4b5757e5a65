package todo

import (
	"context"
	"strings"
	"time"

	"github.com/weforks/taskbot/pkg/automation"
	"github.com/weforks/taskbot/pkg/logger"
)

// Task actions share one shape: bounded wait for the required element,
// settle delay, interact, settle delay. The delays compensate for the
// target application's own asynchronous UI updates.

// Tasks returns the currently rendered task texts in display order, trimmed,
// with empty rows dropped. The order is whatever the application renders.
func (m *Manager) Tasks(ctx context.Context, userID string) ([]string, error) {
	page, err := m.page(ctx, userID)
	if err != nil {
		return nil, err
	}

	target := m.cfg.Target
	if err := page.WaitVisible(target.Tasks.ListSelector, m.cfg.Browser.TaskListTimeout()); err != nil {
		return nil, err
	}

	raw, err := page.Texts(target.Tasks.ItemSelector)
	if err != nil {
		return nil, err
	}

	tasks := make([]string, 0, len(raw))
	for _, text := range raw {
		text = strings.TrimSpace(text)
		if text != "" {
			tasks = append(tasks, text)
		}
	}
	return tasks, nil
}

// AddTask fills the task input and triggers the add control. Success is the
// absence of an error.
func (m *Manager) AddTask(ctx context.Context, userID, text string) error {
	page, err := m.page(ctx, userID)
	if err != nil {
		return err
	}

	target := m.cfg.Target
	browser := m.cfg.Browser

	logger.InfoCF("browser", "Adding task", map[string]any{"user_id": userID})

	time.Sleep(browser.BeforeActionDelay())
	if err := page.WaitVisible(target.Tasks.InputSelector, browser.TaskListTimeout()); err != nil {
		return err
	}
	if err := page.Fill(target.Tasks.InputSelector, text); err != nil {
		return err
	}
	if err := page.Click(target.Tasks.AddButtonSelector); err != nil {
		return err
	}
	time.Sleep(browser.AfterActionDelay())
	return nil
}

// DeleteTask clicks the delete control of the index-th row. An out-of-range
// index is logged and ignored.
func (m *Manager) DeleteTask(ctx context.Context, userID string, index int) error {
	return m.rowAction(ctx, userID, index, "delete", func(page automation.Page, rowSel string) error {
		return page.ClickChild(rowSel, index, m.cfg.Target.Tasks.DeleteSelector)
	})
}

// CompleteTask clicks the checkbox of the index-th row. An out-of-range
// index is logged and ignored.
func (m *Manager) CompleteTask(ctx context.Context, userID string, index int) error {
	return m.rowAction(ctx, userID, index, "complete", func(page automation.Page, rowSel string) error {
		return page.ClickChild(rowSel, index, m.cfg.Target.Tasks.CheckboxSelector)
	})
}

// RenameTask replaces the label of the index-th row through the target's
// click-to-edit gesture. An out-of-range index is logged and ignored.
func (m *Manager) RenameTask(ctx context.Context, userID string, index int, newText string) error {
	return m.rowAction(ctx, userID, index, "rename", func(page automation.Page, rowSel string) error {
		return page.RetypeChild(rowSel, index, m.cfg.Target.Tasks.TextSelector, newText)
	})
}

// rowAction re-reads the row count, applies the soft no-op policy for
// out-of-range indexes, and wraps the interaction in the shared settle
// delays.
func (m *Manager) rowAction(ctx context.Context, userID string, index int, name string, interact func(page automation.Page, rowSel string) error) error {
	page, err := m.page(ctx, userID)
	if err != nil {
		return err
	}

	target := m.cfg.Target
	browser := m.cfg.Browser

	time.Sleep(browser.BeforeActionDelay())
	if err := page.WaitVisible(target.Tasks.ListSelector, browser.TaskListTimeout()); err != nil {
		return err
	}

	count, err := page.Count(target.Tasks.RowSelector)
	if err != nil {
		return err
	}
	if index < 0 || index >= count {
		logger.WarnCF("browser", "Task index out of range", map[string]any{
			"user_id": userID,
			"action":  name,
			"index":   index + 1,
			"count":   count,
		})
		return nil
	}

	if err := interact(page, target.Tasks.RowSelector); err != nil {
		return err
	}

	time.Sleep(browser.AfterActionDelay())
	logger.InfoCF("browser", "Task action done", map[string]any{
		"user_id": userID,
		"action":  name,
		"index":   index + 1,
	})
	return nil
}

func (m *Manager) page(ctx context.Context, userID string) (automation.Page, error) {
	session, err := m.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}
	return session.Page, nil
}
