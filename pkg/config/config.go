package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
)

// FlexibleStringSlice is a []string that also accepts JSON numbers,
// so allow_from can contain both "123" and 123.
type FlexibleStringSlice []string

func (f *FlexibleStringSlice) UnmarshalJSON(data []byte) error {
	// Try []string first
	var ss []string
	if err := json.Unmarshal(data, &ss); err == nil {
		*f = ss
		return nil
	}

	// Try []interface{} to handle mixed types
	var raw []interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	result := make([]string, 0, len(raw))
	for _, v := range raw {
		switch val := v.(type) {
		case string:
			result = append(result, val)
		case float64:
			result = append(result, fmt.Sprintf("%.0f", val))
		default:
			result = append(result, fmt.Sprintf("%v", val))
		}
	}
	*f = result
	return nil
}

type Config struct {
	Telegram TelegramConfig `json:"telegram"`
	Browser  BrowserConfig  `json:"browser"`
	Target   TargetConfig   `json:"target"`
	LogFile  string         `json:"log_file" env:"TASKBOT_LOG_FILE"`
}

type TelegramConfig struct {
	Token     string              `json:"token" env:"TASKBOT_TELEGRAM_TOKEN"`
	Proxy     string              `json:"proxy" env:"TASKBOT_TELEGRAM_PROXY"`
	AllowFrom FlexibleStringSlice `json:"allow_from" env:"TASKBOT_TELEGRAM_ALLOW_FROM"`
	AdminIDs  FlexibleStringSlice `json:"admin_ids" env:"TASKBOT_TELEGRAM_ADMIN_IDS"`
}

// BrowserConfig holds engine options plus the fixed waits the task actions
// use. Timeouts bound how long an automation wait may block; delays are
// settle heuristics around interactions, not correctness mechanisms.
type BrowserConfig struct {
	Headless bool `json:"headless" env:"TASKBOT_BROWSER_HEADLESS"`

	LoginFormTimeoutMS int `json:"login_form_timeout_ms" env:"TASKBOT_BROWSER_LOGIN_FORM_TIMEOUT_MS"`
	PageLoadTimeoutMS  int `json:"page_load_timeout_ms" env:"TASKBOT_BROWSER_PAGE_LOAD_TIMEOUT_MS"`
	TaskListTimeoutMS  int `json:"task_list_timeout_ms" env:"TASKBOT_BROWSER_TASK_LIST_TIMEOUT_MS"`

	AfterLoginDelayMS   int `json:"after_login_delay_ms" env:"TASKBOT_BROWSER_AFTER_LOGIN_DELAY_MS"`
	BeforeActionDelayMS int `json:"before_action_delay_ms" env:"TASKBOT_BROWSER_BEFORE_ACTION_DELAY_MS"`
	AfterActionDelayMS  int `json:"after_action_delay_ms" env:"TASKBOT_BROWSER_AFTER_ACTION_DELAY_MS"`
}

func (b BrowserConfig) LoginFormTimeout() time.Duration {
	return time.Duration(b.LoginFormTimeoutMS) * time.Millisecond
}

func (b BrowserConfig) PageLoadTimeout() time.Duration {
	return time.Duration(b.PageLoadTimeoutMS) * time.Millisecond
}

func (b BrowserConfig) TaskListTimeout() time.Duration {
	return time.Duration(b.TaskListTimeoutMS) * time.Millisecond
}

func (b BrowserConfig) AfterLoginDelay() time.Duration {
	return time.Duration(b.AfterLoginDelayMS) * time.Millisecond
}

func (b BrowserConfig) BeforeActionDelay() time.Duration {
	return time.Duration(b.BeforeActionDelayMS) * time.Millisecond
}

func (b BrowserConfig) AfterActionDelay() time.Duration {
	return time.Duration(b.AfterActionDelayMS) * time.Millisecond
}

// TargetConfig describes the external to-do application: URLs, form
// selectors, and the markers used to classify its inline error messages.
// The DOM contract is assumed, not controlled, so all of it is data.
type TargetConfig struct {
	BaseURL           string `json:"base_url" env:"TASKBOT_TARGET_BASE_URL"`
	SuccessURLPattern string `json:"success_url_pattern" env:"TASKBOT_TARGET_SUCCESS_URL_PATTERN"`

	TabsSelector  string `json:"tabs_selector"`
	ErrorSelector string `json:"error_selector"`

	Login    LoginSelectors    `json:"login"`
	Register RegisterSelectors `json:"register"`
	Tasks    TaskSelectors     `json:"tasks"`

	ExistsMarkers []string `json:"exists_markers"`
}

type LoginSelectors struct {
	UsernameSelector string `json:"username_selector"`
	PasswordSelector string `json:"password_selector"`
	SubmitSelector   string `json:"submit_selector"`
}

type RegisterSelectors struct {
	UsernameSelector string `json:"username_selector"`
	PasswordSelector string `json:"password_selector"`
}

type TaskSelectors struct {
	ListSelector      string `json:"list_selector"`
	ItemSelector      string `json:"item_selector"`
	RowSelector       string `json:"row_selector"`
	InputSelector     string `json:"input_selector"`
	AddButtonSelector string `json:"add_button_selector"`
	DeleteSelector    string `json:"delete_selector"`
	CheckboxSelector  string `json:"checkbox_selector"`
	TextSelector      string `json:"text_selector"`
}

// LoadConfig reads the optional JSON config file, then applies environment
// variable overrides on top. A missing file is not an error; defaults cover
// everything except the bot token.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("read config %s: %w", path, err)
			}
		} else if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	if cfg.Telegram.Token == "" {
		return nil, fmt.Errorf("telegram token is required (TASKBOT_TELEGRAM_TOKEN)")
	}

	return cfg, nil
}
