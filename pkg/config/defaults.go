package config

// DefaultConfig mirrors the deployed to-do application at todo.weforks.org.
// Every value can be overridden by the config file or environment.
func DefaultConfig() *Config {
	return &Config{
		Browser: BrowserConfig{
			Headless:            true,
			LoginFormTimeoutMS:  10000,
			PageLoadTimeoutMS:   10000,
			TaskListTimeoutMS:   10000,
			AfterLoginDelayMS:   500,
			BeforeActionDelayMS: 500,
			AfterActionDelayMS:  300,
		},
		Target: TargetConfig{
			BaseURL:           "https://todo.weforks.org/",
			SuccessURLPattern: `/dashboard|/todos|/home`,
			TabsSelector:      ".auth-tab",
			ErrorSelector:     ".error-message",
			Login: LoginSelectors{
				UsernameSelector: `input[placeholder="Enter username"]`,
				PasswordSelector: `input[placeholder="Enter password"]`,
				SubmitSelector:   `button[type="submit"]`,
			},
			Register: RegisterSelectors{
				UsernameSelector: `#register-username`,
				PasswordSelector: `#register-password`,
			},
			Tasks: TaskSelectors{
				ListSelector:      "#tasks-list",
				ItemSelector:      "#tasks-list > li > span.task-text",
				RowSelector:       "#tasks-list > li",
				InputSelector:     "#task-input",
				AddButtonSelector: "#add-btn > span.btn-icon",
				DeleteSelector:    ".delete-btn",
				CheckboxSelector:  `input[type="checkbox"]`,
				TextSelector:      "span.task-text",
			},
			ExistsMarkers: []string{"already", "exists", "taken"},
		},
	}
}
