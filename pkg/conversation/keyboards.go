package conversation

import "github.com/weforks/taskbot/pkg/bus"

const (
	msgStart = "Choose an action:\nIf you already have an account press Login, otherwise press Register."

	msgUsernamePrompt         = "Enter your username:"
	msgPasswordPrompt         = "Enter your password:"
	msgRegisterUsernamePrompt = "Choose a username:"
	msgRegisterPasswordPrompt = "Choose a password:"

	msgLoginSuccess    = "Logged in. You can manage your tasks now."
	msgLoginFailed     = "Wrong username or password. Try again."
	msgRegisterSuccess = "Registration successful. You can manage your tasks now."
	msgRegisterFailed  = "Registration failed: %s"
	msgAccountInUse    = "This account is already in use by another user."
	msgAccountExists   = "An account with this name already exists. Try another name or log in."

	msgChooseAction = "Choose an action from the menu first:"
	msgAddPrompt    = "Enter the text of the new task:"
	msgRenamePrompt = "Enter the new task text:"
	msgLoading      = "Loading task list..."
	msgWorking      = "Working..."
	msgTaskSelect   = "Your tasks:\n\n%s\n\nEnter a number:"
	msgTaskList     = "Your tasks:\n\n%s"
	msgEmptyList    = "The task list is empty."
	msgInvalidNum   = "Invalid number, try again:"
	msgDone         = "Done!"
	msgError        = "Error: %s"
	msgSessionLost  = "The browser session was lost. Please log in again."
	msgSessionErr   = "Session error. Start over with /start."
	msgStopped      = "Session closed."

	// RestartMessage is sent to admin chat ids when the process comes up.
	RestartMessage = "The bot was restarted. Choose an action:"
)

// AuthKeyboard is shown to unauthenticated users.
func AuthKeyboard() [][]bus.Button {
	return [][]bus.Button{
		{
			{Text: "🔑 Login", Data: ActionLogin},
			{Text: "📝 Register", Data: ActionRegister},
		},
	}
}

// MainKeyboard is shown once the user is authenticated.
func MainKeyboard() [][]bus.Button {
	return [][]bus.Button{
		{
			{Text: "📝 Add task", Data: ActionAddTask},
			{Text: "🗑 Delete task", Data: ActionDeleteTask},
		},
		{
			{Text: "✏️ Rename task", Data: ActionRenameTask},
			{Text: "✅ Complete task", Data: ActionCompleteTask},
		},
		{
			{Text: "📋 Show tasks", Data: ActionShowTasks},
		},
	}
}

func backKeyboard() [][]bus.Button {
	return [][]bus.Button{
		{
			{Text: "🔙 Back", Data: ActionBackToAuth},
		},
	}
}
