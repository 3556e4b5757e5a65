package conversation

// Action tokens. Button callback data carries exactly these values.
const (
	ActionLogin        = "login"
	ActionRegister     = "register"
	ActionAddTask      = "add_task"
	ActionDeleteTask   = "delete_task"
	ActionRenameTask   = "rename_task"
	ActionCompleteTask = "complete_task"
	ActionShowTasks    = "show_tasks"
	ActionBackToAuth   = "back_to_auth"
)

type step int

const (
	stepIdle step = iota
	stepUsername
	stepPassword
	stepSelectTask
	stepNewText
)

// userState is where one chat user is in the prompt sequence. Step implies
// which fields are populated: stepPassword implies Username, stepSelectTask
// implies a non-empty Tasks snapshot, stepNewText implies Selected.
type userState struct {
	Action        string
	Step          step
	Username      string
	Tasks         []string
	Selected      int
	Authenticated bool
}
