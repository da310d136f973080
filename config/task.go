package config

// Task types.
const (
	TaskExec      = "exec"
	TaskAnt       = "ant"
	TaskNant      = "nant"
	TaskRake      = "rake"
	TaskFetch     = "fetch"
	TaskPluggable = "pluggable_task"
	// TaskKillAllChildren is the implicit on-cancel behaviour.
	TaskKillAllChildren = "killallchildprocess"
)

// Task is a unit of work within a job.
type Task interface {
	Validatable
	TaskType() string
	Base() *TaskBase
}

// TaskBase holds the attributes every task has.
type TaskBase struct {
	errorHolder
	RunIf []string
	// OnCancel is nil when the default kill-all-children behaviour applies.
	OnCancel Task
}

func (b *TaskBase) Base() *TaskBase { return b }

func walkTask(t Task, visit func(Validatable)) {
	visit(t)
	if oc := t.Base().OnCancel; oc != nil {
		walkTask(oc, visit)
	}
}

type ExecTask struct {
	TaskBase
	Command string
	// Args is the legacy single-string form; Arguments the list form.
	Args       string
	Arguments  []string
	WorkingDir string
}

func (*ExecTask) TaskType() string { return TaskExec }

// BuildTask carries the attributes shared by ant, nant and rake.
type BuildTask struct {
	TaskBase
	WorkingDir string
	BuildFile  string
	Target     string
}

type AntTask struct{ BuildTask }

func (*AntTask) TaskType() string { return TaskAnt }

type RakeTask struct{ BuildTask }

func (*RakeTask) TaskType() string { return TaskRake }

type NantTask struct {
	BuildTask
	NantPath string
}

func (*NantTask) TaskType() string { return TaskNant }

// FetchTask pulls an artifact produced by an upstream job. Source is a
// file when IsSourceAFile is set and a directory otherwise.
type FetchTask struct {
	TaskBase
	Pipeline      CaseInsensitiveString
	Stage         CaseInsensitiveString
	Job           CaseInsensitiveString
	Source        string
	IsSourceAFile bool
	Dest          string
}

func (*FetchTask) TaskType() string { return TaskFetch }

// PluggableTask runs a task plugin with plugin-defined configuration.
type PluggableTask struct {
	TaskBase
	Plugin        PluginConfiguration
	Configuration []*ConfigurationProperty
}

func (*PluggableTask) TaskType() string { return TaskPluggable }

// KillAllChildrenTask is the explicit form of the default on-cancel action.
type KillAllChildrenTask struct{ TaskBase }

func (*KillAllChildrenTask) TaskType() string { return TaskKillAllChildren }
