package config

// Artifact types.
const (
	ArtifactBuild = "build"
	ArtifactTest  = "test"
)

// JobConfig is one job of a stage.
type JobConfig struct {
	errorHolder
	Name           CaseInsensitiveString
	RunOnAllAgents bool
	// RunInstanceCount and Timeout are kept as entered; empty means unset.
	RunInstanceCount string
	Timeout          string
	Variables        []*EnvironmentVariable
	Resources        []string
	Tasks            []Task
	Tabs             []*Tab
	Artifacts        []*Artifact
	Properties       []*ArtifactProperty
}

// NewJobConfig returns a job with the given tasks.
func NewJobConfig(name string, tasks ...Task) *JobConfig {
	return &JobConfig{Name: CaseInsensitiveString(name), Tasks: tasks}
}

func (j *JobConfig) walk(visit func(Validatable)) {
	visit(j)
	for _, v := range j.Variables {
		visit(v)
	}
	for _, t := range j.Tasks {
		walkTask(t, visit)
	}
	for _, t := range j.Tabs {
		visit(t)
	}
	for _, a := range j.Artifacts {
		visit(a)
	}
	for _, p := range j.Properties {
		visit(p)
	}
}

// Tab is a custom tab shown on the job details page.
type Tab struct {
	errorHolder
	Name string
	Path string
}

// Artifact is a build or test artifact uploaded after the job runs.
type Artifact struct {
	errorHolder
	Type        string
	Source      string
	Destination string
}

// ArtifactProperty extracts a value from an artifact with XPath.
type ArtifactProperty struct {
	errorHolder
	Name   string
	Source string
	XPath  string
}
