package config

// Approval types.
const (
	ApprovalSuccess = "success"
	ApprovalManual  = "manual"
)

// StageConfig is one stage of a pipeline.
type StageConfig struct {
	errorHolder
	Name                  CaseInsensitiveString
	FetchMaterials        bool
	CleanWorkingDir       bool
	NeverCleanupArtifacts bool
	Approval              *Approval
	Variables             []*EnvironmentVariable
	Jobs                  []*JobConfig
}

// NewStageConfig returns a stage with the defaults of a freshly created stage.
func NewStageConfig(name string, jobs ...*JobConfig) *StageConfig {
	return &StageConfig{
		Name:           CaseInsensitiveString(name),
		FetchMaterials: true,
		Approval:       &Approval{Type: ApprovalSuccess},
		Jobs:           jobs,
	}
}

// Job returns the job called name, or nil.
func (s *StageConfig) Job(name CaseInsensitiveString) *JobConfig {
	for _, j := range s.Jobs {
		if j.Name.Equal(name) {
			return j
		}
	}
	return nil
}

func (s *StageConfig) walk(visit func(Validatable)) {
	visit(s)
	if s.Approval != nil {
		visit(s.Approval)
		visit(&s.Approval.Authorization)
	}
	for _, v := range s.Variables {
		visit(v)
	}
	for _, j := range s.Jobs {
		j.walk(visit)
	}
}

// Approval controls how a stage is triggered.
type Approval struct {
	errorHolder
	Type          string
	Authorization Authorization
}

// Authorization lists the roles and users allowed to approve a stage.
type Authorization struct {
	errorHolder
	Roles []CaseInsensitiveString
	Users []CaseInsensitiveString
}
